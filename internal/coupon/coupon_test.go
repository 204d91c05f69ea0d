package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "upper cases", in: "abc123", want: "ABC123"},
		{name: "strips spaces and tabs", in: " ab c\t12 3\n", want: "ABC123"},
		{name: "strips nbsp", in: "AB\u00a0C", want: "ABC"},
		{name: "folds full width", in: "ＡＢ１２", want: "AB12"},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(tc.in))
		})
	}
}

func sheetServer(t *testing.T, status int, reply map[string]any, seen *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = r.URL.Query()
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSheetValidator_Check(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		reply   map[string]any
		want    Ticket
		wantErr error
	}{
		{name: "valid", status: http.StatusOK, reply: map[string]any{"status": "valid", "row": 7}, want: Ticket{Coupon: "WIN2024", PlayerID: "P01", Row: 7}},
		{name: "used", status: http.StatusOK, reply: map[string]any{"status": "used"}, wantErr: ErrUsed},
		{name: "invalid", status: http.StatusOK, reply: map[string]any{"status": "invalid"}, wantErr: ErrInvalid},
		{name: "upstream failure", status: http.StatusBadGateway, reply: map[string]any{}, wantErr: ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen url.Values
			srv := sheetServer(t, tc.status, tc.reply, &seen)
			v := NewSheetValidator(srv.URL+"/exec", srv.Client())

			got, err := v.Check(context.Background(), " win 2024", "p01 ")

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, "checkCoupon", seen.Get("action"))
			assert.Equal(t, "WIN2024", seen.Get("kupon"))
			assert.Equal(t, "P01", seen.Get("id"))
		})
	}
}

func TestSheetValidator_EmptyInputSkipsNetwork(t *testing.T) {
	v := NewSheetValidator("http://127.0.0.1:1/never", nil)
	_, err := v.Check(context.Background(), "  ", "p1")
	require.ErrorIs(t, err, ErrInvalid)
}

type fakeRow struct {
	row  int
	used bool
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int) = r.row
	*dest[1].(*bool) = r.used
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	args []any

	execSQL  string
	execTag  string
	execErr  error
	execArgs []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.args = args
	return q.row
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execSQL, q.execArgs = sql, args
	return pgconn.NewCommandTag(q.execTag), q.execErr
}

func TestPGValidator_Check(t *testing.T) {
	cases := []struct {
		name    string
		row     fakeRow
		wantRow int
		wantErr error
	}{
		{name: "valid", row: fakeRow{row: 12}, wantRow: 12},
		{name: "used", row: fakeRow{row: 12, used: true}, wantErr: ErrUsed},
		{name: "missing", row: fakeRow{err: pgx.ErrNoRows}, wantErr: ErrInvalid},
		{name: "db down", row: fakeRow{err: errors.New("conn refused")}, wantErr: ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := &fakeQuerier{row: tc.row}
			v := &PGValidator{db: q}

			got, err := v.Check(context.Background(), "abc", "p 1")

			assert.Equal(t, []any{"ABC", "P1"}, q.args)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Ticket{Coupon: "ABC", PlayerID: "P1", Row: tc.wantRow}, got)
		})
	}
}

func TestPGValidator_Redeem(t *testing.T) {
	q := &fakeQuerier{execTag: "UPDATE 1"}
	v := &PGValidator{db: q}

	require.NoError(t, v.Redeem(context.Background(), " abc", "p1"))
	assert.Equal(t, redeemCouponSQL, q.execSQL)
	assert.Equal(t, []any{"ABC", "P1"}, q.execArgs)

	q.execTag = "UPDATE 0"
	require.ErrorIs(t, v.Redeem(context.Background(), "abc", "p1"), ErrInvalid)

	q.execErr = errors.New("conn refused")
	require.ErrorIs(t, v.Redeem(context.Background(), "abc", "p1"), ErrUnavailable)

	require.ErrorIs(t, v.Redeem(context.Background(), "", "p1"), ErrInvalid)
}

type slowValidator struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (s *slowValidator) Check(ctx context.Context, coupon, playerID string) (Ticket, error) {
	s.calls.Add(1)
	select {
	case <-s.gate:
	case <-ctx.Done():
		return Ticket{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
	return Ticket{Coupon: Sanitize(coupon), PlayerID: Sanitize(playerID), Row: 3}, nil
}

func TestDeduped_CollapsesConcurrentChecks(t *testing.T) {
	slow := &slowValidator{gate: make(chan struct{})}
	d := NewDeduped(slow)

	var wg sync.WaitGroup
	results := make([]Ticket, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk, err := d.Check(context.Background(), "abc", "p1")
			assert.NoError(t, err)
			results[i] = tk
		}(i)
	}

	// let every caller join the in-flight call before releasing it
	time.Sleep(50 * time.Millisecond)
	close(slow.gate)
	wg.Wait()

	assert.Equal(t, int32(1), slow.calls.Load())
	for _, tk := range results {
		assert.Equal(t, 3, tk.Row)
	}
}

func TestDeduped_CallerCancelDoesNotFailOthers(t *testing.T) {
	slow := &slowValidator{gate: make(chan struct{})}
	d := NewDeduped(slow)

	leaving, leave := context.WithCancel(context.Background())
	leaverErr := make(chan error, 1)
	go func() {
		_, err := d.Check(leaving, "abc", "p1")
		leaverErr <- err
	}()
	require.Eventually(t, func() bool { return slow.calls.Load() == 1 }, time.Second, time.Millisecond)

	stayed := make(chan Ticket, 1)
	go func() {
		tk, err := d.Check(context.Background(), "abc", "p1")
		assert.NoError(t, err)
		stayed <- tk
	}()

	// let the second caller join the in-flight call, then drop the first
	time.Sleep(20 * time.Millisecond)
	leave()
	require.ErrorIs(t, <-leaverErr, ErrUnavailable)

	close(slow.gate)
	select {
	case tk := <-stayed:
		assert.Equal(t, 3, tk.Row)
	case <-time.After(time.Second):
		t.Fatalf("remaining caller never got the shared result")
	}
	assert.Equal(t, int32(1), slow.calls.Load())
}
