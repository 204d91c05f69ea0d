package arena

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/duel-arena-backend/internal/clock"
	"github.com/DoyleJ11/duel-arena-backend/internal/engine"
	"github.com/DoyleJ11/duel-arena-backend/internal/results"
	"github.com/DoyleJ11/duel-arena-backend/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	if r.i >= len(r.vals) {
		return 0
	}
	v := r.vals[r.i] % n
	r.i++
	return v
}

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further snapshots possible
			return
		}
		t.Fatalf("expected no snapshot within %v, but got: %+v", within, s)
	case <-time.After(within):
		// good: no snapshot
	}
}

func recvView(t *testing.T, a *Arena) View {
	t.Helper()
	reply := make(chan View, 1)
	require.True(t, a.Send(GetState{Reply: reply}))
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func send(t *testing.T, a *Arena, cmd engine.Command, claims *session.Claims) error {
	t.Helper()
	reply := make(chan error, 1)
	require.True(t, a.Send(FromClient{ClientID: "c1", Cmd: cmd, Claims: claims, Reply: reply}))
	select {
	case err := <-reply:
		return err
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for command reply")
		return nil
	}
}

func recordingSink() (results.Sink, chan results.Report) {
	ch := make(chan results.Report, 4)
	return results.SinkFunc(func(_ context.Context, r results.Report) error {
		ch <- r
		return nil
	}), ch
}

// slowRules keeps the real schedulers quiet so tests step the duel by hand.
func slowRules() engine.Rules {
	r := engine.DefaultRules()
	r.AttackTick = time.Hour
	return r
}

var authorized = engine.Authorization{Authorized: true, Token: "tok"}

func TestArena_JoinSendsCurrentSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewArena(ctx, engine.NewDuel("d1", slowRules(), &seqRand{}), Options{FrameInterval: time.Hour})

	out := make(chan Snapshot, 2)
	a.Inbox() <- Join{ClientID: "c1", Outbox: out}

	first := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 0, first.Version)
	assert.Equal(t, engine.PhaseIdle, first.State.Phase)
	assert.Equal(t, 100, first.State.Red.Health)
}

func TestArena_RejectsStartWithoutSelection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewArena(ctx, engine.NewDuel("d1", slowRules(), &seqRand{}), Options{FrameInterval: time.Hour})
	out := make(chan Snapshot, 2)
	a.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	err := send(t, a, engine.Command{Type: engine.CmdStartDuel, Auth: authorized}, nil)
	require.ErrorIs(t, err, engine.ErrNoSelection)

	recvNoSnapshot(t, out, 50*time.Millisecond)
	view := recvView(t, a)
	assert.Equal(t, engine.PhaseIdle, view.State.Phase)
	assert.False(t, view.AttacksRunning)
	assert.False(t, view.FramesRunning)

	require.NoError(t, send(t, a, engine.Command{Type: engine.CmdSelectSide, Side: engine.SideRed}, nil))
	err = send(t, a, engine.Command{Type: engine.CmdStartDuel}, nil)
	require.ErrorIs(t, err, engine.ErrUnauthorized)
}

func TestArena_KnockoutStopsSchedulersAndReportsOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start draws red, damage draws 15, prize draws 5000
	duel := engine.NewDuel("d1", slowRules(), &seqRand{vals: []int{0, 10, 1}})
	duel.Blue.Health = 12
	clk := clock.NewManual()
	sink, reports := recordingSink()
	a := NewArena(ctx, duel, Options{Clock: clk, Sink: sink, FrameInterval: time.Hour})

	out := make(chan Snapshot, 8)
	a.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	require.NoError(t, send(t, a, engine.Command{Type: engine.CmdSelectSide, Side: engine.SideRed}, nil))
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	claims := &session.Claims{PlayerID: "P1", Coupon: "ABC", Row: 7}
	require.NoError(t, send(t, a, engine.Command{Type: engine.CmdStartDuel, Auth: authorized}, claims))
	started := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, engine.PhaseFighting, started.State.Phase)
	assert.Equal(t, engine.SideRed, started.State.Turn)

	view := recvView(t, a)
	assert.True(t, view.AttacksRunning)
	assert.True(t, view.FramesRunning)

	a.Inbox() <- AttackTick{}
	attacking := recvSnapshot(t, out, 100*time.Millisecond)
	assert.True(t, attacking.State.Red.IsAttacking)
	assert.Equal(t, engine.SideBlue, attacking.State.Turn)

	clk.Set(250 * time.Millisecond)
	a.Inbox() <- FrameTick{}
	final := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, engine.PhaseConcluded, final.State.Phase)
	assert.Equal(t, 0, final.State.Blue.Health)
	require.NotNil(t, final.State.Result)
	assert.Equal(t, engine.SideRed, final.State.Result.Winner)

	select {
	case rep := <-reports:
		assert.Equal(t, "d1", rep.DuelID)
		assert.Equal(t, engine.SideRed, rep.Winner)
		assert.True(t, rep.PlayerWon)
		assert.Equal(t, 5000, rep.Reward)
		assert.Equal(t, "tok", rep.SessionToken)
		assert.Equal(t, "P1", rep.PlayerID)
		assert.Equal(t, 7, rep.Row)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for report")
	}

	view = recvView(t, a)
	assert.False(t, view.AttacksRunning)
	assert.False(t, view.FramesRunning)
	assert.True(t, view.Reported)

	clk.Advance(time.Second)
	a.Inbox() <- AttackTick{}
	a.Inbox() <- FrameTick{}
	recvNoSnapshot(t, out, 50*time.Millisecond)
	assert.Empty(t, reports)
	assert.Equal(t, final.State, recvView(t, a).State)
}

func TestArena_RealTimersRunDuelToConclusion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rules := engine.DefaultRules()
	rules.MaxHealth = 10
	rules.AttackTick = 60 * time.Millisecond
	rules.AttackDuration = 50 * time.Millisecond
	sink, reports := recordingSink()
	a := NewArena(ctx, engine.NewDuel("d2", rules, engine.NewRand(99)), Options{Sink: sink, FrameInterval: 2 * time.Millisecond})

	out := make(chan Snapshot, 256)
	a.Inbox() <- Join{ClientID: "c1", Outbox: out}
	require.NoError(t, send(t, a, engine.Command{Type: engine.CmdSelectSide, Side: engine.SideBlue}, nil))
	require.NoError(t, send(t, a, engine.Command{Type: engine.CmdStartDuel, Auth: authorized}, nil))

	var rep results.Report
	select {
	case rep = <-reports:
	case <-time.After(5 * time.Second):
		t.Fatalf("duel never concluded")
	}
	assert.Equal(t, rep.Winner == engine.SideBlue, rep.PlayerWon)

	view := recvView(t, a)
	assert.Equal(t, engine.PhaseConcluded, view.State.Phase)
	assert.False(t, view.AttacksRunning)
	assert.False(t, view.FramesRunning)

	// drain what was sent before conclusion, then nothing more may arrive
	for len(out) > 0 {
		<-out
	}
	recvNoSnapshot(t, out, 200*time.Millisecond)
	assert.Empty(t, reports)
}

func TestArena_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewArena(ctx, engine.NewDuel("d1", slowRules(), &seqRand{}), Options{FrameInterval: time.Hour})

	clientOut := make(chan Snapshot, 1)
	a.Inbox() <- Join{ClientID: "ch1", Outbox: clientOut}

	a.Inbox() <- FromClient{Cmd: engine.Command{Type: engine.CmdSelectSide, Side: engine.SideRed}}

	view := recvView(t, a)
	assert.Equal(t, 0, view.NumClients, "expected slow client to be dropped")
}

func TestArena_Shutdown_StopsSchedulers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rules := engine.DefaultRules()
	rules.AttackTick = 20 * time.Millisecond
	a := NewArena(ctx, engine.NewDuel("d1", rules, &seqRand{}), Options{FrameInterval: 5 * time.Millisecond})

	out := make(chan Snapshot, 64)
	a.Inbox() <- Join{ClientID: "c1", Outbox: out}
	require.NoError(t, send(t, a, engine.Command{Type: engine.CmdSelectSide, Side: engine.SideRed}, nil))
	require.NoError(t, send(t, a, engine.Command{Type: engine.CmdStartDuel, Auth: authorized}, nil))

	a.Inbox() <- Shutdown{}
	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatalf("arena did not shut down")
	}

	for range out {
		// drain until the arena closes the outbox
	}
	assert.False(t, a.Send(GetState{Reply: make(chan View, 1)}))
}

// memLedger spends each session key once.
type memLedger struct {
	mu    sync.Mutex
	spent map[string]string
}

func (l *memLedger) Consume(_ context.Context, claims *session.Claims, duelID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.spent == nil {
		l.spent = make(map[string]string)
	}
	if _, ok := l.spent[claims.UseKey()]; ok {
		return session.ErrSessionUsed
	}
	l.spent[claims.UseKey()] = duelID
	return nil
}

func TestArena_SessionStartsOnlyOneDuel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger := &memLedger{}
	opts := Options{Ledger: ledger, FrameInterval: time.Hour}
	claims := &session.Claims{PlayerID: "P1", Coupon: "ABC", Row: 7}

	first := NewArena(ctx, engine.NewDuel("d1", slowRules(), &seqRand{}), opts)
	second := NewArena(ctx, engine.NewDuel("d2", slowRules(), &seqRand{}), opts)

	// a start the engine rejects must not spend the session
	err := send(t, first, engine.Command{Type: engine.CmdStartDuel, Auth: authorized}, claims)
	require.ErrorIs(t, err, engine.ErrNoSelection)
	assert.Empty(t, ledger.spent)

	for _, a := range []*Arena{first, second} {
		require.NoError(t, send(t, a, engine.Command{Type: engine.CmdSelectSide, Side: engine.SideRed}, nil))
	}

	require.NoError(t, send(t, first, engine.Command{Type: engine.CmdStartDuel, Auth: authorized}, claims))
	assert.Equal(t, engine.PhaseFighting, recvView(t, first).State.Phase)
	assert.Equal(t, "d1", ledger.spent["ABC|P1"])

	err = send(t, second, engine.Command{Type: engine.CmdStartDuel, Auth: authorized}, claims)
	require.ErrorIs(t, err, session.ErrSessionUsed)

	view := recvView(t, second)
	assert.Equal(t, engine.PhaseIdle, view.State.Phase)
	assert.False(t, view.AttacksRunning)
	assert.False(t, view.FramesRunning)

	err = send(t, second, engine.Command{Type: engine.CmdStartDuel, Auth: authorized}, nil)
	require.ErrorIs(t, err, engine.ErrUnauthorized)
}

func TestArena_JoinWithFullOutboxDoesNotStall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewArena(ctx, engine.NewDuel("d1", slowRules(), &seqRand{}), Options{FrameInterval: time.Hour})

	unbuffered := make(chan Snapshot)
	require.True(t, a.Send(Join{ClientID: "c1", Outbox: unbuffered}))

	view := recvView(t, a)
	assert.Equal(t, 0, view.NumClients)

	_, ok := <-unbuffered
	assert.False(t, ok, "rejected outbox should be closed")
}
