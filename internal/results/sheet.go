package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

var ErrNoRow = errors.New("report has no sheet row")

// SheetSink writes the reward back to the coupon's spreadsheet row.
type SheetSink struct {
	endpoint string
	client   *http.Client
}

func NewSheetSink(endpoint string, client *http.Client) *SheetSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &SheetSink{endpoint: endpoint, client: client}
}

type sheetAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *SheetSink) Record(ctx context.Context, r Report) error {
	if r.Row <= 0 {
		return ErrNoRow
	}

	form := url.Values{
		"action": {"simpanHasil"},
		"row":    {strconv.Itoa(r.Row)},
		"hadiah": {strconv.Itoa(r.Reward)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post result: %w", err)
	}
	defer resp.Body.Close()

	var ack sheetAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("decode ack (status %d): %w", resp.StatusCode, err)
	}
	if ack.Status != "ok" {
		msg := ack.Message
		if msg == "" {
			msg = "unknown"
		}
		return fmt.Errorf("sheet rejected result: %s", msg)
	}
	return nil
}
