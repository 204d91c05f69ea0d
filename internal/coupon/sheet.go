package coupon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// SheetValidator asks the spreadsheet web app whether a coupon is usable.
type SheetValidator struct {
	endpoint string
	client   *http.Client
}

func NewSheetValidator(endpoint string, client *http.Client) *SheetValidator {
	if client == nil {
		client = http.DefaultClient
	}
	return &SheetValidator{endpoint: endpoint, client: client}
}

type sheetReply struct {
	Status string `json:"status"` // "valid" | "used" | anything else
	Row    int    `json:"row"`
}

func (v *SheetValidator) Check(ctx context.Context, coupon, playerID string) (Ticket, error) {
	coupon, playerID, err := sanitizePair(coupon, playerID)
	if err != nil {
		return Ticket{}, err
	}

	u, err := url.Parse(v.endpoint)
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: bad endpoint: %v", ErrUnavailable, err)
	}
	q := u.Query()
	q.Set("action", "checkCoupon")
	q.Set("kupon", coupon)
	q.Set("id", playerID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := v.client.Do(req)
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Ticket{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var reply sheetReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return Ticket{}, fmt.Errorf("%w: decode reply: %v", ErrUnavailable, err)
	}

	switch reply.Status {
	case "valid":
		return Ticket{Coupon: coupon, PlayerID: playerID, Row: reply.Row}, nil
	case "used":
		return Ticket{}, ErrUsed
	default:
		return Ticket{}, ErrInvalid
	}
}
