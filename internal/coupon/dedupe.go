package coupon

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

const sharedCheckTimeout = 15 * time.Second

// Deduped collapses concurrent checks of the same coupon/player pair into a
// single upstream call. Double-clicked logins hit the sheet once.
type Deduped struct {
	next    Validator
	group   singleflight.Group
	timeout time.Duration
}

func NewDeduped(next Validator) *Deduped {
	return &Deduped{next: next, timeout: sharedCheckTimeout}
}

// Check waits for the shared call or its own ctx, whichever ends first. The
// shared call runs detached from any one caller, so a caller that goes away
// does not fail the others.
func (d *Deduped) Check(ctx context.Context, coupon, playerID string) (Ticket, error) {
	key := Sanitize(coupon) + "|" + Sanitize(playerID)
	ch := d.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		return d.next.Check(shared, coupon, playerID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Ticket{}, res.Err
		}
		return res.Val.(Ticket), nil
	case <-ctx.Done():
		return Ticket{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}
