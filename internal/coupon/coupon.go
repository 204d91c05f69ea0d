// Package coupon checks that a coupon code and player ID pair may enter the
// arena. The backing store is external; this package only speaks to it.
package coupon

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var ErrInvalid = errors.New("invalid coupon or player id")
var ErrUsed = errors.New("coupon already used")
var ErrUnavailable = errors.New("coupon validation unavailable")

// Ticket is a validated coupon. Row locates the coupon in the backing store
// and is where the duel result gets written back.
type Ticket struct {
	Coupon   string
	PlayerID string
	Row      int
}

type Validator interface {
	Check(ctx context.Context, coupon, playerID string) (Ticket, error)
}

// Sanitize applies NFKC, drops every whitespace rune and upper-cases, so
// codes typed on phones with stray spaces or full-width digits still match.
func Sanitize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.ToUpper(s)
}

func sanitizePair(coupon, playerID string) (string, string, error) {
	coupon, playerID = Sanitize(coupon), Sanitize(playerID)
	if coupon == "" || playerID == "" {
		return "", "", ErrInvalid
	}
	return coupon, playerID, nil
}
