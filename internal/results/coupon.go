package results

import (
	"context"
	"errors"
)

var ErrNoCoupon = errors.New("report has no coupon")

type Redeemer interface {
	Redeem(ctx context.Context, coupon, playerID string) error
}

// CouponSink spends the player's coupon once their duel is over, whether
// they won or not.
type CouponSink struct {
	coupons Redeemer
}

func NewCouponSink(coupons Redeemer) *CouponSink {
	return &CouponSink{coupons: coupons}
}

func (s *CouponSink) Record(ctx context.Context, r Report) error {
	if r.Coupon == "" || r.PlayerID == "" {
		return ErrNoCoupon
	}
	return s.coupons.Redeem(ctx, r.Coupon, r.PlayerID)
}
