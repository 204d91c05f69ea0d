package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/DoyleJ11/duel-arena-backend/internal/storage"
)

var ErrSessionUsed = errors.New("session already used for a duel")

// UseKey names what starting a duel spends: the coupon pair, so logging in
// again with the same coupon does not buy a second duel.
func (c *Claims) UseKey() string {
	if c.Coupon == "" || c.PlayerID == "" {
		return "jti:" + c.ID
	}
	return c.Coupon + "|" + c.PlayerID
}

// Ledger binds each session to the first duel it starts.
type Ledger struct {
	store storage.Repository
}

func NewLedger(store storage.Repository) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Consume(ctx context.Context, claims *Claims, duelID string) error {
	if claims == nil {
		return ErrInvalidToken
	}
	fresh, err := l.store.ConsumeSession(ctx, &storage.SessionUse{
		UseKey:  claims.UseKey(),
		TokenID: claims.ID,
		DuelID:  duelID,
	})
	if err != nil {
		return fmt.Errorf("record session use: %w", err)
	}
	if !fresh {
		return ErrSessionUsed
	}
	return nil
}
