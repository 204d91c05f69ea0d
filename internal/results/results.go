// Package results delivers a concluded duel's outcome to whatever records
// rewards. Sinks never see engine state, only the Report.
package results

import (
	"context"
	"fmt"
	"time"

	"github.com/DoyleJ11/duel-arena-backend/internal/engine"
	"go.uber.org/multierr"
)

type Report struct {
	DuelID       string      `json:"duel_id"`
	Winner       engine.Side `json:"winner"`
	PlayerChoice engine.Side `json:"player_choice"`
	PlayerWon    bool        `json:"player_won"`
	Reward       int         `json:"reward"`
	SessionToken string      `json:"-"`
	PlayerID     string      `json:"player_id"`
	Coupon       string      `json:"coupon"`
	Row          int         `json:"row"`
	ConcludedAt  time.Time   `json:"concluded_at"`
}

type Sink interface {
	Record(ctx context.Context, r Report) error
}

type SinkFunc func(ctx context.Context, r Report) error

func (f SinkFunc) Record(ctx context.Context, r Report) error { return f(ctx, r) }

// Multi records to every sink, even after one fails, and returns the
// combined error.
type Multi []Sink

func (m Multi) Record(ctx context.Context, r Report) error {
	var err error
	for _, s := range m {
		if e := s.Record(ctx, r); e != nil {
			err = multierr.Append(err, fmt.Errorf("%T: %w", s, e))
		}
	}
	return err
}
