package results

import (
	"context"

	"github.com/DoyleJ11/duel-arena-backend/internal/storage"
)

type StoreSink struct {
	repo storage.Repository
}

func NewStoreSink(repo storage.Repository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Record(ctx context.Context, r Report) error {
	return s.repo.SaveResult(ctx, &storage.DuelRecord{
		DuelID:       r.DuelID,
		PlayerID:     r.PlayerID,
		Coupon:       r.Coupon,
		SheetRow:     r.Row,
		PlayerChoice: string(r.PlayerChoice),
		Winner:       string(r.Winner),
		PlayerWon:    r.PlayerWon,
		Reward:       r.Reward,
		ConcludedAt:  r.ConcludedAt,
	})
}
