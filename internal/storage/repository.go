package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("result not found")

// DuelRecord is one concluded duel. DuelID is unique so a result can only
// ever be stored once.
type DuelRecord struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	DuelID       string    `gorm:"size:64;uniqueIndex" json:"duel_id"`
	PlayerID     string    `gorm:"size:128;index" json:"player_id"`
	Coupon       string    `gorm:"size:128" json:"coupon"`
	SheetRow     int       `json:"sheet_row"`
	PlayerChoice string    `gorm:"size:8" json:"player_choice"`
	Winner       string    `gorm:"size:8" json:"winner"`
	PlayerWon    bool      `json:"player_won"`
	Reward       int       `json:"reward"`
	ConcludedAt  time.Time `json:"concluded_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionUse marks a player's coupon as spent on one duel. UseKey is unique, so
// the first duel to claim it wins.
type SessionUse struct {
	ID        uint   `gorm:"primaryKey"`
	UseKey    string `gorm:"size:256;uniqueIndex"`
	TokenID   string `gorm:"size:64"`
	DuelID    string `gorm:"size:64"`
	CreatedAt time.Time
}

type Repository interface {
	// SaveResult inserts rec; a second save for the same DuelID is a no-op.
	SaveResult(ctx context.Context, rec *DuelRecord) error
	GetResult(ctx context.Context, duelID string) (*DuelRecord, error)
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]DuelRecord, error)
	// ConsumeSession records use. It reports false when UseKey was already
	// consumed, by this duel or any other.
	ConsumeSession(ctx context.Context, use *SessionUse) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) SaveResult(ctx context.Context, rec *DuelRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "duel_id"}}, DoNothing: true}).
		Create(rec).Error
}

func (r *gormRepository) GetResult(ctx context.Context, duelID string) (*DuelRecord, error) {
	var rec DuelRecord
	err := r.db.WithContext(ctx).Where("duel_id = ?", duelID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]DuelRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []DuelRecord
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("concluded_at desc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (r *gormRepository) ConsumeSession(ctx context.Context, use *SessionUse) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "use_key"}}, DoNothing: true}).
		Create(use)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
