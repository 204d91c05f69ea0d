package coupon

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	checkCouponSQL  = `SELECT row_id, used FROM coupons WHERE code = $1 AND player_id = $2`
	redeemCouponSQL = `UPDATE coupons SET used = true WHERE code = $1 AND player_id = $2`
)

type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGValidator reads coupons from a Postgres table:
//
//	coupons(code text, player_id text, row_id int, used bool)
type PGValidator struct {
	db   pgConn
	pool *pgxpool.Pool
}

func NewPGValidator(ctx context.Context, connString string) (*PGValidator, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("open coupon pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping coupon db: %w", err)
	}
	return &PGValidator{db: pool, pool: pool}, nil
}

func (v *PGValidator) Close() {
	if v.pool != nil {
		v.pool.Close()
	}
}

func (v *PGValidator) Check(ctx context.Context, coupon, playerID string) (Ticket, error) {
	coupon, playerID, err := sanitizePair(coupon, playerID)
	if err != nil {
		return Ticket{}, err
	}

	var row int
	var used bool
	err = v.db.QueryRow(ctx, checkCouponSQL, coupon, playerID).Scan(&row, &used)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrInvalid
	}
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if used {
		return Ticket{}, ErrUsed
	}
	return Ticket{Coupon: coupon, PlayerID: playerID, Row: row}, nil
}

// Redeem marks the coupon used so it cannot be checked in again.
func (v *PGValidator) Redeem(ctx context.Context, coupon, playerID string) error {
	coupon, playerID, err := sanitizePair(coupon, playerID)
	if err != nil {
		return err
	}

	tag, err := v.db.Exec(ctx, redeemCouponSQL, coupon, playerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalid
	}
	return nil
}
