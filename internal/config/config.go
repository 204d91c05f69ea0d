// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/DoyleJ11/duel-arena-backend/internal/engine"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrMissingSecret   = errors.New("session secret is required")
	ErrTickTooShort    = errors.New("attack tick must be longer than attack duration")
	ErrNoPrizes        = errors.New("at least one prize is required")
	ErrBadHealth       = errors.New("max health must be positive")
	ErrUnknownDriver   = errors.New("unknown database driver")
	ErrUnknownBackend  = errors.New("unknown coupon backend")
	ErrMissingEndpoint = errors.New("coupon backend endpoint is required")
)

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Dev      bool   `env:"DEV" envDefault:"false"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"file:duel.db"`

	CouponBackend string `env:"COUPON_BACKEND" envDefault:"sheet"`
	SheetURL      string `env:"SHEET_URL"`
	CouponPGURL   string `env:"COUPON_PG_URL"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"duel-results"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	AttackTick     time.Duration `env:"ATTACK_TICK" envDefault:"900ms"`
	AttackDuration time.Duration `env:"ATTACK_DURATION" envDefault:"500ms"`
	FrameInterval  time.Duration `env:"FRAME_INTERVAL" envDefault:"16ms"`
	MaxHealth      int           `env:"MAX_HEALTH" envDefault:"100"`
	Prizes         []int         `env:"PRIZES" envDefault:"3000,5000,8000" envSeparator:","`
}

// Load reads an optional .env file, then the DUEL_* environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// A missing file is fine; the environment alone may be enough.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse reads the DUEL_* environment without touching .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "DUEL_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.SessionSecret == "" {
		return ErrMissingSecret
	}
	if c.AttackTick <= c.AttackDuration {
		return ErrTickTooShort
	}
	if len(c.Prizes) == 0 {
		return ErrNoPrizes
	}
	if c.MaxHealth <= 0 {
		return ErrBadHealth
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.DBDriver)
	}
	switch c.CouponBackend {
	case "sheet":
		if c.SheetURL == "" {
			return fmt.Errorf("%w: DUEL_SHEET_URL", ErrMissingEndpoint)
		}
	case "postgres":
		if c.CouponPGURL == "" {
			return fmt.Errorf("%w: DUEL_COUPON_PG_URL", ErrMissingEndpoint)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.CouponBackend)
	}
	return nil
}

// Rules maps the tunables onto the engine rules; the hit window and damage
// range stay at their defaults.
func (c Config) Rules() engine.Rules {
	r := engine.DefaultRules()
	r.MaxHealth = c.MaxHealth
	r.AttackTick = c.AttackTick
	r.AttackDuration = c.AttackDuration
	r.Prizes = append([]int(nil), c.Prizes...)
	return r
}
