package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/duel-arena-backend/internal/arena"
	"github.com/DoyleJ11/duel-arena-backend/internal/config"
	"github.com/DoyleJ11/duel-arena-backend/internal/coupon"
	"github.com/DoyleJ11/duel-arena-backend/internal/httpapi"
	"github.com/DoyleJ11/duel-arena-backend/internal/hub"
	"github.com/DoyleJ11/duel-arena-backend/internal/logging"
	"github.com/DoyleJ11/duel-arena-backend/internal/results"
	"github.com/DoyleJ11/duel-arena-backend/internal/session"
	"github.com/DoyleJ11/duel-arena-backend/internal/storage"
	"github.com/DoyleJ11/duel-arena-backend/internal/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	repo := storage.NewRepository(db)

	httpClient := &http.Client{Timeout: 15 * time.Second}

	sinks := results.Multi{results.NewStoreSink(repo)}
	if cfg.SheetURL != "" {
		sinks = append(sinks, results.NewSheetSink(cfg.SheetURL, httpClient))
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, results will still be stored", zap.Error(err))
		}
		sinks = append(sinks, results.NewRedisSink(rdb, cfg.RedisChannel))
	}

	var validator coupon.Validator
	switch cfg.CouponBackend {
	case "postgres":
		pg, err := coupon.NewPGValidator(ctx, cfg.CouponPGURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		validator = pg
		sinks = append(sinks, results.NewCouponSink(pg))
	default:
		validator = coupon.NewSheetValidator(cfg.SheetURL, httpClient)
	}

	h := hub.NewHub(ctx, arena.Options{
		Sink:          sinks,
		Ledger:        session.NewLedger(repo),
		Logger:        log,
		FrameInterval: cfg.FrameInterval,
	})

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:       h,
		Validator: coupon.NewDeduped(validator),
		Sessions:  session.NewManager(cfg.SessionSecret, cfg.SessionTTL),
		Repo:      repo,
		Rules:     cfg.Rules(),
		Logger:    log,
		WS:        wsOptions(cfg),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr),
			zap.String("db", cfg.DBDriver), zap.String("coupons", cfg.CouponBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func wsOptions(cfg config.Config) ws.Options {
	if cfg.Dev {
		return ws.Options{OriginPatterns: []string{"localhost:*", "127.0.0.1:*"}}
	}
	return ws.Options{}
}
