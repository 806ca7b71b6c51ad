package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/YiberMelo/ChronosSuite/internal/config"
	"github.com/YiberMelo/ChronosSuite/internal/httpapi"
	"github.com/YiberMelo/ChronosSuite/internal/logging"
	"github.com/YiberMelo/ChronosSuite/internal/ratelimit"
	"github.com/YiberMelo/ChronosSuite/internal/store"
	"github.com/YiberMelo/ChronosSuite/internal/store/memory"
	"github.com/YiberMelo/ChronosSuite/internal/store/postgres"
	"github.com/YiberMelo/ChronosSuite/internal/store/sqlite"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		cancel()
		log.Fatal("failed to init store", zap.Error(err))
	}
	defer closeStore()

	limiter, closeLimiter, err := openLimiter(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("failed to init rate limiter", zap.Error(err))
	}
	defer closeLimiter()

	srv, err := httpapi.NewServer(cfg, st, limiter, log)
	if err != nil {
		log.Fatal("failed to init server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("chronos listening", zap.String("addr", cfg.ListenAddr()), zap.String("env", cfg.Env))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// openStore prefers postgres, then sqlite, then the in-memory store.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Store, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := postgres.NewStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		log.Info("using postgres store")
		return pg, pg.Close, nil

	case cfg.SQLitePath != "":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		sq := sqlite.New(db)
		log.Info("using sqlite store", zap.String("path", cfg.SQLitePath))
		return sq, func() {
			if err := sq.Close(); err != nil {
				log.Warn("close sqlite store", zap.Error(err))
			}
		}, nil

	default:
		log.Warn("using memory store, records are lost on restart")
		return memory.NewStore(), func() {}, nil
	}
}

func openLimiter(ctx context.Context, cfg config.Config, log *zap.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemory(cfg.LoginAttemptsPerMinute), func() {}, nil
	}
	client, err := ratelimit.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rl := ratelimit.NewRedis(client, cfg.LoginAttemptsPerMinute)
	log.Info("using redis login limiter")
	return rl, func() { _ = rl.Close() }, nil
}
