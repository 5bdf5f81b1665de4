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

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/P8labs/foxd/internal/config"
	"github.com/P8labs/foxd/internal/daemon"
	"github.com/P8labs/foxd/internal/db"
	"github.com/P8labs/foxd/internal/httpapi"
	"github.com/P8labs/foxd/internal/logging"
	"github.com/P8labs/foxd/internal/metrics"
	"github.com/P8labs/foxd/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error().Err(err).Msg("foxd stopped with error")
		stop()
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, logger zerolog.Logger, cfg config.Config) error {
	startedAt := time.Now()

	pool, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		return err
	}

	m := metrics.New()
	dispatcher := notify.NewDispatcher(logger, notify.Options{Metrics: m})
	d := daemon.New(logger, pool.Queries(), dispatcher, daemon.Options{
		Config:  cfg.Daemon,
		Metrics: m,
	})

	h := httpapi.NewHandler(logger, pool, httpapi.Options{
		Metrics:   m,
		Reloader:  dispatcher,
		StartedAt: startedAt,
	})
	addr := cfg.API.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := d.Run(gctx); err != nil {
			return fmt.Errorf("daemon: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("foxd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
