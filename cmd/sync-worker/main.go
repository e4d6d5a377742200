package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/audit"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/notify"
	"github.com/hackgods/clinic-booking/internal/scheduling"
)

const batchSize = 200

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(logging.Config{Env: "dev"})
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(logging.Config{
		Env:       cfg.Env,
		Level:     cfg.LogLevel,
		Redaction: cfg.LogRedaction,
	}).With().Str("service", "sync-worker").Logger()

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Str("scheduling_adapter", cfg.Scheduling.Adapter).
		Msg("sync-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4, ApplicationName: "clinic-booking-sync"})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	var scheduler scheduling.Adapter
	if cfg.Scheduling.Adapter == config.SchedulingFHIR {
		scheduler = scheduling.NewFHIRClient(scheduling.FHIRConfig{
			BaseURL:     cfg.Scheduling.FHIRBaseURL,
			BearerToken: cfg.Scheduling.FHIRBearerToken,
		}, logger)
	} else {
		// The simulator keeps no state across processes, so every booking
		// reads as unknown and is skipped.
		scheduler = scheduling.NewSimulator(scheduling.DefaultSimulatorConfig(), logger)
	}

	svc := booking.NewService(
		booking.NewPgRepository(pgPool),
		scheduler,
		notify.NewLogAdapter(logger),
		audit.NewWriter(audit.NewPgRepository(pgPool), logger),
		logger,
		booking.Options{AdapterTimeout: cfg.AdapterTimeout},
	)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping sync worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	res, err := svc.SyncExternalStatus(runCtx, batchSize)
	if err != nil {
		logger.Error().Err(err).Msg("sync run error")
		return
	}
	logger.Info().
		Int("checked", res.Checked).
		Int("cancelled", res.Cancelled).
		Int("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("sync run complete")
}
