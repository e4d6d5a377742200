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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/audit"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/notify"
	"github.com/hackgods/clinic-booking/internal/ratelimit"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/scheduling"
)

var version = "dev"

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
	}).With().Str("service", "api-server").Logger()

	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("scheduling_adapter", cfg.Scheduling.Adapter).
		Str("notification_adapter", cfg.Notification.Adapter).
		Bool("phi_storage_enabled", cfg.PHIStorageEnabled).
		Msg("api-server starting up")

	if !cfg.PHIStorageEnabled {
		logger.Info().Msg("PHI storage disabled, running in synthetic data mode")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{ApplicationName: "clinic-booking-api"})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
	} else {
		logger.Info().Msg("redis disabled, using in-process cache and rate limits")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	scheduler, err := buildScheduler(cfg, rdb, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduling adapter error")
	}
	notifier, err := notify.New(rootCtx, cfg.Notification, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("notification adapter error")
	}

	auditWriter := audit.NewWriter(audit.NewPgRepository(pgPool), logger)
	bookingOpts := booking.Options{
		AdapterTimeout: cfg.AdapterTimeout,
		OverlapAware:   cfg.OverlapAware,
		Metrics:        booking.NewMetrics(registry),
	}
	if cfg.SlotLockEnabled {
		if rdb != nil {
			bookingOpts.SlotLocker = redisclient.NewSlotLocker(rdb, "clinic-booking:", cfg.SlotLockTTL)
		} else {
			logger.Warn().Msg("BOOKING_SLOT_LOCK needs redis, slot lock disabled")
		}
	}
	bookings := booking.NewService(booking.NewPgRepository(pgPool), scheduler, notifier, auditWriter, logger, bookingOpts)
	authSvc := auth.NewService(auth.NewPgUserRepository(pgPool), auditWriter, cfg.JWTSecret, cfg.JWTExpiresIn, logger)

	publicLimiter, authLimiter := buildLimiters(cfg, rdb)

	health := api.HealthConfig{
		Postgres:          pgPool,
		Env:               cfg.Env,
		Version:           version,
		PHIStorageEnabled: cfg.PHIStorageEnabled,
		Adapters: api.AdapterInfo{
			Scheduling:   cfg.Scheduling.Adapter,
			Notification: cfg.Notification.Adapter,
		},
	}
	if rdb != nil {
		health.Redis = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	router := api.NewRouter(api.RouterConfig{
		Bookings:      bookings,
		Auth:          authSvc,
		Audit:         auditWriter,
		Health:        api.NewHealthHandler(health),
		PublicLimiter: publicLimiter,
		AuthLimiter:   authLimiter,
		Metrics:       api.NewMetrics(registry),
		Gatherer:      registry,
		PHIStorage:    cfg.PHIStorageEnabled,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutting down api-server")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server error")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	logger.Info().Msg("api-server stopped")
}

func buildScheduler(cfg config.Config, rdb *redis.Client, logger zerolog.Logger) (scheduling.Adapter, error) {
	var next scheduling.Adapter
	switch cfg.Scheduling.Adapter {
	case config.SchedulingFHIR:
		next = scheduling.NewFHIRClient(scheduling.FHIRConfig{
			BaseURL:     cfg.Scheduling.FHIRBaseURL,
			BearerToken: cfg.Scheduling.FHIRBearerToken,
		}, logger)
	case config.SchedulingMock:
		next = scheduling.NewSimulator(scheduling.DefaultSimulatorConfig(), logger)
	default:
		return nil, fmt.Errorf("unknown scheduling adapter %q", cfg.Scheduling.Adapter)
	}

	var cache scheduling.Cache
	if rdb != nil {
		cache = redisclient.NewCache(rdb, "clinic-booking:")
	} else {
		cache = scheduling.NewMemoryCache(time.Minute)
	}
	return scheduling.NewCached(next, cache, cfg.AvailabilityCacheTTL, logger), nil
}

func buildLimiters(cfg config.Config, rdb *redis.Client) (public, login ratelimit.Limiter) {
	if rdb != nil {
		return redisclient.NewRateLimiter(rdb, "public", cfg.PublicRateLimit, cfg.PublicRateWindow),
			redisclient.NewRateLimiter(rdb, "auth", cfg.AuthRateLimit, cfg.AuthRateWindow)
	}
	return ratelimit.NewLocal(cfg.PublicRateLimit, cfg.PublicRateWindow),
		ratelimit.NewLocal(cfg.AuthRateLimit, cfg.AuthRateWindow)
}
