package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/migrations"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate [up|down|force <version>|version]")
	os.Exit(2)
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(logging.Config{Env: "dev"})
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(logging.Config{Env: cfg.Env, Level: cfg.LogLevel, Redaction: cfg.LogRedaction}).
		With().Str("service", "migrate").Logger()

	m, closeDB, err := newMigrator(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrator setup failed")
	}
	defer closeDB()

	if err := run(m, args, logger); err != nil {
		logger.Fatal().Err(err).Str("command", args[0]).Msg("migration failed")
	}
}

func newMigrator(dsn string) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("postgres migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}

	return m, func() { _, _ = m.Close() }, nil
}

func run(m *migrate.Migrate, args []string, logger zerolog.Logger) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "force":
		if len(args) != 2 {
			usage()
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := m.Force(v); err != nil {
			return err
		}
	case "version":
	default:
		usage()
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	logger.Info().Str("command", args[0]).Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	return nil
}
