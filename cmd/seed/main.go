package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
)

type seedConfig struct {
	Providers     int    `envconfig:"SEED_PROVIDERS" default:"20"`
	Patients      int    `envconfig:"SEED_PATIENTS" default:"2000"`
	Force         bool   `envconfig:"SEED_FORCE" default:"false"`
	AdminEmail    string `envconfig:"SEED_ADMIN_EMAIL" default:"admin@clinic.test"`
	AdminPassword string `envconfig:"SEED_ADMIN_PASSWORD" default:"admin123"`
	StaffEmail    string `envconfig:"SEED_STAFF_EMAIL" default:"staff@clinic.test"`
	StaffPassword string `envconfig:"SEED_STAFF_PASSWORD" default:"staff123"`
}

var specialties = []string{
	"General Practice",
	"Dermatology",
	"Cardiology",
	"Pediatrics",
	"Psychiatry",
	"Endocrinology",
	"Physiotherapy",
	"Nutrition",
}

var teams = []string{"North Clinic", "South Clinic", "Telehealth"}

var appointmentTypes = []struct {
	Name        string
	Duration    int
	Description string
}{
	{"Initial Consultation", 60, "First visit with a new provider"},
	{"Follow-up", 30, "Review of an existing treatment plan"},
	{"Quick Check", 15, "Short check-in or prescription review"},
	{"Telehealth Session", 30, "Video or phone consultation"},
	{"Annual Physical", 45, "Yearly preventive examination"},
}

var defaultWorkingHours = map[string][]string{
	"mon": {"09:00-17:00"},
	"tue": {"09:00-17:00"},
	"wed": {"09:00-17:00"},
	"thu": {"09:00-17:00"},
	"fri": {"09:00-15:00"},
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Env: baseCfg.Env, Level: baseCfg.LogLevel, Redaction: baseCfg.LogRedaction}).
		With().Str("cmd", "seed").Logger()

	var cfg seedConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid seed config")
	}

	if baseCfg.PHIStorageEnabled && !cfg.Force {
		logger.Fatal().Msg("refusing to seed synthetic data while PHI storage is enabled (set SEED_FORCE=true to override)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, db.PoolOptions{ApplicationName: "clinic-booking-seed"})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	providerIDs, err := seedProviders(ctx, pool, faker, cfg.Providers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed providers")
	}
	if err := seedAppointmentTypes(ctx, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed appointment types")
	}
	if err := seedPatients(ctx, pool, faker, cfg.Patients, providerIDs, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedUsers(ctx, pool, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed users")
	}

	logger.Info().Msg("seed complete")
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding providers")

	hours, err := json.Marshal(defaultWorkingHours)
	if err != nil {
		return nil, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		first, last := faker.FirstName(), faker.LastName()
		specialty := specialties[faker.Number(0, len(specialties)-1)]
		team := teams[faker.Number(0, len(teams)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, display_name, specialty, team, bio, working_hours, accepts_new_patients)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, id, first+" "+last, "Dr. "+last, specialty, team,
			fmt.Sprintf("%s provider with the %s team.", specialty, team), hours, faker.Bool())
		if err != nil {
			return nil, fmt.Errorf("insert provider: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info().Int("count", len(ids)).Msg("providers seeded")
	return ids, nil
}

func seedAppointmentTypes(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	for _, t := range appointmentTypes {
		_, err := pool.Exec(ctx, `
			INSERT INTO appointment_types (id, name, duration, description, is_active)
			SELECT $1, $2, $3, $4, true
			WHERE NOT EXISTS (SELECT 1 FROM appointment_types WHERE name = $2)
		`, uuid.New(), t.Name, t.Duration, t.Description)
		if err != nil {
			return fmt.Errorf("insert appointment type %q: %w", t.Name, err)
		}
	}

	logger.Info().Int("count", len(appointmentTypes)).Msg("appointment types seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, providerIDs []uuid.UUID, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	// MRNs continue from whatever an earlier run left behind.
	var start int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE fake_mrn LIKE 'TEST-%'`).Scan(&start); err != nil {
		return fmt.Errorf("count patients: %w", err)
	}

	channels := []string{"email", "email", "sms", "voice"}

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			var preferred *uuid.UUID
			if len(providerIDs) > 0 && faker.Bool() {
				p := providerIDs[faker.Number(0, len(providerIDs)-1)]
				preferred = &p
			}

			channel := channels[faker.Number(0, len(channels)-1)]
			dob := faker.DateRange(time.Now().AddDate(-90, 0, 0), time.Now().AddDate(-1, 0, 0))

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, dob, gender, fake_mrn, email, sms_number, postal_code,
				                      can_receive_sms, consent_notifications, notification_channel,
				                      preferred_provider_id, is_real)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false)
			`,
				uuid.New(),
				faker.Name(),
				dob,
				faker.Gender(),
				fmt.Sprintf("TEST-%04d", start+i+1),
				faker.Email(),
				fmt.Sprintf("+1-555-%03d-%04d", faker.Number(100, 999), faker.Number(0, 9999)),
				faker.Zip(),
				channel != "email" || faker.Bool(),
				faker.Number(1, 10) > 1,
				channel,
				preferred,
			)
			if err != nil {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("insert patient: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, cfg seedConfig, logger zerolog.Logger) error {
	users := auth.NewPgUserRepository(pool)

	accounts := []struct {
		email, password, name, role string
	}{
		{cfg.AdminEmail, cfg.AdminPassword, "Clinic Admin", auth.RoleAdmin},
		{cfg.StaffEmail, cfg.StaffPassword, "Front Desk", auth.RoleClinicStaff},
	}

	for _, a := range accounts {
		hash, err := auth.HashPassword(a.password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		err = users.Upsert(ctx, auth.User{
			ID:           uuid.New(),
			Email:        a.email,
			Name:         a.name,
			Role:         a.role,
			PasswordHash: hash,
			IsActive:     true,
		})
		if err != nil {
			return err
		}

		logger.Info().Str("role", a.role).Msg("user seeded")
	}

	return nil
}
