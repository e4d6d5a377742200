package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL        string        `envconfig:"SIM_API_BASE_URL" default:"http://localhost:8080"`
	Duration          time.Duration `envconfig:"SIM_DURATION" default:"30s"`
	Workers           int           `envconfig:"SIM_WORKERS" default:"10"`
	BookingRatio      float64       `envconfig:"SIM_BOOKING_RATIO" default:"0.4"`
	CancelRatio       float64       `envconfig:"SIM_CANCEL_RATIO" default:"0.1"`
	AvailabilityRatio float64       `envconfig:"SIM_AVAILABILITY_RATIO" default:"0.3"`
	ReadRatio         float64       `envconfig:"SIM_READ_RATIO" default:"0.2"`
	DaysAhead         int           `envconfig:"SIM_DAYS_AHEAD" default:"14"`
	PatientLimit      int           `envconfig:"SIM_PATIENT_LIMIT" default:"4000"`
	PostgresDSN       string        `ignored:"true"`
}

type DataPool struct {
	Providers []uuid.UUID
	Patients  []uuid.UUID
	Types     []uuid.UUID

	mu       sync.RWMutex
	bookings []uuid.UUID
}

func (dp *DataPool) AddBooking(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, id)
}

func (dp *DataPool) RandomBooking(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return uuid.Nil, false
	}
	return dp.bookings[rng.Intn(len(dp.bookings))], true
}

// TakeBooking removes and returns a random booking so it is cancelled once.
func (dp *DataPool) TakeBooking(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.bookings) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.bookings))
	id := dp.bookings[idx]
	dp.bookings[idx] = dp.bookings[len(dp.bookings)-1]
	dp.bookings = dp.bookings[:len(dp.bookings)-1]
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Throttled int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeThrottled
	outcomeError
)

func classify(status int, err error, want int) outcome {
	switch {
	case err != nil:
		return outcomeError
	case status == want:
		return outcomeSuccess
	case status == http.StatusConflict:
		return outcomeConflict
	case status == http.StatusTooManyRequests:
		return outcomeThrottled
	default:
		return outcomeError
	}
}

func (om *OperationMetrics) Record(latency time.Duration, o outcome) {
	atomic.AddInt64(&om.Total, 1)
	switch o {
	case outcomeSuccess:
		atomic.AddInt64(&om.Success, 1)
	case outcomeConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case outcomeThrottled:
		atomic.AddInt64(&om.Throttled, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Availability OperationMetrics
	Booking      OperationMetrics
	Cancel       OperationMetrics
	ReadByID     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Env: baseCfg.Env, Level: baseCfg.LogLevel, Redaction: baseCfg.LogRedaction}).
		With().Str("cmd", "simulate").Logger()

	cfg, err := loadConfig(baseCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("availability", cfg.AvailabilityRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{ApplicationName: "clinic-booking-simulate"})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("providers", len(dataPool.Providers)).
		Int("patients", len(dataPool.Patients)).
		Int("appointment_types", len(dataPool.Types)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig(base config.Config) (SimConfig, error) {
	var cfg SimConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return SimConfig{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.PostgresDSN = base.PostgresDSN
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.AvailabilityRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.AvailabilityRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, validateConfig(cfg)
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return errors.New("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{}
	var err error

	if dp.Providers, err = loadIDs(ctx, pool, `SELECT id FROM providers`); err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	// Real patients are never targeted by load tests.
	if dp.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients WHERE is_real = false LIMIT $1`, cfg.PatientLimit); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if dp.Types, err = loadIDs(ctx, pool, `SELECT id FROM appointment_types WHERE is_active = true`); err != nil {
		return nil, fmt.Errorf("load appointment types: %w", err)
	}

	switch {
	case len(dp.Providers) == 0:
		return nil, errors.New("no providers loaded")
	case len(dp.Patients) == 0:
		return nil, errors.New("no patients loaded")
	case len(dp.Types) == 0:
		return nil, errors.New("no appointment types loaded")
	}

	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.AvailabilityRatio:
			s.doAvailability(ctx, rng)
		default:
			s.doReadByID(ctx, rng)
		}
	}
}

func pick(rng *rand.Rand, ids []uuid.UUID) uuid.UUID {
	return ids[rng.Intn(len(ids))]
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02")
}

type slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// fetchAvailability returns the open times for one provider and day.
func (s *Simulator) fetchAvailability(ctx context.Context, providerID uuid.UUID, date string) ([]string, int, error) {
	q := url.Values{}
	q.Set("providerId", providerID.String())
	q.Set("date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/availability?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var body struct {
		Slots []slot `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resp.StatusCode, err
	}

	times := make([]string, 0, len(body.Slots))
	for _, sl := range body.Slots {
		if sl.Available {
			times = append(times, sl.Time)
		}
	}
	return times, resp.StatusCode, nil
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	start := time.Now()
	_, status, err := s.fetchAvailability(ctx, pick(rng, s.pool.Providers), s.randomDate(rng))
	s.metrics.Availability.Record(time.Since(start), classify(status, err, http.StatusOK))
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	providerID := pick(rng, s.pool.Providers)
	date := s.randomDate(rng)

	times, _, err := s.fetchAvailability(ctx, providerID, date)
	if err != nil || len(times) == 0 {
		return
	}

	body, err := json.Marshal(map[string]string{
		"providerId":        providerID.String(),
		"patientId":         pick(rng, s.pool.Patients).String(),
		"appointmentTypeId": pick(rng, s.pool.Types).String(),
		"date":              date,
		"time":              times[rng.Intn(len(times))],
		"modality":          []string{"in-person", "video", "phone"}[rng.Intn(3)],
	})
	if err != nil {
		return
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/bookings", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	status := 0
	if err == nil {
		defer resp.Body.Close()
		status = resp.StatusCode

		if status == http.StatusCreated {
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(resp.Body).Decode(&created) == nil && created.ID != uuid.Nil {
				s.pool.AddBooking(created.ID)
			}
		}
	}

	s.metrics.Booking.Record(latency, classify(status, err, http.StatusCreated))
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.TakeBooking(rng)
	if !ok {
		return
	}

	body, _ := json.Marshal(map[string]string{"reason": "load test"})

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/bookings/%s", s.config.APIBaseURL, id), bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	status := 0
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err == nil {
		resp.Body.Close()
		status = resp.StatusCode
	}

	s.metrics.Cancel.Record(latency, classify(status, err, http.StatusOK))
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/bookings/%s", s.config.APIBaseURL, id), nil)
	if err != nil {
		return
	}

	status := 0
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err == nil {
		resp.Body.Close()
		status = resp.StatusCode
	}

	s.metrics.ReadByID.Record(latency, classify(status, err, http.StatusOK))
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	throttled := atomic.LoadInt64(&om.Throttled)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if throttled > 0 {
		fmt.Printf("  Throttled: %d (%.1f%%)\n", throttled, pct(throttled))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
