package scheduling

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	simStartHour    = 9
	simEndHour      = 16
	simSlotDuration = 15
)

type SimulatorConfig struct {
	// UnavailableRatio is the share of generated slots marked unavailable.
	UnavailableRatio float64
	// Rand drives slot availability and external ids. Nil uses a
	// time-seeded source.
	Rand *rand.Rand
	Now  func() time.Time
}

func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{UnavailableRatio: 0.3}
}

// Simulator is an in-memory scheduling system for development and tests.
type Simulator struct {
	cfg    SimulatorConfig
	logger zerolog.Logger

	mu        sync.Mutex
	rnd       *rand.Rand
	appts     map[string]Appointment // by external id
	byBooking map[string]string      // booking id -> external id
}

func NewSimulator(cfg SimulatorConfig, logger zerolog.Logger) *Simulator {
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Simulator{
		cfg:       cfg,
		logger:    logger.With().Str("adapter", "scheduling-simulator").Logger(),
		rnd:       rnd,
		appts:     make(map[string]Appointment),
		byBooking: make(map[string]string),
	}
}

func (s *Simulator) GetProviderAvailability(_ context.Context, providerID, date string) ([]Slot, error) {
	s.logger.Debug().Str("provider_id", providerID).Str("date", date).Msg("generating availability")

	s.mu.Lock()
	defer s.mu.Unlock()

	slots := make([]Slot, 0, (simEndHour-simStartHour)*60/simSlotDuration)
	for hour := simStartHour; hour < simEndHour; hour++ {
		for minute := 0; minute < 60; minute += simSlotDuration {
			slots = append(slots, Slot{
				ProviderID: providerID,
				Date:       date,
				Time:       fmt.Sprintf("%02d:%02d", hour, minute),
				Duration:   simSlotDuration,
				Available:  s.rnd.Float64() >= s.cfg.UnavailableRatio,
			})
		}
	}

	return slots, nil
}

func (s *Simulator) CreateAppointment(_ context.Context, appt Appointment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	externalID := fmt.Sprintf("POS-%d-%s", s.cfg.Now().UnixMilli(), strconv.FormatInt(s.rnd.Int63n(1<<30), 36))

	appt.ExternalID = externalID
	s.appts[externalID] = appt
	if appt.BookingID != "" {
		s.byBooking[appt.BookingID] = externalID
	}

	s.logger.Info().
		Str("booking_id", appt.BookingID).
		Str("external_id", externalID).
		Str("provider_id", appt.ProviderID).
		Msg("appointment created")

	return externalID, nil
}

func (s *Simulator) UpdateAppointment(_ context.Context, externalID string, upd AppointmentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appts[externalID]
	if !ok {
		return nil
	}
	if upd.Status != nil {
		appt.Status = *upd.Status
	}
	if upd.Date != nil {
		appt.Date = *upd.Date
	}
	if upd.Time != nil {
		appt.Time = *upd.Time
	}
	s.appts[externalID] = appt

	s.logger.Info().Str("external_id", externalID).Str("status", appt.Status).Msg("appointment updated")
	return nil
}

func (s *Simulator) CancelAppointment(ctx context.Context, externalID string) error {
	status := StatusCancelled
	return s.UpdateAppointment(ctx, externalID, AppointmentUpdate{Status: &status})
}

// SyncAppointmentStatus accepts either the external id or the booking id.
func (s *Simulator) SyncAppointmentStatus(_ context.Context, bookingID string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if appt, ok := s.appts[bookingID]; ok {
		return &appt, nil
	}
	if ext, ok := s.byBooking[bookingID]; ok {
		appt := s.appts[ext]
		return &appt, nil
	}
	return nil, fmt.Errorf("sync %s: %w", bookingID, ErrAppointmentNotFound)
}

var _ Adapter = (*Simulator)(nil)
