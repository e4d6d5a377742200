package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/audit"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/scheduling"
	"github.com/hackgods/clinic-booking/internal/validation"
)

var tracer = otel.Tracer("github.com/hackgods/clinic-booking/internal/booking")

var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrSlotTaken               = errors.New("slot already booked")
	ErrSlotBusy                = errors.New("slot is currently being booked, please retry")
)

const (
	DefaultDeclineReason = "Declined by staff"
	ExternalCancelReason = "Cancelled in scheduling system"
)

// SlotLocker serialises bookings for one slot. *redisclient.SlotLocker
// satisfies it.
type SlotLocker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// AuditRecorder is satisfied by *audit.Writer.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Options struct {
	// AdapterTimeout bounds every scheduling and notification call.
	AdapterTimeout time.Duration
	// OverlapAware also hides slots that overlap an existing booking's
	// duration instead of only exact start-time matches.
	OverlapAware bool
	// SlotLocker, when set, makes CreateBooking re-check the slot under a
	// lock and reject taken slots. Nil keeps the unguarded insert.
	SlotLocker SlotLocker
	Metrics    *Metrics
}

type Service struct {
	repo      Repository
	scheduler scheduling.Adapter
	notifier  notify.Adapter
	audit     AuditRecorder
	logger    zerolog.Logger
	metrics   *Metrics
	opts      Options
}

func NewService(repo Repository, scheduler scheduling.Adapter, notifier notify.Adapter, auditor AuditRecorder, logger zerolog.Logger, opts Options) *Service {
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = 5 * time.Second
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Service{
		repo:      repo,
		scheduler: scheduler,
		notifier:  notifier,
		audit:     auditor,
		logger:    logger.With().Str("component", "booking").Logger(),
		metrics:   metrics,
		opts:      opts,
	}
}

// GetAvailability returns the scheduling system's slots for the provider and
// date minus those taken by pending or confirmed bookings.
func (s *Service) GetAvailability(ctx context.Context, providerID uuid.UUID, date string) (slots []scheduling.Slot, err error) {
	ctx, span := tracer.Start(ctx, "booking.GetAvailability")
	defer span.End()
	defer func() { s.metrics.operation("availability", err) }()

	if !validation.IsDate(date) {
		return nil, apperr.Validation("invalid request", apperr.FieldError{Field: "date", Message: "must be a date in YYYY-MM-DD format"})
	}
	if _, err := s.repo.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}

	actx, cancel := context.WithTimeout(ctx, s.opts.AdapterTimeout)
	raw, err := s.scheduler.GetProviderAvailability(actx, providerID.String(), date)
	cancel()
	if err != nil {
		var integ *apperr.IntegrationError
		if !errors.As(err, &integ) {
			err = apperr.Integration("scheduling", "get availability", err)
		}
		return nil, err
	}

	booked, err := s.repo.ListActiveTimes(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("load booked times: %w", err)
	}

	slots = filterSlots(raw, booked, s.opts.OverlapAware)
	span.SetAttributes(attribute.Int("slots.raw", len(raw)), attribute.Int("slots.free", len(slots)))
	return slots, nil
}

// CreateBooking stores a pending booking and then, best effort, syncs it to
// the scheduling system, notifies the patient and writes the audit entry.
// Only validation, lookup and the insert itself can fail the call.
func (s *Service) CreateBooking(ctx context.Context, in CreateInput, actor Actor) (d *Detail, err error) {
	ctx, span := tracer.Start(ctx, "booking.CreateBooking")
	defer span.End()
	defer func() { s.metrics.operation("create", err) }()

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	providerID, patientID, typeID := uuid.MustParse(in.ProviderID), uuid.MustParse(in.PatientID), uuid.MustParse(in.AppointmentTypeID)

	provider, err := s.repo.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	apptType, err := s.repo.GetAppointmentType(ctx, typeID)
	if err != nil {
		return nil, err
	}
	patient, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var created *Booking
	err = s.withSlotLock(ctx, slotKey(providerID, in.Date, in.Time, s.opts.OverlapAware), func(ctx context.Context) error {
		if s.opts.SlotLocker != nil {
			if err := s.ensureSlotFree(ctx, providerID, in.Date, in.Time, apptType.Duration); err != nil {
				return err
			}
		}

		b, err := s.repo.CreateBooking(ctx, Booking{
			ID:                uuid.New(),
			ProviderID:        providerID,
			PatientID:         patientID,
			AppointmentTypeID: typeID,
			Date:              in.Date,
			Time:              in.Time,
			Modality:          Modality(in.Modality),
			Status:            StatusPending,
			Reason:            in.Reason,
		})
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return apperr.Validation("referenced provider, patient or appointment type does not exist")
			}
			return fmt.Errorf("create booking: %w", err)
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.id", created.ID.String()))

	s.logger.Info().
		Str("booking_id", created.ID.String()).
		Str("provider_id", providerID.String()).
		Msg("booking created")

	s.runEffects(ctx, "create", created.ID.String(),
		effect{name: effectSync, run: func(ctx context.Context) error {
			return s.syncCreate(ctx, created, apptType.Duration)
		}},
		effect{name: effectNotify, run: func(ctx context.Context) error {
			return s.dispatch(ctx, notify.TemplateConfirmation, created, patient)
		}},
		effect{name: effectAudit, run: func(ctx context.Context) error {
			return s.audit.Record(ctx, audit.Entry{
				UserID:     actor.UserID,
				UserRole:   actor.Role,
				Action:     audit.ActionCreateBooking,
				Resource:   audit.ResourceBooking,
				ResourceID: created.ID.String(),
				Payload: map[string]any{
					"providerId": providerID.String(),
					"date":       created.Date,
					"time":       created.Time,
				},
				Request: actor.Request,
			})
		}},
	)

	return &Detail{
		Booking:         *created,
		Provider:        &ProviderSummary{ID: provider.ID, DisplayName: provider.DisplayName, Specialty: provider.Specialty},
		AppointmentType: &AppointmentTypeSummary{ID: apptType.ID, Name: apptType.Name, Duration: apptType.Duration},
	}, nil
}

// slotKey is the lock key for a booking. Overlap-aware mode locks the whole
// provider day since overlapping bookings need not share a start time.
func slotKey(providerID uuid.UUID, date, clock string, overlapAware bool) string {
	if overlapAware {
		return providerID.String() + ":" + date
	}
	return providerID.String() + ":" + date + ":" + clock
}

// withSlotLock runs fn under the slot lock. A lock backend that cannot be
// reached is logged and fn runs unguarded.
func (s *Service) withSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if s.opts.SlotLocker == nil {
		return fn(ctx)
	}

	ran := false
	err := s.opts.SlotLocker.WithSlotLock(ctx, key, func(ctx context.Context) error {
		ran = true
		return fn(ctx)
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return ErrSlotBusy
	case err != nil && !ran:
		s.logger.Warn().Err(err).Msg("slot lock unavailable, booking without it")
		return fn(ctx)
	}
	return err
}

func (s *Service) ensureSlotFree(ctx context.Context, providerID uuid.UUID, date, clock string, duration int) error {
	booked, err := s.repo.ListActiveTimes(ctx, providerID, date)
	if err != nil {
		return fmt.Errorf("load booked times: %w", err)
	}

	want := scheduling.Slot{Time: clock, Duration: duration}
	if len(filterSlots([]scheduling.Slot{want}, booked, s.opts.OverlapAware)) == 0 {
		return ErrSlotTaken
	}
	return nil
}

func (s *Service) syncCreate(ctx context.Context, b *Booking, duration int) error {
	externalID, err := s.scheduler.CreateAppointment(ctx, scheduling.Appointment{
		BookingID:         b.ID.String(),
		ProviderID:        b.ProviderID.String(),
		PatientID:         b.PatientID.String(),
		AppointmentTypeID: b.AppointmentTypeID.String(),
		Date:              b.Date,
		Time:              b.Time,
		Duration:          duration,
		Modality:          string(b.Modality),
		Status:            string(b.Status),
	})
	if err != nil {
		return err
	}

	if err := s.repo.SetExternalID(ctx, b.ID, externalID); err != nil {
		return fmt.Errorf("store external id: %w", err)
	}
	b.ExternalID = &externalID

	s.logger.Info().Str("booking_id", b.ID.String()).Str("external_id", externalID).Msg("booking synced to scheduling system")
	return nil
}

// CancelBooking moves a pending or confirmed booking to cancelled. Calling it
// on a cancelled booking returns it unchanged, skips sync and notification
// and still records the audit entry.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, reason *string, actor Actor) (b *Booking, err error) {
	ctx, span := tracer.Start(ctx, "booking.CancelBooking")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", id.String()))
	defer func() { s.metrics.operation("cancel", err) }()

	current, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	auditEffect := effect{name: effectAudit, run: func(ctx context.Context) error {
		return s.audit.Record(ctx, audit.Entry{
			UserID:     actor.UserID,
			UserRole:   actor.Role,
			Action:     audit.ActionCancelBooking,
			Resource:   audit.ResourceBooking,
			ResourceID: id.String(),
			Payload:    map[string]any{"cancellationReason": reason},
			Request:    actor.Request,
		})
	}}

	if current.Status == StatusCancelled {
		s.runEffects(ctx, "cancel", id.String(), auditEffect)
		return current, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusCancelled, reason, StatusPending, StatusConfirmed)
	if err != nil {
		if !errors.Is(err, ErrBookingNotFound) {
			return nil, fmt.Errorf("cancel booking: %w", err)
		}
		// Lost a race with another cancel: same outcome as a re-cancel.
		latest, rerr := s.repo.GetBooking(ctx, id)
		if rerr != nil {
			return nil, rerr
		}
		if latest.Status != StatusCancelled {
			return nil, ErrInvalidStatusTransition
		}
		s.runEffects(ctx, "cancel", id.String(), auditEffect)
		return latest, nil
	}

	s.logger.Info().Str("booking_id", id.String()).Msg("booking cancelled")

	s.runEffects(ctx, "cancel", id.String(),
		effect{name: effectSync, run: func(ctx context.Context) error {
			return s.scheduler.CancelAppointment(ctx, externalRef(updated))
		}},
		effect{name: effectNotify, run: func(ctx context.Context) error {
			patient, err := s.repo.GetPatient(ctx, updated.PatientID)
			if err != nil {
				return fmt.Errorf("load patient: %w", err)
			}
			return s.dispatch(ctx, notify.TemplateCancellation, updated, patient)
		}},
		auditEffect,
	)

	return updated, nil
}

// DeclineBooking is a staff cancellation with a default reason.
func (s *Service) DeclineBooking(ctx context.Context, id uuid.UUID, reason string, actor Actor) (*Booking, error) {
	if reason == "" {
		reason = DefaultDeclineReason
	}
	return s.CancelBooking(ctx, id, &reason, actor)
}

// ApproveBooking confirms a pending booking.
func (s *Service) ApproveBooking(ctx context.Context, id uuid.UUID, actor Actor) (b *Booking, err error) {
	ctx, span := tracer.Start(ctx, "booking.ApproveBooking")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", id.String()))
	defer func() { s.metrics.operation("approve", err) }()

	current, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusConfirmed, nil, StatusPending)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("approve booking: %w", err)
	}

	s.runEffects(ctx, "approve", id.String(),
		effect{name: effectSync, run: func(ctx context.Context) error {
			status := scheduling.StatusConfirmed
			return s.scheduler.UpdateAppointment(ctx, externalRef(updated), scheduling.AppointmentUpdate{Status: &status})
		}},
		effect{name: effectAudit, run: func(ctx context.Context) error {
			return s.audit.Record(ctx, audit.Entry{
				UserID:     actor.UserID,
				UserRole:   actor.Role,
				Action:     audit.ActionApproveBooking,
				Resource:   audit.ResourceBooking,
				ResourceID: id.String(),
				Payload:    map[string]any{"status": string(StatusConfirmed)},
				Request:    actor.Request,
			})
		}},
	)

	return updated, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return s.repo.GetBookingDetail(ctx, id)
}

func (s *Service) ListBookings(ctx context.Context, f Filter) ([]Detail, error) {
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	bookings, err := s.repo.ListBookings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (s *Service) Report(ctx context.Context, startDate, endDate string) (*Report, error) {
	rep, err := s.repo.Report(ctx, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("booking report: %w", err)
	}
	return rep, nil
}

func (s *Service) ListProviders(ctx context.Context) ([]Provider, error) {
	return s.repo.ListProviders(ctx)
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.repo.GetProvider(ctx, id)
}

func (s *Service) ListAppointmentTypes(ctx context.Context) ([]AppointmentType, error) {
	return s.repo.ListAppointmentTypes(ctx)
}

func (s *Service) GetAppointmentType(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	return s.repo.GetAppointmentType(ctx, id)
}

// SyncExternalStatus pulls the scheduling system's view of active bookings
// and applies cancellations made there. Per-booking failures are logged and
// counted; they never stop the batch.
func (s *Service) SyncExternalStatus(ctx context.Context, limit int) (SyncResult, error) {
	ctx, span := tracer.Start(ctx, "booking.SyncExternalStatus")
	defer span.End()

	var res SyncResult

	candidates, err := s.repo.ListSyncCandidates(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list sync candidates: %w", err)
	}

	for _, b := range candidates {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++

		actx, cancel := context.WithTimeout(ctx, s.opts.AdapterTimeout)
		appt, err := s.scheduler.SyncAppointmentStatus(actx, b.ID.String())
		cancel()
		if err != nil {
			var nf *apperr.NotFoundError
			if errors.As(err, &nf) {
				s.logger.Debug().Str("booking_id", b.ID.String()).Msg("booking unknown to scheduling system")
				continue
			}
			res.Failed++
			s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("sync booking status failed")
			continue
		}

		if appt.Status != scheduling.StatusCancelled {
			continue
		}

		reason := ExternalCancelReason
		if _, err := s.repo.UpdateStatus(ctx, b.ID, StatusCancelled, &reason, StatusPending, StatusConfirmed); err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				continue
			}
			res.Failed++
			s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("apply external cancellation failed")
			continue
		}
		res.Cancelled++

		from := b.Status
		s.runEffects(ctx, "sync", b.ID.String(), effect{name: effectAudit, run: func(ctx context.Context) error {
			return s.audit.Record(ctx, audit.Entry{
				Action:     audit.ActionSyncBookingStatus,
				Resource:   audit.ResourceBooking,
				ResourceID: b.ID.String(),
				Payload:    map[string]any{"from": string(from), "to": string(StatusCancelled)},
			})
		}})
	}

	span.SetAttributes(
		attribute.Int("sync.checked", res.Checked),
		attribute.Int("sync.cancelled", res.Cancelled),
		attribute.Int("sync.failed", res.Failed),
	)
	return res, nil
}

// externalRef is the id the scheduling system knows the booking by.
func externalRef(b *Booking) string {
	if b.ExternalID != nil && *b.ExternalID != "" {
		return *b.ExternalID
	}
	return b.ID.String()
}
