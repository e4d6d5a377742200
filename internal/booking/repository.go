package booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

var (
	ErrBookingNotFound         = apperr.NotFound("booking")
	ErrProviderNotFound        = apperr.NotFound("provider")
	ErrPatientNotFound         = apperr.NotFound("patient")
	ErrAppointmentTypeNotFound = apperr.NotFound("appointment type")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)
	ListProviders(ctx context.Context) ([]Provider, error)
	GetAppointmentType(ctx context.Context, id uuid.UUID) (*AppointmentType, error)
	// ListAppointmentTypes returns active types only.
	ListAppointmentTypes(ctx context.Context) ([]AppointmentType, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)

	CreateBooking(ctx context.Context, b Booking) (*Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetBookingDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	// UpdateStatus moves a booking to status `to` only if its current status
	// is one of from. A nil reason keeps the stored cancellation reason.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, reason *string, from ...Status) (*Booking, error)
	SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error

	// ListActiveTimes returns pending and confirmed bookings for a provider
	// on one date.
	ListActiveTimes(ctx context.Context, providerID uuid.UUID, date string) ([]BookedTime, error)
	ListBookings(ctx context.Context, f Filter) ([]Detail, error)
	// ListSyncCandidates returns active bookings that carry an external id,
	// least recently updated first.
	ListSyncCandidates(ctx context.Context, limit int) ([]Booking, error)
	Report(ctx context.Context, startDate, endDate string) (*Report, error)
}
