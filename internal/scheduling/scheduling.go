package scheduling

import (
	"context"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

// Slot is one candidate appointment start reported by the scheduling
// system.
type Slot struct {
	ProviderID string `json:"providerId"`
	Date       string `json:"date"` // YYYY-MM-DD
	Time       string `json:"time"` // HH:MM
	Duration   int    `json:"duration"`
	Available  bool   `json:"available"`
}

// Appointment is the booking as the scheduling system sees it.
type Appointment struct {
	BookingID         string `json:"bookingId"`
	ExternalID        string `json:"externalId,omitempty"`
	ProviderID        string `json:"providerId"`
	PatientID         string `json:"patientId"`
	AppointmentTypeID string `json:"appointmentTypeId"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	Duration          int    `json:"duration,omitempty"`
	Modality          string `json:"modality"`
	Reason            string `json:"reason,omitempty"`
	Status            string `json:"status"`
}

// AppointmentUpdate carries the fields to change; nil means unchanged.
type AppointmentUpdate struct {
	Status *string
	Date   *string
	Time   *string
}

// Adapter is the system of record for appointments. Implementations return
// *apperr.IntegrationError when the external system fails.
type Adapter interface {
	GetProviderAvailability(ctx context.Context, providerID, date string) ([]Slot, error)
	CreateAppointment(ctx context.Context, appt Appointment) (string, error)
	UpdateAppointment(ctx context.Context, externalID string, upd AppointmentUpdate) error
	CancelAppointment(ctx context.Context, externalID string) error
	// SyncAppointmentStatus returns the external view of a booking, or
	// ErrAppointmentNotFound.
	SyncAppointmentStatus(ctx context.Context, bookingID string) (*Appointment, error)
}

var ErrAppointmentNotFound = apperr.NotFound("appointment")

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)
