package booking

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/audit"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

type Modality string

const (
	ModalityInPerson Modality = "in-person"
	ModalityVideo    Modality = "video"
	ModalityPhone    Modality = "phone"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
)

type Booking struct {
	ID                 uuid.UUID `json:"id"`
	ProviderID         uuid.UUID `json:"providerId"`
	PatientID          uuid.UUID `json:"patientId"`
	AppointmentTypeID  uuid.UUID `json:"appointmentTypeId"`
	Date               string    `json:"date"` // YYYY-MM-DD
	Time               string    `json:"time"` // HH:MM
	Modality           Modality  `json:"modality"`
	Status             Status    `json:"status"`
	Reason             *string   `json:"reason,omitempty"`
	CancellationReason *string   `json:"cancellationReason,omitempty"`
	ExternalID         *string   `json:"externalId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type Provider struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	DisplayName        string          `json:"displayName"`
	Specialty          *string         `json:"specialty,omitempty"`
	Team               *string         `json:"team,omitempty"`
	Bio                *string         `json:"bio,omitempty"`
	WorkingHours       json.RawMessage `json:"workingHours,omitempty"`
	AcceptsNewPatients bool            `json:"acceptsNewPatients"`
}

type AppointmentType struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Duration    int       `json:"duration"` // minutes
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
}

// Patient holds the contact fields the booking flow needs. Everything here
// is PHI and must not reach logs unredacted.
type Patient struct {
	ID                  uuid.UUID
	Name                string
	Email               *string
	SMSNumber           *string
	CanReceiveSMS       bool
	NotificationChannel Channel
	IsReal              bool
}

type ProviderSummary struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"name"`
	Specialty   *string   `json:"specialty,omitempty"`
}

type AppointmentTypeSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Duration int       `json:"duration"`
}

type PatientSummary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	FakeMRN *string   `json:"fakeMrn,omitempty"`
}

// Detail is a booking with its related records attached.
type Detail struct {
	Booking
	Provider        *ProviderSummary        `json:"provider,omitempty"`
	AppointmentType *AppointmentTypeSummary `json:"appointmentType,omitempty"`
	Patient         *PatientSummary         `json:"patient,omitempty"`
}

// CreateInput is the request to book an appointment.
type CreateInput struct {
	ProviderID        string  `json:"providerId" validate:"required,uuid"`
	PatientID         string  `json:"patientId" validate:"required,uuid"`
	AppointmentTypeID string  `json:"appointmentTypeId" validate:"required,uuid"`
	Date              string  `json:"date" validate:"required,isodate"`
	Time              string  `json:"time" validate:"required,hhmm"`
	Modality          string  `json:"modality" validate:"required,oneof=in-person video phone"`
	Reason            *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// Actor identifies who performed an operation. The zero value is an
// anonymous patient or the system.
type Actor struct {
	UserID  string
	Role    string
	Request *audit.RequestInfo
}

// BookedTime is an active booking's start and length, used to filter
// availability.
type BookedTime struct {
	Time     string
	Duration int
}

const MaxListLimit = 100

type Filter struct {
	Status     Status
	ProviderID *uuid.UUID
	PatientID  *uuid.UUID
	StartDate  string
	EndDate    string
	Limit      int
}

type Report struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	ByProvider map[string]int `json:"byProvider"`
	ByModality map[string]int `json:"byModality"`
}

// SyncResult summarises one SyncExternalStatus pass.
type SyncResult struct {
	Checked   int
	Cancelled int
	Failed    int
}
