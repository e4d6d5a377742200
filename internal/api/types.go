package api

import (
	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/scheduling"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CancelBookingRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

type DeclineBookingRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

type AvailabilityResponse struct {
	ProviderID string            `json:"providerId"`
	Date       string            `json:"date"`
	Slots      []scheduling.Slot `json:"slots"`
}

type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

type ErrorResponse struct {
	Error    string              `json:"error"`
	Message  string              `json:"message,omitempty"`
	Details  []apperr.FieldError `json:"details,omitempty"`
	Required []string            `json:"required,omitempty"`
	Current  string              `json:"current,omitempty"`
}
