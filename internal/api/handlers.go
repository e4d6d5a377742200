package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/audit"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/scheduling"
	"github.com/hackgods/clinic-booking/internal/validation"
)

// BookingService is satisfied by *booking.Service.
type BookingService interface {
	GetAvailability(ctx context.Context, providerID uuid.UUID, date string) ([]scheduling.Slot, error)
	CreateBooking(ctx context.Context, in booking.CreateInput, actor booking.Actor) (*booking.Detail, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*booking.Detail, error)
	CancelBooking(ctx context.Context, id uuid.UUID, reason *string, actor booking.Actor) (*booking.Booking, error)
	ApproveBooking(ctx context.Context, id uuid.UUID, actor booking.Actor) (*booking.Booking, error)
	DeclineBooking(ctx context.Context, id uuid.UUID, reason string, actor booking.Actor) (*booking.Booking, error)
	ListBookings(ctx context.Context, f booking.Filter) ([]booking.Detail, error)
	Report(ctx context.Context, startDate, endDate string) (*booking.Report, error)
	ListProviders(ctx context.Context) ([]booking.Provider, error)
	GetProvider(ctx context.Context, id uuid.UUID) (*booking.Provider, error)
	ListAppointmentTypes(ctx context.Context) ([]booking.AppointmentType, error)
	GetAppointmentType(ctx context.Context, id uuid.UUID) (*booking.AppointmentType, error)
}

// Authenticator is satisfied by *auth.Service.
type Authenticator interface {
	Login(ctx context.Context, email, password string, req *audit.RequestInfo) (*auth.LoginResult, error)
	Verify(token string) (*auth.Claims, error)
}

// AuditQuerier is satisfied by *audit.Writer.
type AuditQuerier interface {
	Query(ctx context.Context, f audit.Filter) (*audit.Page, error)
}

type handlers struct {
	bookings BookingService
	authn    Authenticator
	audit    AuditQuerier
	logger   zerolog.Logger
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeAppError(w, r, h.logger, err)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.authn.Login(r.Context(), req.Email, req.Password, requestInfo(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) listProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.bookings.ListProviders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[booking.Provider]{Data: providers, Count: len(providers)})
}

func (h *handlers) getProvider(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.bookings.GetProvider(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) listAppointmentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.bookings.ListAppointmentTypes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[booking.AppointmentType]{Data: types, Count: len(types)})
}

func (h *handlers) getAppointmentType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.bookings.GetAppointmentType(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type availabilityQuery struct {
	ProviderID string `json:"providerId" validate:"required,uuid"`
	Date       string `json:"date" validate:"required,isodate"`
}

func (h *handlers) availability(w http.ResponseWriter, r *http.Request) {
	q := availabilityQuery{
		ProviderID: r.URL.Query().Get("providerId"),
		Date:       r.URL.Query().Get("date"),
	}
	if err := validation.Struct(q); err != nil {
		h.fail(w, r, err)
		return
	}

	slots, err := h.bookings.GetAvailability(r.Context(), uuid.MustParse(q.ProviderID), q.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	free := make([]scheduling.Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			free = append(free, s)
		}
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{ProviderID: q.ProviderID, Date: q.Date, Slots: free})
}

func (h *handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var in booking.CreateInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		h.fail(w, r, err)
		return
	}

	d, err := h.bookings.CreateBooking(r.Context(), in, actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// getBooking hides the patient block from anonymous callers.
func (h *handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ClaimsFrom(r.Context()) == nil {
		d.Patient = nil
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CancelBookingRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	b, err := h.bookings.CancelBooking(r.Context(), id, req.Reason, actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handlers) approveBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.bookings.ApproveBooking(r.Context(), id, actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handlers) declineBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req DeclineBookingRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	b, err := h.bookings.DeclineBooking(r.Context(), id, req.Reason, actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type listBookingsQuery struct {
	Status     string `json:"status" validate:"omitempty,oneof=pending confirmed cancelled"`
	ProviderID string `json:"providerId" validate:"omitempty,uuid"`
	PatientID  string `json:"patientId" validate:"omitempty,uuid"`
	StartDate  string `json:"startDate" validate:"omitempty,isodate"`
	EndDate    string `json:"endDate" validate:"omitempty,isodate"`
	Limit      string `json:"limit" validate:"omitempty,number"`
}

func (h *handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := listBookingsQuery{
		Status:     qs.Get("status"),
		ProviderID: qs.Get("providerId"),
		PatientID:  qs.Get("patientId"),
		StartDate:  qs.Get("startDate"),
		EndDate:    qs.Get("endDate"),
		Limit:      qs.Get("limit"),
	}
	if err := validation.Struct(q); err != nil {
		h.fail(w, r, err)
		return
	}

	f := booking.Filter{Status: booking.Status(q.Status), StartDate: q.StartDate, EndDate: q.EndDate}
	if q.ProviderID != "" {
		id := uuid.MustParse(q.ProviderID)
		f.ProviderID = &id
	}
	if q.PatientID != "" {
		id := uuid.MustParse(q.PatientID)
		f.PatientID = &id
	}
	f.Limit, _ = strconv.Atoi(q.Limit)

	list, err := h.bookings.ListBookings(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[booking.Detail]{Data: list, Count: len(list)})
}

type reportQuery struct {
	StartDate string `json:"startDate" validate:"omitempty,isodate"`
	EndDate   string `json:"endDate" validate:"omitempty,isodate"`
}

func (h *handlers) bookingReport(w http.ResponseWriter, r *http.Request) {
	q := reportQuery{StartDate: r.URL.Query().Get("startDate"), EndDate: r.URL.Query().Get("endDate")}
	if err := validation.Struct(q); err != nil {
		h.fail(w, r, err)
		return
	}

	rep, err := h.bookings.Report(r.Context(), q.StartDate, q.EndDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handlers) auditLogs(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	f := audit.Filter{
		UserID:     qs.Get("userId"),
		Resource:   qs.Get("resource"),
		ResourceID: qs.Get("resourceId"),
	}

	var fields []apperr.FieldError
	intParam := func(name string, dst *int) {
		if v := qs.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				fields = append(fields, apperr.FieldError{Field: name, Message: "must be a non-negative integer"})
				return
			}
			*dst = n
		}
	}
	timeParam := func(name string, dst **time.Time, endOfDay bool) {
		if v := qs.Get(name); v != "" {
			t, err := parseTimeParam(v, endOfDay)
			if err != nil {
				fields = append(fields, apperr.FieldError{Field: name, Message: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"})
				return
			}
			*dst = &t
		}
	}
	intParam("limit", &f.Limit)
	intParam("offset", &f.Offset)
	timeParam("startDate", &f.StartDate, false)
	timeParam("endDate", &f.EndDate, true)
	if len(fields) > 0 {
		h.fail(w, r, apperr.Validation("invalid request", fields...))
		return
	}

	page, err := h.audit.Query(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// parseTimeParam accepts a bare date, which covers the whole day when used
// as an upper bound.
func parseTimeParam(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(validation.DateLayout, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid request", apperr.FieldError{Field: "id", Message: "must be a UUID"})
	}
	return id, nil
}
