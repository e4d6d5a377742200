package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

const bookingIdentifierSystem = "urn:clinic-booking:booking"

type FHIRConfig struct {
	BaseURL     string
	BearerToken string
	// Location interprets booking dates and times. Defaults to UTC.
	Location   *time.Location
	HTTPClient *http.Client
}

// FHIRClient talks to a FHIR R4 server using Slot and Appointment
// resources.
type FHIRClient struct {
	baseURL string
	token   string
	loc     *time.Location
	http    *http.Client
	logger  zerolog.Logger
}

func NewFHIRClient(cfg FHIRConfig, logger zerolog.Logger) *FHIRClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &FHIRClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.BearerToken,
		loc:     loc,
		http:    client,
		logger:  logger.With().Str("adapter", "fhir").Logger(),
	}
}

type fhirReference struct {
	Reference string `json:"reference"`
}

type fhirCoding struct {
	System string `json:"system,omitempty"`
	Code   string `json:"code"`
}

type fhirCodeableConcept struct {
	Coding []fhirCoding `json:"coding,omitempty"`
	Text   string       `json:"text,omitempty"`
}

type fhirIdentifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

type fhirParticipant struct {
	Actor  fhirReference `json:"actor"`
	Status string        `json:"status"`
}

type fhirSlot struct {
	ResourceType string    `json:"resourceType"`
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

type fhirAppointment struct {
	ResourceType    string                `json:"resourceType"`
	ID              string                `json:"id,omitempty"`
	Status          string                `json:"status"`
	Identifier      []fhirIdentifier      `json:"identifier,omitempty"`
	AppointmentType *fhirCodeableConcept  `json:"appointmentType,omitempty"`
	ServiceType     []fhirCodeableConcept `json:"serviceType,omitempty"`
	Description     string                `json:"description,omitempty"`
	Start           *time.Time            `json:"start,omitempty"`
	End             *time.Time            `json:"end,omitempty"`
	MinutesDuration int                   `json:"minutesDuration,omitempty"`
	Participant     []fhirParticipant     `json:"participant"`
}

type fhirBundle struct {
	ResourceType string `json:"resourceType"`
	Entry        []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

func (c *FHIRClient) GetProviderAvailability(ctx context.Context, providerID, date string) ([]Slot, error) {
	day, err := time.ParseInLocation("2006-01-02", date, c.loc)
	if err != nil {
		return nil, apperr.Validation("invalid date", apperr.FieldError{Field: "date", Message: "must be YYYY-MM-DD"})
	}

	q := url.Values{}
	q.Set("schedule.actor", "Practitioner/"+providerID)
	q.Add("start", "ge"+day.Format(time.RFC3339))
	q.Add("start", "lt"+day.AddDate(0, 0, 1).Format(time.RFC3339))
	q.Set("_count", "200")

	var bundle fhirBundle
	if _, err := c.do(ctx, http.MethodGet, "Slot?"+q.Encode(), nil, &bundle); err != nil {
		return nil, apperr.Integration("fhir", "get availability", err)
	}

	slots := make([]Slot, 0, len(bundle.Entry))
	for _, e := range bundle.Entry {
		var s fhirSlot
		if err := json.Unmarshal(e.Resource, &s); err != nil {
			return nil, apperr.Integration("fhir", "get availability", fmt.Errorf("decode slot: %w", err))
		}
		start := s.Start.In(c.loc)
		slots = append(slots, Slot{
			ProviderID: providerID,
			Date:       start.Format("2006-01-02"),
			Time:       start.Format("15:04"),
			Duration:   int(s.End.Sub(s.Start).Minutes()),
			Available:  s.Status == "free",
		})
	}

	return slots, nil
}

func (c *FHIRClient) CreateAppointment(ctx context.Context, appt Appointment) (string, error) {
	res, err := c.toFHIR(appt)
	if err != nil {
		return "", apperr.Integration("fhir", "create appointment", err)
	}

	var created fhirAppointment
	hdr, err := c.do(ctx, http.MethodPost, "Appointment", res, &created)
	if err != nil {
		return "", apperr.Integration("fhir", "create appointment", err)
	}

	id := created.ID
	if id == "" {
		id = idFromLocation(hdr.Get("Location"))
	}
	if id == "" {
		return "", apperr.Integration("fhir", "create appointment", fmt.Errorf("server returned no resource id"))
	}

	c.logger.Info().Str("booking_id", appt.BookingID).Str("external_id", id).Msg("appointment created")
	return id, nil
}

func (c *FHIRClient) UpdateAppointment(ctx context.Context, externalID string, upd AppointmentUpdate) error {
	var current fhirAppointment
	if _, err := c.do(ctx, http.MethodGet, "Appointment/"+url.PathEscape(externalID), nil, &current); err != nil {
		return apperr.Integration("fhir", "update appointment", err)
	}

	if upd.Status != nil {
		current.Status = toFHIRStatus(*upd.Status)
	}
	if upd.Date != nil || upd.Time != nil {
		if current.Start == nil {
			return apperr.Integration("fhir", "update appointment", fmt.Errorf("appointment %s has no start", externalID))
		}
		start := current.Start.In(c.loc)
		date, clock := start.Format("2006-01-02"), start.Format("15:04")
		if upd.Date != nil {
			date = *upd.Date
		}
		if upd.Time != nil {
			clock = *upd.Time
		}
		newStart, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, c.loc)
		if err != nil {
			return apperr.Integration("fhir", "update appointment", err)
		}
		if current.End != nil {
			end := newStart.Add(current.End.Sub(*current.Start))
			current.End = &end
		}
		current.Start = &newStart
	}

	if _, err := c.do(ctx, http.MethodPut, "Appointment/"+url.PathEscape(externalID), current, nil); err != nil {
		return apperr.Integration("fhir", "update appointment", err)
	}
	return nil
}

func (c *FHIRClient) CancelAppointment(ctx context.Context, externalID string) error {
	status := StatusCancelled
	return c.UpdateAppointment(ctx, externalID, AppointmentUpdate{Status: &status})
}

// SyncAppointmentStatus looks the appointment up by the booking identifier
// written on create.
func (c *FHIRClient) SyncAppointmentStatus(ctx context.Context, bookingID string) (*Appointment, error) {
	q := url.Values{}
	q.Set("identifier", bookingIdentifierSystem+"|"+bookingID)

	var bundle fhirBundle
	if _, err := c.do(ctx, http.MethodGet, "Appointment?"+q.Encode(), nil, &bundle); err != nil {
		return nil, apperr.Integration("fhir", "sync appointment", err)
	}
	if len(bundle.Entry) == 0 {
		return nil, fmt.Errorf("sync %s: %w", bookingID, ErrAppointmentNotFound)
	}

	var res fhirAppointment
	if err := json.Unmarshal(bundle.Entry[0].Resource, &res); err != nil {
		return nil, apperr.Integration("fhir", "sync appointment", fmt.Errorf("decode appointment: %w", err))
	}

	appt := c.fromFHIR(res)
	appt.BookingID = bookingID
	return &appt, nil
}

func (c *FHIRClient) toFHIR(appt Appointment) (fhirAppointment, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", appt.Date+" "+appt.Time, c.loc)
	if err != nil {
		return fhirAppointment{}, fmt.Errorf("parse start: %w", err)
	}

	res := fhirAppointment{
		ResourceType: "Appointment",
		Status:       toFHIRStatus(appt.Status),
		Identifier:   []fhirIdentifier{{System: bookingIdentifierSystem, Value: appt.BookingID}},
		AppointmentType: &fhirCodeableConcept{
			Coding: []fhirCoding{{System: "urn:clinic-booking:appointment-type", Code: appt.AppointmentTypeID}},
		},
		ServiceType: []fhirCodeableConcept{{Text: appt.Modality}},
		Start:       &start,
		Participant: []fhirParticipant{
			{Actor: fhirReference{Reference: "Practitioner/" + appt.ProviderID}, Status: "accepted"},
			{Actor: fhirReference{Reference: "Patient/" + appt.PatientID}, Status: "accepted"},
		},
	}
	if appt.Duration > 0 {
		end := start.Add(time.Duration(appt.Duration) * time.Minute)
		res.End = &end
		res.MinutesDuration = appt.Duration
	}
	return res, nil
}

func (c *FHIRClient) fromFHIR(res fhirAppointment) Appointment {
	appt := Appointment{
		ExternalID: res.ID,
		Status:     fromFHIRStatus(res.Status),
	}
	if res.Start != nil {
		start := res.Start.In(c.loc)
		appt.Date = start.Format("2006-01-02")
		appt.Time = start.Format("15:04")
	}
	appt.Duration = res.MinutesDuration
	for _, p := range res.Participant {
		switch {
		case strings.HasPrefix(p.Actor.Reference, "Practitioner/"):
			appt.ProviderID = strings.TrimPrefix(p.Actor.Reference, "Practitioner/")
		case strings.HasPrefix(p.Actor.Reference, "Patient/"):
			appt.PatientID = strings.TrimPrefix(p.Actor.Reference, "Patient/")
		}
	}
	if res.AppointmentType != nil && len(res.AppointmentType.Coding) > 0 {
		appt.AppointmentTypeID = res.AppointmentType.Coding[0].Code
	}
	if len(res.ServiceType) > 0 {
		appt.Modality = res.ServiceType[0].Text
	}
	return appt
}

func toFHIRStatus(status string) string {
	switch status {
	case StatusConfirmed:
		return "booked"
	case StatusCancelled:
		return "cancelled"
	default:
		return "proposed"
	}
}

func fromFHIRStatus(status string) string {
	switch status {
	case "booked", "arrived", "fulfilled", "checked-in":
		return StatusConfirmed
	case "cancelled", "noshow", "entered-in-error":
		return StatusCancelled
	default:
		return StatusPending
	}
}

func idFromLocation(loc string) string {
	if loc == "" {
		return ""
	}
	// Location may be .../Appointment/<id>/_history/<vid>
	parts := strings.Split(strings.Trim(loc, "/"), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == "Appointment" {
			return parts[i+1]
		}
	}
	return path.Base(loc)
}

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (c *FHIRClient) do(ctx context.Context, method, rel string, body, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+rel, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/fhir+json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.Header, &statusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.Header, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.Header, nil
}

var _ Adapter = (*FHIRClient)(nil)
