// Package notify delivers patient notifications over email, SMS and voice.
//
// Adapters only ever receive a template name plus the minimal rendering data
// (patient first name, date, time, booking id). Clinical free text such as
// the reason for visit is never passed in.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
)

type Email struct {
	To       string
	Subject  string
	Template string
	Data     map[string]string
}

type SMS struct {
	To      string
	Message string
}

type Voice struct {
	To     string
	Script string
}

// Adapter sends one message per call. Implementations that cannot serve a
// channel return ErrUnsupportedChannel.
type Adapter interface {
	SendEmail(ctx context.Context, e Email) error
	SendSMS(ctx context.Context, s SMS) error
	SendVoice(ctx context.Context, v Voice) error
}

var ErrUnsupportedChannel = errors.New("notification channel not supported by adapter")

const (
	TemplateConfirmation = "booking-confirmation"
	TemplateCancellation = "booking-cancellation"
)

// Message is the full set of data a notification may carry.
type Message struct {
	PatientName string
	Date        string
	Time        string
	BookingID   string
}

func (m Message) Data() map[string]string {
	return map[string]string{
		"patientName": m.PatientName,
		"date":        m.Date,
		"time":        m.Time,
		"bookingId":   m.BookingID,
	}
}

type Rendered struct {
	Subject string
	Body    string
}

type messageTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]messageTemplate{
	TemplateConfirmation: {
		subject: "Appointment Confirmation",
		body: template.Must(template.New(TemplateConfirmation).Option("missingkey=zero").Parse(
			"Hi {{.patientName}}, your appointment on {{.date}} at {{.time}} has been received. Booking ID: {{.bookingId}}")),
	},
	TemplateCancellation: {
		subject: "Appointment Cancelled",
		body: template.Must(template.New(TemplateCancellation).Option("missingkey=zero").Parse(
			"Hi {{.patientName}}, your appointment on {{.date}} at {{.time}} has been cancelled. Booking ID: {{.bookingId}}")),
	},
}

// Render builds the subject and plain-text body for a known template.
func Render(name string, data map[string]string) (Rendered, error) {
	t, ok := templates[name]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown notification template %q", name)
	}

	var buf bytes.Buffer
	if err := t.body.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Rendered{Subject: t.subject, Body: buf.String()}, nil
}
