package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/redact"
)

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// Endpoint overrides the mail send URL.
	Endpoint string
}

type SendGrid struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    zerolog.Logger
}

func NewSendGrid(cfg SendGridConfig, logger zerolog.Logger) *SendGrid {
	client := sendgrid.NewSendClient(cfg.APIKey)
	if cfg.Endpoint != "" {
		client.BaseURL = cfg.Endpoint
	}
	return &SendGrid{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger.With().Str("adapter", "sendgrid").Logger(),
	}
}

func (s *SendGrid) SendEmail(ctx context.Context, e Email) error {
	r, err := Render(e.Template, e.Data)
	if err != nil {
		return apperr.Integration("sendgrid", "send email", err)
	}
	subject := e.Subject
	if subject == "" {
		subject = r.Subject
	}

	msg := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		subject,
		mail.NewEmail("", e.To),
		r.Body,
		"",
	)

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return apperr.Integration("sendgrid", "send email", err)
	}
	if resp.StatusCode >= 400 {
		return apperr.Integration("sendgrid", "send email", fmt.Errorf("status %d", resp.StatusCode))
	}

	s.logger.Info().
		Str("to", redact.MaskEmail(e.To)).
		Str("template", e.Template).
		Int("status", resp.StatusCode).
		Msg("email sent")
	return nil
}

func (s *SendGrid) SendSMS(context.Context, SMS) error {
	return ErrUnsupportedChannel
}

func (s *SendGrid) SendVoice(context.Context, Voice) error {
	return ErrUnsupportedChannel
}

var _ Adapter = (*SendGrid)(nil)
