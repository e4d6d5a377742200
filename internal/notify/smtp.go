package notify

import (
	"context"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/redact"
)

// MailSender is satisfied by *gomail.Dialer.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTP struct {
	sender    MailSender
	fromEmail string
	fromName  string
	logger    zerolog.Logger
}

func NewSMTP(sender MailSender, fromEmail, fromName string, logger zerolog.Logger) *SMTP {
	return &SMTP{
		sender:    sender,
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger.With().Str("adapter", "smtp").Logger(),
	}
}

func (s *SMTP) SendEmail(ctx context.Context, e Email) error {
	r, err := Render(e.Template, e.Data)
	if err != nil {
		return apperr.Integration("smtp", "send email", err)
	}
	subject := e.Subject
	if subject == "" {
		subject = r.Subject
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromEmail, s.fromName)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", r.Body)

	// gomail takes no context.
	if err := ctx.Err(); err != nil {
		return apperr.Integration("smtp", "send email", err)
	}
	if err := s.sender.DialAndSend(m); err != nil {
		return apperr.Integration("smtp", "send email", err)
	}

	s.logger.Info().Str("to", redact.MaskEmail(e.To)).Str("template", e.Template).Msg("email sent")
	return nil
}

func (s *SMTP) SendSMS(context.Context, SMS) error {
	return ErrUnsupportedChannel
}

func (s *SMTP) SendVoice(context.Context, Voice) error {
	return ErrUnsupportedChannel
}

var _ Adapter = (*SMTP)(nil)
