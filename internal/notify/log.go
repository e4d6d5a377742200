package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/redact"
)

// LogAdapter records notifications instead of sending them. Recipients are
// masked and message bodies are never logged.
type LogAdapter struct {
	logger zerolog.Logger
}

func NewLogAdapter(logger zerolog.Logger) *LogAdapter {
	return &LogAdapter{logger: logger.With().Str("adapter", "notify-log").Logger()}
}

func (a *LogAdapter) SendEmail(_ context.Context, e Email) error {
	a.logger.Info().
		Str("to", redact.MaskEmail(e.To)).
		Str("subject", e.Subject).
		Str("template", e.Template).
		Msg("email sent (simulated)")
	return nil
}

func (a *LogAdapter) SendSMS(_ context.Context, s SMS) error {
	a.logger.Info().
		Str("to", redact.MaskPhone(s.To)).
		Int("message_length", len(s.Message)).
		Msg("sms sent (simulated)")
	return nil
}

func (a *LogAdapter) SendVoice(_ context.Context, v Voice) error {
	a.logger.Info().
		Str("to", redact.MaskPhone(v.To)).
		Int("script_length", len(v.Script)).
		Msg("voice call sent (simulated)")
	return nil
}

var _ Adapter = (*LogAdapter)(nil)
