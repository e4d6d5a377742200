package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/hackgods/clinic-booking/internal/config"
)

// Router sends email through one adapter and SMS/voice through another.
type Router struct {
	Email Adapter
	Phone Adapter
}

func (r *Router) SendEmail(ctx context.Context, e Email) error {
	return r.Email.SendEmail(ctx, e)
}

func (r *Router) SendSMS(ctx context.Context, s SMS) error {
	return r.Phone.SendSMS(ctx, s)
}

func (r *Router) SendVoice(ctx context.Context, v Voice) error {
	return r.Phone.SendVoice(ctx, v)
}

var _ Adapter = (*Router)(nil)

// New builds the adapter selected by cfg. Settings are assumed validated by
// config.Load.
func New(ctx context.Context, cfg config.NotificationConfig, logger zerolog.Logger) (Adapter, error) {
	primary, err := build(ctx, cfg.Adapter, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.EmailAdapter == "" || cfg.EmailAdapter == cfg.Adapter {
		return primary, nil
	}

	email, err := build(ctx, cfg.EmailAdapter, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Router{Email: email, Phone: primary}, nil
}

func build(ctx context.Context, kind string, cfg config.NotificationConfig, logger zerolog.Logger) (Adapter, error) {
	switch kind {
	case config.NotifyMock:
		return NewLogAdapter(logger), nil
	case config.NotifyTwilio:
		return NewTwilio(TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFromNumber,
			BaseURL:    cfg.TwilioBaseURL,
		}, logger), nil
	case config.NotifySendGrid:
		return NewSendGrid(SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
		}, logger), nil
	case config.NotifySES:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewSES(sesv2.NewFromConfig(awsCfg), cfg.FromEmail, cfg.FromName, logger), nil
	case config.NotifySMTP:
		dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		return NewSMTP(dialer, cfg.FromEmail, cfg.FromName, logger), nil
	default:
		return nil, fmt.Errorf("unknown notification adapter %q", kind)
	}
}
