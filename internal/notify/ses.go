package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/redact"
)

// SESAPI is the part of *sesv2.Client the adapter calls.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SES struct {
	client    SESAPI
	fromEmail string
	fromName  string
	logger    zerolog.Logger
}

func NewSES(client SESAPI, fromEmail, fromName string, logger zerolog.Logger) *SES {
	return &SES{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger.With().Str("adapter", "ses").Logger(),
	}
}

func (s *SES) SendEmail(ctx context.Context, e Email) error {
	r, err := Render(e.Template, e.Data)
	if err != nil {
		return apperr.Integration("ses", "send email", err)
	}
	subject := e.Subject
	if subject == "" {
		subject = r.Subject
	}

	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{e.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(r.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return apperr.Integration("ses", "send email", err)
	}

	s.logger.Info().
		Str("to", redact.MaskEmail(e.To)).
		Str("template", e.Template).
		Str("message_id", aws.ToString(out.MessageId)).
		Msg("email sent")
	return nil
}

func (s *SES) SendSMS(context.Context, SMS) error {
	return ErrUnsupportedChannel
}

func (s *SES) SendVoice(context.Context, Voice) error {
	return ErrUnsupportedChannel
}

var _ Adapter = (*SES)(nil)
