package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-booking/internal/notify"
)

// dispatch sends one notification on the patient's preferred channel.
// sms needs the patient's consent flag and a number; voice needs a number.
// Otherwise the send is skipped. Only first name, date, time and booking id
// are passed on.
func (s *Service) dispatch(ctx context.Context, template string, b *Booking, p *Patient) error {
	msg := notify.Message{
		PatientName: firstName(p.Name),
		Date:        b.Date,
		Time:        b.Time,
		BookingID:   b.ID.String(),
	}
	number := deref(p.SMSNumber)

	switch p.NotificationChannel {
	case ChannelEmail:
		r, err := notify.Render(template, msg.Data())
		if err != nil {
			return err
		}
		return s.notifier.SendEmail(ctx, notify.Email{
			To:       deref(p.Email),
			Subject:  r.Subject,
			Template: template,
			Data:     msg.Data(),
		})
	case ChannelSMS:
		if !p.CanReceiveSMS || number == "" {
			return errSkipped
		}
		r, err := notify.Render(template, msg.Data())
		if err != nil {
			return err
		}
		return s.notifier.SendSMS(ctx, notify.SMS{To: number, Message: r.Body})
	case ChannelVoice:
		if number == "" {
			return errSkipped
		}
		r, err := notify.Render(template, msg.Data())
		if err != nil {
			return err
		}
		return s.notifier.SendVoice(ctx, notify.Voice{To: number, Script: r.Body})
	default:
		return fmt.Errorf("unknown notification channel %q: %w", p.NotificationChannel, errSkipped)
	}
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
