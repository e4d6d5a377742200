package notify

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/redact"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string // defaults to https://api.twilio.com
	HTTPClient *http.Client
}

// Twilio sends SMS and voice calls through the Twilio REST API.
type Twilio struct {
	cfg    TwilioConfig
	http   *http.Client
	logger zerolog.Logger
}

func NewTwilio(cfg TwilioConfig, logger zerolog.Logger) *Twilio {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Twilio{
		cfg:    cfg,
		http:   client,
		logger: logger.With().Str("adapter", "twilio").Logger(),
	}
}

func (t *Twilio) SendEmail(context.Context, Email) error {
	return ErrUnsupportedChannel
}

func (t *Twilio) SendSMS(ctx context.Context, s SMS) error {
	form := url.Values{}
	form.Set("To", s.To)
	form.Set("From", t.cfg.From)
	form.Set("Body", s.Message)

	sid, err := t.post(ctx, "Messages.json", form)
	if err != nil {
		return apperr.Integration("twilio", "send sms", err)
	}

	t.logger.Info().Str("to", redact.MaskPhone(s.To)).Str("sid", sid).Msg("sms sent")
	return nil
}

func (t *Twilio) SendVoice(ctx context.Context, v Voice) error {
	var script strings.Builder
	if err := xml.EscapeText(&script, []byte(v.Script)); err != nil {
		return apperr.Integration("twilio", "send voice", err)
	}

	form := url.Values{}
	form.Set("To", v.To)
	form.Set("From", t.cfg.From)
	form.Set("Twiml", "<Response><Say>"+script.String()+"</Say></Response>")

	sid, err := t.post(ctx, "Calls.json", form)
	if err != nil {
		return apperr.Integration("twilio", "send voice", err)
	}

	t.logger.Info().Str("to", redact.MaskPhone(v.To)).Str("sid", sid).Msg("voice call placed")
	return nil
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (t *Twilio) post(ctx context.Context, resource string, form url.Values) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/%s", t.cfg.BaseURL, t.cfg.AccountSID, resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed twilioResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Message != "" {
			return "", fmt.Errorf("status %d code %d: %s", resp.StatusCode, parsed.Code, parsed.Message)
		}
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	return parsed.SID, nil
}

var _ Adapter = (*Twilio)(nil)
