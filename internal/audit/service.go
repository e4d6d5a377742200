package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/redact"
)

// Writer appends redacted entries to the audit log. It never updates or
// deletes.
type Writer struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewWriter(repo Repository, logger zerolog.Logger) *Writer {
	return &Writer{
		repo:   repo,
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

// Record stores e and returns an *apperr.AuditWriteError on failure.
func (w *Writer) Record(ctx context.Context, e Entry) error {
	payload, err := redactPayload(e.Payload)
	if err != nil {
		return &apperr.AuditWriteError{Action: e.Action, Err: err}
	}

	rec := Record{
		ID:         uuid.New(),
		Timestamp:  w.now().UTC(),
		UserID:     optional(e.UserID),
		UserRole:   optional(e.UserRole),
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: optional(e.ResourceID),
		Payload:    payload,
	}
	if e.Request != nil {
		rec.IPAddress = optional(e.Request.IP)
		rec.UserAgent = optional(e.Request.UserAgent)
	}

	if err := w.repo.Insert(ctx, rec); err != nil {
		return &apperr.AuditWriteError{Action: e.Action, Err: err}
	}

	w.logger.Info().
		Str("action", e.Action).
		Str("resource", e.Resource).
		Str("user_id", e.UserID).
		Msg("audit log created")

	return nil
}

// Log is fire-and-forget: a failed write is logged and swallowed so the
// audited operation carries on.
func (w *Writer) Log(ctx context.Context, e Entry) {
	if err := w.Record(ctx, e); err != nil {
		w.logger.Warn().Err(err).Str("action", e.Action).Msg("failed to create audit log")
	}
}

// Query returns one page of matching entries, newest first.
func (w *Writer) Query(ctx context.Context, f Filter) (*Page, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	total, err := w.repo.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}

	logs, err := w.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}

	return &Page{Total: total, Limit: f.Limit, Offset: f.Offset, Logs: logs}, nil
}

// redactPayload normalises any payload to its JSON shape so struct values
// are walked the same way as maps.
func redactPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("normalise payload: %w", err)
	}

	redacted := redact.Value(generic, redact.Options{Enabled: true, PreserveStructure: true})

	out, err := json.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("marshal redacted payload: %w", err)
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
