package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/logging"
)

// effect is one post-commit side effect. Effects never fail the operation
// that scheduled them.
type effect struct {
	name string
	run  func(ctx context.Context) error
}

const (
	effectSync   = "sync"
	effectNotify = "notify"
	effectAudit  = "audit"
)

// errSkipped marks an effect that chose not to act, e.g. a patient with no
// usable contact for their channel.
var errSkipped = errors.New("skipped")

// runEffects executes effects in order, each with its own timeout and
// failure boundary. They run on a context detached from the caller so a
// disconnected client does not abort them.
func (s *Service) runEffects(ctx context.Context, op, bookingID string, effects ...effect) {
	detached := context.WithoutCancel(ctx)
	for _, e := range effects {
		s.runEffect(detached, op, bookingID, e)
	}
}

func (s *Service) runEffect(ctx context.Context, op, bookingID string, e effect) {
	ctx, span := tracer.Start(ctx, "booking.effect."+e.name)
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.operation", op),
		attribute.String("booking.id", bookingID),
	)

	start := time.Now()
	err := s.guard(ctx, e)
	s.metrics.effectDuration.WithLabelValues(e.name).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		s.metrics.effects.WithLabelValues(e.name, "ok").Inc()
	case errors.Is(err, errSkipped):
		s.metrics.effects.WithLabelValues(e.name, "skipped").Inc()
		s.logger.Debug().Str("effect", e.name).Str("booking_id", bookingID).Msg("effect skipped")
	default:
		s.metrics.effects.WithLabelValues(e.name, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn().
			Err(err).
			Str("effect", e.name).
			Str("operation", op).
			Fields(logging.Safe(map[string]any{"booking_id": bookingID})).
			Msg("post-commit effect failed")
	}
}

// guard applies the timeout and converts panics and bare errors into typed
// integration errors.
func (s *Service) guard(ctx context.Context, e effect) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.AdapterTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = apperr.Integration(e.name, "effect", fmt.Errorf("panic: %v", r))
		}
	}()

	err = e.run(ctx)
	if err == nil || errors.Is(err, errSkipped) {
		return err
	}

	var integ *apperr.IntegrationError
	var auditErr *apperr.AuditWriteError
	if errors.As(err, &integ) || errors.As(err, &auditErr) {
		return err
	}
	return apperr.Integration(e.name, "effect", err)
}
