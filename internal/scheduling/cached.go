package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Cache stores raw availability payloads. Redis and go-cache both back it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cached memoises GetProviderAvailability. Writes go straight through and
// drop the cached day for the provider. Cancel and update only carry the
// external id, so create records which day each external id belongs to.
type Cached struct {
	Adapter
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCached returns next unchanged when caching is disabled.
func NewCached(next Adapter, cache Cache, ttl time.Duration, logger zerolog.Logger) Adapter {
	if cache == nil || ttl <= 0 {
		return next
	}
	return &Cached{
		Adapter: next,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With().Str("component", "availability-cache").Logger(),
	}
}

// dayIndexTTL bounds how long an external id can still be mapped back to
// its cached day.
const dayIndexTTL = 90 * 24 * time.Hour

func availabilityKey(providerID, date string) string {
	return fmt.Sprintf("availability:%s:%s", providerID, date)
}

func dayIndexKey(externalID string) string {
	return "appointment-day:" + externalID
}

type appointmentDay struct {
	ProviderID string `json:"providerId"`
	Date       string `json:"date"`
}

func (c *Cached) GetProviderAvailability(ctx context.Context, providerID, date string) ([]Slot, error) {
	key := availabilityKey(providerID, date)

	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("availability cache read failed")
	}
	if ok {
		var slots []Slot
		if err := json.Unmarshal(raw, &slots); err == nil {
			return slots, nil
		}
	}

	slots, err := c.Adapter.GetProviderAvailability(ctx, providerID, date)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(slots); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("availability cache write failed")
		}
	}

	return slots, nil
}

func (c *Cached) CreateAppointment(ctx context.Context, appt Appointment) (string, error) {
	id, err := c.Adapter.CreateAppointment(ctx, appt)
	if err != nil {
		return id, err
	}

	day := appointmentDay{ProviderID: appt.ProviderID, Date: appt.Date}
	c.invalidate(ctx, day)
	c.rememberDay(ctx, id, day)
	return id, nil
}

func (c *Cached) UpdateAppointment(ctx context.Context, externalID string, upd AppointmentUpdate) error {
	if err := c.Adapter.UpdateAppointment(ctx, externalID, upd); err != nil {
		return err
	}

	day, ok := c.lookupDay(ctx, externalID)
	if !ok {
		return nil
	}
	c.invalidate(ctx, day)
	if upd.Date != nil && *upd.Date != day.Date {
		day.Date = *upd.Date
		c.invalidate(ctx, day)
		c.rememberDay(ctx, externalID, day)
	}
	return nil
}

func (c *Cached) CancelAppointment(ctx context.Context, externalID string) error {
	if err := c.Adapter.CancelAppointment(ctx, externalID); err != nil {
		return err
	}

	if day, ok := c.lookupDay(ctx, externalID); ok {
		c.invalidate(ctx, day)
	}
	return nil
}

func (c *Cached) invalidate(ctx context.Context, day appointmentDay) {
	if err := c.cache.Delete(ctx, availabilityKey(day.ProviderID, day.Date)); err != nil {
		c.logger.Warn().Err(err).Msg("availability cache invalidation failed")
	}
}

func (c *Cached) rememberDay(ctx context.Context, externalID string, day appointmentDay) {
	if externalID == "" {
		return
	}
	raw, err := json.Marshal(day)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, dayIndexKey(externalID), raw, max(c.ttl, dayIndexTTL)); err != nil {
		c.logger.Warn().Err(err).Str("external_id", externalID).Msg("appointment day index write failed")
	}
}

func (c *Cached) lookupDay(ctx context.Context, externalID string) (appointmentDay, bool) {
	var day appointmentDay

	raw, ok, err := c.cache.Get(ctx, dayIndexKey(externalID))
	if err != nil {
		c.logger.Warn().Err(err).Str("external_id", externalID).Msg("appointment day index read failed")
		return day, false
	}
	if !ok || json.Unmarshal(raw, &day) != nil {
		return day, false
	}
	return day, true
}

// MemoryCache is the in-process Cache used when Redis is not configured.
type MemoryCache struct {
	c *gocache.Cache
}

func NewMemoryCache(cleanup time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, ok := v.([]byte)
	return raw, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.c.Set(key, val, ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

var _ Cache = (*MemoryCache)(nil)
