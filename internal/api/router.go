package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/ratelimit"
)

type RouterConfig struct {
	Bookings      BookingService
	Auth          Authenticator
	Audit         AuditQuerier
	Health        *HealthHandler
	PublicLimiter ratelimit.Limiter
	AuthLimiter   ratelimit.Limiter
	Metrics       *Metrics
	Gatherer      prometheus.Gatherer
	PHIStorage    bool
	Logger        zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger.With().Str("component", "http").Logger()
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h := &handlers{bookings: cfg.Bookings, authn: cfg.Auth, audit: cfg.Audit, logger: logger}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(logger))
	r.Use(MetricsMiddleware(metrics))
	r.Use(PHIGuard(cfg.PHIStorage, logger))

	r.Get("/health", cfg.Health.Health)
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.With(RateLimitMiddleware(cfg.AuthLimiter, logger)).Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(OptionalAuth(cfg.Auth))

		r.Get("/providers", h.listProviders)
		r.Get("/providers/{id}", h.getProvider)
		r.Get("/appointment-types", h.listAppointmentTypes)
		r.Get("/appointment-types/{id}", h.getAppointmentType)
		r.Get("/availability", h.availability)

		r.With(RateLimitMiddleware(cfg.PublicLimiter, logger)).Post("/bookings", h.createBooking)
		r.Get("/bookings/{id}", h.getBooking)
		r.Delete("/bookings/{id}", h.cancelBooking)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(Authenticate(cfg.Auth, logger))

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(logger, auth.StaffRoles...))

			r.Get("/bookings", h.listBookings)
			r.Patch("/bookings/{id}/approve", h.approveBooking)
			r.Patch("/bookings/{id}/decline", h.declineBooking)
			r.Get("/reports/bookings", h.bookingReport)
		})

		r.With(RequireRole(logger, auth.RoleAdmin)).Get("/audit-logs", h.auditLogs)
	})

	return r
}
