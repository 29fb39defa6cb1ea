package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medsched/clinic-booking/internal/scheduling"
)

type RouterConfig struct {
	Service     *scheduling.Service
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Logger      *zap.Logger
	Env         string
	Version     string
	CORSOrigins []string
	RateLimit   int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Catalog
	r.Get("/specialties", listSpecialtiesHandler(cfg.Service))

	// Availability and booking
	r.Get("/doctors/{doctorID}/availability", availabilityHandler(cfg.Service))
	r.Post("/appointments", scheduleAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Put("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

	// Patient views
	r.Get("/patients/{email}/appointments", upcomingAppointmentsHandler(cfg.Service))
	r.Put("/patients/{email}/appointments/{id}/cancel", cancelOwnAppointmentHandler(cfg.Service))

	// Doctor agenda
	r.Get("/doctors/agenda", doctorAgendaHandler(cfg.Service))

	// Schedule template administration
	r.Get("/doctors/{doctorID}/schedule", listScheduleHandler(cfg.Service))
	r.Post("/doctors/{doctorID}/schedule", addBlockHandler(cfg.Service))
	r.Put("/doctors/{doctorID}/schedule", replaceScheduleHandler(cfg.Service))
	r.Delete("/doctors/{doctorID}/schedule/{blockID}", removeBlockHandler(cfg.Service))
	r.Delete("/doctors/{doctorID}", deactivateDoctorHandler(cfg.Service))

	return r
}
