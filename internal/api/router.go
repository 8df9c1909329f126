package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	Engine  Engine
	PgPool  *pgxpool.Pool // nil when the csv backend is selected
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// One endpoint per conversation flow; the chat transport posts events
	// here and renders the returned instruction.
	r.Post("/patient/events", patientEventHandler(cfg.Engine))
	r.Post("/doctor/events", doctorEventHandler(cfg.Engine))

	return r
}
