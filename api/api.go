// Package api provides the operator-only admin HTTP surface for an
// Eventbus engine: stats, dead letter queue inspection and replay, store
// queries and the old-event sweep. It is meant to listen on an internal
// address behind a bearer token, never on the public API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/eventbus/engine"
)

// API wires the admin handlers around an Engine.
type API struct {
	eng    *engine.Engine
	token  string
	logger *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithToken requires every /v1 request to carry "Authorization: Bearer <token>".
// An empty token leaves the routes unauthenticated.
func WithToken(token string) Option {
	return func(a *API) { a.token = token }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API for eng.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{eng: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if a.token == "" {
		a.logger.Warn("admin api running without a bearer token")
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, a.recoverMiddleware, a.loggingMiddleware)
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all admin routes into r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.authMiddleware)

		r.Get("/stats", a.stats)

		r.Get("/dlq", a.listDLQ)
		r.Post("/dlq/retry", a.retryDLQ)

		r.Get("/events", a.listEventsByName)
		r.Get("/events/pending", a.listPending)
		r.Get("/events/failed", a.listFailed)
		r.Post("/events/sweep", a.sweep)
		r.Get("/events/{deliveryID}", a.getEvent)
	})
}
