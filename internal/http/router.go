// Package httpapi assembles the HTTP surface: public registration routes,
// operator-gated reconciliation routes, health and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/platform/middleware"
	"gatepass/pkg/platform/httputil"
)

// RouteRegistrar mounts a handler's routes onto a chi router.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthChecker reports backing-store health for /healthz.
type HealthChecker func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	Public         RouteRegistrar
	Auth           RouteRegistrar
	Admin          RouteRegistrar
	TokenValidator middleware.TokenValidator
	Metrics        http.Handler
	Health         HealthChecker
	Logger         *slog.Logger
}

// NewRouter wires the full route tree.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Group(func(r chi.Router) {
		deps.Public.Register(r)
		if deps.Auth != nil {
			deps.Auth.Register(r)
		}
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireOperator(deps.TokenValidator, deps.Logger))
		deps.Admin.Register(r)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(req.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	return r
}
