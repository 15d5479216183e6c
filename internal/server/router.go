package server

import (
	"context"
	"net/http"
	"time"

	"chatori-be/internal/auth"
	"chatori-be/internal/cart"
	"chatori-be/internal/logger"
	"chatori-be/internal/metrics"
	"chatori-be/internal/middleware"
	"chatori-be/internal/order"
	"chatori-be/internal/payment"
	"chatori-be/internal/transport"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the backing store is reachable.
type Pinger func(ctx context.Context) error

type Deps struct {
	Tokens     middleware.TokenParser
	Limiter    *middleware.RateLimiter
	Metrics    *metrics.Metrics
	CORSOrigin string
	Health     Pinger

	Carts    *cart.Handler
	Orders   *order.Handler
	Payments *payment.Handler
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.CORS(d.CORSOrigin))

	r.Get("/health", healthHandler(d.Health))
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Tokens))
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}

		r.Route("/cart", d.Carts.Routes)
		r.Route("/payment", d.Payments.Routes)

		r.With(middleware.RequireRole(auth.RoleUser, auth.RoleAdmin)).
			Route("/orders", d.Orders.CustomerRoutes)
		r.With(middleware.RequireRole(auth.RoleAdmin)).
			Route("/admin/orders", d.Orders.AdminRoutes)
		r.With(middleware.RequireRole(auth.RoleDelivery, auth.RoleAdmin)).
			Route("/delivery", d.Orders.DeliveryRoutes)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteMessage(w, http.StatusNotFound, "route not found")
	})

	return r
}

func healthHandler(ping Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.FromCtx(r.Context()).Error("health check failed", zap.Error(err))
				transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "DOWN"})
				return
			}
		}
		transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	}
}
