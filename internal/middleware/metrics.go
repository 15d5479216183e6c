package middleware

import (
	"net/http"
	"strconv"
	"time"

	"chatori-be/internal/logger"
	"chatori-be/internal/metrics"

	"github.com/go-chi/chi/v5"
)

// Metrics records request count and latency labelled by the matched route
// pattern, so path ids don't explode label cardinality.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := logger.NewStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			m.ObserveRequest(route, r.Method, strconv.Itoa(rec.Status), time.Since(start))
		})
	}
}
