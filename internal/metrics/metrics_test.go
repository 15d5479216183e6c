package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("/api/orders", http.MethodPost, "201", 12*time.Millisecond)
	m.OrderPlaced("COD")
	m.OrderPlaced("COD")
	m.Transition("Pending", "Preparing", "admin")
	m.PaymentVerified("paid")
	m.PublishFailed("order.created")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("/api/orders", http.MethodPost, "201")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OrdersPlaced.WithLabelValues("COD")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Transitions.WithLabelValues("Pending", "Preparing", "admin")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Verifications.WithLabelValues("paid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsFailed.WithLabelValues("order.created")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest("/", http.MethodGet, "200", time.Millisecond)
		m.OrderPlaced("Online")
		m.Transition("Ready", "Delivered", "delivery")
		m.PaymentVerified("failed")
		m.PublishFailed("order.created")
	})
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.OrderPlaced("Online")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatori_orders_placed_total")
}
