package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatori-be/internal/auth"
	"chatori-be/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCors(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := CORS("http://localhost:5173")(nextHandler)

	t.Run("OPTIONS request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Normal request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthenticate(t *testing.T) {
	parser := auth.NewTokenParser("test-secret")
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, found := auth.PrincipalFrom(r.Context())
		assert.True(t, found)
		assert.Equal(t, "u-1", p.UserID)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("Missing Token", func(t *testing.T) {
		w := httptest.NewRecorder()
		Authenticate(parser)(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "message")
	})

	t.Run("Invalid Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		Authenticate(parser)(ok).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Valid Token", func(t *testing.T) {
		tok, err := parser.Issue(auth.Principal{UserID: "u-1", Role: auth.RoleUser}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()

		Authenticate(parser)(ok).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Cookie Token", func(t *testing.T) {
		tok, err := parser.Issue(auth.Principal{UserID: "u-1", Role: auth.RoleUser}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: tok})
		w := httptest.NewRecorder()

		Authenticate(parser)(ok).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Expired Token", func(t *testing.T) {
		tok, err := parser.Issue(auth.Principal{UserID: "u-1", Role: auth.RoleUser}, -time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()

		Authenticate(parser)(ok).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guard := RequireRole(auth.RoleAdmin)(next)

	t.Run("Allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "a", Role: auth.RoleAdmin}))
		w := httptest.NewRecorder()

		guard.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Denied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "d", Role: auth.RoleDelivery}))
		w := httptest.NewRecorder()

		guard.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		guard.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("Strict tier on payment", func(t *testing.T) {
		rl := NewRateLimiter("")
		handler := rl.Middleware(next)

		codes := make([]int, 0, burstStrict+1)
		for i := 0; i < burstStrict+1; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/payment/verify", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, http.StatusOK, codes[0])
		assert.Equal(t, http.StatusTooManyRequests, codes[len(codes)-1])
	})

	t.Run("Tiers are separate buckets", func(t *testing.T) {
		rl := NewRateLimiter("")
		handler := rl.Middleware(next)

		for i := 0; i < burstStrict; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/payment/verify", nil)
			req.RemoteAddr = "10.0.0.2:1234"
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Internal key", func(t *testing.T) {
		rl := NewRateLimiter("svc-secret")
		req := httptest.NewRequest(http.MethodPost, "/api/payment/verify", nil)
		req.Header.Set("X-Service-Auth", "svc-secret")

		_, burst, tier := rl.resolveRateTier(req)
		assert.Equal(t, "internal", tier)
		assert.Equal(t, burstInternal, burst)
	})

	t.Run("Polling tier", func(t *testing.T) {
		rl := NewRateLimiter("")
		for _, path := range []string{"/api/delivery/orders", "/api/admin/orders", "/api/orders/user"} {
			_, _, tier := rl.resolveRateTier(httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, "frontend", tier, path)
		}

		_, _, tier := rl.resolveRateTier(httptest.NewRequest(http.MethodPost, "/api/orders", nil))
		assert.Equal(t, "general", tier)
	})

	t.Run("Eviction", func(t *testing.T) {
		rl := NewRateLimiter("")
		rl.getVisitor("ip:1:general", limitGeneral, burstGeneral)

		rl.evict(time.Now().Add(visitorTTL + time.Second))

		rl.mu.Lock()
		defer rl.mu.Unlock()
		assert.Empty(t, rl.visitors)
	})

	t.Run("Identity prefers principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Device-ID", "dev-1")
		assert.Equal(t, "device:dev-1", identity(req))

		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "u-9"}))
		assert.Equal(t, "user:u-9", identity(req))
	})
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/orders/{id}/invoice", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/abc/invoice", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.Requests.WithLabelValues("/api/orders/{id}/invoice", http.MethodGet, "418"),
	))
}
