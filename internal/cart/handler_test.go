package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chatori-be/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/cart", NewHandler(svc).Routes)
	return r
}

func asUser(req *http.Request, userID string) *http.Request {
	ctx := auth.WithPrincipal(req.Context(), auth.Principal{UserID: userID, Role: auth.RoleUser})
	return req.WithContext(ctx)
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) Cart {
	t.Helper()
	var c Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	return c
}

func TestHandler_AddAndGet(t *testing.T) {
	router := newTestRouter(NewService(newMemRepository()))

	body := `{"foodId":"food-1","name":"Bhel Puri","image":"bhel.jpg","price":35,"quantity":2}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(body)), "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeCart(t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.NotEmpty(t, c.Items[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/cart", nil), "u1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"_id"`)
}

func TestHandler_Validation(t *testing.T) {
	router := newTestRouter(NewService(newMemRepository()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(`{"name":"x"}`)), "u1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message")
}

func TestHandler_NegativeQuantity(t *testing.T) {
	router := newTestRouter(NewService(newMemRepository()))

	body := `{"foodId":"food-1","name":"Bhel Puri","price":35,"quantity":-1}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(body)), "u1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrInvalidQuantity.Error())
}

func TestHandler_Unauthenticated(t *testing.T) {
	router := newTestRouter(NewService(newMemRepository()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_SetQuantityAndRemove(t *testing.T) {
	svc := NewService(newMemRepository())
	router := newTestRouter(svc)
	c, err := svc.Add(context.Background(), "u1", Snapshot{FoodID: "f1", Name: "Kachori", Price: decimal.NewFromInt(15)}, 1)
	require.NoError(t, err)
	id := c.Items[0].ID

	t.Run("Update", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPut, "/api/cart/"+id, strings.NewReader(`{"quantity":4}`)), "u1"))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 4, decodeCart(t, rec).Items[0].Quantity)
	})

	t.Run("Unknown entry", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPut, "/api/cart/nope", strings.NewReader(`{"quantity":4}`)), "u1"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Missing quantity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPut, "/api/cart/"+id, strings.NewReader(`{}`)), "u1"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/api/cart/"+id, nil), "u1"))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeCart(t, rec).Items)
	})
}

func TestHandler_ClearAndReorder(t *testing.T) {
	svc := NewService(newMemRepository())
	router := newTestRouter(svc)
	_, _ = svc.Add(context.Background(), "u1", Snapshot{FoodID: "f1", Name: "Kachori", Price: decimal.NewFromInt(15)}, 3)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/api/cart/clear", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)

	body := `{"items":[{"foodId":"f2","name":"Jalebi","price":60,"quantity":0}]}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/cart/reorder", strings.NewReader(body)), "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeCart(t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[0].Quantity)
}
