package order

import (
	"net/http"

	"chatori-be/internal/auth"
	"chatori-be/internal/cart"
	"chatori-be/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// CustomerRoutes mounts under /api/orders.
func (h *Handler) CustomerRoutes(r chi.Router) {
	r.Post("/", h.place)
	r.Get("/user", h.listMine)
	r.Get("/mine", h.listMine)
	r.Get("/{id}/invoice", h.invoice)
	r.Post("/{id}/reorder", h.reorder)
}

// AdminRoutes mounts under /api/admin/orders.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.listAll)
	r.Put("/{id}/status", h.setStatus)
	r.Get("/{id}/history", h.history)
}

// DeliveryRoutes mounts under /api/delivery.
func (h *Handler) DeliveryRoutes(r chi.Router) {
	r.Get("/orders", h.listForDelivery)
	r.Patch("/order/{id}/status", h.setStatus)
}

type placeOrderRequest struct {
	Items           []LineItem      `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DeliveryAddress string          `json:"deliveryAddress"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required"`
	RazorpayOrderID string          `json:"razorpayOrderId"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	OTP    string `json:"otp"`
}

func (h *Handler) place(w http.ResponseWriter, r *http.Request) {
	p, err := auth.MustPrincipal(r.Context())
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	var req placeOrderRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}

	o, replayed, err := h.svc.PlaceOrder(r.Context(), PlaceOrderInput{
		UserID:          p.UserID,
		Items:           req.Items,
		TotalAmount:     req.TotalAmount,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   PaymentMethod(req.PaymentMethod),
		GatewayOrderID:  req.RazorpayOrderID,
		IdempotencyKey:  r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	transport.WriteJSON(w, status, o)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	p, err := auth.MustPrincipal(r.Context())
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	orders, err := h.svc.ListMine(r.Context(), p.UserID)
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus)
		return
	}
	transport.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListAll(r.Context())
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus)
		return
	}
	transport.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) listForDelivery(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListForDelivery(r.Context())
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus)
		return
	}
	transport.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	p, err := auth.MustPrincipal(r.Context())
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	var req statusRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}

	o, err := h.svc.SetStatus(r.Context(), p, chi.URLParam(r, "id"), Status(req.Status), req.OTP)
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus)
		return
	}

	if p.Role == auth.RoleDelivery {
		transport.WriteJSON(w, http.StatusOK, ToDeliveryOrder(&AdminOrder{Order: *o}))
		return
	}
	transport.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus)
		return
	}
	transport.WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) invoice(w http.ResponseWriter, r *http.Request) {
	p, err := auth.MustPrincipal(r.Context())
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	inv, err := h.svc.Invoice(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus)
		return
	}
	transport.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	p, err := auth.MustPrincipal(r.Context())
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	c, err := h.svc.Reorder(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus, cart.ErrorStatus)
		return
	}
	transport.WriteJSON(w, http.StatusOK, c)
}
