package payment

import (
	"net/http"

	"chatori-be/internal/auth"
	"chatori-be/internal/order"
	"chatori-be/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts under /api/payment.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/create-order", h.createOrder)
	r.Post("/verify", h.verify)
}

type intentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type verifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	OrderID           string `json:"orderId" validate:"required"`
}

type verifyResponse struct {
	Message string       `json:"message"`
	Order   *order.Order `json:"order"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}

	intent, err := h.svc.CreateIntent(r.Context(), req.Amount)
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus)
		return
	}
	transport.WriteJSON(w, http.StatusOK, intent)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	p, err := auth.MustPrincipal(r.Context())
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	var req verifyRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}

	o, err := h.svc.VerifyCallback(r.Context(), p, Callback{
		GatewayOrderID:   req.RazorpayOrderID,
		GatewayPaymentID: req.RazorpayPaymentID,
		Signature:        req.RazorpaySignature,
		OrderID:          req.OrderID,
	})
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus, order.ErrorStatus)
		return
	}
	transport.WriteJSON(w, http.StatusOK, verifyResponse{Message: "Payment verified successfully", Order: o})
}
