package cart

import (
	"net/http"

	"chatori-be/internal/auth"
	"chatori-be/internal/transport"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the cart endpoints; callers must already be authenticated.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Post("/", h.add)
	r.Delete("/clear", h.clear)
	r.Post("/reorder", h.reorder)
	r.Put("/{itemId}", h.setQuantity)
	r.Delete("/{itemId}", h.remove)
}

type addRequest struct {
	Snapshot
	Quantity int `json:"quantity"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type reorderRequest struct {
	Items []ReorderLine `json:"items" validate:"dive"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(p auth.Principal) (*Cart, error) {
		return h.svc.Get(r.Context(), p.UserID)
	})
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	h.respond(w, r, func(p auth.Principal) (*Cart, error) {
		return h.svc.Add(r.Context(), p.UserID, req.Snapshot, req.Quantity)
	})
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	h.respond(w, r, func(p auth.Principal) (*Cart, error) {
		return h.svc.SetQuantity(r.Context(), p.UserID, chi.URLParam(r, "itemId"), *req.Quantity)
	})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(p auth.Principal) (*Cart, error) {
		return h.svc.Remove(r.Context(), p.UserID, chi.URLParam(r, "itemId"))
	})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(p auth.Principal) (*Cart, error) {
		return h.svc.Clear(r.Context(), p.UserID)
	})
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	h.respond(w, r, func(p auth.Principal) (*Cart, error) {
		return h.svc.ReplaceForReorder(r.Context(), p.UserID, req.Items)
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, fn func(auth.Principal) (*Cart, error)) {
	p, err := auth.MustPrincipal(r.Context())
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	c, err := fn(p)
	if err != nil {
		transport.WriteError(w, r, err, ErrorStatus)
		return
	}
	transport.WriteJSON(w, http.StatusOK, c)
}
