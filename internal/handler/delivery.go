package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/techstore/internal/domain/delivery"
)

type deliveryRequest struct {
	Status       *delivery.Status `json:"status"`
	TrackingCode *string          `json:"trackingCode"`
	Carrier      *string          `json:"carrier"`
	EstimatedAt  *time.Time       `json:"estimatedAt"`
}

// GetDelivery handles GET /api/delivery/{orderId}.
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := h.deliveries.GetForUser(r.Context(), identity(r).UserID, chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDelivery(e, d) })
}

// UpdateDelivery handles PUT /api/delivery/{orderId}.
func (h *Handler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.deliveries.Update(r.Context(), chi.URLParam(r, "orderId"), delivery.Update(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDelivery(e, d) })
}
