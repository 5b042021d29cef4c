package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/techstore/internal/domain/address"
)

type addressRequest struct {
	PostalCode *string `json:"postalCode"`
	Street     *string `json:"street"`
	Number     *string `json:"number"`
	Complement *string `json:"complement"`
	District   *string `json:"district"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	Label      *string `json:"label"`
	Primary    *bool   `json:"primary"`
}

func (a addressRequest) address() address.Address {
	return address.Address{
		PostalCode: deref(a.PostalCode),
		Street:     deref(a.Street),
		Number:     deref(a.Number),
		Complement: deref(a.Complement),
		District:   deref(a.District),
		City:       deref(a.City),
		State:      deref(a.State),
		Label:      deref(a.Label),
		Primary:    deref(a.Primary),
	}
}

func (a addressRequest) update() address.Update {
	return address.Update{
		PostalCode: a.PostalCode,
		Street:     a.Street,
		Complement: a.Complement,
		District:   a.District,
		City:       a.City,
		State:      a.State,
		Number:     a.Number,
		Label:      a.Label,
		Primary:    a.Primary,
	}
}

// LookupPostalCode handles GET /api/addresses/postal-code/{cep}.
func (h *Handler) LookupPostalCode(w http.ResponseWriter, r *http.Request) {
	loc, err := h.addresses.LookupPostalCode(r.Context(), chi.URLParam(r, "cep"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeLocation(e, loc) })
}

// CreateAddress handles POST /api/addresses.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.addresses.Create(r.Context(), identity(r).UserID, req.address())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeAddress(e, a) })
}

// ListAddresses handles GET /api/addresses.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.addresses.List(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeArray(w, list, encodeAddress)
}

// GetAddress handles GET /api/addresses/{id}.
func (h *Handler) GetAddress(w http.ResponseWriter, r *http.Request) {
	a, err := h.addresses.Get(r.Context(), identity(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeAddress(e, a) })
}

// UpdateAddress handles PUT /api/addresses/{id}.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.addresses.Update(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), req.update())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeAddress(e, a) })
}

// DeleteAddress handles DELETE /api/addresses/{id}.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.addresses.Delete(r.Context(), identity(r).UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
