package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/ticketpay/internal/validation"
)

// CreateOffer создаёт предложение билета от имени текущего организатора.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var in validation.OfferInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	offer, err := h.offers.CreateOffer(r.Context(), identity(r), in)
	if err != nil {
		h.writeServiceError(w, r, "create offer", err)
		return
	}

	writeJSON(w, http.StatusCreated, offer)
}

// GetOffer возвращает предложение по идентификатору его организатору или получателю.
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.offers.GetOffer(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "get offer", err)
		return
	}

	writeJSON(w, http.StatusOK, offer)
}

// GetPendingOffers возвращает ожидающие предложения текущего пользователя.
func (h *Handler) GetPendingOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.offers.GetMyPendingOffers(r.Context(), identity(r))
	if err != nil {
		h.writeServiceError(w, r, "get pending offers", err)
		return
	}

	writeJSON(w, http.StatusOK, offers)
}

// GetSentOffers возвращает страницу предложений, отправленных текущим организатором.
func (h *Handler) GetSentOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	pageSize, err := intParam(q.Get("page_size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page_size")
		return
	}

	var eventID *string
	if v := q.Get("event_id"); v != "" {
		eventID = &v
	}

	res, err := h.offers.GetSentOffers(r.Context(), identity(r), eventID, page, pageSize)
	if err != nil {
		h.writeServiceError(w, r, "get sent offers", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type claimRequest struct {
	SkipMintingFee bool `json:"skip_minting_fee"`
}

// ClaimOffer получает бесплатный билет по предложению через внешнюю операцию.
func (h *Handler) ClaimOffer(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req claimRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	res, err := h.offers.ClaimFreeOffer(r.Context(), identity(r), chi.URLParam(r, "id"), req.SkipMintingFee)
	if err != nil {
		h.writeServiceError(w, r, "claim offer", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// DeclineOffer отклоняет предложение от имени получателя.
func (h *Handler) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	if err := h.offers.DeclineOffer(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, "decline offer", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CancelOffer отменяет предложение от имени организатора.
func (h *Handler) CancelOffer(w http.ResponseWriter, r *http.Request) {
	if err := h.offers.CancelOffer(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, "cancel offer", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
