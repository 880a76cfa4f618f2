// internal/reservation/handler.go
package reservation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendhall/internal/domain"
	"lendhall/internal/platform/web"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the reservation endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.handlePlace)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/cancel", h.handleCancel)
	r.Get("/copies/{copyID}", h.handleListForCopy)
	r.Get("/members/{memberID}", h.handleListForMember)

	return r
}

func (h *Handler) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID   string `json:"member_id"`
		BookCopyID string `json:"book_copy_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.RespondError(w, domain.Validationf("invalid request body"))
		return
	}

	memberID, err := domain.ParseMemberID(req.MemberID)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	copyID, err := domain.ParseBookCopyID(req.BookCopyID)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	res, err := h.service.PlaceReservation(r.Context(), memberID, copyID)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseReservationID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	res, err := h.service.GetReservation(r.Context(), id)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseReservationID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	if err := h.service.CancelReservation(r.Context(), id); err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleListForCopy(w http.ResponseWriter, r *http.Request) {
	copyID, err := domain.ParseBookCopyID(chi.URLParam(r, "copyID"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	reservations, err := h.service.ListReservationsForCopy(r.Context(), copyID, activeOnly)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, reservations)
}

func (h *Handler) handleListForMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := domain.ParseMemberID(chi.URLParam(r, "memberID"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	reservations, err := h.service.ListReservationsForMember(r.Context(), memberID, activeOnly)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, reservations)
}
