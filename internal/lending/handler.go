// internal/lending/handler.go
package lending

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

// Routes mounts the lending endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/members", h.handleRegisterMember)
	r.Get("/members/{id}", h.handleGetMember)
	r.Post("/members/{id}/deactivate", h.handleDeactivateMember)

	r.Post("/copies", h.handleAddBookCopy)
	r.Get("/copies/{id}", h.handleGetBookCopy)
	r.Post("/copies/{id}/lost", h.handleMarkCopyLost)

	r.Post("/loans", h.handleCheckout)
	r.Get("/loans/{id}", h.handleGetLoan)
	r.Post("/loans/{id}/return", h.handleReturn)
	r.Post("/loans/{id}/extend", h.handleExtend)
	r.Get("/loans/overdue", h.handleListOverdue)

	return r
}

func (h *Handler) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Barcode string `json:"barcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.RespondError(w, domain.Validationf("invalid request body"))
		return
	}

	member, err := h.service.RegisterMember(r.Context(), req.Name, req.Barcode)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusCreated, member)
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseMemberID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	member, err := h.service.GetMember(r.Context(), id)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, member)
}

func (h *Handler) handleDeactivateMember(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseMemberID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	if err := h.service.DeactivateMember(r.Context(), id); err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleAddBookCopy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title         string `json:"title"`
		Barcode       string `json:"barcode"`
		ReferenceOnly bool   `json:"reference_only"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.RespondError(w, domain.Validationf("invalid request body"))
		return
	}

	bookCopy, err := h.service.AddBookCopy(r.Context(), req.Title, req.Barcode, req.ReferenceOnly)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusCreated, bookCopy)
}

func (h *Handler) handleGetBookCopy(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseBookCopyID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	bookCopy, err := h.service.GetBookCopy(r.Context(), id)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, bookCopy)
}

func (h *Handler) handleMarkCopyLost(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseBookCopyID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	if err := h.service.MarkCopyLost(r.Context(), id); err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
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

	loan, err := h.service.CheckoutBook(r.Context(), memberID, copyID)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseLoanID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseLoanID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	if err := h.service.ReturnBook(r.Context(), id); err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseLoanID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	var req struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.RespondError(w, domain.Validationf("invalid request body"))
		return
	}

	loan, err := h.service.ExtendLoan(r.Context(), id, req.Days)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleListOverdue(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListOverdueLoans(r.Context(), domain.SystemClock())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, loans)
}
