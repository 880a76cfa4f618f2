// internal/approval/handler.go
package approval

import (
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

// Routes mounts the approval endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/workflows", h.handleCreateWorkflow)
	r.Get("/workflows/{id}", h.handleGetWorkflow)
	r.Post("/workflows/{id}/steps", h.handleAddStep)
	r.Delete("/workflows/{id}/steps/last", h.handleRemoveLastStep)

	r.Post("/applications", h.handleCreateApplication)
	r.Get("/applications/{id}", h.handleGetApplication)
	r.Post("/applications/{id}/submit", h.handleSubmit)
	r.Post("/applications/{id}/review", h.handleStartReview)
	r.Post("/applications/{id}/approve", h.handleApprove)
	r.Post("/applications/{id}/reject", h.handleReject)
	r.Post("/applications/{id}/return", h.handleReturn)
	r.Post("/applications/{id}/resubmit", h.handleResubmit)

	return r
}

func (h *Handler) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApplicationType string     `json:"application_type"`
		Steps           []StepSpec `json:"steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.RespondError(w, domain.Validationf("invalid request body"))
		return
	}

	wf, err := h.service.CreateWorkflowDefinition(r.Context(), req.ApplicationType, req.Steps)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusCreated, wf)
}

func (h *Handler) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseWorkflowID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	wf, err := h.service.GetWorkflowDefinition(r.Context(), id)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, wf)
}

func (h *Handler) handleAddStep(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseWorkflowID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	var req StepSpec
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.RespondError(w, domain.Validationf("invalid request body"))
		return
	}

	wf, err := h.service.AddWorkflowStep(r.Context(), id, req.Name, req.Role)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, wf)
}

func (h *Handler) handleRemoveLastStep(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseWorkflowID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	wf, err := h.service.RemoveLastWorkflowStep(r.Context(), id)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, wf)
}

func (h *Handler) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApplicantID string `json:"applicant_id"`
		Type        string `json:"type"`
		Content     string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.RespondError(w, domain.Validationf("invalid request body"))
		return
	}

	applicantID, err := domain.ParseMemberID(req.ApplicantID)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	app, err := h.service.CreateApplication(r.Context(), applicantID, req.Type, req.Content)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusCreated, app)
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, app)
}

// actorRequest is the common body for submit/review/approve/reject/return.
type actorRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	Comment string `json:"comment"`
	Reason  string `json:"reason"`
}

func decodeActor(r *http.Request) (domain.MemberID, actorRequest, error) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.MemberID{}, req, domain.Validationf("invalid request body")
	}
	actorID, err := domain.ParseMemberID(req.ActorID)
	return actorID, req, err
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	actorID, _, err := decodeActor(r)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	if err := h.service.Submit(r.Context(), id, actorID); err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleStartReview(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	if err := h.service.StartReview(r.Context(), id); err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	actorID, req, err := decodeActor(r)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	app, err := h.service.Approve(r.Context(), id, actorID, req.Role, req.Comment)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, app)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	actorID, req, err := decodeActor(r)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	if err := h.service.Reject(r.Context(), id, actorID, req.Role, req.Reason); err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	actorID, req, err := decodeActor(r)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	if err := h.service.ReturnToApplicant(r.Context(), id, actorID, req.Role, req.Reason); err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleResubmit(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}

	actorID, _, err := decodeActor(r)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	if err := h.service.Resubmit(r.Context(), id, actorID); err != nil {
		web.RespondError(w, err)
		return
	}

	web.RespondJSON(w, http.StatusOK, nil)
}
