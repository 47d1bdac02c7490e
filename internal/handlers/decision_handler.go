package handlers

import (
	"context"
	"net/http"
	"time"
	"vedtak/internal/middleware"
	"vedtak/internal/models"
	"vedtak/internal/timeline"
	"vedtak/pkg/validator"

	"github.com/google/uuid"
)

// DecisionOperations is the lifecycle surface the handler drives
type DecisionOperations interface {
	CreateOrUpdate(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor) (*models.Decision, error)
	Submit(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor) (*models.Decision, error)
	Attest(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor, comment string) (*models.Decision, error)
	Reject(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor, comment, reasonCode string) (*models.Decision, error)
	SendToCoordination(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor) (*models.Decision, error)
	Coordinated(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor) (*models.Decision, error)
	Activate(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor) (*models.Decision, error)
	Reset(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor, comment string) (*models.Decision, error)
	Get(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error)
	ListForCase(ctx context.Context, caseID int64) ([]models.Decision, error)
	History(ctx context.Context, caseInstanceID uuid.UUID) ([]models.HistoryEntry, error)
	Timeline(ctx context.Context, subjectID string) ([]timeline.Entry, error)
	IsActiveOn(ctx context.Context, subjectID string, date time.Time) (timeline.ActiveResult, error)
}

// DecisionHandler handles decision lifecycle requests
type DecisionHandler struct {
	decisions DecisionOperations
	now       func() time.Time
}

// NewDecisionHandler creates a new decision handler
func NewDecisionHandler(decisions DecisionOperations) *DecisionHandler {
	return &DecisionHandler{
		decisions: decisions,
		now:       time.Now,
	}
}

// CommentRequest carries an optional caseworker comment
type CommentRequest struct {
	Comment string `json:"comment" validate:"max=4000" example:"Checked against income statement"`
}

// RejectRequest carries the reason a decision is sent back to the maker
type RejectRequest struct {
	Comment    string `json:"comment" validate:"max=4000" example:"Wrong effective month"`
	ReasonCode string `json:"reason_code" validate:"required,max=64" example:"WRONG_PERIOD"`
}

// Register mounts the decision routes on mux. protect wraps every route with authentication.
func (h *DecisionHandler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	base := DecisionsAPIBasePath + "/{" + caseInstancePathParam + "}"
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(fn))
	}

	handle("POST "+base+"/upsert", h.Upsert)
	handle("POST "+base+"/submit", h.Submit)
	handle("POST "+base+"/attest", h.Attest)
	handle("POST "+base+"/reject", h.Reject)
	handle("POST "+base+"/coordinate", h.SendToCoordination)
	handle("POST "+base+"/coordinated", h.Coordinated)
	handle("POST "+base+"/activate", h.Activate)
	handle("POST "+base+"/reset", h.Reset)
	handle("GET "+base, h.Get)
	handle("GET "+base+"/history", h.History)
	handle("GET "+CasesAPIBasePath+"/{"+caseIDPathParam+"}/decisions", h.ListForCase)
	handle("GET "+SubjectsAPIBasePath+"/timeline", h.Timeline)
	handle("GET "+SubjectsAPIBasePath+"/active", h.IsActiveOn)
}

// lifecycle runs one actor-driven operation and writes the resulting decision
func (h *DecisionHandler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Decision, error)) {
	id, ok := caseInstanceIDFromPath(w, r)
	if !ok {
		return
	}
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, CodeUnauthenticated, ErrMsgUnauthorized)
		return
	}

	decision, err := op(r.Context(), id, actor)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, decision)
}

// Upsert creates or refreshes the draft decision from the calculation results
// @Summary Create or update decision
// @Description Creates the decision for a case instance or refreshes its content while it is DRAFT or RETURNED
// @Tags Decisions
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Success 200 {object} models.Decision
// @Failure 400 {object} ErrorResponse "Invalid ID or incompatible category"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 409 {object} ErrorResponse "Decision is no longer mutable"
// @Failure 412 {object} ErrorResponse "Calculation results missing"
// @Failure 502 {object} ErrorResponse "Collaborator failed"
// @Router /decisions/{caseInstanceId}/upsert [post]
func (h *DecisionHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.decisions.CreateOrUpdate)
}

// Submit hands the decision to an attester
// @Summary Submit decision
// @Description Records the maker and moves the decision to SUBMITTED
// @Tags Decisions
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Success 200 {object} models.Decision
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Decision not found"
// @Failure 409 {object} ErrorResponse "Invalid transition"
// @Failure 502 {object} ErrorResponse "Collaborator failed"
// @Router /decisions/{caseInstanceId}/submit [post]
func (h *DecisionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.decisions.Submit)
}

// Attest approves a submitted decision
// @Summary Attest decision
// @Description Second caseworker approves the decision. Freezes the payment periods the decision governs.
// @Tags Decisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Param request body CommentRequest false "Optional comment"
// @Success 200 {object} models.Decision
// @Failure 400 {object} ErrorResponse "Attester is the maker"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Decision not found"
// @Failure 409 {object} ErrorResponse "Invalid transition"
// @Failure 502 {object} ErrorResponse "Collaborator failed"
// @Router /decisions/{caseInstanceId}/attest [post]
func (h *DecisionHandler) Attest(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decodeValidBody(w, r, &req) {
		return
	}
	h.lifecycle(w, r, func(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Decision, error) {
		return h.decisions.Attest(ctx, id, actor, validator.SanitizeString(req.Comment))
	})
}

// Reject returns a submitted decision to the maker
// @Summary Reject decision
// @Description Sends a submitted decision back to RETURNED with a reason code
// @Tags Decisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Param request body RejectRequest true "Rejection reason"
// @Success 200 {object} models.Decision
// @Failure 400 {object} ErrorResponse "Missing reason code"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Decision not found"
// @Failure 409 {object} ErrorResponse "Invalid transition"
// @Router /decisions/{caseInstanceId}/reject [post]
func (h *DecisionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if !decodeValidBody(w, r, &req) {
		return
	}
	h.lifecycle(w, r, func(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Decision, error) {
		return h.decisions.Reject(ctx, id, actor, validator.SanitizeString(req.Comment), validator.SanitizeString(req.ReasonCode))
	})
}

// SendToCoordination sends an attested decision to entitlement coordination
// @Summary Send decision to coordination
// @Description Moves an ATTESTED decision to TO_COORDINATE, or straight on to COORDINATED when no wait is needed
// @Tags Decisions
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Success 200 {object} models.Decision
// @Failure 404 {object} ErrorResponse "Decision not found"
// @Failure 409 {object} ErrorResponse "Invalid transition"
// @Failure 502 {object} ErrorResponse "Coordination service failed"
// @Router /decisions/{caseInstanceId}/coordinate [post]
func (h *DecisionHandler) SendToCoordination(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.decisions.SendToCoordination)
}

// Coordinated records that coordination has finished
// @Summary Mark decision coordinated
// @Tags Decisions
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Success 200 {object} models.Decision
// @Failure 404 {object} ErrorResponse "Decision not found"
// @Failure 409 {object} ErrorResponse "Invalid transition"
// @Router /decisions/{caseInstanceId}/coordinated [post]
func (h *DecisionHandler) Coordinated(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.decisions.Coordinated)
}

// Activate makes the decision final
// @Summary Activate decision
// @Tags Decisions
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Success 200 {object} models.Decision
// @Failure 404 {object} ErrorResponse "Decision not found"
// @Failure 409 {object} ErrorResponse "Invalid transition"
// @Router /decisions/{caseInstanceId}/activate [post]
func (h *DecisionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.decisions.Activate)
}

// Reset deletes a decision that has not been activated
// @Summary Reset decision
// @Description Deletes the decision for the case instance. Returns the removed decision.
// @Tags Decisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Param request body CommentRequest false "Optional comment"
// @Success 200 {object} models.Decision
// @Failure 404 {object} ErrorResponse "Decision not found"
// @Failure 409 {object} ErrorResponse "Decision is ACTIVE"
// @Router /decisions/{caseInstanceId}/reset [post]
func (h *DecisionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decodeValidBody(w, r, &req) {
		return
	}
	h.lifecycle(w, r, func(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Decision, error) {
		return h.decisions.Reset(ctx, id, actor, validator.SanitizeString(req.Comment))
	})
}

// Get returns the decision for a case instance
// @Summary Get decision
// @Tags Decisions
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Success 200 {object} models.Decision
// @Failure 400 {object} ErrorResponse "Invalid ID"
// @Failure 404 {object} ErrorResponse "Decision not found"
// @Router /decisions/{caseInstanceId} [get]
func (h *DecisionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := caseInstanceIDFromPath(w, r)
	if !ok {
		return
	}
	decision, err := h.decisions.Get(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, decision)
}

// History returns the audit trail of a decision
// @Summary Get decision history
// @Tags Decisions
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Success 200 {array} models.HistoryEntry
// @Failure 400 {object} ErrorResponse "Invalid ID"
// @Router /decisions/{caseInstanceId}/history [get]
func (h *DecisionHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := caseInstanceIDFromPath(w, r)
	if !ok {
		return
	}
	entries, err := h.decisions.History(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, nonNil(entries))
}

// ListForCase returns every decision of a case
// @Summary List decisions for case
// @Tags Decisions
// @Produce json
// @Security BearerAuth
// @Param caseId path int true "Case ID"
// @Success 200 {array} models.Decision
// @Failure 400 {object} ErrorResponse "Invalid ID"
// @Router /cases/{caseId}/decisions [get]
func (h *DecisionHandler) ListForCase(w http.ResponseWriter, r *http.Request) {
	caseID, ok := caseIDFromPath(w, r)
	if !ok {
		return
	}
	decisions, err := h.decisions.ListForCase(r.Context(), caseID)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, nonNil(decisions))
}

// Timeline returns the reconciled benefit timeline of a subject
// @Summary Get subject timeline
// @Description Each ACTIVE decision with the window and payment periods it still governs
// @Tags Subjects
// @Produce json
// @Security BearerAuth
// @Param subject_id query string true "Subject ID"
// @Success 200 {array} timeline.Entry
// @Failure 400 {object} ErrorResponse "Missing or invalid subject ID"
// @Router /subjects/timeline [get]
func (h *DecisionHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := subjectIDFromQuery(w, r)
	if !ok {
		return
	}
	entries, err := h.decisions.Timeline(r.Context(), subjectID)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, nonNil(entries))
}

// IsActiveOn reports whether a subject's benefit runs on a date
// @Summary Is benefit active on date
// @Tags Subjects
// @Produce json
// @Security BearerAuth
// @Param subject_id query string true "Subject ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} timeline.ActiveResult
// @Failure 400 {object} ErrorResponse "Invalid subject ID or date"
// @Router /subjects/active [get]
func (h *DecisionHandler) IsActiveOn(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := subjectIDFromQuery(w, r)
	if !ok {
		return
	}

	date := h.now().UTC().Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get(dateQueryParam); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, CodeBadRequest, ErrMsgInvalidDate)
			return
		}
		date = parsed
	}

	result, err := h.decisions.IsActiveOn(r.Context(), subjectID, date)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
