package handlers

import (
	"context"
	"net/http"
	"vedtak/internal/models"

	"github.com/google/uuid"
)

// AutomaticRunner drives a case instance through the lifecycle without a caseworker
type AutomaticRunner interface {
	Run(ctx context.Context, caseInstanceID uuid.UUID, mode models.RunMode) (*models.Decision, error)
}

// AutomaticHandler handles system-driven runs
type AutomaticHandler struct {
	runner AutomaticRunner
}

// NewAutomaticHandler creates a new automatic run handler
func NewAutomaticHandler(runner AutomaticRunner) *AutomaticHandler {
	return &AutomaticHandler{runner: runner}
}

// RunRequest selects the phases of an automatic run
type RunRequest struct {
	Mode models.RunMode `json:"mode" enums:"FULL_RUN,RUN_THEN_PAUSE,RESUME_AFTER_PAUSE" example:"FULL_RUN"`
}

// Register mounts the automatic run route on mux
func (h *AutomaticHandler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("POST "+AutomaticAPIBasePath+"/{"+caseInstancePathParam+"}", protect(http.HandlerFunc(h.Run)))
}

// Run executes an automatic run for one case instance
// @Summary Run automatic decision
// @Description Creates, submits, assigns and attests the decision with the system actors. RUN_THEN_PAUSE stops before attestation, RESUME_AFTER_PAUSE only attests.
// @Tags Automatic
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param caseInstanceId path string true "Case instance ID" format(uuid)
// @Param request body RunRequest false "Run mode, defaults to FULL_RUN"
// @Success 200 {object} models.Decision
// @Failure 400 {object} ErrorResponse "Invalid ID or run mode"
// @Failure 409 {object} ErrorResponse "Invalid transition"
// @Failure 412 {object} ErrorResponse "Calculation results missing"
// @Failure 502 {object} ErrorResponse "Collaborator failed"
// @Router /automatic/{caseInstanceId} [post]
func (h *AutomaticHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, ok := caseInstanceIDFromPath(w, r)
	if !ok {
		return
	}

	req := RunRequest{Mode: models.RunModeFull}
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	if !req.Mode.Valid() {
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, ErrMsgInvalidRunMode)
		return
	}

	decision, err := h.runner.Run(r.Context(), id, req.Mode)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, decision)
}
