package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"vedtak/internal/models"
	"vedtak/pkg/validator"

	"github.com/google/uuid"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code   string `json:"code" example:"INVALID_TRANSITION"`
	Detail string `json:"detail" example:"cannot submit decision for case instance ... in status ATTESTED"`
}

// nonNil makes empty lists encode as [] instead of null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"INTERNAL","detail":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, status int, code, detail string) {
	respondWithJSON(w, status, ErrorResponse{Code: code, Detail: detail})
}

// statusForCode maps a domain error code to its HTTP status
func statusForCode(code string) int {
	switch code {
	case models.CodeInvalidTransition, models.CodeStaleStatus:
		return http.StatusConflict
	case models.CodeSameActor, models.CodeIncompatibleCategory:
		return http.StatusBadRequest
	case models.CodeMissingPrerequisite:
		return http.StatusPreconditionFailed
	case models.CodeExternalService:
		return http.StatusBadGateway
	case models.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError writes err using the stable error taxonomy. Errors
// outside the taxonomy are logged and hidden behind a generic 500.
func respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := models.ErrorCode(err)
	status := statusForCode(code)

	switch {
	case code == "":
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
		respondWithError(w, http.StatusInternalServerError, CodeInternal, ErrMsgInternal)
	case code == models.CodeNotFound:
		respondWithError(w, status, code, ErrMsgDecisionNotFound)
	case code == models.CodeExternalService:
		slog.Warn("Collaborator call failed", "path", r.URL.Path, "error", err)
		respondWithError(w, status, code, err.Error())
	default:
		respondWithError(w, status, code, err.Error())
	}
}

// decodeOptionalBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondWithError(w, http.StatusRequestEntityTooLarge, CodeBadRequest, ErrMsgRequestBodyTooLarge)
		return false
	}
	respondWithError(w, http.StatusBadRequest, CodeBadRequest, ErrMsgInvalidRequestBody)
	return false
}

// decodeValidBody decodes an optional body and checks its validate tags
func decodeValidBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if !decodeOptionalBody(w, r, v) {
		return false
	}
	if err := validator.ValidateStruct(v); err != nil {
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return false
	}
	return true
}

func subjectIDFromQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	subjectID := strings.TrimSpace(r.URL.Query().Get(subjectIDQueryParam))
	if subjectID == "" {
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, ErrMsgMissingSubjectID)
		return "", false
	}
	if err := validator.ValidateSubjectID(subjectID); err != nil {
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return "", false
	}
	return subjectID, true
}

func caseInstanceIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(caseInstancePathParam))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, ErrMsgInvalidCaseInstance)
		return uuid.Nil, false
	}
	return id, true
}

func caseIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(caseIDPathParam), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, ErrMsgInvalidCaseID)
		return 0, false
	}
	return id, true
}
