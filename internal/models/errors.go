package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error codes surfaced to callers
const (
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeStaleStatus          = "STALE_STATUS"
	CodeSameActor            = "SAME_ACTOR"
	CodeIncompatibleCategory = "INCOMPATIBLE_CATEGORY"
	CodeMissingPrerequisite  = "MISSING_PREREQUISITE"
	CodeExternalService      = "EXTERNAL_SERVICE"
	CodeNotFound             = "NOT_FOUND"
)

// ErrDecisionNotFound is returned when no decision exists for a case instance
var ErrDecisionNotFound = errors.New("decision not found")

// CodedError is implemented by every error in the decision taxonomy
type CodedError interface {
	error
	Code() string
}

// ErrorCode returns the stable code for err, or "" if err is not a domain error
func ErrorCode(err error) string {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	if errors.Is(err, ErrDecisionNotFound) {
		return CodeNotFound
	}
	return ""
}

// InvalidTransitionError is raised when an operation is not legal from the current status
type InvalidTransitionError struct {
	CaseInstanceID uuid.UUID
	Operation      string
	Status         DecisionStatus
	// Reason is set when the case service refused the operation
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s decision for case instance %s in status %s", e.Operation, e.CaseInstanceID, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Code() string { return CodeInvalidTransition }

// StaleStatusError is raised when the stored status no longer matches the expected precondition
type StaleStatusError struct {
	CaseInstanceID uuid.UUID
	Expected       []DecisionStatus
	Actual         DecisionStatus
}

func (e *StaleStatusError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		expected[i] = string(s)
	}
	return fmt.Sprintf("decision for case instance %s has status %s, expected one of [%s]",
		e.CaseInstanceID, e.Actual, strings.Join(expected, ", "))
}

func (e *StaleStatusError) Code() string { return CodeStaleStatus }

// SameActorError is raised when the attester is the maker
type SameActorError struct {
	CaseInstanceID uuid.UUID
	Actor          string
}

func (e *SameActorError) Error() string {
	return fmt.Sprintf("%s made the decision for case instance %s and cannot attest it", e.Actor, e.CaseInstanceID)
}

func (e *SameActorError) Code() string { return CodeSameActor }

// IncompatibleCategoryError is raised when a category is not allowed for the revision reason
type IncompatibleCategoryError struct {
	Category       DecisionCategory
	RevisionReason string
}

func (e *IncompatibleCategoryError) Error() string {
	return fmt.Sprintf("decision category %s is not allowed for revision reason %s", e.Category, e.RevisionReason)
}

func (e *IncompatibleCategoryError) Code() string { return CodeIncompatibleCategory }

// MissingPrerequisiteError is raised when a required input has not been produced yet
type MissingPrerequisiteError struct {
	CaseInstanceID uuid.UUID
	What           string
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("case instance %s is missing %s", e.CaseInstanceID, e.What)
}

func (e *MissingPrerequisiteError) Code() string { return CodeMissingPrerequisite }

// ExternalServiceError wraps a failed or malformed collaborator call
type ExternalServiceError struct {
	Service   string
	Operation string
	Err       error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Operation, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Code() string { return CodeExternalService }
