package service

import (
	"context"
	"errors"
	"vedtak/internal/models"

	"github.com/google/uuid"
)

// CaseService is the external case-tracking system
type CaseService interface {
	FetchCase(ctx context.Context, caseInstanceID uuid.UUID) (*models.CaseSnapshot, error)
	CanSubmit(ctx context.Context, caseInstanceID uuid.UUID) (bool, error)
	CanAttest(ctx context.Context, caseInstanceID uuid.UUID) (bool, error)
	CanReject(ctx context.Context, caseInstanceID uuid.UUID) (bool, error)
	// NotifyTransition must be idempotent on (caseInstanceID, status)
	NotifyTransition(ctx context.Context, caseInstanceID uuid.UUID, status models.DecisionStatus, note models.TransitionNote) error
	FetchOpenTasksForCase(ctx context.Context, caseID int64) ([]models.Task, error)
	AssignTask(ctx context.Context, task models.Task, actor models.Actor) error
}

// CalculationService provides eligibility outcomes and pre-computed schedules.
// A missing result is reported as nil, nil.
type CalculationService interface {
	FetchBenefitSchedule(ctx context.Context, caseInstanceID uuid.UUID) (*models.BenefitSchedule, error)
	FetchEligibilityOutcome(ctx context.Context, caseInstanceID uuid.UUID) (*models.EligibilityOutcome, error)
	FetchRepaymentClaim(ctx context.Context, caseInstanceID uuid.UUID) (*models.RepaymentContent, error)
}

// EventPublisher receives domain events after commit
type EventPublisher interface {
	Publish(ctx context.Context, event models.DecisionEvent) error
}

// CoordinationService is the external pension coordination service
type CoordinationService interface {
	RequestCoordination(ctx context.Context, decision models.Decision) (models.CoordinationResponse, error)
}

// external wraps a collaborator failure, keeping domain errors and cancellation as they are
func external(service, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if models.ErrorCode(err) != "" {
		return err
	}
	return &models.ExternalServiceError{Service: service, Operation: operation, Err: err}
}
