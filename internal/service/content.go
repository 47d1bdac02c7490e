package service

import (
	"context"
	"vedtak/internal/models"

	"github.com/google/uuid"
)

// DeriveCategory maps the adjudication outcome and case-instance type to a decision category
func DeriveCategory(instanceType models.CaseInstanceType, result models.OutcomeResult) models.DecisionCategory {
	switch {
	case instanceType == models.InstanceTypeRepayment:
		return models.CategoryRepayment
	case instanceType == models.InstanceTypeRevision && result == models.OutcomeApproved:
		return models.CategoryChange
	case instanceType == models.InstanceTypeRevision:
		return models.CategoryCessation
	case result == models.OutcomeApproved:
		return models.CategoryApproval
	default:
		return models.CategoryDenial
	}
}

// draft is the freshly computed decision for a case instance, before it is merged with the stored one
func (s *DecisionService) draft(ctx context.Context, caseInstanceID uuid.UUID) (models.Decision, error) {
	snapshot, err := s.cases.FetchCase(ctx, caseInstanceID)
	if err != nil {
		return models.Decision{}, external("case", "fetch_case", err)
	}
	if snapshot == nil {
		return models.Decision{}, &models.MissingPrerequisiteError{CaseInstanceID: caseInstanceID, What: "case"}
	}

	now := s.now()
	d := models.Decision{
		CaseInstanceID: caseInstanceID,
		CaseID:         snapshot.CaseID,
		SubjectID:      snapshot.SubjectID,
		CaseCategory:   snapshot.Category,
		Status:         models.StatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if snapshot.InstanceType == models.InstanceTypeRepayment {
		claim, err := s.calculation.FetchRepaymentClaim(ctx, caseInstanceID)
		if err != nil {
			return models.Decision{}, external("calculation", "fetch_repayment_claim", err)
		}
		if claim == nil {
			return models.Decision{}, &models.MissingPrerequisiteError{CaseInstanceID: caseInstanceID, What: "repayment claim"}
		}
		d.Category = models.CategoryRepayment
		d.Content = models.CloneContent(*claim)
		return d, nil
	}

	if snapshot.EffectiveFrom == nil {
		return models.Decision{}, &models.MissingPrerequisiteError{CaseInstanceID: caseInstanceID, What: "effective date"}
	}

	outcome, err := s.calculation.FetchEligibilityOutcome(ctx, caseInstanceID)
	if err != nil {
		return models.Decision{}, external("calculation", "fetch_eligibility_outcome", err)
	}
	if outcome == nil {
		return models.Decision{}, &models.MissingPrerequisiteError{CaseInstanceID: caseInstanceID, What: "eligibility outcome"}
	}
	d.Category = DeriveCategory(snapshot.InstanceType, outcome.Result)

	schedule, err := s.calculation.FetchBenefitSchedule(ctx, caseInstanceID)
	if err != nil {
		return models.Decision{}, external("calculation", "fetch_benefit_schedule", err)
	}
	if d.Category.GrantsBenefit() && (schedule == nil || len(schedule.Periods) == 0) {
		return models.Decision{}, &models.MissingPrerequisiteError{CaseInstanceID: caseInstanceID, What: "benefit schedule"}
	}

	content := models.BenefitContent{
		ValidFrom:      *snapshot.EffectiveFrom,
		EligibilityRef: outcome.Ref,
		PaymentPeriods: []models.PaymentPeriod{},
	}
	if schedule != nil {
		content.CalculationRef = schedule.Ref
		content.PaymentPeriods = models.ClonePeriods(schedule.Periods)
	}
	if d.Category == models.CategoryCessation && len(content.PaymentPeriods) == 0 {
		content.PaymentPeriods = []models.PaymentPeriod{{
			ValidFrom: *snapshot.EffectiveFrom,
			Kind:      models.PeriodKindCessation,
		}}
	}
	d.Content = content
	return d, nil
}
