package testutil

import (
	"time"
	"vedtak/internal/models"

	"github.com/google/uuid"
)

// FixtureTime is the clock value used by decision fixtures
var FixtureTime = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

// BenefitDecision returns an APPROVAL draft paying monthly from validFrom
func BenefitDecision(subjectID string, caseID int64, validFrom string, monthly int64) models.Decision {
	from := models.MustParseYearMonth(validFrom)
	amount := monthly
	return models.Decision{
		CaseInstanceID: uuid.New(),
		CaseID:         caseID,
		SubjectID:      subjectID,
		CaseCategory:   models.CaseCategoryChildPension,
		Category:       models.CategoryApproval,
		Content: models.BenefitContent{
			ValidFrom: from,
			PaymentPeriods: []models.PaymentPeriod{
				{ValidFrom: from, Amount: &amount, Kind: models.PeriodKindPayment},
			},
			CalculationRef: "beregning-" + subjectID,
			EligibilityRef: "vilkaar-" + subjectID,
		},
		CreatedAt: FixtureTime,
		UpdatedAt: FixtureTime,
	}
}

// RepaymentDecision returns a REPAYMENT draft claiming one month
func RepaymentDecision(subjectID string, caseID int64, month string, claim int64) models.Decision {
	return models.Decision{
		CaseInstanceID: uuid.New(),
		CaseID:         caseID,
		SubjectID:      subjectID,
		CaseCategory:   models.CaseCategoryChildPension,
		Category:       models.CategoryRepayment,
		Content: models.RepaymentContent{
			Periods: []models.RepaymentPeriod{
				{Month: models.MustParseYearMonth(month), PaidAmount: claim, ClaimAmount: claim},
			},
			TotalClaim: claim,
			ClaimRef:   "tilbakekreving-" + subjectID,
		},
		CreatedAt: FixtureTime,
		UpdatedAt: FixtureTime,
	}
}
