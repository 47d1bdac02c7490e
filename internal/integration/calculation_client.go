package integration

import (
	"context"
	"net/http"
	"vedtak/internal/config"
	"vedtak/internal/models"

	"github.com/google/uuid"
)

// CalculationClient fetches eligibility outcomes, schedules and repayment claims
type CalculationClient struct {
	c *client
}

// NewCalculationClient creates a calculation service client. httpClient may be nil.
func NewCalculationClient(endpoint config.ServiceEndpoint, token string, httpClient *http.Client) *CalculationClient {
	return &CalculationClient{c: newClient("calculation", endpoint, token, httpClient)}
}

func (cc *CalculationClient) FetchBenefitSchedule(ctx context.Context, caseInstanceID uuid.UUID) (*models.BenefitSchedule, error) {
	return fetch[models.BenefitSchedule](ctx, cc.c, instancePath(caseInstanceID, "/benefit-schedule"))
}

func (cc *CalculationClient) FetchEligibilityOutcome(ctx context.Context, caseInstanceID uuid.UUID) (*models.EligibilityOutcome, error) {
	return fetch[models.EligibilityOutcome](ctx, cc.c, instancePath(caseInstanceID, "/eligibility-outcome"))
}

func (cc *CalculationClient) FetchRepaymentClaim(ctx context.Context, caseInstanceID uuid.UUID) (*models.RepaymentContent, error) {
	return fetch[models.RepaymentContent](ctx, cc.c, instancePath(caseInstanceID, "/repayment-claim"))
}

func fetch[T any](ctx context.Context, c *client, path string) (*T, error) {
	var out T
	found, err := c.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}
