package timeline

import (
	"time"
	"vedtak/internal/models"
)

// HasRetroactiveIncrease reports whether newDecision pays more for some past
// month than the reconciled history of historicalActive did.
//
// Only prior periods starting on or after cutover are trusted. A new period
// with no overlapping prior period is not compared.
func HasRetroactiveIncrease(newDecision models.Decision, historicalActive []models.Decision, now time.Time, cutover models.YearMonth) bool {
	validFrom, ok := newDecision.ValidFrom()
	if !ok || !validFrom.StartsBefore(now) {
		return false
	}

	var prior []models.PaymentPeriod
	for _, p := range Flatten(Reconcile(historicalActive)) {
		if p.ValidFrom.Before(cutover) || !p.ValidFrom.StartsBefore(now) {
			continue
		}
		prior = append(prior, p)
	}

	for _, np := range newDecision.PaymentPeriods() {
		if !np.ValidFrom.StartsBefore(now) {
			continue
		}
		match, found := firstOverlap(np, prior)
		if !found {
			continue
		}
		if np.AmountOrZero() > match.AmountOrZero() {
			return true
		}
	}
	return false
}

func firstOverlap(p models.PaymentPeriod, candidates []models.PaymentPeriod) (models.PaymentPeriod, bool) {
	for _, c := range candidates {
		if p.Overlaps(c) {
			return c, true
		}
	}
	return models.PaymentPeriod{}, false
}
