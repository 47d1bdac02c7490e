// Package timeline merges a subject's decisions into one canonical,
// non-overlapping validity history and answers questions against it.
//
// Every function here is pure: inputs are copied before sorting and nothing
// is retained between calls, so callers may share decision slices freely.
package timeline

import (
	"bytes"
	"sort"
	"vedtak/internal/models"
)

// Window is an inclusive month range; a nil To means open-ended
type Window struct {
	From models.YearMonth  `json:"from"`
	To   *models.YearMonth `json:"to,omitempty"`
}

// Contains reports whether the month falls inside the window
func (w Window) Contains(ym models.YearMonth) bool {
	if ym.Before(w.From) {
		return false
	}
	return w.To == nil || !ym.After(*w.To)
}

// Entry is one retained decision and the part of its schedule it still governs
type Entry struct {
	Window   Window                 `json:"window"`
	Decision models.Decision        `json:"decision"`
	Periods  []models.PaymentPeriod `json:"periods"`
}

// Reconcile builds the canonical timeline from the ACTIVE, benefit-bearing
// decisions in the input. The most recently attested decision wins every month
// it covers; an older decision keeps only the months before the earliest month
// any newer decision reaches back to. Entries are ordered by window start.
func Reconcile(decisions []models.Decision) []Entry {
	return reconcile(decisions, nil)
}

// ReconcileWithCandidate reconciles the finalized decisions as if candidate had
// already been activated, which is how an attestation sees the timeline it is
// about to change. The candidate must carry AttestedAt.
func ReconcileWithCandidate(finalized []models.Decision, candidate models.Decision) []Entry {
	return reconcile(finalized, &candidate)
}

// OwnedPeriods returns the clipped periods the decision owns in the timeline,
// or nil when it was fully superseded
func OwnedPeriods(entries []Entry, decision models.Decision) []models.PaymentPeriod {
	for _, e := range entries {
		if e.Decision.ID == decision.ID {
			return models.ClonePeriods(e.Periods)
		}
	}
	return nil
}

func reconcile(decisions []models.Decision, candidate *models.Decision) []Entry {
	eligible := make([]models.Decision, 0, len(decisions)+1)
	for _, d := range decisions {
		if d.Status != models.StatusActive {
			continue
		}
		if candidate != nil && d.ID == candidate.ID {
			continue
		}
		if governsTimeline(d) {
			eligible = append(eligible, d.Clone())
		}
	}
	if candidate != nil && governsTimeline(*candidate) {
		eligible = append(eligible, candidate.Clone())
	}

	sortByRecency(eligible)

	var (
		retained []Entry
		boundary *models.YearMonth
	)
	for _, d := range eligible {
		validFrom, _ := d.ValidFrom()
		if boundary != nil && !validFrom.Before(*boundary) {
			continue
		}

		window := Window{From: validFrom}
		if boundary != nil {
			to := boundary.AddMonths(-1)
			window.To = &to
		}
		retained = append(retained, Entry{
			Window:   window,
			Decision: d,
			Periods:  clip(d.PaymentPeriods(), window),
		})

		b := validFrom
		boundary = &b
	}

	// retained is newest-first, which is also descending window start
	for i, j := 0, len(retained)-1; i < j; i, j = i+1, j-1 {
		retained[i], retained[j] = retained[j], retained[i]
	}
	return retained
}

func governsTimeline(d models.Decision) bool {
	if !d.Category.BenefitBearing() || d.AttestedAt == nil {
		return false
	}
	_, ok := d.ValidFrom()
	return ok
}

// sortByRecency orders by attestedAt descending, then by id for a total order
func sortByRecency(decisions []models.Decision) {
	sort.SliceStable(decisions, func(i, j int) bool {
		ai, aj := decisions[i].AttestedAt, decisions[j].AttestedAt
		if !ai.Equal(*aj) {
			return ai.After(*aj)
		}
		return bytes.Compare(decisions[i].ID[:], decisions[j].ID[:]) < 0
	})
}

// clip drops periods starting after the window's end and truncates the one
// that runs past it
func clip(periods []models.PaymentPeriod, window Window) []models.PaymentPeriod {
	out := make([]models.PaymentPeriod, 0, len(periods))
	for _, p := range models.ClonePeriods(periods) {
		if window.To == nil {
			out = append(out, p)
			continue
		}
		if p.ValidFrom.After(*window.To) {
			continue
		}
		if p.ValidTo == nil || p.ValidTo.After(*window.To) {
			to := *window.To
			p.ValidTo = &to
		}
		out = append(out, p)
	}
	return out
}

// Flatten returns every clipped period of the timeline in window order
func Flatten(entries []Entry) []models.PaymentPeriod {
	var out []models.PaymentPeriod
	for _, e := range entries {
		out = append(out, models.ClonePeriods(e.Periods)...)
	}
	return out
}
