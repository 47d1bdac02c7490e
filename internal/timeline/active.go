package timeline

import (
	"bytes"
	"time"
	"vedtak/internal/models"
)

// ActiveResult is the answer to IsActiveOn
type ActiveResult struct {
	Active        bool      `json:"active"`
	ReferenceDate time.Time `json:"reference_date"`
}

// IsActiveOn reports whether the subject's benefit is running on date.
//
// The date is first raised to the earliest effective month of any ACTIVE
// decision; the most recently attested decision effective on or before that
// floor decides the answer. When active, ReferenceDate is the floor.
func IsActiveOn(decisions []models.Decision, date time.Time) ActiveResult {
	var active []models.Decision
	for _, d := range decisions {
		if d.Status != models.StatusActive {
			continue
		}
		// repayments carry no effective month and never decide the answer
		if _, ok := d.ValidFrom(); !ok {
			continue
		}
		active = append(active, d)
	}
	if len(active) == 0 {
		return ActiveResult{Active: false, ReferenceDate: date}
	}

	earliest, _ := active[0].ValidFrom()
	for _, d := range active[1:] {
		vf, _ := d.ValidFrom()
		if vf.Before(earliest) {
			earliest = vf
		}
	}

	floor := date
	if earliest.FirstDay().After(date) {
		floor = earliest.FirstDay()
	}

	var latest *models.Decision
	for i := range active {
		d := &active[i]
		vf, _ := d.ValidFrom()
		if vf.FirstDay().After(floor) {
			continue
		}
		if latest == nil || attestedLater(d, latest) {
			latest = d
		}
	}

	if latest == nil || !latest.Category.GrantsBenefit() {
		return ActiveResult{Active: false, ReferenceDate: date}
	}
	return ActiveResult{Active: true, ReferenceDate: floor}
}

func attestedLater(a, b *models.Decision) bool {
	switch {
	case a.AttestedAt == nil:
		return false
	case b.AttestedAt == nil:
		return true
	case !a.AttestedAt.Equal(*b.AttestedAt):
		return a.AttestedAt.After(*b.AttestedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}
