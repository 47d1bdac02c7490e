package repository

import (
	"context"
	"errors"
	"time"
	"vedtak/internal/models"

	"github.com/google/uuid"
)

// ErrOutboxMessageNotFound is returned when marking an unknown outbox message
var ErrOutboxMessageNotFound = errors.New("outbox message not found")

// DecisionStore is the persistence contract for decisions and everything that
// must commit together with a lifecycle change
type DecisionStore interface {
	// WithTx runs fn in one transaction; a non-nil error from fn rolls it back
	WithTx(ctx context.Context, fn func(DecisionTx) error) error

	Get(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error)
	ListForCase(ctx context.Context, caseID int64) ([]models.Decision, error)
	ListFinalized(ctx context.Context, subjectID string) ([]models.Decision, error)
	ListHistory(ctx context.Context, caseInstanceID uuid.UUID) ([]models.HistoryEntry, error)

	OutboxStore
	RunStore
}

// DecisionTx is the set of writes available inside WithTx
type DecisionTx interface {
	// GetForUpdate reads the decision and locks it until the transaction ends
	GetForUpdate(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error)
	// ListFinalized reads ACTIVE decisions for the subject inside the transaction
	ListFinalized(ctx context.Context, subjectID string) ([]models.Decision, error)

	Upsert(ctx context.Context, decision models.Decision) (UpsertResult, error)
	Transition(ctx context.Context, t Transition) (models.Decision, error)
	Reset(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error)

	AppendHistory(ctx context.Context, entry models.HistoryEntry) error
	EnqueueOutbox(ctx context.Context, msg models.OutboxMessage) error
}

// OutboxStore is used by the dispatcher
type OutboxStore interface {
	// ClaimOutboxDue leases due PENDING messages until leaseUntil. Only the
	// oldest pending message of each case instance is eligible, so delivery
	// order per case instance follows commit order.
	ClaimOutboxDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]models.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkOutboxRetry(ctx context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, lastError string) error
	MarkOutboxDead(ctx context.Context, id uuid.UUID, attempts int, lastError string, at time.Time) error
	CountOutbox(ctx context.Context, status models.OutboxStatus) (int, error)
}

// RunStore keeps automatic-run bookkeeping
type RunStore interface {
	SaveRun(ctx context.Context, run models.AutomaticRun) error
	GetRun(ctx context.Context, caseInstanceID uuid.UUID) (*models.AutomaticRun, error)
	ListRuns(ctx context.Context, phase models.RunPhase, limit int) ([]models.AutomaticRun, error)
}

// UpsertResult reports what an upsert did
type UpsertResult struct {
	Decision models.Decision
	Created  bool
	// Changed is false when content, category and status were already as requested
	Changed bool
}

// Signature stamps maker or attester fields
type Signature struct {
	Actor models.Actor
	At    time.Time
}

// Transition is an atomic status change guarded by the expected current status
type Transition struct {
	CaseInstanceID uuid.UUID
	From           []models.DecisionStatus
	To             models.DecisionStatus
	At             time.Time

	Maker    *Signature
	Attester *Signature
	// ClearSignatures removes both maker and attester fields
	ClearSignatures bool
	// FrozenPeriods replaces the stored clipped periods when non-nil
	FrozenPeriods []models.PaymentPeriod
}

func (t Transition) allows(status models.DecisionStatus) bool {
	for _, s := range t.From {
		if s == status {
			return true
		}
	}
	return false
}

// apply mutates d as the transition describes; callers check allows first
func (t Transition) apply(d *models.Decision) {
	d.Status = t.To
	d.UpdatedAt = t.At

	if t.ClearSignatures {
		d.MadeBy, d.MakerOrgUnit, d.MadeAt = "", "", nil
		d.AttestedBy, d.AttesterOrgUnit, d.AttestedAt = "", "", nil
	}
	if t.Maker != nil {
		at := t.Maker.At
		d.MadeBy, d.MakerOrgUnit, d.MadeAt = t.Maker.Actor.Ident, t.Maker.Actor.OrgUnit, &at
	}
	if t.Attester != nil {
		at := t.Attester.At
		d.AttestedBy, d.AttesterOrgUnit, d.AttestedAt = t.Attester.Actor.Ident, t.Attester.Actor.OrgUnit, &at
	}
	if t.FrozenPeriods != nil {
		d.FrozenPeriods = models.ClonePeriods(t.FrozenPeriods)
	}
}

func staleStatus(t Transition, actual models.DecisionStatus) error {
	return &models.StaleStatusError{
		CaseInstanceID: t.CaseInstanceID,
		Expected:       t.From,
		Actual:         actual,
	}
}

// mergeUpsert applies an upsert request to the existing decision. Identity,
// case references and signatures are kept; content and category are replaced
// and the status returns to DRAFT.
func mergeUpsert(existing models.Decision, incoming models.Decision, at time.Time) (models.Decision, bool, error) {
	if !existing.Status.Mutable() {
		return existing, false, &models.InvalidTransitionError{
			CaseInstanceID: existing.CaseInstanceID,
			Operation:      "update",
			Status:         existing.Status,
		}
	}

	same, err := sameContent(existing.Content, incoming.Content)
	if err != nil {
		return existing, false, err
	}
	if same && existing.Category == incoming.Category && existing.Status == models.StatusDraft {
		return existing, false, nil
	}

	merged := existing.Clone()
	merged.Content = models.CloneContent(incoming.Content)
	merged.Category = incoming.Category
	merged.Status = models.StatusDraft
	merged.UpdatedAt = at
	return merged, true, nil
}

func sameContent(a, b models.DecisionContent) (bool, error) {
	da, err := models.ContentDigest(a)
	if err != nil {
		return false, err
	}
	db, err := models.ContentDigest(b)
	if err != nil {
		return false, err
	}
	return da == db, nil
}
