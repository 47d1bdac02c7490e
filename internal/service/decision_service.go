package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"vedtak/internal/metrics"
	"vedtak/internal/models"
	"vedtak/internal/observability"
	"vedtak/internal/repository"
	"vedtak/internal/rules"
	"vedtak/internal/timeline"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// DecisionService drives the decision lifecycle. Every successful operation
// commits the decision change, a history row and the outbox messages for the
// case service and the event publisher in one transaction.
type DecisionService struct {
	store        repository.DecisionStore
	cases        CaseService
	calculation  CalculationService
	coordination CoordinationService
	rules        *rules.Table
	cutover      models.YearMonth

	now      func() time.Time
	onCommit func()
	observer metrics.Observer
	tracer   trace.Tracer
}

// Option configures a DecisionService
type Option func(*DecisionService)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *DecisionService) { s.now = now }
}

// WithCommitHook is called after every commit that enqueued outbox messages
func WithCommitHook(fn func()) Option {
	return func(s *DecisionService) { s.onCommit = fn }
}

// WithObserver sets the metrics observer
func WithObserver(o metrics.Observer) Option {
	return func(s *DecisionService) { s.observer = o }
}

// WithTracer sets the tracer
func WithTracer(t trace.Tracer) Option {
	return func(s *DecisionService) { s.tracer = t }
}

// NewDecisionService creates a new decision service
func NewDecisionService(
	store repository.DecisionStore,
	cases CaseService,
	calculation CalculationService,
	coordination CoordinationService,
	table *rules.Table,
	cutover models.YearMonth,
	opts ...Option,
) *DecisionService {
	s := &DecisionService{
		store:        store,
		cases:        cases,
		calculation:  calculation,
		coordination: coordination,
		rules:        table,
		cutover:      cutover,
		now:          time.Now,
		onCommit:     func() {},
		observer:     metrics.Nop{},
		tracer:       observability.NoopTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// begin starts the span and timer for an operation; call the returned func with the final error
func (s *DecisionService) begin(ctx context.Context, operation string, caseInstanceID uuid.UUID) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := observability.StartOperation(ctx, s.tracer, operation, caseInstanceID)
	return ctx, func(err error) {
		s.observer.RecordOperation(operation, time.Since(start), err)
		observability.End(span, err)
		if err != nil {
			slog.Warn("Decision operation failed",
				"operation", operation,
				"case_instance_id", caseInstanceID,
				"code", models.ErrorCode(err),
				"error", err)
		}
	}
}

// change is one lifecycle step to persist
type change struct {
	transition repository.Transition
	event      models.EventType
	actor      models.Actor
	comment    string
	reasonCode string
	notify     bool
	extra      map[string]string
}

// apply persists c in its own transaction and wakes the dispatcher
func (s *DecisionService) apply(ctx context.Context, c change) (*models.Decision, error) {
	var updated models.Decision
	err := s.store.WithTx(ctx, func(tx repository.DecisionTx) error {
		d, err := tx.Transition(ctx, c.transition)
		if err != nil {
			return err
		}
		updated = d
		return s.record(ctx, tx, d, c)
	})
	if err != nil {
		return nil, err
	}
	s.onCommit()
	return &updated, nil
}

// record writes the history row and outbox messages for a committed-to-be change
func (s *DecisionService) record(ctx context.Context, tx repository.DecisionTx, d models.Decision, c change) error {
	now := c.transition.At
	if err := tx.AppendHistory(ctx, models.HistoryEntry{
		DecisionID:     d.ID,
		CaseInstanceID: d.CaseInstanceID,
		Status:         d.Status,
		Event:          c.event,
		Actor:          c.actor.Ident,
		OrgUnit:        c.actor.OrgUnit,
		Comment:        c.comment,
		CreatedAt:      now,
	}); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	if c.notify {
		note := models.CaseNotification{
			CaseInstanceID: d.CaseInstanceID,
			Status:         d.Status,
			Note: models.TransitionNote{
				DecisionID: d.ID,
				Actor:      c.actor,
				At:         now,
				Comment:    c.comment,
				ReasonCode: c.reasonCode,
			},
		}
		if err := enqueue(ctx, tx, models.OutboxCaseNotification, d.CaseInstanceID, note, now); err != nil {
			return err
		}
	}

	event := models.DecisionEvent{
		Type:               c.event,
		CaseInstanceID:     d.CaseInstanceID,
		Decision:           d,
		TechnicalTimestamp: now,
		Extra:              c.extra,
	}
	return enqueue(ctx, tx, models.OutboxDomainEvent, d.CaseInstanceID, event, now)
}

func enqueue(ctx context.Context, tx repository.DecisionTx, kind models.OutboxKind, caseInstanceID uuid.UUID, payload any, now time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	if err := tx.EnqueueOutbox(ctx, models.OutboxMessage{
		ID:             uuid.New(),
		Kind:           kind,
		CaseInstanceID: caseInstanceID,
		Payload:        data,
		Status:         models.OutboxPending,
		NextAttemptAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", kind, err)
	}
	return nil
}

// load returns the stored decision or ErrDecisionNotFound
func (s *DecisionService) load(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	d, err := s.store.Get(ctx, caseInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	if d == nil {
		return nil, models.ErrDecisionNotFound
	}
	return d, nil
}

func requireStatus(d *models.Decision, operation string, allowed ...models.DecisionStatus) error {
	for _, s := range allowed {
		if d.Status == s {
			return nil
		}
	}
	return &models.InvalidTransitionError{CaseInstanceID: d.CaseInstanceID, Operation: operation, Status: d.Status}
}

// CreateOrUpdate recomputes the decision from the case's current calculation
// and eligibility result. Unchanged content is a no-op.
func (s *DecisionService) CreateOrUpdate(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor) (_ *models.Decision, err error) {
	ctx, done := s.begin(ctx, "create_or_update", caseInstanceID)
	defer func() { done(err) }()

	existing, err := s.store.Get(ctx, caseInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	if existing != nil && !existing.Status.Mutable() {
		return nil, &models.InvalidTransitionError{CaseInstanceID: caseInstanceID, Operation: "update", Status: existing.Status}
	}

	draft, err := s.draft(ctx, caseInstanceID)
	if err != nil {
		return nil, err
	}

	var result repository.UpsertResult
	err = s.store.WithTx(ctx, func(tx repository.DecisionTx) error {
		var err error
		result, err = tx.Upsert(ctx, draft)
		if err != nil {
			return err
		}
		if !result.Changed {
			return nil
		}
		return s.record(ctx, tx, result.Decision, change{
			transition: repository.Transition{At: draft.UpdatedAt},
			event:      models.EventCreated,
			actor:      actor,
		})
	})
	if err != nil {
		return nil, err
	}
	if result.Changed {
		s.onCommit()
		slog.Info("Decision drafted",
			"case_instance_id", caseInstanceID,
			"category", result.Decision.Category,
			"created", result.Created)
	}
	return &result.Decision, nil
}

// Submit hands the decision over for attestation and stamps the maker
func (s *DecisionService) Submit(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor) (_ *models.Decision, err error) {
	ctx, done := s.begin(ctx, "submit", caseInstanceID)
	defer func() { done(err) }()

	d, err := s.load(ctx, caseInstanceID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(d, "submit", models.StatusDraft, models.StatusReturned); err != nil {
		return nil, err
	}
	if d.Category.GrantsBenefit() && len(d.PaymentPeriods()) == 0 {
		return nil, &models.MissingPrerequisiteError{CaseInstanceID: caseInstanceID, What: "payment periods"}
	}

	ok, err := s.cases.CanSubmit(ctx, caseInstanceID)
	if err != nil {
		return nil, external("case", "can_submit", err)
	}
	if !ok {
		return nil, &models.InvalidTransitionError{CaseInstanceID: caseInstanceID, Operation: "submit", Status: d.Status, Reason: "refused by case service"}
	}

	now := s.now()
	return s.apply(ctx, change{
		transition: repository.Transition{
			CaseInstanceID: caseInstanceID,
			From:           []models.DecisionStatus{models.StatusDraft, models.StatusReturned},
			To:             models.StatusSubmitted,
			At:             now,
			Maker:          &repository.Signature{Actor: actor, At: now},
		},
		event:  models.EventSubmitted,
		actor:  actor,
		notify: true,
	})
}

// Attest approves a submitted decision. The attester must differ from the
// maker; the clipped periods the decision will own on the subject's timeline
// are frozen with it.
func (s *DecisionService) Attest(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor, comment string) (_ *models.Decision, err error) {
	ctx, done := s.begin(ctx, "attest", caseInstanceID)
	defer func() { done(err) }()

	d, err := s.load(ctx, caseInstanceID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(d, "attest", models.StatusSubmitted); err != nil {
		return nil, err
	}
	if actor.Ident == d.MadeBy {
		return nil, &models.SameActorError{CaseInstanceID: caseInstanceID, Actor: actor.Ident}
	}

	ok, err := s.cases.CanAttest(ctx, caseInstanceID)
	if err != nil {
		return nil, external("case", "can_attest", err)
	}
	if !ok {
		return nil, &models.InvalidTransitionError{CaseInstanceID: caseInstanceID, Operation: "attest", Status: d.Status, Reason: "refused by case service"}
	}

	snapshot, err := s.cases.FetchCase(ctx, caseInstanceID)
	if err != nil {
		return nil, external("case", "fetch_case", err)
	}
	if snapshot == nil {
		return nil, &models.MissingPrerequisiteError{CaseInstanceID: caseInstanceID, What: "case"}
	}
	reason := snapshot.RevisionReason
	if err := s.rules.CheckCategory(reason, d.Category); err != nil {
		return nil, err
	}

	now := s.now()
	var updated models.Decision
	err = s.store.WithTx(ctx, func(tx repository.DecisionTx) error {
		finalized, err := tx.ListFinalized(ctx, d.SubjectID)
		if err != nil {
			return fmt.Errorf("failed to list finalized decisions: %w", err)
		}

		candidate := d.Clone()
		candidate.AttestedAt = &now
		var frozen []models.PaymentPeriod
		if d.Category.BenefitBearing() {
			frozen = timeline.OwnedPeriods(timeline.ReconcileWithCandidate(finalized, candidate), candidate)
			if frozen == nil {
				frozen = []models.PaymentPeriod{}
			}
		}
		retroactive := timeline.HasRetroactiveIncrease(candidate, finalized, now, s.cutover)

		c := change{
			transition: repository.Transition{
				CaseInstanceID: caseInstanceID,
				From:           []models.DecisionStatus{models.StatusSubmitted},
				To:             models.StatusAttested,
				At:             now,
				Attester:       &repository.Signature{Actor: actor, At: now},
				FrozenPeriods:  frozen,
			},
			event:   models.EventAttested,
			actor:   actor,
			comment: comment,
			notify:  true,
			extra: map[string]string{
				models.ExtraSendLetter:          strconv.FormatBool(s.rules.SendLetter(reason)),
				models.ExtraRetroactiveIncrease: strconv.FormatBool(retroactive),
				models.ExtraRevisionReason:      reason,
			},
		}
		updated, err = tx.Transition(ctx, c.transition)
		if err != nil {
			return err
		}
		return s.record(ctx, tx, updated, c)
	})
	if err != nil {
		return nil, err
	}
	s.onCommit()
	return &updated, nil
}

// Reject returns a submitted decision to the maker and clears both signatures
func (s *DecisionService) Reject(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor, comment, reasonCode string) (_ *models.Decision, err error) {
	ctx, done := s.begin(ctx, "reject", caseInstanceID)
	defer func() { done(err) }()

	d, err := s.load(ctx, caseInstanceID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(d, "reject", models.StatusSubmitted); err != nil {
		return nil, err
	}

	ok, err := s.cases.CanReject(ctx, caseInstanceID)
	if err != nil {
		return nil, external("case", "can_reject", err)
	}
	if !ok {
		return nil, &models.InvalidTransitionError{CaseInstanceID: caseInstanceID, Operation: "reject", Status: d.Status, Reason: "refused by case service"}
	}

	return s.apply(ctx, change{
		transition: repository.Transition{
			CaseInstanceID:  caseInstanceID,
			From:            []models.DecisionStatus{models.StatusSubmitted},
			To:              models.StatusReturned,
			At:              s.now(),
			ClearSignatures: true,
		},
		event:      models.EventRejected,
		actor:      actor,
		comment:    comment,
		reasonCode: reasonCode,
		notify:     true,
		extra: map[string]string{
			models.ExtraRejectReason: reasonCode,
		},
	})
}

// SendToCoordination asks the coordination service to reconcile overlapping
// entitlements. When it answers that no wait is needed the decision moves on
// to COORDINATED in the same call.
func (s *DecisionService) SendToCoordination(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor) (_ *models.Decision, err error) {
	ctx, done := s.begin(ctx, "send_to_coordination", caseInstanceID)
	defer func() { done(err) }()

	d, err := s.load(ctx, caseInstanceID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(d, "send to coordination", models.StatusAttested); err != nil {
		return nil, err
	}

	resp, err := s.coordination.RequestCoordination(ctx, *d)
	if err != nil {
		return nil, external("coordination", "request_coordination", err)
	}

	updated, err := s.apply(ctx, change{
		transition: repository.Transition{
			CaseInstanceID: caseInstanceID,
			From:           []models.DecisionStatus{models.StatusAttested},
			To:             models.StatusToCoordinate,
			At:             s.now(),
		},
		event:  models.EventToCoordinate,
		actor:  actor,
		notify: true,
	})
	if err != nil {
		var stale *models.StaleStatusError
		if errors.As(err, &stale) {
			// the request has already reached the coordination service
			slog.Warn("Coordination requested but decision changed concurrently",
				"case_instance_id", caseInstanceID,
				"status", stale.Actual,
				"must_wait", resp.MustWait,
			)
		}
		return nil, err
	}
	if resp.MustWait {
		return updated, nil
	}
	return s.Coordinated(ctx, caseInstanceID, actor)
}

// Coordinated records that coordination has completed
func (s *DecisionService) Coordinated(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor) (_ *models.Decision, err error) {
	ctx, done := s.begin(ctx, "coordinated", caseInstanceID)
	defer func() { done(err) }()

	d, err := s.load(ctx, caseInstanceID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(d, "mark coordinated", models.StatusToCoordinate); err != nil {
		return nil, err
	}

	return s.apply(ctx, change{
		transition: repository.Transition{
			CaseInstanceID: caseInstanceID,
			From:           []models.DecisionStatus{models.StatusToCoordinate},
			To:             models.StatusCoordinated,
			At:             s.now(),
		},
		event:  models.EventCoordinated,
		actor:  actor,
		notify: true,
	})
}

// Activate makes the decision final and visible to timeline reconciliation
func (s *DecisionService) Activate(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor) (_ *models.Decision, err error) {
	ctx, done := s.begin(ctx, "activate", caseInstanceID)
	defer func() { done(err) }()

	d, err := s.load(ctx, caseInstanceID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(d, "activate", models.StatusAttested, models.StatusCoordinated); err != nil {
		return nil, err
	}

	return s.apply(ctx, change{
		transition: repository.Transition{
			CaseInstanceID: caseInstanceID,
			From:           []models.DecisionStatus{models.StatusAttested, models.StatusCoordinated},
			To:             models.StatusActive,
			At:             s.now(),
		},
		event:  models.EventActivated,
		actor:  actor,
		notify: true,
	})
}

// Reset deletes a decision that is not yet ACTIVE and returns its last state
func (s *DecisionService) Reset(ctx context.Context, caseInstanceID uuid.UUID, actor models.Actor, comment string) (_ *models.Decision, err error) {
	ctx, done := s.begin(ctx, "reset", caseInstanceID)
	defer func() { done(err) }()

	now := s.now()
	var removed *models.Decision
	err = s.store.WithTx(ctx, func(tx repository.DecisionTx) error {
		d, err := tx.Reset(ctx, caseInstanceID)
		if err != nil {
			return err
		}
		if d == nil {
			return models.ErrDecisionNotFound
		}
		removed = d
		return s.record(ctx, tx, *d, change{
			transition: repository.Transition{At: now},
			event:      models.EventReset,
			actor:      actor,
			comment:    comment,
		})
	})
	if err != nil {
		return nil, err
	}
	s.onCommit()
	slog.Info("Decision reset", "case_instance_id", caseInstanceID, "status", removed.Status, "actor", actor.Ident)
	return removed, nil
}

// Get returns the decision for a case instance
func (s *DecisionService) Get(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	return s.load(ctx, caseInstanceID)
}

// ListForCase returns every decision made in a case
func (s *DecisionService) ListForCase(ctx context.Context, caseID int64) ([]models.Decision, error) {
	decisions, err := s.store.ListForCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	return decisions, nil
}

// History returns the lifecycle history of a case instance, oldest first
func (s *DecisionService) History(ctx context.Context, caseInstanceID uuid.UUID) ([]models.HistoryEntry, error) {
	entries, err := s.store.ListHistory(ctx, caseInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// Timeline reconciles the subject's ACTIVE decisions
func (s *DecisionService) Timeline(ctx context.Context, subjectID string) ([]timeline.Entry, error) {
	finalized, err := s.store.ListFinalized(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list finalized decisions: %w", err)
	}
	return timeline.Reconcile(finalized), nil
}

// IsActiveOn reports whether the subject has a running benefit on date
func (s *DecisionService) IsActiveOn(ctx context.Context, subjectID string, date time.Time) (timeline.ActiveResult, error) {
	finalized, err := s.store.ListFinalized(ctx, subjectID)
	if err != nil {
		return timeline.ActiveResult{}, fmt.Errorf("failed to list finalized decisions: %w", err)
	}
	return timeline.IsActiveOn(finalized, date), nil
}

// RetroactiveIncrease reports whether the decision pays more for past months
// than the decisions attested before it
func (s *DecisionService) RetroactiveIncrease(ctx context.Context, caseInstanceID uuid.UUID) (bool, error) {
	d, err := s.load(ctx, caseInstanceID)
	if err != nil {
		return false, err
	}
	finalized, err := s.store.ListFinalized(ctx, d.SubjectID)
	if err != nil {
		return false, fmt.Errorf("failed to list finalized decisions: %w", err)
	}

	historical := make([]models.Decision, 0, len(finalized))
	for _, f := range finalized {
		if f.ID == d.ID {
			continue
		}
		if d.AttestedAt != nil && f.AttestedAt != nil && !f.AttestedAt.Before(*d.AttestedAt) {
			continue
		}
		historical = append(historical, f)
	}
	return timeline.HasRetroactiveIncrease(*d, historical, s.now(), s.cutover), nil
}
