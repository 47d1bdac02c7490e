package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"vedtak/internal/metrics"
	"vedtak/internal/models"
	"vedtak/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const automaticComment = "automatic attestation"

// AutomaticService runs the maker, submit, assign and attest steps without a
// human, split into phases that can be paused and re-invoked
type AutomaticService struct {
	decisions *DecisionService
	cases     CaseService
	runs      repository.RunStore
	maker     models.Actor
	attester  models.Actor
	observer  metrics.Observer
}

// NewAutomaticService creates a new automatic service. maker and attester must differ.
func NewAutomaticService(
	decisions *DecisionService,
	cases CaseService,
	runs repository.RunStore,
	maker models.Actor,
	attester models.Actor,
	observer metrics.Observer,
) *AutomaticService {
	if observer == nil {
		observer = metrics.Nop{}
	}
	return &AutomaticService{
		decisions: decisions,
		cases:     cases,
		runs:      runs,
		maker:     maker,
		attester:  attester,
		observer:  observer,
	}
}

// Run executes the phases selected by mode. Steps whose effect is already
// stored are skipped, so a failed phase can be re-invoked as is.
func (s *AutomaticService) Run(ctx context.Context, caseInstanceID uuid.UUID, mode models.RunMode) (_ *models.Decision, err error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown run mode %q", mode)
	}
	defer func() { s.observer.RecordAutomaticRun(mode, err) }()

	s.saveRun(ctx, caseInstanceID, mode, models.RunPhaseStarted, nil)

	var d *models.Decision
	phase := models.RunPhaseCompleted
	switch mode {
	case models.RunModeFull:
		if d, err = s.prepare(ctx, caseInstanceID); err == nil {
			d, err = s.attest(ctx, caseInstanceID)
		}
	case models.RunModeRunThenPause:
		d, err = s.prepare(ctx, caseInstanceID)
		phase = models.RunPhasePaused
	case models.RunModeResumeAfterPause:
		d, err = s.attest(ctx, caseInstanceID)
	}

	if err != nil {
		s.saveRun(ctx, caseInstanceID, mode, models.RunPhaseFailed, err)
		return nil, err
	}
	s.saveRun(ctx, caseInstanceID, mode, phase, nil)
	return d, nil
}

// prepare creates, submits and assigns. A decision already submitted only gets its task re-assigned.
func (s *AutomaticService) prepare(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	d, err := s.current(ctx, caseInstanceID)
	if err != nil {
		return nil, err
	}
	if d != nil && !d.Status.Mutable() && d.Status != models.StatusSubmitted {
		return d, nil
	}

	if d == nil || d.Status.Mutable() {
		if _, err := s.decisions.CreateOrUpdate(ctx, caseInstanceID, s.maker); err != nil {
			return nil, fmt.Errorf("automatic create: %w", err)
		}
		if d, err = s.decisions.Submit(ctx, caseInstanceID, s.maker); err != nil {
			return nil, fmt.Errorf("automatic submit: %w", err)
		}
	}

	if err := s.assign(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// assign hands the open attestation task to the system attester
func (s *AutomaticService) assign(ctx context.Context, d *models.Decision) error {
	tasks, err := s.cases.FetchOpenTasksForCase(ctx, d.CaseID)
	if err != nil {
		return external("case", "fetch_open_tasks", err)
	}
	for _, task := range tasks {
		if task.Reference != d.CaseInstanceID || task.Kind != models.TaskKindAttestation {
			continue
		}
		if task.AssignedTo == s.attester.Ident {
			return nil
		}
		if err := s.cases.AssignTask(ctx, task, s.attester); err != nil {
			return external("case", "assign_task", err)
		}
		return nil
	}
	return &models.MissingPrerequisiteError{CaseInstanceID: d.CaseInstanceID, What: "open attestation task"}
}

// attest attests as the system attester. An already attested decision is returned unchanged.
func (s *AutomaticService) attest(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	d, err := s.current(ctx, caseInstanceID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, models.ErrDecisionNotFound
	}
	if d.Status != models.StatusSubmitted && !d.Status.Mutable() {
		return d, nil
	}
	d, err = s.decisions.Attest(ctx, caseInstanceID, s.attester, automaticComment)
	if err != nil {
		return nil, fmt.Errorf("automatic attest: %w", err)
	}
	return d, nil
}

func (s *AutomaticService) current(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	d, err := s.decisions.Get(ctx, caseInstanceID)
	if errors.Is(err, models.ErrDecisionNotFound) {
		return nil, nil
	}
	return d, err
}

func (s *AutomaticService) saveRun(ctx context.Context, caseInstanceID uuid.UUID, mode models.RunMode, phase models.RunPhase, runErr error) {
	now := s.decisions.now()
	run := models.AutomaticRun{
		CaseInstanceID: caseInstanceID,
		Mode:           mode,
		Phase:          phase,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if runErr != nil {
		msg := runErr.Error()
		run.LastError = &msg
	}
	if err := s.runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Error("Failed to save automatic run", "case_instance_id", caseInstanceID, "phase", phase, "error", err)
	}
}

// RunOutcome is the result of one case instance in a batch
type RunOutcome struct {
	CaseInstanceID uuid.UUID
	Decision       *models.Decision
	Err            error
}

// RunBatch runs mode for every id with at most parallelism runs in flight.
// Failures are collected per case instance; only cancellation fails the batch.
func (s *AutomaticService) RunBatch(ctx context.Context, ids []uuid.UUID, mode models.RunMode, parallelism int) ([]RunOutcome, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	outcomes := make([]RunOutcome, len(ids))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			d, err := s.Run(ctx, id, mode)
			outcomes[i] = RunOutcome{CaseInstanceID: id, Decision: d, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return outcomes, err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	slog.Info("Automatic batch finished", "mode", mode, "total", len(ids), "failed", failed)
	return outcomes, nil
}

// ResumePaused resumes up to limit paused runs
func (s *AutomaticService) ResumePaused(ctx context.Context, limit, parallelism int) ([]RunOutcome, error) {
	paused, err := s.runs.ListRuns(ctx, models.RunPhasePaused, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list paused runs: %w", err)
	}
	ids := make([]uuid.UUID, len(paused))
	for i, run := range paused {
		ids[i] = run.CaseInstanceID
	}
	return s.RunBatch(ctx, ids, models.RunModeResumeAfterPause, parallelism)
}
