package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"vedtak/internal/models"
	"vedtak/internal/repository"
	"vedtak/internal/rules"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeCases struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]*models.CaseSnapshot
	tasks     []models.Task
	assigned  []models.Task

	refuseSubmit bool
	refuseAttest bool
	refuseReject bool
	err          error
}

func newFakeCases() *fakeCases {
	return &fakeCases{snapshots: make(map[uuid.UUID]*models.CaseSnapshot)}
}

func (f *fakeCases) FetchCase(ctx context.Context, id uuid.UUID) (*models.CaseSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.snapshots[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (f *fakeCases) CanSubmit(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.refuseSubmit, f.err
}

func (f *fakeCases) CanAttest(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.refuseAttest, f.err
}

func (f *fakeCases) CanReject(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.refuseReject, f.err
}

func (f *fakeCases) NotifyTransition(ctx context.Context, id uuid.UUID, status models.DecisionStatus, note models.TransitionNote) error {
	return nil
}

func (f *fakeCases) FetchOpenTasksForCase(ctx context.Context, caseID int64) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, t := range f.tasks {
		if t.CaseID == caseID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeCases) AssignTask(ctx context.Context, task models.Task, actor models.Actor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.AssignedTo = actor.Ident
	task.AssignedOrgUnit = actor.OrgUnit
	f.assigned = append(f.assigned, task)
	for i := range f.tasks {
		if f.tasks[i].ID == task.ID {
			f.tasks[i] = task
		}
	}
	return nil
}

type fakeCalculation struct {
	mu        sync.Mutex
	outcomes  map[uuid.UUID]*models.EligibilityOutcome
	schedules map[uuid.UUID]*models.BenefitSchedule
	claims    map[uuid.UUID]*models.RepaymentContent
}

func newFakeCalculation() *fakeCalculation {
	return &fakeCalculation{
		outcomes:  make(map[uuid.UUID]*models.EligibilityOutcome),
		schedules: make(map[uuid.UUID]*models.BenefitSchedule),
		claims:    make(map[uuid.UUID]*models.RepaymentContent),
	}
}

func (f *fakeCalculation) FetchBenefitSchedule(ctx context.Context, id uuid.UUID) (*models.BenefitSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedules[id], nil
}

func (f *fakeCalculation) FetchEligibilityOutcome(ctx context.Context, id uuid.UUID) (*models.EligibilityOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[id], nil
}

func (f *fakeCalculation) FetchRepaymentClaim(ctx context.Context, id uuid.UUID) (*models.RepaymentContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims[id], nil
}

type fakeCoordination struct {
	mustWait bool
	calls    int
	// onRequest runs while the request is in flight
	onRequest func()
}

func (f *fakeCoordination) RequestCoordination(ctx context.Context, d models.Decision) (models.CoordinationResponse, error) {
	f.calls++
	if f.onRequest != nil {
		f.onRequest()
	}
	return models.CoordinationResponse{MustWait: f.mustWait}, nil
}

type fixture struct {
	store        *repository.MemoryStore
	cases        *fakeCases
	calc         *fakeCalculation
	coordination *fakeCoordination
	svc          *DecisionService
	clock        *time.Time
	kicks        atomic.Int64
}

var (
	maker    = models.Actor{Ident: "S123456", OrgUnit: "4808"}
	attester = models.Actor{Ident: "A654321", OrgUnit: "4808"}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table, err := rules.Default()
	require.NoError(t, err)

	now := time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)
	f := &fixture{
		store:        repository.NewMemoryStore(),
		cases:        newFakeCases(),
		calc:         newFakeCalculation(),
		coordination: &fakeCoordination{},
		clock:        &now,
	}
	f.svc = NewDecisionService(f.store, f.cases, f.calc, f.coordination, table,
		models.MustParseYearMonth("2024-01"),
		WithClock(func() time.Time { return *f.clock }),
		WithCommitHook(func() { f.kicks.Add(1) }),
	)
	return f
}

func (f *fixture) advance(d time.Duration) {
	next := f.clock.Add(d)
	f.clock = &next
}

func amount(v int64) *int64 { return &v }

func ym(s string) models.YearMonth { return models.MustParseYearMonth(s) }

func ymp(s string) *models.YearMonth {
	v := models.MustParseYearMonth(s)
	return &v
}

// approvedCase registers a case instance with an approved outcome paying monthly from validFrom
func (f *fixture) approvedCase(subject string, caseID int64, instanceType models.CaseInstanceType, validFrom string, monthly int64) uuid.UUID {
	id := uuid.New()
	reason := "SOEKNAD"
	if instanceType == models.InstanceTypeRevision {
		reason = "INNTEKTSENDRING"
	}
	f.cases.snapshots[id] = &models.CaseSnapshot{
		CaseInstanceID: id,
		CaseID:         caseID,
		SubjectID:      subject,
		Category:       models.CaseCategoryChildPension,
		InstanceType:   instanceType,
		EffectiveFrom:  ymp(validFrom),
		RevisionReason: reason,
	}
	f.calc.outcomes[id] = &models.EligibilityOutcome{Result: models.OutcomeApproved, Ref: "vilkaar-" + id.String()[:8]}
	f.calc.schedules[id] = &models.BenefitSchedule{
		Ref: "beregning-" + id.String()[:8],
		Periods: []models.PaymentPeriod{
			{ValidFrom: ym(validFrom), Amount: amount(monthly), Kind: models.PeriodKindPayment},
		},
	}
	f.cases.tasks = append(f.cases.tasks, models.Task{
		ID:        "task-" + id.String()[:8],
		CaseID:    caseID,
		Reference: id,
		Kind:      models.TaskKindAttestation,
	})
	return id
}

// activate takes a case instance from nothing to ACTIVE
func (f *fixture) activate(t *testing.T, id uuid.UUID) *models.Decision {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Attest(ctx, id, attester, "")
	require.NoError(t, err)
	d, err := f.svc.Activate(ctx, id, attester)
	require.NoError(t, err)
	return d
}
