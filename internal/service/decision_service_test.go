package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
	"vedtak/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEvents(t *testing.T, msgs []models.OutboxMessage) []models.DecisionEvent {
	t.Helper()
	var events []models.DecisionEvent
	for _, m := range msgs {
		if m.Kind != models.OutboxDomainEvent {
			continue
		}
		var e models.DecisionEvent
		require.NoError(t, json.Unmarshal(m.Payload, &e))
		events = append(events, e)
	}
	return events
}

func decodeNotifications(t *testing.T, msgs []models.OutboxMessage) []models.CaseNotification {
	t.Helper()
	var notes []models.CaseNotification
	for _, m := range msgs {
		if m.Kind != models.OutboxCaseNotification {
			continue
		}
		var n models.CaseNotification
		require.NoError(t, json.Unmarshal(m.Payload, &n))
		notes = append(notes, n)
	}
	return notes
}

func TestDeriveCategory(t *testing.T) {
	tests := []struct {
		instanceType models.CaseInstanceType
		result       models.OutcomeResult
		want         models.DecisionCategory
	}{
		{models.InstanceTypeFirstTime, models.OutcomeApproved, models.CategoryApproval},
		{models.InstanceTypeFirstTime, models.OutcomeDenied, models.CategoryDenial},
		{models.InstanceTypeRevision, models.OutcomeApproved, models.CategoryChange},
		{models.InstanceTypeRevision, models.OutcomeDenied, models.CategoryCessation},
		{models.InstanceTypeRepayment, models.OutcomeApproved, models.CategoryRepayment},
	}
	for _, tt := range tests {
		t.Run(string(tt.instanceType)+"_"+string(tt.result), func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveCategory(tt.instanceType, tt.result))
		})
	}
}

func TestCreateOrUpdate_DraftsApproval(t *testing.T) {
	f := newFixture(t)
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)

	d, err := f.svc.CreateOrUpdate(context.Background(), id, maker)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, d.ID)
	assert.Equal(t, models.StatusDraft, d.Status)
	assert.Equal(t, models.CategoryApproval, d.Category)
	vf, ok := d.ValidFrom()
	require.True(t, ok)
	assert.Equal(t, ym("2024-01"), vf)
	require.Len(t, d.PaymentPeriods(), 1)
	assert.Equal(t, int64(1000), d.PaymentPeriods()[0].AmountOrZero())

	history, err := f.svc.History(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.EventCreated, history[0].Event)
	assert.Equal(t, maker.Ident, history[0].Actor)

	events := decodeEvents(t, f.store.Outbox())
	require.Len(t, events, 1)
	assert.Equal(t, models.EventCreated, events[0].Type)
	assert.Empty(t, decodeNotifications(t, f.store.Outbox()))
	assert.Equal(t, int64(1), f.kicks.Load())
}

func TestCreateOrUpdate_IdempotentWhenUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)

	first, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	f.advance(time.Hour)
	second, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	history, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Len(t, f.store.Outbox(), 1)
	assert.Equal(t, int64(1), f.kicks.Load())
}

func TestCreateOrUpdate_RecomputesChangedContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)

	first, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)

	f.calc.schedules[id].Periods[0].Amount = amount(1100)
	second, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1100), second.PaymentPeriods()[0].AmountOrZero())
	history, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCreateOrUpdate_MissingPrerequisites(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture, id uuid.UUID)
	}{
		{
			name:  "no case",
			setup: func(f *fixture, id uuid.UUID) { delete(f.cases.snapshots, id) },
		},
		{
			name:  "no effective date",
			setup: func(f *fixture, id uuid.UUID) { f.cases.snapshots[id].EffectiveFrom = nil },
		},
		{
			name:  "no eligibility outcome",
			setup: func(f *fixture, id uuid.UUID) { delete(f.calc.outcomes, id) },
		},
		{
			name:  "approved without schedule",
			setup: func(f *fixture, id uuid.UUID) { delete(f.calc.schedules, id) },
		},
		{
			name:  "approved with empty schedule",
			setup: func(f *fixture, id uuid.UUID) { f.calc.schedules[id].Periods = nil },
		},
		{
			name: "repayment without claim",
			setup: func(f *fixture, id uuid.UUID) {
				f.cases.snapshots[id].InstanceType = models.InstanceTypeRepayment
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
			tt.setup(f, id)

			_, err := f.svc.CreateOrUpdate(context.Background(), id, maker)
			var missing *models.MissingPrerequisiteError
			require.ErrorAs(t, err, &missing)

			d, err := f.store.Get(context.Background(), id)
			require.NoError(t, err)
			assert.Nil(t, d)
			assert.Empty(t, f.store.Outbox())
		})
	}
}

func TestCreateOrUpdate_DenialWithoutSchedule(t *testing.T) {
	f := newFixture(t)
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
	f.calc.outcomes[id].Result = models.OutcomeDenied
	delete(f.calc.schedules, id)

	d, err := f.svc.CreateOrUpdate(context.Background(), id, maker)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDenial, d.Category)
	assert.Empty(t, d.PaymentPeriods())
}

func TestCreateOrUpdate_CessationGetsMarkerPeriod(t *testing.T) {
	f := newFixture(t)
	id := f.approvedCase("12345678901", 1, models.InstanceTypeRevision, "2024-04", 0)
	f.calc.outcomes[id].Result = models.OutcomeDenied
	delete(f.calc.schedules, id)

	d, err := f.svc.CreateOrUpdate(context.Background(), id, maker)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryCessation, d.Category)
	require.Len(t, d.PaymentPeriods(), 1)
	assert.Equal(t, models.PeriodKindCessation, d.PaymentPeriods()[0].Kind)
	assert.Nil(t, d.PaymentPeriods()[0].Amount)
}

func TestCreateOrUpdate_Repayment(t *testing.T) {
	f := newFixture(t)
	id := f.approvedCase("12345678901", 1, models.InstanceTypeRepayment, "2024-01", 0)
	f.calc.claims[id] = &models.RepaymentContent{
		Periods: []models.RepaymentPeriod{
			{Month: ym("2023-11"), PaidAmount: 1000, DueAmount: 600, ClaimAmount: 400, TaxAmount: 120},
		},
		TotalClaim: 400,
		ClaimRef:   "kravgrunnlag-1",
	}

	d, err := f.svc.CreateOrUpdate(context.Background(), id, maker)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryRepayment, d.Category)
	content, ok := d.Content.(models.RepaymentContent)
	require.True(t, ok)
	assert.Equal(t, int64(400), content.TotalClaim)
}

func TestCreateOrUpdate_FrozenAfterSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)

	_, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)

	_, err = f.svc.CreateOrUpdate(ctx, id, maker)
	var invalid *models.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.StatusSubmitted, invalid.Status)
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
	_, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)

	d, err := f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)

	assert.Equal(t, models.StatusSubmitted, d.Status)
	assert.Equal(t, maker.Ident, d.MadeBy)
	assert.Equal(t, maker.OrgUnit, d.MakerOrgUnit)
	require.NotNil(t, d.MadeAt)
	assert.Equal(t, *f.clock, *d.MadeAt)

	outbox := f.store.Outbox()
	require.Len(t, outbox, 3)
	assert.Equal(t, models.OutboxCaseNotification, outbox[1].Kind)
	assert.Equal(t, models.OutboxDomainEvent, outbox[2].Kind)
	assert.Less(t, outbox[1].Seq, outbox[2].Seq)

	notes := decodeNotifications(t, outbox)
	require.Len(t, notes, 1)
	assert.Equal(t, models.StatusSubmitted, notes[0].Status)
	assert.Equal(t, d.ID, notes[0].Note.DecisionID)

	events := decodeEvents(t, outbox)
	assert.Equal(t, models.EventSubmitted, events[1].Type)
	assert.Equal(t, models.StatusSubmitted, events[1].Decision.Status)
	assert.Equal(t, *f.clock, events[1].TechnicalTimestamp)
}

func TestSubmit_Guards(t *testing.T) {
	t.Run("refused by case service", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
		_, err := f.svc.CreateOrUpdate(ctx, id, maker)
		require.NoError(t, err)
		f.cases.refuseSubmit = true

		_, err = f.svc.Submit(ctx, id, maker)
		var invalid *models.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.NotEmpty(t, invalid.Reason)

		d, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDraft, d.Status)
		assert.Len(t, f.store.Outbox(), 1)
	})

	t.Run("case service failure", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
		_, err := f.svc.CreateOrUpdate(ctx, id, maker)
		require.NoError(t, err)
		f.cases.err = errors.New("connection refused")

		_, err = f.svc.Submit(ctx, id, maker)
		var ext *models.ExternalServiceError
		require.ErrorAs(t, err, &ext)
		assert.Equal(t, models.CodeExternalService, models.ErrorCode(err))

		d, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDraft, d.Status)
	})

	t.Run("unknown decision", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Submit(context.Background(), uuid.New(), maker)
		assert.ErrorIs(t, err, models.ErrDecisionNotFound)
	})
}

func TestAttest_SameActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
	_, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)

	sameIdentOtherUnit := models.Actor{Ident: maker.Ident, OrgUnit: "0001"}
	_, err = f.svc.Attest(ctx, id, sameIdentOtherUnit, "")
	var same *models.SameActorError
	require.ErrorAs(t, err, &same)

	d, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, d.Status)
	assert.Empty(t, d.AttestedBy)
}

func TestAttest_IncompatibleCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeRevision, "2024-03", 1200)
	f.cases.snapshots[id].RevisionReason = "DOEDSFALL"

	_, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)

	_, err = f.svc.Attest(ctx, id, attester, "")
	var incompatible *models.IncompatibleCategoryError
	require.ErrorAs(t, err, &incompatible)
	assert.Equal(t, models.CategoryChange, incompatible.Category)
	assert.Equal(t, "DOEDSFALL", incompatible.RevisionReason)
}

func TestAttest_FreezesPeriodsAndFlagsRetroactiveIncrease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	subject := "12345678901"

	first := f.approvedCase(subject, 1, models.InstanceTypeFirstTime, "2024-01", 1000)
	f.activate(t, first)
	f.advance(24 * time.Hour)

	revision := f.approvedCase(subject, 1, models.InstanceTypeRevision, "2024-03", 1200)
	_, err := f.svc.CreateOrUpdate(ctx, revision, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, revision, maker)
	require.NoError(t, err)

	d, err := f.svc.Attest(ctx, revision, attester, "ok")
	require.NoError(t, err)

	assert.Equal(t, models.StatusAttested, d.Status)
	assert.Equal(t, attester.Ident, d.AttestedBy)
	require.Len(t, d.FrozenPeriods, 1)
	assert.Equal(t, ym("2024-03"), d.FrozenPeriods[0].ValidFrom)
	assert.Nil(t, d.FrozenPeriods[0].ValidTo)
	assert.Equal(t, int64(1200), d.FrozenPeriods[0].AmountOrZero())

	events := decodeEvents(t, f.store.Outbox())
	last := events[len(events)-1]
	assert.Equal(t, models.EventAttested, last.Type)
	assert.Equal(t, revision, last.CaseInstanceID)
	assert.Equal(t, "true", last.Extra[models.ExtraRetroactiveIncrease])
	assert.Equal(t, "true", last.Extra[models.ExtraSendLetter])
	assert.Equal(t, "INNTEKTSENDRING", last.Extra[models.ExtraRevisionReason])

	increase, err := f.svc.RetroactiveIncrease(ctx, revision)
	require.NoError(t, err)
	assert.True(t, increase)
}

func TestAttest_NoIncreaseWhenAmountUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	subject := "12345678901"

	f.activate(t, f.approvedCase(subject, 1, models.InstanceTypeFirstTime, "2024-01", 1000))
	f.advance(24 * time.Hour)

	revision := f.approvedCase(subject, 1, models.InstanceTypeRevision, "2024-03", 1000)
	_, err := f.svc.CreateOrUpdate(ctx, revision, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, revision, maker)
	require.NoError(t, err)
	_, err = f.svc.Attest(ctx, revision, attester, "")
	require.NoError(t, err)

	events := decodeEvents(t, f.store.Outbox())
	assert.Equal(t, "false", events[len(events)-1].Extra[models.ExtraRetroactiveIncrease])
}

func TestReject_ClearsSignaturesAndAllowsResubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
	_, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)

	d, err := f.svc.Reject(ctx, id, attester, "feil sats", "FEIL_I_BEREGNING")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, d.Status)
	assert.Empty(t, d.MadeBy)
	assert.Nil(t, d.MadeAt)
	assert.Empty(t, d.AttestedBy)

	notes := decodeNotifications(t, f.store.Outbox())
	lastNote := notes[len(notes)-1]
	assert.Equal(t, models.StatusReturned, lastNote.Status)
	assert.Equal(t, "feil sats", lastNote.Note.Comment)
	assert.Equal(t, "FEIL_I_BEREGNING", lastNote.Note.ReasonCode)

	events := decodeEvents(t, f.store.Outbox())
	assert.Equal(t, models.EventRejected, events[len(events)-1].Type)

	_, err = f.svc.Reject(ctx, id, attester, "", "")
	var invalid *models.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	d, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, d.Status)
}

func TestCoordination(t *testing.T) {
	t.Run("no wait continues to coordinated", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
		_, err := f.svc.CreateOrUpdate(ctx, id, maker)
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, id, maker)
		require.NoError(t, err)
		_, err = f.svc.Attest(ctx, id, attester, "")
		require.NoError(t, err)

		d, err := f.svc.SendToCoordination(ctx, id, attester)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCoordinated, d.Status)
		assert.Equal(t, 1, f.coordination.calls)

		events := decodeEvents(t, f.store.Outbox())
		n := len(events)
		assert.Equal(t, models.EventToCoordinate, events[n-2].Type)
		assert.Equal(t, models.EventCoordinated, events[n-1].Type)

		d, err = f.svc.Activate(ctx, id, attester)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, d.Status)
	})

	t.Run("must wait stops at to coordinate", func(t *testing.T) {
		f := newFixture(t)
		f.coordination.mustWait = true
		ctx := context.Background()
		id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
		_, err := f.svc.CreateOrUpdate(ctx, id, maker)
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, id, maker)
		require.NoError(t, err)
		_, err = f.svc.Attest(ctx, id, attester, "")
		require.NoError(t, err)

		d, err := f.svc.SendToCoordination(ctx, id, attester)
		require.NoError(t, err)
		assert.Equal(t, models.StatusToCoordinate, d.Status)

		_, err = f.svc.Activate(ctx, id, attester)
		var invalid *models.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)

		d, err = f.svc.Coordinated(ctx, id, attester)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCoordinated, d.Status)
	})
}

func TestSendToCoordination_ConcurrentActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
	_, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Attest(ctx, id, attester, "")
	require.NoError(t, err)

	f.coordination.onRequest = func() {
		_, err := f.svc.Activate(ctx, id, attester)
		require.NoError(t, err)
	}
	outboxBefore := len(f.store.Outbox())

	_, err = f.svc.SendToCoordination(ctx, id, attester)
	var stale *models.StaleStatusError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, models.StatusActive, stale.Actual)
	assert.Equal(t, 1, f.coordination.calls)

	d, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, d.Status)

	// only the activation reached the outbox
	events := decodeEvents(t, f.store.Outbox()[outboxBefore:])
	require.Len(t, events, 1)
	assert.Equal(t, models.EventActivated, events[0].Type)
}

func TestActivate_RequiresAttestation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
	_, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, id, attester)
	var invalid *models.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.CodeInvalidTransition, models.ErrorCode(err))
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
	_, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)

	removed, err := f.svc.Reset(ctx, id, maker, "feil behandling")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, removed.Status)

	_, err = f.svc.Get(ctx, id)
	assert.ErrorIs(t, err, models.ErrDecisionNotFound)

	history, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.EventReset, history[2].Event)

	_, err = f.svc.Reset(ctx, id, maker, "")
	assert.ErrorIs(t, err, models.ErrDecisionNotFound)
}

func TestReset_ActiveIsRejected(t *testing.T) {
	f := newFixture(t)
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)
	f.activate(t, id)

	_, err := f.svc.Reset(context.Background(), id, maker, "")
	var invalid *models.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	d, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, d.Status)
}

func TestLifecycleIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approvedCase("12345678901", 1, models.InstanceTypeFirstTime, "2024-01", 1000)

	_, err := f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, id, attester, "", "")
	require.NoError(t, err)

	f.calc.schedules[id].Periods[0].Amount = amount(1050)
	_, err = f.svc.CreateOrUpdate(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id, maker)
	require.NoError(t, err)
	_, err = f.svc.Attest(ctx, id, attester, "")
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, id, attester)
	require.NoError(t, err)

	// nothing moves an ACTIVE decision
	_, err = f.svc.Submit(ctx, id, maker)
	require.Error(t, err)
	_, err = f.svc.Reject(ctx, id, attester, "", "")
	require.Error(t, err)

	history, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	var statuses []models.DecisionStatus
	for _, h := range history {
		statuses = append(statuses, h.Status)
	}
	assert.Equal(t, []models.DecisionStatus{
		models.StatusDraft,
		models.StatusSubmitted,
		models.StatusReturned,
		models.StatusDraft,
		models.StatusSubmitted,
		models.StatusAttested,
		models.StatusActive,
	}, statuses)
}

func TestTimelineQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	subject := "12345678901"

	f.activate(t, f.approvedCase(subject, 1, models.InstanceTypeFirstTime, "2024-01", 1000))
	f.advance(24 * time.Hour)
	f.activate(t, f.approvedCase(subject, 1, models.InstanceTypeRevision, "2023-06", 900))

	entries, err := f.svc.Timeline(ctx, subject)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ym("2023-06"), entries[0].Window.From)
	assert.Nil(t, entries[0].Window.To)

	result, err := f.svc.IsActiveOn(ctx, subject, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, result.Active)

	other, err := f.svc.IsActiveOn(ctx, "10987654321", time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, other.Active)
}

func TestListForCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.approvedCase("12345678901", 7, models.InstanceTypeFirstTime, "2024-01", 1000)
	b := f.approvedCase("12345678901", 7, models.InstanceTypeRevision, "2024-03", 1100)
	f.approvedCase("12345678901", 8, models.InstanceTypeFirstTime, "2024-01", 1000)

	_, err := f.svc.CreateOrUpdate(ctx, a, maker)
	require.NoError(t, err)
	f.advance(time.Minute)
	_, err = f.svc.CreateOrUpdate(ctx, b, maker)
	require.NoError(t, err)

	decisions, err := f.svc.ListForCase(ctx, 7)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, a, decisions[0].CaseInstanceID)
	assert.Equal(t, b, decisions[1].CaseInstanceID)
}
