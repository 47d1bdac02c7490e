package repository

import (
	"context"
	"sort"
	"sync"
	"time"
	"vedtak/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is a DecisionStore kept in process memory. Transactions work on
// a copy of the state that replaces the original only when fn succeeds, and
// are serialized by a single mutex. Code running inside WithTx must only use
// the DecisionTx it is given.
type MemoryStore struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	decisions map[uuid.UUID]models.Decision
	history   []models.HistoryEntry
	outbox    []models.OutboxMessage
	runs      map[uuid.UUID]models.AutomaticRun

	historySeq int64
	outboxSeq  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memState{
			decisions: make(map[uuid.UUID]models.Decision),
			runs:      make(map[uuid.UUID]models.AutomaticRun),
		},
	}
}

func (s memState) clone() memState {
	out := memState{
		decisions:  make(map[uuid.UUID]models.Decision, len(s.decisions)),
		history:    append([]models.HistoryEntry(nil), s.history...),
		outbox:     make([]models.OutboxMessage, len(s.outbox)),
		runs:       make(map[uuid.UUID]models.AutomaticRun, len(s.runs)),
		historySeq: s.historySeq,
		outboxSeq:  s.outboxSeq,
	}
	for k, v := range s.decisions {
		out.decisions[k] = v.Clone()
	}
	for i, m := range s.outbox {
		out.outbox[i] = cloneOutbox(m)
	}
	for k, v := range s.runs {
		out.runs[k] = v
	}
	return out
}

func cloneOutbox(m models.OutboxMessage) models.OutboxMessage {
	m.Payload = append([]byte(nil), m.Payload...)
	return m
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(DecisionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.state.clone()
	if err := fn(&memTx{state: &working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.get(caseInstanceID), nil
}

func (s *MemoryStore) ListForCase(ctx context.Context, caseID int64) ([]models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Decision{}
	for _, d := range s.state.decisions {
		if d.CaseID == caseID {
			out = append(out, d.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) ListFinalized(ctx context.Context, subjectID string) ([]models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listFinalized(subjectID), nil
}

func (s *MemoryStore) ListHistory(ctx context.Context, caseInstanceID uuid.UUID) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.HistoryEntry{}
	for _, h := range s.state.history {
		if h.CaseInstanceID == caseInstanceID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *MemoryStore) ClaimOutboxDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]models.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	out := []models.OutboxMessage{}
	seen := make(map[uuid.UUID]bool)
	for i := range s.state.outbox {
		m := &s.state.outbox[i]
		if m.Status != models.OutboxPending {
			continue
		}
		// only the head of each case instance's queue is eligible
		if seen[m.CaseInstanceID] {
			continue
		}
		seen[m.CaseInstanceID] = true
		if m.NextAttemptAt.After(now) {
			continue
		}
		m.NextAttemptAt = leaseUntil
		m.UpdatedAt = now
		out = append(out, cloneOutbox(*m))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkOutboxSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return s.updateOutbox(id, func(m *models.OutboxMessage) {
		m.Status = models.OutboxSent
		m.AttemptCount++
		m.SentAt = &sentAt
		m.LastError = nil
		m.UpdatedAt = sentAt
	})
}

func (s *MemoryStore) MarkOutboxRetry(ctx context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, lastError string) error {
	return s.updateOutbox(id, func(m *models.OutboxMessage) {
		m.AttemptCount = attempts
		m.NextAttemptAt = nextAttempt
		m.LastError = &lastError
	})
}

func (s *MemoryStore) MarkOutboxDead(ctx context.Context, id uuid.UUID, attempts int, lastError string, at time.Time) error {
	return s.updateOutbox(id, func(m *models.OutboxMessage) {
		m.Status = models.OutboxDead
		m.AttemptCount = attempts
		m.LastError = &lastError
		m.UpdatedAt = at
	})
}

func (s *MemoryStore) updateOutbox(id uuid.UUID, fn func(*models.OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.outbox {
		if s.state.outbox[i].ID == id {
			fn(&s.state.outbox[i])
			return nil
		}
	}
	return ErrOutboxMessageNotFound
}

func (s *MemoryStore) CountOutbox(ctx context.Context, status models.OutboxStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.state.outbox {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}

// Outbox returns a copy of every outbox message in commit order
func (s *MemoryStore) Outbox() []models.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.OutboxMessage, len(s.state.outbox))
	for i, m := range s.state.outbox {
		out[i] = cloneOutbox(m)
	}
	return out
}

func (s *MemoryStore) SaveRun(ctx context.Context, run models.AutomaticRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.state.runs[run.CaseInstanceID]; ok {
		run.CreatedAt = existing.CreatedAt
	}
	s.state.runs[run.CaseInstanceID] = run
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, caseInstanceID uuid.UUID) (*models.AutomaticRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.state.runs[caseInstanceID]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, phase models.RunPhase, limit int) ([]models.AutomaticRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.AutomaticRun{}
	for _, run := range s.state.runs {
		if run.Phase == phase {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memState) get(caseInstanceID uuid.UUID) *models.Decision {
	d, ok := s.decisions[caseInstanceID]
	if !ok {
		return nil
	}
	c := d.Clone()
	return &c
}

func (s *memState) listFinalized(subjectID string) []models.Decision {
	out := []models.Decision{}
	for _, d := range s.decisions {
		if d.SubjectID == subjectID && d.Status == models.StatusActive {
			out = append(out, d.Clone())
		}
	}
	sortByCreated(out)
	return out
}

func sortByCreated(decisions []models.Decision) {
	sort.Slice(decisions, func(i, j int) bool {
		if !decisions[i].CreatedAt.Equal(decisions[j].CreatedAt) {
			return decisions[i].CreatedAt.Before(decisions[j].CreatedAt)
		}
		return decisions[i].ID.String() < decisions[j].ID.String()
	})
}

type memTx struct {
	state *memState
}

func (t *memTx) GetForUpdate(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	return t.state.get(caseInstanceID), nil
}

func (t *memTx) ListFinalized(ctx context.Context, subjectID string) ([]models.Decision, error) {
	return t.state.listFinalized(subjectID), nil
}

func (t *memTx) Upsert(ctx context.Context, decision models.Decision) (UpsertResult, error) {
	existing, ok := t.state.decisions[decision.CaseInstanceID]
	if !ok {
		if decision.ID == uuid.Nil {
			decision.ID = uuid.New()
		}
		decision.Status = models.StatusDraft
		stored := decision.Clone()
		t.state.decisions[decision.CaseInstanceID] = stored
		return UpsertResult{Decision: stored.Clone(), Created: true, Changed: true}, nil
	}

	merged, changed, err := mergeUpsert(existing, decision, decision.UpdatedAt)
	if err != nil {
		return UpsertResult{}, err
	}
	if changed {
		t.state.decisions[decision.CaseInstanceID] = merged.Clone()
	}
	return UpsertResult{Decision: merged.Clone(), Changed: changed}, nil
}

func (t *memTx) Transition(ctx context.Context, tr Transition) (models.Decision, error) {
	d, ok := t.state.decisions[tr.CaseInstanceID]
	if !ok {
		return models.Decision{}, models.ErrDecisionNotFound
	}
	if !tr.allows(d.Status) {
		return models.Decision{}, staleStatus(tr, d.Status)
	}
	updated := d.Clone()
	tr.apply(&updated)
	t.state.decisions[tr.CaseInstanceID] = updated
	return updated.Clone(), nil
}

func (t *memTx) Reset(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	d, ok := t.state.decisions[caseInstanceID]
	if !ok {
		return nil, nil
	}
	if d.Status == models.StatusActive {
		return nil, &models.InvalidTransitionError{CaseInstanceID: caseInstanceID, Operation: "reset", Status: d.Status}
	}
	delete(t.state.decisions, caseInstanceID)
	return &d, nil
}

func (t *memTx) AppendHistory(ctx context.Context, entry models.HistoryEntry) error {
	t.state.historySeq++
	entry.ID = t.state.historySeq
	t.state.history = append(t.state.history, entry)
	return nil
}

func (t *memTx) EnqueueOutbox(ctx context.Context, msg models.OutboxMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.Status == "" {
		msg.Status = models.OutboxPending
	}
	t.state.outboxSeq++
	msg.Seq = t.state.outboxSeq
	t.state.outbox = append(t.state.outbox, cloneOutbox(msg))
	return nil
}
