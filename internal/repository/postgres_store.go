package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"vedtak/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore is the DecisionStore backed by PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new decision store on an open database
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const decisionColumns = `
	d.id, d.case_instance_id, d.case_id, d.subject_id, d.case_category, d.category, d.status,
	d.content, d.made_by, d.made_at, d.maker_org_unit,
	d.attested_by, d.attested_at, d.attester_org_unit, d.created_at, d.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDecision(row rowScanner) (models.Decision, error) {
	var d models.Decision
	var content []byte
	var madeBy, makerOrg, attestedBy, attestOrg sql.NullString
	var madeAt, attestedAt sql.NullTime

	err := row.Scan(
		&d.ID,
		&d.CaseInstanceID,
		&d.CaseID,
		&d.SubjectID,
		&d.CaseCategory,
		&d.Category,
		&d.Status,
		&content,
		&madeBy,
		&madeAt,
		&makerOrg,
		&attestedBy,
		&attestedAt,
		&attestOrg,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return models.Decision{}, err
	}

	d.Content, err = models.DecodeContent(content)
	if err != nil {
		return models.Decision{}, err
	}
	d.MadeBy, d.MakerOrgUnit = madeBy.String, makerOrg.String
	d.AttestedBy, d.AttesterOrgUnit = attestedBy.String, attestOrg.String
	if madeAt.Valid {
		t := madeAt.Time
		d.MadeAt = &t
	}
	if attestedAt.Valid {
		t := attestedAt.Time
		d.AttestedAt = &t
	}
	return d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func statusArray(statuses []models.DecisionStatus) interface{} {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

func getDecision(ctx context.Context, q querier, caseInstanceID uuid.UUID, lock bool) (*models.Decision, error) {
	query := `SELECT` + decisionColumns + `
		FROM decisions d
		WHERE d.case_instance_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	d, err := scanDecision(q.QueryRowContext(ctx, query, caseInstanceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}

	if err := loadFrozenPeriods(ctx, q, []*models.Decision{&d}); err != nil {
		return nil, err
	}
	return &d, nil
}

func listDecisions(ctx context.Context, q querier, where string, arg interface{}) ([]models.Decision, error) {
	query := `SELECT` + decisionColumns + `
		FROM decisions d
		WHERE ` + where + `
		ORDER BY d.created_at ASC, d.id ASC`

	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	decisions := []models.Decision{}
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*models.Decision, len(decisions))
	for i := range decisions {
		ptrs[i] = &decisions[i]
	}
	if err := loadFrozenPeriods(ctx, q, ptrs); err != nil {
		return nil, err
	}
	return decisions, nil
}

// loadFrozenPeriods fills FrozenPeriods for all decisions with one query
func loadFrozenPeriods(ctx context.Context, q querier, decisions []*models.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	ids := make([]string, len(decisions))
	byID := make(map[uuid.UUID]*models.Decision, len(decisions))
	for i, d := range decisions {
		ids[i] = d.ID.String()
		byID[d.ID] = d
	}

	rows, err := q.QueryContext(ctx, `
		SELECT decision_id, valid_from, valid_to, amount, kind
		FROM decision_payment_periods
		WHERE decision_id = ANY($1::uuid[])
		ORDER BY decision_id, position`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load frozen periods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			decisionID uuid.UUID
			p          models.PaymentPeriod
			validTo    models.YearMonth
			amount     sql.NullInt64
		)
		if err := rows.Scan(&decisionID, &p.ValidFrom, &validTo, &amount, &p.Kind); err != nil {
			return fmt.Errorf("failed to scan frozen period: %w", err)
		}
		if !validTo.IsZero() {
			p.ValidTo = &validTo
		}
		if amount.Valid {
			v := amount.Int64
			p.Amount = &v
		}
		if d, ok := byID[decisionID]; ok {
			d.FrozenPeriods = append(d.FrozenPeriods, p)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(DecisionTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Rollback only if not committed
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("Failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	return getDecision(ctx, s.db, caseInstanceID, false)
}

func (s *PostgresStore) ListForCase(ctx context.Context, caseID int64) ([]models.Decision, error) {
	return listDecisions(ctx, s.db, `d.case_id = $1`, caseID)
}

func (s *PostgresStore) ListFinalized(ctx context.Context, subjectID string) ([]models.Decision, error) {
	return listDecisions(ctx, s.db, `d.subject_id = $1 AND d.status = 'ACTIVE'`, subjectID)
}

func (s *PostgresStore) ListHistory(ctx context.Context, caseInstanceID uuid.UUID) ([]models.HistoryEntry, error) {
	query := `
		SELECT id, decision_id, case_instance_id, status, event, actor, org_unit, comment, created_at
		FROM decision_history
		WHERE case_instance_id = $1
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, caseInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		var actor, org, comment sql.NullString
		if err := rows.Scan(&e.ID, &e.DecisionID, &e.CaseInstanceID, &e.Status, &e.Event, &actor, &org, &comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Actor, e.OrgUnit, e.Comment = actor.String, org.String, comment.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const outboxColumns = `seq, id, kind, case_instance_id, payload, status, attempt_count, next_attempt_at, last_error, sent_at, created_at, updated_at`

func scanOutbox(row rowScanner) (models.OutboxMessage, error) {
	var (
		m       models.OutboxMessage
		payload []byte
		lastErr sql.NullString
		sentAt  sql.NullTime
	)
	if err := row.Scan(&m.Seq, &m.ID, &m.Kind, &m.CaseInstanceID, &payload, &m.Status, &m.AttemptCount, &m.NextAttemptAt, &lastErr, &sentAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return models.OutboxMessage{}, err
	}
	m.Payload = payload
	if lastErr.Valid {
		e := lastErr.String
		m.LastError = &e
	}
	if sentAt.Valid {
		t := sentAt.Time
		m.SentAt = &t
	}
	return m, nil
}

func (s *PostgresStore) ClaimOutboxDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]models.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		UPDATE outbox_messages
		SET next_attempt_at = $2, updated_at = $1
		WHERE id IN (
			SELECT o.id FROM outbox_messages o
			WHERE o.status = 'PENDING'
			  AND o.next_attempt_at <= $1
			  AND NOT EXISTS (
				SELECT 1 FROM outbox_messages p
				WHERE p.case_instance_id = o.case_instance_id
				  AND p.status = 'PENDING'
				  AND p.seq < o.seq
			  )
			ORDER BY o.seq
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	rows, err := s.db.QueryContext(ctx, query, now, leaseUntil, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox messages: %w", err)
	}
	defer rows.Close()

	messages := []models.OutboxMessage{}
	for rows.Next() {
		m, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING does not preserve the subquery order
	sort.Slice(messages, func(i, j int) bool { return messages[i].Seq < messages[j].Seq })
	return messages, nil
}

func (s *PostgresStore) execOutbox(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update outbox message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOutboxMessageNotFound
	}
	return nil
}

func (s *PostgresStore) MarkOutboxSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return s.execOutbox(ctx, `
		UPDATE outbox_messages
		SET status = 'SENT', attempt_count = attempt_count + 1, sent_at = $2, last_error = NULL, updated_at = $2
		WHERE id = $1`, id, sentAt)
}

func (s *PostgresStore) MarkOutboxRetry(ctx context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, lastError string) error {
	return s.execOutbox(ctx, `
		UPDATE outbox_messages
		SET attempt_count = $2, next_attempt_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1`, id, attempts, nextAttempt, lastError)
}

func (s *PostgresStore) MarkOutboxDead(ctx context.Context, id uuid.UUID, attempts int, lastError string, at time.Time) error {
	return s.execOutbox(ctx, `
		UPDATE outbox_messages
		SET status = 'DEAD', attempt_count = $2, last_error = $3, updated_at = $4
		WHERE id = $1`, id, attempts, lastError, at)
}

func (s *PostgresStore) CountOutbox(ctx context.Context, status models.OutboxStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox_messages WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox messages: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run models.AutomaticRun) error {
	query := `
		INSERT INTO automatic_runs (case_instance_id, mode, phase, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (case_instance_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			phase = EXCLUDED.phase,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, run.CaseInstanceID, run.Mode, run.Phase, run.LastError, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save automatic run: %w", err)
	}
	return nil
}

func scanRun(row rowScanner) (models.AutomaticRun, error) {
	var run models.AutomaticRun
	err := row.Scan(&run.CaseInstanceID, &run.Mode, &run.Phase, &run.LastError, &run.CreatedAt, &run.UpdatedAt)
	return run, err
}

func (s *PostgresStore) GetRun(ctx context.Context, caseInstanceID uuid.UUID) (*models.AutomaticRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT case_instance_id, mode, phase, last_error, created_at, updated_at
		FROM automatic_runs WHERE case_instance_id = $1`, caseInstanceID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get automatic run: %w", err)
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, phase models.RunPhase, limit int) ([]models.AutomaticRun, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT case_instance_id, mode, phase, last_error, created_at, updated_at
		FROM automatic_runs
		WHERE phase = $1
		ORDER BY updated_at ASC
		LIMIT $2`, phase, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list automatic runs: %w", err)
	}
	defer rows.Close()

	runs := []models.AutomaticRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automatic run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetForUpdate(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	return getDecision(ctx, t.tx, caseInstanceID, true)
}

func (t *pgTx) ListFinalized(ctx context.Context, subjectID string) ([]models.Decision, error) {
	return listDecisions(ctx, t.tx, `d.subject_id = $1 AND d.status = 'ACTIVE'`, subjectID)
}

func validFromValue(c models.DecisionContent) interface{} {
	if b, ok := c.(models.BenefitContent); ok && !b.ValidFrom.IsZero() {
		return b.ValidFrom.FirstDay()
	}
	return nil
}

func (t *pgTx) Upsert(ctx context.Context, decision models.Decision) (UpsertResult, error) {
	content, err := models.EncodeContent(decision.Content)
	if err != nil {
		return UpsertResult{}, err
	}
	digest, err := models.ContentDigest(decision.Content)
	if err != nil {
		return UpsertResult{}, err
	}

	existing, err := getDecision(ctx, t.tx, decision.CaseInstanceID, true)
	if err != nil {
		return UpsertResult{}, err
	}

	if existing == nil {
		if decision.ID == uuid.Nil {
			decision.ID = uuid.New()
		}
		decision.Status = models.StatusDraft

		query := `
			INSERT INTO decisions (
				id, case_instance_id, case_id, subject_id, case_category, category, status,
				content, content_digest, valid_from, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (case_instance_id) DO NOTHING
		`
		result, err := t.tx.ExecContext(ctx, query,
			decision.ID,
			decision.CaseInstanceID,
			decision.CaseID,
			decision.SubjectID,
			decision.CaseCategory,
			decision.Category,
			decision.Status,
			content,
			digest,
			validFromValue(decision.Content),
			decision.CreatedAt,
			decision.UpdatedAt,
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("failed to insert decision: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 1 {
			return UpsertResult{Decision: decision.Clone(), Created: true, Changed: true}, nil
		}

		// a concurrent transaction inserted first; merge into its row
		existing, err = getDecision(ctx, t.tx, decision.CaseInstanceID, true)
		if err != nil {
			return UpsertResult{}, err
		}
		if existing == nil {
			return UpsertResult{}, fmt.Errorf("decision for case instance %s vanished during upsert", decision.CaseInstanceID)
		}
	}

	merged, changed, err := mergeUpsert(*existing, decision, decision.UpdatedAt)
	if err != nil {
		return UpsertResult{}, err
	}
	if !changed {
		return UpsertResult{Decision: merged}, nil
	}

	query := `
		UPDATE decisions
		SET content = $2, content_digest = $3, valid_from = $4, category = $5, status = $6, updated_at = $7
		WHERE case_instance_id = $1 AND status = ANY($8)
	`
	result, err := t.tx.ExecContext(ctx, query,
		merged.CaseInstanceID,
		content,
		digest,
		validFromValue(merged.Content),
		merged.Category,
		merged.Status,
		merged.UpdatedAt,
		statusArray([]models.DecisionStatus{models.StatusDraft, models.StatusReturned}),
	)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to update decision: %w", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return UpsertResult{}, &models.StaleStatusError{
			CaseInstanceID: merged.CaseInstanceID,
			Expected:       []models.DecisionStatus{models.StatusDraft, models.StatusReturned},
			Actual:         existing.Status,
		}
	}
	return UpsertResult{Decision: merged, Changed: true}, nil
}

func (t *pgTx) Transition(ctx context.Context, tr Transition) (models.Decision, error) {
	current, err := getDecision(ctx, t.tx, tr.CaseInstanceID, true)
	if err != nil {
		return models.Decision{}, err
	}
	if current == nil {
		return models.Decision{}, models.ErrDecisionNotFound
	}
	if !tr.allows(current.Status) {
		return models.Decision{}, staleStatus(tr, current.Status)
	}

	updated := current.Clone()
	tr.apply(&updated)

	query := `
		UPDATE decisions
		SET status = $2,
			made_by = $3, made_at = $4, maker_org_unit = $5,
			attested_by = $6, attested_at = $7, attester_org_unit = $8,
			updated_at = $9
		WHERE case_instance_id = $1 AND status = ANY($10)
	`
	result, err := t.tx.ExecContext(ctx, query,
		updated.CaseInstanceID,
		updated.Status,
		nullString(updated.MadeBy),
		nullTime(updated.MadeAt),
		nullString(updated.MakerOrgUnit),
		nullString(updated.AttestedBy),
		nullTime(updated.AttestedAt),
		nullString(updated.AttesterOrgUnit),
		updated.UpdatedAt,
		statusArray(tr.From),
	)
	if err != nil {
		return models.Decision{}, fmt.Errorf("failed to update decision status: %w", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return models.Decision{}, staleStatus(tr, current.Status)
	}

	if tr.FrozenPeriods != nil {
		if err := t.replaceFrozenPeriods(ctx, updated.ID, updated.FrozenPeriods); err != nil {
			return models.Decision{}, err
		}
	}
	return updated, nil
}

func (t *pgTx) replaceFrozenPeriods(ctx context.Context, decisionID uuid.UUID, periods []models.PaymentPeriod) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM decision_payment_periods WHERE decision_id = $1`, decisionID); err != nil {
		return fmt.Errorf("failed to clear frozen periods: %w", err)
	}

	query := `
		INSERT INTO decision_payment_periods (decision_id, position, valid_from, valid_to, amount, kind)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, p := range periods {
		var validTo interface{}
		if p.ValidTo != nil {
			validTo = p.ValidTo.FirstDay()
		}
		if _, err := t.tx.ExecContext(ctx, query, decisionID, i, p.ValidFrom, validTo, p.Amount, p.Kind); err != nil {
			return fmt.Errorf("failed to insert frozen period: %w", err)
		}
	}
	return nil
}

func (t *pgTx) Reset(ctx context.Context, caseInstanceID uuid.UUID) (*models.Decision, error) {
	current, err := getDecision(ctx, t.tx, caseInstanceID, true)
	if err != nil || current == nil {
		return nil, err
	}
	if current.Status == models.StatusActive {
		return nil, &models.InvalidTransitionError{CaseInstanceID: caseInstanceID, Operation: "reset", Status: current.Status}
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM decisions WHERE case_instance_id = $1 AND status <> 'ACTIVE'`, caseInstanceID); err != nil {
		return nil, fmt.Errorf("failed to delete decision: %w", err)
	}
	return current, nil
}

func (t *pgTx) AppendHistory(ctx context.Context, entry models.HistoryEntry) error {
	query := `
		INSERT INTO decision_history (decision_id, case_instance_id, status, event, actor, org_unit, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.tx.ExecContext(ctx, query,
		entry.DecisionID,
		entry.CaseInstanceID,
		entry.Status,
		entry.Event,
		nullString(entry.Actor),
		nullString(entry.OrgUnit),
		nullString(entry.Comment),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (t *pgTx) EnqueueOutbox(ctx context.Context, msg models.OutboxMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.Status == "" {
		msg.Status = models.OutboxPending
	}

	query := `
		INSERT INTO outbox_messages (id, kind, case_instance_id, payload, status, attempt_count, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.ExecContext(ctx, query,
		msg.ID,
		msg.Kind,
		msg.CaseInstanceID,
		string(msg.Payload),
		msg.Status,
		msg.AttemptCount,
		msg.NextAttemptAt,
		msg.CreatedAt,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox message: %w", err)
	}
	return nil
}
