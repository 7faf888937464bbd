package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL: a pooled
// pgxpool.Pool, upsert-on-conflict writes, and
// errors.Is(err, pgx.ErrNoRows) → nil on not-found reads.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore initializes a new PostgresStore with a connection
// pool sized for concurrent load.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 50
	cfg.MinConns = 5
	cfg.MaxConnLifetime = time.Hour
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// --- Task operations ---

func (s *PostgresStore) UpsertTask(ctx context.Context, task *Task) error {
	labels, _ := json.Marshal(task.Labels)
	checklist, _ := json.Marshal(task.Checklist)
	subtasks, _ := json.Marshal(task.Subtasks)
	query := `
		INSERT INTO tasks (
			id, title, description, client, type, importance, effort_hours, deadline,
			created_at, updated_at, last_activity_at, status, score, labels, checklist,
			subtasks, urgency_level, complexity_level, scoring_method, requires_review, recent_progress
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			client = EXCLUDED.client,
			type = EXCLUDED.type,
			importance = EXCLUDED.importance,
			effort_hours = EXCLUDED.effort_hours,
			deadline = EXCLUDED.deadline,
			updated_at = EXCLUDED.updated_at,
			last_activity_at = EXCLUDED.last_activity_at,
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			labels = EXCLUDED.labels,
			checklist = EXCLUDED.checklist,
			subtasks = EXCLUDED.subtasks,
			urgency_level = EXCLUDED.urgency_level,
			complexity_level = EXCLUDED.complexity_level,
			scoring_method = EXCLUDED.scoring_method,
			requires_review = EXCLUDED.requires_review,
			recent_progress = EXCLUDED.recent_progress
	`
	_, err := s.pool.Exec(ctx, query,
		task.ID, task.Title, task.Description, task.Client, task.Type, task.Importance,
		task.EffortHours, task.Deadline, task.CreatedAt, task.UpdatedAt, task.LastActivityAt,
		task.Status, task.Score, labels, checklist, subtasks, task.UrgencyLevel,
		task.ComplexityLevel, task.ScoringMethod, task.RequiresReview, task.RecentProgress,
	)
	return err
}

func (s *PostgresStore) scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var labels, checklist, subtasks []byte
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Client, &t.Type, &t.Importance, &t.EffortHours,
		&t.Deadline, &t.CreatedAt, &t.UpdatedAt, &t.LastActivityAt, &t.Status, &t.Score,
		&labels, &checklist, &subtasks, &t.UrgencyLevel, &t.ComplexityLevel, &t.ScoringMethod,
		&t.RequiresReview, &t.RecentProgress,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(labels, &t.Labels)
	_ = json.Unmarshal(checklist, &t.Checklist)
	_ = json.Unmarshal(subtasks, &t.Subtasks)
	return &t, nil
}

const taskColumns = `id, title, description, client, type, importance, effort_hours, deadline,
	created_at, updated_at, last_activity_at, status, score, labels, checklist,
	subtasks, urgency_level, complexity_level, scoring_method, requires_review, recent_progress`

func (s *PostgresStore) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return s.scanTask(row)
}

func (s *PostgresStore) ListTasksByStatus(ctx context.Context, statuses []TaskStatus) ([]*Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ANY($1) ORDER BY created_at`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Task
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *PostgresStore) EnqueueTaskMutation(ctx context.Context, task *Task, row *OutboxRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.upsertTaskTx(ctx, tx, task); err != nil {
		return err
	}
	if row != nil {
		if _, err := s.insertOutboxTx(ctx, tx, row); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) upsertTaskTx(ctx context.Context, tx pgx.Tx, task *Task) error {
	labels, _ := json.Marshal(task.Labels)
	checklist, _ := json.Marshal(task.Checklist)
	subtasks, _ := json.Marshal(task.Subtasks)
	query := `
		INSERT INTO tasks (
			id, title, description, client, type, importance, effort_hours, deadline,
			created_at, updated_at, last_activity_at, status, score, labels, checklist,
			subtasks, urgency_level, complexity_level, scoring_method, requires_review, recent_progress
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description, client = EXCLUDED.client,
			type = EXCLUDED.type, importance = EXCLUDED.importance, effort_hours = EXCLUDED.effort_hours,
			deadline = EXCLUDED.deadline, updated_at = EXCLUDED.updated_at,
			last_activity_at = EXCLUDED.last_activity_at, status = EXCLUDED.status, score = EXCLUDED.score,
			labels = EXCLUDED.labels, checklist = EXCLUDED.checklist, subtasks = EXCLUDED.subtasks,
			urgency_level = EXCLUDED.urgency_level, complexity_level = EXCLUDED.complexity_level,
			scoring_method = EXCLUDED.scoring_method, requires_review = EXCLUDED.requires_review,
			recent_progress = EXCLUDED.recent_progress
	`
	_, err := tx.Exec(ctx, query,
		task.ID, task.Title, task.Description, task.Client, task.Type, task.Importance,
		task.EffortHours, task.Deadline, task.CreatedAt, task.UpdatedAt, task.LastActivityAt,
		task.Status, task.Score, labels, checklist, subtasks, task.UrgencyLevel,
		task.ComplexityLevel, task.ScoringMethod, task.RequiresReview, task.RecentProgress,
	)
	return err
}

// --- Outbox operations ---

func (s *PostgresStore) insertOutboxTx(ctx context.Context, tx pgx.Tx, row *OutboxRow) (bool, error) {
	headers, _ := json.Marshal(row.Headers)
	query := `
		INSERT INTO outbox (
			task_id, backend, operation, endpoint, payload, headers, idempotency_key,
			status, retry_count, next_retry_at, last_error, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`
	var id int64
	err := tx.QueryRow(ctx, query,
		row.TaskID, row.Backend, row.Operation, row.Endpoint, row.Payload, headers,
		row.IdempotencyKey, OutboxPending, 0, row.NextRetryAt, "", row.CreatedAt, row.UpdatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil // conflict: already recorded, no-op
	}
	if err != nil {
		return false, err
	}
	row.ID = id
	return true, nil
}

func (s *PostgresStore) InsertOutboxRow(ctx context.Context, row *OutboxRow) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)
	inserted, err := s.insertOutboxTx(ctx, tx, row)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return inserted, nil
}

// SelectAndLeaseBatch implements the worker's batch-select step:
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never
// contend on the same rows, then marks the batch inflight in the same
// transaction before committing.
func (s *PostgresStore) SelectAndLeaseBatch(ctx context.Context, limit int, now time.Time) ([]*OutboxRow, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT id, task_id, backend, operation, endpoint, payload, headers, idempotency_key,
			status, retry_count, next_retry_at, last_error, created_at, updated_at
		FROM outbox
		WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= $2)
		ORDER BY next_retry_at NULLS FIRST, id
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Query(ctx, query, OutboxPending, now, limit)
	if err != nil {
		return nil, err
	}

	var batch []*OutboxRow
	for rows.Next() {
		var row OutboxRow
		var headers []byte
		if err := rows.Scan(
			&row.ID, &row.TaskID, &row.Backend, &row.Operation, &row.Endpoint, &row.Payload,
			&headers, &row.IdempotencyKey, &row.Status, &row.RetryCount, &row.NextRetryAt,
			&row.LastError, &row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, err
		}
		_ = json.Unmarshal(headers, &row.Headers)
		batch = append(batch, &row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, row := range batch {
		if _, err := tx.Exec(ctx,
			`UPDATE outbox SET status = $1, inflight_since = $2, updated_at = $2 WHERE id = $3`,
			OutboxInflight, now, row.ID,
		); err != nil {
			return nil, err
		}
		row.Status = OutboxInflight
		row.InflightSince = &now
		row.UpdatedAt = now
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return batch, nil
}

// UpdateOutboxStatus commits a single row's terminal/retry transition,
// deliberately outside any shared transaction so one poisoning row in a
// batch can never block the others.
func (s *PostgresStore) UpdateOutboxStatus(ctx context.Context, id int64, status OutboxStatus, retryCount int, nextRetryAt *time.Time, lastError string) error {
	var inflightSince interface{}
	if status == OutboxInflight {
		inflightSince = time.Now()
	} else {
		inflightSince = nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox SET status = $1, retry_count = $2, next_retry_at = $3, last_error = $4,
			inflight_since = $5, updated_at = NOW()
		WHERE id = $6
	`, status, retryCount, nextRetryAt, lastError, inflightSince, id)
	return err
}

// ReclaimStaleInflight reclaims rows stuck in inflight past the lease
// window (invariant: a delivered row is never redispatched,
// but a crashed worker's inflight rows must get another attempt).
func (s *PostgresStore) ReclaimStaleInflight(ctx context.Context, leaseExpiry time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-leaseExpiry)
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox SET status = $1, inflight_since = NULL, updated_at = $2
		WHERE status = $3 AND inflight_since IS NOT NULL AND inflight_since < $4
	`, OutboxPending, now, OutboxInflight, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) OutboxStats(ctx context.Context) (map[OutboxStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[OutboxStatus]int)
	for rows.Next() {
		var status OutboxStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func (s *PostgresStore) ListDeadLetters(ctx context.Context, limit int) ([]*OutboxRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, backend, operation, endpoint, payload, headers, idempotency_key,
			status, retry_count, next_retry_at, last_error, created_at, updated_at
		FROM outbox WHERE status = $1 ORDER BY updated_at DESC LIMIT $2
	`, OutboxDeadLetter, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*OutboxRow
	for rows.Next() {
		var row OutboxRow
		var headers []byte
		if err := rows.Scan(
			&row.ID, &row.TaskID, &row.Backend, &row.Operation, &row.Endpoint, &row.Payload,
			&headers, &row.IdempotencyKey, &row.Status, &row.RetryCount, &row.NextRetryAt,
			&row.LastError, &row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(headers, &row.Headers)
		result = append(result, &row)
	}
	return result, rows.Err()
}

func (s *PostgresStore) RequeueDeadLetter(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox SET status = $1, retry_count = 0, next_retry_at = NULL, last_error = '', updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, OutboxPending, id, OutboxDeadLetter)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("row not found or not dead-lettered")
	}
	return nil
}

// --- Task mapping operations ---

func (s *PostgresStore) UpsertMapping(ctx context.Context, backend, externalID string, taskID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_mapping (backend, external_id, task_id, created_at)
		VALUES ($1,$2,$3,NOW())
		ON CONFLICT (backend, external_id) DO UPDATE SET task_id = EXCLUDED.task_id
	`, backend, externalID, taskID)
	return err
}

func (s *PostgresStore) GetMappingInternalID(ctx context.Context, backend, externalID string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT task_id FROM task_mapping WHERE backend = $1 AND external_id = $2`,
		backend, externalID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// --- Decision / audit trace operations ---

func (s *PostgresStore) AppendTrace(ctx context.Context, trace *DecisionTrace) error {
	query := `
		INSERT INTO audit_memory (
			session_id, task_a_id, task_b_id, rationale, delta_urgency, delta_sla,
			delta_staleness, delta_fairness, delta_total, rank_old, rank_new, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())
	`
	_, err := s.pool.Exec(ctx, query,
		trace.SessionID, trace.TaskAID, trace.TaskBID, trace.Rationale, trace.DeltaUrgency,
		trace.DeltaSLA, trace.DeltaStaleness, trace.DeltaFairness, trace.DeltaTotal,
		trace.RankOld, trace.RankNew,
	)
	return err
}

func (s *PostgresStore) ListTraces(ctx context.Context, from, to time.Time) ([]*DecisionTrace, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, task_a_id, task_b_id, rationale, delta_urgency, delta_sla,
			delta_staleness, delta_fairness, delta_total, rank_old, rank_new, created_at
		FROM audit_memory WHERE created_at BETWEEN $1 AND $2 ORDER BY created_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*DecisionTrace
	for rows.Next() {
		var tr DecisionTrace
		if err := rows.Scan(
			&tr.ID, &tr.SessionID, &tr.TaskAID, &tr.TaskBID, &tr.Rationale, &tr.DeltaUrgency,
			&tr.DeltaSLA, &tr.DeltaStaleness, &tr.DeltaFairness, &tr.DeltaTotal, &tr.RankOld,
			&tr.RankNew, &tr.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &tr)
	}
	return result, rows.Err()
}
