package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/internal/postgres/migrations"
)

// TaskRepository abstracts all database access for tasks.
//
// Every mutating method is a single conditional statement. The bool result
// reports whether a row matched the precondition; false means the task was
// concurrently moved to a state the caller did not observe.
type TaskRepository interface {
	CreateOrMerge(ctx context.Context, task *domain.Task) (*domain.Task, bool, error)
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
	GetBySource(ctx context.Context, channel, messageID string) (*domain.Task, error)
	GetByTaskMessage(ctx context.Context, taskMessageID string) (*domain.Task, error)
	SetTrackingMessage(ctx context.Context, id int64, taskMessageID string) (bool, error)
	ApplyReplan(ctx context.Context, id int64, assignee string, due *domain.Date, plan domain.Plan) (bool, error)
	AdvanceReminder(ctx context.Context, id int64, prev, next *time.Time, kind domain.RemindKind) (bool, error)
	Resolve(ctx context.Context, id int64, status domain.Status) (bool, error)
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error)
	ListDueEscalations(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error)
}

const taskColumns = `id, source_channel, source_message_id, source_permalink, task_channel,
	task_message_id, status, created_at, updated_at, assignee, due_date, reactors,
	next_remind_at, remind_kind, escalate_at, replanned_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps a pgxpool with the TaskRepository interface.
func NewRepository(pool *pgxpool.Pool) TaskRepository {
	return &repository{pool: pool}
}

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	applied := make([]string, 0, len(migrations.Files))
	for _, f := range migrations.Files {
		sql, err := migrations.FS.ReadFile(f)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return applied, fmt.Errorf("execute migration %s: %w", f, err)
		}
		applied = append(applied, f)
	}
	return applied, nil
}

// CreateOrMerge inserts task, or merges its reactors into the existing row
// for the same source message. The second result is true when a new row
// was inserted.
func (r *repository) CreateOrMerge(ctx context.Context, task *domain.Task) (*domain.Task, bool, error) {
	reactors := domain.MergeReactors(nil, task.Reactors...)
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tasks
			(source_channel, source_message_id, source_permalink, task_channel, status,
			 created_at, updated_at, reactors, next_remind_at, remind_kind, escalate_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $6, $7, $8, $9, $10)
		ON CONFLICT (source_channel, source_message_id) DO UPDATE
		SET reactors = ARRAY(
				SELECT u.r
				FROM unnest(tasks.reactors || EXCLUDED.reactors) WITH ORDINALITY AS u(r, n)
				GROUP BY u.r
				ORDER BY min(u.n)
			),
			updated_at = NOW()
		RETURNING `+taskColumns+`, (xmax = 0) AS inserted
	`,
		task.SourceChannel, task.SourceMessageID, task.SourcePermalink, task.TaskChannel,
		string(domain.StatusOpen), task.CreatedAt, reactors,
		task.NextRemindAt, nullable(string(task.RemindKind)), task.EscalateAt,
	)

	var inserted bool
	got, err := scanTask(row, "source="+task.SourceChannel+"/"+task.SourceMessageID, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("upsert task %s/%s: %w", task.SourceChannel, task.SourceMessageID, err)
	}
	return got, inserted, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row, fmt.Sprintf("id=%d", id))
}

func (r *repository) GetBySource(ctx context.Context, channel, messageID string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE source_channel = $1 AND source_message_id = $2
	`, channel, messageID)
	return scanTask(row, "source="+channel+"/"+messageID)
}

func (r *repository) GetByTaskMessage(ctx context.Context, taskMessageID string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE task_message_id = $1
	`, taskMessageID)
	return scanTask(row, "task_message_id="+taskMessageID)
}

// SetTrackingMessage records the tracking post id. It never overwrites one
// that is already set.
func (r *repository) SetTrackingMessage(ctx context.Context, id int64, taskMessageID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET task_message_id = $2, updated_at = NOW()
		WHERE id = $1 AND task_message_id IS NULL
	`, id, taskMessageID)
	if err != nil {
		return false, fmt.Errorf("set tracking message for task %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ApplyReplan stores extracted facts and the recomputed plan on an open task
// and stamps replanned_at. An escalation time that is already set is preserved.
func (r *repository) ApplyReplan(ctx context.Context, id int64, assignee string, due *domain.Date, plan domain.Plan) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET assignee = $2,
		    due_date = $3,
		    next_remind_at = $4,
		    remind_kind = $5,
		    escalate_at = COALESCE(escalate_at, $6),
		    replanned_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'OPEN'
	`, id, nullable(assignee), dateParam(due), plan.NextRemindAt, nullable(string(plan.Kind)), plan.EscalateAt)
	if err != nil {
		return false, fmt.Errorf("apply replan for task %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// AdvanceReminder moves the reminder plan forward only if the task is still
// open and its next_remind_at still equals prev.
func (r *repository) AdvanceReminder(ctx context.Context, id int64, prev, next *time.Time, kind domain.RemindKind) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET next_remind_at = $3, remind_kind = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'OPEN' AND next_remind_at IS NOT DISTINCT FROM $2
	`, id, prev, next, nullable(string(kind)))
	if err != nil {
		return false, fmt.Errorf("advance reminder for task %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Resolve moves an open task to a terminal status and clears every
// follow-up field. Terminal tasks are left untouched.
func (r *repository) Resolve(ctx context.Context, id int64, status domain.Status) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("resolve task %d: %s is not a terminal status", id, status)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = $2,
		    next_remind_at = NULL,
		    remind_kind = NULL,
		    escalate_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'OPEN'
	`, id, string(status))
	if err != nil {
		return false, fmt.Errorf("resolve task %d as %s: %w", id, status, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = 'OPEN' AND next_remind_at IS NOT NULL AND next_remind_at <= $1
		ORDER BY next_remind_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return collectTasks(rows)
}

func (r *repository) ListDueEscalations(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = 'OPEN' AND escalate_at IS NOT NULL AND escalate_at <= $1
		ORDER BY escalate_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due escalations: %w", err)
	}
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows, "")
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// scanTask reads a task row from any pgx row type. extra receives any
// columns selected after taskColumns.
func scanTask(row interface {
	Scan(...any) error
}, key string, extra ...any) (*domain.Task, error) {
	var (
		task                  domain.Task
		status                string
		taskMessage, assignee *string
		remindKind            *string
		due                   pgtype.Date
	)
	dest := []any{
		&task.ID, &task.SourceChannel, &task.SourceMessageID, &task.SourcePermalink, &task.TaskChannel,
		&taskMessage, &status, &task.CreatedAt, &task.UpdatedAt, &assignee, &due, &task.Reactors,
		&task.NextRemindAt, &remindKind, &task.EscalateAt, &task.ReplannedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.TaskNotFoundError{Key: key}
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.Status = domain.Status(status)
	task.TaskMessageID = deref(taskMessage)
	task.Assignee = deref(assignee)
	task.RemindKind = domain.RemindKind(deref(remindKind))
	if due.Valid {
		d := domain.DateOf(due.Time)
		task.DueDate = &d
	}
	if task.Reactors == nil {
		task.Reactors = []string{}
	}
	return &task, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateParam(d *domain.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC), Valid: true}
}
