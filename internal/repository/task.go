package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskboard/taskboard/internal/domain"
)

// taskColumns is the shared list of columns for task queries.
var taskColumns = []string{
	"id", "project_id", "title", "description", "status", "assigned_to",
	"created_by", "priority", "tags", "due_date", "comments", "version",
	"created_at", "updated_at",
}

// TaskRepository handles database operations for tasks.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// TaskFilter narrows ListByProject results. Zero-value fields are ignored.
type TaskFilter struct {
	Status     string
	AssignedTo string
}

// scanTask scans a single row into a Task struct.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task     domain.Task
		comments []byte
	)
	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.AssignedTo,
		&task.CreatedBy,
		&task.Priority,
		&task.Tags,
		&task.DueDate,
		&comments,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &task.Comments); err != nil {
			return nil, fmt.Errorf("decode comments for task %s: %w", task.ID, err)
		}
	}
	return &task, nil
}

// scanTasks scans multiple rows into a slice of Task structs.
func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

func encodeComments(comments []domain.Comment) ([]byte, error) {
	if comments == nil {
		comments = []domain.Comment{}
	}
	data, err := json.Marshal(comments)
	if err != nil {
		return nil, fmt.Errorf("encode comments: %w", err)
	}
	return data, nil
}

// GetByID retrieves a task by ID.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	return scanTask(r.pool.QueryRow(ctx, query, args...))
}

// ListByProject retrieves a project's tasks ordered by creation time.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID string, filter TaskFilter) ([]*domain.Task, error) {
	builder := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("created_at DESC")

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.AssignedTo != "" {
		builder = builder.Where(sq.Eq{"assigned_to": filter.AssignedTo})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByProject query for tasks: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	return scanTasks(rows)
}

// FindDueWithin retrieves tasks whose due date falls between now and
// now+window, excluding tasks already in a terminal status.
func (r *TaskRepository) FindDueWithin(ctx context.Context, window time.Duration, excludeStatuses []string) ([]*domain.Task, error) {
	now := time.Now().UTC()
	builder := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.GtOrEq{"due_date": now}).
		Where(sq.LtOrEq{"due_date": now.Add(window)})

	if len(excludeStatuses) > 0 {
		builder = builder.Where(sq.NotEq{"status": excludeStatuses})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build FindDueWithin query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}

	return scanTasks(rows)
}

// Create creates a new task in the database within a transaction.
// Returns the created task with ID, Version, CreatedAt, and UpdatedAt populated.
func (r *TaskRepository) Create(ctx context.Context, tx pgx.Tx, task *domain.Task) (*domain.Task, error) {
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}

	comments, err := encodeComments(task.Comments)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.
		Insert("tasks").
		Columns(
			"project_id", "title", "description", "status", "assigned_to",
			"created_by", "priority", "tags", "due_date", "comments",
		).
		Values(
			task.ProjectID,
			task.Title,
			task.Description,
			task.Status,
			task.AssignedTo,
			task.CreatedBy,
			task.Priority,
			task.Tags,
			task.DueDate,
			comments,
		).
		Suffix("RETURNING id, version, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for task: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&task.ID, &task.Version, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return task, nil
}

// Save persists the task's mutable fields with optimistic locking on the
// version column. Returns ErrConcurrentModification when the stored version
// no longer matches the version the task was read at; on success the task's
// Version is advanced to the stored value.
func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	comments, err := encodeComments(task.Comments)
	if err != nil {
		return err
	}

	query, args, err := psql.
		Update("tasks").
		Set("title", task.Title).
		Set("description", task.Description).
		Set("status", task.Status).
		Set("assigned_to", task.AssignedTo).
		Set("priority", task.Priority).
		Set("tags", task.Tags).
		Set("due_date", task.DueDate).
		Set("comments", comments).
		Set("version", task.Version+1).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{
			"id":      task.ID,
			"version": task.Version,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Save query for task %s: %w", task.ID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task %s", domain.ErrConcurrentModification, task.ID)
	}

	task.Version++
	return nil
}

// Delete removes a task.
func (r *TaskRepository) Delete(ctx context.Context, taskID string) error {
	query, args, err := psql.
		Delete("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for task %s: %w", taskID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}
