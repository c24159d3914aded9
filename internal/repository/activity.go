package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskboard/taskboard/internal/domain"
)

// ActivityRepository handles database operations for the project activity feed.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Record appends a feed entry.
func (r *ActivityRepository) Record(ctx context.Context, activity *domain.Activity) error {
	query, args, err := psql.
		Insert("activities").
		Columns("project_id", "user_id", "task_id", "type", "description").
		Values(activity.ProjectID, activity.UserID, activity.TaskID, activity.Type, activity.Description).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Record query for activity: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&activity.ID, &activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}

	return nil
}

// ListByProject retrieves a project's feed, newest first.
func (r *ActivityRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]*domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	query, args, err := psql.
		Select("id", "project_id", "user_id", "task_id", "type", "description", "created_at").
		From("activities").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByProject query for activities: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var activities []*domain.Activity
	for rows.Next() {
		var a domain.Activity
		err := rows.Scan(&a.ID, &a.ProjectID, &a.UserID, &a.TaskID, &a.Type, &a.Description, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return activities, nil
}
