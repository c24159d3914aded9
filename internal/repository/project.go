package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskboard/taskboard/internal/domain"
)

// projectColumns is the shared list of columns for project queries.
var projectColumns = []string{
	"id", "name", "description", "owner_id", "statuses", "created_at", "updated_at",
}

// ProjectRepository handles database operations for projects and membership.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

// scanProject scans a single row into a Project struct. Members are loaded
// separately.
func scanProject(row pgx.Row) (*domain.Project, error) {
	var (
		project  domain.Project
		statuses []byte
	)
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.OwnerID,
		&statuses,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	if len(statuses) > 0 {
		if err := json.Unmarshal(statuses, &project.Statuses); err != nil {
			return nil, fmt.Errorf("decode statuses for project %s: %w", project.ID, err)
		}
	}
	return &project, nil
}

func encodeStatuses(statuses []domain.ProjectStatus) ([]byte, error) {
	if statuses == nil {
		statuses = domain.DefaultStatuses()
	}
	data, err := json.Marshal(statuses)
	if err != nil {
		return nil, fmt.Errorf("encode statuses: %w", err)
	}
	return data, nil
}

// Create creates a new project and its owner membership within a transaction.
func (r *ProjectRepository) Create(ctx context.Context, tx pgx.Tx, project *domain.Project) (*domain.Project, error) {
	if project.Statuses == nil {
		project.Statuses = domain.DefaultStatuses()
	}
	statuses, err := encodeStatuses(project.Statuses)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.
		Insert("projects").
		Columns("name", "description", "owner_id", "statuses").
		Values(project.Name, project.Description, project.OwnerID, statuses).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for project: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	if err := r.addMember(ctx, tx, project.ID, project.OwnerID, domain.MemberRoleOwner); err != nil {
		return nil, err
	}
	project.Members = []domain.ProjectMember{{UserID: project.OwnerID, Role: domain.MemberRoleOwner}}

	return project, nil
}

// GetByID retrieves a project with its members.
func (r *ProjectRepository) GetByID(ctx context.Context, projectID string) (*domain.Project, error) {
	query, args, err := psql.
		Select(projectColumns...).
		From("projects").
		Where(sq.Eq{"id": projectID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for project: %w", err)
	}

	project, err := scanProject(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	project.Members, err = r.listMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ListByMember retrieves all projects a user belongs to, most recent first.
func (r *ProjectRepository) ListByMember(ctx context.Context, userID string) ([]*domain.Project, error) {
	query, args, err := psql.
		Select(
			"p.id", "p.name", "p.description", "p.owner_id", "p.statuses",
			"p.created_at", "p.updated_at",
		).
		From("projects p").
		Join("project_members m ON m.project_id = p.id").
		Where(sq.Eq{"m.user_id": userID}).
		OrderBy("p.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByMember query for projects: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return projects, nil
}

// Update persists a project's name, description, and board statuses.
func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	statuses, err := encodeStatuses(project.Statuses)
	if err != nil {
		return err
	}

	query, args, err := psql.
		Update("projects").
		Set("name", project.Name).
		Set("description", project.Description).
		Set("statuses", statuses).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": project.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Update query for project %s: %w", project.ID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}

	return nil
}

// AddMember adds a user to a project.
func (r *ProjectRepository) AddMember(ctx context.Context, projectID, userID string, role domain.MemberRole) error {
	return r.addMember(ctx, r.pool, projectID, userID, role)
}

// execer covers both pool and transaction execution.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *ProjectRepository) addMember(ctx context.Context, exec execer, projectID, userID string, role domain.MemberRole) error {
	query, args, err := psql.
		Insert("project_members").
		Columns("project_id", "user_id", "role").
		Values(projectID, userID, role).
		Suffix("ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role").
		ToSql()
	if err != nil {
		return fmt.Errorf("build addMember query for project %s: %w", projectID, err)
	}

	if _, err := exec.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("add project member: %w", err)
	}
	return nil
}

// listMembers loads a project's membership rows.
func (r *ProjectRepository) listMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	query, args, err := psql.
		Select("user_id", "role").
		From("project_members").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("role ASC, user_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build listMembers query for project %s: %w", projectID, err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query project members: %w", err)
	}
	defer rows.Close()

	var members []domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		if err := rows.Scan(&m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("scan project member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return members, nil
}
