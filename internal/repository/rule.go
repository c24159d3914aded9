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

// ruleColumns is the shared list of columns for automation rule queries.
var ruleColumns = []string{
	"id", "project_id", "name", "description", "trigger_type",
	"trigger_conditions", "actions", "is_active", "created_by",
	"last_triggered_at", "trigger_count", "created_at", "updated_at",
}

// RuleRepository handles database operations for automation rules.
type RuleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

// scanRule scans a single row into an AutomationRule struct. The trigger and
// action documents are decoded through the domain codecs, which tolerate
// unrecognised types so one corrupted rule cannot break a list query.
func scanRule(row pgx.Row) (*domain.AutomationRule, error) {
	var (
		rule        domain.AutomationRule
		triggerType domain.TriggerType
		conditions  []byte
		actions     []byte
	)
	err := row.Scan(
		&rule.ID,
		&rule.ProjectID,
		&rule.Name,
		&rule.Description,
		&triggerType,
		&conditions,
		&actions,
		&rule.IsActive,
		&rule.CreatedBy,
		&rule.LastTriggeredAt,
		&rule.TriggerCount,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}

	rule.Trigger, err = domain.DecodeTrigger(triggerType, conditions)
	if err != nil {
		return nil, fmt.Errorf("decode trigger for rule %s: %w", rule.ID, err)
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("decode actions for rule %s: %w", rule.ID, err)
		}
	}
	return &rule, nil
}

// scanRules scans multiple rows into a slice of AutomationRule structs.
func scanRules(rows pgx.Rows) ([]*domain.AutomationRule, error) {
	defer rows.Close()

	var rules []*domain.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return rules, nil
}

func encodeRuleDocs(rule *domain.AutomationRule) (conditions, actions []byte, err error) {
	conditions, err = rule.Trigger.ConditionsJSON()
	if err != nil {
		return nil, nil, err
	}
	actions, err = json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("encode actions: %w", err)
	}
	return conditions, actions, nil
}

// Create creates a new automation rule within a transaction.
func (r *RuleRepository) Create(ctx context.Context, tx pgx.Tx, rule *domain.AutomationRule) (*domain.AutomationRule, error) {
	conditions, actions, err := encodeRuleDocs(rule)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.
		Insert("automation_rules").
		Columns(
			"project_id", "name", "description", "trigger_type",
			"trigger_conditions", "actions", "is_active", "created_by",
		).
		Values(
			rule.ProjectID,
			rule.Name,
			rule.Description,
			rule.Trigger.Type,
			conditions,
			actions,
			rule.IsActive,
			rule.CreatedBy,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for rule: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}

	return rule, nil
}

// GetByID retrieves a rule by ID.
func (r *RuleRepository) GetByID(ctx context.Context, ruleID string) (*domain.AutomationRule, error) {
	query, args, err := psql.
		Select(ruleColumns...).
		From("automation_rules").
		Where(sq.Eq{"id": ruleID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for rule: %w", err)
	}

	return scanRule(r.pool.QueryRow(ctx, query, args...))
}

// ListByProject retrieves all of a project's rules, active or not.
func (r *RuleRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.AutomationRule, error) {
	query, args, err := psql.
		Select(ruleColumns...).
		From("automation_rules").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByProject query for rules: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}

	return scanRules(rows)
}

// ListActive retrieves a project's active rules in creation order, which is
// also the order the engine evaluates them in.
func (r *RuleRepository) ListActive(ctx context.Context, projectID string) ([]*domain.AutomationRule, error) {
	query, args, err := psql.
		Select(ruleColumns...).
		From("automation_rules").
		Where(sq.Eq{
			"project_id": projectID,
			"is_active":  true,
		}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListActive query for rules: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}

	return scanRules(rows)
}

// Update persists a rule's definition fields. Firing statistics are never
// written here; they only move through RecordFired.
func (r *RuleRepository) Update(ctx context.Context, rule *domain.AutomationRule) error {
	conditions, actions, err := encodeRuleDocs(rule)
	if err != nil {
		return err
	}

	query, args, err := psql.
		Update("automation_rules").
		Set("name", rule.Name).
		Set("description", rule.Description).
		Set("trigger_type", rule.Trigger.Type).
		Set("trigger_conditions", conditions).
		Set("actions", actions).
		Set("is_active", rule.IsActive).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": rule.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Update query for rule %s: %w", rule.ID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}

	return nil
}

// Delete removes a rule.
func (r *RuleRepository) Delete(ctx context.Context, ruleID string) error {
	query, args, err := psql.
		Delete("automation_rules").
		Where(sq.Eq{"id": ruleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for rule %s: %w", ruleID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}

	return nil
}

// RecordFired bumps the rule's firing statistics. The increment happens in a
// single statement so concurrent fires never lose counts.
func (r *RuleRepository) RecordFired(ctx context.Context, ruleID string, firedAt time.Time) error {
	query, args, err := psql.
		Update("automation_rules").
		Set("trigger_count", sq.Expr("trigger_count + 1")).
		Set("last_triggered_at", firedAt).
		Where(sq.Eq{"id": ruleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build RecordFired query for rule %s: %w", ruleID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("record rule firing: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}

	return nil
}
