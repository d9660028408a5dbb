package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

const insightColumns = `id, pattern_type, title, description, affected_tutor_ids, correlations, statistical_significance, confidence_score,
status, action_taken, discovered_at, updated_at`

// InsightRepository persists discovered pattern insights.
type InsightRepository struct {
	db *sqlx.DB
}

// NewInsightRepository constructs the repository.
func NewInsightRepository(db *sqlx.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// List returns insights newest first.
func (r *InsightRepository) List(ctx context.Context, filter models.InsightFilter) ([]models.PatternInsight, error) {
	var conditions []string
	var args []interface{}

	if filter.PatternType != "" {
		args = append(args, filter.PatternType)
		conditions = append(conditions, fmt.Sprintf("pattern_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.MinConfidence != nil {
		args = append(args, *filter.MinConfidence)
		conditions = append(conditions, fmt.Sprintf("confidence_score >= $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("discovered_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("discovered_at < $%d", len(args)))
	}

	query := "SELECT " + insightColumns + " FROM pattern_insights"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY discovered_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var insights []models.PatternInsight
	if err := r.db.SelectContext(ctx, &insights, query, args...); err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	return insights, nil
}

// GetByID returns an insight or sql.ErrNoRows.
func (r *InsightRepository) GetByID(ctx context.Context, id string) (*models.PatternInsight, error) {
	query := "SELECT " + insightColumns + " FROM pattern_insights WHERE id = $1"
	var insight models.PatternInsight
	if err := r.db.GetContext(ctx, &insight, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get insight: %w", err)
	}
	return &insight, nil
}

// Create inserts a new insight.
func (r *InsightRepository) Create(ctx context.Context, insight *models.PatternInsight) error {
	if insight.ID == "" {
		insight.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if insight.DiscoveredAt.IsZero() {
		insight.DiscoveredAt = now
	}
	if insight.UpdatedAt.IsZero() {
		insight.UpdatedAt = insight.DiscoveredAt
	}
	if insight.Status == "" {
		insight.Status = models.InsightActive
	}
	const query = `INSERT INTO pattern_insights (id, pattern_type, title, description, affected_tutor_ids, correlations, statistical_significance,
confidence_score, status, action_taken, discovered_at, updated_at)
VALUES (:id, :pattern_type, :title, :description, :affected_tutor_ids, :correlations, :statistical_significance,
:confidence_score, :status, :action_taken, :discovered_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, insight); err != nil {
		return fmt.Errorf("create insight: %w", err)
	}
	return nil
}

// UpdateStatus changes the lifecycle status. A nil actionTaken keeps the
// stored value.
func (r *InsightRepository) UpdateStatus(ctx context.Context, id string, status models.InsightStatus, actionTaken *string, at time.Time) error {
	const query = `UPDATE pattern_insights SET status = $2, action_taken = COALESCE($3, action_taken), updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, actionTaken, at)
	if err != nil {
		return fmt.Errorf("update insight status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
