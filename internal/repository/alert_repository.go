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
	"github.com/lib/pq"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

const alertSelect = `SELECT a.id, a.tutor_id, t.name AS tutor_name, a.alert_type, a.severity, a.category, a.title, a.message, a.metric,
a.metric_value, a.threshold, a.priority, a.created_at, a.is_acknowledged, a.acknowledged_at, a.acknowledged_by, a.is_resolved, a.resolved_at
FROM alerts a JOIN tutors t ON t.id = a.tutor_id`

// AlertRepository persists alerts. The alerts_open_unique partial index keeps
// at most one unresolved row per (tutor_id, metric, category).
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// InsertIfAbsent inserts alert unless an unresolved alert with the same key
// exists. It reports false when the insert was skipped by the constraint.
func (r *AlertRepository) InsertIfAbsent(ctx context.Context, alert *models.Alert) (bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO alerts (id, tutor_id, alert_type, severity, category, title, message, metric, metric_value, threshold, priority, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (tutor_id, metric, category) WHERE NOT is_resolved DO NOTHING RETURNING id`

	var insertedID string
	err := r.db.QueryRowxContext(ctx, query,
		alert.ID, alert.TutorID, alert.AlertType, alert.Severity, alert.Category, alert.Title, alert.Message,
		alert.Metric, alert.MetricValue, alert.Threshold, alert.Priority, alert.CreatedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return true, nil
}

// FindLatest returns the most recent alert for key regardless of state, or
// nil when none exists.
func (r *AlertRepository) FindLatest(ctx context.Context, key models.AlertKey) (*models.Alert, error) {
	query := alertSelect + ` WHERE a.tutor_id = $1 AND a.metric = $2 AND a.category = $3 ORDER BY a.created_at DESC LIMIT 1`
	var alert models.Alert
	if err := r.db.GetContext(ctx, &alert, query, key.TutorID, key.Metric, key.Category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find latest alert: %w", err)
	}
	return &alert, nil
}

// GetByID returns an alert or sql.ErrNoRows.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := alertSelect + ` WHERE a.id = $1`
	var alert models.Alert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &alert, nil
}

// Acknowledge marks an open alert acknowledged once. Repeated calls keep the
// first actor and timestamp, and resolved alerts are left untouched.
func (r *AlertRepository) Acknowledge(ctx context.Context, id, actor string, at time.Time) error {
	const query = `UPDATE alerts SET is_acknowledged = TRUE, acknowledged_at = $2, acknowledged_by = $3 WHERE id = $1 AND NOT is_acknowledged AND NOT is_resolved`
	if _, err := r.db.ExecContext(ctx, query, id, at, actor); err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	return nil
}

// Resolve marks the alert resolved. Resolving twice is a no-op.
func (r *AlertRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE alerts SET is_resolved = TRUE, resolved_at = $2 WHERE id = $1 AND NOT is_resolved`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return nil
}

// List returns a page of alerts ordered by priority with the total count.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, int, error) {
	var conditions []string
	var args []interface{}

	if filter.TutorID != "" {
		args = append(args, filter.TutorID)
		conditions = append(conditions, fmt.Sprintf("a.tutor_id = $%d", len(args)))
	}
	if len(filter.Severities) > 0 {
		severities := make([]string, len(filter.Severities))
		for i, s := range filter.Severities {
			severities[i] = string(s)
		}
		args = append(args, pq.Array(severities))
		conditions = append(conditions, fmt.Sprintf("a.severity = ANY($%d)", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("a.category = $%d", len(args)))
	}
	if filter.Acknowledged != nil {
		args = append(args, *filter.Acknowledged)
		conditions = append(conditions, fmt.Sprintf("a.is_acknowledged = $%d", len(args)))
	}
	if filter.Resolved != nil {
		args = append(args, *filter.Resolved)
		conditions = append(conditions, fmt.Sprintf("a.is_resolved = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("a.created_at >= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM alerts a" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	offset := (filter.Page - 1) * filter.PageSize
	query := fmt.Sprintf("%s%s ORDER BY a.priority DESC, a.created_at DESC LIMIT $%d OFFSET $%d", alertSelect, where, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, offset)

	var alerts []models.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, total, nil
}

// ListSince returns every alert created at or after since.
func (r *AlertRepository) ListSince(ctx context.Context, since time.Time) ([]models.Alert, error) {
	query := alertSelect + ` WHERE a.created_at >= $1 ORDER BY a.created_at DESC`
	var alerts []models.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, since); err != nil {
		return nil, fmt.Errorf("list alerts since: %w", err)
	}
	return alerts, nil
}
