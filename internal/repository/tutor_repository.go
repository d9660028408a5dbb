package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

const tutorAggregateColumns = `t.id AS tutor_id, t.name AS tutor_name, t.email, t.primary_subject, t.certification_level, t.months_experience, t.is_active,
a.avg_engagement_score, a.avg_empathy_score, a.avg_clarity_score, a.avg_student_satisfaction, a.avg_student_rating, a.avg_rating_7d,
a.sessions_7d, a.sessions_30d, a.total_sessions, a.days_since_login, a.churn_probability, a.churn_risk_level,
a.reliability_score, a.reschedule_rate, a.no_show_rate, a.technical_issue_rate, a.recommendation_rate, a.sentiment_trend_7d,
a.first_session_count, a.first_session_avg_rating, a.poor_first_session, a.updated_at`

const tutorAggregateFrom = `FROM tutors t JOIN tutor_aggregates a ON a.tutor_id = t.id`

// TutorRepository reads tutors joined with their rolling aggregates.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository constructs the repository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// ListAggregates returns aggregates scoped by filter, ordered by tutor id.
func (r *TutorRepository) ListAggregates(ctx context.Context, filter models.TutorFilter) ([]models.TutorAggregate, error) {
	var conditions []string
	var args []interface{}

	if filter.ActiveOnly {
		conditions = append(conditions, "t.is_active = TRUE")
	}
	if len(filter.TutorIDs) > 0 {
		args = append(args, pq.Array(filter.TutorIDs))
		conditions = append(conditions, fmt.Sprintf("t.id = ANY($%d)", len(args)))
	}
	if filter.Subject != "" {
		args = append(args, filter.Subject)
		conditions = append(conditions, fmt.Sprintf("t.primary_subject = $%d", len(args)))
	}

	query := fmt.Sprintf("SELECT %s %s", tutorAggregateColumns, tutorAggregateFrom)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY t.id ASC"

	var rows []models.TutorAggregate
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list tutor aggregates: %w", err)
	}
	return rows, nil
}

// GetAggregate returns one tutor's aggregate or sql.ErrNoRows.
func (r *TutorRepository) GetAggregate(ctx context.Context, tutorID string) (*models.TutorAggregate, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE t.id = $1", tutorAggregateColumns, tutorAggregateFrom)
	var agg models.TutorAggregate
	if err := r.db.GetContext(ctx, &agg, query, tutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get tutor aggregate: %w", err)
	}
	return &agg, nil
}

// FindByCriteria returns tutors matching every predicate in criteria. A set
// range on a nullable metric excludes tutors with no value for it.
func (r *TutorRepository) FindByCriteria(ctx context.Context, criteria models.TargetCriteria) ([]models.TutorAggregate, error) {
	where, args := buildCriteriaWhere(criteria)
	query := fmt.Sprintf("SELECT %s %s%s ORDER BY t.id ASC", tutorAggregateColumns, tutorAggregateFrom, where)
	if criteria.Limit > 0 {
		args = append(args, criteria.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []models.TutorAggregate
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find tutors by criteria: %w", err)
	}
	return rows, nil
}

// CountByCriteria counts matches ignoring criteria.Limit.
func (r *TutorRepository) CountByCriteria(ctx context.Context, criteria models.TargetCriteria) (int, error) {
	where, args := buildCriteriaWhere(criteria)
	query := fmt.Sprintf("SELECT COUNT(*) %s%s", tutorAggregateFrom, where)
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count tutors by criteria: %w", err)
	}
	return total, nil
}

// ListActivity returns tutors created in [from, to) with their last completed
// session, used for retention curves.
func (r *TutorRepository) ListActivity(ctx context.Context, from, to time.Time) ([]models.TutorActivity, error) {
	const query = `SELECT t.id AS tutor_id, t.created_at, MAX(s.scheduled_start) FILTER (WHERE s.completed) AS last_activity_at
FROM tutors t LEFT JOIN sessions s ON s.tutor_id = t.id
WHERE t.created_at >= $1 AND t.created_at < $2
GROUP BY t.id, t.created_at ORDER BY t.created_at ASC`
	var rows []models.TutorActivity
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list tutor activity: %w", err)
	}
	return rows, nil
}

type criteriaBuilder struct {
	conditions []string
	args       []interface{}
}

func (b *criteriaBuilder) add(expr string, arg interface{}) {
	b.args = append(b.args, arg)
	b.conditions = append(b.conditions, fmt.Sprintf(expr, len(b.args)))
}

func (b *criteriaBuilder) floatRange(column string, rng *models.FloatRange) {
	if !rng.IsSet() {
		return
	}
	if rng.Min != nil {
		b.add(column+" >= $%d", *rng.Min)
	}
	if rng.Max != nil {
		b.add(column+" <= $%d", *rng.Max)
	}
}

func (b *criteriaBuilder) intRange(column string, rng *models.IntRange) {
	if !rng.IsSet() {
		return
	}
	if rng.Min != nil {
		b.add(column+" >= $%d", *rng.Min)
	}
	if rng.Max != nil {
		b.add(column+" <= $%d", *rng.Max)
	}
}

// buildCriteriaWhere renders criteria as a WHERE clause. Comparisons against
// NULL are never true in Postgres, so nullable metrics drop out of set ranges.
func buildCriteriaWhere(c models.TargetCriteria) (string, []interface{}) {
	b := &criteriaBuilder{}

	if len(c.ChurnRiskLevels) > 0 {
		levels := make([]string, len(c.ChurnRiskLevels))
		for i, lvl := range c.ChurnRiskLevels {
			levels[i] = string(lvl)
		}
		b.add("a.churn_risk_level = ANY($%d)", pq.Array(levels))
	}
	if len(c.PrimarySubjects) > 0 {
		b.add("t.primary_subject = ANY($%d)", pq.Array(c.PrimarySubjects))
	}
	if len(c.CertificationLevels) > 0 {
		b.add("t.certification_level = ANY($%d)", pq.Array(c.CertificationLevels))
	}
	b.intRange("t.months_experience", c.MonthsExperience)
	b.floatRange("a.avg_engagement_score", c.AvgEngagement)
	b.floatRange("a.avg_student_rating", c.AvgRating)
	b.intRange("a.days_since_login", c.DaysSinceLogin)
	b.intRange("a.sessions_7d", c.Sessions7d)
	b.floatRange("a.technical_issue_rate", c.TechnicalIssueRate)
	b.floatRange("a.reschedule_rate", c.RescheduleRate)
	if c.PoorFirstSession != nil {
		b.add("a.poor_first_session = $%d", *c.PoorFirstSession)
	}
	if c.ActiveStatus != nil {
		b.add("t.is_active = $%d", *c.ActiveStatus)
	}

	if len(b.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(b.conditions, " AND "), b.args
}
