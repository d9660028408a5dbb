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

const sessionColumns = `id, tutor_id, student_id, subject, scheduled_start, duration_minutes, completed, tutor_showed, is_first_session,
had_technical_issues, engagement_score, empathy_score, clarity_score, student_satisfaction, student_rating, created_at`

// SessionRepository reads tutoring sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns sessions in chronological order. From is inclusive and To is
// exclusive.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	var conditions []string
	var args []interface{}

	if filter.TutorID != "" {
		args = append(args, filter.TutorID)
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)))
	}
	if len(filter.TutorIDs) > 0 {
		args = append(args, pq.Array(filter.TutorIDs))
		conditions = append(conditions, fmt.Sprintf("tutor_id = ANY($%d)", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("scheduled_start >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("scheduled_start < $%d", len(args)))
	}
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		conditions = append(conditions, fmt.Sprintf("completed = $%d", len(args)))
	}
	if filter.FirstSessionOnly {
		conditions = append(conditions, "is_first_session = TRUE")
	}

	query := "SELECT " + sessionColumns + " FROM sessions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_start ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Upcoming returns not-yet-completed sessions starting in [from, to).
func (r *SessionRepository) Upcoming(ctx context.Context, from, to time.Time) ([]models.UpcomingSession, error) {
	const query = `SELECT s.id, s.tutor_id, t.name AS tutor_name, s.subject, s.scheduled_start
FROM sessions s JOIN tutors t ON t.id = s.tutor_id
WHERE s.scheduled_start >= $1 AND s.scheduled_start < $2 AND NOT s.completed
ORDER BY s.scheduled_start ASC`
	var sessions []models.UpcomingSession
	if err := r.db.SelectContext(ctx, &sessions, query, from, to); err != nil {
		return nil, fmt.Errorf("list upcoming sessions: %w", err)
	}
	return sessions, nil
}

// GetUpcoming returns a single session with its tutor name.
func (r *SessionRepository) GetUpcoming(ctx context.Context, id string) (*models.UpcomingSession, error) {
	const query = `SELECT s.id, s.tutor_id, t.name AS tutor_name, s.subject, s.scheduled_start
FROM sessions s JOIN tutors t ON t.id = s.tutor_id WHERE s.id = $1`
	var session models.UpcomingSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}
