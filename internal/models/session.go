package models

import (
	"time"

	"github.com/aarondl/null/v8"
)

// MetricType names a per-session quality metric.
type MetricType string

const (
	MetricEngagement   MetricType = "engagement"
	MetricEmpathy      MetricType = "empathy"
	MetricClarity      MetricType = "clarity"
	MetricSatisfaction MetricType = "satisfaction"
	MetricRating       MetricType = "rating"
)

// Valid reports whether m is a known metric.
func (m MetricType) Valid() bool {
	switch m {
	case MetricEngagement, MetricEmpathy, MetricClarity, MetricSatisfaction, MetricRating:
		return true
	}
	return false
}

// Session is a scheduled or completed tutoring session.
type Session struct {
	ID                  string       `db:"id" json:"id"`
	TutorID             string       `db:"tutor_id" json:"tutor_id"`
	StudentID           string       `db:"student_id" json:"student_id"`
	Subject             string       `db:"subject" json:"subject"`
	ScheduledStart      time.Time    `db:"scheduled_start" json:"scheduled_start"`
	DurationMinutes     int          `db:"duration_minutes" json:"duration_minutes"`
	Completed           bool         `db:"completed" json:"completed"`
	TutorShowed         bool         `db:"tutor_showed" json:"tutor_showed"`
	IsFirstSession      bool         `db:"is_first_session" json:"is_first_session"`
	HadTechnicalIssues  bool         `db:"had_technical_issues" json:"had_technical_issues"`
	EngagementScore     null.Float64 `db:"engagement_score" json:"engagement_score"`
	EmpathyScore        null.Float64 `db:"empathy_score" json:"empathy_score"`
	ClarityScore        null.Float64 `db:"clarity_score" json:"clarity_score"`
	StudentSatisfaction null.Float64 `db:"student_satisfaction" json:"student_satisfaction"`
	StudentRating       null.Float64 `db:"student_rating" json:"student_rating"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
}

// Metric returns the session's value for m.
func (s Session) Metric(m MetricType) null.Float64 {
	switch m {
	case MetricEngagement:
		return s.EngagementScore
	case MetricEmpathy:
		return s.EmpathyScore
	case MetricClarity:
		return s.ClarityScore
	case MetricSatisfaction:
		return s.StudentSatisfaction
	case MetricRating:
		return s.StudentRating
	}
	return null.Float64{}
}

// IsNoShow reports a past session the tutor never attended.
func (s Session) IsNoShow() bool {
	return !s.Completed && !s.TutorShowed
}

// IsReschedule reports a session that was not completed although the tutor
// showed up, which is how moved sessions are recorded.
func (s Session) IsReschedule() bool {
	return !s.Completed && s.TutorShowed
}

// SessionFilter scopes session store queries.
type SessionFilter struct {
	TutorID          string
	TutorIDs         []string
	From             *time.Time
	To               *time.Time
	Completed        *bool
	FirstSessionOnly bool
	Limit            int
}

// UpcomingSession is a scheduled session joined with its tutor's name.
type UpcomingSession struct {
	SessionID      string    `db:"id" json:"session_id"`
	TutorID        string    `db:"tutor_id" json:"tutor_id"`
	TutorName      string    `db:"tutor_name" json:"tutor_name"`
	Subject        string    `db:"subject" json:"subject"`
	ScheduledStart time.Time `db:"scheduled_start" json:"scheduled_start"`
}

// TutorActivity captures first and last activity used for retention curves.
type TutorActivity struct {
	TutorID        string     `db:"tutor_id" json:"tutor_id"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	LastActivityAt *time.Time `db:"last_activity_at" json:"last_activity_at,omitempty"`
}
