package models

import (
	"time"

	"github.com/aarondl/null/v8"
)

// ChurnRiskLevel is the externally modelled churn bucket for a tutor.
type ChurnRiskLevel string

const (
	ChurnRiskLow    ChurnRiskLevel = "low"
	ChurnRiskMedium ChurnRiskLevel = "medium"
	ChurnRiskHigh   ChurnRiskLevel = "high"
)

// Tutor is the identity record of a monitored service provider.
type Tutor struct {
	ID                 string      `db:"id" json:"id"`
	Name               string      `db:"name" json:"name"`
	Email              null.String `db:"email" json:"email"`
	PrimarySubject     string      `db:"primary_subject" json:"primary_subject"`
	CertificationLevel string      `db:"certification_level" json:"certification_level"`
	MonthsExperience   int         `db:"months_experience" json:"months_experience"`
	IsActive           bool        `db:"is_active" json:"is_active"`
	LastLoginAt        *time.Time  `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
}

// TutorAggregate is the rolling-window snapshot maintained by the external
// aggregation process. It is read-only here.
type TutorAggregate struct {
	TutorID            string      `db:"tutor_id" json:"tutor_id"`
	TutorName          string      `db:"tutor_name" json:"tutor_name"`
	Email              null.String `db:"email" json:"email"`
	PrimarySubject     string      `db:"primary_subject" json:"primary_subject"`
	CertificationLevel string      `db:"certification_level" json:"certification_level"`
	MonthsExperience   int         `db:"months_experience" json:"months_experience"`
	IsActive           bool        `db:"is_active" json:"is_active"`

	AvgEngagement   null.Float64 `db:"avg_engagement_score" json:"avg_engagement_score"`
	AvgEmpathy      null.Float64 `db:"avg_empathy_score" json:"avg_empathy_score"`
	AvgClarity      null.Float64 `db:"avg_clarity_score" json:"avg_clarity_score"`
	AvgSatisfaction null.Float64 `db:"avg_student_satisfaction" json:"avg_student_satisfaction"`
	AvgRating       null.Float64 `db:"avg_student_rating" json:"avg_student_rating"`
	AvgRating7d     null.Float64 `db:"avg_rating_7d" json:"avg_rating_7d"`

	Sessions7d     int      `db:"sessions_7d" json:"sessions_7d"`
	Sessions30d    int      `db:"sessions_30d" json:"sessions_30d"`
	TotalSessions  int      `db:"total_sessions" json:"total_sessions"`
	DaysSinceLogin null.Int `db:"days_since_login" json:"days_since_login"`

	ChurnProbability null.Float64   `db:"churn_probability" json:"churn_probability"`
	ChurnRiskLevel   ChurnRiskLevel `db:"churn_risk_level" json:"churn_risk_level"`

	ReliabilityScore   null.Float64 `db:"reliability_score" json:"reliability_score"`
	RescheduleRate     null.Float64 `db:"reschedule_rate" json:"reschedule_rate"`
	NoShowRate         null.Float64 `db:"no_show_rate" json:"no_show_rate"`
	TechnicalIssueRate null.Float64 `db:"technical_issue_rate" json:"technical_issue_rate"`
	RecommendationRate null.Float64 `db:"recommendation_rate" json:"recommendation_rate"`
	SentimentTrend7d   null.Float64 `db:"sentiment_trend_7d" json:"sentiment_trend_7d"`

	FirstSessionCount     int          `db:"first_session_count" json:"first_session_count"`
	FirstSessionAvgRating null.Float64 `db:"first_session_avg_rating" json:"first_session_avg_rating"`
	PoorFirstSession      bool         `db:"poor_first_session" json:"poor_first_session"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TutorFilter scopes aggregate queries.
type TutorFilter struct {
	ActiveOnly bool
	TutorIDs   []string
	Subject    string
}
