package models

import "time"

// AlertSeverity orders alerts by urgency.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

var severityOrder = []AlertSeverity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank returns 1 for low through 4 for critical, 0 when unknown.
func (s AlertSeverity) Rank() int {
	for i, v := range severityOrder {
		if v == s {
			return i + 1
		}
	}
	return 0
}

// SeverityFromRank is the inverse of Rank, clamped to the known range.
func SeverityFromRank(rank int) AlertSeverity {
	if rank < 1 {
		rank = 1
	}
	if rank > len(severityOrder) {
		rank = len(severityOrder)
	}
	return severityOrder[rank-1]
}

// Valid reports whether s is a known severity.
func (s AlertSeverity) Valid() bool { return s.Rank() > 0 }

// AlertCategory groups alerts for dedup and campaign recommendations.
type AlertCategory string

const (
	CategoryChurn       AlertCategory = "churn"
	CategoryEngagement  AlertCategory = "engagement"
	CategoryQuality     AlertCategory = "quality"
	CategoryTechnical   AlertCategory = "technical"
	CategoryReliability AlertCategory = "reliability"
)

// Valid reports whether c is a known category.
func (c AlertCategory) Valid() bool {
	switch c {
	case CategoryChurn, CategoryEngagement, CategoryQuality, CategoryTechnical, CategoryReliability:
		return true
	}
	return false
}

// AlertState is derived from the acknowledge/resolve flags.
type AlertState string

const (
	AlertOpen         AlertState = "open"
	AlertAcknowledged AlertState = "acknowledged"
	AlertResolved     AlertState = "resolved"
)

// Alert is a persisted threshold breach. At most one unresolved alert exists
// per (tutor_id, metric, category).
type Alert struct {
	ID             string        `db:"id" json:"id"`
	TutorID        string        `db:"tutor_id" json:"tutor_id"`
	TutorName      string        `db:"tutor_name" json:"tutor_name,omitempty"`
	AlertType      string        `db:"alert_type" json:"alert_type"`
	Severity       AlertSeverity `db:"severity" json:"severity"`
	Category       AlertCategory `db:"category" json:"category"`
	Title          string        `db:"title" json:"title"`
	Message        string        `db:"message" json:"message"`
	Metric         string        `db:"metric" json:"metric"`
	MetricValue    float64       `db:"metric_value" json:"metric_value"`
	Threshold      float64       `db:"threshold" json:"threshold"`
	Priority       int           `db:"priority" json:"priority"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	IsAcknowledged bool          `db:"is_acknowledged" json:"is_acknowledged"`
	AcknowledgedAt *time.Time    `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy *string       `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	IsResolved     bool          `db:"is_resolved" json:"is_resolved"`
	ResolvedAt     *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
}

// State returns the lifecycle state of the alert.
func (a Alert) State() AlertState {
	switch {
	case a.IsResolved:
		return AlertResolved
	case a.IsAcknowledged:
		return AlertAcknowledged
	default:
		return AlertOpen
	}
}

// AlertKey is the dedup tuple.
type AlertKey struct {
	TutorID  string
	Metric   string
	Category AlertCategory
}

// Key returns the dedup tuple of a.
func (a Alert) Key() AlertKey {
	return AlertKey{TutorID: a.TutorID, Metric: a.Metric, Category: a.Category}
}

// AlertFilter captures list filters.
type AlertFilter struct {
	TutorID      string
	Severities   []AlertSeverity
	Category     AlertCategory
	Acknowledged *bool
	Resolved     *bool
	Since        *time.Time
	Page         int
	PageSize     int
}

// AlertStatistics aggregates alerts over a trailing window.
type AlertStatistics struct {
	WindowDays         int                   `json:"window_days"`
	Since              time.Time             `json:"since"`
	Total              int                   `json:"total"`
	BySeverity         map[AlertSeverity]int `json:"by_severity"`
	ByCategory         map[AlertCategory]int `json:"by_category"`
	Open               int                   `json:"open"`
	Acknowledged       int                   `json:"acknowledged"`
	Unacknowledged     int                   `json:"unacknowledged"`
	Resolved           int                   `json:"resolved"`
	AffectedTutors     int                   `json:"affected_tutors"`
	AvgBreachMagnitude float64               `json:"avg_breach_magnitude"`
}

// AlertGenerationResult summarises one generation run.
type AlertGenerationResult struct {
	RunID     string       `json:"run_id"`
	Evaluated int          `json:"evaluated"`
	Generated int          `json:"generated"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors"`
	Alerts    []Alert      `json:"alerts"`
}

// Summary converts the run into the shared batch summary shape.
func (r AlertGenerationResult) Summary() BatchSummary {
	return BatchSummary{Succeeded: r.Generated, Failed: r.Failed, Skipped: r.Skipped, Errors: r.Errors}
}

// TutorAlerts lists a tutor's alerts with a combined priority score.
type TutorAlerts struct {
	TutorID       string  `json:"tutor_id"`
	Alerts        []Alert `json:"alerts"`
	PriorityScore float64 `json:"priority_score"`
}
