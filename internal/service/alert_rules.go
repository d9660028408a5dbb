package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
)

// AlertRule describes one monitored condition over a tutor aggregate.
type AlertRule struct {
	Type         string
	Title        string
	Category     models.AlertCategory
	BaseSeverity models.AlertSeverity
	Metric       string
	Priority     int
	Cooldown     time.Duration
	// Message may reference {tutor}, {value} and {threshold}.
	Message   string
	Threshold func(config.Thresholds) float64
	// Evaluate returns the observed value and whether the rule fires. Rules
	// never fire on absent values.
	Evaluate func(agg models.TutorAggregate, threshold float64, t config.Thresholds) (float64, bool)
}

// DefaultAlertRules returns the rule catalog sorted by priority.
func DefaultAlertRules() []AlertRule {
	rules := []AlertRule{
		{
			Type:         "churn_risk_high",
			Title:        "Critical Churn Risk Detected",
			Category:     models.CategoryChurn,
			BaseSeverity: models.SeverityCritical,
			Metric:       "churn_probability",
			Priority:     100,
			Cooldown:     48 * time.Hour,
			Message:      "{tutor} has {value}% churn probability (threshold {threshold}%). Immediate intervention required.",
			Threshold:    func(t config.Thresholds) float64 { return t.ChurnHighThreshold },
			Evaluate: func(agg models.TutorAggregate, threshold float64, _ config.Thresholds) (float64, bool) {
				if agg.ChurnRiskLevel != models.ChurnRiskHigh || !agg.ChurnProbability.Valid {
					return 0, false
				}
				v := agg.ChurnProbability.Float64
				return v, v > threshold
			},
		},
		{
			Type:         "no_login_7d",
			Title:        "No Login Activity",
			Category:     models.CategoryEngagement,
			BaseSeverity: models.SeverityHigh,
			Metric:       "days_since_login",
			Priority:     80,
			Cooldown:     72 * time.Hour,
			Message:      "{tutor} has not logged in for {value} days. Risk of disengagement.",
			Threshold:    func(t config.Thresholds) float64 { return t.InactiveLoginDays },
			Evaluate: func(agg models.TutorAggregate, threshold float64, _ config.Thresholds) (float64, bool) {
				if !agg.DaysSinceLogin.Valid {
					return 0, false
				}
				v := float64(agg.DaysSinceLogin.Int)
				return v, v >= threshold
			},
		},
		{
			Type:         "no_sessions_14d",
			Title:        "No Sessions Completed Recently",
			Category:     models.CategoryEngagement,
			BaseSeverity: models.SeverityCritical,
			Metric:       "sessions_7d",
			Priority:     95,
			Cooldown:     48 * time.Hour,
			Message:      "{tutor} has not completed any sessions recently. Critical activation issue.",
			Threshold:    func(config.Thresholds) float64 { return 1 },
			Evaluate: func(agg models.TutorAggregate, _ float64, _ config.Thresholds) (float64, bool) {
				return float64(agg.Sessions7d), agg.IsActive && agg.Sessions7d == 0
			},
		},
		{
			Type:         "declining_engagement",
			Title:        "Declining Engagement Trend",
			Category:     models.CategoryEngagement,
			BaseSeverity: models.SeverityHigh,
			Metric:       "engagement_score",
			Priority:     70,
			Cooldown:     120 * time.Hour,
			Message:      "{tutor} shows declining engagement: average score {value} against a floor of {threshold}.",
			Threshold:    func(t config.Thresholds) float64 { return t.EngagementLowThreshold },
			Evaluate: func(agg models.TutorAggregate, threshold float64, t config.Thresholds) (float64, bool) {
				if !agg.AvgEngagement.Valid {
					return 0, false
				}
				v := agg.AvgEngagement.Float64
				declining := agg.SentimentTrend7d.Valid && agg.SentimentTrend7d.Float64 < t.SentimentDeclineThreshold
				return v, v < threshold || declining
			},
		},
		{
			Type:         "low_rating_trend",
			Title:        "Low Rating in Recent Sessions",
			Category:     models.CategoryQuality,
			BaseSeverity: models.SeverityHigh,
			Metric:       "avg_rating_7d",
			Priority:     85,
			Cooldown:     72 * time.Hour,
			Message:      "{tutor} received low ratings in the last 7 days: {value}/5.0. Quality concerns detected.",
			Threshold:    func(t config.Thresholds) float64 { return t.LowRatingThreshold },
			Evaluate: func(agg models.TutorAggregate, threshold float64, _ config.Thresholds) (float64, bool) {
				if !agg.AvgRating7d.Valid {
					return 0, false
				}
				v := agg.AvgRating7d.Float64
				return v, v < threshold
			},
		},
		{
			Type:         "technical_issues_spike",
			Title:        "High Technical Issue Rate",
			Category:     models.CategoryTechnical,
			BaseSeverity: models.SeverityMedium,
			Metric:       "technical_issue_rate",
			Priority:     50,
			Cooldown:     96 * time.Hour,
			Message:      "{tutor} is experiencing technical issues in {value}% of sessions. IT support may be needed.",
			Threshold:    func(t config.Thresholds) float64 { return t.TechnicalIssueThreshold },
			Evaluate: func(agg models.TutorAggregate, threshold float64, _ config.Thresholds) (float64, bool) {
				if !agg.TechnicalIssueRate.Valid {
					return 0, false
				}
				v := agg.TechnicalIssueRate.Float64
				return v, v > threshold
			},
		},
		{
			Type:         "poor_first_session",
			Title:        "Poor First Session Performance",
			Category:     models.CategoryQuality,
			BaseSeverity: models.SeverityHigh,
			Metric:       "first_session_avg_rating",
			Priority:     75,
			Cooldown:     168 * time.Hour,
			Message:      "{tutor} has poor first session ratings (avg {value}/5.0).",
			Threshold:    func(t config.Thresholds) float64 { return t.FirstSessionRatingThreshold },
			Evaluate: func(agg models.TutorAggregate, _ float64, _ config.Thresholds) (float64, bool) {
				if !agg.PoorFirstSession || !agg.FirstSessionAvgRating.Valid {
					return 0, false
				}
				return agg.FirstSessionAvgRating.Float64, true
			},
		},
		{
			Type:         "high_reschedule_rate",
			Title:        "High Reschedule Rate",
			Category:     models.CategoryReliability,
			BaseSeverity: models.SeverityMedium,
			Metric:       "reschedule_rate",
			Priority:     55,
			Cooldown:     168 * time.Hour,
			Message:      "{tutor} has a {value}% reschedule rate (threshold {threshold}%). Reliability concerns.",
			Threshold:    func(t config.Thresholds) float64 { return t.RescheduleRateThreshold },
			Evaluate: func(agg models.TutorAggregate, threshold float64, _ config.Thresholds) (float64, bool) {
				if !agg.RescheduleRate.Valid {
					return 0, false
				}
				v := agg.RescheduleRate.Float64
				return v, v > threshold
			},
		},
		{
			Type:         "first_session_scheduled",
			Title:        "First Session Preparation Reminder",
			Category:     models.CategoryEngagement,
			BaseSeverity: models.SeverityLow,
			Metric:       "first_session_count",
			Priority:     30,
			Cooldown:     72 * time.Hour,
			Message:      "{tutor} has only run {value} first sessions. Preparation support recommended.",
			Threshold:    func(t config.Thresholds) float64 { return t.FirstSessionCountThreshold },
			Evaluate: func(agg models.TutorAggregate, threshold float64, _ config.Thresholds) (float64, bool) {
				v := float64(agg.FirstSessionCount)
				return v, v < threshold
			},
		},
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
	return rules
}

// BreachMagnitude is the relative distance between value and threshold. A
// zero threshold falls back to the absolute distance.
func BreachMagnitude(value, threshold float64) float64 {
	diff := math.Abs(value - threshold)
	if threshold == 0 {
		return diff
	}
	return diff / math.Abs(threshold)
}

// SeverityForBreach buckets the breach magnitude and keeps the result within
// one level of the rule's base severity.
func SeverityForBreach(base models.AlertSeverity, value, threshold float64) models.AlertSeverity {
	m := BreachMagnitude(value, threshold)
	var rank int
	switch {
	case m < 0.10:
		rank = models.SeverityLow.Rank()
	case m < 0.25:
		rank = models.SeverityMedium.Rank()
	case m < 0.50:
		rank = models.SeverityHigh.Rank()
	default:
		rank = models.SeverityCritical.Rank()
	}
	if floor := base.Rank() - 1; rank < floor {
		rank = floor
	}
	if ceiling := base.Rank() + 1; rank > ceiling {
		rank = ceiling
	}
	return models.SeverityFromRank(rank)
}

// formatMetricValue renders rates and probabilities as percentages.
func formatMetricValue(metric string, v float64) string {
	switch {
	case strings.Contains(metric, "rate") || strings.Contains(metric, "probability"):
		return fmt.Sprintf("%.1f", v*100)
	case strings.HasPrefix(metric, "days_") || strings.HasSuffix(metric, "_count") || strings.HasPrefix(metric, "sessions_"):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// Build materialises a firing rule into an unsaved alert.
func (r AlertRule) Build(agg models.TutorAggregate, value, threshold float64, now time.Time) models.Alert {
	name := agg.TutorName
	if name == "" {
		name = "Tutor " + agg.TutorID
	}
	msg := strings.NewReplacer(
		"{tutor}", name,
		"{value}", formatMetricValue(r.Metric, value),
		"{threshold}", formatMetricValue(r.Metric, threshold),
	).Replace(r.Message)

	return models.Alert{
		TutorID:     agg.TutorID,
		TutorName:   agg.TutorName,
		AlertType:   r.Type,
		Severity:    SeverityForBreach(r.BaseSeverity, value, threshold),
		Category:    r.Category,
		Title:       r.Title,
		Message:     msg,
		Metric:      r.Metric,
		MetricValue: value,
		Threshold:   threshold,
		Priority:    r.Priority,
		CreatedAt:   now,
	}
}

// TutorPriorityScore combines alert priorities: the highest counts in full and
// the next four add a fifth of theirs each, capped at 100.
func TutorPriorityScore(alerts []models.Alert) float64 {
	if len(alerts) == 0 {
		return 0
	}
	priorities := make([]int, len(alerts))
	for i, a := range alerts {
		priorities[i] = a.Priority
	}
	sort.Sort(sort.Reverse(sort.IntSlice(priorities)))

	score := float64(priorities[0])
	for i := 1; i < len(priorities) && i < 5; i++ {
		score += float64(priorities[i]) * 0.2
	}
	return math.Min(score, 100)
}
