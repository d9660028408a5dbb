package models

import (
	"time"

	"github.com/aarondl/null/v8"
)

// RiskLevel buckets a risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders levels so that high sorts first.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

// RiskFactor explains one weighted signal of a risk score.
type RiskFactor struct {
	Factor       string  `json:"factor"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Explanation  string  `json:"explanation"`
}

// RiskAssessment is computed on demand and never persisted.
type RiskAssessment struct {
	SubjectID      string       `json:"subject_id"`
	TutorID        string       `json:"tutor_id"`
	RiskScore      float64      `json:"risk_score"`
	RiskLevel      RiskLevel    `json:"risk_level"`
	RiskFactors    []RiskFactor `json:"risk_factors"`
	MitigationText string       `json:"mitigation_text"`
	EvaluatedAt    time.Time    `json:"evaluated_at"`
}

// TutorHistory is the historical input to no-show scoring.
type TutorHistory struct {
	TutorID           string
	SessionsObserved  int
	NoShowRate        float64
	RescheduleRate    float64
	ReliabilityScore  null.Float64
	ReliabilitySeries []MetricPoint
	ChurnProbability  null.Float64
}

// HighRiskSession pairs an upcoming session with its assessment.
type HighRiskSession struct {
	Session    UpcomingSession `json:"session"`
	HoursUntil float64         `json:"hours_until"`
	Assessment RiskAssessment  `json:"assessment"`
}

// Urgency classifies how quickly a reliability problem needs attention.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// ReschedulePattern is the reschedule rate within one calendar bucket.
type ReschedulePattern struct {
	Bucket         string  `json:"bucket"`
	Index          int     `json:"index"`
	Sessions       int     `json:"sessions"`
	Reschedules    int     `json:"reschedules"`
	RescheduleRate float64 `json:"reschedule_rate"`
}

// ReliabilityOverview holds population-wide reliability figures.
type ReliabilityOverview struct {
	AvgRescheduleRate    float64 `json:"avg_reschedule_rate"`
	AvgNoShowRate        float64 `json:"avg_no_show_rate"`
	TutorsAboveThreshold int     `json:"tutors_above_threshold"`
	TotalTutorsAnalyzed  int     `json:"total_tutors_analyzed"`
	SessionsAnalyzed     int     `json:"sessions_analyzed"`
}

// ReliabilityRiskTutor is a tutor flagged by reliability analysis.
type ReliabilityRiskTutor struct {
	TutorID         string    `json:"tutor_id"`
	TutorName       string    `json:"tutor_name"`
	RescheduleRate  float64   `json:"reschedule_rate"`
	NoShowRate      float64   `json:"no_show_rate"`
	CombinedRate    float64   `json:"combined_rate"`
	RiskScore       float64   `json:"risk_score"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Urgency         Urgency   `json:"urgency"`
	Recommendations []string  `json:"recommendations"`
}

// ReliabilityAnalysis is the full reliability report.
type ReliabilityAnalysis struct {
	Threshold      float64                `json:"threshold"`
	Overall        ReliabilityOverview    `json:"overall_metrics"`
	ByTimeOfDay    []ReschedulePattern    `json:"reschedule_patterns_by_time_of_day"`
	ByDayOfWeek    []ReschedulePattern    `json:"reschedule_patterns_by_day_of_week"`
	HighRiskTutors []ReliabilityRiskTutor `json:"high_risk_tutors"`
	GeneratedAt    time.Time              `json:"generated_at"`
}
