package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// TargetCriteriaVersion is the schema version written with persisted criteria.
const TargetCriteriaVersion = 1

// FloatRange bounds a metric. A nil end is open.
type FloatRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsSet reports whether either bound is present.
func (r *FloatRange) IsSet() bool {
	return r != nil && (r.Min != nil || r.Max != nil)
}

// Contains reports whether v is within the range.
func (r *FloatRange) Contains(v float64) bool {
	if r == nil {
		return true
	}
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// IntRange bounds an integer field.
type IntRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// IsSet reports whether either bound is present.
func (r *IntRange) IsSet() bool {
	return r != nil && (r.Min != nil || r.Max != nil)
}

// Contains reports whether v is within the range.
func (r *IntRange) Contains(v int) bool {
	if r == nil {
		return true
	}
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// TargetCriteria is a composable AND of tutor predicates. It is persisted on
// campaigns as JSONB.
type TargetCriteria struct {
	Version             int              `json:"version"`
	ChurnRiskLevels     []ChurnRiskLevel `json:"churn_risk_levels,omitempty"`
	PrimarySubjects     []string         `json:"primary_subjects,omitempty"`
	CertificationLevels []string         `json:"certification_levels,omitempty"`
	MonthsExperience    *IntRange        `json:"months_experience,omitempty"`
	AvgEngagement       *FloatRange      `json:"avg_engagement,omitempty"`
	AvgRating           *FloatRange      `json:"avg_rating,omitempty"`
	DaysSinceLogin      *IntRange        `json:"days_since_login,omitempty"`
	Sessions7d          *IntRange        `json:"sessions_7d,omitempty"`
	TechnicalIssueRate  *FloatRange      `json:"technical_issue_rate,omitempty"`
	RescheduleRate      *FloatRange      `json:"reschedule_rate,omitempty"`
	PoorFirstSession    *bool            `json:"poor_first_session,omitempty"`
	ActiveStatus        *bool            `json:"active_status,omitempty"`
	Limit               int              `json:"limit,omitempty" validate:"omitempty,min=1,max=5000"`
}

// IsEmpty reports whether no predicate is set. Limit and ActiveStatus alone
// do not narrow the population.
func (c TargetCriteria) IsEmpty() bool {
	return len(c.ChurnRiskLevels) == 0 &&
		len(c.PrimarySubjects) == 0 &&
		len(c.CertificationLevels) == 0 &&
		!c.MonthsExperience.IsSet() &&
		!c.AvgEngagement.IsSet() &&
		!c.AvgRating.IsSet() &&
		!c.DaysSinceLogin.IsSet() &&
		!c.Sessions7d.IsSet() &&
		!c.TechnicalIssueRate.IsSet() &&
		!c.RescheduleRate.IsSet() &&
		c.PoorFirstSession == nil
}

// Value marshals criteria to JSON for persistence.
func (c TargetCriteria) Value() (driver.Value, error) {
	if c.Version == 0 {
		c.Version = TargetCriteriaVersion
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal target criteria: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into criteria.
func (c *TargetCriteria) Scan(value interface{}) error {
	if value == nil {
		*c = TargetCriteria{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for TargetCriteria", value)
	}
	if len(data) == 0 {
		*c = TargetCriteria{}
		return nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal target criteria: %w", err)
	}
	if c.Version > TargetCriteriaVersion {
		return fmt.Errorf("unsupported target criteria version %d", c.Version)
	}
	return nil
}

// TargetTutor is a matched tutor with the reasons it matched.
type TargetTutor struct {
	TutorAggregate
	MatchScore   float64  `json:"match_score"`
	MatchReasons []string `json:"match_reasons"`
}

// TargetingResult is the outcome of a targeting query.
type TargetingResult struct {
	Tutors []TargetTutor `json:"tutors"`
	Count  int           `json:"count"`
}

// TargetingPreview is a sampled targeting result.
type TargetingPreview struct {
	Count    int            `json:"count"`
	Sample   []TargetTutor  `json:"sample"`
	Criteria TargetCriteria `json:"criteria"`
}

// Segment is a named, predefined targeting criteria set.
type Segment struct {
	Name                string         `json:"name"`
	Description         string         `json:"description"`
	Criteria            TargetCriteria `json:"criteria"`
	RecommendedTemplate string         `json:"recommended_template"`
	EstimatedSize       int            `json:"estimated_size"`
}

// Overlay returns c with every predicate set on o replacing its own.
func (c TargetCriteria) Overlay(o TargetCriteria) TargetCriteria {
	if len(o.ChurnRiskLevels) > 0 {
		c.ChurnRiskLevels = o.ChurnRiskLevels
	}
	if len(o.PrimarySubjects) > 0 {
		c.PrimarySubjects = o.PrimarySubjects
	}
	if len(o.CertificationLevels) > 0 {
		c.CertificationLevels = o.CertificationLevels
	}
	if o.MonthsExperience.IsSet() {
		c.MonthsExperience = o.MonthsExperience
	}
	if o.AvgEngagement.IsSet() {
		c.AvgEngagement = o.AvgEngagement
	}
	if o.AvgRating.IsSet() {
		c.AvgRating = o.AvgRating
	}
	if o.DaysSinceLogin.IsSet() {
		c.DaysSinceLogin = o.DaysSinceLogin
	}
	if o.Sessions7d.IsSet() {
		c.Sessions7d = o.Sessions7d
	}
	if o.TechnicalIssueRate.IsSet() {
		c.TechnicalIssueRate = o.TechnicalIssueRate
	}
	if o.RescheduleRate.IsSet() {
		c.RescheduleRate = o.RescheduleRate
	}
	if o.PoorFirstSession != nil {
		c.PoorFirstSession = o.PoorFirstSession
	}
	if o.ActiveStatus != nil {
		c.ActiveStatus = o.ActiveStatus
	}
	if o.Limit > 0 {
		c.Limit = o.Limit
	}
	return c
}
