package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// InsightStatus tracks what was done about a finding.
type InsightStatus string

const (
	InsightActive      InsightStatus = "active"
	InsightImplemented InsightStatus = "implemented"
	InsightArchived    InsightStatus = "archived"
)

// Valid reports whether s is a known status.
func (s InsightStatus) Valid() bool {
	switch s {
	case InsightActive, InsightImplemented, InsightArchived:
		return true
	}
	return false
}

// PatternType classifies a finding.
type PatternType string

const (
	PatternEngagement  PatternType = "engagement"
	PatternTechnical   PatternType = "technical"
	PatternExperience  PatternType = "experience"
	PatternReliability PatternType = "reliability"
	PatternQuality     PatternType = "quality"
)

// InsightCorrelationsVersion is the schema version of InsightCorrelations.
const InsightCorrelationsVersion = 1

// CorrelationEntry is one compared metric backing an insight.
type CorrelationEntry struct {
	Metric     string  `json:"metric"`
	GroupAAvg  float64 `json:"group_a_avg"`
	GroupBAvg  float64 `json:"group_b_avg"`
	EffectSize float64 `json:"effect_size"`
	PValue     float64 `json:"p_value"`
}

// InsightCorrelations is the typed JSONB payload of an insight.
type InsightCorrelations struct {
	Version int                `json:"version"`
	GroupA  string             `json:"group_a"`
	GroupB  string             `json:"group_b"`
	Entries []CorrelationEntry `json:"entries"`
}

// Value marshals correlations to JSON for persistence.
func (c InsightCorrelations) Value() (driver.Value, error) {
	if c.Version == 0 {
		c.Version = InsightCorrelationsVersion
	}
	if c.Entries == nil {
		c.Entries = []CorrelationEntry{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal insight correlations: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into correlations.
func (c *InsightCorrelations) Scan(value interface{}) error {
	if value == nil {
		*c = InsightCorrelations{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for InsightCorrelations", value)
	}
	if len(data) == 0 {
		*c = InsightCorrelations{}
		return nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal insight correlations: %w", err)
	}
	return nil
}

// PatternInsight is a persisted cohort finding.
type PatternInsight struct {
	ID                      string              `db:"id" json:"id"`
	PatternType             PatternType         `db:"pattern_type" json:"pattern_type"`
	Title                   string              `db:"title" json:"title"`
	Description             string              `db:"description" json:"description"`
	AffectedTutorIDs        pq.StringArray      `db:"affected_tutor_ids" json:"affected_tutor_ids"`
	Correlations            InsightCorrelations `db:"correlations" json:"correlations"`
	StatisticalSignificance float64             `db:"statistical_significance" json:"statistical_significance"`
	ConfidenceScore         float64             `db:"confidence_score" json:"confidence_score"`
	Status                  InsightStatus       `db:"status" json:"status"`
	ActionTaken             *string             `db:"action_taken" json:"action_taken,omitempty"`
	DiscoveredAt            time.Time           `db:"discovered_at" json:"discovered_at"`
	UpdatedAt               time.Time           `db:"updated_at" json:"updated_at"`
}

// InsightFilter scopes insight listing.
type InsightFilter struct {
	PatternType   PatternType
	Status        InsightStatus
	MinConfidence *float64
	From          *time.Time
	To            *time.Time
	Limit         int
}

// InsightStats summarises active insights.
type InsightStats struct {
	Total               int                 `json:"total"`
	ByType              map[PatternType]int `json:"by_type"`
	AvgConfidence       float64             `json:"avg_confidence"`
	TotalAffectedTutors int                 `json:"total_affected_tutors"`
}
