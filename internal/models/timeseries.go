package models

import (
	"time"

	"github.com/aarondl/null/v8"
)

// Observation is one raw timestamped value. Invalid values are absent, not zero.
type Observation struct {
	Timestamp time.Time
	Value     null.Float64
}

// MetricPoint is one bucket of a metric series.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Count     int       `json:"count"`
}

// Granularity controls how observations are bucketed.
type Granularity string

const (
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
)

// TrendDirection classifies the slope of a series.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// TrendAnalysis summarises a least-squares fit over a series.
type TrendAnalysis struct {
	Direction     TrendDirection `json:"direction"`
	Slope         float64        `json:"slope"`
	ChangePercent float64        `json:"change_percent"`
	Confidence    float64        `json:"confidence"`
	Summary       string         `json:"summary"`
}

// AnomalyPoint annotates a series point with its deviation from the rolling
// baseline. Deviation is a z-score.
type AnomalyPoint struct {
	Point       MetricPoint `json:"point"`
	IsAnomaly   bool        `json:"is_anomaly"`
	Deviation   float64     `json:"deviation"`
	Severity    string      `json:"severity,omitempty"`
	ExpectedMin float64     `json:"expected_min"`
	ExpectedMax float64     `json:"expected_max"`
	Evaluated   bool        `json:"evaluated"`
}

// SeasonalGrouping selects the calendar bucket used for seasonal patterns.
type SeasonalGrouping string

const (
	GroupByDayOfWeek SeasonalGrouping = "day_of_week"
	GroupByHour      SeasonalGrouping = "hour"
)

// SeasonalBucket is the average of all observations in one calendar bucket.
type SeasonalBucket struct {
	Index    int     `json:"index"`
	Label    string  `json:"label"`
	AvgValue float64 `json:"avg_value"`
	Count    int     `json:"count"`
}

// SeasonalRanking orders buckets from best to worst.
type SeasonalRanking struct {
	Buckets []SeasonalBucket `json:"buckets"`
	Best    *SeasonalBucket  `json:"best,omitempty"`
	Worst   *SeasonalBucket  `json:"worst,omitempty"`
}

// RetentionPoint is one period of a cohort retention curve.
type RetentionPoint struct {
	PeriodIndex   int       `json:"period_index"`
	PeriodStart   time.Time `json:"period_start"`
	ActiveCount   int       `json:"active_count"`
	RetentionRate float64   `json:"retention_rate"`
}

// RetentionCurve is the full curve for one starting cohort.
type RetentionCurve struct {
	CohortStart time.Time        `json:"cohort_start"`
	PeriodDays  int              `json:"period_days"`
	CohortSize  int              `json:"cohort_size"`
	Points      []RetentionPoint `json:"points"`
}

// CohortSeries is a metric series for one named tutor group.
type CohortSeries struct {
	Group      string        `json:"group"`
	TutorCount int           `json:"tutor_count"`
	Points     []MetricPoint `json:"points"`
}

// EngagementTrend bundles a bucketed series with its smoothing and trend.
type EngagementTrend struct {
	Metric        MetricType    `json:"metric"`
	Granularity   Granularity   `json:"granularity"`
	TutorID       string        `json:"tutor_id,omitempty"`
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	Series        []MetricPoint `json:"series"`
	MovingAverage []MetricPoint `json:"moving_average"`
	Trend         TrendAnalysis `json:"trend"`
}
