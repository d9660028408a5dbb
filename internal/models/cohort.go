package models

// SignificanceTier buckets a p-value.
type SignificanceTier string

const (
	NotSignificant    SignificanceTier = "Not Significant"
	Significant       SignificanceTier = "Significant"
	HighlySignificant SignificanceTier = "Highly Significant"
)

// CohortComparisonResult compares one metric between two tutor groups.
// EffectSize is positive when group A's mean is higher.
type CohortComparisonResult struct {
	Metric            string           `json:"metric"`
	Label             string           `json:"label"`
	GroupAAvg         float64          `json:"group_a_avg"`
	GroupBAvg         float64          `json:"group_b_avg"`
	GroupASize        int              `json:"group_a_size"`
	GroupBSize        int              `json:"group_b_size"`
	Difference        float64          `json:"difference"`
	PercentDifference float64          `json:"percent_difference"`
	PValue            float64          `json:"p_value"`
	EffectSize        float64          `json:"effect_size"`
	SignificanceTier  SignificanceTier `json:"significance_tier"`
	LowerIsBetter     bool             `json:"lower_is_better"`
}

// IsSignificant reports p < 0.05.
func (r CohortComparisonResult) IsSignificant() bool {
	return r.SignificanceTier != NotSignificant
}

// PerformanceSegment is the composite-score tier of a tutor.
type PerformanceSegment string

const (
	SegmentStar    PerformanceSegment = "star"
	SegmentAverage PerformanceSegment = "average"
	SegmentLagging PerformanceSegment = "lagging"
)

// TutorPerformance is a tutor's composite score and segment.
type TutorPerformance struct {
	TutorID   string             `json:"tutor_id"`
	TutorName string             `json:"tutor_name"`
	Score     float64            `json:"score"`
	Segment   PerformanceSegment `json:"segment"`
}

// SegmentAnalysis contrasts star and lagging performers.
type SegmentAnalysis struct {
	StarCount       int                             `json:"star_count"`
	AverageCount    int                             `json:"average_count"`
	LaggingCount    int                             `json:"lagging_count"`
	Differentiators []CohortComparisonResult        `json:"differentiating_factors"`
	Recommendations map[PerformanceSegment][]string `json:"recommendations"`
	TopPerformers   []TutorPerformance              `json:"top_performers"`
	AtRisk          []TutorPerformance              `json:"at_risk"`
}

// FirstSessionAnalysis compares tutors with poor first sessions to everyone.
type FirstSessionAnalysis struct {
	PoorCount       int                      `json:"poor_first_session_count"`
	PopulationCount int                      `json:"population_count"`
	Comparisons     []CohortComparisonResult `json:"comparisons"`
	Recommendations []string                 `json:"recommendations"`
}
