package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/aarondl/null/v8"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

const (
	// MinCohortSize is the smallest group a metric is compared on.
	MinCohortSize = 2
	// DefaultRecommendationCount is how many significant factors feed
	// recommendations.
	DefaultRecommendationCount = 5

	significantP       = 0.05
	highlySignificantP = 0.01
	effectSizeCap      = 10.0
)

// MetricSpec names a tutor metric and how to read it from an aggregate.
type MetricSpec struct {
	Key           string
	Label         string
	LowerIsBetter bool
	Extract       func(models.TutorAggregate) null.Float64
}

func intMetric(v int) null.Float64 { return null.Float64From(float64(v)) }

var (
	MetricExperience = MetricSpec{Key: "months_experience", Label: "Months of Experience",
		Extract: func(a models.TutorAggregate) null.Float64 { return intMetric(a.MonthsExperience) }}
	MetricEngagementScore = MetricSpec{Key: "avg_engagement_score", Label: "Engagement Score",
		Extract: func(a models.TutorAggregate) null.Float64 { return a.AvgEngagement }}
	MetricEmpathyScore = MetricSpec{Key: "avg_empathy_score", Label: "Empathy Score",
		Extract: func(a models.TutorAggregate) null.Float64 { return a.AvgEmpathy }}
	MetricClarityScore = MetricSpec{Key: "avg_clarity_score", Label: "Clarity Score",
		Extract: func(a models.TutorAggregate) null.Float64 { return a.AvgClarity }}
	MetricSatisfactionScore = MetricSpec{Key: "avg_student_satisfaction", Label: "Student Satisfaction",
		Extract: func(a models.TutorAggregate) null.Float64 { return a.AvgSatisfaction }}
	MetricStudentRating = MetricSpec{Key: "avg_student_rating", Label: "Student Rating",
		Extract: func(a models.TutorAggregate) null.Float64 { return a.AvgRating }}
	MetricRecommendationRate = MetricSpec{Key: "recommendation_rate", Label: "Recommendation Rate",
		Extract: func(a models.TutorAggregate) null.Float64 { return a.RecommendationRate }}
	MetricReliabilityScore = MetricSpec{Key: "reliability_score", Label: "Reliability Score",
		Extract: func(a models.TutorAggregate) null.Float64 { return a.ReliabilityScore }}
	MetricFirstSessionRating = MetricSpec{Key: "first_session_avg_rating", Label: "First Session Rating",
		Extract: func(a models.TutorAggregate) null.Float64 { return a.FirstSessionAvgRating }}
	MetricTechnicalIssueRate = MetricSpec{Key: "technical_issue_rate", Label: "Technical Issue Rate", LowerIsBetter: true,
		Extract: func(a models.TutorAggregate) null.Float64 { return a.TechnicalIssueRate }}
	MetricRescheduleRate = MetricSpec{Key: "reschedule_rate", Label: "Reschedule Rate", LowerIsBetter: true,
		Extract: func(a models.TutorAggregate) null.Float64 { return a.RescheduleRate }}
	MetricNoShowRate = MetricSpec{Key: "no_show_rate", Label: "No-Show Rate", LowerIsBetter: true,
		Extract: func(a models.TutorAggregate) null.Float64 { return a.NoShowRate }}
)

// SegmentMetrics are compared between star and lagging performers.
func SegmentMetrics() []MetricSpec {
	return []MetricSpec{
		MetricEngagementScore, MetricEmpathyScore, MetricClarityScore, MetricSatisfactionScore,
		MetricStudentRating, MetricRecommendationRate, MetricReliabilityScore, MetricFirstSessionRating,
		MetricTechnicalIssueRate, MetricRescheduleRate, MetricNoShowRate, MetricExperience,
	}
}

// FirstSessionMetrics are compared between the poor-first-session cohort and
// the whole population.
func FirstSessionMetrics() []MetricSpec {
	return []MetricSpec{
		MetricExperience, MetricEngagementScore, MetricEmpathyScore, MetricClarityScore,
		MetricSatisfactionScore, MetricTechnicalIssueRate, MetricReliabilityScore, MetricRescheduleRate,
	}
}

// MetricByKey looks up a metric spec by key.
func MetricByKey(key string) (MetricSpec, bool) {
	for _, m := range SegmentMetrics() {
		if m.Key == key {
			return m, true
		}
	}
	return MetricSpec{}, false
}

// Tier buckets a p-value.
func Tier(p float64) models.SignificanceTier {
	switch {
	case p < highlySignificantP:
		return models.HighlySignificant
	case p < significantP:
		return models.Significant
	default:
		return models.NotSignificant
	}
}

// CompareSeries runs Welch's t-test and Cohen's d on two samples. ok is false
// when either sample has fewer than MinCohortSize values.
func CompareSeries(key, label string, lowerIsBetter bool, a, b []float64) (models.CohortComparisonResult, bool) {
	if len(a) < MinCohortSize || len(b) < MinCohortSize {
		return models.CohortComparisonResult{}, false
	}
	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	nA, nB := float64(len(a)), float64(len(b))

	var p, d float64
	seA, seB := varA/nA, varB/nB
	se2 := seA + seB
	diff := meanA - meanB
	if se2 == 0 {
		if diff == 0 {
			p, d = 1, 0
		} else {
			p, d = 0, math.Copysign(effectSizeCap, diff)
		}
	} else {
		t := diff / math.Sqrt(se2)
		df := se2 * se2 / (seA*seA/(nA-1) + seB*seB/(nB-1))
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		p = clamp(2*(1-dist.CDF(math.Abs(t))), 0, 1)

		pooled := math.Sqrt((varA + varB) / 2)
		d = clamp(diff/pooled, -effectSizeCap, effectSizeCap)
	}

	result := models.CohortComparisonResult{
		Metric:           key,
		Label:            label,
		GroupAAvg:        meanA,
		GroupBAvg:        meanB,
		GroupASize:       len(a),
		GroupBSize:       len(b),
		Difference:       diff,
		PValue:           p,
		EffectSize:       d,
		SignificanceTier: Tier(p),
		LowerIsBetter:    lowerIsBetter,
	}
	if meanB != 0 {
		result.PercentDifference = diff / math.Abs(meanB) * 100
	}
	return result, true
}

// CompareCohorts compares every metric between two tutor groups and returns
// the ranked differentiating factors. Metrics with fewer than two valid
// values in either group are omitted.
func CompareCohorts(groupA, groupB []models.TutorAggregate, metrics []MetricSpec) []models.CohortComparisonResult {
	results := make([]models.CohortComparisonResult, 0, len(metrics))
	for _, m := range metrics {
		res, ok := CompareSeries(m.Key, m.Label, m.LowerIsBetter, validValues(groupA, m), validValues(groupB, m))
		if ok {
			results = append(results, res)
		}
	}
	RankComparisons(results)
	return results
}

// RankComparisons sorts by absolute effect size descending, then p-value.
func RankComparisons(results []models.CohortComparisonResult) {
	sort.SliceStable(results, func(i, j int) bool {
		ei, ej := math.Abs(results[i].EffectSize), math.Abs(results[j].EffectSize)
		if ei != ej {
			return ei > ej
		}
		if results[i].PValue != results[j].PValue {
			return results[i].PValue < results[j].PValue
		}
		return results[i].Metric < results[j].Metric
	})
}

func validValues(group []models.TutorAggregate, m MetricSpec) []float64 {
	out := make([]float64, 0, len(group))
	for _, agg := range group {
		if v := m.Extract(agg); v.Valid {
			out = append(out, v.Float64)
		}
	}
	return out
}

// aWorse reports whether group A is behind group B on the metric.
func aWorse(r models.CohortComparisonResult) bool {
	if r.LowerIsBetter {
		return r.GroupAAvg > r.GroupBAvg
	}
	return r.GroupAAvg < r.GroupBAvg
}

// GenerateRecommendations maps the top significant factors of a
// poor-first-session comparison (group A) against the population (group B)
// to guidance sentences.
func GenerateRecommendations(comparisons []models.CohortComparisonResult, topN int) []string {
	if topN <= 0 {
		topN = DefaultRecommendationCount
	}
	seen := make(map[string]struct{})
	var recs []string
	push := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		recs = append(recs, s)
	}

	used := 0
	for _, c := range comparisons {
		if used >= topN {
			break
		}
		if !c.IsSignificant() {
			continue
		}
		used++
		if !aWorse(c) {
			continue
		}
		switch {
		case strings.Contains(c.Label, "Experience"):
			push("Provide enhanced onboarding for new tutors with <6 months experience")
		case strings.Contains(c.Label, "Engagement"):
			push("Train tutors on first session engagement techniques and ice-breakers")
		case strings.Contains(c.Label, "Technical"):
			push("Conduct technical checks before first sessions and provide IT support")
		case strings.Contains(c.Label, "Empathy"):
			push("Focus on empathy and active listening skills in first session training")
		case strings.Contains(c.Label, "Clarity"):
			push("Provide clear communication guidelines and examples for first sessions")
		case strings.Contains(c.Label, "Reschedule"), strings.Contains(c.Label, "Reliability"):
			push("Confirm availability with new tutors before assigning first sessions")
		}
	}
	if len(recs) == 0 {
		push("Continue monitoring first session performance")
	}
	push("Implement first session preparation checklist for all tutors")
	push("Follow up with tutors within 24 hours after their first session")
	return recs
}

type compositeWeight struct {
	weight float64
	value  func(models.TutorAggregate) null.Float64
}

var compositeWeights = []compositeWeight{
	{0.20, func(a models.TutorAggregate) null.Float64 { return a.AvgEngagement }},
	{0.15, func(a models.TutorAggregate) null.Float64 { return a.AvgEmpathy }},
	{0.15, func(a models.TutorAggregate) null.Float64 { return a.AvgClarity }},
	{0.15, func(a models.TutorAggregate) null.Float64 { return a.AvgSatisfaction }},
	{0.20, func(a models.TutorAggregate) null.Float64 { return scaled(a.AvgRating, 2) }},
	{0.10, func(a models.TutorAggregate) null.Float64 { return scaled(a.ReliabilityScore, 10) }},
	{0.05, func(a models.TutorAggregate) null.Float64 { return scaled(a.RecommendationRate, 10) }},
}

func scaled(v null.Float64, factor float64) null.Float64 {
	if !v.Valid {
		return v
	}
	return null.Float64From(v.Float64 * factor)
}

// CompositeScore is the weighted 0-10 performance score. Missing components
// are left out and the remaining weights renormalised; technical issue and
// reschedule rates are subtracted as a penalty.
func CompositeScore(a models.TutorAggregate) float64 {
	var sum, weight float64
	for _, cw := range compositeWeights {
		if v := cw.value(a); v.Valid {
			sum += cw.weight * v.Float64
			weight += cw.weight
		}
	}
	if weight == 0 {
		return 0
	}
	score := sum / weight
	if a.TechnicalIssueRate.Valid {
		score -= a.TechnicalIssueRate.Float64
	}
	if a.RescheduleRate.Valid {
		score -= a.RescheduleRate.Float64
	}
	return clamp(score, 0, 10)
}

// SegmentTutors ranks tutors by composite score. The top and bottom 10%
// (at least one tutor each) are stars and lagging performers.
func SegmentTutors(aggs []models.TutorAggregate) []models.TutorPerformance {
	out := make([]models.TutorPerformance, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, models.TutorPerformance{TutorID: a.TutorID, TutorName: a.TutorName, Score: CompositeScore(a)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TutorID < out[j].TutorID
	})

	n := len(out)
	tail := int(math.Max(1, math.Ceil(float64(n)*0.10)))
	stars := tail
	if stars > n {
		stars = n
	}
	lagging := tail
	if lagging > n-stars {
		lagging = n - stars
	}
	for i := range out {
		switch {
		case i < stars:
			out[i].Segment = models.SegmentStar
		case i >= n-lagging:
			out[i].Segment = models.SegmentLagging
		default:
			out[i].Segment = models.SegmentAverage
		}
	}
	return out
}

// AnalyzeSegments contrasts stars (group A) with lagging performers (group B).
func AnalyzeSegments(aggs []models.TutorAggregate) models.SegmentAnalysis {
	ranked := SegmentTutors(aggs)
	byID := make(map[string]models.TutorAggregate, len(aggs))
	for _, a := range aggs {
		byID[a.TutorID] = a
	}

	analysis := models.SegmentAnalysis{
		TopPerformers: []models.TutorPerformance{},
		AtRisk:        []models.TutorPerformance{},
	}
	var stars, lagging []models.TutorAggregate
	for _, p := range ranked {
		switch p.Segment {
		case models.SegmentStar:
			analysis.StarCount++
			stars = append(stars, byID[p.TutorID])
			if len(analysis.TopPerformers) < 10 {
				analysis.TopPerformers = append(analysis.TopPerformers, p)
			}
		case models.SegmentLagging:
			analysis.LaggingCount++
			lagging = append(lagging, byID[p.TutorID])
			analysis.AtRisk = append(analysis.AtRisk, p)
		default:
			analysis.AverageCount++
		}
	}

	analysis.Differentiators = CompareCohorts(stars, lagging, SegmentMetrics())
	analysis.Recommendations = segmentRecommendations(analysis.Differentiators)
	return analysis
}

func segmentRecommendations(factors []models.CohortComparisonResult) map[models.PerformanceSegment][]string {
	top := make([]models.CohortComparisonResult, 0, 3)
	for _, f := range factors {
		if f.IsSignificant() {
			top = append(top, f)
		}
		if len(top) == 3 {
			break
		}
	}

	average := []string{}
	lagging := []string{"Immediate intervention required"}
	for _, f := range top {
		// Stars are group A; skip factors where they trail.
		if aWorse(f) {
			continue
		}
		average = append(average, "Focus on improving "+f.Label+" to match star performers")
		lagging = append(lagging, "Critical: address "+f.Label+" performance gap")
	}
	if len(average) == 0 {
		average = append(average, "Maintain current performance levels")
	}
	lagging = append(lagging, "Consider additional training and support")

	return map[models.PerformanceSegment][]string{
		models.SegmentStar: {
			"Continue current best practices",
			"Consider mentoring other tutors",
			"Share successful strategies with team",
		},
		models.SegmentAverage: average,
		models.SegmentLagging: lagging,
	}
}

// AnalyzeFirstSessions compares tutors flagged with poor first sessions
// against the whole population.
func AnalyzeFirstSessions(aggs []models.TutorAggregate) models.FirstSessionAnalysis {
	poor := make([]models.TutorAggregate, 0)
	for _, a := range aggs {
		if a.PoorFirstSession {
			poor = append(poor, a)
		}
	}
	comparisons := CompareCohorts(poor, aggs, FirstSessionMetrics())
	return models.FirstSessionAnalysis{
		PoorCount:       len(poor),
		PopulationCount: len(aggs),
		Comparisons:     comparisons,
		Recommendations: GenerateRecommendations(comparisons, DefaultRecommendationCount),
	}
}
