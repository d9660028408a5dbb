// Package analytics holds the pure numeric core: time-series analysis, risk
// scoring and cohort comparison. Nothing here performs I/O.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

const (
	// DefaultTrendTolerance is the relative change below which a series is stable.
	DefaultTrendTolerance = 0.02
	// DefaultAnomalyMultiplier is the z-score beyond which a point is anomalous.
	DefaultAnomalyMultiplier = 2.0
	// DefaultAnomalyMinHistory is the number of points required before flagging.
	DefaultAnomalyMinHistory = 7

	zScoreCap = 10.0
)

type bucketAcc struct {
	sum   float64
	count int
}

// BucketStart truncates t to the start of its bucket in UTC. Weeks start on
// Monday.
func BucketStart(t time.Time, granularity models.Granularity) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if granularity == models.GranularityDay {
		return day
	}
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeeklyTrend buckets observations by week (or day) and averages the valid
// values in each bucket. Buckets without valid values are omitted.
func WeeklyTrend(observations []models.Observation, granularity models.Granularity) []models.MetricPoint {
	if granularity == "" {
		granularity = models.GranularityWeek
	}
	buckets := make(map[time.Time]*bucketAcc)
	for _, obs := range observations {
		if !obs.Value.Valid {
			continue
		}
		key := BucketStart(obs.Timestamp, granularity)
		acc, ok := buckets[key]
		if !ok {
			acc = &bucketAcc{}
			buckets[key] = acc
		}
		acc.sum += obs.Value.Float64
		acc.count++
	}

	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	points := make([]models.MetricPoint, 0, len(keys))
	for _, k := range keys {
		acc := buckets[k]
		points = append(points, models.MetricPoint{
			Timestamp: k,
			Value:     acc.sum / float64(acc.count),
			Count:     acc.count,
		})
	}
	return points
}

// MovingAverage returns a trailing mean over the last windowSize points. The
// first windowSize-1 points average whatever history is available.
func MovingAverage(series []models.MetricPoint, windowSize int) ([]models.MetricPoint, error) {
	if windowSize <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window size must be positive")
	}
	out := make([]models.MetricPoint, len(series))
	for i, p := range series {
		start := i - windowSize + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for _, q := range series[start : i+1] {
			sum += q.Value
		}
		out[i] = models.MetricPoint{
			Timestamp: p.Timestamp,
			Value:     sum / float64(i-start+1),
			Count:     p.Count,
		}
	}
	return out, nil
}

// AnalyzeTrend fits a least-squares line over the point index. A series is
// stable when the fitted change across the horizon is below tolerance
// relative to the mean.
func AnalyzeTrend(series []models.MetricPoint, tolerance float64) models.TrendAnalysis {
	if tolerance <= 0 {
		tolerance = DefaultTrendTolerance
	}
	n := len(series)
	if n < 2 {
		return models.TrendAnalysis{
			Direction: models.TrendStable,
			Summary:   "insufficient data to determine a trend",
		}
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range series {
		xs[i] = float64(i)
		ys[i] = p.Value
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	mean := stat.Mean(ys, nil)

	change := beta * float64(n-1)
	denom := math.Abs(mean)
	if denom < 1e-9 {
		denom = 1
	}
	relative := change / denom

	confidence := stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		confidence = 1
	}

	result := models.TrendAnalysis{
		Slope:         beta,
		ChangePercent: relative * 100,
		Confidence:    clamp(confidence, 0, 1),
	}
	switch {
	case math.Abs(relative) < tolerance:
		result.Direction = models.TrendStable
		result.Summary = fmt.Sprintf("stable: %+.1f%% over %d periods is within tolerance", result.ChangePercent, n)
	case beta > 0:
		result.Direction = models.TrendUp
		result.Summary = fmt.Sprintf("improving: %+.1f%% over %d periods", result.ChangePercent, n)
	default:
		result.Direction = models.TrendDown
		result.Summary = fmt.Sprintf("declining: %+.1f%% over %d periods", result.ChangePercent, n)
	}
	return result
}

// AnomalyOptions tunes DetectAnomalies. Zero values fall back to defaults.
type AnomalyOptions struct {
	// Window is the number of preceding points forming the baseline. Zero
	// uses every preceding point.
	Window     int
	Multiplier float64
	MinHistory int
}

func (o AnomalyOptions) withDefaults() AnomalyOptions {
	if o.Multiplier <= 0 {
		o.Multiplier = DefaultAnomalyMultiplier
	}
	if o.MinHistory <= 0 {
		o.MinHistory = DefaultAnomalyMinHistory
	}
	if o.MinHistory < 2 {
		o.MinHistory = 2
	}
	if o.Window == 1 {
		o.Window = 2
	}
	return o
}

// DetectAnomalies compares each point with the mean and standard deviation of
// its preceding points. Points with fewer than MinHistory predecessors are
// returned unevaluated.
func DetectAnomalies(series []models.MetricPoint, opts AnomalyOptions) ([]models.AnomalyPoint, error) {
	opts = opts.withDefaults()
	if len(series) < opts.MinHistory {
		return nil, appErrors.Clone(appErrors.ErrInsufficientData,
			fmt.Sprintf("anomaly detection needs at least %d points, got %d", opts.MinHistory, len(series)))
	}

	out := make([]models.AnomalyPoint, len(series))
	for i, p := range series {
		out[i] = models.AnomalyPoint{Point: p}
		if i < opts.MinHistory {
			continue
		}
		start := 0
		if opts.Window > 0 && i-opts.Window > 0 {
			start = i - opts.Window
		}
		baseline := make([]float64, 0, i-start)
		for _, q := range series[start:i] {
			baseline = append(baseline, q.Value)
		}
		mean, variance := stat.MeanVariance(baseline, nil)
		if math.IsNaN(variance) {
			variance = 0
		}
		std := math.Sqrt(variance)

		z := 0.0
		switch {
		case std > 0:
			z = (p.Value - mean) / std
		case p.Value != mean:
			z = math.Copysign(zScoreCap, p.Value-mean)
		}
		z = clamp(z, -zScoreCap, zScoreCap)

		ap := &out[i]
		ap.Evaluated = true
		ap.Deviation = z
		ap.ExpectedMin = mean - opts.Multiplier*std
		ap.ExpectedMax = mean + opts.Multiplier*std
		if math.Abs(z) > opts.Multiplier {
			ap.IsAnomaly = true
			ap.Severity = "medium"
			if math.Abs(z) > 1.5*opts.Multiplier {
				ap.Severity = "high"
			}
		}
	}
	return out, nil
}

var weekdayLabels = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DetectSeasonalPatterns averages observations per weekday or hour of day
// (UTC). Buckets without observations are omitted.
func DetectSeasonalPatterns(observations []models.Observation, groupBy models.SeasonalGrouping) ([]models.SeasonalBucket, error) {
	var size int
	switch groupBy {
	case models.GroupByDayOfWeek:
		size = 7
	case models.GroupByHour:
		size = 24
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported seasonal grouping %q", groupBy))
	}

	accs := make([]bucketAcc, size)
	for _, obs := range observations {
		if !obs.Value.Valid {
			continue
		}
		ts := obs.Timestamp.UTC()
		idx := ts.Hour()
		if groupBy == models.GroupByDayOfWeek {
			idx = int(ts.Weekday())
		}
		accs[idx].sum += obs.Value.Float64
		accs[idx].count++
	}

	buckets := make([]models.SeasonalBucket, 0, size)
	for idx, acc := range accs {
		if acc.count == 0 {
			continue
		}
		label := fmt.Sprintf("%02d:00", idx)
		if groupBy == models.GroupByDayOfWeek {
			label = weekdayLabels[idx]
		}
		buckets = append(buckets, models.SeasonalBucket{
			Index:    idx,
			Label:    label,
			AvgValue: acc.sum / float64(acc.count),
			Count:    acc.count,
		})
	}
	return buckets, nil
}

// RankSeasonal orders buckets by average value, best first.
func RankSeasonal(buckets []models.SeasonalBucket) models.SeasonalRanking {
	ranked := append([]models.SeasonalBucket(nil), buckets...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AvgValue == ranked[j].AvgValue {
			return ranked[i].Index < ranked[j].Index
		}
		return ranked[i].AvgValue > ranked[j].AvgValue
	})
	ranking := models.SeasonalRanking{Buckets: ranked}
	if len(ranked) > 0 {
		best := ranked[0]
		worst := ranked[len(ranked)-1]
		ranking.Best = &best
		ranking.Worst = &worst
	}
	return ranking
}

// RetentionCurve follows the tutors created in the first period starting at
// cohortStart. A tutor counts as active in period p while its last activity
// falls at or after the start of p, so the curve never increases.
func RetentionCurve(cohortStart time.Time, periodDays, periods int, activity []models.TutorActivity) (models.RetentionCurve, error) {
	if periodDays <= 0 {
		return models.RetentionCurve{}, appErrors.Clone(appErrors.ErrValidation, "period days must be positive")
	}
	if periods <= 0 {
		return models.RetentionCurve{}, appErrors.Clone(appErrors.ErrValidation, "periods must be positive")
	}
	cohortStart = cohortStart.UTC()
	cohortEnd := cohortStart.AddDate(0, 0, periodDays)

	cohort := make([]models.TutorActivity, 0)
	for _, a := range activity {
		created := a.CreatedAt.UTC()
		if !created.Before(cohortStart) && created.Before(cohortEnd) {
			cohort = append(cohort, a)
		}
	}
	if len(cohort) == 0 {
		return models.RetentionCurve{}, appErrors.Clone(appErrors.ErrInsufficientData, "no tutors joined in the cohort period")
	}

	size := float64(len(cohort))
	curve := models.RetentionCurve{
		CohortStart: cohortStart,
		PeriodDays:  periodDays,
		CohortSize:  len(cohort),
		Points:      make([]models.RetentionPoint, 0, periods),
	}
	for p := 0; p < periods; p++ {
		periodStart := cohortStart.AddDate(0, 0, p*periodDays)
		active := len(cohort)
		if p > 0 {
			active = 0
			for _, a := range cohort {
				if a.LastActivityAt != nil && !a.LastActivityAt.Before(periodStart) {
					active++
				}
			}
		}
		curve.Points = append(curve.Points, models.RetentionPoint{
			PeriodIndex:   p,
			PeriodStart:   periodStart,
			ActiveCount:   active,
			RetentionRate: float64(active) / size,
		})
	}
	return curve, nil
}

// GroupedObservation is an observation tagged with its tutor and group.
type GroupedObservation struct {
	Group   string
	TutorID string
	models.Observation
}

// CohortTrends produces one bucketed series per group, ordered by group name.
func CohortTrends(observations []GroupedObservation, granularity models.Granularity) []models.CohortSeries {
	byGroup := make(map[string][]models.Observation)
	tutors := make(map[string]map[string]struct{})
	for _, o := range observations {
		byGroup[o.Group] = append(byGroup[o.Group], o.Observation)
		if tutors[o.Group] == nil {
			tutors[o.Group] = make(map[string]struct{})
		}
		tutors[o.Group][o.TutorID] = struct{}{}
	}

	groups := make([]string, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	out := make([]models.CohortSeries, 0, len(groups))
	for _, g := range groups {
		points := WeeklyTrend(byGroup[g], granularity)
		if len(points) == 0 {
			continue
		}
		out = append(out, models.CohortSeries{Group: g, TutorCount: len(tutors[g]), Points: points})
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
