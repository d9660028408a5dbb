package analytics

import (
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

// 2024-03-04 is a Monday.
var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func obs(ts time.Time, v float64) models.Observation {
	return models.Observation{Timestamp: ts, Value: null.Float64From(v)}
}

func seriesOf(values ...float64) []models.MetricPoint {
	out := make([]models.MetricPoint, len(values))
	for i, v := range values {
		out[i] = models.MetricPoint{Timestamp: monday.AddDate(0, 0, 7*i), Value: v, Count: 1}
	}
	return out
}

func TestWeeklyTrendAveragesSessionsInSameWeek(t *testing.T) {
	points := WeeklyTrend([]models.Observation{
		obs(monday.Add(10*time.Hour), 6.0),
		obs(monday.AddDate(0, 0, 3), 8.0),
		{Timestamp: monday.AddDate(0, 0, 4)},
	}, models.GranularityWeek)

	require.Len(t, points, 1)
	assert.Equal(t, monday, points[0].Timestamp)
	assert.InDelta(t, 7.0, points[0].Value, 1e-9)
	assert.Equal(t, 2, points[0].Count)
}

func TestWeeklyTrendOmitsEmptyBuckets(t *testing.T) {
	points := WeeklyTrend([]models.Observation{
		obs(monday.AddDate(0, 0, 14), 5),
		obs(monday, 4),
	}, models.GranularityWeek)

	require.Len(t, points, 2)
	assert.Equal(t, monday, points[0].Timestamp)
	assert.Equal(t, monday.AddDate(0, 0, 14), points[1].Timestamp)
}

func TestBucketStartWeekBeginsMonday(t *testing.T) {
	sunday := monday.AddDate(0, 0, 6).Add(23 * time.Hour)
	assert.Equal(t, monday, BucketStart(sunday, models.GranularityWeek))
	assert.Equal(t, monday.AddDate(0, 0, 6), BucketStart(sunday, models.GranularityDay))
}

func TestMovingAverageIdentity(t *testing.T) {
	series := seriesOf(3.2, 7.7, 1.05, 9.99, 4.4, 0.1)
	out, err := MovingAverage(series, 1)
	require.NoError(t, err)
	assert.Equal(t, series, out)
}

func TestMovingAverageTrailingWindow(t *testing.T) {
	out, err := MovingAverage(seriesOf(2, 4, 6, 8), 2)
	require.NoError(t, err)

	values := make([]float64, len(out))
	for i, p := range out {
		values[i] = p.Value
	}
	assert.Equal(t, []float64{2, 3, 5, 7}, values)
}

func TestMovingAverageRejectsNonPositiveWindow(t *testing.T) {
	for _, w := range []int{0, -3} {
		_, err := MovingAverage(seriesOf(1, 2), w)
		assert.True(t, appErrors.Is(err, appErrors.ErrValidation), "window %d", w)
	}
}

func TestAnalyzeTrend(t *testing.T) {
	cases := []struct {
		name   string
		series []models.MetricPoint
		want   models.TrendDirection
	}{
		{"rising", seriesOf(5, 6, 7, 8), models.TrendUp},
		{"falling", seriesOf(8, 7, 6, 5), models.TrendDown},
		{"flat within tolerance", seriesOf(7.00, 7.01, 7.00, 7.02), models.TrendStable},
		{"constant", seriesOf(4, 4, 4), models.TrendStable},
		{"single point", seriesOf(4), models.TrendStable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AnalyzeTrend(tc.series, DefaultTrendTolerance)
			assert.Equal(t, tc.want, got.Direction)
			assert.NotEmpty(t, got.Summary)
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, 1.0)
		})
	}
}

func TestDetectAnomaliesFlagsSpike(t *testing.T) {
	values := []float64{4.9, 5.1, 4.9, 5.1, 4.9, 5.1, 4.9, 5.1, 4.9, 5.1, 9.0}
	points, err := DetectAnomalies(seriesOf(values...), AnomalyOptions{})
	require.NoError(t, err)
	require.Len(t, points, len(values))

	for i := 0; i < DefaultAnomalyMinHistory; i++ {
		assert.False(t, points[i].Evaluated)
		assert.False(t, points[i].IsAnomaly)
	}
	for i := DefaultAnomalyMinHistory; i < len(values)-1; i++ {
		assert.True(t, points[i].Evaluated)
		assert.False(t, points[i].IsAnomaly, "point %d", i)
	}
	last := points[len(points)-1]
	assert.True(t, last.IsAnomaly)
	assert.Equal(t, "high", last.Severity)
	assert.Greater(t, last.Deviation, 2.0)
	assert.Greater(t, last.Point.Value, last.ExpectedMax)
}

func TestDetectAnomaliesRequiresMinimumHistory(t *testing.T) {
	_, err := DetectAnomalies(seriesOf(1, 2, 3), AnomalyOptions{MinHistory: 7})
	assert.True(t, appErrors.Is(err, appErrors.ErrInsufficientData))
}

func TestDetectSeasonalPatternsByWeekday(t *testing.T) {
	wednesday := monday.AddDate(0, 0, 2)
	buckets, err := DetectSeasonalPatterns([]models.Observation{
		obs(monday.Add(9*time.Hour), 4),
		obs(monday.AddDate(0, 0, 7).Add(15*time.Hour), 6),
		obs(wednesday, 8),
		{Timestamp: wednesday},
	}, models.GroupByDayOfWeek)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, "Monday", buckets[0].Label)
	assert.InDelta(t, 5.0, buckets[0].AvgValue, 1e-9)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, "Wednesday", buckets[1].Label)
	assert.Equal(t, 1, buckets[1].Count)

	ranking := RankSeasonal(buckets)
	require.NotNil(t, ranking.Best)
	assert.Equal(t, "Wednesday", ranking.Best.Label)
	assert.Equal(t, "Monday", ranking.Worst.Label)
}

func TestDetectSeasonalPatternsByHour(t *testing.T) {
	buckets, err := DetectSeasonalPatterns([]models.Observation{obs(monday.Add(14*time.Hour), 3)}, models.GroupByHour)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "14:00", buckets[0].Label)
}

func TestDetectSeasonalPatternsRejectsUnknownGrouping(t *testing.T) {
	_, err := DetectSeasonalPatterns(nil, "month")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRetentionCurveIsNonIncreasing(t *testing.T) {
	at := func(days int) *time.Time {
		ts := monday.AddDate(0, 0, days)
		return &ts
	}
	activity := []models.TutorActivity{
		{TutorID: "t1", CreatedAt: monday.Add(time.Hour), LastActivityAt: at(40)},
		{TutorID: "t2", CreatedAt: monday.AddDate(0, 0, 2), LastActivityAt: at(20)},
		{TutorID: "t3", CreatedAt: monday.AddDate(0, 0, 5), LastActivityAt: at(9)},
		{TutorID: "t4", CreatedAt: monday.AddDate(0, 0, 6)},
		{TutorID: "late", CreatedAt: monday.AddDate(0, 0, 8), LastActivityAt: at(60)},
	}

	curve, err := RetentionCurve(monday, 7, 8, activity)
	require.NoError(t, err)
	assert.Equal(t, 4, curve.CohortSize)
	require.Len(t, curve.Points, 8)
	assert.Equal(t, 1.0, curve.Points[0].RetentionRate)

	for i := 1; i < len(curve.Points); i++ {
		assert.LessOrEqual(t, curve.Points[i].RetentionRate, curve.Points[i-1].RetentionRate)
	}
	assert.Equal(t, 3, curve.Points[1].ActiveCount)
	assert.Equal(t, 1, curve.Points[5].ActiveCount)
	assert.Equal(t, 0, curve.Points[7].ActiveCount)
}

func TestRetentionCurveEmptyCohort(t *testing.T) {
	_, err := RetentionCurve(monday, 7, 4, nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrInsufficientData))

	_, err = RetentionCurve(monday, 0, 4, nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCohortTrendsGroupsAndCountsTutors(t *testing.T) {
	series := CohortTrends([]GroupedObservation{
		{Group: "science", TutorID: "t2", Observation: obs(monday, 6)},
		{Group: "math", TutorID: "t1", Observation: obs(monday, 8)},
		{Group: "math", TutorID: "t3", Observation: obs(monday.Add(time.Hour), 6)},
	}, models.GranularityWeek)

	require.Len(t, series, 2)
	assert.Equal(t, "math", series[0].Group)
	assert.Equal(t, 2, series[0].TutorCount)
	assert.InDelta(t, 7.0, series[0].Points[0].Value, 1e-9)
	assert.Equal(t, "science", series[1].Group)
}
