package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/analytics"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

// TrendQuery scopes a metric series request.
type TrendQuery struct {
	Metric      models.MetricType  `validate:"required,oneof=engagement empathy clarity satisfaction rating"`
	Days        int                `validate:"min=1,max=365"`
	MAWindow    int                `validate:"min=1,max=52"`
	TutorID     string             `validate:"omitempty,max=64"`
	Granularity models.Granularity `validate:"required,oneof=day week"`
}

func (q TrendQuery) withDefaults() TrendQuery {
	if q.Metric == "" {
		q.Metric = models.MetricEngagement
	}
	if q.Days == 0 {
		q.Days = 90
	}
	if q.MAWindow == 0 {
		q.MAWindow = 4
	}
	if q.Granularity == "" {
		q.Granularity = models.GranularityWeek
	}
	return q
}

// AnomalyQuery scopes anomaly detection over a metric series.
type AnomalyQuery struct {
	TrendQuery
	Window     int     `validate:"min=0,max=52"`
	Multiplier float64 `validate:"min=0,max=10"`
	MinHistory int     `validate:"min=0,max=52"`
}

// CohortGrouping selects the tutor attribute cohort trends are split by.
type CohortGrouping string

const (
	CohortBySubject       CohortGrouping = "primary_subject"
	CohortByCertification CohortGrouping = "certification_level"
	CohortByChurnRisk     CohortGrouping = "churn_risk_level"
)

// TrendService serves time-series analytics over session metrics.
type TrendService struct {
	sessions   SessionRepository
	tutors     TutorRepository
	cache      *CacheService
	metrics    *MetricsService
	thresholds config.Thresholds
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTrendService constructs a TrendService.
func NewTrendService(sessions SessionRepository, tutors TutorRepository, cache *CacheService, metrics *MetricsService, thresholds config.Thresholds, validate *validator.Validate, logger *zap.Logger) *TrendService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrendService{
		sessions:   sessions,
		tutors:     tutors,
		cache:      cache,
		metrics:    metrics,
		thresholds: thresholds,
		validator:  validate,
		logger:     logger,
	}
}

// EngagementTrend returns the bucketed series of a metric, its moving average
// and trend. The boolean reports whether the result came from cache.
func (s *TrendService) EngagementTrend(ctx context.Context, q TrendQuery, now time.Time) (*models.EngagementTrend, bool, error) {
	q = q.withDefaults()
	if err := s.validator.Struct(q); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid trend query")
	}
	from := now.AddDate(0, 0, -q.Days)
	day := now.UTC().Truncate(24 * time.Hour)
	key := makeCacheKey("trend", string(q.Metric), string(q.Granularity), q.TutorID,
		strconv.Itoa(q.Days), strconv.Itoa(q.MAWindow), formatTime(&day))

	return cacheAside(ctx, s.cache, s.metrics, key, "trend_engagement", func() (*models.EngagementTrend, error) {
		obs, err := s.observations(ctx, q, from, now)
		if err != nil {
			return nil, err
		}
		series := analytics.WeeklyTrend(obs, q.Granularity)
		smoothed, err := analytics.MovingAverage(series, q.MAWindow)
		if err != nil {
			return nil, err
		}
		return &models.EngagementTrend{
			Metric:        q.Metric,
			Granularity:   q.Granularity,
			TutorID:       q.TutorID,
			From:          from,
			To:            now,
			Series:        series,
			MovingAverage: smoothed,
			Trend:         analytics.AnalyzeTrend(series, s.thresholds.TrendStableTolerance),
		}, nil
	})
}

// Anomalies flags points of the series that deviate from their rolling
// baseline.
func (s *TrendService) Anomalies(ctx context.Context, q AnomalyQuery, now time.Time) ([]models.AnomalyPoint, error) {
	q.TrendQuery = q.TrendQuery.withDefaults()
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid anomaly query")
	}
	if q.Multiplier == 0 {
		q.Multiplier = s.thresholds.AnomalyMultiplier
	}
	if q.MinHistory == 0 {
		q.MinHistory = s.thresholds.AnomalyMinHistory
	}
	obs, err := s.observations(ctx, q.TrendQuery, now.AddDate(0, 0, -q.Days), now)
	if err != nil {
		return nil, err
	}
	series := analytics.WeeklyTrend(obs, q.Granularity)
	return analytics.DetectAnomalies(series, analytics.AnomalyOptions{
		Window:     q.Window,
		Multiplier: q.Multiplier,
		MinHistory: q.MinHistory,
	})
}

// Seasonal averages a metric per weekday or hour and ranks the buckets.
func (s *TrendService) Seasonal(ctx context.Context, q TrendQuery, groupBy models.SeasonalGrouping, now time.Time) (*models.SeasonalRanking, error) {
	q = q.withDefaults()
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seasonal query")
	}
	if groupBy == "" {
		groupBy = models.GroupByDayOfWeek
	}
	obs, err := s.observations(ctx, q, now.AddDate(0, 0, -q.Days), now)
	if err != nil {
		return nil, err
	}
	buckets, err := analytics.DetectSeasonalPatterns(obs, groupBy)
	if err != nil {
		return nil, err
	}
	ranking := analytics.RankSeasonal(buckets)
	return &ranking, nil
}

// Cohorts splits the metric series by a tutor attribute.
func (s *TrendService) Cohorts(ctx context.Context, q TrendQuery, groupBy CohortGrouping, now time.Time) ([]models.CohortSeries, error) {
	q = q.withDefaults()
	q.TutorID = ""
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cohort trend query")
	}
	if groupBy == "" {
		groupBy = CohortBySubject
	}
	group, err := cohortGroupFunc(groupBy)
	if err != nil {
		return nil, err
	}

	aggs, err := s.tutors.ListAggregates(ctx, models.TutorFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor aggregates")
	}
	groups := make(map[string]string, len(aggs))
	for _, a := range aggs {
		groups[a.TutorID] = group(a)
	}

	from := now.AddDate(0, 0, -q.Days)
	sessions, err := s.loadSessions(ctx, "", from, now)
	if err != nil {
		return nil, err
	}
	grouped := make([]analytics.GroupedObservation, 0, len(sessions))
	for _, sess := range sessions {
		g, ok := groups[sess.TutorID]
		if !ok || g == "" {
			continue
		}
		grouped = append(grouped, analytics.GroupedObservation{
			Group:       g,
			TutorID:     sess.TutorID,
			Observation: models.Observation{Timestamp: sess.ScheduledStart, Value: sess.Metric(q.Metric)},
		})
	}
	return analytics.CohortTrends(grouped, q.Granularity), nil
}

// Retention builds the retention curve of tutors who joined in the period
// starting at start.
func (s *TrendService) Retention(ctx context.Context, start time.Time, periodDays, periods int) (*models.RetentionCurve, error) {
	if periodDays == 0 {
		periodDays = 7
	}
	if periods == 0 {
		periods = 12
	}
	if periods < 1 || periods > 104 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "periods must be between 1 and 104")
	}
	if start.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start is required")
	}
	if periodDays < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "periodDays must be positive")
	}
	activity, err := s.tutors.ListActivity(ctx, start, start.AddDate(0, 0, periodDays))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor activity")
	}
	curve, err := analytics.RetentionCurve(start, periodDays, periods, activity)
	if err != nil {
		return nil, err
	}
	return &curve, nil
}

func (s *TrendService) observations(ctx context.Context, q TrendQuery, from, to time.Time) ([]models.Observation, error) {
	sessions, err := s.loadSessions(ctx, q.TutorID, from, to)
	if err != nil {
		return nil, err
	}
	obs := make([]models.Observation, 0, len(sessions))
	for _, sess := range sessions {
		obs = append(obs, models.Observation{Timestamp: sess.ScheduledStart, Value: sess.Metric(q.Metric)})
	}
	return obs, nil
}

func (s *TrendService) loadSessions(ctx context.Context, tutorID string, from, to time.Time) ([]models.Session, error) {
	completed := true
	sessions, err := s.sessions.List(ctx, models.SessionFilter{TutorID: tutorID, From: &from, To: &to, Completed: &completed})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	return sessions, nil
}

func cohortGroupFunc(groupBy CohortGrouping) (func(models.TutorAggregate) string, error) {
	switch groupBy {
	case CohortBySubject:
		return func(a models.TutorAggregate) string { return a.PrimarySubject }, nil
	case CohortByCertification:
		return func(a models.TutorAggregate) string { return a.CertificationLevel }, nil
	case CohortByChurnRisk:
		return func(a models.TutorAggregate) string { return string(a.ChurnRiskLevel) }, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown cohort grouping %q", groupBy))
}
