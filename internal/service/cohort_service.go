package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/analytics"
	"github.com/noah-isme/tutor-insights-api/internal/dto"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

// CohortService compares groups of tutors on their aggregate metrics.
type CohortService struct {
	tutors    TutorRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCohortService constructs a CohortService.
func NewCohortService(tutors TutorRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CohortService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CohortService{tutors: tutors, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// Segments ranks active tutors into star, average and lagging performers and
// contrasts the two tails.
func (s *CohortService) Segments(ctx context.Context) (*models.SegmentAnalysis, bool, error) {
	return cacheAside(ctx, s.cache, s.metrics, makeCacheKey("cohort", "segments"), "cohort_segments", func() (*models.SegmentAnalysis, error) {
		aggs, err := s.activeAggregates(ctx)
		if err != nil {
			return nil, err
		}
		if len(aggs) < 2*analytics.MinCohortSize {
			return nil, appErrors.Clone(appErrors.ErrInsufficientData, "segment analysis needs at least 4 active tutors")
		}
		analysis := analytics.AnalyzeSegments(aggs)
		return &analysis, nil
	})
}

// FirstSessions compares tutors with poor first sessions against the active
// population.
func (s *CohortService) FirstSessions(ctx context.Context) (*models.FirstSessionAnalysis, bool, error) {
	return cacheAside(ctx, s.cache, s.metrics, makeCacheKey("cohort", "first-session"), "cohort_first_session", func() (*models.FirstSessionAnalysis, error) {
		aggs, err := s.activeAggregates(ctx)
		if err != nil {
			return nil, err
		}
		return firstSessionAnalysis(aggs)
	})
}

func firstSessionAnalysis(aggs []models.TutorAggregate) (*models.FirstSessionAnalysis, error) {
	analysis := analytics.AnalyzeFirstSessions(aggs)
	if analysis.PoorCount < analytics.MinCohortSize {
		return nil, appErrors.Clone(appErrors.ErrInsufficientData,
			fmt.Sprintf("first-session analysis needs at least %d tutors with poor first sessions, found %d", analytics.MinCohortSize, analysis.PoorCount))
	}
	return &analysis, nil
}

// Compare runs an ad-hoc comparison between two lists of tutor ids.
func (s *CohortService) Compare(ctx context.Context, req dto.CompareCohortsRequest) (*dto.CompareCohortsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cohort comparison")
	}
	specs := analytics.SegmentMetrics()
	if len(req.Metrics) > 0 {
		specs = make([]analytics.MetricSpec, 0, len(req.Metrics))
		for _, key := range req.Metrics {
			spec, ok := analytics.MetricByKey(key)
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown metric %q", key))
			}
			specs = append(specs, spec)
		}
	}

	ids := make([]string, 0, len(req.GroupA)+len(req.GroupB))
	ids = append(ids, req.GroupA...)
	ids = append(ids, req.GroupB...)
	aggs, err := s.tutors.ListAggregates(ctx, models.TutorFilter{TutorIDs: ids})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor aggregates")
	}
	byID := make(map[string]models.TutorAggregate, len(aggs))
	for _, a := range aggs {
		byID[a.TutorID] = a
	}
	groupA := pickAggregates(byID, req.GroupA)
	groupB := pickAggregates(byID, req.GroupB)
	if len(groupA) < analytics.MinCohortSize || len(groupB) < analytics.MinCohortSize {
		return nil, appErrors.Clone(appErrors.ErrInsufficientData, "each group needs at least 2 known tutors")
	}

	results := analytics.CompareCohorts(groupA, groupB, specs)
	resp := &dto.CompareCohortsResponse{
		GroupASize:  len(groupA),
		GroupBSize:  len(groupB),
		Comparisons: results,
	}
	for _, r := range results {
		if r.IsSignificant() {
			resp.Significant++
		}
	}
	s.logger.Debug("cohort comparison",
		zap.Int("group_a", len(groupA)),
		zap.Int("group_b", len(groupB)),
		zap.Int("metrics", len(results)),
	)
	return resp, nil
}

func (s *CohortService) activeAggregates(ctx context.Context) ([]models.TutorAggregate, error) {
	aggs, err := s.tutors.ListAggregates(ctx, models.TutorFilter{ActiveOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor aggregates")
	}
	return aggs, nil
}

func pickAggregates(byID map[string]models.TutorAggregate, ids []string) []models.TutorAggregate {
	seen := make(map[string]struct{}, len(ids))
	out := make([]models.TutorAggregate, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out
}
