package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/analytics"
	"github.com/noah-isme/tutor-insights-api/internal/dto"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

const (
	defaultInsightLimit = 50
	maxInsightLimit     = 500

	firstSessionCohortLabel = "poor_first_session"
	populationCohortLabel   = "all_active_tutors"
)

// insightFamily groups first-session metrics into one finding.
type insightFamily struct {
	pattern models.PatternType
	title   string
	metrics []string
}

var firstSessionFamilies = []insightFamily{
	{
		pattern: models.PatternEngagement,
		title:   "Engagement and communication gaps in poor first sessions",
		metrics: []string{"avg_engagement_score", "avg_empathy_score", "avg_clarity_score", "avg_student_satisfaction"},
	},
	{
		pattern: models.PatternTechnical,
		title:   "Technical issues impact first session quality",
		metrics: []string{"technical_issue_rate"},
	},
	{
		pattern: models.PatternExperience,
		title:   "Experience level affects first session success",
		metrics: []string{"months_experience"},
	},
	{
		pattern: models.PatternReliability,
		title:   "Reliability problems accompany poor first sessions",
		metrics: []string{"reliability_score", "reschedule_rate"},
	},
}

// InsightService stores pattern insights and discovers new ones from cohort
// comparisons.
type InsightService struct {
	insights  InsightRepository
	tutors    TutorRepository
	narrator  Narrator
	alpha     float64
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInsightService constructs an InsightService. narrator may be nil, in
// which case descriptions are generated from the statistics alone.
func NewInsightService(insights InsightRepository, tutors TutorRepository, narrator Narrator, alpha float64, validate *validator.Validate, logger *zap.Logger) *InsightService {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightService{insights: insights, tutors: tutors, narrator: narrator, alpha: alpha, validator: validate, logger: logger}
}

// List returns insights ordered by confidence then recency. Status defaults
// to active.
func (s *InsightService) List(ctx context.Context, filter models.InsightFilter) ([]models.PatternInsight, error) {
	if filter.Status == "" {
		filter.Status = models.InsightActive
	}
	if !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown insight status %q", filter.Status))
	}
	if filter.MinConfidence != nil && (*filter.MinConfidence < 0 || *filter.MinConfidence > 1) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "minConfidence must be between 0 and 1")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultInsightLimit
	}
	if filter.Limit > maxInsightLimit {
		filter.Limit = maxInsightLimit
	}

	items, err := s.insights.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list insights")
	}
	sortInsights(items)
	return items, nil
}

func sortInsights(items []models.PatternInsight) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ConfidenceScore != items[j].ConfidenceScore {
			return items[i].ConfidenceScore > items[j].ConfidenceScore
		}
		return items[i].DiscoveredAt.After(items[j].DiscoveredAt)
	})
}

// Get returns one insight.
func (s *InsightService) Get(ctx context.Context, id string) (*models.PatternInsight, error) {
	item, err := s.insights.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "insight not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load insight")
	}
	return item, nil
}

// Create stores a manually authored insight.
func (s *InsightService) Create(ctx context.Context, req dto.CreateInsightRequest, now time.Time) (*models.PatternInsight, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid insight payload")
	}
	insight := &models.PatternInsight{
		ID:                      uuid.NewString(),
		PatternType:             req.PatternType,
		Title:                   strings.TrimSpace(req.Title),
		Description:             strings.TrimSpace(req.Description),
		AffectedTutorIDs:        pq.StringArray(req.AffectedTutorIDs),
		Correlations:            models.InsightCorrelations{Version: models.InsightCorrelationsVersion, Entries: []models.CorrelationEntry{}},
		StatisticalSignificance: req.StatisticalSignificance,
		ConfidenceScore:         req.ConfidenceScore,
		Status:                  models.InsightActive,
		DiscoveredAt:            now,
		UpdatedAt:               now,
	}
	if insight.AffectedTutorIDs == nil {
		insight.AffectedTutorIDs = pq.StringArray{}
	}
	if err := s.insights.Create(ctx, insight); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create insight")
	}
	return insight, nil
}

// UpdateStatus moves an insight through its lifecycle.
func (s *InsightService) UpdateStatus(ctx context.Context, id string, req dto.UpdateInsightRequest, now time.Time) (*models.PatternInsight, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid insight update")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.insights.UpdateStatus(ctx, id, req.Status, req.ActionTaken, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update insight")
	}
	return s.Get(ctx, id)
}

// Stats summarises active insights.
func (s *InsightService) Stats(ctx context.Context) (*models.InsightStats, error) {
	items, err := s.insights.List(ctx, models.InsightFilter{Status: models.InsightActive})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load insights")
	}
	stats := &models.InsightStats{Total: len(items), ByType: map[models.PatternType]int{}}
	affected := make(map[string]struct{})
	var confidence float64
	for _, it := range items {
		stats.ByType[it.PatternType]++
		confidence += it.ConfidenceScore
		for _, id := range it.AffectedTutorIDs {
			affected[id] = struct{}{}
		}
	}
	if len(items) > 0 {
		stats.AvgConfidence = confidence / float64(len(items))
	}
	stats.TotalAffectedTutors = len(affected)
	return stats, nil
}

// DiscoverFirstSessionInsights compares tutors with poor first sessions to
// the active population and stores one insight per metric family that
// differs significantly. A family that already has an active insight with
// the same title is skipped.
func (s *InsightService) DiscoverFirstSessionInsights(ctx context.Context, now time.Time) ([]models.PatternInsight, error) {
	aggs, err := s.tutors.ListAggregates(ctx, models.TutorFilter{ActiveOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor aggregates")
	}
	analysis := analytics.AnalyzeFirstSessions(aggs)
	if analysis.PoorCount < analytics.MinCohortSize {
		s.logger.Info("first-session discovery skipped", zap.Int("poor_first_sessions", analysis.PoorCount))
		return []models.PatternInsight{}, nil
	}

	affected := make(pq.StringArray, 0, analysis.PoorCount)
	for _, a := range aggs {
		if a.PoorFirstSession {
			affected = append(affected, a.TutorID)
		}
	}

	existing, err := s.insights.List(ctx, models.InsightFilter{Status: models.InsightActive, Limit: maxInsightLimit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load insights")
	}
	seen := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		seen[string(it.PatternType)+"|"+it.Title] = struct{}{}
	}

	created := make([]models.PatternInsight, 0, len(firstSessionFamilies))
	for _, family := range firstSessionFamilies {
		findings := significantFindings(analysis.Comparisons, family.metrics, s.alpha)
		if len(findings) == 0 {
			continue
		}
		if _, dup := seen[string(family.pattern)+"|"+family.title]; dup {
			continue
		}
		minP := findings[0].PValue
		for _, f := range findings[1:] {
			minP = math.Min(minP, f.PValue)
		}
		insight := models.PatternInsight{
			ID:                      uuid.NewString(),
			PatternType:             family.pattern,
			Title:                   family.title,
			Description:             s.describe(ctx, findings, analysis.PoorCount),
			AffectedTutorIDs:        affected,
			Correlations:            correlationsOf(findings),
			StatisticalSignificance: minP,
			ConfidenceScore:         1 - minP,
			Status:                  models.InsightActive,
			DiscoveredAt:            now,
			UpdatedAt:               now,
		}
		if err := s.insights.Create(ctx, &insight); err != nil {
			return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store insight")
		}
		created = append(created, insight)
	}

	s.logger.Info("first-session discovery finished",
		zap.Int("poor_first_sessions", analysis.PoorCount),
		zap.Int("insights_created", len(created)),
	)
	return created, nil
}

func significantFindings(comparisons []models.CohortComparisonResult, metrics []string, alpha float64) []models.CohortComparisonResult {
	out := make([]models.CohortComparisonResult, 0, len(metrics))
	for _, c := range comparisons {
		if c.PValue >= alpha {
			continue
		}
		for _, m := range metrics {
			if c.Metric == m {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func correlationsOf(findings []models.CohortComparisonResult) models.InsightCorrelations {
	entries := make([]models.CorrelationEntry, 0, len(findings))
	for _, f := range findings {
		entries = append(entries, models.CorrelationEntry{
			Metric:     f.Metric,
			GroupAAvg:  f.GroupAAvg,
			GroupBAvg:  f.GroupBAvg,
			EffectSize: f.EffectSize,
			PValue:     f.PValue,
		})
	}
	return models.InsightCorrelations{
		Version: models.InsightCorrelationsVersion,
		GroupA:  firstSessionCohortLabel,
		GroupB:  populationCohortLabel,
		Entries: entries,
	}
}

// describe asks the narrator for prose and falls back to a sentence built
// from the strongest finding.
func (s *InsightService) describe(ctx context.Context, findings []models.CohortComparisonResult, poorCount int) string {
	top := findings[0]
	scope := fmt.Sprintf("%d tutors with poor first sessions compared with all active tutors", poorCount)
	if s.narrator != nil {
		text, err := s.narrator.Describe(ctx, top, scope)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		if err != nil {
			s.logger.Warn("insight narration failed, using fallback", zap.String("metric", top.Metric), zap.Error(err))
		}
	}
	direction := "higher"
	if top.Difference < 0 {
		direction = "lower"
	}
	text := fmt.Sprintf("Across %s, %s is %.1f%% %s for the poor first session cohort (%.2f vs %.2f, p=%.3f).",
		scope, top.Label, math.Abs(top.PercentDifference), direction, top.GroupAAvg, top.GroupBAvg, top.PValue)
	if len(findings) > 1 {
		labels := make([]string, 0, len(findings)-1)
		for _, f := range findings[1:] {
			labels = append(labels, f.Label)
		}
		text += " Related differences: " + strings.Join(labels, ", ") + "."
	}
	return text
}
