package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

const (
	defaultTargetLimit = 1000
	maxTargetLimit     = 5000
	previewSampleSize  = 10
)

// Match score weights per criterion family.
const (
	matchWeightEngagement   = 10
	matchWeightChurn        = 15
	matchWeightLogin        = 10
	matchWeightFirstSession = 12
	matchWeightTechnical    = 8
	matchWeightReliability  = 8
)

// TargetingService resolves targeting criteria to tutors.
type TargetingService struct {
	tutors     TutorRepository
	thresholds config.Thresholds
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTargetingService constructs a TargetingService.
func NewTargetingService(tutors TutorRepository, thresholds config.Thresholds, validate *validator.Validate, logger *zap.Logger) *TargetingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TargetingService{tutors: tutors, thresholds: thresholds, validator: validate, logger: logger}
}

// FindTargetTutors returns the tutors matching every predicate of criteria,
// highest match score first.
func (s *TargetingService) FindTargetTutors(ctx context.Context, criteria models.TargetCriteria) (*models.TargetingResult, error) {
	criteria, err := s.normalize(criteria)
	if err != nil {
		return nil, err
	}
	aggs, err := s.tutors.FindByCriteria(ctx, criteria)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve targeting criteria")
	}
	tutors := scoreTargets(aggs, criteria)
	return &models.TargetingResult{Tutors: tutors, Count: len(tutors)}, nil
}

// PreviewTargeting returns the total audience and a small sample of it.
func (s *TargetingService) PreviewTargeting(ctx context.Context, criteria models.TargetCriteria) (*models.TargetingPreview, error) {
	criteria, err := s.normalize(criteria)
	if err != nil {
		return nil, err
	}
	count, err := s.tutors.CountByCriteria(ctx, criteria)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count targeted tutors")
	}
	sampleCriteria := criteria
	if sampleCriteria.Limit > previewSampleSize {
		sampleCriteria.Limit = previewSampleSize
	}
	sample, err := s.tutors.FindByCriteria(ctx, sampleCriteria)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sample targeted tutors")
	}
	return &models.TargetingPreview{Count: count, Sample: scoreTargets(sample, criteria), Criteria: criteria}, nil
}

// EstimateAudienceSize counts matching tutors without loading them. The
// count is not capped by the criteria limit.
func (s *TargetingService) EstimateAudienceSize(ctx context.Context, criteria models.TargetCriteria) (int, error) {
	criteria, err := s.normalize(criteria)
	if err != nil {
		return 0, err
	}
	count, err := s.tutors.CountByCriteria(ctx, criteria)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count targeted tutors")
	}
	return count, nil
}

// Segments returns the predefined segments with their current sizes.
func (s *TargetingService) Segments(ctx context.Context) ([]models.Segment, error) {
	segments := PredefinedSegments(s.thresholds)
	for i := range segments {
		size, err := s.EstimateAudienceSize(ctx, segments[i].Criteria)
		if err != nil {
			return nil, err
		}
		segments[i].EstimatedSize = size
	}
	return segments, nil
}

// Segment looks up a predefined segment by name.
func (s *TargetingService) Segment(name string) (models.Segment, bool) {
	for _, seg := range PredefinedSegments(s.thresholds) {
		if seg.Name == name {
			return seg, true
		}
	}
	return models.Segment{}, false
}

func (s *TargetingService) normalize(c models.TargetCriteria) (models.TargetCriteria, error) {
	if c.IsEmpty() {
		return c, appErrors.Clone(appErrors.ErrValidation, "at least one targeting criterion is required")
	}
	if err := s.validator.Struct(c); err != nil {
		return c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid targeting criteria")
	}
	for _, level := range c.ChurnRiskLevels {
		switch level {
		case models.ChurnRiskLow, models.ChurnRiskMedium, models.ChurnRiskHigh:
		default:
			return c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown churn risk level %q", level))
		}
	}
	floats := map[string]*models.FloatRange{
		"avg_engagement":       c.AvgEngagement,
		"avg_rating":           c.AvgRating,
		"technical_issue_rate": c.TechnicalIssueRate,
		"reschedule_rate":      c.RescheduleRate,
	}
	for name, r := range floats {
		if r != nil && r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return c, appErrors.Clone(appErrors.ErrValidation, name+" min exceeds max")
		}
	}
	ints := map[string]*models.IntRange{
		"months_experience": c.MonthsExperience,
		"days_since_login":  c.DaysSinceLogin,
		"sessions_7d":       c.Sessions7d,
	}
	for name, r := range ints {
		if r != nil && r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return c, appErrors.Clone(appErrors.ErrValidation, name+" min exceeds max")
		}
	}

	if c.ActiveStatus == nil {
		c.ActiveStatus = ref(true)
	}
	if c.Limit == 0 {
		c.Limit = defaultTargetLimit
	}
	if c.Limit > maxTargetLimit {
		c.Limit = maxTargetLimit
	}
	c.Version = models.TargetCriteriaVersion
	return c, nil
}

// scoreTargets annotates every tutor with the criterion families that
// selected it.
func scoreTargets(aggs []models.TutorAggregate, c models.TargetCriteria) []models.TargetTutor {
	var score float64
	reasons := make([]string, 0, 6)
	if c.AvgEngagement.IsSet() {
		score += matchWeightEngagement
		reasons = append(reasons, "Engagement Score")
	}
	if len(c.ChurnRiskLevels) > 0 {
		score += matchWeightChurn
		reasons = append(reasons, "Churn Risk")
	}
	if c.DaysSinceLogin != nil && c.DaysSinceLogin.Min != nil {
		score += matchWeightLogin
		reasons = append(reasons, "Login Activity")
	}
	if c.PoorFirstSession != nil && *c.PoorFirstSession {
		score += matchWeightFirstSession
		reasons = append(reasons, "First Session Performance")
	}
	if c.TechnicalIssueRate != nil && c.TechnicalIssueRate.Min != nil {
		score += matchWeightTechnical
		reasons = append(reasons, "Technical Issues")
	}
	if c.RescheduleRate != nil && c.RescheduleRate.Min != nil {
		score += matchWeightReliability
		reasons = append(reasons, "Reliability")
	}

	out := make([]models.TargetTutor, 0, len(aggs))
	for _, agg := range aggs {
		out = append(out, models.TargetTutor{
			TutorAggregate: agg,
			MatchScore:     score,
			MatchReasons:   append([]string(nil), reasons...),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchScore > out[j].MatchScore })
	return out
}

// PredefinedSegments are the named audiences offered to operators.
func PredefinedSegments(th config.Thresholds) []models.Segment {
	return []models.Segment{
		{
			Name:                "high_churn_risk",
			Description:         "Tutors the churn model rates as high risk",
			Criteria:            models.TargetCriteria{ChurnRiskLevels: []models.ChurnRiskLevel{models.ChurnRiskHigh}},
			RecommendedTemplate: TemplateNoLogin7d,
		},
		{
			Name:                "disengaged_tutors",
			Description:         "Tutors who have not logged in for a week",
			Criteria:            models.TargetCriteria{DaysSinceLogin: &models.IntRange{Min: ref(int(th.InactiveLoginDays))}},
			RecommendedTemplate: TemplateNoLogin7d,
		},
		{
			Name:                "low_engagement",
			Description:         "Average engagement at or below 6.0",
			Criteria:            models.TargetCriteria{AvgEngagement: &models.FloatRange{Max: ref(6.0)}},
			RecommendedTemplate: TemplateLowEngagement,
		},
		{
			Name:                "poor_first_sessions",
			Description:         "Tutors flagged for poor first sessions",
			Criteria:            models.TargetCriteria{PoorFirstSession: ref(true)},
			RecommendedTemplate: TemplatePoorFirstSession,
		},
		{
			Name:                "technical_issues",
			Description:         "Technical issue rate above the alert threshold",
			Criteria:            models.TargetCriteria{TechnicalIssueRate: &models.FloatRange{Min: ref(th.TechnicalIssueThreshold)}},
			RecommendedTemplate: TemplateTechnicalIssues,
		},
		{
			Name:                "high_reschedule_rate",
			Description:         "Reschedule rate above the alert threshold",
			Criteria:            models.TargetCriteria{RescheduleRate: &models.FloatRange{Min: ref(th.RescheduleRateThreshold)}},
			RecommendedTemplate: TemplateHighReschedule,
		},
		{
			Name:                "new_tutors",
			Description:         "Tutors in their first three months",
			Criteria:            models.TargetCriteria{MonthsExperience: &models.IntRange{Max: ref(3)}},
			RecommendedTemplate: TemplateFirstSessionPrep,
		},
		{
			Name:        "star_performers",
			Description: "High engagement, high rating and low churn risk",
			Criteria: models.TargetCriteria{
				AvgEngagement:   &models.FloatRange{Min: ref(8.0)},
				AvgRating:       &models.FloatRange{Min: ref(4.5)},
				ChurnRiskLevels: []models.ChurnRiskLevel{models.ChurnRiskLow},
			},
			RecommendedTemplate: TemplatePositiveRecognition,
		},
		{
			Name:        "at_risk_quality",
			Description: "Engagement at or below 6.5 and rating at or below 4.0",
			Criteria: models.TargetCriteria{
				AvgEngagement: &models.FloatRange{Max: ref(6.5)},
				AvgRating:     &models.FloatRange{Max: ref(4.0)},
			},
			RecommendedTemplate: TemplateLowEngagement,
		},
		{
			Name:                "inactive_14d",
			Description:         "Tutors who have not logged in for two weeks",
			Criteria:            models.TargetCriteria{DaysSinceLogin: &models.IntRange{Min: ref(int(th.NoSessionsDays))}},
			RecommendedTemplate: TemplateReengagement14d,
		},
	}
}

func ref[T any](v T) *T { return &v }
