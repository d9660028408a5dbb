package service

import (
	"context"
	"errors"
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

func targetingPopulation() []models.TutorAggregate {
	return []models.TutorAggregate{
		{
			TutorID: "A", TutorName: "Ada", IsActive: true, ChurnRiskLevel: models.ChurnRiskHigh,
			AvgEngagement: null.Float64From(5.0), DaysSinceLogin: null.IntFrom(10),
			TechnicalIssueRate: null.Float64From(0.2), PoorFirstSession: true, MonthsExperience: 12,
		},
		{
			TutorID: "B", TutorName: "Bo", IsActive: true, ChurnRiskLevel: models.ChurnRiskLow,
			AvgEngagement: null.Float64From(8.5), AvgRating: null.Float64From(4.8), DaysSinceLogin: null.IntFrom(1),
			MonthsExperience: 24,
		},
		{TutorID: "C", TutorName: "Cy", IsActive: false, ChurnRiskLevel: models.ChurnRiskHigh},
		{
			TutorID: "D", TutorName: "Di", IsActive: true, ChurnRiskLevel: models.ChurnRiskHigh,
			DaysSinceLogin: null.IntFrom(20), MonthsExperience: 2,
		},
	}
}

func newTargetingFixture() (*TargetingService, *fakeTutorRepo) {
	tutors := &fakeTutorRepo{aggregates: targetingPopulation()}
	return NewTargetingService(tutors, config.DefaultThresholds(), nil, nil), tutors
}

func targetIDs(tutors []models.TargetTutor) []string {
	ids := make([]string, 0, len(tutors))
	for _, t := range tutors {
		ids = append(ids, t.TutorID)
	}
	return ids
}

func TestFindTargetTutorsDefaultsToActive(t *testing.T) {
	svc, _ := newTargetingFixture()

	result, err := svc.FindTargetTutors(context.Background(), models.TargetCriteria{
		ChurnRiskLevels: []models.ChurnRiskLevel{models.ChurnRiskHigh},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.ElementsMatch(t, []string{"A", "D"}, targetIDs(result.Tutors))
	for _, tutor := range result.Tutors {
		assert.Equal(t, 15.0, tutor.MatchScore)
		assert.Equal(t, []string{"Churn Risk"}, tutor.MatchReasons)
	}

	inactive, err := svc.FindTargetTutors(context.Background(), models.TargetCriteria{
		ChurnRiskLevels: []models.ChurnRiskLevel{models.ChurnRiskHigh},
		ActiveStatus:    ref(false),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, targetIDs(inactive.Tutors))
}

func TestFindTargetTutorsComposesPredicates(t *testing.T) {
	svc, _ := newTargetingFixture()

	result, err := svc.FindTargetTutors(context.Background(), models.TargetCriteria{
		ChurnRiskLevels:    []models.ChurnRiskLevel{models.ChurnRiskHigh},
		DaysSinceLogin:     &models.IntRange{Min: ref(7)},
		AvgEngagement:      &models.FloatRange{Max: ref(6.0)},
		PoorFirstSession:   ref(true),
		TechnicalIssueRate: &models.FloatRange{Min: ref(0.15)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	got := result.Tutors[0]
	assert.Equal(t, "A", got.TutorID)
	assert.Equal(t, 55.0, got.MatchScore)
	assert.Equal(t, []string{"Engagement Score", "Churn Risk", "Login Activity", "First Session Performance", "Technical Issues"}, got.MatchReasons)
}

func TestFindTargetTutorsValidation(t *testing.T) {
	svc, tutors := newTargetingFixture()
	cases := map[string]models.TargetCriteria{
		"empty":          {},
		"limit only":     {Limit: 10, ActiveStatus: ref(true)},
		"limit too high": {PoorFirstSession: ref(true), Limit: 6000},
		"inverted range": {AvgRating: &models.FloatRange{Min: ref(4.0), Max: ref(3.0)}},
		"unknown churn":  {ChurnRiskLevels: []models.ChurnRiskLevel{"extreme"}},
	}
	for name, criteria := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.FindTargetTutors(context.Background(), criteria)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
		})
	}
	assert.Zero(t, tutors.findCalls)
}

func TestFindTargetTutorsRepositoryError(t *testing.T) {
	svc, tutors := newTargetingFixture()
	tutors.findErr = errors.New("db down")

	_, err := svc.FindTargetTutors(context.Background(), models.TargetCriteria{PoorFirstSession: ref(true)})
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestPreviewTargeting(t *testing.T) {
	svc, _ := newTargetingFixture()

	preview, err := svc.PreviewTargeting(context.Background(), models.TargetCriteria{
		DaysSinceLogin: &models.IntRange{Min: ref(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, preview.Count)
	assert.Len(t, preview.Sample, 3)
	assert.Equal(t, 1000, preview.Criteria.Limit)
	require.NotNil(t, preview.Criteria.ActiveStatus)
	assert.True(t, *preview.Criteria.ActiveStatus)
	assert.Equal(t, models.TargetCriteriaVersion, preview.Criteria.Version)
}

func TestPredefinedSegmentsSizes(t *testing.T) {
	svc, _ := newTargetingFixture()

	segments, err := svc.Segments(context.Background())
	require.NoError(t, err)
	require.Len(t, segments, 10)

	sizes := make(map[string]int, len(segments))
	for _, seg := range segments {
		sizes[seg.Name] = seg.EstimatedSize
		_, ok := NewTemplateCatalog().Get(seg.RecommendedTemplate)
		assert.True(t, ok, "segment %s recommends unknown template", seg.Name)
	}
	assert.Equal(t, 2, sizes["high_churn_risk"])
	assert.Equal(t, 2, sizes["disengaged_tutors"])
	assert.Equal(t, 1, sizes["inactive_14d"])
	assert.Equal(t, 1, sizes["star_performers"])
	assert.Equal(t, 1, sizes["new_tutors"])

	seg, ok := svc.Segment("inactive_14d")
	require.True(t, ok)
	assert.Equal(t, 14, *seg.Criteria.DaysSinceLogin.Min)
	_, ok = svc.Segment("nobody")
	assert.False(t, ok)
}
