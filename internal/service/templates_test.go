package service

import (
	"fmt"
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
)

func TestTemplateCatalogRendersEveryTemplate(t *testing.T) {
	catalog := NewTemplateCatalog()
	require.Len(t, catalog.List(), 8)

	agg := models.TutorAggregate{
		TutorID:               "T1",
		TutorName:             "Ada",
		PrimarySubject:        "math",
		AvgEngagement:         null.Float64From(5.25),
		DaysSinceLogin:        null.IntFrom(9),
		TechnicalIssueRate:    null.Float64From(0.2),
		FirstSessionAvgRating: null.Float64From(3.1),
		RescheduleRate:        null.Float64From(0.25),
		TotalSessions:         40,
	}
	vars := templateVariables(agg, "https://tutors.example.com/", config.DefaultThresholds(), map[string]string{
		"studentName": "Sam",
		"sessionDate": "2024-05-07",
		"sessionTime": "16:00",
		"gradeLevel":  "8",
		"rank":        "5",
	})
	for _, tmpl := range catalog.List() {
		subject, content, err := catalog.Render(tmpl.ID, vars)
		require.NoError(t, err, tmpl.ID)
		assert.NotEmpty(t, subject, tmpl.ID)
		assert.NotContains(t, content, "<no value>", tmpl.ID)
	}

	subject, content, err := catalog.Render(TemplateNoLogin7d, vars)
	require.NoError(t, err)
	assert.Equal(t, "We miss you, Ada!", subject)
	assert.Contains(t, content, "It's been 9 days")
	assert.Contains(t, content, "https://tutors.example.com")
	assert.NotContains(t, content, "Your last session was on")

	_, content, err = catalog.Render(TemplateHighReschedule, vars)
	require.NoError(t, err)
	assert.Contains(t, content, "Your reschedule rate is 25% (target: 15%)")
}

func TestTemplateCatalogRejectsMissingVariables(t *testing.T) {
	catalog := NewTemplateCatalog()
	vars := templateVariables(models.TutorAggregate{TutorID: "T9"}, "https://x", config.DefaultThresholds(), nil)
	assert.Equal(t, "Tutor T9", vars["tutorName"])

	assert.Equal(t, []string{"daysSinceLogin"}, catalog.MissingVariables(TemplateNoLogin7d, vars))
	_, _, err := catalog.Render(TemplateNoLogin7d, vars)
	assert.ErrorContains(t, err, "daysSinceLogin")

	// Undeclared variables referenced by a template still fail to render.
	_, _, err = catalog.Render(TemplateFirstSessionPrep, map[string]string{
		"tutorName": "A", "studentName": "B", "sessionDate": "d", "sessionTime": "t",
		"subject": "s", "gradeLevel": "g", "prepGuideUrl": "u",
	})
	require.NoError(t, err)
	_, _, err = catalog.Render(TemplateNoLogin7d, map[string]string{"tutorName": "A", "daysSinceLogin": "8", "loginUrl": "u"})
	assert.ErrorContains(t, err, "lastSessionDate")

	_, _, err = catalog.Render("nope", vars)
	assert.Error(t, err)
}

func TestTemplateVariablesLeaveRankUnset(t *testing.T) {
	catalog := NewTemplateCatalog()
	vars := templateVariables(models.TutorAggregate{TutorID: "T1", AvgEngagement: null.Float64From(9.5)}, "https://x", config.DefaultThresholds(), nil)

	_, ok := vars["rank"]
	assert.False(t, ok)
	assert.Equal(t, []string{"rank"}, catalog.MissingVariables(TemplatePositiveRecognition, vars))
	_, _, err := catalog.Render(TemplatePositiveRecognition, vars)
	assert.ErrorContains(t, err, "rank")
}

func TestTopPercentRank(t *testing.T) {
	population := make([]models.TutorAggregate, 0, 10)
	for i := 1; i <= 10; i++ {
		population = append(population, models.TutorAggregate{
			TutorID:       fmt.Sprintf("T%d", i),
			AvgEngagement: null.Float64From(float64(i)),
		})
	}
	cases := []struct {
		name string
		agg  models.TutorAggregate
		want string
	}{
		{"best", population[9], "10"},
		{"second", population[8], "20"},
		{"worst", population[0], "100"},
		{"outside population", models.TutorAggregate{TutorID: "X", AvgEngagement: null.Float64From(9.5)}, "19"},
		{"tied with best", models.TutorAggregate{TutorID: "Y", AvgEngagement: null.Float64From(10)}, "10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := topPercentRank(tc.agg, population)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	_, ok := topPercentRank(population[0], nil)
	assert.False(t, ok)
}

func TestRecommendTemplate(t *testing.T) {
	th := config.DefaultThresholds()
	cases := []struct {
		name string
		agg  models.TutorAggregate
		want string
	}{
		{"inactive two weeks", models.TutorAggregate{DaysSinceLogin: null.IntFrom(15)}, TemplateReengagement14d},
		{"inactive one week", models.TutorAggregate{DaysSinceLogin: null.IntFrom(8)}, TemplateNoLogin7d},
		{"low engagement", models.TutorAggregate{AvgEngagement: null.Float64From(4)}, TemplateLowEngagement},
		{"technical", models.TutorAggregate{TechnicalIssueRate: null.Float64From(0.3)}, TemplateTechnicalIssues},
		{"first session", models.TutorAggregate{FirstSessionAvgRating: null.Float64From(3)}, TemplatePoorFirstSession},
		{"reschedule", models.TutorAggregate{RescheduleRate: null.Float64From(0.2)}, TemplateHighReschedule},
		{"star", models.TutorAggregate{AvgEngagement: null.Float64From(9.5), AvgRating: null.Float64From(4.9)}, TemplatePositiveRecognition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := RecommendTemplate(tc.agg, th)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	_, ok := RecommendTemplate(models.TutorAggregate{AvgEngagement: null.Float64From(7)}, th)
	assert.False(t, ok)
}
