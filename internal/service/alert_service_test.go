package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

var alertNow = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

// healthyTutor fires no rule.
func healthyTutor(id string) models.TutorAggregate {
	return models.TutorAggregate{
		TutorID:           id,
		TutorName:         "Tutor " + id,
		IsActive:          true,
		Sessions7d:        4,
		FirstSessionCount: 6,
	}
}

// technicalTutor fires only the technical issue rule.
func technicalTutor(id string) models.TutorAggregate {
	agg := healthyTutor(id)
	agg.TechnicalIssueRate = null.Float64From(0.3)
	return agg
}

func newAlertServiceForTest(tutors *fakeTutorRepo, store *fakeAlertStore, notifier AlertNotifier) *AlertService {
	return NewAlertService(tutors, store, notifier, config.DefaultThresholds(), nil, zap.NewNop())
}

func TestAlertRuleCatalog(t *testing.T) {
	rules := DefaultAlertRules()
	require.Len(t, rules, 9)
	assert.Equal(t, "churn_risk_high", rules[0].Type)
	for i := 1; i < len(rules); i++ {
		assert.GreaterOrEqual(t, rules[i-1].Priority, rules[i].Priority)
	}
	seen := map[string]bool{}
	for _, r := range rules {
		assert.False(t, seen[r.Type], r.Type)
		seen[r.Type] = true
		assert.True(t, r.Category.Valid(), r.Type)
		assert.Positive(t, r.Cooldown, r.Type)
	}
}

func TestSeverityForBreach(t *testing.T) {
	cases := []struct {
		name      string
		base      models.AlertSeverity
		value     float64
		threshold float64
		want      models.AlertSeverity
	}{
		{"small breach floored one below base", models.SeverityCritical, 0.7, 0.6, models.SeverityHigh},
		{"large breach", models.SeverityCritical, 0.95, 0.6, models.SeverityCritical},
		{"capped one above base", models.SeverityLow, 0, 3, models.SeverityMedium},
		{"tiny breach floored", models.SeverityHigh, 3.3, 3.5, models.SeverityMedium},
		{"medium rule raised to high", models.SeverityMedium, 0.2, 0.15, models.SeverityHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SeverityForBreach(tc.base, tc.value, tc.threshold))
		})
	}
}

func TestGenerateAlertsTwiceKeepsOneRow(t *testing.T) {
	tutors := &fakeTutorRepo{aggregates: []models.TutorAggregate{technicalTutor("T1"), healthyTutor("T2")}}
	store := &fakeAlertStore{}
	svc := newAlertServiceForTest(tutors, store, nil)

	first, err := svc.GenerateAlerts(context.Background(), alertNow)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Evaluated)
	assert.Equal(t, 1, first.Generated)
	assert.Equal(t, 0, first.Skipped)
	require.Len(t, first.Alerts, 1)

	alert := first.Alerts[0]
	assert.Equal(t, "T1", alert.TutorID)
	assert.Equal(t, "technical_issue_rate", alert.Metric)
	assert.Equal(t, models.CategoryTechnical, alert.Category)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Contains(t, alert.Message, "30.0%")
	assert.NotEmpty(t, alert.ID)

	second, err := svc.GenerateAlerts(context.Background(), alertNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Generated)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, store.rows, 1)
	assert.True(t, tutors.lastFilter.ActiveOnly)
}

func TestGenerateAlertsHonoursCooldownAfterResolve(t *testing.T) {
	tutors := &fakeTutorRepo{aggregates: []models.TutorAggregate{technicalTutor("T1")}}
	store := &fakeAlertStore{}
	svc := newAlertServiceForTest(tutors, store, nil)

	first, err := svc.GenerateAlerts(context.Background(), alertNow)
	require.NoError(t, err)
	require.Len(t, first.Alerts, 1)
	_, err = svc.ResolveAlert(context.Background(), first.Alerts[0].ID, alertNow.Add(time.Hour))
	require.NoError(t, err)

	cooling, err := svc.GenerateAlerts(context.Background(), alertNow.Add(10*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, cooling.Skipped)
	assert.Equal(t, 0, cooling.Generated)

	later, err := svc.GenerateAlerts(context.Background(), alertNow.Add(100*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, later.Generated)
	assert.Len(t, store.rows, 2)
}

func TestGenerateAlertsConcurrentRunsNeverDuplicate(t *testing.T) {
	var aggs []models.TutorAggregate
	for i := 0; i < 20; i++ {
		aggs = append(aggs, technicalTutor(fmt.Sprintf("T%02d", i)))
	}
	tutors := &fakeTutorRepo{aggregates: aggs}
	store := &fakeAlertStore{}
	svc := newAlertServiceForTest(tutors, store, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		generated int
		skipped   int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.GenerateAlerts(context.Background(), alertNow)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			generated += res.Generated
			skipped += res.Skipped
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, generated)
	assert.Equal(t, 20*7, skipped)
	for key, n := range store.unresolvedByKey() {
		assert.Equal(t, 1, n, "key %+v", key)
	}
}

func TestGenerateAlertsIsolatesTutorFailures(t *testing.T) {
	tutors := &fakeTutorRepo{aggregates: []models.TutorAggregate{technicalTutor("T1"), technicalTutor("T2")}}
	store := &fakeAlertStore{failFind: map[string]error{"T1": errors.New("connection reset")}}
	svc := newAlertServiceForTest(tutors, store, nil)

	res, err := svc.GenerateAlerts(context.Background(), alertNow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Generated)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "T1", res.Errors[0].ItemID)
	assert.Contains(t, res.Errors[0].Message, "connection reset")

	summary := res.Summary()
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
}

func TestGenerateAlertsFailsWhenAggregatesUnavailable(t *testing.T) {
	svc := newAlertServiceForTest(&fakeTutorRepo{listErr: errors.New("db down")}, &fakeAlertStore{}, nil)
	_, err := svc.GenerateAlerts(context.Background(), alertNow)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestGenerateAlertsNotifiesCriticalOnly(t *testing.T) {
	churning := healthyTutor("T1")
	churning.ChurnRiskLevel = models.ChurnRiskHigh
	churning.ChurnProbability = null.Float64From(0.95)
	tutors := &fakeTutorRepo{aggregates: []models.TutorAggregate{churning, technicalTutor("T2")}}
	notifier := &fakeNotifier{err: errors.New("slack unavailable")}
	svc := newAlertServiceForTest(tutors, &fakeAlertStore{}, notifier)

	res, err := svc.GenerateAlerts(context.Background(), alertNow)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Generated)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, "churn_probability", notifier.notified[0].Metric)
	assert.Equal(t, models.SeverityCritical, notifier.notified[0].Severity)
}

func TestAcknowledgeAlert(t *testing.T) {
	store := &fakeAlertStore{}
	svc := newAlertServiceForTest(&fakeTutorRepo{aggregates: []models.TutorAggregate{technicalTutor("T1")}}, store, nil)
	res, err := svc.GenerateAlerts(context.Background(), alertNow)
	require.NoError(t, err)
	id := res.Alerts[0].ID

	_, err = svc.AcknowledgeAlert(context.Background(), "missing", "op-1", alertNow)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	acked, err := svc.AcknowledgeAlert(context.Background(), id, "op-1", alertNow.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, acked.IsAcknowledged)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, "op-1", *acked.AcknowledgedBy)
	assert.Equal(t, models.AlertAcknowledged, acked.State())

	again, err := svc.AcknowledgeAlert(context.Background(), id, "op-2", alertNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "op-1", *again.AcknowledgedBy)

	_, err = svc.ResolveAlert(context.Background(), id, alertNow.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = svc.AcknowledgeAlert(context.Background(), id, "op-3", alertNow.Add(3*time.Hour))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestResolveAlertIsIdempotent(t *testing.T) {
	store := &fakeAlertStore{}
	svc := newAlertServiceForTest(&fakeTutorRepo{aggregates: []models.TutorAggregate{technicalTutor("T1")}}, store, nil)
	res, err := svc.GenerateAlerts(context.Background(), alertNow)
	require.NoError(t, err)
	id := res.Alerts[0].ID

	first, err := svc.ResolveAlert(context.Background(), id, alertNow.Add(time.Hour))
	require.NoError(t, err)
	second, err := svc.ResolveAlert(context.Background(), id, alertNow.Add(5*time.Hour))
	require.NoError(t, err)

	assert.True(t, second.IsResolved)
	assert.Equal(t, first.ResolvedAt, second.ResolvedAt)
	assert.Equal(t, models.AlertResolved, second.State())

	_, err = svc.ResolveAlert(context.Background(), "missing", alertNow)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAlertStatistics(t *testing.T) {
	resolvedAt := alertNow.Add(-time.Hour)
	actor := "op-1"
	store := &fakeAlertStore{rows: []*models.Alert{
		{ID: "a1", TutorID: "T1", Severity: models.SeverityHigh, Category: models.CategoryTechnical, MetricValue: 0.3, Threshold: 0.15, CreatedAt: alertNow.AddDate(0, 0, -2)},
		{ID: "a2", TutorID: "T1", Severity: models.SeverityCritical, Category: models.CategoryChurn, MetricValue: 0.9, Threshold: 0.6, CreatedAt: alertNow.AddDate(0, 0, -3), IsAcknowledged: true, AcknowledgedBy: &actor},
		{ID: "a3", TutorID: "T2", Severity: models.SeverityHigh, Category: models.CategoryQuality, MetricValue: 3.0, Threshold: 3.5, CreatedAt: alertNow.AddDate(0, 0, -10), IsResolved: true, ResolvedAt: &resolvedAt},
		{ID: "old", TutorID: "T3", Severity: models.SeverityLow, Category: models.CategoryQuality, MetricValue: 1, Threshold: 1, CreatedAt: alertNow.AddDate(0, 0, -60)},
	}}
	svc := newAlertServiceForTest(&fakeTutorRepo{}, store, nil)

	stats, err := svc.AlertStatistics(context.Background(), 0, alertNow)
	require.NoError(t, err)
	assert.Equal(t, 30, stats.WindowDays)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.BySeverity[models.SeverityHigh])
	assert.Equal(t, 1, stats.ByCategory[models.CategoryChurn])
	assert.Equal(t, 1, stats.Open)
	assert.Equal(t, 1, stats.Acknowledged)
	assert.Equal(t, 2, stats.Unacknowledged)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 2, stats.AffectedTutors)
	assert.InDelta(t, (1.0+0.5+1.0/7)/3, stats.AvgBreachMagnitude, 1e-9)

	_, err = svc.AlertStatistics(context.Background(), 400, alertNow)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestTutorAlertsAndPriorityScore(t *testing.T) {
	store := &fakeAlertStore{rows: []*models.Alert{
		{ID: "a1", TutorID: "T1", Priority: 50, Severity: models.SeverityMedium},
		{ID: "a2", TutorID: "T1", Priority: 30, Severity: models.SeverityLow},
		{ID: "a3", TutorID: "T1", Priority: 100, Severity: models.SeverityCritical, IsResolved: true},
		{ID: "a4", TutorID: "T2", Priority: 80, Severity: models.SeverityHigh},
	}}
	svc := newAlertServiceForTest(&fakeTutorRepo{}, store, nil)

	open, err := svc.TutorAlerts(context.Background(), "T1", false, 0)
	require.NoError(t, err)
	assert.Len(t, open.Alerts, 2)
	assert.InDelta(t, 56.0, open.PriorityScore, 1e-9)

	all, err := svc.TutorAlerts(context.Background(), "T1", true, 0)
	require.NoError(t, err)
	assert.Len(t, all.Alerts, 3)
	assert.InDelta(t, 56.0, all.PriorityScore, 1e-9)

	assert.InDelta(t, 100.0, TutorPriorityScore([]models.Alert{{Priority: 100}, {Priority: 80}, {Priority: 50}}), 1e-9)
	assert.Equal(t, 0.0, TutorPriorityScore(nil))

	high, err := svc.HighPriorityAlerts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "a4", high[0].ID)
}

func TestListAlertsValidatesFilters(t *testing.T) {
	svc := newAlertServiceForTest(&fakeTutorRepo{}, &fakeAlertStore{}, nil)

	_, _, err := svc.ListAlerts(context.Background(), models.AlertFilter{Severities: []models.AlertSeverity{"urgent"}})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	alerts, pagination, err := svc.ListAlerts(context.Background(), models.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, defaultAlertListLimit, pagination.PageSize)
}
