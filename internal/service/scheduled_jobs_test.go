package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
)

func TestRunHighRiskSweepRaisesNoShowAlertsOnce(t *testing.T) {
	risk, _ := newRiskFixture()
	store := &fakeAlertStore{}
	notifier := &fakeNotifier{}
	alerts := NewAlertService(&fakeTutorRepo{}, store, notifier, config.DefaultThresholds(), nil, nil)
	jobs := NewScheduledJobs(alerts, nil, nil, risk, NewMetricsService(), nil)

	run, err := jobs.RunHighRiskSweep(context.Background(), riskNow)
	require.NoError(t, err)
	assert.Equal(t, JobHighRiskSweep, run.Job)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, 1, run.Summary.Succeeded)
	assert.Zero(t, run.Summary.Skipped)

	require.Len(t, store.rows, 1)
	alert := store.rows[0]
	assert.Equal(t, "T1", alert.TutorID)
	assert.Equal(t, noShowRiskAlertType, alert.AlertType)
	assert.Equal(t, models.CategoryReliability, alert.Category)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, 0.6, alert.Threshold)
	assert.Contains(t, alert.Message, "s-risky")
	assert.Empty(t, notifier.notified)

	run, err = jobs.RunHighRiskSweep(context.Background(), riskNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, run.Summary.Succeeded)
	assert.Equal(t, 1, run.Summary.Skipped)
	assert.Len(t, store.rows, 1)
}

func TestRunAlertGenerationReportsFailure(t *testing.T) {
	tutors := &fakeTutorRepo{listErr: errors.New("db down")}
	alerts := NewAlertService(tutors, &fakeAlertStore{}, nil, config.DefaultThresholds(), nil, nil)
	jobs := NewScheduledJobs(alerts, nil, nil, nil, nil, nil)

	run, err := jobs.RunAlertGeneration(context.Background(), riskNow)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, JobAlertGeneration, run.Job)
	assert.NotNil(t, run.Summary.Errors)
}

func TestRunDeliveryAndInsightDiscovery(t *testing.T) {
	repo := newFakeInterventionRepo()
	repo.pending = []models.PendingDelivery{
		pendingDelivery("a", "a@example.com", models.ChannelEmail, riskNow.Add(-time.Hour)),
	}
	delivery := NewDeliveryService(repo, &fakeMailer{}, DeliveryConfig{}, nil, nil)
	insights := NewInsightService(&fakeInsightRepo{}, &fakeTutorRepo{aggregates: cohortPopulation()}, nil, 0.05, nil, nil)
	jobs := NewScheduledJobs(nil, delivery, insights, nil, nil, nil)

	run, err := jobs.RunDelivery(context.Background(), riskNow)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Summary.Succeeded)

	run, err = jobs.RunInsightDiscovery(context.Background(), riskNow)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Summary.Succeeded)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}
