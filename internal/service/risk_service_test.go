package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

// riskNow is a Monday morning.
var riskNow = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

// unreliableHistory is five weeks of four sessions each whose completion rate
// falls from 75% to zero: 8 no-shows and 6 reschedules out of 20.
func unreliableHistory(tutorID string) []models.Session {
	weeks := [][3]int{ // completed, rescheduled, no-show
		{3, 1, 0},
		{2, 1, 1},
		{1, 1, 2},
		{0, 2, 2},
		{0, 1, 3},
	}
	var out []models.Session
	for w, counts := range weeks {
		day := riskNow.AddDate(0, 0, -7*(len(weeks)-w))
		for kind, n := range counts {
			for i := 0; i < n; i++ {
				out = append(out, models.Session{
					TutorID:        tutorID,
					ScheduledStart: day.Add(time.Duration(len(out)%4) * time.Hour),
					Completed:      kind == 0,
					TutorShowed:    kind != 2,
				})
			}
		}
	}
	return out
}

func reliableHistory(tutorID string) []models.Session {
	var out []models.Session
	for i := 0; i < 10; i++ {
		out = append(out, models.Session{
			TutorID:        tutorID,
			ScheduledStart: riskNow.AddDate(0, 0, -3*(i+1)),
			Completed:      true,
			TutorShowed:    true,
		})
	}
	return out
}

func newRiskFixture() (*RiskService, *fakeSessionRepo) {
	sessions := &fakeSessionRepo{
		sessions: append(unreliableHistory("T1"), reliableHistory("T2")...),
		upcoming: []models.UpcomingSession{
			{SessionID: "s-reliable", TutorID: "T2", ScheduledStart: riskNow.Add(40 * time.Hour)},
			{SessionID: "s-risky", TutorID: "T1", ScheduledStart: riskNow.Add(2 * time.Hour)},
			{SessionID: "s-later", TutorID: "T1", ScheduledStart: riskNow.AddDate(0, 0, 10)},
		},
	}
	tutors := &fakeTutorRepo{aggregates: []models.TutorAggregate{
		{TutorID: "T1", TutorName: "Risky", IsActive: true},
		{TutorID: "T2", TutorName: "Steady", IsActive: true},
	}}
	return NewRiskService(sessions, tutors, config.DefaultThresholds(), nil, zap.NewNop()), sessions
}

func TestHighRiskSessionsOrdersByLevel(t *testing.T) {
	svc, sessions := newRiskFixture()

	got, err := svc.HighRiskSessions(context.Background(), riskNow, 0, "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "s-risky", got[0].Session.SessionID)
	assert.Equal(t, models.RiskHigh, got[0].Assessment.RiskLevel)
	assert.Equal(t, "s-risky", got[0].Assessment.SubjectID)
	assert.InDelta(t, 2.0, got[0].HoursUntil, 1e-9)
	assert.Equal(t, models.RiskLow, got[1].Assessment.RiskLevel)
	assert.ElementsMatch(t, []string{"T2", "T1"}, sessions.lastFilter.TutorIDs)

	onlyHigh, err := svc.HighRiskSessions(context.Background(), riskNow, 7, models.RiskMedium)
	require.NoError(t, err)
	require.Len(t, onlyHigh, 1)
	assert.Equal(t, "T1", onlyHigh[0].Session.TutorID)

	wide, err := svc.HighRiskSessions(context.Background(), riskNow, 14, "")
	require.NoError(t, err)
	assert.Len(t, wide, 3)
}

func TestHighRiskSessionsValidatesInput(t *testing.T) {
	svc, _ := newRiskFixture()
	for _, days := range []int{-1, 91} {
		_, err := svc.HighRiskSessions(context.Background(), riskNow, days, "")
		assert.True(t, appErrors.Is(err, appErrors.ErrValidation), "days %d", days)
	}
	_, err := svc.HighRiskSessions(context.Background(), riskNow, 7, "extreme")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestHighRiskSessionsEmptyWindow(t *testing.T) {
	svc := NewRiskService(&fakeSessionRepo{}, &fakeTutorRepo{}, config.DefaultThresholds(), nil, nil)
	got, err := svc.HighRiskSessions(context.Background(), riskNow, 7, "")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSessionRisk(t *testing.T) {
	svc, _ := newRiskFixture()

	got, err := svc.SessionRisk(context.Background(), "s-risky", riskNow)
	require.NoError(t, err)
	assert.Equal(t, models.RiskHigh, got.Assessment.RiskLevel)
	assert.NotEmpty(t, got.Assessment.MitigationText)

	_, err = svc.SessionRisk(context.Background(), "nope", riskNow)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestReliabilityAnalysisService(t *testing.T) {
	svc, _ := newRiskFixture()

	got, err := svc.ReliabilityAnalysis(context.Background(), riskNow, 0)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultThresholds().ReliabilityThreshold, got.Threshold)
	assert.Equal(t, 2, got.Overall.TotalTutorsAnalyzed)
	require.NotEmpty(t, got.HighRiskTutors)
	assert.Equal(t, "T1", got.HighRiskTutors[0].TutorID)
	assert.Equal(t, "Risky", got.HighRiskTutors[0].TutorName)

	_, err = svc.ReliabilityAnalysis(context.Background(), riskNow, 2)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	empty := NewRiskService(&fakeSessionRepo{}, &fakeTutorRepo{}, config.DefaultThresholds(), nil, nil)
	_, err = empty.ReliabilityAnalysis(context.Background(), riskNow, 0)
	assert.True(t, appErrors.Is(err, appErrors.ErrInsufficientData))
}
