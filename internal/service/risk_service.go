package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/analytics"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

const (
	defaultDaysAhead  = 7
	maxDaysAhead      = 90
	riskHistoryWindow = 90 * 24 * time.Hour
)

// RiskService scores upcoming sessions and tutor reliability.
type RiskService struct {
	sessions   SessionRepository
	tutors     TutorRepository
	scorer     analytics.RiskScorer
	thresholds config.Thresholds
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewRiskService constructs a RiskService.
func NewRiskService(sessions SessionRepository, tutors TutorRepository, thresholds config.Thresholds, metrics *MetricsService, logger *zap.Logger) *RiskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskService{
		sessions:   sessions,
		tutors:     tutors,
		scorer:     analytics.NewRiskScorer(thresholds),
		thresholds: thresholds,
		metrics:    metrics,
		logger:     logger,
	}
}

// HighRiskSessions scores every session starting within daysAhead and returns
// those at or above minLevel, riskiest and soonest first.
func (s *RiskService) HighRiskSessions(ctx context.Context, now time.Time, daysAhead int, minLevel models.RiskLevel) ([]models.HighRiskSession, error) {
	if daysAhead == 0 {
		daysAhead = defaultDaysAhead
	}
	if daysAhead < 1 || daysAhead > maxDaysAhead {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("daysAhead must be between 1 and %d", maxDaysAhead))
	}
	if minLevel == "" {
		minLevel = models.RiskLow
	}
	if minLevel.Rank() == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown risk level %q", minLevel))
	}

	start := time.Now()
	upcoming, err := s.sessions.Upcoming(ctx, now, now.AddDate(0, 0, daysAhead))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upcoming sessions")
	}
	s.metrics.ObserveDBQuery("risk_upcoming_sessions", time.Since(start))

	result := make([]models.HighRiskSession, 0, len(upcoming))
	if len(upcoming) == 0 {
		return result, nil
	}

	ids := uniqueTutorIDs(upcoming)
	histories, aggregates, err := s.loadHistory(ctx, ids, now)
	if err != nil {
		return nil, err
	}

	for i := range upcoming {
		u := upcoming[i]
		var agg *models.TutorAggregate
		if a, ok := aggregates[u.TutorID]; ok {
			agg = &a
		}
		history := analytics.HistoryFromSessions(u.TutorID, histories[u.TutorID], agg)
		assessment := s.scorer.NoShowRisk(history, &u, now)
		assessment.SubjectID = u.SessionID
		if assessment.RiskLevel.Rank() < minLevel.Rank() {
			continue
		}
		result = append(result, models.HighRiskSession{
			Session:    u,
			HoursUntil: u.ScheduledStart.Sub(now).Hours(),
			Assessment: assessment,
		})
	}
	analytics.SortHighRisk(result)
	return result, nil
}

// SessionRisk scores one upcoming session.
func (s *RiskService) SessionRisk(ctx context.Context, sessionID string, now time.Time) (*models.HighRiskSession, error) {
	u, err := s.sessions.GetUpcoming(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	histories, aggregates, err := s.loadHistory(ctx, []string{u.TutorID}, now)
	if err != nil {
		return nil, err
	}
	var agg *models.TutorAggregate
	if a, ok := aggregates[u.TutorID]; ok {
		agg = &a
	}
	history := analytics.HistoryFromSessions(u.TutorID, histories[u.TutorID], agg)
	assessment := s.scorer.NoShowRisk(history, u, now)
	assessment.SubjectID = u.SessionID
	return &models.HighRiskSession{Session: *u, HoursUntil: u.ScheduledStart.Sub(now).Hours(), Assessment: assessment}, nil
}

// ReliabilityAnalysis reports reschedule patterns over the history window.
// A zero threshold uses the configured default.
func (s *RiskService) ReliabilityAnalysis(ctx context.Context, now time.Time, threshold float64) (*models.ReliabilityAnalysis, error) {
	if threshold == 0 {
		threshold = s.thresholds.ReliabilityThreshold
	}
	if threshold <= 0 || threshold > 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "threshold must be within (0, 1]")
	}

	from := now.Add(-riskHistoryWindow)
	start := time.Now()
	sessions, err := s.sessions.List(ctx, models.SessionFilter{From: &from, To: &now})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	s.metrics.ObserveDBQuery("risk_reliability_sessions", time.Since(start))
	if len(sessions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInsufficientData, "no sessions in the analysis window")
	}

	aggs, err := s.tutors.ListAggregates(ctx, models.TutorFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor aggregates")
	}
	byID := make(map[string]models.TutorAggregate, len(aggs))
	for _, a := range aggs {
		byID[a.TutorID] = a
	}

	analysis := s.scorer.ReliabilityAnalysis(analytics.ReliabilityInput{
		Sessions:   sessions,
		Aggregates: byID,
		Threshold:  threshold,
		Now:        now,
	})
	return &analysis, nil
}

func (s *RiskService) loadHistory(ctx context.Context, tutorIDs []string, now time.Time) (map[string][]models.Session, map[string]models.TutorAggregate, error) {
	from := now.Add(-riskHistoryWindow)
	start := time.Now()
	past, err := s.sessions.List(ctx, models.SessionFilter{TutorIDs: tutorIDs, From: &from, To: &now})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session history")
	}
	s.metrics.ObserveDBQuery("risk_session_history", time.Since(start))

	histories := make(map[string][]models.Session, len(tutorIDs))
	for _, sess := range past {
		histories[sess.TutorID] = append(histories[sess.TutorID], sess)
	}

	aggs, err := s.tutors.ListAggregates(ctx, models.TutorFilter{TutorIDs: tutorIDs})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor aggregates")
	}
	byID := make(map[string]models.TutorAggregate, len(aggs))
	for _, a := range aggs {
		byID[a.TutorID] = a
	}
	return histories, byID, nil
}

func uniqueTutorIDs(sessions []models.UpcomingSession) []string {
	seen := make(map[string]struct{}, len(sessions))
	ids := make([]string, 0, len(sessions))
	for _, u := range sessions {
		if _, ok := seen[u.TutorID]; ok {
			continue
		}
		seen[u.TutorID] = struct{}{}
		ids = append(ids, u.TutorID)
	}
	return ids
}
