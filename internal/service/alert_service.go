package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

const (
	defaultAlertWindowDays = 30
	maxAlertWindowDays     = 365
	defaultAlertListLimit  = 20
)

// AlertService evaluates tutors against the rule catalog and manages the
// alert lifecycle.
type AlertService struct {
	tutors     TutorRepository
	alerts     AlertRepository
	notifier   AlertNotifier
	rules      []AlertRule
	thresholds config.Thresholds
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewAlertService constructs an AlertService. notifier may be nil.
func NewAlertService(tutors TutorRepository, alerts AlertRepository, notifier AlertNotifier, thresholds config.Thresholds, metrics *MetricsService, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		tutors:     tutors,
		alerts:     alerts,
		notifier:   notifier,
		rules:      DefaultAlertRules(),
		thresholds: thresholds,
		metrics:    metrics,
		logger:     logger,
	}
}

// Rules exposes the active rule catalog.
func (s *AlertService) Rules() []AlertRule {
	return s.rules
}

// GenerateAlerts evaluates every active tutor and persists new breaches.
// A breach whose (tutor, metric, category) already has an unresolved alert,
// or whose last alert was resolved within the rule cooldown, is skipped.
func (s *AlertService) GenerateAlerts(ctx context.Context, now time.Time) (*models.AlertGenerationResult, error) {
	aggregates, err := s.tutors.ListAggregates(ctx, models.TutorFilter{ActiveOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor aggregates")
	}

	result := &models.AlertGenerationResult{
		RunID:  uuid.NewString(),
		Errors: []models.BatchError{},
		Alerts: []models.Alert{},
	}
	logger := s.logger.With(zap.String("run_id", result.RunID))

	for _, agg := range aggregates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Evaluated++
		created, skipped, err := s.evaluateTutor(ctx, agg, now)
		result.Generated += len(created)
		result.Skipped += skipped
		result.Alerts = append(result.Alerts, created...)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, models.BatchError{ItemID: agg.TutorID, Message: err.Error()})
			logger.Warn("alert evaluation failed", zap.String("tutor_id", agg.TutorID), zap.Error(err))
		}
	}

	s.notifyCritical(ctx, result.Alerts)
	s.metrics.RecordAlertRun(*result)
	logger.Info("alert generation finished",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *AlertService) evaluateTutor(ctx context.Context, agg models.TutorAggregate, now time.Time) ([]models.Alert, int, error) {
	var (
		created []models.Alert
		skipped int
	)
	for _, rule := range s.rules {
		threshold := rule.Threshold(s.thresholds)
		value, fired := rule.Evaluate(agg, threshold, s.thresholds)
		if !fired {
			continue
		}
		alert := rule.Build(agg, value, threshold, now)
		inserted, err := s.insertDeduplicated(ctx, &alert, rule.Cooldown, now)
		if err != nil {
			return created, skipped, fmt.Errorf("rule %s: %w", rule.Type, err)
		}
		if !inserted {
			skipped++
			s.logger.Debug("alert skipped",
				zap.String("tutor_id", agg.TutorID),
				zap.String("rule", rule.Type),
				zap.String("metric", rule.Metric))
			continue
		}
		created = append(created, alert)
	}
	return created, skipped, nil
}

// insertDeduplicated writes alert unless an equivalent one is open or cooling
// down. The lookup is a fast path; the insert itself is conflict-safe.
func (s *AlertService) insertDeduplicated(ctx context.Context, alert *models.Alert, cooldown time.Duration, now time.Time) (bool, error) {
	latest, err := s.alerts.FindLatest(ctx, alert.Key())
	if err != nil {
		return false, err
	}
	if latest != nil {
		if !latest.IsResolved {
			return false, nil
		}
		if latest.ResolvedAt != nil && now.Sub(*latest.ResolvedAt) < cooldown {
			return false, nil
		}
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	return s.alerts.InsertIfAbsent(ctx, alert)
}

func (s *AlertService) notifyCritical(ctx context.Context, alerts []models.Alert) {
	if s.notifier == nil {
		return
	}
	for _, a := range alerts {
		if a.Severity != models.SeverityCritical {
			continue
		}
		if err := s.notifier.NotifyCritical(ctx, a); err != nil {
			s.logger.Warn("critical alert notification failed", zap.String("alert_id", a.ID), zap.Error(err))
		}
	}
}

// RaiseAlert persists an externally computed breach, such as a high-risk
// session, through the same dedup path as rule alerts.
func (s *AlertService) RaiseAlert(ctx context.Context, alert models.Alert, cooldown time.Duration, now time.Time) (bool, error) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	inserted, err := s.insertDeduplicated(ctx, &alert, cooldown, now)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist alert")
	}
	if inserted && alert.Severity == models.SeverityCritical {
		s.notifyCritical(ctx, []models.Alert{alert})
	}
	return inserted, nil
}

// Get returns an alert by id.
func (s *AlertService) Get(ctx context.Context, id string) (*models.Alert, error) {
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "alert not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load alert")
	}
	return alert, nil
}

// AcknowledgeAlert marks an open alert as seen by actor. Acknowledging twice
// keeps the first actor; acknowledging a resolved alert is rejected.
func (s *AlertService) AcknowledgeAlert(ctx context.Context, id, actor string, now time.Time) (*models.Alert, error) {
	alert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.IsResolved {
		return nil, appErrors.Clone(appErrors.ErrValidation, "alert is already resolved")
	}
	if alert.IsAcknowledged {
		return alert, nil
	}
	if err := s.alerts.Acknowledge(ctx, id, actor, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acknowledge alert")
	}
	return s.Get(ctx, id)
}

// ResolveAlert closes an alert. Resolving an already resolved alert returns it
// unchanged.
func (s *AlertService) ResolveAlert(ctx context.Context, id string, now time.Time) (*models.Alert, error) {
	alert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.IsResolved {
		return alert, nil
	}
	if err := s.alerts.Resolve(ctx, id, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve alert")
	}
	return s.Get(ctx, id)
}

// ListAlerts returns filtered alerts plus pagination data.
func (s *AlertService) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultAlertListLimit
	}
	for _, sev := range filter.Severities {
		if !sev.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown severity %q", sev))
		}
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", filter.Category))
	}
	alerts, total, err := s.alerts.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	return alerts, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// TutorAlerts lists one tutor's alerts with a combined priority score over
// the unresolved ones.
func (s *AlertService) TutorAlerts(ctx context.Context, tutorID string, includeResolved bool, limit int) (*models.TutorAlerts, error) {
	if limit <= 0 {
		limit = defaultAlertListLimit
	}
	filter := models.AlertFilter{TutorID: tutorID, Page: 1, PageSize: limit}
	if !includeResolved {
		open := false
		filter.Resolved = &open
	}
	alerts, _, err := s.alerts.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutor alerts")
	}
	unresolved := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if !a.IsResolved {
			unresolved = append(unresolved, a)
		}
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return &models.TutorAlerts{TutorID: tutorID, Alerts: alerts, PriorityScore: TutorPriorityScore(unresolved)}, nil
}

// HighPriorityAlerts returns open, unacknowledged critical and high alerts.
func (s *AlertService) HighPriorityAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = defaultAlertListLimit
	}
	no := false
	alerts, _, err := s.alerts.List(ctx, models.AlertFilter{
		Severities:   []models.AlertSeverity{models.SeverityCritical, models.SeverityHigh},
		Acknowledged: &no,
		Resolved:     &no,
		Page:         1,
		PageSize:     limit,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list high priority alerts")
	}
	return alerts, nil
}

// AlertStatistics aggregates alerts created in the trailing window.
func (s *AlertService) AlertStatistics(ctx context.Context, windowDays int, now time.Time) (*models.AlertStatistics, error) {
	if windowDays == 0 {
		windowDays = defaultAlertWindowDays
	}
	if windowDays < 1 || windowDays > maxAlertWindowDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("windowDays must be between 1 and %d", maxAlertWindowDays))
	}
	since := now.AddDate(0, 0, -windowDays)
	alerts, err := s.alerts.ListSince(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load alerts")
	}

	stats := &models.AlertStatistics{
		WindowDays: windowDays,
		Since:      since,
		BySeverity: map[models.AlertSeverity]int{},
		ByCategory: map[models.AlertCategory]int{},
	}
	tutors := map[string]struct{}{}
	var magnitude float64
	for _, a := range alerts {
		stats.Total++
		stats.BySeverity[a.Severity]++
		stats.ByCategory[a.Category]++
		tutors[a.TutorID] = struct{}{}
		magnitude += BreachMagnitude(a.MetricValue, a.Threshold)

		if a.State() == models.AlertOpen {
			stats.Open++
		}
		if a.IsResolved {
			stats.Resolved++
		}
		if a.IsAcknowledged {
			stats.Acknowledged++
		} else {
			stats.Unacknowledged++
		}
	}
	stats.AffectedTutors = len(tutors)
	if stats.Total > 0 {
		stats.AvgBreachMagnitude = magnitude / float64(stats.Total)
	}
	return stats, nil
}
