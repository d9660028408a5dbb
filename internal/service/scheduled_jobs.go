package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

// Scheduled job names, used for metrics labels and cron entries.
const (
	JobAlertGeneration  = "alert_generation"
	JobDelivery         = "delivery"
	JobInsightDiscovery = "insight_discovery"
	JobHighRiskSweep    = "high_risk_sweep"
)

const (
	noShowRiskAlertType = "noshow_risk"
	noShowRiskMetric    = "noshow_risk"
	noShowRiskThreshold = 0.6
	noShowRiskCooldown  = 24 * time.Hour
	noShowRiskPriority  = 90
	highRiskSweepDays   = 3
)

// ScheduledJobs exposes each periodic job as a plain function of now. The
// caller owns the timer: cmd/scheduler runs them from cron entries and the
// /cron endpoints run them on demand.
type ScheduledJobs struct {
	alerts   *AlertService
	delivery *DeliveryService
	insights *InsightService
	risk     *RiskService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewScheduledJobs wires the job functions to their services.
func NewScheduledJobs(alerts *AlertService, delivery *DeliveryService, insights *InsightService, risk *RiskService, metrics *MetricsService, logger *zap.Logger) *ScheduledJobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduledJobs{alerts: alerts, delivery: delivery, insights: insights, risk: risk, metrics: metrics, logger: logger}
}

// RunAlertGeneration evaluates every active tutor against the rule catalog.
func (j *ScheduledJobs) RunAlertGeneration(ctx context.Context, now time.Time) (*models.JobRun, error) {
	return j.run(ctx, JobAlertGeneration, now, func(ctx context.Context) (models.BatchSummary, error) {
		result, err := j.alerts.GenerateAlerts(ctx, now)
		if err != nil {
			return models.BatchSummary{}, err
		}
		return result.Summary(), nil
	})
}

// RunDelivery sends one batch of pending interventions.
func (j *ScheduledJobs) RunDelivery(ctx context.Context, now time.Time) (*models.JobRun, error) {
	return j.run(ctx, JobDelivery, now, func(ctx context.Context) (models.BatchSummary, error) {
		summary, err := j.delivery.SendPending(ctx, now)
		if err != nil {
			return models.BatchSummary{}, err
		}
		return *summary, nil
	})
}

// RunInsightDiscovery stores newly significant first-session findings.
func (j *ScheduledJobs) RunInsightDiscovery(ctx context.Context, now time.Time) (*models.JobRun, error) {
	return j.run(ctx, JobInsightDiscovery, now, func(ctx context.Context) (models.BatchSummary, error) {
		created, err := j.insights.DiscoverFirstSessionInsights(ctx, now)
		if err != nil {
			return models.BatchSummary{}, err
		}
		return models.BatchSummary{Succeeded: len(created), Errors: []models.BatchError{}}, nil
	})
}

// RunHighRiskSweep raises a reliability alert for every tutor with a
// high-risk session in the next three days. Tutors alerted within the last
// day, or with the alert still open, are skipped.
func (j *ScheduledJobs) RunHighRiskSweep(ctx context.Context, now time.Time) (*models.JobRun, error) {
	return j.run(ctx, JobHighRiskSweep, now, func(ctx context.Context) (models.BatchSummary, error) {
		sessions, err := j.risk.HighRiskSessions(ctx, now, highRiskSweepDays, models.RiskHigh)
		if err != nil {
			return models.BatchSummary{}, err
		}
		summary := models.BatchSummary{Errors: []models.BatchError{}}
		for _, hr := range sessions {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			inserted, err := j.alerts.RaiseAlert(ctx, noShowAlert(hr), noShowRiskCooldown, now)
			switch {
			case err != nil:
				summary.Fail(hr.Session.SessionID, err)
			case inserted:
				summary.Succeeded++
			default:
				summary.Skipped++
			}
		}
		return summary, nil
	})
}

func noShowAlert(hr models.HighRiskSession) models.Alert {
	a := hr.Assessment
	return models.Alert{
		TutorID:     hr.Session.TutorID,
		TutorName:   hr.Session.TutorName,
		AlertType:   noShowRiskAlertType,
		Severity:    models.SeverityHigh,
		Category:    models.CategoryReliability,
		Title:       "High No-Show Risk Detected",
		Message:     fmt.Sprintf("Session %s on %s has a %.0f%% no-show risk. %s", hr.Session.SessionID, hr.Session.ScheduledStart.UTC().Format("2006-01-02 15:04 MST"), a.RiskScore*100, a.MitigationText),
		Metric:      noShowRiskMetric,
		MetricValue: a.RiskScore,
		Threshold:   noShowRiskThreshold,
		Priority:    noShowRiskPriority,
	}
}

func (j *ScheduledJobs) run(ctx context.Context, name string, now time.Time, fn func(ctx context.Context) (models.BatchSummary, error)) (*models.JobRun, error) {
	run := &models.JobRun{RunID: ulid.Make().String(), Job: name, StartedAt: now}
	logger := j.logger.With(zap.String("job", name), zap.String("run_id", run.RunID))
	started := time.Now()

	summary, err := fn(ctx)
	elapsed := time.Since(started)
	j.metrics.ObserveJob(name, elapsed)

	run.FinishedAt = now.Add(elapsed)
	run.DurationMs = elapsed.Milliseconds()
	run.Summary = summary
	if run.Summary.Errors == nil {
		run.Summary.Errors = []models.BatchError{}
	}
	if err != nil {
		logger.Error("scheduled job failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return run, err
	}
	logger.Info("scheduled job finished",
		zap.Duration("elapsed", elapsed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return run, nil
}
