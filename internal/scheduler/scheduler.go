package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/internal/service"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
)

const defaultJobTimeout = 10 * time.Minute

// JobRunner is implemented by service.ScheduledJobs.
type JobRunner interface {
	RunAlertGeneration(ctx context.Context, now time.Time) (*models.JobRun, error)
	RunDelivery(ctx context.Context, now time.Time) (*models.JobRun, error)
	RunInsightDiscovery(ctx context.Context, now time.Time) (*models.JobRun, error)
	RunHighRiskSweep(ctx context.Context, now time.Time) (*models.JobRun, error)
}

type runFunc func(ctx context.Context, now time.Time) (*models.JobRun, error)

// Scheduler runs the periodic jobs from standard five-field cron expressions.
// Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// New registers one cron entry per job. A job with an empty schedule is not
// registered.
func New(jobs JobRunner, cfg config.CronConfig, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{sugar: logger.Sugar()}
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		logger:  logger,
		timeout: defaultJobTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	entries := []struct {
		name     string
		schedule string
		run      runFunc
	}{
		{service.JobAlertGeneration, cfg.AlertsSchedule, jobs.RunAlertGeneration},
		{service.JobDelivery, cfg.DeliveriesSchedule, jobs.RunDelivery},
		{service.JobInsightDiscovery, cfg.InsightsSchedule, jobs.RunInsightDiscovery},
		{service.JobHighRiskSweep, cfg.HighRiskSchedule, jobs.RunHighRiskSweep},
	}
	for _, e := range entries {
		if e.schedule == "" {
			logger.Info("scheduled job disabled", zap.String("job", e.name))
			continue
		}
		name, run := e.name, e.run
		if _, err := s.cron.AddFunc(e.schedule, func() { s.execute(name, run) }); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", name, e.schedule, err)
		}
		logger.Info("scheduled job registered", zap.String("job", name), zap.String("schedule", e.schedule))
	}
	return s, nil
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels running jobs once ctx expires and waits for
// them to return.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.cancel()
		<-done.Done()
	}
	s.cancel()
}

func (s *Scheduler) execute(name string, run runFunc) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	if _, err := run(ctx, s.now()); err != nil {
		s.logger.Error("scheduled run failed", zap.String("job", name), zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
