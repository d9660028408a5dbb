package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/repository"
	"github.com/noah-isme/tutor-insights-api/internal/service"
	"github.com/noah-isme/tutor-insights-api/pkg/cache"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	"github.com/noah-isme/tutor-insights-api/pkg/database"
	"github.com/noah-isme/tutor-insights-api/pkg/export"
	"github.com/noah-isme/tutor-insights-api/pkg/jobs"
	"github.com/noah-isme/tutor-insights-api/pkg/mailer"
	"github.com/noah-isme/tutor-insights-api/pkg/narrator"
	"github.com/noah-isme/tutor-insights-api/pkg/notifier"
	"github.com/noah-isme/tutor-insights-api/pkg/storage"
)

const (
	storageDriverLocal = "local"
	storageDriverMinIO = "minio"

	refreshTokenExpiry    = 7 * 24 * time.Hour
	storageConnectTimeout = 10 * time.Second
)

// Container holds the connections and services shared by the API gateway and
// the scheduler.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Metrics *service.MetricsService

	Operators *repository.OperatorRepository

	Auth          *service.AuthService
	Trends        *service.TrendService
	Risk          *service.RiskService
	Cohorts       *service.CohortService
	Alerts        *service.AlertService
	Targeting     *service.TargetingService
	Interventions *service.InterventionService
	Delivery      *service.DeliveryService
	Insights      *service.InsightService
	Reports       *service.ReportService
	Jobs          *service.ScheduledJobs
	Charts        *export.ChartExporter

	queues []*jobs.Queue
}

// New opens the database and cache and builds every service. Redis is
// optional: when it cannot be reached analytics run uncached.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: logger, DB: db, Metrics: service.NewMetricsService()}

	var cacheRepo service.CacheRepository
	if cfg.Analytics.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
		} else {
			c.Redis = client
			cacheRepo = repository.NewCacheRepository(client, "", logger)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, c.Metrics, cfg.Analytics.CacheTTL, logger, cacheRepo != nil)

	if err := c.buildServices(cacheSvc); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) buildServices(cacheSvc *service.CacheService) error {
	cfg, logger := c.Config, c.Logger
	validate := validator.New()

	tutors := repository.NewTutorRepository(c.DB)
	sessions := repository.NewSessionRepository(c.DB)
	alertRepo := repository.NewAlertRepository(c.DB)
	interventionRepo := repository.NewInterventionRepository(c.DB)
	insightRepo := repository.NewInsightRepository(c.DB)
	reportRepo := repository.NewReportRepository(c.DB)
	c.Operators = repository.NewOperatorRepository(c.DB)

	c.Auth = service.NewAuthService(c.Operators, validate, logger, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: refreshTokenExpiry,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      true,
	})

	c.Trends = service.NewTrendService(sessions, tutors, cacheSvc, c.Metrics, cfg.Thresholds, validate, logger)
	c.Risk = service.NewRiskService(sessions, tutors, cfg.Thresholds, c.Metrics, logger)
	c.Cohorts = service.NewCohortService(tutors, cacheSvc, c.Metrics, validate, logger)
	c.Alerts = service.NewAlertService(tutors, alertRepo, c.alertNotifier(), cfg.Thresholds, c.Metrics, logger)
	c.Targeting = service.NewTargetingService(tutors, cfg.Thresholds, validate, logger)
	c.Interventions = service.NewInterventionService(tutors, interventionRepo, alertRepo, insightRepo, c.Targeting, service.NewTemplateCatalog(), cfg.Thresholds,
		service.InterventionConfig{AppBaseURL: cfg.Delivery.AppBaseURL, BatchSize: cfg.Delivery.BatchSize}, validate, logger)
	c.Delivery = service.NewDeliveryService(interventionRepo, c.mailer(), service.DeliveryConfig{MinAge: cfg.Delivery.MinAge, BatchSize: cfg.Delivery.BatchSize}, c.Metrics, logger)
	c.Insights = service.NewInsightService(insightRepo, tutors, c.narrator(), cfg.Thresholds.SignificanceAlpha, validate, logger)
	c.Jobs = service.NewScheduledJobs(c.Alerts, c.Delivery, c.Insights, c.Risk, c.Metrics, logger)
	c.Charts = export.NewChartExporter()

	store, err := c.exportStorage()
	if err != nil {
		return err
	}
	exporter := service.NewExportService(service.ExportSources{Alerts: c.Alerts, Risk: c.Risk, Segments: c.Targeting}, store,
		storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
		logger, export.NewCSVExporter(), export.NewPDFExporter())

	worker := service.NewReportWorker(reportRepo, exporter, cfg.Reports.WorkerRetries, logger)
	reportQueue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logger,
	})
	c.Reports = service.NewReportService(reportRepo, reportQueue, exporter, validate, logger, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})

	// The campaign handler never returns an error, so the queue's retry
	// budget is never spent.
	campaignQueue := jobs.NewQueue("campaigns", c.Interventions.HandleCampaignJob, jobs.QueueConfig{Workers: 1, Logger: logger})
	c.Interventions.SetQueue(campaignQueue)

	c.queues = []*jobs.Queue{reportQueue, campaignQueue}
	return nil
}

func (c *Container) alertNotifier() service.AlertNotifier {
	cfg := c.Config.Alerts
	if !cfg.NotifyCritical || cfg.SlackToken == "" || cfg.SlackChannel == "" {
		return nil
	}
	n, err := notifier.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel, c.Config.Delivery.AppBaseURL, c.Logger)
	if err != nil {
		c.Logger.Warn("slack notifier disabled", zap.Error(err))
		return nil
	}
	return n
}

func (c *Container) mailer() service.Mailer {
	cfg := c.Config.Delivery
	if cfg.ResendAPIKey == "" {
		c.Logger.Info("RESEND_API_KEY not set, intervention email delivery disabled")
		return nil
	}
	m, err := mailer.NewResendMailer(mailer.Config{APIKey: cfg.ResendAPIKey, FromEmail: cfg.FromEmail, FromName: cfg.FromName}, c.Logger)
	if err != nil {
		c.Logger.Warn("resend mailer disabled", zap.Error(err))
		return nil
	}
	return m
}

func (c *Container) narrator() service.Narrator {
	cfg := c.Config.Narrator
	if cfg.AnthropicAPIKey == "" {
		return nil
	}
	n, err := narrator.NewAnthropicNarrator(cfg.AnthropicAPIKey, cfg.Model, c.Logger)
	if err != nil {
		c.Logger.Warn("insight narrator disabled", zap.Error(err))
		return nil
	}
	return n
}

func (c *Container) exportStorage() (storage.Backend, error) {
	cfg := c.Config
	switch cfg.Reports.StorageDriver {
	case "", storageDriverLocal:
		return storage.NewLocalStorage(cfg.Reports.StorageDir)
	case storageDriverMinIO:
		ctx, cancel := context.WithTimeout(context.Background(), storageConnectTimeout)
		defer cancel()
		return storage.NewMinIOStorage(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			Region:    cfg.MinIO.Region,
			UseSSL:    cfg.MinIO.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown reports storage driver %q", cfg.Reports.StorageDriver)
	}
}

// StartWorkers starts the background queues and the export cleanup loop and
// re-enqueues report jobs left queued by a previous process.
func (c *Container) StartWorkers(ctx context.Context) {
	for _, q := range c.queues {
		q.Start(ctx)
	}
	c.Reports.RecoverPendingJobs(ctx)
	c.Reports.StartCleanup(ctx)
}

// StopWorkers drains the queues.
func (c *Container) StopWorkers() {
	for _, q := range c.queues {
		q.Stop()
	}
}

// Close releases the database and cache connections.
func (c *Container) Close() error {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}
