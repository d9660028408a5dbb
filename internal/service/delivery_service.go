package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

const (
	defaultDeliveryMinAge    = 5 * time.Minute
	defaultDeliveryBatchSize = 100
)

var errMissingEmail = errors.New("tutor has no email address")

// DeliveryConfig tunes the pending-delivery sweep.
type DeliveryConfig struct {
	MinAge    time.Duration
	BatchSize int
}

// DeliveryService sends pending email interventions through the Mailer and
// owns every status transition after creation.
type DeliveryService struct {
	interventions InterventionRepository
	mailer        Mailer
	cfg           DeliveryConfig
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewDeliveryService constructs a DeliveryService.
func NewDeliveryService(interventions InterventionRepository, mailer Mailer, cfg DeliveryConfig, metrics *MetricsService, logger *zap.Logger) *DeliveryService {
	if cfg.MinAge <= 0 {
		cfg.MinAge = defaultDeliveryMinAge
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultDeliveryBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryService{interventions: interventions, mailer: mailer, cfg: cfg, metrics: metrics, logger: logger}
}

// SendPending delivers one batch of pending email interventions created at
// least MinAge before now. A failed send marks the row failed; the next run
// does not retry it.
func (s *DeliveryService) SendPending(ctx context.Context, now time.Time) (*models.BatchSummary, error) {
	if s.mailer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "mailer is not configured")
	}
	pending, err := s.interventions.ListPendingDeliveries(ctx, now.Add(-s.cfg.MinAge), s.cfg.BatchSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending deliveries")
	}

	summary := &models.BatchSummary{Errors: []models.BatchError{}}
	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if item.Channel != models.ChannelEmail {
			summary.Skipped++
			continue
		}
		if !item.TutorEmail.Valid || item.TutorEmail.String == "" {
			// Left pending, the row would head every later batch.
			s.fail(ctx, summary, item.ID, errMissingEmail, now)
			continue
		}

		messageID, sendErr := s.mailer.Send(ctx, OutgoingEmail{
			To:      item.TutorEmail.String,
			ToName:  item.TutorName,
			Subject: item.Subject,
			Body:    item.Content,
			Tags: map[string]string{
				"intervention_id":   item.ID,
				"intervention_type": string(item.InterventionType),
			},
		})
		if sendErr != nil {
			s.fail(ctx, summary, item.ID, sendErr, now)
			continue
		}
		if err := s.interventions.MarkSent(ctx, item.ID, messageID, now); err != nil {
			// The email went out; record the bookkeeping failure without
			// counting the delivery as failed.
			s.logger.Error("failed to mark intervention sent", zap.String("intervention_id", item.ID), zap.Error(err))
			summary.Errors = append(summary.Errors, models.BatchError{ItemID: item.ID, Message: err.Error()})
		}
		summary.Succeeded++
		s.metrics.RecordDelivery(true)
	}

	s.logger.Info("delivery sweep finished",
		zap.Int("picked", len(pending)),
		zap.Int("sent", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (s *DeliveryService) fail(ctx context.Context, summary *models.BatchSummary, id string, cause error, now time.Time) {
	summary.Fail(id, cause)
	s.metrics.RecordDelivery(false)
	if err := s.interventions.MarkFailed(ctx, id, cause.Error(), now); err != nil {
		s.logger.Error("failed to mark intervention failed", zap.String("intervention_id", id), zap.Error(err))
	}
}
