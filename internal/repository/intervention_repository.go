package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

const insertInterventionQuery = `INSERT INTO interventions (id, tutor_id, alert_id, campaign_id, template_id, intervention_type, channel, subject, content, status, created_at)
VALUES (:id, :tutor_id, :alert_id, :campaign_id, :template_id, :intervention_type, :channel, :subject, :content, :status, :created_at)`

// InterventionRepository persists interventions and the campaigns that group
// them.
type InterventionRepository struct {
	db *sqlx.DB
}

// NewInterventionRepository constructs the repository.
func NewInterventionRepository(db *sqlx.DB) *InterventionRepository {
	return &InterventionRepository{db: db}
}

func prepareIntervention(item *models.Intervention, now time.Time) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.Status == "" {
		item.Status = models.InterventionPending
	}
	if item.Channel == "" {
		item.Channel = models.ChannelEmail
	}
}

// Create inserts one intervention.
func (r *InterventionRepository) Create(ctx context.Context, intervention *models.Intervention) error {
	prepareIntervention(intervention, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertInterventionQuery, intervention); err != nil {
		return fmt.Errorf("create intervention: %w", err)
	}
	return nil
}

// InsertBatch inserts interventions in one transaction. Either every row is
// stored or none is.
func (r *InterventionRepository) InsertBatch(ctx context.Context, interventions []models.Intervention) error {
	if len(interventions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin intervention batch: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range interventions {
		item := &interventions[i]
		prepareIntervention(item, now)
		if _, err := tx.NamedExecContext(ctx, insertInterventionQuery, item); err != nil {
			return fmt.Errorf("insert intervention for tutor %s: %w", item.TutorID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit intervention batch: %w", err)
	}
	commit = true
	return nil
}

// CreateCampaign inserts the campaign row. Its interventions are inserted
// separately.
func (r *InterventionRepository) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO campaigns (id, name, template_id, criteria, created_by, created_at)
VALUES (:id, :name, :template_id, :criteria, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, campaign); err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// GetCampaign returns a campaign with its intervention ids, or sql.ErrNoRows.
func (r *InterventionRepository) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	const query = `SELECT id, name, template_id, criteria, created_by, created_at FROM campaigns WHERE id = $1`
	var campaign models.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	const idsQuery = `SELECT id FROM interventions WHERE campaign_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &campaign.InterventionIDs, idsQuery, id); err != nil {
		return nil, fmt.Errorf("list campaign interventions: %w", err)
	}
	return &campaign, nil
}

// CampaignCounts tallies the campaign's interventions by funnel stage. Stages
// are cumulative: an opened message also counts as delivered and sent.
func (r *InterventionRepository) CampaignCounts(ctx context.Context, campaignID string) (*models.CampaignStatusCounts, error) {
	const query = `SELECT
COUNT(*) AS total,
COUNT(*) FILTER (WHERE status = 'pending') AS pending,
COUNT(*) FILTER (WHERE sent_at IS NOT NULL) AS sent,
COUNT(*) FILTER (WHERE delivered_at IS NOT NULL) AS delivered,
COUNT(*) FILTER (WHERE opened_at IS NOT NULL) AS opened,
COUNT(*) FILTER (WHERE clicked_at IS NOT NULL) AS clicked,
COUNT(*) FILTER (WHERE responded_at IS NOT NULL) AS responded,
COUNT(*) FILTER (WHERE status = 'failed') AS failed
FROM interventions WHERE campaign_id = $1`
	var counts models.CampaignStatusCounts
	if err := r.db.GetContext(ctx, &counts, query, campaignID); err != nil {
		return nil, fmt.Errorf("count campaign interventions: %w", err)
	}
	return &counts, nil
}

// ListPendingDeliveries returns the oldest pending email interventions
// created at or before createdBefore, joined with tutor contact details.
func (r *InterventionRepository) ListPendingDeliveries(ctx context.Context, createdBefore time.Time, limit int) ([]models.PendingDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT i.id, i.tutor_id, i.alert_id, i.campaign_id, i.template_id, i.intervention_type, i.channel, i.subject, i.content, i.status,
i.created_at, i.sent_at, i.delivered_at, i.opened_at, i.clicked_at, i.responded_at, i.external_message_id, i.error_message,
t.name AS tutor_name, t.email AS tutor_email
FROM interventions i JOIN tutors t ON t.id = i.tutor_id
WHERE i.status = 'pending' AND i.channel = 'email' AND i.created_at <= $1
ORDER BY i.created_at ASC LIMIT $2`
	var rows []models.PendingDelivery
	if err := r.db.SelectContext(ctx, &rows, query, createdBefore, limit); err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	return rows, nil
}

// MarkSent records a successful hand-off to the mail provider.
func (r *InterventionRepository) MarkSent(ctx context.Context, id, externalID string, at time.Time) error {
	const query = `UPDATE interventions SET status = 'sent', sent_at = $2, last_attempt_at = $2, external_message_id = $3, error_message = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at, externalID); err != nil {
		return fmt.Errorf("mark intervention sent: %w", err)
	}
	return nil
}

// MarkFailed records a delivery failure. Failed interventions are not retried
// by the delivery sweep.
func (r *InterventionRepository) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	const query = `UPDATE interventions SET status = 'failed', last_attempt_at = $2, error_message = $3 WHERE id = $1 AND status = 'pending'`
	if _, err := r.db.ExecContext(ctx, query, id, at, truncate(message, maxErrorMessageLen)); err != nil {
		return fmt.Errorf("mark intervention failed: %w", err)
	}
	return nil
}

const maxErrorMessageLen = 1000

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
