package service

import (
	"context"
	"time"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

// TutorRepository reads tutor identities and their rolling aggregates.
// Single-row lookups return sql.ErrNoRows when the tutor does not exist.
type TutorRepository interface {
	ListAggregates(ctx context.Context, filter models.TutorFilter) ([]models.TutorAggregate, error)
	GetAggregate(ctx context.Context, tutorID string) (*models.TutorAggregate, error)
	FindByCriteria(ctx context.Context, criteria models.TargetCriteria) ([]models.TutorAggregate, error)
	CountByCriteria(ctx context.Context, criteria models.TargetCriteria) (int, error)
	ListActivity(ctx context.Context, from, to time.Time) ([]models.TutorActivity, error)
}

// SessionRepository reads completed and scheduled sessions.
type SessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	Upcoming(ctx context.Context, from, to time.Time) ([]models.UpcomingSession, error)
	GetUpcoming(ctx context.Context, id string) (*models.UpcomingSession, error)
}

// AlertRepository persists alerts. InsertIfAbsent must be atomic against the
// open-alert uniqueness constraint and report false when a row already exists.
type AlertRepository interface {
	InsertIfAbsent(ctx context.Context, alert *models.Alert) (bool, error)
	FindLatest(ctx context.Context, key models.AlertKey) (*models.Alert, error)
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	Acknowledge(ctx context.Context, id, actor string, at time.Time) error
	Resolve(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, int, error)
	ListSince(ctx context.Context, since time.Time) ([]models.Alert, error)
}

// InterventionRepository persists interventions and campaigns.
type InterventionRepository interface {
	Create(ctx context.Context, intervention *models.Intervention) error
	InsertBatch(ctx context.Context, interventions []models.Intervention) error
	CreateCampaign(ctx context.Context, campaign *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	CampaignCounts(ctx context.Context, campaignID string) (*models.CampaignStatusCounts, error)
	ListPendingDeliveries(ctx context.Context, createdBefore time.Time, limit int) ([]models.PendingDelivery, error)
	MarkSent(ctx context.Context, id, externalID string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string, at time.Time) error
}

// InsightRepository persists pattern insights.
type InsightRepository interface {
	List(ctx context.Context, filter models.InsightFilter) ([]models.PatternInsight, error)
	GetByID(ctx context.Context, id string) (*models.PatternInsight, error)
	Create(ctx context.Context, insight *models.PatternInsight) error
	UpdateStatus(ctx context.Context, id string, status models.InsightStatus, actionTaken *string, at time.Time) error
}

// OutgoingEmail is a rendered message handed to the Mailer.
type OutgoingEmail struct {
	To      string
	ToName  string
	Subject string
	Body    string
	Tags    map[string]string
}

// Mailer sends one email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, msg OutgoingEmail) (string, error)
}

// AlertNotifier pushes critical alerts to the operations channel.
type AlertNotifier interface {
	NotifyCritical(ctx context.Context, alert models.Alert) error
}

// Narrator turns a statistical finding into a short prose description.
type Narrator interface {
	Describe(ctx context.Context, finding models.CohortComparisonResult, context string) (string, error)
}
