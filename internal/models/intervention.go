package models

import (
	"time"

	"github.com/aarondl/null/v8"
)

// InterventionStatus tracks outreach delivery. Only draft and pending are
// written at creation; later states belong to the delivery sweep.
type InterventionStatus string

const (
	InterventionDraft     InterventionStatus = "draft"
	InterventionPending   InterventionStatus = "pending"
	InterventionSent      InterventionStatus = "sent"
	InterventionDelivered InterventionStatus = "delivered"
	InterventionOpened    InterventionStatus = "opened"
	InterventionClicked   InterventionStatus = "clicked"
	InterventionResponded InterventionStatus = "responded"
	InterventionFailed    InterventionStatus = "failed"
)

// InterventionType describes the purpose of an outreach.
type InterventionType string

const (
	InterventionEngagement   InterventionType = "engagement"
	InterventionQuality      InterventionType = "quality"
	InterventionTechnical    InterventionType = "technical"
	InterventionReEngagement InterventionType = "re_engagement"
	InterventionReliability  InterventionType = "reliability"
	InterventionRecognition  InterventionType = "recognition"
	InterventionOnboarding   InterventionType = "onboarding"
	InterventionProfessional InterventionType = "professional_development"
)

// Channel is the delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

// Intervention is one outreach message to one tutor.
type Intervention struct {
	ID                string             `db:"id" json:"id"`
	TutorID           string             `db:"tutor_id" json:"tutor_id"`
	AlertID           *string            `db:"alert_id" json:"alert_id,omitempty"`
	CampaignID        *string            `db:"campaign_id" json:"campaign_id,omitempty"`
	TemplateID        *string            `db:"template_id" json:"template_id,omitempty"`
	InterventionType  InterventionType   `db:"intervention_type" json:"intervention_type"`
	Channel           Channel            `db:"channel" json:"channel"`
	Subject           string             `db:"subject" json:"subject"`
	Content           string             `db:"content" json:"content"`
	Status            InterventionStatus `db:"status" json:"status"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	SentAt            *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt       *time.Time         `db:"delivered_at" json:"delivered_at,omitempty"`
	OpenedAt          *time.Time         `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt         *time.Time         `db:"clicked_at" json:"clicked_at,omitempty"`
	RespondedAt       *time.Time         `db:"responded_at" json:"responded_at,omitempty"`
	ExternalMessageID *string            `db:"external_message_id" json:"external_message_id,omitempty"`
	ErrorMessage      *string            `db:"error_message" json:"error_message,omitempty"`
}

// PendingDelivery is a pending intervention joined with its recipient.
type PendingDelivery struct {
	Intervention
	TutorName  string      `db:"tutor_name" json:"tutor_name"`
	TutorEmail null.String `db:"tutor_email" json:"tutor_email"`
}

// Campaign is a batch of interventions created from one criteria set.
type Campaign struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	TemplateID      string         `db:"template_id" json:"template_id"`
	Criteria        TargetCriteria `db:"criteria" json:"criteria"`
	CreatedBy       string         `db:"created_by" json:"created_by"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	InterventionIDs []string       `db:"-" json:"intervention_ids"`
}

// CampaignResult is returned after a campaign is created.
type CampaignResult struct {
	CampaignID      string       `json:"campaign_id"`
	InterventionIDs []string     `json:"intervention_ids"`
	Summary         BatchSummary `json:"summary"`
}

// CampaignStatusCounts are raw counts per intervention milestone.
type CampaignStatusCounts struct {
	Total     int `db:"total" json:"total"`
	Pending   int `db:"pending" json:"pending"`
	Sent      int `db:"sent" json:"sent"`
	Delivered int `db:"delivered" json:"delivered"`
	Opened    int `db:"opened" json:"opened"`
	Clicked   int `db:"clicked" json:"clicked"`
	Responded int `db:"responded" json:"responded"`
	Failed    int `db:"failed" json:"failed"`
}

// CampaignStats are measured outcomes of a campaign. Rates are fractions of
// sent interventions.
type CampaignStats struct {
	CampaignID string               `json:"campaign_id"`
	Counts     CampaignStatusCounts `json:"counts"`
	SendRate   float64              `json:"send_rate"`
	OpenRate   float64              `json:"open_rate"`
	ClickRate  float64              `json:"click_rate"`
	ReplyRate  float64              `json:"response_rate"`
}

// CampaignPriority ranks recommended campaigns.
type CampaignPriority string

const (
	CampaignPriorityHigh   CampaignPriority = "high"
	CampaignPriorityMedium CampaignPriority = "medium"
	CampaignPriorityLow    CampaignPriority = "low"
)

// Rank orders priorities so that high sorts first.
func (p CampaignPriority) Rank() int {
	switch p {
	case CampaignPriorityHigh:
		return 3
	case CampaignPriorityMedium:
		return 2
	}
	return 1
}

// RecommendedCampaign is a campaign proposal derived from open alerts or
// active insights.
type RecommendedCampaign struct {
	Source            string           `json:"source"`
	Group             string           `json:"group"`
	TemplateID        string           `json:"template_id"`
	Segment           string           `json:"segment"`
	Priority          CampaignPriority `json:"priority"`
	Reason            string           `json:"reason"`
	SignalCount       int              `json:"signal_count"`
	EstimatedAudience int              `json:"estimated_audience"`
}
