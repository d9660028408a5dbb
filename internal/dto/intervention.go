package dto

import "github.com/noah-isme/tutor-insights-api/internal/models"

// CreateInterventionRequest captures POST /interventions payload.
type CreateInterventionRequest struct {
	TutorID    string            `json:"tutorId" validate:"required,max=64"`
	TemplateID string            `json:"templateId" validate:"required"`
	Variables  map[string]string `json:"variables,omitempty"`
	Channel    models.Channel    `json:"channel,omitempty" validate:"omitempty,oneof=email in_app"`
	Draft      bool              `json:"draft,omitempty"`
}

// InterventionFromAlertRequest captures POST /alerts/:id/intervention payload.
// TemplateID overrides the template picked from the alert.
type InterventionFromAlertRequest struct {
	TemplateID string            `json:"templateId,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
	Draft      bool              `json:"draft,omitempty"`
}

// CreateCampaignRequest captures POST /campaigns payload. Exactly one of
// Segment and Criteria selects the audience.
type CreateCampaignRequest struct {
	Name       string                 `json:"name" validate:"required,max=200"`
	TemplateID string                 `json:"templateId" validate:"required"`
	Segment    string                 `json:"segment,omitempty" validate:"required_without=Criteria,excluded_with=Criteria"`
	Criteria   *models.TargetCriteria `json:"criteria,omitempty" validate:"required_without=Segment"`
	Variables  map[string]string      `json:"variables,omitempty"`
	Channel    models.Channel         `json:"channel,omitempty" validate:"omitempty,oneof=email in_app"`
	CreatedBy  string                 `json:"-"`
}

// CampaignAcceptedResponse is returned when a campaign is queued.
type CampaignAcceptedResponse struct {
	CampaignID        string `json:"campaignId"`
	EstimatedAudience int    `json:"estimatedAudience"`
	Status            string `json:"status"`
}
