package dto

import "github.com/noah-isme/tutor-insights-api/internal/models"

// CreateInsightRequest captures POST /insights payload.
type CreateInsightRequest struct {
	PatternType             models.PatternType `json:"patternType" validate:"required,oneof=engagement technical experience reliability quality"`
	Title                   string             `json:"title" validate:"required,max=300"`
	Description             string             `json:"description" validate:"required"`
	AffectedTutorIDs        []string           `json:"affectedTutorIds,omitempty" validate:"omitempty,dive,required"`
	StatisticalSignificance float64            `json:"statisticalSignificance" validate:"gte=0,lte=1"`
	ConfidenceScore         float64            `json:"confidenceScore" validate:"gte=0,lte=1"`
}

// UpdateInsightRequest captures PATCH /insights/:id payload.
type UpdateInsightRequest struct {
	Status      models.InsightStatus `json:"status" validate:"required,oneof=active implemented archived"`
	ActionTaken *string              `json:"actionTaken,omitempty" validate:"omitempty,max=2000"`
}
