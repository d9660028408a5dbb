package dto

import "github.com/noah-isme/tutor-insights-api/internal/models"

// CompareCohortsRequest captures POST /cohorts/compare payload. An empty
// metric list compares every segment metric.
type CompareCohortsRequest struct {
	GroupA  []string `json:"groupA" validate:"required,min=2,max=5000,dive,required"`
	GroupB  []string `json:"groupB" validate:"required,min=2,max=5000,dive,required"`
	Metrics []string `json:"metrics,omitempty" validate:"omitempty,dive,required"`
}

// CompareCohortsResponse lists the ranked differentiating metrics.
type CompareCohortsResponse struct {
	GroupASize  int                             `json:"groupASize"`
	GroupBSize  int                             `json:"groupBSize"`
	Comparisons []models.CohortComparisonResult `json:"comparisons"`
	Significant int                             `json:"significantCount"`
}
