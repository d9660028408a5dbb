package dto

import "github.com/noah-isme/tutor-insights-api/internal/models"

// TargetingRequest captures POST /targeting/search and /targeting/preview
// payloads. A named segment is expanded before the explicit criteria apply.
type TargetingRequest struct {
	Segment  string                `json:"segment,omitempty"`
	Criteria models.TargetCriteria `json:"criteria"`
}
