package dto

import "github.com/noah-isme/tutor-insights-api/internal/models"

// ReportRequest captures POST /reports payload.
type ReportRequest struct {
	Type       models.ReportType    `json:"type" validate:"required"`
	Format     models.ReportFormat  `json:"format" validate:"required,oneof=csv pdf"`
	WindowDays int                  `json:"windowDays,omitempty" validate:"gte=0,lte=365"`
	DaysAhead  int                  `json:"daysAhead,omitempty" validate:"gte=0,lte=30"`
	Threshold  float64              `json:"threshold,omitempty" validate:"gte=0,lte=1"`
	Severity   models.AlertSeverity `json:"severity,omitempty"`
	Category   models.AlertCategory `json:"category,omitempty"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
