package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/response"
)

type scheduledJobs interface {
	RunAlertGeneration(ctx context.Context, now time.Time) (*models.JobRun, error)
	RunDelivery(ctx context.Context, now time.Time) (*models.JobRun, error)
	RunInsightDiscovery(ctx context.Context, now time.Time) (*models.JobRun, error)
	RunHighRiskSweep(ctx context.Context, now time.Time) (*models.JobRun, error)
}

// CronHandler lets an external scheduler trigger periodic jobs.
type CronHandler struct {
	jobs scheduledJobs
}

// NewCronHandler constructs the cron trigger handler.
func NewCronHandler(jobs scheduledJobs) *CronHandler {
	return &CronHandler{jobs: jobs}
}

// Alerts godoc
// @Summary Run alert generation
// @Tags Cron
// @Produce json
// @Security CronSecret
// @Success 200 {object} response.Envelope
// @Router /cron/alerts [post]
func (h *CronHandler) Alerts(c *gin.Context) {
	h.trigger(c, h.jobs.RunAlertGeneration)
}

// Deliveries godoc
// @Summary Send pending intervention emails
// @Tags Cron
// @Produce json
// @Security CronSecret
// @Success 200 {object} response.Envelope
// @Router /cron/deliveries [post]
func (h *CronHandler) Deliveries(c *gin.Context) {
	h.trigger(c, h.jobs.RunDelivery)
}

// Insights godoc
// @Summary Run pattern insight discovery
// @Tags Cron
// @Produce json
// @Security CronSecret
// @Success 200 {object} response.Envelope
// @Router /cron/insights [post]
func (h *CronHandler) Insights(c *gin.Context) {
	h.trigger(c, h.jobs.RunInsightDiscovery)
}

// HighRisk godoc
// @Summary Raise alerts for high no-show risk sessions
// @Tags Cron
// @Produce json
// @Security CronSecret
// @Success 200 {object} response.Envelope
// @Router /cron/high-risk [post]
func (h *CronHandler) HighRisk(c *gin.Context) {
	h.trigger(c, h.jobs.RunHighRiskSweep)
}

func (h *CronHandler) trigger(c *gin.Context, run func(context.Context, time.Time) (*models.JobRun, error)) {
	result, err := run(c.Request.Context(), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
