package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-insights-api/internal/dto"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
	"github.com/noah-isme/tutor-insights-api/pkg/response"
)

type insightService interface {
	List(ctx context.Context, filter models.InsightFilter) ([]models.PatternInsight, error)
	Create(ctx context.Context, req dto.CreateInsightRequest, now time.Time) (*models.PatternInsight, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateInsightRequest, now time.Time) (*models.PatternInsight, error)
	Stats(ctx context.Context) (*models.InsightStats, error)
}

// InsightHandler exposes pattern insights.
type InsightHandler struct {
	insights insightService
}

// NewInsightHandler constructs the insight handler.
func NewInsightHandler(insights insightService) *InsightHandler {
	return &InsightHandler{insights: insights}
}

// List godoc
// @Summary List pattern insights
// @Tags Insights
// @Produce json
// @Param patternType query string false "Pattern type"
// @Param status query string false "Status (default active)"
// @Param minConfidence query number false "Minimum confidence score"
// @Param from query string false "Discovered at or after"
// @Param to query string false "Discovered before"
// @Param limit query int false "Maximum insights (default 50)"
// @Success 200 {object} response.Envelope
// @Router /insights [get]
func (h *InsightHandler) List(c *gin.Context) {
	filter := models.InsightFilter{
		PatternType: models.PatternType(c.Query("patternType")),
		Status:      models.InsightStatus(c.Query("status")),
	}
	var err error
	if raw := c.Query("minConfidence"); raw != "" {
		v, perr := queryFloat(c, "minConfidence", 0)
		if perr != nil {
			response.Error(c, perr)
			return
		}
		filter.MinConfidence = &v
	}
	if filter.From, err = queryTime(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.Limit, err = queryInt(c, "limit", 0); err != nil {
		response.Error(c, err)
		return
	}
	insights, err := h.insights.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insights, nil)
}

// Create godoc
// @Summary Record a pattern insight
// @Tags Insights
// @Accept json
// @Produce json
// @Param payload body dto.CreateInsightRequest true "Insight"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /insights [post]
func (h *InsightHandler) Create(c *gin.Context) {
	var req dto.CreateInsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid insight payload"))
		return
	}
	insight, err := h.insights.Create(c.Request.Context(), req, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, insight)
}

// Update godoc
// @Summary Update insight status
// @Tags Insights
// @Accept json
// @Produce json
// @Param id path string true "Insight ID"
// @Param payload body dto.UpdateInsightRequest true "Status and action taken"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /insights/{id} [patch]
func (h *InsightHandler) Update(c *gin.Context) {
	var req dto.UpdateInsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid insight payload"))
		return
	}
	insight, err := h.insights.UpdateStatus(c.Request.Context(), c.Param("id"), req, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insight, nil)
}

// Stats godoc
// @Summary Insight statistics
// @Tags Insights
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /insights/stats [get]
func (h *InsightHandler) Stats(c *gin.Context) {
	stats, err := h.insights.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
