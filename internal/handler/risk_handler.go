package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/response"
)

type riskService interface {
	HighRiskSessions(ctx context.Context, now time.Time, daysAhead int, minLevel models.RiskLevel) ([]models.HighRiskSession, error)
	SessionRisk(ctx context.Context, sessionID string, now time.Time) (*models.HighRiskSession, error)
	ReliabilityAnalysis(ctx context.Context, now time.Time, threshold float64) (*models.ReliabilityAnalysis, error)
}

// RiskHandler exposes session and tutor risk scoring.
type RiskHandler struct {
	risk riskService
}

// NewRiskHandler constructs the risk handler.
func NewRiskHandler(risk riskService) *RiskHandler {
	return &RiskHandler{risk: risk}
}

// HighRiskSessions godoc
// @Summary Upcoming sessions ranked by no-show risk
// @Tags Risk
// @Produce json
// @Param daysAhead query int false "Lookahead in days, 1..90 (default 7)"
// @Param level query string false "Minimum level: low, medium or high"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /risk/sessions [get]
func (h *RiskHandler) HighRiskSessions(c *gin.Context) {
	daysAhead, err := queryInt(c, "daysAhead", 7)
	if err != nil {
		response.Error(c, err)
		return
	}
	level := models.RiskLevel(c.DefaultQuery("level", string(models.RiskLow)))
	start := time.Now()
	sessions, err := h.risk.HighRiskSessions(c.Request.Context(), start.UTC(), daysAhead, level)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := withTiming(c, start, false)
	meta["count"] = len(sessions)
	response.JSON(c, http.StatusOK, sessions, nil, meta)
}

// SessionRisk godoc
// @Summary Risk assessment for one upcoming session
// @Tags Risk
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /risk/sessions/{id} [get]
func (h *RiskHandler) SessionRisk(c *gin.Context) {
	result, err := h.risk.SessionRisk(c.Request.Context(), c.Param("id"), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reliability godoc
// @Summary Reschedule and reliability analysis
// @Tags Risk
// @Produce json
// @Param threshold query number false "Reschedule rate threshold (default from config)"
// @Success 200 {object} response.Envelope
// @Router /risk/reliability [get]
func (h *RiskHandler) Reliability(c *gin.Context) {
	threshold, err := queryFloat(c, "threshold", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	analysis, err := h.risk.ReliabilityAnalysis(c.Request.Context(), start.UTC(), threshold)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis, nil, withTiming(c, start, false))
}
