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

type cohortService interface {
	Segments(ctx context.Context) (*models.SegmentAnalysis, bool, error)
	FirstSessions(ctx context.Context) (*models.FirstSessionAnalysis, bool, error)
	Compare(ctx context.Context, req dto.CompareCohortsRequest) (*dto.CompareCohortsResponse, error)
}

// CohortHandler exposes cohort comparisons.
type CohortHandler struct {
	cohorts cohortService
}

// NewCohortHandler constructs the cohort handler.
func NewCohortHandler(cohorts cohortService) *CohortHandler {
	return &CohortHandler{cohorts: cohorts}
}

// Segments godoc
// @Summary Star vs lagging tutor segment analysis
// @Tags Cohorts
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /cohorts/segments [get]
func (h *CohortHandler) Segments(c *gin.Context) {
	start := time.Now()
	analysis, cacheHit, err := h.cohorts.Segments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis, nil, withTiming(c, start, cacheHit))
}

// FirstSessions godoc
// @Summary Poor first session cohort compared with all tutors
// @Tags Cohorts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cohorts/first-session [get]
func (h *CohortHandler) FirstSessions(c *gin.Context) {
	start := time.Now()
	analysis, cacheHit, err := h.cohorts.FirstSessions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis, nil, withTiming(c, start, cacheHit))
}

// Compare godoc
// @Summary Compare two tutor groups
// @Tags Cohorts
// @Accept json
// @Produce json
// @Param payload body dto.CompareCohortsRequest true "Tutor id lists"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /cohorts/compare [post]
func (h *CohortHandler) Compare(c *gin.Context) {
	var req dto.CompareCohortsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid compare payload"))
		return
	}
	start := time.Now()
	result, err := h.cohorts.Compare(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, withTiming(c, start, false))
}
