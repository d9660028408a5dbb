package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-insights-api/internal/dto"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
	"github.com/noah-isme/tutor-insights-api/pkg/response"
)

type targetingService interface {
	FindTargetTutors(ctx context.Context, criteria models.TargetCriteria) (*models.TargetingResult, error)
	PreviewTargeting(ctx context.Context, criteria models.TargetCriteria) (*models.TargetingPreview, error)
	Segments(ctx context.Context) ([]models.Segment, error)
	Segment(name string) (models.Segment, bool)
}

// TargetingHandler exposes tutor segment targeting.
type TargetingHandler struct {
	targeting targetingService
}

// NewTargetingHandler constructs the targeting handler.
func NewTargetingHandler(targeting targetingService) *TargetingHandler {
	return &TargetingHandler{targeting: targeting}
}

// Search godoc
// @Summary Find tutors matching targeting criteria
// @Tags Targeting
// @Accept json
// @Produce json
// @Param payload body dto.TargetingRequest true "Segment name and/or criteria"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /targeting/search [post]
func (h *TargetingHandler) Search(c *gin.Context) {
	criteria, err := h.bindCriteria(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.targeting.FindTargetTutors(c.Request.Context(), criteria)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Preview godoc
// @Summary Preview the audience of targeting criteria
// @Tags Targeting
// @Accept json
// @Produce json
// @Param payload body dto.TargetingRequest true "Segment name and/or criteria"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /targeting/preview [post]
func (h *TargetingHandler) Preview(c *gin.Context) {
	criteria, err := h.bindCriteria(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	preview, err := h.targeting.PreviewTargeting(c.Request.Context(), criteria)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Segments godoc
// @Summary Predefined segments with current sizes
// @Tags Targeting
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /targeting/segments [get]
func (h *TargetingHandler) Segments(c *gin.Context) {
	segments, err := h.targeting.Segments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, segments, nil)
}

func (h *TargetingHandler) bindCriteria(c *gin.Context) (models.TargetCriteria, error) {
	var req dto.TargetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return models.TargetCriteria{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid targeting payload")
	}
	if req.Segment == "" {
		return req.Criteria, nil
	}
	seg, ok := h.targeting.Segment(req.Segment)
	if !ok {
		return models.TargetCriteria{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown segment %q", req.Segment))
	}
	return seg.Criteria.Overlay(req.Criteria), nil
}
