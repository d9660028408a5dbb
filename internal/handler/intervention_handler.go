package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-insights-api/internal/dto"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
	"github.com/noah-isme/tutor-insights-api/pkg/response"
)

type interventionService interface {
	Templates() []models.InterventionTemplate
	CreateSingleIntervention(ctx context.Context, req dto.CreateInterventionRequest, now time.Time) (*models.Intervention, error)
	CreateCampaign(ctx context.Context, req dto.CreateCampaignRequest, now time.Time) (*models.CampaignResult, error)
	CreateCampaignAsync(ctx context.Context, req dto.CreateCampaignRequest, now time.Time) (*dto.CampaignAcceptedResponse, error)
	GetRecommendedCampaigns(ctx context.Context) ([]models.RecommendedCampaign, error)
	CampaignStats(ctx context.Context, campaignID string) (*models.CampaignStats, error)
}

// InterventionHandler exposes templates, interventions and campaigns.
type InterventionHandler struct {
	interventions interventionService
}

// NewInterventionHandler constructs the intervention handler.
func NewInterventionHandler(interventions interventionService) *InterventionHandler {
	return &InterventionHandler{interventions: interventions}
}

// Templates godoc
// @Summary Intervention template catalog
// @Tags Interventions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /interventions/templates [get]
func (h *InterventionHandler) Templates(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.interventions.Templates(), nil)
}

// Create godoc
// @Summary Create a single intervention
// @Tags Interventions
// @Accept json
// @Produce json
// @Param payload body dto.CreateInterventionRequest true "Intervention"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /interventions [post]
func (h *InterventionHandler) Create(c *gin.Context) {
	var req dto.CreateInterventionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intervention payload"))
		return
	}
	intervention, err := h.interventions.CreateSingleIntervention(c.Request.Context(), req, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, intervention)
}

// CreateCampaign godoc
// @Summary Create a campaign
// @Description With async=true the campaign is queued and 202 is returned
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param async query bool false "Queue the campaign"
// @Param payload body dto.CreateCampaignRequest true "Campaign"
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /campaigns [post]
func (h *InterventionHandler) CreateCampaign(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid campaign payload"))
		return
	}
	req.CreatedBy = claims.OperatorID

	async, _ := strconv.ParseBool(c.Query("async"))
	if async {
		accepted, err := h.interventions.CreateCampaignAsync(c.Request.Context(), req, time.Now().UTC())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusAccepted, accepted, nil)
		return
	}

	result, err := h.interventions.CreateCampaign(c.Request.Context(), req, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Recommended godoc
// @Summary Campaigns recommended from open alerts and active insights
// @Tags Campaigns
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /campaigns/recommended [get]
func (h *InterventionHandler) Recommended(c *gin.Context) {
	recommendations, err := h.interventions.GetRecommendedCampaigns(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recommendations, nil)
}

// CampaignStats godoc
// @Summary Funnel counts and rates for a campaign
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /campaigns/{id}/stats [get]
func (h *InterventionHandler) CampaignStats(c *gin.Context) {
	stats, err := h.interventions.CampaignStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
