package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/dto"
	"github.com/noah-isme/tutor-insights-api/internal/models"
)

type fakeInterventionService struct {
	syncCalls  int
	asyncCalls int
	lastReq    dto.CreateCampaignRequest
}

func (f *fakeInterventionService) Templates() []models.InterventionTemplate {
	return []models.InterventionTemplate{{ID: "no_login_7d"}}
}

func (f *fakeInterventionService) CreateSingleIntervention(ctx context.Context, req dto.CreateInterventionRequest, now time.Time) (*models.Intervention, error) {
	return &models.Intervention{ID: "i-1", TutorID: req.TutorID}, nil
}

func (f *fakeInterventionService) CreateCampaign(ctx context.Context, req dto.CreateCampaignRequest, now time.Time) (*models.CampaignResult, error) {
	f.syncCalls++
	f.lastReq = req
	return &models.CampaignResult{}, nil
}

func (f *fakeInterventionService) CreateCampaignAsync(ctx context.Context, req dto.CreateCampaignRequest, now time.Time) (*dto.CampaignAcceptedResponse, error) {
	f.asyncCalls++
	f.lastReq = req
	return &dto.CampaignAcceptedResponse{CampaignID: "c-1", EstimatedAudience: 12, Status: "queued"}, nil
}

func (f *fakeInterventionService) GetRecommendedCampaigns(ctx context.Context) ([]models.RecommendedCampaign, error) {
	return nil, nil
}

func (f *fakeInterventionService) CampaignStats(ctx context.Context, campaignID string) (*models.CampaignStats, error) {
	return &models.CampaignStats{}, nil
}

const campaignPayload = `{"name":"Re-engage","templateId":"no_login_7d","segment":"inactive_7d"}`

func TestInterventionHandlerCreateCampaignSync(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeInterventionService{}
	handler := NewInterventionHandler(svc)

	c, w := newGinContext(http.MethodPost, "/campaigns", []byte(campaignPayload))
	withOperator(c, "op-1", models.RoleAdmin)
	handler.CreateCampaign(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, svc.syncCalls)
	assert.Zero(t, svc.asyncCalls)
	assert.Equal(t, "op-1", svc.lastReq.CreatedBy)
	assert.Equal(t, "inactive_7d", svc.lastReq.Segment)
}

func TestInterventionHandlerCreateCampaignAsync(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeInterventionService{}
	handler := NewInterventionHandler(svc)

	c, w := newGinContext(http.MethodPost, "/campaigns?async=true", []byte(campaignPayload))
	withOperator(c, "op-1", models.RoleAdmin)
	handler.CreateCampaign(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, svc.asyncCalls)
	assert.Zero(t, svc.syncCalls)
	assert.Contains(t, w.Body.String(), `"campaignId":"c-1"`)
}

func TestInterventionHandlerCreateCampaignRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeInterventionService{}
	handler := NewInterventionHandler(svc)

	c, w := newGinContext(http.MethodPost, "/campaigns", []byte(`{"name":`))
	withOperator(c, "op-1", models.RoleAdmin)
	handler.CreateCampaign(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.syncCalls+svc.asyncCalls)
}

func TestInterventionHandlerTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewInterventionHandler(&fakeInterventionService{})

	c, w := newGinContext(http.MethodGet, "/interventions/templates", nil)
	handler.Templates(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "no_login_7d")
}
