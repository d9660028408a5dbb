package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/dto"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

type fakeInsightService struct {
	lastFilter models.InsightFilter
	lastCreate dto.CreateInsightRequest
	lastID     string
	lastUpdate dto.UpdateInsightRequest
	updateErr  error
	listCalls  int
}

func (f *fakeInsightService) List(ctx context.Context, filter models.InsightFilter) ([]models.PatternInsight, error) {
	f.listCalls++
	f.lastFilter = filter
	return []models.PatternInsight{{ID: "in-1", PatternType: models.PatternEngagement, Title: "Star tutors engage more"}}, nil
}

func (f *fakeInsightService) Create(ctx context.Context, req dto.CreateInsightRequest, now time.Time) (*models.PatternInsight, error) {
	f.lastCreate = req
	return &models.PatternInsight{ID: "in-2", PatternType: req.PatternType, Title: req.Title, Status: models.InsightActive}, nil
}

func (f *fakeInsightService) UpdateStatus(ctx context.Context, id string, req dto.UpdateInsightRequest, now time.Time) (*models.PatternInsight, error) {
	f.lastID = id
	f.lastUpdate = req
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &models.PatternInsight{ID: id, Status: req.Status, ActionTaken: req.ActionTaken}, nil
}

func (f *fakeInsightService) Stats(ctx context.Context) (*models.InsightStats, error) {
	return &models.InsightStats{Total: 3, ByType: map[models.PatternType]int{models.PatternQuality: 3}, AvgConfidence: 0.97}, nil
}

func TestInsightHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeInsightService{}
	h := NewInsightHandler(svc)

	c, w := newGinContext(http.MethodGet, "/insights?patternType=engagement&status=active&minConfidence=0.9&from=2024-03-01&limit=5", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PatternEngagement, svc.lastFilter.PatternType)
	assert.Equal(t, models.InsightActive, svc.lastFilter.Status)
	require.NotNil(t, svc.lastFilter.MinConfidence)
	assert.InDelta(t, 0.9, *svc.lastFilter.MinConfidence, 1e-9)
	require.NotNil(t, svc.lastFilter.From)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *svc.lastFilter.From)
	assert.Nil(t, svc.lastFilter.To)
	assert.Equal(t, 5, svc.lastFilter.Limit)

	env := decodeEnvelope(t, w)
	var insights []models.PatternInsight
	require.NoError(t, json.Unmarshal(env.Data, &insights))
	require.Len(t, insights, 1)
	assert.Equal(t, "in-1", insights[0].ID)
}

func TestInsightHandlerListRejectsBadConfidence(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeInsightService{}
	h := NewInsightHandler(svc)

	c, w := newGinContext(http.MethodGet, "/insights?minConfidence=high", nil)
	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.listCalls)
}

func TestInsightHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeInsightService{}
	h := NewInsightHandler(svc)

	body := []byte(`{"patternType":"quality","title":"Late starts hurt ratings","description":"d","affectedTutorIds":["T1"]}`)
	c, w := newGinContext(http.MethodPost, "/insights", body)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.PatternQuality, svc.lastCreate.PatternType)
	assert.Equal(t, []string{"T1"}, svc.lastCreate.AffectedTutorIDs)
}

func TestInsightHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeInsightService{}
	h := NewInsightHandler(svc)

	c, w := newGinContext(http.MethodPatch, "/insights/in-1", []byte(`{"status":"implemented","actionTaken":"Shared guide"}`))
	c.Params = gin.Params{{Key: "id", Value: "in-1"}}
	h.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in-1", svc.lastID)
	assert.Equal(t, models.InsightImplemented, svc.lastUpdate.Status)
	require.NotNil(t, svc.lastUpdate.ActionTaken)
	assert.Equal(t, "Shared guide", *svc.lastUpdate.ActionTaken)
}

func TestInsightHandlerUpdateNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeInsightService{updateErr: appErrors.Wrap(sql.ErrNoRows, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "insight not found")}
	h := NewInsightHandler(svc)

	c, w := newGinContext(http.MethodPatch, "/insights/gone", []byte(`{"status":"archived"}`))
	c.Params = gin.Params{{Key: "id", Value: "gone"}}
	h.Update(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrNotFound.Code, env.Error.Code)
}

func TestInsightHandlerStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewInsightHandler(&fakeInsightService{})

	c, w := newGinContext(http.MethodGet, "/insights/stats", nil)
	h.Stats(c)

	require.Equal(t, http.StatusOK, w.Code)
	var stats models.InsightStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.ByType[models.PatternQuality])
}
