package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/dto"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

type fakeCohortService struct {
	segmentsHit  bool
	segmentsErr  error
	lastCompare  dto.CompareCohortsRequest
	compareCalls int
}

func (f *fakeCohortService) Segments(ctx context.Context) (*models.SegmentAnalysis, bool, error) {
	if f.segmentsErr != nil {
		return nil, false, f.segmentsErr
	}
	return &models.SegmentAnalysis{StarCount: 2, AverageCount: 5, LaggingCount: 2}, f.segmentsHit, nil
}

func (f *fakeCohortService) FirstSessions(ctx context.Context) (*models.FirstSessionAnalysis, bool, error) {
	return &models.FirstSessionAnalysis{PoorCount: 4, PopulationCount: 40, Recommendations: []string{"pair with a mentor"}}, false, nil
}

func (f *fakeCohortService) Compare(ctx context.Context, req dto.CompareCohortsRequest) (*dto.CompareCohortsResponse, error) {
	f.compareCalls++
	f.lastCompare = req
	return &dto.CompareCohortsResponse{GroupASize: len(req.GroupA), GroupBSize: len(req.GroupB)}, nil
}

func TestCohortHandlerSegmentsReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewCohortHandler(&fakeCohortService{segmentsHit: true})

	c, w := newGinContext(http.MethodGet, "/cohorts/segments", nil)
	h.Segments(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	var analysis models.SegmentAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &analysis))
	assert.Equal(t, 2, analysis.StarCount)
}

func TestCohortHandlerSegmentsInsufficientData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewCohortHandler(&fakeCohortService{segmentsErr: appErrors.Clone(appErrors.ErrInsufficientData, "need at least 4 tutors")})

	c, w := newGinContext(http.MethodGet, "/cohorts/segments", nil)
	h.Segments(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCohortHandlerFirstSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewCohortHandler(&fakeCohortService{})

	c, w := newGinContext(http.MethodGet, "/cohorts/first-session", nil)
	h.FirstSessions(c)

	require.Equal(t, http.StatusOK, w.Code)
	var analysis models.FirstSessionAnalysis
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &analysis))
	assert.Equal(t, 4, analysis.PoorCount)
	assert.Equal(t, []string{"pair with a mentor"}, analysis.Recommendations)
}

func TestCohortHandlerCompare(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeCohortService{}
	h := NewCohortHandler(svc)

	c, w := newGinContext(http.MethodPost, "/cohorts/compare", []byte(`{"groupA":["T1","T2"],"groupB":["T3","T4","T5"],"metrics":["avg_rating"]}`))
	h.Compare(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"T1", "T2"}, svc.lastCompare.GroupA)
	assert.Equal(t, []string{"avg_rating"}, svc.lastCompare.Metrics)
	var res dto.CompareCohortsResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &res))
	assert.Equal(t, 3, res.GroupBSize)
}

func TestCohortHandlerCompareMalformed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeCohortService{}
	h := NewCohortHandler(svc)

	c, w := newGinContext(http.MethodPost, "/cohorts/compare", []byte(`{"groupA":`))
	h.Compare(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.compareCalls)
}
