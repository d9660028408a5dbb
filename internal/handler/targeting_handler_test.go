package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

type fakeTargetingService struct {
	lastCriteria models.TargetCriteria
}

func (f *fakeTargetingService) FindTargetTutors(ctx context.Context, criteria models.TargetCriteria) (*models.TargetingResult, error) {
	f.lastCriteria = criteria
	return &models.TargetingResult{}, nil
}

func (f *fakeTargetingService) PreviewTargeting(ctx context.Context, criteria models.TargetCriteria) (*models.TargetingPreview, error) {
	f.lastCriteria = criteria
	return &models.TargetingPreview{}, nil
}

func (f *fakeTargetingService) Segments(ctx context.Context) ([]models.Segment, error) {
	return nil, nil
}

func (f *fakeTargetingService) Segment(name string) (models.Segment, bool) {
	if name != "high_churn" {
		return models.Segment{}, false
	}
	return models.Segment{
		Name:     name,
		Criteria: models.TargetCriteria{ChurnRiskLevels: []models.ChurnRiskLevel{models.ChurnRiskHigh}, Limit: 100},
	}, true
}

func TestTargetingHandlerSearchOverlaysSegment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeTargetingService{}
	handler := NewTargetingHandler(svc)

	body := `{"segment":"high_churn","criteria":{"primary_subjects":["math"],"limit":10}}`
	c, w := newGinContext(http.MethodPost, "/targeting/search", []byte(body))
	handler.Search(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.ChurnRiskLevel{models.ChurnRiskHigh}, svc.lastCriteria.ChurnRiskLevels)
	assert.Equal(t, []string{"math"}, svc.lastCriteria.PrimarySubjects)
	assert.Equal(t, 10, svc.lastCriteria.Limit)
}

func TestTargetingHandlerPreviewUnknownSegment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTargetingHandler(&fakeTargetingService{})

	c, w := newGinContext(http.MethodPost, "/targeting/preview", []byte(`{"segment":"nope"}`))
	handler.Preview(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `unknown segment \"nope\"`)
}

func TestTargetingHandlerCriteriaOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeTargetingService{}
	handler := NewTargetingHandler(svc)

	c, w := newGinContext(http.MethodPost, "/targeting/search", []byte(`{"criteria":{"days_since_login":{"min":14}}}`))
	handler.Search(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastCriteria.DaysSinceLogin)
	require.NotNil(t, svc.lastCriteria.DaysSinceLogin.Min)
	assert.Equal(t, 14, *svc.lastCriteria.DaysSinceLogin.Min)
	assert.Empty(t, svc.lastCriteria.ChurnRiskLevels)
}
