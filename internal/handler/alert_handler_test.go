package handler

import (
	"context"
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

type fakeAlertService struct {
	lastFilter  models.AlertFilter
	lastActor   string
	ackErr      error
	ackCalls    int
	resolveCall int
}

func (f *fakeAlertService) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.Alert{{ID: "a-1", TutorID: "T1", Severity: models.SeverityHigh}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (f *fakeAlertService) AlertStatistics(ctx context.Context, windowDays int, now time.Time) (*models.AlertStatistics, error) {
	return &models.AlertStatistics{}, nil
}

func (f *fakeAlertService) HighPriorityAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	return nil, nil
}

func (f *fakeAlertService) TutorAlerts(ctx context.Context, tutorID string, includeResolved bool, limit int) (*models.TutorAlerts, error) {
	return &models.TutorAlerts{TutorID: tutorID}, nil
}

func (f *fakeAlertService) AcknowledgeAlert(ctx context.Context, id, actor string, now time.Time) (*models.Alert, error) {
	f.ackCalls++
	f.lastActor = actor
	if f.ackErr != nil {
		return nil, f.ackErr
	}
	return &models.Alert{ID: id, IsAcknowledged: true}, nil
}

func (f *fakeAlertService) ResolveAlert(ctx context.Context, id string, now time.Time) (*models.Alert, error) {
	f.resolveCall++
	return &models.Alert{ID: id, IsResolved: true}, nil
}

type fakeAlertInterventions struct {
	lastAlertID string
	lastReq     dto.InterventionFromAlertRequest
}

func (f *fakeAlertInterventions) CreateInterventionFromAlert(ctx context.Context, alertID string, req dto.InterventionFromAlertRequest, now time.Time) (*models.Intervention, error) {
	f.lastAlertID = alertID
	f.lastReq = req
	return &models.Intervention{ID: "i-1", TutorID: "T1"}, nil
}

func TestAlertHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeAlertService{}
	handler := NewAlertHandler(svc, nil)

	c, w := newGinContext(http.MethodGet, "/alerts?severity=Critical,%20high&acknowledged=false&since=2024-03-01&pageSize=500&category=churn", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.AlertSeverity{models.SeverityCritical, models.SeverityHigh}, svc.lastFilter.Severities)
	require.NotNil(t, svc.lastFilter.Acknowledged)
	assert.False(t, *svc.lastFilter.Acknowledged)
	assert.Nil(t, svc.lastFilter.Resolved)
	require.NotNil(t, svc.lastFilter.Since)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *svc.lastFilter.Since)
	assert.Equal(t, 1, svc.lastFilter.Page)
	assert.Equal(t, 200, svc.lastFilter.PageSize)
	assert.Equal(t, models.AlertCategory("churn"), svc.lastFilter.Category)

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestAlertHandlerListRejectsBadBool(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAlertHandler(&fakeAlertService{}, nil)

	c, w := newGinContext(http.MethodGet, "/alerts?resolved=maybe", nil)
	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
}

func TestAlertHandlerAcknowledge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeAlertService{}
	handler := NewAlertHandler(svc, nil)

	c, w := newGinContext(http.MethodPost, "/alerts/a-1/acknowledge", nil)
	c.Params = gin.Params{{Key: "id", Value: "a-1"}}
	handler.Acknowledge(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, svc.ackCalls)

	c, w = newGinContext(http.MethodPost, "/alerts/a-1/acknowledge", nil)
	c.Params = gin.Params{{Key: "id", Value: "a-1"}}
	withOperator(c, "op-7", models.RoleAdmin)
	handler.Acknowledge(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "op-7", svc.lastActor)

	var alert models.Alert
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &alert))
	assert.True(t, alert.IsAcknowledged)
}

func TestAlertHandlerAcknowledgeNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAlertHandler(&fakeAlertService{ackErr: appErrors.ErrNotFound}, nil)

	c, w := newGinContext(http.MethodPost, "/alerts/missing/acknowledge", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	withOperator(c, "op-7", models.RoleAdmin)
	handler.Acknowledge(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlertHandlerCreateInterventionWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	interventions := &fakeAlertInterventions{}
	handler := NewAlertHandler(&fakeAlertService{}, interventions)

	c, w := newGinContext(http.MethodPost, "/alerts/a-1/intervention", nil)
	c.Params = gin.Params{{Key: "id", Value: "a-1"}}
	handler.CreateIntervention(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "a-1", interventions.lastAlertID)
	assert.Empty(t, interventions.lastReq.TemplateID)
}

func TestAlertHandlerCreateInterventionWithTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	interventions := &fakeAlertInterventions{}
	handler := NewAlertHandler(&fakeAlertService{}, interventions)

	c, w := newGinContext(http.MethodPost, "/alerts/a-1/intervention", []byte(`{"templateId":"quality_coaching"}`))
	c.Params = gin.Params{{Key: "id", Value: "a-1"}}
	handler.CreateIntervention(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "quality_coaching", interventions.lastReq.TemplateID)
}
