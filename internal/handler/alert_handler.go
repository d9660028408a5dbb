package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-insights-api/internal/dto"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
	"github.com/noah-isme/tutor-insights-api/pkg/response"
)

type alertService interface {
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, *models.Pagination, error)
	AlertStatistics(ctx context.Context, windowDays int, now time.Time) (*models.AlertStatistics, error)
	HighPriorityAlerts(ctx context.Context, limit int) ([]models.Alert, error)
	TutorAlerts(ctx context.Context, tutorID string, includeResolved bool, limit int) (*models.TutorAlerts, error)
	AcknowledgeAlert(ctx context.Context, id, actor string, now time.Time) (*models.Alert, error)
	ResolveAlert(ctx context.Context, id string, now time.Time) (*models.Alert, error)
}

type alertInterventionCreator interface {
	CreateInterventionFromAlert(ctx context.Context, alertID string, req dto.InterventionFromAlertRequest, now time.Time) (*models.Intervention, error)
}

// AlertHandler exposes the alert lifecycle.
type AlertHandler struct {
	alerts        alertService
	interventions alertInterventionCreator
}

// NewAlertHandler constructs the alert handler.
func NewAlertHandler(alerts alertService, interventions alertInterventionCreator) *AlertHandler {
	return &AlertHandler{alerts: alerts, interventions: interventions}
}

// List godoc
// @Summary List alerts
// @Tags Alerts
// @Produce json
// @Param severity query string false "Comma separated severities"
// @Param category query string false "Category"
// @Param tutorId query string false "Tutor ID"
// @Param acknowledged query bool false "Acknowledged flag"
// @Param resolved query bool false "Resolved flag"
// @Param since query string false "Created at or after (RFC3339)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	filter, err := parseAlertFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	alerts, pagination, err := h.alerts.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, pagination)
}

// Statistics godoc
// @Summary Alert statistics over a trailing window
// @Tags Alerts
// @Produce json
// @Param windowDays query int false "Window in days (default 7)"
// @Success 200 {object} response.Envelope
// @Router /alerts/statistics [get]
func (h *AlertHandler) Statistics(c *gin.Context) {
	windowDays, err := queryInt(c, "windowDays", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.alerts.AlertStatistics(c.Request.Context(), windowDays, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// HighPriority godoc
// @Summary Open critical and high alerts
// @Tags Alerts
// @Produce json
// @Param limit query int false "Maximum alerts"
// @Success 200 {object} response.Envelope
// @Router /alerts/high-priority [get]
func (h *AlertHandler) HighPriority(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	alerts, err := h.alerts.HighPriorityAlerts(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// TutorAlerts godoc
// @Summary Alerts for one tutor with priority score
// @Tags Alerts
// @Produce json
// @Param tutorId path string true "Tutor ID"
// @Param includeResolved query bool false "Include resolved alerts"
// @Param limit query int false "Maximum alerts"
// @Success 200 {object} response.Envelope
// @Router /alerts/tutors/{tutorId} [get]
func (h *AlertHandler) TutorAlerts(c *gin.Context) {
	includeResolved, err := queryBool(c, "includeResolved")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.alerts.TutorAlerts(c.Request.Context(), c.Param("tutorId"), includeResolved != nil && *includeResolved, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Acknowledge godoc
// @Summary Acknowledge an alert
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /alerts/{id}/acknowledge [post]
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	alert, err := h.alerts.AcknowledgeAlert(c.Request.Context(), c.Param("id"), claims.OperatorID, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}

// Resolve godoc
// @Summary Resolve an alert
// @Description Resolving an already resolved alert returns it unchanged
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /alerts/{id}/resolve [post]
func (h *AlertHandler) Resolve(c *gin.Context) {
	alert, err := h.alerts.ResolveAlert(c.Request.Context(), c.Param("id"), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}

// CreateIntervention godoc
// @Summary Create an intervention for the alert's tutor
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param payload body dto.InterventionFromAlertRequest false "Template override and variables"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /alerts/{id}/intervention [post]
func (h *AlertHandler) CreateIntervention(c *gin.Context) {
	if h.interventions == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.InterventionFromAlertRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intervention payload"))
			return
		}
	}
	intervention, err := h.interventions.CreateInterventionFromAlert(c.Request.Context(), c.Param("id"), req, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, intervention)
}

func parseAlertFilter(c *gin.Context) (models.AlertFilter, error) {
	filter := models.AlertFilter{
		TutorID:  c.Query("tutorId"),
		Category: models.AlertCategory(c.Query("category")),
	}
	if raw := c.Query("severity"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Severities = append(filter.Severities, models.AlertSeverity(strings.ToLower(part)))
			}
		}
	}
	var err error
	if filter.Acknowledged, err = queryBool(c, "acknowledged"); err != nil {
		return filter, err
	}
	if filter.Resolved, err = queryBool(c, "resolved"); err != nil {
		return filter, err
	}
	if filter.Since, err = queryTime(c, "since"); err != nil {
		return filter, err
	}
	if filter.Page, err = queryInt(c, "page", 1); err != nil {
		return filter, err
	}
	if filter.PageSize, err = queryInt(c, "pageSize", 0); err != nil {
		return filter, err
	}
	if filter.PageSize > 200 {
		filter.PageSize = 200
	}
	return filter, nil
}
