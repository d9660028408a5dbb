package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/internal/service"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
	"github.com/noah-isme/tutor-insights-api/pkg/export"
	"github.com/noah-isme/tutor-insights-api/pkg/response"
)

type trendService interface {
	EngagementTrend(ctx context.Context, q service.TrendQuery, now time.Time) (*models.EngagementTrend, bool, error)
	Anomalies(ctx context.Context, q service.AnomalyQuery, now time.Time) ([]models.AnomalyPoint, error)
	Seasonal(ctx context.Context, q service.TrendQuery, groupBy models.SeasonalGrouping, now time.Time) (*models.SeasonalRanking, error)
	Cohorts(ctx context.Context, q service.TrendQuery, groupBy service.CohortGrouping, now time.Time) ([]models.CohortSeries, error)
	Retention(ctx context.Context, start time.Time, periodDays, periods int) (*models.RetentionCurve, error)
}

type chartRenderer interface {
	Render(title, subtitle string, series []export.ChartSeries) ([]byte, error)
}

// TrendHandler exposes time-series analytics.
type TrendHandler struct {
	trends trendService
	charts chartRenderer
}

// NewTrendHandler constructs the trend handler.
func NewTrendHandler(trends trendService, charts chartRenderer) *TrendHandler {
	return &TrendHandler{trends: trends, charts: charts}
}

// Engagement godoc
// @Summary Metric trend
// @Description Bucketed metric series with moving average and least-squares trend
// @Tags Trends
// @Produce json
// @Param metric query string false "engagement, empathy, clarity, satisfaction or rating"
// @Param days query int false "Lookback in days (default 90)"
// @Param maWindow query int false "Moving average window (default 4)"
// @Param tutorId query string false "Restrict to one tutor"
// @Param granularity query string false "week or day"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /trends/engagement [get]
func (h *TrendHandler) Engagement(c *gin.Context) {
	q, err := parseTrendQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	trend, cacheHit, err := h.trends.EngagementTrend(c.Request.Context(), q, start.UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trend, nil, withTiming(c, start, cacheHit))
}

// EngagementChart godoc
// @Summary Metric trend chart
// @Description Same series as /trends/engagement rendered as an HTML line chart
// @Tags Trends
// @Produce html
// @Param metric query string false "Metric"
// @Param days query int false "Lookback in days"
// @Param maWindow query int false "Moving average window"
// @Param tutorId query string false "Restrict to one tutor"
// @Success 200 {string} string "HTML document"
// @Router /trends/engagement/chart [get]
func (h *TrendHandler) EngagementChart(c *gin.Context) {
	if h.charts == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "chart rendering is not configured"))
		return
	}
	q, err := parseTrendQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	trend, _, err := h.trends.EngagementTrend(c.Request.Context(), q, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(trend.Series) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrInsufficientData, "no observations in the requested window"))
		return
	}

	subtitle := fmt.Sprintf("%s trend, %s", trend.Trend.Direction, trend.Trend.Summary)
	if trend.TutorID != "" {
		subtitle = "tutor " + trend.TutorID + ": " + subtitle
	}
	html, err := h.charts.Render(fmt.Sprintf("%s by %s", trend.Metric, trend.Granularity), subtitle, []export.ChartSeries{
		{Name: string(trend.Metric), Points: chartPoints(trend.Series)},
		{Name: "moving average", Points: chartPoints(trend.MovingAverage), Dashed: true},
	})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render chart"))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// Anomalies godoc
// @Summary Metric anomalies
// @Tags Trends
// @Produce json
// @Param metric query string false "Metric"
// @Param days query int false "Lookback in days"
// @Param window query int false "Baseline window"
// @Param multiplier query number false "Standard deviation multiplier (default 2)"
// @Param minHistory query int false "Points required before flagging (default 7)"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /trends/anomalies [get]
func (h *TrendHandler) Anomalies(c *gin.Context) {
	q, err := parseTrendQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	aq := service.AnomalyQuery{TrendQuery: q}
	if aq.Window, err = queryInt(c, "window", 0); err != nil {
		response.Error(c, err)
		return
	}
	if aq.Multiplier, err = queryFloat(c, "multiplier", 0); err != nil {
		response.Error(c, err)
		return
	}
	if aq.MinHistory, err = queryInt(c, "minHistory", 0); err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	points, err := h.trends.Anomalies(c.Request.Context(), aq, start.UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, nil, withTiming(c, start, false))
}

// Seasonal godoc
// @Summary Seasonal patterns
// @Tags Trends
// @Produce json
// @Param metric query string false "Metric"
// @Param groupBy query string false "day_of_week or hour"
// @Param days query int false "Lookback in days"
// @Success 200 {object} response.Envelope
// @Router /trends/seasonal [get]
func (h *TrendHandler) Seasonal(c *gin.Context) {
	q, err := parseTrendQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	groupBy := models.SeasonalGrouping(c.DefaultQuery("groupBy", string(models.GroupByDayOfWeek)))
	start := time.Now()
	ranking, err := h.trends.Seasonal(c.Request.Context(), q, groupBy, start.UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranking, nil, withTiming(c, start, false))
}

// Cohorts godoc
// @Summary Cohort trend series
// @Tags Trends
// @Produce json
// @Param metric query string false "Metric"
// @Param groupBy query string false "primary_subject, certification_level or churn_risk_level"
// @Param days query int false "Lookback in days"
// @Success 200 {object} response.Envelope
// @Router /trends/cohorts [get]
func (h *TrendHandler) Cohorts(c *gin.Context) {
	q, err := parseTrendQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	groupBy := service.CohortGrouping(c.DefaultQuery("groupBy", string(service.CohortBySubject)))
	start := time.Now()
	series, err := h.trends.Cohorts(c.Request.Context(), q, groupBy, start.UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, nil, withTiming(c, start, false))
}

// Retention godoc
// @Summary Cohort retention curve
// @Tags Trends
// @Produce json
// @Param start query string true "Cohort start date (YYYY-MM-DD or RFC3339)"
// @Param periodDays query int false "Period length in days (default 7)"
// @Param periods query int false "Number of periods (default 12)"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /trends/retention [get]
func (h *TrendHandler) Retention(c *gin.Context) {
	cohortStart, err := queryTime(c, "start")
	if err != nil {
		response.Error(c, err)
		return
	}
	if cohortStart == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start is required"))
		return
	}
	periodDays, err := queryInt(c, "periodDays", 7)
	if err != nil {
		response.Error(c, err)
		return
	}
	periods, err := queryInt(c, "periods", 12)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	curve, err := h.trends.Retention(c.Request.Context(), *cohortStart, periodDays, periods)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, curve, nil, withTiming(c, start, false))
}

func parseTrendQuery(c *gin.Context) (service.TrendQuery, error) {
	q := service.TrendQuery{
		Metric:      models.MetricType(c.Query("metric")),
		TutorID:     c.Query("tutorId"),
		Granularity: models.Granularity(c.Query("granularity")),
	}
	var err error
	if q.Days, err = queryInt(c, "days", 0); err != nil {
		return q, err
	}
	if q.MAWindow, err = queryInt(c, "maWindow", 0); err != nil {
		return q, err
	}
	return q, nil
}

func chartPoints(points []models.MetricPoint) []export.ChartPoint {
	out := make([]export.ChartPoint, 0, len(points))
	for _, p := range points {
		out = append(out, export.ChartPoint{Time: p.Timestamp, Value: p.Value})
	}
	return out
}
