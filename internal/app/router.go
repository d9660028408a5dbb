package app

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/tutor-insights-api/internal/handler"
	"github.com/noah-isme/tutor-insights-api/internal/middleware"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
	"github.com/noah-isme/tutor-insights-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-insights-api/pkg/middleware/cors"
	ratelimitmiddleware "github.com/noah-isme/tutor-insights-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/tutor-insights-api/pkg/middleware/requestid"
	securemiddleware "github.com/noah-isme/tutor-insights-api/pkg/middleware/secure"
	"github.com/noah-isme/tutor-insights-api/pkg/response"
)

// NewRouter builds the HTTP engine with every route mounted.
func (c *Container) NewRouter() *gin.Engine {
	cfg := c.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(securemiddleware.New(cfg.Env != config.EnvProduction))
	r.Use(middleware.Metrics(c.Metrics))
	r.Use(middleware.WithResponseMeta())

	checks := map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return c.DB.PingContext(ctx) },
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	metricsHandler := handler.NewMetricsHandler(c.Metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(c.Auth)
	trendHandler := handler.NewTrendHandler(c.Trends, c.Charts)
	riskHandler := handler.NewRiskHandler(c.Risk)
	cohortHandler := handler.NewCohortHandler(c.Cohorts)
	alertHandler := handler.NewAlertHandler(c.Alerts, c.Interventions)
	targetingHandler := handler.NewTargetingHandler(c.Targeting)
	interventionHandler := handler.NewInterventionHandler(c.Interventions)
	insightHandler := handler.NewInsightHandler(c.Insights)
	reportHandler := handler.NewReportHandler(c.Reports, c.Logger)
	cronHandler := handler.NewCronHandler(c.Jobs)

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	api := r.Group(prefix)
	api.Use(ratelimitmiddleware.PerMinute(cfg.RateLimit.APIPerMinute))

	auth := api.Group("/auth")
	auth.POST("/login", ratelimitmiddleware.PerMinute(cfg.RateLimit.LoginPerMinute), authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	api.GET("/export/:token", reportHandler.DownloadReport)

	cron := api.Group("/cron", middleware.CronSecret(cfg.Cron.Secret))
	cron.POST("/alerts", cronHandler.Alerts)
	cron.POST("/deliveries", cronHandler.Deliveries)
	cron.POST("/insights", cronHandler.Insights)
	cron.POST("/high-risk", cronHandler.HighRisk)

	secured := api.Group("")
	secured.Use(middleware.JWT(c.Auth))
	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/metrics/summary", metricsHandler.Summary)

	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(c.Operators, c.Logger, action, resource)
	}
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	anyOperator := middleware.RequireRoles(models.RoleAdmin, models.RoleAnalyst)

	trends := secured.Group("/trends", anyOperator)
	trends.GET("/engagement", trendHandler.Engagement)
	trends.GET("/engagement/chart", trendHandler.EngagementChart)
	trends.GET("/anomalies", trendHandler.Anomalies)
	trends.GET("/seasonal", trendHandler.Seasonal)
	trends.GET("/cohorts", trendHandler.Cohorts)
	trends.GET("/retention", trendHandler.Retention)

	risk := secured.Group("/risk", anyOperator)
	risk.GET("/sessions", riskHandler.HighRiskSessions)
	risk.GET("/sessions/:id", riskHandler.SessionRisk)
	risk.GET("/reliability", riskHandler.Reliability)

	cohorts := secured.Group("/cohorts", anyOperator)
	cohorts.GET("/segments", cohortHandler.Segments)
	cohorts.GET("/first-session", cohortHandler.FirstSessions)
	cohorts.POST("/compare", cohortHandler.Compare)

	alerts := secured.Group("/alerts", anyOperator)
	alerts.GET("", alertHandler.List)
	alerts.GET("/statistics", alertHandler.Statistics)
	alerts.GET("/high-priority", alertHandler.HighPriority)
	alerts.GET("/tutors/:tutorId", alertHandler.TutorAlerts)
	alerts.POST("/:id/acknowledge", audit("ALERT_ACKNOWLEDGE", "alert"), alertHandler.Acknowledge)
	alerts.POST("/:id/resolve", audit("ALERT_RESOLVE", "alert"), alertHandler.Resolve)
	alerts.POST("/:id/intervention", adminOnly, audit("INTERVENTION_CREATE", "alert"), alertHandler.CreateIntervention)

	targeting := secured.Group("/targeting", anyOperator)
	targeting.POST("/search", targetingHandler.Search)
	targeting.POST("/preview", targetingHandler.Preview)
	targeting.GET("/segments", targetingHandler.Segments)

	interventions := secured.Group("/interventions")
	interventions.GET("/templates", anyOperator, interventionHandler.Templates)
	interventions.POST("", adminOnly, audit("INTERVENTION_CREATE", "intervention"), interventionHandler.Create)

	campaigns := secured.Group("/campaigns")
	campaigns.POST("", adminOnly, audit("CAMPAIGN_CREATE", "campaign"), interventionHandler.CreateCampaign)
	campaigns.GET("/recommended", anyOperator, interventionHandler.Recommended)
	campaigns.GET("/:id/stats", anyOperator, interventionHandler.CampaignStats)

	insights := secured.Group("/insights")
	insights.GET("", anyOperator, insightHandler.List)
	insights.GET("/stats", anyOperator, insightHandler.Stats)
	insights.POST("", adminOnly, audit("INSIGHT_CREATE", "insight"), insightHandler.Create)
	insights.PATCH("/:id", adminOnly, audit("INSIGHT_UPDATE", "insight"), insightHandler.Update)

	reports := secured.Group("/reports", anyOperator)
	reports.POST("", reportHandler.GenerateReport)
	reports.GET("/:id", reportHandler.ReportStatus)

	r.NoRoute(func(ctx *gin.Context) {
		response.Error(ctx, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})
	return r
}
