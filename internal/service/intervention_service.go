package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/dto"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
	"github.com/noah-isme/tutor-insights-api/pkg/jobs"
)

const (
	defaultCampaignBatchSize = 100
	recommendationScanLimit  = 5000

	campaignJobType = "campaign.populate"
)

// InterventionConfig tunes intervention creation.
type InterventionConfig struct {
	AppBaseURL string
	BatchSize  int
}

// campaignRoute maps an alert category or insight pattern to the template
// and segment a campaign should use.
type campaignRoute struct {
	template string
	segment  string
}

var alertCategoryRoutes = map[models.AlertCategory]campaignRoute{
	models.CategoryChurn:       {TemplateNoLogin7d, "high_churn_risk"},
	models.CategoryEngagement:  {TemplateReengagement14d, "disengaged_tutors"},
	models.CategoryQuality:     {TemplateLowEngagement, "at_risk_quality"},
	models.CategoryTechnical:   {TemplateTechnicalIssues, "technical_issues"},
	models.CategoryReliability: {TemplateHighReschedule, "high_reschedule_rate"},
}

var insightPatternRoutes = map[models.PatternType]campaignRoute{
	models.PatternEngagement:  {TemplateLowEngagement, "low_engagement"},
	models.PatternTechnical:   {TemplateTechnicalIssues, "technical_issues"},
	models.PatternExperience:  {TemplateFirstSessionPrep, "new_tutors"},
	models.PatternReliability: {TemplateHighReschedule, "high_reschedule_rate"},
	models.PatternQuality:     {TemplatePoorFirstSession, "poor_first_sessions"},
}

var alertTypeTemplates = map[string]string{
	"churn_risk_high":         TemplateNoLogin7d,
	"no_login_7d":             TemplateNoLogin7d,
	"no_sessions_14d":         TemplateReengagement14d,
	"declining_engagement":    TemplateLowEngagement,
	"low_rating_trend":        TemplateLowEngagement,
	"technical_issues_spike":  TemplateTechnicalIssues,
	"poor_first_session":      TemplatePoorFirstSession,
	"high_reschedule_rate":    TemplateHighReschedule,
	"first_session_scheduled": TemplateFirstSessionPrep,
	noShowRiskAlertType:       TemplateHighReschedule,
}

type campaignJob struct {
	Campaign  models.Campaign
	Targets   []models.TargetTutor
	Variables map[string]string
	Channel   models.Channel
	Now       time.Time
}

// InterventionService creates outreach for single tutors and whole segments.
type InterventionService struct {
	tutors        TutorRepository
	interventions InterventionRepository
	alerts        AlertRepository
	insights      InsightRepository
	targeting     *TargetingService
	catalog       *TemplateCatalog
	thresholds    config.Thresholds
	cfg           InterventionConfig
	queue         jobDispatcher
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewInterventionService constructs an InterventionService.
func NewInterventionService(
	tutors TutorRepository,
	interventions InterventionRepository,
	alerts AlertRepository,
	insights InsightRepository,
	targeting *TargetingService,
	catalog *TemplateCatalog,
	thresholds config.Thresholds,
	cfg InterventionConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *InterventionService {
	if catalog == nil {
		catalog = NewTemplateCatalog()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultCampaignBatchSize
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterventionService{
		tutors:        tutors,
		interventions: interventions,
		alerts:        alerts,
		insights:      insights,
		targeting:     targeting,
		catalog:       catalog,
		thresholds:    thresholds,
		cfg:           cfg,
		validator:     validate,
		logger:        logger,
	}
}

// SetQueue attaches the dispatcher used by CreateCampaignAsync. The queue's
// handler is HandleCampaignJob, so it can only be wired after construction.
func (s *InterventionService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Templates returns the template catalog.
func (s *InterventionService) Templates() []models.InterventionTemplate {
	return s.catalog.List()
}

// CreateSingleIntervention renders a template for one tutor and stores the
// intervention as pending, or as draft when requested.
func (s *InterventionService) CreateSingleIntervention(ctx context.Context, req dto.CreateInterventionRequest, now time.Time) (*models.Intervention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intervention payload")
	}
	tmpl, ok := s.catalog.Get(req.TemplateID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown template %q", req.TemplateID))
	}
	agg, err := s.loadTutor(ctx, req.TutorID)
	if err != nil {
		return nil, err
	}
	ranked, err := s.rankPopulation(ctx, tmpl, req.Variables)
	if err != nil {
		return nil, err
	}
	intervention, err := s.build(*agg, tmpl, req.Variables, ranked, req.Channel, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if req.Draft {
		intervention.Status = models.InterventionDraft
	}
	if err := s.interventions.Create(ctx, &intervention); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create intervention")
	}
	return &intervention, nil
}

// CreateInterventionFromAlert creates an intervention addressing an alert.
// The template follows the alert type unless the request names one.
func (s *InterventionService) CreateInterventionFromAlert(ctx context.Context, alertID string, req dto.InterventionFromAlertRequest, now time.Time) (*models.Intervention, error) {
	alert, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "alert not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load alert")
	}
	templateID := req.TemplateID
	if templateID == "" {
		templateID = templateForAlert(*alert)
	}
	tmpl, ok := s.catalog.Get(templateID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown template %q", templateID))
	}
	agg, err := s.loadTutor(ctx, alert.TutorID)
	if err != nil {
		return nil, err
	}
	ranked, err := s.rankPopulation(ctx, tmpl, req.Variables)
	if err != nil {
		return nil, err
	}
	intervention, err := s.build(*agg, tmpl, req.Variables, ranked, models.ChannelEmail, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	intervention.AlertID = &alert.ID
	if req.Draft {
		intervention.Status = models.InterventionDraft
	}
	if err := s.interventions.Create(ctx, &intervention); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create intervention")
	}
	return &intervention, nil
}

func templateForAlert(alert models.Alert) string {
	if id, ok := alertTypeTemplates[alert.AlertType]; ok {
		return id
	}
	if route, ok := alertCategoryRoutes[alert.Category]; ok {
		return route.template
	}
	return TemplateLowEngagement
}

// CreateCampaign resolves the audience, renders the template per tutor and
// inserts the interventions batch by batch. Tutors whose template fails to
// render are reported in the summary without stopping the campaign. The
// campaign row is only stored once its audience is known.
func (s *InterventionService) CreateCampaign(ctx context.Context, req dto.CreateCampaignRequest, now time.Time) (*models.CampaignResult, error) {
	campaign, targets, err := s.prepareCampaign(ctx, req, now)
	if err != nil {
		return nil, err
	}
	if err := s.interventions.CreateCampaign(ctx, campaign); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create campaign")
	}
	return s.populateCampaign(ctx, *campaign, targets, req.Variables, req.Channel, now)
}

// CreateCampaignAsync stores the campaign and queues the per-tutor work.
func (s *InterventionService) CreateCampaignAsync(ctx context.Context, req dto.CreateCampaignRequest, now time.Time) (*dto.CampaignAcceptedResponse, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "campaign queue is not configured")
	}
	campaign, targets, err := s.prepareCampaign(ctx, req, now)
	if err != nil {
		return nil, err
	}
	if err := s.interventions.CreateCampaign(ctx, campaign); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create campaign")
	}
	job := jobs.Job{
		ID:   campaign.ID,
		Type: campaignJobType,
		Payload: campaignJob{
			Campaign:  *campaign,
			Targets:   targets,
			Variables: req.Variables,
			Channel:   req.Channel,
			Now:       now,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue campaign")
	}
	return &dto.CampaignAcceptedResponse{CampaignID: campaign.ID, EstimatedAudience: len(targets), Status: "queued"}, nil
}

// HandleCampaignJob is the jobs.Queue handler for queued campaigns. Failures
// are logged rather than returned so a partially inserted campaign is never
// retried into duplicates.
func (s *InterventionService) HandleCampaignJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(campaignJob)
	if !ok {
		s.logger.Error("unexpected campaign job payload", zap.String("job_id", job.ID))
		return nil
	}
	result, err := s.populateCampaign(ctx, payload.Campaign, payload.Targets, payload.Variables, payload.Channel, payload.Now)
	if err != nil {
		s.logger.Error("campaign population failed", zap.String("campaign_id", payload.Campaign.ID), zap.Error(err))
		return nil
	}
	s.logger.Info("campaign populated",
		zap.String("campaign_id", result.CampaignID),
		zap.Int("succeeded", result.Summary.Succeeded),
		zap.Int("failed", result.Summary.Failed),
	)
	return nil
}

// prepareCampaign validates the request and resolves its audience. Nothing is
// stored, so a failed lookup leaves no campaign behind.
func (s *InterventionService) prepareCampaign(ctx context.Context, req dto.CreateCampaignRequest, now time.Time) (*models.Campaign, []models.TargetTutor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid campaign payload")
	}
	if _, ok := s.catalog.Get(req.TemplateID); !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown template %q", req.TemplateID))
	}
	var criteria models.TargetCriteria
	if req.Segment != "" {
		seg, ok := s.targeting.Segment(req.Segment)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown segment %q", req.Segment))
		}
		criteria = seg.Criteria
	} else {
		criteria = *req.Criteria
	}
	criteria, err := s.targeting.normalize(criteria)
	if err != nil {
		return nil, nil, err
	}
	targets, err := s.targeting.FindTargetTutors(ctx, criteria)
	if err != nil {
		return nil, nil, err
	}
	if len(targets.Tutors) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "no tutors match the targeting criteria")
	}
	return &models.Campaign{
		ID:         uuid.NewString(),
		Name:       req.Name,
		TemplateID: req.TemplateID,
		Criteria:   criteria,
		CreatedBy:  req.CreatedBy,
		CreatedAt:  now,
	}, targets.Tutors, nil
}

func (s *InterventionService) populateCampaign(ctx context.Context, campaign models.Campaign, targets []models.TargetTutor, vars map[string]string, channel models.Channel, now time.Time) (*models.CampaignResult, error) {
	tmpl, ok := s.catalog.Get(campaign.TemplateID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown template %q", campaign.TemplateID))
	}
	ranked, err := s.rankPopulation(ctx, tmpl, vars)
	if err != nil {
		return nil, err
	}

	result := &models.CampaignResult{
		CampaignID:      campaign.ID,
		InterventionIDs: make([]string, 0, len(targets)),
		Summary:         models.BatchSummary{Errors: []models.BatchError{}},
	}
	pending := make([]models.Intervention, 0, s.cfg.BatchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := s.interventions.InsertBatch(ctx, pending); err != nil {
			s.logger.Warn("campaign batch insert failed",
				zap.String("campaign_id", campaign.ID),
				zap.Int("batch_size", len(pending)),
				zap.Error(err),
			)
			for _, it := range pending {
				result.Summary.Fail(it.TutorID, err)
			}
		} else {
			for _, it := range pending {
				result.InterventionIDs = append(result.InterventionIDs, it.ID)
			}
			result.Summary.Succeeded += len(pending)
		}
		pending = pending[:0]
	}

	campaignID := campaign.ID
	for _, target := range targets {
		intervention, err := s.build(target.TutorAggregate, tmpl, vars, ranked, channel, now)
		if err != nil {
			result.Summary.Fail(target.TutorID, err)
			continue
		}
		intervention.CampaignID = &campaignID
		pending = append(pending, intervention)
		if len(pending) == s.cfg.BatchSize {
			flush()
		}
	}
	flush()

	s.logger.Info("campaign created",
		zap.String("campaign_id", campaign.ID),
		zap.String("template_id", campaign.TemplateID),
		zap.Int("targets", len(targets)),
		zap.Int("succeeded", result.Summary.Succeeded),
		zap.Int("failed", result.Summary.Failed),
	)
	return result, nil
}

// GetRecommendedCampaigns proposes one campaign per open-alert category and
// per active-insight pattern, highest priority and largest audience first.
func (s *InterventionService) GetRecommendedCampaigns(ctx context.Context) ([]models.RecommendedCampaign, error) {
	unresolved := false
	alerts, _, err := s.alerts.List(ctx, models.AlertFilter{Resolved: &unresolved, Page: 1, PageSize: recommendationScanLimit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open alerts")
	}
	insights, err := s.insights.List(ctx, models.InsightFilter{Status: models.InsightActive, Limit: recommendationScanLimit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active insights")
	}

	type alertGroup struct {
		count       int
		maxSeverity models.AlertSeverity
	}
	byCategory := make(map[models.AlertCategory]*alertGroup)
	for _, a := range alerts {
		g, ok := byCategory[a.Category]
		if !ok {
			g = &alertGroup{}
			byCategory[a.Category] = g
		}
		g.count++
		if a.Severity.Rank() > g.maxSeverity.Rank() {
			g.maxSeverity = a.Severity
		}
	}

	type insightGroup struct {
		count         int
		maxConfidence float64
	}
	byPattern := make(map[models.PatternType]*insightGroup)
	for _, in := range insights {
		g, ok := byPattern[in.PatternType]
		if !ok {
			g = &insightGroup{}
			byPattern[in.PatternType] = g
		}
		g.count++
		if in.ConfidenceScore > g.maxConfidence {
			g.maxConfidence = in.ConfidenceScore
		}
	}

	out := make([]models.RecommendedCampaign, 0, len(byCategory)+len(byPattern))
	for category, g := range byCategory {
		route, ok := alertCategoryRoutes[category]
		if !ok {
			continue
		}
		rec, err := s.recommend(ctx, "alerts", string(category), route, g.count)
		if err != nil {
			return nil, err
		}
		rec.Priority = priorityForSeverity(g.maxSeverity)
		rec.Reason = fmt.Sprintf("%d open %s alerts, highest severity %s", g.count, category, g.maxSeverity)
		out = append(out, rec)
	}
	for pattern, g := range byPattern {
		route, ok := insightPatternRoutes[pattern]
		if !ok {
			continue
		}
		rec, err := s.recommend(ctx, "insights", string(pattern), route, g.count)
		if err != nil {
			return nil, err
		}
		rec.Priority = priorityForConfidence(g.maxConfidence)
		rec.Reason = fmt.Sprintf("%d active %s insights, confidence up to %.0f%%", g.count, pattern, g.maxConfidence*100)
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		if out[i].EstimatedAudience != out[j].EstimatedAudience {
			return out[i].EstimatedAudience > out[j].EstimatedAudience
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Group < out[j].Group
	})
	return out, nil
}

func (s *InterventionService) recommend(ctx context.Context, source, group string, route campaignRoute, signals int) (models.RecommendedCampaign, error) {
	rec := models.RecommendedCampaign{
		Source:      source,
		Group:       group,
		TemplateID:  route.template,
		Segment:     route.segment,
		SignalCount: signals,
	}
	seg, ok := s.targeting.Segment(route.segment)
	if !ok {
		return rec, nil
	}
	size, err := s.targeting.EstimateAudienceSize(ctx, seg.Criteria)
	if err != nil {
		return rec, err
	}
	rec.EstimatedAudience = size
	return rec, nil
}

func priorityForSeverity(sev models.AlertSeverity) models.CampaignPriority {
	switch sev {
	case models.SeverityCritical, models.SeverityHigh:
		return models.CampaignPriorityHigh
	case models.SeverityMedium:
		return models.CampaignPriorityMedium
	}
	return models.CampaignPriorityLow
}

func priorityForConfidence(c float64) models.CampaignPriority {
	switch {
	case c >= 0.95:
		return models.CampaignPriorityHigh
	case c >= 0.8:
		return models.CampaignPriorityMedium
	}
	return models.CampaignPriorityLow
}

// CampaignStats reports measured delivery outcomes of a campaign. Rates are
// fractions of sent interventions; the send rate is a fraction of all.
func (s *InterventionService) CampaignStats(ctx context.Context, campaignID string) (*models.CampaignStats, error) {
	if _, err := s.interventions.GetCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load campaign")
	}
	counts, err := s.interventions.CampaignCounts(ctx, campaignID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count campaign interventions")
	}
	stats := &models.CampaignStats{CampaignID: campaignID, Counts: *counts}
	if counts.Total > 0 {
		stats.SendRate = float64(counts.Sent) / float64(counts.Total)
	}
	if counts.Sent > 0 {
		sent := float64(counts.Sent)
		stats.OpenRate = float64(counts.Opened) / sent
		stats.ClickRate = float64(counts.Clicked) / sent
		stats.ReplyRate = float64(counts.Responded) / sent
	}
	return stats, nil
}

func (s *InterventionService) loadTutor(ctx context.Context, tutorID string) (*models.TutorAggregate, error) {
	agg, err := s.tutors.GetAggregate(ctx, tutorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	return agg, nil
}

// rankPopulation loads the active tutors a rank is computed against, only
// when the template asks for a rank the caller did not supply.
func (s *InterventionService) rankPopulation(ctx context.Context, tmpl models.InterventionTemplate, vars map[string]string) ([]models.TutorAggregate, error) {
	if _, ok := vars["rank"]; ok || !slices.Contains(tmpl.RequiredVariables, "rank") {
		return nil, nil
	}
	aggs, err := s.tutors.ListAggregates(ctx, models.TutorFilter{ActiveOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutors for ranking")
	}
	return aggs, nil
}

func (s *InterventionService) build(agg models.TutorAggregate, tmpl models.InterventionTemplate, vars map[string]string, ranked []models.TutorAggregate, channel models.Channel, now time.Time) (models.Intervention, error) {
	data := templateVariables(agg, s.cfg.AppBaseURL, s.thresholds, vars)
	if _, ok := data["rank"]; !ok {
		if rank, ok := topPercentRank(agg, ranked); ok {
			data["rank"] = rank
		}
	}
	subject, content, err := s.catalog.Render(tmpl.ID, data)
	if err != nil {
		return models.Intervention{}, err
	}
	if channel == "" {
		channel = models.ChannelEmail
	}
	templateID := tmpl.ID
	return models.Intervention{
		ID:               uuid.NewString(),
		TutorID:          agg.TutorID,
		TemplateID:       &templateID,
		InterventionType: tmpl.Type,
		Channel:          channel,
		Subject:          subject,
		Content:          content,
		Status:           models.InterventionPending,
		CreatedAt:        now,
	}, nil
}
