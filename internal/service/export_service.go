package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/export"
	"github.com/noah-isme/tutor-insights-api/pkg/storage"
)

const (
	defaultExportWindowDays = 30
	maxExportAlerts         = 5000
	exportDir               = "reports"
)

type alertExportSource interface {
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, *models.Pagination, error)
}

type riskExportSource interface {
	HighRiskSessions(ctx context.Context, now time.Time, daysAhead int, minLevel models.RiskLevel) ([]models.HighRiskSession, error)
	ReliabilityAnalysis(ctx context.Context, now time.Time, threshold float64) (*models.ReliabilityAnalysis, error)
}

type segmentExportSource interface {
	Segments(ctx context.Context) ([]models.Segment, error)
}

// ExportSources are the read models a report can be built from. A nil source
// makes its report types fail at generation time.
type ExportSources struct {
	Alerts   alertExportSource
	Risk     riskExportSource
	Segments segmentExportSource
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	Rows         int
	ExpiresAt    time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	sources ExportSources
	storage storage.Backend
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(sources ExportSources, store storage.Backend, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		sources: sources,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds dataset according to job definition and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	now := s.now()
	dataset, title, err := s.buildDataset(ctx, job, now)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(ctx, buildExportFilename(job, now), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("export generated",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		Rows:         len(dataset.Rows),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a reader over the stored file.
func (s *ExportService) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	return s.storage.Open(ctx, relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(ctx context.Context, relPath string) error {
	return s.storage.Delete(ctx, relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ctx context.Context, ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ctx, ttl)
}

func buildExportFilename(job *models.ReportJob, now time.Time) string {
	id := job.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s/%s_%s_%s.%s", exportDir, job.Type, now.Format("20060102_150405"), sanitizeFilename(id), job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob, now time.Time) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeAlerts:
		return s.buildAlertDataset(ctx, job.Params, now)
	case models.ReportTypeHighRiskSessions:
		return s.buildHighRiskDataset(ctx, job.Params, now)
	case models.ReportTypeReliability:
		return s.buildReliabilityDataset(ctx, job.Params, now)
	case models.ReportTypeSegments:
		return s.buildSegmentDataset(ctx)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildAlertDataset(ctx context.Context, params models.ReportJobParams, now time.Time) (export.Dataset, string, error) {
	if s.sources.Alerts == nil {
		return export.Dataset{}, "", fmt.Errorf("alert source not configured")
	}
	window := params.WindowDays
	if window <= 0 {
		window = defaultExportWindowDays
	}
	since := now.AddDate(0, 0, -window)
	filter := models.AlertFilter{Category: params.Category, Since: &since, Page: 1, PageSize: maxExportAlerts}
	if params.Severity != "" {
		filter.Severities = []models.AlertSeverity{params.Severity}
	}
	alerts, _, err := s.sources.Alerts.ListAlerts(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	headers := []string{"Created At", "Tutor ID", "Tutor", "Severity", "Category", "Title", "Metric", "Value", "Threshold", "State"}
	rows := make([]map[string]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, map[string]string{
			"Created At": a.CreatedAt.UTC().Format(time.RFC3339),
			"Tutor ID":   a.TutorID,
			"Tutor":      a.TutorName,
			"Severity":   string(a.Severity),
			"Category":   string(a.Category),
			"Title":      a.Title,
			"Metric":     a.Metric,
			"Value":      fmt.Sprintf("%.2f", a.MetricValue),
			"Threshold":  fmt.Sprintf("%.2f", a.Threshold),
			"State":      string(a.State()),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, fmt.Sprintf("Alerts (last %d days)", window), nil
}

func (s *ExportService) buildHighRiskDataset(ctx context.Context, params models.ReportJobParams, now time.Time) (export.Dataset, string, error) {
	if s.sources.Risk == nil {
		return export.Dataset{}, "", fmt.Errorf("risk source not configured")
	}
	sessions, err := s.sources.Risk.HighRiskSessions(ctx, now, params.DaysAhead, models.RiskMedium)
	if err != nil {
		return export.Dataset{}, "", err
	}
	headers := []string{"Session ID", "Tutor ID", "Tutor", "Subject", "Scheduled Start", "Hours Until", "Risk Score", "Risk Level", "Mitigation"}
	rows := make([]map[string]string, 0, len(sessions))
	for _, hr := range sessions {
		rows = append(rows, map[string]string{
			"Session ID":      hr.Session.SessionID,
			"Tutor ID":        hr.Session.TutorID,
			"Tutor":           hr.Session.TutorName,
			"Subject":         hr.Session.Subject,
			"Scheduled Start": hr.Session.ScheduledStart.UTC().Format(time.RFC3339),
			"Hours Until":     fmt.Sprintf("%.1f", hr.HoursUntil),
			"Risk Score":      fmt.Sprintf("%.3f", hr.Assessment.RiskScore),
			"Risk Level":      string(hr.Assessment.RiskLevel),
			"Mitigation":      hr.Assessment.MitigationText,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, "High-Risk Sessions", nil
}

func (s *ExportService) buildReliabilityDataset(ctx context.Context, params models.ReportJobParams, now time.Time) (export.Dataset, string, error) {
	if s.sources.Risk == nil {
		return export.Dataset{}, "", fmt.Errorf("risk source not configured")
	}
	analysis, err := s.sources.Risk.ReliabilityAnalysis(ctx, now, params.Threshold)
	if err != nil {
		return export.Dataset{}, "", err
	}
	headers := []string{"Tutor ID", "Tutor", "Reschedule Rate", "No-Show Rate", "Combined Rate", "Risk Level", "Urgency", "Recommendations"}
	rows := make([]map[string]string, 0, len(analysis.HighRiskTutors))
	for _, t := range analysis.HighRiskTutors {
		rows = append(rows, map[string]string{
			"Tutor ID":        t.TutorID,
			"Tutor":           t.TutorName,
			"Reschedule Rate": formatPercent(t.RescheduleRate),
			"No-Show Rate":    formatPercent(t.NoShowRate),
			"Combined Rate":   formatPercent(t.CombinedRate),
			"Risk Level":      string(t.RiskLevel),
			"Urgency":         string(t.Urgency),
			"Recommendations": strings.Join(t.Recommendations, "; "),
		})
	}
	title := fmt.Sprintf("Reliability (threshold %s, %d of %d tutors)", formatPercent(analysis.Threshold), analysis.Overall.TutorsAboveThreshold, analysis.Overall.TotalTutorsAnalyzed)
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

func (s *ExportService) buildSegmentDataset(ctx context.Context) (export.Dataset, string, error) {
	if s.sources.Segments == nil {
		return export.Dataset{}, "", fmt.Errorf("segment source not configured")
	}
	segments, err := s.sources.Segments.Segments(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].EstimatedSize > segments[j].EstimatedSize })
	headers := []string{"Segment", "Description", "Estimated Size", "Recommended Template"}
	rows := make([]map[string]string, 0, len(segments))
	for _, seg := range segments {
		rows = append(rows, map[string]string{
			"Segment":              seg.Name,
			"Description":          seg.Description,
			"Estimated Size":       fmt.Sprintf("%d", seg.EstimatedSize),
			"Recommended Template": seg.RecommendedTemplate,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, "Tutor Segments", nil
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
