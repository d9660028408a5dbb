package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

func contains[T comparable](items []T, v T) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}

// matchesCriteria mirrors the WHERE clause built by the SQL repository.
func matchesCriteria(agg models.TutorAggregate, c models.TargetCriteria) bool {
	if len(c.ChurnRiskLevels) > 0 && !contains(c.ChurnRiskLevels, agg.ChurnRiskLevel) {
		return false
	}
	if len(c.PrimarySubjects) > 0 && !contains(c.PrimarySubjects, agg.PrimarySubject) {
		return false
	}
	if len(c.CertificationLevels) > 0 && !contains(c.CertificationLevels, agg.CertificationLevel) {
		return false
	}
	if c.MonthsExperience.IsSet() && !c.MonthsExperience.Contains(agg.MonthsExperience) {
		return false
	}
	if c.AvgEngagement.IsSet() && (!agg.AvgEngagement.Valid || !c.AvgEngagement.Contains(agg.AvgEngagement.Float64)) {
		return false
	}
	if c.AvgRating.IsSet() && (!agg.AvgRating.Valid || !c.AvgRating.Contains(agg.AvgRating.Float64)) {
		return false
	}
	if c.DaysSinceLogin.IsSet() && (!agg.DaysSinceLogin.Valid || !c.DaysSinceLogin.Contains(agg.DaysSinceLogin.Int)) {
		return false
	}
	if c.Sessions7d.IsSet() && !c.Sessions7d.Contains(agg.Sessions7d) {
		return false
	}
	if c.TechnicalIssueRate.IsSet() && (!agg.TechnicalIssueRate.Valid || !c.TechnicalIssueRate.Contains(agg.TechnicalIssueRate.Float64)) {
		return false
	}
	if c.RescheduleRate.IsSet() && (!agg.RescheduleRate.Valid || !c.RescheduleRate.Contains(agg.RescheduleRate.Float64)) {
		return false
	}
	if c.PoorFirstSession != nil && agg.PoorFirstSession != *c.PoorFirstSession {
		return false
	}
	if c.ActiveStatus != nil && agg.IsActive != *c.ActiveStatus {
		return false
	}
	return true
}

type fakeTutorRepo struct {
	mu         sync.Mutex
	aggregates []models.TutorAggregate
	activity   []models.TutorActivity
	listErr    error
	findErr    error
	listCalls  int
	findCalls  int
	lastFilter models.TutorFilter
}

func (f *fakeTutorRepo) ListAggregates(_ context.Context, filter models.TutorFilter) ([]models.TutorAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.TutorAggregate, 0, len(f.aggregates))
	for _, agg := range f.aggregates {
		if filter.ActiveOnly && !agg.IsActive {
			continue
		}
		if len(filter.TutorIDs) > 0 && !contains(filter.TutorIDs, agg.TutorID) {
			continue
		}
		if filter.Subject != "" && agg.PrimarySubject != filter.Subject {
			continue
		}
		out = append(out, agg)
	}
	return out, nil
}

func (f *fakeTutorRepo) GetAggregate(_ context.Context, tutorID string) (*models.TutorAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, agg := range f.aggregates {
		if agg.TutorID == tutorID {
			cp := agg
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTutorRepo) FindByCriteria(_ context.Context, criteria models.TargetCriteria) ([]models.TutorAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.TutorAggregate
	for _, agg := range f.aggregates {
		if matchesCriteria(agg, criteria) {
			out = append(out, agg)
		}
		if criteria.Limit > 0 && len(out) == criteria.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeTutorRepo) CountByCriteria(_ context.Context, criteria models.TargetCriteria) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return 0, f.findErr
	}
	count := 0
	for _, agg := range f.aggregates {
		if matchesCriteria(agg, criteria) {
			count++
		}
	}
	return count, nil
}

func (f *fakeTutorRepo) ListActivity(_ context.Context, from, to time.Time) ([]models.TutorActivity, error) {
	var out []models.TutorActivity
	for _, a := range f.activity {
		if !a.CreatedAt.Before(from) && a.CreatedAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSessionRepo struct {
	sessions   []models.Session
	upcoming   []models.UpcomingSession
	listErr    error
	listCalls  int
	lastFilter models.SessionFilter
}

func (f *fakeSessionRepo) List(_ context.Context, filter models.SessionFilter) ([]models.Session, error) {
	f.listCalls++
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Session
	for _, s := range f.sessions {
		if filter.TutorID != "" && s.TutorID != filter.TutorID {
			continue
		}
		if len(filter.TutorIDs) > 0 && !contains(filter.TutorIDs, s.TutorID) {
			continue
		}
		if filter.From != nil && s.ScheduledStart.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !s.ScheduledStart.Before(*filter.To) {
			continue
		}
		if filter.FirstSessionOnly && !s.IsFirstSession {
			continue
		}
		if filter.Completed != nil && s.Completed != *filter.Completed {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessionRepo) Upcoming(_ context.Context, from, to time.Time) ([]models.UpcomingSession, error) {
	var out []models.UpcomingSession
	for _, u := range f.upcoming {
		if !u.ScheduledStart.Before(from) && u.ScheduledStart.Before(to) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) GetUpcoming(_ context.Context, id string) (*models.UpcomingSession, error) {
	for _, u := range f.upcoming {
		if u.SessionID == id {
			cp := u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

// fakeAlertStore enforces the open-alert uniqueness constraint under a lock,
// the way the partial unique index does in Postgres.
type fakeAlertStore struct {
	mu          sync.Mutex
	rows        []*models.Alert
	insertCalls int
	failFind    map[string]error
}

func (f *fakeAlertStore) InsertIfAbsent(_ context.Context, alert *models.Alert) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	for _, row := range f.rows {
		if row.Key() == alert.Key() && !row.IsResolved {
			return false, nil
		}
	}
	cp := *alert
	f.rows = append(f.rows, &cp)
	return true, nil
}

func (f *fakeAlertStore) FindLatest(_ context.Context, key models.AlertKey) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFind[key.TutorID]; err != nil {
		return nil, err
	}
	var latest *models.Alert
	for _, row := range f.rows {
		if row.Key() != key {
			continue
		}
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeAlertStore) GetByID(_ context.Context, id string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			cp := *row
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAlertStore) Acknowledge(_ context.Context, id, actor string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id && !row.IsAcknowledged && !row.IsResolved {
			row.IsAcknowledged = true
			row.AcknowledgedBy = &actor
			row.AcknowledgedAt = &at
		}
	}
	return nil
}

func (f *fakeAlertStore) Resolve(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id && !row.IsResolved {
			row.IsResolved = true
			row.ResolvedAt = &at
		}
	}
	return nil
}

func (f *fakeAlertStore) List(_ context.Context, filter models.AlertFilter) ([]models.Alert, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, row := range f.rows {
		if filter.TutorID != "" && row.TutorID != filter.TutorID {
			continue
		}
		if len(filter.Severities) > 0 && !contains(filter.Severities, row.Severity) {
			continue
		}
		if filter.Category != "" && row.Category != filter.Category {
			continue
		}
		if filter.Acknowledged != nil && row.IsAcknowledged != *filter.Acknowledged {
			continue
		}
		if filter.Resolved != nil && row.IsResolved != *filter.Resolved {
			continue
		}
		if filter.Since != nil && row.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, *row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	total := len(out)
	if filter.PageSize > 0 && len(out) > filter.PageSize {
		out = out[:filter.PageSize]
	}
	return out, total, nil
}

func (f *fakeAlertStore) ListSince(_ context.Context, since time.Time) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, row := range f.rows {
		if !row.CreatedAt.Before(since) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) unresolvedByKey() map[models.AlertKey]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[models.AlertKey]int{}
	for _, row := range f.rows {
		if !row.IsResolved {
			counts[row.Key()]++
		}
	}
	return counts
}

type fakeInterventionRepo struct {
	interventions []models.Intervention
	campaigns     map[string]*models.Campaign
	counts        map[string]models.CampaignStatusCounts
	pending       []models.PendingDelivery
	batchSizes    []int
	batchErrAt    int
	sent          map[string]string
	failed        map[string]string
	createErr     error
}

func newFakeInterventionRepo() *fakeInterventionRepo {
	return &fakeInterventionRepo{
		campaigns:  map[string]*models.Campaign{},
		counts:     map[string]models.CampaignStatusCounts{},
		sent:       map[string]string{},
		failed:     map[string]string{},
		batchErrAt: -1,
	}
}

func (f *fakeInterventionRepo) Create(_ context.Context, intervention *models.Intervention) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.interventions = append(f.interventions, *intervention)
	return nil
}

func (f *fakeInterventionRepo) InsertBatch(_ context.Context, interventions []models.Intervention) error {
	if f.batchErrAt == len(f.batchSizes) {
		f.batchSizes = append(f.batchSizes, len(interventions))
		return fmt.Errorf("batch %d rejected", f.batchErrAt)
	}
	f.batchSizes = append(f.batchSizes, len(interventions))
	f.interventions = append(f.interventions, interventions...)
	return nil
}

func (f *fakeInterventionRepo) CreateCampaign(_ context.Context, campaign *models.Campaign) error {
	cp := *campaign
	f.campaigns[campaign.ID] = &cp
	return nil
}

func (f *fakeInterventionRepo) GetCampaign(_ context.Context, id string) (*models.Campaign, error) {
	if c, ok := f.campaigns[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInterventionRepo) CampaignCounts(_ context.Context, campaignID string) (*models.CampaignStatusCounts, error) {
	counts := f.counts[campaignID]
	return &counts, nil
}

func (f *fakeInterventionRepo) ListPendingDeliveries(_ context.Context, createdBefore time.Time, limit int) ([]models.PendingDelivery, error) {
	var out []models.PendingDelivery
	for _, p := range f.pending {
		if p.Channel != models.ChannelEmail {
			continue
		}
		if _, done := f.sent[p.ID]; done {
			continue
		}
		if _, done := f.failed[p.ID]; done {
			continue
		}
		if p.CreatedAt.After(createdBefore) {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeInterventionRepo) MarkSent(_ context.Context, id, externalID string, _ time.Time) error {
	f.sent[id] = externalID
	return nil
}

func (f *fakeInterventionRepo) MarkFailed(_ context.Context, id, message string, _ time.Time) error {
	f.failed[id] = message
	return nil
}

type fakeInsightRepo struct {
	items      []models.PatternInsight
	lastFilter models.InsightFilter
	createErr  error
}

func (f *fakeInsightRepo) List(_ context.Context, filter models.InsightFilter) ([]models.PatternInsight, error) {
	f.lastFilter = filter
	var out []models.PatternInsight
	for _, it := range f.items {
		if filter.Status != "" && it.Status != filter.Status {
			continue
		}
		if filter.PatternType != "" && it.PatternType != filter.PatternType {
			continue
		}
		if filter.MinConfidence != nil && it.ConfidenceScore < *filter.MinConfidence {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeInsightRepo) GetByID(_ context.Context, id string) (*models.PatternInsight, error) {
	for _, it := range f.items {
		if it.ID == id {
			cp := it
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInsightRepo) Create(_ context.Context, insight *models.PatternInsight) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.items = append(f.items, *insight)
	return nil
}

func (f *fakeInsightRepo) UpdateStatus(_ context.Context, id string, status models.InsightStatus, actionTaken *string, at time.Time) error {
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Status = status
			if actionTaken != nil {
				f.items[i].ActionTaken = actionTaken
			}
			f.items[i].UpdatedAt = at
		}
	}
	return nil
}

type fakeMailer struct {
	sent    []OutgoingEmail
	failFor map[string]error
}

func (f *fakeMailer) Send(_ context.Context, msg OutgoingEmail) (string, error) {
	if err := f.failFor[msg.To]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []models.Alert
	err      error
}

func (f *fakeNotifier) NotifyCritical(_ context.Context, alert models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, alert)
	return f.err
}

type fakeNarrator struct {
	calls int
	err   error
}

func (f *fakeNarrator) Describe(_ context.Context, finding models.CohortComparisonResult, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "narrated " + finding.Metric, nil
}

type fakeCacheRepo struct {
	store       map[string][]byte
	getErr      error
	invalidated []string
}

func (f *fakeCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	payload, ok := f.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (f *fakeCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if f.store == nil {
		f.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.store[key] = payload
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	f.invalidated = append(f.invalidated, pattern)
	return nil
}

func newTestCache(repo *fakeCacheRepo) *CacheService {
	return NewCacheService(repo, nil, time.Minute, nil, true)
}
