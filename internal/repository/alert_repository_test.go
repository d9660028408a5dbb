package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

var alertRowColumns = []string{
	"id", "tutor_id", "tutor_name", "alert_type", "severity", "category", "title", "message", "metric",
	"metric_value", "threshold", "priority", "created_at", "is_acknowledged", "acknowledged_at", "acknowledged_by", "is_resolved", "resolved_at",
}

func TestAlertRepositoryInsertIfAbsent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	alert := &models.Alert{TutorID: "T1", AlertType: "high_churn_risk", Severity: models.SeverityHigh, Category: models.CategoryChurn, Metric: "churn_probability", MetricValue: 0.8, Threshold: 0.7}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO alerts")).
		WithArgs(sqlmock.AnyArg(), "T1", "high_churn_risk", "high", "churn", "", "", "churn_probability", 0.8, 0.7, 0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a-1"))
	inserted, err := repo.InsertIfAbsent(context.Background(), alert)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, alert.ID)
	assert.False(t, alert.CreatedAt.IsZero())

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (tutor_id, metric, category) WHERE NOT is_resolved DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	inserted, err = repo.InsertIfAbsent(context.Background(), &models.Alert{TutorID: "T1", Metric: "churn_probability", Category: models.CategoryChurn})
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryFindLatest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	key := models.AlertKey{TutorID: "T1", Metric: "avg_rating", Category: models.CategoryQuality}
	resolvedAt := time.Now().Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.tutor_id = $1 AND a.metric = $2 AND a.category = $3 ORDER BY a.created_at DESC LIMIT 1")).
		WithArgs("T1", "avg_rating", "quality").
		WillReturnRows(sqlmock.NewRows(alertRowColumns).
			AddRow("a-1", "T1", "Ada", "low_rating", "medium", "quality", "Low Rating", "msg", "avg_rating", 3.1, 3.5, 60, time.Now().Add(-2*time.Hour), false, nil, nil, true, resolvedAt))

	latest, err := repo.FindLatest(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.AlertResolved, latest.State())
	assert.Equal(t, "Ada", latest.TutorName)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY a.created_at DESC LIMIT 1")).
		WillReturnError(sql.ErrNoRows)
	latest, err = repo.FindLatest(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, latest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryAcknowledgeAndResolve(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts SET is_acknowledged = TRUE, acknowledged_at = $2, acknowledged_by = $3 WHERE id = $1 AND NOT is_acknowledged AND NOT is_resolved")).
		WithArgs("a-1", at, "op-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts SET is_resolved = TRUE, resolved_at = $2 WHERE id = $1 AND NOT is_resolved")).
		WithArgs("a-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Acknowledge(context.Background(), "a-1", "op-1", at))
	require.NoError(t, repo.Resolve(context.Background(), "a-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryAcknowledgeSkipsResolved(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	at := time.Now()
	// A resolved row matches nothing, which is not an error.
	mock.ExpectExec(`UPDATE alerts SET is_acknowledged = TRUE .* AND NOT is_resolved`).
		WithArgs("a-2", at, "op-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Acknowledge(context.Background(), "a-2", "op-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	no := false
	since := time.Now().AddDate(0, 0, -7)
	filter := models.AlertFilter{
		Severities:   []models.AlertSeverity{models.SeverityCritical, models.SeverityHigh},
		Category:     models.CategoryChurn,
		Acknowledged: &no,
		Resolved:     &no,
		Since:        &since,
		Page:         2,
		PageSize:     10,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM alerts a WHERE a.severity = ANY($1) AND a.category = $2 AND a.is_acknowledged = $3 AND a.is_resolved = $4 AND a.created_at >= $5")).
		WithArgs(sqlmock.AnyArg(), "churn", false, false, since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY a.priority DESC, a.created_at DESC LIMIT $6 OFFSET $7")).
		WithArgs(sqlmock.AnyArg(), "churn", false, false, since, 10, 10).
		WillReturnRows(sqlmock.NewRows(alertRowColumns).
			AddRow("a-11", "T4", "Di", "high_churn_risk", "critical", "churn", "High Churn Risk", "msg", "churn_probability", 0.91, 0.7, 95, time.Now(), false, nil, nil, false, nil))

	alerts, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.AlertOpen, alerts[0].State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryListSince(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	since := time.Now().AddDate(0, 0, -30)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.created_at >= $1 ORDER BY a.created_at DESC")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows(alertRowColumns))

	alerts, err := repo.ListSince(context.Background(), since)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	require.NoError(t, mock.ExpectationsWereMet())
}
