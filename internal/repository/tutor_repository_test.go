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

var aggregateRowColumns = []string{
	"tutor_id", "tutor_name", "email", "primary_subject", "certification_level", "months_experience", "is_active",
	"avg_engagement_score", "avg_empathy_score", "avg_clarity_score", "avg_student_satisfaction", "avg_student_rating", "avg_rating_7d",
	"sessions_7d", "sessions_30d", "total_sessions", "days_since_login", "churn_probability", "churn_risk_level",
	"reliability_score", "reschedule_rate", "no_show_rate", "technical_issue_rate", "recommendation_rate", "sentiment_trend_7d",
	"first_session_count", "first_session_avg_rating", "poor_first_session", "updated_at",
}

func aggregateRow(rows *sqlmock.Rows, id, name string, engagement interface{}, daysSinceLogin interface{}) *sqlmock.Rows {
	return rows.AddRow(
		id, name, nil, "math", "senior", 14, true,
		engagement, nil, nil, nil, 4.4, nil,
		3, 12, 80, daysSinceLogin, 0.2, "low",
		0.9, 0.05, 0.01, 0.02, nil, nil,
		2, 4.5, false, time.Now(),
	)
}

func TestTutorRepositoryListAggregates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	rows := sqlmock.NewRows(aggregateRowColumns)
	aggregateRow(rows, "T1", "Ada", 7.5, 2)
	aggregateRow(rows, "T2", "Bo", nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tutors t JOIN tutor_aggregates a ON a.tutor_id = t.id WHERE t.is_active = TRUE AND t.id = ANY($1) AND t.primary_subject = $2 ORDER BY t.id ASC")).
		WithArgs(sqlmock.AnyArg(), "math").
		WillReturnRows(rows)

	aggs, err := repo.ListAggregates(context.Background(), models.TutorFilter{ActiveOnly: true, TutorIDs: []string{"T1", "T2"}, Subject: "math"})
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.True(t, aggs[0].AvgEngagement.Valid)
	assert.Equal(t, 7.5, aggs[0].AvgEngagement.Float64)
	assert.Equal(t, 2, aggs[0].DaysSinceLogin.Int)
	assert.False(t, aggs[1].AvgEngagement.Valid)
	assert.False(t, aggs[1].DaysSinceLogin.Valid)
	assert.Equal(t, models.ChurnRiskLow, aggs[1].ChurnRiskLevel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryGetAggregateNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetAggregate(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryFindByCriteria(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	minEng, maxEng := 3.0, 6.0
	minDays := 7
	poor := true
	criteria := models.TargetCriteria{
		ChurnRiskLevels:  []models.ChurnRiskLevel{models.ChurnRiskHigh},
		AvgEngagement:    &models.FloatRange{Min: &minEng, Max: &maxEng},
		DaysSinceLogin:   &models.IntRange{Min: &minDays},
		PoorFirstSession: &poor,
		Limit:            25,
	}

	rows := sqlmock.NewRows(aggregateRowColumns)
	aggregateRow(rows, "T9", "Cy", 4.1, 9)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.churn_risk_level = ANY($1) AND a.avg_engagement_score >= $2 AND a.avg_engagement_score <= $3 AND a.days_since_login >= $4 AND a.poor_first_session = $5 ORDER BY t.id ASC LIMIT $6")).
		WithArgs(sqlmock.AnyArg(), minEng, maxEng, minDays, true, 25).
		WillReturnRows(rows)

	aggs, err := repo.FindByCriteria(context.Background(), criteria)
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, "T9", aggs[0].TutorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryCountByCriteria(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	active := true
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tutors t JOIN tutor_aggregates a ON a.tutor_id = t.id WHERE t.primary_subject = ANY($1) AND t.is_active = $2")).
		WithArgs(sqlmock.AnyArg(), true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	total, err := repo.CountByCriteria(context.Background(), models.TargetCriteria{PrimarySubjects: []string{"physics"}, ActiveStatus: &active, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildCriteriaWhereEmpty(t *testing.T) {
	where, args := buildCriteriaWhere(models.TargetCriteria{Limit: 10})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestTutorRepositoryListActivity(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	last := from.AddDate(0, 0, 20)
	rows := sqlmock.NewRows([]string{"tutor_id", "created_at", "last_activity_at"}).
		AddRow("T1", from.AddDate(0, 0, 2), last).
		AddRow("T2", from.AddDate(0, 0, 3), nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.created_at >= $1 AND t.created_at < $2 GROUP BY t.id, t.created_at")).
		WithArgs(from, to).
		WillReturnRows(rows)

	activity, err := repo.ListActivity(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	require.NotNil(t, activity[0].LastActivityAt)
	assert.Equal(t, last, *activity[0].LastActivityAt)
	assert.Nil(t, activity[1].LastActivityAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
