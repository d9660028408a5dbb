package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var operatorRowColumns = []string{"id", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at"}

func TestOperatorFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOperatorRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(operatorRowColumns).
		AddRow("1", "ops@example.com", "hash", "Ops", string(models.RoleAnalyst), true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, active, last_login, created_at, updated_at FROM operators WHERE email = $1 LIMIT 1")).
		WithArgs("ops@example.com").
		WillReturnRows(rows)

	operator, err := repo.FindByEmail(context.Background(), "Ops@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", operator.Email)
	assert.Equal(t, models.RoleAnalyst, operator.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperatorFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOperatorRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM operators WHERE id = $1 LIMIT 1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperatorCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOperatorRepository(db)

	mock.ExpectExec("INSERT INTO operators").WillReturnResult(sqlmock.NewResult(1, 1))

	operator := &models.Operator{Email: " Admin@Example.com ", PasswordHash: "hash", FullName: "Admin", Role: models.RoleAdmin, Active: true}
	require.NoError(t, repo.Create(context.Background(), operator))
	assert.NotEmpty(t, operator.ID)
	assert.Equal(t, "admin@example.com", operator.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOperatorRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", OperatorID: "op-1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeOperatorRefreshTokens(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOperatorRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE operator_id = $1 AND revoked = FALSE")).
		WithArgs("op-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RevokeOperatorRefreshTokens(context.Background(), "op-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOperatorRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	operatorID := "op-1"
	resourceID := "alert-1"
	entry := &models.AuditLog{OperatorID: &operatorID, Action: models.AuditActionAlertAcknowledge, Resource: "alert", ResourceID: &resourceID}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
