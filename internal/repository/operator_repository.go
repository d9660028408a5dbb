package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

const operatorColumns = `id, email, password_hash, full_name, role, active, last_login, created_at, updated_at`

// OperatorRepository provides database access for operator accounts, their
// refresh tokens and the audit trail.
type OperatorRepository struct {
	db *sqlx.DB
}

// NewOperatorRepository creates a new instance of OperatorRepository.
func NewOperatorRepository(db *sqlx.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// FindByEmail returns an operator by email address.
func (r *OperatorRepository) FindByEmail(ctx context.Context, email string) (*models.Operator, error) {
	const query = `SELECT ` + operatorColumns + ` FROM operators WHERE email = $1 LIMIT 1`
	var operator models.Operator
	if err := r.db.GetContext(ctx, &operator, query, strings.ToLower(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find operator by email: %w", err)
	}
	return &operator, nil
}

// FindByID returns an operator by identifier.
func (r *OperatorRepository) FindByID(ctx context.Context, id string) (*models.Operator, error) {
	const query = `SELECT ` + operatorColumns + ` FROM operators WHERE id = $1 LIMIT 1`
	var operator models.Operator
	if err := r.db.GetContext(ctx, &operator, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find operator by id: %w", err)
	}
	return &operator, nil
}

// UpdateLastLogin updates the last_login timestamp for an operator.
func (r *OperatorRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE operators SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Create inserts a new operator. Emails are stored lowercased.
func (r *OperatorRepository) Create(ctx context.Context, operator *models.Operator) error {
	if operator.ID == "" {
		operator.ID = uuid.NewString()
	}
	operator.Email = strings.ToLower(strings.TrimSpace(operator.Email))
	now := time.Now().UTC()
	if operator.CreatedAt.IsZero() {
		operator.CreatedAt = now
	}
	operator.UpdatedAt = now

	const query = `INSERT INTO operators (id, email, password_hash, full_name, role, active, created_at, updated_at)
VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, operator); err != nil {
		return fmt.Errorf("create operator: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *OperatorRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, operator_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent)
VALUES (:id, :operator_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *OperatorRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, operator_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *OperatorRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeOperatorRefreshTokens revokes all live refresh tokens for an operator.
func (r *OperatorRepository) RevokeOperatorRefreshTokens(ctx context.Context, operatorID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE operator_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, operatorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke operator refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *OperatorRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, operator_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
VALUES (:id, :operator_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
