package models

import "time"

// OperatorRole represents the roles of the operations team.
type OperatorRole string

const (
	RoleAdmin   OperatorRole = "ADMIN"
	RoleAnalyst OperatorRole = "ANALYST"
)

// Operator is an operations team member who triages alerts and campaigns.
type Operator struct {
	ID           string       `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	PasswordHash string       `db:"password_hash" json:"-"`
	FullName     string       `db:"full_name" json:"full_name"`
	Role         OperatorRole `db:"role" json:"role"`
	Active       bool         `db:"active" json:"active"`
	LastLogin    *time.Time   `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
