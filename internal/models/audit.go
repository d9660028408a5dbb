package models

import "time"

// Audit actions recorded for operator activity.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionLogout             = "LOGOUT"
	AuditActionAlertAcknowledge   = "ALERT_ACKNOWLEDGE"
	AuditActionAlertResolve       = "ALERT_RESOLVE"
	AuditActionInterventionCreate = "INTERVENTION_CREATE"
	AuditActionCampaignCreate     = "CAMPAIGN_CREATE"
	AuditActionInsightUpdate      = "INSIGHT_UPDATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	OperatorID *string   `db:"operator_id" json:"operator_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
