package model

import (
	"sort"
	"time"

	"gorm.io/datatypes"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

const (
	ActionLogin           = "auth.login"
	ActionLoginFailed     = "auth.login_failed"
	ActionLogout          = "auth.logout"
	ActionPasswordChanged = "auth.password_changed"
	Action2FAEnabled      = "auth.2fa_enabled"
	Action2FADisabled     = "auth.2fa_disabled"

	ActionAdminLoginStep1   = "admin_login_step1"
	ActionAdminLoginFailed  = "admin_login_failed"
	ActionAdminLoginSuccess = "admin_login_success"
	ActionAdmin2FAFailed    = "admin_2fa_failed"
	ActionAdmin2FALocked    = "admin_2fa_locked"
	ActionAdminLogout       = "admin_logout"
	ActionAdminSessionSweep = "admin_sessions_cleanup"
)

// AuditLog is append-only: the application never updates or deletes rows.
type AuditLog struct {
	ID            uint              `gorm:"primarykey" json:"id"`
	UserID        *uint             `gorm:"index" json:"user_id"`
	Action        string            `gorm:"index;not null" json:"action"`
	AuditableType *string           `gorm:"index:idx_audit_logs_auditable" json:"auditable_type"`
	AuditableID   *string           `gorm:"index:idx_audit_logs_auditable" json:"auditable_id"`
	OldValues     datatypes.JSONMap `json:"old_values"`
	NewValues     datatypes.JSONMap `json:"new_values"`
	IpAddress     *string           `json:"ip_address"`
	UserAgent     *string           `json:"user_agent"`
	Status        AuditStatus       `gorm:"not null;default:success" json:"status"`
	Metadata      datatypes.JSONMap `json:"metadata"`
	CreatedAt     time.Time         `gorm:"index;not null" json:"created_at"`
}

// ChangedFields lists the keys present in either value map, sorted.
func (a *AuditLog) ChangedFields() []string {
	seen := make(map[string]struct{}, len(a.OldValues)+len(a.NewValues))
	for k := range a.OldValues {
		seen[k] = struct{}{}
	}
	for k := range a.NewValues {
		seen[k] = struct{}{}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

type AuditLogFilter struct {
	Category string
	Action   string
	Status   AuditStatus
	From     *time.Time
	To       *time.Time
	Search   string
	UserID   *uint
}
