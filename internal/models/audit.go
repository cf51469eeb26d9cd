package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionMFAVerify      = "MFA_VERIFY"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionUserCreate     = "USER_CREATE"
	AuditActionUserUpdate     = "USER_UPDATE"
	AuditActionUserDelete     = "USER_DELETE"
	AuditActionChildSubmit    = "CHILD_SUBMIT"
	AuditActionChildApprove   = "CHILD_APPROVE"
	AuditActionChildReject    = "CHILD_REJECT"
	AuditActionChildDelete    = "CHILD_DELETE"
	AuditActionGuardianCreate = "GUARDIAN_CREATE"
	AuditActionGuardianRenew  = "GUARDIAN_RENEW"
	AuditActionGuardianRevoke = "GUARDIAN_REVOKE"
	AuditActionCheckIn        = "CHECK_IN"
	AuditActionCheckOut       = "CHECK_OUT"
	AuditActionOTPOverride    = "OTP_OVERRIDE"
	AuditActionSessionCreate  = "SESSION_CREATE"
	AuditActionSessionCancel  = "SESSION_CANCEL"
	AuditActionBookingCreate  = "BOOKING_CREATE"
	AuditActionBookingCancel  = "BOOKING_CANCEL"
	AuditActionReportExport   = "REPORT_EXPORT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
