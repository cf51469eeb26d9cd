package models

import "time"

// NotificationType identifies the event that produced a notification.
type NotificationType string

const (
	NotifyCheckIn  NotificationType = "CheckIn"
	NotifyCheckOut NotificationType = "CheckOut"
	NotifyBirthday NotificationType = "Birthday"
	NotifyReminder NotificationType = "Reminder"
	NotifyOTP      NotificationType = "OTP"
)

// Valid reports whether the type is a known value.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyCheckIn, NotifyCheckOut, NotifyBirthday, NotifyReminder, NotifyOTP:
		return true
	}
	return false
}

// NotificationMetadata carries workflow extras such as pickup credentials.
type NotificationMetadata struct {
	PickupQR      string `json:"pickup_qr,omitempty"`
	PickupOTP     string `json:"pickup_otp,omitempty"`
	PickupQRImage string `json:"pickup_qr_image,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
}

// Notification is a persisted message addressed to a guardian or user.
type Notification struct {
	ID             string                `db:"id" json:"id"`
	Type           NotificationType      `db:"type" json:"type"`
	Title          string                `db:"title" json:"title"`
	Body           string                `db:"body" json:"body"`
	ChildID        *string               `db:"child_id" json:"child_id,omitempty"`
	GuardianID     *string               `db:"guardian_id" json:"guardian_id,omitempty"`
	UserID         *string               `db:"user_id" json:"user_id,omitempty"`
	Read           bool                  `db:"read" json:"read"`
	ActionRequired bool                  `db:"action_required" json:"action_required"`
	Metadata       *NotificationMetadata `db:"-" json:"metadata,omitempty"`
	MetadataRaw    []byte                `db:"metadata" json:"-"`
	EmailSent      bool                  `db:"email_sent" json:"email_sent"`
	SMSSent        bool                  `db:"sms_sent" json:"sms_sent"`
	DeliveryStatus string                `db:"delivery_status" json:"delivery_status"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
	ReadAt         *time.Time            `db:"read_at" json:"read_at,omitempty"`
}

// NotificationFilter captures filtering criteria for listing notifications.
type NotificationFilter struct {
	GuardianID string
	UserID     string
	Unread     *bool
	Type       *NotificationType
	Page       int
	PageSize   int
}
