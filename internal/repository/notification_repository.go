package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/covenantkids/checkin-api/internal/models"
)

// NotificationRepository manages persistence for notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, type, title, body, child_id, guardian_id, user_id, read, action_required, metadata, email_sent, sms_sent, delivery_status, created_at, read_at`

// List returns notifications matching the provided filters.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	baseQuery := `FROM notifications WHERE 1=1`
	var conditions []string
	var args []interface{}

	// Pickup and check-in notifications address the guardian profile while
	// OTP notifications address the user account, so a caller with both
	// identities must see rows matching either one.
	switch {
	case filter.GuardianID != "" && filter.UserID != "":
		conditions = append(conditions, fmt.Sprintf("(guardian_id = $%d OR user_id = $%d)", len(args)+1, len(args)+2))
		args = append(args, filter.GuardianID, filter.UserID)
	case filter.GuardianID != "":
		conditions = append(conditions, fmt.Sprintf("guardian_id = $%d", len(args)+1))
		args = append(args, filter.GuardianID)
	case filter.UserID != "":
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Unread != nil && *filter.Unread {
		conditions = append(conditions, "read = FALSE")
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", notificationColumns, baseQuery, pageSize, offset)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// FindByID fetches a notification by identifier.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE id = $1 LIMIT 1", notificationColumns)
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		return nil, err
	}
	return &notification, nil
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	if notification.DeliveryStatus == "" {
		notification.DeliveryStatus = "pending"
	}
	const query = `INSERT INTO notifications (id, type, title, body, child_id, guardian_id, user_id, read, action_required, metadata, email_sent, sms_sent, delivery_status, created_at)
        VALUES (:id, :type, :title, :body, :child_id, :guardian_id, :user_id, :read, :action_required, :metadata, :email_sent, :sms_sent, :delivery_status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// MarkRead marks a notification as read. Marking an already-read
// notification is a harmless no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notifications SET read = TRUE, read_at = COALESCE(read_at, $2) WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification for a recipient as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, guardianID, userID string, at time.Time) error {
	const query = `UPDATE notifications SET read = TRUE, read_at = $3 WHERE read = FALSE AND (guardian_id = $1 OR user_id = $2)`
	if _, err := r.db.ExecContext(ctx, query, guardianID, userID, at); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// UpdateDelivery records the outcome of the background delivery attempt.
func (r *NotificationRepository) UpdateDelivery(ctx context.Context, id string, emailSent, smsSent bool, status string) error {
	const query = `UPDATE notifications SET email_sent = $2, sms_sent = $3, delivery_status = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, emailSent, smsSent, status); err != nil {
		return fmt.Errorf("update notification delivery: %w", err)
	}
	return nil
}
