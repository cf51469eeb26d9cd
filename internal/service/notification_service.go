package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covenantkids/checkin-api/internal/models"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
	"github.com/covenantkids/checkin-api/pkg/jobs"
	"github.com/covenantkids/checkin-api/pkg/qrcode"
)

type notificationRepository interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	Create(ctx context.Context, notification *models.Notification) error
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAllRead(ctx context.Context, guardianID, userID string, at time.Time) error
	UpdateDelivery(ctx context.Context, id string, emailSent, smsSent bool, status string) error
}

// EmailSender delivers a notification body over email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a notification body over SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// NotificationConfig tunes delivery behaviour.
type NotificationConfig struct {
	Enabled      bool
	EmailEnabled bool
	SMSEnabled   bool
}

type deliveryPayload struct {
	NotificationID string `json:"notification_id"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

// NotificationService persists notifications and fans delivery out to a
// background queue. Delivery failures are recorded and logged but never
// surface to the operation that triggered the notification.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	email  EmailSender
	sms    SMSSender
	logger *zap.Logger
	config NotificationConfig
}

// NewNotificationService constructs a NotificationService. Call Queue to
// obtain the delivery handler for the worker pool.
func NewNotificationService(repo notificationRepository, email EmailSender, sms SMSSender, logger *zap.Logger, config NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, email: email, sms: sms, logger: logger, config: config}
}

// AttachQueue wires the worker queue used for delivery fan-out.
func (s *NotificationService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// DeliveryHandler processes queued delivery jobs.
func (s *NotificationService) DeliveryHandler(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(deliveryPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	emailSent := false
	smsSent := false

	if s.config.EmailEnabled && s.email != nil && payload.Email != "" {
		if err := s.email.SendEmail(ctx, payload.Email, payload.Subject, payload.Body); err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		emailSent = true
	}
	if s.config.SMSEnabled && s.sms != nil && payload.Phone != "" {
		if err := s.sms.SendSMS(ctx, payload.Phone, payload.Body); err != nil {
			return fmt.Errorf("send sms: %w", err)
		}
		smsSent = true
	}

	status := "delivered"
	if !emailSent && !smsSent {
		status = "skipped"
	}
	if err := s.repo.UpdateDelivery(ctx, payload.NotificationID, emailSent, smsSent, status); err != nil {
		s.logger.Warn("failed to record delivery outcome", zap.Error(err), zap.String("notification_id", payload.NotificationID))
	}
	return nil
}

// Notify persists the notification and schedules delivery. The contact
// arguments may be empty when no out-of-band channel applies.
func (s *NotificationService) Notify(ctx context.Context, notification *models.Notification, email, phone string) {
	if !s.config.Enabled {
		return
	}

	if notification.Metadata != nil {
		raw, err := json.Marshal(notification.Metadata)
		if err != nil {
			s.logger.Warn("failed to marshal notification metadata", zap.Error(err))
		} else {
			notification.MetadataRaw = raw
		}
	}
	if len(notification.MetadataRaw) == 0 {
		notification.MetadataRaw = []byte(`{}`)
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to persist notification", zap.Error(err), zap.String("type", string(notification.Type)))
		return
	}

	if s.queue == nil {
		return
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: string(notification.Type),
		Payload: deliveryPayload{
			NotificationID: notification.ID,
			Email:          email,
			Phone:          phone,
			Subject:        notification.Title,
			Body:           notification.Body,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification delivery", zap.Error(err), zap.String("notification_id", notification.ID))
	}
}

// DispatchLoginOTP sends the login verification code. Implements the
// auth service's dispatcher.
func (s *NotificationService) DispatchLoginOTP(ctx context.Context, user *models.User, otp string) {
	s.Notify(ctx, &models.Notification{
		Type:   models.NotifyOTP,
		Title:  "Your verification code",
		Body:   fmt.Sprintf("Your login verification code is %s. It expires in 10 minutes.", otp),
		UserID: &user.ID,
	}, user.Email, "")
}

// NotifyCheckIn informs the guardian that the child arrived.
func (s *NotificationService) NotifyCheckIn(ctx context.Context, child *models.Child, guardian *models.Guardian, session *models.Session) {
	s.Notify(ctx, &models.Notification{
		Type:       models.NotifyCheckIn,
		Title:      "Checked in",
		Body:       fmt.Sprintf("%s has been checked in to %s.", child.FullName, session.Title),
		ChildID:    &child.ID,
		GuardianID: &guardian.ID,
		Metadata:   &models.NotificationMetadata{SessionID: session.ID},
	}, guardian.Email, guardian.Phone)
}

// NotifyPickupReady hands the guardian the pickup credential pair. The
// QR token is also rendered inline so email clients can show it without
// calling back into the API.
func (s *NotificationService) NotifyPickupReady(ctx context.Context, child *models.Child, guardian *models.Guardian, cred *models.IssuedCredential) {
	meta := &models.NotificationMetadata{PickupQR: cred.QRToken, PickupOTP: cred.OTP}
	if uri, err := qrcode.RenderDataURI(cred.QRToken, qrcode.DefaultSize); err == nil {
		meta.PickupQRImage = uri
	} else {
		s.logger.Warn("failed to render pickup qr image", zap.Error(err))
	}

	s.Notify(ctx, &models.Notification{
		Type:           models.NotifyCheckOut,
		Title:          "Pickup ready",
		Body:           fmt.Sprintf("%s is ready for pickup. Present the QR code or code %s at the desk.", child.FullName, cred.OTP),
		ChildID:        &child.ID,
		GuardianID:     &guardian.ID,
		ActionRequired: true,
		Metadata:       meta,
	}, guardian.Email, guardian.Phone)
}

// NotifyBirthday sends the guardian a birthday greeting for their child.
func (s *NotificationService) NotifyBirthday(ctx context.Context, child *models.Child, guardian *models.Guardian) {
	s.Notify(ctx, &models.Notification{
		Type:       models.NotifyBirthday,
		Title:      "Happy birthday",
		Body:       fmt.Sprintf("Happy birthday to %s from the whole ministry team!", child.FullName),
		ChildID:    &child.ID,
		GuardianID: &guardian.ID,
	}, guardian.Email, guardian.Phone)
}

// NotifyCheckOut confirms the completed release.
func (s *NotificationService) NotifyCheckOut(ctx context.Context, child *models.Child, guardian *models.Guardian) {
	s.Notify(ctx, &models.Notification{
		Type:       models.NotifyCheckOut,
		Title:      "Checked out",
		Body:       fmt.Sprintf("%s has been checked out.", child.FullName),
		ChildID:    &child.ID,
		GuardianID: &guardian.ID,
	}, guardian.Email, guardian.Phone)
}

// NotifyRegistrationReviewed informs the submitting parent of the outcome.
func (s *NotificationService) NotifyRegistrationReviewed(ctx context.Context, child *models.Child, guardian *models.Guardian, approved bool, reason string) {
	title := "Registration approved"
	body := fmt.Sprintf("%s has been approved and assigned registration ID %s.", child.FullName, child.RegistrationID)
	if !approved {
		title = "Registration rejected"
		body = fmt.Sprintf("The registration for %s was rejected.", child.FullName)
		if reason != "" {
			body = fmt.Sprintf("%s Reason: %s", body, reason)
		}
	}
	s.Notify(ctx, &models.Notification{
		Type:       models.NotifyReminder,
		Title:      title,
		Body:       body,
		ChildID:    &child.ID,
		GuardianID: &guardian.ID,
	}, guardian.Email, guardian.Phone)
}

// List returns notifications for a recipient.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	for i := range notifications {
		if len(notifications[i].MetadataRaw) > 0 {
			var meta models.NotificationMetadata
			if err := json.Unmarshal(notifications[i].MetadataRaw, &meta); err == nil {
				notifications[i].Metadata = &meta
			}
		}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// MarkRead marks one notification as read. The notification must be
// addressed to the caller's guardian profile or user account; repeated
// calls on an owned notification succeed.
func (s *NotificationService) MarkRead(ctx context.Context, id, guardianID, userID string) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}

	ownedByGuardian := guardianID != "" && notification.GuardianID != nil && *notification.GuardianID == guardianID
	ownedByUser := userID != "" && notification.UserID != nil && *notification.UserID == userID
	if !ownedByGuardian && !ownedByUser {
		return appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another recipient")
	}

	if err := s.repo.MarkRead(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead marks every unread notification for the recipient as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, guardianID, userID string) error {
	if err := s.repo.MarkAllRead(ctx, guardianID, userID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}
