package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
	"github.com/unipanel/unipanel-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id string) error
}

type notificationEnqueuer interface {
	Enqueue(job jobs.Job) error
}

const notificationJobType = "notification.deliver"

// NotificationService fans student notifications out through the
// background queue so delivery never sits on the request path.
type NotificationService struct {
	repo    notificationRepository
	queue   notificationEnqueuer
	enabled bool
	logger  *zap.Logger
}

// NewNotificationService constructs NotificationService. The queue may be
// nil when notifications are disabled.
func NewNotificationService(repo notificationRepository, queue notificationEnqueuer, enabled bool, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, queue: queue, enabled: enabled, logger: logger}
}

// SetQueue attaches the delivery queue. The queue's handler is this
// service's HandleJob, so wiring happens in two steps.
func (s *NotificationService) SetQueue(queue notificationEnqueuer) {
	s.queue = queue
}

// Notify enqueues a notification for asynchronous delivery. Enqueue
// failures are logged and swallowed; the triggering operation already
// committed.
func (s *NotificationService) Notify(studentID string, kind models.NotificationType, title, body string) {
	if !s.enabled || s.queue == nil {
		return
	}
	notification := &models.Notification{
		StudentID: studentID,
		Type:      kind,
		Title:     title,
		Body:      body,
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    notificationJobType,
		Payload: notification,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("enqueue notification",
			zap.String("student_id", studentID),
			zap.String("type", string(kind)),
			zap.Error(err))
	}
}

// HandleJob persists one queued notification. Wired as the queue handler.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(*models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload type for job %s", job.ID)
	}
	return s.repo.Create(ctx, notification)
}

// List returns a student's notifications.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MarkRead stamps a notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}
