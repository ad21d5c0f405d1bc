package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsNonTerminal(ctx context.Context, studentID, sectionID string) (bool, error)
	CreateWithCounter(ctx context.Context, enrollment *models.Enrollment) error
	DropEnrolled(ctx context.Context, id, sectionID string, at time.Time) (*models.Enrollment, error)
	DropWaitlisted(ctx context.Context, id, sectionID string, at time.Time) error
	Withdraw(ctx context.Context, id, sectionID string, at time.Time) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseSection, error)
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
}

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type tuitionPoster interface {
	PostEnrollmentCharge(ctx context.Context, studentID, enrollmentID string, courseCode string, creditHours float64) error
}

type enrollmentNotifier interface {
	Notify(studentID string, kind models.NotificationType, title, body string)
}

// EnrollRequest describes an admission request for a section.
type EnrollRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	SectionID string  `json:"section_id" validate:"required"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// EnrollmentService orchestrates the admission, drop and withdrawal
// workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	sections  sectionReader
	terms     termReader
	billing   tuitionPoster
	notifier  enrollmentNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService. billing, notifier
// and metrics may be nil when those side effects are disabled.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, sections sectionReader, terms termReader, billing tuitionPoster, notifier enrollmentNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		sections:  sections,
		terms:     terms,
		billing:   billing,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns one enrollment with context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Enroll admits a student to a section. A free seat admits as ENROLLED,
// a full section with waitlist room admits as WAITLISTED, and a section
// with neither rejects with CAPACITY_EXCEEDED. Admission as ENROLLED
// posts the tuition charge for the section's course.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.HasBlockingHold() {
		return nil, appErrors.Clone(appErrors.ErrHoldActive, "")
	}
	if student.AcademicStanding == models.StandingDismissed {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "dismissed students cannot enroll")
	}

	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.IsCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "section is cancelled")
	}
	if !section.IsOpen {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "section is closed for registration")
	}

	term, err := s.terms.FindByID(ctx, section.TermID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	now := s.now()
	if now.Before(term.RegistrationStart) || now.After(term.RegistrationEnd) {
		return nil, appErrors.Clone(appErrors.ErrDeadlinePassed, "registration is not open for this term")
	}

	exists, err := s.repo.ExistsNonTerminal(ctx, req.StudentID, req.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled or waitlisted in section")
	}

	var status models.EnrollmentStatus
	switch {
	case section.HasSeat():
		status = models.EnrollmentStatusEnrolled
	case section.HasWaitlistSeat():
		status = models.EnrollmentStatusWaitlisted
	default:
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	}

	enrollment := &models.Enrollment{
		StudentID:      req.StudentID,
		SectionID:      req.SectionID,
		Status:         status,
		EnrollmentDate: now,
		Notes:          req.Notes,
	}
	if err := s.repo.CreateWithCounter(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}

	if status == models.EnrollmentStatusEnrolled {
		s.metrics.RecordEnrollment("enrolled")
		if s.billing != nil {
			if err := s.billing.PostEnrollmentCharge(ctx, student.ID, enrollment.ID, detail.CourseCode, detail.CreditHours); err != nil {
				s.logger.Error("post enrollment charge", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
			}
		}
		if s.notifier != nil {
			s.notifier.Notify(student.ID, models.NotificationEnrollmentConfirmed,
				"Enrollment confirmed",
				fmt.Sprintf("You are enrolled in %s %s.", detail.CourseCode, detail.CourseTitle))
		}
	} else {
		s.metrics.RecordEnrollment("waitlisted")
		if s.notifier != nil {
			s.notifier.Notify(student.ID, models.NotificationWaitlisted,
				"Added to waitlist",
				fmt.Sprintf("You are waitlisted for %s %s.", detail.CourseCode, detail.CourseTitle))
		}
	}
	return detail, nil
}

// Drop releases an enrollment before the add/drop deadline. Dropping an
// ENROLLED row frees the seat and promotes the earliest waitlisted
// student of the section; dropping a WAITLISTED row only frees its slot.
func (s *EnrollmentService) Drop(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled && enrollment.Status != models.EnrollmentStatusWaitlisted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment cannot be dropped in its current state")
	}

	term, err := s.termForSection(ctx, enrollment.SectionID)
	if err != nil {
		return nil, err
	}
	at := s.now()
	if !term.CanDrop(at) {
		return nil, appErrors.Clone(appErrors.ErrDeadlinePassed, "add/drop deadline has passed; use withdraw")
	}

	if enrollment.Status == models.EnrollmentStatusWaitlisted {
		if err := s.repo.DropWaitlisted(ctx, id, enrollment.SectionID, at); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
		}
	} else {
		promoted, err := s.repo.DropEnrolled(ctx, id, enrollment.SectionID, at)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
		}
		if promoted != nil {
			s.metrics.RecordPromotion()
			s.logger.Info("waitlist promotion",
				zap.String("section_id", enrollment.SectionID),
				zap.String("promoted_enrollment_id", promoted.ID))
			s.afterPromotion(ctx, promoted)
		}
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Withdraw records a W on an ENROLLED row between the add/drop deadline
// and the withdrawal deadline. The freed seat is not refilled from the
// waitlist.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only enrolled students can withdraw")
	}

	term, err := s.termForSection(ctx, enrollment.SectionID)
	if err != nil {
		return nil, err
	}
	at := s.now()
	if term.CanDrop(at) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "add/drop window is still open; use drop")
	}
	if !term.CanWithdraw(at) {
		return nil, appErrors.Clone(appErrors.ErrDeadlinePassed, "withdrawal deadline has passed")
	}

	if err := s.repo.Withdraw(ctx, id, enrollment.SectionID, at); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

func (s *EnrollmentService) termForSection(ctx context.Context, sectionID string) (*models.Term, error) {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	term, err := s.terms.FindByID(ctx, section.TermID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// afterPromotion posts the tuition charge and notifies the promoted
// student. Failures here are logged, never surfaced to the dropper.
func (s *EnrollmentService) afterPromotion(ctx context.Context, promoted *models.Enrollment) {
	detail, err := s.repo.FindDetailByID(ctx, promoted.ID)
	if err != nil {
		s.logger.Error("load promoted enrollment", zap.String("enrollment_id", promoted.ID), zap.Error(err))
		return
	}
	if s.billing != nil {
		if err := s.billing.PostEnrollmentCharge(ctx, detail.StudentID, detail.ID, detail.CourseCode, detail.CreditHours); err != nil {
			s.logger.Error("post promotion charge", zap.String("enrollment_id", detail.ID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(detail.StudentID, models.NotificationWaitlistPromoted,
			"Enrolled from waitlist",
			fmt.Sprintf("A seat opened in %s %s and you are now enrolled.", detail.CourseCode, detail.CourseTitle))
	}
}
