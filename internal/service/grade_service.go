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
	"github.com/unipanel/unipanel-api/pkg/export"
)

type gradeRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	UpdateGrade(ctx context.Context, id string, grade string, gradePoints, numericGrade *float64) error
	ListBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error)
	ListDetailBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error)
	FinalizeBulk(ctx context.Context, finals []models.GradeFinalization) (int, error)
}

type academicRecorder interface {
	RecomputeAcademicRecord(ctx context.Context, studentID string) error
}

// SubmitGradeRequest carries a grade for one enrollment.
type SubmitGradeRequest struct {
	Grade        string   `json:"grade" validate:"required"`
	NumericGrade *float64 `json:"numeric_grade,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// FinalizeResult reports the outcome of a section finalize.
type FinalizeResult struct {
	SectionID      string `json:"section_id"`
	Finalized      int    `json:"finalized"`
	Completed      int    `json:"completed"`
	Failed         int    `json:"failed"`
	MissingGrades  int    `json:"missing_grades"`
	AlreadySettled int    `json:"already_settled"`
}

// GradeService manages grade submission and section finalization.
type GradeService struct {
	repo      gradeRepository
	sections  sectionReader
	records   academicRecorder
	notifier  enrollmentNotifier
	metrics   *MetricsService
	csv       *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewGradeService constructs GradeService.
func NewGradeService(repo gradeRepository, sections sectionReader, records academicRecorder, notifier enrollmentNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		repo:      repo,
		sections:  sections,
		records:   records,
		notifier:  notifier,
		metrics:   metrics,
		csv:       export.NewCSVExporter(),
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitGrade records a letter grade on an enrollment. Grades can be
// resubmitted freely until the section is finalized; after that the row
// is immutable and the call fails with INVALID_STATE.
func (s *GradeService) SubmitGrade(ctx context.Context, enrollmentID string, req SubmitGradeRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !models.IsValidGrade(req.Grade) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grade %q", req.Grade))
	}

	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.IsGradeFinalized {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "grade is finalized and cannot be changed")
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "grades can only be submitted for enrolled students")
	}

	var gradePoints *float64
	if points, counts := models.GradePointsFor(req.Grade); counts {
		gradePoints = &points
	}
	if err := s.repo.UpdateGrade(ctx, enrollmentID, req.Grade, gradePoints, req.NumericGrade); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "grade is finalized and cannot be changed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit grade")
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// FinalizeSection locks in every submitted grade of a section. F and WF
// move the enrollment to FAILED, all other grades to COMPLETED. Rows
// without a submitted grade are skipped and reported, as are rows already
// finalized, which makes a repeated call a no-op. Each affected student's
// academic record is recomputed afterwards.
func (s *GradeService) FinalizeSection(ctx context.Context, sectionID string) (*FinalizeResult, error) {
	if _, err := s.sections.FindByID(ctx, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	enrollments, err := s.repo.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list section enrollments")
	}

	at := s.now()
	result := &FinalizeResult{SectionID: sectionID}
	var finals []models.GradeFinalization
	for _, e := range enrollments {
		if e.Status != models.EnrollmentStatusEnrolled {
			continue
		}
		if e.IsGradeFinalized {
			result.AlreadySettled++
			continue
		}
		if e.Grade == nil {
			result.MissingGrades++
			continue
		}
		status := models.EnrollmentStatusCompleted
		if models.IsFailingGrade(*e.Grade) {
			status = models.EnrollmentStatusFailed
			result.Failed++
		} else {
			result.Completed++
		}
		finals = append(finals, models.GradeFinalization{
			EnrollmentID: e.ID,
			StudentID:    e.StudentID,
			Status:       status,
			FinalizedAt:  at,
		})
	}

	finalized, err := s.repo.FinalizeBulk(ctx, finals)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize grades")
	}
	result.Finalized = finalized
	s.metrics.RecordFinalized(finalized)

	for _, final := range finals {
		if s.records != nil {
			if err := s.records.RecomputeAcademicRecord(ctx, final.StudentID); err != nil {
				s.logger.Error("recompute academic record",
					zap.String("student_id", final.StudentID), zap.Error(err))
			}
		}
		if s.notifier != nil {
			s.notifier.Notify(final.StudentID, models.NotificationGradesFinalized,
				"Grades posted", "Final grades for one of your sections have been posted.")
		}
	}

	s.logger.Info("section finalized",
		zap.String("section_id", sectionID),
		zap.Int("finalized", result.Finalized),
		zap.Int("missing_grades", result.MissingGrades))
	return result, nil
}

// SectionRoster renders the section's enrollment roster as CSV, one row
// per enrollment, ordered by student name. The returned filename carries
// the course code and section number.
func (s *GradeService) SectionRoster(ctx context.Context, sectionID string) ([]byte, string, error) {
	section, err := s.sections.FindDetailByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	details, err := s.repo.ListDetailBySection(ctx, sectionID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list section roster")
	}

	data := export.Dataset{
		Headers: []string{"Student Number", "Student Name", "Status", "Grade", "Enrolled"},
	}
	for _, d := range details {
		grade := ""
		if d.Grade != nil {
			grade = *d.Grade
		}
		data.Rows = append(data.Rows, map[string]string{
			"Student Number": d.StudentNumber,
			"Student Name":   d.StudentName,
			"Status":         string(d.Status),
			"Grade":          grade,
			"Enrolled":       d.EnrollmentDate.Format("2006-01-02"),
		})
	}

	csv, err := s.csv.Render(data)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	filename := fmt.Sprintf("roster-%s-%s.csv", section.CourseCode, section.SectionNumber)
	return csv, filename, nil
}
