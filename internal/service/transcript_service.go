package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
	"github.com/unipanel/unipanel-api/pkg/export"
)

type transcriptRepository interface {
	TranscriptRows(ctx context.Context, studentID string) ([]models.TranscriptRow, error)
}

type academicRecordWriter interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateAcademicRecord(ctx context.Context, id string, record models.AcademicRecord) error
}

type transcriptCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type pdfRenderer interface {
	RenderSections(data export.SectionedDataset, title string) ([]byte, error)
}

// TranscriptService aggregates finalized grades into transcripts, GPA
// figures and academic standing.
type TranscriptService struct {
	repo     transcriptRepository
	students academicRecordWriter
	cache    transcriptCache
	pdf      pdfRenderer
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewTranscriptService constructs TranscriptService. cache may be nil.
func NewTranscriptService(repo transcriptRepository, students academicRecordWriter, cache transcriptCache, pdf pdfRenderer, cacheTTL time.Duration, logger *zap.Logger) *TranscriptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &TranscriptService{
		repo:     repo,
		students: students,
		cache:    cache,
		pdf:      pdf,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func transcriptCacheKey(studentID string) string {
	return "transcript:" + studentID
}

// Transcript assembles the student's full academic history grouped by
// term, oldest term first. Results are cached until the next finalize
// touches the student.
func (s *TranscriptService) Transcript(ctx context.Context, studentID string) (*models.Transcript, error) {
	if s.cache != nil {
		var cached models.Transcript
		if err := s.cache.Get(ctx, transcriptCacheKey(studentID), &cached); err == nil {
			return &cached, nil
		}
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	rows, err := s.repo.TranscriptRows(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript rows")
	}

	transcript := buildTranscript(student, rows, s.now())

	if s.cache != nil {
		if err := s.cache.Set(ctx, transcriptCacheKey(studentID), transcript, s.cacheTTL); err != nil {
			s.logger.Warn("cache transcript", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return transcript, nil
}

// TranscriptPDF renders the transcript as a PDF document.
func (s *TranscriptService) TranscriptPDF(ctx context.Context, studentID string) ([]byte, error) {
	transcript, err := s.Transcript(ctx, studentID)
	if err != nil {
		return nil, err
	}

	dataset := export.SectionedDataset{
		Headers: []string{"Course", "Title", "Credits", "Grade", "Points"},
	}
	for _, term := range transcript.Terms {
		section := export.Section{Heading: term.TermName}
		for _, row := range term.Rows {
			points := ""
			if row.GradePoints != nil {
				points = fmt.Sprintf("%.1f", *row.GradePoints)
			}
			section.Rows = append(section.Rows, map[string]string{
				"Course":  row.CourseCode,
				"Title":   row.CourseTitle,
				"Credits": fmt.Sprintf("%.1f", row.CreditHours),
				"Grade":   row.Grade,
				"Points":  points,
			})
		}
		if term.TermGPA != nil {
			section.Summary = fmt.Sprintf("Term GPA: %.2f", *term.TermGPA)
		}
		dataset.Sections = append(dataset.Sections, section)
	}
	if transcript.CumulativeGPA != nil {
		dataset.Footer = fmt.Sprintf("Cumulative GPA: %.2f    Credits earned: %.1f",
			*transcript.CumulativeGPA, transcript.TotalCreditsEarned)
	}

	title := fmt.Sprintf("Official Transcript - %s (%s)", transcript.StudentName, transcript.StudentNumber)
	pdf, err := s.pdf.RenderSections(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript pdf")
	}
	return pdf, nil
}

// RecomputeAcademicRecord refolds the student's finalized rows into the
// cumulative GPA, credit totals and academic standing stored on the
// student row, and drops the cached transcript.
func (s *TranscriptService) RecomputeAcademicRecord(ctx context.Context, studentID string) error {
	rows, err := s.repo.TranscriptRows(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript rows")
	}

	record := foldAcademicRecord(rows)
	if err := s.students.UpdateAcademicRecord(ctx, studentID, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update academic record")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, transcriptCacheKey(studentID)); err != nil {
			s.logger.Warn("invalidate transcript cache", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return nil
}

// buildTranscript groups rows by term preserving the incoming term order
// and computes per-term and cumulative GPA figures.
func buildTranscript(student *models.Student, rows []models.TranscriptRow, at time.Time) *models.Transcript {
	transcript := &models.Transcript{
		StudentID:     student.ID,
		StudentNumber: student.StudentNumber,
		StudentName:   student.FullName,
		GeneratedAt:   at,
	}

	var terms []models.TranscriptTerm
	index := map[string]int{}
	for _, row := range rows {
		i, ok := index[row.TermID]
		if !ok {
			i = len(terms)
			index[row.TermID] = i
			terms = append(terms, models.TranscriptTerm{TermID: row.TermID, TermName: row.TermName})
		}
		terms[i].Rows = append(terms[i].Rows, row)
	}

	var cumulativePoints, cumulativeCredits float64
	for i := range terms {
		var termPoints, termGPACredits float64
		for _, row := range terms[i].Rows {
			if _, counts := models.GradePointsFor(row.Grade); counts {
				terms[i].CreditsAttempted += row.CreditHours
				if row.GradePoints != nil {
					termPoints += *row.GradePoints * row.CreditHours
				}
				termGPACredits += row.CreditHours
			}
			if models.IsEarningGrade(row.Grade) {
				terms[i].CreditsEarned += row.CreditHours
			}
		}
		if termGPACredits > 0 {
			gpa := termPoints / termGPACredits
			terms[i].TermGPA = &gpa
		}
		cumulativePoints += termPoints
		cumulativeCredits += termGPACredits
		transcript.TotalCreditsAttempted += terms[i].CreditsAttempted
		transcript.TotalCreditsEarned += terms[i].CreditsEarned
	}
	transcript.Terms = terms

	if cumulativeCredits > 0 {
		gpa := cumulativePoints / cumulativeCredits
		transcript.CumulativeGPA = &gpa
	}
	return transcript
}

// foldAcademicRecord reduces transcript rows to the aggregates stored on
// the student row. A student with no GPA-bearing rows keeps good
// standing.
func foldAcademicRecord(rows []models.TranscriptRow) models.AcademicRecord {
	var points, gpaCredits float64
	record := models.AcademicRecord{Standing: models.StandingGood}
	for _, row := range rows {
		if _, counts := models.GradePointsFor(row.Grade); counts {
			record.TotalCreditsAttempted += row.CreditHours
			if row.GradePoints != nil {
				points += *row.GradePoints * row.CreditHours
			}
			gpaCredits += row.CreditHours
		}
		if models.IsEarningGrade(row.Grade) {
			record.TotalCreditsEarned += row.CreditHours
		}
	}
	if gpaCredits == 0 {
		return record
	}
	record.CumulativeGPA = points / gpaCredits
	record.Standing = standingFor(record.CumulativeGPA)
	return record
}

// standingFor maps a cumulative GPA to academic standing.
func standingFor(gpa float64) models.AcademicStanding {
	switch {
	case gpa >= 2.0:
		return models.StandingGood
	case gpa >= 1.5:
		return models.StandingWarning
	case gpa >= 1.0:
		return models.StandingProbation
	default:
		return models.StandingDismissed
	}
}
