package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
)

type mockGradeRepo struct {
	enrollments map[string]models.Enrollment
	bySection   map[string][]models.Enrollment
	updated     map[string]string
	finalized   []models.GradeFinalization
}

func (m *mockGradeRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeRepo) UpdateGrade(ctx context.Context, id string, grade string, gradePoints, numericGrade *float64) error {
	e, ok := m.enrollments[id]
	if !ok || e.IsGradeFinalized {
		return sql.ErrNoRows
	}
	if m.updated == nil {
		m.updated = make(map[string]string)
	}
	m.updated[id] = grade
	e.Grade = &grade
	e.GradePoints = gradePoints
	m.enrollments[id] = e
	return nil
}

func (m *mockGradeRepo) ListBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	return m.bySection[sectionID], nil
}

func (m *mockGradeRepo) ListDetailBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error) {
	var details []models.EnrollmentDetail
	for _, e := range m.bySection[sectionID] {
		details = append(details, models.EnrollmentDetail{
			Enrollment:    e,
			StudentName:   "Student " + e.StudentID,
			StudentNumber: "N-" + e.StudentID,
		})
	}
	return details, nil
}

func (m *mockGradeRepo) FinalizeBulk(ctx context.Context, finals []models.GradeFinalization) (int, error) {
	m.finalized = append(m.finalized, finals...)
	return len(finals), nil
}

type mockAcademicRecorder struct {
	recomputed []string
}

func (m *mockAcademicRecorder) RecomputeAcademicRecord(ctx context.Context, studentID string) error {
	m.recomputed = append(m.recomputed, studentID)
	return nil
}

func newGradeFixture(repo *mockGradeRepo) (*GradeService, *mockAcademicRecorder, *mockNotifier) {
	sections := &mockSectionReader{sections: map[string]*models.CourseSection{
		"sec1": {ID: "sec1", TermID: "t1"},
	}}
	records := &mockAcademicRecorder{}
	notifier := &mockNotifier{}
	svc := NewGradeService(repo, sections, records, notifier, nil, validator.New(), zap.NewNop())
	return svc, records, notifier
}

func strPtr(s string) *string { return &s }

func TestGradeServiceSubmitGrade(t *testing.T) {
	repo := &mockGradeRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
	}}
	svc, _, _ := newGradeFixture(repo)

	detail, err := svc.SubmitGrade(context.Background(), "e1", SubmitGradeRequest{Grade: "B+"})
	require.NoError(t, err)
	require.NotNil(t, detail.Grade)
	assert.Equal(t, "B+", *detail.Grade)
	require.NotNil(t, detail.GradePoints)
	assert.InDelta(t, 3.3, *detail.GradePoints, 0.001)
}

func TestGradeServiceSubmitGradeResubmission(t *testing.T) {
	repo := &mockGradeRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled, Grade: strPtr("C")},
	}}
	svc, _, _ := newGradeFixture(repo)

	detail, err := svc.SubmitGrade(context.Background(), "e1", SubmitGradeRequest{Grade: "A"})
	require.NoError(t, err)
	assert.Equal(t, "A", *detail.Grade)
}

func TestGradeServiceSubmitGradeRejectsUnknownLetter(t *testing.T) {
	repo := &mockGradeRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusEnrolled},
	}}
	svc, _, _ := newGradeFixture(repo)

	_, err := svc.SubmitGrade(context.Background(), "e1", SubmitGradeRequest{Grade: "Z"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceSubmitGradeFinalizedIsImmutable(t *testing.T) {
	repo := &mockGradeRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusEnrolled, IsGradeFinalized: true, Grade: strPtr("B")},
	}}
	svc, _, _ := newGradeFixture(repo)

	_, err := svc.SubmitGrade(context.Background(), "e1", SubmitGradeRequest{Grade: "A"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestGradeServiceSubmitGradeRequiresEnrolled(t *testing.T) {
	repo := &mockGradeRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusWaitlisted},
	}}
	svc, _, _ := newGradeFixture(repo)

	_, err := svc.SubmitGrade(context.Background(), "e1", SubmitGradeRequest{Grade: "A"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceFinalizeSection(t *testing.T) {
	now := time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	repo := &mockGradeRepo{bySection: map[string][]models.Enrollment{
		"sec1": {
			{ID: "e1", StudentID: "s1", Status: models.EnrollmentStatusEnrolled, Grade: strPtr("A")},
			{ID: "e2", StudentID: "s2", Status: models.EnrollmentStatusEnrolled, Grade: strPtr("F")},
			{ID: "e3", StudentID: "s3", Status: models.EnrollmentStatusEnrolled, Grade: strPtr("WF")},
			{ID: "e4", StudentID: "s4", Status: models.EnrollmentStatusEnrolled},
			{ID: "e5", StudentID: "s5", Status: models.EnrollmentStatusWithdrawn, Grade: strPtr("W")},
		},
	}}
	svc, records, notifier := newGradeFixture(repo)
	svc.now = func() time.Time { return now }

	result, err := svc.FinalizeSection(context.Background(), "sec1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Finalized)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.MissingGrades)
	assert.Equal(t, 0, result.AlreadySettled)

	require.Len(t, repo.finalized, 3)
	assert.Equal(t, models.EnrollmentStatusCompleted, repo.finalized[0].Status)
	assert.Equal(t, models.EnrollmentStatusFailed, repo.finalized[1].Status)
	assert.Equal(t, models.EnrollmentStatusFailed, repo.finalized[2].Status)
	assert.Equal(t, now, repo.finalized[0].FinalizedAt)

	assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, records.recomputed)
	assert.Len(t, notifier.sent, 3)
	assert.Contains(t, notifier.sent, models.NotificationGradesFinalized)
}

func TestGradeServiceFinalizeSectionIdempotent(t *testing.T) {
	repo := &mockGradeRepo{bySection: map[string][]models.Enrollment{
		"sec1": {
			{ID: "e1", StudentID: "s1", Status: models.EnrollmentStatusEnrolled, Grade: strPtr("A"), IsGradeFinalized: true},
			{ID: "e2", StudentID: "s2", Status: models.EnrollmentStatusEnrolled, Grade: strPtr("B"), IsGradeFinalized: true},
		},
	}}
	svc, records, _ := newGradeFixture(repo)

	result, err := svc.FinalizeSection(context.Background(), "sec1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Finalized)
	assert.Equal(t, 2, result.AlreadySettled)
	assert.Empty(t, repo.finalized)
	assert.Empty(t, records.recomputed)
}

func TestGradeServiceFinalizeSectionUnknownSection(t *testing.T) {
	repo := &mockGradeRepo{}
	svc, _, _ := newGradeFixture(repo)

	_, err := svc.FinalizeSection(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceSectionRoster(t *testing.T) {
	repo := &mockGradeRepo{bySection: map[string][]models.Enrollment{
		"sec1": {
			{ID: "e1", StudentID: "s1", Status: models.EnrollmentStatusEnrolled, Grade: strPtr("A"),
				EnrollmentDate: time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)},
			{ID: "e2", StudentID: "s2", Status: models.EnrollmentStatusWaitlisted,
				EnrollmentDate: time.Date(2026, 1, 13, 9, 0, 0, 0, time.UTC)},
		},
	}}
	svc, _, _ := newGradeFixture(repo)

	csv, filename, err := svc.SectionRoster(context.Background(), "sec1")
	require.NoError(t, err)
	assert.Contains(t, filename, ".csv")

	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student Number,Student Name,Status,Grade,Enrolled", lines[0])
	assert.Equal(t, "N-s1,Student s1,ENROLLED,A,2026-01-12", lines[1])
	assert.Equal(t, "N-s2,Student s2,WAITLISTED,,2026-01-13", lines[2])
}

func TestGradeServiceSectionRosterUnknownSection(t *testing.T) {
	repo := &mockGradeRepo{}
	svc, _, _ := newGradeFixture(repo)

	_, _, err := svc.SectionRoster(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
