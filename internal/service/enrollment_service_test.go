package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	details     map[string]models.EnrollmentDetail
	existing    map[string]bool
	created     *models.Enrollment
	dropped     []string
	withdrawn   []string
	waitlisted  *models.Enrollment
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsNonTerminal(ctx context.Context, studentID, sectionID string) (bool, error) {
	return m.existing[studentID+sectionID], nil
}

func (m *mockEnrollmentRepo) CreateWithCounter(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enrollment"
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) DropEnrolled(ctx context.Context, id, sectionID string, at time.Time) (*models.Enrollment, error) {
	m.dropped = append(m.dropped, id)
	if e, ok := m.enrollments[id]; ok {
		e.Status = models.EnrollmentStatusDropped
		m.enrollments[id] = e
	}
	return m.waitlisted, nil
}

func (m *mockEnrollmentRepo) DropWaitlisted(ctx context.Context, id, sectionID string, at time.Time) error {
	m.dropped = append(m.dropped, id)
	if e, ok := m.enrollments[id]; ok {
		e.Status = models.EnrollmentStatusDropped
		m.enrollments[id] = e
	}
	return nil
}

func (m *mockEnrollmentRepo) Withdraw(ctx context.Context, id, sectionID string, at time.Time) error {
	m.withdrawn = append(m.withdrawn, id)
	if e, ok := m.enrollments[id]; ok {
		e.Status = models.EnrollmentStatusWithdrawn
		grade := models.GradeWithdrawn
		e.Grade = &grade
		m.enrollments[id] = e
	}
	return nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockSectionReader struct {
	sections map[string]*models.CourseSection
}

func (m *mockSectionReader) FindByID(ctx context.Context, id string) (*models.CourseSection, error) {
	if s, ok := m.sections[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSectionReader) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	if s, ok := m.sections[id]; ok {
		return &models.SectionDetail{CourseSection: *s}, nil
	}
	return nil, sql.ErrNoRows
}

type mockTermReader struct {
	terms map[string]*models.Term
}

func (m *mockTermReader) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

type mockTuitionPoster struct {
	charges []string
}

func (m *mockTuitionPoster) PostEnrollmentCharge(ctx context.Context, studentID, enrollmentID, courseCode string, creditHours float64) error {
	m.charges = append(m.charges, enrollmentID)
	return nil
}

type mockNotifier struct {
	sent []models.NotificationType
}

func (m *mockNotifier) Notify(studentID string, kind models.NotificationType, title, body string) {
	m.sent = append(m.sent, kind)
}

func openTerm(now time.Time) *models.Term {
	return &models.Term{
		ID:                 "t1",
		RegistrationStart:  now.Add(-24 * time.Hour),
		RegistrationEnd:    now.Add(24 * time.Hour),
		AddDropDeadline:    now.Add(7 * 24 * time.Hour),
		WithdrawalDeadline: now.Add(60 * 24 * time.Hour),
	}
}

func newEnrollmentFixture(section *models.CourseSection, term *models.Term) (*EnrollmentService, *mockEnrollmentRepo, *mockTuitionPoster, *mockNotifier) {
	repo := &mockEnrollmentRepo{}
	students := &mockStudentReader{students: map[string]*models.Student{"s1": {ID: "s1"}}}
	sections := &mockSectionReader{sections: map[string]*models.CourseSection{section.ID: section}}
	terms := &mockTermReader{terms: map[string]*models.Term{term.ID: term}}
	billing := &mockTuitionPoster{}
	notifier := &mockNotifier{}
	svc := NewEnrollmentService(repo, students, sections, terms, billing, notifier, nil, validator.New(), zap.NewNop())
	return svc, repo, billing, notifier
}

func TestEnrollmentServiceEnrollAdmitsWithSeat(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, CurrentEnrollment: 10, WaitlistCapacity: 5, IsOpen: true}
	svc, repo, billing, notifier := newEnrollmentFixture(section, openTerm(now))
	svc.now = func() time.Time { return now }

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, detail.Status)
	assert.Equal(t, now, repo.created.EnrollmentDate)
	assert.Contains(t, billing.charges, repo.created.ID)
	assert.Contains(t, notifier.sent, models.NotificationEnrollmentConfirmed)
}

func TestEnrollmentServiceEnrollCarriesNotes(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, CurrentEnrollment: 10, WaitlistCapacity: 5, IsOpen: true}
	svc, repo, _, _ := newEnrollmentFixture(section, openTerm(now))
	svc.now = func() time.Time { return now }

	notes := "advisor override, prerequisite waived"
	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1", Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, repo.created.Notes)
	assert.Equal(t, notes, *repo.created.Notes)
}

func TestEnrollmentServiceEnrollWaitlistsWhenFull(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, CurrentEnrollment: 30, WaitlistCapacity: 5, WaitlistCount: 2, IsOpen: true}
	svc, _, billing, notifier := newEnrollmentFixture(section, openTerm(now))
	svc.now = func() time.Time { return now }

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, detail.Status)
	assert.Empty(t, billing.charges)
	assert.Contains(t, notifier.sent, models.NotificationWaitlisted)
}

func TestEnrollmentServiceEnrollRejectsWhenSaturated(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, CurrentEnrollment: 30, WaitlistCapacity: 5, WaitlistCount: 5, IsOpen: true}
	svc, repo, _, _ := newEnrollmentFixture(section, openTerm(now))
	svc.now = func() time.Time { return now }

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestEnrollmentServiceEnrollBlockedByHold(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, IsOpen: true}
	svc, _, _, _ := newEnrollmentFixture(section, openTerm(now))
	svc.now = func() time.Time { return now }
	svc.students = &mockStudentReader{students: map[string]*models.Student{"s1": {ID: "s1", FinancialHold: true}}}

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrHoldActive.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRejectsDuplicate(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, IsOpen: true}
	svc, repo, _, _ := newEnrollmentFixture(section, openTerm(now))
	svc.now = func() time.Time { return now }
	repo.existing = map[string]bool{"s1sec1": true}

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollOutsideRegistrationWindow(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	term := openTerm(now)
	term.RegistrationEnd = now.Add(-time.Hour)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, IsOpen: true}
	svc, _, _, _ := newEnrollmentFixture(section, term)
	svc.now = func() time.Time { return now }

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeadlinePassed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRejectsCancelledSection(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, IsOpen: true, IsCancelled: true}
	svc, _, _, _ := newEnrollmentFixture(section, openTerm(now))
	svc.now = func() time.Time { return now }

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDropPromotesWaitlisted(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, IsOpen: true}
	svc, repo, billing, notifier := newEnrollmentFixture(section, openTerm(now))
	svc.now = func() time.Time { return now }
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
		"e2": {ID: "e2", StudentID: "s2", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
	}
	repo.waitlisted = &models.Enrollment{ID: "e2", StudentID: "s2", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled}

	_, err := svc.Drop(context.Background(), "e1")
	require.NoError(t, err)
	assert.Contains(t, repo.dropped, "e1")
	assert.Contains(t, billing.charges, "e2")
	assert.Contains(t, notifier.sent, models.NotificationWaitlistPromoted)
}

func TestEnrollmentServiceDropAfterDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	term := openTerm(now)
	term.AddDropDeadline = now.Add(-24 * time.Hour)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, IsOpen: true}
	svc, repo, _, _ := newEnrollmentFixture(section, term)
	svc.now = func() time.Time { return now }
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
	}

	_, err := svc.Drop(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeadlinePassed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.dropped)
}

func TestEnrollmentServiceDropTerminalState(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, IsOpen: true}
	svc, repo, _, _ := newEnrollmentFixture(section, openTerm(now))
	svc.now = func() time.Time { return now }
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusCompleted},
	}

	_, err := svc.Drop(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceWithdrawWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	term := openTerm(now)
	term.AddDropDeadline = now.Add(-7 * 24 * time.Hour)
	term.WithdrawalDeadline = now.Add(7 * 24 * time.Hour)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, IsOpen: true}
	svc, repo, _, _ := newEnrollmentFixture(section, term)
	svc.now = func() time.Time { return now }
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
	}

	detail, err := svc.Withdraw(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWithdrawn, detail.Status)
	require.NotNil(t, detail.Grade)
	assert.Equal(t, models.GradeWithdrawn, *detail.Grade)
}

func TestEnrollmentServiceWithdrawDuringAddDrop(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, IsOpen: true}
	svc, repo, _, _ := newEnrollmentFixture(section, openTerm(now))
	svc.now = func() time.Time { return now }
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
	}

	_, err := svc.Withdraw(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceWithdrawAfterDeadline(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	term := openTerm(now)
	term.AddDropDeadline = now.Add(-60 * 24 * time.Hour)
	term.WithdrawalDeadline = now.Add(-24 * time.Hour)
	section := &models.CourseSection{ID: "sec1", TermID: "t1", MaxEnrollment: 30, IsOpen: true}
	svc, repo, _, _ := newEnrollmentFixture(section, term)
	svc.now = func() time.Time { return now }
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
	}

	_, err := svc.Withdraw(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeadlinePassed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.withdrawn)
}
