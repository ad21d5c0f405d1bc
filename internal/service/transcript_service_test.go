package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
)

type mockTranscriptRepo struct {
	rows map[string][]models.TranscriptRow
}

func (m *mockTranscriptRepo) TranscriptRows(ctx context.Context, studentID string) ([]models.TranscriptRow, error) {
	return m.rows[studentID], nil
}

type mockRecordWriter struct {
	students map[string]*models.Student
	updated  map[string]models.AcademicRecord
}

func (m *mockRecordWriter) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRecordWriter) UpdateAcademicRecord(ctx context.Context, id string, record models.AcademicRecord) error {
	if m.updated == nil {
		m.updated = make(map[string]models.AcademicRecord)
	}
	m.updated[id] = record
	return nil
}

func floatPtr(f float64) *float64 { return &f }

func transcriptFixtureRows() []models.TranscriptRow {
	return []models.TranscriptRow{
		{EnrollmentID: "e1", TermID: "t1", TermName: "Fall 2025", CourseCode: "CS101", CreditHours: 3, Grade: "A", GradePoints: floatPtr(4.0)},
		{EnrollmentID: "e2", TermID: "t1", TermName: "Fall 2025", CourseCode: "MA101", CreditHours: 4, Grade: "B", GradePoints: floatPtr(3.0)},
		{EnrollmentID: "e3", TermID: "t1", TermName: "Fall 2025", CourseCode: "PE100", CreditHours: 1, Grade: "P"},
		{EnrollmentID: "e4", TermID: "t2", TermName: "Spring 2026", CourseCode: "CS102", CreditHours: 3, Grade: "F", GradePoints: floatPtr(0)},
		{EnrollmentID: "e5", TermID: "t2", TermName: "Spring 2026", CourseCode: "HI200", CreditHours: 3, Grade: "W"},
	}
}

func newTranscriptFixture(rows []models.TranscriptRow) (*TranscriptService, *mockRecordWriter) {
	repo := &mockTranscriptRepo{rows: map[string][]models.TranscriptRow{"s1": rows}}
	students := &mockRecordWriter{students: map[string]*models.Student{
		"s1": {ID: "s1", StudentNumber: "S-0001", FullName: "Dana Reyes"},
	}}
	svc := NewTranscriptService(repo, students, nil, nil, time.Minute, zap.NewNop())
	return svc, students
}

func TestTranscriptServiceGroupsByTerm(t *testing.T) {
	svc, _ := newTranscriptFixture(transcriptFixtureRows())

	transcript, err := svc.Transcript(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, transcript.Terms, 2)
	assert.Equal(t, "Fall 2025", transcript.Terms[0].TermName)
	assert.Len(t, transcript.Terms[0].Rows, 3)
	assert.Equal(t, "Spring 2026", transcript.Terms[1].TermName)

	// Fall: (4.0*3 + 3.0*4) / 7, P excluded from GPA but earns credit.
	require.NotNil(t, transcript.Terms[0].TermGPA)
	assert.InDelta(t, 24.0/7.0, *transcript.Terms[0].TermGPA, 0.001)
	assert.InDelta(t, 7.0, transcript.Terms[0].CreditsAttempted, 0.001)
	assert.InDelta(t, 8.0, transcript.Terms[0].CreditsEarned, 0.001)

	// Spring: F counts as zero, W excluded entirely.
	require.NotNil(t, transcript.Terms[1].TermGPA)
	assert.InDelta(t, 0.0, *transcript.Terms[1].TermGPA, 0.001)
	assert.InDelta(t, 0.0, transcript.Terms[1].CreditsEarned, 0.001)

	require.NotNil(t, transcript.CumulativeGPA)
	assert.InDelta(t, 24.0/10.0, *transcript.CumulativeGPA, 0.001)
	assert.InDelta(t, 10.0, transcript.TotalCreditsAttempted, 0.001)
	assert.InDelta(t, 8.0, transcript.TotalCreditsEarned, 0.001)
}

func TestTranscriptServiceEmptyHistory(t *testing.T) {
	svc, _ := newTranscriptFixture(nil)

	transcript, err := svc.Transcript(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, transcript.Terms)
	assert.Nil(t, transcript.CumulativeGPA)
	assert.Equal(t, "Dana Reyes", transcript.StudentName)
}

func TestTranscriptServicePDF(t *testing.T) {
	svc, _ := newTranscriptFixture(transcriptFixtureRows())

	pdf, err := svc.TranscriptPDF(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestTranscriptServiceRecomputeAcademicRecord(t *testing.T) {
	svc, students := newTranscriptFixture(transcriptFixtureRows())

	err := svc.RecomputeAcademicRecord(context.Background(), "s1")
	require.NoError(t, err)

	record, ok := students.updated["s1"]
	require.True(t, ok)
	assert.InDelta(t, 2.4, record.CumulativeGPA, 0.001)
	assert.Equal(t, models.StandingGood, record.Standing)
	assert.InDelta(t, 10.0, record.TotalCreditsAttempted, 0.001)
	assert.InDelta(t, 8.0, record.TotalCreditsEarned, 0.001)
}

func TestTranscriptServiceRecomputeKeepsGoodStandingWithoutGrades(t *testing.T) {
	svc, students := newTranscriptFixture(nil)

	err := svc.RecomputeAcademicRecord(context.Background(), "s1")
	require.NoError(t, err)

	record := students.updated["s1"]
	assert.Equal(t, models.StandingGood, record.Standing)
	assert.Zero(t, record.CumulativeGPA)
}

func TestStandingThresholds(t *testing.T) {
	cases := []struct {
		gpa  float64
		want models.AcademicStanding
	}{
		{3.8, models.StandingGood},
		{2.0, models.StandingGood},
		{1.9, models.StandingWarning},
		{1.5, models.StandingWarning},
		{1.4, models.StandingProbation},
		{1.0, models.StandingProbation},
		{0.9, models.StandingDismissed},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, standingFor(tc.gpa), "gpa %.1f", tc.gpa)
	}
}
