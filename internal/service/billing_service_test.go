package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
)

type mockBillingRepo struct {
	balance float64
	posted  []models.AccountTransaction
}

func (m *mockBillingRepo) List(ctx context.Context, filter models.TransactionFilter) ([]models.AccountTransaction, int, error) {
	return m.posted, len(m.posted), nil
}

func (m *mockBillingRepo) Post(ctx context.Context, transaction *models.AccountTransaction) (float64, error) {
	switch transaction.Type {
	case models.TransactionTypeCharge:
		m.balance += transaction.Amount
	case models.TransactionTypePayment:
		m.balance -= transaction.Amount
	}
	m.posted = append(m.posted, *transaction)
	return m.balance, nil
}

type mockHoldWriter struct {
	students map[string]*models.Student
	holds    map[string][2]bool
}

func (m *mockHoldWriter) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockHoldWriter) SetHolds(ctx context.Context, id string, financial, academic bool) error {
	if m.holds == nil {
		m.holds = make(map[string][2]bool)
	}
	m.holds[id] = [2]bool{financial, academic}
	if s, ok := m.students[id]; ok {
		s.FinancialHold = financial
		s.AcademicHold = academic
	}
	return nil
}

func newBillingFixture(balance float64, student *models.Student) (*BillingService, *mockBillingRepo, *mockHoldWriter, *mockNotifier) {
	repo := &mockBillingRepo{balance: balance}
	students := &mockHoldWriter{students: map[string]*models.Student{student.ID: student}}
	notifier := &mockNotifier{}
	svc := NewBillingService(repo, students, notifier, 450.0, 2500.0, validator.New(), zap.NewNop())
	return svc, repo, students, notifier
}

func TestBillingServicePostEnrollmentCharge(t *testing.T) {
	svc, repo, _, notifier := newBillingFixture(0, &models.Student{ID: "s1"})

	err := svc.PostEnrollmentCharge(context.Background(), "s1", "e1", "CS101", 3)
	require.NoError(t, err)
	require.Len(t, repo.posted, 1)
	assert.Equal(t, models.TransactionTypeCharge, repo.posted[0].Type)
	assert.InDelta(t, 1350.0, repo.posted[0].Amount, 0.001)
	assert.Contains(t, repo.posted[0].Description, "CS101")
	require.NotNil(t, repo.posted[0].EnrollmentID)
	assert.Equal(t, "e1", *repo.posted[0].EnrollmentID)
	assert.Contains(t, notifier.sent, models.NotificationChargePosted)
}

func TestBillingServiceChargePlacesHoldAtThreshold(t *testing.T) {
	svc, _, students, notifier := newBillingFixture(1600, &models.Student{ID: "s1"})

	// 1600 + 3*450 = 2950, past the 2500 threshold.
	err := svc.PostEnrollmentCharge(context.Background(), "s1", "e1", "CS101", 3)
	require.NoError(t, err)
	holds, ok := students.holds["s1"]
	require.True(t, ok)
	assert.True(t, holds[0])
	assert.False(t, holds[1])
	assert.Contains(t, notifier.sent, models.NotificationHoldPlaced)
}

func TestBillingServicePaymentClearsHold(t *testing.T) {
	svc, _, students, _ := newBillingFixture(3000, &models.Student{ID: "s1", FinancialHold: true})

	transaction, err := svc.RecordPayment(context.Background(), "s1", RecordPaymentRequest{
		Amount:      2000,
		Description: "Online payment",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypePayment, transaction.Type)
	holds := students.holds["s1"]
	assert.False(t, holds[0])
}

func TestBillingServicePaymentPreservesAcademicHold(t *testing.T) {
	svc, _, students, _ := newBillingFixture(3000, &models.Student{ID: "s1", FinancialHold: true, AcademicHold: true})

	_, err := svc.RecordPayment(context.Background(), "s1", RecordPaymentRequest{
		Amount:      2900,
		Description: "Wire transfer",
	})
	require.NoError(t, err)
	holds := students.holds["s1"]
	assert.False(t, holds[0])
	assert.True(t, holds[1])
}

func TestBillingServicePaymentBelowThresholdLeavesHoldsUntouched(t *testing.T) {
	svc, _, students, _ := newBillingFixture(1000, &models.Student{ID: "s1"})

	_, err := svc.RecordPayment(context.Background(), "s1", RecordPaymentRequest{
		Amount:      500,
		Description: "Partial payment",
	})
	require.NoError(t, err)
	assert.Empty(t, students.holds)
}

func TestBillingServiceRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	svc, repo, _, _ := newBillingFixture(0, &models.Student{ID: "s1"})

	_, err := svc.RecordPayment(context.Background(), "s1", RecordPaymentRequest{
		Amount:      -50,
		Description: "refund?",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.posted)
}

func TestBillingServiceRecordPaymentUnknownStudent(t *testing.T) {
	svc, _, _, _ := newBillingFixture(0, &models.Student{ID: "s1"})

	_, err := svc.RecordPayment(context.Background(), "missing", RecordPaymentRequest{
		Amount:      100,
		Description: "Cash",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
