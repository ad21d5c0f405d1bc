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

type billingRepository interface {
	List(ctx context.Context, filter models.TransactionFilter) ([]models.AccountTransaction, int, error)
	Post(ctx context.Context, transaction *models.AccountTransaction) (float64, error)
}

type holdWriter interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	SetHolds(ctx context.Context, id string, financial, academic bool) error
}

// RecordPaymentRequest posts a payment against a student account.
type RecordPaymentRequest struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"required"`
}

// BillingService posts tuition charges and payments and maintains the
// financial hold derived from the account balance.
type BillingService struct {
	repo          billingRepository
	students      holdWriter
	notifier      enrollmentNotifier
	perCreditRate float64
	holdBalance   float64
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewBillingService constructs BillingService.
func NewBillingService(repo billingRepository, students holdWriter, notifier enrollmentNotifier, perCreditRate, holdBalance float64, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{
		repo:          repo,
		students:      students,
		notifier:      notifier,
		perCreditRate: perCreditRate,
		holdBalance:   holdBalance,
		validator:     validate,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ListTransactions returns a student's account history.
func (s *BillingService) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.AccountTransaction, *models.Pagination, error) {
	transactions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return transactions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// PostEnrollmentCharge posts the tuition charge for one admitted
// enrollment, credit hours times the per-credit rate.
func (s *BillingService) PostEnrollmentCharge(ctx context.Context, studentID, enrollmentID, courseCode string, creditHours float64) error {
	amount := creditHours * s.perCreditRate
	transaction := &models.AccountTransaction{
		StudentID:    studentID,
		Type:         models.TransactionTypeCharge,
		Amount:       amount,
		Description:  fmt.Sprintf("Tuition for %s (%.1f credits)", courseCode, creditHours),
		EnrollmentID: &enrollmentID,
		PostedAt:     s.now(),
	}
	balance, err := s.repo.Post(ctx, transaction)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to post charge")
	}

	if s.notifier != nil {
		s.notifier.Notify(studentID, models.NotificationChargePosted,
			"Tuition charge posted",
			fmt.Sprintf("A charge of %.2f was posted for %s.", amount, courseCode))
	}
	s.syncFinancialHold(ctx, studentID, balance)
	return nil
}

// RecordPayment posts a payment and clears the financial hold when the
// balance falls back under the threshold.
func (s *BillingService) RecordPayment(ctx context.Context, studentID string, req RecordPaymentRequest) (*models.AccountTransaction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	transaction := &models.AccountTransaction{
		StudentID:   studentID,
		Type:        models.TransactionTypePayment,
		Amount:      req.Amount,
		Description: req.Description,
		PostedAt:    s.now(),
	}
	balance, err := s.repo.Post(ctx, transaction)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to post payment")
	}

	s.syncFinancialHold(ctx, studentID, balance)
	return transaction, nil
}

// syncFinancialHold places or clears the financial hold based on the
// post-transaction balance. Failures are logged, the posted transaction
// stands either way.
func (s *BillingService) syncFinancialHold(ctx context.Context, studentID string, balance float64) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		s.logger.Error("load student for hold sync", zap.String("student_id", studentID), zap.Error(err))
		return
	}

	shouldHold := balance >= s.holdBalance
	if shouldHold == student.FinancialHold {
		return
	}
	if err := s.students.SetHolds(ctx, studentID, shouldHold, student.AcademicHold); err != nil {
		s.logger.Error("update financial hold", zap.String("student_id", studentID), zap.Error(err))
		return
	}
	if shouldHold {
		s.logger.Info("financial hold placed", zap.String("student_id", studentID), zap.Float64("balance", balance))
		if s.notifier != nil {
			s.notifier.Notify(studentID, models.NotificationHoldPlaced,
				"Financial hold placed",
				fmt.Sprintf("Your account balance of %.2f triggered a registration hold.", balance))
		}
	} else {
		s.logger.Info("financial hold cleared", zap.String("student_id", studentID), zap.Float64("balance", balance))
	}
}
