package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unipanel/unipanel-api/internal/models"
)

// BillingRepository handles student account transactions. Posting a
// transaction and moving the account balance happen in one transaction.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository constructs the repository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// List returns transactions filtered by the provided criteria.
func (r *BillingRepository) List(ctx context.Context, filter models.TransactionFilter) ([]models.AccountTransaction, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, type, amount, description, enrollment_id, posted_at, created_at
        FROM account_transactions%s ORDER BY posted_at DESC LIMIT %d OFFSET %d`, clause, size, offset)

	var transactions []models.AccountTransaction
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM account_transactions" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	return transactions, total, nil
}

// Post inserts the transaction and adjusts the student balance in one
// transaction. Returns the resulting balance.
func (r *BillingRepository) Post(ctx context.Context, transaction *models.AccountTransaction) (float64, error) {
	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if transaction.PostedAt.IsZero() {
		transaction.PostedAt = now
	}
	transaction.CreatedAt = now

	delta := transaction.Amount
	if transaction.Type == models.TransactionTypePayment {
		delta = -transaction.Amount
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin billing tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO account_transactions (id, student_id, type, amount, description,
        enrollment_id, posted_at, created_at)
        VALUES (:id, :student_id, :type, :amount, :description, :enrollment_id, :posted_at, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, transaction); err != nil {
		return 0, fmt.Errorf("post transaction: %w", err)
	}

	var balance float64
	err = tx.GetContext(ctx, &balance,
		`UPDATE students SET account_balance = account_balance + $2, updated_at = $3
         WHERE id = $1 AND deleted_at IS NULL RETURNING account_balance`,
		transaction.StudentID, delta, now)
	if err != nil {
		return 0, fmt.Errorf("adjust account balance: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit billing tx: %w", err)
	}
	return balance, nil
}
