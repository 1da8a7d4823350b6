package repository

import (
	"context"
	"database/sql"
	"fmt"

	"bunkhouse/internal/database"
	"bunkhouse/internal/models"

	"github.com/lib/pq"
)

type PaymentRepository struct {
	db *database.DB
}

func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (booking_id, amount, currency, status, provider_reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, refunded_amount, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		payment.BookingID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.ProviderReference,
	).Scan(&payment.ID, &payment.RefundedAmount, &payment.CreatedAt, &payment.UpdatedAt)
}

func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID string) (*models.Payment, error) {
	payment := &models.Payment{}
	query := `
		SELECT id, booking_id, amount, currency, status, refunded_amount,
		       provider_reference, created_at, updated_at
		FROM payments
		WHERE booking_id = $1`

	err := r.db.QueryRowContext(ctx, query, bookingID).Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.RefundedAmount,
		&payment.ProviderReference,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return payment, err
}

func (r *PaymentRepository) GetByProviderReference(ctx context.Context, ref string) (*models.Payment, error) {
	payment := &models.Payment{}
	query := `
		SELECT id, booking_id, amount, currency, status, refunded_amount,
		       provider_reference, created_at, updated_at
		FROM payments
		WHERE provider_reference = $1`

	err := r.db.QueryRowContext(ctx, query, ref).Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.RefundedAmount,
		&payment.ProviderReference,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return payment, err
}

// UpdateStatus transitions a payment only from one of the expected statuses.
// Returns false when the payment was already past the expected state, which
// callers treat as an idempotent no-op.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id, status string, expected ...string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)`

	res, err := r.db.ExecContext(ctx, query, status, id, pq.Array(expected))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PaymentRepository) SetProviderReference(ctx context.Context, id, ref string) error {
	query := `UPDATE payments SET provider_reference = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, ref, id)
	return err
}

// ApplyRefund increments refunded_amount by amount inside one transaction,
// re-checking the 0 <= refunded_amount <= amount bound under a row lock so
// concurrent refunds cannot overdraw the payment. It flips the payment status
// to refunded exactly when the running total reaches the full amount, and
// returns the new running total. Lock conflicts retry the whole transaction.
func (r *PaymentRepository) ApplyRefund(ctx context.Context, id string, amount int64) (int64, string, error) {
	var newTotal int64
	var status string
	err := database.ExecuteWithRetry(ctx, func() error {
		var err error
		newTotal, status, err = r.applyRefund(ctx, id, amount)
		return err
	})
	return newTotal, status, err
}

func (r *PaymentRepository) applyRefund(ctx context.Context, id string, amount int64) (int64, string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	var total, refunded int64
	lockQuery := `SELECT amount, refunded_amount FROM payments WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lockQuery, id).Scan(&total, &refunded); err != nil {
		if err == sql.ErrNoRows {
			return 0, "", fmt.Errorf("payment %s not found", id)
		}
		return 0, "", err
	}

	if refunded+amount > total {
		return 0, "", fmt.Errorf("refund of %d exceeds remaining balance %d", amount, total-refunded)
	}

	newRefunded := refunded + amount
	status := models.PaymentStatusCompleted
	if newRefunded == total {
		status = models.PaymentStatusRefunded
	}

	updateQuery := `
		UPDATE payments
		SET refunded_amount = $1, status = $2, updated_at = NOW()
		WHERE id = $3`
	if _, err := tx.ExecContext(ctx, updateQuery, newRefunded, status, id); err != nil {
		return 0, "", err
	}

	if err := tx.Commit(); err != nil {
		return 0, "", err
	}

	return newRefunded, status, nil
}
