package repository

import (
	"context"
	"database/sql"
	"time"

	"bunkhouse/internal/database"
	"bunkhouse/internal/models"

	"github.com/lib/pq"
)

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bookings (customer_email, customer_name, customer_phone, status,
		                      total_amount, currency, special_requests, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		booking.CustomerEmail,
		booking.CustomerName,
		booking.CustomerPhone,
		booking.Status,
		booking.TotalAmount,
		booking.Currency,
		booking.SpecialRequests,
		booking.ExpiresAt,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO booking_items (booking_id, item_type, resource_id, label, quantity,
		                           unit_price, subtotal, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	for i := range booking.Items {
		item := &booking.Items[i]
		item.BookingID = booking.ID
		err = tx.QueryRowContext(ctx, itemQuery,
			item.BookingID,
			item.ItemType,
			item.ResourceID,
			item.Label,
			item.Quantity,
			item.UnitPrice,
			item.Subtotal,
			item.StartDate,
			item.EndDate,
		).Scan(&item.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `
		SELECT id, customer_email, customer_name, customer_phone, status, total_amount,
		       currency, special_requests, session_id, expires_at, created_at, updated_at
		FROM bookings
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.CustomerEmail,
		&booking.CustomerName,
		&booking.CustomerPhone,
		&booking.Status,
		&booking.TotalAmount,
		&booking.Currency,
		&booking.SpecialRequests,
		&booking.SessionID,
		&booking.ExpiresAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return booking, err
}

// GetBySessionID retrieves a booking by its provider checkout session id,
// used when webhook metadata carries only the session reference.
func (r *BookingRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `
		SELECT id, customer_email, customer_name, customer_phone, status, total_amount,
		       currency, special_requests, session_id, expires_at, created_at, updated_at
		FROM bookings
		WHERE session_id = $1`

	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&booking.ID,
		&booking.CustomerEmail,
		&booking.CustomerName,
		&booking.CustomerPhone,
		&booking.Status,
		&booking.TotalAmount,
		&booking.Currency,
		&booking.SpecialRequests,
		&booking.SessionID,
		&booking.ExpiresAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return booking, err
}

func (r *BookingRepository) GetItems(ctx context.Context, bookingID string) ([]models.BookingItem, error) {
	var items []models.BookingItem
	query := `
		SELECT id, booking_id, item_type, resource_id, label, quantity,
		       unit_price, subtotal, start_date, end_date
		FROM booking_items
		WHERE booking_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.BookingItem
		err := rows.Scan(
			&item.ID,
			&item.BookingID,
			&item.ItemType,
			&item.ResourceID,
			&item.Label,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.StartDate,
			&item.EndDate,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// UpdateStatus transitions a booking only when it is still in one of the
// expected statuses. It returns the number of rows changed so callers can
// apply transitions idempotently instead of blindly overwriting.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id, status string, expected ...string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)`

	res, err := r.db.ExecContext(ctx, query, status, id, pq.Array(expected))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *BookingRepository) SetSession(ctx context.Context, id, sessionID string, expiresAt time.Time) error {
	query := `
		UPDATE bookings
		SET session_id = $1, expires_at = $2, status = 'pending', updated_at = NOW()
		WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, sessionID, expiresAt, id)
	return err
}

// GetExpired retrieves pending bookings whose checkout session expired before
// the cutoff. Only the reaper calls this.
func (r *BookingRepository) GetExpired(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	query := `
		SELECT id, customer_email, customer_name, customer_phone, status, total_amount,
		       currency, special_requests, session_id, expires_at, created_at, updated_at
		FROM bookings
		WHERE status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
		ORDER BY expires_at ASC`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var booking models.Booking
		err := rows.Scan(
			&booking.ID,
			&booking.CustomerEmail,
			&booking.CustomerName,
			&booking.CustomerPhone,
			&booking.Status,
			&booking.TotalAmount,
			&booking.Currency,
			&booking.SpecialRequests,
			&booking.SessionID,
			&booking.ExpiresAt,
			&booking.CreatedAt,
			&booking.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}
