package repository

import (
	"context"
	"database/sql"
	"time"

	"bunkhouse/internal/database"
	apperrors "bunkhouse/internal/errors"
	"bunkhouse/internal/models"
)

type CapacityRepository struct {
	db *database.DB
}

func NewCapacityRepository(db *database.DB) *CapacityRepository {
	return &CapacityRepository{db: db}
}

func (r *CapacityRepository) ListActiveRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	query := `
		SELECT id, name, capacity, nightly_rate, active, created_at
		FROM rooms
		WHERE active = TRUE
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var room models.Room
		err := rows.Scan(&room.ID, &room.Name, &room.Capacity, &room.NightlyRate, &room.Active, &room.CreatedAt)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (r *CapacityRepository) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	room := &models.Room{}
	query := `SELECT id, name, capacity, nightly_rate, active, created_at FROM rooms WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID, &room.Name, &room.Capacity, &room.NightlyRate, &room.Active, &room.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return room, err
}

func (r *CapacityRepository) GetCampWeek(ctx context.Context, id string) (*models.CampWeek, error) {
	week := &models.CampWeek{}
	query := `
		SELECT id, name, start_date, end_date, total_seats, seat_price, active, created_at
		FROM camp_weeks WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&week.ID, &week.Name, &week.StartDate, &week.EndDate,
		&week.TotalSeats, &week.SeatPrice, &week.Active, &week.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return week, err
}

// ActiveAssignmentsInRange returns all unreleased assignments whose date range
// overlaps [start, end). Reads run under a snapshot, so a remaining count is
// never observed mid-transaction.
func (r *CapacityRepository) ActiveAssignmentsInRange(ctx context.Context, start, end time.Time) ([]models.CapacityAssignment, error) {
	var assignments []models.CapacityAssignment
	query := `
		SELECT id, booking_id, resource_type, resource_id, start_date, end_date, created_at, released_at
		FROM capacity_assignments
		WHERE released_at IS NULL
		  AND start_date < $2
		  AND end_date > $1`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a models.CapacityAssignment
		err := rows.Scan(&a.ID, &a.BookingID, &a.ResourceType, &a.ResourceID,
			&a.StartDate, &a.EndDate, &a.CreatedAt, &a.ReleasedAt)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// Reserve holds one unit of the resource for the booking. The capacity check
// and the insert run in the same transaction with the resource row locked, so
// two concurrent Reserve calls cannot both pass a stale availability check.
// Lock conflicts between concurrent reservations retry the whole transaction.
func (r *CapacityRepository) Reserve(ctx context.Context, resourceType, resourceID string, start, end time.Time, bookingID string) (*models.CapacityAssignment, error) {
	var assignment *models.CapacityAssignment
	err := database.ExecuteWithRetry(ctx, func() error {
		var err error
		assignment, err = r.reserve(ctx, resourceType, resourceID, start, end, bookingID)
		return err
	})
	return assignment, err
}

func (r *CapacityRepository) reserve(ctx context.Context, resourceType, resourceID string, start, end time.Time, bookingID string) (*models.CapacityAssignment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var capacity int
	switch resourceType {
	case models.ResourceTypeCampWeek:
		lockQuery := `SELECT total_seats FROM camp_weeks WHERE id = $1 AND active = TRUE FOR UPDATE`
		err = tx.QueryRowContext(ctx, lockQuery, resourceID).Scan(&capacity)
	default:
		lockQuery := `SELECT capacity FROM rooms WHERE id = $1 AND active = TRUE FOR UPDATE`
		err = tx.QueryRowContext(ctx, lockQuery, resourceID).Scan(&capacity)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	// Re-check remaining capacity inside the transaction.
	var booked int
	countQuery := `
		SELECT COUNT(*)
		FROM capacity_assignments
		WHERE resource_id = $1
		  AND released_at IS NULL
		  AND start_date < $3
		  AND end_date > $2`
	if err := tx.QueryRowContext(ctx, countQuery, resourceID, start, end).Scan(&booked); err != nil {
		return nil, err
	}

	if booked >= capacity {
		return nil, &apperrors.CapacityError{ResourceID: resourceID, Date: start.Format("2006-01-02")}
	}

	assignment := &models.CapacityAssignment{
		BookingID:    bookingID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		StartDate:    start,
		EndDate:      end,
	}

	insertQuery := `
		INSERT INTO capacity_assignments (booking_id, resource_type, resource_id, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err = tx.QueryRowContext(ctx, insertQuery,
		bookingID, resourceType, resourceID, start, end,
	).Scan(&assignment.ID, &assignment.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return assignment, nil
}

// Release frees a single assignment. Releasing an already-released assignment
// is a no-op.
func (r *CapacityRepository) Release(ctx context.Context, assignmentID string) error {
	query := `
		UPDATE capacity_assignments
		SET released_at = NOW()
		WHERE id = $1 AND released_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, assignmentID)
	return err
}

// ReleaseForBooking frees every active assignment held by the booking and
// returns how many were released.
func (r *CapacityRepository) ReleaseForBooking(ctx context.Context, bookingID string) (int, error) {
	query := `
		UPDATE capacity_assignments
		SET released_at = NOW()
		WHERE booking_id = $1 AND released_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, bookingID)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

func (r *CapacityRepository) GetAddOn(ctx context.Context, id string) (*models.AddOn, error) {
	addOn := &models.AddOn{}
	query := `SELECT id, name, unit_price, active FROM add_ons WHERE id = $1 AND active = TRUE`

	err := r.db.QueryRowContext(ctx, query, id).Scan(&addOn.ID, &addOn.Name, &addOn.UnitPrice, &addOn.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return addOn, err
}

func (r *CapacityRepository) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	promo := &models.PromoCode{}
	query := `SELECT code, discount_amount, active FROM promo_codes WHERE code = $1 AND active = TRUE`

	err := r.db.QueryRowContext(ctx, query, code).Scan(&promo.Code, &promo.DiscountAmount, &promo.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return promo, err
}
