package models

import (
	"time"
)

// Booking statuses. A booking is never deleted, only transitioned.
const (
	BookingStatusDraft     = "draft"
	BookingStatusPending   = "pending"
	BookingStatusPaid      = "paid"
	BookingStatusConfirmed = "confirmed"
	BookingStatusPartial   = "partial"
	BookingStatusCancelled = "cancelled"
	BookingStatusRefunded  = "refunded"
)

// Payment statuses. completed persists across partial refunds; only a refund
// equal to the full amount moves the payment to refunded.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Resource types consumed by capacity assignments.
const (
	ResourceTypeRoom     = "room"
	ResourceTypeCampWeek = "camp_week"
)

// Booking represents one reservation attempt.
type Booking struct {
	ID              string     `json:"id" db:"id"`
	CustomerEmail   string     `json:"customer_email" db:"customer_email"`
	CustomerName    string     `json:"customer_name" db:"customer_name"`
	CustomerPhone   *string    `json:"customer_phone" db:"customer_phone"`
	Status          string     `json:"status" db:"status"`
	TotalAmount     int64      `json:"total_amount" db:"total_amount"`
	Currency        string     `json:"currency" db:"currency"`
	SpecialRequests *string    `json:"special_requests" db:"special_requests"`
	SessionID       *string    `json:"session_id" db:"session_id"`
	ExpiresAt       *time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	Items           []BookingItem `json:"items,omitempty"` // Not from DB, filled separately
}

// BookingItem is one priced line of a booking. Subtotal is computed at
// creation time and immutable thereafter.
type BookingItem struct {
	ID         int64      `json:"id" db:"id"`
	BookingID  string     `json:"booking_id" db:"booking_id"`
	ItemType   string     `json:"item_type" db:"item_type"` // room, camp_week, add_on, discount
	ResourceID *string    `json:"resource_id" db:"resource_id"`
	Label      string     `json:"label" db:"label"`
	Quantity   int        `json:"quantity" db:"quantity"`
	UnitPrice  int64      `json:"unit_price" db:"unit_price"`
	Subtotal   int64      `json:"subtotal" db:"subtotal"`
	StartDate  *time.Time `json:"start_date" db:"start_date"`
	EndDate    *time.Time `json:"end_date" db:"end_date"`
}

// Payment is the monetary transaction tied 1:1 to a booking.
type Payment struct {
	ID                string    `json:"id" db:"id"`
	BookingID         string    `json:"booking_id" db:"booking_id"`
	Amount            int64     `json:"amount" db:"amount"`
	Currency          string    `json:"currency" db:"currency"`
	Status            string    `json:"status" db:"status"`
	RefundedAmount    int64     `json:"refunded_amount" db:"refunded_amount"`
	ProviderReference *string   `json:"provider_reference" db:"provider_reference"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// RemainingBalance is the amount still refundable on this payment.
func (p *Payment) RemainingBalance() int64 {
	return p.Amount - p.RefundedAmount
}

// WebhookEvent is the idempotency record for one provider event id. An event
// with Processed=true must never be re-applied.
type WebhookEvent struct {
	ID                 int64      `json:"id" db:"id"`
	ProviderEventID    string     `json:"provider_event_id" db:"provider_event_id"`
	EventType          string     `json:"event_type" db:"event_type"`
	Processed          bool       `json:"processed" db:"processed"`
	ProcessingAttempts int        `json:"processing_attempts" db:"processing_attempts"`
	LastAttemptAt      *time.Time `json:"last_attempt_at" db:"last_attempt_at"`
	ErrorMessage       *string    `json:"error_message" db:"error_message"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// CapacityAssignment is a unit of inventory held by a booking for a date
// range. One active assignment consumes exactly one unit of its resource.
type CapacityAssignment struct {
	ID           string     `json:"id" db:"id"`
	BookingID    string     `json:"booking_id" db:"booking_id"`
	ResourceType string     `json:"resource_type" db:"resource_type"`
	ResourceID   string     `json:"resource_id" db:"resource_id"`
	StartDate    time.Time  `json:"start_date" db:"start_date"`
	EndDate      time.Time  `json:"end_date" db:"end_date"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ReleasedAt   *time.Time `json:"released_at" db:"released_at"`
}

// Active reports whether the assignment still consumes capacity.
func (a *CapacityAssignment) Active() bool {
	return a.ReleasedAt == nil
}

// Overlaps reports whether the assignment covers the given date. The end date
// is exclusive (checkout day does not consume a night).
func (a *CapacityAssignment) Overlaps(date time.Time) bool {
	return !date.Before(a.StartDate) && date.Before(a.EndDate)
}

// Room is a bookable room with a declared capacity.
type Room struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Capacity    int       `json:"capacity" db:"capacity"`
	NightlyRate int64     `json:"nightly_rate" db:"nightly_rate"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CampWeek is one camp session with a fixed seat count.
type CampWeek struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	StartDate  time.Time `json:"start_date" db:"start_date"`
	EndDate    time.Time `json:"end_date" db:"end_date"`
	TotalSeats int       `json:"total_seats" db:"total_seats"`
	SeatPrice  int64     `json:"seat_price" db:"seat_price"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AddOn is an optional extra purchasable with a booking.
type AddOn struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	UnitPrice int64  `json:"unit_price" db:"unit_price"`
	Active    bool   `json:"active" db:"active"`
}

// PromoCode is a flat discount applied at checkout.
type PromoCode struct {
	Code           string `json:"code" db:"code"`
	DiscountAmount int64  `json:"discount_amount" db:"discount_amount"`
	Active         bool   `json:"active" db:"active"`
}

// AuditLogEntry is an immutable record of a state transition or
// administrative action. The engine appends entries, never reads them back.
type AuditLogEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Success      bool      `json:"success"`
	Details      string    `json:"details,omitempty"`
}
