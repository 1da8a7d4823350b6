package models

import "time"

// NATS Event Types
const (
	EventBookingCreated   = "booking.created"
	EventBookingPaid      = "booking.paid"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingExpired   = "booking.expired"
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventRefundProcessed  = "refund.processed"
)

// BookingCreatedEvent represents a checkout successfully turned into a
// reserved booking
type BookingCreatedEvent struct {
	BookingID   string    `json:"booking_id"`
	SessionID   string    `json:"session_id"`
	TotalAmount int64     `json:"total_amount"`
	Currency    string    `json:"currency"`
	Timestamp   time.Time `json:"timestamp"`
}

// BookingPaidEvent represents a booking moved to paid by the provider
type BookingPaidEvent struct {
	BookingID string    `json:"booking_id"`
	PaymentID string    `json:"payment_id"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingConfirmedEvent represents the business-process acknowledgment
type BookingConfirmedEvent struct {
	BookingID string    `json:"booking_id"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingCancelledEvent represents a booking released before payment
type BookingCancelledEvent struct {
	BookingID string    `json:"booking_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingExpiredEvent represents a reaper-cancelled stale checkout
type BookingExpiredEvent struct {
	BookingID string    `json:"booking_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentCompletedEvent represents a successful payment
type PaymentCompletedEvent struct {
	BookingID string    `json:"booking_id"`
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentFailedEvent represents a failed payment
type PaymentFailedEvent struct {
	BookingID string    `json:"booking_id"`
	PaymentID string    `json:"payment_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RefundProcessedEvent represents a completed refund, full or partial
type RefundProcessedEvent struct {
	BookingID      string    `json:"booking_id"`
	PaymentID      string    `json:"payment_id"`
	RefundID       string    `json:"refund_id"`
	AmountRefunded int64     `json:"amount_refunded"`
	FullRefund     bool      `json:"full_refund"`
	Timestamp      time.Time `json:"timestamp"`
}
