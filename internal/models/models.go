package models

import "time"

// CustomerInfo - customer sub-object of a checkout request
type CustomerInfo struct {
	Email            string  `json:"email" binding:"required"`
	FirstName        string  `json:"first_name" binding:"required"`
	LastName         string  `json:"last_name" binding:"required"`
	Phone            *string `json:"phone,omitempty"`
	DateOfBirth      *string `json:"date_of_birth,omitempty"`
	EmergencyContact *string `json:"emergency_contact,omitempty"`
}

// AddOnInput - one requested add-on line
type AddOnInput struct {
	AddOnID  string `json:"add_on_id" binding:"required"`
	Quantity int    `json:"quantity"`
}

// CreateCheckoutRequest - request to turn a cart into a priced, reserved
// booking with a provider-hosted checkout session
type CreateCheckoutRequest struct {
	RoomID          *string      `json:"room_id,omitempty"`
	CampWeekID      *string      `json:"camp_week_id,omitempty"`
	CheckIn         *string      `json:"check_in,omitempty"`  // YYYY-MM-DD
	CheckOut        *string      `json:"check_out,omitempty"` // YYYY-MM-DD
	Participants    int          `json:"participants"`
	Customer        CustomerInfo `json:"customer"`
	AddOns          []AddOnInput `json:"addons,omitempty"`
	PromoCode       *string      `json:"promo_code,omitempty"`
	SpecialRequests *string      `json:"special_requests,omitempty"`
	SuccessURL      string       `json:"success_url"`
	CancelURL       string       `json:"cancel_url"`
}

// CreateCheckoutResponse - successful checkout creation
type CreateCheckoutResponse struct {
	CheckoutURL   string    `json:"checkout_url"`
	SessionID     string    `json:"session_id"`
	BookingID     string    `json:"booking_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	CustomerEmail string    `json:"customer_email"`
	AmountTotal   int64     `json:"amount_total"`
	Currency      string    `json:"currency"`
}

// WebhookAck statuses
const (
	WebhookStatusProcessed        = "processed"
	WebhookStatusAlreadyProcessed = "already_processed"
	WebhookStatusRejected         = "rejected"
)

// WebhookAck - result of processing one provider event delivery
type WebhookAck struct {
	Status string `json:"status"`
}

// ProviderEvent - the envelope the payment provider posts to the webhook
// receiver
type ProviderEvent struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Created int64             `json:"created"`
	Data    ProviderEventData `json:"data"`
}

type ProviderEventData struct {
	Object ProviderEventObject `json:"object"`
}

// ProviderEventObject - the subset of provider object fields the engine
// correlates on
type ProviderEventObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent,omitempty"`
	AmountTotal   int64             `json:"amount_total,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Refund reasons accepted by the refund endpoint
var RefundReasons = map[string]bool{
	"customer_request":      true,
	"duplicate":             true,
	"fraudulent":            true,
	"requested_by_customer": true,
	"other":                 true,
}

// RefundRequest - request to refund all or part of a booking's payment
type RefundRequest struct {
	BookingID string  `json:"booking_id" binding:"required"`
	Amount    *int64  `json:"amount,omitempty"`
	Reason    string  `json:"reason" binding:"required"`
	Notes     *string `json:"notes,omitempty"`
}

// RefundResponse - outcome of a refund. AmountRefunded carries the capped
// value so callers observe how much was actually refunded.
type RefundResponse struct {
	RefundID       string    `json:"refund_id"`
	AmountRefunded int64     `json:"amount_refunded"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	BookingStatus  string    `json:"booking_status"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// DateAvailability - remaining capacity for one date
type DateAvailability struct {
	Date      string `json:"date"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Remaining int    `json:"remaining"`
	Available bool   `json:"available"`
}

// AvailabilitySummary - aggregate view over the queried range
type AvailabilitySummary struct {
	TotalDatesChecked     int `json:"total_dates_checked"`
	ParticipantsRequested int `json:"participants_requested"`
	TotalCapacity         int `json:"total_capacity"`
	SoldOutDates          int `json:"sold_out_dates"`
}

// AvailabilityResponse - availability query result with explicit cache
// metadata so callers decide freshness themselves
type AvailabilityResponse struct {
	DateAvailability []DateAvailability  `json:"date_availability"`
	Summary          AvailabilitySummary `json:"summary"`
	CheckedAt        time.Time           `json:"checked_at"`
	CacheExpiresAt   time.Time           `json:"cache_expires_at"`
	Fallback         bool                `json:"fallback"`
}

// ConfirmBookingRequest - staff/automation acknowledgment after payment
type ConfirmBookingRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
}

// CancelBookingRequest - pre-payment cancellation of a booking
type CancelBookingRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
}

// ErrorResponse - machine-readable error code plus human-readable message
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
