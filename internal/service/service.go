package service

import (
	"context"
	"time"

	"bunkhouse/internal/external"
	"bunkhouse/internal/models"
	"bunkhouse/internal/repository"
)

// Store interfaces kept small so tests can swap in-memory fakes for the
// Postgres repositories.

type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Booking, error)
	GetItems(ctx context.Context, bookingID string) ([]models.BookingItem, error)
	UpdateStatus(ctx context.Context, id, status string, expected ...string) (bool, error)
	SetSession(ctx context.Context, id, sessionID string, expiresAt time.Time) error
	GetExpired(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByBookingID(ctx context.Context, bookingID string) (*models.Payment, error)
	GetByProviderReference(ctx context.Context, ref string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id, status string, expected ...string) (bool, error)
	SetProviderReference(ctx context.Context, id, ref string) error
	ApplyRefund(ctx context.Context, id string, amount int64) (int64, string, error)
}

type CapacityStore interface {
	ListActiveRooms(ctx context.Context) ([]models.Room, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	GetCampWeek(ctx context.Context, id string) (*models.CampWeek, error)
	ActiveAssignmentsInRange(ctx context.Context, start, end time.Time) ([]models.CapacityAssignment, error)
	Reserve(ctx context.Context, resourceType, resourceID string, start, end time.Time, bookingID string) (*models.CapacityAssignment, error)
	Release(ctx context.Context, assignmentID string) error
	ReleaseForBooking(ctx context.Context, bookingID string) (int, error)
	GetAddOn(ctx context.Context, id string) (*models.AddOn, error)
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
}

type WebhookStore interface {
	Claim(ctx context.Context, providerEventID, eventType string) (*repository.ClaimResult, error)
	MarkProcessed(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, id int64, errMsg string) error
}

// CheckoutProvider is the payment provider surface the engine depends on.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req external.CheckoutSessionRequest) (*external.CheckoutSessionResponse, error)
	CreateRefund(ctx context.Context, paymentReference string, amount int64, reason string) (*external.RefundResult, error)
	ExpireSession(ctx context.Context, sessionID string) error
	VerifyWebhookSignature(payload []byte, signature string) bool
}

// EventPublisher publishes lifecycle events to the message bus.
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// AuditWriter appends entries to the audit sink.
type AuditWriter interface {
	Write(ctx context.Context, entry models.AuditLogEntry)
}

type Services struct {
	Availability *AvailabilityService
	Checkout     *CheckoutService
	Webhooks     *WebhookService
	Refunds      *RefundService
	Bookings     *BookingService
}

type Options struct {
	CheckoutTTL          time.Duration
	AvailabilityCacheTTL time.Duration
}

func NewServices(repos *repository.Repositories, natsClient EventPublisher, paymentClient CheckoutProvider, auditSink AuditWriter, opts Options) *Services {
	if opts.CheckoutTTL == 0 {
		opts.CheckoutTTL = 30 * time.Minute
	}
	if opts.AvailabilityCacheTTL == 0 {
		opts.AvailabilityCacheTTL = time.Minute
	}

	availabilityService := NewAvailabilityService(repos.Capacity, opts.AvailabilityCacheTTL)
	checkoutService := NewCheckoutService(repos.Bookings, repos.Payments, repos.Capacity, paymentClient, natsClient, auditSink, opts.CheckoutTTL)
	webhookService := NewWebhookService(repos.Bookings, repos.Payments, repos.Capacity, repos.WebhookEvents, paymentClient, natsClient, auditSink)
	refundService := NewRefundService(repos.Bookings, repos.Payments, repos.Capacity, paymentClient, natsClient, auditSink)
	bookingService := NewBookingService(repos.Bookings, repos.Payments, repos.Capacity, paymentClient, natsClient, auditSink)

	return &Services{
		Availability: availabilityService,
		Checkout:     checkoutService,
		Webhooks:     webhookService,
		Refunds:      refundService,
		Bookings:     bookingService,
	}
}

func writeAudit(ctx context.Context, sink AuditWriter, entry models.AuditLogEntry) {
	if sink != nil {
		sink.Write(ctx, entry)
	}
}
