package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "bunkhouse/internal/errors"
	"bunkhouse/internal/logger"
	"bunkhouse/internal/models"
)

// MaxWebhookAttempts is the retry ceiling for one provider event. Beyond it
// the delivery is acknowledged as rejected and kept for manual review instead
// of being silently dropped.
const MaxWebhookAttempts = 5

type WebhookService struct {
	bookingRepo  BookingStore
	paymentRepo  PaymentStore
	capacityRepo CapacityStore
	webhookRepo  WebhookStore
	provider     CheckoutProvider
	natsClient   EventPublisher
	auditSink    AuditWriter
}

func NewWebhookService(bookingRepo BookingStore, paymentRepo PaymentStore, capacityRepo CapacityStore, webhookRepo WebhookStore, provider CheckoutProvider, natsClient EventPublisher, auditSink AuditWriter) *WebhookService {
	return &WebhookService{
		bookingRepo:  bookingRepo,
		paymentRepo:  paymentRepo,
		capacityRepo: capacityRepo,
		webhookRepo:  webhookRepo,
		provider:     provider,
		natsClient:   natsClient,
		auditSink:    auditSink,
	}
}

// HandleEvent verifies, deduplicates and applies one provider event delivery.
// An unverified payload is rejected before any row is written so an attacker
// cannot salt the idempotency table. Deliveries may arrive duplicated, out of
// order or hours late; every transition checks current state before applying,
// so re-delivery is always a no-op rather than a double-apply.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) (*models.WebhookAck, error) {
	if !s.provider.VerifyWebhookSignature(payload, signature) {
		return nil, apperrors.ErrInvalidSignature
	}

	var event models.ProviderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperrors.NewValidationError("payload", "malformed event payload")
	}
	if event.ID == "" || event.Type == "" {
		return nil, apperrors.NewValidationError("payload", "event id and type are required")
	}

	claim, err := s.webhookRepo.Claim(ctx, event.ID, event.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to claim webhook event: %w", err)
	}
	if claim.AlreadyProcessed {
		return &models.WebhookAck{Status: models.WebhookStatusAlreadyProcessed}, nil
	}

	if claim.Event.ProcessingAttempts > MaxWebhookAttempts {
		msg := fmt.Sprintf("retry ceiling of %d attempts exceeded", MaxWebhookAttempts)
		if err := s.webhookRepo.RecordFailure(ctx, claim.Event.ID, msg); err != nil {
			logger.WithContext(ctx).Error("Failed to record webhook failure", "error", err)
		}
		logger.WithContext(ctx).Error("Webhook event exceeded retry ceiling",
			"provider_event_id", event.ID,
			"event_type", event.Type,
			"attempts", claim.Event.ProcessingAttempts)
		writeAudit(ctx, s.auditSink, models.AuditLogEntry{
			Actor:        "provider",
			Action:       "webhook.retry_ceiling",
			ResourceType: "webhook_event",
			ResourceID:   event.ID,
			Success:      false,
			Details:      msg,
		})
		return &models.WebhookAck{Status: models.WebhookStatusRejected}, nil
	}

	if err := s.dispatch(ctx, &event); err != nil {
		if recordErr := s.webhookRepo.RecordFailure(ctx, claim.Event.ID, err.Error()); recordErr != nil {
			logger.WithContext(ctx).Error("Failed to record webhook failure", "error", recordErr)
		}
		return nil, err
	}

	// Only after all downstream writes committed.
	if err := s.webhookRepo.MarkProcessed(ctx, claim.Event.ID); err != nil {
		return nil, fmt.Errorf("failed to mark event processed: %w", err)
	}

	return &models.WebhookAck{Status: models.WebhookStatusProcessed}, nil
}

func (s *WebhookService) dispatch(ctx context.Context, event *models.ProviderEvent) error {
	switch event.Type {
	case "checkout.session.completed", "payment_intent.succeeded", "invoice.payment_succeeded":
		return s.handlePaymentSucceeded(ctx, event)

	case "payment_intent.payment_failed", "invoice.payment_failed":
		return s.handlePaymentFailed(ctx, event)

	case "charge.dispute.created":
		return s.handleDisputeCreated(ctx, event)

	default:
		// Acknowledged as a no-op so the provider does not retry forever.
		logger.WithContext(ctx).Info("Ignoring unsupported webhook event type",
			"event_type", event.Type,
			"provider_event_id", event.ID)
		return nil
	}
}

// resolveBooking correlates the event object back to a booking via session
// metadata, falling back to the session id and then the payment reference.
func (s *WebhookService) resolveBooking(ctx context.Context, obj *models.ProviderEventObject) (*models.Booking, error) {
	if bookingID, ok := obj.Metadata["booking_id"]; ok && bookingID != "" {
		booking, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if booking != nil {
			return booking, nil
		}
	}

	if obj.ID != "" {
		booking, err := s.bookingRepo.GetBySessionID(ctx, obj.ID)
		if err != nil {
			return nil, err
		}
		if booking != nil {
			return booking, nil
		}
	}

	if obj.PaymentIntent != "" {
		payment, err := s.paymentRepo.GetByProviderReference(ctx, obj.PaymentIntent)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return s.bookingRepo.GetByID(ctx, payment.BookingID)
		}
	}

	return nil, nil
}

func (s *WebhookService) handlePaymentSucceeded(ctx context.Context, event *models.ProviderEvent) error {
	booking, err := s.resolveBooking(ctx, &event.Data.Object)
	if err != nil {
		return fmt.Errorf("failed to resolve booking: %w", err)
	}
	if booking == nil {
		return fmt.Errorf("no booking for provider event %s", event.ID)
	}

	payment, err := s.paymentRepo.GetByBookingID(ctx, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return fmt.Errorf("no payment for booking %s", booking.ID)
	}

	// Idempotent transition: an already-completed payment is a no-op.
	paymentChanged, err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusCompleted, models.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("failed to complete payment: %w", err)
	}

	bookingChanged, err := s.bookingRepo.UpdateStatus(ctx, booking.ID, models.BookingStatusPaid,
		models.BookingStatusDraft, models.BookingStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark booking paid: %w", err)
	}

	if !paymentChanged && !bookingChanged {
		logger.WithContext(ctx).Info("Payment success already applied",
			"booking_id", booking.ID,
			"provider_event_id", event.ID)
		return nil
	}

	if err := s.natsClient.Publish(models.EventPaymentCompleted, models.PaymentCompletedEvent{
		BookingID: booking.ID,
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Timestamp: time.Now(),
	}); err != nil {
		logger.WithContext(ctx).Error("Failed to publish payment completed event",
			"error", err,
			"event_type", models.EventPaymentCompleted)
	}
	if err := s.natsClient.Publish(models.EventBookingPaid, models.BookingPaidEvent{
		BookingID: booking.ID,
		PaymentID: payment.ID,
		Timestamp: time.Now(),
	}); err != nil {
		logger.WithContext(ctx).Error("Failed to publish booking paid event",
			"error", err,
			"event_type", models.EventBookingPaid)
	}

	writeAudit(ctx, s.auditSink, models.AuditLogEntry{
		Actor:        "provider",
		Action:       "payment.completed",
		ResourceType: "booking",
		ResourceID:   booking.ID,
		Success:      true,
		Details:      fmt.Sprintf("event=%s amount=%d", event.ID, payment.Amount),
	})

	return nil
}

func (s *WebhookService) handlePaymentFailed(ctx context.Context, event *models.ProviderEvent) error {
	booking, err := s.resolveBooking(ctx, &event.Data.Object)
	if err != nil {
		return fmt.Errorf("failed to resolve booking: %w", err)
	}
	if booking == nil {
		return fmt.Errorf("no booking for provider event %s", event.ID)
	}

	payment, err := s.paymentRepo.GetByBookingID(ctx, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return fmt.Errorf("no payment for booking %s", booking.ID)
	}

	if _, err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusFailed, models.PaymentStatusPending); err != nil {
		return fmt.Errorf("failed to fail payment: %w", err)
	}

	changed, err := s.bookingRepo.UpdateStatus(ctx, booking.ID, models.BookingStatusCancelled,
		models.BookingStatusDraft, models.BookingStatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if !changed {
		// A stale failure after a success must not strip a paid booking.
		logger.WithContext(ctx).Info("Payment failure already applied or superseded",
			"booking_id", booking.ID,
			"provider_event_id", event.ID)
		return nil
	}

	// Inventory must not stay held against a dead payment.
	released, err := s.capacityRepo.ReleaseForBooking(ctx, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to release assignments: %w", err)
	}

	if err := s.natsClient.Publish(models.EventPaymentFailed, models.PaymentFailedEvent{
		BookingID: booking.ID,
		PaymentID: payment.ID,
		Reason:    event.Type,
		Timestamp: time.Now(),
	}); err != nil {
		logger.WithContext(ctx).Error("Failed to publish payment failed event",
			"error", err,
			"event_type", models.EventPaymentFailed)
	}

	writeAudit(ctx, s.auditSink, models.AuditLogEntry{
		Actor:        "provider",
		Action:       "payment.failed",
		ResourceType: "booking",
		ResourceID:   booking.ID,
		Success:      true,
		Details:      fmt.Sprintf("event=%s released_assignments=%d", event.ID, released),
	})

	return nil
}

// handleDisputeCreated records the dispute for manual review. Disputes
// require human adjudication, so no automatic state transition happens.
func (s *WebhookService) handleDisputeCreated(ctx context.Context, event *models.ProviderEvent) error {
	booking, err := s.resolveBooking(ctx, &event.Data.Object)
	if err != nil {
		return fmt.Errorf("failed to resolve booking: %w", err)
	}

	resourceID := event.Data.Object.PaymentIntent
	if booking != nil {
		resourceID = booking.ID
	}

	logger.WithContext(ctx).Warn("Charge dispute created, flagged for manual review",
		"provider_event_id", event.ID,
		"payment_intent", event.Data.Object.PaymentIntent)

	writeAudit(ctx, s.auditSink, models.AuditLogEntry{
		Actor:        "provider",
		Action:       "dispute.created",
		ResourceType: "booking",
		ResourceID:   resourceID,
		Success:      true,
		Details:      fmt.Sprintf("event=%s requires manual review", event.ID),
	})

	return nil
}
