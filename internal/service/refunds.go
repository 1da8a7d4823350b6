package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "bunkhouse/internal/errors"
	"bunkhouse/internal/logger"
	"bunkhouse/internal/models"

	"github.com/google/uuid"
)

type RefundService struct {
	bookingRepo  BookingStore
	paymentRepo  PaymentStore
	capacityRepo CapacityStore
	provider     CheckoutProvider
	natsClient   EventPublisher
	auditSink    AuditWriter

	// inFlight guards against double-refunding under retried client
	// requests: one refund per booking at a time.
	inFlight sync.Map
}

func NewRefundService(bookingRepo BookingStore, paymentRepo PaymentStore, capacityRepo CapacityStore, provider CheckoutProvider, natsClient EventPublisher, auditSink AuditWriter) *RefundService {
	return &RefundService{
		bookingRepo:  bookingRepo,
		paymentRepo:  paymentRepo,
		capacityRepo: capacityRepo,
		provider:     provider,
		natsClient:   natsClient,
		auditSink:    auditSink,
	}
}

// Refund refunds all or part of a booking's payment. A request for more than
// the remaining balance is capped, never rejected; the capped amount is
// returned so callers observe what was actually refunded. Inventory is
// released only on a full refund - a partially refunded guest still holds
// part of the booking.
func (s *RefundService) Refund(ctx context.Context, req *models.RefundRequest, actor string) (*models.RefundResponse, error) {
	if !models.RefundReasons[req.Reason] {
		return nil, apperrors.NewValidationError("reason", "unknown refund reason")
	}
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, apperrors.NewValidationError("amount", "amount must be positive")
	}

	if _, loaded := s.inFlight.LoadOrStore(req.BookingID, struct{}{}); loaded {
		return nil, apperrors.ErrConflict
	}
	defer s.inFlight.Delete(req.BookingID)

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrNotFound
	}

	switch booking.Status {
	case models.BookingStatusPaid, models.BookingStatusConfirmed, models.BookingStatusPartial:
	default:
		return nil, &apperrors.NotRefundableError{BookingID: booking.ID, Status: booking.Status}
	}

	payment, err := s.paymentRepo.GetByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, apperrors.ErrNotFound
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, &apperrors.NotRefundableError{BookingID: booking.ID, Status: payment.Status}
	}
	if payment.ProviderReference == nil {
		return nil, &apperrors.NotRefundableError{BookingID: booking.ID, Status: payment.Status}
	}

	remaining := payment.RemainingBalance()
	if remaining <= 0 {
		return nil, &apperrors.NotRefundableError{BookingID: booking.ID, Status: payment.Status}
	}

	actualRefund := remaining
	if req.Amount != nil && *req.Amount < remaining {
		actualRefund = *req.Amount
	}

	result, err := s.provider.CreateRefund(ctx, *payment.ProviderReference, actualRefund, req.Reason)
	if err != nil {
		writeAudit(ctx, s.auditSink, models.AuditLogEntry{
			Actor:        actor,
			Action:       "refund.failed",
			ResourceType: "booking",
			ResourceID:   booking.ID,
			Success:      false,
			Details:      fmt.Sprintf("amount=%d reason=%s error=%v", actualRefund, req.Reason, err),
		})
		return nil, &apperrors.ProviderError{Op: "create_refund", Err: err}
	}

	newRefunded, paymentStatus, err := s.paymentRepo.ApplyRefund(ctx, payment.ID, actualRefund)
	if err != nil {
		writeAudit(ctx, s.auditSink, models.AuditLogEntry{
			Actor:        actor,
			Action:       "refund.apply_failed",
			ResourceType: "booking",
			ResourceID:   booking.ID,
			Success:      false,
			Details:      fmt.Sprintf("provider_refund=%s amount=%d error=%v", result.RefundID, actualRefund, err),
		})
		return nil, fmt.Errorf("failed to apply refund: %w", err)
	}

	fullRefund := paymentStatus == models.PaymentStatusRefunded
	bookingStatus := models.BookingStatusPartial
	if fullRefund {
		bookingStatus = models.BookingStatusRefunded
	}

	if _, err := s.bookingRepo.UpdateStatus(ctx, booking.ID, bookingStatus,
		models.BookingStatusPaid, models.BookingStatusConfirmed, models.BookingStatusPartial); err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	if fullRefund {
		released, err := s.capacityRepo.ReleaseForBooking(ctx, booking.ID)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to release assignments after full refund",
				"error", err,
				"booking_id", booking.ID)
		} else if released > 0 {
			logger.WithContext(ctx).Info("Released capacity after full refund",
				"booking_id", booking.ID,
				"assignments_released", released)
		}
	}

	refundID := result.RefundID
	if refundID == "" {
		refundID = uuid.New().String()
	}
	processedAt := time.Now().UTC()

	if err := s.natsClient.Publish(models.EventRefundProcessed, models.RefundProcessedEvent{
		BookingID:      booking.ID,
		PaymentID:      payment.ID,
		RefundID:       refundID,
		AmountRefunded: actualRefund,
		FullRefund:     fullRefund,
		Timestamp:      processedAt,
	}); err != nil {
		logger.WithContext(ctx).Error("Failed to publish refund processed event",
			"error", err,
			"event_type", models.EventRefundProcessed)
	}

	writeAudit(ctx, s.auditSink, models.AuditLogEntry{
		Actor:        actor,
		Action:       "refund.processed",
		ResourceType: "booking",
		ResourceID:   booking.ID,
		Success:      true,
		Details: fmt.Sprintf("refund=%s amount=%d total_refunded=%d reason=%s full=%t",
			refundID, actualRefund, newRefunded, req.Reason, fullRefund),
	})

	return &models.RefundResponse{
		RefundID:       refundID,
		AmountRefunded: actualRefund,
		Currency:       payment.Currency,
		Status:         paymentStatus,
		BookingStatus:  bookingStatus,
		ProcessedAt:    processedAt,
	}, nil
}
