package service

import (
	"context"
	"fmt"
	"time"

	apperrors "bunkhouse/internal/errors"
	"bunkhouse/internal/logger"
	"bunkhouse/internal/models"
)

type BookingService struct {
	bookingRepo  BookingStore
	paymentRepo  PaymentStore
	capacityRepo CapacityStore
	provider     CheckoutProvider
	natsClient   EventPublisher
	auditSink    AuditWriter
}

func NewBookingService(bookingRepo BookingStore, paymentRepo PaymentStore, capacityRepo CapacityStore, provider CheckoutProvider, natsClient EventPublisher, auditSink AuditWriter) *BookingService {
	return &BookingService{
		bookingRepo:  bookingRepo,
		paymentRepo:  paymentRepo,
		capacityRepo: capacityRepo,
		provider:     provider,
		natsClient:   natsClient,
		auditSink:    auditSink,
	}
}

// GetBooking loads a booking with its line items.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrNotFound
	}

	items, err := s.bookingRepo.GetItems(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking items: %w", err)
	}
	booking.Items = items

	return booking, nil
}

// Confirm moves a paid booking to confirmed. Confirming an already confirmed
// booking is a no-op; any other state is a conflict.
func (s *BookingService) Confirm(ctx context.Context, bookingID, actor string) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrNotFound
	}

	if booking.Status == models.BookingStatusConfirmed {
		return booking, nil
	}

	changed, err := s.bookingRepo.UpdateStatus(ctx, booking.ID, models.BookingStatusConfirmed, models.BookingStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}
	if !changed {
		return nil, apperrors.ErrConflict
	}
	booking.Status = models.BookingStatusConfirmed

	if err := s.natsClient.Publish(models.EventBookingConfirmed, models.BookingConfirmedEvent{
		BookingID: booking.ID,
		Actor:     actor,
		Timestamp: time.Now(),
	}); err != nil {
		logger.WithContext(ctx).Error("Failed to publish booking confirmed event",
			"error", err,
			"event_type", models.EventBookingConfirmed)
	}

	writeAudit(ctx, s.auditSink, models.AuditLogEntry{
		Actor:        actor,
		Action:       "booking.confirmed",
		ResourceType: "booking",
		ResourceID:   booking.ID,
		Success:      true,
	})

	return booking, nil
}

// Cancel aborts an unpaid booking and releases its holds. Paid bookings go
// through the refund path instead.
func (s *BookingService) Cancel(ctx context.Context, bookingID, actor string) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrNotFound
	}

	if booking.Status == models.BookingStatusCancelled {
		return booking, nil
	}

	changed, err := s.bookingRepo.UpdateStatus(ctx, booking.ID, models.BookingStatusCancelled,
		models.BookingStatusDraft, models.BookingStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if !changed {
		return nil, apperrors.ErrConflict
	}
	booking.Status = models.BookingStatusCancelled

	released, err := s.capacityRepo.ReleaseForBooking(ctx, booking.ID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to release assignments for cancelled booking",
			"error", err,
			"booking_id", booking.ID)
	}

	if booking.SessionID != nil && *booking.SessionID != "" {
		if err := s.provider.ExpireSession(ctx, *booking.SessionID); err != nil {
			logger.WithContext(ctx).Warn("Failed to expire checkout session",
				"error", err,
				"booking_id", booking.ID,
				"session_id", *booking.SessionID)
		}
	}

	payment, err := s.paymentRepo.GetByBookingID(ctx, booking.ID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to get payment for cancelled booking",
			"error", err,
			"booking_id", booking.ID)
	} else if payment != nil {
		if _, err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusFailed, models.PaymentStatusPending); err != nil {
			logger.WithContext(ctx).Error("Failed to fail payment for cancelled booking",
				"error", err,
				"booking_id", booking.ID)
		}
	}

	if err := s.natsClient.Publish(models.EventBookingCancelled, models.BookingCancelledEvent{
		BookingID: booking.ID,
		Reason:    "cancelled_by_" + actor,
		Timestamp: time.Now(),
	}); err != nil {
		logger.WithContext(ctx).Error("Failed to publish booking cancelled event",
			"error", err,
			"event_type", models.EventBookingCancelled)
	}

	writeAudit(ctx, s.auditSink, models.AuditLogEntry{
		Actor:        actor,
		Action:       "booking.cancelled",
		ResourceType: "booking",
		ResourceID:   booking.ID,
		Success:      true,
		Details:      fmt.Sprintf("released_assignments=%d", released),
	})

	return booking, nil
}

// ExpireStale reaps pending bookings whose checkout window lapsed without a
// payment confirmation. Each expired booking releases its holds and gets its
// provider session expired so the customer cannot pay against dead inventory.
// Returns the number of bookings expired.
func (s *BookingService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.bookingRepo.GetExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to load expired bookings: %w", err)
	}

	expired := 0
	for i := range stale {
		booking := &stale[i]

		// Re-check under the conditional update: a webhook may have marked
		// the booking paid between the select and now.
		changed, err := s.bookingRepo.UpdateStatus(ctx, booking.ID, models.BookingStatusCancelled,
			models.BookingStatusDraft, models.BookingStatusPending)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to expire booking",
				"error", err,
				"booking_id", booking.ID)
			continue
		}
		if !changed {
			continue
		}

		released, err := s.capacityRepo.ReleaseForBooking(ctx, booking.ID)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to release assignments for expired booking",
				"error", err,
				"booking_id", booking.ID)
		}

		if booking.SessionID != nil && *booking.SessionID != "" {
			if err := s.provider.ExpireSession(ctx, *booking.SessionID); err != nil {
				logger.WithContext(ctx).Warn("Failed to expire checkout session",
					"error", err,
					"booking_id", booking.ID,
					"session_id", *booking.SessionID)
			}
		}

		payment, err := s.paymentRepo.GetByBookingID(ctx, booking.ID)
		if err == nil && payment != nil {
			if _, err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusFailed, models.PaymentStatusPending); err != nil {
				logger.WithContext(ctx).Error("Failed to fail payment for expired booking",
					"error", err,
					"booking_id", booking.ID)
			}
		}

		if err := s.natsClient.Publish(models.EventBookingExpired, models.BookingExpiredEvent{
			BookingID: booking.ID,
			Reason:    "checkout_window_lapsed",
			Timestamp: time.Now(),
		}); err != nil {
			logger.WithContext(ctx).Error("Failed to publish booking expired event",
				"error", err,
				"event_type", models.EventBookingExpired)
		}

		writeAudit(ctx, s.auditSink, models.AuditLogEntry{
			Actor:        "reaper",
			Action:       "booking.expired",
			ResourceType: "booking",
			ResourceID:   booking.ID,
			Success:      true,
			Details:      fmt.Sprintf("released_assignments=%d", released),
		})

		expired++
	}

	return expired, nil
}
