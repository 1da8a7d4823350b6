package service

import (
	"context"
	"fmt"
	"time"

	apperrors "bunkhouse/internal/errors"
	"bunkhouse/internal/external"
	"bunkhouse/internal/logger"
	"bunkhouse/internal/models"
)

const defaultCurrency = "usd"

type CheckoutService struct {
	bookingRepo  BookingStore
	paymentRepo  PaymentStore
	capacityRepo CapacityStore
	provider     CheckoutProvider
	natsClient   EventPublisher
	auditSink    AuditWriter
	checkoutTTL  time.Duration
}

func NewCheckoutService(bookingRepo BookingStore, paymentRepo PaymentStore, capacityRepo CapacityStore, provider CheckoutProvider, natsClient EventPublisher, auditSink AuditWriter, checkoutTTL time.Duration) *CheckoutService {
	return &CheckoutService{
		bookingRepo:  bookingRepo,
		paymentRepo:  paymentRepo,
		capacityRepo: capacityRepo,
		provider:     provider,
		natsClient:   natsClient,
		auditSink:    auditSink,
		checkoutTTL:  checkoutTTL,
	}
}

// reservationPlan is the priced, validated shape of a checkout request before
// any state is written.
type reservationPlan struct {
	items        []models.BookingItem
	total        int64
	resourceType string
	resourceID   string
	start        time.Time
	end          time.Time
	units        int
}

// CreateCheckout validates the request, reserves capacity, creates a draft
// booking and pending payment, and opens a provider checkout session.
// Capacity is reserved before the session is created so a session is never
// advertised for inventory that cannot be honored; if session creation fails
// the reservation is rolled back.
func (s *CheckoutService) CreateCheckout(ctx context.Context, req *models.CreateCheckoutRequest) (*models.CreateCheckoutResponse, error) {
	plan, err := s.buildPlan(ctx, req)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		CustomerEmail:   req.Customer.Email,
		CustomerName:    fmt.Sprintf("%s %s", req.Customer.FirstName, req.Customer.LastName),
		CustomerPhone:   req.Customer.Phone,
		Status:          models.BookingStatusDraft,
		TotalAmount:     plan.total,
		Currency:        defaultCurrency,
		SpecialRequests: req.SpecialRequests,
		Items:           plan.items,
	}
	expiresAt := time.Now().UTC().Add(s.checkoutTTL)
	booking.ExpiresAt = &expiresAt

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	// All-or-nothing reservation: any shortfall releases the holds already
	// made in this call.
	var held []string
	for i := 0; i < plan.units; i++ {
		assignment, err := s.capacityRepo.Reserve(ctx, plan.resourceType, plan.resourceID, plan.start, plan.end, booking.ID)
		if err != nil {
			s.rollbackDraft(ctx, booking.ID, "", held)
			if apperrors.IsCapacity(err) {
				writeAudit(ctx, s.auditSink, models.AuditLogEntry{
					Actor:        req.Customer.Email,
					Action:       "checkout.capacity_rejected",
					ResourceType: "booking",
					ResourceID:   booking.ID,
					Success:      false,
					Details:      err.Error(),
				})
			}
			return nil, err
		}
		held = append(held, assignment.ID)
	}

	payment := &models.Payment{
		BookingID: booking.ID,
		Amount:    plan.total,
		Currency:  defaultCurrency,
		Status:    models.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		s.rollbackDraft(ctx, booking.ID, "", held)
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, external.CheckoutSessionRequest{
		Amount:        plan.total,
		Currency:      defaultCurrency,
		CustomerEmail: req.Customer.Email,
		Description:   fmt.Sprintf("Booking %s", booking.ID),
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		ExpiresAt:     expiresAt.Unix(),
		Metadata: map[string]string{
			"booking_id":  booking.ID,
			"payment_id":  payment.ID,
			"resource_id": plan.resourceID,
		},
	})
	if err != nil {
		// No orphaned holds: roll the reservation back before surfacing.
		s.rollbackDraft(ctx, booking.ID, payment.ID, held)

		writeAudit(ctx, s.auditSink, models.AuditLogEntry{
			Actor:        req.Customer.Email,
			Action:       "checkout.session_failed",
			ResourceType: "booking",
			ResourceID:   booking.ID,
			Success:      false,
			Details:      err.Error(),
		})
		return nil, &apperrors.ProviderError{Op: "create_checkout_session", Err: err}
	}

	if err := s.bookingRepo.SetSession(ctx, booking.ID, session.SessionID, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to attach session: %w", err)
	}

	providerRef := session.PaymentIntent
	if providerRef == "" {
		providerRef = session.SessionID
	}
	if err := s.paymentRepo.SetProviderReference(ctx, payment.ID, providerRef); err != nil {
		return nil, fmt.Errorf("failed to attach provider reference: %w", err)
	}

	if err := s.natsClient.Publish(models.EventBookingCreated, models.BookingCreatedEvent{
		BookingID:   booking.ID,
		SessionID:   session.SessionID,
		TotalAmount: plan.total,
		Currency:    defaultCurrency,
		Timestamp:   time.Now(),
	}); err != nil {
		logger.WithContext(ctx).Error("Failed to publish booking created event",
			"error", err,
			"booking_id", booking.ID,
			"event_type", models.EventBookingCreated)
	}

	writeAudit(ctx, s.auditSink, models.AuditLogEntry{
		Actor:        req.Customer.Email,
		Action:       "checkout.created",
		ResourceType: "booking",
		ResourceID:   booking.ID,
		Success:      true,
		Details:      fmt.Sprintf("session=%s amount=%d", session.SessionID, plan.total),
	})

	return &models.CreateCheckoutResponse{
		CheckoutURL:   session.URL,
		SessionID:     session.SessionID,
		BookingID:     booking.ID,
		ExpiresAt:     expiresAt,
		CustomerEmail: req.Customer.Email,
		AmountTotal:   plan.total,
		Currency:      defaultCurrency,
	}, nil
}

// buildPlan runs the validation order: structural fields first, then the
// customer sub-object, then resource resolution and pricing. No state is
// written here.
func (s *CheckoutService) buildPlan(ctx context.Context, req *models.CreateCheckoutRequest) (*reservationPlan, error) {
	if req.RoomID == nil && req.CampWeekID == nil {
		return nil, apperrors.NewValidationError("room_id", "a room_id or camp_week_id is required")
	}
	if req.Participants < 1 {
		return nil, apperrors.NewValidationError("participants", "at least one participant is required")
	}
	if req.SuccessURL == "" {
		return nil, apperrors.NewValidationError("success_url", "success_url is required")
	}
	if req.CancelURL == "" {
		return nil, apperrors.NewValidationError("cancel_url", "cancel_url is required")
	}

	if req.Customer.Email == "" {
		return nil, apperrors.NewValidationError("customer.email", "email is required")
	}
	if req.Customer.FirstName == "" {
		return nil, apperrors.NewValidationError("customer.first_name", "first_name is required")
	}
	if req.Customer.LastName == "" {
		return nil, apperrors.NewValidationError("customer.last_name", "last_name is required")
	}

	plan := &reservationPlan{}

	switch {
	case req.RoomID != nil:
		room, err := s.capacityRepo.GetRoom(ctx, *req.RoomID)
		if err != nil {
			return nil, fmt.Errorf("failed to get room: %w", err)
		}
		if room == nil || !room.Active {
			return nil, apperrors.NewValidationError("room_id", "unknown room")
		}
		if req.CheckIn == nil || req.CheckOut == nil {
			return nil, apperrors.NewValidationError("check_in", "check_in and check_out are required for room bookings")
		}
		start, err := time.Parse(dateLayout, *req.CheckIn)
		if err != nil {
			return nil, apperrors.NewValidationError("check_in", "invalid date format")
		}
		end, err := time.Parse(dateLayout, *req.CheckOut)
		if err != nil {
			return nil, apperrors.NewValidationError("check_out", "invalid date format")
		}
		if !end.After(start) {
			return nil, apperrors.NewValidationError("check_out", "check_out must be after check_in")
		}

		nights := int(end.Sub(start).Hours() / 24)
		roomID := room.ID
		plan.resourceType = models.ResourceTypeRoom
		plan.resourceID = room.ID
		plan.start = start
		plan.end = end
		plan.units = 1
		plan.items = append(plan.items, models.BookingItem{
			ItemType:   models.ResourceTypeRoom,
			ResourceID: &roomID,
			Label:      room.Name,
			Quantity:   nights,
			UnitPrice:  room.NightlyRate,
			Subtotal:   room.NightlyRate * int64(nights),
			StartDate:  &start,
			EndDate:    &end,
		})

	case req.CampWeekID != nil:
		week, err := s.capacityRepo.GetCampWeek(ctx, *req.CampWeekID)
		if err != nil {
			return nil, fmt.Errorf("failed to get camp week: %w", err)
		}
		if week == nil || !week.Active {
			return nil, apperrors.NewValidationError("camp_week_id", "unknown camp week")
		}

		weekID := week.ID
		plan.resourceType = models.ResourceTypeCampWeek
		plan.resourceID = week.ID
		plan.start = week.StartDate
		plan.end = week.EndDate
		plan.units = req.Participants
		plan.items = append(plan.items, models.BookingItem{
			ItemType:   models.ResourceTypeCampWeek,
			ResourceID: &weekID,
			Label:      week.Name,
			Quantity:   req.Participants,
			UnitPrice:  week.SeatPrice,
			Subtotal:   week.SeatPrice * int64(req.Participants),
			StartDate:  &week.StartDate,
			EndDate:    &week.EndDate,
		})
	}

	for _, addOnReq := range req.AddOns {
		qty := addOnReq.Quantity
		if qty < 1 {
			qty = 1
		}
		addOn, err := s.capacityRepo.GetAddOn(ctx, addOnReq.AddOnID)
		if err != nil {
			return nil, fmt.Errorf("failed to get add-on: %w", err)
		}
		if addOn == nil {
			return nil, apperrors.NewValidationError("addons", fmt.Sprintf("unknown add-on %s", addOnReq.AddOnID))
		}
		addOnID := addOn.ID
		plan.items = append(plan.items, models.BookingItem{
			ItemType:   "add_on",
			ResourceID: &addOnID,
			Label:      addOn.Name,
			Quantity:   qty,
			UnitPrice:  addOn.UnitPrice,
			Subtotal:   addOn.UnitPrice * int64(qty),
		})
	}

	var total int64
	for _, item := range plan.items {
		total += item.Subtotal
	}

	if req.PromoCode != nil && *req.PromoCode != "" {
		promo, err := s.capacityRepo.GetPromoCode(ctx, *req.PromoCode)
		if err != nil {
			return nil, fmt.Errorf("failed to get promo code: %w", err)
		}
		if promo == nil {
			return nil, apperrors.NewValidationError("promo_code", "unknown or inactive promo code")
		}
		discount := promo.DiscountAmount
		if discount > total {
			discount = total
		}
		plan.items = append(plan.items, models.BookingItem{
			ItemType:  "discount",
			Label:     promo.Code,
			Quantity:  1,
			UnitPrice: -discount,
			Subtotal:  -discount,
		})
		total -= discount
	}

	plan.total = total
	return plan, nil
}

// rollbackDraft unwinds a partially created checkout: releases any holds,
// cancels the draft booking and fails its pending payment when one exists.
// Write failures are logged so a booking stuck in draft is observable.
func (s *CheckoutService) rollbackDraft(ctx context.Context, bookingID, paymentID string, held []string) {
	s.releaseHolds(ctx, held)

	if _, err := s.bookingRepo.UpdateStatus(ctx, bookingID, models.BookingStatusCancelled, models.BookingStatusDraft); err != nil {
		logger.WithContext(ctx).Error("Failed to cancel booking during rollback",
			"error", err,
			"booking_id", bookingID)
	}

	if paymentID == "" {
		return
	}
	if _, err := s.paymentRepo.UpdateStatus(ctx, paymentID, models.PaymentStatusFailed, models.PaymentStatusPending); err != nil {
		logger.WithContext(ctx).Error("Failed to fail payment during rollback",
			"error", err,
			"payment_id", paymentID)
	}
}

func (s *CheckoutService) releaseHolds(ctx context.Context, assignmentIDs []string) {
	for _, id := range assignmentIDs {
		if err := s.capacityRepo.Release(ctx, id); err != nil {
			logger.WithContext(ctx).Error("Failed to release assignment during rollback",
				"error", err,
				"assignment_id", id)
		}
	}
}
