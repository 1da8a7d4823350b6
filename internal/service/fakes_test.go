package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	apperrors "bunkhouse/internal/errors"
	"bunkhouse/internal/external"
	"bunkhouse/internal/models"
	"bunkhouse/internal/repository"

	"github.com/google/uuid"
)

// In-memory store fakes. They mirror the Postgres repositories' semantics
// closely enough to exercise the services, including conditional status
// transitions and the webhook claim.

type fakeBookingStore struct {
	mu              sync.Mutex
	bookings        map[string]*models.Booking
	items           map[string][]models.BookingItem
	updateStatusErr error
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{
		bookings: make(map[string]*models.Booking),
		items:    make(map[string][]models.BookingItem),
	}
}

func (f *fakeBookingStore) Create(_ context.Context, booking *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	booking.CreatedAt = time.Now()
	clone := *booking
	f.bookings[booking.ID] = &clone
	f.items[booking.ID] = append([]models.BookingItem(nil), booking.Items...)
	return nil
}

func (f *fakeBookingStore) GetByID(_ context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[id]
	if !ok {
		return nil, nil
	}
	clone := *booking
	return &clone, nil
}

func (f *fakeBookingStore) GetBySessionID(_ context.Context, sessionID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, booking := range f.bookings {
		if booking.SessionID != nil && *booking.SessionID == sessionID {
			clone := *booking
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeBookingStore) GetItems(_ context.Context, bookingID string) ([]models.BookingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.BookingItem(nil), f.items[bookingID]...), nil
}

func (f *fakeBookingStore) UpdateStatus(_ context.Context, id, status string, expected ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateStatusErr != nil {
		return false, f.updateStatusErr
	}
	booking, ok := f.bookings[id]
	if !ok {
		return false, nil
	}
	if len(expected) > 0 {
		matched := false
		for _, e := range expected {
			if booking.Status == e {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	booking.Status = status
	return true, nil
}

func (f *fakeBookingStore) SetSession(_ context.Context, id, sessionID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s not found", id)
	}
	booking.SessionID = &sessionID
	booking.ExpiresAt = &expiresAt
	booking.Status = models.BookingStatusPending
	return nil
}

func (f *fakeBookingStore) GetExpired(_ context.Context, cutoff time.Time) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, booking := range f.bookings {
		if booking.Status == models.BookingStatusPending &&
			booking.ExpiresAt != nil && booking.ExpiresAt.Before(cutoff) {
			out = append(out, *booking)
		}
	}
	return out, nil
}

type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{payments: make(map[string]*models.Payment)}
}

func (f *fakePaymentStore) Create(_ context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	clone := *payment
	f.payments[payment.ID] = &clone
	return nil
}

func (f *fakePaymentStore) GetByBookingID(_ context.Context, bookingID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, payment := range f.payments {
		if payment.BookingID == bookingID {
			clone := *payment
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentStore) GetByProviderReference(_ context.Context, ref string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, payment := range f.payments {
		if payment.ProviderReference != nil && *payment.ProviderReference == ref {
			clone := *payment
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentStore) UpdateStatus(_ context.Context, id, status string, expected ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[id]
	if !ok {
		return false, nil
	}
	if len(expected) > 0 {
		matched := false
		for _, e := range expected {
			if payment.Status == e {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	payment.Status = status
	return true, nil
}

func (f *fakePaymentStore) SetProviderReference(_ context.Context, id, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[id]
	if !ok {
		return fmt.Errorf("payment %s not found", id)
	}
	payment.ProviderReference = &ref
	return nil
}

func (f *fakePaymentStore) ApplyRefund(_ context.Context, id string, amount int64) (int64, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[id]
	if !ok {
		return 0, "", fmt.Errorf("payment %s not found", id)
	}
	if payment.RefundedAmount+amount > payment.Amount {
		return 0, "", fmt.Errorf("refund of %d exceeds remaining balance", amount)
	}
	payment.RefundedAmount += amount
	if payment.RefundedAmount == payment.Amount {
		payment.Status = models.PaymentStatusRefunded
	}
	return payment.RefundedAmount, payment.Status, nil
}

type fakeCapacityStore struct {
	mu          sync.Mutex
	rooms       map[string]*models.Room
	campWeeks   map[string]*models.CampWeek
	addOns      map[string]*models.AddOn
	promoCodes  map[string]*models.PromoCode
	assignments map[string]*models.CapacityAssignment
	listErr     error
}

func newFakeCapacityStore() *fakeCapacityStore {
	return &fakeCapacityStore{
		rooms:       make(map[string]*models.Room),
		campWeeks:   make(map[string]*models.CampWeek),
		addOns:      make(map[string]*models.AddOn),
		promoCodes:  make(map[string]*models.PromoCode),
		assignments: make(map[string]*models.CapacityAssignment),
	}
}

func (f *fakeCapacityStore) ListActiveRooms(_ context.Context) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Room
	for _, room := range f.rooms {
		if room.Active {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (f *fakeCapacityStore) GetRoom(_ context.Context, id string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, nil
	}
	clone := *room
	return &clone, nil
}

func (f *fakeCapacityStore) GetCampWeek(_ context.Context, id string) (*models.CampWeek, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	week, ok := f.campWeeks[id]
	if !ok {
		return nil, nil
	}
	clone := *week
	return &clone, nil
}

func (f *fakeCapacityStore) ActiveAssignmentsInRange(_ context.Context, start, end time.Time) ([]models.CapacityAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CapacityAssignment
	for _, a := range f.assignments {
		if a.Active() && a.StartDate.Before(end) && a.EndDate.After(start) {
			out = append(out, *a)
		}
	}
	return out, nil
}

// Reserve re-checks remaining capacity under the same lock that inserts the
// assignment, like the SELECT FOR UPDATE path it stands in for.
func (f *fakeCapacityStore) Reserve(_ context.Context, resourceType, resourceID string, start, end time.Time, bookingID string) (*models.CapacityAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var capacity int
	switch resourceType {
	case models.ResourceTypeRoom:
		room, ok := f.rooms[resourceID]
		if !ok {
			return nil, apperrors.ErrNotFound
		}
		capacity = room.Capacity
	case models.ResourceTypeCampWeek:
		week, ok := f.campWeeks[resourceID]
		if !ok {
			return nil, apperrors.ErrNotFound
		}
		capacity = week.TotalSeats
	default:
		return nil, fmt.Errorf("unknown resource type %s", resourceType)
	}

	booked := 0
	for _, a := range f.assignments {
		if a.Active() && a.ResourceID == resourceID && a.StartDate.Before(end) && a.EndDate.After(start) {
			booked++
		}
	}
	if booked >= capacity {
		return nil, &apperrors.CapacityError{ResourceID: resourceID, Date: start.Format("2006-01-02")}
	}

	assignment := &models.CapacityAssignment{
		ID:           uuid.New().String(),
		BookingID:    bookingID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		StartDate:    start,
		EndDate:      end,
		CreatedAt:    time.Now(),
	}
	f.assignments[assignment.ID] = assignment
	clone := *assignment
	return &clone, nil
}

func (f *fakeCapacityStore) Release(_ context.Context, assignmentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.assignments[assignmentID]; ok && a.ReleasedAt == nil {
		now := time.Now()
		a.ReleasedAt = &now
	}
	return nil
}

func (f *fakeCapacityStore) ReleaseForBooking(_ context.Context, bookingID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	released := 0
	now := time.Now()
	for _, a := range f.assignments {
		if a.BookingID == bookingID && a.ReleasedAt == nil {
			a.ReleasedAt = &now
			released++
		}
	}
	return released, nil
}

func (f *fakeCapacityStore) GetAddOn(_ context.Context, id string) (*models.AddOn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	addOn, ok := f.addOns[id]
	if !ok || !addOn.Active {
		return nil, nil
	}
	clone := *addOn
	return &clone, nil
}

func (f *fakeCapacityStore) GetPromoCode(_ context.Context, code string) (*models.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	promo, ok := f.promoCodes[code]
	if !ok || !promo.Active {
		return nil, nil
	}
	clone := *promo
	return &clone, nil
}

func (f *fakeCapacityStore) activeCount(bookingID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.assignments {
		if a.BookingID == bookingID && a.ReleasedAt == nil {
			count++
		}
	}
	return count
}

type fakeWebhookStore struct {
	mu     sync.Mutex
	nextID int64
	events map[string]*models.WebhookEvent
}

func newFakeWebhookStore() *fakeWebhookStore {
	return &fakeWebhookStore{events: make(map[string]*models.WebhookEvent)}
}

func (f *fakeWebhookStore) Claim(_ context.Context, providerEventID, eventType string) (*repository.ClaimResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	if event, ok := f.events[providerEventID]; ok {
		if !event.Processed {
			event.ProcessingAttempts++
			event.LastAttemptAt = &now
		}
		clone := *event
		return &repository.ClaimResult{Event: &clone, AlreadyProcessed: event.Processed}, nil
	}
	f.nextID++
	event := &models.WebhookEvent{
		ID:                 f.nextID,
		ProviderEventID:    providerEventID,
		EventType:          eventType,
		ProcessingAttempts: 1,
		LastAttemptAt:      &now,
		CreatedAt:          now,
	}
	f.events[providerEventID] = event
	clone := *event
	return &repository.ClaimResult{Event: &clone, AlreadyProcessed: false}, nil
}

func (f *fakeWebhookStore) MarkProcessed(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.ID == id {
			event.Processed = true
			event.ErrorMessage = nil
			return nil
		}
	}
	return fmt.Errorf("webhook event %d not found", id)
}

func (f *fakeWebhookStore) RecordFailure(_ context.Context, id int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.ID == id {
			event.ErrorMessage = &errMsg
			return nil
		}
	}
	return fmt.Errorf("webhook event %d not found", id)
}

// fakeProvider records calls and returns canned responses.
type fakeProvider struct {
	mu             sync.Mutex
	webhookSecret  string
	sessionErr     error
	refundErr      error
	refundCalls    []int64
	expiredIDs     []string
	sessionCounter int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{webhookSecret: "whsec_test"}
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req external.CheckoutSessionRequest) (*external.CheckoutSessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	f.sessionCounter++
	sessionID := fmt.Sprintf("cs_test_%d", f.sessionCounter)
	return &external.CheckoutSessionResponse{
		SessionID:     sessionID,
		PaymentIntent: "pi_" + sessionID,
		URL:           "https://checkout.example.com/" + sessionID,
		ExpiresAt:     req.ExpiresAt,
	}, nil
}

func (f *fakeProvider) CreateRefund(_ context.Context, paymentReference string, amount int64, reason string) (*external.RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refundCalls = append(f.refundCalls, amount)
	return &external.RefundResult{
		RefundID: fmt.Sprintf("re_test_%d", len(f.refundCalls)),
		Status:   "succeeded",
		Amount:   amount,
	}, nil
}

func (f *fakeProvider) ExpireSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiredIDs = append(f.expiredIDs, sessionID)
	return nil
}

func (f *fakeProvider) VerifyWebhookSignature(payload []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(signFake(f.webhookSecret, payload)))
}

// signFake computes the same HMAC-SHA256 hex signature the provider client
// verifies.
func signFake(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

type publishedMessage struct {
	Subject string
	Data    interface{}
}

func (f *fakePublisher) Publish(subject string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, publishedMessage{Subject: subject, Data: data})
	return nil
}

func (f *fakePublisher) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		out = append(out, m.Subject)
	}
	return out
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLogEntry
}

func (f *fakeAudit) Write(_ context.Context, entry models.AuditLogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}
