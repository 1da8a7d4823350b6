package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "bunkhouse/internal/errors"
	"bunkhouse/internal/external"
	"bunkhouse/internal/middleware"
	"bunkhouse/internal/models"
	"bunkhouse/internal/repository"
	"bunkhouse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"
const testAdminToken = "admin-token"

// memStore is a single in-memory backing store implementing every store
// interface the services need, enough to drive the HTTP surface end to end.
type memStore struct {
	mu           sync.Mutex
	bookings     map[string]*models.Booking
	items        map[string][]models.BookingItem
	payments     map[string]*models.Payment
	rooms        map[string]*models.Room
	assignments  map[string]*models.CapacityAssignment
	events       map[string]*models.WebhookEvent
	nextEventID  int64
	listRoomsErr error
}

func newMemStore() *memStore {
	return &memStore{
		bookings:    make(map[string]*models.Booking),
		items:       make(map[string][]models.BookingItem),
		payments:    make(map[string]*models.Payment),
		rooms:       make(map[string]*models.Room),
		assignments: make(map[string]*models.CapacityAssignment),
		events:      make(map[string]*models.WebhookEvent),
	}
}

func (m *memStore) Create(_ context.Context, booking *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	clone := *booking
	m.bookings[booking.ID] = &clone
	m.items[booking.ID] = append([]models.BookingItem(nil), booking.Items...)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		clone := *b
		return &clone, nil
	}
	return nil, nil
}

func (m *memStore) GetBySessionID(_ context.Context, sessionID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.SessionID != nil && *b.SessionID == sessionID {
			clone := *b
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetItems(_ context.Context, bookingID string) ([]models.BookingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.BookingItem(nil), m.items[bookingID]...), nil
}

func (m *memStore) UpdateStatus(_ context.Context, id, status string, expected ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, nil
	}
	if len(expected) > 0 {
		matched := false
		for _, e := range expected {
			if b.Status == e {
				matched = true
			}
		}
		if !matched {
			return false, nil
		}
	}
	b.Status = status
	return true, nil
}

func (m *memStore) SetSession(_ context.Context, id, sessionID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s not found", id)
	}
	b.SessionID = &sessionID
	b.ExpiresAt = &expiresAt
	b.Status = models.BookingStatusPending
	return nil
}

func (m *memStore) GetExpired(_ context.Context, cutoff time.Time) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.Status == models.BookingStatusPending && b.ExpiresAt != nil && b.ExpiresAt.Before(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

type memPayments struct{ store *memStore }

func (m *memPayments) Create(_ context.Context, payment *models.Payment) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	clone := *payment
	m.store.payments[payment.ID] = &clone
	return nil
}

func (m *memPayments) GetByBookingID(_ context.Context, bookingID string) (*models.Payment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, p := range m.store.payments {
		if p.BookingID == bookingID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memPayments) GetByProviderReference(_ context.Context, ref string) (*models.Payment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, p := range m.store.payments {
		if p.ProviderReference != nil && *p.ProviderReference == ref {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memPayments) UpdateStatus(_ context.Context, id, status string, expected ...string) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.payments[id]
	if !ok {
		return false, nil
	}
	if len(expected) > 0 {
		matched := false
		for _, e := range expected {
			if p.Status == e {
				matched = true
			}
		}
		if !matched {
			return false, nil
		}
	}
	p.Status = status
	return true, nil
}

func (m *memPayments) SetProviderReference(_ context.Context, id, ref string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.payments[id]
	if !ok {
		return fmt.Errorf("payment %s not found", id)
	}
	p.ProviderReference = &ref
	return nil
}

func (m *memPayments) ApplyRefund(_ context.Context, id string, amount int64) (int64, string, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.payments[id]
	if !ok {
		return 0, "", fmt.Errorf("payment %s not found", id)
	}
	if p.RefundedAmount+amount > p.Amount {
		return 0, "", fmt.Errorf("refund exceeds remaining balance")
	}
	p.RefundedAmount += amount
	if p.RefundedAmount == p.Amount {
		p.Status = models.PaymentStatusRefunded
	}
	return p.RefundedAmount, p.Status, nil
}

type memCapacity struct{ store *memStore }

func (m *memCapacity) ListActiveRooms(_ context.Context) ([]models.Room, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if m.store.listRoomsErr != nil {
		return nil, m.store.listRoomsErr
	}
	var out []models.Room
	for _, r := range m.store.rooms {
		if r.Active {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memCapacity) GetRoom(_ context.Context, id string) (*models.Room, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if r, ok := m.store.rooms[id]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, nil
}

func (m *memCapacity) GetCampWeek(_ context.Context, id string) (*models.CampWeek, error) {
	return nil, nil
}

func (m *memCapacity) ActiveAssignmentsInRange(_ context.Context, start, end time.Time) ([]models.CapacityAssignment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []models.CapacityAssignment
	for _, a := range m.store.assignments {
		if a.ReleasedAt == nil && a.StartDate.Before(end) && a.EndDate.After(start) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memCapacity) Reserve(_ context.Context, resourceType, resourceID string, start, end time.Time, bookingID string) (*models.CapacityAssignment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	room, ok := m.store.rooms[resourceID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	booked := 0
	for _, a := range m.store.assignments {
		if a.ReleasedAt == nil && a.ResourceID == resourceID && a.StartDate.Before(end) && a.EndDate.After(start) {
			booked++
		}
	}
	if booked >= room.Capacity {
		return nil, &apperrors.CapacityError{ResourceID: resourceID, Date: start.Format("2006-01-02")}
	}
	assignment := &models.CapacityAssignment{
		ID:           uuid.New().String(),
		BookingID:    bookingID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		StartDate:    start,
		EndDate:      end,
	}
	m.store.assignments[assignment.ID] = assignment
	clone := *assignment
	return &clone, nil
}

func (m *memCapacity) Release(_ context.Context, assignmentID string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if a, ok := m.store.assignments[assignmentID]; ok && a.ReleasedAt == nil {
		now := time.Now()
		a.ReleasedAt = &now
	}
	return nil
}

func (m *memCapacity) ReleaseForBooking(_ context.Context, bookingID string) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	released := 0
	now := time.Now()
	for _, a := range m.store.assignments {
		if a.BookingID == bookingID && a.ReleasedAt == nil {
			a.ReleasedAt = &now
			released++
		}
	}
	return released, nil
}

func (m *memCapacity) GetAddOn(_ context.Context, id string) (*models.AddOn, error) {
	return nil, nil
}

func (m *memCapacity) GetPromoCode(_ context.Context, code string) (*models.PromoCode, error) {
	return nil, nil
}

type memWebhooks struct{ store *memStore }

func (m *memWebhooks) Claim(_ context.Context, providerEventID, eventType string) (*repository.ClaimResult, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if event, ok := m.store.events[providerEventID]; ok {
		if !event.Processed {
			event.ProcessingAttempts++
		}
		clone := *event
		return &repository.ClaimResult{Event: &clone, AlreadyProcessed: event.Processed}, nil
	}
	m.store.nextEventID++
	event := &models.WebhookEvent{
		ID:                 m.store.nextEventID,
		ProviderEventID:    providerEventID,
		EventType:          eventType,
		ProcessingAttempts: 1,
	}
	m.store.events[providerEventID] = event
	clone := *event
	return &repository.ClaimResult{Event: &clone, AlreadyProcessed: false}, nil
}

func (m *memWebhooks) MarkProcessed(_ context.Context, id int64) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, event := range m.store.events {
		if event.ID == id {
			event.Processed = true
			return nil
		}
	}
	return fmt.Errorf("event %d not found", id)
}

func (m *memWebhooks) RecordFailure(_ context.Context, id int64, errMsg string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, event := range m.store.events {
		if event.ID == id {
			event.ErrorMessage = &errMsg
			return nil
		}
	}
	return fmt.Errorf("event %d not found", id)
}

type stubProvider struct{}

func (stubProvider) CreateCheckoutSession(_ context.Context, req external.CheckoutSessionRequest) (*external.CheckoutSessionResponse, error) {
	return &external.CheckoutSessionResponse{
		SessionID:     "cs_http_test",
		PaymentIntent: "pi_http_test",
		URL:           "https://checkout.example.com/cs_http_test",
		ExpiresAt:     req.ExpiresAt,
	}, nil
}

func (stubProvider) CreateRefund(_ context.Context, paymentReference string, amount int64, reason string) (*external.RefundResult, error) {
	return &external.RefundResult{RefundID: "re_http_test", Status: "succeeded", Amount: amount}, nil
}

func (stubProvider) ExpireSession(_ context.Context, sessionID string) error { return nil }

func (stubProvider) VerifyWebhookSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

type nopPublisher struct{}

func (nopPublisher) Publish(subject string, data interface{}) error { return nil }

func newTestRouter(store *memStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	payments := &memPayments{store: store}
	capacity := &memCapacity{store: store}
	webhooks := &memWebhooks{store: store}
	provider := stubProvider{}
	publisher := nopPublisher{}

	services := &service.Services{
		Availability: service.NewAvailabilityService(capacity, time.Minute),
		Checkout:     service.NewCheckoutService(store, payments, capacity, provider, publisher, nil, 30*time.Minute),
		Webhooks:     service.NewWebhookService(store, payments, capacity, webhooks, provider, publisher, nil),
		Refunds:      service.NewRefundService(store, payments, capacity, provider, publisher, nil),
		Bookings:     service.NewBookingService(store, payments, capacity, provider, publisher, nil),
	}

	h := NewHandlers(services, nil)

	router := gin.New()
	router.Use(middleware.Recovery())

	api := router.Group("/api")
	api.GET("/availability", h.GetAvailability)
	api.POST("/checkout", h.CreateCheckout)
	api.POST("/webhooks/payment", h.PaymentWebhook)
	api.GET("/bookings/:id", h.GetBooking)
	api.POST("/bookings/cancel", h.CancelBooking)

	admin := api.Group("")
	admin.Use(middleware.AdminAuth(testAdminToken))
	admin.POST("/refunds", h.CreateRefund)
	admin.POST("/bookings/confirm", h.ConfirmBooking)

	return router
}

func signPayload(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAvailabilityEndpoint_MissingParams(t *testing.T) {
	router := newTestRouter(newMemStore())

	w := doJSON(t, router, http.MethodGet, "/api/availability", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Missing required parameters: start_date and end_date", resp.Message)
}

func TestAvailabilityEndpoint_ReturnsPerDateCounts(t *testing.T) {
	store := newMemStore()
	store.rooms["a"] = &models.Room{ID: "a", Name: "Room a", Capacity: 10, NightlyRate: 10000, Active: true}
	router := newTestRouter(store)

	w := doJSON(t, router, http.MethodGet, "/api/availability?start_date=2026-07-10&end_date=2026-07-12&participants=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AvailabilityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.DateAvailability, 2)
	assert.Equal(t, 10, resp.DateAvailability[0].Capacity)
	assert.True(t, resp.DateAvailability[0].Available)
}

func TestAvailabilityEndpoint_InvalidDateIs400(t *testing.T) {
	router := newTestRouter(newMemStore())

	w := doJSON(t, router, http.MethodGet, "/api/availability?start_date=not-a-date&end_date=2026-07-12", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.CodeValidation, resp.Error)
}

func TestAvailabilityEndpoint_StoreFailureIs500(t *testing.T) {
	store := newMemStore()
	store.listRoomsErr = fmt.Errorf("connection refused")
	router := newTestRouter(store)

	w := doJSON(t, router, http.MethodGet, "/api/availability?start_date=2026-07-10&end_date=2026-07-12", nil, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Error)
}

func checkoutBody() map[string]interface{} {
	return map[string]interface{}{
		"room_id":      "a",
		"check_in":     "2026-07-10",
		"check_out":    "2026-07-12",
		"participants": 2,
		"customer": map[string]interface{}{
			"email":      "guest@example.com",
			"first_name": "Alex",
			"last_name":  "Rivera",
		},
		"success_url": "https://example.com/success",
		"cancel_url":  "https://example.com/cancel",
	}
}

func TestCheckoutEndpoint_CreatesBooking(t *testing.T) {
	store := newMemStore()
	store.rooms["a"] = &models.Room{ID: "a", Name: "Room a", Capacity: 4, NightlyRate: 10000, Active: true}
	router := newTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/api/checkout", checkoutBody(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.CreateCheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cs_http_test", resp.SessionID)
	assert.Equal(t, int64(20000), resp.AmountTotal)
	assert.NotEmpty(t, resp.BookingID)
}

func TestCheckoutEndpoint_ValidationAndCapacityCodes(t *testing.T) {
	store := newMemStore()
	store.rooms["a"] = &models.Room{ID: "a", Name: "Room a", Capacity: 1, NightlyRate: 10000, Active: true}
	router := newTestRouter(store)

	body := checkoutBody()
	delete(body, "success_url")
	w := doJSON(t, router, http.MethodPost, "/api/checkout", body, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, apperrors.CodeValidation, errResp.Error)

	// Fill the single slot, then expect a capacity conflict.
	w = doJSON(t, router, http.MethodPost, "/api/checkout", checkoutBody(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/checkout", checkoutBody(), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, apperrors.CodeCapacityExceeded, errResp.Error)
}

func TestWebhookEndpoint_InvalidSignature(t *testing.T) {
	router := newTestRouter(newMemStore())

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_http_test"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Signature", "deadbeef")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "Invalid signature"}`, w.Body.String())
}

func TestWebhookEndpoint_ProcessedThenAlreadyProcessed(t *testing.T) {
	store := newMemStore()
	store.rooms["a"] = &models.Room{ID: "a", Name: "Room a", Capacity: 4, NightlyRate: 10000, Active: true}
	router := newTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/api/checkout", checkoutBody(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var checkout models.CreateCheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checkout))

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_http_test"}}}`)
	sig := signPayload(payload)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(payload))
		req.Header.Set("Signature", sig)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w2 := send()
	require.Equal(t, http.StatusOK, w2.Code)
	var ack models.WebhookAck
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &ack))
	assert.Equal(t, models.WebhookStatusProcessed, ack.Status)

	w3 := send()
	require.Equal(t, http.StatusOK, w3.Code)
	require.NoError(t, json.Unmarshal(w3.Body.Bytes(), &ack))
	assert.Equal(t, models.WebhookStatusAlreadyProcessed, ack.Status)

	wb := doJSON(t, router, http.MethodGet, "/api/bookings/"+checkout.BookingID, nil, nil)
	require.Equal(t, http.StatusOK, wb.Code)
	var booking models.Booking
	require.NoError(t, json.Unmarshal(wb.Body.Bytes(), &booking))
	assert.Equal(t, models.BookingStatusPaid, booking.Status)
}

func TestRefundEndpoint_RequiresAdminToken(t *testing.T) {
	router := newTestRouter(newMemStore())

	body := map[string]interface{}{"booking_id": "x", "reason": "customer_request"}

	w := doJSON(t, router, http.MethodPost, "/api/refunds", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/refunds", body, map[string]string{
		"Authorization": "Bearer wrong-token",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefundEndpoint_FullLifecycle(t *testing.T) {
	store := newMemStore()
	store.rooms["a"] = &models.Room{ID: "a", Name: "Room a", Capacity: 4, NightlyRate: 10000, Active: true}
	router := newTestRouter(store)
	auth := map[string]string{"Authorization": "Bearer " + testAdminToken}

	w := doJSON(t, router, http.MethodPost, "/api/checkout", checkoutBody(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var checkout models.CreateCheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checkout))

	payload := []byte(`{"id":"evt_pay","type":"checkout.session.completed","data":{"object":{"id":"cs_http_test"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Signature", signPayload(payload))
	wr := httptest.NewRecorder()
	router.ServeHTTP(wr, req)
	require.Equal(t, http.StatusOK, wr.Code)

	// Confirm, then partially refund.
	w = doJSON(t, router, http.MethodPost, "/api/bookings/confirm",
		map[string]interface{}{"booking_id": checkout.BookingID}, auth)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/refunds", map[string]interface{}{
		"booking_id": checkout.BookingID,
		"amount":     5000,
		"reason":     "customer_request",
	}, auth)
	require.Equal(t, http.StatusOK, w.Code)

	var refund models.RefundResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refund))
	assert.Equal(t, int64(5000), refund.AmountRefunded)
	assert.Equal(t, models.BookingStatusPartial, refund.BookingStatus)

	// Refund the rest; booking ends refunded.
	w = doJSON(t, router, http.MethodPost, "/api/refunds", map[string]interface{}{
		"booking_id": checkout.BookingID,
		"reason":     "customer_request",
	}, auth)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refund))
	assert.Equal(t, int64(15000), refund.AmountRefunded)
	assert.Equal(t, models.BookingStatusRefunded, refund.BookingStatus)
}

func TestRefundEndpoint_NotRefundable(t *testing.T) {
	store := newMemStore()
	store.rooms["a"] = &models.Room{ID: "a", Name: "Room a", Capacity: 4, NightlyRate: 10000, Active: true}
	router := newTestRouter(store)
	auth := map[string]string{"Authorization": "Bearer " + testAdminToken}

	w := doJSON(t, router, http.MethodPost, "/api/checkout", checkoutBody(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var checkout models.CreateCheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checkout))

	// Still pending: refund must be rejected with NOT_REFUNDABLE.
	w = doJSON(t, router, http.MethodPost, "/api/refunds", map[string]interface{}{
		"booking_id": checkout.BookingID,
		"reason":     "customer_request",
	}, auth)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, apperrors.CodeNotRefundable, errResp.Error)
}

func TestCancelEndpoint_PendingBooking(t *testing.T) {
	store := newMemStore()
	store.rooms["a"] = &models.Room{ID: "a", Name: "Room a", Capacity: 4, NightlyRate: 10000, Active: true}
	router := newTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/api/checkout", checkoutBody(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var checkout models.CreateCheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checkout))

	w = doJSON(t, router, http.MethodPost, "/api/bookings/cancel",
		map[string]interface{}{"booking_id": checkout.BookingID}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var booking models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &booking))
	assert.Equal(t, models.BookingStatusCancelled, booking.Status)
}

func TestGetBookingEndpoint_NotFound(t *testing.T) {
	router := newTestRouter(newMemStore())

	w := doJSON(t, router, http.MethodGet, "/api/bookings/"+uuid.New().String(), nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, apperrors.CodeNotFound, errResp.Error)
}
