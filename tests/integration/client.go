package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"bunkhouse/internal/models"
)

// TestClient provides methods for testing the API
type TestClient struct {
	BaseURL    string
	AdminToken string
	HTTPClient *http.Client
}

// NewTestClient creates a new test client
func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		BaseURL:    baseURL,
		AdminToken: AdminToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// makeRequest makes an HTTP request and returns the response
func (c *TestClient) makeRequest(t *testing.T, method, path string, body interface{}, admin bool) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// HealthCheck verifies the API is up
func (c *TestClient) HealthCheck(t *testing.T) {
	resp := c.makeRequest(t, "GET", "/health", nil, false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
}

// GetAvailability queries per-date availability
func (c *TestClient) GetAvailability(t *testing.T, startDate, endDate string, participants int) *models.AvailabilityResponse {
	path := fmt.Sprintf("/api/availability?start_date=%s&end_date=%s&participants=%d", startDate, endDate, participants)
	resp := c.makeRequest(t, "GET", path, nil, false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
	}

	var availability models.AvailabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&availability); err != nil {
		t.Fatalf("Failed to decode availability response: %v", err)
	}

	return &availability
}

// CreateCheckout creates a new checkout session
func (c *TestClient) CreateCheckout(t *testing.T, req *models.CreateCheckoutRequest) *models.CreateCheckoutResponse {
	resp := c.makeRequest(t, "POST", "/api/checkout", req, false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
	}

	var checkout models.CreateCheckoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		t.Fatalf("Failed to decode checkout response: %v", err)
	}

	return &checkout
}

// GetBooking loads one booking by id
func (c *TestClient) GetBooking(t *testing.T, bookingID string) *models.Booking {
	resp := c.makeRequest(t, "GET", "/api/bookings/"+bookingID, nil, false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
	}

	var booking models.Booking
	if err := json.NewDecoder(resp.Body).Decode(&booking); err != nil {
		t.Fatalf("Failed to decode booking response: %v", err)
	}

	return &booking
}

// SendWebhook posts a signed provider event and returns the ack
func (c *TestClient) SendWebhook(t *testing.T, payload []byte, signature string) (*models.WebhookAck, int) {
	req, err := http.NewRequest("POST", c.BaseURL+"/api/webhooks/payment", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Failed to create webhook request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Signature", signature)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to send webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}

	var ack models.WebhookAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("Failed to decode webhook ack: %v", err)
	}

	return &ack, resp.StatusCode
}

// CancelBooking cancels an unpaid booking
func (c *TestClient) CancelBooking(t *testing.T, bookingID string) *models.Booking {
	resp := c.makeRequest(t, "POST", "/api/bookings/cancel", models.CancelBookingRequest{BookingID: bookingID}, false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
	}

	var booking models.Booking
	if err := json.NewDecoder(resp.Body).Decode(&booking); err != nil {
		t.Fatalf("Failed to decode booking response: %v", err)
	}

	return &booking
}

// ConfirmBooking confirms a paid booking (admin)
func (c *TestClient) ConfirmBooking(t *testing.T, bookingID string) *models.Booking {
	resp := c.makeRequest(t, "POST", "/api/bookings/confirm", models.ConfirmBookingRequest{BookingID: bookingID}, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
	}

	var booking models.Booking
	if err := json.NewDecoder(resp.Body).Decode(&booking); err != nil {
		t.Fatalf("Failed to decode booking response: %v", err)
	}

	return &booking
}

// CreateRefund refunds a booking (admin) and returns the raw response
func (c *TestClient) CreateRefund(t *testing.T, req *models.RefundRequest) (*models.RefundResponse, int) {
	resp := c.makeRequest(t, "POST", "/api/refunds", req, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}

	var refund models.RefundResponse
	if err := json.NewDecoder(resp.Body).Decode(&refund); err != nil {
		t.Fatalf("Failed to decode refund response: %v", err)
	}

	return &refund, resp.StatusCode
}
