package external

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// PaymentClient talks to the hosted-checkout payment provider. Every call is
// bounded by the client timeout and retried once on transport or 5xx
// failures before the error surfaces to the caller.
type PaymentClient struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
}

type PaymentConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// CheckoutSessionRequest asks the provider for a hosted checkout page scoped
// to the booking total. Metadata carries the booking id for webhook
// correlation.
type CheckoutSessionRequest struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	Description   string            `json:"description,omitempty"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	ExpiresAt     int64             `json:"expires_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type CheckoutSessionResponse struct {
	SessionID     string `json:"session_id"`
	PaymentIntent string `json:"payment_intent"`
	URL           string `json:"url"`
	ExpiresAt     int64  `json:"expires_at"`
}

type refundRequest struct {
	PaymentReference string `json:"payment_reference"`
	Amount           int64  `json:"amount"`
	Reason           string `json:"reason,omitempty"`
}

type RefundResult struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &PaymentClient{
		baseURL:       cfg.BaseURL,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// CreateCheckoutSession opens a provider-hosted checkout session for the
// given amount.
func (pc *PaymentClient) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	var result CheckoutSessionResponse
	if err := pc.doRequest(ctx, "/v1/checkout/sessions", req, &result); err != nil {
		return nil, err
	}

	if result.SessionID == "" || result.URL == "" {
		return nil, fmt.Errorf("provider returned incomplete session")
	}

	return &result, nil
}

// CreateRefund refunds amount (minor units) against a completed payment.
func (pc *PaymentClient) CreateRefund(ctx context.Context, paymentReference string, amount int64, reason string) (*RefundResult, error) {
	req := refundRequest{
		PaymentReference: paymentReference,
		Amount:           amount,
		Reason:           reason,
	}

	var result RefundResult
	if err := pc.doRequest(ctx, "/v1/refunds", req, &result); err != nil {
		return nil, err
	}

	if result.RefundID == "" {
		return nil, fmt.Errorf("provider returned no refund id")
	}

	return &result, nil
}

// ExpireSession tells the provider to invalidate an unused checkout session.
func (pc *PaymentClient) ExpireSession(ctx context.Context, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	return pc.doRequest(ctx, "/v1/checkout/sessions/expire", body, nil)
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of the raw payload
// against the shared webhook secret in constant time.
func (pc *PaymentClient) VerifyWebhookSignature(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(pc.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func (pc *PaymentClient) doRequest(ctx context.Context, path string, body, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			slog.Warn("Retrying payment provider request", "path", path, "attempt", attempt, "error", lastErr)
			// An abandoned caller should not sit out the backoff.
			select {
			case <-ctx.Done():
				return fmt.Errorf("provider request abandoned: %w", ctx.Err())
			case <-time.After(200 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+path, bytes.NewReader(jsonBody))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+pc.secretKey)

		resp, err := pc.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("provider returned status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return fmt.Errorf("provider rejected request with status %d", resp.StatusCode)
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				resp.Body.Close()
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		resp.Body.Close()
		return nil
	}

	return fmt.Errorf("provider request failed after retry: %w", lastErr)
}
