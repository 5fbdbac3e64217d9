package stripe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"

	"github.com/yourorg/capture-bridge/internal/adapter"
	"github.com/yourorg/capture-bridge/internal/currency"
)

const (
	GatewayName          = "Stripe"
	stripeAPIBaseURL     = "https://api.stripe.com/v1"
	defaultRetryAttempts = 2
	defaultRetryDelay    = 500 * time.Millisecond
)

// StripeAdapter is a direct binding that creates charges through the Stripe
// REST API.
type StripeAdapter struct {
	httpClient *http.Client
	apiBaseURL string // Allow overriding for testing
	apiKey     string
	currencies currency.Resolver
	retryDelay time.Duration
}

// NewStripeAdapter creates a new StripeAdapter.
func NewStripeAdapter(client *http.Client, apiKey string, currencies currency.Resolver) *StripeAdapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second} // Default client
	}
	if currencies == nil {
		panic("stripe: currency resolver cannot be nil")
	}
	return &StripeAdapter{
		httpClient: client,
		apiBaseURL: stripeAPIBaseURL,
		apiKey:     apiKey,
		currencies: currencies,
		retryDelay: defaultRetryDelay,
	}
}

// WithBaseURL points the adapter at another API root.
func (s *StripeAdapter) WithBaseURL(base string) *StripeAdapter {
	s.apiBaseURL = strings.TrimRight(base, "/")
	return s
}

// GetName returns the name of the provider.
func (s *StripeAdapter) GetName() string {
	return GatewayName
}

// generateIdempotencyKey creates a unique key for Stripe requests.
func generateIdempotencyKey(transactionID string) string {
	key := fmt.Sprintf("%s-%s", transactionID, uuid.NewString())
	if transactionID == "" {
		key = uuid.NewString()
	}
	if len(key) > 255 { // Stripe max length for idempotency key
		return key[:255]
	}
	return key
}

// buildStripePayload creates the form body for a charge. Amounts are sent in
// minor units of the payload currency.
func (s *StripeAdapter) buildStripePayload(ctx context.Context, payload map[string]any) (url.Values, error) {
	code := adapter.StringField(payload, "currency")
	if code == "" {
		return nil, fmt.Errorf("the currency parameter is required")
	}
	cur, err := s.currencies.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	amount, err := adapter.AmountField(payload, "amount")
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(currency.ToMinor(amount, cur), 10))
	form.Set("currency", strings.ToLower(cur.Alpha3))

	if ref := adapter.StringField(payload, "cardReference"); ref != "" {
		form.Set("source", ref)
	} else if c, ok := adapter.MapField(payload, "card"); ok {
		form.Set("source[object]", "card")
		form.Set("source[number]", adapter.StringField(c, "number"))
		form.Set("source[exp_month]", adapter.StringField(c, "expiryMonth"))
		form.Set("source[exp_year]", adapter.StringField(c, "expiryYear"))
		if cvc := adapter.StringField(c, "cvv"); cvc != "" {
			form.Set("source[cvc]", cvc)
		}
		name := strings.TrimSpace(adapter.StringField(c, "firstName") + " " + adapter.StringField(c, "lastName"))
		if name != "" {
			form.Set("source[name]", name)
		}
	} else {
		return nil, fmt.Errorf("the card or cardReference parameter is required")
	}

	if description := adapter.StringField(payload, "description"); description != "" {
		form.Set("description", description)
	}
	if email := adapter.StringField(payload, "clientEmail"); email != "" {
		form.Set("receipt_email", email)
	}
	if ip := adapter.StringField(payload, "clientIp"); ip != "" {
		form.Set("metadata[client_ip]", ip)
	}
	if tid := adapter.StringField(payload, "transactionId"); tid != "" {
		form.Set("metadata[transaction_id]", tid)
	}
	return form, nil
}

// StripeErrorResponse represents the error structure from Stripe API
type StripeErrorResponse struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"` // e.g., "card_declined"
		Message     string `json:"message"`
		DeclineCode string `json:"decline_code"` // e.g. "insufficient_funds"
	} `json:"error"`
}

// Purchase implements adapter.Gateway.
func (s *StripeAdapter) Purchase(ctx context.Context, payload map[string]any) (adapter.PendingRequest, error) {
	form, err := s.buildStripePayload(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to build charge payload: %w", err)
	}
	key := generateIdempotencyKey(adapter.StringField(payload, "transactionId"))
	return adapter.RequestFunc(func(ctx context.Context) (adapter.Response, error) {
		res, err := s.charge(ctx, []byte(form.Encode()), key)
		if res == nil {
			return nil, err
		}
		return res, err
	}), nil
}

// charge posts the charge, retrying network errors, 429 and 5xx responses
// with the same idempotency key.
func (s *StripeAdapter) charge(ctx context.Context, requestBody []byte, idempotencyKey string) (*adapter.ProviderResult, error) {
	startTime := time.Now()

	var lastErr error
	var resp *http.Response
	var bodyBytes []byte

	for attempt := 0; attempt <= defaultRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("stripe: %w", ctx.Err())
			case <-time.After(s.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBaseURL+"/charges", bytes.NewReader(requestBody))
		if err != nil {
			return nil, fmt.Errorf("stripe: failed to create http request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("Idempotency-Key", idempotencyKey)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		currentResp, doErr := s.httpClient.Do(req)
		if doErr != nil {
			lastErr = fmt.Errorf("stripe: http client error on attempt %d: %w", attempt+1, doErr)
			resp = nil
			continue // Retry network/client errors
		}

		bodyBytes, err = io.ReadAll(currentResp.Body)
		currentResp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("stripe: failed to read response body: %w", err)
			resp = nil
			continue
		}
		resp = currentResp

		// Check for retryable HTTP status codes (5xx, 429)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("stripe: API request failed after retries with HTTP %d", resp.StatusCode)
			continue
		}
		lastErr = nil
		break
	}

	latencyMs := time.Since(startTime).Milliseconds()

	if resp == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("stripe: unknown error, no response received after retries")
		}
		return nil, lastErr
	}
	if lastErr != nil {
		// Retries exhausted on a server error.
		return &adapter.ProviderResult{
			Provider:     s.GetName(),
			ErrorCode:    fmt.Sprintf("STRIPE_HTTP_%d", resp.StatusCode),
			ErrorMessage: fmt.Sprintf("Stripe API request failed after retries with HTTP %d: %s", resp.StatusCode, string(bodyBytes)),
			LatencyMs:    latencyMs,
			HTTPStatus:   resp.StatusCode,
			RawResponse:  bodyBytes,
		}, lastErr
	}

	result := &adapter.ProviderResult{
		Provider:    s.GetName(),
		LatencyMs:   latencyMs,
		HTTPStatus:  resp.StatusCode,
		RawResponse: bodyBytes,
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var charge map[string]any
		if err := json.Unmarshal(bodyBytes, &charge); err != nil {
			return nil, fmt.Errorf("stripe: failed to decode charge: %w", err)
		}
		result.Payload = charge
		if id, ok := charge["id"].(string); ok {
			result.Reference = id
		}
		status, _ := charge["status"].(string)
		result.Success = status == "" || status == "succeeded"
		if !result.Success {
			result.ErrorCode = status
		}
		return result, nil
	}

	var errorResponse StripeErrorResponse
	if err := json.Unmarshal(bodyBytes, &errorResponse); err == nil && errorResponse.Error.Message != "" {
		result.ErrorCode = errorResponse.Error.Code
		if errorResponse.Error.DeclineCode != "" {
			result.ErrorCode = errorResponse.Error.DeclineCode
		}
		result.ErrorMessage = errorResponse.Error.Message
		result.Payload = map[string]any{
			"error": map[string]any{
				"type":         errorResponse.Error.Type,
				"code":         errorResponse.Error.Code,
				"decline_code": errorResponse.Error.DeclineCode,
				"message":      errorResponse.Error.Message,
			},
		}
	} else {
		result.ErrorCode = fmt.Sprintf("STRIPE_HTTP_%d", resp.StatusCode)
		result.ErrorMessage = fmt.Sprintf("Stripe API request failed with HTTP %d. Response: %s", resp.StatusCode, string(bodyBytes))
		result.Payload = map[string]any{}
	}
	return result, nil
}
