// Package hosted binds a hosted payment page provider. Purchase opens a
// checkout session and answers with a redirect to the provider's page;
// CompletePurchase looks the session up once the payer comes back or the
// provider calls the notify URL.
package hosted

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/json-iterator/go"

	"github.com/yourorg/capture-bridge/internal/adapter"
)

const GatewayName = "Hosted"

// HostedAdapter implements adapter.OffsiteGateway.
type HostedAdapter struct {
	httpClient *http.Client
	endpoint   string
	secret     string
}

// NewHostedAdapter creates a HostedAdapter talking to endpoint.
func NewHostedAdapter(client *http.Client, endpoint, secret string) *HostedAdapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HostedAdapter{
		httpClient: client,
		endpoint:   strings.TrimRight(endpoint, "/"),
		secret:     secret,
	}
}

// GetName implements adapter.Gateway.
func (h *HostedAdapter) GetName() string {
	return GatewayName
}

type sessionRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url,omitempty"`
	NotifyURL   string `json:"notify_url,omitempty"`
	ClientIP    string `json:"client_ip,omitempty"`
}

type session struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
	Method      string `json:"checkout_method"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	FailureCode string `json:"failure_code"`
	Message     string `json:"failure_message"`
}

// Purchase implements adapter.Gateway. The response is a redirect carrying
// the session id as sessionId.
func (h *HostedAdapter) Purchase(_ context.Context, payload map[string]any) (adapter.PendingRequest, error) {
	amount, err := adapter.AmountField(payload, "amount")
	if err != nil {
		return nil, fmt.Errorf("hosted: %w", err)
	}
	body := sessionRequest{
		Amount:      amount.StringFixed(2),
		Currency:    adapter.StringField(payload, "currency"),
		Description: adapter.StringField(payload, "description"),
		ReturnURL:   adapter.StringField(payload, "returnUrl"),
		CancelURL:   adapter.StringField(payload, "cancelUrl"),
		NotifyURL:   adapter.StringField(payload, "notifyUrl"),
		ClientIP:    adapter.StringField(payload, "clientIp"),
	}
	if body.Currency == "" {
		return nil, fmt.Errorf("hosted: the currency parameter is required")
	}
	if body.ReturnURL == "" {
		return nil, fmt.Errorf("hosted: the returnUrl parameter is required")
	}

	return adapter.RequestFunc(func(ctx context.Context) (adapter.Response, error) {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("hosted: failed to encode session: %w", err)
		}
		var s session
		res, err := h.do(ctx, http.MethodPost, h.endpoint+"/sessions", raw, &s)
		if err != nil {
			return nil, err
		}
		if res.HTTPStatus >= 300 {
			return res, nil
		}
		res.Redirect = s.CheckoutURL != ""
		res.Success = false
		res.RedirectTo = s.CheckoutURL
		res.Method = strings.ToUpper(s.Method)
		if res.Method == http.MethodPost {
			res.RedirectFields = map[string]string{"session": s.ID}
		}
		res.Reference = s.ID
		res.Payload = map[string]any{"sessionId": s.ID}
		return res, nil
	}), nil
}

// CompletePurchase implements adapter.OffsiteGateway. The session status
// "paid" is a successful capture; anything else is reported as unsuccessful.
func (h *HostedAdapter) CompletePurchase(_ context.Context, payload map[string]any) (adapter.PendingRequest, error) {
	id := adapter.StringField(payload, "sessionId")
	if id == "" {
		return nil, fmt.Errorf("hosted: the sessionId parameter is required")
	}
	return adapter.RequestFunc(func(ctx context.Context) (adapter.Response, error) {
		var s session
		res, err := h.do(ctx, http.MethodGet, h.endpoint+"/sessions/"+id, nil, &s)
		if err != nil {
			return nil, err
		}
		if res.HTTPStatus >= 300 {
			return res, nil
		}
		res.Success = s.Status == "paid"
		res.Reference = s.Reference
		res.ErrorCode = s.FailureCode
		res.ErrorMessage = s.Message
		if !res.Success && res.ErrorCode == "" {
			res.ErrorCode = s.Status
		}
		return res, nil
	}), nil
}

// do performs one call and decodes a 2xx body into out. Non-2xx answers are
// reported as an unsuccessful result, not an error.
func (h *HostedAdapter) do(ctx context.Context, method, url string, body []byte, out *session) (*adapter.ProviderResult, error) {
	start := time.Now()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("hosted: failed to create http request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hosted: http client error: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hosted: failed to read response body: %w", err)
	}

	res := &adapter.ProviderResult{
		Provider:    GatewayName,
		LatencyMs:   time.Since(start).Milliseconds(),
		HTTPStatus:  resp.StatusCode,
		RawResponse: raw,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.ErrorCode = fmt.Sprintf("HOSTED_HTTP_%d", resp.StatusCode)
		res.ErrorMessage = strings.TrimSpace(string(raw))
		res.Payload = map[string]any{}
		return res, nil
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("hosted: failed to decode response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("hosted: failed to decode session: %w", err)
	}
	res.Payload = data
	return res, nil
}
