package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/capture-bridge/internal/config"
	"github.com/yourorg/capture-bridge/internal/policy"
)

const bridgeBase = "http://bridge.test"

func setupRouter(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	cfg.Tokens.BaseURL = bridgeBase
	if mutate != nil {
		mutate(cfg)
	}
	s, closeStore, err := newServer(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { closeStore() })
	return s.routes(false)
}

func do(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type paymentView struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Details map[string]any `json:"details"`
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) paymentView {
	t.Helper()
	var v paymentView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createPayment(t *testing.T, r http.Handler, body map[string]any) paymentView {
	t.Helper()
	w := do(t, r, http.MethodPost, "/payments", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeView(t, w)
}

func validCard(number string) map[string]any {
	return map[string]any{"number": number, "cvv": "123", "expiryMonth": 12, "expiryYear": 2099, "holder": "Jane Doe"}
}

func TestHealthz(t *testing.T) {
	r := setupRouter(t, nil)
	w := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreatePayment_Validation(t *testing.T) {
	r := setupRouter(t, nil)

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"EmptyBody", nil, http.StatusBadRequest},
		{"MissingCurrency", map[string]any{"totalAmount": 100}, http.StatusBadRequest},
		{"ZeroAmount", map[string]any{"currency": "USD", "totalAmount": 0}, http.StatusBadRequest},
		{"BadCardNumber", map[string]any{"currency": "USD", "totalAmount": 100, "card": validCard("42x")}, http.StatusBadRequest},
		{"UnknownCurrency", map[string]any{"currency": "XYZ", "totalAmount": 100}, http.StatusBadRequest},
		{"Valid", map[string]any{"currency": "USD", "totalAmount": 100}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/payments", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestCreatePayment_ConvertsAndHidesCard(t *testing.T) {
	r := setupRouter(t, nil)
	v := createPayment(t, r, map[string]any{
		"currency":    "USD",
		"totalAmount": 1999,
		"description": "order 42",
		"number":      "ord-42",
		"card":        validCard("4242424242424242"),
		"details":     map[string]any{"foo": "bar"},
	})

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "new", v.Status)
	assert.Equal(t, 19.99, v.Details["amount"])
	assert.Equal(t, "USD", v.Details["currency"])
	assert.Equal(t, "order 42", v.Details["description"])
	assert.Equal(t, "ord-42", v.Details["transactionId"])
	assert.Equal(t, "bar", v.Details["foo"])
	assert.Contains(t, v.Details, "card")
	assert.Nil(t, v.Details["card"])
}

func TestCapture_DummyApproved(t *testing.T) {
	r := setupRouter(t, nil)
	v := createPayment(t, r, map[string]any{"currency": "USD", "totalAmount": 1000, "card": validCard("4242424242424242")})

	w := do(t, r, http.MethodPost, "/payments/"+v.ID+"/capture", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	captured := decodeView(t, w)
	assert.Equal(t, "captured", captured.Status)
	assert.Equal(t, true, captured.Details["_successful"])
	assert.NotEmpty(t, captured.Details["_reference"])
	assert.NotContains(t, w.Body.String(), "4242424242424242")

	w = do(t, r, http.MethodGet, "/payments/"+v.ID+"/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+v.ID+`","status":"captured"}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/reports/retrospective", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.EqualValues(t, 1, report["capturedPayments"])
	assert.Equal(t, map[string]any{"USD": "10"}, report["amountByCurrency"])
}

func TestCapture_CardRequiredThenDeclined(t *testing.T) {
	r := setupRouter(t, nil)
	v := createPayment(t, r, map[string]any{"currency": "EUR", "totalAmount": 500})

	w := do(t, r, http.MethodPost, "/payments/"+v.ID+"/capture", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/payments/"+v.ID+"/capture", map[string]any{"card": validCard("4111111111111111")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	declined := decodeView(t, w)
	assert.Equal(t, "failed", declined.Status)
	assert.Equal(t, false, declined.Details["_successful"])

	w = do(t, r, http.MethodGet, "/reports/retrospective", nil)
	var report map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.EqualValues(t, 1, report["failedPayments"])
	assert.EqualValues(t, 1, report["errors"])
	assert.Equal(t, map[string]any{"missing_card": float64(1), "declined": float64(1)}, report["errorBreakdown"])
}

func TestCapture_VaultCardIsUsedOnce(t *testing.T) {
	r := setupRouter(t, nil)
	v := createPayment(t, r, map[string]any{"currency": "USD", "totalAmount": 100, "card": validCard("4111111111111111")})

	w := do(t, r, http.MethodPost, "/payments/"+v.ID+"/capture", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failed", decodeView(t, w).Status)

	// A declined capture may be retried with a new card.
	w = do(t, r, http.MethodPost, "/payments/"+v.ID+"/capture", map[string]any{"card": validCard("4242424242424242")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "captured", decodeView(t, w).Status)
}

func TestCapture_NotFoundAndBadBody(t *testing.T) {
	r := setupRouter(t, nil)
	w := do(t, r, http.MethodPost, "/payments/missing/capture", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/payments/missing/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	v := createPayment(t, r, map[string]any{"currency": "USD", "totalAmount": 100})
	w = do(t, r, http.MethodPost, "/payments/"+v.ID+"/capture", map[string]any{"afterUrl": 12})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCapture_PolicyDenied(t *testing.T) {
	r := setupRouter(t, func(cfg *config.Config) {
		cfg.Policy.Rules = []policy.PolicyRule{{
			ID:         "too-large",
			Expression: "amount > 100",
			Decision:   policy.PolicyDecision{Deny: true, Reason: "amount over limit"},
		}}
	})
	v := createPayment(t, r, map[string]any{"currency": "USD", "totalAmount": 50000, "card": validCard("4242424242424242")})

	w := do(t, r, http.MethodPost, "/payments/"+v.ID+"/capture", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "amount over limit")

	w = do(t, r, http.MethodGet, "/payments/"+v.ID+"/status", nil)
	assert.JSONEq(t, `{"id":"`+v.ID+`","status":"new"}`, w.Body.String())
}

// hostedProvider fakes the hosted page provider and remembers the URLs it
// was given.
type hostedProvider struct {
	mu        sync.Mutex
	method    string
	status    string
	returnURL string
	notifyURL string
}

func (h *hostedProvider) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		h.mu.Lock()
		defer h.mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/sessions":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			h.returnURL, _ = body["return_url"].(string)
			h.notifyURL, _ = body["notify_url"].(string)
			json.NewEncoder(w).Encode(map[string]any{
				"id":              "sess_9",
				"status":          "open",
				"checkout_url":    "https://pay.example/checkout/sess_9",
				"checkout_method": h.method,
			})
		case r.Method == http.MethodGet && r.URL.Path == "/sessions/sess_9":
			json.NewEncoder(w).Encode(map[string]any{"id": "sess_9", "status": h.status, "reference": "pay_9"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (h *hostedProvider) urls() (string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.returnURL, h.notifyURL
}

func hostedRouter(t *testing.T, provider *hostedProvider) *gin.Engine {
	srv := provider.server(t)
	return setupRouter(t, func(cfg *config.Config) {
		cfg.Gateway = config.GatewayConfig{Type: "Hosted", Endpoint: srv.URL, Secret: "s3cret"}
	})
}

func pathOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Path
}

func TestOffsiteCapture_RedirectReturnAndNotify(t *testing.T) {
	provider := &hostedProvider{status: "paid"}
	r := hostedRouter(t, provider)
	v := createPayment(t, r, map[string]any{"currency": "EUR", "totalAmount": 1000})

	w := do(t, r, http.MethodPost, "/payments/"+v.ID+"/capture", map[string]any{"afterUrl": "https://shop.example/thanks"})
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "https://pay.example/checkout/sess_9", w.Header().Get("Location"))

	returnURL, notifyURL := provider.urls()
	assert.True(t, strings.HasPrefix(returnURL, bridgeBase+"/capture/"), returnURL)
	assert.True(t, strings.HasPrefix(notifyURL, bridgeBase+"/notify/"), notifyURL)

	w = do(t, r, http.MethodGet, "/payments/"+v.ID+"/status", nil)
	assert.JSONEq(t, `{"id":"`+v.ID+`","status":"pending"}`, w.Body.String())

	// The payer comes back from the hosted page.
	w = do(t, r, http.MethodGet, pathOf(t, returnURL), nil)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "https://shop.example/thanks", w.Header().Get("Location"))

	w = do(t, r, http.MethodGet, "/payments/"+v.ID+"/status", nil)
	assert.JSONEq(t, `{"id":"`+v.ID+`","status":"captured"}`, w.Body.String())

	w = do(t, r, http.MethodGet, pathOf(t, returnURL), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "capture token is single use")

	// The provider's asynchronous callback.
	w = do(t, r, http.MethodPost, pathOf(t, notifyURL), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(t, r, http.MethodGet, "/reports/retrospective", nil)
	var report map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.EqualValues(t, 1, report["pendingPayments"])
	assert.EqualValues(t, 1, report["capturedPayments"])
}

func TestOffsiteCapture_PostRedirectRendersForm(t *testing.T) {
	provider := &hostedProvider{method: "POST", status: "paid"}
	r := hostedRouter(t, provider)
	v := createPayment(t, r, map[string]any{"currency": "EUR", "totalAmount": 1000})

	w := do(t, r, http.MethodPost, "/payments/"+v.ID+"/capture", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, `action="https://pay.example/checkout/sess_9"`)
	assert.Contains(t, body, `name="session" value="sess_9"`)

	// Without an after URL the payer gets the record back.
	returnURL, _ := provider.urls()
	w = do(t, r, http.MethodPost, pathOf(t, returnURL), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "captured", decodeView(t, w).Status)
}

func TestNotify_UnknownToken(t *testing.T) {
	r := setupRouter(t, nil)
	w := do(t, r, http.MethodPost, "/notify/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodGet, "/capture/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(t, nil)
	v := createPayment(t, r, map[string]any{"currency": "USD", "totalAmount": 100, "card": validCard("4242424242424242")})
	do(t, r, http.MethodPost, "/payments/"+v.ID+"/capture", nil)

	w := do(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "capture_bridge_requests_total")
}
