package hosted

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/capture-bridge/internal/adapter"
)

func newSessionServer(t *testing.T, status string, method string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/sessions":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "10.00", body["amount"])
			assert.Equal(t, "EUR", body["currency"])
			assert.Equal(t, "https://shop/capture/abc", body["return_url"])
			assert.Equal(t, "https://shop/notify/xyz", body["notify_url"])
			json.NewEncoder(w).Encode(map[string]any{
				"id":              "sess_1",
				"status":          "open",
				"checkout_url":    "https://pay.example/checkout/sess_1",
				"checkout_method": method,
			})
		case r.Method == http.MethodGet && r.URL.Path == "/sessions/sess_1":
			json.NewEncoder(w).Encode(map[string]any{
				"id":              "sess_1",
				"status":          status,
				"reference":       "pay_77",
				"failure_message": "",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("no such session"))
		}
	}))
}

func purchasePayload() map[string]any {
	return map[string]any{
		"amount":    10.0,
		"currency":  "EUR",
		"returnUrl": "https://shop/capture/abc",
		"cancelUrl": "https://shop/capture/abc",
		"notifyUrl": "https://shop/notify/xyz",
	}
}

func send(t *testing.T, req adapter.PendingRequest) adapter.RedirectResponse {
	t.Helper()
	resp, err := req.Send(context.Background())
	require.NoError(t, err)
	r, ok := resp.(adapter.RedirectResponse)
	require.True(t, ok)
	return r
}

func TestHostedAdapter_ImplementsOffsite(t *testing.T) {
	var _ adapter.OffsiteGateway = NewHostedAdapter(nil, "http://x", "")
	assert.Equal(t, "Hosted", NewHostedAdapter(nil, "http://x", "").GetName())
}

func TestHostedAdapter_Purchase_Redirect(t *testing.T) {
	server := newSessionServer(t, "paid", "get")
	defer server.Close()
	h := NewHostedAdapter(server.Client(), server.URL+"/", "s3cret")

	req, err := h.Purchase(context.Background(), purchasePayload())
	require.NoError(t, err)
	resp := send(t, req)

	assert.False(t, resp.IsSuccessful())
	assert.True(t, resp.IsRedirect())
	assert.Equal(t, "https://pay.example/checkout/sess_1", resp.RedirectURL())
	assert.Equal(t, http.MethodGet, resp.RedirectMethod())
	assert.Empty(t, resp.RedirectData())
	assert.Equal(t, map[string]any{"sessionId": "sess_1"}, resp.Data())
}

func TestHostedAdapter_Purchase_PostRedirect(t *testing.T) {
	server := newSessionServer(t, "paid", "post")
	defer server.Close()
	h := NewHostedAdapter(server.Client(), server.URL, "s3cret")

	req, err := h.Purchase(context.Background(), purchasePayload())
	require.NoError(t, err)
	resp := send(t, req)
	assert.Equal(t, http.MethodPost, resp.RedirectMethod())
	assert.Equal(t, map[string]string{"session": "sess_1"}, resp.RedirectData())
}

func TestHostedAdapter_Purchase_Validation(t *testing.T) {
	h := NewHostedAdapter(nil, "http://x", "")

	p := purchasePayload()
	delete(p, "returnUrl")
	_, err := h.Purchase(context.Background(), p)
	assert.ErrorContains(t, err, "returnUrl")

	p = purchasePayload()
	delete(p, "currency")
	_, err = h.Purchase(context.Background(), p)
	assert.ErrorContains(t, err, "currency")

	p = purchasePayload()
	delete(p, "amount")
	_, err = h.Purchase(context.Background(), p)
	assert.ErrorContains(t, err, "amount")
}

func TestHostedAdapter_CompletePurchase(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		success  bool
		wantCode string
	}{
		{name: "paid", status: "paid", success: true},
		{name: "cancelled", status: "cancelled", success: false, wantCode: "cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newSessionServer(t, tt.status, "get")
			defer server.Close()
			h := NewHostedAdapter(server.Client(), server.URL, "s3cret")

			req, err := h.CompletePurchase(context.Background(), map[string]any{"sessionId": "sess_1"})
			require.NoError(t, err)
			resp := send(t, req)
			assert.Equal(t, tt.success, resp.IsSuccessful())
			assert.False(t, resp.IsRedirect())
			assert.Equal(t, "pay_77", resp.TransactionReference())
			assert.Equal(t, tt.wantCode, resp.Code())
			assert.Equal(t, tt.status, resp.Data().(map[string]any)["status"])
		})
	}
}

func TestHostedAdapter_CompletePurchase_UnknownSession(t *testing.T) {
	server := newSessionServer(t, "paid", "get")
	defer server.Close()
	h := NewHostedAdapter(server.Client(), server.URL, "s3cret")

	req, err := h.CompletePurchase(context.Background(), map[string]any{"sessionId": "nope"})
	require.NoError(t, err)
	resp := send(t, req)
	assert.False(t, resp.IsSuccessful())
	assert.Equal(t, "HOSTED_HTTP_404", resp.Code())
	assert.Equal(t, "no such session", resp.Message())

	_, err = h.CompletePurchase(context.Background(), map[string]any{})
	assert.ErrorContains(t, err, "sessionId")
}
