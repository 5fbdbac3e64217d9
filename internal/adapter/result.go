package adapter

import "net/http"

// ProviderResult holds the outcome of a provider call. It implements
// RedirectResponse and is what the bundled bindings return.
type ProviderResult struct {
	Provider       string            // Name of the gateway that produced the result
	Success        bool              // Whether the provider confirmed the payment
	Redirect       bool              // Whether the payer must be sent off-platform
	RedirectTo     string            // Target of the redirect
	Method         string            // Redirect method, GET when empty
	RedirectFields map[string]string // Form fields for POST redirects
	Reference      string            // Provider transaction reference
	ErrorCode      string            // Provider-specific code, if any
	ErrorMessage   string            // Provider-specific message, if any
	Payload        any               // Structured provider data (map or scalar)
	LatencyMs      int64             // Latency of the provider call
	HTTPStatus     int               // HTTP status code of the provider response
	RawResponse    []byte            // Raw body, for debugging
}

func (r *ProviderResult) IsSuccessful() bool { return r.Success }

func (r *ProviderResult) Data() any { return r.Payload }

func (r *ProviderResult) IsRedirect() bool { return r.Redirect }

func (r *ProviderResult) TransactionReference() string { return r.Reference }

func (r *ProviderResult) Code() string { return r.ErrorCode }

func (r *ProviderResult) Message() string { return r.ErrorMessage }

func (r *ProviderResult) RedirectURL() string { return r.RedirectTo }

func (r *ProviderResult) RedirectMethod() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func (r *ProviderResult) RedirectData() map[string]string { return r.RedirectFields }

// MinimalResult only reports success. Bindings that cannot expose provider
// data return it; the capture actions reject it.
type MinimalResult struct {
	Success bool
}

func (r MinimalResult) IsSuccessful() bool { return r.Success }
