// Package adapter defines the gateway binding the capture actions drive and
// contains implementations for specific gateways.
// A binding exposes a two-phase call pattern: Purchase initiates a charge and,
// for gateways that send the payer off-platform, CompletePurchase finalizes it
// once the payer returns. Both yield a PendingRequest whose Send performs the
// actual provider call and normalizes the outcome into a Response.
package adapter

import (
	"context"
)

// Gateway is implemented by every binding.
type Gateway interface {
	// GetName returns the gateway name (e.g. "stripe", "hosted").
	GetName() string

	// Purchase prepares a charge for payload. payload is the wire form of a
	// details record: no control keys, secrets unwrapped.
	Purchase(ctx context.Context, payload map[string]any) (PendingRequest, error)
}

// OffsiteGateway is implemented by bindings whose purchase redirects the payer
// and therefore need a completion call.
type OffsiteGateway interface {
	Gateway
	CompletePurchase(ctx context.Context, payload map[string]any) (PendingRequest, error)
}

// PendingRequest is a prepared provider call.
type PendingRequest interface {
	Send(ctx context.Context) (Response, error)
}

// Response is the minimal outcome every binding can report.
type Response interface {
	IsSuccessful() bool
}

// RichResponse carries structured data on top of the success flag. The
// capture actions only accept rich responses.
type RichResponse interface {
	Response
	// Data returns the provider payload: a map[string]any or a scalar.
	Data() any
	IsRedirect() bool
	TransactionReference() string
	Code() string
	Message() string
}

// RedirectResponse describes where to send the payer when IsRedirect is true.
type RedirectResponse interface {
	RichResponse
	RedirectURL() string
	// RedirectMethod is "GET" or "POST".
	RedirectMethod() string
	// RedirectData holds the form fields for POST redirects.
	RedirectData() map[string]string
}

// RequestFunc adapts a function to PendingRequest.
type RequestFunc func(ctx context.Context) (Response, error)

// Send implements PendingRequest.
func (f RequestFunc) Send(ctx context.Context) (Response, error) {
	return f(ctx)
}
