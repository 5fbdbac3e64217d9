package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/capture-bridge/internal/adapter"
)

// MockAdapter is a scriptable direct binding. It records every payload it is
// asked to purchase.
type MockAdapter struct {
	Name         string
	PurchaseFunc func(ctx context.Context, payload map[string]any) (adapter.PendingRequest, error)

	mu        sync.Mutex
	purchases []map[string]any
}

// NewMockAdapter creates a new MockAdapter.
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{Name: name}
}

// GetName implements adapter.Gateway.
func (m *MockAdapter) GetName() string {
	return m.Name
}

// Purchase implements adapter.Gateway.
// It calls PurchaseFunc if defined, otherwise returns a request that succeeds
// with an empty data map.
func (m *MockAdapter) Purchase(ctx context.Context, payload map[string]any) (adapter.PendingRequest, error) {
	m.mu.Lock()
	m.purchases = append(m.purchases, payload)
	m.mu.Unlock()

	if m.PurchaseFunc != nil {
		return m.PurchaseFunc(ctx, payload)
	}
	return Respond(&adapter.ProviderResult{
		Provider:  m.Name,
		Success:   true,
		Reference: uuid.NewString(),
		Payload:   map[string]any{},
	}), nil
}

// Purchases returns the payloads passed to Purchase so far.
func (m *MockAdapter) Purchases() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.purchases...)
}

// MockOffsiteAdapter adds CompletePurchase to MockAdapter.
type MockOffsiteAdapter struct {
	MockAdapter
	CompletePurchaseFunc func(ctx context.Context, payload map[string]any) (adapter.PendingRequest, error)

	completions []map[string]any
}

// NewMockOffsiteAdapter creates a new MockOffsiteAdapter.
func NewMockOffsiteAdapter(name string) *MockOffsiteAdapter {
	return &MockOffsiteAdapter{MockAdapter: MockAdapter{Name: name}}
}

// CompletePurchase implements adapter.OffsiteGateway.
func (m *MockOffsiteAdapter) CompletePurchase(ctx context.Context, payload map[string]any) (adapter.PendingRequest, error) {
	m.mu.Lock()
	m.completions = append(m.completions, payload)
	m.mu.Unlock()

	if m.CompletePurchaseFunc != nil {
		return m.CompletePurchaseFunc(ctx, payload)
	}
	return Respond(&adapter.ProviderResult{Provider: m.Name, Success: true, Payload: map[string]any{}}), nil
}

// Completions returns the payloads passed to CompletePurchase so far.
func (m *MockOffsiteAdapter) Completions() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.completions...)
}

// Request is a pending request that returns a canned response and counts sends.
type Request struct {
	Response adapter.Response
	Err      error

	mu    sync.Mutex
	sends int
}

// Respond returns a Request yielding resp.
func Respond(resp adapter.Response) *Request {
	return &Request{Response: resp}
}

// Fail returns a Request whose Send fails with err.
func Fail(err error) *Request {
	return &Request{Err: err}
}

// Send implements adapter.PendingRequest.
func (r *Request) Send(context.Context) (adapter.Response, error) {
	r.mu.Lock()
	r.sends++
	r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Response, nil
}

// Sends reports how many times Send was called.
func (r *Request) Sends() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sends
}
