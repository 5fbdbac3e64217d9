package action

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/capture-bridge/internal/adapter"
	"github.com/yourorg/capture-bridge/internal/adapter/mock"
	"github.com/yourorg/capture-bridge/internal/details"
	"github.com/yourorg/capture-bridge/internal/token"
)

// respondWith makes a gateway func answering a rich response carrying data.
func respondWith(data any, success bool) func(context.Context, map[string]any) (adapter.PendingRequest, error) {
	return func(context.Context, map[string]any) (adapter.PendingRequest, error) {
		return mock.Respond(&adapter.ProviderResult{Success: success, Payload: data}), nil
	}
}

func snapshot(t *testing.T, d *details.Details) string {
	t.Helper()
	b, err := json.Marshal(d)
	require.NoError(t, err)
	return string(b)
}

// fakeTokenFactory records notify token requests.
type fakeTokenFactory struct {
	target   string
	gateway  string
	identity string
	calls    int
}

func (f *fakeTokenFactory) CreateNotifyToken(_ context.Context, gatewayName, identity string) (*token.Token, error) {
	f.calls++
	f.gateway = gatewayName
	f.identity = identity
	return &token.Token{Hash: "n1", GatewayName: gatewayName, Identity: identity, TargetURL: f.target}, nil
}
