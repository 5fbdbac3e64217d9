package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericFactory_IssueAndResolve(t *testing.T) {
	ctx := context.Background()
	f := NewGenericFactory("https://shop.example/pay/")

	capture, err := f.CreateCaptureToken(ctx, "hosted", "pay-1", "https://shop.example/done")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/pay/capture/"+capture.Hash, capture.TargetURL)
	assert.Equal(t, "https://shop.example/done", capture.AfterURL)

	notify, err := f.CreateNotifyToken(ctx, "hosted", "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/pay/notify/"+notify.Hash, notify.TargetURL)
	assert.NotEqual(t, capture.Hash, notify.Hash)

	got, err := f.Resolve(ctx, notify.Hash)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", got.Identity)
	assert.Equal(t, "hosted", got.GatewayName)

	f.Invalidate(ctx, notify.Hash)
	_, err = f.Resolve(ctx, notify.Hash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenericFactory_RequiresIdentity(t *testing.T) {
	_, err := NewGenericFactory("http://x").CreateNotifyToken(context.Background(), "g", "")
	require.Error(t, err)
}
