package action

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/capture-bridge/internal/details"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{name: "empty", fields: map[string]any{}, want: StatusNew},
		{name: "explicit captured", fields: map[string]any{"_status": "captured", "_successful": false}, want: StatusCaptured},
		{name: "explicit failed", fields: map[string]any{"_status": "failed"}, want: StatusFailed},
		{name: "explicit unknown value", fields: map[string]any{"_status": "foo"}, want: StatusUnknown},
		{name: "awaiting payer", fields: map[string]any{"_completeCaptureRequired": true}, want: StatusPending},
		{name: "completed and successful", fields: map[string]any{"_completeCaptureRequired": true, "_captureCompleted": true, "_successful": true}, want: StatusCaptured},
		{name: "successful", fields: map[string]any{"_successful": true}, want: StatusCaptured},
		{name: "declined", fields: map[string]any{"_successful": false}, want: StatusFailed},
		{name: "persisted flag as string", fields: map[string]any{"_successful": "true"}, want: StatusCaptured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(details.FromMap(tt.fields)))
		})
	}
}

func TestStatusAction_Execute(t *testing.T) {
	a := NewStatusAction()
	req := &GetStatus{Details: details.FromMap(map[string]any{"_successful": true})}
	require.True(t, a.Supports(req))
	assert.False(t, a.Supports(&GetStatus{}))

	reply, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, reply.Interrupts())
	assert.Equal(t, StatusCaptured, req.Status)

	_, err = a.Execute(context.Background(), &Capture{Details: details.New()})
	assert.ErrorIs(t, err, ErrRequestNotSupported)
}

func TestReply(t *testing.T) {
	assert.False(t, Reply{}.Interrupts())
	assert.Equal(t, "none", ReplyNone.String())

	r := HTTPReply(http.StatusOK)
	assert.Equal(t, ReplyHTTP, r.Kind)
	assert.Equal(t, "http", r.Kind.String())

	r = RedirectReply(http.MethodGet, "https://x", map[string]string{"a": "b"})
	assert.Equal(t, ReplyRedirect, r.Kind)
	assert.Nil(t, r.Fields)

	r = RedirectReply(http.MethodPost, "https://x", map[string]string{"a": "b"})
	assert.Equal(t, ReplyPostRedirect, r.Kind)
	assert.Equal(t, "post_redirect", r.Kind.String())
	assert.Equal(t, map[string]string{"a": "b"}, r.Fields)
}
