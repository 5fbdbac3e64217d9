package action

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/capture-bridge/internal/details"
	"github.com/yourorg/capture-bridge/internal/metrics"
)

// NotifyAction handles gateway callbacks: it completes the purchase, stores
// the terminal status and asks the caller to answer 200.
type NotifyAction struct {
	offsiteAware
	logger zerolog.Logger
}

// NewNotifyAction creates a NotifyAction.
func NewNotifyAction(logger zerolog.Logger) *NotifyAction {
	return &NotifyAction{logger: logger.With().Str("component", "notify").Logger()}
}

// Supports implements Action.
func (a *NotifyAction) Supports(request any) bool {
	n, ok := request.(*Notify)
	return ok && n.Details != nil
}

// Execute implements Action. Response data is not merged.
func (a *NotifyAction) Execute(ctx context.Context, request any) (Reply, error) {
	if !a.Supports(request) {
		return Reply{}, fmt.Errorf("%w: %T", ErrRequestNotSupported, request)
	}
	gw, err := a.bound()
	if err != nil {
		return Reply{}, err
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "NotifyAction.Execute")
	defer span.End()

	d := request.(*Notify).Details
	name := gw.GetName()
	span.SetAttributes(attribute.String("gateway", name))

	pending, err := gw.CompletePurchase(ctx, d.Wire())
	if err != nil {
		endSpan(span, err)
		return Reply{}, fmt.Errorf("action: %s complete_purchase: %w", name, err)
	}
	start := time.Now()
	resp, err := pending.Send(ctx)
	metrics.GetGatewaySendDuration().WithLabelValues(name, "notify").Observe(time.Since(start).Seconds())
	if err != nil {
		endSpan(span, err)
		a.logger.Error().Err(err).Str("gateway", name).Msg("gateway send failed")
		return Reply{}, fmt.Errorf("action: %s complete_purchase: %w", name, err)
	}

	status := StatusFailed
	if resp.IsSuccessful() {
		status = StatusCaptured
	}
	d.Set(details.KeyStatus, status)
	metrics.GetNotificationsTotal().WithLabelValues(name, status).Inc()
	a.logger.Info().Str("gateway", name).Str("status", status).Msg("notification handled")
	return HTTPReply(http.StatusOK), nil
}
