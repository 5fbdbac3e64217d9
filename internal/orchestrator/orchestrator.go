// Package orchestrator dispatches bridge requests (capture, notify, convert,
// status) to the actions bound to one gateway. The first action that
// supports a request handles it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yourorg/capture-bridge/internal/action"
	"github.com/yourorg/capture-bridge/internal/adapter"
	"github.com/yourorg/capture-bridge/internal/details"
	"github.com/yourorg/capture-bridge/internal/metrics"
)

// CaptureGuard vets a record before it is charged. policy.PaymentPolicyEnforcer
// implements it.
type CaptureGuard interface {
	Check(ctx context.Context, gateway string, d *details.Details) error
}

// Result labels for the requests_total metric.
const (
	resultOK          = "ok"
	resultReply       = "reply"
	resultError       = "error"
	resultDenied      = "denied"
	resultUnsupported = "unsupported"
)

// Orchestrator owns a gateway and the actions bound to it.
type Orchestrator struct {
	gateway adapter.Gateway
	actions []action.Action
	guard   CaptureGuard
	logger  zerolog.Logger
}

// NewOrchestrator creates an Orchestrator for gw and binds every
// APIAware action to it.
func NewOrchestrator(gw adapter.Gateway, logger zerolog.Logger, actions ...action.Action) (*Orchestrator, error) {
	if gw == nil {
		panic("Gateway cannot be nil")
	}
	o := &Orchestrator{
		gateway: gw,
		logger:  logger.With().Str("component", "orchestrator").Str("gateway", gw.GetName()).Logger(),
	}
	for _, a := range actions {
		if err := o.AddAction(a); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// AddAction appends a after the existing actions, binding it to the gateway
// when it needs one.
func (o *Orchestrator) AddAction(a action.Action) error {
	if a == nil {
		return errors.New("orchestrator: action cannot be nil")
	}
	if aware, ok := a.(action.APIAware); ok {
		if err := aware.SetAPI(o.gateway); err != nil {
			return fmt.Errorf("orchestrator: binding %T to %s: %w", a, o.gateway.GetName(), err)
		}
	}
	o.actions = append(o.actions, a)
	return nil
}

// SetGuard installs a guard consulted before fresh captures. nil removes it.
func (o *Orchestrator) SetGuard(g CaptureGuard) {
	o.guard = g
}

// GatewayName returns the name of the bound gateway.
func (o *Orchestrator) GatewayName() string {
	return o.gateway.GetName()
}

// Offsite reports whether the bound gateway sends payers off-platform.
func (o *Orchestrator) Offsite() bool {
	_, ok := o.gateway.(adapter.OffsiteGateway)
	return ok
}

// Execute hands request to the first action that supports it.
func (o *Orchestrator) Execute(ctx context.Context, request any) (action.Reply, error) {
	kind := requestKind(request)
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Orchestrator.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("request", kind),
		attribute.String("gateway", o.gateway.GetName()),
	)

	if c, ok := request.(*action.Capture); ok && o.guard != nil && fresh(c.Details) {
		if err := o.guard.Check(ctx, o.gateway.GetName(), c.Details); err != nil {
			o.logger.Warn().Err(err).Msg("capture refused by guard")
			metrics.GetRequestsTotal().WithLabelValues(kind, resultDenied).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return action.Reply{}, err
		}
	}

	for _, a := range o.actions {
		if !a.Supports(request) {
			continue
		}
		reply, err := a.Execute(ctx, request)
		switch {
		case err != nil:
			metrics.GetRequestsTotal().WithLabelValues(kind, resultError).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case reply.Interrupts():
			metrics.GetRequestsTotal().WithLabelValues(kind, resultReply).Inc()
			span.SetAttributes(attribute.String("reply", reply.Kind.String()))
		default:
			metrics.GetRequestsTotal().WithLabelValues(kind, resultOK).Inc()
		}
		return reply, err
	}

	metrics.GetRequestsTotal().WithLabelValues(kind, resultUnsupported).Inc()
	err := fmt.Errorf("%w: no action handles %s", action.ErrRequestNotSupported, kind)
	span.SetStatus(codes.Error, err.Error())
	return action.Reply{}, err
}

// fresh reports whether a capture of d would start a new charge rather than
// finish one already accepted by the gateway.
func fresh(d *details.Details) bool {
	return d != nil && !d.Has(details.KeyStatus) && !d.Bool(details.KeyCompleteCaptureRequired)
}

func requestKind(request any) string {
	switch request.(type) {
	case *action.Capture:
		return "capture"
	case *action.Notify:
		return "notify"
	case *action.Convert:
		return "convert"
	case *action.GetStatus:
		return "status"
	default:
		return fmt.Sprintf("%T", request)
	}
}
