package action

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/yourorg/capture-bridge/internal/details"
	"github.com/yourorg/capture-bridge/internal/token"
)

// OffsiteCaptureAction charges a gateway that sends the payer to its own
// page. The payer comes back through the capture token, the gateway through
// a notify token.
type OffsiteCaptureAction struct {
	offsiteAware
	tokens token.Factory
	logger zerolog.Logger
}

// NewOffsiteCaptureAction creates an OffsiteCaptureAction. tokens may be nil,
// in which case no notifyUrl is set.
func NewOffsiteCaptureAction(tokens token.Factory, logger zerolog.Logger) *OffsiteCaptureAction {
	return &OffsiteCaptureAction{
		tokens: tokens,
		logger: logger.With().Str("component", "offsite_capture").Logger(),
	}
}

// SetTokenFactory sets the factory used to issue notify tokens.
func (a *OffsiteCaptureAction) SetTokenFactory(tokens token.Factory) {
	a.tokens = tokens
}

// Supports implements Action.
func (a *OffsiteCaptureAction) Supports(request any) bool {
	c, ok := request.(*Capture)
	return ok && c.Details != nil
}

// Execute implements Action.
func (a *OffsiteCaptureAction) Execute(ctx context.Context, request any) (Reply, error) {
	if !a.Supports(request) {
		return Reply{}, fmt.Errorf("%w: %T", ErrRequestNotSupported, request)
	}
	gw, err := a.bound()
	if err != nil {
		return Reply{}, err
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "OffsiteCaptureAction.Execute")
	defer span.End()

	req := request.(*Capture)
	d := req.Details
	finished := d.Has(details.KeyStatus) ||
		(d.Bool(details.KeyCompleteCaptureRequired) && d.Bool(details.KeyCaptureCompleted))
	if !finished {
		if err := a.setURLs(ctx, gw.GetName(), req); err != nil {
			endSpan(span, err)
			return Reply{}, err
		}
	}

	c := capturer{gateway: gw, offsite: gw, logger: a.logger, span: span}
	reply, err := c.run(ctx, req)
	endSpan(span, err)
	return reply, err
}

// setURLs points returnUrl and cancelUrl at the capture token and asks the
// token factory for a notify URL. Values already in the record are kept.
func (a *OffsiteCaptureAction) setURLs(ctx context.Context, gatewayName string, req *Capture) error {
	if req.Token == nil {
		return nil
	}
	d := req.Details
	if d.String(details.KeyReturnURL) == "" {
		d.Set(details.KeyReturnURL, req.Token.TargetURL)
	}
	if d.String(details.KeyCancelURL) == "" {
		d.Set(details.KeyCancelURL, req.Token.TargetURL)
	}
	if a.tokens == nil || d.String(details.KeyNotifyURL) != "" {
		return nil
	}
	name := req.Token.GatewayName
	if name == "" {
		name = gatewayName
	}
	notify, err := a.tokens.CreateNotifyToken(ctx, name, req.Token.Identity)
	if err != nil {
		return fmt.Errorf("action: create notify token: %w", err)
	}
	d.Set(details.KeyNotifyURL, notify.TargetURL)
	return nil
}
