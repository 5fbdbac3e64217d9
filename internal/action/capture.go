package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/capture-bridge/internal/adapter"
	"github.com/yourorg/capture-bridge/internal/card"
	"github.com/yourorg/capture-bridge/internal/circuitbreaker"
	"github.com/yourorg/capture-bridge/internal/details"
	"github.com/yourorg/capture-bridge/internal/metrics"
)

const tracerName = "action"

// CaptureAction charges a direct gateway.
type CaptureAction struct {
	gatewayAware
	provider card.Provider
	logger   zerolog.Logger
}

// NewCaptureAction creates a CaptureAction. A nil provider never supplies a
// card.
func NewCaptureAction(provider card.Provider, logger zerolog.Logger) *CaptureAction {
	if provider == nil {
		provider = card.Unsupported{}
	}
	return &CaptureAction{
		provider: provider,
		logger:   logger.With().Str("component", "capture").Logger(),
	}
}

// SetAPI implements APIAware. Offsite gateways are refused: their captures
// go through OffsiteCaptureAction.
func (a *CaptureAction) SetAPI(api any) error {
	if _, ok := api.(adapter.OffsiteGateway); ok {
		return fmt.Errorf("%w: %T completes purchases offsite", ErrUnsupportedAPI, api)
	}
	return a.gatewayAware.SetAPI(api)
}

// Supports implements Action.
func (a *CaptureAction) Supports(request any) bool {
	c, ok := request.(*Capture)
	return ok && c.Details != nil
}

// Execute implements Action.
func (a *CaptureAction) Execute(ctx context.Context, request any) (Reply, error) {
	if !a.Supports(request) {
		return Reply{}, fmt.Errorf("%w: %T", ErrRequestNotSupported, request)
	}
	gw, err := a.bound()
	if err != nil {
		return Reply{}, err
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "CaptureAction.Execute")
	defer span.End()

	c := capturer{gateway: gw, provider: a.provider, logger: a.logger, span: span}
	reply, err := c.run(ctx, request.(*Capture))
	endSpan(span, err)
	return reply, err
}

// capturer runs one capture attempt against gateway. A direct capture leaves
// offsite nil and obtains card data from provider; an offsite capture never
// asks for a card since the payer enters it on the gateway's page.
type capturer struct {
	gateway  adapter.Gateway
	offsite  adapter.OffsiteGateway
	provider card.Provider
	logger   zerolog.Logger
	span     trace.Span
}

const (
	opPurchase         = "purchase"
	opCompletePurchase = "complete_purchase"
)

func (c *capturer) run(ctx context.Context, req *Capture) (reply Reply, err error) {
	d := req.Details
	name := c.gateway.GetName()
	c.span.SetAttributes(attribute.String("gateway", name))

	if d.Has(details.KeyStatus) {
		c.logger.Debug().Str("status", d.String(details.KeyStatus)).Msg("status already set, skipping capture")
		metrics.GetCapturesTotal().WithLabelValues(name, metrics.OutcomeSkipped).Inc()
		return Reply{}, nil
	}

	complete := d.Bool(details.KeyCompleteCaptureRequired)
	if complete && d.Bool(details.KeyCaptureCompleted) {
		metrics.GetCapturesTotal().WithLabelValues(name, metrics.OutcomeSkipped).Inc()
		return Reply{}, nil
	}
	if complete && c.offsite == nil {
		return Reply{}, fmt.Errorf("%w: %s does not support completePurchase", ErrUnsupportedAPI, name)
	}

	if c.offsite == nil {
		if err = c.ensureCard(ctx, req); err != nil {
			return Reply{}, err
		}
	}
	d.SetDefault(details.KeyClientIP, req.ClientIP)
	defer eraseCard(d)

	operation := opPurchase
	if complete {
		operation = opCompletePurchase
		d.Set(details.KeyCaptureCompleted, true)
		// A completion that got no usable answer runs again on the next return.
		defer func() {
			if err != nil {
				d.Delete(details.KeyCaptureCompleted)
			}
		}()
	}
	c.span.SetAttributes(attribute.String("operation", operation))

	rich, err := c.send(ctx, d, operation)
	if err != nil {
		return Reply{}, err
	}

	mergeData(d, rich.Data())

	if rich.IsRedirect() {
		redirect, ok := rich.(adapter.RedirectResponse)
		if !ok || redirect.RedirectURL() == "" {
			metrics.GetCapturesTotal().WithLabelValues(name, metrics.OutcomeError).Inc()
			return Reply{}, fmt.Errorf("action: %s answered a redirect without a target", name)
		}
		if c.offsite == nil {
			metrics.GetCapturesTotal().WithLabelValues(name, metrics.OutcomeError).Inc()
			return Reply{}, fmt.Errorf("%w: %s answered a redirect but cannot complete a purchase", ErrUnsupportedAPI, name)
		}
		d.Set(details.KeyCompleteCaptureRequired, true)
		d.Delete(details.KeyCaptureCompleted)
		metrics.GetCapturesTotal().WithLabelValues(name, metrics.OutcomeRedirect).Inc()
		c.logger.Info().Str("gateway", name).Str("method", redirect.RedirectMethod()).Msg("redirecting payer")
		return RedirectReply(redirect.RedirectMethod(), redirect.RedirectURL(), redirect.RedirectData()), nil
	}

	recordOutcome(d, rich)
	outcome := metrics.OutcomeDeclined
	if rich.IsSuccessful() {
		outcome = metrics.OutcomeSuccess
	}
	metrics.GetCapturesTotal().WithLabelValues(name, outcome).Inc()
	c.span.SetAttributes(attribute.Bool("successful", rich.IsSuccessful()))
	c.logger.Info().
		Str("gateway", name).
		Str("operation", operation).
		Bool("successful", rich.IsSuccessful()).
		Str("reference", rich.TransactionReference()).
		Msg("capture finished")
	return Reply{}, nil
}

// send issues operation with the wire form of d and returns the gateway's
// rich response.
func (c *capturer) send(ctx context.Context, d *details.Details, operation string) (adapter.RichResponse, error) {
	name := c.gateway.GetName()

	var (
		pending adapter.PendingRequest
		err     error
	)
	if operation == opCompletePurchase {
		pending, err = c.offsite.CompletePurchase(ctx, d.Wire())
	} else {
		pending, err = c.gateway.Purchase(ctx, d.Wire())
	}
	if err != nil {
		metrics.GetCapturesTotal().WithLabelValues(name, metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("action: %s %s: %w", name, operation, err)
	}

	start := time.Now()
	resp, err := pending.Send(ctx)
	metrics.GetGatewaySendDuration().WithLabelValues(name, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			metrics.GetBreakerRejectionsTotal().WithLabelValues(name).Inc()
		}
		metrics.GetCapturesTotal().WithLabelValues(name, metrics.OutcomeError).Inc()
		c.logger.Error().Err(err).Str("gateway", name).Str("operation", operation).Msg("gateway send failed")
		return nil, fmt.Errorf("action: %s %s: %w", name, operation, err)
	}

	rich, ok := resp.(adapter.RichResponse)
	if !ok {
		metrics.GetCapturesTotal().WithLabelValues(name, metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("%w (got %T)", ErrWeakResponse, resp)
	}
	return rich, nil
}

// ensureCard fills card or cardReference from the provider when the record
// has neither.
func (c *capturer) ensureCard(ctx context.Context, req *Capture) error {
	d := req.Details
	if hasValue(d, details.KeyCard) || hasValue(d, details.KeyCardReference) {
		return nil
	}
	// A persisted secret comes back as null.
	d.Delete(details.KeyCard)
	d.Delete(details.KeyCardReference)
	provider := c.provider
	if req.CardProvider != nil {
		provider = req.CardProvider
	}
	cc, err := provider.Obtain(ctx, req.FirstModel, d)
	if errors.Is(err, card.ErrNotSupported) || (err == nil && cc == nil) {
		return ErrMissingCard
	}
	if err != nil {
		return fmt.Errorf("action: obtain credit card: %w", err)
	}
	if cc.HasToken() {
		d.Set(details.KeyCardReference, cc.Token)
		return nil
	}
	d.Set(details.KeyCard, details.NewSecret(cc.Fields()))
	cc.Erase()
	return nil
}

// hasValue reports whether key holds something other than nil, an empty
// string or an erased secret.
func hasValue(d *details.Details, key string) bool {
	v, ok := d.Get(key)
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case *details.Secret:
		return !t.Erased()
	case string:
		return t != ""
	}
	return true
}

// eraseCard clears a secret card once it was handed to the gateway.
func eraseCard(d *details.Details) {
	if v, ok := d.Get(details.KeyCard); ok {
		if s, ok := v.(*details.Secret); ok {
			s.Erase()
		}
	}
}

// mergeData folds a response payload into d. Mapping keys never overwrite
// existing ones; scalars land under _data.
func mergeData(d *details.Details, data any) {
	switch t := data.(type) {
	case nil:
	case map[string]any:
		d.Defaults(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[k] = v
		}
		d.Defaults(m)
	default:
		d.Set(details.KeyData, t)
	}
}

// recordOutcome stores the result of the last gateway call under control
// keys read by the status action.
func recordOutcome(d *details.Details, resp adapter.RichResponse) {
	d.Set(details.KeySuccessful, resp.IsSuccessful())
	setOrDelete(d, details.KeyReference, resp.TransactionReference())
	setOrDelete(d, details.KeyStatusCode, resp.Code())
	setOrDelete(d, details.KeyStatusMessage, resp.Message())
}

func setOrDelete(d *details.Details, key, v string) {
	if v == "" {
		d.Delete(key)
		return
	}
	d.Set(key, v)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
