package circuitbreaker

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourorg/capture-bridge/internal/adapter"
)

// ErrOpen is returned by a wrapped gateway while its circuit is open.
var ErrOpen = errors.New("circuitbreaker: circuit open")

// Wrap returns a gateway whose sends go through cb. Offsite gateways stay
// offsite. Transport errors count as failures; any response, declined or
// not, counts as a success.
func (cb *CircuitBreaker) Wrap(gw adapter.Gateway) adapter.Gateway {
	g := &guardedGateway{inner: gw, cb: cb}
	if off, ok := gw.(adapter.OffsiteGateway); ok {
		return &guardedOffsiteGateway{guardedGateway: g, offsite: off}
	}
	return g
}

type guardedGateway struct {
	inner adapter.Gateway
	cb    *CircuitBreaker
}

func (g *guardedGateway) GetName() string { return g.inner.GetName() }

func (g *guardedGateway) Purchase(ctx context.Context, payload map[string]any) (adapter.PendingRequest, error) {
	req, err := g.inner.Purchase(ctx, payload)
	if err != nil {
		return nil, err
	}
	return g.guard(req), nil
}

func (g *guardedGateway) guard(req adapter.PendingRequest) adapter.PendingRequest {
	name := g.inner.GetName()
	return adapter.RequestFunc(func(ctx context.Context) (adapter.Response, error) {
		if !g.cb.AllowRequest(name) {
			return nil, fmt.Errorf("%w: %s", ErrOpen, name)
		}
		resp, err := req.Send(ctx)
		if err != nil {
			if ctx.Err() == nil {
				g.cb.RecordFailure(name)
			}
			return resp, err
		}
		g.cb.RecordSuccess(name)
		return resp, nil
	})
}

type guardedOffsiteGateway struct {
	*guardedGateway
	offsite adapter.OffsiteGateway
}

func (g *guardedOffsiteGateway) CompletePurchase(ctx context.Context, payload map[string]any) (adapter.PendingRequest, error) {
	req, err := g.offsite.CompletePurchase(ctx, payload)
	if err != nil {
		return nil, err
	}
	return g.guard(req), nil
}
