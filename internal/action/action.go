// Package action implements the request handlers that drive a gateway
// binding: capture (direct and offsite), notify, payment conversion and
// status inquiry.
//
// Handlers mutate the details record carried by their request in place. A
// handler that needs the caller to answer the HTTP exchange itself (a
// redirect, a fixed status) returns a non-empty Reply instead of an error.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourorg/capture-bridge/internal/adapter"
)

var (
	// ErrUnsupportedAPI is returned when a handler is bound to a gateway that
	// lacks a capability it needs.
	ErrUnsupportedAPI = errors.New("action: unsupported api")
	// ErrRequestNotSupported means the handler does not apply to the request;
	// a dispatcher may try another handler.
	ErrRequestNotSupported = errors.New("action: request not supported")
	// ErrMissingCard is returned when neither the record nor a card provider
	// supplies card data.
	ErrMissingCard = errors.New("action: credit card details has to be set explicitly or there has to be an action that supports ObtainCreditCard request")
	// ErrWeakResponse is returned when a gateway response exposes no
	// structured data.
	ErrWeakResponse = errors.New("action: the bridge supports only responses which expose structured data; the minimal response interface is useless")
)

// Action handles one kind of request.
type Action interface {
	Supports(request any) bool
	Execute(ctx context.Context, request any) (Reply, error)
}

// APIAware is implemented by actions that must be bound to a gateway before
// use.
type APIAware interface {
	SetAPI(api any) error
}

// gatewayAware binds any gateway.
type gatewayAware struct {
	gateway adapter.Gateway
}

// SetAPI implements APIAware.
func (g *gatewayAware) SetAPI(api any) error {
	gw, ok := api.(adapter.Gateway)
	if !ok {
		return fmt.Errorf("%w: %T is not a gateway", ErrUnsupportedAPI, api)
	}
	g.gateway = gw
	return nil
}

func (g *gatewayAware) bound() (adapter.Gateway, error) {
	if g.gateway == nil {
		return nil, fmt.Errorf("%w: no gateway bound", ErrUnsupportedAPI)
	}
	return g.gateway, nil
}

// offsiteAware binds gateways that can complete a purchase.
type offsiteAware struct {
	gateway adapter.OffsiteGateway
}

// SetAPI implements APIAware.
func (o *offsiteAware) SetAPI(api any) error {
	gw, ok := api.(adapter.OffsiteGateway)
	if !ok {
		return fmt.Errorf("%w: %T does not support completePurchase", ErrUnsupportedAPI, api)
	}
	o.gateway = gw
	return nil
}

func (o *offsiteAware) bound() (adapter.OffsiteGateway, error) {
	if o.gateway == nil {
		return nil, fmt.Errorf("%w: no gateway bound", ErrUnsupportedAPI)
	}
	return o.gateway, nil
}
