package card

import (
	"context"
	"errors"

	"github.com/yourorg/capture-bridge/internal/details"
)

// ErrNotSupported is returned by a Provider that cannot supply a card.
var ErrNotSupported = errors.New("card: obtaining a credit card is not supported")

// Provider supplies card data for a capture attempt. firstModel is the
// model the capture was requested for; current is the record being captured.
type Provider interface {
	Obtain(ctx context.Context, firstModel any, current *details.Details) (*Card, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, firstModel any, current *details.Details) (*Card, error)

// Obtain implements Provider.
func (f ProviderFunc) Obtain(ctx context.Context, firstModel any, current *details.Details) (*Card, error) {
	return f(ctx, firstModel, current)
}

// Static hands out a copy of a fixed card, or ErrNotSupported when Card is nil.
type Static struct {
	Card *Card
}

// Obtain implements Provider.
func (s Static) Obtain(context.Context, any, *details.Details) (*Card, error) {
	if s.Card == nil {
		return nil, ErrNotSupported
	}
	c := *s.Card
	return &c, nil
}

// Unsupported never supplies a card.
type Unsupported struct{}

// Obtain implements Provider.
func (Unsupported) Obtain(context.Context, any, *details.Details) (*Card, error) {
	return nil, ErrNotSupported
}
