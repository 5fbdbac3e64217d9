package action

import (
	"context"
	"fmt"

	"github.com/yourorg/capture-bridge/internal/currency"
	"github.com/yourorg/capture-bridge/internal/details"
)

// ConvertPaymentAction turns a payment into the details record a capture
// works on.
type ConvertPaymentAction struct {
	currencies currency.Resolver
}

// NewConvertPaymentAction creates a ConvertPaymentAction.
func NewConvertPaymentAction(currencies currency.Resolver) *ConvertPaymentAction {
	if currencies == nil {
		panic("action: currency resolver cannot be nil")
	}
	return &ConvertPaymentAction{currencies: currencies}
}

// Supports implements Action.
func (a *ConvertPaymentAction) Supports(request any) bool {
	c, ok := request.(*Convert)
	return ok && c.Payment != nil
}

// Execute implements Action. amount, currency and description are derived
// on every call; every other key already in the record wins over derived
// values.
func (a *ConvertPaymentAction) Execute(ctx context.Context, request any) (Reply, error) {
	if !a.Supports(request) {
		return Reply{}, fmt.Errorf("%w: %T", ErrRequestNotSupported, request)
	}
	req := request.(*Convert)
	p := req.Payment

	cur, err := a.currencies.Resolve(ctx, p.CurrencyCode)
	if err != nil {
		return Reply{}, fmt.Errorf("action: convert payment: %w", err)
	}

	d := req.Existing
	if d == nil {
		d = details.New()
	}
	d.Defaults(p.Details)

	d.Set(details.KeyAmount, currency.FromMinor(p.TotalAmount, cur).InexactFloat64())
	d.Set(details.KeyCurrency, cur.Alpha3)
	d.Set(details.KeyDescription, p.Description)

	if p.CreditCard != nil {
		if p.CreditCard.HasToken() {
			d.SetDefault(details.KeyCardReference, p.CreditCard.Token)
		} else {
			d.SetDefault(details.KeyCard, details.NewSecret(p.CreditCard.Fields()))
		}
	}
	if p.Number != "" {
		d.SetDefault("transactionId", p.Number)
	}
	if p.ClientEmail != "" {
		d.SetDefault("clientEmail", p.ClientEmail)
	}

	req.Result = d
	return Reply{}, nil
}
