package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/capture-bridge/internal/card"
	"github.com/yourorg/capture-bridge/internal/currency"
	"github.com/yourorg/capture-bridge/internal/details"
	"github.com/yourorg/capture-bridge/internal/payment"
)

var testCurrencies = currency.NewStatic(map[string]int{"USD": 2, "JPY": 0, "BHD": 3})

func convert(t *testing.T, p *payment.Payment, existing *details.Details) *details.Details {
	t.Helper()
	a := NewConvertPaymentAction(testCurrencies)
	req := &Convert{Payment: p, Existing: existing}
	require.True(t, a.Supports(req))
	reply, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, reply.Interrupts())
	require.NotNil(t, req.Result)
	return req.Result
}

func TestConvertPaymentAction_Supports(t *testing.T) {
	a := NewConvertPaymentAction(testCurrencies)
	assert.True(t, a.Supports(&Convert{Payment: &payment.Payment{}}))
	assert.False(t, a.Supports(&Convert{}))
	assert.False(t, a.Supports(&GetStatus{Details: details.New()}))
	assert.Panics(t, func() { NewConvertPaymentAction(nil) })
}

func TestConvertPaymentAction_CorrectlyConvertsPayment(t *testing.T) {
	d := convert(t, &payment.Payment{
		Number:       "theNumber",
		CurrencyCode: "USD",
		TotalAmount:  123,
		Description:  "the description",
		ClientEmail:  "buyer@example.com",
	}, nil)

	amount, _ := d.Get(details.KeyAmount)
	assert.Equal(t, 1.23, amount)
	assert.Equal(t, "USD", d.String(details.KeyCurrency))
	assert.Equal(t, "the description", d.String(details.KeyDescription))
	assert.Equal(t, "theNumber", d.String("transactionId"))
	assert.Equal(t, "buyer@example.com", d.String("clientEmail"))
	assert.False(t, d.Has(details.KeyCard))
}

func TestConvertPaymentAction_UsesCurrencyExponent(t *testing.T) {
	d := convert(t, &payment.Payment{CurrencyCode: "jpy", TotalAmount: 500}, nil)
	amount, _ := d.Get(details.KeyAmount)
	assert.Equal(t, 500.0, amount)
	assert.Equal(t, "JPY", d.String(details.KeyCurrency))

	d = convert(t, &payment.Payment{CurrencyCode: "BHD", TotalAmount: 1234}, nil)
	amount, _ = d.Get(details.KeyAmount)
	assert.Equal(t, 1.234, amount)
}

func TestConvertPaymentAction_ConvertsCreditCard(t *testing.T) {
	d := convert(t, &payment.Payment{
		CurrencyCode: "USD",
		TotalAmount:  100,
		CreditCard: &card.Card{
			Number:   "4111111111111111",
			CVV:      "123",
			Holder:   "John Doe",
			ExpireAt: time.Date(2010, time.November, 12, 0, 0, 0, 0, time.UTC),
		},
	}, nil)

	v, ok := d.Get(details.KeyCard)
	require.True(t, ok)
	secret, ok := v.(*details.Secret)
	require.True(t, ok)
	fields, ok := secret.Peek()
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"number":      "4111111111111111",
		"cvv":         "123",
		"expiryMonth": "11",
		"expiryYear":  "10",
		"firstName":   "John Doe",
		"lastName":    "",
	}, fields)

	d = convert(t, &payment.Payment{CurrencyCode: "USD", CreditCard: &card.Card{Token: "tok_1"}}, nil)
	assert.Equal(t, "tok_1", d.String(details.KeyCardReference))
	assert.False(t, d.Has(details.KeyCard))
}

func TestConvertPaymentAction_DoesNotOverwriteAlreadySetExtraDetails(t *testing.T) {
	d := convert(t, &payment.Payment{
		CurrencyCode: "USD",
		TotalAmount:  123,
		Description:  "the description",
		Number:       "theNumber",
		Details:      map[string]any{"foo": "fooVal", "transactionId": "fromDetails"},
	}, nil)

	assert.Equal(t, "fooVal", d.String("foo"))
	assert.Equal(t, "fromDetails", d.String("transactionId"))
}

func TestConvertPaymentAction_RecomputesDerivedFields(t *testing.T) {
	existing := details.FromMap(map[string]any{
		"amount":      99.0,
		"currency":    "EUR",
		"description": "stale",
		"card":        "keep me",
	})
	d := convert(t, &payment.Payment{
		CurrencyCode: "USD",
		TotalAmount:  250,
		Description:  "fresh",
		CreditCard:   &card.Card{Number: "4242424242424242"},
	}, existing)

	assert.Same(t, existing, d)
	amount, _ := d.Get(details.KeyAmount)
	assert.Equal(t, 2.5, amount)
	assert.Equal(t, "USD", d.String(details.KeyCurrency))
	assert.Equal(t, "fresh", d.String(details.KeyDescription))
	assert.Equal(t, "keep me", d.String(details.KeyCard))
}

func TestConvertPaymentAction_UnknownCurrency(t *testing.T) {
	a := NewConvertPaymentAction(testCurrencies)
	_, err := a.Execute(context.Background(), &Convert{Payment: &payment.Payment{CurrencyCode: "XXX"}})
	assert.ErrorIs(t, err, currency.ErrUnknown)
}
