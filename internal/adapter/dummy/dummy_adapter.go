// Package dummy implements an in-process gateway used for demos and
// functional tests. Cards whose number ends in an even digit are approved,
// odd ones are declined. A cardReference is always approved.
package dummy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/capture-bridge/internal/adapter"
)

// GatewayName is the registered name of the dummy gateway.
const GatewayName = "Dummy"

var ErrInvalidCard = errors.New("dummy: invalid card")

// DummyAdapter is a direct binding that never leaves the process.
type DummyAdapter struct {
	now func() time.Time
}

// NewDummyAdapter creates a new DummyAdapter.
func NewDummyAdapter() *DummyAdapter {
	return &DummyAdapter{now: time.Now}
}

// GetName implements adapter.Gateway.
func (a *DummyAdapter) GetName() string {
	return GatewayName
}

// Purchase implements adapter.Gateway. Validation failures are reported from
// Purchase itself; the decision is made when the request is sent.
func (a *DummyAdapter) Purchase(_ context.Context, payload map[string]any) (adapter.PendingRequest, error) {
	amount, err := adapter.AmountField(payload, "amount")
	if err != nil {
		return nil, fmt.Errorf("dummy: %w", err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("dummy: amount must be positive, got %s", amount)
	}

	if ref := adapter.StringField(payload, "cardReference"); ref != "" {
		return adapter.RequestFunc(func(context.Context) (adapter.Response, error) {
			return a.result(true, amount.String()), nil
		}), nil
	}

	cardFields, ok := adapter.MapField(payload, "card")
	if !ok {
		return nil, fmt.Errorf("dummy: the card parameter is required")
	}
	number := adapter.StringField(cardFields, "number")
	if err := a.validate(number, cardFields); err != nil {
		return nil, err
	}

	approve := (number[len(number)-1]-'0')%2 == 0
	return adapter.RequestFunc(func(ctx context.Context) (adapter.Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return a.result(approve, amount.String()), nil
	}), nil
}

func (a *DummyAdapter) validate(number string, cardFields map[string]any) error {
	if number == "" {
		return fmt.Errorf("%w: number is required", ErrInvalidCard)
	}
	if strings.Trim(number, "0123456789") != "" || !luhn(number) {
		return fmt.Errorf("%w: card number is invalid", ErrInvalidCard)
	}

	month := adapter.StringField(cardFields, "expiryMonth")
	year := adapter.StringField(cardFields, "expiryYear")
	if month == "" || year == "" {
		return fmt.Errorf("%w: expiry is required", ErrInvalidCard)
	}
	var m, y int
	if _, err := fmt.Sscanf(month, "%d", &m); err != nil || m < 1 || m > 12 {
		return fmt.Errorf("%w: expiry month %q is invalid", ErrInvalidCard, month)
	}
	if _, err := fmt.Sscanf(year, "%d", &y); err != nil {
		return fmt.Errorf("%w: expiry year %q is invalid", ErrInvalidCard, year)
	}
	if y < 100 {
		y += 2000
	}
	now := a.now()
	if y < now.Year() || (y == now.Year() && time.Month(m) < now.Month()) {
		return fmt.Errorf("%w: card has expired", ErrInvalidCard)
	}
	return nil
}

func (a *DummyAdapter) result(approved bool, amount string) *adapter.ProviderResult {
	ref := uuid.NewString()
	res := &adapter.ProviderResult{
		Provider:     GatewayName,
		Success:      approved,
		Reference:    ref,
		ErrorMessage: "Success",
	}
	if !approved {
		res.ErrorCode = "declined"
		res.ErrorMessage = "Failure"
	}
	res.Payload = map[string]any{
		"reference": ref,
		"amount":    amount,
		"message":   res.ErrorMessage,
	}
	return res
}

func luhn(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
