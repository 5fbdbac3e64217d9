// Package currency resolves ISO 4217 codes to their minor-unit exponent and
// scales amounts between minor units and decimal values.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknown is returned for a code the resolver has no entry for.
var ErrUnknown = errors.New("currency: unknown currency code")

// Currency describes one resolved currency.
type Currency struct {
	Alpha3   string
	Exponent int32
}

// Resolver maps a currency code to its description.
type Resolver interface {
	Resolve(ctx context.Context, code string) (Currency, error)
}

// Static resolves against a fixed table, typically loaded from config.
type Static struct {
	table map[string]Currency
}

// NewStatic builds a resolver from alpha3 -> exponent pairs. Codes are
// case-insensitive.
func NewStatic(exponents map[string]int) *Static {
	s := &Static{table: make(map[string]Currency, len(exponents))}
	for code, exp := range exponents {
		a3 := strings.ToUpper(strings.TrimSpace(code))
		s.table[a3] = Currency{Alpha3: a3, Exponent: int32(exp)}
	}
	return s
}

// Resolve implements Resolver.
func (s *Static) Resolve(_ context.Context, code string) (Currency, error) {
	c, ok := s.table[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknown, code)
	}
	return c, nil
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, code string) (Currency, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, code string) (Currency, error) {
	return f(ctx, code)
}

// FromMinor converts an amount in minor units to its decimal value.
func FromMinor(minor int64, c Currency) decimal.Decimal {
	return decimal.New(minor, -c.Exponent)
}

// ToMinor converts a decimal amount to minor units, rounding half away from zero.
func ToMinor(amount decimal.Decimal, c Currency) int64 {
	return amount.Shift(c.Exponent).Round(0).IntPart()
}
