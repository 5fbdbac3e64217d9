package currency

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_Resolve(t *testing.T) {
	r := NewStatic(map[string]int{"usd": 2, "JPY": 0})

	c, err := r.Resolve(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, Currency{Alpha3: "USD", Exponent: 2}, c)

	c, err = r.Resolve(context.Background(), " jpy ")
	require.NoError(t, err)
	assert.Equal(t, int32(0), c.Exponent)

	_, err = r.Resolve(context.Background(), "XXX")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestFromMinor(t *testing.T) {
	usd := Currency{Alpha3: "USD", Exponent: 2}
	f, _ := FromMinor(123, usd).Float64()
	assert.Equal(t, 1.23, f)

	assert.Equal(t, "1000", FromMinor(1000, Currency{Alpha3: "JPY"}).String())
	assert.Equal(t, "0.005", FromMinor(5, Currency{Alpha3: "BHD", Exponent: 3}).String())
}

func TestToMinor(t *testing.T) {
	usd := Currency{Alpha3: "USD", Exponent: 2}
	assert.Equal(t, int64(100000), ToMinor(decimal.RequireFromString("1000.00"), usd))
	assert.Equal(t, int64(124), ToMinor(decimal.RequireFromString("1.235"), usd))
}
