package adapter

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StringField reads payload[key] as a string; missing or nil values yield "".
func StringField(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// MapField reads payload[key] as a nested map.
func MapField(payload map[string]any, key string) (map[string]any, bool) {
	v, ok := payload[key]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = vv
		}
		return m, true
	default:
		return nil, false
	}
}

// AmountField parses payload[key] as a decimal amount. Strings ("1000.00")
// and numbers are accepted.
func AmountField(payload map[string]any, key string) (decimal.Decimal, error) {
	v, ok := payload[key]
	if !ok || v == nil {
		return decimal.Decimal{}, fmt.Errorf("the %s parameter is required", key)
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid %s %q: %w", key, t, err)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("invalid %s type %T", key, v)
	}
}
