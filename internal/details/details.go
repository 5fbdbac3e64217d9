// Package details holds the mutable record that carries one payment attempt's
// evolving state between the capture actions, the gateway bindings and storage.
//
// A Details record is an insertion-ordered string-keyed bag. Keys starting with
// an underscore are control keys used for orchestration (for example _status or
// _completeCaptureRequired); they stay in the record but are never sent to a
// gateway (see Wire).
package details

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Recognized keys.
const (
	KeyStatus                  = "_status"
	KeyCompleteCaptureRequired = "_completeCaptureRequired"
	KeyCaptureCompleted        = "_captureCompleted"
	KeyData                    = "_data"
	KeyReference               = "_reference"
	KeyStatusCode              = "_status_code"
	KeyStatusMessage           = "_status_message"
	KeySuccessful              = "_successful"

	KeyCard          = "card"
	KeyCardReference = "cardReference"
	KeyClientIP      = "clientIp"
	KeyReturnURL     = "returnUrl"
	KeyCancelURL     = "cancelUrl"
	KeyNotifyURL     = "notifyUrl"
	KeyAmount        = "amount"
	KeyCurrency      = "currency"
	KeyDescription   = "description"
)

// ControlPrefix marks keys that never leave the process.
const ControlPrefix = "_"

// IsControlKey reports whether key is an orchestration-only key.
func IsControlKey(key string) bool {
	return strings.HasPrefix(key, ControlPrefix)
}

// Details is an ordered, mutable key/value record. It is not safe for
// concurrent use; one call chain owns a record at a time.
type Details struct {
	keys   []string
	values map[string]any
}

// New returns an empty record.
func New() *Details {
	return &Details{values: make(map[string]any)}
}

// FromMap builds a record from m. Go maps carry no order, so keys are
// inserted in lexical order to keep the result deterministic.
func FromMap(m map[string]any) *Details {
	d := New()
	keys := maps.Keys(m)
	slices.Sort(keys)
	for _, k := range keys {
		d.Set(k, m[k])
	}
	return d
}

// Get returns the value stored under key.
func (d *Details) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Has reports whether key is present, even with a nil value.
func (d *Details) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Set stores v under key. New keys are appended to the iteration order.
func (d *Details) Set(key string, v any) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// SetDefault stores v only when key is absent and reports whether it did.
func (d *Details) SetDefault(key string, v any) bool {
	if d.Has(key) {
		return false
	}
	d.Set(key, v)
	return true
}

// Defaults applies SetDefault for every entry of m, in lexical key order.
func (d *Details) Defaults(m map[string]any) {
	keys := maps.Keys(m)
	slices.Sort(keys)
	for _, k := range keys {
		d.SetDefault(k, m[k])
	}
}

// Delete removes key.
func (d *Details) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	if i := slices.Index(d.keys, key); i >= 0 {
		d.keys = slices.Delete(d.keys, i, i+1)
	}
}

// Keys returns the keys in insertion order.
func (d *Details) Keys() []string {
	return slices.Clone(d.keys)
}

// Len returns the number of keys.
func (d *Details) Len() int {
	return len(d.keys)
}

// String returns the value under key formatted as a string, or "" when absent.
func (d *Details) String(key string) string {
	v, ok := d.values[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case *Secret:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Bool interprets the value under key as a flag. Missing keys, nil, false,
// zero numbers and unparsable strings are false.
func (d *Details) Bool(key string) bool {
	v, ok := d.values[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		return err == nil && b
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return false
	}
}

// Range calls fn for every entry in insertion order until fn returns false.
func (d *Details) Range(fn func(key string, v any) bool) {
	for _, k := range d.keys {
		if !fn(k, d.values[k]) {
			return
		}
	}
}

// Clone returns a copy of the record. Nested maps are copied; Secret
// containers are shared so erasing one erases both.
func (d *Details) Clone() *Details {
	c := &Details{
		keys:   slices.Clone(d.keys),
		values: make(map[string]any, len(d.values)),
	}
	for k, v := range d.values {
		c.values[k] = copyValue(v)
	}
	return c
}

// Map returns a copy of the record as a plain map, secrets included as-is.
func (d *Details) Map() map[string]any {
	m := make(map[string]any, len(d.values))
	for k, v := range d.values {
		m[k] = copyValue(v)
	}
	return m
}

// Wire returns the payload handed to a gateway: control keys are dropped,
// secrets are unwrapped, erased secrets are omitted.
func (d *Details) Wire() map[string]any {
	m := make(map[string]any, len(d.values))
	for _, k := range d.keys {
		if IsControlKey(k) {
			continue
		}
		v := d.values[k]
		if s, ok := v.(*Secret); ok {
			pv, ok := s.Peek()
			if !ok {
				continue
			}
			v = pv
		}
		m[k] = copyValue(v)
	}
	return m
}

// MarshalJSON renders the record as a JSON object in key order. Secrets
// render as null.
func (d *Details) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("details: encode %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, vv := range t {
			c[k] = copyValue(vv)
		}
		return c
	case map[string]string:
		c := make(map[string]string, len(t))
		for k, vv := range t {
			c[k] = vv
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, vv := range t {
			c[i] = copyValue(vv)
		}
		return c
	default:
		return v
	}
}
