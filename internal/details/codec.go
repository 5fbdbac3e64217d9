package details

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts the record into a protobuf Struct holding the key order
// under "keys" and the values under "values". Secrets become null, numbers
// become doubles.
func (d *Details) ToStruct() (*structpb.Struct, error) {
	keys := make([]any, 0, len(d.keys))
	values := make(map[string]any, len(d.keys))
	for _, k := range d.keys {
		keys = append(keys, k)
		values[k] = plain(d.values[k])
	}
	s, err := structpb.NewStruct(map[string]any{"keys": keys, "values": values})
	if err != nil {
		return nil, fmt.Errorf("details: build struct: %w", err)
	}
	return s, nil
}

// FromStruct rebuilds a record produced by ToStruct.
func FromStruct(s *structpb.Struct) (*Details, error) {
	if s == nil {
		return nil, fmt.Errorf("details: nil struct")
	}
	m := s.AsMap()
	rawKeys, _ := m["keys"].([]any)
	values, _ := m["values"].(map[string]any)
	d := New()
	for _, rk := range rawKeys {
		k, ok := rk.(string)
		if !ok {
			return nil, fmt.Errorf("details: non-string key %v", rk)
		}
		d.Set(k, values[k])
	}
	return d, nil
}

// Encode serializes the record as a protojson snapshot for storage.
func (d *Details) Encode() ([]byte, error) {
	s, err := d.ToStruct()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

// Decode parses a snapshot written by Encode.
func Decode(b []byte) (*Details, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("details: decode snapshot: %w", err)
	}
	return FromStruct(&s)
}

func plain(v any) any {
	switch t := v.(type) {
	case nil, bool, string, int, int32, int64, uint, uint32, uint64, float32, float64:
		return t
	case *Secret:
		return nil
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = plain(vv)
		}
		return m
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = vv
		}
		return m
	case []any:
		l := make([]any, len(t))
		for i, vv := range t {
			l[i] = plain(vv)
		}
		return l
	case []string:
		l := make([]any, len(t))
		for i, vv := range t {
			l[i] = vv
		}
		return l
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
