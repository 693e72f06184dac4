// Package fielddata models admin-configurable dynamic field values.
//
// Registrations and visitors carry an open mapping from field key to a small
// variant value (string, number, boolean, or a nested mapping). The shapes
// deliberately match what encoding/json produces so maps survive a
// marshal/unmarshal round trip unchanged, which the reconciler's idempotence
// depends on.
package fielddata

import (
	"fmt"
	"strconv"
)

// Map is an open mapping from field key to a variant value.
type Map map[string]any

// Sanitize validates that every value in the map is one of the supported
// variant kinds. Integer-valued floats are not normalized; values keep the
// exact kind JSON decoding gave them.
func (m Map) Sanitize() error {
	for k, v := range m {
		if err := checkValue(v); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	return nil
}

func checkValue(v any) error {
	switch val := v.(type) {
	case nil, string, bool, float64, int, int64:
		return nil
	case map[string]any:
		return Map(val).Sanitize()
	default:
		return fmt.Errorf("unsupported value kind %T", v)
	}
}

// Clone returns a deep copy. Mutating the copy never aliases the original,
// which keeps in-memory stores honest about snapshot semantics.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = map[string]any(Map(nested).Clone())
			continue
		}
		out[k] = v
	}
	return out
}

// AsString renders a scalar value as a string for copying into a visitor
// field. Nested mappings and nil report ok=false; they are never copied.
func AsString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return "", false
	}
}
