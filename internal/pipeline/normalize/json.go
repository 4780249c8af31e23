package normalize

import (
	"encoding/json"
	"strings"
)

// ParseMaybeJSON returns structured values unchanged and parses strings and
// byte slices as JSON, returning fallback when that fails. It never panics.
func ParseMaybeJSON(raw interface{}, fallback interface{}) interface{} {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return fallback
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		return raw
	}

	if strings.TrimSpace(string(data)) == "" {
		return fallback
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fallback
	}
	if out == nil {
		return fallback
	}
	return out
}

// AsMap reads raw as an object, decoding JSON strings. ok is false when raw
// is not an object.
func AsMap(raw interface{}) (map[string]interface{}, bool) {
	m, ok := ParseMaybeJSON(raw, nil).(map[string]interface{})
	return m, ok
}

// AsSlice reads raw as an array, decoding JSON strings. Non-arrays yield an
// empty slice.
func AsSlice(raw interface{}) []interface{} {
	if s, ok := ParseMaybeJSON(raw, []interface{}{}).([]interface{}); ok {
		return s
	}
	return []interface{}{}
}
