package evolution

import (
	"encoding/json"
	"strings"
)

// RedactedMarker replaces sensitive values in logged payloads
const RedactedMarker = "[REDACTED]"

// Redact returns a copy of v with every field named in fields replaced by
// RedactedMarker at any depth. Names match case-insensitively. Structs are
// redacted through their JSON form.
func Redact(v any, fields []string) any {
	if v == nil || len(fields) == 0 {
		return v
	}
	sensitive := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		sensitive[strings.ToLower(f)] = struct{}{}
	}
	return redactValue(toGeneric(v), sensitive)
}

func redactValue(v any, sensitive map[string]struct{}) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			if _, ok := sensitive[strings.ToLower(k)]; ok {
				out[k] = RedactedMarker
				continue
			}
			out[k] = redactValue(item, sensitive)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactValue(item, sensitive)
		}
		return out
	default:
		return v
	}
}

// toGeneric converts typed values to maps and slices
func toGeneric(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, int, int64, map[string]any, []any:
		return t
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return m
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
