// Package app - jsonutil.go provides JSON normalization and decoding helpers.
package app

import (
	"bytes"
	"encoding/json"
)

// NormalizeJSON converts a Go value to a JSON-normalized form (map[string]any, []any, etc).
// Basic JSON types are returned unchanged; anything else is round-tripped
// through encoding/json.
func NormalizeJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch v.(type) {
	case map[string]any, []any, string, float64, bool:
		return v, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeBody parses a response body as JSON when it is JSON, and returns
// it as a string otherwise. An empty body is nil.
func DecodeBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if MaybeJSON(trimmed) {
		var parsed any
		if json.Unmarshal(trimmed, &parsed) == nil {
			return parsed
		}
	}
	return string(body)
}

// MaybeJSON reports whether b starts like a JSON document.
func MaybeJSON(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	switch b[0] {
	case '{', '[', '"':
		return true
	}
	return bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte("true")) || bytes.Equal(b, []byte("false")) ||
		(b[0] >= '0' && b[0] <= '9') || b[0] == '-'
}
