package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aperture-cli/aperture/internal/model"
)

// KeyInput is everything that identifies a call for caching.
type KeyInput struct {
	API            string
	// BaseURL is the resolved server the call is sent to.
	BaseURL        string
	Call           *model.OperationCall
	IdempotencyKey string
}

// Key returns the hex SHA-256 of the canonical JSON form of in.
// The same call always yields the same key regardless of map ordering.
func Key(in KeyInput) (string, error) {
	doc := map[string]any{
		"api":             in.API,
		"base_url":        in.BaseURL,
		"idempotency_key": in.IdempotencyKey,
	}
	if c := in.Call; c != nil {
		doc["operation_id"] = c.OperationID
		doc["path"] = stringMap(c.PathParams)
		doc["query"] = stringMap(c.QueryParams)
		doc["header"] = stringMap(c.HeaderParams)
		doc["cookie"] = stringMap(c.CookieParams)
		if c.Body != nil {
			doc["body"] = *c.Body
		}
		headers := make([]any, 0, len(c.CustomHeaders))
		for _, h := range c.CustomHeaders {
			headers = append(headers, []any{h.Name, h.Value})
		}
		doc["custom_headers"] = headers
	}

	canonical, err := canonicalize(doc)
	if err != nil {
		return "", fmt.Errorf("canonicalize cache key: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// canonicalize produces a deterministic JSON representation of v.
// Maps are sorted by key.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := []byte("{")
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := canonicalize(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		return append(out, '}'), nil
	case []any:
		out := []byte("[")
		for i, item := range val {
			if i > 0 {
				out = append(out, ',')
			}
			b, err := canonicalize(item)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return append(out, ']'), nil
	default:
		return json.Marshal(v)
	}
}
