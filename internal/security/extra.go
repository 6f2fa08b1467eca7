package security

import (
	"encoding/json"
	"time"

	"session-authority/internal/claims"
)

func unixUTC(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// normalizeExtra turns json.Number values produced by the parser back into
// int64 or float64 so extras compare naturally after a round trip.
func normalizeExtra(c *claims.Claims) {
	for k, v := range c.Extra {
		c.Extra[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, inner := range t {
			t[k] = normalizeValue(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = normalizeValue(inner)
		}
		return t
	}
	return v
}
