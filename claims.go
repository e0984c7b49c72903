package authx

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	claimNotBefore = "nbf"
	claimIssuedAt  = "iat"
	claimExpiry    = "exp"
	claimPayload   = "payload"
)

// Claims is the decoded token payload. Numbers are kept as json.Number so
// identifiers embedded as large integers survive decoding untouched.
type Claims map[string]any

// Payload returns the nested domain payload object, if present.
func (c Claims) Payload() (map[string]any, bool) {
	raw, ok := c[claimPayload]
	if !ok {
		return nil, false
	}
	m, ok := raw.(map[string]any)
	return m, ok
}

// NotBefore returns the nbf claim in Unix seconds.
func (c Claims) NotBefore() (float64, bool, error) { return c.numeric(claimNotBefore) }

// IssuedAt returns the iat claim in Unix seconds.
func (c Claims) IssuedAt() (float64, bool, error) { return c.numeric(claimIssuedAt) }

// ExpiresAt returns the exp claim in Unix seconds.
func (c Claims) ExpiresAt() (float64, bool, error) { return c.numeric(claimExpiry) }

// numeric reads a time claim. A JSON null counts as absent.
func (c Claims) numeric(key string) (float64, bool, error) {
	raw, ok := c[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	var (
		v   float64
		err error
	)
	switch n := raw.(type) {
	case json.Number:
		v, err = n.Float64()
	case float64:
		v = n
	case int64:
		v = float64(n)
	case int:
		v = float64(n)
	default:
		return 0, true, fmt.Errorf("claim %q is not a number", key)
	}
	if err != nil {
		return 0, true, fmt.Errorf("claim %q: %w", key, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true, fmt.Errorf("claim %q is not finite", key)
	}
	return v, true, nil
}
