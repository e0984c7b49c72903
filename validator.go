package authx

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

// Validator decodes compact tokens and enforces their time claims.
// It never checks signatures: trust in the issuer is established upstream.
// A Validator is immutable and safe for concurrent use.
type Validator struct {
	leeway time.Duration
	now    func() time.Time
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithLeeway sets the clock skew tolerance applied to nbf, iat and exp.
// Negative values are treated as zero.
func WithLeeway(d time.Duration) ValidatorOption {
	return func(v *Validator) {
		if d < 0 {
			d = 0
		}
		v.leeway = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewValidator builds a validator with a 30 second leeway and the wall clock.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{leeway: defaultLeeway, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var defaultValidator = NewValidator()

// Decode validates token with the default validator.
func Decode(token string) (Claims, error) {
	return defaultValidator.Validate(token)
}

// Leeway returns the configured clock skew tolerance.
func (v *Validator) Leeway() time.Duration {
	return v.leeway
}

// Validate decodes the token payload and checks it against the current time.
func (v *Validator) Validate(token string) (Claims, error) {
	return v.ValidateAt(token, v.now())
}

// ValidateAt decodes the token payload and checks it against now.
func (v *Validator) ValidateAt(token string, now time.Time) (Claims, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("wrong number of segments: %d", len(segments)))
	}

	raw, err := decodeSegment(segments[1])
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, err)
	}
	claims, err := decodeClaims(raw)
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, err)
	}

	if err := v.checkTimes(claims, now); err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *Validator) checkTimes(claims Claims, now time.Time) error {
	ts := float64(now.Unix())
	leeway := v.leeway.Seconds()

	nbf, hasNBF, err := claims.NotBefore()
	if err != nil {
		return newError(ErrCodeMalformedToken, err)
	}
	iat, hasIAT, err := claims.IssuedAt()
	if err != nil {
		return newError(ErrCodeMalformedToken, err)
	}
	exp, hasEXP, err := claims.ExpiresAt()
	if err != nil {
		return newError(ErrCodeMalformedToken, err)
	}

	// iat only stands in for nbf when nbf is absent.
	switch {
	case hasNBF && math.Floor(nbf) > ts+leeway:
		return newError(ErrCodeNotYetValid, fmt.Errorf("cannot handle token with nbf prior to %s", formatUnix(nbf)))
	case !hasNBF && hasIAT && math.Floor(iat) > ts+leeway:
		return newError(ErrCodeNotYetValid, fmt.Errorf("cannot handle token with iat prior to %s because current time is %s",
			formatUnix(iat), formatUnix(ts+leeway)))
	}

	if hasEXP && ts-leeway >= exp {
		return newError(ErrCodeExpired, fmt.Errorf("expired at %s", formatUnix(exp)))
	}
	return nil
}

// decodeSegment converts a base64url segment to standard base64 and decodes it.
func decodeSegment(segment string) ([]byte, error) {
	if rem := len(segment) % 4; rem != 0 {
		segment += strings.Repeat("=", 4-rem)
	}
	segment = strings.NewReplacer("-", "+", "_", "/").Replace(segment)
	out, err := base64.StdEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("decode payload segment: %w", err)
	}
	return out, nil
}

func decodeClaims(raw []byte) (Claims, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode payload json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after payload json")
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, errors.New("payload must be a JSON object")
	}
	return Claims(obj), nil
}

func formatUnix(sec float64) string {
	return time.Unix(int64(sec), 0).UTC().Format(time.RFC3339)
}
