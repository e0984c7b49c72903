package authx

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Unix(1_700_000_000, 0)

func fixedValidator() *Validator {
	return NewValidator(WithClock(func() time.Time { return fixedNow }))
}

func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	return "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString(payload) + ".c2lnbmF0dXJl"
}

func rawToken(payload string) string {
	return "header." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".sig"
}

func expectCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if e.Code != code {
		t.Fatalf("expected %s, got %s (%v)", code, e.Code, err)
	}
}

func TestValidator_SegmentCount(t *testing.T) {
	v := fixedValidator()
	body := base64.RawURLEncoding.EncodeToString([]byte(`{}`))
	for _, token := range []string{
		"",
		body,
		"a." + body,
		"a." + body + ".c.d",
		"a." + body + "..",
		"....",
	} {
		_, err := v.Validate(token)
		expectCode(t, err, ErrCodeMalformedToken)
	}

	if _, err := v.Validate("a." + body + "."); err != nil {
		t.Fatalf("empty signature segment should still decode: %v", err)
	}
}

func TestValidator_MalformedPayload(t *testing.T) {
	v := fixedValidator()
	cases := map[string]string{
		"not base64":      "a.!!!!.c",
		"not json":        rawToken("not json"),
		"array":           rawToken(`[1,2,3]`),
		"string":          rawToken(`"claims"`),
		"number":          rawToken(`42`),
		"null":            rawToken(`null`),
		"trailing data":   rawToken(`{"a":1} {"b":2}`),
		"string nbf":      rawToken(`{"nbf":"soon"}`),
		"object exp":      rawToken(`{"exp":{}}`),
		"truncated value": rawToken(`{"a":`),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(token)
			expectCode(t, err, ErrCodeMalformedToken)
		})
	}
}

func TestValidator_URLSafeAlphabet(t *testing.T) {
	// Encodes to "eyJrIjoic3ViamVjdHM_Pn5-fiJ9": both url-safe characters, no padding.
	token := rawToken(`{"k":"subjects?>~~~"}`)
	if segment := strings.Split(token, ".")[1]; !strings.Contains(segment, "-") || !strings.Contains(segment, "_") {
		t.Fatalf("fixture lost its url-safe characters: %s", segment)
	}
	got, err := fixedValidator().Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got["k"] != "subjects?>~~~" {
		t.Fatalf("unexpected claims: %v", got)
	}

	// Padded form is accepted as well.
	if _, err := fixedValidator().Validate("h.eyJrIjoiw7_Dv8O_In0=.s"); err != nil {
		t.Fatalf("Validate padded: %v", err)
	}
}

func TestValidator_ExpiryBoundary(t *testing.T) {
	v := fixedValidator()
	now := fixedNow.Unix()
	leeway := int64(v.Leeway() / time.Second)

	_, err := v.Validate(makeToken(t, map[string]any{"exp": now - leeway - 1}))
	expectCode(t, err, ErrCodeExpired)

	_, err = v.Validate(makeToken(t, map[string]any{"exp": now - leeway}))
	expectCode(t, err, ErrCodeExpired)

	if _, err := v.Validate(makeToken(t, map[string]any{"exp": now - leeway + 1})); err != nil {
		t.Fatalf("expected token inside leeway to pass: %v", err)
	}
}

func TestValidator_NotBefore(t *testing.T) {
	v := fixedValidator()
	now := fixedNow.Unix()
	leeway := int64(v.Leeway() / time.Second)

	t.Run("nbf in the future", func(t *testing.T) {
		_, err := v.Validate(makeToken(t, map[string]any{"nbf": now + leeway + 1}))
		expectCode(t, err, ErrCodeNotYetValid)
	})

	t.Run("nbf at the edge", func(t *testing.T) {
		if _, err := v.Validate(makeToken(t, map[string]any{"nbf": now + leeway})); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("fractional nbf is floored", func(t *testing.T) {
		token := rawToken(fmt.Sprintf(`{"nbf": %d.9}`, now+leeway))
		if _, err := v.Validate(token); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("iat used when nbf absent", func(t *testing.T) {
		_, err := v.Validate(makeToken(t, map[string]any{"iat": now + leeway + 1}))
		expectCode(t, err, ErrCodeNotYetValid)
	})

	t.Run("nbf takes priority over iat", func(t *testing.T) {
		token := makeToken(t, map[string]any{"nbf": now, "iat": now + 10*leeway})
		if _, err := v.Validate(token); err != nil {
			t.Fatalf("iat must be ignored when nbf is present: %v", err)
		}
	})

	t.Run("null nbf counts as absent", func(t *testing.T) {
		_, err := v.Validate(rawToken(fmt.Sprintf(`{"nbf": null, "iat": %d}`, now+leeway+1)))
		expectCode(t, err, ErrCodeNotYetValid)
	})

	t.Run("no time claims", func(t *testing.T) {
		if _, err := v.Validate(makeToken(t, map[string]any{"anything": true})); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})
}

func TestValidator_ExpiredWinsAfterNotBefore(t *testing.T) {
	v := fixedValidator()
	now := fixedNow.Unix()
	_, err := v.Validate(makeToken(t, map[string]any{"nbf": now - 7200, "iat": now - 7200, "exp": now - 3600}))
	expectCode(t, err, ErrCodeExpired)
}

func TestValidator_LeewayAndClockOptions(t *testing.T) {
	now := fixedNow.Unix()
	token := makeToken(t, map[string]any{"exp": now - 5})

	if _, err := fixedValidator().Validate(token); err != nil {
		t.Fatalf("default leeway should absorb 5s skew: %v", err)
	}

	strict := NewValidator(WithLeeway(0), WithClock(func() time.Time { return fixedNow }))
	_, err := strict.Validate(token)
	expectCode(t, err, ErrCodeExpired)

	if _, err := strict.ValidateAt(token, fixedNow.Add(-time.Minute)); err != nil {
		t.Fatalf("ValidateAt earlier time: %v", err)
	}

	if got := NewValidator(WithLeeway(-time.Second)).Leeway(); got != 0 {
		t.Fatalf("negative leeway should clamp to zero, got %v", got)
	}
}

func TestValidator_RoundTrip(t *testing.T) {
	now := fixedNow.Unix()
	original := []byte(fmt.Sprintf(`{
		"iss": "auth-center",
		"aud": ["a", "b"],
		"iat": %d,
		"exp": %d,
		"big": 123456789012345678901234567890,
		"ratio": 0.25,
		"flag": false,
		"none": null,
		"payload": {"zup_subdivision_id": 7, "user_id": "u1", "zup_user_id": "3fa85f64-5717-4562-b3fc-2c963f66afa6"}
	}`, now-10, now+3600))

	token := "xxx." + base64.RawURLEncoding.EncodeToString(original) + ".yyy"
	got, err := fixedValidator().Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(original))
	dec.UseNumber()
	var want map[string]any
	if err := dec.Decode(&want); err != nil {
		t.Fatalf("decode expected: %v", err)
	}
	if !reflect.DeepEqual(map[string]any(got), want) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, want)
	}
	if n, ok := got["big"].(json.Number); !ok || n.String() != "123456789012345678901234567890" {
		t.Fatalf("large integer not preserved: %#v", got["big"])
	}
}

func TestDecode_DefaultValidator(t *testing.T) {
	token := makeToken(t, map[string]any{"exp": time.Now().Add(time.Hour).Unix()})
	if _, err := Decode(token); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	_, err := Decode(makeToken(t, map[string]any{"exp": time.Now().Add(-time.Hour).Unix()}))
	expectCode(t, err, ErrCodeExpired)
}
