package fiberauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/bionicotaku/lingo-utils-authx"
)

var identity = uuid.MustParse("3fa85f64-5717-4562-b3fc-2c963f66afa6")

type stubChecker struct {
	allowed bool
}

func (s stubChecker) Check(context.Context, string, uuid.UUID) (bool, error) {
	return s.allowed, nil
}

func newApp(checker authx.PermissionChecker) *fiber.App {
	app := fiber.New()
	app.Use(New(authx.NewAuthenticator(nil)))
	app.Get("/orders", RequirePermission(checker, "orders.read"), func(c *fiber.Ctx) error {
		caller, ok := CallerFromContext(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		id, ok := authx.IdentityFromContext(c.UserContext())
		if !ok || id != caller.Identity {
			return fiber.ErrInternalServerError
		}
		return c.SendString(caller.Identity.String())
	})
	return app
}

func mint(t *testing.T) string {
	t.Helper()
	token, err := authx.MintDevToken(authx.DevTokenParams{Identity: identity, TTL: time.Hour})
	if err != nil {
		t.Fatalf("MintDevToken: %v", err)
	}
	return token
}

func TestMiddleware_AllowsValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mint(t))

	resp, err := newApp(stubChecker{allowed: true}).Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if string(body) != identity.String() {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestMiddleware_QueryToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders?token="+mint(t), nil)
	resp, err := newApp(stubChecker{allowed: true}).Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMiddleware_Failures(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		checker authx.PermissionChecker
		status  int
		code    authx.ErrorCode
	}{
		{name: "no token", checker: stubChecker{allowed: true}, status: http.StatusUnauthorized, code: authx.ErrCodeMissingToken},
		{name: "bad payload", header: "Bearer a.e30.c", checker: stubChecker{allowed: true}, status: http.StatusUnauthorized, code: authx.ErrCodeInvalidPayload},
		{name: "denied", header: "Bearer " + mint(t), checker: stubChecker{}, status: http.StatusForbidden, code: authx.ErrCodePermissionDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := newApp(tc.checker).Test(req, -1)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			var body struct {
				Code authx.ErrorCode `json:"code"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, body.Code)
			}
		})
	}
}
