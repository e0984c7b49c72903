// Package fiberauth plugs authx into fiber applications.
package fiberauth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bionicotaku/lingo-utils-authx"
)

const callerKey = "authx_caller"

type requestView struct {
	c *fiber.Ctx
}

func (v requestView) Header(name string) string { return v.c.Get(name) }

func (v requestView) Query(name string) string { return v.c.Query(name) }

// New returns a handler that authenticates requests and stores the caller in
// both c.Locals and the user context.
func New(a *authx.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res := a.Authenticate(requestView{c: c})
		if !res.OK() {
			return writeError(c, res.Err)
		}
		c.Locals(callerKey, res.Caller)
		c.SetUserContext(authx.BindCaller(c.UserContext(), res.Caller))
		return c.Next()
	}
}

// RequirePermission rejects callers lacking permission. It must run after New.
func RequirePermission(checker authx.PermissionChecker, permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := CallerFromContext(c)
		if !ok {
			return writeError(c, &authx.Error{Code: authx.ErrCodeMissingToken, Message: "No authenticated caller"})
		}
		if err := authx.Authorize(c.UserContext(), checker, caller, permission); err != nil {
			return writeError(c, err)
		}
		return c.Next()
	}
}

// CallerFromContext retrieves the caller stored by New.
func CallerFromContext(c *fiber.Ctx) (authx.Caller, bool) {
	caller, ok := c.Locals(callerKey).(authx.Caller)
	return caller, ok
}

func writeError(c *fiber.Ctx, err error) error {
	status := authx.HTTPStatus(err)
	code := authx.CodeOf(err)
	if code == "" {
		code = authx.ErrCodeUnauthorized
	}
	if status == http.StatusUnauthorized {
		c.Set(fiber.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
	}
	return c.Status(status).JSON(fiber.Map{
		"code":    code,
		"message": authx.PublicMessage(err),
	})
}
