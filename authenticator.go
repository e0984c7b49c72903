package authx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// RequestView is the slice of an incoming request authx needs to find a token.
// Each host integration implements it once.
type RequestView interface {
	Header(name string) string
	Query(name string) string
}

// BearerToken returns the token from "Authorization: Bearer ...", falling back
// to the "token" query parameter.
func BearerToken(r RequestView) (string, bool) {
	if header := r.Header("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		if tok := strings.TrimSpace(header[len(bearerPrefix):]); tok != "" {
			return tok, true
		}
	}
	if tok := r.Query("token"); tok != "" {
		return tok, true
	}
	return "", false
}

// AuthResult is the outcome of authenticating a request.
type AuthResult struct {
	Caller Caller
	Err    error
}

// OK reports whether authentication succeeded.
func (r AuthResult) OK() bool {
	return r.Err == nil
}

// Status returns the HTTP status an adapter should answer with on failure.
func (r AuthResult) Status() int {
	if r.Err == nil {
		return http.StatusOK
	}
	return HTTPStatus(r.Err)
}

// Authenticator turns requests into callers using a Parser.
type Authenticator struct {
	parser    *Parser
	devBypass *Caller
}

// AuthenticatorOption customizes an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithDevBypass makes every request authenticate as caller without a token.
// Intended for local development only.
func WithDevBypass(caller Caller) AuthenticatorOption {
	return func(a *Authenticator) {
		c := caller
		c.DevBypass = true
		a.devBypass = &c
	}
}

// NewAuthenticator builds an Authenticator; a nil parser uses the defaults.
func NewAuthenticator(parser *Parser, opts ...AuthenticatorOption) *Authenticator {
	if parser == nil {
		parser = NewParser(nil)
	}
	a := &Authenticator{parser: parser}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate extracts and parses the bearer token carried by r.
func (a *Authenticator) Authenticate(r RequestView) AuthResult {
	if a.devBypass != nil {
		return AuthResult{Caller: *a.devBypass}
	}
	token, ok := BearerToken(r)
	if !ok {
		return AuthResult{Err: newError(ErrCodeMissingToken, nil)}
	}
	caller, err := a.parser.ParseCaller(token)
	if err != nil {
		return AuthResult{Err: err}
	}
	return AuthResult{Caller: caller}
}

// Authorize asks checker whether caller holds permission; a negative answer
// becomes ErrCodePermissionDenied.
func Authorize(ctx context.Context, checker PermissionChecker, caller Caller, permission string) error {
	if checker == nil {
		return errors.New("permission checker is required")
	}
	allowed, err := checker.Check(ctx, permission, caller.Identity)
	if err != nil {
		return err
	}
	if !allowed {
		return newError(ErrCodePermissionDenied, fmt.Errorf("missing permission %q", permission))
	}
	return nil
}

// HTTPStatus maps an authx error to the status an adapter should respond with.
// Auth Center outages map to 503, denials to 403, everything else to 401.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsUpstreamFailure(err):
		return http.StatusServiceUnavailable
	case HasCode(err, ErrCodePermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// PublicMessage returns a message safe to show to clients.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return http.StatusText(HTTPStatus(err))
}
