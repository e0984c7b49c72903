// Package httpauth plugs authx into net/http handlers.
package httpauth

import (
	"encoding/json"
	"net/http"

	"github.com/bionicotaku/lingo-utils-authx"
)

type requestView struct {
	r *http.Request
}

func (v requestView) Header(name string) string { return v.r.Header.Get(name) }

func (v requestView) Query(name string) string { return v.r.URL.Query().Get(name) }

// View adapts r to authx.RequestView.
func View(r *http.Request) authx.RequestView {
	return requestView{r: r}
}

// Middleware authenticates every request and binds the caller to its context.
// Failures are answered directly and the wrapped handler is not called.
func Middleware(a *authx.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := a.Authenticate(View(r))
			if !res.OK() {
				WriteError(w, res.Err)
				return
			}
			next.ServeHTTP(w, r.WithContext(authx.BindCaller(r.Context(), res.Caller)))
		})
	}
}

// RequirePermission rejects requests whose caller lacks permission.
// It must run behind Middleware.
func RequirePermission(checker authx.PermissionChecker, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := authx.CallerFromContext(r.Context())
			if !ok {
				WriteError(w, &authx.Error{Code: authx.ErrCodeMissingToken, Message: "No authenticated caller"})
				return
			}
			if err := authx.Authorize(r.Context(), checker, caller, permission); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type errorBody struct {
	Code    authx.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

// WriteError renders err as a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	status := authx.HTTPStatus(err)
	code := authx.CodeOf(err)
	if code == "" {
		code = authx.ErrCodeUnauthorized
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: authx.PublicMessage(err)})
}
