package authx

import (
	"context"

	"github.com/google/uuid"
)

type callerKey struct{}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	Identity  uuid.UUID
	Claims    Claims
	DevBypass bool
}

// BindCaller stores the caller inside the context for downstream consumers.
func BindCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext retrieves a caller previously stored in the context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	value := ctx.Value(callerKey{})
	if value == nil {
		return Caller{}, false
	}
	caller, ok := value.(Caller)
	return caller, ok
}

// IdentityFromContext is a shortcut for CallerFromContext(ctx).Identity.
func IdentityFromContext(ctx context.Context) (uuid.UUID, bool) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return caller.Identity, true
}
