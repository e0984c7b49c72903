package authx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/impersonate"
)

// TokenFactory creates the underlying token source for a service token.
type TokenFactory func(ctx context.Context, cfg ServiceTokenConfig) (oauth2.TokenSource, error)

// ServiceTokenConfig describes the identity used to call the Auth Center when it
// sits behind Google identity-aware infrastructure instead of a static token.
type ServiceTokenConfig struct {
	// Audience is usually the Auth Center base URL.
	Audience       string
	ServiceAccount string
	IncludeEmail   bool
	Delegates      []string
	Factory        TokenFactory
}

// NewServiceTokenSource returns a cached token source suitable for
// PermissionConfig.TokenSource. Refreshes are detached from ctx cancellation
// so the source stays usable after the constructing request ends.
func NewServiceTokenSource(ctx context.Context, cfg ServiceTokenConfig) (oauth2.TokenSource, error) {
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("audience is required")
	}
	factory := cfg.Factory
	if factory == nil {
		factory = defaultFactory
	}
	cfg.Delegates = append([]string(nil), cfg.Delegates...)

	ts, err := factory(persistentContext(ctx), cfg)
	if err != nil {
		return nil, fmt.Errorf("create service token source: %w", err)
	}
	return &checkedTokenSource{src: oauth2.ReuseTokenSource(nil, ts)}, nil
}

func defaultFactory(ctx context.Context, cfg ServiceTokenConfig) (oauth2.TokenSource, error) {
	if cfg.ServiceAccount != "" {
		return impersonate.IDTokenSource(ctx, impersonate.IDTokenConfig{
			Audience:        cfg.Audience,
			TargetPrincipal: cfg.ServiceAccount,
			IncludeEmail:    cfg.IncludeEmail,
			Delegates:       cfg.Delegates,
		})
	}
	return idtoken.NewTokenSource(ctx, cfg.Audience)
}

// checkedTokenSource rejects empty tokens so they surface as transport errors
// instead of an unauthenticated request.
type checkedTokenSource struct {
	src oauth2.TokenSource
}

func (s *checkedTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, fmt.Errorf("fetch service token: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, errors.New("empty access token returned")
	}
	return tok, nil
}

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	if _, ok := ctx.(*detachedContext); ok {
		return ctx
	}
	return &detachedContext{parent: ctx}
}

type detachedContext struct {
	parent context.Context
}

func (d *detachedContext) Deadline() (time.Time, bool) { return time.Time{}, false }

func (d *detachedContext) Done() <-chan struct{} { return nil }

func (d *detachedContext) Err() error { return nil }

func (d *detachedContext) Value(key any) any {
	if d.parent == nil {
		return nil
	}
	return d.parent.Value(key)
}
