package authx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	maxResponseBytes   = 1 << 20
	codeObjectNotFound = "object_not_found"
)

// PermissionChecker answers whether an identity holds a named permission.
type PermissionChecker interface {
	Check(ctx context.Context, permission string, identity uuid.UUID) (bool, error)
}

// PermissionCache stores Auth Center answers between checks.
type PermissionCache interface {
	Get(ctx context.Context, key string) (allowed bool, found bool, err error)
	Set(ctx context.Context, key string, allowed bool, ttl time.Duration) error
}

// PermissionClient queries the Auth Center with bounded, sequential retries.
// It holds no mutable state and may be shared across goroutines.
type PermissionClient struct {
	cfg      PermissionConfig
	retry    RetryPolicy
	http     *http.Client
	logger   *zap.Logger
	cache    PermissionCache
	cacheTTL time.Duration
}

var _ PermissionChecker = (*PermissionClient)(nil)

type permissionOptions struct {
	retry    RetryPolicy
	base     http.RoundTripper
	logger   *zap.Logger
	cache    PermissionCache
	cacheTTL time.Duration
}

// PermissionOption customizes a PermissionClient.
type PermissionOption func(*permissionOptions)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) PermissionOption {
	return func(o *permissionOptions) {
		o.retry = p
	}
}

// WithHTTPClient supplies the transport used for outbound requests.
// Its Timeout is ignored in favour of PermissionConfig.Timeout.
func WithHTTPClient(c *http.Client) PermissionOption {
	return func(o *permissionOptions) {
		if c != nil && c.Transport != nil {
			o.base = c.Transport
		}
	}
}

// WithLogger sets the logger used to report attempts and retries.
func WithLogger(l *zap.Logger) PermissionOption {
	return func(o *permissionOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCache enables caching of Auth Center answers for ttl.
func WithCache(c PermissionCache, ttl time.Duration) PermissionOption {
	return func(o *permissionOptions) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

// NewPermissionClient builds a client for the given Auth Center configuration.
func NewPermissionClient(cfg PermissionConfig, opts ...PermissionOption) (*PermissionClient, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := permissionOptions{
		retry:  DefaultRetryPolicy(),
		base:   http.DefaultTransport,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.retry.normalize()
	if o.cacheTTL <= 0 {
		o.cacheTTL = defaultCacheTTL
	}

	source := cfg.TokenSource
	if source == nil {
		source = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	}

	return &PermissionClient{
		cfg:   cfg,
		retry: o.retry,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.ReuseTokenSource(nil, source),
				Base:   o.base,
			},
		},
		logger:   o.logger.With(zap.String("component", "authx.permission")),
		cache:    o.cache,
		cacheTTL: o.cacheTTL,
	}, nil
}

// RetryPolicy returns the effective retry policy.
func (c *PermissionClient) RetryPolicy() RetryPolicy {
	return c.retry
}

// Check reports whether identity holds permission.
//
// Every failure except ErrCodeUnauthorized is retried up to RetryPolicy.MaxAttempts
// times with a fixed delay; once attempts run out the last failure is returned.
func (c *PermissionClient) Check(ctx context.Context, permission string, identity uuid.UUID) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := c.logger.With(zap.String("permission", permission), zap.Stringer("identity", identity))

	key := cacheKey(permission, identity)
	if c.cache != nil {
		allowed, found, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("permission cache read failed", zap.Error(err))
		case found:
			log.Debug("permission cache hit", zap.Bool("allowed", allowed))
			return allowed, nil
		}
	}

	endpoint := c.endpoint(permission, identity)
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		log.Debug("checking permission", zap.Int("attempt", attempt))
		allowed, err := c.attempt(ctx, endpoint)
		if err == nil {
			c.store(ctx, log, key, allowed)
			return allowed, nil
		}
		lastErr = err
		if HasCode(err, ErrCodeUnauthorized) {
			log.Error("auth center rejected client credentials")
			return false, err
		}
		if attempt == c.retry.MaxAttempts {
			break
		}
		log.Warn("permission check failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", c.retry.Delay),
			zap.Error(err),
		)
		if err := sleepContext(ctx, c.retry.Delay); err != nil {
			return false, newError(ErrCodeCommunication, err)
		}
	}

	log.Error("permission check failed", zap.Int("attempts", c.retry.MaxAttempts), zap.Error(lastErr))
	return false, lastErr
}

func (c *PermissionClient) attempt(ctx context.Context, endpoint string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, newError(ErrCodeCommunication, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, newError(ErrCodeCommunication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return false, newError(ErrCodeUnauthorized, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, newError(ErrCodeCommunication, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		// The Auth Center answers with object_not_found when the identity is unknown to it.
		if responseCode(body) == codeObjectNotFound {
			return false, nil
		}
		return false, newStatusError(resp.StatusCode)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, newError(ErrCodeInvalidResponse, err)
	}
	if payload == nil {
		return false, newError(ErrCodeInvalidResponse, fmt.Errorf("response is not a JSON object"))
	}
	allowed, ok := payload["has_permission"].(bool)
	if !ok {
		return false, newError(ErrCodeInvalidResponse, fmt.Errorf("has_permission is missing or not a boolean"))
	}
	return allowed, nil
}

func (c *PermissionClient) store(ctx context.Context, log *zap.Logger, key string, allowed bool) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, allowed, c.cacheTTL); err != nil {
		log.Warn("permission cache write failed", zap.Error(err))
	}
}

func (c *PermissionClient) endpoint(permission string, identity uuid.UUID) string {
	return fmt.Sprintf("%s/user/%s/permission/%s", c.cfg.BaseURL, identity.String(), url.PathEscape(permission))
}

// responseCode extracts the "code" field of an error body; unparsable bodies yield "".
func responseCode(body []byte) string {
	var envelope struct {
		Code any `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	code, _ := envelope.Code.(string)
	return code
}

func cacheKey(permission string, identity uuid.UUID) string {
	return identity.String() + ":" + permission
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
