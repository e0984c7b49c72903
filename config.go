package authx

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"golang.org/x/oauth2"
)

const (
	defaultLeeway        = 30 * time.Second
	defaultTimeout       = 10 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 100 * time.Millisecond
	defaultCacheTTL      = time.Minute
)

// PermissionConfig describes how to reach the Auth Center.
type PermissionConfig struct {
	// Token is sent as "Authorization: Bearer <Token>" on every permission check.
	Token   string        `env:"AUTH_CENTER_TOKEN"`
	BaseURL string        `env:"AUTH_CENTER_URL,required"`
	Timeout time.Duration `env:"AUTH_CENTER_TIMEOUT,default=10s"`

	// TokenSource, when set, takes precedence over Token.
	TokenSource oauth2.TokenSource
}

// RetryPolicy bounds how often a permission check is attempted.
type RetryPolicy struct {
	MaxAttempts int           `env:"AUTH_CENTER_RETRY_ATTEMPTS,default=3"`
	Delay       time.Duration `env:"AUTH_CENTER_RETRY_DELAY,default=100ms"`
}

// DefaultRetryPolicy returns three attempts spaced 100ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultRetryAttempts, Delay: defaultRetryDelay}
}

// PermissionConfigFromEnv loads the Auth Center configuration from the environment.
func PermissionConfigFromEnv() (PermissionConfig, error) {
	var cfg PermissionConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return PermissionConfig{}, fmt.Errorf("decode permission config: %w", err)
	}
	return cfg, nil
}

// RetryPolicyFromEnv loads the retry policy from the environment, falling back to defaults.
func RetryPolicyFromEnv() RetryPolicy {
	var p RetryPolicy
	if err := envdecode.Decode(&p); err != nil {
		return DefaultRetryPolicy()
	}
	p.normalize()
	return p
}

// normalize sets default values for optional fields.
func (c *PermissionConfig) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Token = strings.TrimSpace(c.Token)
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// validate ensures the configuration is usable.
func (c PermissionConfig) validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("auth center base url is required")
	case c.Token == "" && c.TokenSource == nil:
		return errors.New("auth center token or token source is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("auth center base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("auth center base url %q must be absolute", c.BaseURL)
	}
	return nil
}

func (p *RetryPolicy) normalize() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultRetryAttempts
	}
	if p.Delay <= 0 {
		p.Delay = defaultRetryDelay
	}
}
