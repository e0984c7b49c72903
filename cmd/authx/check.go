package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bionicotaku/lingo-utils-authx"
)

var checkFlags struct {
	baseURL        string
	token          string
	timeout        time.Duration
	attempts       int
	delay          time.Duration
	identity       string
	jwt            string
	serviceAccount string
	googleIdentity bool
}

var checkCmd = &cobra.Command{
	Use:   "check <permission>",
	Short: "Ask the Auth Center whether an identity holds a permission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		permission := args[0]

		identity, err := resolveIdentity()
		if err != nil {
			return err
		}

		// Environment first, flags override.
		cfg, err := authx.PermissionConfigFromEnv()
		if err != nil {
			cfg = authx.PermissionConfig{
				BaseURL: os.Getenv("AUTH_CENTER_URL"),
				Token:   os.Getenv("AUTH_CENTER_TOKEN"),
			}
		}
		if checkFlags.baseURL != "" {
			cfg.BaseURL = checkFlags.baseURL
		}
		if checkFlags.token != "" {
			cfg.Token = checkFlags.token
		}
		if checkFlags.timeout > 0 {
			cfg.Timeout = checkFlags.timeout
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if checkFlags.googleIdentity || checkFlags.serviceAccount != "" {
			ts, err := authx.NewServiceTokenSource(ctx, authx.ServiceTokenConfig{
				Audience:       cfg.BaseURL,
				ServiceAccount: checkFlags.serviceAccount,
			})
			if err != nil {
				return err
			}
			cfg.TokenSource = ts
		}

		policy := authx.RetryPolicyFromEnv()
		if cmd.Flags().Changed("attempts") {
			policy.MaxAttempts = checkFlags.attempts
		}
		if cmd.Flags().Changed("delay") {
			policy.Delay = checkFlags.delay
		}

		client, err := authx.NewPermissionClient(cfg, authx.WithRetryPolicy(policy), authx.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("create permission client: %w", err)
		}

		start := time.Now()
		allowed, err := client.Check(ctx, permission, identity)
		if err != nil {
			return fmt.Errorf("%s: %w", authx.CodeOf(err), err)
		}
		logger.Info("permission checked",
			zap.String("permission", permission),
			zap.Stringer("identity", identity),
			zap.Bool("allowed", allowed),
			zap.Duration("elapsed", time.Since(start)),
		)

		fmt.Printf("identity     : %s\n", identity)
		fmt.Printf("permission   : %s\n", permission)
		fmt.Printf("allowed      : %v\n", allowed)
		if !allowed {
			return errors.New("permission not granted")
		}
		return nil
	},
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&checkFlags.baseURL, "url", "", "Auth Center base URL (env AUTH_CENTER_URL)")
	f.StringVar(&checkFlags.token, "token", "", "Outbound bearer token (env AUTH_CENTER_TOKEN)")
	f.DurationVar(&checkFlags.timeout, "timeout", 0, "Per-attempt timeout (env AUTH_CENTER_TIMEOUT)")
	f.IntVar(&checkFlags.attempts, "attempts", 3, "Maximum attempts (env AUTH_CENTER_RETRY_ATTEMPTS)")
	f.DurationVar(&checkFlags.delay, "delay", 100*time.Millisecond, "Delay between attempts (env AUTH_CENTER_RETRY_DELAY)")
	f.StringVar(&checkFlags.identity, "identity", "", "Caller identity UUID")
	f.StringVar(&checkFlags.jwt, "jwt", "", "Caller bearer token to take the identity from (env AUTHX_TOKEN)")
	f.StringVar(&checkFlags.serviceAccount, "service-account", "", "Impersonate this service account for a Google identity token")
	f.BoolVar(&checkFlags.googleIdentity, "google-identity", false, "Use an Application Default Credentials identity token instead of --token")
	rootCmd.AddCommand(checkCmd)
}

func resolveIdentity() (uuid.UUID, error) {
	if checkFlags.identity != "" {
		id, err := uuid.Parse(checkFlags.identity)
		if err != nil {
			return uuid.Nil, fmt.Errorf("identity: %w", err)
		}
		return id, nil
	}
	jwt := checkFlags.jwt
	if jwt == "" {
		jwt = os.Getenv("AUTHX_TOKEN")
	}
	if jwt == "" {
		return uuid.Nil, errors.New("--identity or --jwt is required")
	}
	return authx.NewParser(nil).Parse(jwt)
}
