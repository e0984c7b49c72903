package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-authx"
)

var inspectFlags struct {
	leeway time.Duration
	at     int64
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [token]",
	Short: "Decode a bearer token, check its time claims and print the caller identity",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := os.Getenv("AUTHX_TOKEN")
		if len(args) == 1 {
			token = args[0]
		}
		if token == "" {
			return errors.New("token argument or AUTHX_TOKEN is required")
		}

		opts := []authx.ValidatorOption{authx.WithLeeway(inspectFlags.leeway)}
		if inspectFlags.at > 0 {
			at := time.Unix(inspectFlags.at, 0)
			opts = append(opts, authx.WithClock(func() time.Time { return at }))
		}

		caller, err := authx.NewParser(authx.NewValidator(opts...)).ParseCaller(token)
		if err != nil {
			return fmt.Errorf("%s: %w", authx.CodeOf(err), err)
		}
		printCaller(caller)
		return nil
	},
}

func init() {
	inspectCmd.Flags().DurationVar(&inspectFlags.leeway, "leeway", 30*time.Second, "Clock skew tolerance")
	inspectCmd.Flags().Int64Var(&inspectFlags.at, "at", 0, "Evaluate time claims at this Unix timestamp instead of now")
	rootCmd.AddCommand(inspectCmd)
}

func printCaller(caller authx.Caller) {
	fmt.Println("== Token Accepted ==")
	fmt.Printf("identity     : %s\n", caller.Identity)
	for _, claim := range []struct {
		name string
		get  func() (float64, bool, error)
	}{
		{"issued_at   ", caller.Claims.IssuedAt},
		{"not_before  ", caller.Claims.NotBefore},
		{"expires_at  ", caller.Claims.ExpiresAt},
	} {
		if v, ok, err := claim.get(); ok && err == nil {
			fmt.Printf("%s : %s\n", claim.name, time.Unix(int64(v), 0).UTC().Format(time.RFC3339))
		}
	}
	pretty, err := json.MarshalIndent(caller.Claims, "", "  ")
	if err != nil {
		return
	}
	fmt.Printf("claims       :\n%s\n", pretty)
}
