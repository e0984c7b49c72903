package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-authx"
)

var mintFlags struct {
	identity    string
	subdivision string
	userID      string
	ttl         time.Duration
}

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a development token in the issuer's shape",
	RunE: func(cmd *cobra.Command, args []string) error {
		id := uuid.New()
		if mintFlags.identity != "" {
			parsed, err := uuid.Parse(mintFlags.identity)
			if err != nil {
				return fmt.Errorf("identity: %w", err)
			}
			id = parsed
		}
		token, err := authx.MintDevToken(authx.DevTokenParams{
			Identity:      id,
			SubdivisionID: mintFlags.subdivision,
			UserID:        mintFlags.userID,
			TTL:           mintFlags.ttl,
		})
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	f := mintCmd.Flags()
	f.StringVar(&mintFlags.identity, "identity", "", "zup_user_id to embed (random when empty)")
	f.StringVar(&mintFlags.subdivision, "subdivision", "dev", "zup_subdivision_id to embed")
	f.StringVar(&mintFlags.userID, "user", "dev", "user_id to embed")
	f.DurationVar(&mintFlags.ttl, "ttl", time.Hour, "Token lifetime")
	rootCmd.AddCommand(mintCmd)
}
