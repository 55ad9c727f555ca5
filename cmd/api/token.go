package main

import (
	"fmt"
	"time"

	"github.com/abduss/imagehost/internal/auth"
	"github.com/abduss/imagehost/internal/config"
	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token for the admin routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var admin config.AdminConfig
			if err := env.ParseWithOptions(&admin, env.Options{Prefix: "IMAGEHOST_ADMIN_"}); err != nil {
				return fmt.Errorf("parse admin config: %w", err)
			}
			if ttl > 0 {
				admin.TokenTTL = ttl
			}

			token, expiresAt, err := auth.NewTokens(admin).Issue(subject)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "identity recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, overrides IMAGEHOST_ADMIN_TOKEN_TTL")
	return cmd
}
