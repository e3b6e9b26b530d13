package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gwi.com/docs-assistant/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.AuthEnabled() {
				return errors.New("JWT_SECRET is not set")
			}
			token, err := auth.GenerateJWT(cfg.JWTSecret, subject)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "chat-client", "client name stored in the token")
	return cmd
}
