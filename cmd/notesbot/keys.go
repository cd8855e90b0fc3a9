// AngelaMos | 2026
// keys.go

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/notesbot/internal/auth"
)

func keygenCmd(configPath *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the ES256 key pair that signs operator tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			if _, statErr := os.Stat(cfg.JWT.PrivateKeyPath); statErr == nil && !force {
				return fmt.Errorf("%s already exists, pass --force to replace it", cfg.JWT.PrivateKeyPath)
			}

			if err := auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key pair")

	return cmd
}

func tokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Mint an operator token for the HTTP API",
		Example: `  notesbot token --subject ops@parish --ttl 24h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" {
				return errors.New("--subject is required")
			}

			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			tokens, err := auth.NewTokenManager(cfg.JWT)
			if err != nil {
				return err
			}

			token, err := tokens.IssueOperatorToken(subject, role, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "who the token is issued to")
	cmd.Flags().StringVar(&role, "role", "admin", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from jwt.access_token_expire)")

	return cmd
}
