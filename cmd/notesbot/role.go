// AngelaMos | 2026
// role.go

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/notesbot/internal/audit"
	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/identity"
)

// roleCmd assigns a role without an acting admin. It is how the first
// administrator gets appointed.
func roleCmd(configPath *string) *cobra.Command {
	var (
		handle int64
		role   string
	)

	cmd := &cobra.Command{
		Use:   "role",
		Short: "Assign a role to a Telegram user by numeric ID",
		Example: `  notesbot role --handle 123456789 --role admin
  notesbot role --handle 555 --role priest`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if handle <= 0 {
				return errors.New("--handle must be a positive Telegram user ID")
			}

			r, err := identity.ParseRole(role)
			if err != nil {
				return fmt.Errorf("--role must be one of requester, priest, altar_server, admin: %w", err)
			}

			ctx := cmd.Context()

			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			db, err := core.NewDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits right after

			auditLog, err := audit.New(cfg.Audit)
			if err != nil {
				return err
			}
			defer auditLog.Close() //nolint:errcheck // process exits right after

			svc := identity.NewService(identity.NewRepository(db.DB), auditLog)

			change, err := svc.Bootstrap(ctx, handle, r)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "user %d: %s -> %s\n", change.Handle, change.OldRole, change.NewRole)
			return nil
		},
	}

	cmd.Flags().Int64Var(&handle, "handle", 0, "Telegram user ID")
	cmd.Flags().StringVar(&role, "role", "", "requester, priest, altar_server or admin")
	_ = cmd.MarkFlagRequired("handle") //nolint:errcheck // flag defined above
	_ = cmd.MarkFlagRequired("role")   //nolint:errcheck // flag defined above

	return cmd
}
