package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vmail/backend/internal/auth/jwt"
	"vmail/backend/internal/bootstrap"
)

func newMigrateCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the directory tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfg.Database.Driver == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "in-memory store selected, nothing to migrate")
				return nil
			}

			db, err := bootstrap.OpenSQLStore(rt.cfg, rt.log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", rt.cfg.Database.Driver)
			return nil
		},
	}
}

func newIssueTokenCmd(rt *session) *cobra.Command {
	var expiry time.Duration

	cmd := &cobra.Command{
		Use:   "issue-token SUBJECT",
		Short: "Print an admin API bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.cfg.ValidateForServer(); err != nil {
				return err
			}
			if expiry <= 0 {
				expiry = rt.cfg.JWT.Expiry
			}

			manager := jwt.NewManager(rt.cfg.JWT.Secret, rt.cfg.JWT.Issuer, expiry)
			tok, err := manager.Issue(args[0], jwt.RoleAdmin)
			if err != nil {
				return err
			}
			if rt.output == "json" {
				return printJSON(cmd.OutOrStdout(), tok)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
			return nil
		},
	}

	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default jwt.expiry)")
	return cmd
}
