package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vmail/backend/internal/credential"
	"vmail/backend/internal/domain"
)

func newAddMailboxCmd(rt *session) *cobra.Command {
	var (
		createDomain bool
		password     string
	)

	cmd := &cobra.Command{
		Use:   "add-mailbox EMAIL",
		Short: "Create a mailbox",
		Long: "Create the mailbox EMAIL. Without --password the mailbox has no credential until\n" +
			"set-password is run. With --create-domain the domain is added first when missing.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			directory, err := rt.directoryService(ctx)
			if err != nil {
				return err
			}

			var pw *string
			if cmd.Flags().Changed("password") {
				pw = &password
			}

			u, err := directory.AddMailbox(ctx, args[0], createDomain, pw)
			if err != nil {
				return err
			}
			if rt.output == "json" {
				return printJSON(cmd.OutOrStdout(), u.View())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created mailbox %s\n", u.Email())
			return nil
		},
	}

	cmd.Flags().BoolVar(&createDomain, "create-domain", false, "create the domain when it does not exist")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	return cmd
}

func newSetPasswordCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "set-password EMAIL NEW_PASSWORD",
		Short: "Replace a mailbox password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			directory, err := rt.directoryService(ctx)
			if err != nil {
				return err
			}
			if err := directory.SetPassword(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password set for %s\n", domain.NormalizeAddress(args[0]))
			return nil
		},
	}
}

func newChangePasswordCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "change-password EMAIL CURRENT_PASSWORD NEW_PASSWORD",
		Short: "Change a mailbox password after checking the current one",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			directory, err := rt.directoryService(ctx)
			if err != nil {
				return err
			}
			if err := directory.ChangePassword(ctx, args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password changed for %s\n", domain.NormalizeAddress(args[0]))
			return nil
		},
	}
}

func newDeactivateMailboxCmd(rt *session) *cobra.Command {
	var activate bool

	cmd := &cobra.Command{
		Use:   "deactivate-mailbox EMAIL",
		Short: "Disable logins for a mailbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			directory, err := rt.directoryService(ctx)
			if err != nil {
				return err
			}
			u, err := directory.SetMailUserActive(ctx, args[0], activate)
			if err != nil {
				return err
			}
			state := "deactivated"
			if u.Active {
				state = "activated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s mailbox %s\n", state, u.Email())
			return nil
		},
	}

	cmd.Flags().BoolVar(&activate, "undo", false, "re-activate the mailbox instead")
	return cmd
}

func newListMailboxesCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list-mailboxes [FQDN]",
		Short: "List mailboxes, optionally of one domain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			directory, err := rt.directoryService(ctx)
			if err != nil {
				return err
			}

			fqdn := ""
			if len(args) == 1 {
				fqdn = args[0]
			}
			users, err := directory.ListMailUsers(ctx, fqdn)
			if err != nil {
				return err
			}

			if rt.output == "json" {
				out := make([]domain.MailUserView, 0, len(users))
				for i := range users {
					out = append(out, users[i].View())
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			rows := make([][]interface{}, 0, len(users))
			for i := range users {
				u := &users[i]
				rows = append(rows, []interface{}{u.Email(), yesNo(u.Active), yesNo(u.HasPassword()), u.Created.Format("2006-01-02 15:04:05")})
			}
			return printTable(cmd.OutOrStdout(), "EMAIL\tACTIVE\tPASSWORD\tCREATED", rows)
		},
	}
}

func newExportPassdbCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "export-passdb [FQDN]",
		Short: "Print a Dovecot passwd-file of active mailboxes",
		Long: "Print one user:{SSHA}digest line per active mailbox with a password whose\n" +
			"domain is active.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			directory, err := rt.directoryService(ctx)
			if err != nil {
				return err
			}

			fqdn := ""
			if len(args) == 1 {
				fqdn = args[0]
			}
			users, err := directory.ListMailUsers(ctx, fqdn)
			if err != nil {
				return err
			}

			for i := range users {
				u := &users[i]
				if !u.Active || !u.HasPassword() || (u.Domain != nil && !u.Domain.Active) {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", u.Email(), credential.DovecotScheme(u.ShaDigest))
			}
			return nil
		},
	}
}
