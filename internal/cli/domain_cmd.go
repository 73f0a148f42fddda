package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddDomainCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "add-domain FQDN",
		Short: "Create a mail domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			directory, err := rt.directoryService(ctx)
			if err != nil {
				return err
			}
			d, err := directory.CreateDomain(ctx, args[0])
			if err != nil {
				return err
			}
			if rt.output == "json" {
				return printJSON(cmd.OutOrStdout(), d)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created domain %s\n", d.Fqdn)
			return nil
		},
	}
}

func newListDomainsCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list-domains",
		Short: "List mail domains with their mailbox and alias counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			directory, err := rt.directoryService(ctx)
			if err != nil {
				return err
			}
			domains, err := directory.ListDomains(ctx)
			if err != nil {
				return err
			}
			if rt.output == "json" {
				return printJSON(cmd.OutOrStdout(), domains)
			}

			rows := make([][]interface{}, 0, len(domains))
			for _, d := range domains {
				rows = append(rows, []interface{}{d.Fqdn, yesNo(d.Active), d.MailUserCount, d.AliasCount})
			}
			return printTable(cmd.OutOrStdout(), "DOMAIN\tACTIVE\tMAILBOXES\tALIASES", rows)
		},
	}
}
