package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddAliasCmd(rt *session) *cobra.Command {
	var createDomain bool

	cmd := &cobra.Command{
		Use:   "add-alias OWNER_DOMAIN SOURCE DESTINATION",
		Short: "Forward mail from SOURCE to DESTINATION",
		Long: "Create an alias owned by OWNER_DOMAIN. A SOURCE like @example.org catches all\n" +
			"mail for the domain. DESTINATION must be a full address. OWNER_DOMAIN may carry a\n" +
			"leading @.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			directory, err := rt.directoryService(ctx)
			if err != nil {
				return err
			}

			a, err := directory.AddAlias(ctx, args[0], args[1], args[2], createDomain)
			if err != nil {
				return err
			}
			if rt.output == "json" {
				return printJSON(cmd.OutOrStdout(), a)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created alias %s -> %s (%s)\n", a.Source, a.Destination, a.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&createDomain, "create-domain", false, "create the owner domain when it does not exist")
	return cmd
}

func newListAliasesCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list-aliases [FQDN]",
		Short: "List aliases, optionally of one owner domain",
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
			aliases, err := directory.ListAliases(ctx, fqdn)
			if err != nil {
				return err
			}
			if rt.output == "json" {
				return printJSON(cmd.OutOrStdout(), aliases)
			}

			rows := make([][]interface{}, 0, len(aliases))
			for i := range aliases {
				a := &aliases[i]
				owner := a.DomainID
				if a.Domain != nil {
					owner = a.Domain.Fqdn
				}
				rows = append(rows, []interface{}{a.ID, owner, a.Source, a.Destination, yesNo(a.Active)})
			}
			return printTable(cmd.OutOrStdout(), "ID\tDOMAIN\tSOURCE\tDESTINATION\tACTIVE", rows)
		},
	}
}
