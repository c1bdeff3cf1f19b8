package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lakeshare/lakeshare/sharing"
)

func newTablesCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:     "tables <share>.<schema>",
		Short:   "List the tables of a schema",
		Example: "  lakeshare tables acme.sales",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := strings.SplitN(args[0], ".", 2)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return fmt.Errorf("expected <share>.<schema>, got %q", args[0])
			}
			client, err := sess.Client()
			if err != nil {
				return err
			}
			tables, err := client.ListTables(cmd.Context(), parts[0], parts[1])
			if err != nil {
				return err
			}
			return printTables(cmd, tables)
		},
	}
}

func newAllTablesCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "all-tables [share]",
		Short: "List every table of a share, or of all shares",
		Example: `  lakeshare all-tables acme
  lakeshare all-tables`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sess.Client()
			if err != nil {
				return err
			}

			var names []string
			if len(args) == 1 {
				names = []string{args[0]}
			} else {
				shares, err := client.ListShares(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range shares {
					names = append(names, s.Name)
				}
			}

			var tables []sharing.Table
			for _, name := range names {
				shareTables, err := client.ListAllTables(cmd.Context(), name)
				if err != nil {
					return err
				}
				tables = append(tables, shareTables...)
			}
			return printTables(cmd, tables)
		},
	}
}

func printTables(cmd *cobra.Command, tables []sharing.Table) error {
	if isQuiet(cmd) {
		for _, t := range tables {
			fmt.Fprintln(os.Stdout, t.String())
		}
		return nil
	}
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(os.Stdout, tables)
	}
	rows := make([][]string, 0, len(tables))
	for _, t := range tables {
		rows = append(rows, []string{t.Share, t.Schema, t.Name})
	}
	PrintTable(os.Stdout, []string{"share", "schema", "name"}, rows)
	return nil
}
