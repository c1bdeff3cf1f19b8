package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newVersionCmd(sess *session) *cobra.Command {
	var startingTimestamp string

	cmd := &cobra.Command{
		Use:   "version <share.schema.table>",
		Short: "Print the current version of a shared table",
		Example: `  lakeshare version acme.sales.events
  lakeshare version acme.sales.events --starting-timestamp 2024-01-01T00:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parseTableArg(sess, args[0])
			if err != nil {
				return err
			}
			client, err := sess.Client()
			if err != nil {
				return err
			}
			v, err := client.GetTableVersion(cmd.Context(), table, startingTimestamp)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, map[string]interface{}{
					"table":   table.String(),
					"version": v,
				})
			}
			fmt.Fprintf(os.Stdout, "%d\n", v)
			return nil
		},
	}

	cmd.Flags().StringVar(&startingTimestamp, "starting-timestamp", "", "Earliest change timestamp the caller plans to read from")
	return cmd
}
