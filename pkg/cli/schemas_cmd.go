package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSchemasCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:     "schemas <share>",
		Short:   "List the schemas of a share",
		Example: "  lakeshare schemas acme",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sess.Client()
			if err != nil {
				return err
			}
			schemas, err := client.ListSchemas(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if isQuiet(cmd) {
				for _, s := range schemas {
					fmt.Fprintln(os.Stdout, s.Name)
				}
				return nil
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, schemas)
			}
			rows := make([][]string, 0, len(schemas))
			for _, s := range schemas {
				rows = append(rows, []string{s.Name, s.Share})
			}
			PrintTable(os.Stdout, []string{"name", "share"}, rows)
			return nil
		},
	}
}
