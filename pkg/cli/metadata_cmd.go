package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lakeshare/lakeshare/sharing"
)

func newMetadataCmd(sess *session) *cobra.Command {
	var (
		versionArg int64
		timestamp  string
	)

	cmd := &cobra.Command{
		Use:   "metadata <share.schema.table>",
		Short: "Show the schema and metadata of a shared table",
		Example: `  lakeshare metadata acme.sales.events
  lakeshare metadata acme.sales.events --version 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parseTableArg(sess, args[0])
			if err != nil {
				return err
			}
			selector := sharing.VersionSelector{
				Version:   optionalInt64(cmd.Flags(), "version", versionArg),
				Timestamp: timestamp,
			}

			client, err := sess.Client()
			if err != nil {
				return err
			}
			meta, err := client.GetTableMetadata(cmd.Context(), table, selector)
			if err != nil {
				return err
			}

			if isQuiet(cmd) {
				fmt.Fprintln(os.Stdout, meta.ID)
				return nil
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, meta)
			}
			fields := map[string]interface{}{
				"id":                meta.ID,
				"format":            meta.Format.Provider,
				"partition_columns": meta.PartitionColumns,
				"schema":            meta.SchemaString,
				"change_data_feed":  meta.ChangeDataEnabled(),
			}
			if meta.Name != "" {
				fields["name"] = meta.Name
			}
			if meta.Version > 0 {
				fields["version"] = meta.Version
			}
			if meta.NumFiles > 0 {
				fields["num_files"] = meta.NumFiles
			}
			if meta.Size > 0 {
				fields["size"] = meta.Size
			}
			PrintDetail(os.Stdout, fields)
			return nil
		},
	}

	cmd.Flags().Int64Var(&versionArg, "version", 0, "Table version to describe")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "Describe the version current at this timestamp")
	return cmd
}
