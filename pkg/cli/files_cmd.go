package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lakeshare/lakeshare/sharing"
)

func newFilesCmd(sess *session) *cobra.Command {
	var (
		limit      int64
		versionArg int64
		timestamp  string
	)

	cmd := &cobra.Command{
		Use:   "files <share.schema.table>",
		Short: "List the data files a table scan would read",
		Example: `  lakeshare files acme.sales.events
  lakeshare files acme.sales.events --limit 100 --version 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parseTableArg(sess, args[0])
			if err != nil {
				return err
			}
			params := sharing.ScanParams{
				Version: sharing.VersionSelector{
					Version:   optionalInt64(cmd.Flags(), "version", versionArg),
					Timestamp: timestamp,
				},
				Limit: optionalInt64(cmd.Flags(), "limit", limit),
			}

			client, err := sess.Client()
			if err != nil {
				return err
			}
			refs, err := client.InputFiles(cmd.Context(), table, params)
			if err != nil {
				return err
			}

			if isQuiet(cmd) {
				for _, ref := range refs {
					fmt.Fprintln(os.Stdout, ref.FileID)
				}
				return nil
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, refs)
			}
			rows := make([][]string, 0, len(refs))
			for _, ref := range refs {
				rows = append(rows, []string{
					ref.FileID,
					strconv.FormatInt(ref.Size, 10),
					formatPartitions(ref.PartitionValues),
				})
			}
			PrintTable(os.Stdout, []string{"id", "size", "partitions"}, rows)
			return nil
		},
	}

	cmd.Flags().Int64Var(&limit, "limit", 0, "Row-count hint; the server may prune files beyond it")
	cmd.Flags().Int64Var(&versionArg, "version", 0, "Table version to list")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "List the version current at this timestamp")
	return cmd
}

// formatPartitions renders partition values as k=v pairs in column order.
func formatPartitions(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values[k])
	}
	return strings.Join(pairs, ",")
}
