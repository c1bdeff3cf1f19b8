package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lakeshare/lakeshare/sharing"
)

func newChangesCmd(sess *session) *cobra.Command {
	var (
		startingVersion   int64
		endingVersion     int64
		startingTimestamp string
		endingTimestamp   string
		historical        bool
	)

	cmd := &cobra.Command{
		Use:   "changes <share.schema.table>",
		Short: "List the change-data-feed files of a version range",
		Example: `  lakeshare changes acme.sales.events --starting-version 8
  lakeshare changes acme.sales.events --starting-version 8 --ending-version 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parseTableArg(sess, args[0])
			if err != nil {
				return err
			}
			params := sharing.ChangeScanParams{
				Range: sharing.ChangeRange{
					StartingVersion:   optionalInt64(cmd.Flags(), "starting-version", startingVersion),
					EndingVersion:     optionalInt64(cmd.Flags(), "ending-version", endingVersion),
					StartingTimestamp: startingTimestamp,
					EndingTimestamp:   endingTimestamp,
				},
				IncludeHistoricalMetadata: historical,
			}

			client, err := sess.Client()
			if err != nil {
				return err
			}
			scan, err := client.ResolveChanges(cmd.Context(), table, params)
			if err != nil {
				return err
			}
			defer scan.Close()

			if isQuiet(cmd) {
				for _, ref := range scan.Files() {
					fmt.Fprintln(os.Stdout, ref.FileID)
				}
				return nil
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, map[string]interface{}{
					"addFiles":    scan.AddFiles,
					"removeFiles": scan.RemoveFiles,
					"cdfFiles":    scan.CDCFiles,
				})
			}
			refs := scan.Files()
			rows := make([][]string, 0, len(refs))
			for _, ref := range refs {
				change := ref.ChangeType
				if change == "" {
					change = "cdf"
				}
				rows = append(rows, []string{
					ref.FileID,
					change,
					strconv.FormatInt(ref.CommitVersion, 10),
					strconv.FormatInt(ref.CommitTimestamp, 10),
					strconv.FormatInt(ref.Size, 10),
				})
			}
			PrintTable(os.Stdout, []string{"id", "change", "version", "timestamp", "size"}, rows)
			return nil
		},
	}

	cmd.Flags().Int64Var(&startingVersion, "starting-version", 0, "First version of the range (inclusive)")
	cmd.Flags().Int64Var(&endingVersion, "ending-version", 0, "Last version of the range (inclusive)")
	cmd.Flags().StringVar(&startingTimestamp, "starting-timestamp", "", "Range start as a timestamp")
	cmd.Flags().StringVar(&endingTimestamp, "ending-timestamp", "", "Range end as a timestamp")
	cmd.Flags().BoolVar(&historical, "historical-metadata", false, "Include metadata of intermediate schema changes")
	return cmd
}
