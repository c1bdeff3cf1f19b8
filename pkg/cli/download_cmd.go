package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lakeshare/lakeshare/load"
	"github.com/lakeshare/lakeshare/sharing"
)

func newDownloadCmd(sess *session) *cobra.Command {
	var (
		dir        string
		limit      int64
		versionArg int64
		timestamp  string
	)

	cmd := &cobra.Command{
		Use:   "download <share.schema.table>",
		Short: "Download a table's data files as parquet",
		Example: `  lakeshare download acme.sales.events --dir ./data
  lakeshare download acme.sales.events --version 12 --dir ./data`,
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
			scan, err := client.ResolveScan(cmd.Context(), table, params)
			if err != nil {
				return err
			}
			defer scan.Close()

			paths, err := load.NewLoader(scan, sess.Logger()).Download(cmd.Context(), dir)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, map[string]interface{}{
					"table": table.String(),
					"paths": paths,
				})
			}
			for _, p := range paths {
				fmt.Fprintln(os.Stdout, p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to write the files into")
	cmd.Flags().Int64Var(&limit, "limit", 0, "Row-count hint; the server may prune files beyond it")
	cmd.Flags().Int64Var(&versionArg, "version", 0, "Table version to download")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "Download the version current at this timestamp")
	return cmd
}
