package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSharesCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "shares",
		Short: "List the shares the profile grants access to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := sess.Client()
			if err != nil {
				return err
			}
			shares, err := client.ListShares(cmd.Context())
			if err != nil {
				return err
			}

			if isQuiet(cmd) {
				for _, s := range shares {
					fmt.Fprintln(os.Stdout, s.Name)
				}
				return nil
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, shares)
			}
			rows := make([][]string, 0, len(shares))
			for _, s := range shares {
				rows = append(rows, []string{s.Name, s.ID})
			}
			PrintTable(os.Stdout, []string{"name", "id"}, rows)
			return nil
		},
	}
}
