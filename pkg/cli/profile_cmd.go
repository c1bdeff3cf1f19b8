package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lakeshare/lakeshare/profile"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect credential profiles",
	}
	cmd.AddCommand(newProfileValidateCmd())
	return cmd
}

func newProfileValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "validate <path>",
		Short:   "Parse a credential profile file and report what it declares",
		Example: "  lakeshare profile validate ~/offers/acme.share",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := profile.LoadFile(args[0])
			if err != nil {
				return err
			}
			expired := prof.Expired(time.Now())

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(os.Stdout, map[string]interface{}{
					"version":  prof.Version,
					"type":     string(prof.Type),
					"endpoint": prof.Endpoint,
					"expired":  expired,
				})
			}
			fmt.Fprintf(os.Stdout, "%s: valid (version %d, %s, endpoint %s)\n",
				args[0], prof.Version, prof.Type, prof.Endpoint)
			if expired {
				fmt.Fprintln(os.Stdout, "warning: the bearer token has expired")
			}
			return nil
		},
	}
}
