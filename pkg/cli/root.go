package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lakeshare/lakeshare"
	"github.com/lakeshare/lakeshare/internal/rest"
	"github.com/lakeshare/lakeshare/profile"
	"github.com/lakeshare/lakeshare/sharing"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	sess := &session{}
	rootCmd := newRootCmd(sess)
	err := rootCmd.Execute()
	sess.Close()
	if err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			var apiErr *rest.APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.StatusCode
				errObj["code"] = apiErr.ErrorCode
			}
			_ = PrintJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// session carries what commands share: the resolved profile path and one
// lazily opened client.
type session struct {
	profilePath string
	client      *lakeshare.Client
	logger      *slog.Logger
}

// Client opens the sharing client on first use and reuses it afterwards.
func (s *session) Client() (*lakeshare.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	if s.profilePath == "" {
		return nil, fmt.Errorf("no credential profile: pass --profile, set LAKESHARE_PROFILE, or set current-profile in %s", ConfigPath())
	}
	prof, err := profile.LoadFile(s.profilePath)
	if err != nil {
		return nil, err
	}
	cfg, err := lakeshare.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	client, err := lakeshare.NewClient(prof, cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.client = client
	return s.client, nil
}

// Logger returns the session logger, available once the client is open.
func (s *session) Logger() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func (s *session) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func newRootCmd(sess *session) *cobra.Command {
	var (
		profileArg string
		output     string
		quiet      bool
	)

	rootCmd := &cobra.Command{
		Use:           "lakeshare",
		Short:         "Delta Sharing client CLI",
		Long:          "Command-line client for browsing shares and reading shared tables.",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}

			// Profile precedence: flag > env > user config.
			if !cmd.Flags().Changed("profile") {
				if v := os.Getenv("LAKESHARE_PROFILE"); v != "" {
					profileArg = v
				}
			}
			cfg, err := LoadUserConfig()
			if err != nil {
				// Config file is optional
				cfg = &UserConfig{Profiles: map[string]string{}}
			}
			sess.profilePath = cfg.ActiveProfilePath(profileArg)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&profileArg, "profile", "p", "", "Credential profile: a file path or an alias from "+ConfigPath())
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only output resource identifiers")

	rootCmd.AddCommand(newSharesCmd(sess))
	rootCmd.AddCommand(newSchemasCmd(sess))
	rootCmd.AddCommand(newTablesCmd(sess))
	rootCmd.AddCommand(newAllTablesCmd(sess))
	rootCmd.AddCommand(newVersionCmd(sess))
	rootCmd.AddCommand(newMetadataCmd(sess))
	rootCmd.AddCommand(newFilesCmd(sess))
	rootCmd.AddCommand(newChangesCmd(sess))
	rootCmd.AddCommand(newDownloadCmd(sess))
	rootCmd.AddCommand(newProfileCmd())

	return rootCmd
}

// parseTableArg accepts share.schema.table, or profile#share.schema.table
// where the embedded profile path overrides the session's profile for this
// invocation.
func parseTableArg(sess *session, arg string) (sharing.Table, error) {
	if strings.Contains(arg, "#") {
		u, err := lakeshare.ParseTableURL(arg)
		if err != nil {
			return sharing.Table{}, err
		}
		sess.profilePath = u.ProfilePath
		return u.Table, nil
	}
	return sharing.ParseTable(arg)
}
