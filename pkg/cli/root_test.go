package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshare/lakeshare/internal/testkit"
	"github.com/lakeshare/lakeshare/sharing"
)

const cliTestToken = "cli-test-token"

// farFuture keeps served URLs fresh for the whole test run.
const farFuture = int64(4102444800000)

func writeProfile(t *testing.T, endpoint string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "provider.share")
	body := fmt.Sprintf(`{"shareCredentialsVersion": 1, "endpoint": %q, "bearerToken": %q}`, endpoint, cliTestToken)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func catalogServer(t *testing.T) *testkit.Server {
	t.Helper()
	srv := testkit.NewServer(cliTestToken)
	t.Cleanup(srv.Close)
	srv.AddTable(&testkit.TableFixture{
		Table:   sharing.Table{Share: "acme", Schema: "sales", Name: "events"},
		Version: 7,
		Metadata: &sharing.TableMetadata{
			ID:               "tbl-1",
			SchemaString:     `{"type":"struct","fields":[{"name":"id","type":"long","nullable":false,"metadata":{}}]}`,
			PartitionColumns: []string{"date"},
		},
		Files: []sharing.FileAction{
			{URL: "https://bucket/f1", ID: "f1", PartitionValues: map[string]string{"date": "2024-01-01"}, Size: 100, ExpirationTimestamp: farFuture},
			{URL: "https://bucket/f2", ID: "f2", PartitionValues: map[string]string{"date": "2024-01-02"}, Size: 200, ExpirationTimestamp: farFuture},
		},
		AddFiles: []sharing.FileAction{
			{URL: "https://bucket/a1", ID: "a1", PartitionValues: map[string]string{"date": "2024-01-03"}, Size: 50, Version: 9, Timestamp: 1700000000000, ExpirationTimestamp: farFuture},
		},
		RefreshToken: "tok-1",
	})
	return srv
}

// runCommand executes the CLI with args and returns its stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	restore := captureStdout(t)
	sess := &session{}
	root := newRootCmd(sess)
	root.SetArgs(args)
	err := root.Execute()
	sess.Close()
	return restore(), err
}

func TestSharesCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := catalogServer(t)
	prof := writeProfile(t, srv.URL)

	out, err := runCommand(t, "shares", "--profile", prof)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "acme")

	t.Run("quiet_prints_names_only", func(t *testing.T) {
		out, err := runCommand(t, "shares", "--profile", prof, "-q")
		require.NoError(t, err)
		assert.Equal(t, "acme\n", out)
	})
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := catalogServer(t)
	prof := writeProfile(t, srv.URL)

	out, err := runCommand(t, "version", "acme.sales.events", "--profile", prof)
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestFilesCommand_JSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := catalogServer(t)
	prof := writeProfile(t, srv.URL)

	out, err := runCommand(t, "files", "acme.sales.events", "--profile", prof, "--output", "json")
	require.NoError(t, err)

	var refs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &refs))
	require.Len(t, refs, 2)
	assert.Equal(t, "f1", refs[0]["FileID"])
	assert.Equal(t, "f2", refs[1]["FileID"])
}

func TestChangesCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := catalogServer(t)
	prof := writeProfile(t, srv.URL)

	out, err := runCommand(t, "changes", "acme.sales.events", "--starting-version", "8", "--profile", prof)
	require.NoError(t, err)
	assert.Contains(t, out, "a1")
	assert.Contains(t, out, "insert")
}

func TestUnsupportedOutputFormat(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := runCommand(t, "shares", "--profile", "/nowhere.share", "--output", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestProfilePrecedence(t *testing.T) {
	srv := catalogServer(t)
	validProfile := writeProfile(t, srv.URL)

	// runPreRun runs a command that needs no session so only the
	// persistent pre-run resolution is exercised.
	runPreRun := func(t *testing.T, sess *session, args ...string) {
		t.Helper()
		restore := captureStdout(t)
		root := newRootCmd(sess)
		root.SetArgs(append(args, "profile", "validate", validProfile))
		err := root.Execute()
		restore()
		require.NoError(t, err)
	}

	t.Run("flag_beats_env", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("LAKESHARE_PROFILE", "/env/path.share")

		sess := &session{}
		runPreRun(t, sess, "--profile", "/flag/path.share")
		assert.Equal(t, "/flag/path.share", sess.profilePath)
	})

	t.Run("env_beats_config", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		require.NoError(t, SaveUserConfig(&UserConfig{
			CurrentProfile: "default",
			Profiles:       map[string]string{"default": "/config/path.share"},
		}))
		t.Setenv("LAKESHARE_PROFILE", "/env/path.share")

		sess := &session{}
		runPreRun(t, sess)
		assert.Equal(t, "/env/path.share", sess.profilePath)
	})

	t.Run("config_is_the_fallback", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		require.NoError(t, SaveUserConfig(&UserConfig{
			CurrentProfile: "default",
			Profiles:       map[string]string{"default": "/config/path.share"},
		}))

		sess := &session{}
		runPreRun(t, sess)
		assert.Equal(t, "/config/path.share", sess.profilePath)
	})

	t.Run("flag_alias_resolves_through_config", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		require.NoError(t, SaveUserConfig(&UserConfig{
			Profiles: map[string]string{"staging": "/config/staging.share"},
		}))

		sess := &session{}
		runPreRun(t, sess, "--profile", "staging")
		assert.Equal(t, "/config/staging.share", sess.profilePath)
	})
}

func TestParseTableArg(t *testing.T) {
	t.Run("dotted_name_keeps_session_profile", func(t *testing.T) {
		sess := &session{profilePath: "/session.share"}
		table, err := parseTableArg(sess, "acme.sales.events")
		require.NoError(t, err)
		assert.Equal(t, sharing.Table{Share: "acme", Schema: "sales", Name: "events"}, table)
		assert.Equal(t, "/session.share", sess.profilePath)
	})

	t.Run("table_url_overrides_profile", func(t *testing.T) {
		sess := &session{profilePath: "/session.share"}
		table, err := parseTableArg(sess, "/offers/acme.share#acme.sales.events")
		require.NoError(t, err)
		assert.Equal(t, sharing.Table{Share: "acme", Schema: "sales", Name: "events"}, table)
		assert.Equal(t, "/offers/acme.share", sess.profilePath)
	})

	t.Run("malformed_name", func(t *testing.T) {
		sess := &session{}
		_, err := parseTableArg(sess, "acme.sales")
		require.Error(t, err)
	})
}
