package lakeshare

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshare/lakeshare/internal/testkit"
	"github.com/lakeshare/lakeshare/profile"
	"github.com/lakeshare/lakeshare/sharing"
)

const testToken = "facade-test-token"

// farFuture keeps served URLs fresh for the whole test run.
const farFuture = int64(4102444800000)

func writeProfile(t *testing.T, endpoint string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "provider.share")
	body := fmt.Sprintf(`{"shareCredentialsVersion": 1, "endpoint": %q, "bearerToken": %q}`, endpoint, testToken)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func openClient(t *testing.T, srv *testkit.Server) *Client {
	t.Helper()
	client, err := Open(writeProfile(t, srv.URL), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func catalogServer(t *testing.T) *testkit.Server {
	t.Helper()
	srv := testkit.NewServer(testToken)
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
		RefreshToken: "tok-1",
	})
	srv.AddTable(&testkit.TableFixture{
		Table:    sharing.Table{Share: "acme", Schema: "marketing", Name: "campaigns"},
		Version:  3,
		Metadata: &sharing.TableMetadata{ID: "tbl-2", SchemaString: `{"type":"struct","fields":[]}`},
	})
	return srv
}

func TestOpenListsCatalog(t *testing.T) {
	srv := catalogServer(t)
	client := openClient(t, srv)
	ctx := context.Background()

	shares, err := client.ListShares(ctx)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, "acme", shares[0].Name)

	share, err := client.GetShare(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", share.Name)

	_, err = client.GetShare(ctx, "ghost")
	var notFound *sharing.NotFoundError
	require.ErrorAs(t, err, &notFound)

	schemas, err := client.ListSchemas(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, schemas, 2)

	tables, err := client.ListTables(ctx, "acme", "sales")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "events", tables[0].Name)
}

func TestListAllTables(t *testing.T) {
	srv := catalogServer(t)
	client := openClient(t, srv)
	ctx := context.Background()

	direct, err := client.ListAllTables(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, direct, 2)

	t.Run("falls_back_to_schema_walk", func(t *testing.T) {
		// An older server without the all-tables endpoint answers not-found;
		// the client must assemble the same result by walking schemas.
		srv.FailNext(http.StatusNotFound, 1)
		walked, err := client.ListAllTables(ctx, "acme")
		require.NoError(t, err)
		assert.ElementsMatch(t, direct, walked)
	})
}

func TestTableLookups(t *testing.T) {
	srv := catalogServer(t)
	client := openClient(t, srv)
	ctx := context.Background()
	table := sharing.Table{Share: "acme", Schema: "sales", Name: "events"}

	version, err := client.GetTableVersion(ctx, table, "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), version)

	metadata, err := client.GetTableMetadata(ctx, table, sharing.VersionSelector{})
	require.NoError(t, err)
	assert.Equal(t, "tbl-1", metadata.ID)
	assert.Equal(t, []string{"date"}, metadata.PartitionColumns)

	protocol, err := client.GetTableProtocol(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 1, protocol.MinReaderVersion)
}

func TestResolveScanEndToEnd(t *testing.T) {
	srv := catalogServer(t)
	client := openClient(t, srv)
	ctx := context.Background()
	table := sharing.Table{Share: "acme", Schema: "sales", Name: "events"}

	scan, err := client.ResolveScan(ctx, table, sharing.ScanParams{})
	require.NoError(t, err)
	defer scan.Close()

	assert.Equal(t, int64(7), scan.Version)
	require.Len(t, scan.Files, 2)

	// Eagerly cached from the listing, so reads need no further requests.
	before := srv.Requests()
	signed, err := scan.URL(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/f1", signed.URL)
	assert.Equal(t, before, srv.Requests())

	refs, err := client.InputFiles(ctx, table, sharing.ScanParams{})
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestResolveScanWithCacheDisabled(t *testing.T) {
	srv := catalogServer(t)
	prof, err := profile.LoadFile(writeProfile(t, srv.URL))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.URLCacheEnabled = false
	client, err := NewClient(prof, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	table := sharing.Table{Share: "acme", Schema: "sales", Name: "events"}
	scan, err := client.ResolveScan(ctx, table, sharing.ScanParams{})
	require.NoError(t, err)
	defer scan.Close()

	// Every read re-signs through the bound issuer, replaying the query with
	// the refresh token the listing granted.
	signed, err := scan.URL(ctx, "f2")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/f2", signed.URL)

	queries := srv.Queries()
	require.Len(t, queries, 2)
	assert.Empty(t, queries[0].RefreshToken)
	assert.Equal(t, "tok-1", queries[1].RefreshToken)
}

func TestResolveChangesEndToEnd(t *testing.T) {
	srv := testkit.NewServer(testToken)
	t.Cleanup(srv.Close)
	srv.AddTable(&testkit.TableFixture{
		Table:    sharing.Table{Share: "acme", Schema: "sales", Name: "events"},
		Version:  9,
		Metadata: &sharing.TableMetadata{ID: "tbl-1", SchemaString: `{"type":"struct","fields":[]}`},
		AddFiles: []sharing.FileAction{
			{URL: "https://bucket/a1", ID: "a1", Size: 10, Version: 8, Timestamp: 1700000000000, ExpirationTimestamp: farFuture},
		},
		CDCFiles: []sharing.FileAction{
			{URL: "https://bucket/c1", ID: "c1", Size: 10, Version: 9, Timestamp: 1700000100000, ExpirationTimestamp: farFuture},
		},
	})
	client := openClient(t, srv)

	start := int64(8)
	scan, err := client.ResolveChanges(context.Background(), sharing.Table{Share: "acme", Schema: "sales", Name: "events"},
		sharing.ChangeScanParams{Range: sharing.ChangeRange{StartingVersion: &start}})
	require.NoError(t, err)
	defer scan.Close()

	require.Len(t, scan.AddFiles, 1)
	require.Empty(t, scan.RemoveFiles)
	require.Len(t, scan.CDCFiles, 1)
	assert.Equal(t, sharing.ChangeTypeInsert, scan.AddFiles[0].ChangeType)

	changes := srv.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, "8", changes[0].StartingVersion)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil, nil, nil)
	var verr *sharing.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := catalogServer(t)
	client := openClient(t, srv)
	client.Close()
	client.Close()
}
