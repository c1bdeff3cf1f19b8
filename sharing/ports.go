package sharing

import "context"

// MetadataClient fetches table metadata and file listings from a sharing
// server. Implemented by rest.Client.
type MetadataClient interface {
	// GetMetadata returns the table metadata at the selected version.
	GetMetadata(ctx context.Context, table Table, version VersionSelector) (*TableMetadata, error)
	// GetTableVersion returns the current (or timestamp-selected) version.
	GetTableVersion(ctx context.Context, table Table, startingTimestamp string) (int64, error)
	// ListFiles runs a snapshot file query. predicateHints is the wire
	// predicate JSON, or empty to send no hints.
	ListFiles(ctx context.Context, table Table, predicateHints string, limit *int64, version VersionSelector) (*FileListing, error)
	// ListChangeFiles runs a change-data-feed query over the given range.
	ListChangeFiles(ctx context.Context, table Table, rng ChangeRange, includeHistoricalMetadata bool) (*ChangeListing, error)
}

// CredentialIssuer exchanges the session's credential profile for fresh
// signed URLs covering a batch of files. Implementations are bound to the
// query that discovered the batch: re-signing replays that query (using the
// server's refresh token when one was granted) so version- and
// predicate-pinned listings re-sign correctly. The table parameter names the
// batch's owning table for validation and logging.
type CredentialIssuer interface {
	Sign(ctx context.Context, table Table, fileIDs []string) (map[string]SignedURL, error)
}

// CatalogClient lists the shares, schemas, and tables a recipient can see.
// Implemented by rest.Client.
type CatalogClient interface {
	ListShares(ctx context.Context, maxResults int, pageToken string) ([]Share, string, error)
	ListSchemas(ctx context.Context, share string, maxResults int, pageToken string) ([]Schema, string, error)
	ListTables(ctx context.Context, share, schema string, maxResults int, pageToken string) ([]Table, string, error)
	ListAllTables(ctx context.Context, share string, maxResults int, pageToken string) ([]Table, string, error)
}
