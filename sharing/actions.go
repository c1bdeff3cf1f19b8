package sharing

// Protocol carries the reader version the server requires for a table.
type Protocol struct {
	MinReaderVersion int `json:"minReaderVersion"`
}

// Format describes the table's storage format.
type Format struct {
	Provider string            `json:"provider"`
	Options  map[string]string `json:"options,omitempty"`
}

// TableMetadata is the table-level metadata returned alongside file listings.
type TableMetadata struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	Format           Format            `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration,omitempty"`
	// Version is the table version this metadata describes, when the
	// server reports one (0 otherwise).
	Version int64 `json:"version,omitempty"`
	// Size is the table size in bytes, when reported.
	Size int64 `json:"size,omitempty"`
	// NumFiles is the file count, when reported.
	NumFiles int64 `json:"numFiles,omitempty"`
}

// ChangeDataEnabled reports whether the provider enabled the change data
// feed for this table.
func (m *TableMetadata) ChangeDataEnabled() bool {
	return m.Configuration["enableChangeDataFeed"] == "true"
}

// Kinds of file action a listing can return.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionCDC    = "cdf"
)

// Change types carried by the derived change-type column.
const (
	ChangeTypeInsert          = "insert"
	ChangeTypeDelete          = "delete"
	ChangeTypeUpdatePreimage  = "update_preimage"
	ChangeTypeUpdatePostimage = "update_postimage"
)

// Derived partition columns exposed on change-data-feed scans.
const (
	CommitVersionColumn   = "_commit_version"
	CommitTimestampColumn = "_commit_timestamp"
	ChangeTypeColumn      = "_change_type"
)

// FileAction is one data file the server returned for a scan: a short-lived
// access URL plus the stable identity and stats the engine plans with.
type FileAction struct {
	// URL is the pre-signed access URL. Short-lived; the URL cache owns
	// refreshing it.
	URL string `json:"url"`
	// ID is the stable file identifier, unique within the table. It stays
	// fixed across re-signings of the same file.
	ID string `json:"id"`
	// PartitionValues maps partition column name to string value.
	PartitionValues map[string]string `json:"partitionValues"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// Stats is the per-file statistics JSON, if the server shares it.
	Stats string `json:"stats,omitempty"`
	// Version is the commit version that produced this action, when known
	// (always set on change-data-feed listings).
	Version int64 `json:"version,omitempty"`
	// Timestamp is the commit timestamp in epoch milliseconds, when known.
	Timestamp int64 `json:"timestamp,omitempty"`
	// ExpirationTimestamp is the URL expiry in epoch milliseconds, or 0
	// when the server did not state one.
	ExpirationTimestamp int64 `json:"expirationTimestamp,omitempty"`
}

// FileListing is the result of a snapshot file query.
type FileListing struct {
	Protocol Protocol
	// Metadata is the table metadata served with the listing; nil when the
	// server returned no metaData action.
	Metadata *TableMetadata
	Files    []FileAction
	// Version is the snapshot version the listing was served from.
	Version int64
	// RefreshToken, when non-empty, lets the issuer re-sign this exact
	// listing cheaply instead of replaying the full query.
	RefreshToken string
}

// ChangeListing is the result of a change-data-feed query. Actions are
// partitioned by kind because each kind derives a different partition-column
// set: adds and removes gain a change-type column, pure change-data files
// already carry change types in their rows.
type ChangeListing struct {
	Protocol    Protocol
	Metadata    *TableMetadata
	AddFiles    []FileAction
	RemoveFiles []FileAction
	CDCFiles    []FileAction
	// HistoricalMetadata holds intermediate schema versions when the query
	// asked for them.
	HistoricalMetadata []*TableMetadata
}

// SignedURL is one freshly issued access URL with its stated expiry.
type SignedURL struct {
	URL string
	// ExpirationMillis is the signer's stated expiry in epoch milliseconds.
	ExpirationMillis int64
}
