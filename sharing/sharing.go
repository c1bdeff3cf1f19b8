// Package sharing defines the core types, interfaces, and errors for the
// lakeshare client: shares, schemas, tables, scan parameters, file references,
// and the collaborator ports the resolver and URL cache depend on.
package sharing

import (
	"fmt"
	"strings"

	"github.com/lakeshare/lakeshare/predicate"
)

// Share is a logical grouping of schemas published by a provider.
type Share struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// Schema is a logical grouping of tables within a share.
type Schema struct {
	Name  string `json:"name"`
	Share string `json:"share"`
}

// Table identifies a shared table as share.schema.name.
type Table struct {
	Share  string `json:"share"`
	Schema string `json:"schema"`
	Name   string `json:"name"`

	// ShareID and ID are provider-assigned identifiers, populated on
	// listings when the server returns them.
	ShareID string `json:"shareId,omitempty"`
	ID      string `json:"id,omitempty"`
}

// String returns the fully qualified table name.
func (t Table) String() string {
	return fmt.Sprintf("%s.%s.%s", t.Share, t.Schema, t.Name)
}

// Validate checks that all three name components are present.
func (t Table) Validate() error {
	if t.Share == "" {
		return ErrValidation("share name is required")
	}
	if t.Schema == "" {
		return ErrValidation("schema name is required")
	}
	if t.Name == "" {
		return ErrValidation("table name is required")
	}
	return nil
}

// ParseTable parses "share.schema.table" into a Table. The table component
// may itself contain dots; the first two dots delimit share and schema.
func ParseTable(s string) (Table, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Table{}, ErrValidation("table name must be share.schema.table, got %q", s)
	}
	return Table{Share: parts[0], Schema: parts[1], Name: parts[2]}, nil
}

// VersionSelector pins a snapshot query to a point in table history.
// At most one of Version and Timestamp may be set; both zero means latest.
type VersionSelector struct {
	// Version is the table version to read, if non-nil.
	Version *int64
	// Timestamp is a provider-parsed timestamp string selecting the
	// version current at that time, if non-empty.
	Timestamp string
}

// IsPinned reports whether the selector names a specific point in history.
func (v VersionSelector) IsPinned() bool {
	return v.Version != nil || v.Timestamp != ""
}

// Validate rejects selectors carrying both a version and a timestamp.
func (v VersionSelector) Validate() error {
	if v.Version != nil && v.Timestamp != "" {
		return ErrValidation("version and timestamp are mutually exclusive")
	}
	if v.Version != nil && *v.Version < 0 {
		return ErrValidation("version must be non-negative, got %d", *v.Version)
	}
	return nil
}

// ChangeRange bounds a change-data-feed query. Each boundary may be given
// as a version or a timestamp, but not both on the same side.
type ChangeRange struct {
	StartingVersion   *int64
	EndingVersion     *int64
	StartingTimestamp string
	EndingTimestamp   string
}

// Validate checks boundary consistency.
func (r ChangeRange) Validate() error {
	if r.StartingVersion == nil && r.StartingTimestamp == "" {
		return ErrValidation("change range requires a starting version or timestamp")
	}
	if r.StartingVersion != nil && r.StartingTimestamp != "" {
		return ErrValidation("startingVersion and startingTimestamp are mutually exclusive")
	}
	if r.EndingVersion != nil && r.EndingTimestamp != "" {
		return ErrValidation("endingVersion and endingTimestamp are mutually exclusive")
	}
	if r.StartingVersion != nil && *r.StartingVersion < 0 {
		return ErrValidation("startingVersion must be non-negative, got %d", *r.StartingVersion)
	}
	if r.StartingVersion != nil && r.EndingVersion != nil && *r.EndingVersion < *r.StartingVersion {
		return ErrValidation("endingVersion %d precedes startingVersion %d", *r.EndingVersion, *r.StartingVersion)
	}
	return nil
}

// ScanParams carries everything that shapes the file listing for one
// snapshot scan.
type ScanParams struct {
	// PartitionPredicates are filters known to touch only partition columns.
	// They are serialized into the wire grammar in both protocol generations.
	PartitionPredicates []*predicate.Node
	// DataPredicates are filters over non-partition columns. They ride along
	// only when the second-generation predicate grammar is enabled.
	DataPredicates []*predicate.Node
	// Limit caps the number of rows the caller will read, if non-nil.
	// Servers treat it as a hint and may return more files than strictly
	// needed.
	Limit *int64
	// Version pins the scan to a snapshot; zero value means latest.
	Version VersionSelector
	// PlannedSchema is the schema string the caller planned against, if any.
	// When set, resolution fails with a SchemaMismatchError if the live
	// table schema is no longer compatible with it.
	PlannedSchema string
}

// Validate checks the embedded version selector and limit.
func (p ScanParams) Validate() error {
	if p.Limit != nil && *p.Limit < 0 {
		return ErrValidation("limit must be non-negative, got %d", *p.Limit)
	}
	return p.Version.Validate()
}

// ChangeScanParams shapes a change-data-feed file listing.
type ChangeScanParams struct {
	Range ChangeRange
	// IncludeHistoricalMetadata asks the server to interleave metadata
	// actions for intermediate schema changes inside the range.
	IncludeHistoricalMetadata bool
	// PlannedSchema is the schema string the caller planned against, if any.
	PlannedSchema string
}

// Validate checks the embedded range.
func (p ChangeScanParams) Validate() error {
	return p.Range.Validate()
}
