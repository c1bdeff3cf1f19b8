// Package testkit provides a fake sharing server and shared mock
// implementations of the client's ports for use in tests across the codebase.
package testkit

import (
	"context"

	"github.com/lakeshare/lakeshare/sharing"
)

// MockMetadataClient implements sharing.MetadataClient for testing.
// Uses function fields so tests only need to set the methods they care about.
type MockMetadataClient struct {
	GetMetadataFn     func(ctx context.Context, table sharing.Table, version sharing.VersionSelector) (*sharing.TableMetadata, error)
	GetTableVersionFn func(ctx context.Context, table sharing.Table, startingTimestamp string) (int64, error)
	ListFilesFn       func(ctx context.Context, table sharing.Table, predicateHints string, limit *int64, version sharing.VersionSelector) (*sharing.FileListing, error)
	ListChangeFilesFn func(ctx context.Context, table sharing.Table, rng sharing.ChangeRange, includeHistoricalMetadata bool) (*sharing.ChangeListing, error)

	ListFilesCalls       []ListFilesCall   // collected inputs for assertions
	ListChangeFilesCalls []ChangeFilesCall // collected inputs for assertions
}

// ListFilesCall records the inputs of one ListFiles invocation.
type ListFilesCall struct {
	Table          sharing.Table
	PredicateHints string
	Limit          *int64
	Version        sharing.VersionSelector
}

// ChangeFilesCall records the inputs of one ListChangeFiles invocation.
type ChangeFilesCall struct {
	Table                     sharing.Table
	Range                     sharing.ChangeRange
	IncludeHistoricalMetadata bool
}

// GetMetadata implements the interface method for testing.
func (m *MockMetadataClient) GetMetadata(ctx context.Context, table sharing.Table, version sharing.VersionSelector) (*sharing.TableMetadata, error) {
	if m.GetMetadataFn != nil {
		return m.GetMetadataFn(ctx, table, version)
	}
	panic("unexpected call to MockMetadataClient.GetMetadata")
}

// GetTableVersion implements the interface method for testing.
func (m *MockMetadataClient) GetTableVersion(ctx context.Context, table sharing.Table, startingTimestamp string) (int64, error) {
	if m.GetTableVersionFn != nil {
		return m.GetTableVersionFn(ctx, table, startingTimestamp)
	}
	panic("unexpected call to MockMetadataClient.GetTableVersion")
}

// ListFiles implements the interface method for testing.
func (m *MockMetadataClient) ListFiles(ctx context.Context, table sharing.Table, predicateHints string, limit *int64, version sharing.VersionSelector) (*sharing.FileListing, error) {
	m.ListFilesCalls = append(m.ListFilesCalls, ListFilesCall{Table: table, PredicateHints: predicateHints, Limit: limit, Version: version})
	if m.ListFilesFn != nil {
		return m.ListFilesFn(ctx, table, predicateHints, limit, version)
	}
	panic("unexpected call to MockMetadataClient.ListFiles")
}

// ListChangeFiles implements the interface method for testing.
func (m *MockMetadataClient) ListChangeFiles(ctx context.Context, table sharing.Table, rng sharing.ChangeRange, includeHistoricalMetadata bool) (*sharing.ChangeListing, error) {
	m.ListChangeFilesCalls = append(m.ListChangeFilesCalls, ChangeFilesCall{Table: table, Range: rng, IncludeHistoricalMetadata: includeHistoricalMetadata})
	if m.ListChangeFilesFn != nil {
		return m.ListChangeFilesFn(ctx, table, rng, includeHistoricalMetadata)
	}
	panic("unexpected call to MockMetadataClient.ListChangeFiles")
}

var _ sharing.MetadataClient = (*MockMetadataClient)(nil)

// MockIssuer implements sharing.CredentialIssuer for testing.
type MockIssuer struct {
	SignFn func(ctx context.Context, table sharing.Table, fileIDs []string) (map[string]sharing.SignedURL, error)
	Calls  int // number of Sign invocations
}

// Sign implements the interface method for testing.
func (m *MockIssuer) Sign(ctx context.Context, table sharing.Table, fileIDs []string) (map[string]sharing.SignedURL, error) {
	m.Calls++
	if m.SignFn != nil {
		return m.SignFn(ctx, table, fileIDs)
	}
	panic("unexpected call to MockIssuer.Sign")
}

var _ sharing.CredentialIssuer = (*MockIssuer)(nil)

// MockIssuerFactory hands out issuers for resolved scans and records the
// query shape each issuer was bound to.
type MockIssuerFactory struct {
	QueryIssuerFn  func(table sharing.Table, predicateHints string, limit *int64, version sharing.VersionSelector, refreshToken string) sharing.CredentialIssuer
	ChangeIssuerFn func(table sharing.Table, rng sharing.ChangeRange) sharing.CredentialIssuer

	QueryCalls []QueryIssuerCall // collected inputs for assertions
}

// QueryIssuerCall records the query a snapshot issuer was bound to.
type QueryIssuerCall struct {
	Table          sharing.Table
	PredicateHints string
	Limit          *int64
	Version        sharing.VersionSelector
	RefreshToken   string
}

// QueryIssuer implements the factory method for testing. Without a function
// field it returns an unusable issuer, which is fine for scans that never
// sign.
func (m *MockIssuerFactory) QueryIssuer(table sharing.Table, predicateHints string, limit *int64, version sharing.VersionSelector, refreshToken string) sharing.CredentialIssuer {
	m.QueryCalls = append(m.QueryCalls, QueryIssuerCall{Table: table, PredicateHints: predicateHints, Limit: limit, Version: version, RefreshToken: refreshToken})
	if m.QueryIssuerFn != nil {
		return m.QueryIssuerFn(table, predicateHints, limit, version, refreshToken)
	}
	return &MockIssuer{}
}

// ChangeIssuer implements the factory method for testing.
func (m *MockIssuerFactory) ChangeIssuer(table sharing.Table, rng sharing.ChangeRange) sharing.CredentialIssuer {
	if m.ChangeIssuerFn != nil {
		return m.ChangeIssuerFn(table, rng)
	}
	return &MockIssuer{}
}
