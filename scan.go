package lakeshare

import (
	"context"

	"github.com/lakeshare/lakeshare/sharing"
)

// ResolveScan lists the table's data files for one snapshot scan and seeds
// the URL cache with the batch. Close the scan when done reading so the cache
// may release the batch.
func (c *Client) ResolveScan(ctx context.Context, table sharing.Table, params sharing.ScanParams) (*Scan, error) {
	return c.resolver.Resolve(ctx, table, params)
}

// ResolveChanges lists the table's change-data-feed actions over a range.
// Close the scan when done reading.
func (c *Client) ResolveChanges(ctx context.Context, table sharing.Table, params sharing.ChangeScanParams) (*ChangeScan, error) {
	return c.resolver.ResolveChanges(ctx, table, params)
}

// InputFiles enumerates every file the scan reads regardless of any row
// limit, for lineage and input-file reporting. It leaves the URL cache
// untouched.
func (c *Client) InputFiles(ctx context.Context, table sharing.Table, params sharing.ScanParams) ([]sharing.FileReference, error) {
	return c.resolver.InputFiles(ctx, table, params)
}
