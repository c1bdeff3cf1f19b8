package lakeshare

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/lakeshare/lakeshare/sharing"
)

// allTablesFanout bounds the concurrent per-schema listings when a server
// predates the all-tables endpoint and the client walks schemas instead.
const allTablesFanout = 4

// ListShares returns every share the recipient has been granted, following
// pagination to the end.
func (c *Client) ListShares(ctx context.Context) ([]sharing.Share, error) {
	var shares []sharing.Share
	token := ""
	for {
		items, next, err := c.rest.ListShares(ctx, 0, token)
		if err != nil {
			return nil, err
		}
		shares = append(shares, items...)
		if next == "" {
			return shares, nil
		}
		token = next
	}
}

// GetShare returns a single share by name.
func (c *Client) GetShare(ctx context.Context, name string) (sharing.Share, error) {
	return c.rest.GetShare(ctx, name)
}

// ListSchemas returns every schema in a share.
func (c *Client) ListSchemas(ctx context.Context, share string) ([]sharing.Schema, error) {
	var schemas []sharing.Schema
	token := ""
	for {
		items, next, err := c.rest.ListSchemas(ctx, share, 0, token)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, items...)
		if next == "" {
			return schemas, nil
		}
		token = next
	}
}

// ListTables returns every table in a schema.
func (c *Client) ListTables(ctx context.Context, share, schema string) ([]sharing.Table, error) {
	var tables []sharing.Table
	token := ""
	for {
		items, next, err := c.rest.ListTables(ctx, share, schema, 0, token)
		if err != nil {
			return nil, err
		}
		tables = append(tables, items...)
		if next == "" {
			return tables, nil
		}
		token = next
	}
}

// ListAllTables returns every table in a share across all its schemas. Servers
// that predate the all-tables endpoint answer it with a not-found error; the
// client then assembles the same result by walking the share's schemas.
func (c *Client) ListAllTables(ctx context.Context, share string) ([]sharing.Table, error) {
	tables, err := c.listAllTables(ctx, share)
	if err == nil {
		return tables, nil
	}
	var notFound *sharing.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}
	c.logger.Debug("all-tables endpoint unavailable, walking schemas", "share", share)
	return c.allTablesBySchema(ctx, share)
}

func (c *Client) listAllTables(ctx context.Context, share string) ([]sharing.Table, error) {
	var tables []sharing.Table
	token := ""
	for {
		items, next, err := c.rest.ListAllTables(ctx, share, 0, token)
		if err != nil {
			return nil, err
		}
		tables = append(tables, items...)
		if next == "" {
			return tables, nil
		}
		token = next
	}
}

// allTablesBySchema lists each schema's tables concurrently and concatenates
// them in schema order, so the fallback result matches the endpoint's shape.
func (c *Client) allTablesBySchema(ctx context.Context, share string) ([]sharing.Table, error) {
	schemas, err := c.ListSchemas(ctx, share)
	if err != nil {
		return nil, err
	}
	perSchema := make([][]sharing.Table, len(schemas))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(allTablesFanout)
	for i, schema := range schemas {
		g.Go(func() error {
			tables, err := c.ListTables(gctx, share, schema.Name)
			if err != nil {
				return err
			}
			perSchema[i] = tables
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var tables []sharing.Table
	for _, ts := range perSchema {
		tables = append(tables, ts...)
	}
	return tables, nil
}

// GetTableVersion returns the table's current version, or, when
// startingTimestamp is non-empty, its earliest version at or after that
// timestamp.
func (c *Client) GetTableVersion(ctx context.Context, table sharing.Table, startingTimestamp string) (int64, error) {
	return c.rest.GetTableVersion(ctx, table, startingTimestamp)
}

// GetTableMetadata returns the table metadata at the selected version; the
// zero selector means latest.
func (c *Client) GetTableMetadata(ctx context.Context, table sharing.Table, version sharing.VersionSelector) (*sharing.TableMetadata, error) {
	return c.rest.GetMetadata(ctx, table, version)
}

// GetTableProtocol returns the reader requirements the server states for a
// table.
func (c *Client) GetTableProtocol(ctx context.Context, table sharing.Table) (sharing.Protocol, error) {
	return c.rest.GetProtocol(ctx, table)
}
