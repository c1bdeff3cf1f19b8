package rest

import (
	"context"
	"sync"

	"github.com/lakeshare/lakeshare/sharing"
)

// QueryIssuer returns a credential issuer bound to one snapshot query. Each
// Sign replays the query, preferring the server's refresh token when one was
// granted, and returns fresh presigned URLs for the requested file ids.
func (c *Client) QueryIssuer(table sharing.Table, predicateHints string, limit *int64, version sharing.VersionSelector, refreshToken string) sharing.CredentialIssuer {
	return &queryIssuer{
		client:         c,
		table:          table,
		predicateHints: predicateHints,
		limit:          limit,
		version:        version,
		refreshToken:   refreshToken,
	}
}

type queryIssuer struct {
	client         *Client
	table          sharing.Table
	predicateHints string
	limit          *int64
	version        sharing.VersionSelector

	mu           sync.Mutex
	refreshToken string
}

var _ sharing.CredentialIssuer = (*queryIssuer)(nil)

func (q *queryIssuer) Sign(ctx context.Context, table sharing.Table, fileIDs []string) (map[string]sharing.SignedURL, error) {
	if table.String() != q.table.String() {
		return nil, sharing.ErrValidation("issuer for %s cannot sign files of %s", q.table, table)
	}

	q.mu.Lock()
	token := q.refreshToken
	q.mu.Unlock()

	listing, err := q.client.listFiles(ctx, q.table, q.predicateHints, q.limit, q.version, token)
	if err != nil && token != "" {
		// The refresh token may have expired server-side; fall back to the
		// full query once before giving up.
		q.client.logger.Debug("refresh token rejected, replaying full query", "table", q.table.String(), "error", err)
		listing, err = q.client.listFiles(ctx, q.table, q.predicateHints, q.limit, q.version, "")
	}
	if err != nil {
		return nil, sharing.ErrCredentialUnavailable(err, "re-signing files of %s", q.table)
	}

	q.mu.Lock()
	q.refreshToken = listing.RefreshToken
	q.mu.Unlock()

	return pickSigned(listing.Files, fileIDs), nil
}

// ChangeIssuer returns a credential issuer bound to one change-data-feed
// query. Each Sign replays the range query and signs the files of all three
// action groups.
func (c *Client) ChangeIssuer(table sharing.Table, rng sharing.ChangeRange) sharing.CredentialIssuer {
	return &changeIssuer{client: c, table: table, rng: rng}
}

type changeIssuer struct {
	client *Client
	table  sharing.Table
	rng    sharing.ChangeRange
}

var _ sharing.CredentialIssuer = (*changeIssuer)(nil)

func (q *changeIssuer) Sign(ctx context.Context, table sharing.Table, fileIDs []string) (map[string]sharing.SignedURL, error) {
	if table.String() != q.table.String() {
		return nil, sharing.ErrValidation("issuer for %s cannot sign files of %s", q.table, table)
	}
	listing, err := q.client.ListChangeFiles(ctx, q.table, q.rng, false)
	if err != nil {
		return nil, sharing.ErrCredentialUnavailable(err, "re-signing change files of %s", q.table)
	}
	all := make([]sharing.FileAction, 0, len(listing.AddFiles)+len(listing.RemoveFiles)+len(listing.CDCFiles))
	all = append(all, listing.AddFiles...)
	all = append(all, listing.RemoveFiles...)
	all = append(all, listing.CDCFiles...)
	return pickSigned(all, fileIDs), nil
}

// pickSigned filters a listing down to the requested file ids. Files the
// server no longer returns are simply absent from the result; the cache
// reports those as unavailable.
func pickSigned(files []sharing.FileAction, fileIDs []string) map[string]sharing.SignedURL {
	want := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		want[id] = true
	}
	signed := make(map[string]sharing.SignedURL, len(fileIDs))
	for _, f := range files {
		if want[f.ID] {
			signed[f.ID] = sharing.SignedURL{URL: f.URL, ExpirationMillis: f.ExpirationTimestamp}
		}
	}
	return signed
}
