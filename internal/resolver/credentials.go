package resolver

import (
	"context"

	"github.com/lakeshare/lakeshare/internal/urlcache"
	"github.com/lakeshare/lakeshare/sharing"
)

// scanCredentials is the read-path half of a resolved scan: it answers URL
// lookups through the shared cache batch or, when caching is disabled, by
// asking the issuer for a fresh URL on every read.
type scanCredentials struct {
	table    sharing.Table
	location string
	cache    *urlcache.Cache
	lease    *urlcache.Lease
	issuer   sharing.CredentialIssuer
}

// TableLocation returns the cache partition key of the scan.
func (s *scanCredentials) TableLocation() string {
	return s.location
}

// URL returns a usable presigned URL for one of the scan's files.
func (s *scanCredentials) URL(ctx context.Context, fileID string) (sharing.SignedURL, error) {
	if s.cache != nil {
		return s.cache.Get(ctx, s.location, fileID)
	}
	signed, err := s.issuer.Sign(ctx, s.table, []string{fileID})
	if err != nil {
		return sharing.SignedURL{}, err
	}
	u, ok := signed[fileID]
	if !ok {
		return sharing.SignedURL{}, sharing.ErrCredentialUnavailable(nil,
			"server no longer lists file %s of %s", fileID, s.table)
	}
	return u, nil
}

// Close releases the scan's hold on its cache batch so the sweeper may evict
// it once expired. Calling Close more than once is safe.
func (s *scanCredentials) Close() {
	if s.lease != nil {
		s.lease.Release()
	}
}
