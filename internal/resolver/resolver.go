// Package resolver turns a logical table plus scan parameters into opaque
// file references: it fingerprints the query, translates predicates into the
// wire grammar, lists matching files through the metadata client, and seeds
// the presigned-URL cache for the storage read path.
package resolver

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lakeshare/lakeshare/internal/config"
	"github.com/lakeshare/lakeshare/internal/fingerprint"
	"github.com/lakeshare/lakeshare/internal/urlcache"
	"github.com/lakeshare/lakeshare/predicate"
	"github.com/lakeshare/lakeshare/sharing"
)

// IssuerFactory builds credential issuers bound to one resolved query, so a
// later refresh replays exactly the query that produced the batch.
// Implemented by rest.Client.
type IssuerFactory interface {
	QueryIssuer(table sharing.Table, predicateHints string, limit *int64, version sharing.VersionSelector, refreshToken string) sharing.CredentialIssuer
	ChangeIssuer(table sharing.Table, rng sharing.ChangeRange) sharing.CredentialIssuer
}

// populationPolicy decides which URLs a freshly registered cache batch starts
// with: everything the listing returned, or none until the first read misses.
type populationPolicy interface {
	initialURLs(listed map[string]sharing.SignedURL) map[string]sharing.SignedURL
}

type eagerPopulation struct{}

func (eagerPopulation) initialURLs(listed map[string]sharing.SignedURL) map[string]sharing.SignedURL {
	return listed
}

type lazyPopulation struct{}

func (lazyPopulation) initialURLs(map[string]sharing.SignedURL) map[string]sharing.SignedURL {
	return nil
}

// Resolver resolves scans against one sharing server. It is safe for
// concurrent use.
type Resolver struct {
	client     sharing.MetadataClient
	issuers    IssuerFactory
	cache      *urlcache.Cache // nil when URL caching is disabled
	translator *predicate.Translator
	endpoint   string
	structural bool
	population populationPolicy
	hints      bool
	v2         bool
	logger     *slog.Logger
}

// New builds a resolver. A nil cache disables URL caching: scans then carry a
// live issuer and every read obtains a fresh signed URL.
func New(client sharing.MetadataClient, issuers IssuerFactory, cache *urlcache.Cache, endpoint string, cfg *config.Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	var population populationPolicy = lazyPopulation{}
	if cfg.EagerPopulation() {
		population = eagerPopulation{}
	}
	return &Resolver{
		client:     client,
		issuers:    issuers,
		cache:      cache,
		translator: predicate.NewTranslator(cfg.PredicateHintsEnabled, cfg.PredicateV2Enabled, logger),
		endpoint:   strings.TrimRight(endpoint, "/"),
		structural: cfg.StructuralSchemaMatch,
		population: population,
		hints:      cfg.PredicateHintsEnabled,
		v2:         cfg.PredicateV2Enabled,
		logger:     logger,
	}
}

// Scan is one resolved snapshot scan: the ordered file references plus the
// credentials needed to read them.
type Scan struct {
	scanCredentials

	Fingerprint string
	Metadata    *sharing.TableMetadata
	Version     int64
	Files       []sharing.FileReference
}

// ChangeScan is one resolved change-data-feed scan. The three groups carry
// different derived partition columns; their relative order is unspecified.
type ChangeScan struct {
	scanCredentials

	Fingerprint        string
	Metadata           *sharing.TableMetadata
	AddFiles           []sharing.FileReference
	RemoveFiles        []sharing.FileReference
	CDCFiles           []sharing.FileReference
	HistoricalMetadata []*sharing.TableMetadata
}

// Files returns all three groups as one sequence, adds then removes then
// change-data files.
func (s *ChangeScan) Files() []sharing.FileReference {
	out := make([]sharing.FileReference, 0, len(s.AddFiles)+len(s.RemoveFiles)+len(s.CDCFiles))
	out = append(out, s.AddFiles...)
	out = append(out, s.RemoveFiles...)
	out = append(out, s.CDCFiles...)
	return out
}

// Resolve lists the table's data files for one snapshot scan. The returned
// scan must be closed once the caller is done reading, so the cache can
// release the batch.
func (r *Resolver) Resolve(ctx context.Context, table sharing.Table, params sharing.ScanParams) (*Scan, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	fp := fingerprint.Snapshot(r.effectivePredicates(params), params.Limit, params.Version)
	hints, _ := r.translator.Hints(params.PartitionPredicates, params.DataPredicates)

	listing, err := r.client.ListFiles(ctx, table, hints, params.Limit, params.Version)
	if err != nil {
		return nil, err
	}
	if err := r.checkSchema(params.PlannedSchema, listing.Metadata); err != nil {
		return nil, err
	}

	location := sharing.TableLocationFor(r.endpoint, table, fp)
	refs := snapshotReferences(location, fp, listing.Files, params.Limit)

	scan := &Scan{
		Fingerprint: fp,
		Metadata:    listing.Metadata,
		Version:     listing.Version,
		Files:       refs,
	}
	issuer := r.issuers.QueryIssuer(table, hints, params.Limit, params.Version, listing.RefreshToken)
	lease, err := r.registerBatch(location, table, refs, listing.Files, issuer)
	if err != nil {
		return nil, err
	}
	scan.scanCredentials = scanCredentials{
		table:    table,
		location: location,
		cache:    r.cache,
		lease:    lease,
		issuer:   issuer,
	}

	r.logger.Debug("resolved scan",
		"table", table.String(),
		"fingerprint", fp,
		"version", scan.Version,
		"files", len(refs),
		"elapsed", time.Since(started))
	return scan, nil
}

// InputFiles lists every file of the scan regardless of any row limit. It is
// meant for lineage and input-file enumeration, so it leaves the URL cache
// untouched; references still embed the scan's fingerprint.
func (r *Resolver) InputFiles(ctx context.Context, table sharing.Table, params sharing.ScanParams) ([]sharing.FileReference, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	fp := fingerprint.Snapshot(r.effectivePredicates(params), params.Limit, params.Version)
	hints, _ := r.translator.Hints(params.PartitionPredicates, params.DataPredicates)

	listing, err := r.client.ListFiles(ctx, table, hints, nil, params.Version)
	if err != nil {
		return nil, err
	}
	location := sharing.TableLocationFor(r.endpoint, table, fp)
	return snapshotReferences(location, fp, listing.Files, nil), nil
}

// ResolveChanges lists the table's change-data-feed actions over a range.
// The fingerprint covers only the range: the server returns the full action
// set regardless of predicates, so folding predicates in would split the
// cache across identical requests.
func (r *Resolver) ResolveChanges(ctx context.Context, table sharing.Table, params sharing.ChangeScanParams) (*ChangeScan, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	fp := fingerprint.ChangeRange(params.Range)
	listing, err := r.client.ListChangeFiles(ctx, table, params.Range, params.IncludeHistoricalMetadata)
	if err != nil {
		return nil, err
	}
	if err := r.checkSchema(params.PlannedSchema, listing.Metadata); err != nil {
		return nil, err
	}

	location := sharing.TableLocationFor(r.endpoint, table, fp)
	scan := &ChangeScan{
		Fingerprint:        fp,
		Metadata:           listing.Metadata,
		AddFiles:           changeReferences(location, fp, listing.AddFiles, sharing.ChangeTypeInsert),
		RemoveFiles:        changeReferences(location, fp, listing.RemoveFiles, sharing.ChangeTypeDelete),
		CDCFiles:           changeReferences(location, fp, listing.CDCFiles, ""),
		HistoricalMetadata: listing.HistoricalMetadata,
	}

	all := make([]sharing.FileAction, 0, len(listing.AddFiles)+len(listing.RemoveFiles)+len(listing.CDCFiles))
	all = append(all, listing.AddFiles...)
	all = append(all, listing.RemoveFiles...)
	all = append(all, listing.CDCFiles...)
	issuer := r.issuers.ChangeIssuer(table, params.Range)
	lease, err := r.registerBatch(location, table, scan.Files(), all, issuer)
	if err != nil {
		return nil, err
	}
	scan.scanCredentials = scanCredentials{
		table:    table,
		location: location,
		cache:    r.cache,
		lease:    lease,
		issuer:   issuer,
	}

	r.logger.Debug("resolved change scan",
		"table", table.String(),
		"fingerprint", fp,
		"adds", len(scan.AddFiles),
		"removes", len(scan.RemoveFiles),
		"cdc", len(scan.CDCFiles),
		"elapsed", time.Since(started))
	return scan, nil
}

// effectivePredicates returns the predicates that shape the server's file
// listing, which is what the fingerprint must capture. With hints disabled
// nothing is sent, so nothing may distinguish cache partitions; with the
// first-generation grammar, data predicates stay client-side.
func (r *Resolver) effectivePredicates(params sharing.ScanParams) []*predicate.Node {
	if !r.hints {
		return nil
	}
	preds := make([]*predicate.Node, 0, len(params.PartitionPredicates)+len(params.DataPredicates))
	preds = append(preds, params.PartitionPredicates...)
	if r.v2 {
		preds = append(preds, params.DataPredicates...)
	}
	return preds
}

func (r *Resolver) checkSchema(planned string, metadata *sharing.TableMetadata) error {
	if planned == "" || metadata == nil {
		return nil
	}
	return sharing.CheckSchemaCompatible(planned, metadata.SchemaString, r.structural)
}

// registerBatch seeds the URL cache with the scan's files and returns the
// lease pinning the batch. With caching disabled it is a no-op and reads go
// through the issuer directly.
func (r *Resolver) registerBatch(location string, table sharing.Table, refs []sharing.FileReference, files []sharing.FileAction, issuer sharing.CredentialIssuer) (*urlcache.Lease, error) {
	if r.cache == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.FileID)
	}
	listed := make(map[string]sharing.SignedURL, len(files))
	for _, f := range files {
		listed[f.ID] = sharing.SignedURL{URL: f.URL, ExpirationMillis: f.ExpirationTimestamp}
	}
	return r.cache.Register(location, table, ids, r.population.initialURLs(listed), issuer)
}

// snapshotReferences builds ordered references from raw file actions. Files
// are grouped by their partition-value tuple in first-seen order, keeping the
// server's order within each group, and a limit truncates the total count
// across groups. Snapshot references expose only the engine-visible partition
// values; the commit columns exist on change-feed references alone.
func snapshotReferences(location, fp string, files []sharing.FileAction, limit *int64) []sharing.FileReference {
	grouped := groupByPartition(files, func(f sharing.FileAction) string {
		return partitionKey(f.PartitionValues)
	})
	refs := make([]sharing.FileReference, 0, len(files))
	for _, f := range grouped {
		if limit != nil && int64(len(refs)) >= *limit {
			break
		}
		refs = append(refs, sharing.FileReference{
			TableLocation:   location,
			Fingerprint:     fp,
			FileID:          f.ID,
			Size:            f.Size,
			PartitionValues: f.PartitionValues,
		})
	}
	return refs
}

// changeReferences builds one change-feed group. Add and remove groups carry
// a synthetic change type; change-data files carry theirs per row, so their
// group key holds only the commit columns.
func changeReferences(location, fp string, files []sharing.FileAction, changeType string) []sharing.FileReference {
	grouped := groupByPartition(files, func(f sharing.FileAction) string {
		return partitionKey(f.PartitionValues) +
			"@" + strconv.FormatInt(f.Version, 10) +
			"/" + strconv.FormatInt(f.Timestamp, 10) +
			"/" + changeType
	})
	refs := make([]sharing.FileReference, 0, len(files))
	for _, f := range grouped {
		refs = append(refs, sharing.FileReference{
			TableLocation:   location,
			Fingerprint:     fp,
			FileID:          f.ID,
			Size:            f.Size,
			PartitionValues: f.PartitionValues,
			CommitVersion:   f.Version,
			CommitTimestamp: f.Timestamp,
			ChangeType:      changeType,
		})
	}
	return refs
}

// groupByPartition reorders files so that files sharing a partition key are
// contiguous. Groups appear in first-seen order and keep their internal
// order, so the result is deterministic for a given listing.
func groupByPartition(files []sharing.FileAction, key func(sharing.FileAction) string) []sharing.FileAction {
	if len(files) <= 1 {
		return files
	}
	order := make([]string, 0, len(files))
	groups := make(map[string][]sharing.FileAction, len(files))
	for _, f := range files {
		k := key(f)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], f)
	}
	out := make([]sharing.FileAction, 0, len(files))
	for _, k := range order {
		out = append(out, groups[k]...)
	}
	return out
}

// partitionKey serializes a partition tuple unambiguously; keys and values
// are length prefixed so adjacent entries cannot collide across boundaries.
func partitionKey(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := values[k]
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}
