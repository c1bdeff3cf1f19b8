// Package fingerprint derives the stable cache-partition key for a scan.
//
// The key must capture exactly the query axes that change the server's file
// listing: predicates that are actually sent, the row limit, and the version
// selector. Semantically identical scans must collide (one cache partition,
// not two) and semantically distinct scans must not, so components are
// length-prefixed before hashing to rule out field-boundary collisions and
// predicate lists are canonicalized to rule out construction-order noise.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"

	"github.com/lakeshare/lakeshare/predicate"
	"github.com/lakeshare/lakeshare/sharing"
)

// Snapshot fingerprints a point-in-time scan. The predicates are the ones
// the resolver will actually send: callers pass nil when pushdown is
// disabled so scans that differ only in unsent filters share one partition.
// The top-level list is an implicit conjunction, so it is sorted into
// canonical order before hashing; order inside each tree stays significant.
func Snapshot(predicates []*predicate.Node, limit *int64, version sharing.VersionSelector) string {
	h := sha256.New()
	writeComponent(h, "snapshot")

	canonical := make([]string, 0, len(predicates))
	for _, p := range predicates {
		canonical = append(canonical, p.Canonical())
	}
	sort.Strings(canonical)
	writeComponent(h, strconv.Itoa(len(canonical)))
	for _, c := range canonical {
		writeComponent(h, c)
	}

	if limit != nil {
		writeComponent(h, "limit:"+strconv.FormatInt(*limit, 10))
	} else {
		writeComponent(h, "limit:none")
	}

	switch {
	case version.Version != nil:
		writeComponent(h, "version:"+strconv.FormatInt(*version.Version, 10))
	case version.Timestamp != "":
		writeComponent(h, "timestamp:"+version.Timestamp)
	default:
		writeComponent(h, "latest")
	}

	return hex.EncodeToString(h.Sum(nil))
}

// ChangeRange fingerprints a change-data-feed scan. Only the range is
// hashed: the server returns the full action set for the range regardless
// of predicates and the engine re-filters locally, so folding predicates in
// would fragment the cache across identical requests.
func ChangeRange(rng sharing.ChangeRange) string {
	h := sha256.New()
	writeComponent(h, "changes")

	switch {
	case rng.StartingVersion != nil:
		writeComponent(h, "start-version:"+strconv.FormatInt(*rng.StartingVersion, 10))
	case rng.StartingTimestamp != "":
		writeComponent(h, "start-timestamp:"+rng.StartingTimestamp)
	default:
		writeComponent(h, "start:none")
	}

	switch {
	case rng.EndingVersion != nil:
		writeComponent(h, "end-version:"+strconv.FormatInt(*rng.EndingVersion, 10))
	case rng.EndingTimestamp != "":
		writeComponent(h, "end-timestamp:"+rng.EndingTimestamp)
	default:
		writeComponent(h, "end:open")
	}

	return hex.EncodeToString(h.Sum(nil))
}

// writeComponent writes one length-prefixed component. The 8-byte big-endian
// prefix keeps adjacent components from bleeding into each other, so "ab"+"c"
// and "a"+"bc" hash differently.
func writeComponent(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
