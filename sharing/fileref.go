package sharing

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Scheme is the URI scheme of encoded file references.
const Scheme = "lakeshare"

// TableLocationFor builds the cache key prefix for one resolved scan: the
// profile endpoint, the fully qualified table name, and the scan fingerprint
// as a suffix when one is given. Two scans with different fingerprints get
// disjoint cache partitions; two with the same fingerprint share one.
func TableLocationFor(endpoint string, table Table, fingerprint string) string {
	loc := endpoint + "#" + table.String()
	if fingerprint != "" {
		loc += "_" + fingerprint
	}
	return loc
}

// FileReference is the opaque handle the resolver hands to the storage read
// path: enough to locate the cached URL for one file and to reconstruct the
// engine-visible row context.
type FileReference struct {
	// TableLocation keys the cache partition holding this file's URL.
	TableLocation string
	// Fingerprint is the scan fingerprint embedded in TableLocation.
	Fingerprint string
	// FileID is the stable file identifier within the table.
	FileID string
	// Size is the file size in bytes.
	Size int64
	// PartitionValues are the engine-visible partition values, including
	// derived change-data-feed columns where applicable.
	PartitionValues map[string]string
	// CommitVersion and CommitTimestamp locate the file in table history.
	CommitVersion   int64
	CommitTimestamp int64
	// ChangeType is set on change-data-feed add/remove groups, empty
	// otherwise.
	ChangeType string
}

// EffectivePartitionValues returns the partition values the engine should see
// for this file. Change-data-feed files gain the derived commit columns, and
// add/remove groups additionally gain the change-type column; change-data
// files carry the change type per row instead.
func (f FileReference) EffectivePartitionValues() map[string]string {
	out := make(map[string]string, len(f.PartitionValues)+3)
	for k, v := range f.PartitionValues {
		out[k] = v
	}
	if f.CommitTimestamp > 0 {
		out[CommitVersionColumn] = strconv.FormatInt(f.CommitVersion, 10)
		out[CommitTimestampColumn] = strconv.FormatInt(f.CommitTimestamp, 10)
	}
	if f.ChangeType != "" {
		out[ChangeTypeColumn] = f.ChangeType
	}
	return out
}

// Path serializes the reference to the form the storage read path consumes:
//
//	lakeshare:/<escaped-table-location>/<file-id>/<commit-version>
//
// Only the three path fields round-trip; sizes and partition values travel
// in memory alongside the reference.
func (f FileReference) Path() string {
	return fmt.Sprintf("%s:/%s/%s/%d", Scheme, url.PathEscape(f.TableLocation), f.FileID, f.CommitVersion)
}

// ParseFilePath decodes a path produced by Path back into its fields.
func ParseFilePath(p string) (tableLocation, fileID string, commitVersion int64, err error) {
	rest, ok := strings.CutPrefix(p, Scheme+":/")
	if !ok {
		return "", "", 0, ErrValidation("file path %q does not start with %s:/", p, Scheme)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", 0, ErrValidation("file path %q is not <location>/<file-id>/<version>", p)
	}
	tableLocation, uerr := url.PathUnescape(parts[0])
	if uerr != nil {
		return "", "", 0, ErrValidation("file path %q has a malformed table location: %v", p, uerr)
	}
	commitVersion, perr := strconv.ParseInt(parts[2], 10, 64)
	if perr != nil {
		return "", "", 0, ErrValidation("file path %q has a malformed commit version %q", p, parts[2])
	}
	return tableLocation, parts[1], commitVersion, nil
}
