package load

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lakeshare/lakeshare/sharing"
)

// viewNameRe allows alphanumeric + underscores, starting with a letter or underscore.
var viewNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// fileSource pairs one scan file with its resolved presigned URL.
type fileSource struct {
	URL string
	Ref sharing.FileReference
}

// createViewStatement returns a DuckDB statement:
// CREATE OR REPLACE VIEW "<name>" AS SELECT ... over the files' URLs.
//
// When no file carries partition values or change-feed columns, all URLs
// collapse into a single read_parquet list. Otherwise each file gets its own
// SELECT branch appending its constants, combined with UNION ALL BY NAME so
// the constant columns line up by name across branches.
func createViewStatement(name string, files []fileSource) (string, error) {
	if err := validateViewName(name); err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("at least one file is required")
	}

	plain := true
	for _, f := range files {
		if len(constantColumns(f.Ref)) > 0 {
			plain = false
			break
		}
	}
	if plain {
		urls := make([]string, 0, len(files))
		for _, f := range files {
			urls = append(urls, quoteLiteral(f.URL))
		}
		return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet([%s])",
			quoteIdentifier(name), strings.Join(urls, ", ")), nil
	}

	branches := make([]string, 0, len(files))
	for _, f := range files {
		branches = append(branches, branchSelect(f))
	}
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s",
		quoteIdentifier(name), strings.Join(branches, "\nUNION ALL BY NAME\n")), nil
}

// branchSelect renders one per-file SELECT with the file's constants after
// the parquet columns.
func branchSelect(f fileSource) string {
	cols := constantColumns(f.Ref)
	if len(cols) == 0 {
		return fmt.Sprintf("SELECT * FROM read_parquet([%s])", quoteLiteral(f.URL))
	}
	return fmt.Sprintf("SELECT *, %s FROM read_parquet([%s])",
		strings.Join(cols, ", "), quoteLiteral(f.URL))
}

// constantColumns renders the per-file constants: partition values in sorted
// column order, then the change-feed commit columns, then the change type.
// Change-data files carry their change type inside the parquet rows, so
// their reference has none and no constant is added for it.
func constantColumns(ref sharing.FileReference) []string {
	keys := make([]string, 0, len(ref.PartitionValues))
	for k := range ref.PartitionValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, 0, len(keys)+3)
	for _, k := range keys {
		cols = append(cols, fmt.Sprintf("%s AS %s", quoteLiteral(ref.PartitionValues[k]), quoteIdentifier(k)))
	}
	if ref.CommitTimestamp > 0 {
		cols = append(cols, fmt.Sprintf("%d AS %s", ref.CommitVersion, quoteIdentifier(sharing.CommitVersionColumn)))
		cols = append(cols, fmt.Sprintf("epoch_ms(%d) AS %s", ref.CommitTimestamp, quoteIdentifier(sharing.CommitTimestampColumn)))
	}
	if ref.ChangeType != "" {
		cols = append(cols, fmt.Sprintf("%s AS %s", quoteLiteral(ref.ChangeType), quoteIdentifier(sharing.ChangeTypeColumn)))
	}
	return cols
}

// validateViewName checks that name is a safe SQL identifier.
func validateViewName(name string) error {
	if name == "" {
		return fmt.Errorf("view name is required")
	}
	if !viewNameRe.MatchString(name) {
		return fmt.Errorf("view name must match [a-zA-Z_][a-zA-Z0-9_]*")
	}
	return nil
}

// quoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double-quote characters by doubling them (standard SQL).
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral wraps a string value in single quotes, escaping any embedded
// single-quote characters by doubling them (standard SQL).
func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
