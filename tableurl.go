package lakeshare

import (
	"strings"

	"github.com/lakeshare/lakeshare/sharing"
)

// TableURL is a parsed table reference of the form
// "<profile-path>#<share>.<schema>.<table>".
type TableURL struct {
	ProfilePath string
	Table       sharing.Table
}

// String reassembles the reference.
func (u TableURL) String() string {
	return u.ProfilePath + "#" + u.Table.String()
}

// ParseTableURL splits a table reference into the profile file path and the
// fully qualified table name. The last "#" delimits the two halves, so
// profile paths containing "#" still parse; all components must be non-empty.
func ParseTableURL(raw string) (TableURL, error) {
	idx := strings.LastIndex(raw, "#")
	if idx < 0 {
		return TableURL{}, sharing.ErrValidation(
			"table URL %q must be <profile-path>#<share>.<schema>.<table>", raw)
	}
	path, name := raw[:idx], raw[idx+1:]
	if path == "" {
		return TableURL{}, sharing.ErrValidation("table URL %q has an empty profile path", raw)
	}
	table, err := sharing.ParseTable(name)
	if err != nil {
		return TableURL{}, err
	}
	return TableURL{ProfilePath: path, Table: table}, nil
}
