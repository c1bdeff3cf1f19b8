package cli

import "github.com/spf13/pflag"

// optionalInt64 returns &value when the named flag was set on the command
// line, and nil otherwise. Version selectors treat zero as a real version,
// so presence has to come from the flag set rather than the value.
func optionalInt64(flags *pflag.FlagSet, name string, value int64) *int64 {
	if !flags.Changed(name) {
		return nil
	}
	return &value
}
