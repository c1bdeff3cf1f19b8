package fingerprint

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshare/lakeshare/predicate"
	"github.com/lakeshare/lakeshare/sharing"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func int64Ptr(v int64) *int64 { return &v }

func idEquals(v string) *predicate.Node {
	return predicate.Equal(predicate.Column("id", predicate.TypeInt), predicate.Literal(v, predicate.TypeInt))
}

func dateEquals(v string) *predicate.Node {
	return predicate.Equal(predicate.Column("date", predicate.TypeDate), predicate.Literal(v, predicate.TypeDate))
}

func TestSnapshot_Deterministic(t *testing.T) {
	preds := []*predicate.Node{idEquals("23"), dateEquals("2021-04-28")}

	a := Snapshot(preds, int64Ptr(100), sharing.VersionSelector{})
	b := Snapshot(preds, int64Ptr(100), sharing.VersionSelector{})
	assert.Equal(t, a, b)
	assert.Regexp(t, hexPattern, a)
}

func TestSnapshot_TopLevelOrderIrrelevant(t *testing.T) {
	// The top-level predicate list is an implicit conjunction; swapping
	// construction order must land in the same cache partition.
	a := Snapshot([]*predicate.Node{idEquals("23"), dateEquals("2021-04-28")}, nil, sharing.VersionSelector{})
	b := Snapshot([]*predicate.Node{dateEquals("2021-04-28"), idEquals("23")}, nil, sharing.VersionSelector{})
	assert.Equal(t, a, b)
}

func TestSnapshot_EqualOperandOrderIrrelevant(t *testing.T) {
	colFirst := predicate.Equal(predicate.Column("id", predicate.TypeInt), predicate.Literal("23", predicate.TypeInt))
	litFirst := predicate.Equal(predicate.Literal("23", predicate.TypeInt), predicate.Column("id", predicate.TypeInt))

	a := Snapshot([]*predicate.Node{colFirst}, nil, sharing.VersionSelector{})
	b := Snapshot([]*predicate.Node{litFirst}, nil, sharing.VersionSelector{})
	assert.Equal(t, a, b)
}

func TestSnapshot_DistinctParamsDistinctKeys(t *testing.T) {
	base := Snapshot([]*predicate.Node{idEquals("23")}, nil, sharing.VersionSelector{})

	variants := map[string]string{
		"different_literal": Snapshot([]*predicate.Node{idEquals("24")}, nil, sharing.VersionSelector{}),
		"extra_predicate":   Snapshot([]*predicate.Node{idEquals("23"), dateEquals("2021-04-28")}, nil, sharing.VersionSelector{}),
		"no_predicates":     Snapshot(nil, nil, sharing.VersionSelector{}),
		"with_limit":        Snapshot([]*predicate.Node{idEquals("23")}, int64Ptr(10), sharing.VersionSelector{}),
		"zero_limit":        Snapshot([]*predicate.Node{idEquals("23")}, int64Ptr(0), sharing.VersionSelector{}),
		"pinned_version":    Snapshot([]*predicate.Node{idEquals("23")}, nil, sharing.VersionSelector{Version: int64Ptr(4)}),
		"pinned_timestamp":  Snapshot([]*predicate.Node{idEquals("23")}, nil, sharing.VersionSelector{Timestamp: "2021-04-28 00:00:00"}),
	}

	seen := map[string]string{"base": base}
	for name, fp := range variants {
		assert.Regexp(t, hexPattern, fp)
		for prev, prevFP := range seen {
			assert.NotEqual(t, prevFP, fp, "%s collides with %s", name, prev)
		}
		seen[name] = fp
	}
}

func TestSnapshot_NoBoundaryBleed(t *testing.T) {
	// Two single-predicate scans whose canonical strings concatenate
	// identically must still fingerprint differently.
	a := Snapshot([]*predicate.Node{
		predicate.Equal(predicate.Column("a", predicate.TypeString), predicate.Literal("bc", predicate.TypeString)),
	}, nil, sharing.VersionSelector{})
	b := Snapshot([]*predicate.Node{
		predicate.Equal(predicate.Column("ab", predicate.TypeString), predicate.Literal("c", predicate.TypeString)),
	}, nil, sharing.VersionSelector{})
	assert.NotEqual(t, a, b)
}

func TestChangeRange_HashesOnlyTheRange(t *testing.T) {
	a := ChangeRange(sharing.ChangeRange{StartingVersion: int64Ptr(0), EndingVersion: int64Ptr(3)})
	b := ChangeRange(sharing.ChangeRange{StartingVersion: int64Ptr(0), EndingVersion: int64Ptr(3)})
	require.Equal(t, a, b)
	assert.Regexp(t, hexPattern, a)

	assert.NotEqual(t, a, ChangeRange(sharing.ChangeRange{StartingVersion: int64Ptr(0), EndingVersion: int64Ptr(4)}))
	assert.NotEqual(t, a, ChangeRange(sharing.ChangeRange{StartingVersion: int64Ptr(1), EndingVersion: int64Ptr(3)}))
	assert.NotEqual(t, a, ChangeRange(sharing.ChangeRange{StartingVersion: int64Ptr(0)}))
	assert.NotEqual(t, a, ChangeRange(sharing.ChangeRange{StartingTimestamp: "2021-04-28 00:00:00"}))
}

func TestChangeRange_DisjointFromSnapshot(t *testing.T) {
	// A change scan over [0,3] must never share a partition with a
	// snapshot scan, whatever its parameters.
	cdf := ChangeRange(sharing.ChangeRange{StartingVersion: int64Ptr(0), EndingVersion: int64Ptr(3)})
	snap := Snapshot(nil, nil, sharing.VersionSelector{Version: int64Ptr(3)})
	assert.NotEqual(t, cdf, snap)
}
