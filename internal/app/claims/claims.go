// Package claims defines the closed set of supported claim kinds and the
// normalization of raw extracted values into the integers the constraint
// system compares.
package claims

import (
	"github.com/zephis-org/zephis-core/internal/app/circuits"
	"github.com/zephis-org/zephis-core/pkg/logger"
)

// DataType classifies how the extracted value is encoded into witness bytes.
type DataType int

const (
	DataTypeNumeric DataType = iota
	DataTypeString
	DataTypeBoolean
)

func (d DataType) String() string {
	switch d {
	case DataTypeNumeric:
		return "numeric"
	case DataTypeString:
		return "string"
	case DataTypeBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Kind classifies the proof statement shape.
type Kind int

const (
	KindComparison Kind = iota
	KindExistence
	KindPattern
)

func (k Kind) String() string {
	switch k {
	case KindComparison:
		return "comparison"
	case KindExistence:
		return "existence"
	case KindPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// Spec ties a claim name to its data type, statement kind and comparator
// operation. Derive computes the actual witness value from the raw extracted
// string; for existence claims it yields 0 or 1.
type Spec struct {
	Name     string
	DataType DataType
	Kind     Kind
	Op       int
	Derive   func(raw string) (int64, error)
}

// specs is the closed claim registry. Unknown claim names fall back to a
// numeric comparison spec with actual value 0, which can only produce an
// invalid proof, never a false positive.
var specs = map[string]Spec{
	"balance_greater_than": {
		Name: "balance_greater_than", DataType: DataTypeNumeric, Kind: KindComparison,
		Op: circuits.OpGreaterThan, Derive: deriveNumeric,
	},
	"balance_in_range": {
		Name: "balance_in_range", DataType: DataTypeNumeric, Kind: KindComparison,
		Op: circuits.OpRange, Derive: deriveNumeric,
	},
	"followers_greater_than": {
		Name: "followers_greater_than", DataType: DataTypeNumeric, Kind: KindComparison,
		Op: circuits.OpGreaterThan, Derive: deriveNumeric,
	},
	"followers_in_range": {
		Name: "followers_in_range", DataType: DataTypeNumeric, Kind: KindComparison,
		Op: circuits.OpRange, Derive: deriveNumeric,
	},
	"is_verified": {
		Name: "is_verified", DataType: DataTypeBoolean, Kind: KindExistence,
		Op: circuits.OpEqual, Derive: deriveBoolean,
	},
	"is_influencer": {
		Name: "is_influencer", DataType: DataTypeBoolean, Kind: KindExistence,
		Op: circuits.OpEqual, Derive: deriveInfluencer,
	},
	"has_recent_activity": {
		Name: "has_recent_activity", DataType: DataTypeBoolean, Kind: KindExistence,
		Op: circuits.OpEqual, Derive: deriveRecentActivity,
	},
	"currency_matches": {
		Name: "currency_matches", DataType: DataTypeString, Kind: KindPattern,
		Op: circuits.OpContains, Derive: nil,
	},
}

// influencerFollowerFloor is the follower count at which an account counts as
// an influencer.
const influencerFollowerFloor = 10_000

// recentActivityMaxDays bounds how old the last activity may be to still
// count as recent.
const recentActivityMaxDays = 30

// Lookup resolves a claim name to its spec. Unknown names return the numeric
// comparison fallback and log a warning, matching the fail-closed posture of
// the circuits.
func Lookup(name string) Spec {
	if s, ok := specs[name]; ok {
		return s
	}
	logger.Default().Warnf("unknown claim type %q, falling back to numeric comparison", name)
	return Spec{
		Name:     name,
		DataType: DataTypeNumeric,
		Kind:     KindComparison,
		Op:       circuits.OpGreaterThan,
		Derive:   func(string) (int64, error) { return 0, nil },
	}
}

// IsKnown reports whether the claim name is part of the closed registry.
func IsKnown(name string) bool {
	_, ok := specs[name]
	return ok
}

// Known lists the registered claim names, for support discovery.
func Known() []string {
	out := make([]string, 0, len(specs))
	for name := range specs {
		out = append(out, name)
	}
	return out
}
