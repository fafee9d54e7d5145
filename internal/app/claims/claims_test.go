package claims

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephis-org/zephis-core/internal/app/circuits"
)

func TestLookupKnownClaims(t *testing.T) {
	s := Lookup("balance_greater_than")
	assert.Equal(t, DataTypeNumeric, s.DataType)
	assert.Equal(t, KindComparison, s.Kind)
	assert.Equal(t, circuits.OpGreaterThan, s.Op)

	s = Lookup("balance_in_range")
	assert.Equal(t, circuits.OpRange, s.Op)

	s = Lookup("currency_matches")
	assert.Equal(t, DataTypeString, s.DataType)
	assert.Equal(t, KindPattern, s.Kind)
	assert.Nil(t, s.Derive)
}

func TestLookupUnknownClaimFallsBack(t *testing.T) {
	s := Lookup("owns_a_yacht")
	assert.False(t, IsKnown("owns_a_yacht"))
	assert.Equal(t, DataTypeNumeric, s.DataType)
	assert.Equal(t, KindComparison, s.Kind)

	// The fallback value is 0, so a threshold claim can never pass.
	v, err := s.Derive("1000000")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestDeriveNumeric(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"1000", 1000},
		{"$1,234.56", 1234},
		{"€99", 99},
		{" 42 ", 42},
		{"2.5k", 2500},
		{"1.2m", 1_200_000},
		{"3b", 3_000_000_000},
		{"10K", 10_000},
		{"0", 0},
		{"-50", 0}, // negative clamps to zero
	}
	for _, tc := range cases {
		v, err := deriveNumeric(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, v, tc.raw)
	}

	_, err := deriveNumeric("")
	assert.Error(t, err)
	_, err = deriveNumeric("abc")
	assert.Error(t, err)
}

func TestDeriveBoolean(t *testing.T) {
	for _, truthy := range []string{"true", "Yes", "1", "verified", "ACTIVE"} {
		v, err := deriveBoolean(truthy)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v, truthy)
	}
	for _, falsy := range []string{"false", "no", "0", "", "banana"} {
		v, err := deriveBoolean(falsy)
		require.NoError(t, err)
		assert.Equal(t, int64(0), v, falsy)
	}
}

func TestDeriveInfluencer(t *testing.T) {
	v, err := deriveInfluencer("15.2k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = deriveInfluencer("10000")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v, "floor is exclusive")

	v, err = deriveInfluencer("999")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestDeriveRecentActivity(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"today", 1},
		{"yesterday", 1},
		{"3 days ago", 1},
		{"29 days ago", 1},
		{"30 days ago", 0},
		{"120 days ago", 0},
		{"5", 1},
		{"", 0},
	}
	for _, tc := range cases {
		v, err := deriveRecentActivity(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, v, tc.raw)
	}
}

func TestKnownCoversRegistry(t *testing.T) {
	names := Known()
	assert.Len(t, names, 8)
	for _, name := range names {
		assert.True(t, IsKnown(name))
	}
}

func TestIsBooleanShaped(t *testing.T) {
	for _, raw := range []string{"true", "FALSE", " yes ", "0", "verified", "off"} {
		assert.True(t, IsBooleanShaped(raw), raw)
	}
	for _, raw := range []string{"", "maybe", "1000", "$5"} {
		assert.False(t, IsBooleanShaped(raw), raw)
	}
}
