package assets

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephis-org/zephis-core/internal/app/circuits"
)

func TestSignatureRoundTrip(t *testing.T) {
	config := CircuitConfig{DataType: "numeric", ClaimKind: "comparison", MaxDataLength: 32}
	assert.Equal(t, "generic_numeric_comparison_32", config.Signature())

	parsed, err := ParseSignature("generic_numeric_comparison_32")
	require.NoError(t, err)
	assert.Equal(t, config, parsed)
}

func TestParseSignatureCompoundKind(t *testing.T) {
	parsed, err := ParseSignature("generic_string_pattern_match_64")
	require.NoError(t, err)
	assert.Equal(t, "string", parsed.DataType)
	assert.Equal(t, "pattern_match", parsed.ClaimKind)
	assert.Equal(t, 64, parsed.MaxDataLength)
}

func TestParseSignatureRejectsMalformed(t *testing.T) {
	for _, sig := range []string{"", "generic", "generic_numeric_comparison", "custom_numeric_comparison_32", "generic_numeric_comparison_zero", "generic_numeric_comparison_0"} {
		_, err := ParseSignature(sig)
		assert.Error(t, err, sig)
	}
}

func TestLegacyConfigLookup(t *testing.T) {
	config, ok := LegacyConfig("balance_proof")
	require.True(t, ok)
	assert.Equal(t, "numeric", config.DataType)
	assert.Equal(t, 16, config.MaxDataLength)

	// Legacy names never look like signatures.
	for name := range legacyCircuits {
		_, err := ParseSignature(name)
		assert.Error(t, err, name)
	}

	_, ok = LegacyConfig("generic_numeric_comparison_8")
	assert.False(t, ok)
}

func TestConfigParamsScaleWithWidth(t *testing.T) {
	p := CircuitConfig{DataType: "numeric", ClaimKind: "comparison", MaxDataLength: 8}.Params()
	assert.Equal(t, 8, p.MaxDataLength)
	assert.Equal(t, 16, p.MaxTLSLength)
	assert.Equal(t, 8, p.MaxPattern)

	p = CircuitConfig{DataType: "string", ClaimKind: "pattern", MaxDataLength: 64}.Params()
	assert.Equal(t, 64, p.MaxDataLength)
	assert.Equal(t, 128, p.MaxTLSLength)
}

// countingCompiler fabricates entries and records how many real compilations
// happened, so cache behavior can be tested without the cost of Groth16.
type countingCompiler struct {
	compiles atomic.Int64
	fail     atomic.Bool
	delay    time.Duration
}

func (c *countingCompiler) Compile(config CircuitConfig) (*Entry, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.fail.Load() {
		return nil, errors.New("compile failed")
	}
	c.compiles.Add(1)
	return &Entry{Config: config}, nil
}

func numericConfig(width int) CircuitConfig {
	return CircuitConfig{DataType: "numeric", ClaimKind: "comparison", MaxDataLength: width}
}

func TestCacheCompilesOnce(t *testing.T) {
	compiler := &countingCompiler{}
	cache := NewCache(compiler, 4)

	a, err := cache.Get(numericConfig(32))
	require.NoError(t, err)
	b, err := cache.Get(numericConfig(32))
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, int64(1), compiler.compiles.Load())
}

func TestCacheDeduplicatesConcurrentCompiles(t *testing.T) {
	compiler := &countingCompiler{delay: 50 * time.Millisecond}
	cache := NewCache(compiler, 4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(numericConfig(32))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), compiler.compiles.Load())
}

func TestCacheDoesNotRetainFailures(t *testing.T) {
	compiler := &countingCompiler{}
	compiler.fail.Store(true)
	cache := NewCache(compiler, 4)

	_, err := cache.Get(numericConfig(32))
	require.Error(t, err)
	assert.False(t, cache.Contains("generic_numeric_comparison_32"))

	// A later attempt succeeds once the underlying cause is gone.
	compiler.fail.Store(false)
	_, err = cache.Get(numericConfig(32))
	require.NoError(t, err)
	assert.True(t, cache.Contains("generic_numeric_comparison_32"))
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	compiler := &countingCompiler{}
	cache := NewCache(compiler, 2)

	_, err := cache.Get(numericConfig(8))
	require.NoError(t, err)
	_, err = cache.Get(numericConfig(16))
	require.NoError(t, err)

	// Touch 8 so 16 becomes the eviction candidate.
	_, err = cache.Get(numericConfig(8))
	require.NoError(t, err)

	_, err = cache.Get(numericConfig(32))
	require.NoError(t, err)

	assert.True(t, cache.Contains("generic_numeric_comparison_8"))
	assert.False(t, cache.Contains("generic_numeric_comparison_16"))
	assert.True(t, cache.Contains("generic_numeric_comparison_32"))
	assert.Equal(t, 2, cache.Len())
}

// keyedCompiler fabricates a fresh key pair per compilation, the way a real
// Groth16 setup would.
type keyedCompiler struct {
	compiles atomic.Int64
}

func (c *keyedCompiler) Compile(config CircuitConfig) (*Entry, error) {
	c.compiles.Add(1)
	return &Entry{
		Config:       config,
		ProvingKey:   groth16.NewProvingKey(circuits.CurveID),
		VerifyingKey: groth16.NewVerifyingKey(circuits.CurveID),
	}, nil
}

// Proofs issued under a signature must keep verifying after its entry is
// evicted and recompiled, so the key pair has to survive eviction.
func TestCacheRetainsKeysAcrossEviction(t *testing.T) {
	compiler := &keyedCompiler{}
	cache := NewCache(compiler, 4)

	first, err := cache.Get(numericConfig(8))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, 1, cache.SweepOlderThan(time.Nanosecond))
	require.False(t, cache.Contains("generic_numeric_comparison_8"))

	second, err := cache.Get(numericConfig(8))
	require.NoError(t, err)
	assert.Equal(t, int64(2), compiler.compiles.Load())

	assert.NotSame(t, first, second)
	assert.Same(t, first.ProvingKey, second.ProvingKey)
	assert.Same(t, first.VerifyingKey, second.VerifyingKey)
}

func TestCacheSweepOlderThan(t *testing.T) {
	compiler := &countingCompiler{}
	cache := NewCache(compiler, 4)

	_, err := cache.Get(numericConfig(8))
	require.NoError(t, err)
	_, err = cache.Get(numericConfig(16))
	require.NoError(t, err)

	assert.Zero(t, cache.SweepOlderThan(time.Hour))

	time.Sleep(10 * time.Millisecond)
	dropped := cache.SweepOlderThan(time.Nanosecond)
	assert.Equal(t, 2, dropped)
	assert.Zero(t, cache.Len())
}
