package prover

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephis-org/zephis-core/internal/app/assets"
	"github.com/zephis-org/zephis-core/internal/app/registry"
	"github.com/zephis-org/zephis-core/internal/app/template"
)

const accountPage = `
<html><body>
  <div id="account-balance">$1,000.00</div>
  <div id="currency">USD</div>
</body></html>`

func bankTemplate() *template.Template {
	return &template.Template{
		ID:      7,
		Domain:  "bank.example.com",
		Name:    "account",
		Version: "1.2.3",
		Selectors: map[string]string{
			"balance":  `id="account-balance"`,
			"currency": `id="currency"`,
		},
		Extractors: map[string]string{
			"balance_greater_than": "number:balance",
		},
		Circuit: template.CircuitSpec{
			DataType:      "numeric",
			ClaimKind:     "comparison",
			MaxDataLength: 8,
		},
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidUntil: time.Now().Add(24 * time.Hour),
	}
}

var (
	fixtureOnce   sync.Once
	fixtureProver *Prover
	fixtureErr    error
)

// newTestProver shares one compiled circuit across the package's tests;
// Groth16 setup is far too slow to repeat per test.
func newTestProver(t *testing.T) *Prover {
	t.Helper()
	fixtureOnce.Do(func() {
		reg := registry.New()
		if _, err := reg.Register(bankTemplate()); err != nil {
			fixtureErr = err
			return
		}
		cache := assets.NewCache(assets.NewGnarkCompiler(), 4)
		fixtureProver, fixtureErr = New(Config{
			Registry: reg,
			Cache:    cache,
		})
	})
	require.NoError(t, fixtureErr)
	return fixtureProver
}

func balanceRequest(threshold int64) ProofRequest {
	return ProofRequest{
		RequestID:    "req-1",
		Domain:       "bank.example.com",
		TemplateName: "account",
		ClaimName:    "balance_greater_than",
		Threshold:    threshold,
		Content:      accountPage,
		URL:          "https://bank.example.com/account",
	}
}

func TestGenerateAndVerifyProof(t *testing.T) {
	p := newTestProver(t)
	ctx := context.Background()

	result, err := p.GenerateProof(ctx, balanceRequest(500))
	require.NoError(t, err)
	require.NotNil(t, result.Proof)

	assert.Equal(t, "generic_numeric_comparison_8", result.Signature)
	assert.Equal(t, "bank.example.com", result.Domain)
	assert.NotEqual(t, result.ID, result.SessionID)
	assert.Len(t, result.Proof.PublicInputs, 10)

	// The document describes itself: verification needs nothing from the
	// surrounding result.
	meta := result.Proof.Metadata
	assert.Equal(t, result.Signature, meta.CircuitID)
	assert.Equal(t, result.SessionID.String(), meta.SessionID)
	assert.Equal(t, "account", meta.Template)
	assert.Equal(t, "balance_greater_than", meta.Claim)
	assert.Equal(t, "bank.example.com", meta.Domain)
	assert.Equal(t, result.GeneratedAt.Unix(), meta.Timestamp)

	ok, err := p.VerifyProof(ctx, result)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.VerifyProofDocument(ctx, result.Proof)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateProofFailsWhenClaimDoesNotHold(t *testing.T) {
	p := newTestProver(t)

	// Balance is 1000; a threshold above it has no satisfying witness.
	_, err := p.GenerateProof(context.Background(), balanceRequest(5000))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProving)
}

func TestVerifyRejectsTamperedPublicInput(t *testing.T) {
	p := newTestProver(t)
	ctx := context.Background()

	result, err := p.GenerateProof(ctx, balanceRequest(500))
	require.NoError(t, err)

	tampered := *result
	doc := *result.Proof
	doc.PublicInputs = append([]string{}, result.Proof.PublicInputs...)
	doc.PublicInputs[2] = "1" // pretend the proven threshold was lower
	tampered.Proof = &doc

	ok, err := p.VerifyProof(ctx, &tampered)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsTamperedProofPoint(t *testing.T) {
	p := newTestProver(t)
	ctx := context.Background()

	result, err := p.GenerateProof(ctx, balanceRequest(500))
	require.NoError(t, err)

	tampered := *result
	doc := *result.Proof
	doc.A[0] = "12345"
	tampered.Proof = &doc

	ok, _ := p.VerifyProof(ctx, &tampered)
	assert.False(t, ok)
}

func TestVerifyFailsClosed(t *testing.T) {
	p := newTestProver(t)
	ctx := context.Background()

	ok, err := p.VerifyProof(ctx, nil)
	assert.False(t, ok)
	assert.Error(t, err)

	ok, err = p.VerifyProof(ctx, &ProofResult{})
	assert.False(t, ok)
	assert.Error(t, err)

	ok, err = p.VerifyProofDocument(ctx, nil)
	assert.False(t, ok)
	assert.Error(t, err)

	// An empty or unresolvable circuit id cannot reach a verifying key.
	ok, err = p.VerifyProofDocument(ctx, &ZKProof{Protocol: protocolGroth16, Curve: curveName})
	assert.False(t, ok)
	assert.Error(t, err)

	unresolvable := &ZKProof{
		Protocol: protocolGroth16,
		Curve:    curveName,
		Metadata: ProofMetadata{CircuitID: "not-a-signature"},
	}
	ok, err = p.VerifyProofDocument(ctx, unresolvable)
	assert.False(t, ok)
	assert.Error(t, err)

	result, err := p.GenerateProof(ctx, balanceRequest(500))
	require.NoError(t, err)
	wrongBackend := &ZKProof{Protocol: "plonk", Curve: curveName, Metadata: result.Proof.Metadata}
	ok, err = p.VerifyProofDocument(ctx, wrongBackend)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestProofExportImportRoundTrip(t *testing.T) {
	p := newTestProver(t)
	ctx := context.Background()

	result, err := p.GenerateProof(ctx, balanceRequest(500))
	require.NoError(t, err)

	raw, err := ExportProof(result.Proof)
	require.NoError(t, err)

	imported, err := ImportProof(raw)
	require.NoError(t, err)
	assert.Equal(t, result.Proof, imported)
	assert.Equal(t, result.Proof.Metadata, imported.Metadata)

	ok, err := p.VerifyProofDocument(ctx, imported)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestImportProofRejectsMalformed(t *testing.T) {
	_, err := ImportProof([]byte("not json"))
	assert.Error(t, err)

	_, err = ImportProof([]byte(`{"protocol":"groth16","curve":"bls12-381"}`))
	assert.Error(t, err)

	_, err = ImportProof([]byte(`{"protocol":"groth16","curve":"bn254","publicInputs":["xyz"]}`))
	assert.Error(t, err)
}

func TestBorshBlobRoundTrip(t *testing.T) {
	p := newTestProver(t)
	ctx := context.Background()

	result, err := p.GenerateProof(ctx, balanceRequest(500))
	require.NoError(t, err)

	proof, publicWitness, err := UnmarshalProof(result.Proof)
	require.NoError(t, err)

	blob, err := SerializeBorsh(proof, publicWitness)
	require.NoError(t, err)
	assert.NotEmpty(t, blob)

	restoredProof, restoredWitness, err := DeserializeBorsh(blob)
	require.NoError(t, err)

	restored, err := MarshalProof(restoredProof, restoredWitness)
	require.NoError(t, err)
	assert.Equal(t, result.Proof.A, restored.A)
	assert.Equal(t, result.Proof.B, restored.B)
	assert.Equal(t, result.Proof.C, restored.C)
	assert.Equal(t, result.Proof.PublicInputs, restored.PublicInputs)
}

// TestAdvisoryAndBindingHashesDiffer pins the deliberate asymmetry in the
// pipeline: the circuit input carries a sha256-based routing fingerprint
// while the public inputs carry the in-circuit Poseidon commitment. They
// identify the same bytes but must never be compared to each other.
func TestAdvisoryAndBindingHashesDiffer(t *testing.T) {
	p := newTestProver(t)

	result, err := p.GenerateProof(context.Background(), balanceRequest(500))
	require.NoError(t, err)

	poseidonDataHash := result.Proof.PublicInputs[8]
	assert.NotEqual(t, result.Input.DataHash, poseidonDataHash)
	assert.NotEmpty(t, result.Input.DataHash)
}

func TestPublicInputConventions(t *testing.T) {
	p := newTestProver(t)

	result, err := p.GenerateProof(context.Background(), balanceRequest(500))
	require.NoError(t, err)

	publics := result.Proof.PublicInputs
	require.Len(t, publics, 10)
	assert.Equal(t, "500", publics[2], "threshold")
	assert.Equal(t, "0", publics[5], "timestamp window is wide open in this flow")
	assert.Equal(t, "1", publics[7], "proofs of invalid claims are never emitted")
}

func TestGenerateProofBatchIsolation(t *testing.T) {
	p := newTestProver(t)

	good := balanceRequest(500)
	bad := balanceRequest(500)
	bad.TemplateName = "missing"

	items := p.GenerateProofBatch(context.Background(), []ProofRequest{good, bad})
	require.Len(t, items, 2)

	require.NoError(t, items[0].Err)
	assert.NotNil(t, items[0].Result)

	require.Error(t, items[1].Err)
	assert.ErrorIs(t, items[1].Err, ErrConfiguration)
	assert.Nil(t, items[1].Result)
}

func TestGenerateProofRejectedDataIsValidationError(t *testing.T) {
	p := newTestProver(t)

	// The bank template does not extract this claim, so validation rejects
	// the request before any proving work.
	req := balanceRequest(0)
	req.ClaimName = "currency_matches"
	_, err := p.GenerateProof(context.Background(), req)
	require.Error(t, err)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.NotEmpty(t, validation.Violations)
	assert.NotErrorIs(t, err, ErrProving)
}

func TestGenerateProofUnknownTemplate(t *testing.T) {
	p := newTestProver(t)
	req := balanceRequest(500)
	req.TemplateName = "nope"
	_, err := p.GenerateProof(context.Background(), req)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, template.ErrNotFound)
}

func TestGenerateProofExpiredTemplate(t *testing.T) {
	reg := registry.New()
	expired := bankTemplate()
	expired.ValidUntil = time.Now().Add(-time.Minute)
	_, err := reg.Register(expired)
	require.NoError(t, err)

	p, err := New(Config{Registry: reg, Cache: assets.NewCache(assets.NewGnarkCompiler(), 2)})
	require.NoError(t, err)

	_, err = p.GenerateProof(context.Background(), balanceRequest(500))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestProveTimeout(t *testing.T) {
	reg := registry.New()
	_, err := reg.Register(bankTemplate())
	require.NoError(t, err)

	p, err := New(Config{
		Registry:     reg,
		Cache:        assets.NewCache(assets.NewGnarkCompiler(), 2),
		ProveTimeout: time.Nanosecond,
	})
	require.NoError(t, err)

	_, err = p.GenerateProof(context.Background(), balanceRequest(500))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProving)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSupportDiscovery(t *testing.T) {
	p := newTestProver(t)

	assert.True(t, p.IsClaimSupported("bank.example.com", "balance_greater_than"))
	assert.False(t, p.IsClaimSupported("bank.example.com", "is_verified"))
	assert.False(t, p.IsClaimSupported("nowhere.example.com", "balance_greater_than"))

	info, err := p.GetCircuitInfo("bank.example.com", "account", "balance_greater_than")
	require.NoError(t, err)
	assert.Equal(t, "generic_numeric_comparison_8", info.Signature)
	assert.Equal(t, 8, info.MaxDataLength)

	_, err = p.GetCircuitInfo("bank.example.com", "missing", "balance_greater_than")
	assert.Error(t, err)
}

func TestEncodeVersion(t *testing.T) {
	assert.Equal(t, uint64(1_002_003), EncodeVersion("1.2.3"))
	assert.Equal(t, uint64(2_000_000), EncodeVersion("2"))
	assert.Equal(t, uint64(0), EncodeVersion("garbage"))
	assert.Equal(t, uint64(1_000_000), EncodeVersion("1.garbage"))
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New(Config{Registry: registry.New()})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRegisterTemplateThroughProver(t *testing.T) {
	p := newTestProver(t)

	social := bankTemplate()
	social.Domain = "social.example.com"
	social.Extractors = map[string]string{"followers_greater_than": "number:balance"}
	require.NoError(t, p.RegisterTemplate(social))

	assert.True(t, p.IsClaimSupported("social.example.com", "followers_greater_than"))

	// Re-registering is replacement, not an error.
	require.NoError(t, p.RegisterTemplate(social))
}
