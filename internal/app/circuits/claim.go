package circuits

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// Params fixes the array widths of a claim circuit. Each distinct parameter
// set compiles to a distinct constraint system (and Groth16 key pair).
type Params struct {
	MaxDataLength   int
	MaxTLSLength    int
	MaxPattern      int
	MaxTemplateData int
	MaxDomains      int
}

// DefaultParams mirrors the generic circuit shape: 32 data bytes, 16-element
// claim/pattern arrays, 64 bytes of session evidence.
func DefaultParams() Params {
	return Params{
		MaxDataLength:   32,
		MaxTLSLength:    64,
		MaxPattern:      16,
		MaxTemplateData: 16,
		MaxDomains:      4,
	}
}

func (p Params) validate() error {
	if p.MaxDataLength <= 0 || p.MaxTLSLength <= 0 || p.MaxPattern <= 0 ||
		p.MaxTemplateData <= 0 || p.MaxDomains <= 0 {
		return fmt.Errorf("claim circuit params must be positive: %+v", p)
	}
	return nil
}

// timestampBytes is the number of leading extracted-data bytes read back as a
// little-endian capture timestamp. This layout is a protocol convention the
// witness builder must uphold; see the boundary tests.
const timestampBytes = 8

// ClaimCircuit is the generic claim circuit: it commits to the private
// extracted data and TLS session bytes, proves the template authentic for the
// asserted domain, evaluates the claim comparison and checks the embedded
// timestamp freshness window. ProofValid is the AND of all checks and is 0
// for empty data.
type ClaimCircuit struct {
	// Private witness.
	ExtractedData  []frontend.Variable
	TLSSessionData []frontend.Variable
	DataLength     frontend.Variable
	TLSLength      frontend.Variable
	Pattern        []frontend.Variable
	PatternLength  frontend.Variable
	Template       TemplateWitness

	// Public inputs.
	TemplateHash   frontend.Variable `gnark:",public"`
	ClaimType      frontend.Variable `gnark:",public"`
	ThresholdValue frontend.Variable `gnark:",public"`
	ThresholdMax   frontend.Variable `gnark:",public"`
	DomainHash     frontend.Variable `gnark:",public"`
	TimestampMin   frontend.Variable `gnark:",public"`
	TimestampMax   frontend.Variable `gnark:",public"`

	// Public outputs, asserted against the recomputed values.
	ProofValid  frontend.Variable `gnark:",public"`
	DataHash    frontend.Variable `gnark:",public"`
	SessionHash frontend.Variable `gnark:",public"`

	params Params
}

// NewClaimCircuit allocates a circuit shell (and witness assignments) for the
// given parameter set.
func NewClaimCircuit(p Params) (*ClaimCircuit, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &ClaimCircuit{
		ExtractedData:  make([]frontend.Variable, p.MaxDataLength),
		TLSSessionData: make([]frontend.Variable, p.MaxTLSLength),
		Pattern:        make([]frontend.Variable, p.MaxPattern),
		Template:       NewTemplateWitness(p.MaxTemplateData, p.MaxDomains),
		params:         p,
	}, nil
}

func (c *ClaimCircuit) Define(api frontend.API) error {
	return defineClaim(api, c, c.ClaimType)
}

// defineClaim holds the shared constraint logic so fixed-parameter
// specializations can substitute a constant claim type without duplicating
// anything.
func defineClaim(api frontend.API, c *ClaimCircuit, claimType frontend.Variable) error {
	api.AssertIsLessOrEqual(c.DataLength, len(c.ExtractedData))
	api.AssertIsLessOrEqual(c.TLSLength, len(c.TLSSessionData))

	h, err := NewPoseidon2(api)
	if err != nil {
		return err
	}

	dataHash := commitBytes(api, h, c.ExtractedData, c.DataLength)
	api.AssertIsEqual(c.DataHash, dataHash)

	sessionHash := commitBytes(api, h, c.TLSSessionData, c.TLSLength)
	api.AssertIsEqual(c.SessionHash, sessionHash)

	extractedTS := extractTimestamp(api, c.ExtractedData)
	templateValid := ValidateTemplate(api, h, c.Template, c.TemplateHash, c.DomainHash, extractedTS)

	comparison := EvaluateComparison(api, ComparatorInputs{
		ClaimType:     claimType,
		Threshold:     c.ThresholdValue,
		ThresholdMax:  c.ThresholdMax,
		Data:          c.ExtractedData,
		DataLength:    c.DataLength,
		Pattern:       c.Pattern,
		PatternLength: c.PatternLength,
	})

	timestampValid := api.Mul(
		isLessOrEqual(api, c.TimestampMin, extractedTS),
		isLessOrEqual(api, extractedTS, c.TimestampMax),
	)

	nonEmpty := api.Sub(1, api.IsZero(c.DataLength))

	valid := api.Mul(api.Mul(templateValid, comparison), api.Mul(timestampValid, nonEmpty))
	api.AssertIsEqual(c.ProofValid, valid)
	return nil
}

// commitBytes hashes a fixed-width byte array with its used length as leading
// element. The width is part of the commitment, which pins each digest to one
// circuit parameter set.
func commitBytes(api frontend.API, h *Permutation, data []frontend.Variable, length frontend.Variable) frontend.Variable {
	inputs := make([]frontend.Variable, 0, len(data)+1)
	inputs = append(inputs, length)
	inputs = append(inputs, data...)
	return h.Fold(inputs...)
}

// extractTimestamp reads the first 8 bytes of the data array as a
// little-endian integer, the same positional weighting the comparator uses.
func extractTimestamp(api frontend.API, data []frontend.Variable) frontend.Variable {
	var ts frontend.Variable = 0
	weight := big.NewInt(1)
	byteBase := big.NewInt(256)
	limit := timestampBytes
	if limit > len(data) {
		limit = len(data)
	}
	for i := 0; i < limit; i++ {
		ts = api.Add(ts, api.Mul(data[i], new(big.Int).Set(weight)))
		weight.Mul(weight, byteBase)
	}
	return ts
}

// BalanceClaimCircuit is the fixed-parameter balance specialization: smaller
// arrays and the claim type hard-wired to greater-than. Pure partial
// application of the generic circuit.
type BalanceClaimCircuit struct {
	Inner ClaimCircuit
}

// BalanceParams is the parameter set the balance specialization compiles with.
func BalanceParams() Params {
	return Params{
		MaxDataLength:   16,
		MaxTLSLength:    32,
		MaxPattern:      8,
		MaxTemplateData: 8,
		MaxDomains:      4,
	}
}

func NewBalanceClaimCircuit() *BalanceClaimCircuit {
	inner, err := NewClaimCircuit(BalanceParams())
	if err != nil {
		panic(err)
	}
	return &BalanceClaimCircuit{Inner: *inner}
}

func (c *BalanceClaimCircuit) Define(api frontend.API) error {
	return defineClaim(api, &c.Inner, OpGreaterThan)
}

// FollowerClaimCircuit hard-codes greater-than over the follower-count shape.
type FollowerClaimCircuit struct {
	Inner ClaimCircuit
}

func FollowerParams() Params {
	return Params{
		MaxDataLength:   16,
		MaxTLSLength:    32,
		MaxPattern:      8,
		MaxTemplateData: 8,
		MaxDomains:      4,
	}
}

func NewFollowerClaimCircuit() *FollowerClaimCircuit {
	inner, err := NewClaimCircuit(FollowerParams())
	if err != nil {
		panic(err)
	}
	return &FollowerClaimCircuit{Inner: *inner}
}

func (c *FollowerClaimCircuit) Define(api frontend.API) error {
	return defineClaim(api, &c.Inner, OpGreaterThan)
}
