package prover

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"

	"github.com/zephis-org/zephis-core/internal/app/circuits"
	"github.com/zephis-org/zephis-core/internal/app/claims"
	"github.com/zephis-org/zephis-core/internal/app/mapper"
)

// TemplateIdentity carries the template fields committed into the proof.
type TemplateIdentity struct {
	ID      uint64
	Version string
	Domains []string
	Payload []byte
}

// WitnessInputs is everything the assignment builder needs for one proof.
type WitnessInputs struct {
	Input    *mapper.CircuitInput
	Claim    claims.Spec
	Pattern  []byte
	Domain   string
	Template TemplateIdentity
	Evidence []byte
}

// wideOpenBound sits above any value an 8-byte little-endian prefix can
// take, so in-circuit freshness and template-window checks are vacuous for
// the standard flow. The authoritative freshness rule is the off-circuit
// mapper validation; circuits compiled for timestamped data pass real
// bounds instead.
func wideOpenBound() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 70)
}

func wideOpenBoundFr() fr.Element {
	var e fr.Element
	e.SetBigInt(wideOpenBound())
	return e
}

// BuildAssignment constructs the full claim circuit assignment for the given
// parameter set. The returned assignment has ProofValid fixed to 1: proving
// fails outright when the claim does not hold, rather than emitting a proof
// of falsity.
func BuildAssignment(p circuits.Params, in WitnessInputs) (*circuits.ClaimCircuit, error) {
	if in.Input == nil {
		return nil, fmt.Errorf("no circuit input")
	}
	if in.Input.DataLength <= 0 || in.Input.DataLength > p.MaxDataLength {
		return nil, fmt.Errorf("data length %d does not fit circuit width %d", in.Input.DataLength, p.MaxDataLength)
	}
	if len(in.Pattern) > p.MaxPattern {
		return nil, fmt.Errorf("pattern of %d bytes exceeds circuit width %d", len(in.Pattern), p.MaxPattern)
	}
	if in.Domain == "" {
		return nil, fmt.Errorf("no domain to bind the proof to")
	}

	w, err := circuits.NewClaimCircuit(p)
	if err != nil {
		return nil, err
	}

	dataBytes := make([]byte, in.Input.DataLength)
	for i := 0; i < in.Input.DataLength; i++ {
		b := in.Input.Data[i]
		if b < 0 || b > 255 {
			return nil, fmt.Errorf("data[%d] = %d is not a byte", i, b)
		}
		dataBytes[i] = byte(b)
	}

	evidence := in.Evidence
	if len(evidence) > p.MaxTLSLength {
		evidence = evidence[:p.MaxTLSLength]
	}

	w.DataLength = len(dataBytes)
	w.TLSLength = len(evidence)
	w.PatternLength = len(in.Pattern)
	assignBytes(w.ExtractedData, dataBytes)
	assignBytes(w.TLSSessionData, evidence)
	assignBytes(w.Pattern, in.Pattern)

	tw, templateHash := buildTemplateWitness(p, in.Template)
	w.Template = tw

	w.TemplateHash = templateHash
	w.ClaimType = in.Claim.Op
	w.ThresholdValue = thresholdValue(in.Input)
	w.ThresholdMax = in.Input.ThresholdMax
	w.DomainHash = circuits.HashDomain(in.Domain)
	w.TimestampMin = 0
	w.TimestampMax = wideOpenBound()
	w.ProofValid = 1
	w.DataHash = circuits.HashCommitBytes(dataBytes, p.MaxDataLength, len(dataBytes))
	w.SessionHash = circuits.HashCommitBytes(evidence, p.MaxTLSLength, len(evidence))
	return w, nil
}

// thresholdValue maps the claim threshold to the circuit input. Negative
// thresholds have no field representation on this wire and clamp to zero.
func thresholdValue(input *mapper.CircuitInput) int64 {
	if input.Threshold < 0 {
		return 0
	}
	return input.Threshold
}

func assignBytes(dst []frontend.Variable, src []byte) {
	for i := range dst {
		if i < len(src) {
			dst[i] = src[i]
		} else {
			dst[i] = 0
		}
	}
}

// buildTemplateWitness fills the committed template description and returns
// the matching commitment. The in-circuit validity window is wide open; the
// store-level validity times are enforced before proving starts.
func buildTemplateWitness(p circuits.Params, t TemplateIdentity) (circuits.TemplateWitness, fr.Element) {
	tw := circuits.NewTemplateWitness(p.MaxTemplateData, p.MaxDomains)

	payload := t.Payload
	if len(payload) > p.MaxTemplateData {
		payload = payload[:p.MaxTemplateData]
	}
	domains := t.Domains
	if len(domains) > p.MaxDomains {
		domains = domains[:p.MaxDomains]
	}
	domainHashes := make([]fr.Element, len(domains))
	for i, d := range domains {
		domainHashes[i] = circuits.HashDomain(d)
	}

	version := EncodeVersion(t.Version)
	var zero fr.Element

	tw.TemplateID = t.ID
	tw.Version = version
	tw.ValidFrom = 0
	tw.ValidUntil = wideOpenBoundFr()
	tw.DataLength = len(payload)
	tw.DomainCount = len(domains)
	for i := 0; i < p.MaxTemplateData; i++ {
		if i < len(payload) {
			tw.TemplateData[i] = payload[i]
		} else {
			tw.TemplateData[i] = 0
		}
	}
	for i := 0; i < p.MaxDomains; i++ {
		if i < len(domainHashes) {
			tw.AuthorizedDomains[i] = domainHashes[i]
		} else {
			tw.AuthorizedDomains[i] = 0
		}
	}

	hash := circuits.HashTemplate(t.ID, version, zero, wideOpenBoundFr(),
		payload, p.MaxTemplateData, domainHashes, p.MaxDomains)
	return tw, hash
}

// EncodeVersion packs a dotted version string into one integer,
// major*10^6 + minor*10^3 + patch. Unparsable segments count as zero.
func EncodeVersion(version string) uint64 {
	parts := strings.SplitN(version, ".", 3)
	var encoded uint64
	multipliers := []uint64{1_000_000, 1_000, 1}
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 64)
		if err != nil || n > 999 {
			continue
		}
		encoded += n * multipliers[i]
	}
	return encoded
}
