// Package mapper converts extracted claim values into the fixed-shape input
// document the proving pipeline consumes.
package mapper

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	"github.com/zephis-org/zephis-core/internal/app/claims"
	"github.com/zephis-org/zephis-core/internal/app/extraction"
	"github.com/zephis-org/zephis-core/pkg/logger"
)

// Fixed array widths of the circuit input document. These are a wire-format
// law: every consumer allocates exactly these widths regardless of how much
// of them is used.
const (
	DataWidth  = 32
	ClaimWidth = 16
)

// Freshness window applied to the extraction timestamp. The lower bound
// tolerates long-lived capture sessions, the upper bound tolerates clock
// skew between capturer and prover.
const (
	MaxCaptureAge = 24 * time.Hour
	MaxClockSkew  = 5 * time.Minute
)

// CircuitInput is the mapped proving request. The hash fields are advisory
// fingerprints for routing and deduplication; the binding commitments are
// recomputed over the byte arrays inside the constraint system. DataType and
// ClaimType carry the claims enum ordinals on the wire.
type CircuitInput struct {
	DataHash     string `json:"dataHash"`
	ClaimHash    string `json:"claimHash"`
	TemplateHash string `json:"templateHash"`
	Threshold    int64  `json:"threshold"`
	ThresholdMax int64  `json:"thresholdMax,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	Data         []int  `json:"data"`
	DataLength   int    `json:"dataLength"`
	Claim        []int  `json:"claim"`
	DataType     int    `json:"dataType"`
	ClaimType    int    `json:"claimType"`
	ActualValue  int64  `json:"actualValue"`
}

// Mapper builds circuit inputs from extraction results.
type Mapper struct {
	log *logger.Logger
}

func New() *Mapper {
	return &Mapper{log: logger.Default()}
}

// Convert maps one extracted value into a circuit input for the named claim.
// The raw value feeding the claim is taken from the extraction result under
// the claim's name.
func (m *Mapper) Convert(data *extraction.ExtractedData, claimName string, threshold, thresholdMax int64, templateFingerprint string) (*CircuitInput, error) {
	spec := claims.Lookup(claimName)

	raw, ok := data.Raw[claimName]
	if !ok {
		return nil, fmt.Errorf("extraction produced no value for claim %q", claimName)
	}

	var valueBytes []byte
	var actual int64
	switch spec.Kind {
	case claims.KindPattern:
		valueBytes = []byte(raw)
	default:
		derived, err := spec.Derive(raw)
		if err != nil {
			return nil, fmt.Errorf("deriving %q from %q: %w", claimName, raw, err)
		}
		actual = derived
		valueBytes = littleEndian(derived)
	}

	if len(valueBytes) > DataWidth {
		return nil, fmt.Errorf("claim value for %q is %d bytes, limit is %d", claimName, len(valueBytes), DataWidth)
	}

	claimBytes := []byte(claimName)
	if len(claimBytes) > ClaimWidth {
		claimBytes = claimBytes[:ClaimWidth]
	}

	input := &CircuitInput{
		DataHash:     Fingerprint(valueBytes),
		ClaimHash:    Fingerprint(claimBytes),
		TemplateHash: templateFingerprint,
		Threshold:    threshold,
		ThresholdMax: thresholdMax,
		Timestamp:    data.Timestamp.Unix(),
		Data:         pad(valueBytes, DataWidth),
		DataLength:   len(valueBytes),
		Claim:        pad(claimBytes, ClaimWidth),
		DataType:     int(spec.DataType),
		ClaimType:    int(spec.Kind),
		ActualValue:  actual,
	}

	m.log.Debugf("mapped claim %q (actual=%d, %d data bytes)", claimName, actual, len(valueBytes))
	return input, nil
}

// Validate checks the structural laws of a circuit input before it reaches
// the prover: exact array widths, byte-range elements, enum-range type tags
// and a fresh timestamp. Every violated law is reported in one
// ValidationError.
func (m *Mapper) Validate(input *CircuitInput) error {
	return ValidateAt(input, time.Now())
}

// ValidateAt is Validate against an explicit reference time.
func ValidateAt(input *CircuitInput, now time.Time) error {
	var violations []string
	if input.DataHash == "" || input.ClaimHash == "" || input.TemplateHash == "" {
		violations = append(violations, "missing a fingerprint field")
	}
	if input.DataType < int(claims.DataTypeNumeric) || input.DataType > int(claims.DataTypeBoolean) {
		violations = append(violations, fmt.Sprintf("data type %d is not a known encoding", input.DataType))
	}
	if input.ClaimType < int(claims.KindComparison) || input.ClaimType > int(claims.KindPattern) {
		violations = append(violations, fmt.Sprintf("claim type %d is not a known kind", input.ClaimType))
	}
	if len(input.Data) != DataWidth {
		violations = append(violations, fmt.Sprintf("data array must be exactly %d elements, got %d", DataWidth, len(input.Data)))
	}
	if len(input.Claim) != ClaimWidth {
		violations = append(violations, fmt.Sprintf("claim array must be exactly %d elements, got %d", ClaimWidth, len(input.Claim)))
	}
	if input.DataLength < 0 || input.DataLength > DataWidth {
		violations = append(violations, fmt.Sprintf("data length %d is outside 0..%d", input.DataLength, DataWidth))
	}
	for i, b := range input.Data {
		if b < 0 || b > 255 {
			violations = append(violations, fmt.Sprintf("data[%d] = %d is not a byte", i, b))
			break
		}
	}
	for i, b := range input.Claim {
		if b < 0 || b > 255 {
			violations = append(violations, fmt.Sprintf("claim[%d] = %d is not a byte", i, b))
			break
		}
	}

	ts := time.Unix(input.Timestamp, 0)
	if ts.Before(now.Add(-MaxCaptureAge)) {
		violations = append(violations, fmt.Sprintf("extraction timestamp %s is older than %s", ts.UTC(), MaxCaptureAge))
	}
	if ts.After(now.Add(MaxClockSkew)) {
		violations = append(violations, fmt.Sprintf("extraction timestamp %s is too far in the future", ts.UTC()))
	}
	return NewValidationError("circuit input", violations)
}

// Fingerprint is the advisory identity of a byte payload: the first 31 bytes
// of its sha256 digest read as a big-endian integer, rendered in decimal.
// 31 bytes keeps the value inside the scalar field of the proving curve. It
// is deliberately distinct from the in-circuit commitment.
func Fingerprint(payload []byte) string {
	digest := sha256.Sum256(payload)
	return new(big.Int).SetBytes(digest[:31]).String()
}

// littleEndian encodes a non-negative value as little-endian bytes, the same
// positional weighting the constraint system reconstructs with.
func littleEndian(v int64) []byte {
	if v <= 0 {
		return []byte{0}
	}
	var out []byte
	u := uint64(v)
	for u > 0 {
		out = append(out, byte(u&0xff))
		u >>= 8
	}
	return out
}

func pad(b []byte, width int) []int {
	out := make([]int, width)
	for i := 0; i < len(b) && i < width; i++ {
		out[i] = int(b[i])
	}
	return out
}

// ParseFingerprint converts a decimal fingerprint back to its integer form,
// for consumers that compare fingerprints numerically.
func ParseFingerprint(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed fingerprint %q", s)
	}
	return v, nil
}
