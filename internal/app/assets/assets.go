// Package assets compiles and caches the proving artifacts: constraint
// systems, proving keys and verifying keys per circuit configuration.
package assets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/zephis-org/zephis-core/internal/app/circuits"
)

// CircuitConfig identifies one compiled circuit shape. DataType and
// ClaimKind are the coarse claim classification, MaxDataLength the data
// array width the circuit was compiled with.
type CircuitConfig struct {
	DataType      string
	ClaimKind     string
	MaxDataLength int
}

// Signature is the canonical asset key, "generic_<dataType>_<claimKind>_<maxDataLength>".
func (c CircuitConfig) Signature() string {
	return fmt.Sprintf("generic_%s_%s_%d", c.DataType, c.ClaimKind, c.MaxDataLength)
}

// ParseSignature inverts Signature.
func ParseSignature(sig string) (CircuitConfig, error) {
	parts := strings.Split(sig, "_")
	if len(parts) < 4 || parts[0] != "generic" {
		return CircuitConfig{}, fmt.Errorf("malformed circuit signature %q", sig)
	}
	maxLen, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || maxLen <= 0 {
		return CircuitConfig{}, fmt.Errorf("malformed circuit signature %q: bad length", sig)
	}
	return CircuitConfig{
		DataType:      parts[1],
		ClaimKind:     strings.Join(parts[2:len(parts)-1], "_"),
		MaxDataLength: maxLen,
	}, nil
}

// legacyCircuits maps circuit names that predate configuration signatures
// to the configurations their proofs were generated with. Proofs stamped
// with these names still verify; new proofs always carry a signature.
var legacyCircuits = map[string]CircuitConfig{
	"balance_proof":        {DataType: "numeric", ClaimKind: "comparison", MaxDataLength: 16},
	"balance_range_proof":  {DataType: "numeric", ClaimKind: "comparison", MaxDataLength: 16},
	"follower_proof":       {DataType: "numeric", ClaimKind: "comparison", MaxDataLength: 8},
	"follower_range_proof": {DataType: "numeric", ClaimKind: "comparison", MaxDataLength: 8},
	"currency_proof":       {DataType: "string", ClaimKind: "pattern", MaxDataLength: 16},
}

// LegacyConfig resolves a legacy circuit name. The legacy namespace never
// overlaps with signatures, so both lookups can be tried in order.
func LegacyConfig(name string) (CircuitConfig, bool) {
	config, ok := legacyCircuits[name]
	return config, ok
}

// Params maps the configuration to concrete circuit array widths. The claim
// array width and evidence width scale with the data width.
func (c CircuitConfig) Params() circuits.Params {
	p := circuits.DefaultParams()
	p.MaxDataLength = c.MaxDataLength
	p.MaxTLSLength = 2 * c.MaxDataLength
	if p.MaxPattern > c.MaxDataLength {
		p.MaxPattern = c.MaxDataLength
	}
	return p
}

// Entry is one compiled asset set. The verifying key is safe to share;
// the proving key and constraint system are only read by the prover.
type Entry struct {
	Config       CircuitConfig
	Constraints  constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
}

// Compiler produces proving assets for a configuration.
type Compiler interface {
	Compile(config CircuitConfig) (*Entry, error)
}

// GnarkCompiler compiles the claim circuit through the gnark frontend and
// runs the Groth16 setup.
type GnarkCompiler struct{}

func NewGnarkCompiler() *GnarkCompiler {
	return &GnarkCompiler{}
}

func (g *GnarkCompiler) Compile(config CircuitConfig) (*Entry, error) {
	shell, err := circuits.NewClaimCircuit(config.Params())
	if err != nil {
		return nil, fmt.Errorf("circuit %s: %w", config.Signature(), err)
	}

	cs, err := frontend.Compile(circuits.CurveID.ScalarField(), r1cs.NewBuilder, shell)
	if err != nil {
		return nil, fmt.Errorf("compiling circuit %s: %w", config.Signature(), err)
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, fmt.Errorf("setup for circuit %s: %w", config.Signature(), err)
	}

	return &Entry{
		Config:       config,
		Constraints:  cs,
		ProvingKey:   pk,
		VerifyingKey: vk,
	}, nil
}
