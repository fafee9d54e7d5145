package prover

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/backend/witness"
	"github.com/near/borsh-go"

	"github.com/zephis-org/zephis-core/internal/app/circuits"
)

// ZKProof is the portable proof document. Group elements are base-10 field
// coordinate strings; the G2 element carries each coordinate pair in
// extension-first order, mirroring common EVM verifier calldata.
type ZKProof struct {
	A            [2]string     `json:"a"`
	B            [2][2]string  `json:"b"`
	C            [2]string     `json:"c"`
	PublicInputs []string      `json:"publicInputs"`
	Protocol     string        `json:"protocol"`
	Curve        string        `json:"curve"`
	Metadata     ProofMetadata `json:"metadata"`
}

// ProofMetadata records what a proof attests to. It travels inside the wire
// document so a holder can hand over the proof alone: verification resolves
// the circuit from CircuitID, nothing is needed out-of-band.
type ProofMetadata struct {
	SessionID string `json:"sessionId"`
	Template  string `json:"template"`
	Claim     string `json:"claim"`
	Domain    string `json:"domain"`
	Timestamp int64  `json:"timestamp"`
	CircuitID string `json:"circuitId"`
}

const (
	protocolGroth16 = "groth16"
	curveName       = "bn254"
)

// MarshalProof flattens a gnark proof and its public witness into the wire
// document.
func MarshalProof(proof groth16.Proof, publicWitness witness.Witness) (*ZKProof, error) {
	concrete, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("unexpected proof backend %T", proof)
	}

	vector, ok := publicWitness.Vector().(fr.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected witness vector %T", publicWitness.Vector())
	}
	publics := make([]string, len(vector))
	for i := range vector {
		publics[i] = vector[i].String()
	}

	out := &ZKProof{
		PublicInputs: publics,
		Protocol:     protocolGroth16,
		Curve:        curveName,
	}
	out.A[0] = concrete.Ar.X.String()
	out.A[1] = concrete.Ar.Y.String()
	out.C[0] = concrete.Krs.X.String()
	out.C[1] = concrete.Krs.Y.String()
	// G2 coordinates come out A1 before A0.
	out.B[0][0] = concrete.Bs.X.A1.String()
	out.B[0][1] = concrete.Bs.X.A0.String()
	out.B[1][0] = concrete.Bs.Y.A1.String()
	out.B[1][1] = concrete.Bs.Y.A0.String()
	return out, nil
}

// UnmarshalProof rebuilds the gnark proof and public witness from the wire
// document.
func UnmarshalProof(doc *ZKProof) (groth16.Proof, witness.Witness, error) {
	if doc.Protocol != protocolGroth16 || doc.Curve != curveName {
		return nil, nil, fmt.Errorf("unsupported proof document %s/%s", doc.Protocol, doc.Curve)
	}

	var proof groth16bn254.Proof
	if err := setG1(&proof.Ar, doc.A); err != nil {
		return nil, nil, fmt.Errorf("proof element a: %w", err)
	}
	if err := setG1(&proof.Krs, doc.C); err != nil {
		return nil, nil, fmt.Errorf("proof element c: %w", err)
	}
	if err := setG2(&proof.Bs, doc.B); err != nil {
		return nil, nil, fmt.Errorf("proof element b: %w", err)
	}

	publicWitness, err := rebuildPublicWitness(doc.PublicInputs)
	if err != nil {
		return nil, nil, err
	}
	return &proof, publicWitness, nil
}

func setG1(p *curve.G1Affine, coords [2]string) error {
	if _, err := p.X.SetString(coords[0]); err != nil {
		return err
	}
	if _, err := p.Y.SetString(coords[1]); err != nil {
		return err
	}
	return nil
}

func setG2(p *curve.G2Affine, coords [2][2]string) error {
	if _, err := p.X.A1.SetString(coords[0][0]); err != nil {
		return err
	}
	if _, err := p.X.A0.SetString(coords[0][1]); err != nil {
		return err
	}
	if _, err := p.Y.A1.SetString(coords[1][0]); err != nil {
		return err
	}
	if _, err := p.Y.A0.SetString(coords[1][1]); err != nil {
		return err
	}
	return nil
}

func rebuildPublicWitness(publics []string) (witness.Witness, error) {
	w, err := witness.New(circuits.CurveID.ScalarField())
	if err != nil {
		return nil, err
	}
	values := make(chan any)
	go func() {
		defer close(values)
		for _, s := range publics {
			v, ok := new(big.Int).SetString(s, 10)
			if !ok {
				v = big.NewInt(0)
			}
			values <- v
		}
	}()
	if err := w.Fill(len(publics), 0, values); err != nil {
		return nil, err
	}
	return w, nil
}

// ExportProof renders the wire document as JSON.
func ExportProof(doc *ZKProof) ([]byte, error) {
	return json.Marshal(doc)
}

// ImportProof parses a JSON proof document and checks its wire shape.
func ImportProof(raw []byte) (*ZKProof, error) {
	var doc ZKProof
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed proof document: %w", err)
	}
	if doc.Protocol != protocolGroth16 || doc.Curve != curveName {
		return nil, fmt.Errorf("unsupported proof document %s/%s", doc.Protocol, doc.Curve)
	}
	for _, s := range doc.PublicInputs {
		if _, ok := new(big.Int).SetString(s, 10); !ok {
			return nil, fmt.Errorf("malformed public input %q", s)
		}
	}
	return &doc, nil
}

// proofBlob is the binary anchoring payload: the gnark-native proof and
// public witness serializations wrapped in a borsh envelope.
type proofBlob struct {
	Proof         []byte `borsh:"proof"`
	PublicWitness []byte `borsh:"public_witness"`
}

// SerializeBorsh packs a proof and its public witness into the on-chain
// anchoring blob.
func SerializeBorsh(proof groth16.Proof, publicWitness witness.Witness) ([]byte, error) {
	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		return nil, err
	}
	var witnessBuf bytes.Buffer
	if _, err := publicWitness.WriteTo(&witnessBuf); err != nil {
		return nil, err
	}
	return borsh.Serialize(proofBlob{
		Proof:         proofBuf.Bytes(),
		PublicWitness: witnessBuf.Bytes(),
	})
}

// DeserializeBorsh unpacks an anchoring blob back into a proof and public
// witness.
func DeserializeBorsh(raw []byte) (groth16.Proof, witness.Witness, error) {
	var blob proofBlob
	if err := borsh.Deserialize(&blob, raw); err != nil {
		return nil, nil, err
	}

	proof := groth16.NewProof(circuits.CurveID)
	if _, err := proof.ReadFrom(bytes.NewReader(blob.Proof)); err != nil {
		return nil, nil, err
	}

	w, err := witness.New(circuits.CurveID.ScalarField())
	if err != nil {
		return nil, nil, err
	}
	if _, err := w.ReadFrom(bytes.NewReader(blob.PublicWitness)); err != nil {
		return nil, nil, err
	}
	return proof, w, nil
}
