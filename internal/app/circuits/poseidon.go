// Package circuits defines the gnark constraint systems for claim proofs:
// the comparator, the template-authenticity check and the generic claim
// circuit that composes them. Only BN254 is supported.
package circuits

import (
	"errors"
	"math/big"

	poseidonbn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
	"github.com/consensys/gnark/frontend"
)

var (
	ErrInvalidSizeBuffer = errors.New("the size of the input should match the size of the hash buffer")
)

// In-circuit Poseidon2 permutation. The sponge built on top of it is the
// commitment hash used throughout the circuits (template hash, data hash,
// session hash).
type Permutation struct {
	api    frontend.API
	params parameters
}

type parameters struct {
	width           int
	degreeSBox      int
	nbFullRounds    int
	nbPartialRounds int
	// Round keys arranged as [round][lane].
	roundKeys [][]big.Int
}

// NewPoseidon2 builds a Permutation from the WIDTH/ROUND_* constants in
// hash.go, so native and in-circuit digests always agree.
func NewPoseidon2(api frontend.API) (*Permutation, error) {
	params := parameters{
		width:           Width,
		degreeSBox:      poseidonbn254.DegreeSBox(),
		nbFullRounds:    RoundsFull,
		nbPartialRounds: RoundsPartial,
	}

	concreteParams := poseidonbn254.NewParametersWithSeed(Width, RoundsFull, RoundsPartial, Seed)

	params.roundKeys = make([][]big.Int, len(concreteParams.RoundKeys))
	for i := range params.roundKeys {
		params.roundKeys[i] = make([]big.Int, len(concreteParams.RoundKeys[i]))
		for j := range params.roundKeys[i] {
			concreteParams.RoundKeys[i][j].BigInt(&params.roundKeys[i][j])
		}
	}

	return &Permutation{api: api, params: params}, nil
}

func (h *Permutation) sBox(index int, input []frontend.Variable) {
	tmp := input[index]
	switch h.params.degreeSBox {
	case 3:
		input[index] = h.api.Mul(input[index], input[index])
		input[index] = h.api.Mul(tmp, input[index])
	case 5:
		input[index] = h.api.Mul(input[index], input[index])
		input[index] = h.api.Mul(input[index], input[index])
		input[index] = h.api.Mul(input[index], tmp)
	case 7:
		input[index] = h.api.Mul(input[index], input[index])
		input[index] = h.api.Mul(input[index], tmp)
		input[index] = h.api.Mul(input[index], input[index])
		input[index] = h.api.Mul(input[index], tmp)
	case 17:
		input[index] = h.api.Mul(input[index], input[index])
		input[index] = h.api.Mul(input[index], input[index])
		input[index] = h.api.Mul(input[index], input[index])
		input[index] = h.api.Mul(input[index], input[index])
		input[index] = h.api.Mul(input[index], tmp)
	case -1:
		input[index] = h.api.Inverse(input[index])
	default:
		panic("unsupported sBox degree")
	}
}

// matMulExternalInPlace applies the external MDS matrix (t in {2,3}).
func (h *Permutation) matMulExternalInPlace(input []frontend.Variable) {
	switch h.params.width {
	case 2:
		tmp := h.api.Add(input[0], input[1])
		input[0] = h.api.Add(tmp, input[0])
		input[1] = h.api.Add(tmp, input[1])
	case 3:
		tmp := h.api.Add(input[0], input[1])
		tmp = h.api.Add(tmp, input[2])
		input[0] = h.api.Add(input[0], tmp)
		input[1] = h.api.Add(input[1], tmp)
		input[2] = h.api.Add(input[2], tmp)
	default:
		panic("width must be 2 or 3")
	}
}

// matMulInternalInPlace applies the sparse internal MDS (t in {2,3}, aligned
// with gnark-crypto).
func (h *Permutation) matMulInternalInPlace(input []frontend.Variable) {
	switch h.params.width {
	case 2:
		sum := h.api.Add(input[0], input[1])
		input[0] = h.api.Add(input[0], sum)
		input[1] = h.api.Mul(2, input[1])
		input[1] = h.api.Add(input[1], sum)
	case 3:
		sum := h.api.Add(input[0], input[1])
		sum = h.api.Add(sum, input[2])
		input[0] = h.api.Add(input[0], sum)
		input[1] = h.api.Add(input[1], sum)
		input[2] = h.api.Mul(input[2], 2)
		input[2] = h.api.Add(input[2], sum)
	default:
		panic("only T=2,3 is supported for internal matrix")
	}
}

func (h *Permutation) addRoundKeyInPlace(round int, input []frontend.Variable) {
	for i := 0; i < len(h.params.roundKeys[round]); i++ {
		input[i] = h.api.Add(input[i], h.params.roundKeys[round][i])
	}
}

// Permutation applies the Poseidon2 permutation in place.
func (h *Permutation) Permutation(input []frontend.Variable) error {
	if len(input) != h.params.width {
		return ErrInvalidSizeBuffer
	}

	h.matMulExternalInPlace(input)

	rf := h.params.nbFullRounds / 2
	for i := 0; i < rf; i++ {
		h.addRoundKeyInPlace(i, input)
		for j := 0; j < h.params.width; j++ {
			h.sBox(j, input)
		}
		h.matMulExternalInPlace(input)
	}
	// Partial rounds apply the S-box to lane 0 only.
	for i := rf; i < rf+h.params.nbPartialRounds; i++ {
		h.addRoundKeyInPlace(i, input)
		h.sBox(0, input)
		h.matMulInternalInPlace(input)
	}
	for i := rf + h.params.nbPartialRounds; i < h.params.nbFullRounds+h.params.nbPartialRounds; i++ {
		h.addRoundKeyInPlace(i, input)
		for j := 0; j < h.params.width; j++ {
			h.sBox(j, input)
		}
		h.matMulExternalInPlace(input)
	}
	return nil
}

// Compress is the two-word sponge compression function for t=2: it returns
// perm([left,right])[1] + right.
func (h *Permutation) Compress(left, right frontend.Variable) frontend.Variable {
	if h.params.width != 2 {
		panic("poseidon2: Compress can only be used when t=2")
	}
	vars := [2]frontend.Variable{left, right}
	if err := h.Permutation(vars[:]); err != nil {
		panic(err)
	}
	return h.api.Add(vars[1], right)
}

// Fold absorbs a variable number of values starting from zero, matching the
// native HashFold. This is the variable-arity sponge used for the template
// commitment, where the input count differs per circuit parameter set.
func (h *Permutation) Fold(vals ...frontend.Variable) frontend.Variable {
	var acc frontend.Variable = 0
	for i := range vals {
		acc = h.Compress(acc, vals[i])
	}
	return acc
}
