// Native counterparts of the in-circuit Poseidon2 sponge. Centralizes the
// permutation parameters so the prover-side digests always match what the
// constraints recompute.

package circuits

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

const (
	Width         = 2
	RoundsFull    = 8
	RoundsPartial = 56
	Seed          = "ZEPHIS_POSEIDON2_HASH_SEED"
)

// CurveID is the only pairing group the proving pipeline runs on.
const CurveID = ecc.BN254

var getPermutation = sync.OnceValue(func() *poseidon2.Permutation {
	return poseidon2.NewPermutationWithSeed(Width, RoundsFull, RoundsPartial, Seed)
})

func HashCompress(x, y fr.Element) fr.Element {
	vars := [2]fr.Element{x, y}
	if err := getPermutation().Permutation(vars[:]); err != nil {
		panic(err)
	}
	var ret fr.Element
	ret.Add(&vars[1], &y)
	return ret
}

// HashFold folds values from zero using HashCompress. It is the native twin
// of Permutation.Fold.
func HashFold(vals ...fr.Element) fr.Element {
	var ret fr.Element
	for _, v := range vals {
		ret = HashCompress(ret, v)
	}
	return ret
}

// HashFoldBytes folds a byte slice, one field element per byte, prefixed with
// the byte count. This is the layout the claim circuit uses for the data and
// session commitments.
func HashFoldBytes(data []byte) fr.Element {
	vals := make([]fr.Element, 0, len(data)+1)
	var n fr.Element
	n.SetUint64(uint64(len(data)))
	vals = append(vals, n)
	for _, b := range data {
		var e fr.Element
		e.SetUint64(uint64(b))
		vals = append(vals, e)
	}
	return HashFold(vals...)
}

// HashCommitBytes folds a byte array padded or truncated to a fixed width,
// with length as the leading absorbed element. The circuit commits over the
// full fixed-width array, so the native side must pad identically.
func HashCommitBytes(data []byte, width int, length int) fr.Element {
	vals := make([]fr.Element, 0, width+1)
	var n fr.Element
	n.SetUint64(uint64(length))
	vals = append(vals, n)
	for i := 0; i < width; i++ {
		var e fr.Element
		if i < len(data) {
			e.SetUint64(uint64(data[i]))
		}
		vals = append(vals, e)
	}
	return HashFold(vals...)
}

// HashTemplate folds a template description the same way the circuit commits
// to it: six scalars followed by the data and domain arrays absorbed at their
// fixed widths. len(data) and len(domainHashes) become the committed lengths.
// The validity bounds are full field elements so a wide-open window can sit
// above any 8-byte timestamp.
func HashTemplate(id, version uint64, validFrom, validUntil fr.Element, data []byte, dataWidth int, domainHashes []fr.Element, maxDomains int) fr.Element {
	vals := make([]fr.Element, 0, 6+dataWidth+maxDomains)
	for _, v := range []uint64{id, version} {
		var e fr.Element
		e.SetUint64(v)
		vals = append(vals, e)
	}
	vals = append(vals, validFrom, validUntil)
	for _, v := range []uint64{uint64(len(data)), uint64(len(domainHashes))} {
		var e fr.Element
		e.SetUint64(v)
		vals = append(vals, e)
	}
	for i := 0; i < dataWidth; i++ {
		var e fr.Element
		if i < len(data) {
			e.SetUint64(uint64(data[i]))
		}
		vals = append(vals, e)
	}
	for i := 0; i < maxDomains; i++ {
		var e fr.Element
		if i < len(domainHashes) {
			e.Set(&domainHashes[i])
		}
		vals = append(vals, e)
	}
	return HashFold(vals...)
}

// HashDomain maps a domain name to its field-element identity used in the
// authorized-domain set and as the DomainHash public input.
func HashDomain(domain string) fr.Element {
	return HashFoldBytes([]byte(domain))
}
