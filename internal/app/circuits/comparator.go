package circuits

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// Comparison operation codes. Any other value makes the comparator evaluate
// to 0 rather than fail, so a bad public input can never be mistaken for a
// satisfied claim.
const (
	OpGreaterThan = 1
	OpLessThan    = 2
	OpEqual       = 3
	OpContains    = 4
	OpRange       = 5
	OpNotEqual    = 6
)

// valueWeightLimit caps the little-endian positional reconstruction: byte 31
// would carry weight 2^248 and the accumulated value could exceed the BN254
// scalar field, so bytes past index 30 never contribute to the integer value.
const valueWeightLimit = 31

// ComparatorInputs are the signals the comparator gadget evaluates over.
// Data and Pattern are fixed-width byte arrays; DataLength and PatternLength
// give the used prefix, everything beyond must be zero-padded by the witness
// builder and is masked out here regardless.
type ComparatorInputs struct {
	ClaimType     frontend.Variable
	Threshold     frontend.Variable
	ThresholdMax  frontend.Variable
	Data          []frontend.Variable
	DataLength    frontend.Variable
	Pattern       []frontend.Variable
	PatternLength frontend.Variable
}

// isEqual returns 1 iff a == b.
func isEqual(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.IsZero(api.Sub(a, b))
}

// isLess returns 1 iff a < b.
func isLess(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.IsZero(api.Add(api.Cmp(a, b), 1))
}

// isLessOrEqual returns 1 iff a <= b.
func isLessOrEqual(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.Sub(1, api.IsZero(api.Sub(api.Cmp(a, b), 1)))
}

// orAccumulate folds a new boolean term into an OR accumulator while keeping
// the accumulator boolean: acc' = acc + term*(1-acc).
func orAccumulate(api frontend.API, acc, term frontend.Variable) frontend.Variable {
	return api.Add(acc, api.Mul(term, api.Sub(1, acc)))
}

// EvaluateComparison reconstructs the little-endian integer value of the used
// Data prefix and dispatches on ClaimType. The result is always 0 or 1.
func EvaluateComparison(api frontend.API, in ComparatorInputs) frontend.Variable {
	// Every byte is constrained to 8 bits so positional weighting is sound.
	for i := range in.Data {
		api.ToBinary(in.Data[i], 8)
	}
	for i := range in.Pattern {
		api.ToBinary(in.Pattern[i], 8)
	}
	api.AssertIsLessOrEqual(in.DataLength, len(in.Data))
	api.AssertIsLessOrEqual(in.PatternLength, len(in.Pattern))

	value := reconstructValue(api, in.Data, in.DataLength)

	cmp := api.Cmp(value, in.Threshold)
	gt := api.IsZero(api.Sub(cmp, 1))
	lt := api.IsZero(api.Add(cmp, 1))
	eq := isEqual(api, value, in.Threshold)
	neq := api.Sub(1, eq)

	ge := api.Sub(1, lt)
	le := isLessOrEqual(api, value, in.ThresholdMax)
	inRange := api.Mul(ge, le)

	contains := evaluateContains(api, in)

	results := []frontend.Variable{gt, lt, eq, contains, inRange, neq}

	// Selector-sum dispatch: selectors are mutually exclusive, so an
	// out-of-range claim type leaves the sum at 0.
	var result frontend.Variable = 0
	for op, r := range results {
		sel := isEqual(api, in.ClaimType, op+1)
		result = api.Add(result, api.Mul(sel, r))
	}
	return result
}

// reconstructValue computes sum(data[i] * 256^i) over i < length, masking
// unused positions so garbage past the used prefix never leaks in.
func reconstructValue(api frontend.API, data []frontend.Variable, length frontend.Variable) frontend.Variable {
	var value frontend.Variable = 0
	weight := big.NewInt(1)
	byteBase := big.NewInt(256)

	limit := len(data)
	if limit > valueWeightLimit {
		limit = valueWeightLimit
	}
	for i := 0; i < limit; i++ {
		used := isLess(api, i, length)
		masked := api.Mul(data[i], used)
		value = api.Add(value, api.Mul(masked, new(big.Int).Set(weight)))
		weight.Mul(weight, byteBase)
	}
	return value
}

// evaluateContains performs a windowed exact substring search of the used
// pattern prefix inside the used data prefix. An empty pattern matches
// nothing.
func evaluateContains(api frontend.API, in ComparatorInputs) frontend.Variable {
	var found frontend.Variable = 0

	for s := 0; s < len(in.Data); s++ {
		// The window fits when s + patternLength <= dataLength. When it does
		// not, the match term is forced to zero, which also covers loop
		// truncation at the right edge below.
		fits := isLessOrEqual(api, api.Add(s, in.PatternLength), in.DataLength)

		match := fits
		for j := 0; j < len(in.Pattern) && s+j < len(in.Data); j++ {
			inPattern := isLess(api, j, in.PatternLength)
			byteEq := isEqual(api, in.Data[s+j], in.Pattern[j])
			match = api.Mul(match, api.Select(inPattern, byteEq, 1))
		}

		found = orAccumulate(api, found, match)
	}

	nonEmptyPattern := api.Sub(1, api.IsZero(in.PatternLength))
	return api.Mul(found, nonEmptyPattern)
}

// ComparatorCircuit exposes the comparator gadget as a standalone circuit so
// its semantics can be proven and tested in isolation.
type ComparatorCircuit struct {
	ClaimType     frontend.Variable `gnark:",public"`
	Threshold     frontend.Variable `gnark:",public"`
	ThresholdMax  frontend.Variable `gnark:",public"`
	Data          []frontend.Variable
	DataLength    frontend.Variable
	Pattern       []frontend.Variable
	PatternLength frontend.Variable
	Result        frontend.Variable `gnark:",public"`
}

// NewComparatorCircuit allocates a comparator circuit shell for the given
// array widths. The same constructor builds both the compile-time shape and
// witness assignments.
func NewComparatorCircuit(maxData, maxPattern int) *ComparatorCircuit {
	return &ComparatorCircuit{
		Data:    make([]frontend.Variable, maxData),
		Pattern: make([]frontend.Variable, maxPattern),
	}
}

func (c *ComparatorCircuit) Define(api frontend.API) error {
	result := EvaluateComparison(api, ComparatorInputs{
		ClaimType:     c.ClaimType,
		Threshold:     c.Threshold,
		ThresholdMax:  c.ThresholdMax,
		Data:          c.Data,
		DataLength:    c.DataLength,
		Pattern:       c.Pattern,
		PatternLength: c.PatternLength,
	})
	api.AssertIsEqual(c.Result, result)
	return nil
}
