package circuits

import (
	"github.com/consensys/gnark/frontend"
)

// TemplateWitness carries the private template description whose commitment
// is recomputed in-circuit: identity, validity window, extraction payload and
// the authorized-domain set.
type TemplateWitness struct {
	TemplateID        frontend.Variable
	Version           frontend.Variable
	ValidFrom         frontend.Variable
	ValidUntil        frontend.Variable
	DataLength        frontend.Variable
	TemplateData      []frontend.Variable
	DomainCount       frontend.Variable
	AuthorizedDomains []frontend.Variable
}

// NewTemplateWitness allocates the witness arrays for the given sizes.
func NewTemplateWitness(maxTemplateData, maxDomains int) TemplateWitness {
	return TemplateWitness{
		TemplateData:      make([]frontend.Variable, maxTemplateData),
		AuthorizedDomains: make([]frontend.Variable, maxDomains),
	}
}

// TemplateCommitment folds the full template description into a single field
// element with the Poseidon2 sponge. The arrays are absorbed at their fixed
// width, so the native side must pad with zeros to the same shape.
func TemplateCommitment(api frontend.API, h *Permutation, tw TemplateWitness) frontend.Variable {
	inputs := make([]frontend.Variable, 0, 6+len(tw.TemplateData)+len(tw.AuthorizedDomains))
	inputs = append(inputs, tw.TemplateID, tw.Version, tw.ValidFrom, tw.ValidUntil, tw.DataLength, tw.DomainCount)
	inputs = append(inputs, tw.TemplateData...)
	inputs = append(inputs, tw.AuthorizedDomains...)
	return h.Fold(inputs...)
}

// domainAuthorized OR-accumulates equality of domainHash against the first
// DomainCount entries. Slots at index >= DomainCount are masked out and can
// hold anything without affecting the result.
func domainAuthorized(api frontend.API, tw TemplateWitness, domainHash frontend.Variable) frontend.Variable {
	var authorized frontend.Variable = 0
	for i := range tw.AuthorizedDomains {
		inCount := isLess(api, i, tw.DomainCount)
		match := api.Mul(inCount, isEqual(api, tw.AuthorizedDomains[i], domainHash))
		authorized = orAccumulate(api, authorized, match)
	}
	return authorized
}

// timestampWithin returns 1 iff validFrom <= ts <= validUntil.
func timestampWithin(api frontend.API, ts, validFrom, validUntil frontend.Variable) frontend.Variable {
	notBefore := isLessOrEqual(api, validFrom, ts)
	notAfter := isLessOrEqual(api, ts, validUntil)
	return api.Mul(notBefore, notAfter)
}

// ValidateTemplate recomputes the template commitment and ANDs the three
// authenticity factors: hash match, domain authorization and time validity.
// The result is a 0/1 signal, never an assertion, so composing circuits can
// fold it into their own validity output.
func ValidateTemplate(api frontend.API, h *Permutation, tw TemplateWitness, templateHash, domainHash, timestamp frontend.Variable) frontend.Variable {
	computed := TemplateCommitment(api, h, tw)
	hashOK := isEqual(api, computed, templateHash)
	domainOK := domainAuthorized(api, tw, domainHash)
	timeOK := timestampWithin(api, timestamp, tw.ValidFrom, tw.ValidUntil)
	return api.Mul(api.Mul(hashOK, domainOK), timeOK)
}

// TemplateAuthenticityCircuit proves a template's hash, domain authorization
// and time validity in isolation.
type TemplateAuthenticityCircuit struct {
	Template TemplateWitness

	TemplateHash frontend.Variable `gnark:",public"`
	DomainHash   frontend.Variable `gnark:",public"`
	Timestamp    frontend.Variable `gnark:",public"`
	Valid        frontend.Variable `gnark:",public"`
}

func NewTemplateAuthenticityCircuit(maxTemplateData, maxDomains int) *TemplateAuthenticityCircuit {
	return &TemplateAuthenticityCircuit{
		Template: NewTemplateWitness(maxTemplateData, maxDomains),
	}
}

func (c *TemplateAuthenticityCircuit) Define(api frontend.API) error {
	h, err := NewPoseidon2(api)
	if err != nil {
		return err
	}
	valid := ValidateTemplate(api, h, c.Template, c.TemplateHash, c.DomainHash, c.Timestamp)
	api.AssertIsEqual(c.Valid, valid)
	return nil
}

// RegistryEntry is one template slot in the registry circuit.
type RegistryEntry struct {
	TemplateID   frontend.Variable
	TemplateHash frontend.Variable
}

// TemplateRegistryCircuit checks a queried hash against up to N registered
// templates and selects the matching template id. At most one entry may
// match: the match-count is constrained to be boolean instead of silently
// summing colliding ids.
type TemplateRegistryCircuit struct {
	Entries []RegistryEntry
	Count   frontend.Variable

	QueryHash  frontend.Variable `gnark:",public"`
	SelectedID frontend.Variable `gnark:",public"`
	Found      frontend.Variable `gnark:",public"`
}

func NewTemplateRegistryCircuit(maxEntries int) *TemplateRegistryCircuit {
	return &TemplateRegistryCircuit{
		Entries: make([]RegistryEntry, maxEntries),
	}
}

func (c *TemplateRegistryCircuit) Define(api frontend.API) error {
	api.AssertIsLessOrEqual(c.Count, len(c.Entries))

	var matchCount frontend.Variable = 0
	var selected frontend.Variable = 0
	for i := range c.Entries {
		inCount := isLess(api, i, c.Count)
		match := api.Mul(inCount, isEqual(api, c.Entries[i].TemplateHash, c.QueryHash))
		matchCount = api.Add(matchCount, match)
		selected = api.Add(selected, api.Mul(match, c.Entries[i].TemplateID))
	}

	// Uniqueness is load-bearing: with two matches the summed id would pass
	// for a template nobody registered.
	api.AssertIsBoolean(matchCount)

	api.AssertIsEqual(c.Found, matchCount)
	api.AssertIsEqual(c.SelectedID, selected)
	return nil
}
