// Package template defines the extraction templates a proof is bound to and
// their persistent store.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Template describes how to extract claim values from one site: the domain
// it is authorized for, named selectors, extractor specs per claim, and the
// circuit shape its proofs compile against.
type Template struct {
	ID         uint64            `json:"id"`
	Domain     string            `json:"domain"`
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Selectors  map[string]string `json:"selectors"`
	Extractors map[string]string `json:"extractors"`
	Validation Validation        `json:"validation"`
	Circuit    CircuitSpec       `json:"circuit"`
	ValidFrom  time.Time         `json:"valid_from"`
	ValidUntil time.Time         `json:"valid_until"`
}

// Validation constrains where a template may be applied.
type Validation struct {
	URLPattern        string   `json:"url_pattern"`
	AuthorizedDomains []string `json:"authorized_domains"`
}

// CircuitSpec names the circuit configuration a template's proofs use. The
// base fields apply to every claim the template extracts; SupportedClaims
// adjusts the configuration for individually named claims.
type CircuitSpec struct {
	DataType        string                   `json:"data_type"`
	ClaimKind       string                   `json:"claim_kind"`
	MaxDataLength   int                      `json:"max_data_length"`
	SupportedClaims map[string]ClaimOverride `json:"supported_claims,omitempty"`
}

// ClaimOverride overrides parts of the circuit configuration for one claim.
// Empty fields inherit from the template's base circuit spec.
type ClaimOverride struct {
	DataType      string `json:"data_type,omitempty"`
	ClaimKind     string `json:"claim_kind,omitempty"`
	MaxDataLength int    `json:"max_data_length,omitempty"`
}

// Key is the unique template identity within the store.
func (t *Template) Key() string {
	return t.Domain + "/" + t.Name
}

// Domains returns the authorized domain set, defaulting to the template's
// own domain when the validation block names none.
func (t *Template) Domains() []string {
	if len(t.Validation.AuthorizedDomains) > 0 {
		return t.Validation.AuthorizedDomains
	}
	return []string{t.Domain}
}

// MatchesURL reports whether the capture URL satisfies the template's URL
// pattern. An empty pattern only requires the domain to appear in the URL.
func (t *Template) MatchesURL(url string) bool {
	if t.Validation.URLPattern == "" {
		return strings.Contains(url, t.Domain)
	}
	matched, err := regexp.MatchString(t.Validation.URLPattern, url)
	return err == nil && matched
}

// Validate checks the template is complete enough to extract and prove with.
func (t *Template) Validate() error {
	if t.Domain == "" {
		return fmt.Errorf("template has no domain")
	}
	if t.Name == "" {
		return fmt.Errorf("template has no name")
	}
	if len(t.Extractors) == 0 {
		return fmt.Errorf("template %s defines no extractors", t.Key())
	}
	if !t.ValidUntil.IsZero() && t.ValidUntil.Before(t.ValidFrom) {
		return fmt.Errorf("template %s validity window is inverted", t.Key())
	}
	return nil
}
