// Package registry binds templates to circuit configurations and answers
// which claims a domain can prove.
package registry

import (
	"fmt"
	"math/bits"
	"strings"
	"sync"

	"github.com/zephis-org/zephis-core/internal/app/assets"
	"github.com/zephis-org/zephis-core/internal/app/claims"
	"github.com/zephis-org/zephis-core/internal/app/extraction"
	"github.com/zephis-org/zephis-core/internal/app/mapper"
	"github.com/zephis-org/zephis-core/internal/app/template"
	"github.com/zephis-org/zephis-core/pkg/logger"
)

// Binding is one registered template with its resolved circuit
// configurations: the template-wide base plus any per-claim overrides.
type Binding struct {
	Template     *template.Template
	Config       assets.CircuitConfig
	ClaimConfigs map[string]assets.CircuitConfig
}

// ConfigFor resolves the circuit configuration for one claim. Claims without
// an override use the template's base configuration.
func (b *Binding) ConfigFor(claimName string) assets.CircuitConfig {
	if cfg, ok := b.ClaimConfigs[claimName]; ok {
		return cfg
	}
	return b.Config
}

// Registry maps domains to their template bindings.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string][]*Binding
	mapper   *mapper.Mapper
	log      *logger.Logger
}

func New() *Registry {
	return &Registry{
		bindings: make(map[string][]*Binding),
		mapper:   mapper.New(),
		log:      logger.Default(),
	}
}

// Register adds a template to its domain. The circuit configuration comes
// from the template's explicit circuit spec when present, otherwise it is
// inferred from the extractor names.
func (r *Registry) Register(tmpl *template.Template) (*Binding, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	config, err := resolveConfig(tmpl)
	if err != nil {
		return nil, err
	}
	claimConfigs := make(map[string]assets.CircuitConfig, len(tmpl.Circuit.SupportedClaims))
	for name, override := range tmpl.Circuit.SupportedClaims {
		claimConfigs[name] = applyOverride(config, override)
	}
	binding := &Binding{Template: tmpl, Config: config, ClaimConfigs: claimConfigs}

	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.bindings[tmpl.Domain]
	for i, b := range existing {
		if b.Template.Name == tmpl.Name {
			existing[i] = binding
			r.log.Infof("replaced template %s (circuit %s)", tmpl.Key(), config.Signature())
			return binding, nil
		}
	}
	r.bindings[tmpl.Domain] = append(existing, binding)
	r.log.Infof("registered template %s (circuit %s)", tmpl.Key(), config.Signature())
	return binding, nil
}

// resolveConfig picks the circuit configuration for a template.
func resolveConfig(tmpl *template.Template) (assets.CircuitConfig, error) {
	spec := tmpl.Circuit
	if spec.DataType != "" && spec.ClaimKind != "" {
		if spec.MaxDataLength <= 0 {
			return assets.CircuitConfig{}, fmt.Errorf("template %s: circuit spec has no data length", tmpl.Key())
		}
		return assets.CircuitConfig{
			DataType:      spec.DataType,
			ClaimKind:     spec.ClaimKind,
			MaxDataLength: spec.MaxDataLength,
		}, nil
	}

	dataType, kind := inferClassification(tmpl)
	maxLen := spec.MaxDataLength
	if maxLen <= 0 {
		maxLen = mapper.DataWidth
	}
	return assets.CircuitConfig{
		DataType:      dataType.String(),
		ClaimKind:     kind.String(),
		MaxDataLength: maxLen,
	}, nil
}

// applyOverride overlays a per-claim adjustment on the template's base
// configuration.
func applyOverride(base assets.CircuitConfig, o template.ClaimOverride) assets.CircuitConfig {
	if o.DataType != "" {
		base.DataType = o.DataType
	}
	if o.ClaimKind != "" {
		base.ClaimKind = o.ClaimKind
	}
	if o.MaxDataLength > 0 {
		base.MaxDataLength = o.MaxDataLength
	}
	return base
}

// inferClassification derives the dominant data type and claim kind from the
// claim names a template extracts for. Known claims carry their registered
// classification; unknown names fall back on naming conventions.
func inferClassification(tmpl *template.Template) (claims.DataType, claims.Kind) {
	for name := range tmpl.Extractors {
		if claims.IsKnown(name) {
			spec := claims.Lookup(name)
			return spec.DataType, spec.Kind
		}
	}
	for name := range tmpl.Extractors {
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, "has_"), strings.HasPrefix(lower, "is_"):
			return claims.DataTypeBoolean, claims.KindExistence
		case strings.Contains(lower, "currency"), strings.Contains(lower, "matches"):
			return claims.DataTypeString, claims.KindPattern
		}
	}
	return claims.DataTypeNumeric, claims.KindComparison
}

// Lookup finds the binding for a domain and template name.
func (r *Registry) Lookup(domain, name string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.bindings[domain] {
		if b.Template.Name == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", template.ErrNotFound, domain, name)
}

// SupportedClaims lists the claim names provable for a domain, across all of
// its registered templates.
func (r *Registry) SupportedClaims(domain string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	for _, b := range r.bindings[domain] {
		for name := range b.Template.Extractors {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// Domains lists every domain with at least one registered template.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bindings))
	for d := range r.bindings {
		out = append(out, d)
	}
	return out
}

// ValidateDataForCircuit checks an extraction result against the circuit
// configuration resolved for the claim and reports every violation rather
// than stopping at the first, so callers can surface the full picture in one
// round trip.
func (r *Registry) ValidateDataForCircuit(binding *Binding, claimName string, data *extraction.ExtractedData) []string {
	var violations []string
	cfg := binding.ConfigFor(claimName)

	if _, ok := binding.Template.Extractors[claimName]; !ok {
		violations = append(violations, fmt.Sprintf("template %s does not extract %q", binding.Template.Key(), claimName))
	}

	raw, ok := data.Raw[claimName]
	if !ok {
		violations = append(violations, fmt.Sprintf("extraction produced no value for %q", claimName))
	}

	spec := claims.Lookup(claimName)
	if spec.DataType.String() != cfg.DataType {
		violations = append(violations, fmt.Sprintf(
			"claim %q is %s but circuit %s expects %s",
			claimName, spec.DataType, cfg.Signature(), cfg.DataType))
	}

	if ok && spec.Kind == claims.KindPattern && len(raw) > cfg.MaxDataLength {
		violations = append(violations, fmt.Sprintf(
			"value for %q is %d bytes, circuit limit is %d", claimName, len(raw), cfg.MaxDataLength))
	}

	// Four bytes per element is the upper bound the mapper's serialization
	// can spend per data slot.
	if sizeLimit := cfg.MaxDataLength * 4; ok && len(raw) > sizeLimit {
		violations = append(violations, fmt.Sprintf(
			"serialized value for %q is %d bytes, circuit budget is %d", claimName, len(raw), sizeLimit))
	}

	if ok && cfg.DataType == claims.DataTypeNumeric.String() && spec.Kind != claims.KindPattern && spec.Derive != nil {
		value, err := spec.Derive(raw)
		switch {
		case err != nil:
			violations = append(violations, fmt.Sprintf("value %q for %q is not numeric", raw, claimName))
		case value > 0 && (bits.Len64(uint64(value))+7)/8 > cfg.MaxDataLength:
			violations = append(violations, fmt.Sprintf(
				"value %d for %q does not fit in %d bytes", value, claimName, cfg.MaxDataLength))
		}
	}

	if cfg.DataType == claims.DataTypeBoolean.String() {
		flagSeen := false
		for _, v := range data.Raw {
			if claims.IsBooleanShaped(v) {
				flagSeen = true
				break
			}
		}
		if !flagSeen {
			violations = append(violations, "boolean circuit but no flag-shaped value was extracted")
		}
	}

	authorized := false
	for _, d := range binding.Template.Domains() {
		if d == data.Domain {
			authorized = true
			break
		}
	}
	if !authorized {
		violations = append(violations, fmt.Sprintf("domain %q is not authorized by template %s", data.Domain, binding.Template.Key()))
	}

	return violations
}

// GenerateCircuitInput validates and maps an extraction result into the
// circuit input document for one claim.
func (r *Registry) GenerateCircuitInput(binding *Binding, claimName string, data *extraction.ExtractedData, threshold, thresholdMax int64) (*mapper.CircuitInput, error) {
	if violations := r.ValidateDataForCircuit(binding, claimName, data); len(violations) > 0 {
		return nil, mapper.NewValidationError(fmt.Sprintf("claim %q", claimName), violations)
	}

	fingerprint := templateFingerprint(binding.Template)
	input, err := r.mapper.Convert(data, claimName, threshold, thresholdMax, fingerprint)
	if err != nil {
		return nil, err
	}
	if err := r.mapper.Validate(input); err != nil {
		return nil, err
	}
	return input, nil
}

// templateFingerprint is the advisory template identity carried in the
// circuit input document.
func templateFingerprint(tmpl *template.Template) string {
	return mapper.Fingerprint([]byte(tmpl.Key() + "@" + tmpl.Version))
}
