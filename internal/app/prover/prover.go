// Package prover orchestrates the proving pipeline: template resolution,
// extraction, evidence capture, input mapping, circuit assets and the
// Groth16 prove/verify calls.
package prover

import (
	"context"
	"fmt"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zephis-org/zephis-core/internal/app/assets"
	"github.com/zephis-org/zephis-core/internal/app/circuits"
	"github.com/zephis-org/zephis-core/internal/app/claims"
	"github.com/zephis-org/zephis-core/internal/app/evidence"
	"github.com/zephis-org/zephis-core/internal/app/extraction"
	"github.com/zephis-org/zephis-core/internal/app/mapper"
	"github.com/zephis-org/zephis-core/internal/app/registry"
	"github.com/zephis-org/zephis-core/internal/app/template"
	"github.com/zephis-org/zephis-core/pkg/logger"
)

// DefaultProveTimeout bounds one Groth16 prove call.
const DefaultProveTimeout = 2 * time.Minute

// DefaultBatchConcurrency bounds how many proofs a batch runs at once.
const DefaultBatchConcurrency = 4

// ProofRequest describes one claim to prove.
type ProofRequest struct {
	RequestID    string `json:"requestId"`
	Domain       string `json:"domain"`
	TemplateName string `json:"templateName"`
	ClaimName    string `json:"claimName"`
	Threshold    int64  `json:"threshold"`
	ThresholdMax int64  `json:"thresholdMax,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	Content      string `json:"content"`
	URL          string `json:"url"`
}

// ProofResult is one generated proof with its provenance.
type ProofResult struct {
	ID          uuid.UUID            `json:"id"`
	RequestID   string               `json:"requestId"`
	SessionID   uuid.UUID            `json:"sessionId"`
	Signature   string               `json:"signature"`
	ClaimName   string               `json:"claimName"`
	Domain      string               `json:"domain"`
	Proof       *ZKProof             `json:"proof"`
	Input       *mapper.CircuitInput `json:"input"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// Prover wires the pipeline components together.
type Prover struct {
	registry  *registry.Registry
	extractor extraction.Extractor
	capturer  evidence.Capturer
	cache     *assets.Cache
	timeout   time.Duration
	log       *logger.Logger
}

// Config selects the prover's collaborators. Zero fields get defaults.
type Config struct {
	Registry     *registry.Registry
	Extractor    extraction.Extractor
	Capturer     evidence.Capturer
	Cache        *assets.Cache
	ProveTimeout time.Duration
}

func New(cfg Config) (*Prover, error) {
	if cfg.Registry == nil {
		return nil, WrapConfiguration(fmt.Errorf("nil registry"), "prover needs a template registry")
	}
	if cfg.Cache == nil {
		return nil, WrapConfiguration(fmt.Errorf("nil asset cache"), "prover needs circuit assets")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extraction.NewStaticExtractor()
	}
	if cfg.Capturer == nil {
		cfg.Capturer = evidence.NewSimulatedCapturer("zephis-core")
	}
	if cfg.ProveTimeout <= 0 {
		cfg.ProveTimeout = DefaultProveTimeout
	}
	return &Prover{
		registry:  cfg.Registry,
		extractor: cfg.Extractor,
		capturer:  cfg.Capturer,
		cache:     cfg.Cache,
		timeout:   cfg.ProveTimeout,
		log:       logger.Default(),
	}, nil
}

// RegisterTemplate makes a template provable through this prover.
// Registration is idempotent; re-registering a template replaces its binding.
func (p *Prover) RegisterTemplate(tmpl *template.Template) error {
	_, err := p.registry.Register(tmpl)
	return err
}

// GenerateProof runs the full pipeline for one request.
func (p *Prover) GenerateProof(ctx context.Context, req ProofRequest) (*ProofResult, error) {
	binding, err := p.registry.Lookup(req.Domain, req.TemplateName)
	if err != nil {
		return nil, WrapConfiguration(err, "resolving template")
	}

	if err := p.checkTemplateWindow(binding, time.Now()); err != nil {
		return nil, err
	}

	extracted, err := p.extractor.Extract(ctx, binding.Template, req.Content, req.URL)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}

	session, err := p.capturer.Capture(ctx, extracted.Domain, req.Content)
	if err != nil {
		return nil, fmt.Errorf("capturing session evidence: %w", err)
	}

	input, err := p.registry.GenerateCircuitInput(binding, req.ClaimName, extracted, req.Threshold, req.ThresholdMax)
	if err != nil {
		return nil, err
	}

	config := binding.ConfigFor(req.ClaimName)
	entry, err := p.cache.Get(config)
	if err != nil {
		return nil, WrapAssets(err, config.Signature())
	}

	assignment, err := BuildAssignment(config.Params(), WitnessInputs{
		Input:   input,
		Claim:   claims.Lookup(req.ClaimName),
		Pattern: []byte(req.Pattern),
		Domain:  extracted.Domain,
		Template: TemplateIdentity{
			ID:      binding.Template.ID,
			Version: binding.Template.Version,
			Domains: binding.Template.Domains(),
			Payload: []byte(binding.Template.Key()),
		},
		Evidence: session.Transcript,
	})
	if err != nil {
		return nil, WrapProving(err, "building witness")
	}

	proof, publicWitness, err := p.prove(ctx, entry, assignment)
	if err != nil {
		return nil, err
	}

	doc, err := MarshalProof(proof, publicWitness)
	if err != nil {
		return nil, WrapProving(err, "serializing proof")
	}

	generatedAt := time.Now().UTC()
	doc.Metadata = ProofMetadata{
		SessionID: session.SessionID.String(),
		Template:  binding.Template.Name,
		Claim:     req.ClaimName,
		Domain:    extracted.Domain,
		Timestamp: generatedAt.Unix(),
		CircuitID: config.Signature(),
	}

	result := &ProofResult{
		ID:          uuid.New(),
		RequestID:   req.RequestID,
		SessionID:   session.SessionID,
		Signature:   config.Signature(),
		ClaimName:   req.ClaimName,
		Domain:      extracted.Domain,
		Proof:       doc,
		Input:       input,
		GeneratedAt: generatedAt,
	}
	p.log.Infof("generated proof %s for %s/%s claim %q", result.ID, req.Domain, req.TemplateName, req.ClaimName)
	return result, nil
}

// prove runs the Groth16 prover under the configured timeout. The prove call
// itself cannot be interrupted, so a timed-out proof is abandoned to its
// goroutine and its result discarded.
func (p *Prover) prove(ctx context.Context, entry *assets.Entry, assignment frontend.Circuit) (groth16.Proof, witness.Witness, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type proveOutput struct {
		proof  groth16.Proof
		public witness.Witness
		err    error
	}
	done := make(chan proveOutput, 1)

	go func() {
		fullWitness, err := frontend.NewWitness(assignment, circuits.CurveID.ScalarField())
		if err != nil {
			done <- proveOutput{err: WrapProving(err, "building full witness")}
			return
		}
		proof, err := groth16.Prove(entry.Constraints, entry.ProvingKey, fullWitness)
		if err != nil {
			done <- proveOutput{err: WrapProving(err, "groth16 prove")}
			return
		}
		publicWitness, err := fullWitness.Public()
		if err != nil {
			done <- proveOutput{err: WrapProving(err, "projecting public witness")}
			return
		}
		done <- proveOutput{proof: proof, public: publicWitness}
	}()

	select {
	case out := <-done:
		return out.proof, out.public, out.err
	case <-ctx.Done():
		return nil, nil, WrapProving(ctx.Err(), "prove timed out")
	}
}

// VerifyProof checks a proof result. Any malfunction verifies as false.
func (p *Prover) VerifyProof(ctx context.Context, result *ProofResult) (bool, error) {
	if result == nil || result.Proof == nil {
		return false, fmt.Errorf("%w: empty proof result", ErrVerification)
	}
	return p.VerifyProofDocument(ctx, result.Proof)
}

// VerifyProofDocument verifies a wire proof document. The circuit is resolved
// from the document's own metadata.
func (p *Prover) VerifyProofDocument(ctx context.Context, doc *ZKProof) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if doc == nil {
		return false, fmt.Errorf("%w: empty proof document", ErrVerification)
	}

	signature := doc.Metadata.CircuitID
	config, err := assets.ParseSignature(signature)
	if err != nil {
		// Proofs from before configuration signatures carry a plain circuit
		// name; that namespace is resolved separately, not merged.
		legacy, ok := assets.LegacyConfig(signature)
		if !ok {
			return false, fmt.Errorf("%w: %w", ErrVerification, err)
		}
		config = legacy
	}
	entry, err := p.cache.Get(config)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrVerification, err)
	}

	proof, publicWitness, err := UnmarshalProof(doc)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrVerification, err)
	}

	if err := groth16.Verify(proof, entry.VerifyingKey, publicWitness); err != nil {
		p.log.Warnf("proof for %s failed verification: %v", signature, err)
		return false, nil
	}
	return true, nil
}

// BatchItem is the outcome of one request in a batch.
type BatchItem struct {
	Request ProofRequest
	Result  *ProofResult
	Err     error
}

// GenerateProofBatch proves several requests concurrently. One failing
// request does not abort the others; every item carries its own outcome.
func (p *Prover) GenerateProofBatch(ctx context.Context, reqs []ProofRequest) []BatchItem {
	items := make([]BatchItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultBatchConcurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			result, err := p.GenerateProof(gctx, req)
			items[i] = BatchItem{Request: req, Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// SupportedClaims lists the claims provable for a domain.
func (p *Prover) SupportedClaims(domain string) []string {
	return p.registry.SupportedClaims(domain)
}

// IsClaimSupported reports whether a domain has a template extracting the
// claim.
func (p *Prover) IsClaimSupported(domain, claimName string) bool {
	for _, name := range p.registry.SupportedClaims(domain) {
		if name == claimName {
			return true
		}
	}
	return false
}

// CircuitInfo describes the circuit a template's proofs run on.
type CircuitInfo struct {
	Signature     string `json:"signature"`
	DataType      string `json:"dataType"`
	ClaimKind     string `json:"claimKind"`
	MaxDataLength int    `json:"maxDataLength"`
	Compiled      bool   `json:"compiled"`
}

// GetCircuitInfo reports the circuit configuration a template resolves for
// one claim.
func (p *Prover) GetCircuitInfo(domain, templateName, claimName string) (*CircuitInfo, error) {
	binding, err := p.registry.Lookup(domain, templateName)
	if err != nil {
		return nil, err
	}
	config := binding.ConfigFor(claimName)
	return &CircuitInfo{
		Signature:     config.Signature(),
		DataType:      config.DataType,
		ClaimKind:     config.ClaimKind,
		MaxDataLength: config.MaxDataLength,
		Compiled:      p.cache.Contains(config.Signature()),
	}, nil
}

// checkTemplateWindow enforces the store-level template validity times. The
// in-circuit window is wide open for this flow, so the wall-clock check here
// is the binding one.
func (p *Prover) checkTemplateWindow(binding *registry.Binding, now time.Time) error {
	t := binding.Template
	if !t.ValidFrom.IsZero() && now.Before(t.ValidFrom) {
		return WrapConfiguration(fmt.Errorf("template valid from %s", t.ValidFrom), t.Key())
	}
	if !t.ValidUntil.IsZero() && now.After(t.ValidUntil) {
		return WrapConfiguration(fmt.Errorf("template expired at %s", t.ValidUntil), t.Key())
	}
	return nil
}
