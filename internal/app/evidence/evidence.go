// Package evidence captures the session-level material a proof commits to
// alongside the extracted data.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionEvidence is the captured session material. Transcript carries the
// bytes the session commitment is computed over; CertificateFingerprint and
// KeyFingerprint identify the server the session was held with.
type SessionEvidence struct {
	SessionID              uuid.UUID `json:"session_id"`
	Domain                 string    `json:"domain"`
	CapturedAt             time.Time `json:"captured_at"`
	CertificateFingerprint []byte    `json:"certificate_fingerprint"`
	KeyFingerprint         []byte    `json:"key_fingerprint"`
	Transcript             []byte    `json:"transcript"`
}

// Capturer produces session evidence for a domain.
type Capturer interface {
	Capture(ctx context.Context, domain string, content string) (*SessionEvidence, error)
}

// SimulatedCapturer derives deterministic synthetic evidence from the domain
// and content. It stands in for a real TLS-transcript capturer in local and
// test environments; the commitment pipeline downstream is identical.
type SimulatedCapturer struct {
	seed []byte
}

func NewSimulatedCapturer(seed string) *SimulatedCapturer {
	return &SimulatedCapturer{seed: []byte(seed)}
}

func (c *SimulatedCapturer) Capture(ctx context.Context, domain string, content string) (*SessionEvidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if domain == "" {
		return nil, fmt.Errorf("cannot capture evidence without a domain")
	}

	now := time.Now().UTC()

	cert := c.digest("cert", domain)
	key := c.digest("key", domain)

	// The transcript binds domain, content digest and capture time, so two
	// captures of different content never share a session commitment.
	contentDigest := sha256.Sum256([]byte(content))
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(now.Unix()))

	transcript := make([]byte, 0, len(domain)+len(contentDigest)+len(ts))
	transcript = append(transcript, []byte(domain)...)
	transcript = append(transcript, contentDigest[:]...)
	transcript = append(transcript, ts[:]...)

	return &SessionEvidence{
		SessionID:              uuid.New(),
		Domain:                 domain,
		CapturedAt:             now,
		CertificateFingerprint: cert,
		KeyFingerprint:         key,
		Transcript:             transcript,
	}, nil
}

func (c *SimulatedCapturer) digest(kind, domain string) []byte {
	h := sha256.New()
	h.Write(c.seed)
	h.Write([]byte(kind))
	h.Write([]byte(domain))
	return h.Sum(nil)
}
