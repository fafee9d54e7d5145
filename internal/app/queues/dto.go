package queues

import (
	"github.com/zephis-org/zephis-core/internal/app/prover"
	"github.com/zephis-org/zephis-core/pkg/reasoncodes"
	"github.com/zephis-org/zephis-core/pkg/utilities"
)

// ProofRequestDto is the consumed proving job.
type ProofRequestDto struct {
	EventId string              `json:"event_id"`
	Request prover.ProofRequest `json:"request"`
	Anchor  bool                `json:"anchor"`
}

// ProofResultDto is published after a successful proof, with the on-chain
// anchor fields filled in when anchoring was requested.
type ProofResultDto struct {
	EventId   string          `json:"event_id"`
	ProofId   string          `json:"proof_id"`
	Circuit   string          `json:"circuit"`
	Proof     *prover.ZKProof `json:"proof"`
	Signature string          `json:"signature,omitempty"`
	AccountId string          `json:"account_id,omitempty"`
}

func (dto ProofResultDto) Serialize() ([]byte, error) {
	return utilities.Serialize[ProofResultDto](dto)
}

// ProofFailureDto reports a failed proving job with its reason code.
type ProofFailureDto struct {
	EventId    string                 `json:"event_id"`
	ReqestBody []byte                 `json:"request_body"`
	Error      string                 `json:"error"`
	ReasonCode reasoncodes.ReasonCode `json:"reason_code"`
}

func (dto ProofFailureDto) Serialize() ([]byte, error) {
	return utilities.Serialize[ProofFailureDto](dto)
}

// ProofFailureFactory stamps failure DTOs with the originating event.
type ProofFailureFactory struct {
	EventId    string
	ReqestBody []byte
}

func NewProofFailureFactory(eventId string, requestBody []byte) ProofFailureFactory {
	return ProofFailureFactory{
		EventId:    eventId,
		ReqestBody: requestBody,
	}
}

func (f ProofFailureFactory) CreateErrorDto(err error, reasonCode reasoncodes.ReasonCode) utilities.Serializable {
	return ProofFailureDto{
		EventId:    f.EventId,
		ReqestBody: f.ReqestBody,
		Error:      err.Error(),
		ReasonCode: reasonCode,
	}
}
