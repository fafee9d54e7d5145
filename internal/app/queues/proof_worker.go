package queues

import (
	"context"
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/zephis-org/zephis-core/internal/app/chain"
	"github.com/zephis-org/zephis-core/internal/app/prover"
	"github.com/zephis-org/zephis-core/pkg/logger"
	"github.com/zephis-org/zephis-core/pkg/reasoncodes"
)

const (
	ProofWorkerServiceName = "proof-worker"

	ProofRequestConsumerAlias  ConsumerAlias  = "proof-requests"
	ProofResultPublisherAlias  PublisherAlias = "proof-results"
	ProofFailurePublisherAlias PublisherAlias = "proof-failures"
)

// WorkerService is a long-running queue-driven service.
type WorkerService interface {
	GetServiceName() string
	StartService()
}

// ProofWorker consumes proving jobs, runs the pipeline and publishes the
// outcome. Anchoring to the chain is per-job opt-in.
type ProofWorker struct {
	Prover           *prover.Prover
	Submitter        chain.Submitter
	Consumer         IRabbitmqConsumer
	ResultPublisher  IRabbitmqPublisher
	FailurePublisher IRabbitmqPublisher
}

func NewProofWorker(p *prover.Prover, submitter chain.Submitter) *ProofWorker {
	return &ProofWorker{
		Prover:           p,
		Submitter:        submitter,
		Consumer:         GetConsumer(ProofRequestConsumerAlias),
		ResultPublisher:  GetPublisher(ProofResultPublisherAlias),
		FailurePublisher: GetPublisher(ProofFailurePublisherAlias),
	}
}

func (w *ProofWorker) GetServiceName() string {
	return ProofWorkerServiceName
}

func (w *ProofWorker) StartService() {
	w.Consumer.StartConsuming(w.handleDelivery)
}

func (w *ProofWorker) handleDelivery(d amqp.Delivery) {
	workerLogger := logger.Default()

	var message ProofRequestDto
	responseFactory := NewProofFailureFactory("", d.Body)

	if err := json.Unmarshal(d.Body, &message); err != nil {
		result := responseFactory.CreateErrorDto(err, reasoncodes.ErrUnmarshal)

		_ = w.FailurePublisher.Publish(result)
		return
	}
	responseFactory = NewProofFailureFactory(message.EventId, d.Body)

	result, err := w.Prover.GenerateProof(context.Background(), message.Request)
	if err != nil {
		workerLogger.Errorf(err, "Failed to generate proof for event %s", message.EventId)
		response := responseFactory.CreateErrorDto(err, failureReason(err))

		_ = w.FailurePublisher.Publish(response)
		return
	}

	response := ProofResultDto{
		EventId: message.EventId,
		ProofId: result.ID.String(),
		Circuit: result.Signature,
		Proof:   result.Proof,
	}

	if message.Anchor && w.Submitter != nil {
		anchor, err := w.anchor(result)
		if err != nil {
			workerLogger.Errorf(err, "Unable to anchor proof %s", result.ID)
			failure := responseFactory.CreateErrorDto(err, reasoncodes.ErrSolana)

			_ = w.FailurePublisher.Publish(failure)
			return
		}
		response.Signature = anchor.Signature.String()
		response.AccountId = anchor.Account.String()
	}

	_ = w.ResultPublisher.Publish(response)
	workerLogger.Infof("Processed proving job %s, proof %s (circuit %s)", message.EventId, response.ProofId, response.Circuit)
}

func (w *ProofWorker) anchor(result *prover.ProofResult) (*chain.Anchor, error) {
	proof, publicWitness, err := prover.UnmarshalProof(result.Proof)
	if err != nil {
		return nil, err
	}
	blob, err := prover.SerializeBorsh(proof, publicWitness)
	if err != nil {
		return nil, err
	}
	return w.Submitter.Submit(context.Background(), blob)
}

// failureReason maps pipeline errors onto wire reason codes.
func failureReason(err error) reasoncodes.ReasonCode {
	var validation *prover.ValidationError
	switch {
	case errors.As(err, &validation):
		return reasoncodes.ErrValidation
	case errors.Is(err, prover.ErrConfiguration):
		return reasoncodes.ErrTemplateResolution
	default:
		return reasoncodes.ErrProofGeneration
	}
}
