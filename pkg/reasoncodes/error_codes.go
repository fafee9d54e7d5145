package reasoncodes

type ReasonCode string

const (
	ErrUnmarshal          ReasonCode = "UnmarshalError"
	ErrTemplateResolution ReasonCode = "TemplateResolutionError"
	ErrConfiguration      ReasonCode = "ConfigurationError"
	ErrValidation         ReasonCode = "ValidationError"
	ErrProofGeneration    ReasonCode = "ProofGenerationError"
	ErrSolana             ReasonCode = "SolanaBlockchainError"
)
