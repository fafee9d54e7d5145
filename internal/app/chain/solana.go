// Package chain anchors proof blobs on Solana: each anchored proof gets a
// dedicated account owned by the verifier program, populated with the borsh
// payload.
package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/zephis-org/zephis-core/pkg/logger"
)

// Anchor references an anchored proof on chain.
type Anchor struct {
	Signature solana.Signature `json:"signature"`
	Account   solana.PublicKey `json:"account"`
}

// Submitter writes a proof blob to a chain and returns its anchor.
type Submitter interface {
	Submit(ctx context.Context, blob []byte) (*Anchor, error)
}

// Keys are the signing identities of the submitter: the verifier program
// that owns anchored accounts and the payer funding them.
type Keys struct {
	ContractPublicKey solana.PublicKey
	AccountPublicKey  solana.PublicKey
	AccountPrivateKey solana.PrivateKey
}

// SolanaSubmitter anchors blobs through direct account creation.
type SolanaSubmitter struct {
	rpcClient *rpc.Client
	mu        sync.Mutex
	keys      Keys
	log       *logger.Logger
}

func NewSolanaSubmitter(endpoint string, keys Keys) *SolanaSubmitter {
	return &SolanaSubmitter{
		rpcClient: rpc.New(endpoint),
		keys:      keys,
		log:       logger.Default(),
	}
}

// accountSpace is the allocation for an anchored account. A small margin on
// top of the blob keeps room for program-side bookkeeping.
func accountSpace(blob []byte) uint64 {
	return uint64(len(blob)) + 64
}

// Submit creates a fresh account owned by the verifier program and populates
// it with the blob in a single transaction.
func (s *SolanaSubmitter) Submit(ctx context.Context, blob []byte) (*Anchor, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("refusing to anchor an empty blob")
	}

	space := accountSpace(blob)
	s.log.Infof("Proof blob size: %d bytes, allocated space: %d bytes", len(blob), space)

	rent, err := s.rpcClient.GetMinimumBalanceForRentExemption(
		ctx,
		space,
		rpc.CommitmentFinalized,
	)
	if err != nil {
		return nil, fmt.Errorf("querying rent exemption: %w", err)
	}
	s.log.Infof("Required rent for account: %d lamports", rent)

	newAccount, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	s.log.Infof("Generated new account: %s", newAccount.PublicKey().String())

	// Key material may be rotated by the loader; read it under the lock.
	s.mu.Lock()

	createAccountInstruction := system.NewCreateAccountInstruction(
		rent,
		space,
		s.keys.ContractPublicKey, // owner = ProgramID
		s.keys.AccountPublicKey,  // payer (FROM)
		newAccount.PublicKey(),   // new account (NEW)
	).Build()

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(newAccount.PublicKey(), false, true),
		solana.NewAccountMeta(s.keys.AccountPublicKey, true, true),
	}

	anchorInstruction := solana.NewInstruction(
		s.keys.ContractPublicKey,
		accounts,
		blob,
	)

	payer := s.keys.AccountPublicKey
	payerKey := s.keys.AccountPrivateKey
	s.mu.Unlock()

	latest, err := s.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("fetching blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{createAccountInstruction, anchorInstruction},
		latest.Value.Blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(payer) {
			return &payerKey
		}
		if pk.Equals(newAccount.PublicKey()) {
			return &newAccount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}

	signature, err := s.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return nil, fmt.Errorf("sending transaction: %w", err)
	}

	s.log.Infof("Anchored proof with signature %s in account %s", signature.String(), newAccount.PublicKey().String())
	return &Anchor{
		Signature: signature,
		Account:   newAccount.PublicKey(),
	}, nil
}
