package chain

import (
	"github.com/gagliardetto/solana-go"
)

// LoadKeys reads the verifier program keypair and the payer keypair from
// solana-keygen files.
func LoadKeys(contractKeypairFile, payerKeypairFile string) (Keys, error) {
	contractPrivateKey, err := solana.PrivateKeyFromSolanaKeygenFile(contractKeypairFile)
	if err != nil {
		return Keys{}, err
	}

	accountPrivateKey, err := solana.PrivateKeyFromSolanaKeygenFile(payerKeypairFile)
	if err != nil {
		return Keys{}, err
	}

	return Keys{
		ContractPublicKey: contractPrivateKey.PublicKey(),
		AccountPublicKey:  accountPrivateKey.PublicKey(),
		AccountPrivateKey: accountPrivateKey,
	}, nil
}
