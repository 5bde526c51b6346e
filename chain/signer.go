package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces signatures for transactions sent from a single address.
// The machine borrows a Signer for each queued transaction; it never owns
// one.
type Signer interface {
	// Address returns the account this signer signs for.
	Address() common.Address

	// SignTx signs the transaction.
	SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
}

// LocalSigner signs with an in-process secp256k1 private key.
type LocalSigner struct {
	chainID *big.Int
	key     *ecdsa.PrivateKey
	address common.Address
}

var _ Signer = (*LocalSigner)(nil)

// NewLocalSigner wraps a private key as a Signer for the given chain.
func NewLocalSigner(chainID *big.Int, key *ecdsa.PrivateKey) (*LocalSigner, error) {
	if chainID == nil {
		return nil, fmt.Errorf("chain id must be provided")
	}
	return &LocalSigner{
		chainID: chainID,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (s *LocalSigner) Address() common.Address { return s.address }

func (s *LocalSigner) SignTx(_ context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
}
