// Package chain defines the interface through which the machine and the
// ritual tracker talk to an Ethereum node, together with the closed error
// taxonomy their failure handling switches on. The package consumes a
// go-ethereum style client; it does not implement one.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cipherworks/machina/model/ritual"
)

// BlockTag selects which account state a transaction count query reads.
type BlockTag string

const (
	// Latest counts only mined transactions.
	Latest BlockTag = "latest"
	// Pending additionally counts transactions in the node's mempool.
	Pending BlockTag = "pending"
)

// Client is the subset of node functionality the machine and tracker rely
// on. Implementations must return the package's tagged errors for the
// conditions they cover; everything else is treated as transient only if it
// wraps ErrTimeout or ErrConnection.
type Client interface {
	// TransactionCount returns the sender's transaction count at the
	// given tag. With Pending it includes mempool transactions, which is
	// what nonce assignment normally wants.
	TransactionCount(ctx context.Context, account common.Address, tag BlockTag) (uint64, error)

	// SendTransaction broadcasts a signed transaction.
	SendTransaction(ctx context.Context, tx *types.Transaction) error

	// TransactionReceipt returns the receipt for a mined transaction, or
	// (nil, nil) if the transaction is not mined yet.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	// EstimateGas estimates the gas needed to execute the call.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

	// SuggestGasTipCap returns the node's suggested priority fee.
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)

	// LatestBaseFee returns the base fee of the latest block, or nil on a
	// pre-1559 chain.
	LatestBaseFee(ctx context.Context) (*big.Int, error)

	// BlockNumber returns the latest block height.
	BlockNumber(ctx context.Context) (uint64, error)

	// RitualEvents returns the coordinator contract events in the block
	// range [from, to], both bounds inclusive, ordered by block then log
	// index.
	RitualEvents(ctx context.Context, from, to uint64) ([]ritual.Event, error)

	// Ritual reads the full current on-chain state of a ritual,
	// bypassing event logs. Used by the tracker's out-of-band refresh.
	Ritual(ctx context.Context, id ritual.ID) (*ritual.Ritual, error)
}
