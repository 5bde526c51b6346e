package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/cipherworks/machina/model/tx"
)

// Call describes a contract call to be turned into transaction parameters.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int

	// GasLimit optionally overrides gas estimation.
	GasLimit uint64
}

// BuilderConfig tunes fee and gas computation.
type BuilderConfig struct {
	// GasLimitBufferPct is added on top of the node's gas estimate to
	// absorb estimation drift between build and inclusion.
	GasLimitBufferPct uint64

	// BaseFeeMultiplier scales the latest base fee when computing the fee
	// cap: feeCap = multiplier*baseFee + tipCap. Two blocks of maximum
	// base fee growth fit under a multiplier of 2.
	BaseFeeMultiplier int64

	// FallbackTipCap is used when the node cannot suggest a tip.
	FallbackTipCap *big.Int
}

// DefaultBuilderConfig returns the builder defaults.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		GasLimitBufferPct: 15,
		BaseFeeMultiplier: 2,
		FallbackTipCap:    big.NewInt(2_000_000_000), // 2 gwei
	}
}

// Builder assembles EIP-1559 transaction parameters from a contract call
// description, filling in gas limit, tip cap, and fee cap from the chain's
// fee oracle. The nonce is left unset; the machine assigns it at broadcast
// scheduling time.
type Builder struct {
	log    zerolog.Logger
	client Client
	from   common.Address
	conf   BuilderConfig
}

// NewBuilder creates a Builder producing transactions from the given sender.
func NewBuilder(log zerolog.Logger, client Client, from common.Address, conf BuilderConfig) *Builder {
	return &Builder{
		log:    log.With().Str("component", "tx_builder").Logger(),
		client: client,
		from:   from,
		conf:   conf,
	}
}

// BuildParams produces validated transaction parameters for the call.
// Returns an error wrapping the client's tagged errors if the fee or gas
// queries fail.
func (b *Builder) BuildParams(ctx context.Context, call Call) (tx.Params, error) {

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := call.GasLimit
	if gasLimit == 0 {
		estimate, err := b.client.EstimateGas(ctx, ethereum.CallMsg{
			From:  b.from,
			To:    &call.To,
			Value: value,
			Data:  call.Data,
		})
		if err != nil {
			return tx.Params{}, fmt.Errorf("could not estimate gas: %w", err)
		}
		gasLimit = estimate + estimate*b.conf.GasLimitBufferPct/100
		b.log.Debug().
			Uint64("estimated_gas", estimate).
			Uint64("gas_limit", gasLimit).
			Msg("gas estimated")
	}

	tipCap, feeCap, err := b.SuggestFees(ctx)
	if err != nil {
		return tx.Params{}, fmt.Errorf("could not suggest fees: %w", err)
	}

	params := tx.Params{
		From:      b.from,
		To:        call.To,
		Data:      call.Data,
		Value:     value,
		Gas:       gasLimit,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
	}
	if err := params.Validate(); err != nil {
		return tx.Params{}, err
	}
	return params, nil
}

// SuggestFees returns a tip cap and fee cap from the chain's fee oracle.
// The fee cap is multiplier*baseFee + tipCap so the transaction stays
// includable across near-term base fee growth.
func (b *Builder) SuggestFees(ctx context.Context) (*big.Int, *big.Int, error) {

	tipCap, err := b.client.SuggestGasTipCap(ctx)
	if err != nil {
		if !IsTransient(err) {
			return nil, nil, fmt.Errorf("could not suggest tip cap: %w", err)
		}
		tipCap = new(big.Int).Set(b.conf.FallbackTipCap)
		b.log.Warn().Err(err).
			Str("fallback_tip_cap", tipCap.String()).
			Msg("tip suggestion failed, using fallback")
	}

	baseFee, err := b.client.LatestBaseFee(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("could not fetch base fee: %w", err)
	}

	feeCap := new(big.Int).Set(tipCap)
	if baseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(baseFee, big.NewInt(b.conf.BaseFeeMultiplier)))
	}
	return tipCap, feeCap, nil
}
