package txmachine

import (
	"math/big"
	"time"
)

// Config tunes the machine's scheduling and speedup behavior.
type Config struct {
	// ChainID of the target chain, required to sign typed transactions.
	ChainID *big.Int

	// TickInterval is the period of the scheduler loop driving RunOnce.
	TickInterval time.Duration

	// MinSpeedupWait is the minimum time an in-flight transaction must go
	// unmined after its last broadcast before a fee bump is attempted.
	MinSpeedupWait time.Duration

	// SpeedupFactor multiplies the prior tip and fee caps on every bump.
	// The chain's default replacement threshold is a 10% raise, so the
	// factor must exceed 1.10 for bumps to be accepted.
	SpeedupFactor float64

	// MaxFeeCap optionally bounds how high speedups may push the fee cap.
	// Once the cap is reached the transaction is left to its deadline.
	MaxFeeCap *big.Int

	// TxDeadline bounds how long a transaction may remain unmined after
	// queueing before it is faulted with a timeout.
	TxDeadline time.Duration

	// StuckRecovery switches nonce assignment to the confirmed ("latest")
	// transaction count, for recovering from a mempool wedged by
	// unminable transactions. Normal operation prefers the
	// pending-inclusive count.
	StuckRecovery bool
}

// DefaultConfig returns the machine defaults.
func DefaultConfig(chainID *big.Int) Config {
	return Config{
		ChainID:        chainID,
		TickInterval:   5 * time.Second,
		MinSpeedupWait: 2 * time.Minute,
		SpeedupFactor:  1.125,
		TxDeadline:     30 * time.Minute,
	}
}
