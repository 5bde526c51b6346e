// Package tx contains the data model for transactions managed by the
// transaction machine: their parameters, lifecycle states, and the
// append-only record of broadcast attempts.
package tx

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ID is an opaque monotonic identifier assigned to a transaction when it is
// queued. IDs are unique within a single machine instance and are never
// reused.
type ID uint64

// State enumerates the lifecycle states of a managed transaction.
// Broadcast and Pending both mean "in flight, unconfirmed"; they are
// distinguished only by whether a receipt lookup has completed at least once
// since the last broadcast.
type State uint8

const (
	// StateQueued is the initial state: accepted but not yet broadcast,
	// no nonce consumed.
	StateQueued State = iota
	// StateBroadcast means the signed transaction has been sent to the
	// network but no receipt lookup has completed yet.
	StateBroadcast
	// StatePending means the transaction is in flight and at least one
	// receipt lookup has completed without finding it mined.
	StatePending
	// StateFinalized is terminal: mined with a successful status.
	StateFinalized
	// StateFaulted is terminal: the transaction permanently failed
	// (reverted, timed out, insufficient funds, or cancelled).
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateBroadcast:
		return "broadcast"
	case StatePending:
		return "pending"
	case StateFinalized:
		return "finalized"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Terminal returns true if no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateFaulted
}

// InFlight returns true if the transaction has been sent to the network and
// has not yet reached a terminal state.
func (s State) InFlight() bool {
	return s == StateBroadcast || s == StatePending
}

// FaultReason describes why a transaction entered StateFaulted.
type FaultReason uint8

const (
	FaultNone FaultReason = iota
	// FaultReverted means the transaction was mined but its execution
	// reverted.
	FaultReverted
	// FaultTimeout means the transaction was not mined within its
	// deadline.
	FaultTimeout
	// FaultInsufficientFunds means the sender balance could not cover the
	// transaction cost.
	FaultInsufficientFunds
	// FaultInvalid means the transaction could not be built or signed.
	FaultInvalid
	// FaultCancelled means the caller explicitly replaced the
	// transaction with a zero-effect send and the replacement mined.
	FaultCancelled
)

func (r FaultReason) String() string {
	switch r {
	case FaultNone:
		return "none"
	case FaultReverted:
		return "reverted"
	case FaultTimeout:
		return "timeout"
	case FaultInsufficientFunds:
		return "insufficient funds"
	case FaultInvalid:
		return "invalid"
	case FaultCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// ErrInvalidParameters is returned when queueing a transaction whose
// parameters fail validation. It is a caller error and is never retried.
var ErrInvalidParameters = errors.New("invalid transaction parameters")

// Params holds the caller-supplied fields of a transaction request. The
// nonce is always assigned by the machine; callers must leave it unset.
type Params struct {
	From      common.Address
	To        common.Address
	Data      []byte
	Value     *big.Int
	Gas       uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int

	// Nonce is managed by the machine. It is only meaningful once the
	// transaction has been scheduled for broadcast.
	Nonce *uint64
}

// Validate checks that the required fields are present and that the caller
// has not supplied a nonce. All violations wrap ErrInvalidParameters.
func (p *Params) Validate() error {
	if p.From == (common.Address{}) {
		return fmt.Errorf("%w: missing from address", ErrInvalidParameters)
	}
	if p.To == (common.Address{}) {
		return fmt.Errorf("%w: missing to address", ErrInvalidParameters)
	}
	if p.Gas == 0 {
		return fmt.Errorf("%w: missing gas limit", ErrInvalidParameters)
	}
	if p.GasTipCap == nil || p.GasFeeCap == nil {
		return fmt.Errorf("%w: missing fee caps", ErrInvalidParameters)
	}
	if p.Nonce != nil {
		return fmt.Errorf("%w: nonce must not be set by the caller", ErrInvalidParameters)
	}
	return nil
}

// Copy returns a deep copy of the params.
func (p *Params) Copy() Params {
	cpy := *p
	cpy.Data = append([]byte(nil), p.Data...)
	if p.Value != nil {
		cpy.Value = new(big.Int).Set(p.Value)
	}
	if p.GasTipCap != nil {
		cpy.GasTipCap = new(big.Int).Set(p.GasTipCap)
	}
	if p.GasFeeCap != nil {
		cpy.GasFeeCap = new(big.Int).Set(p.GasFeeCap)
	}
	if p.Nonce != nil {
		nonce := *p.Nonce
		cpy.Nonce = &nonce
	}
	return cpy
}

// BroadcastAttempt records one broadcast of a transaction body. Every
// speedup re-broadcast appends a new attempt; attempts are never removed, so
// the slice is a full audit history.
type BroadcastAttempt struct {
	Hash      common.Hash
	GasTipCap *big.Int
	GasFeeCap *big.Int
	Time      time.Time
}

// PendingTransaction is the machine's record of one managed transaction.
// It is mutated only by the machine's tick loop; callers observe it through
// Snapshot copies.
type PendingTransaction struct {
	ID       ID
	Params   Params
	State    State
	Fault    FaultReason
	Attempts []BroadcastAttempt

	CreatedAt     time.Time
	LastCheckedAt time.Time
	Deadline      time.Time
}

// LatestAttempt returns the most recent broadcast attempt, or nil if the
// transaction has never been broadcast.
func (p *PendingTransaction) LatestAttempt() *BroadcastAttempt {
	if len(p.Attempts) == 0 {
		return nil
	}
	return &p.Attempts[len(p.Attempts)-1]
}

// Snapshot returns a deep copy safe for concurrent read access.
func (p *PendingTransaction) Snapshot() *PendingTransaction {
	cpy := &PendingTransaction{
		ID:            p.ID,
		Params:        p.Params.Copy(),
		State:         p.State,
		Fault:         p.Fault,
		CreatedAt:     p.CreatedAt,
		LastCheckedAt: p.LastCheckedAt,
		Deadline:      p.Deadline,
	}
	cpy.Attempts = make([]BroadcastAttempt, len(p.Attempts))
	for i, a := range p.Attempts {
		cpy.Attempts[i] = BroadcastAttempt{
			Hash: a.Hash,
			Time: a.Time,
		}
		if a.GasTipCap != nil {
			cpy.Attempts[i].GasTipCap = new(big.Int).Set(a.GasTipCap)
		}
		if a.GasFeeCap != nil {
			cpy.Attempts[i].GasFeeCap = new(big.Int).Set(a.GasFeeCap)
		}
	}
	return cpy
}
