package chain

import (
	"errors"
)

// The machine's failure branching depends on the client reporting these
// conditions as distinct tagged errors, not free-text messages. A conforming
// Client implementation wraps whatever its underlying RPC library returns
// into one of these sentinels.
var (
	// ErrInsufficientFunds means the sender balance cannot cover the
	// transaction cost. Permanent.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNonceTooLow means the transaction's nonce has already been used
	// by a mined transaction. Permanent for the attempted broadcast.
	ErrNonceTooLow = errors.New("nonce too low")

	// ErrReplacementUnderpriced means a re-broadcast at an occupied nonce
	// did not raise the fee enough to replace the prior attempt.
	ErrReplacementUnderpriced = errors.New("replacement transaction underpriced")

	// ErrTimeout means the request did not complete in time. Transient.
	ErrTimeout = errors.New("request timed out")

	// ErrConnection means the connection to the node failed. Transient.
	ErrConnection = errors.New("connection error")
)

// IsTransient reports whether err is a failure that should be retried on the
// next tick without any state change or hook invocation.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection)
}

// IsPermanent reports whether err is a failure that terminally faults the
// transaction it occurred on.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrNonceTooLow)
}
