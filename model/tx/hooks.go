package tx

import "errors"

var (
	// ErrUnknownTransaction is returned when querying an id that was
	// never queued or has been purged.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrNotCancellable is returned when cancelling a transaction that
	// has already been broadcast or is terminal. An in-flight
	// transaction can only be abandoned by an explicit replacement.
	ErrNotCancellable = errors.New("transaction is not cancellable")
)

// Hooks is the closed set of lifecycle callback slots for one transaction.
// Nil slots are skipped. For every transaction that reaches a terminal
// state, exactly one of OnFault, OnFinalized, or OnInsufficientFunds fires,
// exactly once. OnBroadcast fires once per successful first broadcast (not
// per speedup); OnBroadcastFailure fires on permanent broadcast failure,
// before the matching terminal hook.
type Hooks struct {
	OnBroadcast         func(latest *PendingTransaction)
	OnBroadcastFailure  func(latest *PendingTransaction, err error)
	OnFault             func(latest *PendingTransaction)
	OnFinalized         func(latest *PendingTransaction)
	OnInsufficientFunds func(latest *PendingTransaction, err error)
}
