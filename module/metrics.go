package module

import "time"

// MachineMetrics collects measurements from the transaction machine.
type MachineMetrics interface {
	// TransactionQueued is called when a transaction is accepted.
	TransactionQueued()
	// TransactionBroadcast is called on every successful first broadcast.
	TransactionBroadcast()
	// TransactionSpedUp is called on every fee-bump re-broadcast.
	TransactionSpedUp()
	// TransactionFinalized is called when a transaction is mined
	// successfully.
	TransactionFinalized()
	// TransactionFaulted is called when a transaction terminally fails,
	// with the fault reason.
	TransactionFaulted(reason string)
	// QueueDepth reports the current number of queued transactions.
	QueueDepth(depth uint)
}

// TrackerMetrics collects measurements from the ritual tracker.
type TrackerMetrics interface {
	// ScanCompleted is called after a successful scan cycle.
	ScanCompleted(duration time.Duration, events uint)
	// ScanFailed is called when a scan cycle errors.
	ScanFailed()
	// RitualObserved is called when a ritual is recorded for the first
	// time.
	RitualObserved()
	// ActiveRituals reports the number of tracked non-terminal rituals.
	ActiveRituals(count uint)
}
