package module

import (
	"context"

	"github.com/cipherworks/machina/model/tx"
)

// TxMachine manages the lifecycle of transactions from a fixed set of
// signers: it assigns nonces, broadcasts, monitors for inclusion, applies
// fee bumps on stall, and reports terminal outcomes through lifecycle hooks.
type TxMachine interface {
	ReadyDoneAware
	Startable

	// Queue accepts a transaction for processing and returns its id. The
	// params must not carry a nonce; one is assigned when the
	// transaction is scheduled for broadcast. There is no guarantee of
	// immediate broadcast. Returns tx.ErrInvalidParameters if required
	// fields are missing.
	Queue(params tx.Params, hooks tx.Hooks) (tx.ID, error)

	// Cancel removes a transaction that has not yet been broadcast. No
	// nonce has been consumed, so cancellation has no on-chain side
	// effects. Returns tx.ErrUnknownTransaction if the id was never
	// queued, or tx.ErrNotCancellable if the transaction is already in
	// flight or terminal.
	Cancel(id tx.ID) error

	// Replace explicitly broadcasts a zero-effect transaction at the
	// same nonce as an in-flight transaction, abandoning the original
	// body. This is a distinct operation from the speedup path and is
	// never triggered automatically.
	Replace(ctx context.Context, id tx.ID) error

	// Get returns a read-only snapshot of the transaction. Returns
	// tx.ErrUnknownTransaction if the id was never queued.
	Get(id tx.ID) (*tx.PendingTransaction, error)
}
