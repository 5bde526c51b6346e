package txmachine

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/cipherworks/machina/model/tx"
	"github.com/cipherworks/machina/module"
)

const (
	// awaitPollInterval is the initial wait between status polls -
	// increases exponentially for subsequent polls.
	awaitPollInterval = time.Second

	// awaitPollIntervalMax caps the wait between two consecutive polls.
	awaitPollIntervalMax = 30 * time.Second
)

// Await blocks until the transaction reaches a terminal state and returns
// its final snapshot. It polls with exponential backoff and returns early if
// the context is cancelled. This is a convenience for callers that want a
// blocking submit-and-confirm flow instead of hooks.
func Await(ctx context.Context, machine module.TxMachine, id tx.ID) (*tx.PendingTransaction, error) {

	backoff := retry.WithCappedDuration(awaitPollIntervalMax, retry.NewExponential(awaitPollInterval))

	var final *tx.PendingTransaction
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		snapshot, err := machine.Get(id)
		if err != nil {
			return err // unknown id is not retryable
		}
		if !snapshot.State.Terminal() {
			return retry.RetryableError(fmt.Errorf("transaction %d still %s", id, snapshot.State))
		}
		final = snapshot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return final, nil
}
