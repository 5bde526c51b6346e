package module

import (
	"context"

	"github.com/cipherworks/machina/model/ritual"
)

// RitualTracker maintains a locally-correct, monotonically-advancing view of
// the DKG rituals coordinated by an on-chain contract, by scanning contract
// events on a fixed interval.
type RitualTracker interface {
	ReadyDoneAware
	Startable

	// Scan runs a single poll cycle: it fetches events past the current
	// watermark (with an overlap of at least one block), applies them to
	// the in-memory ritual records, and advances the watermark only if
	// the whole batch applied. A failed cycle leaves the watermark
	// unchanged and is retried on the next cycle.
	Scan(ctx context.Context) error

	// Refresh refetches the full on-chain state of the named rituals,
	// bypassing incremental event application. Used after a restart or
	// whenever the caller wants ground truth.
	Refresh(ctx context.Context, ids ...ritual.ID) error

	// Get returns a read-only snapshot of a ritual. Returns
	// ritual.ErrUnknownRitual if the ritual was never observed.
	Get(id ritual.ID) (*ritual.Ritual, error)
}
