// Package ritualtracker implements the ritual tracker: a poll-based scanner
// of coordinator contract events which maintains a monotonically-advancing
// in-memory view of every DKG ritual it observes. Scanning is watermark
// driven with a configurable block overlap, so re-delivered events are
// expected and applied idempotently.
package ritualtracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/cipherworks/machina/chain"
	"github.com/cipherworks/machina/model/ritual"
	"github.com/cipherworks/machina/module"
	"github.com/cipherworks/machina/module/component"
	"github.com/cipherworks/machina/module/counters"
	"github.com/cipherworks/machina/module/irrecoverable"
	"github.com/cipherworks/machina/module/metrics"
)

const (
	// refreshRetryInterval is the initial wait between refresh attempts -
	// increases exponentially for subsequent attempts.
	refreshRetryInterval = time.Second

	// refreshRetryMax is the maximum number of attempts to refetch a
	// ritual's on-chain state before giving up.
	refreshRetryMax = 5
)

// Config tunes the tracker's scanning behavior.
type Config struct {
	// ScanInterval is the period of the scan loop.
	ScanInterval time.Duration

	// ScanOverlapBlocks is how far below the watermark each scan starts,
	// to tolerate events appearing near a chain reorganization. Must be
	// at least 1.
	ScanOverlapBlocks uint64

	// StartBlock is the lowest block the tracker will ever scan,
	// typically the coordinator contract's deployment height.
	StartBlock uint64

	// MaxBlocksPerScan bounds the block range of a single scan cycle so
	// catch-up after downtime happens in digestible batches.
	MaxBlocksPerScan uint64

	// RitualTimeout is the protocol-level deadline measured from a
	// ritual's initiation. A ritual still in a non-terminal phase past
	// it is marked timed out locally.
	RitualTimeout time.Duration
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		ScanInterval:      10 * time.Second,
		ScanOverlapBlocks: 2,
		MaxBlocksPerScan:  1000,
		RitualTimeout:     time.Hour,
	}
}

// Tracker implements module.RitualTracker. Ritual records are mutated only
// by the scan loop and by Refresh; callers observe them through snapshots.
type Tracker struct {
	*component.ComponentManager

	log     zerolog.Logger
	client  chain.Client
	conf    Config
	metrics module.TrackerMetrics
	now     func() time.Time

	mu      sync.Mutex
	rituals map[ritual.ID]*ritual.Ritual

	// watermark is the highest block whose events have all been applied
	watermark counters.StrictMonotonicCounter
}

var _ module.RitualTracker = (*Tracker)(nil)

// Option customizes a Tracker.
type Option func(*Tracker)

// WithMetrics sets the metrics collector.
func WithMetrics(collector module.TrackerMetrics) Option {
	return func(t *Tracker) {
		t.metrics = collector
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// New creates a Tracker scanning from conf.StartBlock.
func New(log zerolog.Logger, client chain.Client, conf Config, opts ...Option) (*Tracker, error) {
	if conf.ScanOverlapBlocks < 1 {
		return nil, fmt.Errorf("scan overlap must be at least one block")
	}

	t := &Tracker{
		log:       log.With().Str("component", "ritual_tracker").Logger(),
		client:    client,
		conf:      conf,
		metrics:   metrics.NewNoopCollector(),
		now:       time.Now,
		rituals:   make(map[ritual.ID]*ritual.Ritual),
		watermark: counters.NewMonotonicCounter(conf.StartBlock),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(t.loop).
		Build()

	return t, nil
}

// Get returns a read-only snapshot of a ritual.
func (t *Tracker) Get(id ritual.ID) (*ritual.Ritual, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.rituals[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ritual.ErrUnknownRitual, id)
	}
	return record.Snapshot(), nil
}

// loop drives Scan on the configured interval until shutdown. Scan errors
// are absorbed and retried on the next cycle; the watermark is untouched by
// a failed cycle, so no events are lost.
func (t *Tracker) loop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	ticker := time.NewTicker(t.conf.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := t.Scan(ctx)
			if err != nil {
				t.log.Warn().Err(err).Msg("scan cycle failed, will retry")
			}
		}
	}
}

// Scan runs a single poll cycle. The scan range starts ScanOverlapBlocks
// below the watermark and the whole batch is applied all-or-nothing: the
// watermark advances only after every event in the batch applied, so a
// partially-failed batch is re-scanned in full on the next cycle.
func (t *Tracker) Scan(ctx context.Context) error {

	head, err := t.client.BlockNumber(ctx)
	if err != nil {
		t.metrics.ScanFailed()
		return fmt.Errorf("could not get chain head: %w", err)
	}

	from := t.watermark.Value()
	if from > t.conf.ScanOverlapBlocks {
		from -= t.conf.ScanOverlapBlocks
	} else {
		from = 0
	}
	if from < t.conf.StartBlock {
		from = t.conf.StartBlock
	}
	to := head
	if to > from+t.conf.MaxBlocksPerScan {
		to = from + t.conf.MaxBlocksPerScan
	}
	if to < from {
		return nil
	}

	started := t.now()
	events, err := t.client.RitualEvents(ctx, from, to)
	if err != nil {
		t.metrics.ScanFailed()
		return fmt.Errorf("could not fetch events in range [%d, %d]: %w", from, to, err)
	}

	err = t.applyBatch(events)
	if err != nil {
		t.metrics.ScanFailed()
		return fmt.Errorf("could not apply event batch for range [%d, %d]: %w", from, to, err)
	}

	t.watermark.Set(to)
	t.sweepTimeouts()

	t.metrics.ScanCompleted(t.now().Sub(started), uint(len(events)))
	t.log.Debug().
		Uint64("from_block", from).
		Uint64("to_block", to).
		Int("events", len(events)).
		Msg("scan cycle complete")
	return nil
}

// Refresh refetches the full on-chain state of the named rituals with
// exponential backoff, replacing the local records. Chain state is ground
// truth: a refresh may reveal progress the event scan has not seen yet, but
// a locally further-advanced record is never regressed.
func (t *Tracker) Refresh(ctx context.Context, ids ...ritual.ID) error {

	backoff := retry.WithMaxRetries(refreshRetryMax, retry.NewExponential(refreshRetryInterval))

	var result *multierror.Error
	for _, id := range ids {
		id := id
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			fetched, err := t.client.Ritual(ctx, id)
			if err != nil {
				if chain.IsTransient(err) {
					return retry.RetryableError(err)
				}
				return err
			}
			t.adopt(fetched)
			return nil
		})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not refresh ritual %d: %w", id, err))
		}
	}
	return result.ErrorOrNil()
}

// adopt installs a freshly fetched ritual record, unless the local record
// has already advanced past the fetched phase.
func (t *Tracker) adopt(fetched *ritual.Ritual) {
	t.mu.Lock()
	defer t.mu.Unlock()

	local, known := t.rituals[fetched.ID]
	if known && phaseRank(local.Phase) > phaseRank(fetched.Phase) {
		t.log.Warn().
			Uint32("ritual_id", uint32(fetched.ID)).
			Str("local_phase", local.Phase.String()).
			Str("fetched_phase", fetched.Phase.String()).
			Msg("refresh returned earlier phase than local view, keeping local")
		return
	}
	t.rituals[fetched.ID] = fetched.Snapshot()
	if !known {
		t.metrics.RitualObserved()
	}
	t.log.Info().
		Uint32("ritual_id", uint32(fetched.ID)).
		Str("phase", fetched.Phase.String()).
		Msg("ritual refreshed from chain state")
}

// sweepTimeouts marks rituals that overran the protocol deadline. This is a
// local annotation only - it makes no claim about chain-level finality, and
// a later Finalized observation still wins.
func (t *Tracker) sweepTimeouts() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	active := uint(0)
	for _, record := range t.rituals {
		if record.Phase.Terminal() {
			continue
		}
		if now.Sub(record.InitTimestamp) > t.conf.RitualTimeout {
			record.Phase = ritual.PhaseTimedOut
			t.log.Warn().
				Uint32("ritual_id", uint32(record.ID)).
				Time("init_timestamp", record.InitTimestamp).
				Msg("ritual timed out locally")
			continue
		}
		active++
	}
	t.metrics.ActiveRituals(active)
}
