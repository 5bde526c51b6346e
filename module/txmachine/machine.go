// Package txmachine implements the transaction machine: a per-signer-set
// queue of transactions which are assigned collision-free nonces, broadcast,
// monitored until terminal, and fee-bumped when they stall. Terminal
// outcomes are reported through the lifecycle hooks attached at queue time,
// exactly once per transaction.
package txmachine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ef-ds/deque"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/cipherworks/machina/chain"
	"github.com/cipherworks/machina/model/tx"
	"github.com/cipherworks/machina/module"
	"github.com/cipherworks/machina/module/component"
	"github.com/cipherworks/machina/module/counters"
	"github.com/cipherworks/machina/module/irrecoverable"
	"github.com/cipherworks/machina/module/metrics"
)

// ErrNotInFlight is returned by Replace when the transaction is not in the
// broadcast/pending window: either it has not consumed a nonce yet (cancel
// it instead) or it is already terminal.
var ErrNotInFlight = errors.New("transaction is not in flight")

// noopGasLimit is the intrinsic gas of a plain value transfer, used for
// zero-effect replacement transactions.
const noopGasLimit = 21_000

// record is the machine's internal state for one transaction. All fields are
// guarded by the machine mutex.
type record struct {
	ptx   *tx.PendingTransaction
	hooks tx.Hooks

	// broadcasting is set while the tick loop is committing a nonce to
	// this transaction, to fence off concurrent cancellation.
	broadcasting bool

	// replacedAt is the index of the first zero-effect replacement
	// attempt, or -1 if the transaction was never replaced.
	replacedAt int

	// bumpTipCap/bumpFeeCap remember the caps of a replacement that the
	// chain rejected as underpriced, so the next bump starts above them.
	bumpTipCap *big.Int
	bumpFeeCap *big.Int

	terminalFired bool
}

// Machine implements module.TxMachine. A single Machine instance serializes
// nonce assignment for its signer set; independent instances share no state
// and may run concurrently.
type Machine struct {
	*component.ComponentManager

	log      zerolog.Logger
	client   chain.Client
	conf     Config
	strategy SpeedupStrategy
	metrics  module.MachineMetrics
	signers  map[common.Address]chain.Signer
	now      func() time.Time

	mu       sync.Mutex
	records  map[tx.ID]*record
	queues   map[common.Address]*deque.Deque
	inFlight map[common.Address]tx.ID
	ids      counters.StrictMonotonicCounter

	// hooks run on a single-worker pool so they fire off the tick loop
	// but in state-machine order
	pool *workerpool.WorkerPool
}

var _ module.TxMachine = (*Machine)(nil)

// Option customizes a Machine.
type Option func(*Machine)

// WithMetrics sets the metrics collector.
func WithMetrics(collector module.MachineMetrics) Option {
	return func(m *Machine) {
		m.metrics = collector
	}
}

// WithStrategy overrides the speedup strategy.
func WithStrategy(strategy SpeedupStrategy) Option {
	return func(m *Machine) {
		m.strategy = strategy
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// New creates a Machine for the given signer set. The machine owns nonce
// assignment for every signer address in the set; no other process should
// send transactions from those accounts while the machine runs.
func New(log zerolog.Logger, client chain.Client, conf Config, signers []chain.Signer, opts ...Option) (*Machine, error) {
	if conf.ChainID == nil {
		return nil, fmt.Errorf("chain id must be configured")
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("at least one signer must be provided")
	}

	m := &Machine{
		log:      log.With().Str("component", "tx_machine").Logger(),
		client:   client,
		conf:     conf,
		strategy: &ExponentialSpeedup{Factor: conf.SpeedupFactor, MaxFeeCap: conf.MaxFeeCap},
		metrics:  metrics.NewNoopCollector(),
		signers:  make(map[common.Address]chain.Signer, len(signers)),
		now:      time.Now,
		records:  make(map[tx.ID]*record),
		queues:   make(map[common.Address]*deque.Deque),
		inFlight: make(map[common.Address]tx.ID),
		pool:     workerpool.New(1),
	}
	for _, signer := range signers {
		if _, ok := m.signers[signer.Address()]; ok {
			return nil, fmt.Errorf("duplicate signer for %s", signer.Address())
		}
		m.signers[signer.Address()] = signer
		m.queues[signer.Address()] = deque.New()
	}
	for _, opt := range opts {
		opt(m)
	}

	m.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(m.loop).
		Build()

	return m, nil
}

// Queue accepts a transaction for processing and returns its id. The params
// must not carry a nonce. The transaction may be queued behind earlier
// transactions from the same sender; there is no guarantee of immediate
// broadcast.
func (m *Machine) Queue(params tx.Params, hooks tx.Hooks) (tx.ID, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	queue, ok := m.queues[params.From]
	if !ok {
		return 0, fmt.Errorf("%w: no signer for sender %s", tx.ErrInvalidParameters, params.From)
	}

	now := m.now()
	id := tx.ID(m.ids.Increment())
	m.records[id] = &record{
		ptx: &tx.PendingTransaction{
			ID:        id,
			Params:    params.Copy(),
			State:     tx.StateQueued,
			CreatedAt: now,
			Deadline:  now.Add(m.conf.TxDeadline),
		},
		hooks:      hooks,
		replacedAt: -1,
	}
	queue.PushBack(id)

	m.metrics.TransactionQueued()
	m.metrics.QueueDepth(m.queueDepthLocked())
	m.log.Debug().
		Uint64("tx_id", uint64(id)).
		Str("from", params.From.Hex()).
		Str("to", params.To.Hex()).
		Msg("transaction queued")

	return id, nil
}

// Cancel removes a transaction that has not consumed a nonce yet. The record
// is purged entirely; subsequent Get calls return tx.ErrUnknownTransaction.
func (m *Machine) Cancel(id tx.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return tx.ErrUnknownTransaction
	}
	if rec.ptx.State != tx.StateQueued || rec.broadcasting {
		return tx.ErrNotCancellable
	}

	// the queued id is skipped lazily when the queue head is next read
	delete(m.records, id)
	m.metrics.QueueDepth(m.queueDepthLocked())
	m.log.Debug().Uint64("tx_id", uint64(id)).Msg("queued transaction cancelled")
	return nil
}

// Get returns a read-only snapshot of the transaction.
func (m *Machine) Get(id tx.ID) (*tx.PendingTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, tx.ErrUnknownTransaction
	}
	return rec.ptx.Snapshot(), nil
}

// loop drives RunOnce on the configured tick interval until shutdown.
func (m *Machine) loop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	ticker := time.NewTicker(m.conf.TickInterval)
	defer ticker.Stop()
	defer m.pool.StopWait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single scheduler tick: it broadcasts eligible queued
// transactions and monitors in-flight ones. Transient network failures are
// absorbed and retried on the next tick; they never propagate. RunOnce is
// idempotent per tick - calling it twice before any new chain data arrives
// does not double-broadcast.
func (m *Machine) RunOnce(ctx context.Context) {
	m.sweepQueuedDeadlines()
	m.processQueued(ctx)
	m.processInFlight(ctx)
}

// sweepQueuedDeadlines times out every queued transaction that overran its
// deadline, including those waiting behind an in-flight transaction from the
// same sender. Faulted records are lazily popped off their signer queue by
// nextQueued.
func (m *Machine) sweepQueuedDeadlines() {
	m.mu.Lock()
	now := m.now()
	for _, rec := range m.records {
		if rec.ptx.State != tx.StateQueued || rec.broadcasting {
			continue
		}
		if now.After(rec.ptx.Deadline) {
			m.faultLocked(rec, tx.FaultTimeout, nil)
		}
	}
	depth := m.queueDepthLocked()
	m.mu.Unlock()
	m.metrics.QueueDepth(depth)
}

// processQueued broadcasts the head of every signer queue whose nonce slot
// is free.
func (m *Machine) processQueued(ctx context.Context) {
	m.mu.Lock()
	var eligible []common.Address
	for addr, queue := range m.queues {
		if _, busy := m.inFlight[addr]; busy {
			continue
		}
		if queue.Len() > 0 {
			eligible = append(eligible, addr)
		}
	}
	m.mu.Unlock()

	for _, addr := range eligible {
		m.broadcastNext(ctx, addr)
	}
}

// nextQueued pops dead ids off the signer queue and returns the first live
// queued record, fencing it against concurrent cancellation. Returns nil if
// the queue is empty.
func (m *Machine) nextQueued(addr common.Address) (tx.ID, *record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.queues[addr]
	for queue.Len() > 0 {
		head, _ := queue.Front()
		id := head.(tx.ID)
		rec, ok := m.records[id]
		if !ok {
			// cancelled while queued
			queue.PopFront()
			continue
		}
		if rec.ptx.State.Terminal() {
			// timed out by the deadline sweep
			queue.PopFront()
			continue
		}
		if m.now().After(rec.ptx.Deadline) {
			queue.PopFront()
			m.faultLocked(rec, tx.FaultTimeout, nil)
			continue
		}
		rec.broadcasting = true
		return id, rec
	}
	return 0, nil
}

// broadcastNext assigns a nonce to the signer's next queued transaction,
// signs it, and broadcasts it. A transient failure leaves the transaction
// queued for the next tick. A permanent failure faults it.
func (m *Machine) broadcastNext(ctx context.Context, addr common.Address) {
	id, rec := m.nextQueued(addr)
	if rec == nil {
		return
	}

	m.mu.Lock()
	params := rec.ptx.Params.Copy()
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		rec.broadcasting = false
		m.mu.Unlock()
	}

	nonce, err := m.assignNonce(ctx, addr)
	if err != nil {
		m.log.Debug().Err(err).
			Uint64("tx_id", uint64(id)).
			Msg("could not assign nonce, will retry")
		release()
		return
	}

	params.Nonce = &nonce
	signed, err := m.signParams(ctx, addr, params)
	if err != nil {
		// a transaction we cannot sign will never become signable
		m.popAndFault(addr, rec, tx.FaultInvalid, err)
		return
	}

	err = m.client.SendTransaction(ctx, signed)
	if err != nil {
		switch {
		case chain.IsTransient(err):
			m.log.Debug().Err(err).
				Uint64("tx_id", uint64(id)).
				Msg("broadcast failed transiently, will retry")
			release()
		case errors.Is(err, chain.ErrInsufficientFunds):
			m.popAndFault(addr, rec, tx.FaultInsufficientFunds, err)
		default:
			m.popAndFault(addr, rec, tx.FaultInvalid, err)
		}
		return
	}

	m.mu.Lock()
	m.queues[addr].PopFront()
	rec.broadcasting = false
	rec.ptx.Params.Nonce = &nonce
	rec.ptx.State = tx.StateBroadcast
	rec.ptx.Attempts = append(rec.ptx.Attempts, tx.BroadcastAttempt{
		Hash:      signed.Hash(),
		GasTipCap: new(big.Int).Set(params.GasTipCap),
		GasFeeCap: new(big.Int).Set(params.GasFeeCap),
		Time:      m.now(),
	})
	m.inFlight[addr] = id
	snapshot := rec.ptx.Snapshot()
	hook := rec.hooks.OnBroadcast
	m.mu.Unlock()

	m.metrics.TransactionBroadcast()
	m.metrics.QueueDepth(m.queueDepth())
	m.log.Info().
		Uint64("tx_id", uint64(id)).
		Str("tx_hash", signed.Hash().Hex()).
		Uint64("nonce", nonce).
		Msg("transaction broadcast")

	if hook != nil {
		m.pool.Submit(func() { hook(snapshot) })
	}
}

// assignNonce queries the sender's transaction count, preferring the
// pending-inclusive count so nonces already broadcast are not reused. If the
// node reports a pending count below the confirmed count the confirmed count
// is used instead; that inconsistency is logged, never silently absorbed.
// With StuckRecovery set, the confirmed count is always used.
func (m *Machine) assignNonce(ctx context.Context, addr common.Address) (uint64, error) {
	latest, err := m.client.TransactionCount(ctx, addr, chain.Latest)
	if err != nil {
		return 0, fmt.Errorf("could not get confirmed transaction count: %w", err)
	}
	if m.conf.StuckRecovery {
		return latest, nil
	}

	pending, err := m.client.TransactionCount(ctx, addr, chain.Pending)
	if err != nil {
		return 0, fmt.Errorf("could not get pending transaction count: %w", err)
	}
	if pending < latest {
		m.log.Warn().
			Str("account", addr.Hex()).
			Uint64("pending_count", pending).
			Uint64("latest_count", latest).
			Msg("node reported pending count below confirmed count, using confirmed count")
		return latest, nil
	}
	return pending, nil
}

// signParams builds and signs the typed transaction for params. The nonce
// must already be assigned.
func (m *Machine) signParams(ctx context.Context, addr common.Address, params tx.Params) (*types.Transaction, error) {
	signer, ok := m.signers[addr]
	if !ok {
		return nil, fmt.Errorf("no signer for %s", addr)
	}
	unsigned := types.NewTx(&types.DynamicFeeTx{
		ChainID:   m.conf.ChainID,
		Nonce:     *params.Nonce,
		To:        &params.To,
		Value:     params.Value,
		Gas:       params.Gas,
		GasTipCap: params.GasTipCap,
		GasFeeCap: params.GasFeeCap,
		Data:      params.Data,
	})
	signed, err := signer.SignTx(ctx, unsigned)
	if err != nil {
		return nil, fmt.Errorf("could not sign transaction: %w", err)
	}
	return signed, nil
}

// processInFlight checks receipts for every in-flight transaction and
// applies timeouts and fee bumps.
func (m *Machine) processInFlight(ctx context.Context) {
	m.mu.Lock()
	inFlight := make([]tx.ID, 0, len(m.inFlight))
	for _, id := range m.inFlight {
		inFlight = append(inFlight, id)
	}
	m.mu.Unlock()

	for _, id := range inFlight {
		m.checkInFlight(ctx, id)
	}
}

// checkInFlight looks for a receipt across the transaction's broadcast
// attempts (any of them may have been the one mined), then applies the
// timeout and speedup policies if none was found.
func (m *Machine) checkInFlight(ctx context.Context, id tx.ID) {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok || !rec.ptx.State.InFlight() {
		m.mu.Unlock()
		return
	}
	attempts := make([]common.Hash, len(rec.ptx.Attempts))
	for i, attempt := range rec.ptx.Attempts {
		attempts[i] = attempt.Hash
	}
	m.mu.Unlock()

	for i := len(attempts) - 1; i >= 0; i-- {
		receipt, err := m.client.TransactionReceipt(ctx, attempts[i])
		if err != nil {
			m.log.Debug().Err(err).
				Uint64("tx_id", uint64(id)).
				Msg("receipt lookup failed, will retry")
			return
		}
		if receipt != nil {
			m.settle(rec, i, receipt)
			return
		}
	}

	m.mu.Lock()
	now := m.now()
	rec.ptx.LastCheckedAt = now
	if rec.ptx.State == tx.StateBroadcast {
		// first completed receipt lookup moves broadcast to pending
		rec.ptx.State = tx.StatePending
	}
	if now.After(rec.ptx.Deadline) {
		m.faultLocked(rec, tx.FaultTimeout, nil)
		delete(m.inFlight, rec.ptx.Params.From)
		m.mu.Unlock()
		return
	}
	latest := rec.ptx.LatestAttempt()
	due := now.Sub(latest.Time) >= m.conf.MinSpeedupWait
	m.mu.Unlock()

	if due {
		m.speedUp(ctx, rec)
	}
}

// settle records the terminal outcome of a mined attempt. A successfully
// mined replacement attempt terminates the transaction as cancelled, since
// the original body did not execute.
func (m *Machine) settle(rec *record, attemptIndex int, receipt *types.Receipt) {
	m.mu.Lock()
	if !rec.ptx.State.InFlight() {
		m.mu.Unlock()
		return
	}

	switch {
	case receipt.Status != types.ReceiptStatusSuccessful:
		m.faultLocked(rec, tx.FaultReverted, nil)
	case rec.replacedAt >= 0 && attemptIndex >= rec.replacedAt:
		m.faultLocked(rec, tx.FaultCancelled, nil)
	default:
		rec.ptx.State = tx.StateFinalized
		if !rec.terminalFired {
			rec.terminalFired = true
			snapshot := rec.ptx.Snapshot()
			hook := rec.hooks.OnFinalized
			if hook != nil {
				m.pool.Submit(func() { hook(snapshot) })
			}
			m.metrics.TransactionFinalized()
		}
		m.log.Info().
			Uint64("tx_id", uint64(rec.ptx.ID)).
			Str("tx_hash", rec.ptx.Attempts[attemptIndex].Hash.Hex()).
			Uint64("block", receipt.BlockNumber.Uint64()).
			Msg("transaction finalized")
	}

	delete(m.inFlight, rec.ptx.Params.From)
	m.mu.Unlock()
}

// speedUp re-broadcasts the transaction body at the same nonce with bumped
// fees. Insufficient funds on the re-broadcast is terminal; every other
// failure leaves the transaction in flight for the next tick.
func (m *Machine) speedUp(ctx context.Context, rec *record) {
	m.mu.Lock()
	if !rec.ptx.State.InFlight() {
		m.mu.Unlock()
		return
	}
	latest := rec.ptx.LatestAttempt()
	tipCap := latest.GasTipCap
	feeCap := latest.GasFeeCap
	// start above a previously rejected bump, if any
	if rec.bumpFeeCap != nil && rec.bumpFeeCap.Cmp(feeCap) > 0 {
		tipCap = rec.bumpTipCap
		feeCap = rec.bumpFeeCap
	}
	params := rec.ptx.Params.Copy()
	replaced := rec.replacedAt >= 0
	id := rec.ptx.ID
	m.mu.Unlock()

	newTip, newFee, ok := m.strategy.SpeedUp(tipCap, feeCap)
	if !ok {
		m.log.Debug().
			Uint64("tx_id", uint64(id)).
			Msg("fee ceiling reached, not speeding up")
		return
	}

	body := params
	if replaced {
		body = m.noopParams(params)
	}
	body.GasTipCap = newTip
	body.GasFeeCap = newFee

	signed, err := m.signParams(ctx, params.From, body)
	if err != nil {
		m.log.Error().Err(err).Uint64("tx_id", uint64(id)).Msg("could not re-sign transaction")
		return
	}

	err = m.client.SendTransaction(ctx, signed)
	if err != nil {
		switch {
		case chain.IsTransient(err):
			m.log.Debug().Err(err).Uint64("tx_id", uint64(id)).Msg("speedup broadcast failed transiently")
		case errors.Is(err, chain.ErrInsufficientFunds):
			m.mu.Lock()
			m.faultLocked(rec, tx.FaultInsufficientFunds, err)
			delete(m.inFlight, params.From)
			m.mu.Unlock()
		case errors.Is(err, chain.ErrReplacementUnderpriced):
			// remember the rejected caps so the next bump starts there
			m.mu.Lock()
			rec.bumpTipCap = newTip
			rec.bumpFeeCap = newFee
			m.mu.Unlock()
			m.log.Warn().Uint64("tx_id", uint64(id)).
				Str("fee_cap", newFee.String()).
				Msg("replacement underpriced, will bump further next tick")
		case errors.Is(err, chain.ErrNonceTooLow):
			// a prior attempt likely mined; the next receipt check settles it
			m.log.Debug().Uint64("tx_id", uint64(id)).Msg("nonce already mined, awaiting receipt")
		default:
			m.log.Warn().Err(err).Uint64("tx_id", uint64(id)).Msg("speedup broadcast failed")
		}
		return
	}

	m.mu.Lock()
	rec.bumpTipCap = nil
	rec.bumpFeeCap = nil
	rec.ptx.Attempts = append(rec.ptx.Attempts, tx.BroadcastAttempt{
		Hash:      signed.Hash(),
		GasTipCap: newTip,
		GasFeeCap: newFee,
		Time:      m.now(),
	})
	m.mu.Unlock()

	m.metrics.TransactionSpedUp()
	m.log.Info().
		Uint64("tx_id", uint64(id)).
		Str("tx_hash", signed.Hash().Hex()).
		Str("gas_tip_cap", newTip.String()).
		Str("gas_fee_cap", newFee.String()).
		Msg("transaction sped up")
}

// Replace explicitly broadcasts a zero-effect self-send at the same nonce as
// an in-flight transaction, abandoning the original body. Unlike the speedup
// path this is never triggered automatically. When the replacement mines,
// the transaction terminates as cancelled.
func (m *Machine) Replace(ctx context.Context, id tx.ID) error {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return tx.ErrUnknownTransaction
	}
	if !rec.ptx.State.InFlight() {
		m.mu.Unlock()
		return ErrNotInFlight
	}
	latest := rec.ptx.LatestAttempt()
	tipCap := latest.GasTipCap
	feeCap := latest.GasFeeCap
	params := rec.ptx.Params.Copy()
	m.mu.Unlock()

	newTip, newFee, ok := m.strategy.SpeedUp(tipCap, feeCap)
	if !ok {
		return fmt.Errorf("cannot outbid in-flight transaction %d: fee ceiling reached", id)
	}

	body := m.noopParams(params)
	body.GasTipCap = newTip
	body.GasFeeCap = newFee

	signed, err := m.signParams(ctx, params.From, body)
	if err != nil {
		return err
	}
	if err := m.client.SendTransaction(ctx, signed); err != nil {
		if errors.Is(err, chain.ErrInsufficientFunds) {
			m.mu.Lock()
			m.faultLocked(rec, tx.FaultInsufficientFunds, err)
			delete(m.inFlight, params.From)
			m.mu.Unlock()
		}
		return fmt.Errorf("could not broadcast replacement: %w", err)
	}

	m.mu.Lock()
	if rec.replacedAt < 0 {
		rec.replacedAt = len(rec.ptx.Attempts)
	}
	rec.ptx.Attempts = append(rec.ptx.Attempts, tx.BroadcastAttempt{
		Hash:      signed.Hash(),
		GasTipCap: newTip,
		GasFeeCap: newFee,
		Time:      m.now(),
	})
	m.mu.Unlock()

	m.log.Info().
		Uint64("tx_id", uint64(id)).
		Str("tx_hash", signed.Hash().Hex()).
		Msg("replacement transaction broadcast")
	return nil
}

// noopParams returns a zero-effect self-send carrying the same sender and
// nonce as params.
func (m *Machine) noopParams(params tx.Params) tx.Params {
	nonce := *params.Nonce
	return tx.Params{
		From:  params.From,
		To:    params.From,
		Value: new(big.Int),
		Gas:   noopGasLimit,
		Nonce: &nonce,
	}
}

// popAndFault removes the signer's queue head and terminally faults it.
// Called while the record is fenced by the broadcasting flag.
func (m *Machine) popAndFault(addr common.Address, rec *record, reason tx.FaultReason, err error) {
	m.mu.Lock()
	m.queues[addr].PopFront()
	rec.broadcasting = false

	if hook := rec.hooks.OnBroadcastFailure; hook != nil && err != nil {
		snapshot := rec.ptx.Snapshot()
		broadcastErr := err
		m.pool.Submit(func() { hook(snapshot, broadcastErr) })
	}
	m.faultLocked(rec, reason, err)
	m.mu.Unlock()
	m.metrics.QueueDepth(m.queueDepth())
}

// faultLocked transitions the record to faulted and dispatches the matching
// terminal hook exactly once. The machine mutex must be held.
func (m *Machine) faultLocked(rec *record, reason tx.FaultReason, err error) {
	if rec.ptx.State.Terminal() {
		return
	}
	rec.ptx.State = tx.StateFaulted
	rec.ptx.Fault = reason

	m.log.Warn().
		Uint64("tx_id", uint64(rec.ptx.ID)).
		Str("reason", reason.String()).
		Msg("transaction faulted")
	m.metrics.TransactionFaulted(reason.String())

	if rec.terminalFired {
		return
	}
	rec.terminalFired = true
	snapshot := rec.ptx.Snapshot()

	if reason == tx.FaultInsufficientFunds {
		if hook := rec.hooks.OnInsufficientFunds; hook != nil {
			fundsErr := err
			m.pool.Submit(func() { hook(snapshot, fundsErr) })
		}
		return
	}
	if hook := rec.hooks.OnFault; hook != nil {
		m.pool.Submit(func() { hook(snapshot) })
	}
}

// queueDepth counts queued transactions across signers.
func (m *Machine) queueDepth() uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueDepthLocked()
}

func (m *Machine) queueDepthLocked() uint {
	depth := uint(0)
	for _, rec := range m.records {
		if rec.ptx.State == tx.StateQueued {
			depth++
		}
	}
	return depth
}
