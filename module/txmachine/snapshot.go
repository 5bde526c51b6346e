package txmachine

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"

	"github.com/cipherworks/machina/model/tx"
)

// The machine does not persist anything itself. Snapshot and Restore are the
// serialize/deserialize hooks a deployment wires to its own storage for
// crash recovery; the storage medium and schedule are the caller's concern.

// snapshotRecord is the serialized form of one transaction record. Hooks
// are process-local and are not serialized; restored transactions carry no
// hooks and should be observed through Get or Await.
type snapshotRecord struct {
	ID            uint64            `cbor:"1,keyasint"`
	From          []byte            `cbor:"2,keyasint"`
	To            []byte            `cbor:"3,keyasint"`
	Data          []byte            `cbor:"4,keyasint"`
	Value         []byte            `cbor:"5,keyasint"`
	Gas           uint64            `cbor:"6,keyasint"`
	GasTipCap     []byte            `cbor:"7,keyasint"`
	GasFeeCap     []byte            `cbor:"8,keyasint"`
	Nonce         *uint64           `cbor:"9,keyasint"`
	State         uint8             `cbor:"10,keyasint"`
	Fault         uint8             `cbor:"11,keyasint"`
	Attempts      []snapshotAttempt `cbor:"12,keyasint"`
	CreatedAt     time.Time         `cbor:"13,keyasint"`
	LastCheckedAt time.Time         `cbor:"14,keyasint"`
	Deadline      time.Time         `cbor:"15,keyasint"`
	ReplacedAt    int               `cbor:"16,keyasint"`
}

type snapshotAttempt struct {
	Hash      []byte    `cbor:"1,keyasint"`
	GasTipCap []byte    `cbor:"2,keyasint"`
	GasFeeCap []byte    `cbor:"3,keyasint"`
	Time      time.Time `cbor:"4,keyasint"`
}

type machineSnapshot struct {
	Records []snapshotRecord `cbor:"1,keyasint"`
	NextID  uint64           `cbor:"2,keyasint"`
}

// Snapshot serializes all transaction records, active and terminal.
func (m *Machine) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := machineSnapshot{
		NextID: m.ids.Value(),
	}
	for _, rec := range m.records {
		ptx := rec.ptx
		sr := snapshotRecord{
			ID:            uint64(ptx.ID),
			From:          ptx.Params.From.Bytes(),
			To:            ptx.Params.To.Bytes(),
			Data:          ptx.Params.Data,
			Value:         bigBytes(ptx.Params.Value),
			Gas:           ptx.Params.Gas,
			GasTipCap:     bigBytes(ptx.Params.GasTipCap),
			GasFeeCap:     bigBytes(ptx.Params.GasFeeCap),
			Nonce:         ptx.Params.Nonce,
			State:         uint8(ptx.State),
			Fault:         uint8(ptx.Fault),
			CreatedAt:     ptx.CreatedAt,
			LastCheckedAt: ptx.LastCheckedAt,
			Deadline:      ptx.Deadline,
			ReplacedAt:    rec.replacedAt,
		}
		for _, attempt := range ptx.Attempts {
			sr.Attempts = append(sr.Attempts, snapshotAttempt{
				Hash:      attempt.Hash.Bytes(),
				GasTipCap: bigBytes(attempt.GasTipCap),
				GasFeeCap: bigBytes(attempt.GasFeeCap),
				Time:      attempt.Time,
			})
		}
		snap.Records = append(snap.Records, sr)
	}
	return cbor.Marshal(snap)
}

// Restore loads records from a prior Snapshot. It must be called before
// Start and may only be called on an empty machine. Queued and in-flight
// records resume processing on the next tick; restored records carry no
// hooks.
func (m *Machine) Restore(data []byte) error {
	var snap machineSnapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("could not decode snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) > 0 {
		return fmt.Errorf("cannot restore into a non-empty machine")
	}

	for _, sr := range snap.Records {
		from := common.BytesToAddress(sr.From)
		if _, ok := m.queues[from]; !ok {
			return fmt.Errorf("snapshot contains sender %s with no configured signer", from)
		}

		ptx := &tx.PendingTransaction{
			ID: tx.ID(sr.ID),
			Params: tx.Params{
				From:      from,
				To:        common.BytesToAddress(sr.To),
				Data:      sr.Data,
				Value:     bigFromBytes(sr.Value),
				Gas:       sr.Gas,
				GasTipCap: bigFromBytes(sr.GasTipCap),
				GasFeeCap: bigFromBytes(sr.GasFeeCap),
				Nonce:     sr.Nonce,
			},
			State:         tx.State(sr.State),
			Fault:         tx.FaultReason(sr.Fault),
			CreatedAt:     sr.CreatedAt,
			LastCheckedAt: sr.LastCheckedAt,
			Deadline:      sr.Deadline,
		}
		for _, attempt := range sr.Attempts {
			ptx.Attempts = append(ptx.Attempts, tx.BroadcastAttempt{
				Hash:      common.BytesToHash(attempt.Hash),
				GasTipCap: bigFromBytes(attempt.GasTipCap),
				GasFeeCap: bigFromBytes(attempt.GasFeeCap),
				Time:      attempt.Time,
			})
		}

		rec := &record{
			ptx:        ptx,
			replacedAt: sr.ReplacedAt,
			// restored terminal records must not re-fire hooks
			terminalFired: ptx.State.Terminal(),
		}
		m.records[ptx.ID] = rec

		switch {
		case ptx.State == tx.StateQueued:
			m.queues[from].PushBack(ptx.ID)
		case ptx.State.InFlight():
			if _, busy := m.inFlight[from]; busy {
				return fmt.Errorf("snapshot contains multiple in-flight transactions for %s", from)
			}
			m.inFlight[from] = ptx.ID
		}
	}

	m.ids.Set(snap.NextID)
	return nil
}

func bigBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}

func bigFromBytes(data []byte) *big.Int {
	if data == nil {
		return nil
	}
	return new(big.Int).SetBytes(data)
}
