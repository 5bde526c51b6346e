package ritualtracker

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"

	"github.com/cipherworks/machina/model/ritual"
)

// Snapshot and Restore are the serialize/deserialize hooks a deployment
// wires to its own storage for crash recovery. A restored tracker should
// usually be followed by a Refresh of any non-terminal rituals, since the
// chain may have advanced while the process was down.

type snapshotParticipant struct {
	Provider   []byte `cbor:"1,keyasint"`
	Transcript []byte `cbor:"2,keyasint"`
	Aggregated bool   `cbor:"3,keyasint"`
}

type snapshotRitual struct {
	ID            uint32                `cbor:"1,keyasint"`
	Initiator     []byte                `cbor:"2,keyasint"`
	Participants  []snapshotParticipant `cbor:"3,keyasint"`
	DKGSize       int                   `cbor:"4,keyasint"`
	Phase         uint8                 `cbor:"5,keyasint"`
	InitTimestamp time.Time             `cbor:"6,keyasint"`
}

type trackerSnapshot struct {
	Rituals   []snapshotRitual `cbor:"1,keyasint"`
	Watermark uint64           `cbor:"2,keyasint"`
}

// Snapshot serializes all ritual records and the scan watermark.
func (t *Tracker) Snapshot() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := trackerSnapshot{
		Watermark: t.watermark.Value(),
	}
	for _, record := range t.rituals {
		sr := snapshotRitual{
			ID:            uint32(record.ID),
			Initiator:     record.Initiator.Bytes(),
			DKGSize:       record.DKGSize,
			Phase:         uint8(record.Phase),
			InitTimestamp: record.InitTimestamp,
		}
		for _, p := range record.Participants {
			sr.Participants = append(sr.Participants, snapshotParticipant{
				Provider:   p.Provider.Bytes(),
				Transcript: p.Transcript,
				Aggregated: p.Aggregated,
			})
		}
		snap.Rituals = append(snap.Rituals, sr)
	}
	return cbor.Marshal(snap)
}

// Restore loads records from a prior Snapshot. It must be called before
// Start and may only be called on an empty tracker.
func (t *Tracker) Restore(data []byte) error {
	var snap trackerSnapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("could not decode snapshot: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.rituals) > 0 {
		return fmt.Errorf("cannot restore into a non-empty tracker")
	}

	for _, sr := range snap.Rituals {
		record := &ritual.Ritual{
			ID:            ritual.ID(sr.ID),
			Initiator:     common.BytesToAddress(sr.Initiator),
			Participants:  make([]ritual.Participant, len(sr.Participants)),
			DKGSize:       sr.DKGSize,
			Phase:         ritual.Phase(sr.Phase),
			InitTimestamp: sr.InitTimestamp,
		}
		for i, p := range sr.Participants {
			record.Participants[i] = ritual.Participant{
				Provider:   common.BytesToAddress(p.Provider),
				Transcript: p.Transcript,
				Aggregated: p.Aggregated,
			}
		}
		t.rituals[record.ID] = record
	}

	t.watermark.Set(snap.Watermark)
	return nil
}
