package ritualtracker

import (
	"fmt"

	"github.com/cipherworks/machina/model/ritual"
)

// phaseRank orders the forward-only phases. TimedOut ranks between the
// awaiting phases and Finalized: it is a local annotation which a Finalized
// observation (ground truth) may still overwrite, but which never falls back
// to an awaiting phase.
func phaseRank(p ritual.Phase) int {
	switch p {
	case ritual.PhaseAwaitingTranscripts:
		return 0
	case ritual.PhaseAwaitingAggregations:
		return 1
	case ritual.PhaseTimedOut:
		return 2
	case ritual.PhaseFinalized:
		return 3
	default:
		return -1
	}
}

// applyBatch applies a scan batch all-or-nothing: events mutate staged
// copies of the affected rituals, and the staged copies are committed only
// if every event applied. An error leaves the tracker state untouched so the
// failed batch is re-scanned in full.
func (t *Tracker) applyBatch(events []ritual.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	staged := make(map[ritual.ID]*ritual.Ritual)
	for _, event := range events {
		id := event.RitualID()
		record, ok := staged[id]
		if !ok {
			if existing, known := t.rituals[id]; known {
				record = existing.Snapshot()
				staged[id] = record
			}
		}

		_, err := t.applyEvent(record, event, staged)
		if err != nil {
			return err
		}
	}

	newlyObserved := 0
	for id, record := range staged {
		if _, known := t.rituals[id]; !known {
			newlyObserved++
		}
		t.rituals[id] = record
	}
	for i := 0; i < newlyObserved; i++ {
		t.metrics.RitualObserved()
	}
	return nil
}

// applyEvent applies one event to a staged record. Events are idempotent:
// re-delivery from overlap re-scans is a no-op. Events implying a backward
// phase transition are logged and discarded, never applied. Returns whether
// the event changed state.
func (t *Tracker) applyEvent(record *ritual.Ritual, event ritual.Event, staged map[ritual.ID]*ritual.Ritual) (bool, error) {

	switch ev := event.(type) {
	case ritual.StartRitual:
		if record != nil {
			// re-delivered initiation, already known
			t.log.Debug().Uint32("ritual_id", uint32(ev.ID)).Msg("duplicate ritual start discarded")
			return false, nil
		}
		if len(ev.Participants) != ev.DKGSize {
			return false, fmt.Errorf("ritual %d started with %d participants, expected %d",
				ev.ID, len(ev.Participants), ev.DKGSize)
		}
		fresh := &ritual.Ritual{
			ID:            ev.ID,
			Initiator:     ev.Initiator,
			Participants:  make([]ritual.Participant, len(ev.Participants)),
			DKGSize:       ev.DKGSize,
			Phase:         ritual.PhaseAwaitingTranscripts,
			InitTimestamp: ev.Timestamp,
		}
		for i, provider := range ev.Participants {
			fresh.Participants[i] = ritual.Participant{Provider: provider}
		}
		staged[ev.ID] = fresh
		t.log.Info().
			Uint32("ritual_id", uint32(ev.ID)).
			Int("dkg_size", ev.DKGSize).
			Msg("ritual observed")
		return true, nil

	case ritual.TranscriptPosted:
		if record == nil {
			// initiated before our scanning horizon; skipping is the only
			// option that does not wedge the watermark - Refresh recovers
			// the full state on demand
			t.log.Warn().Uint32("ritual_id", uint32(ev.ID)).
				Msg("transcript for untracked ritual discarded")
			return false, nil
		}
		index := record.ParticipantIndex(ev.Provider)
		if index < 0 {
			t.log.Warn().
				Uint32("ritual_id", uint32(ev.ID)).
				Str("provider", ev.Provider.Hex()).
				Msg("transcript from unknown provider discarded")
			return false, nil
		}
		if phaseRank(record.Phase) > phaseRank(ritual.PhaseAwaitingTranscripts) && record.Phase != ritual.PhaseTimedOut {
			// the ritual has provably moved on; a late transcript would
			// imply a backward transition
			t.log.Debug().
				Uint32("ritual_id", uint32(ev.ID)).
				Str("phase", record.Phase.String()).
				Msg("stale transcript event discarded")
			return false, nil
		}
		if len(record.Participants[index].Transcript) > 0 {
			// re-delivered event, transcript is monotonic
			return false, nil
		}
		record.Participants[index].Transcript = append([]byte(nil), ev.Transcript...)
		if record.TranscriptCount() == record.DKGSize && record.Phase == ritual.PhaseAwaitingTranscripts {
			record.Phase = ritual.PhaseAwaitingAggregations
			t.log.Info().
				Uint32("ritual_id", uint32(ev.ID)).
				Msg("all transcripts posted, awaiting aggregations")
		}
		return true, nil

	case ritual.AggregationPosted:
		if record == nil {
			t.log.Warn().Uint32("ritual_id", uint32(ev.ID)).
				Msg("aggregation for untracked ritual discarded")
			return false, nil
		}
		index := record.ParticipantIndex(ev.Provider)
		if index < 0 {
			t.log.Warn().
				Uint32("ritual_id", uint32(ev.ID)).
				Str("provider", ev.Provider.Hex()).
				Msg("aggregation from unknown provider discarded")
			return false, nil
		}
		if record.Participants[index].Aggregated {
			// re-delivered event, confirmation is monotonic
			return false, nil
		}
		record.Participants[index].Aggregated = true
		if record.AggregationCount() == record.DKGSize && phaseRank(record.Phase) < phaseRank(ritual.PhaseFinalized) {
			record.Phase = ritual.PhaseFinalized
			t.log.Info().
				Uint32("ritual_id", uint32(ev.ID)).
				Msg("ritual finalized")
		}
		return true, nil

	default:
		return false, fmt.Errorf("unsupported ritual event type %T", event)
	}
}
