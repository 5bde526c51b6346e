// Package ritual contains the data model for DKG rituals observed on chain:
// the per-ritual record, its participants, and the round phases the tracker
// advances through as coordinator contract events arrive.
package ritual

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ID identifies a ritual. It is assigned by the coordinator contract at
// initiation and is globally unique on a given chain.
type ID uint32

// ErrUnknownRitual is returned when querying a ritual that the tracker has
// never observed.
var ErrUnknownRitual = errors.New("unknown ritual")

// Phase enumerates the rounds of a DKG ritual as observed from chain events.
// Phases only ever move forward; TimedOut is a local annotation applied by
// the tracker when a ritual overruns its protocol deadline, not a chain-side
// state.
type Phase uint8

const (
	// PhaseAwaitingTranscripts is the first round: participants are
	// expected to post their transcripts.
	PhaseAwaitingTranscripts Phase = iota
	// PhaseAwaitingAggregations is the second round: all transcripts are
	// in and participants are expected to confirm the aggregate.
	PhaseAwaitingAggregations
	// PhaseFinalized is terminal: every participant confirmed the
	// aggregate.
	PhaseFinalized
	// PhaseTimedOut is terminal locally: the ritual overran its deadline
	// while in a non-terminal phase.
	PhaseTimedOut
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingTranscripts:
		return "awaiting_transcripts"
	case PhaseAwaitingAggregations:
		return "awaiting_aggregations"
	case PhaseFinalized:
		return "finalized"
	case PhaseTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// Terminal returns true if no further phase transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseFinalized || p == PhaseTimedOut
}

// Participant is one DKG party within a ritual. The provider address is
// fixed at initiation; the transcript and aggregation confirmation are
// monotonic - once set they are never unset.
type Participant struct {
	Provider   common.Address
	Transcript []byte
	Aggregated bool
}

// Ritual is the tracker's record of one DKG ritual. Participant order is
// fixed at initiation and never changes. A Ritual is mutated only by the
// tracker's scan loop; callers observe it through Snapshot copies.
type Ritual struct {
	ID            ID
	Initiator     common.Address
	Participants  []Participant
	DKGSize       int
	Phase         Phase
	InitTimestamp time.Time
}

// ParticipantIndex returns the index of the participant with the given
// provider address, or -1 if the provider is not part of the ritual.
func (r *Ritual) ParticipantIndex(provider common.Address) int {
	for i := range r.Participants {
		if r.Participants[i].Provider == provider {
			return i
		}
	}
	return -1
}

// TranscriptCount returns the number of participants that have posted a
// transcript.
func (r *Ritual) TranscriptCount() int {
	count := 0
	for i := range r.Participants {
		if len(r.Participants[i].Transcript) > 0 {
			count++
		}
	}
	return count
}

// AggregationCount returns the number of participants whose contribution has
// been confirmed in the aggregate.
func (r *Ritual) AggregationCount() int {
	count := 0
	for i := range r.Participants {
		if r.Participants[i].Aggregated {
			count++
		}
	}
	return count
}

// Snapshot returns a deep copy safe for concurrent read access.
func (r *Ritual) Snapshot() *Ritual {
	cpy := &Ritual{
		ID:            r.ID,
		Initiator:     r.Initiator,
		DKGSize:       r.DKGSize,
		Phase:         r.Phase,
		InitTimestamp: r.InitTimestamp,
	}
	cpy.Participants = make([]Participant, len(r.Participants))
	for i, p := range r.Participants {
		cpy.Participants[i] = Participant{
			Provider:   p.Provider,
			Transcript: append([]byte(nil), p.Transcript...),
			Aggregated: p.Aggregated,
		}
	}
	return cpy
}
