package ritual

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a coordinator contract log decoded into its logical fields. The
// wire encoding is the chain client's concern; the tracker only consumes the
// decoded form. BlockNumber is the height the log appeared at and drives the
// tracker's watermark accounting.
type Event interface {
	RitualID() ID
	BlockNumber() uint64
}

// StartRitual announces a new ritual: the participant set and DKG size are
// fixed from this point on.
type StartRitual struct {
	ID           ID
	Initiator    common.Address
	Participants []common.Address
	DKGSize      int
	Timestamp    time.Time
	Block        uint64
}

func (e StartRitual) RitualID() ID        { return e.ID }
func (e StartRitual) BlockNumber() uint64 { return e.Block }

// TranscriptPosted announces that one participant posted its transcript.
type TranscriptPosted struct {
	ID         ID
	Provider   common.Address
	Transcript []byte
	Block      uint64
}

func (e TranscriptPosted) RitualID() ID        { return e.ID }
func (e TranscriptPosted) BlockNumber() uint64 { return e.Block }

// AggregationPosted announces that one participant's contribution has been
// confirmed in the aggregate.
type AggregationPosted struct {
	ID       ID
	Provider common.Address
	Digest   []byte
	Block    uint64
}

func (e AggregationPosted) RitualID() ID        { return e.ID }
func (e AggregationPosted) BlockNumber() uint64 { return e.Block }
