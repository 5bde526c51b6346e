package unittest

import (
	"crypto/rand"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/cipherworks/machina/chain"
	"github.com/cipherworks/machina/model/ritual"
	"github.com/cipherworks/machina/model/tx"
)

// TestChainID is the chain id used by fixtures.
var TestChainID = big.NewInt(1337)

// AddressFixture returns a random address.
func AddressFixture(t testing.TB) common.Address {
	var addr common.Address
	_, err := rand.Read(addr[:])
	require.NoError(t, err)
	return addr
}

// HashFixture returns a random hash.
func HashFixture(t testing.TB) common.Hash {
	var hash common.Hash
	_, err := rand.Read(hash[:])
	require.NoError(t, err)
	return hash
}

// SignerFixture returns a local signer with a fresh key on TestChainID.
func SignerFixture(t testing.TB) *chain.LocalSigner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := chain.NewLocalSigner(TestChainID, key)
	require.NoError(t, err)
	return signer
}

// ParamsFixture returns valid transaction params from the given sender.
func ParamsFixture(t testing.TB, from common.Address) tx.Params {
	return tx.Params{
		From:      from,
		To:        AddressFixture(t),
		Value:     big.NewInt(0),
		Gas:       21_000,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(20_000_000_000),
	}
}

// StartRitualFixture returns a ritual initiation event with size random
// participants.
func StartRitualFixture(t testing.TB, id ritual.ID, size int, block uint64) ritual.StartRitual {
	participants := make([]common.Address, size)
	for i := range participants {
		participants[i] = AddressFixture(t)
	}
	return ritual.StartRitual{
		ID:           id,
		Initiator:    AddressFixture(t),
		Participants: participants,
		DKGSize:      size,
		Timestamp:    time.Now(),
		Block:        block,
	}
}

// TranscriptFixture returns a transcript event for the given participant.
func TranscriptFixture(t testing.TB, id ritual.ID, provider common.Address, block uint64) ritual.TranscriptPosted {
	transcript := make([]byte, 32)
	_, err := rand.Read(transcript)
	require.NoError(t, err)
	return ritual.TranscriptPosted{
		ID:         id,
		Provider:   provider,
		Transcript: transcript,
		Block:      block,
	}
}

// AggregationFixture returns an aggregation event for the given participant.
func AggregationFixture(t testing.TB, id ritual.ID, provider common.Address, block uint64) ritual.AggregationPosted {
	digest := make([]byte, 32)
	_, err := rand.Read(digest)
	require.NoError(t, err)
	return ritual.AggregationPosted{
		ID:       id,
		Provider: provider,
		Digest:   digest,
		Block:    block,
	}
}
