package txmachine

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialSpeedup(t *testing.T) {
	strategy := &ExponentialSpeedup{Factor: 1.125}

	tipCap := big.NewInt(1_000_000_000)
	feeCap := big.NewInt(20_000_000_000)

	newTip, newFee, ok := strategy.SpeedUp(tipCap, feeCap)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(1_125_000_000), newTip)
	assert.Equal(t, big.NewInt(22_500_000_000), newFee)

	// inputs must not be mutated
	assert.Equal(t, big.NewInt(1_000_000_000), tipCap)
	assert.Equal(t, big.NewInt(20_000_000_000), feeCap)
}

// Tiny caps must still be bumped strictly, regardless of rounding.
func TestExponentialSpeedup_StrictlyIncreasing(t *testing.T) {
	strategy := &ExponentialSpeedup{Factor: 1.125}

	newTip, newFee, ok := strategy.SpeedUp(big.NewInt(1), big.NewInt(1))
	require.True(t, ok)
	assert.Equal(t, 1, newTip.Cmp(big.NewInt(1)))
	assert.Equal(t, 1, newFee.Cmp(big.NewInt(1)))
}

func TestExponentialSpeedup_Ceiling(t *testing.T) {
	strategy := &ExponentialSpeedup{
		Factor:    1.125,
		MaxFeeCap: big.NewInt(21_000_000_000),
	}

	// first bump is clamped to the ceiling
	newTip, newFee, ok := strategy.SpeedUp(big.NewInt(1_000_000_000), big.NewInt(20_000_000_000))
	require.True(t, ok)
	assert.Equal(t, big.NewInt(21_000_000_000), newFee)
	assert.True(t, newTip.Cmp(newFee) <= 0)

	// once at the ceiling no further bump is possible
	_, _, ok = strategy.SpeedUp(newTip, newFee)
	require.False(t, ok)
}
