package txmachine

import (
	"math/big"
)

// SpeedupStrategy computes replacement fees for a stalled transaction. The
// returned caps must be strictly higher than the inputs for the replacement
// to displace the prior attempt in the mempool.
type SpeedupStrategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// SpeedUp returns the bumped tip cap and fee cap for a re-broadcast.
	// Returns false if no further bump is possible (e.g. a configured
	// ceiling was reached), in which case the transaction is left as is.
	SpeedUp(tipCap, feeCap *big.Int) (*big.Int, *big.Int, bool)
}

// ExponentialSpeedup multiplies the prior caps by a constant factor on each
// bump, optionally bounded by a maximum fee cap.
type ExponentialSpeedup struct {
	Factor    float64
	MaxFeeCap *big.Int
}

var _ SpeedupStrategy = (*ExponentialSpeedup)(nil)

func (s *ExponentialSpeedup) Name() string { return "exponential" }

func (s *ExponentialSpeedup) SpeedUp(tipCap, feeCap *big.Int) (*big.Int, *big.Int, bool) {
	newTip := scale(tipCap, s.Factor)
	newFee := scale(feeCap, s.Factor)

	// rounding must never produce a non-increasing cap
	if newTip.Cmp(tipCap) <= 0 {
		newTip = new(big.Int).Add(tipCap, big.NewInt(1))
	}
	if newFee.Cmp(feeCap) <= 0 {
		newFee = new(big.Int).Add(feeCap, big.NewInt(1))
	}

	if s.MaxFeeCap != nil && newFee.Cmp(s.MaxFeeCap) > 0 {
		if feeCap.Cmp(s.MaxFeeCap) >= 0 {
			// already at the ceiling, nothing left to do
			return nil, nil, false
		}
		newFee = new(big.Int).Set(s.MaxFeeCap)
		if newTip.Cmp(newFee) > 0 {
			newTip = new(big.Int).Set(newFee)
		}
	}
	return newTip, newFee, true
}

// scale multiplies v by factor, rounding half up.
func scale(v *big.Int, factor float64) *big.Int {
	product := new(big.Float).Mul(new(big.Float).SetInt(v), big.NewFloat(factor))
	product.Add(product, big.NewFloat(0.5))
	result, _ := product.Int(nil)
	return result
}
