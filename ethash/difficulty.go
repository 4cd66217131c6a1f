package ethash

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

const expDiffPeriod = 100000

var big1 = big.NewInt(1)

// CalcDifficulty returns the difficulty a child of parent created at time
// must carry. It does not modify parent.
func (p *Params) CalcDifficulty(time uint64, parent *types.Header) *big.Int {
	number := parent.Number.Uint64() + 1
	parentDiff := parent.Difficulty
	parentHasUncles := parent.UncleHash != types.EmptyUncleHash

	boundDivisor := p.DifficultyBoundDivisor
	if number >= p.DifficultyHardforkTransition {
		boundDivisor = p.DifficultyHardforkBoundDivisor
	}
	durationLimit := p.DurationLimit
	if number >= p.EXPIP2Transition {
		durationLimit = p.EXPIP2DurationLimit
	}

	step := new(big.Int).Div(parentDiff, boundDivisor)
	target := new(big.Int)

	if number < p.HomesteadTransition {
		if time >= parent.Time+durationLimit {
			target.Sub(parentDiff, step)
		} else {
			target.Add(parentDiff, step)
		}
	} else {
		incDivisor, threshold := p.DifficultyIncrementDivisor, uint64(1)
		if number >= p.EIP100bTransition {
			incDivisor = p.MetropolisDifficultyIncrementDivisor
			if parentHasUncles {
				threshold = 2
			}
		}

		var elapsed uint64
		if time > parent.Time {
			elapsed = time - parent.Time
		}
		diffInc := elapsed / incDivisor

		if diffInc <= threshold {
			target.Mul(step, new(big.Int).SetUint64(threshold-diffInc))
			target.Add(parentDiff, target)
		} else {
			multiplier := diffInc - threshold
			if multiplier > 99 {
				multiplier = 99
			}
			target.Mul(step, new(big.Int).SetUint64(multiplier))
			target.Sub(parentDiff, target)
			if target.Sign() < 0 {
				target.SetUint64(0)
			}
		}
	}
	p.clampMinimum(target)

	if number >= p.BombDefuseTransition {
		return target
	}

	switch {
	case number < p.ECIP1010PauseTransition:
		period := p.delayedNumber(number) / expDiffPeriod
		if period > 1 {
			target.Add(target, new(big.Int).Lsh(big1, uint(period-2)))
			p.clampMinimum(target)
		}

	case number < p.ECIP1010ContinueTransition:
		fixed := p.ECIP1010PauseTransition/expDiffPeriod - 2
		target.Add(target, new(big.Int).Lsh(big1, uint(fixed)))
		p.clampMinimum(target)

	default:
		period := number / expDiffPeriod
		delay := (p.ECIP1010ContinueTransition - p.ECIP1010PauseTransition) / expDiffPeriod
		if period >= delay+2 {
			target.Add(target, new(big.Int).Lsh(big1, uint(period-delay-2)))
			p.clampMinimum(target)
		}
	}

	return target
}

// delayedNumber is number with every bomb delay activated at or before it
// subtracted, saturating at zero.
func (p *Params) delayedNumber(number uint64) uint64 {
	delayed := number
	for _, d := range p.DifficultyBombDelays {
		if number < d.Block {
			continue
		}
		if delayed < d.Delay {
			delayed = 0
		} else {
			delayed -= d.Delay
		}
	}
	return delayed
}

func (p *Params) clampMinimum(target *big.Int) {
	if target.Cmp(p.MinimumDifficulty) < 0 {
		target.Set(p.MinimumDifficulty)
	}
}
