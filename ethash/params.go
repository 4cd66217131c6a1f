package ethash

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
)

// BombDelay pushes the difficulty bomb back by Delay blocks from Block on.
type BombDelay struct {
	Block uint64
	Delay uint64
}

// Params is the fork schedule and the constants the difficulty rules depend
// on. Transitions that never activate are math.MaxUint64.
type Params struct {
	MinimumDifficulty                    *big.Int
	DifficultyBoundDivisor               *big.Int
	DifficultyIncrementDivisor           uint64
	MetropolisDifficultyIncrementDivisor uint64
	DurationLimit                        uint64
	HomesteadTransition                  uint64
	DifficultyHardforkTransition         uint64
	DifficultyHardforkBoundDivisor       *big.Int
	BombDefuseTransition                 uint64
	EIP100bTransition                    uint64
	ECIP1010PauseTransition              uint64
	ECIP1010ContinueTransition           uint64
	EXPIP2Transition                     uint64
	EXPIP2DurationLimit                  uint64

	// DifficultyBombDelays must be sorted by Block.
	DifficultyBombDelays []BombDelay
}

// MainnetParams is the Ethereum mainnet schedule up to the last
// proof-of-work fork.
func MainnetParams() *Params {
	return &Params{
		MinimumDifficulty:                    big.NewInt(0x20000),
		DifficultyBoundDivisor:               big.NewInt(0x0800),
		DifficultyIncrementDivisor:           10,
		MetropolisDifficultyIncrementDivisor: 9,
		DurationLimit:                        13,
		HomesteadTransition:                  1150000,
		DifficultyHardforkTransition:         math.MaxUint64,
		DifficultyHardforkBoundDivisor:       big.NewInt(2048),
		BombDefuseTransition:                 math.MaxUint64,
		EIP100bTransition:                    4370000,
		ECIP1010PauseTransition:              math.MaxUint64,
		ECIP1010ContinueTransition:           math.MaxUint64,
		EXPIP2Transition:                     math.MaxUint64,
		EXPIP2DurationLimit:                  30,
		DifficultyBombDelays: []BombDelay{
			{Block: 4370000, Delay: 3000000},  // Byzantium
			{Block: 7280000, Delay: 2000000},  // Constantinople
			{Block: 9200000, Delay: 4000000},  // Muir Glacier
			{Block: 12965000, Delay: 700000},  // London
			{Block: 13773000, Delay: 1000000}, // Arrow Glacier
			{Block: 15050000, Delay: 700000},  // Gray Glacier
		},
	}
}

// RopstenParams is the Ropsten testnet schedule.
func RopstenParams() *Params {
	return &Params{
		MinimumDifficulty:                    big.NewInt(0x20000),
		DifficultyBoundDivisor:               big.NewInt(0x0800),
		DifficultyIncrementDivisor:           10,
		MetropolisDifficultyIncrementDivisor: 9,
		DurationLimit:                        0xd,
		HomesteadTransition:                  0,
		DifficultyHardforkTransition:         0x59d9,
		DifficultyHardforkBoundDivisor:       big.NewInt(0x0800),
		BombDefuseTransition:                 math.MaxUint64,
		EIP100bTransition:                    0x19f0a0,
		ECIP1010PauseTransition:              math.MaxUint64,
		ECIP1010ContinueTransition:           math.MaxUint64,
		EXPIP2Transition:                     math.MaxUint64,
		EXPIP2DurationLimit:                  30,
		DifficultyBombDelays: []BombDelay{
			{Block: 0x19f0a0, Delay: 0x2dc6c0},
			{Block: 0x408b70, Delay: 0x1e8480},
			{Block: 0x6c993d, Delay: 0x3d0900},
			{Block: 0xa03549, Delay: 0xaae60},
		},
	}
}

// ExpanseParams is the Expanse schedule, the one preset that exercises the
// ECIP-1010 pause and the EXPIP-2 duration limit.
func ExpanseParams() *Params {
	return &Params{
		MinimumDifficulty:                    big.NewInt(0x20000),
		DifficultyBoundDivisor:               big.NewInt(0x0800),
		DifficultyIncrementDivisor:           0x3C,
		MetropolisDifficultyIncrementDivisor: 0x1E,
		DurationLimit:                        0x3C,
		HomesteadTransition:                  0x30d40,
		DifficultyHardforkTransition:         0x59d9,
		DifficultyHardforkBoundDivisor:       big.NewInt(0x0200),
		BombDefuseTransition:                 0x30d40,
		EIP100bTransition:                    0xC3500,
		ECIP1010PauseTransition:              0x2dc6c0,
		ECIP1010ContinueTransition:           0x4c4b40,
		EXPIP2Transition:                     0xc3500,
		EXPIP2DurationLimit:                  0x1e,
	}
}

// ParamsForNetwork returns the preset registered under name.
func ParamsForNetwork(name string) (*Params, error) {
	switch strings.ToLower(name) {
	case "mainnet", "production":
		return MainnetParams(), nil
	case "ropsten":
		return RopstenParams(), nil
	case "expanse":
		return ExpanseParams(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
}

// SetDifficultyBombDelay adds or replaces the delay activating at block.
func (p *Params) SetDifficultyBombDelay(block, delay uint64) {
	for i := range p.DifficultyBombDelays {
		if p.DifficultyBombDelays[i].Block == block {
			p.DifficultyBombDelays[i].Delay = delay
			return
		}
	}
	p.DifficultyBombDelays = append(p.DifficultyBombDelays, BombDelay{Block: block, Delay: delay})
	sort.Slice(p.DifficultyBombDelays, func(i, j int) bool {
		return p.DifficultyBombDelays[i].Block < p.DifficultyBombDelays[j].Block
	})
}
