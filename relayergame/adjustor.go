package relayergame

import (
	"fmt"
	"math"
	"sort"
)

// Adjustor tunes the game for one foreign chain.
type Adjustor interface {
	// ChallengeTime is how many host blocks round stays open.
	ChallengeTime(round uint32) uint64
	// EstimateBond is the bond of a proposal joining round next to
	// proposals existing ones.
	EstimateBond(round uint32, proposals int) uint64
	// UpdateSamples returns the numbers the next round proves given every
	// number proven so far, or nothing once no number is left to prove.
	UpdateSamples(proven []uint64, lastConfirmed, gameID uint64) []uint64
}

// SamplingPolicy picks the next round's samples.
type SamplingPolicy func(proven []uint64, lastConfirmed, gameID uint64) []uint64

const (
	SamplingLinear    = "linear"
	SamplingBisection = "bisection"
)

// SamplingPolicyByName returns the policy called name.
func SamplingPolicyByName(name string) (SamplingPolicy, error) {
	switch name {
	case SamplingLinear:
		return LinearSampling, nil
	case SamplingBisection:
		return BisectionSampling, nil
	default:
		return nil, fmt.Errorf("unknown sampling policy %q", name)
	}
}

// LinearSampling walks back one header per round from the lowest proven
// number.
func LinearSampling(proven []uint64, lastConfirmed, gameID uint64) []uint64 {
	low := gameID
	for _, n := range proven {
		if n < low {
			low = n
		}
	}
	if low <= lastConfirmed+1 {
		return nil
	}
	return []uint64{low - 1}
}

// BisectionSampling proves the midpoint of the widest gap between proven
// numbers, the last confirmed number included. Ties go to the lowest gap.
func BisectionSampling(proven []uint64, lastConfirmed, gameID uint64) []uint64 {
	points := []uint64{lastConfirmed}
	for _, n := range proven {
		if n > lastConfirmed && n <= gameID {
			points = append(points, n)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	var lo, width uint64
	for i := 1; i < len(points); i++ {
		if gap := points[i] - points[i-1]; gap > width {
			lo, width = points[i-1], gap
		}
	}
	if width < 2 {
		return nil
	}
	return []uint64{lo + width/2}
}

// DefaultAdjustor doubles the base bond every round and adds a fixed
// increment per competing proposal.
type DefaultAdjustor struct {
	// InitialChallengeTime applies to round 0, ExtendedChallengeTime to
	// later rounds.
	InitialChallengeTime  uint64
	ExtendedChallengeTime uint64
	BondBase              uint64
	BondIncrement         uint64
	Sampling              SamplingPolicy
}

var _ Adjustor = (*DefaultAdjustor)(nil)

func (a *DefaultAdjustor) ChallengeTime(round uint32) uint64 {
	if round == 0 || a.ExtendedChallengeTime == 0 {
		return a.InitialChallengeTime
	}
	return a.ExtendedChallengeTime
}

func (a *DefaultAdjustor) EstimateBond(round uint32, proposals int) uint64 {
	base := a.BondBase
	if round >= 64 || (base > 0 && base > math.MaxUint64>>round) {
		base = math.MaxUint64
	} else {
		base <<= round
	}
	extra := a.BondIncrement * uint64(proposals)
	if base > math.MaxUint64-extra {
		return math.MaxUint64
	}
	return base + extra
}

func (a *DefaultAdjustor) UpdateSamples(proven []uint64, lastConfirmed, gameID uint64) []uint64 {
	sampling := a.Sampling
	if sampling == nil {
		sampling = LinearSampling
	}
	return sampling(proven, lastConfirmed, gameID)
}
