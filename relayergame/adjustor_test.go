package relayergame_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darwinia-network/bridge-relay/relayergame"
)

func TestDefaultAdjustor(t *testing.T) {
	a := &relayergame.DefaultAdjustor{
		InitialChallengeTime:  10,
		ExtendedChallengeTime: 5,
		BondBase:              10,
		BondIncrement:         3,
	}

	assert.EqualValues(t, 10, a.ChallengeTime(0))
	assert.EqualValues(t, 5, a.ChallengeTime(1))
	assert.EqualValues(t, 5, a.ChallengeTime(7))

	assert.EqualValues(t, 10, a.EstimateBond(0, 0))
	assert.EqualValues(t, 16, a.EstimateBond(0, 2))
	assert.EqualValues(t, 40, a.EstimateBond(2, 0))
	assert.EqualValues(t, uint64(math.MaxUint64), a.EstimateBond(64, 0))
	assert.EqualValues(t, uint64(math.MaxUint64), a.EstimateBond(63, 1))

	assert.Equal(t, []uint64{99}, a.UpdateSamples([]uint64{100}, 90, 100))

	noExtended := &relayergame.DefaultAdjustor{InitialChallengeTime: 8}
	assert.EqualValues(t, 8, noExtended.ChallengeTime(3))
}

func TestSampling(t *testing.T) {
	testCases := []struct {
		name     string
		policy   relayergame.SamplingPolicy
		proven   []uint64
		last, id uint64
		want     []uint64
	}{
		{"linear first round", relayergame.LinearSampling, []uint64{100}, 90, 100, []uint64{99}},
		{"linear walks back", relayergame.LinearSampling, []uint64{100, 99, 98}, 90, 100, []uint64{97}},
		{"linear done", relayergame.LinearSampling, []uint64{100, 99}, 98, 100, nil},
		{"bisection first round", relayergame.BisectionSampling, []uint64{100}, 90, 100, []uint64{95}},
		{"bisection widest gap", relayergame.BisectionSampling, []uint64{100, 95}, 90, 100, []uint64{92}},
		{"bisection upper gap", relayergame.BisectionSampling, []uint64{100, 92}, 90, 100, []uint64{96}},
		{"bisection done", relayergame.BisectionSampling, []uint64{100, 99}, 98, 100, nil},
		{"bisection ignores stale numbers", relayergame.BisectionSampling, []uint64{100, 80}, 96, 100, []uint64{98}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.policy(tc.proven, tc.last, tc.id))
		})
	}
}

func TestSamplingPolicyByName(t *testing.T) {
	p, err := relayergame.SamplingPolicyByName(relayergame.SamplingBisection)
	require.NoError(t, err)
	assert.Equal(t, []uint64{95}, p([]uint64{100}, 90, 100))

	_, err = relayergame.SamplingPolicyByName("random")
	require.Error(t, err)
}
