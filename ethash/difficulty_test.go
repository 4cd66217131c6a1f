package ethash_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethethash "github.com/ethereum/go-ethereum/consensus/ethash"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/darwinia-network/bridge-relay/ethash"
)

func TestCalcDifficultyFixtures(t *testing.T) {
	testCases := map[string]struct {
		params *ethash.Params
		parent string
		child  string
	}{
		"mainnet genesis to block 1": {ethash.MainnetParams(), "mainnet_genesis.json", "mainnet_1.json"},
		"mainnet byzantium era":      {ethash.MainnetParams(), "mainnet_8996777.json", "mainnet_8996778.json"},
		"ropsten":                    {ethash.RopstenParams(), "ropsten_6890091.json", "ropsten_6890092.json"},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			parent, _ := loadHeader(t, tc.parent)
			child, _ := loadHeader(t, tc.child)

			got := tc.params.CalcDifficulty(child.Time, parent)
			require.Equal(t, 0, child.Difficulty.Cmp(got), "have %v, want %v", got, child.Difficulty)
		})
	}
}

func TestCalcDifficultyGenesisToBlockOne(t *testing.T) {
	genesis, _ := loadHeader(t, "mainnet_genesis.json")

	got := ethash.MainnetParams().CalcDifficulty(0x55ba4224, genesis)
	require.Equal(t, big.NewInt(0x3ff800000), got)
}

func TestCalcDifficultyIsPure(t *testing.T) {
	parent, _ := loadHeader(t, "mainnet_8996777.json")
	before := new(big.Int).Set(parent.Difficulty)
	p := ethash.MainnetParams()

	first := p.CalcDifficulty(parent.Time+7, parent)
	second := p.CalcDifficulty(parent.Time+7, parent)

	require.Equal(t, first, second)
	require.Equal(t, before, parent.Difficulty)
	require.NotSame(t, first, second)
}

func TestCalcDifficultyBranches(t *testing.T) {
	header := func(number uint64, diff int64, time uint64, uncles bool) *types.Header {
		h := &types.Header{
			Number:     new(big.Int).SetUint64(number),
			Difficulty: big.NewInt(diff),
			Time:       time,
			UncleHash:  types.EmptyUncleHash,
		}
		if uncles {
			h.UncleHash = common.HexToHash("0x01")
		}
		return h
	}
	const diff = 1 << 40
	step := int64(diff / 2048)
	bomb := func(period uint) *big.Int { return new(big.Int).Lsh(big.NewInt(1), period-2) }

	testCases := map[string]struct {
		params  *ethash.Params
		parent  *types.Header
		elapsed uint64
		want    *big.Int
	}{
		"frontier fast block raises": {
			ethash.MainnetParams(), header(1000, diff, 100, false), 12, big.NewInt(diff + step),
		},
		"frontier slow block lowers": {
			ethash.MainnetParams(), header(1000, diff, 100, false), 13, big.NewInt(diff - step),
		},
		"homestead at the fork block": {
			ethash.MainnetParams(), header(1149999, diff, 100, false), 5,
			new(big.Int).Add(big.NewInt(diff+step), bomb(11)),
		},
		"homestead adjustment capped at 99": {
			ethash.MainnetParams(), header(4369998, diff, 100, false), 10000,
			new(big.Int).Add(big.NewInt(diff-99*step), bomb(43)),
		},
		"byzantium without uncles": {
			ethash.MainnetParams(), header(4369999, diff, 100, false), 9,
			new(big.Int).Add(big.NewInt(diff), bomb(13)),
		},
		"byzantium with uncles": {
			ethash.MainnetParams(), header(4369999, diff, 100, true), 9,
			new(big.Int).Add(big.NewInt(diff+step), bomb(13)),
		},
		"clamped at minimum": {
			ethash.RopstenParams(), header(100, 0x20000, 100, false), 10000, big.NewInt(0x20000),
		},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			got := tc.params.CalcDifficulty(tc.parent.Time+tc.elapsed, tc.parent)
			require.Equal(t, 0, tc.want.Cmp(got), "have %v, want %v", got, tc.want)
		})
	}
}

// The mainnet preset must agree with go-ethereum's own difficulty calculator
// on every proof-of-work era, seams included.
func TestCalcDifficultyMatchesGoEthereum(t *testing.T) {
	seams := []uint64{1150000, 4370000, 7280000, 9200000, 12965000, 13773000, 15050000}

	rapid.Check(t, func(t *rapid.T) {
		var number uint64
		if rapid.Bool().Draw(t, "near seam").(bool) {
			seam := rapid.SampledFrom(seams).Draw(t, "seam").(uint64)
			number = seam - 3 + rapid.Uint64Range(0, 5).Draw(t, "offset").(uint64)
		} else {
			number = rapid.Uint64Range(0, 15_500_000).Draw(t, "number").(uint64)
		}

		parent := &types.Header{
			Number:     new(big.Int).SetUint64(number),
			Difficulty: big.NewInt(rapid.Int64Range(0x20000, 1<<56).Draw(t, "difficulty").(int64)),
			Time:       rapid.Uint64Range(0, 1<<40).Draw(t, "time").(uint64),
			UncleHash:  types.EmptyUncleHash,
		}
		if rapid.Bool().Draw(t, "uncles").(bool) {
			parent.UncleHash = common.HexToHash("0xabcdef")
		}
		time := parent.Time + rapid.Uint64Range(1, 2000).Draw(t, "elapsed").(uint64)

		want := gethethash.CalcDifficulty(params.MainnetChainConfig, time, parent)
		got := ethash.MainnetParams().CalcDifficulty(time, parent)
		if want.Cmp(got) != 0 {
			t.Fatalf("block %d: have %v, want %v", number+1, got, want)
		}
	})
}

func TestParamsForNetwork(t *testing.T) {
	for _, name := range []string{"mainnet", "Ropsten", "expanse", "production"} {
		p, err := ethash.ParamsForNetwork(name)
		require.NoError(t, err, name)
		require.NotNil(t, p)
	}

	_, err := ethash.ParamsForNetwork("goerli")
	require.ErrorIs(t, err, ethash.ErrUnknownNetwork)
}

func TestSetDifficultyBombDelay(t *testing.T) {
	p := ethash.RopstenParams()
	p.SetDifficultyBombDelay(0x100, 5)
	p.SetDifficultyBombDelay(0xa03549, 1)

	require.Equal(t, ethash.BombDelay{Block: 0x100, Delay: 5}, p.DifficultyBombDelays[0])
	last := p.DifficultyBombDelays[len(p.DifficultyBombDelays)-1]
	require.Equal(t, ethash.BombDelay{Block: 0xa03549, Delay: 1}, last)
	require.Len(t, p.DifficultyBombDelays, 5)
}
