package headerchain_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/darwinia-network/bridge-relay/ethash"
	"github.com/darwinia-network/bridge-relay/ethash/ethashtest"
	"github.com/darwinia-network/bridge-relay/headerchain"
	"github.com/darwinia-network/bridge-relay/libs/log"
)

const anchorNumber = 1000

// steepParams halves or grows difficulty by half per block so forks of
// different lengths can outweigh each other.
func steepParams() *ethash.Params {
	p := ethash.MainnetParams()
	p.DifficultyBoundDivisor = big.NewInt(2)
	return p
}

func newChain(t *testing.T, params *ethash.Params, anchorDiff int64) (*headerchain.Chain, *types.Header) {
	t.Helper()

	chain := headerchain.New(dbm.NewMemDB(), params,
		headerchain.EngineMode(ethash.ModeFake),
		headerchain.Logger(log.NewTestingLogger(t)),
	)
	anchor := ethashtest.Anchor(anchorNumber, big.NewInt(anchorDiff))
	require.NoError(t, chain.InitGenesis(anchor, big.NewInt(anchorDiff)))
	return chain, anchor
}

func acceptAll(t *testing.T, chain *headerchain.Chain, headers []*types.Header) {
	t.Helper()
	for _, h := range headers {
		require.NoError(t, chain.Accept(h, nil), "header #%v", h.Number)
	}
}

func requireCanonical(t *testing.T, chain *headerchain.Chain, headers ...*types.Header) {
	t.Helper()
	for _, h := range headers {
		hash, ok := chain.CanonicalHash(h.Number.Uint64())
		require.True(t, ok, "no canonical entry at #%v", h.Number)
		require.Equal(t, h.Hash(), hash, "canonical entry at #%v", h.Number)
	}
}

func TestInitGenesis(t *testing.T) {
	chain, anchor := newChain(t, ethash.MainnetParams(), 1<<30)

	best := chain.Best()
	assert.EqualValues(t, anchorNumber, best.Number)
	assert.Equal(t, big.NewInt(1<<30), best.TotalDifficulty)
	assert.Equal(t, uint64(anchorNumber), chain.Anchor())
	requireCanonical(t, chain, anchor)

	hash, ok := chain.BestHash()
	require.True(t, ok)
	require.Equal(t, anchor.Hash(), hash)

	stored, ok := chain.Header(anchor.Hash())
	require.True(t, ok)
	require.Equal(t, anchor.Hash(), stored.Hash())
}

func TestAcceptExtendsCanonical(t *testing.T) {
	params := ethash.MainnetParams()
	chain, anchor := newChain(t, params, 1<<30)

	headers := ethashtest.Chain(params, anchor, 5, 10, []byte("a"))
	acceptAll(t, chain, headers)

	td := big.NewInt(1 << 30)
	for _, h := range headers {
		td.Add(td, h.Difficulty)
	}

	best := chain.Best()
	require.EqualValues(t, anchorNumber+5, best.Number)
	require.Equal(t, 0, td.Cmp(best.TotalDifficulty))
	requireCanonical(t, chain, append([]*types.Header{anchor}, headers...)...)

	info, ok := chain.HeaderInfo(headers[2].Hash())
	require.True(t, ok)
	require.Equal(t, headers[1].Hash(), info.ParentHash)

	h, ok := chain.CanonicalHeader(anchorNumber + 3)
	require.True(t, ok)
	require.Equal(t, headers[2].Hash(), h.Hash())
}

func TestAcceptRejections(t *testing.T) {
	params := ethash.MainnetParams()

	t.Run("not initialized", func(t *testing.T) {
		chain := headerchain.New(dbm.NewMemDB(), params, headerchain.EngineMode(ethash.ModeFake))
		h := ethashtest.Child(params, ethashtest.Anchor(1, big.NewInt(1<<30)), 10, nil)
		require.ErrorIs(t, chain.Accept(h, nil), headerchain.ErrNotInitialized)
	})

	chain, anchor := newChain(t, params, 1<<30)
	headers := ethashtest.Chain(params, anchor, 5, 10, []byte("a"))
	acceptAll(t, chain, headers)
	bestBefore := chain.Best()

	t.Run("exists", func(t *testing.T) {
		require.ErrorIs(t, chain.Accept(headers[1], nil), headerchain.ErrHeaderExists)
	})

	t.Run("unknown parent", func(t *testing.T) {
		orphan := ethashtest.Child(params, ethashtest.Child(params, headers[4], 10, []byte("x")), 10, nil)
		require.ErrorIs(t, chain.Accept(orphan, nil), headerchain.ErrUnknownParent)
	})

	t.Run("too old", func(t *testing.T) {
		require.NoError(t, chain.SetFinality(2))
		defer func() { require.NoError(t, chain.SetFinality(headerchain.DefaultFinality)) }()

		// #1002 is three behind #1005
		stale := ethashtest.Child(params, headers[0], 10, []byte("stale"))
		require.ErrorIs(t, chain.Accept(stale, nil), headerchain.ErrHeaderTooOld)

		// #1003 is exactly two behind
		recent := ethashtest.Child(params, headers[1], 10, []byte("recent"))
		require.NoError(t, chain.Accept(recent, nil))
	})

	t.Run("invalid difficulty", func(t *testing.T) {
		bad := ethashtest.Child(params, headers[4], 10, []byte("bad"))
		bad.Difficulty = new(big.Int).Add(bad.Difficulty, big.NewInt(1))

		err := chain.Accept(bad, nil)
		var invalid headerchain.ErrInvalidHeader
		require.True(t, errors.As(err, &invalid))
		require.Equal(t, bad.Hash(), invalid.Hash)
		require.ErrorIs(t, err, ethash.ErrInvalidDifficulty)

		_, ok := chain.Header(bad.Hash())
		require.False(t, ok)
	})

	best := chain.Best()
	require.Equal(t, bestBefore.Number, best.Number)
	require.Equal(t, 0, bestBefore.TotalDifficulty.Cmp(best.TotalDifficulty))
}

func TestReorgToHeavierFork(t *testing.T) {
	params := steepParams()
	chain, anchor := newChain(t, params, 1<<30)

	// slow blocks halve the difficulty each time
	slow := ethashtest.Chain(params, anchor, 4, 20, []byte("slow"))
	acceptAll(t, chain, slow)
	requireCanonical(t, chain, slow...)

	// a shorter fork only outweighs it once its fast block lands
	fork := ethashtest.Chain(params, anchor, 2, 20, []byte("fork"))
	fork = append(fork, ethashtest.Child(params, fork[1], 5, []byte("fork")))
	acceptAll(t, chain, fork[:2])
	requireCanonical(t, chain, slow...)

	require.NoError(t, chain.Accept(fork[2], nil))
	requireCanonical(t, chain, fork...)
	require.EqualValues(t, anchorNumber+3, chain.Best().Number)

	_, ok := chain.CanonicalHash(anchorNumber + 4)
	require.False(t, ok, "entries above the new best must be dropped")

	// the losing fork stays stored
	_, ok = chain.Header(slow[3].Hash())
	require.True(t, ok)
}

func TestReorgStopsAtForkPoint(t *testing.T) {
	params := steepParams()
	chain, anchor := newChain(t, params, 1<<30)

	trunk := ethashtest.Chain(params, anchor, 4, 20, []byte("main"))
	acceptAll(t, chain, trunk)

	fork := ethashtest.Chain(params, trunk[1], 2, 5, []byte("fork"))
	acceptAll(t, chain, fork)

	requireCanonical(t, chain, anchor, trunk[0], trunk[1], fork[0], fork[1])
	require.Equal(t, fork[1].Hash(), mustBestHash(t, chain))
}

func TestEqualTotalDifficultyTieBreak(t *testing.T) {
	params := ethash.MainnetParams()

	testCases := map[string]struct {
		anchorDiff int64
		replaces   bool
	}{
		"even difficulty replaces": {0x200000, true},  // child 0x200400
		"odd difficulty is kept":   {0x200001, false}, // child 0x200401
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			chain, anchor := newChain(t, params, tc.anchorDiff)

			first := ethashtest.Child(params, anchor, 5, []byte("first"))
			second := ethashtest.Child(params, anchor, 5, []byte("second"))
			require.Equal(t, first.Difficulty, second.Difficulty)

			require.NoError(t, chain.Accept(first, nil))
			require.NoError(t, chain.Accept(second, nil))

			want := first
			if tc.replaces {
				want = second
			}
			requireCanonical(t, chain, want)
			require.Equal(t, want.Hash(), mustBestHash(t, chain))
		})
	}
}

func TestReopenKeepsState(t *testing.T) {
	params := ethash.MainnetParams()
	db := dbm.NewMemDB()

	chain := headerchain.New(db, params, headerchain.EngineMode(ethash.ModeFake))
	anchor := ethashtest.Anchor(anchorNumber, big.NewInt(1<<30))
	require.NoError(t, chain.InitGenesis(anchor, big.NewInt(1<<30)))
	headers := ethashtest.Chain(params, anchor, 3, 10, nil)
	acceptAll(t, chain, headers)
	require.NoError(t, chain.SetSafe(4))

	reopened := headerchain.New(db, params, headerchain.EngineMode(ethash.ModeFake))
	require.Equal(t, chain.Best(), reopened.Best())
	require.EqualValues(t, 4, reopened.Safe())
	require.EqualValues(t, headerchain.DefaultFinality, reopened.Finality())
	requireCanonical(t, reopened, headers...)
}

func TestResetGenesisReacceptsDescendants(t *testing.T) {
	params := ethash.MainnetParams()
	chain, anchor := newChain(t, params, 1<<30)
	headers := ethashtest.Chain(params, anchor, 3, 10, nil)
	acceptAll(t, chain, headers)
	fork := ethashtest.Child(params, headers[0], 10, []byte("fork"))

	require.NoError(t, chain.InitGenesis(headers[1], big.NewInt(1<<40)))
	require.EqualValues(t, anchorNumber+2, chain.Best().Number)
	require.EqualValues(t, anchorNumber+2, chain.Anchor())

	for _, n := range []uint64{anchorNumber, anchorNumber + 1, anchorNumber + 3} {
		_, ok := chain.CanonicalHash(n)
		require.False(t, ok, "#%d", n)
	}

	// headers at or below the new anchor are refused
	require.ErrorIs(t, chain.Accept(fork, nil), headerchain.ErrHeaderTooOld)
	require.ErrorIs(t, chain.Accept(headers[0], nil), headerchain.ErrHeaderTooOld)

	acceptAll(t, chain, headers[2:])
	requireCanonical(t, chain, headers[1:]...)
	require.EqualValues(t, anchorNumber+3, chain.Best().Number)
	want := new(big.Int).Add(big.NewInt(1<<40), headers[2].Difficulty)
	require.Equal(t, 0, want.Cmp(chain.Best().TotalDifficulty))
}

func TestDagRoots(t *testing.T) {
	chain, _ := newChain(t, ethash.MainnetParams(), 1<<30)

	_, ok := chain.DagRoot(3)
	require.False(t, ok)

	roots := [][16]byte{{1}, {2}, {3}}
	require.NoError(t, chain.SetDagRoots(2, roots))

	for i, want := range roots {
		got, ok := chain.DagRoot(uint64(2 + i))
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

func TestAcceptVerifiesSeal(t *testing.T) {
	params := ethashtest.Params()
	chain := headerchain.New(dbm.NewMemDB(), params)

	anchor := ethashtest.Anchor(200, big.NewInt(16))
	require.NoError(t, chain.InitGenesis(anchor, big.NewInt(16)))

	ds := ethashtest.NewDataset(0)
	first := ethashtest.Child(params, anchor, 10, nil)
	require.NoError(t, ds.Seal(params, first))
	second := ethashtest.Child(params, first, 10, nil)
	require.NoError(t, ds.Seal(params, second))
	require.NoError(t, chain.SetDagRoots(0, [][16]byte{ds.Root()}))

	require.ErrorIs(t, chain.Accept(first, ds.Proofs(second)), ethash.ErrMerkleRootMismatch)
	require.ErrorIs(t, chain.Accept(first, nil), ethash.ErrProofOutOfRange)
	require.NoError(t, chain.Accept(first, ds.Proofs(first)))
	require.NoError(t, chain.Accept(second, ds.Proofs(second)))
	require.EqualValues(t, 202, chain.Best().Number)
}

func mustBestHash(t *testing.T, chain *headerchain.Chain) common.Hash {
	t.Helper()
	hash, ok := chain.BestHash()
	require.True(t, ok)
	return hash
}
