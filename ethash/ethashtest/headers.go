package ethashtest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/darwinia-network/bridge-relay/ethash"
)

// Anchor returns an unsealed header usable as a genesis anchor.
func Anchor(number uint64, difficulty *big.Int) *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(number),
		Difficulty: new(big.Int).Set(difficulty),
		Time:       1_600_000_000,
		GasLimit:   8_000_000,
		UncleHash:  types.EmptyUncleHash,
		Extra:      []byte("anchor"),
	}
}

// Child returns an unsealed child of parent created elapsed seconds later,
// carrying the difficulty params demand. extra tells siblings apart.
func Child(params *ethash.Params, parent *types.Header, elapsed uint64, extra []byte) *types.Header {
	h := &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number, big.NewInt(1)),
		Time:       parent.Time + elapsed,
		GasLimit:   parent.GasLimit,
		UncleHash:  types.EmptyUncleHash,
		Coinbase:   parent.Coinbase,
		Extra:      append([]byte(nil), extra...),
	}
	h.Difficulty = params.CalcDifficulty(h.Time, parent)
	return h
}

// Chain returns n unsealed descendants of parent, each elapsed seconds after
// its predecessor.
func Chain(params *ethash.Params, parent *types.Header, n int, elapsed uint64, extra []byte) []*types.Header {
	out := make([]*types.Header, 0, n)
	for i := 0; i < n; i++ {
		parent = Child(params, parent, elapsed, extra)
		out = append(out, parent)
	}
	return out
}
