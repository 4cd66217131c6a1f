package mmr_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/darwinia-network/bridge-relay/relay/mmr"
)

func leaves(n int) []common.Hash {
	out := make([]common.Hash, n)
	for i := range out {
		out[i] = crypto.Keccak256Hash([]byte{byte(i), byte(i >> 8)})
	}
	return out
}

func TestAppendMatchesPerfectTree(t *testing.T) {
	ls := leaves(4)
	var m mmr.MMR
	for _, l := range ls {
		m.Append(l)
	}
	merge := func(a, b common.Hash) common.Hash { return crypto.Keccak256Hash(a[:], b[:]) }
	require.Equal(t, merge(merge(ls[0], ls[1]), merge(ls[2], ls[3])), m.Root())
	require.Len(t, m.Peaks, 1)

	m.Append(leaves(5)[4])
	require.Len(t, m.Peaks, 2)
	require.EqualValues(t, 5, m.Count)
}

func TestProofs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 70).Draw(t, "n").(int)
		index := rapid.Uint64Range(0, uint64(n-1)).Draw(t, "index").(uint64)
		ls := leaves(n)

		var m mmr.MMR
		for _, l := range ls {
			m.Append(l)
		}
		proof := mmr.Prove(ls, index)
		require.True(t, mmr.VerifyProof(m.Root(), uint64(n), index, ls[index], proof))

		other := crypto.Keccak256Hash([]byte("other"))
		require.False(t, mmr.VerifyProof(m.Root(), uint64(n), index, other, proof))
		require.False(t, mmr.VerifyProof(m.Root(), uint64(n), uint64(n), ls[index], proof))

		if len(proof) > 0 {
			i := rapid.IntRange(0, len(proof)-1).Draw(t, "tamper").(int)
			tampered := append([]common.Hash(nil), proof...)
			tampered[i][0] ^= 1
			require.False(t, mmr.VerifyProof(m.Root(), uint64(n), index, ls[index], tampered))
		}
	})
}
