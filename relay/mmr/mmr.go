package mmr

import (
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MMR is an append-only Merkle mountain range over 32-byte leaves. Only the
// peaks are kept, highest first.
type MMR struct {
	Count uint64
	Peaks []common.Hash
}

func merge(l, r common.Hash) common.Hash {
	return crypto.Keccak256Hash(l[:], r[:])
}

// Append adds leaf to the range.
func (m *MMR) Append(leaf common.Hash) {
	m.Peaks = append(m.Peaks, leaf)
	for c := m.Count; c&1 == 1; c >>= 1 {
		n := len(m.Peaks)
		m.Peaks = append(m.Peaks[:n-2], merge(m.Peaks[n-2], m.Peaks[n-1]))
	}
	m.Count++
}

// Root bags the peaks from the right. The empty range has the zero root.
func (m *MMR) Root() common.Hash {
	return bag(m.Peaks)
}

// Copy returns an independent copy of m.
func (m *MMR) Copy() *MMR {
	return &MMR{Count: m.Count, Peaks: append([]common.Hash(nil), m.Peaks...)}
}

func bag(peaks []common.Hash) common.Hash {
	if len(peaks) == 0 {
		return common.Hash{}
	}
	acc := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		acc = merge(peaks[i], acc)
	}
	return acc
}

// peakOf returns the position of the peak holding leaf index among the
// peaks of a range of count leaves, its height and its first leaf.
func peakOf(count, index uint64) (pos int, height int, start uint64) {
	for h := 63; h >= 0; h-- {
		size := uint64(1) << uint(h)
		if count&size == 0 {
			continue
		}
		if index < start+size {
			return pos, h, start
		}
		start += size
		pos++
	}
	return -1, 0, 0
}

// Prove returns the membership proof of leaves[index] in the range of all
// leaves: its siblings inside its peak from the bottom up, then the other
// peaks from left to right.
func Prove(leaves []common.Hash, index uint64) []common.Hash {
	count := uint64(len(leaves))
	if index >= count {
		return nil
	}
	pos, height, start := peakOf(count, index)

	var proof []common.Hash
	level := append([]common.Hash(nil), leaves[start:start+uint64(1)<<uint(height)]...)
	offset := index - start
	for h := 0; h < height; h++ {
		proof = append(proof, level[offset^1])
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = merge(level[2*i], level[2*i+1])
		}
		level, offset = next, offset/2
	}

	var m MMR
	for _, leaf := range leaves {
		m.Append(leaf)
	}
	for i, peak := range m.Peaks {
		if i != pos {
			proof = append(proof, peak)
		}
	}
	return proof
}

// VerifyProof reports whether proof shows leaf at index in the range of
// count leaves with the given root.
func VerifyProof(root common.Hash, count, index uint64, leaf common.Hash, proof []common.Hash) bool {
	if index >= count {
		return false
	}
	pos, height, start := peakOf(count, index)
	peaks := bits.OnesCount64(count)
	if len(proof) != height+peaks-1 {
		return false
	}

	acc, offset := leaf, index-start
	for h := 0; h < height; h++ {
		if offset>>uint(h)&1 == 0 {
			acc = merge(acc, proof[h])
		} else {
			acc = merge(proof[h], acc)
		}
	}

	all := make([]common.Hash, 0, peaks)
	all = append(all, proof[height:height+pos]...)
	all = append(all, acc)
	all = append(all, proof[height+pos:]...)
	return bag(all) == root
}
