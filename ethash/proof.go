package ethash

import (
	"crypto/sha256"
	"encoding/binary"
)

// DoubleNodeWithMerkleProof is one hashimoto access: the two 64-byte dataset
// words of a 128-byte row, each stored with its 32-byte halves byte-reversed,
// and the Merkle path of that row into the epoch's dataset root.
type DoubleNodeWithMerkleProof struct {
	DagNodes [2][64]byte
	Proof    [][16]byte
}

// ApplyMerkleProof folds the proof path over the row's leaf and returns the
// root it implies for row index.
func (n *DoubleNodeWithMerkleProof) ApplyMerkleProof(index uint64) [16]byte {
	leaf := n.Leaf()
	for i, sibling := range n.Proof {
		if (index>>uint(i))&1 == 0 {
			leaf = hashH128(leaf, sibling)
		} else {
			leaf = hashH128(sibling, leaf)
		}
	}
	return leaf
}

// Leaf is the row's leaf in the dataset tree, the low half of
// sha256(node0 || node1).
func (n *DoubleNodeWithMerkleProof) Leaf() [16]byte {
	var data [128]byte
	copy(data[:64], n.DagNodes[0][:])
	copy(data[64:], n.DagNodes[1][:])

	sum := sha256.Sum256(data[:])
	var leaf [16]byte
	copy(leaf[:], sum[16:])
	return leaf
}

// hashH128 hashes two 16-byte nodes, each left-padded to 32 bytes.
func hashH128(l, r [16]byte) [16]byte {
	var data [64]byte
	copy(data[16:32], l[:])
	copy(data[48:64], r[:])

	sum := sha256.Sum256(data[:])
	var out [16]byte
	copy(out[:], sum[16:])
	return out
}

// words decodes the i-th dataset word the way hashimoto reads it: each 32-byte
// half reversed back, then sixteen little-endian uint32s.
func (n *DoubleNodeWithMerkleProof) words(i int) []uint32 {
	var data [64]byte
	src := n.DagNodes[i]
	for j := 0; j < 32; j++ {
		data[j] = src[31-j]
		data[32+j] = src[63-j]
	}

	out := make([]uint32, hashWords)
	for j := range out {
		out[j] = binary.LittleEndian.Uint32(data[j*4:])
	}
	return out
}
