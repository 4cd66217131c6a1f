// Package ethashtest seals headers against a deterministic synthetic dataset
// so proof-of-work verification can run in tests without a real DAG.
package ethashtest

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/darwinia-network/bridge-relay/ethash"
)

// Params is the mainnet schedule with a difficulty floor of 1, so headers
// with a tiny difficulty can be mined in a handful of attempts.
func Params() *ethash.Params {
	p := ethash.MainnetParams()
	p.MinimumDifficulty = big.NewInt(1)
	return p
}

// Dataset is a sparse stand-in for one epoch's Ethash dataset. Every word is
// keccak512 of its index; the Merkle tree only materialises rows that some
// sealed header accessed, every other leaf being the all-zero row.
//
// Seal all headers first, then read Root and Proofs: adding rows changes the
// root.
type Dataset struct {
	epoch uint64
	size  uint64
	depth int

	rows     map[uint32]struct{}
	accesses map[common.Hash][]uint32 // sealed header hash -> rows in access order

	empty [][16]byte            // root of an all-zero subtree per level
	tree  []map[uint64][16]byte // level -> index -> node, built lazily
}

// NewDataset returns the synthetic dataset of epoch.
func NewDataset(epoch uint64) *Dataset {
	size := ethash.DatasetSize(epoch)
	rows := size / 128

	depth := 0
	for (uint64(1) << uint(depth)) < rows {
		depth++
	}

	var zero [128]byte
	empty := make([][16]byte, depth+1)
	empty[0] = truncate(sha256.Sum256(zero[:]))
	for i := 1; i <= depth; i++ {
		empty[i] = hashPair(empty[i-1], empty[i-1])
	}

	return &Dataset{
		epoch:    epoch,
		size:     size,
		depth:    depth,
		rows:     make(map[uint32]struct{}),
		accesses: make(map[common.Hash][]uint32),
		empty:    empty,
	}
}

// Epoch returns the dataset's epoch.
func (d *Dataset) Epoch() uint64 { return d.epoch }

// item is the 64-byte dataset word at index, in dataset byte order.
func item(index uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], index)
	return crypto.Keccak512(buf[:])
}

func itemWords(index uint32) []uint32 {
	data := item(index)
	words := make([]uint32, 16)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}

// proofNode is the word at index as relayers ship it, each 32-byte half
// byte-reversed.
func proofNode(index uint32) (node [64]byte) {
	data := item(index)
	for j := 0; j < 32; j++ {
		node[j] = data[31-j]
		node[32+j] = data[63-j]
	}
	return node
}

// Seal searches a nonce for header whose seal meets header.Difficulty under
// params, and stores the matching MixDigest and Nonce in header.
func (d *Dataset) Seal(params *ethash.Params, header *types.Header) error {
	if ethash.Epoch(header.Number.Uint64()) != d.epoch {
		return fmt.Errorf("header %v is not in epoch %d", header.Number, d.epoch)
	}

	sealHash := ethash.SealHash(header)
	for nonce := uint64(0); nonce < 1<<20; nonce++ {
		var rows []uint32
		lookup := func(index uint32) []uint32 {
			if index%2 == 0 {
				rows = append(rows, index/2)
			}
			return itemWords(index)
		}

		digest, _ := ethash.Hashimoto(sealHash, nonce, d.size, lookup)
		header.Nonce = types.EncodeNonce(nonce)
		copy(header.MixDigest[:], digest)

		if params.VerifyBlockBasic(header) == nil {
			d.accesses[header.Hash()] = rows
			for _, r := range rows {
				d.rows[r] = struct{}{}
			}
			d.tree = nil
			return nil
		}
	}
	return fmt.Errorf("no nonce found for header %v", header.Number)
}

// Root returns the Merkle root over every row sealed so far.
func (d *Dataset) Root() [16]byte {
	d.build()
	return d.node(d.depth, 0)
}

// Proofs returns the proof bundle for a header previously sealed with Seal.
func (d *Dataset) Proofs(header *types.Header) []ethash.DoubleNodeWithMerkleProof {
	rows, ok := d.accesses[header.Hash()]
	if !ok {
		return nil
	}
	d.build()

	proofs := make([]ethash.DoubleNodeWithMerkleProof, len(rows))
	for i, row := range rows {
		p := &proofs[i]
		p.DagNodes[0] = proofNode(2 * row)
		p.DagNodes[1] = proofNode(2*row + 1)
		p.Proof = make([][16]byte, d.depth)
		for level := 0; level < d.depth; level++ {
			p.Proof[level] = d.node(level, (uint64(row)>>uint(level))^1)
		}
	}
	return proofs
}

// DagRoot implements ethash.RootSource for the dataset's own epoch.
func (d *Dataset) DagRoot(epoch uint64) ([16]byte, bool) {
	if epoch != d.epoch {
		return [16]byte{}, false
	}
	return d.Root(), true
}

func (d *Dataset) build() {
	if d.tree != nil {
		return
	}

	d.tree = make([]map[uint64][16]byte, d.depth+1)
	d.tree[0] = make(map[uint64][16]byte, len(d.rows))
	for row := range d.rows {
		n0, n1 := proofNode(2*row), proofNode(2*row+1)
		var data [128]byte
		copy(data[:64], n0[:])
		copy(data[64:], n1[:])
		d.tree[0][uint64(row)] = truncate(sha256.Sum256(data[:]))
	}

	for level := 1; level <= d.depth; level++ {
		d.tree[level] = make(map[uint64][16]byte)
		for idx := range d.tree[level-1] {
			parent := idx >> 1
			if _, done := d.tree[level][parent]; done {
				continue
			}
			d.tree[level][parent] = hashPair(d.node(level-1, parent<<1), d.node(level-1, parent<<1|1))
		}
	}
}

// node returns the tree node at level and index, falling back to the root
// of an all-zero subtree.
func (d *Dataset) node(level int, index uint64) [16]byte {
	if n, ok := d.tree[level][index]; ok {
		return n
	}
	return d.empty[level]
}

func hashPair(l, r [16]byte) [16]byte {
	var data [64]byte
	copy(data[16:32], l[:])
	copy(data[48:64], r[:])
	return truncate(sha256.Sum256(data[:]))
}

func truncate(sum [32]byte) (out [16]byte) {
	copy(out[:], sum[16:])
	return out
}
