package ethash

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	datasetInitBytes   = 1 << 30 // bytes in dataset at genesis
	datasetGrowthBytes = 1 << 23 // dataset growth per epoch
	epochLength        = 30000   // blocks per epoch
	mixBytes           = 128     // width of mix
	hashBytes          = 64      // hash length in bytes
	hashWords          = 16      // number of 32 bit ints in a hash
	loopAccesses       = 64      // number of accesses in hashimoto loop
)

// Epoch is the dataset epoch a block number falls into.
func Epoch(number uint64) uint64 {
	return number / epochLength
}

// DatasetSize is the size in bytes of the dataset for epoch: the largest
// size below the linear growth target whose row count is prime.
func DatasetSize(epoch uint64) uint64 {
	size := datasetInitBytes + datasetGrowthBytes*epoch - mixBytes
	for !new(big.Int).SetUint64(size / mixBytes).ProbablyPrime(1) {
		size -= 2 * mixBytes
	}
	return size
}

// Hashimoto aggregates data from the dataset through lookup in order to
// produce the mix digest and final value for a seal hash and nonce. lookup
// receives the index of a 64-byte dataset word and returns its sixteen
// little-endian words.
func Hashimoto(hash common.Hash, nonce uint64, size uint64, lookup func(index uint32) []uint32) ([]byte, []byte) {
	rows := uint32(size / mixBytes)

	seed := seedHash(hash, nonce)
	seedHead := binary.LittleEndian.Uint32(seed)

	mix := make([]uint32, mixBytes/4)
	for i := 0; i < len(mix); i++ {
		mix[i] = binary.LittleEndian.Uint32(seed[i%16*4:])
	}

	temp := make([]uint32, len(mix))
	for i := 0; i < loopAccesses; i++ {
		parent := fnv(uint32(i)^seedHead, mix[i%len(mix)]) % rows
		for j := uint32(0); j < mixBytes/hashBytes; j++ {
			copy(temp[j*hashWords:], lookup(2*parent+j))
		}
		fnvHash(mix, temp)
	}

	for i := 0; i < len(mix); i += 4 {
		mix[i/4] = fnv(fnv(fnv(mix[i], mix[i+1]), mix[i+2]), mix[i+3])
	}
	mix = mix[:len(mix)/4]

	digest := make([]byte, 32)
	for i, val := range mix {
		binary.LittleEndian.PutUint32(digest[i*4:], val)
	}
	return digest, crypto.Keccak256(append(seed, digest...))
}

func fnv(a, b uint32) uint32 {
	return a*0x01000193 ^ b
}

func fnvHash(mix []uint32, data []uint32) {
	for i := 0; i < len(mix); i++ {
		mix[i] = mix[i]*0x01000193 ^ data[i]
	}
}
