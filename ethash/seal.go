package ethash

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

const maxExtraDataSize = 32

var two256 = new(big.Int).Lsh(big1, 256)

// SealHash returns the hash of a header prior to it being sealed, that is
// without MixDigest and Nonce.
func SealHash(header *types.Header) (hash common.Hash) {
	hasher := sha3.NewLegacyKeccak256()

	enc := []interface{}{
		header.ParentHash,
		header.UncleHash,
		header.Coinbase,
		header.Root,
		header.TxHash,
		header.ReceiptHash,
		header.Bloom,
		header.Difficulty,
		header.Number,
		header.GasLimit,
		header.GasUsed,
		header.Time,
		header.Extra,
	}
	if header.BaseFee != nil {
		enc = append(enc, header.BaseFee)
	}
	if err := rlp.Encode(hasher, enc); err != nil {
		panic("can't encode: " + err.Error())
	}
	hasher.(crypto.KeccakState).Read(hash[:])
	return hash
}

// seedHash is keccak512(sealHash || little-endian nonce), the seed every
// hashimoto evaluation starts from.
func seedHash(sealHash common.Hash, nonce uint64) []byte {
	seed := make([]byte, 40)
	copy(seed, sealHash[:])
	binary.LittleEndian.PutUint64(seed[32:], nonce)

	hasher := sha3.NewLegacyKeccak512()
	hasher.Write(seed)
	return hasher.Sum(nil)
}

// powResult is the final hashimoto output computed from the claimed mix
// digest alone, which is enough to check the difficulty without the dataset.
func powResult(header *types.Header) []byte {
	seed := seedHash(SealHash(header), header.Nonce.Uint64())
	return crypto.Keccak256(seed, header.MixDigest[:])
}

// VerifyBlockBasic checks the difficulty floor and that the claimed mix
// digest yields a result meeting the header's difficulty. It does not
// recompute the mix digest; VerifySeal does.
func (p *Params) VerifyBlockBasic(header *types.Header) error {
	if header.Difficulty == nil || header.Difficulty.Cmp(p.MinimumDifficulty) < 0 {
		return fmt.Errorf("%w: have %v, min %v", ErrDifficultyTooLow, header.Difficulty, p.MinimumDifficulty)
	}

	if achieved := resultDifficulty(powResult(header)); achieved.Cmp(header.Difficulty) < 0 {
		return fmt.Errorf("%w: achieved %v, want %v", ErrInvalidPoW, achieved, header.Difficulty)
	}
	return nil
}

// resultDifficulty is 2^256 / result, capped at 2^256 - 1.
func resultDifficulty(result []byte) *big.Int {
	r := new(big.Int).SetBytes(result)
	if r.Cmp(big1) <= 0 {
		return new(big.Int).Sub(two256, big1)
	}
	return r.Div(two256, r)
}
