package ethash

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/darwinia-network/bridge-relay/libs/log"
)

// Mode defines the type and amount of PoW verification an engine makes.
type Mode uint

const (
	// ModeNormal verifies difficulty, header bounds and the full seal.
	ModeNormal Mode = iota
	// ModeFake verifies difficulty and header bounds but accepts any seal.
	ModeFake
	// ModeFullFake accepts every header.
	ModeFullFake
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeFake:
		return "fake"
	case ModeFullFake:
		return "fullfake"
	default:
		return fmt.Sprintf("mode(%d)", uint(m))
	}
}

// RootSource resolves the Merkle root of an epoch's dataset.
type RootSource interface {
	DagRoot(epoch uint64) ([16]byte, bool)
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the verification mode. The default is ModeNormal.
func WithMode(mode Mode) Option {
	return func(e *Engine) {
		e.mode = mode
	}
}

// Logger sets the engine's logger.
func Logger(l log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Engine verifies headers against a Params preset and the dataset roots of
// a RootSource. It is safe for concurrent use.
type Engine struct {
	params *Params
	roots  RootSource
	mode   Mode
	logger log.Logger

	sizes *lru.Cache[uint64, uint64] // epoch -> dataset size
}

// NewEngine returns an engine for params reading dataset roots from roots.
func NewEngine(params *Params, roots RootSource, options ...Option) *Engine {
	e := &Engine{
		params: params,
		roots:  roots,
		mode:   ModeNormal,
		logger: log.NewNopLogger(),
		sizes:  lru.NewCache[uint64, uint64](16),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Params returns the engine's fork schedule.
func (e *Engine) Params() *Params { return e.params }

// Mode returns the engine's verification mode.
func (e *Engine) Mode() Mode { return e.mode }

// VerifyHeader checks header as the child of parent: numbering, timestamp,
// extra-data and gas bounds, the expected difficulty and, in ModeNormal, the
// proof-of-work seal against proofs.
func (e *Engine) VerifyHeader(parent, header *types.Header, proofs []DoubleNodeWithMerkleProof) error {
	if e.mode == ModeFullFake {
		return nil
	}

	if header.Number == nil || parent.Number == nil || !header.Number.IsUint64() ||
		header.Number.Uint64() != parent.Number.Uint64()+1 {
		return fmt.Errorf("%w: have %v, parent %v", ErrInvalidNumber, header.Number, parent.Number)
	}
	if header.Time <= parent.Time {
		return fmt.Errorf("%w: have %d, parent %d", ErrOlderBlockTime, header.Time, parent.Time)
	}
	if len(header.Extra) > maxExtraDataSize {
		return fmt.Errorf("%w: %d > %d", ErrExtraTooLong, len(header.Extra), maxExtraDataSize)
	}
	if header.GasUsed > header.GasLimit {
		return fmt.Errorf("%w: have %d, limit %d", ErrGasLimitExceeded, header.GasUsed, header.GasLimit)
	}

	expected := e.params.CalcDifficulty(header.Time, parent)
	if header.Difficulty == nil || expected.Cmp(header.Difficulty) != 0 {
		return fmt.Errorf("%w: have %v, want %v", ErrInvalidDifficulty, header.Difficulty, expected)
	}

	return e.VerifyPoW(header, proofs)
}

// VerifyPoW checks the seal of header on its own: the difficulty floor, the
// quick proof-of-work check and the mix digest. Only ModeNormal verifies.
func (e *Engine) VerifyPoW(header *types.Header, proofs []DoubleNodeWithMerkleProof) error {
	if e.mode != ModeNormal {
		return nil
	}
	if header.Number == nil || !header.Number.IsUint64() {
		return fmt.Errorf("%w: %v", ErrInvalidNumber, header.Number)
	}
	if err := e.params.VerifyBlockBasic(header); err != nil {
		return err
	}
	return e.VerifySeal(header, proofs)
}

// VerifySeal recomputes the mix digest of header from the dataset rows in
// proofs, checking every row against the epoch's dataset root, and compares
// it with header.MixDigest.
func (e *Engine) VerifySeal(header *types.Header, proofs []DoubleNodeWithMerkleProof) error {
	if e.mode != ModeNormal {
		return nil
	}

	if len(proofs) != loopAccesses {
		return fmt.Errorf("%w: have %d proofs, want %d", ErrProofOutOfRange, len(proofs), loopAccesses)
	}

	number := header.Number.Uint64()
	epoch := Epoch(number)
	root, ok := e.roots.DagRoot(epoch)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEpoch, epoch)
	}

	var (
		calls   uint32
		failure error
	)
	lookup := func(offset uint32) []uint32 {
		if failure != nil {
			return make([]uint32, hashWords)
		}

		index := calls
		calls++
		node := &proofs[index/2]

		if index%2 == 0 {
			if got := node.ApplyMerkleProof(uint64(offset / 2)); got != root {
				failure = fmt.Errorf("%w: access %d, have %x, want %x", ErrMerkleRootMismatch, index/2, got, root)
				return make([]uint32, hashWords)
			}
		}
		return node.words(int(index % 2))
	}

	digest, _ := Hashimoto(SealHash(header), header.Nonce.Uint64(), e.datasetSize(epoch), lookup)
	if failure != nil {
		return failure
	}

	if !bytes.Equal(header.MixDigest[:], digest) {
		e.logger.Debug("mix digest mismatch", "number", number, "have", header.MixDigest, "want", fmt.Sprintf("%x", digest))
		return fmt.Errorf("%w: have %x, want %x", ErrInvalidMixDigest, header.MixDigest, digest)
	}
	return nil
}

func (e *Engine) datasetSize(epoch uint64) uint64 {
	if size, ok := e.sizes.Get(epoch); ok {
		return size
	}
	size := DatasetSize(epoch)
	e.sizes.Add(epoch, size)
	return size
}
