// Package headerchain stores verified proof-of-work headers and keeps the
// canonical number to hash index pointing at the heaviest known chain.
package headerchain

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	dbm "github.com/tendermint/tm-db"

	"github.com/darwinia-network/bridge-relay/ethash"
	"github.com/darwinia-network/bridge-relay/libs/log"
)

const (
	// DefaultFinality is the depth behind the best header below which new
	// headers are refused.
	DefaultFinality = 30
	// DefaultSafe is the depth a header must reach before receipts in it are
	// trusted.
	DefaultSafe = 10

	headerCacheSize = 512
)

// HeaderInfo is what the chain derives for every verified header.
type HeaderInfo struct {
	ParentHash      common.Hash
	Number          uint64
	TotalDifficulty *big.Int
}

// Option sets an optional parameter on the Chain.
type Option func(*Chain)

// Logger sets the logger of the chain.
func Logger(l log.Logger) Option {
	return func(c *Chain) {
		c.logger = l
	}
}

// WithMetrics sets the chain's metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Chain) {
		c.metrics = m
	}
}

// EngineMode sets the proof-of-work verification mode. Tests use
// ethash.ModeFake to accept unsealed headers.
func EngineMode(mode ethash.Mode) Option {
	return func(c *Chain) {
		c.mode = mode
	}
}

// Chain is the header chain store. All methods are safe for concurrent use;
// proof-of-work verification in Accept runs outside the write lock.
type Chain struct {
	mtx sync.RWMutex
	db  dbm.DB

	engine  *ethash.Engine
	mode    ethash.Mode
	logger  log.Logger
	metrics *Metrics

	headers *lru.Cache[common.Hash, *types.Header]
}

// New returns a Chain persisting into db and verifying with params.
func New(db dbm.DB, params *ethash.Params, options ...Option) *Chain {
	c := &Chain{
		db:      db,
		mode:    ethash.ModeNormal,
		logger:  log.NewNopLogger(),
		metrics: NopMetrics(),
		headers: lru.NewCache[common.Hash, *types.Header](headerCacheSize),
	}
	for _, o := range options {
		o(c)
	}
	c.engine = ethash.NewEngine(params, c, ethash.WithMode(c.mode), ethash.Logger(c.logger))
	return c
}

// Engine returns the proof-of-work engine the chain verifies with.
func (c *Chain) Engine() *ethash.Engine { return c.engine }

// InitGenesis anchors the chain at header with the externally supplied total
// difficulty. Every previously stored header is dropped, so descendants of
// the anchor have to be accepted again and get their total difficulty from
// the new anchor.
func (c *Chain) InitGenesis(header *types.Header, totalDifficulty *big.Int) error {
	if header.Number == nil || !header.Number.IsUint64() {
		return fmt.Errorf("genesis header has invalid number %v", header.Number)
	}
	if totalDifficulty == nil || totalDifficulty.Sign() < 0 {
		return fmt.Errorf("genesis total difficulty %v is invalid", totalDifficulty)
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	hash := header.Hash()
	number := header.Number.Uint64()

	b := c.db.NewBatch()
	defer b.Close()

	if err := c.clearHeaders(b); err != nil {
		return err
	}
	if err := c.writeHeader(b, header, &HeaderInfo{
		ParentHash:      header.ParentHash,
		Number:          number,
		TotalDifficulty: new(big.Int).Set(totalDifficulty),
	}); err != nil {
		return err
	}
	if err := b.Set(canonicalKey(number), hash[:]); err != nil {
		return err
	}
	if err := b.Set(bestKey(), hash[:]); err != nil {
		return err
	}
	if err := b.Set(anchorKey(), uint64Bytes(number)); err != nil {
		return err
	}
	if err := b.WriteSync(); err != nil {
		return err
	}

	c.headers.Purge()
	c.headers.Add(hash, header)
	c.metrics.BestNumber.Set(float64(number))
	c.logger.Info("genesis anchor set", "number", number, "hash", hash, "td", totalDifficulty)
	return nil
}

// clearHeaders deletes every header, info and canonical entry.
func (c *Chain) clearHeaders(b dbm.Batch) error {
	start := mustKey(prefixHeader)
	end := mustKey(prefixCanonical + 1)
	itr, err := c.db.Iterator(start, end)
	if err != nil {
		return err
	}
	defer itr.Close()

	for ; itr.Valid(); itr.Next() {
		if err := b.Delete(itr.Key()); err != nil {
			return err
		}
	}
	return itr.Error()
}

// Accept verifies header against its stored parent with the proof-of-work
// proofs and stores it, moving the best header and the canonical index when
// it makes a heavier chain. Rejected headers leave the store untouched.
func (c *Chain) Accept(header *types.Header, proofs []ethash.DoubleNodeWithMerkleProof) error {
	err := c.accept(header, proofs)
	if err != nil {
		c.metrics.Rejected.With("reason", rejectReason(err)).Add(1)
	}
	return err
}

func (c *Chain) accept(header *types.Header, proofs []ethash.DoubleNodeWithMerkleProof) error {
	if header.Number == nil || !header.Number.IsUint64() {
		return ErrInvalidHeader{Hash: header.Hash(), Reason: ethash.ErrInvalidNumber}
	}
	hash := header.Hash()
	number := header.Number.Uint64()

	c.mtx.RLock()
	parent, err := c.precheck(hash, number, header.ParentHash)
	c.mtx.RUnlock()
	if err != nil {
		return err
	}

	if err := c.engine.VerifyHeader(parent, header, proofs); err != nil {
		return ErrInvalidHeader{Number: number, Hash: hash, Reason: err}
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	// the store may have moved while verifying
	if _, err := c.precheck(hash, number, header.ParentHash); err != nil {
		return err
	}
	return c.store(header)
}

// precheck returns the parent of a candidate header or why it is refused.
// Only the anchor and its descendants are stored, so a known parent ties
// the header to the anchor.
func (c *Chain) precheck(hash common.Hash, number uint64, parentHash common.Hash) (*types.Header, error) {
	bestHash, ok := c.loadHash(bestKey())
	if !ok {
		return nil, ErrNotInitialized
	}
	best, err := c.requireInfo(bestHash)
	if err != nil {
		return nil, err
	}

	if has, err := c.db.Has(infoKey(hash)); err != nil {
		return nil, err
	} else if has {
		return nil, fmt.Errorf("%w: #%d %s", ErrHeaderExists, number, hash.TerminalString())
	}

	if anchor := c.anchor(); number <= anchor {
		return nil, fmt.Errorf("%w: #%d, anchor #%d", ErrHeaderTooOld, number, anchor)
	}
	if finality := c.param(paramFinality, DefaultFinality); number+finality < best.Number {
		return nil, fmt.Errorf("%w: #%d, best #%d, finality %d", ErrHeaderTooOld, number, best.Number, finality)
	}

	parent, ok := c.header(parentHash)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParent, parentHash.TerminalString())
	}
	return parent, nil
}

// store writes a verified header and updates best and canonical entries in
// one batch.
func (c *Chain) store(header *types.Header) error {
	hash := header.Hash()
	number := header.Number.Uint64()
	parentInfo, err := c.requireInfo(header.ParentHash)
	if err != nil {
		return err
	}

	info := &HeaderInfo{
		ParentHash:      header.ParentHash,
		Number:          number,
		TotalDifficulty: new(big.Int).Add(parentInfo.TotalDifficulty, header.Difficulty),
	}

	b := c.db.NewBatch()
	defer b.Close()

	if err := c.writeHeader(b, header, info); err != nil {
		return err
	}

	bestHash, _ := c.loadHash(bestKey())
	best, err := c.requireInfo(bestHash)
	if err != nil {
		return err
	}

	cmp := info.TotalDifficulty.Cmp(best.TotalDifficulty)
	becomesBest := cmp > 0 || (cmp == 0 && header.Difficulty.Bit(0) == 0)

	rewritten := 0
	if becomesBest {
		if rewritten, err = c.reorg(b, hash, info, best.Number); err != nil {
			return err
		}
	}

	if err := b.WriteSync(); err != nil {
		return err
	}

	c.headers.Add(hash, header)
	c.metrics.Accepted.Add(1)

	if becomesBest {
		c.metrics.BestNumber.Set(float64(number))
		if header.ParentHash != bestHash {
			c.metrics.Reorgs.Add(1)
			c.metrics.ReorgDepth.Observe(float64(rewritten))
			c.logger.Info("canonical chain reorganised",
				"number", number, "hash", hash, "old_best", best.Number, "rewritten", rewritten)
		}
	}
	c.logger.Debug("header accepted", "number", number, "hash", hash, "td", info.TotalDifficulty, "best", becomesBest)
	return nil
}

// reorg points the canonical index at the chain ending in hash. It walks back
// from the new best until the index already agrees or the anchor is reached,
// then drops entries above the new best. It returns how many entries changed.
func (c *Chain) reorg(b dbm.Batch, hash common.Hash, info *HeaderInfo, oldBest uint64) (int, error) {
	if err := b.Set(bestKey(), hash[:]); err != nil {
		return 0, err
	}
	if err := b.Set(canonicalKey(info.Number), hash[:]); err != nil {
		return 0, err
	}
	rewritten := 1

	anchor := c.anchor()
	cur, number := info.ParentHash, info.Number
	for number > anchor {
		number--
		if existing, ok := c.loadHash(canonicalKey(number)); ok && existing == cur {
			break
		}
		if err := b.Set(canonicalKey(number), cur[:]); err != nil {
			return 0, err
		}
		rewritten++
		curInfo, err := c.requireInfo(cur)
		if err != nil {
			return 0, err
		}
		cur = curInfo.ParentHash
	}

	for n := info.Number + 1; n <= oldBest; n++ {
		if err := b.Delete(canonicalKey(n)); err != nil {
			return 0, err
		}
	}
	return rewritten, nil
}

// Best returns the info of the best header, the zero value before genesis.
func (c *Chain) Best() HeaderInfo {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	zero := HeaderInfo{TotalDifficulty: new(big.Int)}
	hash, ok := c.loadHash(bestKey())
	if !ok {
		return zero
	}
	info, ok := c.info(hash)
	if !ok {
		return zero
	}
	return *info
}

// BestHash returns the hash of the best header.
func (c *Chain) BestHash() (common.Hash, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.loadHash(bestKey())
}

// Anchor returns the number of the genesis anchor.
func (c *Chain) Anchor() uint64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.anchor()
}

// CanonicalHash returns the canonical hash at number.
func (c *Chain) CanonicalHash(number uint64) (common.Hash, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.loadHash(canonicalKey(number))
}

// Header returns a stored header by hash.
func (c *Chain) Header(hash common.Hash) (*types.Header, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.header(hash)
}

// CanonicalHeader returns the canonical header at number.
func (c *Chain) CanonicalHeader(number uint64) (*types.Header, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	hash, ok := c.loadHash(canonicalKey(number))
	if !ok {
		return nil, false
	}
	return c.header(hash)
}

// HeaderInfo returns the derived info of a stored header.
func (c *Chain) HeaderInfo(hash common.Hash) (*HeaderInfo, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.info(hash)
}

// SetDagRoots stores the dataset Merkle roots of consecutive epochs starting
// at startEpoch.
func (c *Chain) SetDagRoots(startEpoch uint64, roots [][16]byte) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	b := c.db.NewBatch()
	defer b.Close()
	for i, root := range roots {
		root := root
		if err := b.Set(dagRootKey(startEpoch+uint64(i)), root[:]); err != nil {
			return err
		}
	}
	return b.WriteSync()
}

// DagRoot implements ethash.RootSource.
func (c *Chain) DagRoot(epoch uint64) ([16]byte, bool) {
	var root [16]byte
	bz, err := c.db.Get(dagRootKey(epoch))
	if err != nil || len(bz) != len(root) {
		return root, false
	}
	copy(root[:], bz)
	return root, true
}

// SetFinality sets how far behind the best header new headers may be.
func (c *Chain) SetFinality(n uint64) error { return c.setParam(paramFinality, n) }

// Finality returns the finality window.
func (c *Chain) Finality() uint64 { return c.param(paramFinality, DefaultFinality) }

// SetSafe sets the depth receipts must reach before they are trusted.
func (c *Chain) SetSafe(n uint64) error { return c.setParam(paramSafe, n) }

// Safe returns the safety window.
func (c *Chain) Safe() uint64 { return c.param(paramSafe, DefaultSafe) }

func (c *Chain) setParam(name string, v uint64) error {
	return c.db.SetSync(paramKey(name), uint64Bytes(v))
}

func (c *Chain) param(name string, def uint64) uint64 {
	bz, err := c.db.Get(paramKey(name))
	if err != nil || bz == nil {
		return def
	}
	return bytesUint64(bz)
}

func (c *Chain) anchor() uint64 {
	bz, err := c.db.Get(anchorKey())
	if err != nil || bz == nil {
		return 0
	}
	return bytesUint64(bz)
}

func (c *Chain) writeHeader(b dbm.Batch, header *types.Header, info *HeaderInfo) error {
	hash := header.Hash()

	hbz, err := rlp.EncodeToBytes(header)
	if err != nil {
		return err
	}
	ibz, err := rlp.EncodeToBytes(info)
	if err != nil {
		return err
	}
	if err := b.Set(headerKey(hash), hbz); err != nil {
		return err
	}
	return b.Set(infoKey(hash), ibz)
}

func (c *Chain) header(hash common.Hash) (*types.Header, bool) {
	if h, ok := c.headers.Get(hash); ok {
		return h, true
	}

	bz, err := c.db.Get(headerKey(hash))
	if err != nil || bz == nil {
		return nil, false
	}
	h := new(types.Header)
	if err := rlp.DecodeBytes(bz, h); err != nil {
		c.logger.Error("corrupted header", "hash", hash, "err", err)
		return nil, false
	}
	c.headers.Add(hash, h)
	return h, true
}

func (c *Chain) info(hash common.Hash) (*HeaderInfo, bool) {
	bz, err := c.db.Get(infoKey(hash))
	if err != nil || bz == nil {
		return nil, false
	}
	info := new(HeaderInfo)
	if err := rlp.DecodeBytes(bz, info); err != nil {
		c.logger.Error("corrupted header info", "hash", hash, "err", err)
		return nil, false
	}
	return info, true
}

// requireInfo is info for hashes the store itself references.
func (c *Chain) requireInfo(hash common.Hash) (*HeaderInfo, error) {
	info, ok := c.info(hash)
	if !ok {
		return nil, fmt.Errorf("header chain references missing info %s", hash)
	}
	return info, nil
}

func (c *Chain) loadHash(key []byte) (common.Hash, bool) {
	bz, err := c.db.Get(key)
	if err != nil || len(bz) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(bz), true
}

func uint64Bytes(v uint64) []byte {
	bz, err := rlp.EncodeToBytes(v)
	if err != nil {
		panic(err)
	}
	return bz
}

func bytesUint64(bz []byte) uint64 {
	var v uint64
	if err := rlp.DecodeBytes(bz, &v); err != nil {
		panic(err)
	}
	return v
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrHeaderExists):
		return "exists"
	case errors.Is(err, ErrHeaderTooOld):
		return "too_old"
	case errors.Is(err, ErrUnknownParent):
		return "unknown_parent"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	default:
		return "invalid"
	}
}
