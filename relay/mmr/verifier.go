// Package mmr relays headers of a chain whose every header commits to all of
// its ancestors with a Merkle mountain range root. Membership proofs against
// that root stand in for proof-of-work, so confirmed headers need not be
// contiguous.
package mmr

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/darwinia-network/bridge-relay/libs/log"
	"github.com/darwinia-network/bridge-relay/relay"
)

const (
	prefixHeader = int64(1)
	prefixBest   = int64(2)
)

var _ relay.Verifier = (*Verifier)(nil)

// Verifier implements relay.Verifier for commitment chains.
type Verifier struct {
	mtx    sync.RWMutex
	db     dbm.DB
	logger log.Logger
}

// NewVerifier returns a Verifier keeping confirmed headers in db.
func NewVerifier(db dbm.DB, logger log.Logger) *Verifier {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Verifier{db: db, logger: logger}
}

// InitGenesis trusts header as the last confirmed header.
func (v *Verifier) InitGenesis(header Header) error {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	if err := v.store(header); err != nil {
		return err
	}
	v.logger.Info("commitment genesis set", "number", header.Number, "hash", header.Hash())
	return nil
}

func (v *Verifier) LastConfirmed() uint64 {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	n, _ := v.best()
	return n
}

func (v *Verifier) HeaderExists(number uint64) bool {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	has, err := v.db.Has(headerKey(number))
	return err == nil && has
}

// Header returns the confirmed header at number.
func (v *Verifier) Header(number uint64) (*Header, bool) {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	return v.header(number)
}

// VerifyAndBrief decodes one parcel. Its Commitment is the MMR root.
func (v *Verifier) VerifyAndBrief(raw []byte, withEncoding bool) (relay.Brief, []byte, error) {
	p, err := DecodeParcel(raw)
	if err != nil {
		return relay.Brief{}, nil, err
	}
	var encoding []byte
	if withEncoding {
		if encoding, err = EncodeParcel(p); err != nil {
			return relay.Brief{}, nil, err
		}
	}
	return brief(p), encoding, nil
}

// VerifyChain checks that the target, the first parcel, commits to the
// confirmed header at anchor, that every other parcel is a member of the
// target's range, and that headers of adjacent numbers link up.
func (v *Verifier) VerifyChain(raws [][]byte, anchor uint64) ([]relay.Brief, error) {
	if len(raws) == 0 {
		return nil, relay.ErrEmptyChain
	}
	parcels := make([]*Parcel, len(raws))
	for i, raw := range raws {
		p, err := DecodeParcel(raw)
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", i, err)
		}
		parcels[i] = p
	}

	v.mtx.RLock()
	defer v.mtx.RUnlock()

	if _, err := v.verifyChain(parcels, anchor); err != nil {
		return nil, err
	}
	briefs := make([]relay.Brief, len(parcels))
	for i, p := range parcels {
		briefs[i] = brief(p)
	}
	return briefs, nil
}

// OnChainArbitrate runs the VerifyChain checks and requires the chain to
// cover every number above anchor up to the target.
func (v *Verifier) OnChainArbitrate(briefs []relay.Brief, anchor uint64) error {
	if len(briefs) == 0 {
		return relay.ErrEmptyChain
	}
	parcels := make([]*Parcel, len(briefs))
	for i, b := range briefs {
		p, err := DecodeParcel(b.Raw)
		if err != nil {
			return err
		}
		if p.Header.Hash() != b.Hash {
			return fmt.Errorf("%w: brief #%d does not match its encoding", ErrMalformedParcel, b.Number)
		}
		parcels[i] = p
	}

	v.mtx.RLock()
	defer v.mtx.RUnlock()

	sorted, err := v.verifyChain(parcels, anchor)
	if err != nil {
		return err
	}
	for i, p := range sorted {
		if p.Header.Number != anchor+1+uint64(i) {
			return fmt.Errorf("%w: have #%d at position %d above #%d", relay.ErrIncompleteChain, p.Header.Number, i, anchor)
		}
	}
	return nil
}

// StoreHeader confirms a header at a number that has none yet. Headers
// below the last confirmed one are accepted, since games anchored on an
// older header may settle after a higher target was confirmed.
func (v *Verifier) StoreHeader(raw []byte) error {
	p, err := DecodeParcel(raw)
	if err != nil {
		return err
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()

	if _, ok := v.best(); !ok {
		return ErrNotInitialized
	}
	if existing, ok := v.header(p.Header.Number); ok {
		return fmt.Errorf("%w: #%d %s", ErrHeaderExists, p.Header.Number, existing.Hash().TerminalString())
	}
	if err := v.store(p.Header); err != nil {
		return err
	}
	v.logger.Info("commitment header confirmed", "number", p.Header.Number, "hash", p.Header.Hash())
	return nil
}

// verifyChain returns the parcels sorted by number. Callers hold the lock.
func (v *Verifier) verifyChain(parcels []*Parcel, last uint64) ([]*Parcel, error) {
	if _, ok := v.best(); !ok {
		return nil, ErrNotInitialized
	}
	confirmed, ok := v.header(last)
	if !ok {
		return nil, fmt.Errorf("%w: #%d", relay.ErrUnknownAnchor, last)
	}

	target := parcels[0].Header
	if target.Number <= last {
		return nil, fmt.Errorf("%w: target #%d, anchor #%d", ErrHeaderTooOld, target.Number, last)
	}
	if !VerifyProof(target.MMRRoot, target.Number, last, confirmed.Hash(), parcels[0].Proof) {
		return nil, fmt.Errorf("%w: target #%d does not commit to #%d", ErrInvalidProof, target.Number, last)
	}
	for _, p := range parcels[1:] {
		n := p.Header.Number
		if n <= last || n >= target.Number {
			return nil, fmt.Errorf("%w: sample #%d outside (#%d, #%d)", relay.ErrNotContinuous, n, last, target.Number)
		}
		if !VerifyProof(target.MMRRoot, target.Number, n, p.Header.Hash(), p.Proof) {
			return nil, fmt.Errorf("%w: sample #%d not in target #%d", ErrInvalidProof, n, target.Number)
		}
	}

	sorted := append([]*Parcel(nil), parcels...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Header.Number < sorted[j].Header.Number })

	prev := confirmed
	for _, p := range sorted {
		if p.Header.Number == prev.Number {
			return nil, fmt.Errorf("%w: two headers at #%d", relay.ErrNotContinuous, p.Header.Number)
		}
		if p.Header.Number == prev.Number+1 && p.Header.ParentHash != prev.Hash() {
			return nil, fmt.Errorf("%w: #%d does not follow #%d", relay.ErrNotContinuous, p.Header.Number, prev.Number)
		}
		prev = &p.Header
	}
	return sorted, nil
}

func (v *Verifier) store(h Header) error {
	bz, err := rlp.EncodeToBytes(&h)
	if err != nil {
		return err
	}
	b := v.db.NewBatch()
	defer b.Close()

	if err := b.Set(headerKey(h.Number), bz); err != nil {
		return err
	}
	if last, ok := v.best(); !ok || h.Number > last {
		nb, err := orderedcode.Append(nil, h.Number)
		if err != nil {
			return err
		}
		if err := b.Set(bestKey(), nb); err != nil {
			return err
		}
	}
	return b.WriteSync()
}

func (v *Verifier) best() (uint64, bool) {
	bz, err := v.db.Get(bestKey())
	if err != nil || len(bz) == 0 {
		return 0, false
	}
	var n uint64
	if _, err := orderedcode.Parse(string(bz), &n); err != nil {
		return 0, false
	}
	return n, true
}

func (v *Verifier) header(number uint64) (*Header, bool) {
	bz, err := v.db.Get(headerKey(number))
	if err != nil || len(bz) == 0 {
		return nil, false
	}
	h := new(Header)
	if err := rlp.DecodeBytes(bz, h); err != nil {
		return nil, false
	}
	return h, true
}

func brief(p *Parcel) relay.Brief {
	return relay.Brief{
		Number:     p.Header.Number,
		Hash:       p.Header.Hash(),
		ParentHash: p.Header.ParentHash,
		Commitment: p.Header.MMRRoot.Bytes(),
	}
}

func headerKey(number uint64) []byte {
	key, err := orderedcode.Append(nil, prefixHeader, number)
	if err != nil {
		panic(err)
	}
	return key
}

func bestKey() []byte {
	key, err := orderedcode.Append(nil, prefixBest)
	if err != nil {
		panic(err)
	}
	return key
}
