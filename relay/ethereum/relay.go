// Package ethereum relays proof-of-work Ethereum headers: it implements
// relay.Verifier on top of a header chain and carries the relay's
// administrative state and receipt fees.
package ethereum

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"
	"golang.org/x/sync/errgroup"

	"github.com/darwinia-network/bridge-relay/headerchain"
	"github.com/darwinia-network/bridge-relay/ledger"
	"github.com/darwinia-network/bridge-relay/libs/log"
	"github.com/darwinia-network/bridge-relay/receipt"
	"github.com/darwinia-network/bridge-relay/relay"
)

const (
	prefixAuthority = int64(1)
	prefixSetting   = int64(2)

	settingCheckAuthorities = "check_authorities"
	settingReceiptFee       = "receipt_verify_fee"
)

var (
	_ relay.Verifier   = (*Relay)(nil)
	_ relay.Contiguous = (*Relay)(nil)
)

// Relay verifies and stores Ethereum headers and receipts.
type Relay struct {
	mtx sync.Mutex // guards the settings in db

	chain    *headerchain.Chain
	receipts *receipt.Verifier
	ledger   ledger.Ledger
	treasury ledger.AccountID
	db       dbm.DB
	logger   log.Logger
}

// Option sets an optional parameter on the Relay.
type Option func(*Relay)

// Logger sets the relay logger.
func Logger(l log.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// New returns a Relay over chain keeping its own settings in db. Receipt
// fees are paid to treasury through l.
func New(chain *headerchain.Chain, db dbm.DB, l ledger.Ledger, treasury ledger.AccountID, options ...Option) *Relay {
	r := &Relay{
		chain:    chain,
		ledger:   l,
		treasury: treasury,
		db:       db,
		logger:   log.NewNopLogger(),
	}
	for _, option := range options {
		option(r)
	}
	r.receipts = receipt.NewVerifier(chain, r.logger.With("module", "receipt"))
	return r
}

// Chain returns the underlying header chain.
func (r *Relay) Chain() *headerchain.Chain { return r.chain }

func (r *Relay) LastConfirmed() uint64 { return r.chain.Best().Number }

func (r *Relay) HeaderExists(number uint64) bool {
	_, ok := r.chain.CanonicalHash(number)
	return ok
}

// VerifyAndBrief checks the seal of one parcel. Its Commitment is the
// big-endian difficulty.
func (r *Relay) VerifyAndBrief(raw []byte, withEncoding bool) (relay.Brief, []byte, error) {
	p, err := DecodeParcel(raw)
	if err != nil {
		return relay.Brief{}, nil, err
	}
	if err := r.chain.Engine().VerifyPoW(p.Header, p.Proofs); err != nil {
		return relay.Brief{}, nil, err
	}

	var encoding []byte
	if withEncoding {
		if encoding, err = EncodeParcel(p.Header, p.Proofs); err != nil {
			return relay.Brief{}, nil, err
		}
	}
	return brief(p), encoding, nil
}

// VerifyChain checks the seal of every parcel in parallel, then the links
// between headers of adjacent numbers, including the link to the canonical
// header at anchor when the lowest one follows it.
func (r *Relay) VerifyChain(raws [][]byte, anchor uint64) ([]relay.Brief, error) {
	if len(raws) == 0 {
		return nil, relay.ErrEmptyChain
	}
	base, err := r.anchorHeader(anchor)
	if err != nil {
		return nil, err
	}

	parcels := make([]*Parcel, len(raws))
	for i, raw := range raws {
		p, err := DecodeParcel(raw)
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", i, err)
		}
		parcels[i] = p
	}

	if err := r.verifySeals(parcels); err != nil {
		return nil, err
	}

	sorted := sortParcels(parcels)
	if sorted[0].number() <= anchor {
		return nil, fmt.Errorf("%w: #%d, anchor #%d", headerchain.ErrHeaderTooOld, sorted[0].number(), anchor)
	}
	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		if prev.number() == next.number() {
			return nil, fmt.Errorf("%w: two headers at #%d", relay.ErrNotContinuous, next.number())
		}
		if prev.number()+1 == next.number() {
			if err := r.verifyLink(prev.Header, next.Header); err != nil {
				return nil, err
			}
		}
	}

	if sorted[0].number() == anchor+1 {
		if err := r.verifyLink(base, sorted[0].Header); err != nil {
			return nil, err
		}
	}

	briefs := make([]relay.Brief, len(parcels))
	for i, p := range parcels {
		briefs[i] = brief(p)
	}
	return briefs, nil
}

// OnChainArbitrate re-verifies a chain covering every number from the
// canonical header at anchor to its highest entry, each header against its
// parent.
func (r *Relay) OnChainArbitrate(briefs []relay.Brief, anchor uint64) error {
	if len(briefs) == 0 {
		return relay.ErrEmptyChain
	}
	base, err := r.anchorHeader(anchor)
	if err != nil {
		return err
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

	sorted := sortParcels(parcels)
	parent := base
	for _, p := range sorted {
		if p.number() != parent.Number.Uint64()+1 {
			return fmt.Errorf("%w: have #%d after #%v", relay.ErrIncompleteChain, p.number(), parent.Number)
		}
		if p.Header.ParentHash != parent.Hash() {
			return fmt.Errorf("%w: #%d", relay.ErrNotContinuous, p.number())
		}
		parent = p.Header
	}

	g := new(errgroup.Group)
	parent = base
	for _, p := range sorted {
		parent, p := parent, p
		g.Go(func() error {
			return r.chain.Engine().VerifyHeader(parent, p.Header, p.Proofs)
		})
		parent = p.Header
	}
	return g.Wait()
}

// RequiresContiguous is true: the header chain only accepts headers whose
// parent it already stores.
func (r *Relay) RequiresContiguous() bool { return true }

// StoreHeader accepts a parcel into the header chain.
func (r *Relay) StoreHeader(raw []byte) error {
	p, err := DecodeParcel(raw)
	if err != nil {
		return err
	}
	return r.chain.Accept(p.Header, p.Proofs)
}

func (r *Relay) verifySeals(parcels []*Parcel) error {
	g := new(errgroup.Group)
	for _, p := range parcels {
		p := p
		g.Go(func() error {
			if err := r.chain.Engine().VerifyPoW(p.Header, p.Proofs); err != nil {
				return fmt.Errorf("header #%d: %w", p.number(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Relay) verifyLink(prev, next *types.Header) error {
	if next.ParentHash != prev.Hash() {
		return fmt.Errorf("%w: #%v does not follow %s", relay.ErrNotContinuous, next.Number, prev.Hash().TerminalString())
	}
	want := r.chain.Engine().Params().CalcDifficulty(next.Time, prev)
	if want.Cmp(next.Difficulty) != 0 {
		return fmt.Errorf("%w: #%v has %v, want %v", ErrDifficultyMismatch, next.Number, next.Difficulty, want)
	}
	return nil
}

func (r *Relay) anchorHeader(number uint64) (*types.Header, error) {
	if _, ok := r.chain.BestHash(); !ok {
		return nil, ErrNotInitialized
	}
	hash, ok := r.chain.CanonicalHash(number)
	if !ok {
		return nil, fmt.Errorf("%w: #%d", relay.ErrUnknownAnchor, number)
	}
	header, ok := r.chain.Header(hash)
	if !ok {
		return nil, fmt.Errorf("%w: #%d", relay.ErrUnknownAnchor, number)
	}
	return header, nil
}

func brief(p *Parcel) relay.Brief {
	return relay.Brief{
		Number:     p.number(),
		Hash:       p.Header.Hash(),
		ParentHash: p.Header.ParentHash,
		Commitment: p.Header.Difficulty.Bytes(),
	}
}

func sortParcels(parcels []*Parcel) []*Parcel {
	sorted := append([]*Parcel(nil), parcels...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].number() < sorted[j].number() })
	return sorted
}

//-----------------------------------------------------------------------------
// administration

// ResetGenesisHeader re-anchors the header chain.
func (r *Relay) ResetGenesisHeader(header *types.Header, totalDifficulty *big.Int) error {
	if err := r.chain.InitGenesis(header, totalDifficulty); err != nil {
		return err
	}
	r.logger.Info("genesis header reset", "number", header.Number, "hash", header.Hash())
	return nil
}

// SetNumberOfBlocksFinality sets how far behind the best header new headers
// may still be accepted.
func (r *Relay) SetNumberOfBlocksFinality(n uint64) error { return r.chain.SetFinality(n) }

// SetNumberOfBlocksSafe sets how deep a header must be before its receipts
// are trusted.
func (r *Relay) SetNumberOfBlocksSafe(n uint64) error { return r.chain.SetSafe(n) }

// ToggleCheckAuthorities flips whether RelayHeader is restricted to
// authorities and returns the new setting.
func (r *Relay) ToggleCheckAuthorities() (bool, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	on := !r.checkAuthorities()
	if err := r.setSetting(settingCheckAuthorities, boolUint(on)); err != nil {
		return false, err
	}
	r.logger.Info("authority check toggled", "enabled", on)
	return on, nil
}

// CheckAuthorities reports whether RelayHeader is restricted to authorities.
func (r *Relay) CheckAuthorities() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.checkAuthorities()
}

// AddAuthority registers account as a relay authority.
func (r *Relay) AddAuthority(account ledger.AccountID) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	key := authorityKey(account)
	if has, err := r.db.Has(key); err != nil {
		return err
	} else if has {
		return fmt.Errorf("%w: %s", ErrAuthorityExists, account)
	}
	return r.db.SetSync(key, []byte{1})
}

// RemoveAuthority unregisters account.
func (r *Relay) RemoveAuthority(account ledger.AccountID) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	key := authorityKey(account)
	if has, err := r.db.Has(key); err != nil {
		return err
	} else if !has {
		return fmt.Errorf("%w: %s", ErrUnknownAuthority, account)
	}
	return r.db.DeleteSync(key)
}

// Authorities lists the registered authorities in order.
func (r *Relay) Authorities() ([]ledger.AccountID, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	itr, err := r.db.Iterator(mustKey(prefixAuthority), mustKey(prefixAuthority+1))
	if err != nil {
		return nil, err
	}
	defer itr.Close()

	var out []ledger.AccountID
	for ; itr.Valid(); itr.Next() {
		var (
			prefix  int64
			account string
		)
		if _, err := orderedcode.Parse(string(itr.Key()), &prefix, &account); err != nil {
			return nil, err
		}
		out = append(out, ledger.AccountID(account))
	}
	return out, itr.Error()
}

// RelayHeader verifies a parcel against the header chain and stores it.
// While the authority check is on only authorities may relay directly.
func (r *Relay) RelayHeader(relayer ledger.AccountID, raw []byte) error {
	r.mtx.Lock()
	allowed := !r.checkAuthorities()
	if !allowed {
		has, err := r.db.Has(authorityKey(relayer))
		if err != nil {
			r.mtx.Unlock()
			return err
		}
		allowed = has
	}
	r.mtx.Unlock()

	if !allowed {
		return fmt.Errorf("%w: %s", ErrNotAuthority, relayer)
	}

	p, err := DecodeParcel(raw)
	if err != nil {
		return err
	}
	if err := r.chain.Accept(p.Header, p.Proofs); err != nil {
		return err
	}
	r.logger.Info("header relayed", "relayer", relayer, "number", p.number(), "hash", p.Header.Hash())
	return nil
}

// SetReceiptVerifyFee sets the fee CheckReceipt charges.
func (r *Relay) SetReceiptVerifyFee(fee uint64) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.setSetting(settingReceiptFee, fee)
}

// ReceiptVerifyFee returns the fee CheckReceipt charges.
func (r *Relay) ReceiptVerifyFee() uint64 {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.setting(settingReceiptFee)
}

// VerifyReceipt checks proof without charging a fee.
func (r *Relay) VerifyReceipt(proof receipt.Proof) (*types.Receipt, error) {
	return r.receipts.VerifyReceipt(proof)
}

// CheckReceipt verifies proof and charges payer the receipt verification
// fee, paid to the treasury.
func (r *Relay) CheckReceipt(payer ledger.AccountID, proof receipt.Proof) (*types.Receipt, error) {
	rcpt, err := r.receipts.VerifyReceipt(proof)
	if err != nil {
		return nil, err
	}

	if fee := r.ReceiptVerifyFee(); fee > 0 {
		if err := r.ledger.Transfer(payer, r.treasury, fee); err != nil {
			return nil, fmt.Errorf("charging receipt fee: %w", err)
		}
	}
	r.logger.Debug("receipt checked", "payer", payer, "header", proof.HeaderHash, "index", proof.Index)
	return rcpt, nil
}

func (r *Relay) checkAuthorities() bool { return r.setting(settingCheckAuthorities) != 0 }

func (r *Relay) setting(name string) uint64 {
	bz, err := r.db.Get(settingKey(name))
	if err != nil || len(bz) == 0 {
		return 0
	}
	var v uint64
	if _, err := orderedcode.Parse(string(bz), &v); err != nil {
		return 0
	}
	return v
}

func (r *Relay) setSetting(name string, v uint64) error {
	bz, err := orderedcode.Append(nil, v)
	if err != nil {
		return err
	}
	return r.db.SetSync(settingKey(name), bz)
}

func authorityKey(account ledger.AccountID) []byte {
	return mustKey(prefixAuthority, string(account))
}

func settingKey(name string) []byte {
	return mustKey(prefixSetting, name)
}

func mustKey(items ...interface{}) []byte {
	key, err := orderedcode.Append(nil, items...)
	if err != nil {
		panic(err)
	}
	return key
}

func boolUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
