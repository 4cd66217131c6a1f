// Package relayergame arbitrates disputes over foreign headers with a bonded,
// multi-round game. Relayers stake a bond on a claimed header; competing
// claims are narrowed round by round with sampled ancestor headers until
// one lineage survives, which is committed through the relay.Verifier while
// the bonds of the losing relayers go to the winners or are burned.
package relayergame

import (
	"fmt"
	"sort"
	"sync"

	dbm "github.com/tendermint/tm-db"

	"github.com/darwinia-network/bridge-relay/ledger"
	"github.com/darwinia-network/bridge-relay/libs/events"
	"github.com/darwinia-network/bridge-relay/libs/log"
	"github.com/darwinia-network/bridge-relay/relay"
)

const (
	// DefaultLockID is the ledger lock holding relayer bonds.
	DefaultLockID = ledger.LockID("relayer-game")
	// DefaultMaxActiveGames bounds the number of open games.
	DefaultMaxActiveGames = 16
)

// Engine runs relayer games against one foreign chain verifier. All state
// lives in the engine's database and every operation commits atomically.
type Engine struct {
	mtx sync.Mutex

	store    *store
	verifier relay.Verifier
	ledger   ledger.Ledger
	adjustor Adjustor

	lockID         ledger.LockID
	maxActiveGames int

	evsw    events.EventSwitch
	logger  log.Logger
	metrics *Metrics
}

// Option sets an optional parameter on the Engine.
type Option func(*Engine)

// Logger sets the engine logger.
func Logger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEventSwitch publishes game events on evsw.
func WithEventSwitch(evsw events.EventSwitch) Option {
	return func(e *Engine) { e.evsw = evsw }
}

// MaxActiveGames bounds the number of open games. Zero means no bound.
func MaxActiveGames(n int) Option {
	return func(e *Engine) { e.maxActiveGames = n }
}

// WithLockID sets the ledger lock bonds are held under.
func WithLockID(id ledger.LockID) Option {
	return func(e *Engine) { e.lockID = id }
}

// NewEngine returns an engine keeping its state in db.
func NewEngine(db dbm.DB, verifier relay.Verifier, l ledger.Ledger, adjustor Adjustor, options ...Option) *Engine {
	e := &Engine{
		store:          &store{db: db},
		verifier:       verifier,
		ledger:         l,
		adjustor:       adjustor,
		lockID:         DefaultLockID,
		maxActiveGames: DefaultMaxActiveGames,
		evsw:           events.NewEventSwitch(),
		logger:         log.NewNopLogger(),
		metrics:        NopMetrics(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// EventSwitch returns the switch game events are published on.
func (e *Engine) EventSwitch() events.EventSwitch { return e.evsw }

// SubmitProposal bonds relayer to the claim that raws, holding exactly the
// target header numbered gameID, is the foreign header at gameID. The first
// proposal opens the game; later ones challenge it while the game is at
// round 0.
func (e *Engine) SubmitProposal(relayer ledger.AccountID, gameID uint64, raws [][]byte) (*Proposal, error) {
	if len(raws) != 1 {
		return nil, ErrInvalidSubmission{GameID: gameID, Reason: fmt.Errorf("round 0 takes one header, have %d", len(raws))}
	}
	brief, encoding, err := e.verifier.VerifyAndBrief(raws[0], true)
	if err != nil {
		return nil, ErrInvalidSubmission{GameID: gameID, Reason: err}
	}
	if brief.Number != gameID {
		return nil, ErrInvalidSubmission{GameID: gameID, Reason: fmt.Errorf("header #%d is not the target", brief.Number)}
	}

	e.mtx.Lock()
	anchor, err := e.anchor(gameID)
	e.mtx.Unlock()
	if err != nil {
		return nil, err
	}
	if _, err := e.verifier.VerifyChain(raws, anchor); err != nil {
		return nil, ErrInvalidSubmission{GameID: gameID, Reason: err}
	}
	brief.Raw = encoding

	e.mtx.Lock()
	defer e.mtx.Unlock()

	lastConfirmed := e.verifier.LastConfirmed()
	g, ok, err := e.store.game(gameID)
	if err != nil {
		return nil, err
	}
	if e.verifier.HeaderExists(gameID) {
		return nil, fmt.Errorf("%w: game %d, last confirmed %d", ErrTargetConfirmed, gameID, lastConfirmed)
	}
	if (ok && g.LastConfirmed != anchor) || (!ok && lastConfirmed != anchor) {
		return nil, fmt.Errorf("%w: game %d verified against #%d", ErrStaleAnchor, gameID, anchor)
	}
	if !ok {
		ids, err := e.store.gameIDs()
		if err != nil {
			return nil, err
		}
		if e.maxActiveGames > 0 && len(ids) >= e.maxActiveGames {
			return nil, fmt.Errorf("%w: %d open", ErrTooManyGames, len(ids))
		}
		g = &Game{ID: gameID, LastConfirmed: lastConfirmed, Samples: [][]uint64{{gameID}}}
	} else if g.Round != 0 {
		return nil, fmt.Errorf("%w: game %d is at round %d", ErrRoundMismatch, gameID, g.Round)
	}

	for _, p := range g.Proposals {
		if p.Target().Hash == brief.Hash {
			return nil, fmt.Errorf("%w: header %s already proposed", ErrDuplicateProposal, brief.Hash.TerminalString())
		}
		if p.Relayer == relayer {
			return nil, fmt.Errorf("%w: %s already proposed for game %d", ErrDuplicateProposal, relayer, gameID)
		}
	}

	bond := e.adjustor.EstimateBond(0, len(g.Proposals))
	p := Proposal{
		ID:      g.NextID,
		Relayer: relayer,
		Chain:   []Entry{{Brief: brief, Bond: bond}},
	}
	g.NextID++
	g.Proposals = append(g.Proposals, p)

	b := e.store.db.NewBatch()
	defer b.Close()

	if !ok {
		if err := e.scheduleRound(b, g, e.now()+e.adjustor.ChallengeTime(0)); err != nil {
			return nil, err
		}
	}
	if err := e.store.putGame(b, g); err != nil {
		return nil, err
	}
	undo, err := e.takeBond(b, relayer, bond)
	if err != nil {
		return nil, err
	}
	if err := b.WriteSync(); err != nil {
		undo()
		return nil, err
	}

	e.metrics.Proposals.Add(1)
	e.updateOpenGames()
	e.logger.Info("proposal submitted",
		"game", gameID, "relayer", relayer, "proposal", p.ID, "hash", brief.Hash, "bond", bond, "close_at", g.CloseAt)
	e.fire(EventProposalSubmitted, EventDataProposal{GameID: gameID, Proposal: p})
	return &p, nil
}

// anchor returns the confirmed header a submission to gameID is verified
// against: the one the open game started from, or the last confirmed
// header for a new game.
func (e *Engine) anchor(gameID uint64) (uint64, error) {
	lastConfirmed := e.verifier.LastConfirmed()
	g, ok, err := e.store.game(gameID)
	if err != nil {
		return 0, err
	}
	if ok {
		return g.LastConfirmed, nil
	}
	if gameID <= lastConfirmed || e.verifier.HeaderExists(gameID) {
		return 0, fmt.Errorf("%w: game %d, last confirmed %d", ErrTargetConfirmed, gameID, lastConfirmed)
	}
	if relay.RequiresContiguous(e.verifier) && gameID != lastConfirmed+1 {
		return 0, fmt.Errorf("%w: game %d, last confirmed %d", ErrTargetNotNext, gameID, lastConfirmed)
	}
	return lastConfirmed, nil
}

// ExtendProposal bonds relayer to the lineage of proposal parentID extended
// with raws, the headers at the current round's samples. samplesAck must
// repeat those samples.
func (e *Engine) ExtendProposal(
	relayer ledger.AccountID,
	gameID uint64,
	parentID uint32,
	raws [][]byte,
	samplesAck []uint64,
) (*Proposal, error) {
	e.mtx.Lock()
	g, parent, err := e.checkExtend(gameID, parentID, samplesAck)
	e.mtx.Unlock()
	if err != nil {
		return nil, err
	}

	round := g.Round
	samples := g.Samples[round]
	if len(raws) != len(samples) {
		return nil, fmt.Errorf("%w: have %d headers for samples %v", ErrSamplesMismatch, len(raws), samples)
	}
	briefs, err := e.verifier.VerifyChain(append(parent.raws(), raws...), g.LastConfirmed)
	if err != nil {
		return nil, ErrInvalidSubmission{GameID: gameID, Reason: err}
	}
	fresh := briefs[len(parent.Chain):]
	for i, b := range fresh {
		if b.Number != samples[i] {
			return nil, fmt.Errorf("%w: header #%d at sample %d", ErrSamplesMismatch, b.Number, samples[i])
		}
		fresh[i].Raw = append([]byte(nil), raws[i]...)
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	// the game may have moved on while verifying
	g, parent, err = e.checkExtend(gameID, parentID, samplesAck)
	if err != nil {
		return nil, err
	}
	if g.Round != round {
		return nil, fmt.Errorf("%w: game %d moved to round %d", ErrRoundMismatch, gameID, g.Round)
	}

	existing := g.RoundProposals(round)
	for _, p := range existing {
		if p.Parent == parentID && sameHeaders(p.own(), fresh) {
			return nil, fmt.Errorf("%w: proposal %d already extends %d the same way", ErrDuplicateProposal, p.ID, parentID)
		}
	}

	bond := e.adjustor.EstimateBond(round, len(existing))
	chain := make([]Entry, 0, len(parent.Chain)+len(fresh))
	for _, entry := range parent.Chain {
		entry.Bond = 0
		chain = append(chain, entry)
	}
	var total uint64
	for _, b := range fresh {
		chain = append(chain, Entry{Brief: b, Round: round, Bond: bond})
		total += bond
	}

	p := Proposal{ID: g.NextID, Relayer: relayer, Round: round, Parent: parentID, Chain: chain}
	g.NextID++
	g.Proposals = append(g.Proposals, p)

	b := e.store.db.NewBatch()
	defer b.Close()

	if at := e.now() + e.adjustor.ChallengeTime(round); at > g.CloseAt {
		if err := e.scheduleRound(b, g, at); err != nil {
			return nil, err
		}
	}
	if err := e.store.putGame(b, g); err != nil {
		return nil, err
	}
	undo, err := e.takeBond(b, relayer, total)
	if err != nil {
		return nil, err
	}
	if err := b.WriteSync(); err != nil {
		undo()
		return nil, err
	}

	e.metrics.Proposals.Add(1)
	e.logger.Info("proposal extended",
		"game", gameID, "round", round, "relayer", relayer, "proposal", p.ID, "parent", parentID, "bond", total)
	e.fire(EventProposalExtended, EventDataProposal{GameID: gameID, Proposal: p})
	return &p, nil
}

func (e *Engine) checkExtend(gameID uint64, parentID uint32, samplesAck []uint64) (*Game, *Proposal, error) {
	g, ok, err := e.store.game(gameID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	if g.Round == 0 {
		return nil, nil, fmt.Errorf("%w: game %d has no round to extend into", ErrRoundMismatch, gameID)
	}
	parent, ok := g.Proposal(parentID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d in game %d", ErrUnknownProposal, parentID, gameID)
	}
	if parent.Round != g.Round-1 {
		return nil, nil, fmt.Errorf("%w: proposal %d is at round %d, game at %d", ErrRoundMismatch, parentID, parent.Round, g.Round)
	}
	if !equalSamples(samplesAck, g.Samples[g.Round]) {
		return nil, nil, fmt.Errorf("%w: acknowledged %v, want %v", ErrSamplesMismatch, samplesAck, g.Samples[g.Round])
	}
	return g, parent, nil
}

// CancelProposal withdraws the only proposal of a game at round 0 and
// releases its bond. It returns the released amount.
func (e *Engine) CancelProposal(relayer ledger.AccountID, gameID uint64) (uint64, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	g, ok, err := e.store.game(gameID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	if g.Round != 0 || len(g.Proposals) != 1 || g.Proposals[0].Relayer != relayer {
		return 0, fmt.Errorf("%w: game %d", ErrCannotCancel, gameID)
	}
	bond := g.Proposals[0].Bond()

	b := e.store.db.NewBatch()
	defer b.Close()

	if err := e.purge(b, g); err != nil {
		return 0, err
	}
	undo, err := e.releaseBonds(b, map[ledger.AccountID]uint64{relayer: bond})
	if err != nil {
		return 0, err
	}
	if err := b.WriteSync(); err != nil {
		undo()
		return 0, err
	}

	e.updateOpenGames()
	e.logger.Info("proposal cancelled", "game", gameID, "relayer", relayer, "released", bond)
	e.fire(EventProposalCancelled, EventDataCancelled{GameID: gameID, Relayer: relayer, Released: bond})
	return bond, nil
}

// Game returns the open game gameID.
func (e *Engine) Game(gameID uint64) (*Game, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	g, ok, err := e.store.game(gameID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	return g, nil
}

// Games lists the open games in ascending order.
func (e *Engine) Games() ([]uint64, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.store.gameIDs()
}

// Bond returns the stake relayer has locked across all games.
func (e *Engine) Bond(relayer ledger.AccountID) (uint64, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.store.bond(relayer)
}

// Bonds returns the locked stake of every bonded relayer.
func (e *Engine) Bonds() (map[ledger.AccountID]uint64, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.store.bonds()
}

// LastFinalized is the last host block passed to OnFinalize.
func (e *Engine) LastFinalized() uint64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	n, _ := e.store.finalized()
	return n
}

// now is the host block submissions are included in.
func (e *Engine) now() uint64 {
	n, err := e.store.finalized()
	if err != nil {
		e.logger.Error("reading finalized height", "err", err)
	}
	return n + 1
}

// scheduleRound moves the close of the game's current round to host block at.
func (e *Engine) scheduleRound(b dbm.Batch, g *Game, at uint64) error {
	seq, err := e.store.seq()
	if err != nil {
		return err
	}
	seq++
	if err := e.store.setSeq(b, seq); err != nil {
		return err
	}
	if g.CloseSeq != 0 {
		if err := e.store.unschedule(b, g.CloseAt, g.CloseSeq); err != nil {
			return err
		}
	}
	g.CloseAt, g.CloseSeq = at, seq
	return e.store.schedule(b, closeEntry{Block: at, Seq: seq, GameID: g.ID, Round: g.Round})
}

func (e *Engine) purge(b dbm.Batch, g *Game) error {
	if g.CloseSeq != 0 {
		if err := e.store.unschedule(b, g.CloseAt, g.CloseSeq); err != nil {
			return err
		}
	}
	return e.store.deleteGame(b, g.ID)
}

// takeBond adds amount to relayer's bond in b and locks the new total on the
// ledger. The returned function restores the previous lock.
func (e *Engine) takeBond(b dbm.Batch, relayer ledger.AccountID, amount uint64) (func(), error) {
	current, err := e.store.bond(relayer)
	if err != nil {
		return nil, err
	}
	if usable := e.ledger.UsableBalance(relayer); usable < amount {
		return nil, fmt.Errorf("%w: %s has %d, bond %d", ErrInsufficientBond, relayer, usable, amount)
	}
	total := current + amount
	if err := e.store.setBond(b, relayer, total); err != nil {
		return nil, err
	}
	if err := e.ledger.SetLock(relayer, e.lockID, total); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientBond, err)
	}
	return func() { e.restoreLock(relayer, current) }, nil
}

// releaseBonds lowers the bond of every relayer in release in b and on the
// ledger, in relayer order. The returned function restores the previous
// locks.
func (e *Engine) releaseBonds(b dbm.Batch, release map[ledger.AccountID]uint64) (func(), error) {
	relayers := make([]ledger.AccountID, 0, len(release))
	for r := range release {
		relayers = append(relayers, r)
	}
	sort.Slice(relayers, func(i, j int) bool { return relayers[i] < relayers[j] })

	previous := make(map[ledger.AccountID]uint64, len(relayers))
	undo := func() {
		for r, v := range previous {
			e.restoreLock(r, v)
		}
	}

	for _, r := range relayers {
		current, err := e.store.bond(r)
		if err != nil {
			undo()
			return nil, err
		}
		next := uint64(0)
		if amount := release[r]; amount < current {
			next = current - amount
		}
		if err := e.store.setBond(b, r, next); err != nil {
			undo()
			return nil, err
		}
		if err := e.ledger.SetLock(r, e.lockID, next); err != nil {
			undo()
			return nil, err
		}
		previous[r] = current
	}
	return undo, nil
}

func (e *Engine) restoreLock(relayer ledger.AccountID, amount uint64) {
	if err := e.ledger.SetLock(relayer, e.lockID, amount); err != nil {
		e.logger.Error("restoring bond lock", "relayer", relayer, "amount", amount, "err", err)
	}
}

func (e *Engine) updateOpenGames() {
	ids, err := e.store.gameIDs()
	if err != nil {
		e.logger.Error("counting open games", "err", err)
		return
	}
	e.metrics.OpenGames.Set(float64(len(ids)))
}

func (e *Engine) fire(event string, data events.EventData) {
	if err := e.evsw.FireEvent(event, data); err != nil {
		e.logger.Error("event listener failed", "event", event, "err", err)
	}
}

func sameHeaders(entries []Entry, briefs []relay.Brief) bool {
	if len(entries) != len(briefs) {
		return false
	}
	for i := range entries {
		if entries[i].Brief.Hash != briefs[i].Hash {
			return false
		}
	}
	return true
}

func equalSamples(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
