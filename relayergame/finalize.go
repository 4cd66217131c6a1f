package relayergame

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/darwinia-network/bridge-relay/ledger"
	"github.com/darwinia-network/bridge-relay/relay"
)

type transfer struct {
	from, to ledger.AccountID
	amount   uint64
}

// settlement is what closing a game moves on the ledger.
type settlement struct {
	release   map[ledger.AccountID]uint64
	transfers []transfer
	slashes   []Payout
	rewards   []Payout
}

func newSettlement() *settlement {
	return &settlement{release: make(map[ledger.AccountID]uint64)}
}

func (s *settlement) slash(p *Proposal) {
	s.release[p.Relayer] += p.Bond()
	s.slashes = append(s.slashes, Payout{Relayer: p.Relayer, Round: p.Round, Proposal: p.ID, Amount: p.Bond()})
}

func (s *settlement) refund(p *Proposal) {
	s.release[p.Relayer] += p.Bond()
}

func (s *settlement) award(evil, honest *Proposal) {
	s.release[evil.Relayer] += evil.Bond()
	s.transfers = append(s.transfers, transfer{from: evil.Relayer, to: honest.Relayer, amount: evil.Bond()})
	s.rewards = append(s.rewards, Payout{Relayer: honest.Relayer, Round: evil.Round, Proposal: honest.ID, Amount: evil.Bond()})
}

// OnFinalize closes every round scheduled up to host block height, block by
// block, and returns what each close did. Rounds opened while closing are
// closed too once their own block is reached.
func (e *Engine) OnFinalize(height uint64) ([]Outcome, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	last, err := e.store.finalized()
	if err != nil {
		return nil, err
	}
	if height <= last {
		return nil, fmt.Errorf("%w: %d, last finalized %d", ErrStaleBlock, height, last)
	}

	var outcomes []Outcome
	from := last + 1
	for from <= height {
		entries, err := e.store.nextCloses(from, height)
		if err != nil {
			return outcomes, err
		}
		if len(entries) == 0 {
			break
		}
		block := entries[0].Block
		for _, entry := range entries {
			o, err := e.closeRound(entry)
			if err != nil {
				return outcomes, fmt.Errorf("closing game %d round %d: %w", entry.GameID, entry.Round, err)
			}
			if o != nil {
				outcomes = append(outcomes, *o)
				e.metrics.Outcomes.With("outcome", o.Kind.String()).Add(1)
				e.fire(outcomeEvent(o.Kind), EventDataOutcome{Outcome: *o})
			}
		}
		// rounds opened at block close at block+1 at the earliest
		from = block + 1
	}

	b := e.store.db.NewBatch()
	defer b.Close()
	if err := e.store.setFinalized(b, height); err != nil {
		return outcomes, err
	}
	if err := b.WriteSync(); err != nil {
		return outcomes, err
	}
	e.updateOpenGames()
	return outcomes, nil
}

func (e *Engine) closeRound(entry closeEntry) (*Outcome, error) {
	g, ok, err := e.store.game(entry.GameID)
	if err != nil {
		return nil, err
	}
	if !ok || g.Round != entry.Round || g.CloseAt != entry.Block || g.CloseSeq != entry.Seq {
		e.logger.Debug("dropping stale close", "game", entry.GameID, "round", entry.Round, "block", entry.Block)
		b := e.store.db.NewBatch()
		defer b.Close()
		if err := e.store.unschedule(b, entry.Block, entry.Seq); err != nil {
			return nil, err
		}
		return nil, b.WriteSync()
	}

	if g.Round == 0 && len(g.Proposals) == 1 {
		return e.autoConfirm(g)
	}

	live := g.RoundProposals(g.Round)
	switch {
	case len(live) == 0:
		return e.noHonest(g, "no proposal reached the round")

	case g.fullLength():
		var passed []*Proposal
		for _, p := range live {
			if err := e.verifier.OnChainArbitrate(p.briefs(), g.LastConfirmed); err != nil {
				e.logger.Info("proposal failed arbitration", "game", g.ID, "proposal", p.ID, "relayer", p.Relayer, "err", err)
				continue
			}
			passed = append(passed, p)
		}
		if len(passed) != 1 {
			return e.noHonest(g, fmt.Sprintf("%d proposals passed arbitration", len(passed)))
		}
		return e.settle(g, passed[0])

	case len(live) == 1:
		return e.settle(g, live[0])

	default:
		return e.nextRound(g, entry.Block)
	}
}

func (e *Engine) autoConfirm(g *Game) (*Outcome, error) {
	p := &g.Proposals[0]
	s := newSettlement()
	s.refund(p)
	if err := e.closeGame(g, s); err != nil {
		return nil, err
	}

	o := &Outcome{GameID: g.ID, Round: 0, Kind: OutcomeAutoConfirmed, Winner: p.Relayer, WinnerProposal: p.ID, Committed: true}
	if err := e.verifier.StoreHeader(p.Target().Raw); err != nil {
		e.logger.Error("auto-confirmed header not stored", "game", g.ID, "relayer", p.Relayer, "err", err)
		o.Committed = false
	}
	e.logger.Info("header auto-confirmed", "game", g.ID, "relayer", p.Relayer, "hash", p.Target().Hash, "committed", o.Committed)
	return o, nil
}

// settle closes g in favour of winner. In every round, the one proposal
// agreeing with the winner's chain takes the bonds of the rest; a round
// with no single such proposal is slashed in full.
func (e *Engine) settle(g *Game, winner *Proposal) (*Outcome, error) {
	hashes := make(map[uint64]common.Hash, len(winner.Chain))
	for _, entry := range winner.Chain {
		hashes[entry.Brief.Number] = entry.Brief.Hash
	}

	s := newSettlement()
	for r := uint32(0); r <= winner.Round; r++ {
		props := g.RoundProposals(r)
		var honest []*Proposal
		for _, p := range props {
			if p.agrees(hashes) {
				honest = append(honest, p)
			}
		}
		if len(honest) != 1 {
			e.logger.Error("no honest relayer", "game", g.ID, "round", r, "agreeing", len(honest))
			for _, p := range props {
				s.slash(p)
			}
			continue
		}
		s.refund(honest[0])
		for _, p := range props {
			if p != honest[0] {
				s.award(p, honest[0])
			}
		}
	}
	// proposals of rounds after the winner's lost to it
	for r := winner.Round + 1; r <= g.Round; r++ {
		for _, p := range g.RoundProposals(r) {
			s.slash(p)
		}
	}

	if err := e.closeGame(g, s); err != nil {
		return nil, err
	}

	o := &Outcome{
		GameID:         g.ID,
		Round:          g.Round,
		Kind:           OutcomeSettled,
		Winner:         winner.Relayer,
		WinnerProposal: winner.ID,
		Committed:      e.commit(g, winner),
		Rewards:        s.rewards,
		Slashed:        s.slashes,
	}
	e.logger.Info("game settled",
		"game", g.ID, "round", g.Round, "winner", winner.Relayer, "committed", o.Committed,
		"rewards", len(s.rewards), "slashed", len(s.slashes))
	return o, nil
}

// noHonest burns every bond of g.
func (e *Engine) noHonest(g *Game, reason string) (*Outcome, error) {
	s := newSettlement()
	for i := range g.Proposals {
		s.slash(&g.Proposals[i])
	}
	if err := e.closeGame(g, s); err != nil {
		return nil, err
	}
	e.logger.Error("no honest relayer", "game", g.ID, "round", g.Round, "reason", reason, "slashed", len(s.slashes))
	return &Outcome{GameID: g.ID, Round: g.Round, Kind: OutcomeNoHonestRelayer, Slashed: s.slashes}, nil
}

func (e *Engine) nextRound(g *Game, block uint64) (*Outcome, error) {
	samples := e.adjustor.UpdateSamples(g.proven(), g.LastConfirmed, g.ID)
	if len(samples) == 0 {
		return e.noHonest(g, "nothing left to sample")
	}

	g.Round++
	g.Samples = append(g.Samples, samples)

	b := e.store.db.NewBatch()
	defer b.Close()

	span := e.adjustor.ChallengeTime(g.Round)
	if span == 0 {
		span = 1
	}
	if err := e.scheduleRound(b, g, block+span); err != nil {
		return nil, err
	}
	if err := e.store.putGame(b, g); err != nil {
		return nil, err
	}
	if err := b.WriteSync(); err != nil {
		return nil, err
	}

	e.metrics.Rounds.Add(1)
	e.logger.Info("new round", "game", g.ID, "round", g.Round, "samples", samples, "close_at", g.CloseAt)
	return &Outcome{GameID: g.ID, Round: g.Round, Kind: OutcomeNewRound, Samples: samples}, nil
}

// closeGame purges g and releases its bonds, then moves the settled
// amounts. Bonds awarded to honest relayers are repatriated, so locks the
// losing relayer holds elsewhere cannot keep them. Ledger failures past the
// release are logged.
func (e *Engine) closeGame(g *Game, s *settlement) error {
	b := e.store.db.NewBatch()
	defer b.Close()

	if err := e.purge(b, g); err != nil {
		return err
	}
	undo, err := e.releaseBonds(b, s.release)
	if err != nil {
		return err
	}
	if err := b.WriteSync(); err != nil {
		undo()
		return err
	}

	for _, t := range s.transfers {
		moved, err := e.ledger.Repatriate(t.from, t.to, t.amount)
		if err != nil {
			e.logger.Error("transferring bond", "game", g.ID, "from", t.from, "to", t.to, "amount", t.amount, "err", err)
			continue
		}
		if moved < t.amount {
			e.logger.Error("bond partly transferred", "game", g.ID, "from", t.from, "to", t.to, "amount", t.amount, "moved", moved)
		}
	}
	for _, p := range s.slashes {
		burned, err := e.ledger.Slash(p.Relayer, p.Amount)
		if err != nil {
			e.logger.Error("slashing bond", "game", g.ID, "relayer", p.Relayer, "amount", p.Amount, "err", err)
			continue
		}
		e.metrics.Slashed.Add(float64(burned))
	}
	return nil
}

// commit stores the winner's headers in ascending order and reports whether
// all of them were accepted.
func (e *Engine) commit(g *Game, winner *Proposal) bool {
	chain := make([]Entry, len(winner.Chain))
	copy(chain, winner.Chain)
	sort.Slice(chain, func(i, j int) bool { return chain[i].Brief.Number < chain[j].Brief.Number })

	for _, entry := range chain {
		if e.verifier.HeaderExists(entry.Brief.Number) {
			continue
		}
		if err := e.verifier.StoreHeader(entry.Brief.Raw); err != nil {
			e.logger.Error("winning header not stored",
				"game", g.ID, "number", entry.Brief.Number, "hash", entry.Brief.Hash, "err", err)
			return false
		}
	}
	return true
}

func (p *Proposal) briefs() []relay.Brief {
	out := make([]relay.Brief, len(p.Chain))
	for i, e := range p.Chain {
		out[i] = e.Brief
	}
	return out
}
