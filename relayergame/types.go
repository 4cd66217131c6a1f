package relayergame

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/darwinia-network/bridge-relay/ledger"
	"github.com/darwinia-network/bridge-relay/relay"
)

// Entry is one header of a bonded chain. Entries a proposal inherits from
// the proposal it extends carry no bond of their own.
type Entry struct {
	Brief relay.Brief
	Round uint32
	Bond  uint64
}

// Proposal is a relayer's claim about the foreign chain leading to a game
// target: the target header at round 0, plus one batch of samples per later
// round.
type Proposal struct {
	ID      uint32
	Relayer ledger.AccountID
	Round   uint32
	// Parent is the ID of the extended proposal; unused at round 0.
	Parent uint32
	Chain  []Entry
}

// Bond is the stake the proposal itself locked.
func (p *Proposal) Bond() uint64 {
	var sum uint64
	for _, e := range p.Chain {
		if e.Round == p.Round {
			sum += e.Bond
		}
	}
	return sum
}

// Target is the game target header the proposal claims.
func (p *Proposal) Target() relay.Brief { return p.Chain[0].Brief }

func (p *Proposal) raws() [][]byte {
	out := make([][]byte, len(p.Chain))
	for i, e := range p.Chain {
		out[i] = e.Brief.Raw
	}
	return out
}

func (p *Proposal) own() []Entry {
	var out []Entry
	for _, e := range p.Chain {
		if e.Round == p.Round {
			out = append(out, e)
		}
	}
	return out
}

// agrees reports whether every header of p matches hashes.
func (p *Proposal) agrees(hashes map[uint64]common.Hash) bool {
	for _, e := range p.Chain {
		if hashes[e.Brief.Number] != e.Brief.Hash {
			return false
		}
	}
	return true
}

// Game is the dispute over the foreign header numbered ID.
type Game struct {
	ID uint64
	// Round is the round proposals are currently submitted for.
	Round uint32
	// LastConfirmed is the verifier's last confirmed number when the game
	// opened.
	LastConfirmed uint64
	// CloseAt and CloseSeq locate the scheduled close of the current round.
	CloseAt  uint64
	CloseSeq uint64
	// Samples[r] are the numbers round r proposals prove. Samples[0] is the
	// target alone.
	Samples   [][]uint64
	Proposals []Proposal
	NextID    uint32
}

// Proposal returns the proposal with id.
func (g *Game) Proposal(id uint32) (*Proposal, bool) {
	for i := range g.Proposals {
		if g.Proposals[i].ID == id {
			return &g.Proposals[i], true
		}
	}
	return nil, false
}

// RoundProposals returns the proposals submitted for round r.
func (g *Game) RoundProposals(r uint32) []*Proposal {
	var out []*Proposal
	for i := range g.Proposals {
		if g.Proposals[i].Round == r {
			out = append(out, &g.Proposals[i])
		}
	}
	return out
}

// proven returns every number sampled so far.
func (g *Game) proven() []uint64 {
	var out []uint64
	for _, s := range g.Samples {
		out = append(out, s...)
	}
	return out
}

// fullLength reports whether the samples cover every number between the
// last confirmed header and the target.
func (g *Game) fullLength() bool {
	seen := make(map[uint64]struct{})
	for _, n := range g.proven() {
		if n > g.LastConfirmed && n <= g.ID {
			seen[n] = struct{}{}
		}
	}
	return uint64(len(seen)) == g.ID-g.LastConfirmed
}

// OutcomeKind tells how a closed round ended.
type OutcomeKind uint8

const (
	// OutcomeAutoConfirmed is an unchallenged proposal committed as is.
	OutcomeAutoConfirmed OutcomeKind = iota + 1
	// OutcomeSettled is a game won by one proposal.
	OutcomeSettled
	// OutcomeNoHonestRelayer is a game where no single honest proposal could
	// be identified and every bond was burned.
	OutcomeNoHonestRelayer
	// OutcomeNewRound is a round closed with several survivors.
	OutcomeNewRound
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAutoConfirmed:
		return "auto_confirmed"
	case OutcomeSettled:
		return "settled"
	case OutcomeNoHonestRelayer:
		return "no_honest_relayer"
	case OutcomeNewRound:
		return "new_round"
	default:
		return "unknown"
	}
}

// Payout is an amount moved for one relayer at settlement. Proposal is the
// slashed proposal, or the honest one a reward went to.
type Payout struct {
	Relayer  ledger.AccountID
	Round    uint32
	Proposal uint32
	Amount   uint64
}

// Outcome describes what closing one round did.
type Outcome struct {
	GameID uint64
	Round  uint32
	Kind   OutcomeKind
	// Winner and WinnerProposal are set for auto-confirmed and settled
	// games.
	Winner         ledger.AccountID
	WinnerProposal uint32
	// Committed is false when the winning chain could not be stored.
	Committed bool
	Rewards   []Payout
	Slashed   []Payout
	// Samples holds the next round's samples for OutcomeNewRound.
	Samples []uint64
}
