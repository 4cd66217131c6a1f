package relayergame

import "github.com/darwinia-network/bridge-relay/ledger"

// Reserved event types (alphabetically sorted).
const (
	EventAutoConfirmed     = "AutoConfirmed"
	EventNewRound          = "NewRound"
	EventNoHonestRelayer   = "NoHonestRelayer"
	EventProposalCancelled = "ProposalCancelled"
	EventProposalExtended  = "ProposalExtended"
	EventProposalSubmitted = "ProposalSubmitted"
	EventSettled           = "Settled"
)

// EventDataProposal is published when a proposal is submitted, extended or
// cancelled.
type EventDataProposal struct {
	GameID   uint64
	Proposal Proposal
}

// EventDataCancelled is published when a proposal is withdrawn.
type EventDataCancelled struct {
	GameID   uint64
	Relayer  ledger.AccountID
	Released uint64
}

// EventDataOutcome is published for every closed round.
type EventDataOutcome struct {
	Outcome
}

func outcomeEvent(kind OutcomeKind) string {
	switch kind {
	case OutcomeAutoConfirmed:
		return EventAutoConfirmed
	case OutcomeSettled:
		return EventSettled
	case OutcomeNoHonestRelayer:
		return EventNoHonestRelayer
	default:
		return EventNewRound
	}
}
