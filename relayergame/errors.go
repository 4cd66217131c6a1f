package relayergame

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetConfirmed is returned for games at or below the verifier's
	// last confirmed header.
	ErrTargetConfirmed = errors.New("target header already confirmed")
	// ErrTargetNotNext is returned when a verifier that commits headers one
	// by one is asked to open a game above the next header.
	ErrTargetNotNext = errors.New("target is not the next header")
	// ErrStaleAnchor is returned when the header a submission was verified
	// against stopped being the game's anchor meanwhile.
	ErrStaleAnchor = errors.New("submission verified against a stale anchor")
	// ErrTooManyGames is returned when opening one more game would exceed
	// the configured limit.
	ErrTooManyGames = errors.New("too many active games")
	// ErrRoundMismatch is returned for submissions that do not fit the
	// game's current round.
	ErrRoundMismatch = errors.New("round mismatch")
	// ErrDuplicateProposal is returned when a proposal repeats an existing
	// one.
	ErrDuplicateProposal = errors.New("duplicate proposal")
	// ErrInsufficientBond is returned when the relayer cannot lock the bond.
	ErrInsufficientBond = errors.New("insufficient usable balance for bond")
	// ErrUnknownGame is returned for games that are not open.
	ErrUnknownGame = errors.New("unknown game")
	// ErrUnknownProposal is returned when an extension refers to no proposal.
	ErrUnknownProposal = errors.New("unknown proposal")
	// ErrSamplesMismatch is returned when an extension acknowledges stale
	// samples or proves other numbers.
	ErrSamplesMismatch = errors.New("samples mismatch")
	// ErrCannotCancel is returned when a proposal was challenged, extended
	// or belongs to someone else.
	ErrCannotCancel = errors.New("proposal cannot be cancelled")
	// ErrStaleBlock is returned when finalizing a host block twice.
	ErrStaleBlock = errors.New("host block already finalized")
)

// ErrInvalidSubmission wraps a structural or cryptographic verification
// failure. Such submissions never take a bond.
type ErrInvalidSubmission struct {
	GameID uint64
	Reason error
}

func (e ErrInvalidSubmission) Error() string {
	return fmt.Sprintf("invalid submission for game %d: %v", e.GameID, e.Reason)
}

func (e ErrInvalidSubmission) Unwrap() error { return e.Reason }
