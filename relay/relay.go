// Package relay defines the contract between the relayer game and the
// verifier of one foreign chain.
package relay

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrEmptyChain is returned when a verifier is handed no headers.
	ErrEmptyChain = errors.New("empty header chain")
	// ErrNotContinuous is returned when adjacent headers do not link up.
	ErrNotContinuous = errors.New("headers are not continuous")
	// ErrIncompleteChain is returned by arbitration when the chain does not
	// cover every number between the last confirmed header and its target.
	ErrIncompleteChain = errors.New("header chain does not reach the last confirmed header")
	// ErrUnknownAnchor is returned when the anchor a chain is checked
	// against is not a committed header.
	ErrUnknownAnchor = errors.New("anchor header is not committed")
)

// Brief is the verifier-independent summary of one foreign header the game
// keeps per bonded chain entry. Commitment is verifier specific; Raw holds
// the encoding StoreHeader accepts.
type Brief struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Commitment []byte
	Raw        []byte
}

// Verifier validates and commits headers of one foreign chain.
type Verifier interface {
	// LastConfirmed is the number of the newest committed header.
	LastConfirmed() uint64
	// HeaderExists reports whether a header is committed at number.
	HeaderExists(number uint64) bool
	// VerifyAndBrief validates one encoded header on its own. With
	// withEncoding it also returns the normalised encoding for storage.
	VerifyAndBrief(raw []byte, withEncoding bool) (Brief, []byte, error)
	// VerifyChain validates an ordered list of encoded headers, the first
	// being the game target, including the rules tying them to each other
	// and to the committed header at anchor.
	VerifyChain(raws [][]byte, anchor uint64) ([]Brief, error)
	// OnChainArbitrate fully re-derives a chain covering every number from
	// the committed header at anchor to the target.
	OnChainArbitrate(briefs []Brief, anchor uint64) error
	// StoreHeader commits a header that won a game.
	StoreHeader(raw []byte) error
}

// Contiguous is implemented by verifiers that can only commit a header whose
// parent is already committed. Games on such a verifier must target the
// header right above the last confirmed one.
type Contiguous interface {
	RequiresContiguous() bool
}

// RequiresContiguous reports whether v implements Contiguous and asks for
// contiguous targets.
func RequiresContiguous(v Verifier) bool {
	c, ok := v.(Contiguous)
	return ok && c.RequiresContiguous()
}
