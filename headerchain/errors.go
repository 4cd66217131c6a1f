package headerchain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotInitialized is returned before a genesis anchor was loaded.
	ErrNotInitialized = errors.New("header chain has no genesis anchor")
	// ErrHeaderExists is returned when a header is accepted twice.
	ErrHeaderExists = errors.New("header already exists")
	// ErrHeaderTooOld is returned for headers deeper than the finality window
	// behind the best header.
	ErrHeaderTooOld = errors.New("header too old")
	// ErrUnknownParent is returned when the parent header was never accepted.
	ErrUnknownParent = errors.New("unknown parent header")
	// ErrUnknownHeader is returned by lookups of headers never accepted.
	ErrUnknownHeader = errors.New("unknown header")
)

// ErrInvalidHeader wraps a proof-of-work or difficulty rule failure of the
// header with the given number and hash.
type ErrInvalidHeader struct {
	Number uint64
	Hash   common.Hash
	Reason error
}

func (e ErrInvalidHeader) Error() string {
	return fmt.Sprintf("invalid header #%d (%s): %v", e.Number, e.Hash.TerminalString(), e.Reason)
}

func (e ErrInvalidHeader) Unwrap() error { return e.Reason }
