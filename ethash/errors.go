package ethash

import "errors"

var (
	// ErrProofOutOfRange is returned when the proof bundle does not hold
	// exactly one entry per dataset access.
	ErrProofOutOfRange = errors.New("merkle proof out of range")
	// ErrMerkleRootMismatch is returned when a dataset row does not hash up
	// to the epoch's dataset root.
	ErrMerkleRootMismatch = errors.New("merkle root mismatch")
	// ErrUnknownEpoch is returned when no dataset root is known for the
	// header's epoch.
	ErrUnknownEpoch = errors.New("unknown dataset epoch")
	// ErrInvalidMixDigest is returned when the recomputed mix digest differs
	// from the header's.
	ErrInvalidMixDigest = errors.New("invalid mix digest")
	// ErrInvalidPoW is returned when the seal does not meet the header's
	// difficulty.
	ErrInvalidPoW = errors.New("invalid proof-of-work")

	ErrDifficultyTooLow  = errors.New("difficulty below minimum")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrInvalidNumber     = errors.New("invalid block number")
	ErrOlderBlockTime    = errors.New("timestamp older than parent")
	ErrExtraTooLong      = errors.New("extra-data too long")
	ErrGasLimitExceeded  = errors.New("gas used exceeds gas limit")
	ErrUnknownNetwork    = errors.New("unknown network")
)
