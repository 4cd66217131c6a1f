package mmr

import "errors"

var (
	ErrMalformedParcel = errors.New("malformed commitment parcel")
	ErrNotInitialized  = errors.New("commitment chain has no genesis header")
	ErrInvalidProof    = errors.New("MMR proof does not verify")
	ErrHeaderTooOld    = errors.New("header is not above the anchor")
	ErrHeaderExists    = errors.New("a header is already confirmed at this number")
)
