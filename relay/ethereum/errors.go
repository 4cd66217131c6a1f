package ethereum

import "errors"

var (
	ErrMalformedParcel    = errors.New("malformed header parcel")
	ErrNotAuthority       = errors.New("relayer is not an authority")
	ErrAuthorityExists    = errors.New("authority already registered")
	ErrUnknownAuthority   = errors.New("unknown authority")
	ErrDifficultyMismatch = errors.New("difficulty does not follow from the previous header")
	ErrNotInitialized     = errors.New("relay has no genesis header")
)
