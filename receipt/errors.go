package receipt

import "errors"

var (
	ErrUnknownHeader      = errors.New("unknown header")
	ErrHeaderNotCanonical = errors.New("header is not canonical")
	ErrHeaderNotSafe      = errors.New("header is not deep enough behind the best header")
	ErrMalformedProof     = errors.New("malformed receipt proof")
	ErrTrieProof          = errors.New("receipt trie proof does not verify")
	ErrReceiptNotFound    = errors.New("receipt not included in trie")
	ErrMalformedReceipt   = errors.New("malformed receipt")
)
