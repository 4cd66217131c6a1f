package mmr

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Header is a header of a commitment chain. MMRRoot commits to the hashes of
// every header numbered below it, leaf i being the hash of header i.
type Header struct {
	ParentHash common.Hash
	Number     uint64
	MMRRoot    common.Hash
	Extra      []byte
}

// Hash is the keccak256 of the RLP encoding of h.
func (h *Header) Hash() common.Hash {
	bz, err := rlp.EncodeToBytes(h)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(bz)
}

// Parcel is one relayed header with an MMR membership proof. For a game
// target it proves the last confirmed header inside the target's MMRRoot;
// for a sample it proves the sample itself inside the target's MMRRoot.
type Parcel struct {
	Header Header
	Proof  []common.Hash
}

// EncodeParcel returns the RLP encoding of p.
func EncodeParcel(p *Parcel) ([]byte, error) {
	return rlp.EncodeToBytes(p)
}

// DecodeParcel decodes raw into a Parcel.
func DecodeParcel(raw []byte) (*Parcel, error) {
	p := new(Parcel)
	if err := rlp.DecodeBytes(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedParcel, err)
	}
	if p.Header.Number == 0 {
		return nil, fmt.Errorf("%w: header #0 cannot be relayed", ErrMalformedParcel)
	}
	return p, nil
}
