package ethereum

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/darwinia-network/bridge-relay/ethash"
)

// Parcel is one relayed header with the dataset proofs of its seal.
type Parcel struct {
	Header *types.Header
	Proofs []ethash.DoubleNodeWithMerkleProof
}

// EncodeParcel returns the RLP encoding of header and proofs.
func EncodeParcel(header *types.Header, proofs []ethash.DoubleNodeWithMerkleProof) ([]byte, error) {
	return rlp.EncodeToBytes(&Parcel{Header: header, Proofs: proofs})
}

// DecodeParcel decodes raw into a Parcel.
func DecodeParcel(raw []byte) (*Parcel, error) {
	p := new(Parcel)
	if err := rlp.DecodeBytes(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedParcel, err)
	}
	if p.Header == nil || p.Header.Number == nil || !p.Header.Number.IsUint64() || p.Header.Difficulty == nil {
		return nil, fmt.Errorf("%w: incomplete header", ErrMalformedParcel)
	}
	return p, nil
}

func (p *Parcel) number() uint64 { return p.Header.Number.Uint64() }
