// Package receipt verifies Merkle-Patricia trie inclusion proofs of
// transaction receipts against the receipts root of canonical headers.
package receipt

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/darwinia-network/bridge-relay/headerchain"
	"github.com/darwinia-network/bridge-relay/libs/log"
)

// Proof proves that the receipt at Index is part of the block HeaderHash.
// Nodes is the RLP list of trie nodes on the path from the receipts root to
// the receipt.
type Proof struct {
	HeaderHash common.Hash
	Index      uint64
	Nodes      []byte
}

// ChainReader is the part of the header chain receipts are checked against.
type ChainReader interface {
	Header(hash common.Hash) (*types.Header, bool)
	CanonicalHash(number uint64) (common.Hash, bool)
	Best() headerchain.HeaderInfo
	Safe() uint64
}

var _ ChainReader = (*headerchain.Chain)(nil)

// Verifier checks receipt proofs against a header chain.
type Verifier struct {
	chain  ChainReader
	logger log.Logger
}

// NewVerifier returns a Verifier reading headers from chain.
func NewVerifier(chain ChainReader, logger log.Logger) *Verifier {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Verifier{chain: chain, logger: logger}
}

// VerifyReceipt returns the receipt proven by proof. The header must be
// canonical and at least the chain's safe depth behind the best header.
func (v *Verifier) VerifyReceipt(proof Proof) (*types.Receipt, error) {
	header, ok := v.chain.Header(proof.HeaderHash)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHeader, proof.HeaderHash.TerminalString())
	}
	number := header.Number.Uint64()

	if canonical, ok := v.chain.CanonicalHash(number); !ok || canonical != proof.HeaderHash {
		return nil, fmt.Errorf("%w: #%d %s", ErrHeaderNotCanonical, number, proof.HeaderHash.TerminalString())
	}
	best, safe := v.chain.Best(), v.chain.Safe()
	if best.Number < number || best.Number-number < safe {
		return nil, fmt.Errorf("%w: #%d, best #%d, safe %d", ErrHeaderNotSafe, number, best.Number, safe)
	}

	receipt, err := verifyProof(header.ReceiptHash, proof.Index, proof.Nodes)
	if err != nil {
		v.logger.Debug("receipt proof rejected", "header", number, "index", proof.Index, "err", err)
		return nil, err
	}
	return receipt, nil
}

func verifyProof(root common.Hash, index uint64, encoded []byte) (*types.Receipt, error) {
	var nodes [][]byte
	if err := rlp.DecodeBytes(encoded, &nodes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}

	db := memorydb.New()
	for _, node := range nodes {
		if err := db.Put(crypto.Keccak256(node), node); err != nil {
			return nil, err
		}
	}

	value, err := trie.VerifyProof(root, rlp.AppendUint64(nil, index), db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrieProof, err)
	}
	if value == nil {
		return nil, fmt.Errorf("%w: index %d", ErrReceiptNotFound, index)
	}

	receipt := new(types.Receipt)
	if err := receipt.UnmarshalBinary(value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReceipt, err)
	}
	return receipt, nil
}
