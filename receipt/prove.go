package receipt

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
)

// nodeList collects trie nodes in the order the trie emits them.
type nodeList [][]byte

func (n *nodeList) Put(key []byte, value []byte) error {
	*n = append(*n, common.CopyBytes(value))
	return nil
}

func (n *nodeList) Delete(key []byte) error { return nil }

// Prove builds the receipts trie of a block and returns its root together
// with the encoded proof nodes for the receipt at index. An index past the
// end yields a proof of absence.
func Prove(receipts types.Receipts, index uint64) (common.Hash, []byte, error) {
	tr := trie.NewEmpty(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil))
	for i, r := range receipts {
		value, err := r.MarshalBinary()
		if err != nil {
			return common.Hash{}, nil, err
		}
		if err := tr.Update(rlp.AppendUint64(nil, uint64(i)), value); err != nil {
			return common.Hash{}, nil, err
		}
	}

	var nodes nodeList
	if err := tr.Prove(rlp.AppendUint64(nil, index), &nodes); err != nil {
		return common.Hash{}, nil, err
	}
	encoded, err := rlp.EncodeToBytes([][]byte(nodes))
	if err != nil {
		return common.Hash{}, nil, err
	}
	return tr.Hash(), encoded, nil
}
