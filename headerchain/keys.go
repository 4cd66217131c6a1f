package headerchain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/orderedcode"
)

// key prefixes
const (
	prefixHeader = int64(iota + 1)
	prefixInfo
	prefixCanonical
	prefixBest
	prefixAnchor
	prefixDagRoot
	prefixParam
)

const (
	paramFinality = "finality"
	paramSafe     = "safe"
)

func headerKey(hash common.Hash) []byte {
	return mustKey(prefixHeader, string(hash[:]))
}

func infoKey(hash common.Hash) []byte {
	return mustKey(prefixInfo, string(hash[:]))
}

func canonicalKey(number uint64) []byte {
	return mustKey(prefixCanonical, number)
}

func bestKey() []byte {
	return mustKey(prefixBest)
}

func anchorKey() []byte {
	return mustKey(prefixAnchor)
}

func dagRootKey(epoch uint64) []byte {
	return mustKey(prefixDagRoot, epoch)
}

func paramKey(name string) []byte {
	return mustKey(prefixParam, name)
}

func mustKey(items ...interface{}) []byte {
	key, err := orderedcode.Append(nil, items...)
	if err != nil {
		panic(err)
	}
	return key
}
