// Package mmrtest generates commitment chains and their parcels for tests.
package mmrtest

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/darwinia-network/bridge-relay/relay/mmr"
)

// Chain is a commitment chain starting at header 0.
type Chain struct {
	Headers []mmr.Header
	hashes  []common.Hash
}

// NewChain returns a chain of headers 0 through length-1.
func NewChain(length int) *Chain {
	c := new(Chain)
	c.extend(length, nil)
	return c
}

// Fork returns a chain sharing headers 0 through at and continuing with
// headers tagged by tag up to length headers in total.
func (c *Chain) Fork(at uint64, length int, tag string) *Chain {
	f := &Chain{
		Headers: append([]mmr.Header(nil), c.Headers[:at+1]...),
		hashes:  append([]common.Hash(nil), c.hashes[:at+1]...),
	}
	f.extend(length-len(f.Headers), []byte(tag))
	return f
}

func (c *Chain) extend(n int, tag []byte) {
	var m mmr.MMR
	for _, h := range c.hashes {
		m.Append(h)
	}
	for i := 0; i < n; i++ {
		number := uint64(len(c.Headers))
		h := mmr.Header{Number: number, MMRRoot: m.Root(), Extra: tag}
		if number > 0 {
			h.ParentHash = c.hashes[number-1]
		}
		hash := h.Hash()
		c.Headers = append(c.Headers, h)
		c.hashes = append(c.hashes, hash)
		m.Append(hash)
	}
}

// Hash returns the hash of header number.
func (c *Chain) Hash(number uint64) common.Hash { return c.hashes[number] }

// Target returns the parcel of header number proving confirmed in its range.
func (c *Chain) Target(number, confirmed uint64) []byte {
	return c.parcel(number, mmr.Prove(c.hashes[:number], confirmed))
}

// Sample returns the parcel of header number proving itself in the range of
// header target.
func (c *Chain) Sample(target, number uint64) []byte {
	return c.parcel(number, mmr.Prove(c.hashes[:target], number))
}

func (c *Chain) parcel(number uint64, proof []common.Hash) []byte {
	raw, err := mmr.EncodeParcel(&mmr.Parcel{Header: c.Headers[number], Proof: proof})
	if err != nil {
		panic(fmt.Sprintf("encoding parcel #%d: %v", number, err))
	}
	return raw
}
