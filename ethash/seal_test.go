package ethash_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/darwinia-network/bridge-relay/ethash"
)

var fixtures = []string{
	"mainnet_genesis.json",
	"mainnet_1.json",
	"mainnet_8996777.json",
	"mainnet_8996778.json",
	"ropsten_6890091.json",
	"ropsten_6890092.json",
	"ropsten_10683699.json",
}

func TestFixtureHashes(t *testing.T) {
	for _, name := range fixtures {
		header, claimed := loadHeader(t, name)
		require.Equal(t, claimed, header.Hash(), name)
	}
}

func TestSealHash(t *testing.T) {
	header, _ := loadHeader(t, "mainnet_8996777.json")

	require.Equal(t,
		common.HexToHash("0x3c2e6623b1de8862a927eeeef2b6b25dea6e1d9dad88dca3c239be3959dc384a"),
		ethash.SealHash(header),
	)

	// the seal fields do not take part
	header.Nonce = types.EncodeNonce(1)
	header.MixDigest = common.Hash{}
	require.Equal(t,
		common.HexToHash("0x3c2e6623b1de8862a927eeeef2b6b25dea6e1d9dad88dca3c239be3959dc384a"),
		ethash.SealHash(header),
	)
}

func TestVerifyBlockBasic(t *testing.T) {
	testCases := map[string]struct {
		params *ethash.Params
		header string
	}{
		"mainnet block 1":       {ethash.MainnetParams(), "mainnet_1.json"},
		"mainnet 8996777":       {ethash.MainnetParams(), "mainnet_8996777.json"},
		"mainnet under expanse": {ethash.ExpanseParams(), "mainnet_8996777.json"},
		"ropsten 6890092":       {ethash.RopstenParams(), "ropsten_6890092.json"},
		"ropsten with base fee": {ethash.RopstenParams(), "ropsten_10683699.json"},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			header, _ := loadHeader(t, tc.header)
			require.NoError(t, tc.params.VerifyBlockBasic(header))
		})
	}
}

func TestVerifyBlockBasicRejects(t *testing.T) {
	p := ethash.MainnetParams()

	t.Run("flipped nonce", func(t *testing.T) {
		header, _ := loadHeader(t, "mainnet_8996777.json")
		header.Nonce[7] ^= 0x01
		require.ErrorIs(t, p.VerifyBlockBasic(header), ethash.ErrInvalidPoW)
	})

	t.Run("flipped mix digest", func(t *testing.T) {
		header, _ := loadHeader(t, "mainnet_1.json")
		header.MixDigest[0] ^= 0x80
		require.ErrorIs(t, p.VerifyBlockBasic(header), ethash.ErrInvalidPoW)
	})

	t.Run("difficulty below minimum", func(t *testing.T) {
		header, _ := loadHeader(t, "mainnet_1.json")
		header.Difficulty = big.NewInt(0x1ffff)
		require.ErrorIs(t, p.VerifyBlockBasic(header), ethash.ErrDifficultyTooLow)
	})
}
