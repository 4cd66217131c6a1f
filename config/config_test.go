package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darwinia-network/bridge-relay/ethash"
	"github.com/darwinia-network/bridge-relay/relayergame"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	// set up some defaults
	cfg := DefaultConfig()
	assert.NotNil(cfg.Chain)
	assert.NotNil(cfg.Game)
	assert.NotNil(cfg.Instrumentation)

	// check the root dir stuff...
	cfg.SetRoot("/foo")
	cfg.Genesis = "bar"
	cfg.DBPath = "/opt/data"

	assert.Equal("/foo/bar", cfg.GenesisFile())
	assert.Equal("/foo/config/dag_roots.txt", cfg.DagRootsFile())
	assert.Equal("/opt/data", cfg.DBDir())
}

func TestConfigValidateBasic(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.ValidateBasic())
	assert.NoError(t, TestConfig().ValidateBasic())

	cfg.Game.BondBase = 0
	err := cfg.ValidateBasic()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[game]")
}

func TestBaseConfigValidateBasic(t *testing.T) {
	cfg := TestBaseConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with log format
	cfg.LogFormat = "invalid"
	assert.Error(t, cfg.ValidateBasic())
}

func TestChainConfigValidateBasic(t *testing.T) {
	testCases := map[string]func(*ChainConfig){
		"verifier":    func(c *ChainConfig) { c.Verifier = "bitcoin" },
		"network":     func(c *ChainConfig) { c.Network = "goerli" },
		"pow mode":    func(c *ChainConfig) { c.PoWMode = "lazy" },
		"safe depth":  func(c *ChainConfig) { c.NumberOfBlocksSafe = c.NumberOfBlocksFinality + 1 },
		"authorities": func(c *ChainConfig) { c.Authorities = []string{"alice", ""} },
		"treasury":    func(c *ChainConfig) { c.Treasury = "" },
	}

	for name, tamper := range testCases {
		tamper := tamper
		t.Run(name, func(t *testing.T) {
			cfg := TestChainConfig()
			require.NoError(t, cfg.ValidateBasic())
			tamper(cfg)
			assert.Error(t, cfg.ValidateBasic())
		})
	}
}

func TestChainConfigMode(t *testing.T) {
	cfg := DefaultChainConfig()
	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, ethash.ModeNormal, mode)

	cfg.PoWMode = "fullfake"
	mode, err = cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, ethash.ModeFullFake, mode)

	cfg.Authorities = []string{"alice", "bob"}
	assert.Len(t, cfg.AuthorityAccounts(), 2)
	assert.EqualValues(t, "bob", cfg.AuthorityAccounts()[1])
}

func TestGameConfigAdjustor(t *testing.T) {
	cfg := TestGameConfig()
	require.NoError(t, cfg.ValidateBasic())

	a, err := cfg.Adjustor()
	require.NoError(t, err)
	assert.EqualValues(t, 10, a.ChallengeTime(0))
	assert.EqualValues(t, 5, a.ChallengeTime(1))
	assert.EqualValues(t, 20, a.EstimateBond(1, 3))

	cfg.Sampling = relayergame.SamplingBisection
	a, err = cfg.Adjustor()
	require.NoError(t, err)
	assert.Equal(t, []uint64{95}, a.UpdateSamples([]uint64{100}, 90, 100))

	cfg.Sampling = "random"
	assert.Error(t, cfg.ValidateBasic())
	_, err = cfg.Adjustor()
	assert.Error(t, err)
}

func TestInstrumentationConfigValidateBasic(t *testing.T) {
	cfg := TestInstrumentationConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with maximum open connections
	cfg.MaxOpenConnections = -1
	assert.Error(t, cfg.ValidateBasic())
}
