package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/darwinia-network/bridge-relay/ethash"
	"github.com/darwinia-network/bridge-relay/ledger"
	"github.com/darwinia-network/bridge-relay/libs/log"
	"github.com/darwinia-network/bridge-relay/relayergame"
)

const (
	// VerifierEthereum relays proof-of-work headers with ethash seals.
	VerifierEthereum = "ethereum"
	// VerifierMMR relays headers committing to their ancestors with a
	// Merkle mountain range.
	VerifierMMR = "mmr"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
var (
	DefaultBridgeDir = ".bridge"
	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName   = "config.toml"
	defaultGenesisJSONName  = "genesis.json"
	defaultDagRootsFileName = "dag_roots.txt"

	defaultConfigFilePath  = filepath.Join(defaultConfigDir, defaultConfigFileName)
	defaultGenesisJSONPath = filepath.Join(defaultConfigDir, defaultGenesisJSONName)
	defaultDagRootsPath    = filepath.Join(defaultConfigDir, defaultDagRootsFileName)
)

// Config defines the top level configuration for a bridge node
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	Chain           *ChainConfig           `mapstructure:"chain"`
	Game            *GameConfig            `mapstructure:"game"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for a bridge node
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Chain:           DefaultChainConfig(),
		Game:            DefaultGameConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Chain:           TestChainConfig(),
		Game:            TestGameConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Chain.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [chain] section")
	}
	if err := cfg.Game.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [game] section")
	}
	return errors.Wrap(
		cfg.Instrumentation.ValidateBasic(),
		"error in [instrumentation] section",
	)
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a bridge node
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// A custom human readable name for this node
	Moniker string `mapstructure:"moniker"`

	// Database backend: goleveldb | memdb
	// * goleveldb (github.com/syndtr/goleveldb - most popular implementation)
	//   - pure go
	//   - stable
	// * memdb
	//   - keeps nothing across restarts, for tests and dry runs
	DBBackend string `mapstructure:"db_backend"`

	// Database directory
	DBPath string `mapstructure:"db_dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log_level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log_format"`

	// Path to the JSON file holding the anchor header the relay starts from
	Genesis string `mapstructure:"genesis_file"`

	// Path to the file of ethash dataset Merkle roots, one hex root per line
	// starting at epoch 0
	DagRoots string `mapstructure:"dag_roots_file"`
}

// DefaultBaseConfig returns a default base configuration for a bridge node
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Genesis:   defaultGenesisJSONPath,
		DagRoots:  defaultDagRootsPath,
		Moniker:   defaultMoniker,
		LogLevel:  DefaultLogLevel,
		LogFormat: log.LogFormatPlain,
		DBBackend: "goleveldb",
		DBPath:    "data",
	}
}

// TestBaseConfig returns a base configuration for testing a bridge node
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	cfg.LogLevel = "debug"
	return cfg
}

// GenesisFile returns the full path to the genesis.json file
func (cfg BaseConfig) GenesisFile() string {
	return rootify(cfg.Genesis, cfg.RootDir)
}

// DagRootsFile returns the full path to the dataset roots file
func (cfg BaseConfig) DagRootsFile() string {
	return rootify(cfg.DagRoots, cfg.RootDir)
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case log.LogFormatPlain, log.LogFormatText, log.LogFormatJSON:
	default:
		return errors.New("unknown log_format (must be 'plain', 'text' or 'json')")
	}
	return nil
}

// DefaultLogLevel is the level a node logs at unless configured otherwise.
const DefaultLogLevel = "info"

//-----------------------------------------------------------------------------
// ChainConfig

// ChainConfig defines how headers of the foreign chain are verified and
// which settings the relay starts with.
type ChainConfig struct {
	// Verifier backing the relayer game: ethereum | mmr
	Verifier string `mapstructure:"verifier"`

	// Fork schedule of the foreign chain: mainnet | ropsten | expanse
	Network string `mapstructure:"network"`

	// Proof-of-work checks: normal | fake | fullfake
	// fake skips the seal, fullfake skips every header rule.
	PoWMode string `mapstructure:"pow_mode"`

	// Headers this deep below the best header can no longer be replaced
	NumberOfBlocksFinality uint64 `mapstructure:"number_of_blocks_finality"`

	// Headers this deep below the best header back receipt proofs
	NumberOfBlocksSafe uint64 `mapstructure:"number_of_blocks_safe"`

	// When true, only authorities may relay headers directly
	CheckAuthorities bool `mapstructure:"check_authorities"`

	// Accounts allowed to relay headers directly
	Authorities []string `mapstructure:"authorities"`

	// Fee charged for each verified receipt
	ReceiptVerifyFee uint64 `mapstructure:"receipt_verify_fee"`

	// Account receipt fees are paid to
	Treasury string `mapstructure:"treasury"`
}

// DefaultChainConfig returns a default configuration for the relay
func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		Verifier:               VerifierEthereum,
		Network:                "mainnet",
		PoWMode:                ethash.ModeNormal.String(),
		NumberOfBlocksFinality: 30,
		NumberOfBlocksSafe:     10,
		Authorities:            []string{},
		Treasury:               "treasury",
	}
}

// TestChainConfig returns a configuration for testing the relay
func TestChainConfig() *ChainConfig {
	cfg := DefaultChainConfig()
	cfg.PoWMode = ethash.ModeFake.String()
	cfg.NumberOfBlocksFinality = 3
	cfg.NumberOfBlocksSafe = 1
	return cfg
}

// Mode parses PoWMode.
func (cfg *ChainConfig) Mode() (ethash.Mode, error) {
	for _, m := range []ethash.Mode{ethash.ModeNormal, ethash.ModeFake, ethash.ModeFullFake} {
		if m.String() == cfg.PoWMode {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown pow_mode %q", cfg.PoWMode)
}

// AuthorityAccounts returns Authorities as ledger accounts.
func (cfg *ChainConfig) AuthorityAccounts() []ledger.AccountID {
	out := make([]ledger.AccountID, len(cfg.Authorities))
	for i, a := range cfg.Authorities {
		out[i] = ledger.AccountID(a)
	}
	return out
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *ChainConfig) ValidateBasic() error {
	switch cfg.Verifier {
	case VerifierEthereum, VerifierMMR:
	default:
		return errors.Errorf("unknown verifier %q (must be 'ethereum' or 'mmr')", cfg.Verifier)
	}
	if _, err := ethash.ParamsForNetwork(cfg.Network); err != nil {
		return err
	}
	if _, err := cfg.Mode(); err != nil {
		return err
	}
	if cfg.NumberOfBlocksSafe > cfg.NumberOfBlocksFinality {
		return errors.New("number_of_blocks_safe can't exceed number_of_blocks_finality")
	}
	for _, a := range cfg.Authorities {
		if a == "" {
			return errors.New("authorities can't contain an empty account")
		}
	}
	if cfg.Treasury == "" {
		return errors.New("treasury can't be empty")
	}
	return nil
}

//-----------------------------------------------------------------------------
// GameConfig

// GameConfig defines the parameters of the relayer game
type GameConfig struct {
	// Host blocks round 0 stays open for challenges
	InitialChallengeTime uint64 `mapstructure:"initial_challenge_time"`

	// Host blocks every later round stays open
	ExtendedChallengeTime uint64 `mapstructure:"extended_challenge_time"`

	// Bond of a round 0 proposal. It doubles every round.
	BondBase uint64 `mapstructure:"bond_base"`

	// Added to the bond for every proposal already in the round
	BondIncrement uint64 `mapstructure:"bond_increment"`

	// How the next round's samples are picked: linear | bisection
	Sampling string `mapstructure:"sampling"`

	// Maximum number of open games. 0 - unlimited.
	MaxActiveGames int `mapstructure:"max_active_games"`

	// Ledger lock bonds are held under
	LockID string `mapstructure:"lock_id"`
}

// DefaultGameConfig returns a default configuration for the relayer game
func DefaultGameConfig() *GameConfig {
	return &GameConfig{
		InitialChallengeTime:  300,
		ExtendedChallengeTime: 100,
		BondBase:              1000,
		BondIncrement:         100,
		Sampling:              relayergame.SamplingLinear,
		MaxActiveGames:        relayergame.DefaultMaxActiveGames,
		LockID:                string(relayergame.DefaultLockID),
	}
}

// TestGameConfig returns a configuration for testing the relayer game
func TestGameConfig() *GameConfig {
	cfg := DefaultGameConfig()
	cfg.InitialChallengeTime = 10
	cfg.ExtendedChallengeTime = 5
	cfg.BondBase = 10
	cfg.BondIncrement = 0
	return cfg
}

// Adjustor returns the game adjustor the configuration describes.
func (cfg *GameConfig) Adjustor() (*relayergame.DefaultAdjustor, error) {
	sampling, err := relayergame.SamplingPolicyByName(cfg.Sampling)
	if err != nil {
		return nil, err
	}
	return &relayergame.DefaultAdjustor{
		InitialChallengeTime:  cfg.InitialChallengeTime,
		ExtendedChallengeTime: cfg.ExtendedChallengeTime,
		BondBase:              cfg.BondBase,
		BondIncrement:         cfg.BondIncrement,
		Sampling:              sampling,
	}, nil
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *GameConfig) ValidateBasic() error {
	if cfg.InitialChallengeTime == 0 {
		return errors.New("initial_challenge_time can't be zero")
	}
	if cfg.BondBase == 0 {
		return errors.New("bond_base can't be zero")
	}
	if _, err := relayergame.SamplingPolicyByName(cfg.Sampling); err != nil {
		return err
	}
	if cfg.MaxActiveGames < 0 {
		return errors.New("max_active_games can't be negative")
	}
	if cfg.LockID == "" {
		return errors.New("lock_id can't be empty")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	// Check out the documentation for the list of available metrics.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	// Maximum number of simultaneous connections.
	// If you want to accept a larger number than the default, make sure
	// you increase your OS limits.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max_open_connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "bridge",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max_open_connections can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

//-----------------------------------------------------------------------------
// Moniker

var defaultMoniker = getDefaultMoniker()

// getDefaultMoniker returns a default moniker, which is the host name. If runtime
// fails to get the host name, "anonymous" will be returned.
func getDefaultMoniker() string {
	moniker, err := os.Hostname()
	if err != nil {
		moniker = "anonymous"
	}
	return moniker
}
