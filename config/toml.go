package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/creachadair/atomicfile"

	tmos "github.com/darwinia-network/bridge-relay/libs/os"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
		"quoteAll":    quoteAll,
	})
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

func quoteAll(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't
// exist, and writes the default config file if there is none.
func EnsureRoot(rootDir string) error {
	for _, dir := range []string{rootDir, filepath.Join(rootDir, defaultConfigDir), filepath.Join(rootDir, defaultDataDir)} {
		if err := tmos.EnsureDir(dir, defaultDirPerm); err != nil {
			return err
		}
	}
	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)
	if !tmos.FileExists(configFilePath) {
		return WriteConfigFile(rootDir, DefaultConfig())
	}
	return nil
}

// WriteConfigFile renders config using the template and writes it to configFilePath.
// This function is called by cmd/bridge/commands/init.go
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToTemplate writes the config to the exact file specified by
// the path, in the default toml template and does not mangle the path
// or filename at all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	return writeFile(path, &buffer, 0644)
}

// ResetTestRoot creates a fresh home directory under the system temp dir
// holding the test config file, and returns the test config rooted there.
func ResetTestRoot(testName string) (*Config, error) {
	rootDir, err := os.MkdirTemp("", fmt.Sprintf("%s-%s_", "bridge", testName))
	if err != nil {
		return nil, err
	}
	config := TestConfig().SetRoot(rootDir)
	if err := EnsureRoot(rootDir); err != nil {
		return nil, err
	}
	if err := WriteConfigFile(rootDir, config); err != nil {
		return nil, err
	}
	return config, nil
}

func writeFile(filePath string, contents io.Reader, mode os.FileMode) error {
	if _, err := atomicfile.WriteAll(filePath, contents, mode); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/bridge/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.bridge" by default, but could be changed via $BRIDGE_HOME env variable
# or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# A custom human readable name for this node
moniker = "{{ .BaseConfig.Moniker }}"

# Database backend: goleveldb | memdb
# * goleveldb (github.com/syndtr/goleveldb - most popular implementation)
#   - pure go
#   - stable
# * memdb
#   - keeps nothing across restarts, for tests and dry runs
db_backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db_dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging: debug | info | error
log_level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log_format = "{{ .BaseConfig.LogFormat }}"

# Path to the JSON file holding the anchor header the relay starts from
genesis_file = "{{ js .BaseConfig.Genesis }}"

# Path to the file of ethash dataset Merkle roots, one hex root per line
# starting at epoch 0
dag_roots_file = "{{ js .BaseConfig.DagRoots }}"

#######################################################################
###                 Foreign Chain Configuration Options             ###
#######################################################################
[chain]

# Verifier backing the relayer game: ethereum | mmr
verifier = "{{ .Chain.Verifier }}"

# Fork schedule of the foreign chain: mainnet | ropsten | expanse
network = "{{ .Chain.Network }}"

# Proof-of-work checks: normal | fake | fullfake
# fake skips the seal, fullfake skips every header rule.
pow_mode = "{{ .Chain.PoWMode }}"

# Headers this deep below the best header can no longer be replaced
number_of_blocks_finality = {{ .Chain.NumberOfBlocksFinality }}

# Headers this deep below the best header back receipt proofs
number_of_blocks_safe = {{ .Chain.NumberOfBlocksSafe }}

# When true, only authorities may relay headers directly
check_authorities = {{ .Chain.CheckAuthorities }}

# Accounts allowed to relay headers directly
authorities = [{{ quoteAll .Chain.Authorities }}]

# Fee charged for each verified receipt
receipt_verify_fee = {{ .Chain.ReceiptVerifyFee }}

# Account receipt fees are paid to
treasury = "{{ .Chain.Treasury }}"

#######################################################################
###                   Relayer Game Configuration Options            ###
#######################################################################
[game]

# Host blocks round 0 stays open for challenges
initial_challenge_time = {{ .Game.InitialChallengeTime }}

# Host blocks every later round stays open
extended_challenge_time = {{ .Game.ExtendedChallengeTime }}

# Bond of a round 0 proposal. It doubles every round.
bond_base = {{ .Game.BondBase }}

# Added to the bond for every proposal already in the round
bond_increment = {{ .Game.BondIncrement }}

# How the next round's samples are picked: linear | bisection
sampling = "{{ .Game.Sampling }}"

# Maximum number of open games. 0 - unlimited.
max_active_games = {{ .Game.MaxActiveGames }}

# Ledger lock bonds are held under
lock_id = "{{ .Game.LockID }}"

#######################################################################
###                  Instrumentation Configuration Options          ###
#######################################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
# Check out the documentation for the list of available metrics.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus_listen_addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Maximum number of simultaneous connections.
# If you want to accept a larger number than the default, make sure
# you increase your OS limits.
# 0 - unlimited.
max_open_connections = {{ .Instrumentation.MaxOpenConnections }}

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`
