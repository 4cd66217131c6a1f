package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/darwinia-network/bridge-relay/config"
	"github.com/darwinia-network/bridge-relay/libs/log"
	tmos "github.com/darwinia-network/bridge-relay/libs/os"
	"github.com/darwinia-network/bridge-relay/node"
	"github.com/darwinia-network/bridge-relay/relay/mmr"
)

// writeConfigVals writes a toml file with the given values.
// It returns an error if writing was impossible.
func writeConfigVals(dir string, vals map[string]string) error {
	data := ""
	for k, v := range vals {
		data += fmt.Sprintf("%s = \"%s\"\n", k, v)
	}
	cfile := filepath.Join(dir, "config.toml")
	return os.WriteFile(cfile, []byte(data), 0600)
}

// clearConfig clears env vars, the given root dir, and resets viper.
func clearConfig(t *testing.T, dir string) *cfg.Config {
	t.Helper()
	require.NoError(t, os.Unsetenv("BRIDGEHOME"))
	require.NoError(t, os.Unsetenv("BRIDGE_HOME"))
	require.NoError(t, os.RemoveAll(dir))

	viper.Reset()
	conf := cfg.DefaultConfig()
	conf.SetRoot(dir)

	return conf
}

// testRootCmd returns a root command with every subcommand plus a noop one,
// since cobra skips the persistent hooks of a command that cannot run.
func testRootCmd(conf *cfg.Config) *cobra.Command {
	cmd := RootCommand(conf)
	cmd.AddCommand(
		MakeInitCommand(conf),
		MakeGenesisCommand(conf),
		MakeGamesCommand(conf),
		VersionCmd,
		&cobra.Command{Use: "noop", RunE: func(*cobra.Command, []string) error { return nil }},
	)
	return cmd
}

// RunWithArgs executes cmd with args and the environment variables in env
// set, restoring the environment afterwards. Output goes to out.
func RunWithArgs(ctx context.Context, cmd *cobra.Command, args []string, env map[string]string, out *bytes.Buffer) error {
	oenv := map[string]string{}
	defer func() {
		for k, v := range oenv {
			os.Setenv(k, v)
		}
	}()

	for k, v := range env {
		oenv[k] = os.Getenv(k)
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}

	if out != nil {
		cmd.SetOut(out)
	}
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	return cmd.ExecuteContext(ctx)
}

func TestRootHome(t *testing.T) {
	defaultRoot := t.TempDir()
	newRoot := filepath.Join(defaultRoot, "something-else")
	otherRoot := filepath.Join(defaultRoot, "other")
	cases := []struct {
		args []string
		env  map[string]string
		root string
	}{
		{[]string{"--home", newRoot}, nil, newRoot},
		{nil, map[string]string{"BRIDGEHOME": newRoot}, newRoot},
		{nil, map[string]string{"BRIDGE_HOME": newRoot}, newRoot},
		{[]string{"--home", otherRoot}, map[string]string{"BRIDGE_HOME": newRoot}, otherRoot},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			conf := clearConfig(t, tc.root)
			defer clearConfig(t, tc.root)

			err := RunWithArgs(ctx, testRootCmd(conf), append([]string{"noop"}, tc.args...), tc.env, nil)
			require.NoError(t, err)

			require.Equal(t, tc.root, conf.RootDir)
			assert.FileExists(t, filepath.Join(tc.root, "config", "config.toml"))
		})
	}
}

func TestRootFlagsEnv(t *testing.T) {
	defaultLogLvl := cfg.DefaultConfig().LogLevel
	defaultDir := t.TempDir()

	cases := []struct {
		args     []string
		env      map[string]string
		logLevel string
	}{
		{nil, nil, defaultLogLvl},
		{[]string{"--log_level", "debug"}, nil, "debug"},
		{nil, map[string]string{"BRIDGE_LOG_LEVEL": "error"}, "error"},
		{[]string{"--log_level", "debug"}, map[string]string{"BRIDGE_LOG_LEVEL": "error"}, "debug"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			conf := clearConfig(t, defaultDir)
			defer os.Unsetenv("BRIDGE_LOG_LEVEL")

			args := append([]string{"noop", "--home", defaultDir}, tc.args...)
			err := RunWithArgs(ctx, testRootCmd(conf), args, tc.env, nil)
			require.NoError(t, err)

			assert.Equal(t, tc.logLevel, conf.LogLevel)
		})
	}
}

func TestRootConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// write non-default config
	nonDefaultLogLvl := "debug"
	cvals := map[string]string{
		"log_level": nonDefaultLogLvl,
	}

	cases := []struct {
		args   []string
		logLvl string
	}{
		{nil, nonDefaultLogLvl},                  // should load config
		{[]string{"--log_level=error"}, "error"}, // flag over rides
	}

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			defaultRoot := t.TempDir()
			conf := clearConfig(t, defaultRoot)

			configFilePath := filepath.Join(defaultRoot, "config")
			require.NoError(t, tmos.EnsureDir(configFilePath, 0700))
			require.NoError(t, writeConfigVals(configFilePath, cvals))

			args := append([]string{"noop", "--home", defaultRoot}, tc.args...)
			err := RunWithArgs(ctx, testRootCmd(conf), args, nil, nil)
			require.NoError(t, err)

			require.Equal(t, tc.logLvl, conf.LogLevel)
		})
	}
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	root := t.TempDir()
	conf := clearConfig(t, root)

	configFilePath := filepath.Join(root, "config")
	require.NoError(t, tmos.EnsureDir(configFilePath, 0700))
	require.NoError(t, writeConfigVals(configFilePath, map[string]string{"log_format": "xml"}))

	err := RunWithArgs(context.Background(), testRootCmd(conf), []string{"noop", "--home", root}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}

func TestInitWritesVerifier(t *testing.T) {
	root := t.TempDir()
	conf := clearConfig(t, root)

	out := new(bytes.Buffer)
	err := RunWithArgs(context.Background(), testRootCmd(conf),
		[]string{"init", "--home", root, "--verifier", cfg.VerifierMMR}, nil, out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "config.toml")

	bz, err := os.ReadFile(filepath.Join(root, "config", "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(bz), `verifier = "mmr"`)

	// a second run picks the verifier up from the config file
	conf = clearConfig(t, t.TempDir())
	err = RunWithArgs(context.Background(), testRootCmd(conf), []string{"noop", "--home", root}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.VerifierMMR, conf.Chain.Verifier)
}

func TestGenesisFromHeader(t *testing.T) {
	root := t.TempDir()
	conf := clearConfig(t, root)

	header := &types.Header{
		ParentHash: common.HexToHash("0x01"),
		Number:     big.NewInt(100),
		Difficulty: big.NewInt(1000),
		GasLimit:   8_000_000,
		Time:       1_600_000_000,
		Extra:      []byte{},
	}
	headerFile := filepath.Join(t.TempDir(), "header.json")
	bz, err := json.Marshal(header)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(headerFile, bz, 0600))

	rootsFile := filepath.Join(t.TempDir(), "roots.txt")
	require.NoError(t, os.WriteFile(rootsFile,
		[]byte("# epoch 0\n0x55b891e842e58f58956a847cbbf67821\n"), 0600))

	err = RunWithArgs(context.Background(), testRootCmd(conf), []string{
		"genesis", "--home", root,
		"--header", headerFile,
		"--total-difficulty", "0x10000",
		"--dag-roots", rootsFile,
	}, nil, new(bytes.Buffer))
	require.NoError(t, err)

	doc, err := node.GenesisDocFromFile(conf.GenesisFile())
	require.NoError(t, err)
	require.NotNil(t, doc.Header)
	assert.Equal(t, header.Hash(), doc.Header.Hash())
	assert.Equal(t, big.NewInt(0x10000), doc.TD())

	roots, err := node.LoadDagRoots(conf.DagRootsFile())
	require.NoError(t, err)
	assert.Len(t, roots, 1)
}

func TestGenesisFromCommitment(t *testing.T) {
	root := t.TempDir()
	conf := clearConfig(t, root)

	commitment := &mmr.Header{Number: 7, MMRRoot: common.HexToHash("0xabc")}
	commitmentFile := filepath.Join(t.TempDir(), "commitment.json")
	bz, err := json.Marshal(commitment)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(commitmentFile, bz, 0600))

	err = RunWithArgs(context.Background(), testRootCmd(conf), []string{
		"genesis", "--home", root, "--commitment", commitmentFile,
	}, nil, new(bytes.Buffer))
	require.NoError(t, err)

	doc, err := node.GenesisDocFromFile(conf.GenesisFile())
	require.NoError(t, err)
	require.NotNil(t, doc.Commitment)
	assert.Equal(t, commitment.Hash(), doc.Commitment.Hash())
}

func TestGenesisRejections(t *testing.T) {
	ctx := context.Background()
	testCases := map[string][]string{
		"no anchor":    {},
		"both anchors": {"--header", "h.json", "--commitment", "c.json"},
		"missing file": {"--commitment", "missing.json", "--reset"},
	}
	for name, args := range testCases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			conf := clearConfig(t, root)
			err := RunWithArgs(ctx, testRootCmd(conf),
				append([]string{"genesis", "--home", root}, args...), nil, new(bytes.Buffer))
			require.Error(t, err)
			assert.NoFileExists(t, conf.GenesisFile())
		})
	}
}

func TestGamesOnEmptyRelay(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	conf := clearConfig(t, root)
	require.NoError(t, RunWithArgs(ctx, testRootCmd(conf),
		[]string{"init", "--home", root, "--verifier", cfg.VerifierMMR}, nil, new(bytes.Buffer)))

	viper.Reset()
	conf = cfg.DefaultConfig()
	out := new(bytes.Buffer)
	require.NoError(t, RunWithArgs(ctx, testRootCmd(conf), []string{"games", "--home", root}, nil, out))

	var res struct {
		LastFinalized uint64            `json:"last_finalized"`
		Games         []json.RawMessage `json:"games"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Zero(t, res.LastFinalized)
	assert.Empty(t, res.Games)
}

func TestVersionVerbose(t *testing.T) {
	conf := clearConfig(t, t.TempDir())
	out := new(bytes.Buffer)
	err := RunWithArgs(context.Background(), testRootCmd(conf), []string{"version", "--verbose"}, nil, out)
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Contains(t, res, "bridge")
	assert.Contains(t, res, "relay_protocol")
	assert.Contains(t, res, "game_protocol")
}

func TestScanHeights(t *testing.T) {
	out := make(chan uint64)
	go scanHeights(context.Background(), strings.NewReader("1\n\n 2 \nnext\n5\n"), out, log.NewNopLogger())

	var got []uint64
	for h := range out {
		got = append(got, h)
	}
	assert.Equal(t, []uint64{1, 2, 5}, got)
}
