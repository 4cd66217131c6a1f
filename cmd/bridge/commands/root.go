package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/darwinia-network/bridge-relay/config"
	"github.com/darwinia-network/bridge-relay/libs/cli"
	"github.com/darwinia-network/bridge-relay/libs/log"
	"github.com/darwinia-network/bridge-relay/node"
)

// ParseConfig merges viper's view of flags, environment and config file
// into conf and validates the result.
func ParseConfig(conf *config.Config) (*config.Config, error) {
	if err := viper.Unmarshal(conf); err != nil {
		return nil, err
	}

	conf.SetRoot(conf.RootDir)

	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// RootCommand constructs the root command-line entry point for the bridge
// relay.
func RootCommand(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Relay and dispute proof-of-work headers of a foreign chain",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == VersionCmd.Name() {
				return nil
			}

			if err := cli.BindFlagsLoadViper(cmd, args); err != nil {
				return err
			}

			pconf, err := ParseConfig(conf)
			if err != nil {
				return err
			}
			*conf = *pconf
			return config.EnsureRoot(conf.RootDir)
		},
	}
	cmd.PersistentFlags().StringP(cli.HomeFlag, "", os.ExpandEnv(filepath.Join("$HOME", config.DefaultBridgeDir)), "directory for config and data")
	cmd.PersistentFlags().Bool(cli.TraceFlag, false, "print out full stack trace on errors")
	cmd.PersistentFlags().String("log_level", conf.LogLevel, "log level")
	cobra.OnInitialize(func() { cli.InitEnv("BRIDGE") })
	return cmd
}

func newLogger(conf *config.Config) (log.Logger, error) {
	return log.NewDefaultLogger(conf.LogFormat, conf.LogLevel)
}

// openNode builds a node for a one-shot command. The caller closes it.
func openNode(conf *config.Config) (*node.Node, error) {
	logger, err := newLogger(conf)
	if err != nil {
		return nil, err
	}
	return node.New(conf, logger)
}
