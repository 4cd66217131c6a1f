package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/darwinia-network/bridge-relay/config"
)

// MakeInitCommand returns the command writing the config file of a new home
// directory.
func MakeInitCommand(conf *config.Config) *cobra.Command {
	var verifier string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the config file for the chosen verifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("verifier") {
				conf.Chain.Verifier = verifier
			}
			if err := conf.ValidateBasic(); err != nil {
				return err
			}
			if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", filepath.Join(conf.RootDir, "config", "config.toml"))
			return nil
		},
	}
	cmd.Flags().StringVar(&verifier, "verifier", conf.Chain.Verifier,
		fmt.Sprintf("header verifier: %s | %s", config.VerifierEthereum, config.VerifierMMR))
	return cmd
}
