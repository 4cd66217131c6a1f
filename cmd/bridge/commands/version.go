package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/darwinia-network/bridge-relay/version"
)

var verbose bool

// VersionCmd prints the software version, and with --verbose the protocol
// versions as JSON.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		if verbose {
			values, _ := json.MarshalIndent(struct {
				Bridge        string `json:"bridge"`
				RelayProtocol uint64 `json:"relay_protocol"`
				GameProtocol  uint64 `json:"game_protocol"`
			}{
				Bridge:        version.Version,
				RelayProtocol: uint64(version.RelayProtocol),
				GameProtocol:  uint64(version.GameProtocol),
			}, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(values))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		}
	},
}

func init() {
	VersionCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show protocol versions")
}
