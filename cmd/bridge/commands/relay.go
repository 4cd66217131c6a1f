package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/darwinia-network/bridge-relay/config"
	"github.com/darwinia-network/bridge-relay/ledger"
)

// MakeRelayCommand returns the command relaying one header parcel straight
// into the header chain, bypassing the relayer game.
func MakeRelayCommand(conf *config.Config) *cobra.Command {
	var relayer string

	cmd := &cobra.Command{
		Use:   "relay [hex parcel]",
		Short: "Verify and store one header parcel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if relayer == "" {
				return errors.New("--relayer is required")
			}
			raw, err := decodeHex(args[0])
			if err != nil {
				return err
			}

			n, err := openNode(conf)
			if err != nil {
				return err
			}
			defer n.Close()
			if n.Relay() == nil {
				return fmt.Errorf("direct relay needs the %s verifier", config.VerifierEthereum)
			}

			if err := n.Relay().RelayHeader(ledger.AccountID(relayer), raw); err != nil {
				return err
			}
			best, _ := n.Relay().Chain().BestHash()
			fmt.Fprintf(cmd.OutOrStdout(), "best #%d %s\n", n.Relay().LastConfirmed(), best.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&relayer, "relayer", "", "account relaying the header")
	return cmd
}

func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
