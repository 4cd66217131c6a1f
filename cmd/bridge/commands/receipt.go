package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/darwinia-network/bridge-relay/config"
	"github.com/darwinia-network/bridge-relay/receipt"
)

// MakeReceiptCommand returns the command checking a receipt proof against
// the relayed headers.
func MakeReceiptCommand(conf *config.Config) *cobra.Command {
	var (
		headerHash string
		index      uint64
	)

	cmd := &cobra.Command{
		Use:   "receipt [hex proof nodes]",
		Short: "Verify a receipt proof and print the receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexHash(headerHash) {
				return errors.New("--block-hash must be a 32-byte hex hash")
			}
			nodes, err := decodeHex(args[0])
			if err != nil {
				return err
			}

			n, err := openNode(conf)
			if err != nil {
				return err
			}
			defer n.Close()
			if n.Relay() == nil {
				return fmt.Errorf("receipt proofs need the %s verifier", config.VerifierEthereum)
			}

			rcpt, err := n.Relay().VerifyReceipt(receipt.Proof{
				HeaderHash: common.HexToHash(headerHash),
				Index:      index,
				Nodes:      nodes,
			})
			if err != nil {
				return err
			}
			bz, err := json.MarshalIndent(rcpt, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return nil
		},
	}
	cmd.Flags().StringVar(&headerHash, "block-hash", "", "hash of the block holding the receipt")
	cmd.Flags().Uint64Var(&index, "index", 0, "index of the receipt in the block")
	return cmd
}
