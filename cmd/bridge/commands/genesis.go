package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/creachadair/atomicfile"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"

	"github.com/darwinia-network/bridge-relay/config"
	"github.com/darwinia-network/bridge-relay/node"
	"github.com/darwinia-network/bridge-relay/relay/mmr"
)

// MakeGenesisCommand returns the command writing the genesis file, and
// optionally re-anchoring an existing ethereum relay at it.
func MakeGenesisCommand(conf *config.Config) *cobra.Command {
	var (
		headerFile     string
		td             string
		commitmentFile string
		dagRootsFile   string
		reset          bool
	)

	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Write the anchor header the relay starts from",
		Long: `Write the anchor header the relay starts from.

Pass --header with a JSON block header for the ethereum verifier, or
--commitment with a JSON commitment header for the mmr verifier.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := new(node.GenesisDoc)
			switch {
			case headerFile != "" && commitmentFile != "":
				return errors.New("--header and --commitment are exclusive")
			case headerFile != "":
				header := new(types.Header)
				if err := readJSON(headerFile, header); err != nil {
					return err
				}
				total, err := parseTotalDifficulty(td, header)
				if err != nil {
					return err
				}
				doc.Header = header
				doc.TotalDifficulty = (*hexutil.Big)(total)
			case commitmentFile != "":
				commitment := new(mmr.Header)
				if err := readJSON(commitmentFile, commitment); err != nil {
					return err
				}
				doc.Commitment = commitment
			default:
				return errors.New("one of --header or --commitment is required")
			}
			if err := doc.ValidateBasic(); err != nil {
				return err
			}

			if dagRootsFile != "" {
				if err := copyDagRoots(dagRootsFile, conf.DagRootsFile()); err != nil {
					return err
				}
			}
			if err := doc.SaveAs(conf.GenesisFile()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", conf.GenesisFile())

			if reset {
				return resetGenesis(conf, doc)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&headerFile, "header", "", "JSON file of the anchor block header")
	cmd.Flags().StringVar(&td, "total-difficulty", "",
		"total difficulty at the anchor header, hex or decimal (default: the header difficulty)")
	cmd.Flags().StringVar(&commitmentFile, "commitment", "", "JSON file of the anchor commitment header")
	cmd.Flags().StringVar(&dagRootsFile, "dag-roots", "", "file of dataset roots to install next to the genesis file")
	cmd.Flags().BoolVar(&reset, "reset", false, "re-anchor the existing ethereum relay at the new header")
	return cmd
}

func readJSON(path string, v interface{}) error {
	bz, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(bz, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func parseTotalDifficulty(s string, header *types.Header) (*big.Int, error) {
	if s == "" {
		if header.Difficulty == nil {
			return nil, errors.New("header has no difficulty")
		}
		return new(big.Int).Set(header.Difficulty), nil
	}
	total, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid total difficulty %q", s)
	}
	return total, nil
}

func copyDagRoots(from, to string) error {
	if _, err := node.LoadDagRoots(from); err != nil {
		return err
	}
	f, err := os.Open(from)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = atomicfile.WriteAll(to, f, 0644)
	return err
}

func resetGenesis(conf *config.Config, doc *node.GenesisDoc) error {
	if doc.Header == nil {
		return errors.New("--reset needs an ethereum header")
	}
	n, err := openNode(conf)
	if err != nil {
		return err
	}
	defer n.Close()
	if n.Relay() == nil {
		return fmt.Errorf("--reset needs the %s verifier", config.VerifierEthereum)
	}
	return n.Relay().ResetGenesisHeader(doc.Header, doc.TD())
}
