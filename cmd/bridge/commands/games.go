package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/darwinia-network/bridge-relay/config"
	"github.com/darwinia-network/bridge-relay/relayergame"
)

// MakeGamesCommand returns the command printing the open relayer games.
func MakeGamesCommand(conf *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "Print the open relayer games as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(conf)
			if err != nil {
				return err
			}
			defer n.Close()

			ids, err := n.Game().Games()
			if err != nil {
				return err
			}
			games := make([]*relayergame.Game, 0, len(ids))
			for _, id := range ids {
				g, err := n.Game().Game(id)
				if err != nil {
					return err
				}
				games = append(games, g)
			}

			bz, err := json.MarshalIndent(struct {
				LastConfirmed uint64              `json:"last_confirmed"`
				LastFinalized uint64              `json:"last_finalized"`
				Games         []*relayergame.Game `json:"games"`
			}{
				LastConfirmed: n.Verifier().LastConfirmed(),
				LastFinalized: n.Game().LastFinalized(),
				Games:         games,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return nil
		},
	}
}
