package main

import (
	"context"
	"os"

	"github.com/darwinia-network/bridge-relay/cmd/bridge/commands"
	"github.com/darwinia-network/bridge-relay/config"
	"github.com/darwinia-network/bridge-relay/libs/cli"
)

func main() {
	ctx := context.Background()

	conf := config.DefaultConfig()
	rcmd := commands.RootCommand(conf)
	rcmd.AddCommand(
		commands.MakeInitCommand(conf),
		commands.MakeGenesisCommand(conf),
		commands.MakeRelayCommand(conf),
		commands.MakeReceiptCommand(conf),
		commands.MakeGamesCommand(conf),
		commands.NewRunNodeCmd(conf),
		commands.VersionCmd,
	)

	if err := cli.RunWithTrace(ctx, rcmd); err != nil {
		os.Exit(1)
	}
}
