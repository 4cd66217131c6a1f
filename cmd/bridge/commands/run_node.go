package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/darwinia-network/bridge-relay/config"
	"github.com/darwinia-network/bridge-relay/libs/log"
	tmos "github.com/darwinia-network/bridge-relay/libs/os"
	"github.com/darwinia-network/bridge-relay/node"
)

// AddNodeFlags exposes some common configuration options from conf in the
// flag set for cmd. This is a convenience for commands embedding a bridge
// node.
func AddNodeFlags(cmd *cobra.Command, conf *config.Config) {
	// bind flags
	cmd.Flags().String("moniker", conf.Moniker, "node name")

	// db flags
	cmd.Flags().String("db_backend", conf.DBBackend, "database backend: goleveldb | memdb")
	cmd.Flags().String("db_dir", conf.DBPath, "database directory")

	// instrumentation flags
	cmd.Flags().Bool("instrumentation.prometheus", conf.Instrumentation.Prometheus, "serve Prometheus metrics")
	cmd.Flags().String("instrumentation.prometheus_listen_addr", conf.Instrumentation.PrometheusListenAddr,
		"address to serve Prometheus metrics on")
}

// NewRunNodeCmd returns the command that allows the CLI to start a node.
func NewRunNodeCmd(conf *config.Config) *cobra.Command {
	var blocksFromStdin bool
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the bridge relay node",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(conf)
			if err != nil {
				return err
			}

			var options []node.Option
			if blocksFromStdin {
				blocks := make(chan uint64)
				go scanHeights(cmd.Context(), cmd.InOrStdin(), blocks, logger)
				options = append(options, node.WithHostBlocks(blocks))
			}

			n, err := node.New(conf, logger, options...)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}

			if err := n.Start(cmd.Context()); err != nil {
				n.Close()
				return fmt.Errorf("failed to start node: %w", err)
			}

			logger.Info("started node", "verifier", conf.Chain.Verifier)

			// Stop upon receiving SIGTERM or CTRL-C.
			tmos.TrapSignal(logger, func() {
				if n.IsRunning() {
					if err := n.Stop(); err != nil {
						logger.Error("unable to stop the node", "error", err)
					}
				}
			})

			n.Wait()
			return nil
		},
	}

	AddNodeFlags(cmd, conf)
	cmd.Flags().BoolVar(&blocksFromStdin, "host-blocks-stdin", false,
		"finalize the host block heights read from stdin, one per line")
	return cmd
}

// scanHeights sends every height read from r, one per line, to out and
// closes it at the end of input. Lines that are not heights are skipped.
func scanHeights(ctx context.Context, r io.Reader, out chan<- uint64, logger log.Logger) {
	defer close(out)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		height, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			logger.Error("skipping host block", "line", line, "err", err)
			continue
		}
		select {
		case out <- height:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading host blocks", "err", err)
	}
}
