// Package node wires the header chain, the verifiers and the relayer game
// of one bridge into a service.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	dbm "github.com/tendermint/tm-db"
	"golang.org/x/net/netutil"

	"github.com/darwinia-network/bridge-relay/config"
	"github.com/darwinia-network/bridge-relay/ethash"
	"github.com/darwinia-network/bridge-relay/headerchain"
	"github.com/darwinia-network/bridge-relay/ledger"
	"github.com/darwinia-network/bridge-relay/libs/events"
	"github.com/darwinia-network/bridge-relay/libs/log"
	tmos "github.com/darwinia-network/bridge-relay/libs/os"
	"github.com/darwinia-network/bridge-relay/libs/service"
	"github.com/darwinia-network/bridge-relay/relay"
	"github.com/darwinia-network/bridge-relay/relay/ethereum"
	"github.com/darwinia-network/bridge-relay/relay/mmr"
	"github.com/darwinia-network/bridge-relay/relayergame"
)

const (
	headerChainDBID = "headerchain"
	relayDBID       = "relay"
	gameDBID        = "relayergame"
)

// Node is a bridge relay node.
type Node struct {
	service.BaseService

	config *config.Config
	logger log.Logger

	ledger      ledger.Ledger
	verifier    relay.Verifier
	relay       *ethereum.Relay // ethereum verifier only
	commitments *mmr.Verifier   // mmr verifier only
	game        *relayergame.Engine
	evsw        events.EventSwitch

	dbProvider config.DBProvider
	dbs        []dbm.DB

	blocks       <-chan uint64
	stopFinalize context.CancelFunc
	finalizeDone chan struct{}

	prometheusSrv *http.Server
}

// Option sets an optional parameter on the Node.
type Option func(*Node)

// WithLedger sets the ledger bonds and fees go through. It defaults to an
// in-memory ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(n *Node) { n.ledger = l }
}

// WithHostBlocks makes the running node finalize every host block height
// received on blocks, in order, until the channel is closed.
func WithHostBlocks(blocks <-chan uint64) Option {
	return func(n *Node) { n.blocks = blocks }
}

// WithDBProvider sets how databases are opened.
func WithDBProvider(p config.DBProvider) Option {
	return func(n *Node) { n.dbProvider = p }
}

// New opens the node's databases and builds its components from cfg,
// anchoring an empty relay at the genesis file when there is one.
func New(cfg *config.Config, logger log.Logger, options ...Option) (*Node, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	n := &Node{
		config:     cfg,
		logger:     logger,
		dbProvider: config.DefaultDBProvider,
		evsw:       events.NewEventSwitch(),
	}
	for _, option := range options {
		option(n)
	}
	if n.ledger == nil {
		n.ledger = ledger.NewMemory()
	}

	chainMetrics, gameMetrics := headerchain.NopMetrics(), relayergame.NopMetrics()
	if cfg.Instrumentation.Prometheus {
		chainMetrics = headerchain.PrometheusMetrics(cfg.Instrumentation.Namespace, "moniker", cfg.Moniker)
		gameMetrics = relayergame.PrometheusMetrics(cfg.Instrumentation.Namespace, "moniker", cfg.Moniker)
	}

	var err error
	switch cfg.Chain.Verifier {
	case config.VerifierEthereum:
		err = n.setupEthereum(chainMetrics)
	case config.VerifierMMR:
		err = n.setupMMR()
	default:
		err = fmt.Errorf("unknown verifier %q", cfg.Chain.Verifier)
	}
	if err != nil {
		n.closeDBs()
		return nil, err
	}

	adjustor, err := cfg.Game.Adjustor()
	if err != nil {
		n.closeDBs()
		return nil, err
	}
	gameDB, err := n.openDB(gameDBID)
	if err != nil {
		n.closeDBs()
		return nil, err
	}
	n.game = relayergame.NewEngine(gameDB, n.verifier, n.ledger, adjustor,
		relayergame.Logger(logger.With("module", "relayergame")),
		relayergame.WithMetrics(gameMetrics),
		relayergame.WithEventSwitch(n.evsw),
		relayergame.MaxActiveGames(cfg.Game.MaxActiveGames),
		relayergame.WithLockID(ledger.LockID(cfg.Game.LockID)),
	)

	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

func (n *Node) openDB(id string) (dbm.DB, error) {
	db, err := n.dbProvider(&config.DBContext{ID: id, Config: n.config})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", id, err)
	}
	n.dbs = append(n.dbs, db)
	return db, nil
}

func (n *Node) setupEthereum(metrics *headerchain.Metrics) error {
	cfg := n.config.Chain
	params, err := ethash.ParamsForNetwork(cfg.Network)
	if err != nil {
		return err
	}
	mode, err := cfg.Mode()
	if err != nil {
		return err
	}

	chainDB, err := n.openDB(headerChainDBID)
	if err != nil {
		return err
	}
	relayDB, err := n.openDB(relayDBID)
	if err != nil {
		return err
	}

	chain := headerchain.New(chainDB, params,
		headerchain.Logger(n.logger.With("module", "headerchain")),
		headerchain.WithMetrics(metrics),
		headerchain.EngineMode(mode),
	)
	n.relay = ethereum.New(chain, relayDB, n.ledger, ledger.AccountID(cfg.Treasury),
		ethereum.Logger(n.logger.With("module", "relay")))
	n.verifier = n.relay

	if err := n.bootstrapEthereum(); err != nil {
		return err
	}
	return n.applyChainSettings()
}

func (n *Node) bootstrapEthereum() error {
	chain := n.relay.Chain()

	if tmos.FileExists(n.config.DagRootsFile()) {
		roots, err := LoadDagRoots(n.config.DagRootsFile())
		if err != nil {
			return err
		}
		if err := chain.SetDagRoots(0, roots); err != nil {
			return err
		}
		n.logger.Info("loaded dataset roots", "epochs", len(roots))
	}

	if _, ok := chain.BestHash(); ok || !tmos.FileExists(n.config.GenesisFile()) {
		return nil
	}
	doc, err := GenesisDocFromFile(n.config.GenesisFile())
	if err != nil {
		return err
	}
	if doc.Header == nil {
		return errors.New("genesis file has no header for the ethereum verifier")
	}
	return n.relay.ResetGenesisHeader(doc.Header, doc.TD())
}

// applyChainSettings brings the relay settings in line with the config.
func (n *Node) applyChainSettings() error {
	cfg := n.config.Chain
	if err := n.relay.SetNumberOfBlocksFinality(cfg.NumberOfBlocksFinality); err != nil {
		return err
	}
	if err := n.relay.SetNumberOfBlocksSafe(cfg.NumberOfBlocksSafe); err != nil {
		return err
	}
	if err := n.relay.SetReceiptVerifyFee(cfg.ReceiptVerifyFee); err != nil {
		return err
	}
	if n.relay.CheckAuthorities() != cfg.CheckAuthorities {
		if _, err := n.relay.ToggleCheckAuthorities(); err != nil {
			return err
		}
	}
	for _, a := range cfg.AuthorityAccounts() {
		if err := n.relay.AddAuthority(a); err != nil && !errors.Is(err, ethereum.ErrAuthorityExists) {
			return err
		}
	}
	return nil
}

func (n *Node) setupMMR() error {
	db, err := n.openDB(relayDBID)
	if err != nil {
		return err
	}
	n.commitments = mmr.NewVerifier(db, n.logger.With("module", "mmr"))
	n.verifier = n.commitments

	if _, ok := n.commitments.Header(n.commitments.LastConfirmed()); ok || !tmos.FileExists(n.config.GenesisFile()) {
		return nil
	}
	doc, err := GenesisDocFromFile(n.config.GenesisFile())
	if err != nil {
		return err
	}
	if doc.Commitment == nil {
		return errors.New("genesis file has no commitment for the mmr verifier")
	}
	return n.commitments.InitGenesis(*doc.Commitment)
}

// OnStart starts the Prometheus server if instrumentation is enabled and
// the host block feed if there is one.
func (n *Node) OnStart(ctx context.Context) error {
	if n.config.Instrumentation.Prometheus && n.config.Instrumentation.PrometheusListenAddr != "" {
		srv, err := n.startPrometheusServer()
		if err != nil {
			return err
		}
		n.prometheusSrv = srv
	}
	if n.blocks != nil {
		fctx, cancel := context.WithCancel(ctx)
		n.stopFinalize = cancel
		n.finalizeDone = make(chan struct{})
		go n.finalizeRoutine(fctx)
	}
	n.logger.Info("node started",
		"moniker", n.config.Moniker,
		"verifier", n.config.Chain.Verifier,
		"last_confirmed", n.verifier.LastConfirmed(),
		"last_finalized", n.game.LastFinalized(),
	)
	return nil
}

// OnStop stops the host block feed and the Prometheus server, then closes
// the databases.
func (n *Node) OnStop() {
	if n.stopFinalize != nil {
		n.stopFinalize()
		<-n.finalizeDone
	}
	if n.prometheusSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.prometheusSrv.Shutdown(ctx); err != nil {
			n.logger.Error("Prometheus HTTP server Shutdown", "err", err)
		}
	}
	n.closeDBs()
}

// FinalizeBlock closes every game round due by host block height and logs
// what each close did.
func (n *Node) FinalizeBlock(height uint64) ([]relayergame.Outcome, error) {
	outcomes, err := n.game.OnFinalize(height)
	for _, o := range outcomes {
		n.logger.Info("game round closed",
			"height", height, "game", o.GameID, "round", o.Round, "outcome", o.Kind, "winner", o.Winner, "committed", o.Committed)
	}
	if err != nil {
		return outcomes, fmt.Errorf("finalizing host block %d: %w", height, err)
	}
	return outcomes, nil
}

func (n *Node) finalizeRoutine(ctx context.Context) {
	defer close(n.finalizeDone)
	for {
		select {
		case <-ctx.Done():
			return
		case height, ok := <-n.blocks:
			if !ok {
				n.logger.Info("host block feed closed", "last_finalized", n.game.LastFinalized())
				return
			}
			if _, err := n.FinalizeBlock(height); err != nil {
				n.logger.Error("host block not finalized", "height", height, "err", err)
			}
		}
	}
}

// Close releases the databases of a node that was never started.
func (n *Node) Close() {
	if !n.IsRunning() {
		n.closeDBs()
	}
}

func (n *Node) closeDBs() {
	for _, db := range n.dbs {
		if err := db.Close(); err != nil {
			n.logger.Error("closing database", "err", err)
		}
	}
	n.dbs = nil
}

// startPrometheusServer serves /metrics on the instrumentation address.
func (n *Node) startPrometheusServer() (*http.Server, error) {
	cfg := n.config.Instrumentation
	listener, err := net.Listen("tcp", cfg.PrometheusListenAddr)
	if err != nil {
		return nil, fmt.Errorf("prometheus listener: %w", err)
	}
	if cfg.MaxOpenConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxOpenConnections)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("Prometheus HTTP server ListenAndServe", "err", err)
		}
	}()
	n.logger.Info("serving metrics", "addr", listener.Addr().String())
	return srv, nil
}

// Config returns the node configuration.
func (n *Node) Config() *config.Config { return n.config }

// Verifier returns the verifier backing the game.
func (n *Node) Verifier() relay.Verifier { return n.verifier }

// Relay returns the ethereum relay, or nil for the mmr verifier.
func (n *Node) Relay() *ethereum.Relay { return n.relay }

// Commitments returns the mmr verifier, or nil for the ethereum verifier.
func (n *Node) Commitments() *mmr.Verifier { return n.commitments }

// Game returns the relayer game engine.
func (n *Node) Game() *relayergame.Engine { return n.game }

// Ledger returns the node ledger.
func (n *Node) Ledger() ledger.Ledger { return n.ledger }

// EventSwitch returns the switch game events are published on.
func (n *Node) EventSwitch() events.EventSwitch { return n.evsw }
