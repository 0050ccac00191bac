// Package app wires the bridge components together for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sei-bridge/config"
	"sei-bridge/pkg/balance"
	"sei-bridge/pkg/blocks"
	"sei-bridge/pkg/chainreg"
	"sei-bridge/pkg/metrics"
	"sei-bridge/pkg/relay"
	"sei-bridge/pkg/session"
	"sei-bridge/pkg/types"
	"sei-bridge/pkg/wallet/cosmos"
	"sei-bridge/pkg/wallet/evm"
	"sei-bridge/pkg/workflow"
)

// Approver asks the user to confirm a wallet action.
type Approver func(ctx context.Context, prompt string) (bool, error)

// Options configures an App. Only Config is required.
type Options struct {
	Config   *config.Config
	Approver Approver
	Logger   *zap.Logger

	// Overrides for the network facing parts, mostly for tests.
	Dialer   evm.Dialer
	Relay    relay.Relay
	Heads    blocks.HeadSource
	Registry *chainreg.Registry
}

// App holds one bridge session: both wallets, the workflow and the
// observers around them.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	Registry *chainreg.Registry
	Sessions *session.Manager
	Workflow *workflow.Workflow
	Balances *balance.Watcher
	Metrics  *metrics.Metrics
	Relay    relay.Relay

	source  *evm.Provider
	heads   blocks.HeadSource
	dialled *ethclient.Client // heads connection opened by the app itself

	trackerMu   sync.Mutex
	tracker     *blocks.Tracker
	unsubscribe func()
}

// View is a read-only picture of the whole app.
type View struct {
	Workflow    types.WorkflowSnapshot
	Source      *types.WalletSession
	Destination *types.WalletSession
	SourceBal   balance.Status
	DestBal     balance.Status
	BlockHeight uint64
}

// New builds the app from opts.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app needs a configuration")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := opts.Registry
	if registry == nil {
		var err error
		registry, err = chainreg.NewRegistry(cfg.Destination.RegistryPath)
		if err != nil {
			return nil, err
		}
	}

	chain := ChainDefinition(cfg, registry)

	rel := opts.Relay
	if rel == nil {
		var err error
		rel, err = relay.New(cfg.Relay, logger.Named("relay"))
		if err != nil {
			return nil, fmt.Errorf("failed to create relay client: %w", err)
		}
	}

	m := metrics.New(logger)

	var approve evm.Approver
	var approveCosmos cosmos.Approver
	if opts.Approver != nil && !cfg.AutoConfirm {
		approve = evm.Approver(opts.Approver)
		approveCosmos = cosmos.Approver(opts.Approver)
	}

	source := evm.NewProvider(cfg.Source.Config, opts.Dialer, approve, logger.Named("evm"))
	dest := cosmos.NewProvider(cfg.Destination.Config, registry, approveCosmos, logger.Named("cosmos"))

	sessions := session.NewManager(session.Options{
		Source:          source,
		Destination:     dest,
		RequiredChainID: big.NewInt(cfg.Source.ChainID),
		Chain:           chain,
		Logger:          logger.Named("session"),
	})

	reader := balance.NewReader(cfg.BalanceReaderConfig(chain.REST), logger.Named("balance"))

	wf := workflow.New(workflow.Options{
		Sessions:         sessions,
		Relay:            rel,
		Recorder:         m,
		Logger:           logger.Named("workflow"),
		SourceChain:      cfg.Source.ChainName,
		DestinationChain: cfg.Destination.ChainName,
		Denom:            cfg.Destination.RelayDenom,
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		Registry: registry,
		Sessions: sessions,
		Workflow: wf,
		Balances: balance.NewWatcher(reader, sessions, m, logger.Named("balance")),
		Metrics:  m,
		Relay:    rel,
		source:   source,
		heads:    opts.Heads,
	}, nil
}

// ChainDefinition returns the destination chain as registered, or the
// built-in definition when the registry does not know it yet.
func ChainDefinition(cfg *config.Config, registry *chainreg.Registry) types.ChainDefinition {
	if def, ok := registry.Get(cfg.Destination.ChainID); ok {
		return def
	}
	def := chainreg.DefaultSeiTestnet()
	if cfg.Destination.REST != "" {
		def.REST = cfg.Destination.REST
	}
	return def
}

// Connect connects both wallets, source first.
func (a *App) Connect(ctx context.Context) error {
	if _, err := a.Sessions.ConnectSource(ctx); err != nil {
		return err
	}
	if _, err := a.Sessions.ConnectDestination(ctx); err != nil {
		return err
	}
	return nil
}

// View returns the current state of the app.
func (a *App) View() View {
	v := View{
		Workflow:  a.Workflow.Snapshot(),
		SourceBal: a.Balances.Source(),
		DestBal:   a.Balances.Destination(),
	}
	if s, ok := a.Sessions.Session(types.RoleSource); ok {
		v.Source = &s
	}
	if s, ok := a.Sessions.Session(types.RoleDestination); ok {
		v.Destination = &s
	}

	a.trackerMu.Lock()
	if a.tracker != nil {
		v.BlockHeight = a.tracker.Latest()
	}
	a.trackerMu.Unlock()

	return v
}

// Monitor keeps balances and the block height current until ctx is done.
// Balances are re-read on every session change and every new source block.
func (a *App) Monitor(ctx context.Context) error {
	trigger := make(chan struct{}, 1)
	poke := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	stop := a.Sessions.Subscribe(func(ev session.Event) {
		a.Metrics.RecordSessionEvent(ev.Role, string(ev.Kind))
		if ev.Role == types.RoleSource {
			switch ev.Kind {
			case session.EventConnected, session.EventReplaced:
				a.followBlocks(ctx, poke)
			case session.EventDisconnected:
				a.stopBlocks()
			}
		}
		poke()
	})
	defer stop()
	defer a.stopBlocks()

	if _, ok := a.Sessions.Session(types.RoleSource); ok {
		a.followBlocks(ctx, poke)
	}

	g.Go(func() error {
		return a.Balances.Run(ctx, trigger)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// followBlocks (re)subscribes to source heads. Failing to follow blocks
// only costs liveness, so it is logged and not returned.
func (a *App) followBlocks(ctx context.Context, onBlock func()) {
	a.trackerMu.Lock()
	defer a.trackerMu.Unlock()

	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}

	if a.tracker == nil {
		tracker, err := a.newTracker(ctx)
		if err != nil {
			a.logger.Warn("block tracking disabled", zap.Error(err))
			return
		}
		a.tracker = tracker
	}

	unsubscribe, err := a.tracker.Subscribe(ctx, func(uint64) { onBlock() })
	if err != nil {
		a.logger.Warn("failed to follow source blocks", zap.Error(err))
		return
	}
	a.unsubscribe = unsubscribe
}

func (a *App) newTracker(ctx context.Context) (*blocks.Tracker, error) {
	cfg := a.cfg.BlocksConfig()
	if a.heads != nil {
		return blocks.NewTracker(a.heads, cfg, a.Metrics, a.logger.Named("blocks")), nil
	}
	tracker, client, err := blocks.Dial(ctx, cfg, a.Metrics, a.logger.Named("blocks"))
	if err != nil {
		return nil, err
	}
	a.heads = client
	a.dialled = client
	return tracker, nil
}

func (a *App) stopBlocks() {
	a.trackerMu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.trackerMu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Close disconnects both wallets and releases the source connections.
func (a *App) Close() {
	a.stopBlocks()
	a.Sessions.Disconnect(types.RoleSource)
	a.Sessions.Disconnect(types.RoleDestination)
	a.source.Close()

	a.trackerMu.Lock()
	if a.dialled != nil {
		a.dialled.Close()
		a.dialled = nil
		a.heads = nil
		a.tracker = nil
	}
	a.trackerMu.Unlock()
}
