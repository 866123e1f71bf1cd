// Package backend wires together one actor graph per tracked chain (a
// ManagedNode, an Indexer, a ChainProcessor, and two Promoters) plus the
// shared L1 watcher, and exposes the result as a frontend.Backend (spec §2,
// "service.go"). Grounded on the teacher's op-supervisor SupervisorBackend:
// same started/Start/Stop/Close shape, same per-chain slice-of-actors
// construction, generalized from the teacher's single ChainMonitor per
// chain into this repo's five-actor-per-chain graph.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-labs/chainwatch/op-service/clock"
	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/backend/db"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/backend/indexer"
	"github.com/meridian-labs/chainwatch/supervisor/backend/l1source"
	"github.com/meridian-labs/chainwatch/supervisor/backend/l1watcher"
	"github.com/meridian-labs/chainwatch/supervisor/backend/processor"
	"github.com/meridian-labs/chainwatch/supervisor/backend/promoter"
	"github.com/meridian-labs/chainwatch/supervisor/backend/superevents"
	"github.com/meridian-labs/chainwatch/supervisor/backend/syncnode"
	"github.com/meridian-labs/chainwatch/supervisor/backend/validator"
	"github.com/meridian-labs/chainwatch/supervisor/config"
	"github.com/meridian-labs/chainwatch/supervisor/frontend"
	"github.com/meridian-labs/chainwatch/supervisor/metrics"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// eventsChannelSize bounds each chain's event channel; the handlers'
// non-blocking sendCommand and this channel's own blocking send give the
// chain processor back-pressure onto its managed node rather than an
// unbounded queue (spec §4.D).
const eventsChannelSize = 256

// L1 poll intervals for the shared watcher (spec §4.F): latest polls near
// L1's ~2s slot time, finalized polls less often since it only advances
// once per epoch.
const (
	l1LatestPollInterval    = 2 * time.Second
	l1FinalizedPollInterval = 12 * time.Second
)

// chainActors is one tracked chain's full actor set: everything
// SupervisorBackend.Start/Stop needs to drive and tear down, plus the
// handles its frontend.Backend methods read from directly.
type chainActors struct {
	chainID eth.ChainID
	db      *db.DB
	node    *syncnode.ManagedNode
	client  *syncnode.Client
	indexer *indexer.Indexer

	processor  *processor.ChainProcessor
	crossUnsafe *promoter.Promoter
	crossSafe   *promoter.Promoter

	events   chan superevents.ChainEvent
	commands chan types.ManagedNodeCommand
}

// SupervisorBackend is the orchestrator: it owns every chain's actor graph,
// the shared L1 watcher, and the dependency set they're all built from, and
// satisfies frontend.Backend for the RPC surface.
type SupervisorBackend struct {
	log     log.Logger
	metrics metrics.Metricer
	depSet  depset.DependencySet

	dbFactory *db.Factory
	chains    map[eth.ChainID]*chainActors
	validator *validator.Validator

	l1Client *l1source.Client
	watcher  *l1watcher.Watcher

	started atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

var _ frontend.Backend = (*SupervisorBackend)(nil)

// NewSupervisorBackend dials L1 and every configured managed node, opens
// each chain's storage, and wires the actor graph, but starts nothing: call
// Start to begin running it.
func NewSupervisorBackend(ctx context.Context, logger log.Logger, m metrics.Metricer, cfg *config.Config) (*SupervisorBackend, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	l1Client, err := l1source.Dial(ctx, cfg.L1RPC)
	if err != nil {
		return nil, fmt.Errorf("dial l1 rpc %s: %w", cfg.L1RPC, err)
	}

	dbFactory := db.NewFactory(cfg.Datadir, logger)
	v := validator.New(dbFactory, cfg.DependencySetSource)

	sb := &SupervisorBackend{
		log:       logger,
		metrics:   m,
		depSet:    cfg.DependencySetSource,
		dbFactory: dbFactory,
		chains:    make(map[eth.ChainID]*chainActors),
		validator: v,
		l1Client:  l1Client,
	}

	chainEvents := make(map[eth.ChainID]chan<- superevents.ChainEvent)
	for chainID, nodeCfg := range cfg.SyncSources.Nodes {
		actors, err := sb.newChainActors(ctx, chainID, nodeCfg, logger)
		if err != nil {
			sb.closeOpened()
			return nil, fmt.Errorf("wire chain %s: %w", chainID, err)
		}
		sb.chains[chainID] = actors
		chainEvents[chainID] = actors.events
	}

	sb.watcher = l1watcher.New(l1Client, dbFactory, cfg.DependencySetSource, chainEvents, m, logger.New("component", "l1watcher"))
	return sb, nil
}

func (sb *SupervisorBackend) newChainActors(ctx context.Context, chainID eth.ChainID, nodeCfg syncnode.CLISyncNodeConfig, logger log.Logger) (*chainActors, error) {
	secret, err := nodeCfg.Secret()
	if err != nil {
		return nil, fmt.Errorf("jwt secret: %w", err)
	}
	client, err := syncnode.DialWithRetry(ctx, nodeCfg.URL, secret, logger.New("chain", chainID), syncnode.DefaultReconnectLimiter())
	if err != nil {
		return nil, fmt.Errorf("dial managed node: %w", err)
	}
	return sb.buildChainActors(chainID, client, logger)
}

// buildChainActors wires one chain's actor graph around an already-dialed
// managed-node client; used both by the initial construction path (which
// dials with DialWithRetry) and addL2RPC (which has already dialed once to
// learn the chain ID and reuses that connection).
func (sb *SupervisorBackend) buildChainActors(chainID eth.ChainID, client *syncnode.Client, logger log.Logger) (*chainActors, error) {
	chainLog := logger.New("chain", chainID)

	database, err := sb.dbFactory.ForChain(chainID)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	events := make(chan superevents.ChainEvent, eventsChannelSize)
	commands := make(chan types.ManagedNodeCommand, eventsChannelSize)

	node := syncnode.NewManagedNode(chainID, client, database, events, commands, chainLog)
	ix := indexer.New(chainID, database, client, chainLog)

	state := &processor.ProcessorState{}
	handlers := processor.NewHandlers(chainID, database, sb.depSet, ix, commands, chainLog, state, context.Background)
	proc := processor.NewChainProcessor(chainID, events, handlers, sb.metrics, chainLog)

	crossUnsafe := promoter.New(chainID, types.CrossUnsafe, types.LocalUnsafe, database, sb.validator, events, sb.metrics, chainLog)
	crossSafe := promoter.New(chainID, types.CrossSafe, types.LocalSafe, database, sb.validator, events, sb.metrics, chainLog)

	return &chainActors{
		chainID: chainID, db: database, node: node, client: client, indexer: ix,
		processor: proc, crossUnsafe: crossUnsafe, crossSafe: crossSafe,
		events: events, commands: commands,
	}, nil
}

// Start launches every actor's run loop under a shared errgroup: the first
// one to return a non-nil error cancels the rest (spec §7's critical-error
// propagation policy applied at the service level).
func (sb *SupervisorBackend) Start(ctx context.Context) error {
	if !sb.started.CompareAndSwap(false, true) {
		return errors.New("already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	sb.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	sb.group = group

	for _, actors := range sb.chains {
		actors := actors
		group.Go(func() error { return actors.node.Run(groupCtx) })
		group.Go(func() error { return actors.processor.Run(groupCtx) })
		blockTime, err := sb.depSet.BlockTime(actors.chainID)
		if err != nil {
			cancel()
			return fmt.Errorf("block time for chain %s: %w", actors.chainID, err)
		}
		interval := time.Duration(blockTime) * time.Second
		group.Go(func() error { return actors.crossUnsafe.Run(groupCtx, clock.SystemClock{}.NewTicker(interval)) })
		group.Go(func() error { return actors.crossSafe.Run(groupCtx, clock.SystemClock{}.NewTicker(interval)) })
	}
	group.Go(func() error {
		return sb.watcher.Run(groupCtx,
			clock.SystemClock{}.NewTicker(l1LatestPollInterval),
			clock.SystemClock{}.NewTicker(l1FinalizedPollInterval))
	})
	sb.metrics.RecordUp()
	return nil
}

// Stop cancels every running actor and waits for the errgroup to drain,
// then closes storage and managed-node connections.
func (sb *SupervisorBackend) Stop(ctx context.Context) error {
	if !sb.started.CompareAndSwap(true, false) {
		return errors.New("already stopped")
	}
	if sb.cancel != nil {
		sb.cancel()
	}
	var errs error
	if sb.group != nil {
		if err := sb.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = errors.Join(errs, fmt.Errorf("actor group: %w", err))
		}
	}
	return errors.Join(errs, sb.Close())
}

// Close releases every resource NewSupervisorBackend opened, without
// requiring Start/Stop to have run first; safe to call more than once.
func (sb *SupervisorBackend) Close() error {
	var errs error
	sb.closeOpened()
	if sb.l1Client != nil {
		sb.l1Client.Close()
	}
	if err := sb.dbFactory.Close(); err != nil {
		errs = errors.Join(errs, err)
	}
	return errs
}

func (sb *SupervisorBackend) closeOpened() {
	var wg sync.WaitGroup
	for _, actors := range sb.chains {
		actors := actors
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = actors.client.Close()
		}()
	}
	wg.Wait()
}
