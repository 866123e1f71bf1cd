package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/backend/db"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/backend/superevents"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// LogIndexer is the subset of indexer.Indexer the unsafe-block handler
// needs: trigger catch-up processing, synchronously or not.
type LogIndexer interface {
	ProcessAndStoreLogs(ctx context.Context, block eth.BlockRef) error
	SyncLogs(ctx context.Context, target uint64) error
}

// Handlers bundles the one-per-chain dependencies every event handler
// needs (spec §4.C). Each Handle* method corresponds to one handler and is
// independent of the others; the ChainProcessor picks the right one per
// event kind.
type Handlers struct {
	chainID  eth.ChainID
	db       *db.DB
	depSet   depset.DependencySet
	indexer  LogIndexer
	commands chan<- types.ManagedNodeCommand
	log      log.Logger
	state    *ProcessorState

	// bgCtx is the chain processor's own lifetime context, used to launch
	// the async log catch-up without tying it to a single event's context.
	bgCtx func() context.Context
}

func NewHandlers(chainID eth.ChainID, database *db.DB, depSet depset.DependencySet, indexer LogIndexer, commands chan<- types.ManagedNodeCommand, logger log.Logger, state *ProcessorState, bgCtx func() context.Context) *Handlers {
	return &Handlers{
		chainID: chainID, db: database, depSet: depSet, indexer: indexer,
		commands: commands, log: logger, state: state, bgCtx: bgCtx,
	}
}

func (h *Handlers) sendCommand(cmd types.ManagedNodeCommand) error {
	select {
	case h.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("%w: command channel full for chain %s", types.ErrChannelSendFailed, h.chainID)
	}
}

// HandleUnsafeBlock is the unsafe-block handler (spec §4.C.1).
func (h *Handlers) HandleUnsafeBlock(ctx context.Context, block eth.BlockRef) error {
	if h.state.IsInvalidated() {
		return nil
	}
	activation, err := h.depSet.ActivationTime(h.chainID)
	if err != nil {
		return err
	}
	if block.Time < activation {
		return nil // pre-interop
	}
	// At or past activation: idempotently lay down the zero-state the first
	// time this chain crosses the activation timestamp, then catch the log
	// indexer up to this block either way.
	seal := types.BlockSealFromRef(block)
	if err := h.db.InitialiseLogStorage(seal); err != nil && !errors.Is(err, types.ErrAlreadyInitialised) {
		return err
	}
	go func() {
		if err := h.indexer.SyncLogs(h.bgCtx(), block.Number); err != nil {
			h.log.Error("log catch-up failed", "block", block, "err", err)
		}
	}()
	return nil
}

// HandleDerivationUpdate is the local-safe handler: records a new L2 block
// as derived from its L1 source.
func (h *Handlers) HandleDerivationUpdate(ctx context.Context, pair types.DerivedRefPair) error {
	if h.state.IsInvalidated() {
		return nil
	}
	if err := h.db.SaveDerivedBlock(pair); err != nil {
		if errors.Is(err, types.ErrFuture) {
			// derivation storage not initialised yet for this chain; the
			// genesis pair must arrive first. Not our job to initialise it
			// here, so return it wrapped; the chain processor logs it and
			// drops the update.
			return fmt.Errorf("%w: derivation storage not initialised for chain %s", types.ErrFuture, h.chainID)
		}
		return err
	}
	return nil
}

// HandleOrigin is the origin handler (spec §4.C.4).
func (h *Handlers) HandleOrigin(ctx context.Context, origin eth.BlockRef) error {
	if h.state.IsInvalidated() {
		return nil
	}
	err := h.db.SaveSourceBlock(origin)
	if errors.Is(err, types.ErrBlockOutOfOrder) {
		return h.sendCommand(types.ResetCommand{})
	}
	return err
}

// HandleFinalized is the finalized handler (spec §4.C.3).
func (h *Handlers) HandleFinalized(ctx context.Context, source eth.BlockRef) error {
	derived, err := h.db.UpdateFinalizedUsingSource(source.ID())
	if err != nil {
		return err
	}
	return h.sendCommand(types.UpdateFinalizedCommand{ID: derived.ID()})
}

// HandleExhaustL1 notes that the managed node has run out of L1 data to
// derive from; the core does not re-derive, so this is observational.
func (h *Handlers) HandleExhaustL1(ctx context.Context, origin eth.BlockRef) error {
	h.log.Info("managed node exhausted L1 data", "chain", h.chainID, "origin", origin)
	return nil
}

// HandleReplaceBlock clears any standing invalidation and re-indexes the
// replacement block the node produced in its place.
func (h *Handlers) HandleReplaceBlock(ctx context.Context, block eth.BlockRef) error {
	h.state.ClearInvalidation()
	return h.indexer.ProcessAndStoreLogs(ctx, block)
}

// HandleReset clears standing invalidation; the managed node is expected to
// resubscribe and replay its state from genesis or its last checkpoint.
func (h *Handlers) HandleReset(ctx context.Context) error {
	h.state.ClearInvalidation()
	return nil
}

// HandleCrossUnsafeUpdate mirrors a cross-unsafe promotion to the managed
// node (spec §4.C.2).
func (h *Handlers) HandleCrossUnsafeUpdate(ctx context.Context, ev superevents.CrossUnsafeUpdateEvent) error {
	return h.sendCommand(types.UpdateCrossUnsafeCommand{ID: ev.Block.ID()})
}

// HandleCrossSafeUpdate mirrors a cross-safe promotion to the managed node
// (spec §4.C.2).
func (h *Handlers) HandleCrossSafeUpdate(ctx context.Context, ev superevents.CrossSafeUpdateEvent) error {
	return h.sendCommand(types.UpdateCrossSafeCommand{Source: ev.Pair.Source.ID(), Derived: ev.Pair.Derived.ID()})
}

// HandleInvalidateBlock marks the chain invalidated pending a replacement
// block and forwards the invalidation to the managed node.
func (h *Handlers) HandleInvalidateBlock(ctx context.Context, ev superevents.InvalidateBlockEvent) error {
	pair, err := h.db.GetDerivedBlock(ev.Block.Number)
	if err == nil {
		h.state.Invalidate(types.DerivedRefPair{
			Source:  eth.BlockRef{Hash: pair.Source.Hash, Number: pair.Source.Number, Time: pair.Source.Timestamp},
			Derived: eth.BlockRef{Hash: pair.Derived.Hash, Number: pair.Derived.Number, Time: pair.Derived.Timestamp},
		})
	}
	return h.sendCommand(types.InvalidateBlockCommand{Seal: ev.Block})
}
