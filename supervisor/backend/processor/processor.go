package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/backend/superevents"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// Metricer is the slice of supervisor/metrics.Metricer the chain processor
// needs, kept narrow so this package does not depend on the concrete
// metrics implementation.
type Metricer interface {
	RecordHandlerResult(chainID string, kind string, ok bool)
	RecordHandlerLatency(chainID string, kind string, seconds float64)
}

// ChainProcessor owns one ProcessorState and runs the single dispatch loop
// that reads a chain's bounded events channel and routes to the matching
// handler (spec §4.D). Exactly one task ever advances this chain's
// LocalUnsafe/LocalSafe heads, which is what gives the storage layer its
// single-writer discipline.
type ChainProcessor struct {
	chainID  eth.ChainID
	events   <-chan superevents.ChainEvent
	handlers *Handlers
	metrics  Metricer
	log      log.Logger
}

func NewChainProcessor(chainID eth.ChainID, events <-chan superevents.ChainEvent, handlers *Handlers, metrics Metricer, logger log.Logger) *ChainProcessor {
	return &ChainProcessor{chainID: chainID, events: events, handlers: handlers, metrics: metrics, log: logger}
}

// Run drains the events channel until ctx is cancelled or the channel is
// closed, returning the first critical error encountered (spec §7
// propagation policy: non-critical errors are logged and counted, critical
// errors terminate the task).
func (p *ChainProcessor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.events:
			if !ok {
				return fmt.Errorf("chain %s: events channel closed", p.chainID)
			}
			if err := p.dispatch(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (p *ChainProcessor) dispatch(ctx context.Context, ev superevents.ChainEvent) error {
	var kind string
	var blockTime uint64
	var err error

	switch e := ev.(type) {
	case superevents.UnsafeBlockEvent:
		kind, blockTime = "unsafe_block", e.Block.Time
		err = p.handlers.HandleUnsafeBlock(ctx, e.Block)
	case superevents.DerivationUpdateEvent:
		kind, blockTime = "derivation_update", e.Pair.Derived.Time
		err = p.handlers.HandleDerivationUpdate(ctx, e.Pair)
	case superevents.DerivationOriginUpdateEvent:
		kind, blockTime = "origin", e.Origin.Time
		err = p.handlers.HandleOrigin(ctx, e.Origin)
	case superevents.ExhaustL1Event:
		kind, blockTime = "exhaust_l1", e.Origin.Time
		err = p.handlers.HandleExhaustL1(ctx, e.Origin)
	case superevents.ReplaceBlockEvent:
		kind, blockTime = "replace_block", e.Block.Time
		err = p.handlers.HandleReplaceBlock(ctx, e.Block)
	case superevents.ResetEvent:
		kind = "reset"
		err = p.handlers.HandleReset(ctx)
	case superevents.FinalizedSourceUpdateEvent:
		kind, blockTime = "finalized", e.Source.Time
		err = p.handlers.HandleFinalized(ctx, e.Source)
	case superevents.CrossUnsafeUpdateEvent:
		kind, blockTime = "cross_unsafe", e.Block.Timestamp
		err = p.handlers.HandleCrossUnsafeUpdate(ctx, e)
	case superevents.CrossSafeUpdateEvent:
		kind, blockTime = "cross_safe", e.Pair.Derived.Timestamp
		err = p.handlers.HandleCrossSafeUpdate(ctx, e)
	case superevents.InvalidateBlockEvent:
		kind, blockTime = "invalidate", e.Block.Timestamp
		err = p.handlers.HandleInvalidateBlock(ctx, e)
	default:
		return fmt.Errorf("chain %s: unknown chain event %T", p.chainID, ev)
	}

	if blockTime != 0 {
		p.metrics.RecordHandlerLatency(p.chainID.String(), kind, time.Since(time.Unix(int64(blockTime), 0)).Seconds())
	}
	p.metrics.RecordHandlerResult(p.chainID.String(), kind, err == nil)

	if err == nil {
		return nil
	}
	if types.IsCritical(err) {
		return fmt.Errorf("chain %s: critical error in %s handler: %w", p.chainID, kind, err)
	}
	p.log.Warn("handler error", "chain", p.chainID, "kind", kind, "err", err)
	return nil
}
