// Package l1watcher implements the L1 watcher and reorg handler (spec
// §4.F): two independent polling streams against the L1 node, one at the
// latest tag and one at finalized, each deduplicated against the previously
// emitted identity, with a common-ancestor walk-back on reorg.
package l1watcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/meridian-labs/chainwatch/op-service/clock"
	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/op-service/locks"
	"github.com/meridian-labs/chainwatch/supervisor/backend/db"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/backend/superevents"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// maxReorgWalkback bounds how far back the common-ancestor search looks
// before giving up; exceeding it is a critical error (spec §4.F).
const maxReorgWalkback = 500

// L1Source is the subset of an L1 RPC client the watcher needs: polling by
// label and walking an ancestor chain back by hash.
type L1Source interface {
	BlockRefByLabel(ctx context.Context, label eth.BlockLabel) (eth.BlockRef, error)
	BlockRefByHash(ctx context.Context, hash common.Hash) (eth.BlockRef, error)
}

// Factory is the subset of db.Factory the watcher needs to reach every
// tracked chain's storage.
type Factory interface {
	ForChain(chainID eth.ChainID) (*db.DB, error)
}

// Metricer is the slice of supervisor/metrics.Metricer the watcher needs.
type Metricer interface {
	RecordL1Reorg(depth float64)
}

// Watcher polls L1 and broadcasts finalized-source updates and rewind
// signals to every tracked chain's events channel.
type Watcher struct {
	l1      L1Source
	factory Factory
	depSet  depset.DependencySet

	finalized locks.RWValue[eth.BlockID]
	latest    eth.BlockID // only touched by the watcher's own goroutine

	chainEvents map[eth.ChainID]chan<- superevents.ChainEvent

	metrics Metricer
	log     log.Logger
}

func New(l1 L1Source, factory Factory, depSet depset.DependencySet,
	chainEvents map[eth.ChainID]chan<- superevents.ChainEvent, metrics Metricer, logger log.Logger) *Watcher {
	return &Watcher{l1: l1, factory: factory, depSet: depSet, chainEvents: chainEvents, metrics: metrics, log: logger}
}

// GetFinalizedL1 returns the current finalized-L1 reference cell.
func (w *Watcher) GetFinalizedL1() (eth.BlockID, bool) {
	return w.finalized.Get()
}

// Run ticks both polling streams until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, latestTick, finalizedTick clock.Ticker) error {
	defer latestTick.Stop()
	defer finalizedTick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-latestTick.Ch():
			if err := w.pollLatest(ctx); err != nil {
				if types.IsCritical(err) {
					return err
				}
				w.log.Warn("failed to poll latest L1 block", "err", err)
			}
		case <-finalizedTick.Ch():
			if err := w.pollFinalized(ctx); err != nil {
				w.log.Warn("failed to poll finalized L1 block", "err", err)
			}
		}
	}
}

func (w *Watcher) pollFinalized(ctx context.Context) error {
	ref, err := w.l1.BlockRefByLabel(ctx, eth.Finalized)
	if err != nil {
		return fmt.Errorf("fetch finalized L1 block: %w", err)
	}
	old, ok := w.finalized.Get()
	if ok && ref.Number <= old.Number {
		return nil
	}
	w.finalized.Set(ref.ID())
	w.broadcastAll(superevents.FinalizedSourceUpdateEvent{Source: ref})
	return nil
}

func (w *Watcher) pollLatest(ctx context.Context) error {
	ref, err := w.l1.BlockRefByLabel(ctx, eth.Latest)
	if err != nil {
		return fmt.Errorf("fetch latest L1 block: %w", err)
	}
	if ref.ID() == w.latest {
		return nil
	}
	if ref.Number <= w.latest.Number && w.latest != (eth.BlockID{}) {
		return nil
	}
	if w.latest == (eth.BlockID{}) || ref.ParentHash == w.latest.Hash {
		w.latest = ref.ID()
		return nil
	}
	return w.handleReorg(ctx, ref)
}

// handleReorg walks the incoming L1 chain back by hash until it finds a
// block recorded as a source block on every tracked chain, then rewinds
// every chain's derivation state to that common ancestor.
func (w *Watcher) handleReorg(ctx context.Context, head eth.BlockRef) error {
	w.log.Warn("L1 reorg detected", "previous", w.latest, "incoming", head.ID())
	cursor := head
	for depth := 0; depth <= maxReorgWalkback; depth++ {
		if depth > 0 {
			next, err := w.l1.BlockRefByHash(ctx, cursor.ParentHash)
			if err != nil {
				return fmt.Errorf("walk back L1 ancestor at %s: %w", cursor.ParentHash, err)
			}
			cursor = next
		}
		if ok, err := w.isCommonAncestor(cursor.ID()); err != nil {
			return err
		} else if ok {
			w.metrics.RecordL1Reorg(float64(depth))
			return w.rewindAllToSource(cursor, head)
		}
	}
	return fmt.Errorf("%w: no common ancestor found within %d blocks of L1 reorg", types.ErrConflict, maxReorgWalkback)
}

func (w *Watcher) isCommonAncestor(candidate eth.BlockID) (bool, error) {
	for _, chainID := range w.depSet.Chains() {
		chainDB, err := w.factory.ForChain(chainID)
		if err != nil {
			return false, fmt.Errorf("open chain %s: %w", chainID, err)
		}
		seal, err := chainDB.GetSourceAtNumber(candidate.Number)
		if errors.Is(err, types.ErrFuture) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if seal.Hash != candidate.Hash {
			return false, nil
		}
	}
	return true, nil
}

// rewindAllToSource truncates every chain's derivation state to the common
// ancestor, then rebroadcasts it as a DerivationOriginUpdateEvent: each
// chain's origin handler will attempt to re-save this exact source block,
// fail strict monotonicity (it's already the latest recorded source after
// the rewind), and take the BlockOutOfOrder→Reset path to resynchronize its
// managed node, per spec §4.F.
func (w *Watcher) rewindAllToSource(ancestor eth.BlockRef, head eth.BlockRef) error {
	for _, chainID := range w.depSet.Chains() {
		chainDB, err := w.factory.ForChain(chainID)
		if err != nil {
			return fmt.Errorf("open chain %s: %w", chainID, err)
		}
		if _, _, err := chainDB.RewindToSource(ancestor.ID()); err != nil {
			return fmt.Errorf("rewind chain %s to source %s: %w", chainID, ancestor.ID(), err)
		}
	}
	w.latest = head.ID()
	w.broadcastAll(superevents.DerivationOriginUpdateEvent{Origin: ancestor})
	return nil
}

func (w *Watcher) broadcastAll(ev superevents.ChainEvent) {
	for chainID, ch := range w.chainEvents {
		select {
		case ch <- ev:
		default:
			w.log.Warn("chain events channel full, dropping L1 broadcast", "chain", chainID)
		}
	}
}
