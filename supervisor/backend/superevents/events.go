// Package superevents defines the closed set of event and command variants
// that flow across the supervisor's actor channels. Dispatch is a type
// switch on the concrete variant (spec §9: "avoid trait-object vtables
// unless a plugin surface is truly required") rather than an interface with
// virtual handler methods.
package superevents

import (
	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// ChainEvent is anything the chain processor's single dispatch loop can
// receive on a chain's bounded events channel: either a translation of a
// ManagedEvent from that chain's own node, or a broadcast from the L1
// watcher or a safety promoter.
type ChainEvent interface {
	isChainEvent()
}

// From the managed node (spec §4.E fan-out):

type UnsafeBlockEvent struct{ Block eth.BlockRef }

type DerivationUpdateEvent struct{ Pair types.DerivedRefPair }

type DerivationOriginUpdateEvent struct{ Origin eth.BlockRef }

type ExhaustL1Event struct{ Origin eth.BlockRef }

type ReplaceBlockEvent struct{ Block eth.BlockRef }

type ResetEvent struct{}

// Broadcast by the L1 watcher (spec §4.F) to every chain:

type FinalizedSourceUpdateEvent struct{ Source eth.BlockRef }

// Broadcast by a safety promoter (spec §4.G) back to the owning chain, so
// the chain processor's plumbing handlers mirror the new head to the
// managed node:

type CrossUnsafeUpdateEvent struct{ Block types.BlockSeal }

type CrossSafeUpdateEvent struct{ Pair types.DerivedBlockSealPair }

type InvalidateBlockEvent struct{ Block types.BlockSeal }

func (UnsafeBlockEvent) isChainEvent()            {}
func (DerivationUpdateEvent) isChainEvent()       {}
func (DerivationOriginUpdateEvent) isChainEvent() {}
func (ExhaustL1Event) isChainEvent()              {}
func (ReplaceBlockEvent) isChainEvent()           {}
func (ResetEvent) isChainEvent()                  {}
func (FinalizedSourceUpdateEvent) isChainEvent()  {}
func (CrossUnsafeUpdateEvent) isChainEvent()      {}
func (CrossSafeUpdateEvent) isChainEvent()        {}
func (InvalidateBlockEvent) isChainEvent()         {}

// FromManagedEvent translates a wire ManagedEvent into the corresponding
// ChainEvent. Exactly one field of ev is expected to be set.
func FromManagedEvent(ev types.ManagedEvent) ChainEvent {
	switch {
	case ev.Reset != nil:
		return ResetEvent{}
	case ev.UnsafeBlock != nil:
		return UnsafeBlockEvent{Block: *ev.UnsafeBlock}
	case ev.DerivationUpdate != nil:
		return DerivationUpdateEvent{Pair: *ev.DerivationUpdate}
	case ev.DerivationOriginUpdate != nil:
		return DerivationOriginUpdateEvent{Origin: *ev.DerivationOriginUpdate}
	case ev.ExhaustL1 != nil:
		return ExhaustL1Event{Origin: *ev.ExhaustL1}
	case ev.ReplaceBlock != nil:
		return ReplaceBlockEvent{Block: *ev.ReplaceBlock}
	default:
		return nil
	}
}
