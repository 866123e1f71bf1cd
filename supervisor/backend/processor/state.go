// Package processor routes a chain's events to the handler that owns their
// kind and holds that chain's ProcessorState (spec §4.C, §4.D).
package processor

import (
	"sync"

	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// ProcessorState is held by exactly one task (the chain processor's
// dispatch loop) and needs no synchronization for that task's own use; the
// mutex here only guards reads from other goroutines (e.g. RPC status
// queries) that want to know whether a chain is currently invalidated.
type ProcessorState struct {
	mu          sync.Mutex
	invalidated *types.DerivedRefPair
}

func (s *ProcessorState) Invalidate(pair types.DerivedRefPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = &pair
}

func (s *ProcessorState) ClearInvalidation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = nil
}

func (s *ProcessorState) IsInvalidated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated != nil
}
