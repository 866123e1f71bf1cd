package syncnode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

const (
	nodeTimeout     = 10 * time.Second
	internalTimeout = 2 * time.Second
)

// resetTracker manages a bisection between consistent and inconsistent
// blocks and is used to prepare a reset request to be handled by a managed
// node (spec §4.E supplement: reset bisection).
type resetTracker struct {
	a eth.BlockID
	z eth.BlockID

	log     log.Logger
	backend resetBackend
}

// resetBackend is what the bisection needs to query: the managed node's own
// view of a block number, and whether a block is still consistent with this
// chain's stored local-safe derivation chain.
type resetBackend interface {
	BlockIDByNumber(ctx context.Context, n uint64) (eth.BlockID, error)
	IsLocalSafe(ctx context.Context, block eth.BlockID) error
}

func newResetTracker(logger log.Logger, b resetBackend) *resetTracker {
	return &resetTracker{log: logger, backend: b}
}

type resetTarget struct {
	Target     eth.BlockID
	PreInterop bool
}

// FindResetTarget starts the bisection process over [a, z] and returns the
// highest block both the node and the local-safe chain agree on.
func (t *resetTracker) FindResetTarget(ctx context.Context, a, z eth.BlockID) (resetTarget, error) {
	t.log.Info("beginning reset", "a", a, "z", z)
	t.a = a
	t.z = z

	nodeCtx, nCancel := context.WithTimeout(ctx, nodeTimeout)
	defer nCancel()

	// If z is already consistent, the node is merely ahead: skip bisection.
	nodeZ, err := t.backend.BlockIDByNumber(nodeCtx, t.z.Number)
	if err == nil && nodeZ == t.z {
		return resetTarget{Target: t.z}, nil
	}

	// If the node doesn't even know the start of the range, there's no
	// common reference point: fall back to a pre-Interop reset.
	nodeA, err := t.backend.BlockIDByNumber(nodeCtx, t.a.Number)
	if errors.Is(err, types.ErrUnknownToNode) {
		t.log.Debug("start of range is not known to node, returning pre-Interop reset target", "a", t.a)
		return resetTarget{PreInterop: true}, nil
	} else if err != nil {
		return resetTarget{}, fmt.Errorf("failed to query start block: %w", err)
	} else if nodeA != t.a {
		t.log.Debug("start of range mismatch between node and supervisor, returning pre-Interop reset target", "a", t.a)
		return resetTarget{PreInterop: true}, nil
	}

	for {
		if t.a.Number+1 >= t.z.Number {
			t.log.Debug("reset target converged, resetting to start of range", "a", t.a, "z", t.z)
			return resetTarget{Target: t.a}, nil
		}
		if err := t.bisect(ctx); err != nil {
			return resetTarget{}, fmt.Errorf("failed to bisect range [%s, %s]: %w", t.a, t.z, err)
		}
	}
}

// bisect halves the search range, pulling the end back if the midpoint is
// either unknown to the node or inconsistent with the local-safe chain,
// else pushing the start forward.
func (t *resetTracker) bisect(ctx context.Context) error {
	internalCtx, iCancel := context.WithTimeout(ctx, internalTimeout)
	defer iCancel()
	nodeCtx, nCancel := context.WithTimeout(ctx, nodeTimeout)
	defer nCancel()

	i := (t.a.Number + t.z.Number) / 2
	nodeI, err := t.backend.BlockIDByNumber(nodeCtx, i)
	if errors.Is(err, types.ErrUnknownToNode) {
		t.log.Debug("midpoint of range is not known to node, pulling back end of range", "i", i)
		t.z = eth.BlockID{Number: i}
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to query midpoint block number %d: %w", i, err)
	}

	if err := t.backend.IsLocalSafe(internalCtx, nodeI); errors.Is(err, types.ErrFuture) || errors.Is(err, types.ErrConflict) {
		t.log.Debug("midpoint of range is inconsistent, pulling back end of range", "i", i)
		t.z = nodeI
	} else if err != nil {
		return fmt.Errorf("failed to check if midpoint %d is local safe: %w", i, err)
	} else {
		t.log.Debug("midpoint of range is consistent, pushing up start of range", "i", i)
		t.a = nodeI
	}
	return nil
}
