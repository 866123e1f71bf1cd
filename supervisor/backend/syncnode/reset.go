package syncnode

import (
	"context"
	"errors"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/backend/db"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// managedNodeResetBackend is the shim handed to the resetTracker so it can
// query the managed node and this chain's local-safe chain during bisection.
type managedNodeResetBackend struct {
	client RPCClient
	db     *db.DB
}

var _ resetBackend = (*managedNodeResetBackend)(nil)

func (m *managedNodeResetBackend) BlockIDByNumber(ctx context.Context, n uint64) (eth.BlockID, error) {
	var ref eth.BlockRef
	if err := m.client.Call(ctx, &ref, "interop_blockRefByNumber", n); err != nil {
		return eth.BlockID{}, err
	}
	return ref.ID(), nil
}

func (m *managedNodeResetBackend) IsLocalSafe(ctx context.Context, block eth.BlockID) error {
	return m.db.IsLocalSafe(block)
}

// initiateReset runs the full reset flow: find the activation block as the
// bisection's lower bound, bisect against the node's head z, and either
// request a pre-Interop reset or push the resulting heads to the node.
func (m *ManagedNode) initiateReset(ctx context.Context) error {
	m.resetMu.Lock()
	defer m.resetMu.Unlock()

	resetCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	activation, err := m.db.ActivationBlock()
	if errors.Is(err, types.ErrFuture) {
		m.log.Info("no activation block yet, requesting pre-Interop reset")
		return m.client.Call(resetCtx, nil, "interop_reset",
			eth.BlockID{}, eth.BlockID{}, eth.BlockID{}, eth.BlockID{}, eth.BlockID{})
	} else if err != nil {
		return err
	}

	// z is the far end of the bisection range: this chain's own most recent
	// known unsafe head, since that's the highest block the node could
	// possibly still agree with us about.
	z, err := m.db.GetSafetyHeadRef(types.LocalUnsafe)
	if err != nil {
		return err
	}

	target, err := m.tracker.FindResetTarget(resetCtx, activation.Derived.ID(), z.ID())
	if err != nil {
		return err
	}
	if target.PreInterop {
		m.log.Info("bisection results in pre-Interop reset")
		return m.client.Call(resetCtx, nil, "interop_reset",
			eth.BlockID{}, eth.BlockID{}, eth.BlockID{}, eth.BlockID{}, eth.BlockID{})
	}
	m.log.Info("bisection found reset target", "target", target.Target)
	return m.resetHeadsFromTarget(resetCtx, target.Target)
}

// resetHeadsFromTarget picks unsafe/safe/cross/finalized heads around target
// and pushes them to the node in one reset call.
func (m *ManagedNode) resetHeadsFromTarget(ctx context.Context, target eth.BlockID) error {
	lUnsafe := target
	lSafe := target

	xUnsafe := target
	if head, err := m.db.GetSafetyHeadRef(types.CrossUnsafe); err == nil && head.Number < target.Number {
		xUnsafe = head.ID()
	} else if err != nil && !errors.Is(err, types.ErrFuture) {
		return err
	}

	xSafe := target
	if head, err := m.db.GetSafetyHeadRef(types.CrossSafe); err == nil && head.Number < target.Number {
		xSafe = head.ID()
	} else if err != nil && !errors.Is(err, types.ErrFuture) {
		return err
	}

	finalized := target
	if head, err := m.db.GetSafetyHeadRef(types.Finalized); err == nil && head.Number < target.Number {
		finalized = head.ID()
	} else if errors.Is(err, types.ErrFuture) {
		finalized = eth.BlockID{}
	} else if err != nil {
		return err
	}

	m.log.Info("triggering reset on node",
		"localUnsafe", lUnsafe, "crossUnsafe", xUnsafe,
		"localSafe", lSafe, "crossSafe", xSafe, "finalized", finalized)
	return m.client.Call(ctx, nil, "interop_reset", lUnsafe, xUnsafe, lSafe, xSafe, finalized)
}
