package syncnode

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/backend/db"
	"github.com/meridian-labs/chainwatch/supervisor/backend/superevents"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// RPCClient is the subset of Client the managed-node actor drives: a
// subscription call and the set of write calls the command task issues.
// Narrowed to an interface so tests can substitute a fake transport.
type RPCClient interface {
	Call(ctx context.Context, out any, method string, params ...any) error
	Notifications() <-chan types.ManagedEvent
	Close() error
}

// ManagedNode is the actor wrapping one managed execution/rollup node (spec
// §4.E): a subscription task that translates the node's event stream into
// ChainEvents for the chain processor, and a command task that applies
// ManagedNodeCommands the processor and promoters emit back to the node.
type ManagedNode struct {
	chainID eth.ChainID
	client  RPCClient
	db      *db.DB
	tracker *resetTracker
	resetMu sync.Mutex

	events   chan<- superevents.ChainEvent
	commands <-chan types.ManagedNodeCommand

	log log.Logger
}

func NewManagedNode(chainID eth.ChainID, client RPCClient, database *db.DB,
	events chan<- superevents.ChainEvent, commands <-chan types.ManagedNodeCommand, logger log.Logger) *ManagedNode {
	l := logger.New("chain", chainID)
	backend := &managedNodeResetBackend{client: client, db: database}
	return &ManagedNode{
		chainID: chainID, client: client, db: database,
		tracker: newResetTracker(l, backend),
		events:  events, commands: commands,
		log: l,
	}
}

// Run drives both the subscription and command tasks until ctx is
// cancelled or either task's transport fails.
func (m *ManagedNode) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- m.subscriptionTask(ctx) }()
	go func() { errCh <- m.commandTask(ctx) }()

	select {
	case <-ctx.Done():
		_ = m.client.Close()
		return ctx.Err()
	case err := <-errCh:
		_ = m.client.Close()
		return err
	}
}

func (m *ManagedNode) subscriptionTask(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-m.client.Notifications():
			if !ok {
				return fmt.Errorf("managed node %s: notification stream closed", m.chainID)
			}
			chainEvent := superevents.FromManagedEvent(ev)
			if chainEvent == nil {
				m.log.Warn("empty managed event, dropping")
				continue
			}
			select {
			case m.events <- chainEvent:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (m *ManagedNode) commandTask(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-m.commands:
			if !ok {
				return fmt.Errorf("managed node %s: command channel closed", m.chainID)
			}
			if err := m.applyCommand(ctx, cmd); err != nil {
				m.log.Warn("failed to apply command to managed node", "cmd", fmt.Sprintf("%T", cmd), "err", err)
			}
		}
	}
}

func (m *ManagedNode) applyCommand(ctx context.Context, cmd types.ManagedNodeCommand) error {
	switch c := cmd.(type) {
	case types.UpdateCrossUnsafeCommand:
		return m.client.Call(ctx, nil, "interop_updateCrossUnsafe", c.ID)
	case types.UpdateCrossSafeCommand:
		return m.client.Call(ctx, nil, "interop_updateCrossSafe", c.Source, c.Derived)
	case types.UpdateFinalizedCommand:
		return m.client.Call(ctx, nil, "interop_updateFinalized", c.ID)
	case types.InvalidateBlockCommand:
		return m.client.Call(ctx, nil, "interop_invalidateBlock", c.Seal.ID())
	case types.ResetCommand:
		return m.initiateReset(ctx)
	default:
		return fmt.Errorf("unsupported managed node command %T", cmd)
	}
}
