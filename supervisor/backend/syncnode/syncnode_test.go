package syncnode

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/op-service/testlog"
	"github.com/meridian-labs/chainwatch/supervisor/backend/db"
	"github.com/meridian-labs/chainwatch/supervisor/backend/superevents"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// fakeRPCClient is an in-memory managed node: it records every call's
// method name and, for interop_blockRefByNumber, serves a canned block map
// so the bisection logic can be exercised without a real transport.
type fakeRPCClient struct {
	notifications chan types.ManagedEvent
	nodeBlocks    map[uint64]eth.BlockRef
	calls         []string
	resetArgs     []eth.BlockID
}

func newFakeRPCClient() *fakeRPCClient {
	return &fakeRPCClient{notifications: make(chan types.ManagedEvent, 8), nodeBlocks: make(map[uint64]eth.BlockRef)}
}

func (f *fakeRPCClient) Call(ctx context.Context, out any, method string, params ...any) error {
	f.calls = append(f.calls, method)
	switch method {
	case "interop_blockRefByNumber":
		n := params[0].(uint64)
		ref, ok := f.nodeBlocks[n]
		if !ok {
			return &rpcError{Code: types.UnknownToNodeRPCCode, Message: "unknown block"}
		}
		if p, ok := out.(*eth.BlockRef); ok {
			*p = ref
		}
		return nil
	case "interop_reset":
		for _, p := range params {
			f.resetArgs = append(f.resetArgs, p.(eth.BlockID))
		}
		return nil
	default:
		return nil
	}
}

func (f *fakeRPCClient) Notifications() <-chan types.ManagedEvent { return f.notifications }
func (f *fakeRPCClient) Close() error                             { return nil }

func openTestDB(t *testing.T, chainID eth.ChainID) *db.DB {
	t.Helper()
	database, err := db.Open(chainID, filepath.Join(t.TempDir(), chainID.String()), testlog.Logger(t, 0))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, database.Close()) })
	return database
}

func TestManagedNodeSubscriptionForwardsEvents(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(1)
	client := newFakeRPCClient()
	database := openTestDB(t, chainID)

	events := make(chan superevents.ChainEvent, 4)
	commands := make(chan types.ManagedNodeCommand, 4)
	node := NewManagedNode(chainID, client, database, events, commands, testlog.Logger(t, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- node.Run(ctx) }()

	block := eth.BlockRef{Hash: common.HexToHash("0xaa"), Number: 5, Time: 50}
	client.notifications <- types.ManagedEvent{UnsafeBlock: &block}

	select {
	case ev := <-events:
		require.Equal(t, superevents.UnsafeBlockEvent{Block: block}, ev)
	case err := <-done:
		t.Fatalf("node exited early: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}
	cancel()
	<-done
}

func TestManagedNodeAppliesUpdateCommand(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(1)
	client := newFakeRPCClient()
	database := openTestDB(t, chainID)

	events := make(chan superevents.ChainEvent, 4)
	commands := make(chan types.ManagedNodeCommand, 4)
	node := NewManagedNode(chainID, client, database, events, commands, testlog.Logger(t, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- node.Run(ctx) }()

	commands <- types.UpdateCrossUnsafeCommand{ID: eth.BlockID{Number: 7}}

	require.Eventually(t, func() bool {
		for _, c := range client.calls {
			if c == "interop_updateCrossUnsafe" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestFindResetTargetConvergesOnInconsistentMidpoint(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(1)
	database := openTestDB(t, chainID)
	client := newFakeRPCClient()

	// Node agrees with us up through block 4, diverges from 5 onward.
	for n := uint64(0); n <= 10; n++ {
		hash := common.BigToHash(new(big.Int).SetUint64(n))
		client.nodeBlocks[n] = eth.BlockRef{Hash: hash, Number: n}
	}
	for n := uint64(5); n <= 10; n++ {
		client.nodeBlocks[n] = eth.BlockRef{Hash: common.HexToHash("0xdead"), Number: n}
	}

	backend := &managedNodeResetBackend{client: client, db: database}
	// Every block up to 4 is considered local-safe-consistent; beyond that,
	// treat as inconsistent by returning ErrConflict.
	tracker := newResetTracker(testlog.Logger(t, 0), &stubResetBackend{
		blockIDByNumber: backend.BlockIDByNumber,
		isLocalSafe: func(ctx context.Context, block eth.BlockID) error {
			if block.Number > 4 {
				return types.ErrConflict
			}
			return nil
		},
	})

	a := eth.BlockID{Number: 0, Hash: client.nodeBlocks[0].Hash}
	z := eth.BlockID{Number: 10, Hash: common.HexToHash("0xffff")}
	target, err := tracker.FindResetTarget(context.Background(), a, z)
	require.NoError(t, err)
	require.False(t, target.PreInterop)
	require.Equal(t, uint64(4), target.Target.Number)
}

// stubResetBackend lets tests supply resetBackend behavior without a live DB
// or RPC client.
type stubResetBackend struct {
	blockIDByNumber func(ctx context.Context, n uint64) (eth.BlockID, error)
	isLocalSafe     func(ctx context.Context, block eth.BlockID) error
}

func (s *stubResetBackend) BlockIDByNumber(ctx context.Context, n uint64) (eth.BlockID, error) {
	return s.blockIDByNumber(ctx, n)
}

func (s *stubResetBackend) IsLocalSafe(ctx context.Context, block eth.BlockID) error {
	return s.isLocalSafe(ctx, block)
}
