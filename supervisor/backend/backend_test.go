package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/op-service/testlog"
	"github.com/meridian-labs/chainwatch/supervisor/backend/db"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/frontend"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

func testDepSet(t *testing.T, chainIDs ...eth.ChainID) depset.DependencySet {
	t.Helper()
	deps := make(map[eth.ChainID]*depset.StaticConfigDependency, len(chainIDs))
	for i, id := range chainIDs {
		deps[id] = &depset.StaticConfigDependency{
			ChainIndex:          uint64(i),
			ActivationTime:      10,
			BlockTime:           2,
			MessageExpiryWindow: 100,
		}
	}
	ds, err := depset.NewStaticConfigDependencySet(deps)
	require.NoError(t, err)
	return ds
}

// openChainDB opens a fresh pebble-backed DB for chainID, seeded with a
// genesis log-storage activation and a matching derivation pair so
// LocalSafe/CrossSafe have somewhere to point.
func openChainDB(t *testing.T, chainID eth.ChainID) *db.DB {
	t.Helper()
	d, err := db.Open(chainID, filepath.Join(t.TempDir(), chainID.String()), testlog.Logger(t, 0))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, d.Close()) })

	genesis := types.BlockSeal{Hash: common.HexToHash("0xaa"), Number: 100, Timestamp: 1000}
	require.NoError(t, d.InitialiseLogStorage(genesis))

	source := eth.BlockRef{Hash: common.HexToHash("0x11"), Number: 50, Time: 990}
	pair := types.DerivedRefPair{Source: source, Derived: eth.BlockRef{Hash: genesis.Hash, Number: genesis.Number, Time: genesis.Timestamp}}
	require.NoError(t, d.InitialiseDerivationStorage(pair))
	return d
}

// backendWithChains builds a SupervisorBackend around already-opened chain
// databases, skipping the managed-node dial and L1 watcher that
// NewSupervisorBackend would otherwise require: every method under test
// here reads only from chainActors.db.
func backendWithChains(t *testing.T, dbs map[eth.ChainID]*db.DB) *SupervisorBackend {
	t.Helper()
	chainIDs := make([]eth.ChainID, 0, len(dbs))
	for id := range dbs {
		chainIDs = append(chainIDs, id)
	}
	sb := &SupervisorBackend{
		depSet: testDepSet(t, chainIDs...),
		chains: make(map[eth.ChainID]*chainActors, len(dbs)),
	}
	for id, d := range dbs {
		sb.chains[id] = &chainActors{chainID: id, db: d}
	}
	return sb
}

func TestLocalUnsafeReadsSafetyHead(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(900)
	d := openChainDB(t, chainID)
	sb := backendWithChains(t, map[eth.ChainID]*db.DB{chainID: d})

	got, err := sb.LocalUnsafe(context.Background(), chainID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), got.Number)
	require.Equal(t, common.HexToHash("0xaa"), got.Hash)
}

func TestLocalUnsafeRejectsUnknownChain(t *testing.T) {
	sb := backendWithChains(t, map[eth.ChainID]*db.DB{})

	_, err := sb.LocalUnsafe(context.Background(), eth.ChainIDFromUInt64(999))
	require.ErrorIs(t, err, frontend.ErrUnknownChain)
}

func TestLocalSafeAndCrossSafeReadDerivedPair(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(900)
	d := openChainDB(t, chainID)
	require.NoError(t, d.UpdateCurrentCrossUnsafe(types.BlockSeal{Hash: common.HexToHash("0xaa"), Number: 100, Timestamp: 1000}))
	_, err := d.UpdateCurrentCrossSafe(types.BlockSeal{Hash: common.HexToHash("0xaa"), Number: 100, Timestamp: 1000})
	require.NoError(t, err)

	sb := backendWithChains(t, map[eth.ChainID]*db.DB{chainID: d})

	localSafe, err := sb.LocalSafe(context.Background(), chainID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), localSafe.Derived.Number)
	require.Equal(t, uint64(50), localSafe.Source.Number)

	crossSafe, err := sb.CrossSafe(context.Background(), chainID)
	require.NoError(t, err)
	require.Equal(t, localSafe, crossSafe)
}

func TestFinalizedReadsSafetyHead(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(900)
	d := openChainDB(t, chainID)
	sb := backendWithChains(t, map[eth.ChainID]*db.DB{chainID: d})

	_, err := sb.Finalized(context.Background(), chainID)
	require.ErrorIs(t, err, types.ErrFuture)
}

func TestCrossDerivedToSourceMatchesDerivedHash(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(900)
	d := openChainDB(t, chainID)
	sb := backendWithChains(t, map[eth.ChainID]*db.DB{chainID: d})

	got, err := sb.CrossDerivedToSource(context.Background(), chainID, eth.BlockID{Hash: common.HexToHash("0xaa"), Number: 100})
	require.NoError(t, err)
	require.Equal(t, uint64(50), got.Number)
	require.Equal(t, common.HexToHash("0x11"), got.Hash)

	_, err = sb.CrossDerivedToSource(context.Background(), chainID, eth.BlockID{Hash: common.HexToHash("0xbad"), Number: 100})
	require.ErrorIs(t, err, types.ErrConflict)
}

func TestBlockLogsAndSafetyHead(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(900)
	d := openChainDB(t, chainID)
	next := eth.BlockRef{Hash: common.HexToHash("0xbb"), Number: 101, ParentHash: common.HexToHash("0xaa"), Time: 1002}
	logs := []types.Log{{Index: 0, Hash: common.HexToHash("0xdd")}}
	require.NoError(t, d.StoreBlockLogs(next, logs))

	sb := backendWithChains(t, map[eth.ChainID]*db.DB{chainID: d})

	got, err := sb.BlockLogs(context.Background(), chainID, 101)
	require.NoError(t, err)
	require.Equal(t, logs, got)

	head, err := sb.SafetyHead(context.Background(), chainID, types.LocalUnsafe)
	require.NoError(t, err)
	require.Equal(t, uint64(101), head.Number)

	_, err = sb.BlockLogs(context.Background(), eth.ChainIDFromUInt64(1), 101)
	require.ErrorIs(t, err, frontend.ErrUnknownChain)
}

func TestAllSafeDerivedAtAggregatesEveryChain(t *testing.T) {
	chainA := eth.ChainIDFromUInt64(900)
	chainB := eth.ChainIDFromUInt64(901)
	dbA := openChainDB(t, chainA)
	dbB := openChainDB(t, chainB)
	sb := backendWithChains(t, map[eth.ChainID]*db.DB{chainA: dbA, chainB: dbB})

	got, err := sb.AllSafeDerivedAt(context.Background(), eth.BlockID{Number: 50})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(100), got[chainA].Number)
	require.Equal(t, uint64(100), got[chainB].Number)

	_, err = sb.AllSafeDerivedAt(context.Background(), eth.BlockID{Number: 999})
	require.ErrorIs(t, err, types.ErrFuture)
}

func TestChainIDsAndDependencySet(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(900)
	d := openChainDB(t, chainID)
	sb := backendWithChains(t, map[eth.ChainID]*db.DB{chainID: d})

	require.Equal(t, []eth.ChainID{chainID}, sb.ChainIDs())
	require.Equal(t, sb.depSet, sb.DependencySet())
}
