package frontend

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/accesslist"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// fakeBackend is a minimal, fully in-memory Backend for exercising
// SupervisorAPI without constructing a real orchestrator.
type fakeBackend struct {
	depSet depset.DependencySet

	localSafe  types.DerivedBlockSealPair
	crossSafe  types.DerivedBlockSealPair
	superRoot  *SuperRootResult
	superRootErr error

	logs       map[uint64][]types.Log
	safetyHead eth.BlockID
	safetyErr  error
}

func (f *fakeBackend) ChainIDs() []eth.ChainID { return f.depSet.Chains() }
func (f *fakeBackend) DependencySet() depset.DependencySet { return f.depSet }

func (f *fakeBackend) LocalUnsafe(ctx context.Context, chainID eth.ChainID) (eth.BlockID, error) {
	return eth.BlockID{}, nil
}
func (f *fakeBackend) LocalSafe(ctx context.Context, chainID eth.ChainID) (types.DerivedBlockSealPair, error) {
	return f.localSafe, nil
}
func (f *fakeBackend) CrossSafe(ctx context.Context, chainID eth.ChainID) (types.DerivedBlockSealPair, error) {
	return f.crossSafe, nil
}
func (f *fakeBackend) Finalized(ctx context.Context, chainID eth.ChainID) (eth.BlockID, error) {
	return eth.BlockID{}, nil
}
func (f *fakeBackend) FinalizedL1(ctx context.Context) (eth.BlockRef, error) {
	return eth.BlockRef{}, nil
}
func (f *fakeBackend) CrossDerivedToSource(ctx context.Context, chainID eth.ChainID, derived eth.BlockID) (eth.BlockRef, error) {
	return eth.BlockRef{}, nil
}
func (f *fakeBackend) SyncStatus(ctx context.Context) (types.SyncStatus, error) {
	return types.SyncStatus{}, nil
}
func (f *fakeBackend) AllSafeDerivedAt(ctx context.Context, source eth.BlockID) (map[eth.ChainID]eth.BlockID, error) {
	return nil, nil
}
func (f *fakeBackend) SuperRootAtTimestamp(ctx context.Context, timestamp uint64) (*SuperRootResult, error) {
	return f.superRoot, f.superRootErr
}
func (f *fakeBackend) BlockLogs(ctx context.Context, chainID eth.ChainID, blockNumber uint64) ([]types.Log, error) {
	return f.logs[blockNumber], nil
}
func (f *fakeBackend) SafetyHead(ctx context.Context, chainID eth.ChainID, level types.SafetyLevel) (eth.BlockID, error) {
	return f.safetyHead, f.safetyErr
}
func (f *fakeBackend) AddL2RPC(ctx context.Context, url string, jwtHex string) error { return nil }

var _ Backend = (*fakeBackend)(nil)

const testChainIdx = 900

func testDepSet(t *testing.T) depset.DependencySet {
	id := eth.ChainIDFromUInt64(testChainIdx)
	ds, err := depset.NewStaticConfigDependencySet(map[eth.ChainID]*depset.StaticConfigDependency{
		id: {ChainIndex: 0, ActivationTime: 10, BlockTime: 2, MessageExpiryWindow: 100},
	})
	require.NoError(t, err)
	return ds
}

func TestLocalSafeRenamesFieldsToDerivedSource(t *testing.T) {
	id := eth.ChainIDFromUInt64(testChainIdx)
	pair := types.DerivedBlockSealPair{
		Source:  types.BlockSeal{Number: 1, Hash: common.HexToHash("0x1")},
		Derived: types.BlockSeal{Number: 2, Hash: common.HexToHash("0x2")},
	}
	api := NewSupervisorAPI(&fakeBackend{depSet: testDepSet(t), localSafe: pair})
	resp, err := api.LocalSafe(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, pair.Derived.ID(), resp.Derived)
	require.Equal(t, pair.Source.ID(), resp.Source)
}

func TestCrossSafeUsesLegacySafeFieldName(t *testing.T) {
	id := eth.ChainIDFromUInt64(testChainIdx)
	pair := types.DerivedBlockSealPair{
		Source:  types.BlockSeal{Number: 1, Hash: common.HexToHash("0x1")},
		Derived: types.BlockSeal{Number: 2, Hash: common.HexToHash("0x2")},
	}
	api := NewSupervisorAPI(&fakeBackend{depSet: testDepSet(t), crossSafe: pair})
	resp, err := api.CrossSafe(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, pair.Derived.ID(), resp.Safe)
	require.Equal(t, pair.Source.ID(), resp.Source)
}

func TestSuperRootAtTimestampEncodesHexQuantities(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(testChainIdx)
	sr := types.NewSuperRoot(42, []types.ChainRoot{{ChainID: chainID, OutputRoot: common.HexToHash("0xaa")}})
	api := NewSupervisorAPI(&fakeBackend{
		depSet: testDepSet(t),
		superRoot: &SuperRootResult{
			Timestamp: 42,
			SuperRoot: sr,
			Chains: []ChainRootInfo{
				{ChainID: chainID, Canonical: common.HexToHash("0xaa"), Pending: []byte{1, 2, 3}},
			},
		},
	})
	resp, err := api.SuperRootAtTimestamp(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, "0x01", resp.Version)
	require.EqualValues(t, 42, resp.Timestamp)
	require.Len(t, resp.Chains, 1)
	require.Equal(t, chainID, resp.Chains[0].ChainID)
}

func TestDependencySetV1ListsConfiguredChains(t *testing.T) {
	api := NewSupervisorAPI(&fakeBackend{depSet: testDepSet(t)})
	resp, err := api.DependencySetV1(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Chains, 1)
	entry := resp.Chains[0]
	require.Equal(t, eth.ChainIDFromUInt64(testChainIdx), entry.ChainID)
	require.EqualValues(t, 10, entry.ActivationTime)
	require.EqualValues(t, 2, entry.BlockTime)
	require.EqualValues(t, 100, entry.MessageExpiryWindow)
}

// accessListFixture builds a single-access access list plus the indexed log
// it should validate against, using the real codec so the test exercises
// CheckAccessList's parsing path too.
func accessListFixture(t *testing.T, chainID eth.ChainID, blockNumber uint64, timestamp uint64, logIndex uint32) ([]common.Hash, common.Hash) {
	t.Helper()
	logHash := common.HexToHash("0x0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	acc := accesslist.Access{ChainID: chainID, BlockNumber: blockNumber, Timestamp: timestamp, LogIndex: logIndex}
	return acc.Encode(logHash), logHash
}

func TestCheckAccessListSucceeds(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(testChainIdx)
	entries, logHash := accessListFixture(t, chainID, 5, 20, 0)
	api := NewSupervisorAPI(&fakeBackend{
		depSet:     testDepSet(t),
		logs:       map[uint64][]types.Log{5: {{Index: 0, Hash: logHash}}},
		safetyHead: eth.BlockID{Number: 5},
	})
	err := api.CheckAccessList(context.Background(), entries, types.CrossSafe, AccessListDescriptor{Timestamp: 20})
	require.NoError(t, err)
}

func TestCheckAccessListRejectsUnknownChain(t *testing.T) {
	unknown := eth.ChainIDFromUInt64(testChainIdx + 1)
	entries, logHash := accessListFixture(t, unknown, 5, 20, 0)
	api := NewSupervisorAPI(&fakeBackend{
		depSet: testDepSet(t),
		logs:   map[uint64][]types.Log{5: {{Index: 0, Hash: logHash}}},
	})
	err := api.CheckAccessList(context.Background(), entries, types.CrossSafe, AccessListDescriptor{Timestamp: 20})
	require.ErrorIs(t, err, ErrConflictingData)
	require.ErrorIs(t, err, ErrUnknownChain)
}

func TestCheckAccessListRejectsChecksumMismatch(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(testChainIdx)
	entries, _ := accessListFixture(t, chainID, 5, 20, 0)
	api := NewSupervisorAPI(&fakeBackend{
		depSet:     testDepSet(t),
		logs:       map[uint64][]types.Log{5: {{Index: 0, Hash: common.HexToHash("0xdead")}}},
		safetyHead: eth.BlockID{Number: 5},
	})
	err := api.CheckAccessList(context.Background(), entries, types.CrossSafe, AccessListDescriptor{Timestamp: 20})
	require.ErrorIs(t, err, ErrConflictingData)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestCheckAccessListRejectsInvalidTimestampInvariant(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(testChainIdx)
	entries, logHash := accessListFixture(t, chainID, 5, 20, 0)
	api := NewSupervisorAPI(&fakeBackend{
		depSet:     testDepSet(t),
		logs:       map[uint64][]types.Log{5: {{Index: 0, Hash: logHash}}},
		safetyHead: eth.BlockID{Number: 5},
	})
	// executing timestamp precedes the initiating message's timestamp.
	err := api.CheckAccessList(context.Background(), entries, types.CrossSafe, AccessListDescriptor{Timestamp: 19})
	require.ErrorIs(t, err, ErrConflictingData)
	require.ErrorIs(t, err, ErrInvalidTimestampInvariant)
}

func TestCheckAccessListRejectsExpiredMessage(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(testChainIdx)
	entries, logHash := accessListFixture(t, chainID, 5, 20, 0)
	api := NewSupervisorAPI(&fakeBackend{
		depSet:     testDepSet(t),
		logs:       map[uint64][]types.Log{5: {{Index: 0, Hash: logHash}}},
		safetyHead: eth.BlockID{Number: 5},
	})
	// expiry window is 100s; 20+100=120, so 121 is past the window.
	err := api.CheckAccessList(context.Background(), entries, types.CrossSafe, AccessListDescriptor{Timestamp: 121})
	require.ErrorIs(t, err, ErrConflictingData)
	require.ErrorIs(t, err, ErrMessageExpired)
}

func TestCheckAccessListRejectsSafetyNotReached(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(testChainIdx)
	entries, logHash := accessListFixture(t, chainID, 5, 20, 0)
	api := NewSupervisorAPI(&fakeBackend{
		depSet:     testDepSet(t),
		logs:       map[uint64][]types.Log{5: {{Index: 0, Hash: logHash}}},
		safetyHead: eth.BlockID{Number: 4},
	})
	err := api.CheckAccessList(context.Background(), entries, types.CrossSafe, AccessListDescriptor{Timestamp: 20})
	require.ErrorIs(t, err, ErrConflictingData)
	require.ErrorIs(t, err, ErrSafetyNotReached)
}

func TestCheckAccessListRejectsUnindexedLog(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(testChainIdx)
	entries, _ := accessListFixture(t, chainID, 5, 20, 0)
	api := NewSupervisorAPI(&fakeBackend{
		depSet: testDepSet(t),
		logs:   map[uint64][]types.Log{5: {}},
	})
	err := api.CheckAccessList(context.Background(), entries, types.CrossSafe, AccessListDescriptor{Timestamp: 20})
	require.ErrorIs(t, err, ErrConflictingData)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestCheckAccessListPropagatesBackendErrorsFromParsing(t *testing.T) {
	api := NewSupervisorAPI(&fakeBackend{depSet: testDepSet(t)})
	malformed := []common.Hash{{0xff}}
	err := api.CheckAccessList(context.Background(), malformed, types.CrossSafe, AccessListDescriptor{})
	require.ErrorIs(t, err, ErrConflictingData)
	require.True(t, errors.Is(err, ErrConflictingData))
}
