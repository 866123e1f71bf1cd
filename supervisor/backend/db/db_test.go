package db

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/op-service/testlog"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	chainID := eth.ChainIDFromUInt64(900)
	d, err := Open(chainID, filepath.Join(t.TempDir(), "900"), testlog.Logger(t, 0))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, d.Close()) })
	return d
}

func TestInitialiseLogStorageIsOneShot(t *testing.T) {
	d := openTestDB(t)
	genesis := types.BlockSeal{Hash: common.HexToHash("0xaa"), Number: 0, Timestamp: 1000}

	require.NoError(t, d.InitialiseLogStorage(genesis))
	require.ErrorIs(t, d.InitialiseLogStorage(genesis), types.ErrAlreadyInitialised)

	head, err := d.GetSafetyHeadRef(types.LocalUnsafe)
	require.NoError(t, err)
	require.Equal(t, genesis, head)
}

func TestStoreBlockLogsHappyPath(t *testing.T) {
	d := openTestDB(t)
	genesis := types.BlockSeal{Hash: common.HexToHash("0xaa"), Number: 100, Timestamp: 1000}
	require.NoError(t, d.InitialiseLogStorage(genesis))

	next := eth.BlockRef{Hash: common.HexToHash("0xbb"), Number: 101, ParentHash: genesis.Hash, Time: 1002}
	em := types.ExecutingMessage{
		ChainID:     eth.ChainIDFromUInt64(2),
		BlockNumber: 50,
		LogIndex:    0,
		Timestamp:   1001,
		PayloadHash: common.HexToHash("0xcc"),
	}
	logs := []types.Log{
		{Index: 0, Hash: common.HexToHash("0xdd"), ExecutingMessage: &em},
		{Index: 1, Hash: common.HexToHash("0xee")},
	}
	require.NoError(t, d.StoreBlockLogs(next, logs))

	head, err := d.GetSafetyHeadRef(types.LocalUnsafe)
	require.NoError(t, err)
	require.Equal(t, types.BlockSealFromRef(next), head)

	got, err := d.GetBlockLogs(101)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint32(0), got[0].Index)
	require.NotNil(t, got[0].ExecutingMessage)
	require.Equal(t, em, *got[0].ExecutingMessage)
	require.Nil(t, got[1].ExecutingMessage)
}

func TestStoreBlockLogsRejectsOutOfOrder(t *testing.T) {
	d := openTestDB(t)
	genesis := types.BlockSeal{Hash: common.HexToHash("0xaa"), Number: 100, Timestamp: 1000}
	require.NoError(t, d.InitialiseLogStorage(genesis))

	badParent := eth.BlockRef{Hash: common.HexToHash("0xbb"), Number: 101, ParentHash: common.HexToHash("0xff"), Time: 1002}
	require.ErrorIs(t, d.StoreBlockLogs(badParent, nil), types.ErrBlockOutOfOrder)

	skip := eth.BlockRef{Hash: common.HexToHash("0xbb"), Number: 102, ParentHash: genesis.Hash, Time: 1002}
	require.ErrorIs(t, d.StoreBlockLogs(skip, nil), types.ErrBlockOutOfOrder)
}

func TestSaveSourceBlockStrictMonotonicity(t *testing.T) {
	d := openTestDB(t)
	s1 := eth.BlockRef{Hash: common.HexToHash("0x01"), Number: 1, Time: 10}
	require.NoError(t, d.SaveSourceBlock(s1))

	require.ErrorIs(t, d.SaveSourceBlock(s1), types.ErrBlockOutOfOrder)

	s0 := eth.BlockRef{Hash: common.HexToHash("0x00"), Number: 0, Time: 9}
	require.ErrorIs(t, d.SaveSourceBlock(s0), types.ErrBlockOutOfOrder)
}

func TestCrossSafePromotionAndRewind(t *testing.T) {
	d := openTestDB(t)

	genesisPair := types.DerivedRefPair{
		Source:  eth.BlockRef{Hash: common.HexToHash("0xa0"), Number: 0, Time: 0},
		Derived: eth.BlockRef{Hash: common.HexToHash("0xb0"), Number: 0, Time: 0},
	}
	require.NoError(t, d.InitialiseDerivationStorage(genesisPair))

	// Build local-safe history: ten (source, derived) pairs.
	var lastDerived eth.BlockRef
	for n := uint64(1); n <= 10; n++ {
		pair := types.DerivedRefPair{
			Source:  eth.BlockRef{Hash: numHash(n), Number: n, Time: n * 10},
			Derived: eth.BlockRef{Hash: numHash(100 + n), Number: n, Time: n * 10},
		}
		require.NoError(t, d.SaveDerivedBlock(pair))
		lastDerived = pair.Derived
	}

	localSafe, err := d.GetSafetyHeadRef(types.LocalSafe)
	require.NoError(t, err)
	require.Equal(t, uint64(10), localSafe.Number)

	// Promote cross-safe up through block 5.
	seal := types.BlockSealFromRef(eth.BlockRef{Hash: numHash(105), Number: 5})
	pair, err := d.UpdateCurrentCrossSafe(seal)
	require.NoError(t, err)
	require.Equal(t, uint64(5), pair.Derived.Number)

	// Cross-safe candidate beyond local-safe is rejected.
	beyond := types.BlockSeal{Hash: numHash(111), Number: 11}
	_, err = d.UpdateCurrentCrossSafe(beyond)
	require.ErrorIs(t, err, types.ErrConflict)

	// Rewind to source #3: blocks derived from later sources disappear, and
	// cross-safe/local-safe reset to the highest surviving derived block.
	ancestor := eth.BlockID{Hash: numHash(3), Number: 3}
	newLatest, ok, err := d.RewindToSource(ancestor)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3), newLatest.Number)

	localSafe, err = d.GetSafetyHeadRef(types.LocalSafe)
	require.NoError(t, err)
	require.Equal(t, uint64(3), localSafe.Number)

	_, err = d.GetDerivedBlock(lastDerived.Number)
	require.ErrorIs(t, err, types.ErrFuture)
}

func numHash(n uint64) (h common.Hash) {
	h[31] = byte(n)
	h[30] = byte(n >> 8)
	return h
}
