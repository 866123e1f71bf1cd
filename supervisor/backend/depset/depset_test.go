package depset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

func TestNewStaticConfigDependencySetRejectsDuplicateIndex(t *testing.T) {
	chainA := eth.ChainIDFromUInt64(900)
	chainB := eth.ChainIDFromUInt64(901)
	_, err := NewStaticConfigDependencySet(map[eth.ChainID]*StaticConfigDependency{
		chainA: {ChainIndex: 0, BlockTime: 2},
		chainB: {ChainIndex: 0, BlockTime: 2},
	})
	require.Error(t, err)
}

func TestStaticConfigDependencySetAccessors(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(900)
	ds, err := NewStaticConfigDependencySet(map[eth.ChainID]*StaticConfigDependency{
		chainID: {ChainIndex: 0, ActivationTime: 10, BlockTime: 2, MessageExpiryWindow: 100},
	})
	require.NoError(t, err)

	require.True(t, ds.HasChain(chainID))
	require.Equal(t, []eth.ChainID{chainID}, ds.Chains())

	activation, err := ds.ActivationTime(chainID)
	require.NoError(t, err)
	require.Equal(t, uint64(10), activation)

	blockTime, err := ds.BlockTime(chainID)
	require.NoError(t, err)
	require.Equal(t, uint64(2), blockTime)

	expiry, err := ds.MessageExpiryWindow(chainID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), expiry)

	_, err = ds.ActivationTime(eth.ChainIDFromUInt64(999))
	require.ErrorIs(t, err, ErrUnknownChain)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dependency-set.json")
	contents := `{
		"900": {"chainIndex": 0, "activationTime": 10, "blockTime": 2, "messageExpiryWindow": 100},
		"901": {"chainIndex": 1, "activationTime": 10, "blockTime": 2, "messageExpiryWindow": 100}
	}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	ds, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Len(t, ds.Chains(), 2)
	require.True(t, ds.HasChain(eth.ChainIDFromUInt64(900)))
	require.True(t, ds.HasChain(eth.ChainIDFromUInt64(901)))
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
