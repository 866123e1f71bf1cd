package syncnode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

func TestCLISyncNodesCheck(t *testing.T) {
	var empty *CLISyncNodes
	require.ErrorIs(t, empty.Check(), ErrNoSyncSources)

	chainID := eth.ChainIDFromUInt64(1)
	nodes := &CLISyncNodes{Nodes: map[eth.ChainID]CLISyncNodeConfig{
		chainID: {URL: "ws://localhost:8551", JWTHex: "0x" + stringRepeat("ab", 32)},
	}}
	require.NoError(t, nodes.Check())

	nodes.Nodes[chainID] = CLISyncNodeConfig{URL: "", JWTHex: "0x" + stringRepeat("ab", 32)}
	require.Error(t, nodes.Check())

	nodes.Nodes[chainID] = CLISyncNodeConfig{URL: "ws://localhost:8551", JWTHex: "not-hex"}
	require.Error(t, nodes.Check())
}

func TestLoadSyncNodesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync-nodes.json")
	secret := "0x" + stringRepeat("ab", 32)
	contents := `{"901": {"url": "ws://localhost:8551", "jwtSecret": "` + secret + `"}}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	nodes, err := LoadSyncNodesFromFile(path)
	require.NoError(t, err)
	require.NoError(t, nodes.Check())
	require.Equal(t, "ws://localhost:8551", nodes.Nodes[eth.ChainIDFromUInt64(901)].URL)
}

func TestLoadSyncNodesFromFileMissing(t *testing.T) {
	_, err := LoadSyncNodesFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func stringRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
