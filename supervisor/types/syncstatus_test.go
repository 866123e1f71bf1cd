package types

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

func TestSyncStatusMarshalsCrossSafeAsLegacySafeField(t *testing.T) {
	chainID := eth.ChainIDFromUInt64(10)
	status := SyncStatus{
		MinSyncedL1:        eth.BlockID{Number: 100, Hash: common.HexToHash("0x01")},
		CrossSafeTimestamp: 42,
		FinalizedTimestamp: 41,
		Chains: map[eth.ChainID]ChainSyncStatus{
			chainID: {
				LocalUnsafe: BlockSeal{Number: 5, Hash: common.HexToHash("0x05"), Timestamp: 50},
				CrossSafe:   eth.BlockID{Number: 4, Hash: common.HexToHash("0x04")},
			},
		},
	}

	out, err := json.Marshal(status)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	chains := decoded["chains"].(map[string]any)
	chainEntry := chains["0xa"].(map[string]any)
	require.Contains(t, chainEntry, "safe")
	require.NotContains(t, chainEntry, "crossSafe")
}
