// Package frontend implements the supervisor's external JSON-RPC surface
// (spec §6, "Supervisor JSON-RPC surface"), translating between the
// hex-quantity wire conventions some of its methods use and the core
// domain types the rest of this repository works in.
package frontend

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// Backend is the synchronous read/write API the frontend calls into (spec
// §4.H). service.go's orchestrator implements it; tests substitute a fake.
type Backend interface {
	ChainIDs() []eth.ChainID
	DependencySet() depset.DependencySet

	LocalUnsafe(ctx context.Context, chainID eth.ChainID) (eth.BlockID, error)
	LocalSafe(ctx context.Context, chainID eth.ChainID) (types.DerivedBlockSealPair, error)
	CrossSafe(ctx context.Context, chainID eth.ChainID) (types.DerivedBlockSealPair, error)
	Finalized(ctx context.Context, chainID eth.ChainID) (eth.BlockID, error)
	FinalizedL1(ctx context.Context) (eth.BlockRef, error)
	CrossDerivedToSource(ctx context.Context, chainID eth.ChainID, derived eth.BlockID) (eth.BlockRef, error)

	SyncStatus(ctx context.Context) (types.SyncStatus, error)
	AllSafeDerivedAt(ctx context.Context, source eth.BlockID) (map[eth.ChainID]eth.BlockID, error)
	SuperRootAtTimestamp(ctx context.Context, timestamp uint64) (*SuperRootResult, error)

	// BlockLogs and SafetyHead back CheckAccessList's per-entry validation:
	// a chain's committed log hash to re-derive the checksum against, and
	// its current safety heads to check the minimum-safety requirement.
	BlockLogs(ctx context.Context, chainID eth.ChainID, blockNumber uint64) ([]types.Log, error)
	SafetyHead(ctx context.Context, chainID eth.ChainID, level types.SafetyLevel) (eth.BlockID, error)

	AddL2RPC(ctx context.Context, url string, jwtHex string) error
}

// SuperRootResult is what Backend.SuperRootAtTimestamp computes; the RPC
// layer (SuperRootAtTimestamp method below) adds the hex-quantity
// encoding superRootAtTimestamp's wire format requires.
type SuperRootResult struct {
	CrossSafeDerivedFrom eth.BlockID
	Timestamp            uint64
	SuperRoot            *types.SuperRoot
	Chains               []ChainRootInfo
}

// ChainRootInfo is one chain's entry in a SuperRootResult: its canonical
// output root, and in Pending the pending (pre-validation) output root
// preimage where the backend supplies one. SupervisorBackend leaves
// Pending empty.
type ChainRootInfo struct {
	ChainID   eth.ChainID
	Canonical common.Hash
	Pending   []byte
}
