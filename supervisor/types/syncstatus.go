package types

import "github.com/meridian-labs/chainwatch/op-service/eth"

// ChainSyncStatus is the per-chain sync state reported by syncStatus()
// (spec §6). LocalUnsafe carries a timestamp since it is the level most
// often used to gauge how far behind the chain tip this chain has fallen;
// the other levels are reported as bare number+hash pairs.
type ChainSyncStatus struct {
	LocalUnsafe BlockSeal   `json:"localUnsafe"`
	CrossUnsafe eth.BlockID `json:"crossUnsafe"`
	LocalSafe   eth.BlockID `json:"localSafe"`
	// CrossSafe is serialized as "safe": some fault-proof releases already
	// depend on that field name, so the legacy name is kept even though
	// "crossSafe" would be the consistent choice alongside the other
	// fields.
	CrossSafe eth.BlockID `json:"safe"`
	Finalized eth.BlockID `json:"finalized"`
}

// SyncStatus is the payload of syncStatus(): a snapshot of every tracked
// chain's safety heads plus the supervisor-wide L1 watermark.
type SyncStatus struct {
	MinSyncedL1 eth.BlockID `json:"minSyncedL1"`
	// CrossSafeTimestamp and FinalizedTimestamp are the timestamps of the
	// highest cross-safe / finalized block across all tracked chains, 0
	// until at least one chain has reached the level.
	CrossSafeTimestamp uint64                          `json:"safeTimestamp"`
	FinalizedTimestamp uint64                          `json:"finalizedTimestamp"`
	Chains             map[eth.ChainID]ChainSyncStatus `json:"chains"`
}
