package eth

import "github.com/ethereum/go-ethereum/crypto"

// BlockLabel names one of the well-known block tags a managed node accepts
// in query RPCs (e.g. l2BlockRefByLabel("finalized")).
type BlockLabel string

const (
	Unsafe    BlockLabel = "unsafe"
	Safe      BlockLabel = "safe"
	Finalized BlockLabel = "finalized"
	// Latest names L1's "latest" head tag, distinct from the L2 safety
	// labels above: the L1 watcher polls it directly rather than through a
	// managed node.
	Latest BlockLabel = "latest"
)

// OutputV0 is the canonical L2 output root preimage: version byte zero,
// followed by the state root, message-passer storage root and block hash.
// Supervisor only needs its already-hashed form (see types.SuperRoot); the
// super-root RPC response carries the hash, not this preimage.
type OutputV0 struct {
	StateRoot                [32]byte
	MessagePasserStorageRoot [32]byte
	BlockHash                [32]byte
}

// Hash computes the output root: keccak256(version ++ stateRoot ++
// messagePasserStorageRoot ++ blockHash), version left-zero-padded to 32
// bytes (version 0 for this preimage layout).
func (o OutputV0) Hash() [32]byte {
	var version [32]byte
	buf := make([]byte, 0, 4*32)
	buf = append(buf, version[:]...)
	buf = append(buf, o.StateRoot[:]...)
	buf = append(buf, o.MessagePasserStorageRoot[:]...)
	buf = append(buf, o.BlockHash[:]...)
	return crypto.Keccak256Hash(buf)
}
