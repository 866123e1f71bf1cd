package types

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

// SuperRootVersion is the only version this implementation produces or
// accepts.
const SuperRootVersion = uint8(1)

type ChainRoot struct {
	ChainID    eth.ChainID `json:"chainID"`
	OutputRoot common.Hash `json:"canonical"`
}

// SuperRoot is the per-timestamp hash over every tracked chain's canonical
// output root (spec §3). Roots is kept sorted by ChainID so the hash is
// deterministic regardless of dependency-set iteration order.
type SuperRoot struct {
	Version   uint8       `json:"version"`
	Timestamp uint64      `json:"timestamp"`
	Roots     []ChainRoot `json:"roots"`
}

// NewSuperRoot sorts roots by chain ID and stamps the version, matching the
// normative encoding in spec §3.
func NewSuperRoot(timestamp uint64, roots []ChainRoot) *SuperRoot {
	sorted := make([]ChainRoot, len(roots))
	copy(sorted, roots)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ChainID.Cmp(sorted[j].ChainID) < 0
	})
	return &SuperRoot{Version: SuperRootVersion, Timestamp: timestamp, Roots: sorted}
}

// Encode serializes the super-root the way its hash is computed over: the
// version byte, the big-endian timestamp, then each (chainID, outputRoot)
// pair in sorted order.
func (s *SuperRoot) Encode() []byte {
	buf := make([]byte, 0, 1+8+len(s.Roots)*(32+32))
	buf = append(buf, s.Version)
	buf = append(buf, eth.BE8(s.Timestamp)...)
	for _, r := range s.Roots {
		cid := r.ChainID.Bytes32()
		buf = append(buf, cid[:]...)
		buf = append(buf, r.OutputRoot.Bytes()...)
	}
	return buf
}

// Hash is the super-root hash: keccak256 of the canonical serialization.
func (s *SuperRoot) Hash() common.Hash {
	return crypto.Keccak256Hash(s.Encode())
}
