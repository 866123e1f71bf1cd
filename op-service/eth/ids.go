// Package eth holds the small, dependency-light value types shared by every
// package in this repository: chain identifiers, block references and
// output roots. None of these types carry behavior beyond what's needed to
// compare, hash and format them.
package eth

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ChainID is a 256-bit chain identifier. The supervisor's dependency set is
// keyed by ChainID rather than a raw uint64 so that chain IDs from the access
// list encoding (which reserve a full 32 bytes) round-trip without loss.
type ChainID uint256.Int

func ChainIDFromUInt64(v uint64) ChainID {
	return ChainID(*uint256.NewInt(v))
}

func ChainIDFromBig(v *big.Int) ChainID {
	return ChainID(*uint256.MustFromBig(v))
}

func (id ChainID) String() string {
	v := uint256.Int(id)
	return v.Dec()
}

func (id ChainID) ToBig() *big.Int {
	v := uint256.Int(id)
	return v.ToBig()
}

func (id ChainID) Cmp(other ChainID) int {
	a := uint256.Int(id)
	b := uint256.Int(other)
	return a.Cmp(&b)
}

// Bytes32 returns the big-endian 32-byte representation used by the
// super-root and access-list encodings.
func (id ChainID) Bytes32() (out [32]byte) {
	v := uint256.Int(id)
	b := v.Bytes32()
	copy(out[:], b[:])
	return out
}

// ChainIDFromBytes32 is the inverse of Bytes32.
func ChainIDFromBytes32(b [32]byte) ChainID {
	v := new(uint256.Int).SetBytes32(b[:])
	return ChainID(*v)
}

// MarshalText renders the chain ID as a minimal-width hex quantity
// ("0x1", never "0x01"), the same convention go-ethereum's hexutil types
// use for JSON-RPC numeric fields. Defined on the value (not just via
// json.Marshaler) so ChainID can also be used as a map key: encoding/json
// requires TextMarshaler, not MarshalJSON, for non-string map keys.
func (id ChainID) MarshalText() ([]byte, error) {
	v := uint256.Int(id)
	return []byte(v.Hex()), nil
}

// UnmarshalText is the inverse of MarshalText, also accepting a bare
// decimal string for compatibility with configs that predate the hex
// convention.
func (id *ChainID) UnmarshalText(text []byte) error {
	v, err := uint256.FromHex(string(text))
	if err != nil {
		if dec, decErr := uint256.FromDecimal(string(text)); decErr == nil {
			*id = ChainID(*dec)
			return nil
		}
		return fmt.Errorf("parse chain id %q: %w", text, err)
	}
	*id = ChainID(*v)
	return nil
}

// BlockID identifies a block by number and hash, without any timestamp or
// parent information. It is the minimal reference needed to check for chain
// reorganizations.
type BlockID struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

func (id BlockID) String() string {
	return fmt.Sprintf("%d:%s", id.Number, id.Hash)
}

// BlockRef is a fully qualified reference to a block: enough to check
// parent-child continuity and derive timestamps for interop-expiry checks.
type BlockRef struct {
	Hash       common.Hash `json:"hash"`
	Number     uint64      `json:"number"`
	ParentHash common.Hash `json:"parentHash"`
	Time       uint64      `json:"timestamp"`
}

func (r BlockRef) ID() BlockID {
	return BlockID{Hash: r.Hash, Number: r.Number}
}

// ParentID returns the ID of the parent block. The genesis block (Number 0)
// has no parent; callers must special-case it.
func (r BlockRef) ParentID() BlockID {
	if r.Number == 0 {
		return BlockID{}
	}
	return BlockID{Hash: r.ParentHash, Number: r.Number - 1}
}

func (r BlockRef) String() string {
	return fmt.Sprintf("%d:%s", r.Number, r.Hash)
}

// L1BlockRef and L2BlockRef alias BlockRef: the supervisor core treats both
// chains' block references identically, but the distinct names document
// which side of the system a value came from at call sites.
type L1BlockRef = BlockRef

type L2BlockRef = BlockRef

// Bytes32 is a generic 32-byte value, used for JWT secrets and payload
// hashes where common.Hash would imply "this is a block or tx hash".
type Bytes32 [32]byte

func (b Bytes32) String() string {
	return fmt.Sprintf("0x%x", b[:])
}

// be8 / be4 are the big-endian packing helpers the access-list checksum
// algorithm and the storage codec both rely on (spec §6, §8 scenario 6).
func be8(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func be4(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// BE8 and BE4 export the packing helpers for use by sibling packages
// (accesslist, storage codec) that need identical big-endian encodings.
func BE8(v uint64) []byte { return be8(v) }
func BE4(v uint32) []byte { return be4(v) }
