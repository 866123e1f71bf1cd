// Package accesslist parses and verifies the CrossL2Inbox access-list
// encoding used to carry executing-message pointers on an L2 transaction
// (spec §6, "Access-list encoding").
package accesslist

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

// Entry type bytes, the first byte of every 32-byte access-list slot.
const (
	PrefixLookup           byte = 0x01
	PrefixChainIDExtension byte = 0x02
	PrefixChecksum         byte = 0x03
)

// Access is a parsed group of access-list entries identifying one
// initiating message: the chain it originated on, its block, and the
// checksum the executing transaction committed to.
type Access struct {
	ChainID     eth.ChainID
	BlockNumber uint64
	Timestamp   uint64
	LogIndex    uint32
	Checksum    common.Hash
}

// RecomputeChecksum derives the checksum this access should carry for the
// given initiating log hash, following the normative algorithm:
//
//	id_packed    = [0;12] ++ be8(block_number) ++ be8(timestamp) ++ be4(log_index)
//	id_log_hash  = keccak256(log_hash ++ id_packed)
//	bare         = keccak256(id_log_hash ++ chain_id_32)
//	checksum[0]  = 0x03, checksum[1..32] = bare[1..32]
func (a Access) RecomputeChecksum(logHash common.Hash) common.Hash {
	var idPacked [32]byte
	copy(idPacked[12:20], eth.BE8(a.BlockNumber))
	copy(idPacked[20:28], eth.BE8(a.Timestamp))
	copy(idPacked[28:32], eth.BE4(a.LogIndex))

	idLogHash := crypto.Keccak256(logHash[:], idPacked[:])

	chainID32 := a.ChainID.Bytes32()
	bare := crypto.Keccak256(idLogHash, chainID32[:])

	var checksum common.Hash
	copy(checksum[:], bare)
	checksum[0] = PrefixChecksum
	return checksum
}

// VerifyChecksum reports whether a's stored checksum matches the one
// recomputed from logHash.
func (a Access) VerifyChecksum(logHash common.Hash) error {
	if a.RecomputeChecksum(logHash) != a.Checksum {
		return fmt.Errorf("%w: checksum mismatch for chain %s block %d log %d",
			ErrMalformedEntry, a.ChainID, a.BlockNumber, a.LogIndex)
	}
	return nil
}

// lookupEntry and chainIDExtEntry mirror the fields packed into a raw 0x01 /
// 0x02 entry; they exist only during parsing, not in the decoded Access.
type lookupEntry struct {
	chainIDLow  [8]byte
	blockNumber uint64
	timestamp   uint64
	logIndex    uint32
}

type chainIDExtEntry struct {
	upper [24]byte
}

// ParseEntries decodes a raw access list (as carried on a transaction) into
// its grouped Access values. Each group is one lookup entry, an optional
// chain-id extension, and a checksum entry, in that order.
func ParseEntries(entries []common.Hash) ([]Access, error) {
	out := make([]Access, 0, len(entries)/2)
	var lookup *lookupEntry
	var ext *chainIDExtEntry

	for _, raw := range entries {
		switch raw[0] {
		case PrefixLookup:
			if lookup != nil {
				return nil, fmt.Errorf("%w: lookup entry without preceding checksum", ErrMalformedEntry)
			}
			if raw[1] != 0 || raw[2] != 0 || raw[3] != 0 {
				return nil, fmt.Errorf("%w: lookup entry reserved bytes not zero", ErrMalformedEntry)
			}
			l := lookupEntry{}
			copy(l.chainIDLow[:], raw[4:12])
			l.blockNumber = beUint64(raw[12:20])
			l.timestamp = beUint64(raw[20:28])
			l.logIndex = beUint32(raw[28:32])
			lookup = &l

		case PrefixChainIDExtension:
			if lookup == nil || ext != nil {
				return nil, fmt.Errorf("%w: chain-id extension out of place", ErrMalformedEntry)
			}
			if raw[1] != 0 || raw[2] != 0 || raw[3] != 0 || raw[4] != 0 || raw[5] != 0 || raw[6] != 0 || raw[7] != 0 {
				return nil, fmt.Errorf("%w: chain-id extension reserved bytes not zero", ErrMalformedEntry)
			}
			e := chainIDExtEntry{}
			copy(e.upper[:], raw[8:32])
			ext = &e

		case PrefixChecksum:
			if lookup == nil {
				return nil, fmt.Errorf("%w: checksum without lookup entry", ErrMalformedEntry)
			}
			var chainIDBytes [32]byte
			if ext != nil {
				copy(chainIDBytes[0:24], ext.upper[:])
			}
			copy(chainIDBytes[24:32], lookup.chainIDLow[:])

			out = append(out, Access{
				ChainID:     eth.ChainIDFromBytes32(chainIDBytes),
				BlockNumber: lookup.blockNumber,
				Timestamp:   lookup.timestamp,
				LogIndex:    lookup.logIndex,
				Checksum:    raw,
			})
			lookup = nil
			ext = nil

		default:
			return nil, fmt.Errorf("%w: unexpected entry type 0x%02x", ErrMalformedEntry, raw[0])
		}
	}

	if lookup != nil {
		return nil, fmt.Errorf("%w: access list ended mid-group", ErrUnexpectedEnd)
	}
	return out, nil
}

// Encode produces the raw 32-byte entries for a, in lookup / chain-id-ext /
// checksum order, computing the checksum from logHash.
func (a Access) Encode(logHash common.Hash) []common.Hash {
	chainID32 := a.ChainID.Bytes32()

	var lookup common.Hash
	lookup[0] = PrefixLookup
	copy(lookup[4:12], chainID32[24:32])
	copy(lookup[12:20], eth.BE8(a.BlockNumber))
	copy(lookup[20:28], eth.BE8(a.Timestamp))
	copy(lookup[28:32], eth.BE4(a.LogIndex))

	var needsExt bool
	for _, b := range chainID32[0:24] {
		if b != 0 {
			needsExt = true
			break
		}
	}
	entries := make([]common.Hash, 0, 3)
	entries = append(entries, lookup)
	if needsExt {
		var ext common.Hash
		ext[0] = PrefixChainIDExtension
		copy(ext[8:32], chainID32[0:24])
		entries = append(entries, ext)
	}
	entries = append(entries, a.RecomputeChecksum(logHash))
	return entries
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func beUint32(b []byte) uint32 {
	var v uint32
	for _, x := range b {
		v = v<<8 | uint32(x)
	}
	return v
}
