// Package db implements the per-chain storage layer: one Pebble instance
// per tracked chain, holding the log, derivation and safety-head tables
// described for the supervisor core. Keys are single-byte table prefixes
// followed by fixed-width big-endian fields so that lexicographic key order
// equals numeric order, which is what makes range truncation on rewind a
// single DeleteRange call.
package db

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

const (
	tableBlockRefs      byte = 0x01
	tableLogEntries     byte = 0x02
	tableDerivedBlocks  byte = 0x03
	tableBlockTraversal byte = 0x04
	tableSafetyHeadRefs byte = 0x05
	tableLatestSource   byte = 0x06
	tableActivationBlock byte = 0x07
)

func blockRefsKey(number uint64) []byte {
	return append([]byte{tableBlockRefs}, eth.BE8(number)...)
}

func logEntryKey(blockNumber uint64, logIndex uint32) []byte {
	k := append([]byte{tableLogEntries}, eth.BE8(blockNumber)...)
	return append(k, eth.BE4(logIndex)...)
}

func logEntryBlockPrefix(blockNumber uint64) []byte {
	return append([]byte{tableLogEntries}, eth.BE8(blockNumber)...)
}

func derivedBlocksKey(derivedNumber uint64) []byte {
	return append([]byte{tableDerivedBlocks}, eth.BE8(derivedNumber)...)
}

func blockTraversalKey(sourceNumber uint64) []byte {
	return append([]byte{tableBlockTraversal}, eth.BE8(sourceNumber)...)
}

func safetyHeadRefKey(level types.SafetyLevel) []byte {
	return []byte{tableSafetyHeadRefs, byte(level)}
}

func latestSourceKey() []byte {
	return []byte{tableLatestSource}
}

func activationBlockKey() []byte {
	return []byte{tableActivationBlock}
}

// rangeAbove returns the half-open [start, end) key range covering every key
// under the given table prefix with a leading BE8 number strictly greater
// than number, i.e. everything a rewind to `number` must delete.
func rangeAbove(table byte, number uint64) (start, end []byte) {
	start = append([]byte{table}, eth.BE8(number+1)...)
	end = []byte{table + 1}
	return start, end
}

// --- BlockSeal: hash(32) || number(8) || timestamp(8) ---

func encodeBlockSeal(s types.BlockSeal) []byte {
	buf := make([]byte, 0, 48)
	buf = append(buf, s.Hash.Bytes()...)
	buf = append(buf, eth.BE8(s.Number)...)
	buf = append(buf, eth.BE8(s.Timestamp)...)
	return buf
}

func decodeBlockSeal(b []byte) (types.BlockSeal, error) {
	if len(b) != 48 {
		return types.BlockSeal{}, fmt.Errorf("block seal: want 48 bytes, got %d", len(b))
	}
	return types.BlockSeal{
		Hash:      common.BytesToHash(b[0:32]),
		Number:    binary.BigEndian.Uint64(b[32:40]),
		Timestamp: binary.BigEndian.Uint64(b[40:48]),
	}, nil
}

// --- BlockRef: hash(32) || parentHash(32) || number(8) || timestamp(8) ---

func encodeBlockRef(r eth.BlockRef) []byte {
	buf := make([]byte, 0, 80)
	buf = append(buf, r.Hash.Bytes()...)
	buf = append(buf, r.ParentHash.Bytes()...)
	buf = append(buf, eth.BE8(r.Number)...)
	buf = append(buf, eth.BE8(r.Time)...)
	return buf
}

func decodeBlockRef(b []byte) (eth.BlockRef, error) {
	if len(b) != 80 {
		return eth.BlockRef{}, fmt.Errorf("block ref: want 80 bytes, got %d", len(b))
	}
	return eth.BlockRef{
		Hash:       common.BytesToHash(b[0:32]),
		ParentHash: common.BytesToHash(b[32:64]),
		Number:     binary.BigEndian.Uint64(b[64:72]),
		Time:       binary.BigEndian.Uint64(b[72:80]),
	}, nil
}

// --- ExecutingMessage: chainID(32) || blockNumber(8) || logIndex(4) || timestamp(8) || payloadHash(32) ---

const executingMessageLen = 32 + 8 + 4 + 8 + 32

func encodeExecutingMessage(m types.ExecutingMessage) []byte {
	buf := make([]byte, 0, executingMessageLen)
	cid := m.ChainID.Bytes32()
	buf = append(buf, cid[:]...)
	buf = append(buf, eth.BE8(m.BlockNumber)...)
	buf = append(buf, eth.BE4(m.LogIndex)...)
	buf = append(buf, eth.BE8(m.Timestamp)...)
	buf = append(buf, m.PayloadHash.Bytes()...)
	return buf
}

func decodeExecutingMessage(b []byte) (types.ExecutingMessage, error) {
	if len(b) != executingMessageLen {
		return types.ExecutingMessage{}, fmt.Errorf("executing message: want %d bytes, got %d", executingMessageLen, len(b))
	}
	var cid eth.Bytes32
	copy(cid[:], b[0:32])
	return types.ExecutingMessage{
		ChainID:     eth.ChainIDFromBytes32(cid),
		BlockNumber: binary.BigEndian.Uint64(b[32:40]),
		LogIndex:    binary.BigEndian.Uint32(b[40:44]),
		Timestamp:   binary.BigEndian.Uint64(b[44:52]),
		PayloadHash: common.BytesToHash(b[52:84]),
	}, nil
}

// --- Log: hash(32) || present(1) || [ExecutingMessage] ---

func encodeLog(l types.Log) []byte {
	buf := make([]byte, 0, 33+executingMessageLen)
	buf = append(buf, l.Hash.Bytes()...)
	if l.ExecutingMessage != nil {
		buf = append(buf, 1)
		buf = append(buf, encodeExecutingMessage(*l.ExecutingMessage)...)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeLog(index uint32, b []byte) (types.Log, error) {
	if len(b) < 33 {
		return types.Log{}, fmt.Errorf("log: want at least 33 bytes, got %d", len(b))
	}
	l := types.Log{Index: index, Hash: common.BytesToHash(b[0:32])}
	switch b[32] {
	case 0:
		if len(b) != 33 {
			return types.Log{}, fmt.Errorf("log without executing message: want 33 bytes, got %d", len(b))
		}
	case 1:
		em, err := decodeExecutingMessage(b[33:])
		if err != nil {
			return types.Log{}, err
		}
		l.ExecutingMessage = &em
	default:
		return types.Log{}, fmt.Errorf("log: unknown discriminator byte %d", b[32])
	}
	return l, nil
}

// --- DerivedBlockSealPair: source(48) || derived(48) ---

func encodeDerivedPair(p types.DerivedBlockSealPair) []byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, encodeBlockSeal(p.Source)...)
	buf = append(buf, encodeBlockSeal(p.Derived)...)
	return buf
}

func decodeDerivedPair(b []byte) (types.DerivedBlockSealPair, error) {
	if len(b) != 96 {
		return types.DerivedBlockSealPair{}, fmt.Errorf("derived pair: want 96 bytes, got %d", len(b))
	}
	source, err := decodeBlockSeal(b[0:48])
	if err != nil {
		return types.DerivedBlockSealPair{}, err
	}
	derived, err := decodeBlockSeal(b[48:96])
	if err != nil {
		return types.DerivedBlockSealPair{}, err
	}
	return types.DerivedBlockSealPair{Source: source, Derived: derived}, nil
}

// --- BlockTraversal: source(48) || count(4) || count*number(8) ---

type traversalEntry struct {
	Source              types.BlockSeal
	DerivedBlockNumbers []uint64
}

func encodeTraversal(e traversalEntry) []byte {
	buf := make([]byte, 0, 48+4+8*len(e.DerivedBlockNumbers))
	buf = append(buf, encodeBlockSeal(e.Source)...)
	buf = append(buf, eth.BE4(uint32(len(e.DerivedBlockNumbers)))...)
	for _, n := range e.DerivedBlockNumbers {
		buf = append(buf, eth.BE8(n)...)
	}
	return buf
}

func decodeTraversal(b []byte) (traversalEntry, error) {
	if len(b) < 52 {
		return traversalEntry{}, fmt.Errorf("traversal entry: want at least 52 bytes, got %d", len(b))
	}
	source, err := decodeBlockSeal(b[0:48])
	if err != nil {
		return traversalEntry{}, err
	}
	count := binary.BigEndian.Uint32(b[48:52])
	want := 52 + 8*int(count)
	if len(b) != want {
		return traversalEntry{}, fmt.Errorf("traversal entry: want %d bytes for %d entries, got %d", want, count, len(b))
	}
	nums := make([]uint64, count)
	for i := range nums {
		off := 52 + 8*i
		nums[i] = binary.BigEndian.Uint64(b[off : off+8])
	}
	return traversalEntry{Source: source, DerivedBlockNumbers: nums}, nil
}
