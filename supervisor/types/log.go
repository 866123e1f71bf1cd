package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

// CrossL2Inbox is the predeploy address the log indexer watches for
// executing-message events (spec §4.B item 2).
var CrossL2Inbox = common.HexToAddress("0x4200000000000000000000000000000000000022")

// ExecutingMessage claims that on ChainID, at BlockNumber/LogIndex, a log
// with PayloadHash was emitted at Timestamp. It is decoded from a
// CrossL2Inbox event log by the log indexer.
type ExecutingMessage struct {
	ChainID     eth.ChainID `json:"chainID"`
	BlockNumber uint64      `json:"blockNumber"`
	LogIndex    uint32      `json:"logIndex"`
	Timestamp   uint64      `json:"timestamp"`
	PayloadHash common.Hash `json:"payloadHash"`
}

// Log is one entry of a block's log stream. Index is unique and
// monotonically assigned within the block; ExecutingMessage is set only for
// logs emitted by CrossL2Inbox that successfully decode as an executing
// message (spec §3).
type Log struct {
	Index            uint32            `json:"index"`
	Hash             common.Hash       `json:"hash"`
	ExecutingMessage *ExecutingMessage `json:"executingMessage,omitempty"`
}

// LogHash computes the keccak256 over the flattened topics followed by the
// log data, per spec §3's Log.hash definition.
func LogHash(topics []common.Hash, data []byte) common.Hash {
	buf := make([]byte, 0, len(topics)*common.HashLength+len(data))
	for _, t := range topics {
		buf = append(buf, t.Bytes()...)
	}
	buf = append(buf, data...)
	return crypto.Keccak256Hash(buf)
}

// PayloadLogHash converts a raw payload hash (as carried in the
// CrossL2Inbox event identifier) into the log-hash form stored alongside an
// ExecutingMessage: keccak256(payloadHash ++ originAddress), per spec
// §4.B item 2.
func PayloadLogHash(payloadHash common.Hash, origin common.Address) common.Hash {
	buf := make([]byte, 0, common.HashLength+common.AddressLength)
	buf = append(buf, payloadHash.Bytes()...)
	buf = append(buf, origin.Bytes()...)
	return crypto.Keccak256Hash(buf)
}
