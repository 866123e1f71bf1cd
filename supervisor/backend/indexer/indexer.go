// Package indexer turns a managed node's receipts into the Log rows the
// storage layer persists, decoding CrossL2Inbox events into executing
// messages along the way (spec §4.B).
package indexer

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/backend/db"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// NodeClient is the subset of the managed-node RPC the indexer needs:
// receipts for a known block, and block identity by number for catch-up.
type NodeClient interface {
	FetchReceipts(ctx context.Context, block eth.BlockID) (gethtypes.Receipts, error)
	L2BlockRefByNumber(ctx context.Context, number uint64) (eth.BlockRef, error)
}

type Indexer struct {
	chainID eth.ChainID
	db      *db.DB
	node    NodeClient
	log     log.Logger

	// catchingUp guards SyncLogs against concurrent re-entry (spec §4.B).
	catchingUp atomic.Bool
}

func New(chainID eth.ChainID, database *db.DB, node NodeClient, logger log.Logger) *Indexer {
	return &Indexer{chainID: chainID, db: database, node: node, log: logger}
}

// ProcessAndStoreLogs fetches receipts for block and stores its full log
// set, synchronously (spec §4.B "synchronous single-block" mode).
func (ix *Indexer) ProcessAndStoreLogs(ctx context.Context, block eth.BlockRef) error {
	receipts, err := ix.node.FetchReceipts(ctx, block.ID())
	if err != nil {
		return fmt.Errorf("fetch receipts for %s: %w", block, err)
	}

	var logs []types.Log
	var index uint32
	for _, receipt := range receipts {
		for _, rl := range receipt.Logs {
			l, err := decodeLog(index, rl)
			if err != nil {
				return fmt.Errorf("decode log %d of block %s: %w", index, block, err)
			}
			logs = append(logs, l)
			index++
		}
	}

	return ix.db.StoreBlockLogs(block, logs)
}

// SyncLogs is the async catch-up mode: it resolves every block from the
// storage layer's current head up to and including target by number, then
// processes them in order. The atomic guard prevents two catch-up runs for
// the same chain from overlapping (spec §4.B).
func (ix *Indexer) SyncLogs(ctx context.Context, target uint64) error {
	if !ix.catchingUp.CompareAndSwap(false, true) {
		return nil
	}
	defer ix.catchingUp.Store(false)

	head, err := ix.db.GetSafetyHeadRef(types.LocalUnsafe)
	if err != nil && err != types.ErrFuture {
		return err
	}
	start := head.Number + 1

	for n := start; n <= target; n++ {
		ref, err := ix.node.L2BlockRefByNumber(ctx, n)
		if err != nil {
			return fmt.Errorf("resolve block %d during catch-up: %w", n, err)
		}
		if err := ix.ProcessAndStoreLogs(ctx, ref); err != nil {
			return fmt.Errorf("catch-up at block %d: %w", n, err)
		}
	}
	return nil
}

// decodeLog computes the log hash and, for CrossL2Inbox events with exactly
// two topics, decodes the executing-message pointer (spec §4.B items 1-3).
func decodeLog(index uint32, rl *gethtypes.Log) (types.Log, error) {
	l := types.Log{Index: index, Hash: types.LogHash(rl.Topics, rl.Data)}
	if rl.Address == types.CrossL2Inbox && len(rl.Topics) == 2 {
		em, err := decodeExecutingMessage(rl)
		if err != nil {
			return types.Log{}, err
		}
		l.ExecutingMessage = &em
	}
	return l, nil
}

// decodeExecutingMessage decodes the CrossL2Inbox event whose topics are
// [signature, payloadHash] and whose data is the ABI-packed identifier
// {origin, blockNumber, logIndex, timestamp, chainID}, each right-aligned
// in a 32-byte word. The stored PayloadHash is the log-hash form (spec
// §4.B item 2): keccak256(payloadHash ++ originAddress).
func decodeExecutingMessage(rl *gethtypes.Log) (types.ExecutingMessage, error) {
	const wordLen = 32
	if len(rl.Data) < 5*wordLen {
		return types.ExecutingMessage{}, fmt.Errorf("executing message data too short: %d bytes", len(rl.Data))
	}
	payloadHash := rl.Topics[1]
	origin := common.BytesToAddress(rl.Data[0:wordLen])
	blockNumber := new(big.Int).SetBytes(rl.Data[wordLen : 2*wordLen])
	logIndex := new(big.Int).SetBytes(rl.Data[2*wordLen : 3*wordLen])
	timestamp := new(big.Int).SetBytes(rl.Data[3*wordLen : 4*wordLen])
	chainID := new(big.Int).SetBytes(rl.Data[4*wordLen : 5*wordLen])

	return types.ExecutingMessage{
		ChainID:     eth.ChainIDFromBig(chainID),
		BlockNumber: blockNumber.Uint64(),
		LogIndex:    uint32(logIndex.Uint64()),
		Timestamp:   timestamp.Uint64(),
		PayloadHash: types.PayloadLogHash(payloadHash, origin),
	}, nil
}
