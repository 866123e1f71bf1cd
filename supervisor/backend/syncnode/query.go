package syncnode

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

// The query methods below wrap the managed-node RPC queries fetchReceipts,
// l2BlockRefByNumber, l2BlockRefByTimestamp, outputV0AtTimestamp,
// pendingOutputV0AtTimestamp and chainID. anchorPoint has no wrapper here.
// They exist as typed methods (rather than going through the generic
// RPCClient.Call used by the reset bisection and command task) because the
// indexer and the supervisor's read API want a narrower, concretely-typed
// interface to depend on.

func (c *Client) FetchReceipts(ctx context.Context, block eth.BlockID) (gethtypes.Receipts, error) {
	var receipts gethtypes.Receipts
	if err := c.Call(ctx, &receipts, "interop_fetchReceipts", block.Hash); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (c *Client) L2BlockRefByNumber(ctx context.Context, number uint64) (eth.BlockRef, error) {
	var ref eth.BlockRef
	if err := c.Call(ctx, &ref, "interop_l2BlockRefByNumber", number); err != nil {
		return eth.BlockRef{}, err
	}
	return ref, nil
}

func (c *Client) L2BlockRefByTimestamp(ctx context.Context, timestamp uint64) (eth.BlockRef, error) {
	var ref eth.BlockRef
	if err := c.Call(ctx, &ref, "interop_l2BlockRefByTimestamp", timestamp); err != nil {
		return eth.BlockRef{}, err
	}
	return ref, nil
}

func (c *Client) OutputV0AtTimestamp(ctx context.Context, timestamp uint64) (*eth.OutputV0, error) {
	var out eth.OutputV0
	if err := c.Call(ctx, &out, "interop_outputV0AtTimestamp", timestamp); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PendingOutputV0AtTimestamp(ctx context.Context, timestamp uint64) (*eth.OutputV0, error) {
	var out eth.OutputV0
	if err := c.Call(ctx, &out, "interop_pendingOutputV0AtTimestamp", timestamp); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChainID(ctx context.Context) (eth.ChainID, error) {
	var id hexutil.Big
	if err := c.Call(ctx, &id, "interop_chainID"); err != nil {
		return eth.ChainID{}, err
	}
	return eth.ChainIDFromBig((*big.Int)(&id)), nil
}
