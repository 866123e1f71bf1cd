// Package l1source adapts a plain L1 JSON-RPC endpoint to the l1watcher.L1Source
// interface, fetching only the header fields the watcher needs (spec §4.F).
package l1source

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

// header mirrors the subset of eth_getBlockBy{Number,Hash} JSON fields this
// watcher reads; it never needs transactions or uncles.
type header struct {
	Hash       common.Hash   `json:"hash"`
	Number     hexutil.Uint64 `json:"number"`
	ParentHash common.Hash   `json:"parentHash"`
	Time       hexutil.Uint64 `json:"timestamp"`
}

func (h header) blockRef() eth.BlockRef {
	return eth.BlockRef{Hash: h.Hash, Number: uint64(h.Number), ParentHash: h.ParentHash, Time: uint64(h.Time)}
}

// Client wraps a go-ethereum RPC client dialed against an L1 execution node.
type Client struct {
	rpc *gethrpc.Client
}

func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial L1 RPC %s: %w", url, err)
	}
	return &Client{rpc: c}, nil
}

func (c *Client) Close() { c.rpc.Close() }

// BlockRefByLabel fetches the header at the given tag ("latest", "finalized",
// etc). Block bodies are never requested.
func (c *Client) BlockRefByLabel(ctx context.Context, label eth.BlockLabel) (eth.BlockRef, error) {
	var h *header
	if err := c.rpc.CallContext(ctx, &h, "eth_getBlockByNumber", string(label), false); err != nil {
		return eth.BlockRef{}, fmt.Errorf("fetch L1 block %q: %w", label, err)
	}
	if h == nil {
		return eth.BlockRef{}, fmt.Errorf("L1 block %q not found", label)
	}
	return h.blockRef(), nil
}

func (c *Client) BlockRefByHash(ctx context.Context, hash common.Hash) (eth.BlockRef, error) {
	var h *header
	if err := c.rpc.CallContext(ctx, &h, "eth_getBlockByHash", hash, false); err != nil {
		return eth.BlockRef{}, fmt.Errorf("fetch L1 block %s: %w", hash, err)
	}
	if h == nil {
		return eth.BlockRef{}, fmt.Errorf("L1 block %s not found", hash)
	}
	return h.blockRef(), nil
}
