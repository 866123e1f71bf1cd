package syncnode

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/ethereum/go-ethereum/log"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/op-service/locks"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Auth    string          `json:"auth"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

func (e *rpcError) Unwrap() error {
	if e.Code == types.UnknownToNodeRPCCode {
		return types.ErrUnknownToNode
	}
	return nil
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Client is a JSON-RPC client over a single WebSocket connection to one
// managed node, authenticating every call with a freshly signed JWT (spec
// §4.E). The connection is shared by the subscription and command tasks,
// guarded by a mutex so reconnection is serialized (spec §5).
type Client struct {
	url       string
	jwtSecret eth.Bytes32
	log       log.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	nextID  atomic.Uint64
	pending locks.RWMap[uint64, chan rpcResponse]

	notifications chan types.ManagedEvent
}

func Dial(ctx context.Context, url string, jwtSecret eth.Bytes32, logger log.Logger) (*Client, error) {
	c := &Client{url: url, jwtSecret: jwtSecret, log: logger, notifications: make(chan types.ManagedEvent, 1024)}
	if err := c.reconnect(ctx); err != nil {
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial managed node at %s: %w", c.url, err)
	}
	c.conn = conn
	return nil
}

// Notifications returns the channel subscription events are delivered on.
func (c *Client) Notifications() <-chan types.ManagedEvent { return c.notifications }

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}

// Call issues one JSON-RPC request and decodes its result into out.
func (c *Client) Call(ctx context.Context, out any, method string, params ...any) error {
	auth, err := signRequestClaims(c.jwtSecret)
	if err != nil {
		return err
	}
	paramBytes, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params for %s: %w", method, err)
	}
	id := c.nextID.Add(1)
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: paramBytes, Auth: auth}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", method, err)
	}

	respCh := make(chan rpcResponse, 1)
	c.pending.Set(id, respCh)
	defer c.pending.Delete(id)

	c.mu.Lock()
	writeErr := c.conn.Write(ctx, websocket.MessageText, payload)
	c.mu.Unlock()
	if writeErr != nil {
		return fmt.Errorf("write %s: %w", method, writeErr)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-respCh:
		if resp.Error != nil {
			return resp.Error
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, out)
	}
}

// readLoop demultiplexes responses to waiting Call()s and forwards
// subscription notifications to the notifications channel. Transport
// errors end the loop; the subscription task then sees the notification
// stream close and exits with an error. No reconnect is attempted.
func (c *Client) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		_, data, err := conn.Read(context.Background())
		if err != nil {
			c.log.Debug("managed node connection closed", "err", err)
			close(c.notifications)
			return
		}
		var msg rpcResponse
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("malformed managed node message", "err", err)
			continue
		}
		if msg.Method != "" {
			var ev types.ManagedEvent
			if err := json.Unmarshal(msg.Params, &ev); err != nil {
				c.log.Warn("malformed managed node notification", "err", err)
				continue
			}
			select {
			case c.notifications <- ev:
			default:
				c.log.Warn("notification channel full, dropping managed event")
			}
			continue
		}
		if ch, ok := c.pending.Get(msg.ID); ok {
			ch <- msg
		}
	}
}
