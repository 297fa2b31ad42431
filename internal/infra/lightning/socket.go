package lightning

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// socketTransport speaks JSON-RPC 2.0 over the node's unix socket, one
// connection per call.
type socketTransport struct {
	path   string
	dialer net.Dialer
	nextID atomic.Uint64
}

// NewSocketClient creates a client for the `lightning-rpc` socket at path.
func NewSocketClient(path string, timeout time.Duration) *Client {
	return newClient("socket", &socketTransport{path: path}, timeout)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (t *socketTransport) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	conn, err := t.dialer.DialContext(ctx, "unix", t.path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.path, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock reads when ctx is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      t.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	var resp rpcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id %d does not match request id %d", resp.ID, req.ID)
	}
	return resp.Result, nil
}

func (t *socketTransport) close() error { return nil }
