// Package lightning is a read-only client for a Core Lightning node, over the
// unix socket or clnrest.
package lightning

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/vitality/internal/monitoring/metrics"
)

// transport performs one request/response exchange.
type transport interface {
	call(ctx context.Context, method string, params any) (json.RawMessage, error)
	close() error
}

// HealthStatus summarizes recent calls to the node.
type HealthStatus struct {
	Available           bool          `json:"available"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	AvgLatency          time.Duration `json:"avg_latency"`
}

// Client serializes every call to the node: concurrent checkers queue on
// callMu instead of racing the connection.
type Client struct {
	name      string
	transport transport
	timeout   time.Duration
	backoff   func() retry.Backoff

	callMu sync.Mutex

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	closed       bool
}

func newClient(name string, t transport, timeout time.Duration) *Client {
	return &Client{
		name:      name,
		transport: t,
		timeout:   timeout,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(250*time.Millisecond))
		},
		health: HealthStatus{Available: true},
	}
}

// Name identifies the transport ("socket" or "rest").
func (c *Client) Name() string { return c.name }

// Call invokes method with named params and decodes the result into out.
// Transport failures are retried briefly; node errors are returned as is.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return &QueryError{Method: method, Err: ErrClosed}
	}

	if params == nil {
		params = map[string]any{}
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	start := time.Now()
	var raw json.RawMessage
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		res, err := c.transport.call(callCtx, method, params)
		if err != nil {
			if IsRetryable(err) && ctx.Err() == nil {
				return retry.RetryableError(err)
			}
			return err
		}
		raw = res
		return nil
	})
	latency := time.Since(start)
	metrics.RPCLatency.WithLabelValues(method).Observe(latency.Seconds())

	if err != nil {
		c.recordFailure(err)
		metrics.RPCCallsTotal.WithLabelValues(method, "error").Inc()
		return &QueryError{Method: method, Err: err}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.recordFailure(err)
			metrics.RPCCallsTotal.WithLabelValues(method, "error").Inc()
			return &QueryError{Method: method, Err: fmt.Errorf("decode result: %w", err)}
		}
	}

	c.recordSuccess(latency)
	metrics.RPCCallsTotal.WithLabelValues(method, "ok").Inc()
	return nil
}

// GetInfo returns the node identity and block height.
func (c *Client) GetInfo(ctx context.Context) (*GetInfo, error) {
	var info GetInfo
	if err := c.Call(ctx, "getinfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListPeerChannels returns every channel with our peers.
func (c *Client) ListPeerChannels(ctx context.Context) ([]PeerChannel, error) {
	var resp struct {
		Channels []PeerChannel `json:"channels"`
	}
	if err := c.Call(ctx, "listpeerchannels", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// ListChannelsBySource returns the gossip entries of channels announced by id.
func (c *Client) ListChannelsBySource(ctx context.Context, id string) ([]GossipChannel, error) {
	return c.listChannels(ctx, map[string]any{"source": id})
}

// ListChannelsByDestination returns the gossip entries of channels pointing at id.
func (c *Client) ListChannelsByDestination(ctx context.Context, id string) ([]GossipChannel, error) {
	return c.listChannels(ctx, map[string]any{"destination": id})
}

func (c *Client) listChannels(ctx context.Context, params map[string]any) ([]GossipChannel, error) {
	var resp struct {
		Channels []GossipChannel `json:"channels"`
	}
	if err := c.Call(ctx, "listchannels", params, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// ListNodes returns the gossip node entries; an empty id lists every node.
func (c *Client) ListNodes(ctx context.Context, id string) ([]Node, error) {
	params := map[string]any{}
	if id != "" {
		params["id"] = id
	}
	var resp struct {
		Nodes []Node `json:"nodes"`
	}
	if err := c.Call(ctx, "listnodes", params, &resp); err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

// SignMessage signs msg with the node key.
func (c *Client) SignMessage(ctx context.Context, msg string) (*SignMessage, error) {
	var sig SignMessage
	if err := c.Call(ctx, "signmessage", map[string]any{"message": msg}, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

// GetHealth returns the client's health status.
func (c *Client) GetHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health
}

// Close releases the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.transport.close()
}

func (c *Client) recordSuccess(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successCount++
	c.totalLatency += latency
	c.health.Available = true
	c.health.LastSuccessAt = time.Now()
	c.health.LastError = ""
	c.health.ConsecutiveFailures = 0
	c.health.AvgLatency = c.totalLatency / time.Duration(c.successCount)
}

func (c *Client) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.health.ConsecutiveFailures++
	c.health.LastError = err.Error()
	if c.health.ConsecutiveFailures >= 3 {
		c.health.Available = false
	}
}
