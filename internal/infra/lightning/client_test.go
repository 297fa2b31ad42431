package lightning

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// Fake node
// =============================================================================

type fakeNode struct {
	ln       net.Listener
	path     string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	handler  func(method string, params json.RawMessage) (any, *RPCError)
}

func startFakeNode(t *testing.T, handler func(string, json.RawMessage) (any, *RPCError)) *fakeNode {
	t.Helper()
	dir, err := os.MkdirTemp("", "ln")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "lightning-rpc")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	n := &fakeNode{ln: ln, path: path, handler: handler}
	t.Cleanup(func() { _ = ln.Close() })

	go n.serve()
	return n
}

func (n *fakeNode) serve() {
	for {
		conn, err := n.ln.Accept()
		if err != nil {
			return
		}
		go n.handle(conn)
	}
}

func (n *fakeNode) handle(conn net.Conn) {
	defer conn.Close()

	cur := n.inFlight.Add(1)
	for {
		prev := n.maxSeen.Load()
		if cur <= prev || n.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}

	var req struct {
		ID     uint64          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		n.inFlight.Add(-1)
		return
	}
	time.Sleep(5 * time.Millisecond)
	// Leave before answering so the next serialized call never overlaps.
	n.inFlight.Add(-1)

	result, rpcErr := n.handler(req.Method, req.Params)
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	data, _ := json.Marshal(resp)
	_, _ = conn.Write(append(data, '\n', '\n'))
}

// =============================================================================
// Tests
// =============================================================================

func TestSocket_GetInfo(t *testing.T) {
	node := startFakeNode(t, func(method string, _ json.RawMessage) (any, *RPCError) {
		if method != "getinfo" {
			return nil, &RPCError{Code: -32601, Message: "unknown method"}
		}
		return map[string]any{"id": "02abc", "alias": "vitality-test", "blockheight": 850000}, nil
	})

	c := NewSocketClient(node.path, time.Second)
	info, err := c.GetInfo(context.Background())
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.ID != "02abc" || info.BlockHeight != 850000 {
		t.Errorf("Unexpected info: %+v", info)
	}
	if !c.GetHealth().Available {
		t.Error("Expected client to be available")
	}
}

func TestSocket_NamedParams(t *testing.T) {
	var got map[string]string
	node := startFakeNode(t, func(method string, params json.RawMessage) (any, *RPCError) {
		_ = json.Unmarshal(params, &got)
		return map[string]any{"channels": []any{}}, nil
	})

	c := NewSocketClient(node.path, time.Second)
	if _, err := c.ListChannelsBySource(context.Background(), "02abc"); err != nil {
		t.Fatalf("ListChannelsBySource failed: %v", err)
	}
	if got["source"] != "02abc" {
		t.Errorf("Expected source param, got %v", got)
	}
}

func TestSocket_RPCErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	node := startFakeNode(t, func(string, json.RawMessage) (any, *RPCError) {
		calls.Add(1)
		return nil, &RPCError{Code: -1, Message: "boom"}
	})

	c := NewSocketClient(node.path, time.Second)
	_, err := c.ListPeerChannels(context.Background())

	var qerr *QueryError
	if !errors.As(err, &qerr) || qerr.Method != "listpeerchannels" {
		t.Fatalf("Expected QueryError for listpeerchannels, got %v", err)
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Message != "boom" {
		t.Errorf("Expected wrapped RPCError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly 1 call, got %d", calls.Load())
	}
}

func TestSocket_MissingSocketFails(t *testing.T) {
	c := NewSocketClient(filepath.Join(t.TempDir(), "nope"), 100*time.Millisecond)
	for i := 0; i < 3; i++ {
		if _, err := c.GetInfo(context.Background()); err == nil {
			t.Fatal("Expected error for missing socket")
		}
	}
	if c.GetHealth().Available {
		t.Error("Expected client unavailable after repeated failures")
	}
}

func TestSocket_CallsAreSerialized(t *testing.T) {
	node := startFakeNode(t, func(string, json.RawMessage) (any, *RPCError) {
		return map[string]any{"id": "02abc"}, nil
	})
	c := NewSocketClient(node.path, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetInfo(context.Background())
		}()
	}
	wg.Wait()

	if node.maxSeen.Load() != 1 {
		t.Errorf("Expected at most 1 concurrent request, saw %d", node.maxSeen.Load())
	}
}

func TestRest_CallAndRune(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Rune") != "secret-rune" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":1501,"message":"Not authorized"}`))
			return
		}
		if r.URL.Path != "/v1/signmessage" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"signature":"aa","recid":"00","zbase":"d7abc"}`))
	}))
	defer srv.Close()

	c := NewRestClient(RestConfig{URL: srv.URL + "/", Rune: "secret-rune", Timeout: time.Second})
	sig, err := c.SignMessage(context.Background(), "2026-01-01T00:00:00+0000")
	if err != nil {
		t.Fatalf("SignMessage failed: %v", err)
	}
	if sig.Zbase != "d7abc" {
		t.Errorf("Expected zbase d7abc, got %s", sig.Zbase)
	}

	bad := NewRestClient(RestConfig{URL: srv.URL, Rune: "wrong", Timeout: time.Second})
	_, err = bad.SignMessage(context.Background(), "x")
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != 1501 {
		t.Errorf("Expected RPCError 1501, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rpc", &RPCError{Code: -1, Message: "x"}, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"transport", errors.New("dial unix: connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
