package lightning

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("lightning client closed")

// RPCError is an error answered by the node itself.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// QueryError wraps any failure to read node state.
type QueryError struct {
	Method string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transport failure worth retrying.
// Errors answered by the node are final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr *RPCError
	return !errors.As(err, &rpcErr)
}
