// Package netx builds outbound HTTP clients, optionally routed through a
// SOCKS5 proxy such as a local Tor daemon.
package netx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// ErrUnsupportedProxy is returned when the proxy dialer cannot honour contexts.
var ErrUnsupportedProxy = errors.New("proxy dialer does not support contexts")

// NewHTTPClient returns a client with the given overall timeout. An empty
// proxyURL means direct connections.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if proxyURL != "" {
		dial, err := socksDialContext(proxyURL)
		if err != nil {
			return nil, err
		}
		transport.DialContext = dial
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

func socksDialContext(raw string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}

	dialer, err := proxy.FromURL(u, &net.Dialer{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("create proxy dialer: %w", err)
	}

	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, ErrUnsupportedProxy
	}
	return cd.DialContext, nil
}
