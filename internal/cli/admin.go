package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/monitoring/health"
)

// adminClient talks to the admin server of a running watcher.
type adminClient struct {
	base  string
	token string
	http  *http.Client
}

func newAdminClient() *adminClient {
	_ = godotenv.Load()
	srv := config.ServerConfig{Host: config.DefaultHost, Port: config.DefaultPort}
	if cfg, err := config.Load(cfgPath); err == nil {
		srv = cfg.Server
	}

	base := adminAddr
	if base == "" {
		base = "http://" + net.JoinHostPort(dialHost(srv.Host), strconv.Itoa(srv.Port))
	}
	return &adminClient{
		base:  strings.TrimRight(base, "/"),
		token: srv.AdminToken,
		http:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// dialHost maps a wildcard bind address to loopback.
func dialHost(host string) string {
	switch host {
	case "", "0.0.0.0", "::":
		return "localhost"
	}
	return host
}

// do sends a request and decodes a 2xx JSON body into out. Other statuses
// are returned as errors carrying the server message.
func (c *adminClient) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is vitality running at %s? %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e health.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return errors.New(e.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
