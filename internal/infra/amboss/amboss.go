// Package amboss pings the Amboss health check API with a node-signed
// timestamp.
package amboss

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/vitality/internal/infra/lightning"
)

// TimestampLayout is the format Amboss expects for the signed timestamp.
const TimestampLayout = "2006-01-02T15:04:05-0700"

const healthCheckMutation = "mutation HealthCheck($signature: String!, $timestamp: String!) " +
	"{ healthCheck(signature: $signature, timestamp: $timestamp) }"

// ErrRejected is returned when the API answers without a positive health check.
var ErrRejected = errors.New("amboss health check rejected")

// Signer signs a message with the node key.
type Signer interface {
	SignMessage(ctx context.Context, msg string) (*lightning.SignMessage, error)
}

// Client sends health check pings.
type Client struct {
	url        string
	httpClient *http.Client
	signer     Signer
	now        func() time.Time
}

// NewClient creates a client posting to url.
func NewClient(url string, httpClient *http.Client, signer Signer) *Client {
	return &Client{
		url:        url,
		httpClient: httpClient,
		signer:     signer,
		now:        time.Now,
	}
}

// Ping signs the current time and submits it. Any answer other than
// data.healthCheck == true is an error.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	timestamp := c.now().UTC().Format(TimestampLayout)

	sig, err := c.signer.SignMessage(ctx, timestamp)
	if err != nil {
		return fmt.Errorf("sign timestamp: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"query": healthCheckMutation,
		"variables": map[string]string{
			"signature": sig.Zbase,
			"timestamp": timestamp,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post health check: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var out struct {
		Data struct {
			HealthCheck *bool `json:"healthCheck"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Data.HealthCheck == nil || !*out.Data.HealthCheck {
		return fmt.Errorf("%w: http %d: %s", ErrRejected, resp.StatusCode, string(body))
	}

	slog.Info("Amboss ping succeeded", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
