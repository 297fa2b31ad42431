package lightning

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// restTransport calls clnrest: POST /v1/<method> with the rune header.
type restTransport struct {
	baseURL    string
	rune       string
	httpClient *http.Client
}

// RestConfig holds the clnrest connection settings.
type RestConfig struct {
	URL           string
	Rune          string
	Timeout       time.Duration
	TLSSkipVerify bool
}

// NewRestClient creates a client for a clnrest endpoint.
func NewRestClient(cfg RestConfig) *Client {
	return newClient("rest", &restTransport{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		rune:    cfg.Rune,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify}, //nolint:gosec // clnrest ships a self-signed cert
			},
		},
	}, cfg.Timeout)
}

func (t *restTransport) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	jsonData, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/"+method, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Rune", t.rune)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var rpcErr RPCError
		if json.Unmarshal(body, &rpcErr) == nil && rpcErr.Message != "" {
			return nil, &rpcErr
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	return json.RawMessage(body), nil
}

func (t *restTransport) close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}
