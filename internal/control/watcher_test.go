package control

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/vietddude/vitality/internal/core/config"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Lightning: config.LightningConfig{
			RPCFile: filepath.Join(t.TempDir(), "lightning-rpc"), // nothing listens here
			Timeout: 100 * time.Millisecond,
		},
		Checks: config.ChecksConfig{
			Channels:     config.CheckSchedule{Interval: 50 * time.Millisecond},
			Htlcs:        config.CheckSchedule{Interval: 50 * time.Millisecond},
			Reachability: config.CheckSchedule{Interval: 50 * time.Millisecond, Timeout: 100 * time.Millisecond},
		},
		Notify: config.NotifyConfig{
			Timeout:      time.Second,
			RedisChannel: config.DefaultRedisChannel,
			AmbossURL:    "http://127.0.0.1:1/graphql",
		},
		Options: map[string]string{
			"vitality-watch-channels": "true",
			"vitality-expiring-htlcs": "12",
		},
	}
}

func TestWatcher_Lifecycle(t *testing.T) {
	w, err := NewWatcher(testConfig(t))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let a few ticks fail against the missing socket; nothing may crash.
	time.Sleep(200 * time.Millisecond)

	report := w.healthMon.Report()
	if len(report.Checks) != 3 {
		t.Errorf("expected 3 registered checks, got %d", len(report.Checks))
	}
	if len(report.Issues) != 0 {
		t.Errorf("failed node queries must not open issues, got %v", report.Issues)
	}

	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestWatcher_InvalidOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Options["smtp-port"] = "65536"

	if _, err := NewWatcher(cfg); err == nil {
		t.Fatal("expected an error for an out of range smtp-port")
	}
}

func TestWatcher_NotifyOptionsReconfigure(t *testing.T) {
	w, err := NewWatcher(testConfig(t))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	if got := w.dispatcher.Providers(); len(got) != 0 {
		t.Fatalf("expected no providers, got %v", got)
	}

	if _, err := w.Store().Set("telegram-token", "123:abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Store().Set("telegram-usernames", " 42 , 43 "); err != nil {
		t.Fatal(err)
	}

	if got := w.dispatcher.Providers(); !slices.Contains(got, "telegram") {
		t.Errorf("expected telegram provider after update, got %v", got)
	}
}

func TestNewNodeClient(t *testing.T) {
	if _, err := NewNodeClient(config.LightningConfig{}); err == nil {
		t.Error("expected an error without a transport")
	}

	c, err := NewNodeClient(config.LightningConfig{RestURL: "https://127.0.0.1:3010", Rune: "r"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != "rest" {
		t.Errorf("expected rest transport, got %s", c.Name())
	}

	c, err = NewNodeClient(config.LightningConfig{RPCFile: "/tmp/x", RestURL: "https://127.0.0.1:3010"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != "socket" {
		t.Errorf("socket should win over rest, got %s", c.Name())
	}
}
