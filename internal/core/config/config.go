package config

import (
	"time"

	redisclient "github.com/vietddude/vitality/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Lightning LightningConfig    `yaml:"lightning"`
	Checks    ChecksConfig       `yaml:"checks"`
	Notify    NotifyConfig       `yaml:"notify"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
	Options   map[string]string  `yaml:"options"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Host       string `yaml:"host"`        // bind address, loopback by default
	Port       int    `yaml:"port"`
	GRPCPort   int    `yaml:"grpc_port"`   // 0 = disabled
	AdminToken string `yaml:"admin_token"` // bearer token for write endpoints, empty = none
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // rotated log file, empty = stderr only
}

// LightningConfig selects the transport to the node.
// RPCFile takes precedence over RestURL when both are set.
type LightningConfig struct {
	RPCFile       string        `yaml:"rpc_file"`
	RestURL       string        `yaml:"rest_url"`
	Rune          string        `yaml:"rune"`
	Timeout       time.Duration `yaml:"timeout"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify"`
}

// ChecksConfig holds the schedule of every checker.
type ChecksConfig struct {
	Channels     CheckSchedule `yaml:"channels"`
	Htlcs        CheckSchedule `yaml:"htlcs"`
	Reachability CheckSchedule `yaml:"reachability"`
}

// CheckSchedule holds the timing of one checker.
type CheckSchedule struct {
	Interval     time.Duration `yaml:"interval"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Timeout      time.Duration `yaml:"timeout"`
}

// NotifyConfig holds provider-independent delivery settings.
type NotifyConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	Proxy        string        `yaml:"proxy"` // socks5://host:port, used for telegram and amboss
	RedisChannel string        `yaml:"redis_channel"`
	AmbossURL    string        `yaml:"amboss_url"`
	TelegramAPI  string        `yaml:"telegram_api"` // self-hosted Bot API server
}
