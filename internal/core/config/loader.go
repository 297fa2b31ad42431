package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 8080
	DefaultRPCTimeout       = 30 * time.Second
	DefaultChannelInterval  = time.Hour
	DefaultChannelDelay     = 10 * time.Minute
	DefaultHtlcInterval     = 10 * time.Minute
	DefaultReachInterval    = 5 * time.Minute
	DefaultProbeTimeout     = 30 * time.Second
	DefaultNotifyTimeout    = 60 * time.Second
	DefaultRedisChannel     = "vitality:events"
	DefaultAmbossURL        = "https://api.amboss.space/graphql"
	DefaultLightningRPCFile = "lightning-rpc"
	lightningDirEnv         = "LIGHTNING_DIR"
	defaultLightningNetwork = "bitcoin"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if _, err := ParseOptions(cfg.Options); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}

	if cfg.Lightning.RPCFile == "" && cfg.Lightning.RestURL == "" {
		if dir := os.Getenv(lightningDirEnv); dir != "" {
			cfg.Lightning.RPCFile = dir + "/" + DefaultLightningRPCFile
		} else if home, err := os.UserHomeDir(); err == nil {
			cfg.Lightning.RPCFile = fmt.Sprintf("%s/.lightning/%s/%s",
				home, defaultLightningNetwork, DefaultLightningRPCFile)
		}
	}
	if cfg.Lightning.Timeout == 0 {
		cfg.Lightning.Timeout = DefaultRPCTimeout
	}

	if cfg.Checks.Channels.Interval == 0 {
		cfg.Checks.Channels.Interval = DefaultChannelInterval
		if cfg.Checks.Channels.InitialDelay == 0 {
			cfg.Checks.Channels.InitialDelay = DefaultChannelDelay
		}
	}
	if cfg.Checks.Htlcs.Interval == 0 {
		cfg.Checks.Htlcs.Interval = DefaultHtlcInterval
	}
	if cfg.Checks.Reachability.Interval == 0 {
		cfg.Checks.Reachability.Interval = DefaultReachInterval
	}
	if cfg.Checks.Reachability.Timeout == 0 {
		cfg.Checks.Reachability.Timeout = DefaultProbeTimeout
	}

	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = DefaultNotifyTimeout
	}
	if cfg.Notify.RedisChannel == "" {
		cfg.Notify.RedisChannel = DefaultRedisChannel
	}
	if cfg.Notify.AmbossURL == "" {
		cfg.Notify.AmbossURL = DefaultAmbossURL
	}
}
