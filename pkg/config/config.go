package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Storage backends for the local slot store.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

type Config struct {
	NodeID     string `yaml:"node_id"`
	RaftAddr   string `yaml:"raft_addr"`
	RaftData   string `yaml:"raft_data"`
	RaftLeader bool   `yaml:"raft_leader"`
	GRPCAddr   string `yaml:"grpc_addr"`
	HTTPAddr   string `yaml:"http_addr"`
	MandiAddr  string `yaml:"mandi_addr"`

	Backend    string `yaml:"backend"`
	DataPath   string `yaml:"data_path"`
	QuotaBytes int64  `yaml:"quota_bytes"`
	LogLevel   string `yaml:"log_level"`
}

// LoadConfig loads configuration from a YAML file if path is provided,
// otherwise it falls back to environment variables. Environment variables
// always override file values. Defaults are applied to anything left unset.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			// If path was explicitly provided but file doesn't exist, return error
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	switch cfg.Backend {
	case BackendMemory, BackendBolt:
	default:
		return nil, fmt.Errorf("unknown backend %q (want %q or %q)", cfg.Backend, BackendMemory, BackendBolt)
	}
	if cfg.QuotaBytes < 0 {
		return nil, fmt.Errorf("quota_bytes must not be negative")
	}

	return &cfg, nil
}

// RequireRaft validates the fields a replicated node cannot run without.
func (c *Config) RequireRaft() error {
	if c.NodeID == "" {
		return fmt.Errorf("NODE_ID is required (set via environment or config file)")
	}
	if c.RaftAddr == "" {
		return fmt.Errorf("RAFT_ADDR is required (set via environment or config file)")
	}
	if c.RaftData == "" {
		return fmt.Errorf("RAFT_DATA is required (set via environment or config file)")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.RaftData == "" && cfg.NodeID != "" {
		cfg.RaftData = fmt.Sprintf("./pyaz/%s", cfg.NodeID)
	}
	if cfg.MandiAddr == "" {
		cfg.MandiAddr = "http://127.0.0.1:7000"
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = ":9090"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	if cfg.DataPath == "" {
		cfg.DataPath = "./pyaz/slots.db"
		if cfg.NodeID != "" {
			cfg.DataPath = fmt.Sprintf("./pyaz/%s/slots.db", cfg.NodeID)
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// applyEnvOverrides allows environment variables to override YAML config values
func applyEnvOverrides(cfg *Config) error {
	fields := map[string]*string{
		"NODE_ID":    &cfg.NodeID,
		"RAFT_ADDR":  &cfg.RaftAddr,
		"RAFT_DATA":  &cfg.RaftData,
		"GRPC_ADDR":  &cfg.GRPCAddr,
		"HTTP_ADDR":  &cfg.HTTPAddr,
		"MANDI_ADDR": &cfg.MandiAddr,
		"BACKEND":    &cfg.Backend,
		"DATA_PATH":  &cfg.DataPath,
		"LOG_LEVEL":  &cfg.LogLevel,
	}
	for env, field := range fields {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	if v := os.Getenv("RAFT_LEADER"); v != "" {
		leader, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RAFT_LEADER value: %w", err)
		}
		cfg.RaftLeader = leader
	}
	if v := os.Getenv("QUOTA_BYTES"); v != "" {
		quota, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid QUOTA_BYTES value: %w", err)
		}
		cfg.QuotaBytes = quota
	}
	return nil
}
