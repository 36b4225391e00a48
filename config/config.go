// Package config loads the explorer specific settings. Server ports and
// the data root come from gigapi-config; everything here layers on top.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ArchDirect = 1
	ArchProxy  = 2
)

// Explorer holds the explorer settings.
type Explorer struct {
	ArchMode     int           `mapstructure:"arch_mode"`
	NebulaAddr   string        `mapstructure:"nebula_addr"`
	ProxyURL     string        `mapstructure:"proxy_url"`
	UIDir        string        `mapstructure:"ui_dir"`
	AuthHeader   string        `mapstructure:"auth_header"`
	LogLevel     string        `mapstructure:"log_level"`
	DuckDBPath   string        `mapstructure:"duckdb_path"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

var defaults = map[string]any{
	"arch_mode":     ArchProxy,
	"nebula_addr":   "localhost:8082",
	"proxy_url":     "http://localhost:7972",
	"ui_dir":        "./ui/dist",
	"auth_header":   "X-Forwarded-User",
	"log_level":     "info",
	"duckdb_path":   "",
	"query_timeout": 60 * time.Second,
}

// Load reads settings from the environment and, when path is set, from a
// config file. Environment variables use the upper-case key names
// (ARCH_MODE, NEBULA_ADDR, ...).
func Load(path string) (*Explorer, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Explorer{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.ArchMode != ArchDirect && cfg.ArchMode != ArchProxy {
		return nil, fmt.Errorf("invalid arch_mode %d: want %d (direct) or %d (proxy)", cfg.ArchMode, ArchDirect, ArchProxy)
	}
	return cfg, nil
}
