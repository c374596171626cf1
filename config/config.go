// Package config loads and validates the service configuration from a YAML
// or JSON file, with CT_ environment variable overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/chargetrack/core/metrics"
	"github.com/kilianp07/chargetrack/core/pricing"
	"github.com/kilianp07/chargetrack/core/session"
	"github.com/kilianp07/chargetrack/core/stats"
	"github.com/kilianp07/chargetrack/infra/mqtt"
)

type Config struct {
	Session  session.Config `json:"session"`
	Pricing  pricing.Config `json:"pricing"`
	MQTT     mqtt.Config    `json:"mqtt"`
	Metrics  metrics.Config `json:"metrics"`
	Stats    stats.Config   `json:"stats"`
	Identity IdentityConfig `json:"identity"`
	Store    StoreConfig    `json:"store"`
	API      APIConfig      `json:"api"`
}

// StoreConfig locates the on-disk state.
type StoreConfig struct {
	// SnapshotDir holds one recovery snapshot file per charger.
	SnapshotDir string `json:"snapshot_dir"`
	// StatsPath is the aggregated statistics file.
	StatsPath string `json:"stats_path"`
	// HistoryPath is the JSONL session history file.
	HistoryPath string `json:"history_path"`
}

// SetDefaults places state under a single data directory.
func (c *StoreConfig) SetDefaults() {
	if c.SnapshotDir == "" {
		c.SnapshotDir = "data/snapshots"
	}
	if c.StatsPath == "" {
		c.StatsPath = "data/stats.json"
	}
	if c.HistoryPath == "" {
		c.HistoryPath = "data/sessions.jsonl"
	}
}

// APIConfig configures the HTTP endpoints.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// SetDefaults applies the stock listen address.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("CT_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ct_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Session.SetDefaults()
	cfg.Pricing.SetDefaults()
	cfg.Stats.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.API.SetDefaults()
	cfg.MQTT.SetDefaults(cfg.Session.ChargerID)
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Identity.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
