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

	"github.com/kilianp07/bessopt/core/metrics"
	"github.com/kilianp07/bessopt/core/model"
	"github.com/kilianp07/bessopt/core/optimizer"
	"github.com/kilianp07/bessopt/core/runlog"
	"github.com/kilianp07/bessopt/infra/mqtt"
	"github.com/kilianp07/bessopt/infra/solver"
)

type Config struct {
	Market     MarketConfig     `json:"market"`
	Parameters ParametersConfig `json:"parameters"`
	Solver     optimizer.Config `json:"solver"`
	Output     OutputConfig     `json:"output"`
	MQTT       mqtt.Config      `json:"mqtt"`
	Metrics    metrics.Config   `json:"metrics"`
	RunLog     runlog.Config    `json:"run_log"`
	Sentry     SentryConfig     `json:"sentry"`
	Server     ServerConfig     `json:"server"`
}

// Load reads a YAML or JSON file and applies K_ prefixed environment
// overrides, where "__" separates nesting levels (K_SOLVER__BACKEND).
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
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
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Market.SetDefaults()
	c.Parameters.SetDefaults()
	if c.Solver.Backend == "" {
		c.Solver.Backend = solver.Backend
	}
	if c.Solver.Efficiency == "" {
		c.Solver.Efficiency = model.EfficiencyAsSpecified
	}
	c.Output.SetDefaults()
	if c.MQTTEnabled() {
		c.MQTT.SetDefaults()
	}
	c.RunLog.SetDefaults()
	c.Sentry.SetDefaults()
	c.Server.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Market.Validate(); err != nil {
		return err
	}
	if c.Parameters.Path == "" {
		return fmt.Errorf("parameters.path required")
	}
	if !c.Solver.Efficiency.Valid() {
		return fmt.Errorf("unknown solver.efficiency_model %q", c.Solver.Efficiency)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir required")
	}
	if c.MQTTEnabled() {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.RunLog.Validate(); err != nil {
		return err
	}
	return c.Sentry.Validate()
}

// MQTTEnabled reports whether schedules are published to a broker.
func (c Config) MQTTEnabled() bool { return c.MQTT.Broker != "" }
