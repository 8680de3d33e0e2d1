package config

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// MarketConfig locates the price and generation series.
type MarketConfig struct {
	// Source is "file" (default) or "smard".
	Source string `json:"source"`
	// Path is the TSV series read by "file" and written by "fetch".
	Path string `json:"path"`
	// Timezone applies to timestamps without an offset.
	Timezone string      `json:"timezone"`
	SMARD    SMARDConfig `json:"smard"`
}

// SMARDConfig tunes the smard.de client. Start and End accept a date or a
// timestamp; empty or invalid values fall back to yesterday and today.
type SMARDConfig struct {
	BaseURL        string `json:"base_url"`
	Region         string `json:"region"`
	Start          string `json:"start"`
	End            string `json:"end"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// Save writes fetched series to market.path before optimizing.
	Save bool `json:"save"`
}

func (c *MarketConfig) SetDefaults() {
	if c.Source == "" {
		c.Source = "file"
	}
	if c.Path == "" {
		c.Path = "data/market.tsv"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Berlin"
	}
	if c.SMARD.Region == "" {
		c.SMARD.Region = "DE"
	}
	if c.SMARD.TimeoutSeconds <= 0 {
		c.SMARD.TimeoutSeconds = 30
	}
}

func (c MarketConfig) Validate() error {
	if c.Source != "file" && c.Source != "smard" {
		return fmt.Errorf("unknown market.source %q", c.Source)
	}
	if c.Source == "file" && c.Path == "" {
		return fmt.Errorf("market.path required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	return nil
}

// Location returns the configured zone, UTC when it cannot be loaded.
func (c MarketConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParametersConfig locates the grid and battery parameter file.
type ParametersConfig struct {
	Path string `json:"path"`
}

func (c *ParametersConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "data/parameters.yaml"
	}
}
