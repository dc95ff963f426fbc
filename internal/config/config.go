// ABOUTME: YAML configuration for the clock firmware
// ABOUTME: Covers WiFi credentials, NTP servers, timezone/DST, calibration and refresh knobs
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Credential is one WiFi network entry. Lower Priority is tried first.
type Credential struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
	Priority int    `yaml:"priority"`
}

// NTPConfig holds the NTP client settings.
type NTPConfig struct {
	// Servers are tried in order; the first responding server wins.
	Servers []string `yaml:"servers"`
	// AttemptsPerServer is clamped to a minimum of 3 by the client.
	AttemptsPerServer int `yaml:"attempts_per_server"`
	// MaxOffsetMs: above this the sample is applied as an emergency step.
	MaxOffsetMs int64 `yaml:"max_offset_ms"`
	TimeoutMs   int64 `yaml:"timeout_ms"`
}

// TimeConfig holds timezone and DST settings.
type TimeConfig struct {
	UTCOffsetHours int    `yaml:"utc_offset_hours"`
	DSTEnabled     bool   `yaml:"dst_enabled"`
	DSTRegion      string `yaml:"dst_region"`
}

// DisplayConfig holds display formatting settings.
type DisplayConfig struct {
	// RefreshMs is floored at 60000 by the orchestrator.
	RefreshMs  int64  `yaml:"refresh_ms"`
	Hour12     bool   `yaml:"hour_12"`
	AMPMLabel  bool   `yaml:"am_pm_label"`
	DateFormat string `yaml:"date_format"` // DMY, MDY or YMD
	Language   string `yaml:"language"`
	Degrees    string `yaml:"degrees"` // C or F
}

// CalibrationConfig holds aging-calibration settings.
type CalibrationConfig struct {
	// MinHours gates automatic calibration after boot or a previous sync.
	MinHours int     `yaml:"min_hours"`
	Damping  float64 `yaml:"damping"`
}

// SchedulerConfig holds the refresh scheduler bias constants.
type SchedulerConfig struct {
	TargetMs int64 `yaml:"target_ms"`
}

// BatteryConfig holds battery monitoring settings.
type BatteryConfig struct {
	Enabled  bool    `yaml:"enabled"`
	WarningV float64 `yaml:"warning_v"`
}

// MonitorConfig holds the optional websocket status feed settings.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DiscoveryConfig holds the optional mDNS time-server discovery settings.
type DiscoveryConfig struct {
	Enabled   bool  `yaml:"enabled"`
	TimeoutMs int64 `yaml:"timeout_ms"`
}

// Config is the root configuration.
type Config struct {
	Networks     []Credential      `yaml:"networks"`
	OpenNetworks bool              `yaml:"open_networks"`
	NTP          NTPConfig         `yaml:"ntp"`
	Time         TimeConfig        `yaml:"time"`
	Display      DisplayConfig     `yaml:"display"`
	Calibration  CalibrationConfig `yaml:"calibration"`
	Scheduler    SchedulerConfig   `yaml:"scheduler"`
	Battery      BatteryConfig     `yaml:"battery"`
	Monitor      MonitorConfig     `yaml:"monitor"`
	Discovery    DiscoveryConfig   `yaml:"discovery"`
	StateDir     string            `yaml:"state_dir"`
	Lightsleep   bool              `yaml:"lightsleep"`
	Debug        bool              `yaml:"debug"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		OpenNetworks: true,
		NTP: NTPConfig{
			Servers: []string{
				"pool.ntp.org", "nl.pool.ntp.org", "europe.pool.ntp.org",
				"time.nist.gov", "time.google.com", "time.windows.com",
			},
			AttemptsPerServer: 5,
			MaxOffsetMs:       1000,
			TimeoutMs:         2000,
		},
		Time: TimeConfig{
			UTCOffsetHours: 1,
			DSTEnabled:     true,
			DSTRegion:      "EU",
		},
		Display: DisplayConfig{
			RefreshMs:  60000,
			Hour12:     false,
			AMPMLabel:  true,
			DateFormat: "DMY",
			Language:   "EN",
			Degrees:    "C",
		},
		Calibration: CalibrationConfig{
			MinHours: 14 * 24,
			Damping:  0.9,
		},
		Scheduler: SchedulerConfig{
			TargetMs: 4000,
		},
		Battery: BatteryConfig{
			Enabled:  true,
			WarningV: 3.4,
		},
		Monitor:    MonitorConfig{Addr: ":8930"},
		Discovery:  DiscoveryConfig{TimeoutMs: 3000},
		StateDir:   "state",
		Lightsleep: true,
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.sortNetworks()
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.NTP.Servers) == 0 {
		return fmt.Errorf("config: at least one NTP server is required")
	}
	if c.NTP.MaxOffsetMs <= 0 {
		return fmt.Errorf("config: ntp.max_offset_ms must be positive")
	}
	switch c.Display.DateFormat {
	case "", "DMY", "MDY", "YMD":
	default:
		return fmt.Errorf("config: unknown date_format %q", c.Display.DateFormat)
	}
	switch c.Display.Degrees {
	case "", "C", "F":
	default:
		return fmt.Errorf("config: degrees must be C or F, got %q", c.Display.Degrees)
	}
	if c.Calibration.Damping <= 0 || c.Calibration.Damping > 1 {
		return fmt.Errorf("config: calibration.damping must be in (0, 1]")
	}
	for _, n := range c.Networks {
		if n.SSID == "" {
			return fmt.Errorf("config: network entry with empty ssid")
		}
	}
	return nil
}

// sortNetworks orders credentials by ascending priority.
func (c *Config) sortNetworks() {
	sort.SliceStable(c.Networks, func(i, j int) bool {
		return c.Networks[i].Priority < c.Networks[j].Priority
	})
}

// Credentials returns the priority-ordered credential list. The list is
// sorted on Load; this re-sorts so a hand-built Config behaves the same.
func (c *Config) Credentials() []Credential {
	c.sortNetworks()
	return c.Networks
}
