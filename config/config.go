// Package config loads the scanner configuration from a YAML file or
// CLI flags. Absent fields keep their defaults, so a minimal config only
// names the exchange.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/surge/internal/services/alerting"
	"github.com/vadiminshakov/surge/internal/services/detector"
)

// Config is the full scanner configuration.
type Config struct {
	// Exchange is upbit, binance or bybit.
	Exchange string `yaml:"exchange"`
	// QuotePrefix filters the Upbit market universe, e.g. "KRW-".
	QuotePrefix string `yaml:"quote_prefix"`
	// Markets is the explicit symbol universe for exchanges without a
	// quote-prefix listing (Binance, Bybit).
	Markets []string `yaml:"markets,omitempty"`
	// ReferenceBasket anchors the decoupling score.
	ReferenceBasket []string `yaml:"reference_basket,omitempty"`

	ScanInterval      time.Duration `yaml:"scan_interval"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`

	SectorFile string `yaml:"sector_file,omitempty"`
	WebhookURL string `yaml:"webhook_url,omitempty"`
	StateDir   string `yaml:"state_dir,omitempty"`

	DashboardAddr string `yaml:"dashboard_addr,omitempty"`
	// DashboardDomain enables Let's Encrypt TLS for the dashboard.
	DashboardDomain string `yaml:"dashboard_domain,omitempty"`

	Detector DetectorConfig `yaml:"detector"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

// DetectorConfig tunes the anomaly detector.
type DetectorConfig struct {
	ZScoreGate    float64          `yaml:"z_score_gate"`
	MinConfidence float64          `yaml:"min_confidence"`
	Weights       detector.Weights `yaml:"weights"`
}

// AlertsConfig tunes the alert engine.
type AlertsConfig struct {
	MinPriceChange     float64       `yaml:"min_price_change"`
	MinConfidence      float64       `yaml:"min_confidence"`
	Cooldown           time.Duration `yaml:"cooldown"`
	SustainedMinChange float64       `yaml:"sustained_min_change"`
	HistoryTTL         time.Duration `yaml:"history_ttl"`
}

// Default returns the configuration the scanner ships with: Upbit KRW
// markets, scans every 10 minutes.
func Default() Config {
	det := detector.DefaultConfig()
	al := alerting.DefaultConfig()
	return Config{
		Exchange:          "upbit",
		QuotePrefix:       "KRW-",
		ReferenceBasket:   []string{"KRW-BTC", "KRW-ETH"},
		ScanInterval:      10 * time.Minute,
		RequestsPerSecond: 8,
		StateDir:          "./wal/alerts",
		Detector: DetectorConfig{
			ZScoreGate:    det.ZScoreGate,
			MinConfidence: det.MinConfidence,
			Weights:       det.Weights,
		},
		Alerts: AlertsConfig{
			MinPriceChange:     al.MinPriceChange,
			MinConfidence:      al.MinConfidence,
			Cooldown:           al.Cooldown,
			SustainedMinChange: al.SustainedMinChange,
			HistoryTTL:         al.HistoryTTL,
		},
	}
}

// Flags are the CLI options parsed alongside the config file.
type Flags struct {
	ConfigPath string
	Once       bool
	Setup      bool
}

// Get parses flags and loads the configuration. Without -config the
// defaults are used.
func Get() (Config, Flags, error) {
	var flags Flags
	flag.StringVar(&flags.ConfigPath, "config", "", "path to yaml config")
	flag.BoolVar(&flags.Once, "once", false, "run a single scan and exit")
	flag.BoolVar(&flags.Setup, "setup", false, "run the interactive setup wizard")
	flag.Parse()

	cfg := Default()
	if flags.ConfigPath == "" {
		return cfg, flags, nil
	}

	loaded, err := Load(flags.ConfigPath)
	if err != nil {
		return Config{}, flags, err
	}
	return loaded, flags, nil
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg.validate()
}

func (c Config) validate() (Config, error) {
	switch c.Exchange {
	case "upbit":
		if c.QuotePrefix == "" {
			return Config{}, fmt.Errorf("quote_prefix is required for upbit")
		}
	case "binance", "bybit":
		if len(c.Markets) == 0 {
			return Config{}, fmt.Errorf("markets list is required for %s", c.Exchange)
		}
	default:
		return Config{}, fmt.Errorf("unsupported exchange: %s", c.Exchange)
	}

	if c.ScanInterval <= 0 {
		return Config{}, fmt.Errorf("scan_interval must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		return Config{}, fmt.Errorf("requests_per_second must be positive")
	}
	return c, nil
}

// DetectorSettings maps the config onto the detector's own config type.
func (c Config) DetectorSettings() detector.Config {
	return detector.Config{
		ZScoreGate:    c.Detector.ZScoreGate,
		MinConfidence: c.Detector.MinConfidence,
		Weights:       c.Detector.Weights,
	}
}

// AlertSettings maps the config onto the alert engine's config type.
func (c Config) AlertSettings() alerting.Config {
	return alerting.Config{
		MinPriceChange:     c.Alerts.MinPriceChange,
		MinConfidence:      c.Alerts.MinConfidence,
		Cooldown:           c.Alerts.Cooldown,
		SustainedMinChange: c.Alerts.SustainedMinChange,
		HistoryTTL:         c.Alerts.HistoryTTL,
	}
}
