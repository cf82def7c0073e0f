// Package config loads the kpos-print settings file
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kpos-print/internal/printer"
)

// Storage backends for the selected printer
const (
	BackendFile        = "file"
	BackendPreferences = "preferences"
)

// AppID is the fyne application id used by the preferences backend
const AppID = "id.kpos.print"

// Config is the on-disk settings file
type Config struct {
	Paper           int      `yaml:"paper"`
	Encoding        string   `yaml:"encoding"`
	StoreBackend    string   `yaml:"store_backend"`
	StateDir        string   `yaml:"state_dir"`
	ScanSeconds     int      `yaml:"scan_seconds"`
	WaitForAdapter  bool     `yaml:"wait_for_adapter"`
	RFCOMMChannel   int      `yaml:"rfcomm_channel"`
	PrinterKeywords []string `yaml:"printer_keywords,omitempty"`
	Logo            string   `yaml:"logo,omitempty"`
	AppID           string   `yaml:"app_id"`
}

// Default returns the settings used when no file exists
func Default() *Config {
	return &Config{
		Paper:          58,
		Encoding:       "UTF-8",
		StoreBackend:   BackendFile,
		StateDir:       defaultStateDir(),
		ScanSeconds:    8,
		WaitForAdapter: true,
		RFCOMMChannel:  1,
		AppID:          AppID,
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "kpos-print")
	}
	return ".kpos-print"
}

// DefaultPath is where the settings file lives unless --config says otherwise
func DefaultPath() string {
	return filepath.Join(defaultStateDir(), "config.yaml")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects values the printer subsystem cannot use
func (c *Config) Validate() error {
	if _, err := c.Printer(); err != nil {
		return err
	}
	switch strings.ToLower(c.StoreBackend) {
	case BackendFile, BackendPreferences:
	default:
		return fmt.Errorf("unknown store_backend %q (want %s or %s)", c.StoreBackend, BackendFile, BackendPreferences)
	}
	if c.ScanSeconds <= 0 {
		return fmt.Errorf("scan_seconds must be positive, got %d", c.ScanSeconds)
	}
	if c.RFCOMMChannel < 1 || c.RFCOMMChannel > 30 {
		return fmt.Errorf("rfcomm_channel must be 1-30, got %d", c.RFCOMMChannel)
	}
	return nil
}

// Printer returns the paper profile with the configured encoding
func (c *Config) Printer() (printer.Config, error) {
	p, err := printer.ProfileFor(c.Paper)
	if err != nil {
		return printer.Config{}, err
	}
	return p.WithEncoding(c.Encoding)
}

// ScanWindow is the discovery duration
func (c *Config) ScanWindow() time.Duration {
	return time.Duration(c.ScanSeconds) * time.Second
}

// StorePath is the file backing the file store
func (c *Config) StorePath() string {
	return filepath.Join(c.StateDir, "state.json")
}
