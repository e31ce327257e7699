package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/jfile/internal/bytesize"
)

// Default values for the optional settings.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stderr"

	DefaultAutosyncInterval = 5 * time.Second
)

// DefaultAutosyncMaxBytes is the lingering byte total that triggers an
// early flush.
const DefaultAutosyncMaxBytes = 16 * bytesize.MiB

// Default returns a fully-populated default configuration.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills any zero-valued field with its default. Explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = DefaultLogOutput
	}

	if cfg.Autosync.MaxInterval == 0 {
		cfg.Autosync.MaxInterval = DefaultAutosyncInterval
	}
	if cfg.Autosync.MaxBytes == 0 {
		cfg.Autosync.MaxBytes = DefaultAutosyncMaxBytes
	}
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/jfile, falling back to
// ~/.config/jfile.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "jfile")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "jfile")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}
