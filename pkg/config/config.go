// Package config loads the configuration consumed by the jfile CLI.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (JFILE_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/jfile/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config captures the static settings of the jfile tooling: logging,
// the journal directory override, and autosync behaviour for handles
// the CLI opens.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Journal overrides journal placement
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`

	// Autosync configures the background flusher for lingering handles
	Autosync AutosyncConfig `mapstructure:"autosync" yaml:"autosync"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level emitted
	// Valid values: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR" yaml:"level"`

	// Format selects the output encoding
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is where logs go: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// JournalConfig overrides where journals live.
type JournalConfig struct {
	// Dir places the journal directory somewhere other than next to the
	// data file. Empty means the default sibling location.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// AutosyncConfig configures the background flusher.
type AutosyncConfig struct {
	// Enabled turns the flusher on for handles opened with lingering
	// transactions
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// MaxInterval is the longest a lingering record waits before a flush
	MaxInterval time.Duration `mapstructure:"max_interval" validate:"omitempty,gt=0" yaml:"max_interval"`

	// MaxBytes flushes early once this many lingering bytes accumulate.
	// Supports human-readable sizes: "64Mi", "100MB"
	MaxBytes bytesize.ByteSize `mapstructure:"max_bytes" yaml:"max_bytes,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath means the default location; a missing file is not
// an error and yields the defaults plus any JFILE_* overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	// AutomaticEnv only answers for keys viper already knows; bind each key
	// so JFILE_* variables apply even when no config file sets it.
	for _, key := range []string{"logging.level", "logging.format", "logging.output",
		"journal.dir", "autosync.enabled", "autosync.max_interval", "autosync.max_bytes"} {
		_ = v.BindEnv(key)
	}

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to path in YAML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration against the struct validation tags.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// setupViper configures environment binding and the config file search.
func setupViper(v *viper.Viper, configPath string) {
	// Example: JFILE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("JFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(DefaultConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the config file if present. Returns whether a
// file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks combines the decode hooks for the custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize
// so config files can say "64Mi" or a plain number.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
