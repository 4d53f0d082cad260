// Package config loads npipolicy runtime settings from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. NPIPOLICY_LOGGER_LEVEL.
const EnvPrefix = "NPIPOLICY"

// Config is the root of the runtime configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Store   StoreConfig   `mapstructure:"store"`
	Journal JournalConfig `mapstructure:"journal"`
	Presets PresetsConfig `mapstructure:"presets"`
	Watch   WatchConfig   `mapstructure:"watch"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type JournalConfig struct {
	Path string `mapstructure:"path"`
}

type PresetsConfig struct {
	Dir string `mapstructure:"dir"`
}

type WatchConfig struct {
	DebounceMillis int `mapstructure:"debounce_ms"`
}

// Dir returns ~/.npipolicy, or .npipolicy when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".npipolicy"
	}
	return filepath.Join(home, ".npipolicy")
}

// Load reads path if given, otherwise npipolicy.yaml from the working
// directory or Dir(). A missing default file is not an error. Environment
// variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("npipolicy")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if cfg.Watch.DebounceMillis <= 0 {
		return nil, fmt.Errorf("watch.debounce_ms must be positive, got %d", cfg.Watch.DebounceMillis)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("store.path", filepath.Join(dir, "policies.db"))
	v.SetDefault("journal.path", filepath.Join(dir, "journal.jsonl"))
	v.SetDefault("presets.dir", filepath.Join(dir, "presets"))
	v.SetDefault("watch.debounce_ms", 500)
}
