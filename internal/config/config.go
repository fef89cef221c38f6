package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/kartikbazzad/bunbase/bunquery/internal/wire"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "BUNQUERY_"

// Config holds the server configuration
type Config struct {
	Addr           string        `mapstructure:"addr"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	DefaultDB      string        `mapstructure:"default_db"`
	MaxConnections int           `mapstructure:"max_connections"` // 0 = unlimited
	MaxFrameSize   uint32        `mapstructure:"max_frame_size"`  // 0 = unlimited
	Storage        StorageConfig `mapstructure:"storage"`
	Log            LogConfig     `mapstructure:"log"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"` // memory, sqlite
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Default() *Config {
	return &Config{
		Addr:           "127.0.0.1:28015",
		MetricsAddr:    "",
		DefaultDB:      "test",
		MaxConnections: 0,
		MaxFrameSize:   wire.DefaultMaxFrameSize,
		Storage: StorageConfig{
			Backend: "memory",
			Path:    "./bunquery.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate reports configuration values the server cannot start with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must be >= 0, got %d", c.MaxConnections)
	}
	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// Load returns Default() overridden by an optional config file and by
// environment variables carrying prefix. BUNQUERY_STORAGE__PATH sets
// storage.path: a double underscore separates nesting levels, a single one is
// part of the key.
func Load(prefix, file string) (*Config, error) {
	cfg := Default()
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		key, value, ok := strings.Cut(envStr, "=")
		if !ok || !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		propKey := strings.ToLower(strings.TrimPrefix(key, prefixUpper))
		propKey = strings.ReplaceAll(propKey, "__", ".")
		v.Set(propKey, value)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
