package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
)

type Config struct {
	Store StoreConfig `toml:"store"`
	HTTP  HTTPConfig  `toml:"http"`
	Log   LogConfig   `toml:"log"`
}

type StoreConfig struct {
	Dir             string        `toml:"dir"`
	Backend         string        `toml:"backend"`
	FlushInterval   time.Duration `toml:"flush_interval"`
	QueueSize       int           `toml:"queue_size"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	// Applies to file backend only.
	Sync bool `toml:"sync"`
}

type HTTPConfig struct {
	Listen string `toml:"listen"`
	// Empty key disables auth.
	APIKey string `toml:"api_key"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:             "./data",
			Backend:         BackendFile,
			FlushInterval:   time.Millisecond * 100, //nolint: mnd
			QueueSize:       4096,                   //nolint: mnd
			ShutdownTimeout: time.Second * 10,       //nolint: mnd
		},
		HTTP: HTTPConfig{
			Listen: "127.0.0.1:7070",
		},
		Log: LogConfig{
			Level: zerolog.InfoLevel.String(),
		},
	}
}

// Load reads TOML file at path over defaults.
// Empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}

	return cfg, nil
}

func (cfg *Config) Validate() error {
	var errs []error

	if cfg.Store.Dir == "" {
		errs = append(errs, errors.New("store.dir must not be empty"))
	}
	if !lo.Contains([]string{BackendFile, BackendBadger, BackendBolt}, cfg.Store.Backend) {
		errs = append(errs, fmt.Errorf("unknown store.backend: %q", cfg.Store.Backend))
	}
	if cfg.Store.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("store.flush_interval must be positive, got: %s", cfg.Store.FlushInterval))
	}
	if cfg.Store.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("store.queue_size must be positive, got: %d", cfg.Store.QueueSize))
	}
	if cfg.Store.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store.shutdown_timeout must be positive, got: %s", cfg.Store.ShutdownTimeout))
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Listen); err != nil {
		errs = append(errs, fmt.Errorf("invalid http.listen: %w", err))
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log.level: %w", err))
	}

	return errors.Join(errs...)
}
