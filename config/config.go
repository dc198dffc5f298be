package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the gateway binary's TOML configuration.
type Config struct {
	LogLevel string `toml:"log_level"` // "debug", "info", "warn", "error"

	TCPAddr string `toml:"tcp_addr"`
	WSAddr  string `toml:"ws_addr"`
	WebAddr string `toml:"web_addr"` // status API; empty disables it

	MaxConns         int      `toml:"max_conns"`
	LinkCloseTimeout Duration `toml:"link_close_timeout"`
}

// Duration lets TOML values like "30s" decode into a time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func Default() Config {
	return Config{
		LogLevel:         "info",
		TCPAddr:          "0.0.0.0:8888",
		WSAddr:           "0.0.0.0:8889",
		WebAddr:          "0.0.0.0:8080",
		MaxConns:         64,
		LinkCloseTimeout: Duration{30 * time.Second},
	}
}

// Load reads the TOML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return cfg, nil
}
