package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/uwsgictl/internal/transport"
	"github.com/pelletier/go-toml/v2"
)

type GatewayConfig struct {
	Name        string        `toml:"name"`
	Addr        string        `toml:"addr"`
	CorsOrigins []string      `toml:"cors_origins"`
	Backend     BackendConfig `toml:"backend"`
}

// BackendConfig describes one uwsgi application server.
// Durations use time.ParseDuration syntax; nil modifiers keep the client defaults.
type BackendConfig struct {
	Name                  string   `toml:"name"`
	Network               string   `toml:"network"`
	Address               string   `toml:"address"`
	Hostname              string   `toml:"hostname"`
	Port                  int      `toml:"port"`
	Modifier1             *uint8   `toml:"modifier1"`
	Modifier2             *uint8   `toml:"modifier2"`
	BufferSize            int      `toml:"buffer_size"`
	Timeout               string   `toml:"timeout"`
	ConnectTimeout        string   `toml:"connect_timeout"`
	ReadTimeout           string   `toml:"read_timeout"`
	WriteTimeout          string   `toml:"write_timeout"`
	HeadersWithoutChanges []string `toml:"headers_without_changes"`
}

func LoadGatewayConfig(path string) (GatewayConfig, error) {
	var cfg GatewayConfig
	if err := loadToml(path, &cfg); err != nil {
		return GatewayConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "uwsgi-gateway"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Backend.Name == "" {
		cfg.Backend.Name = "default"
	}
	if err := ValidateGatewayConfig(cfg); err != nil {
		return GatewayConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateGatewayConfig(cfg GatewayConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("gateway config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("gateway config missing addr")
	}
	if err := ValidateBackend(cfg.Backend); err != nil {
		return fmt.Errorf("backend invalid: %w", err)
	}
	return nil
}

func ValidateBackend(cfg BackendConfig) error {
	if strings.TrimSpace(cfg.Address) == "" {
		return fmt.Errorf("address is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Network)) {
	case "", transport.NetworkTCP, "tcp4", "tcp6", transport.NetworkUnix:
	default:
		return fmt.Errorf("network must be tcp or unix, got %q", cfg.Network)
	}
	if cfg.BufferSize < 0 {
		return fmt.Errorf("buffer_size must not be negative")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port out of range: %d", cfg.Port)
	}
	for _, key := range []string{cfg.Timeout, cfg.ConnectTimeout, cfg.ReadTimeout, cfg.WriteTimeout} {
		if _, err := parseDuration(key); err != nil {
			return err
		}
	}
	return nil
}
