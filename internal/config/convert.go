package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/uwsgictl/internal/client"
	"github.com/danmuck/uwsgictl/internal/transport"
)

// ClientConfig maps b onto client.DefaultConfig.
func (b BackendConfig) ClientConfig() (client.Config, error) {
	cfg := client.DefaultConfig()
	if name := strings.TrimSpace(b.Name); name != "" {
		cfg.Name = name
	}
	cfg.Hostname = strings.TrimSpace(b.Hostname)
	cfg.Port = b.Port
	if b.Modifier1 != nil {
		cfg.Modifier1 = *b.Modifier1
	}
	if b.Modifier2 != nil {
		cfg.Modifier2 = *b.Modifier2
	}
	if b.BufferSize > 0 {
		cfg.BufferSize = b.BufferSize
	}
	timeout, err := parseDuration(b.Timeout)
	if err != nil {
		return client.Config{}, err
	}
	cfg.Timeout = timeout
	cfg.HeadersWithoutChanges = append([]string(nil), b.HeadersWithoutChanges...)
	if !strings.EqualFold(strings.TrimSpace(b.Network), transport.NetworkUnix) {
		cfg = cfg.WithAddress(b.Address)
	}
	return cfg, nil
}

func (b BackendConfig) TransportConfig() (transport.Config, error) {
	cfg := transport.Config{
		Network: b.Network,
		Address: b.Address,
	}
	var err error
	if cfg.ConnectTimeout, err = parseDuration(b.ConnectTimeout); err != nil {
		return transport.Config{}, err
	}
	if cfg.ReadTimeout, err = parseDuration(b.ReadTimeout); err != nil {
		return transport.Config{}, err
	}
	if cfg.WriteTimeout, err = parseDuration(b.WriteTimeout); err != nil {
		return transport.Config{}, err
	}
	return cfg.WithDefaults(), nil
}

// NewClient builds a dialer and client for b.
func (b BackendConfig) NewClient() (*client.Client, error) {
	tcfg, err := b.TransportConfig()
	if err != nil {
		return nil, err
	}
	dialer, err := transport.NewDialer(tcfg)
	if err != nil {
		return nil, err
	}
	ccfg, err := b.ClientConfig()
	if err != nil {
		return nil, err
	}
	return client.New(dialer, ccfg)
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", raw)
	}
	return d, nil
}
