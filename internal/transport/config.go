package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	NetworkTCP  = "tcp"
	NetworkUnix = "unix"
)

var (
	ErrAddressRequired = errors.New("transport: address required")
	ErrInvalidNetwork  = errors.New("transport: invalid network")
)

// Config is the immutable connection-factory configuration handed to each request.
type Config struct {
	Network        string
	Address        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Network:        NetworkTCP,
		ConnectTimeout: 5 * time.Second,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	c.Network = strings.ToLower(strings.TrimSpace(c.Network))
	if c.Network == "" {
		c.Network = def.Network
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	c.Address = strings.TrimSpace(c.Address)
	return c
}

func (c Config) Validate() error {
	switch c.Network {
	case NetworkTCP, "tcp4", "tcp6", NetworkUnix:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, c.Network)
	}
	if c.Address == "" {
		return ErrAddressRequired
	}
	return nil
}
