package client

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/uwsgictl/internal/protocol/packet"
	"github.com/rs/zerolog"
)

// Config is the per-client request configuration.
// Start from DefaultConfig: a zero Modifier1 is sent as 0.
type Config struct {
	// Name labels metrics and logs for this backend.
	Name      string
	Hostname  string
	Host      string
	Port      int
	Modifier1 uint8
	Modifier2 uint8
	// BufferSize bounds the header plus variable block.
	BufferSize int
	// Timeout bounds a whole request; zero means none.
	Timeout time.Duration
	// HeadersWithoutChanges are copied into the variable block under their own spelling.
	HeadersWithoutChanges []string
	Logger                *zerolog.Logger
}

const defaultName = "default"

func DefaultConfig() Config {
	return Config{
		Name:       defaultName,
		Modifier1:  packet.DefaultModifier1,
		Modifier2:  packet.DefaultModifier2,
		BufferSize: packet.DefaultBufferSize,
	}
}

// WithDefaults fills the name and buffer size when unset.
func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = defaultName
	}
	if c.BufferSize <= 0 {
		c.BufferSize = packet.DefaultBufferSize
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	return c
}

// WithAddress fills Host and Port from a host:port address when they are unset.
func (c Config) WithAddress(addr string) Config {
	host, portRaw, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return c
	}
	if c.Host == "" {
		c.Host = host
	}
	if c.Port == 0 {
		if p, err := strconv.Atoi(portRaw); err == nil {
			c.Port = p
		}
	}
	return c
}
