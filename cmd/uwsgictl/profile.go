package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/uwsgictl/internal/config"
)

type fileProfile struct {
	Name                  string   `toml:"name"`
	Network               string   `toml:"network"`
	Address               string   `toml:"address"`
	Hostname              string   `toml:"hostname"`
	Port                  int      `toml:"port"`
	Modifier1             uint8    `toml:"modifier1"`
	Modifier2             uint8    `toml:"modifier2"`
	BufferSize            int      `toml:"buffer_size"`
	Timeout               string   `toml:"timeout"`
	ConnectTimeout        string   `toml:"connect_timeout"`
	ReadTimeout           string   `toml:"read_timeout"`
	WriteTimeout          string   `toml:"write_timeout"`
	HeadersWithoutChanges []string `toml:"headers_without_changes"`
}

// loadProfile reads a client profile. Keys absent from the file keep their zero value
// so command-line flags and client defaults still apply.
func loadProfile(path string) (config.BackendConfig, error) {
	var out config.BackendConfig

	var raw fileProfile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.BackendConfig{}, fmt.Errorf("load profile: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config.BackendConfig{}, fmt.Errorf("load profile: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("name") {
		out.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("network") {
		out.Network = strings.TrimSpace(raw.Network)
	}
	if meta.IsDefined("address") {
		out.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("hostname") {
		out.Hostname = strings.TrimSpace(raw.Hostname)
	}
	if meta.IsDefined("port") {
		out.Port = raw.Port
	}
	if meta.IsDefined("modifier1") {
		m := raw.Modifier1
		out.Modifier1 = &m
	}
	if meta.IsDefined("modifier2") {
		m := raw.Modifier2
		out.Modifier2 = &m
	}
	if meta.IsDefined("buffer_size") {
		out.BufferSize = raw.BufferSize
	}
	if meta.IsDefined("timeout") {
		out.Timeout = raw.Timeout
	}
	if meta.IsDefined("connect_timeout") {
		out.ConnectTimeout = raw.ConnectTimeout
	}
	if meta.IsDefined("read_timeout") {
		out.ReadTimeout = raw.ReadTimeout
	}
	if meta.IsDefined("write_timeout") {
		out.WriteTimeout = raw.WriteTimeout
	}
	if meta.IsDefined("headers_without_changes") {
		out.HeadersWithoutChanges = normalizeNames(raw.HeadersWithoutChanges)
	}
	return out, nil
}

func normalizeNames(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, name := range in {
		v := strings.TrimSpace(name)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
