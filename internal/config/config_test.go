package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/uwsgictl/internal/transport"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadGatewayTemplate(t *testing.T) {
	tmpl, err := Template("gateway")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	cfg, err := LoadGatewayConfig(writeFile(t, tmpl))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "uwsgi-gateway" || cfg.Addr != ":8080" {
		t.Fatalf("unexpected gateway: %+v", cfg)
	}

	cc, err := cfg.Backend.ClientConfig()
	if err != nil {
		t.Fatalf("client config: %v", err)
	}
	if cc.Name != "app" || cc.Modifier1 != 5 || cc.Modifier2 != 0 || cc.BufferSize != 16384 {
		t.Fatalf("unexpected client config: %+v", cc)
	}
	if cc.Timeout != 30*time.Second || cc.Host != "127.0.0.1" || cc.Port != 3031 {
		t.Fatalf("unexpected client config: %+v", cc)
	}

	tc, err := cfg.Backend.TransportConfig()
	if err != nil {
		t.Fatalf("transport config: %v", err)
	}
	if tc.Network != transport.NetworkTCP || tc.ConnectTimeout != 5*time.Second {
		t.Fatalf("unexpected transport config: %+v", tc)
	}
}

func TestLoadGatewayDefaultsAndExplicitZeroModifier(t *testing.T) {
	cfg, err := LoadGatewayConfig(writeFile(t, `
[backend]
address = "/run/app.sock"
network = "unix"
modifier1 = 0
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "uwsgi-gateway" || cfg.Addr != ":8080" || cfg.Backend.Name != "default" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	cc, err := cfg.Backend.ClientConfig()
	if err != nil {
		t.Fatalf("client config: %v", err)
	}
	if cc.Modifier1 != 0 {
		t.Fatalf("explicit modifier1=0 must be kept, got %d", cc.Modifier1)
	}
	if cc.Host != "" || cc.Port != 0 {
		t.Fatalf("unix sockets carry no host/port, got %q:%d", cc.Host, cc.Port)
	}
}

func TestValidateBackendRejects(t *testing.T) {
	cases := map[string]BackendConfig{
		"address":  {},
		"network":  {Address: "x:1", Network: "udp"},
		"duration": {Address: "x:1", Timeout: "soon"},
		"negative": {Address: "x:1", ReadTimeout: "-1s"},
		"port":     {Address: "x:1", Port: 70000},
	}
	for name, cfg := range cases {
		if err := ValidateBackend(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadGatewayMissingFile(t *testing.T) {
	_, err := LoadGatewayConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := WriteTemplate(path, "client", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteTemplate(path, "client", false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if err := WriteTemplate(path, "client", true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
