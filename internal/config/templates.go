package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "gateway":
		return gatewayTemplate, nil
	case "client", "profile":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const gatewayTemplate = `name = "uwsgi-gateway"
addr = ":8080"
cors_origins = ["http://localhost:3000"]

[backend]
name = "app"
network = "tcp"
address = "127.0.0.1:3031"
modifier1 = 5
modifier2 = 0
buffer_size = 16384
timeout = "30s"
connect_timeout = "5s"
headers_without_changes = []
`

const clientTemplate = `address = "127.0.0.1:3031"
network = "tcp"
hostname = "localhost"
modifier1 = 5
modifier2 = 0
buffer_size = 16384
timeout = "10s"
headers_without_changes = []
`
