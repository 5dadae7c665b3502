package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	case "client":
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

const serverTemplate = `id = "cmdserverd"
addr = ":7400"
admin_addr = "127.0.0.1:7401"
cors_origins = ["http://localhost:3000"]
idle_timeout = "5m"
max_address_bytes = 64
max_metadata_bytes = 1048576
recorder_limit = 256
security_mode = "development"

[tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""
`

const clientTemplate = `network_name = "workstation-1"
server_address = "127.0.0.1:7400"
local_address = ""
max_connect_attempts = 5
connect_timeout = "5s"
write_timeout = "15s"
queue_size = 256
max_attempts = 3
security_mode = "development"

[tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""
server_name = ""
`
