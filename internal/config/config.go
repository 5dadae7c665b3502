package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type TLSFileConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// ServerConfig is the cmdserverd file shape.
type ServerConfig struct {
	ID               string        `toml:"id"`
	Addr             string        `toml:"addr"`
	AdminAddr        string        `toml:"admin_addr"`
	CorsOrigins      []string      `toml:"cors_origins"`
	IdleTimeout      string        `toml:"idle_timeout"`
	MaxAddressBytes  int32         `toml:"max_address_bytes"`
	MaxMetadataBytes int32         `toml:"max_metadata_bytes"`
	RecorderLimit    int           `toml:"recorder_limit"`
	SecurityMode     string        `toml:"security_mode"`
	TLS              TLSFileConfig `toml:"tls"`
}

func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = "cmdserverd"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":7400"
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
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

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("server config missing id")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if cfg.IdleTimeout != "" {
		if _, err := time.ParseDuration(strings.TrimSpace(cfg.IdleTimeout)); err != nil {
			return fmt.Errorf("server config idle_timeout invalid: %w", err)
		}
	}
	if cfg.MaxAddressBytes < 0 || cfg.MaxMetadataBytes < 0 {
		return fmt.Errorf("server config limits must not be negative")
	}
	if cfg.RecorderLimit < 0 {
		return fmt.Errorf("server config recorder_limit must not be negative")
	}
	return nil
}
