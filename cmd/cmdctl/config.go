package main

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/cmdclient/internal/client"
	"github.com/danmuck/cmdclient/internal/config"
	"github.com/danmuck/cmdclient/internal/protocol/session"
)

// cmdctl config.toml key mapping onto client.Config.
type fileConfig struct {
	NetworkName        string               `toml:"network_name"`
	ServerAddress      string               `toml:"server_address"`
	LocalAddress       string               `toml:"local_address"`
	MaxConnectAttempts int                  `toml:"max_connect_attempts"`
	ConnectTimeout     string               `toml:"connect_timeout"`
	WriteTimeout       string               `toml:"write_timeout"`
	QueueSize          int                  `toml:"queue_size"`
	MaxAttempts        int                  `toml:"max_attempts"`
	SecurityMode       string               `toml:"security_mode"`
	TLS                config.TLSFileConfig `toml:"tls"`
}

func loadClientConfig(path string) (client.Config, error) {
	cfg := client.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return client.Config{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("network_name") {
		cfg.NetworkName = strings.TrimSpace(raw.NetworkName)
	}
	if meta.IsDefined("server_address") {
		cfg.ServerAddress = strings.TrimSpace(raw.ServerAddress)
	}
	if meta.IsDefined("local_address") {
		if v := strings.TrimSpace(raw.LocalAddress); v != "" {
			addr, err := netip.ParseAddr(v)
			if err != nil {
				return client.Config{}, fmt.Errorf("parse local_address: %w", err)
			}
			cfg.LocalAddress = addr
		}
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return client.Config{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.Session.ConnectTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WriteTimeout))
		if err != nil {
			return client.Config{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.Session.WriteTimeout = d
	}
	if meta.IsDefined("queue_size") {
		cfg.Dispatch.QueueSize = raw.QueueSize
	}
	if meta.IsDefined("max_attempts") {
		cfg.Dispatch.MaxAttempts = raw.MaxAttempts
	}
	if meta.IsDefined("security_mode") {
		cfg.Session.SecurityMode = session.NormalizeSecurityMode(session.SecurityMode(raw.SecurityMode))
	}
	if meta.IsDefined("tls") {
		cfg.Session.TLS = config.SessionTLS(raw.TLS)
	}
	return cfg, nil
}
