package config

import (
	"strings"
	"time"

	"github.com/danmuck/cmdclient/internal/protocol/session"
	"github.com/danmuck/cmdclient/internal/server"
)

// ServerRuntime maps a validated file config onto listener settings.
func ServerRuntime(cfg ServerConfig) server.Config {
	out := server.DefaultConfig()
	out.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.MaxAddressBytes > 0 {
		out.Limits.MaxAddressBytes = cfg.MaxAddressBytes
	}
	if cfg.MaxMetadataBytes > 0 {
		out.Limits.MaxMetadataBytes = cfg.MaxMetadataBytes
	}
	if d, err := time.ParseDuration(strings.TrimSpace(cfg.IdleTimeout)); err == nil {
		out.IdleTimeout = d
	}
	out.Session.SecurityMode = session.NormalizeSecurityMode(session.SecurityMode(cfg.SecurityMode))
	out.Session.TLS = SessionTLS(cfg.TLS)
	return out
}

func SessionTLS(in TLSFileConfig) session.TLSConfig {
	return session.TLSConfig{
		Enabled:            in.Enabled,
		Mutual:             in.Mutual,
		CertFile:           strings.TrimSpace(in.CertFile),
		KeyFile:            strings.TrimSpace(in.KeyFile),
		CAFile:             strings.TrimSpace(in.CAFile),
		ServerName:         strings.TrimSpace(in.ServerName),
		InsecureSkipVerify: in.InsecureSkipVerify,
	}
}
