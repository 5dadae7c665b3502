package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/cmdclient/internal/protocol/session"
	"github.com/danmuck/cmdclient/internal/testutil/testlog"
)

func TestServerTemplateLoadsAndConverts(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "server.toml")
	if err := WriteTemplate(path, "server", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "server", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ID != "cmdserverd" || cfg.Addr != ":7400" || cfg.AdminAddr != "127.0.0.1:7401" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	rt := ServerRuntime(cfg)
	if rt.IdleTimeout != 5*time.Minute {
		t.Fatalf("unexpected idle timeout: %v", rt.IdleTimeout)
	}
	if rt.Limits.MaxMetadataBytes != 1048576 || rt.Limits.MaxAddressBytes != 64 {
		t.Fatalf("unexpected limits: %+v", rt.Limits)
	}
	if rt.Session.SecurityMode != session.SecurityModeDevelopment || rt.Session.TLS.Enabled {
		t.Fatalf("unexpected session: %+v", rt.Session)
	}
}

func TestLoadServerConfigDefaultsAndValidation(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "min.toml")
	if err := os.WriteFile(path, []byte("cors_origins = []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ID != "cmdserverd" || cfg.Addr != ":7400" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte(`idle_timeout = "soon"`+"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadServerConfig(bad); err == nil {
		t.Fatalf("expected idle_timeout error")
	}

	if _, err := LoadServerConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestTemplateUnknownKind(t *testing.T) {
	testlog.Start(t)
	if _, err := Template("agent"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if _, err := Template(" Client "); err != nil {
		t.Fatalf("client template: %v", err)
	}
}
