package ssh

import (
	"testing"
	"time"
)

func TestParseTarget(t *testing.T) {
	base := DefaultConfig()
	base.User = "deploy"

	tests := []struct {
		name     string
		target   string
		wantUser string
		wantHost string
		wantPort int
	}{
		{"host only", "web01.example.com", "deploy", "web01.example.com", 22},
		{"user at host", "root@web01", "root", "web01", 22},
		{"user host port", "ops@db01:2222", "ops", "db01", 2222},
		{"host with port", "db01:2222", "deploy", "db01", 2222},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseTarget(tt.target, base)
			if err != nil {
				t.Fatalf("ParseTarget(%q) failed: %v", tt.target, err)
			}
			if cfg.User != tt.wantUser {
				t.Errorf("user = %q, want %q", cfg.User, tt.wantUser)
			}
			if cfg.Host != tt.wantHost {
				t.Errorf("host = %q, want %q", cfg.Host, tt.wantHost)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("port = %d, want %d", cfg.Port, tt.wantPort)
			}
		})
	}
}

func TestParseTargetInvalid(t *testing.T) {
	base := DefaultConfig()

	for _, target := range []string{"host:notaport", "host:0", "host:99999"} {
		if _, err := ParseTarget(target, base); err == nil {
			t.Errorf("ParseTarget(%q) succeeded, want error", target)
		}
	}
}

func TestParseTargetKeepsBaseDefaults(t *testing.T) {
	base := DefaultConfig()
	base.User = "deploy"
	base.KeyPath = "/etc/runbook/id_ed25519"
	base.ConnectTimeout = 10 * time.Second

	cfg, err := ParseTarget("web01", base)
	if err != nil {
		t.Fatalf("ParseTarget failed: %v", err)
	}
	if cfg.KeyPath != base.KeyPath {
		t.Errorf("key path = %q, want base default", cfg.KeyPath)
	}
	if cfg.ConnectTimeout != base.ConnectTimeout {
		t.Errorf("connect timeout = %v, want base default", cfg.ConnectTimeout)
	}
}

func TestIsRemote(t *testing.T) {
	local := []string{"", "localhost", "127.0.0.1", "local"}
	for _, target := range local {
		if IsRemote(target) {
			t.Errorf("IsRemote(%q) = true, want false", target)
		}
	}
	if !IsRemote("deploy@web01") {
		t.Error("IsRemote(deploy@web01) = false, want true")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "web01"
	cfg.User = "deploy"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	missingHost := cfg
	missingHost.Host = ""
	if err := missingHost.Validate(); err == nil {
		t.Error("config without host accepted")
	}

	badPort := cfg
	badPort.Port = -1
	if err := badPort.Validate(); err == nil {
		t.Error("config with negative port accepted")
	}
}
