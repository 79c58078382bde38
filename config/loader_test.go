package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv_Addresses(t *testing.T) {
	t.Setenv("HUDCHAT_SERVER", "0.0.0.0:4040")
	t.Setenv("HUDCHAT_CLIENT", "chat.example.com:3030")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.ServerAddr != "0.0.0.0:4040" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.ClientAddr != "chat.example.com:3030" {
		t.Errorf("ClientAddr = %q", cfg.ClientAddr)
	}
}

func TestLoadFromEnv_Timeout(t *testing.T) {
	t.Setenv("HUDCHAT_TIMEOUT", "3")
	t.Setenv("HUDCHAT_DIAL_ATTEMPTS", "4")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.ConnTimeout != 3*time.Second {
		t.Errorf("ConnTimeout = %v, want 3s", cfg.ConnTimeout)
	}
	if cfg.DialAttempts != 4 {
		t.Errorf("DialAttempts = %d, want 4", cfg.DialAttempts)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "TRUE", "Yes"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("HUDCHAT_SSH_AGENT", v)
			t.Setenv("HUDCHAT_STRICT_HOSTKEY", v)
			cfg := &Config{}
			LoadFromEnv(cfg)
			if !cfg.UseSSHAgent {
				t.Error("UseSSHAgent should be true")
			}
			if !cfg.StrictHostKey {
				t.Error("StrictHostKey should be true")
			}
		})
	}
}

func TestLoadFromEnv_InvalidIntIgnored(t *testing.T) {
	t.Setenv("HUDCHAT_TIMEOUT", "soon")
	t.Setenv("HUDCHAT_VERBOSE", "-2")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.ConnTimeout != DefaultConnTimeout {
		t.Errorf("ConnTimeout = %v, want default", cfg.ConnTimeout)
	}
	if cfg.Verbose != 0 {
		t.Errorf("Verbose = %d, want 0", cfg.Verbose)
	}
}

func TestLoadFromEnv_EmptyKeepsDefaults(t *testing.T) {
	t.Setenv("HUDCHAT_SERVER", "")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.ServerAddr != DefaultServerAddr {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, DefaultServerAddr)
	}
}

func TestLoadFromEnv_Output(t *testing.T) {
	t.Setenv("HUDCHAT_LOG_FILE", "/tmp/hudchat.log")
	t.Setenv("HUDCHAT_VERBOSE", "2")
	t.Setenv("HUDCHAT_TUNNEL", "me@gw")
	t.Setenv("HUDCHAT_SSH_KEY", "/keys/id")
	t.Setenv("HUDCHAT_KNOWN_HOSTS", "/keys/kh")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.LogFile != "/tmp/hudchat.log" || cfg.Verbose != 2 {
		t.Errorf("LogFile=%q Verbose=%d", cfg.LogFile, cfg.Verbose)
	}
	if cfg.TunnelSpec != "me@gw" || cfg.SSHKeyPath != "/keys/id" || cfg.KnownHostsPath != "/keys/kh" {
		t.Errorf("tunnel fields not loaded: %+v", cfg)
	}
}
