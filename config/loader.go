package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the HUDCHAT_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  cmd/root.go calls it before
// registering flags so that the overlaid values become flag defaults.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("HUDCHAT_SERVER"); v != "" {
		cfg.ServerAddr = v
	}
	if v := os.Getenv("HUDCHAT_CLIENT"); v != "" {
		cfg.ClientAddr = v
	}
	if v := envInt("HUDCHAT_TIMEOUT"); v > 0 {
		cfg.ConnTimeout = time.Duration(v) * time.Second
	}
	if v := envInt("HUDCHAT_DIAL_ATTEMPTS"); v > 0 {
		cfg.DialAttempts = v
	}

	// SSH tunnel
	if v := os.Getenv("HUDCHAT_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("HUDCHAT_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("HUDCHAT_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("HUDCHAT_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("HUDCHAT_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := os.Getenv("HUDCHAT_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := envInt("HUDCHAT_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}
