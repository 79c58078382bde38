// Package config defines the runtime configuration for hudchat and
// provides helpers for parsing peer addresses and tunnel specs.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	ncerr "hudchat/internal/errors"
	"hudchat/util"
)

// Config holds every tuneable for one chat node.
type Config struct {
	// ── Roles ────────────────────────────────────────────────────────
	ServerAddr   string // --server: bind address, empty = none remembered
	ClientAddr   string // --client: dial on startup
	ConnTimeout  time.Duration
	DialAttempts int
	TickInterval time.Duration

	// ── SSH tunnel (outbound dials only) ─────────────────────────────
	TunnelSpec     string // raw [user@]host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	LogFile string
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		ServerAddr:   DefaultServerAddr,
		ConnTimeout:  DefaultConnTimeout,
		DialAttempts: DefaultDialAttempts,
		TickInterval: DefaultTickInterval,
	}
}

// ── Address parsers ──────────────────────────────────────────────────

// ParseServerAddr validates a bind address of the form host:port.
func ParseServerAddr(addr string) (string, error) {
	if addr == "" {
		return "", &ncerr.AddressError{Input: addr, Reason: "empty address"}
	}
	host, port, err := util.SplitAddr(addr)
	if err != nil {
		return "", &ncerr.AddressError{Input: addr, Reason: err.Error()}
	}
	return util.FormatAddr(host, port), nil
}

// ParseClientURL turns a peer address into the ws:// URL to dial.
func ParseClientURL(addr string) (string, error) {
	u, err := util.WebSocketURL(addr)
	if err != nil {
		return "", &ncerr.AddressError{Input: addr, Reason: err.Error()}
	}
	return u.String(), nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ServerAddr != "" {
		if _, err := ParseServerAddr(c.ServerAddr); err != nil {
			return &ncerr.ConfigError{
				Field:   "server",
				Value:   c.ServerAddr,
				Message: err.Error(),
				Hint:    "use host:port, e.g. localhost:3030",
			}
		}
	}

	if c.ClientAddr != "" {
		if _, err := ParseClientURL(c.ClientAddr); err != nil {
			return &ncerr.ConfigError{
				Field:   "client",
				Value:   c.ClientAddr,
				Message: err.Error(),
				Hint:    "use host:port or ws://host:port/path",
			}
		}
	}

	if c.ServerAddr == "" && c.ClientAddr == "" {
		return &ncerr.ConfigError{
			Field:   "server",
			Message: "nothing to listen on and nothing to dial",
			Hint:    "pass --server host:port or --client host:port",
		}
	}

	if c.ConnTimeout < 0 {
		return &ncerr.ConfigError{Field: "timeout", Value: c.ConnTimeout, Message: "must not be negative"}
	}

	if c.DialAttempts < 1 {
		return &ncerr.ConfigError{
			Field:   "dial-attempts",
			Value:   c.DialAttempts,
			Message: "must be at least 1",
		}
	}

	if c.TickInterval <= 0 || c.TickInterval > time.Second {
		return &ncerr.ConfigError{
			Field:   "tick",
			Value:   c.TickInterval,
			Message: "must be between 1ns and 1s",
		}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}

	return nil
}
