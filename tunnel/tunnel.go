// Package tunnel carries outbound chat connections through an SSH
// gateway using golang.org/x/crypto/ssh.
package tunnel

import (
	"context"
	"net"

	"hudchat/config"
)

// Tunnel abstracts an encrypted channel through which TCP connections
// can be forwarded.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address through the tunnel.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the tunnel and frees resources.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}

// FromConfig builds the gateway settings for a node configuration.
// It returns nil when no tunnel was requested.
func FromConfig(cfg *config.Config) *SSHConfig {
	if !cfg.TunnelEnabled {
		return nil
	}
	return &SSHConfig{
		User:          cfg.TunnelUser,
		Host:          cfg.TunnelHost,
		Port:          cfg.TunnelPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   cfg.ConnTimeout,
	}
}
