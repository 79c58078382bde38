package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hudchat/config"
	ncerr "hudchat/internal/errors"
)

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_Help verifies --help returns without starting the node.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"-h"}} {
		t.Run(args[0], func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	err := Execute(context.Background(), []string{"-s", "127.0.0.1:4000", "-c", "peer:3030", "--dry-run"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	err := Execute(context.Background(), []string{"--server", "no-port", "--dry-run"})
	var ce *ncerr.ConfigError
	if !errors.As(err, &ce) || ce.Field != "server" {
		t.Fatalf("expected server config error, got %v", err)
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	if err := Execute(context.Background(), []string{"--nonexistent-flag"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestExecute_PositionalRejected(t *testing.T) {
	err := Execute(context.Background(), []string{"localhost", "3030", "--dry-run"})
	if err == nil || !strings.Contains(err.Error(), "unexpected argument") {
		t.Fatalf("got %v", err)
	}
}

func TestExecute_BadTunnel(t *testing.T) {
	err := Execute(context.Background(), []string{"-c", "peer:1", "-T", "gw:notaport", "--dry-run"})
	if err == nil || !strings.Contains(err.Error(), "tunnel") {
		t.Fatalf("got %v", err)
	}
}

// ── parse ────────────────────────────────────────────────────────────

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"HUDCHAT_SERVER", "HUDCHAT_CLIENT", "HUDCHAT_TIMEOUT", "HUDCHAT_DIAL_ATTEMPTS",
		"HUDCHAT_TUNNEL", "HUDCHAT_VERBOSE", "HUDCHAT_LOG_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	inv, err := parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := inv.cfg
	if cfg.ServerAddr != config.DefaultServerAddr || cfg.ClientAddr != "" {
		t.Errorf("server=%q client=%q", cfg.ServerAddr, cfg.ClientAddr)
	}
	if cfg.ConnTimeout != config.DefaultConnTimeout || cfg.DialAttempts != config.DefaultDialAttempts {
		t.Errorf("timeout=%s attempts=%d", cfg.ConnTimeout, cfg.DialAttempts)
	}
}

func TestParse_ServerRemembered(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  string
		want string
	}{
		{"client only", []string{"-c", "peer:3030"}, "", ""},
		{"explicit server", []string{"-c", "peer:3030", "-s", "0.0.0.0:4000"}, "", "0.0.0.0:4000"},
		{"server from env", []string{"-c", "peer:3030"}, "127.0.0.1:5000", "127.0.0.1:5000"},
		{"neither", nil, "", config.DefaultServerAddr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HUDCHAT_SERVER", tt.env)
			inv, err := parse(tt.args)
			if err != nil {
				t.Fatal(err)
			}
			if inv.cfg.ServerAddr != tt.want {
				t.Errorf("server = %q, want %q", inv.cfg.ServerAddr, tt.want)
			}
		})
	}
}

func TestParse_EnvOverlayAndFlagsWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("HUDCHAT_CLIENT", "envpeer:3030")
	t.Setenv("HUDCHAT_TIMEOUT", "3")
	t.Setenv("HUDCHAT_VERBOSE", "2")

	inv, err := parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if inv.cfg.ClientAddr != "envpeer:3030" || inv.cfg.ConnTimeout != 3*time.Second || inv.cfg.Verbose != 2 {
		t.Errorf("env not applied: %+v", inv.cfg)
	}

	inv, err = parse([]string{"-c", "flagpeer:1", "-w", "7", "-v"})
	if err != nil {
		t.Fatal(err)
	}
	if inv.cfg.ClientAddr != "flagpeer:1" || inv.cfg.ConnTimeout != 7*time.Second || inv.cfg.Verbose != 1 {
		t.Errorf("flags did not win: %+v", inv.cfg)
	}
}

func TestParse_Tunnel(t *testing.T) {
	clearEnv(t)
	inv, err := parse([]string{"-c", "peer:3030", "-T", "admin@bastion:2222", "--ssh-agent"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := inv.cfg
	if !cfg.TunnelEnabled || cfg.TunnelUser != "admin" || cfg.TunnelHost != "bastion" || cfg.TunnelPort != 2222 {
		t.Errorf("tunnel = %s@%s:%d enabled=%v", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort, cfg.TunnelEnabled)
	}
	if !cfg.UseSSHAgent {
		t.Error("--ssh-agent not set")
	}
}

func TestParse_NegativeTimeout(t *testing.T) {
	clearEnv(t)
	var ce *ncerr.ConfigError
	if _, err := parse([]string{"-w", "-1"}); !errors.As(err, &ce) || ce.Field != "timeout" {
		t.Fatalf("got %v", err)
	}
}

func TestPrintPlan(t *testing.T) {
	var buf bytes.Buffer
	printPlan(&buf, &config.Config{
		ClientAddr:    "peer:3030",
		ConnTimeout:   time.Second,
		DialAttempts:  2,
		TunnelEnabled: true,
		TunnelUser:    "u",
		TunnelHost:    "gw",
		TunnelPort:    22,
	})
	out := buf.String()
	for _, want := range []string{"listen:  (none)", "connect: ws://peer:3030/", "2 attempt(s)", "tunnel:  u@gw:22"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan missing %q:\n%s", want, out)
		}
	}
}
