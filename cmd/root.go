// Package cmd wires up the CLI flags and starts the chat node.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"hudchat/config"
	"hudchat/internal/console"
	"hudchat/internal/core"
	"hudchat/internal/event"
	"hudchat/internal/metrics"
	"hudchat/internal/probe"
	"hudchat/internal/supervisor"
	"hudchat/internal/transport"
	"hudchat/tunnel"
	"hudchat/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X hudchat/cmd.version=0.2.0"
var version = "0.1.0" //nolint:gochecknoglobals

// invocation is the result of parsing the command line.
type invocation struct {
	cfg         *config.Config
	fs          *flag.FlagSet
	dryRun      bool
	showVersion bool
	showHelp    bool
}

// Execute parses args and runs the chat node until the user exits.
func Execute(ctx context.Context, args []string) error {
	inv, err := parse(args)
	if err != nil {
		return err
	}
	if inv.showHelp {
		printUsage(inv.fs)
		return nil
	}
	if inv.showVersion {
		fmt.Printf("hudchat %s\n", version)
		return nil
	}
	if inv.dryRun {
		printPlan(os.Stdout, inv.cfg)
		return nil
	}
	return run(ctx, inv.cfg)
}

func parse(args []string) (*invocation, error) {
	cfg := config.Default()
	config.LoadFromEnv(cfg)
	envVerbose := cfg.Verbose
	envServer := os.Getenv("HUDCHAT_SERVER") != ""

	inv := &invocation{cfg: cfg}
	fs := flag.NewFlagSet("hudchat", flag.ContinueOnError)
	inv.fs = fs

	// ── roles ────────────────────────────────────────────────────
	fs.StringVarP(&cfg.ServerAddr, "server", "s", cfg.ServerAddr, "Address to listen on")
	fs.StringVarP(&cfg.ClientAddr, "client", "c", cfg.ClientAddr, "Address to connect to on startup")

	timeoutSec := int(cfg.ConnTimeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Connect and handshake timeout in seconds")
	fs.IntVar(&cfg.DialAttempts, "dial-attempts", cfg.DialAttempts, "Dial attempts before giving up")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Route outbound dials via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to this file instead of stderr")
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	fs.BoolVar(&inv.dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&inv.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&inv.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if inv.showHelp || inv.showVersion {
		return inv, nil
	}
	if rest := fs.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument %q (use --help for usage)", rest[0])
	}

	if !fs.Changed("verbose") {
		cfg.Verbose = envVerbose
	}
	cfg.ConnTimeout = time.Duration(timeoutSec) * time.Second

	// A startup dial alone does not remember the default bind address.
	if cfg.ClientAddr != "" && !fs.Changed("server") && !envServer {
		cfg.ServerAddr = ""
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return nil, fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

// ── run ──────────────────────────────────────────────────────────────

func run(ctx context.Context, cfg *config.Config) error {
	logger := util.NewLogger(cfg.Verbose)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		defer f.Close()
		logger.SetOutput(f)
		logger.SetTimestamps(true)
	}
	m := metrics.New()

	// The tunnel authenticates up front so any prompt happens before
	// the terminal goes raw.
	var dialer transport.Dialer
	if sshCfg := tunnel.FromConfig(cfg); sshCfg != nil {
		d := transport.NewSSHDialer(sshCfg, logger.Named("tunnel"))
		if err := d.Connect(ctx); err != nil {
			return err
		}
		defer d.Close()
		dialer = d
	}

	adapter := transport.NewWebSocket(transport.Options{
		Dialer:           dialer,
		Logger:           logger,
		Metrics:          m,
		HandshakeTimeout: cfg.ConnTimeout,
	})
	logger.Verbose("node %s", adapter.NodeID())

	queue := event.NewQueue(config.DefaultQueueSize)
	defer queue.Close()

	term, err := console.OpenTerminal(os.Stdin)
	if err != nil {
		return err
	}
	defer term.Restore() //nolint:errcheck
	if term.Raw() && cfg.LogFile == "" {
		logger.SetOutput(console.CRLF(os.Stderr))
	}

	screen := console.NewScreen(os.Stdout)
	sup := supervisor.New(ctx, supervisor.Options{
		Env: core.Env{
			Adapter: adapter,
			Events:  queue,
			Probe:   probe.New(m),
			Metrics: m,
			Logger:  logger,
		},
		Dial: core.DialOptions{
			Timeout:    cfg.ConnTimeout,
			Attempts:   cfg.DialAttempts,
			RetryDelay: config.DefaultDialRetryDelay,
		},
		Printer: screen,
	})
	defer sup.Shutdown()

	// Failures are printed by the supervisor; the console still starts.
	if cfg.ServerAddr != "" {
		sup.RequestListen(cfg.ServerAddr) //nolint:errcheck
	}
	if cfg.ClientAddr != "" {
		sup.RequestConnect(cfg.ClientAddr) //nolint:errcheck
	}

	con := console.New(console.Options{
		Supervisor: sup,
		Queue:      queue,
		Screen:     screen,
		Keys:       term.Keys(),
		Tick:       cfg.TickInterval,
		Metrics:    m,
		Logger:     logger,
	})
	return con.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func printPlan(w io.Writer, cfg *config.Config) {
	listen := cfg.ServerAddr
	if listen == "" {
		listen = "(none)"
	}
	fmt.Fprintf(w, "listen:  %s\n", listen)
	if cfg.ClientAddr != "" {
		url, _ := config.ParseClientURL(cfg.ClientAddr)
		fmt.Fprintf(w, "connect: %s (timeout %s, %d attempt(s))\n", url, cfg.ConnTimeout, cfg.DialAttempts)
	}
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "tunnel:  %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Heads-up Chat v%s

Connect or receive chat connections via WebSocket.

Usage:
  hudchat [options]                           Listen on localhost:3030
  hudchat -s <host:port>                      Listen on another address
  hudchat -c <host:port>                      Connect on startup
  hudchat -T user@gateway -c <host:port>      Connect through SSH

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Console:
  /connect <host:port>    connect to a server (alias /open)
  /listen <host:port>     listen on another address
  /close                  close the current connection
  /stats                  show connection statistics
  /exit, ctrl-q           quit
`)
}
