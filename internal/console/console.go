// Package console is the interactive front end: a single goroutine
// that drains transport events into the supervisor, reads keystrokes,
// and redraws the prompt.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hudchat/config"
	ncerr "hudchat/internal/errors"
	"hudchat/internal/event"
	"hudchat/internal/metrics"
	"hudchat/internal/supervisor"
	"hudchat/util"
)

// Options configures a Console.  Screen must be the same Printer the
// supervisor was created with.
type Options struct {
	Supervisor *supervisor.Supervisor
	Queue      *event.Queue
	Screen     *Screen
	Keys       <-chan byte
	Tick       time.Duration
	Metrics    *metrics.Collector
	Logger     *util.Logger
}

// Console runs the UI loop.
type Console struct {
	sup     *supervisor.Supervisor
	queue   *event.Queue
	screen  *Screen
	keys    <-chan byte
	tick    time.Duration
	metrics *metrics.Collector
	log     *util.Logger
	editor  Editor
}

// New returns a console ready to Run.
func New(opts Options) *Console {
	tick := opts.Tick
	if tick <= 0 {
		tick = config.DefaultTickInterval
	}
	log := opts.Logger
	if log == nil {
		log = util.NewLogger(0)
	}
	return &Console{
		sup:     opts.Supervisor,
		queue:   opts.Queue,
		screen:  opts.Screen,
		keys:    opts.Keys,
		tick:    tick,
		metrics: opts.Metrics,
		log:     log.Named("console"),
	}
}

// Run loops until the user exits, stdin ends or ctx is done.  A
// protocol-state violation from the supervisor is printed and returned.
func (c *Console) Run(ctx context.Context) error {
	c.Help()
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	defer c.screen.Finish()

	for {
		if _, err := c.queue.Drain(c.sup.Apply); err != nil {
			if ncerr.IsProtocolState(err) {
				c.screen.Println(fmt.Sprintf("Internal error: %v", err))
			}
			return err
		}
		c.poll()
		if c.sup.Exited() {
			return nil
		}
		c.screen.Prompt(c.sup.State(), c.editor.Line())

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll feeds every key already waiting to the editor, stopping after
// a submitted line so its effects are drawn before the next one.
func (c *Console) poll() {
	for {
		select {
		case b, ok := <-c.keys:
			if !ok {
				c.sup.RequestExit()
				return
			}
			line, submitted, quit := c.editor.Feed(b)
			if quit {
				c.sup.RequestExit()
				return
			}
			if submitted {
				c.Handle(line)
				return
			}
		default:
			return
		}
	}
}

// Handle runs one submitted line.
func (c *Console) Handle(line string) {
	in := ParseInput(line)
	var err error
	switch in.Action {
	case ActNone:
	case ActSend:
		err = c.sup.SendText(in.Arg)
	case ActConnect:
		if in.Arg == "" {
			c.screen.Println("Usage: /connect <host:port>")
			return
		}
		err = c.sup.RequestConnect(in.Arg)
	case ActListen:
		addr := in.Arg
		if addr == "" {
			addr, _ = c.sup.BindAddr()
		}
		if addr == "" {
			c.screen.Println("Usage: /listen <host:port>")
			return
		}
		err = c.sup.RequestListen(addr)
	case ActClose:
		err = c.sup.RequestCloseAll()
	case ActStats:
		if strings.EqualFold(in.Arg, "json") {
			c.StatsJSON()
		} else {
			c.Stats()
		}
	case ActExit:
		c.sup.RequestExit()
	case ActHelp:
		c.Help()
	default:
		c.screen.Println("Unknown command.")
	}
	if err != nil {
		c.log.Debug("%q: %v", line, err)
	}
}

// Help prints the command summary.
func (c *Console) Help() {
	for _, l := range helpLines {
		c.screen.Println(l)
	}
}

// StatsJSON prints the metrics snapshot as JSON.
func (c *Console) StatsJSON() {
	for _, l := range strings.Split(c.metrics.JSON(), "\n") {
		c.screen.Println(l)
	}
}

// Stats prints the metrics snapshot.
func (c *Console) Stats() {
	s := c.metrics.Snapshot()
	c.screen.Println("Uptime: " + s.Uptime)
	c.screen.Println(fmt.Sprintf("Peers: %d active, %d total", s.PeersActive, s.PeersTotal))
	c.screen.Println(fmt.Sprintf("Frames: %d in, %d out (%d / %d bytes)", s.FramesIn, s.FramesOut, s.BytesIn, s.BytesOut))
	c.screen.Println(fmt.Sprintf("Relayed: %d  Rebinds: %d", s.Relayed, s.Rebinds))
	if s.RoundTrips > 0 {
		c.screen.Println(fmt.Sprintf("Pings: %d sent, %d answered (last %s, min %s, avg %s, max %s)",
			s.PingsSent, s.RoundTrips, s.RTTLast, s.RTTMin, s.RTTAvg, s.RTTMax))
	} else {
		c.screen.Println(fmt.Sprintf("Pings: %d sent, none answered", s.PingsSent))
	}
	if s.ErrorsTotal > 0 {
		c.screen.Println(fmt.Sprintf("Errors: %d (last at %s: %s)", s.ErrorsTotal, s.LastError, s.LastErrorMessage))
	}
}
