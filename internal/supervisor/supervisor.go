// Package supervisor owns the node's connection role.  Every state
// change happens in one of its methods, called only from the UI
// goroutine: user intents arrive as Request* calls and transport
// events as queued commands passed to Apply.
package supervisor

import (
	"context"
	"fmt"
	"net"

	"hudchat/config"
	"hudchat/internal/core"
	ncerr "hudchat/internal/errors"
	"hudchat/internal/event"
	"hudchat/internal/probe"
	"hudchat/internal/transport"
	"hudchat/util"
)

// ErrBusy is returned by requests the current role cannot take.
var ErrBusy = ncerr.New("connection busy")

// Options configures a Supervisor.
type Options struct {
	Env     core.Env
	Dial    core.DialOptions
	Printer Printer
}

// Supervisor is the node's role state machine.  It is not safe for
// concurrent use.
type Supervisor struct {
	ctx  context.Context
	env  core.Env
	dial core.DialOptions
	out  Printer
	log  *util.Logger

	role    Role
	clients int
	bind    string // remembered listen address, "" = none
	invalid bool   // bind failed with an address-level error
	epoch   uint64
	server  *core.Server
	client  *core.Client
	pending *core.Dial
	exited  bool
}

// New returns an Idle supervisor.  Dials inherit ctx.
func New(ctx context.Context, opts Options) *Supervisor {
	out := opts.Printer
	if out == nil {
		out = PrinterFunc(func(string) {})
	}
	return &Supervisor{
		ctx:  ctx,
		env:  opts.Env,
		dial: opts.Dial,
		out:  out,
		log:  opts.Env.Logger.Named("supervisor"),
	}
}

func (s *Supervisor) say(format string, args ...interface{}) {
	s.out.Println(fmt.Sprintf(format, args...))
}

// ── Accessors ────────────────────────────────────────────────────────

// Role returns the current role.
func (s *Supervisor) Role() Role { return s.role }

// Clients returns the peer count while ServerActive, else 0.
func (s *Supervisor) Clients() int { return s.clients }

// BindAddr returns the remembered listen address and whether it is
// still usable.
func (s *Supervisor) BindAddr() (addr string, usable bool) {
	return s.bind, s.bind != "" && !s.invalid
}

// Epoch returns the epoch of the current role instance.
func (s *Supervisor) Epoch() uint64 { return s.epoch }

// Server returns the active server role, or nil.
func (s *Supervisor) Server() *core.Server { return s.server }

// Client returns the active client role, or nil.
func (s *Supervisor) Client() *core.Client { return s.client }

// Dialing reports whether an outbound dial is in flight.
func (s *Supervisor) Dialing() bool { return s.pending != nil }

// Exited reports whether RequestExit was called.
func (s *Supervisor) Exited() bool { return s.exited }

// State renders the current role for the prompt.
func (s *Supervisor) State() string {
	switch {
	case s.role == Listening:
		return fmt.Sprintf("[ Listening on (%s) ]", s.server.Addr())
	case s.role == ServerActive:
		noun := "clients"
		if s.clients == 1 {
			noun = "client"
		}
		return fmt.Sprintf("[ Connected as Server to (%s), %d %s ]", s.server.Addr(), s.clients, noun)
	case s.role == ClientActive:
		return fmt.Sprintf("[ Connected as Client to (%s) ]", s.client.URL())
	case s.pending != nil:
		return fmt.Sprintf("[ Connecting to (%s) ]", s.pending.URL())
	default:
		return "[ Disconnected ]"
	}
}

// ── User intents ─────────────────────────────────────────────────────

// RequestListen binds addr, which becomes the remembered address.
// Only valid while Idle.
func (s *Supervisor) RequestListen(addr string) error {
	if err := s.busy(Listening); err != nil {
		return err
	}
	norm, err := config.ParseServerAddr(addr)
	if err != nil {
		s.say("Cannot listen: %v", err)
		return err
	}
	if norm == s.bind && s.invalid {
		s.say("Address %s is unusable. Use /listen <host:port> with another address.", norm)
		return ncerr.ErrAddressInvalid
	}
	s.bind, s.invalid = norm, false
	return s.listen()
}

// RequestConnect dials raw.  Valid while Idle or Listening; a
// listener is shut down first.  The dial runs in the background.
func (s *Supervisor) RequestConnect(raw string) error {
	if err := s.busy(ClientActive); err != nil {
		return err
	}
	url, err := config.ParseClientURL(raw)
	if err != nil {
		s.say("Cannot connect: %v", err)
		return err
	}
	if s.role == Listening {
		s.teardown()
	}
	s.epoch++
	s.pending = core.StartDial(s.ctx, s.env, url, s.epoch, s.dial)
	s.say("Connecting to: %s...", url)
	return nil
}

// busy reports whether the node is in a role that rules out a new
// listen or connect request.
func (s *Supervisor) busy(want Role) error {
	if s.pending != nil {
		s.say("Already connecting.")
		return ErrBusy
	}
	switch s.role {
	case Listening:
		if want == Listening {
			s.say("Already listening on (%s).", s.server.Addr())
			return ErrBusy
		}
	case ServerActive, ClientActive:
		s.say("Already connected.")
		return ErrBusy
	}
	return nil
}

// RequestCloseAll closes every peer (server), the outbound connection
// (client), or the dial in flight.
func (s *Supervisor) RequestCloseAll() error {
	switch {
	case s.role == ServerActive:
		ids := s.server.Registry().IDs()
		n := s.server.CloseAll()
		s.log.Verbose("closing %d peers %v", n, ids)
		s.say("Server connection closed.")
	case s.role == ClientActive:
		if err := s.client.Close(); err != nil {
			s.log.Warn("close: %v", err)
		}
		s.say("Client connection closed.")
	case s.pending != nil:
		s.pending.Cancel()
		s.say("Connection attempt cancelled.")
	default:
		s.say("Not connected.")
		return ncerr.ErrNotConnected
	}
	return nil
}

// SendText sends a locally typed line in the current role.
func (s *Supervisor) SendText(line string) error {
	switch s.role {
	case ServerActive:
		s.server.SendText(line)
		s.say("{You (Server)}: %s", line)
	case ClientActive:
		if err := s.client.SendText(line); err != nil {
			s.say("Cannot send message: '%s'. %v", line, err)
			return err
		}
		s.say("{You (Client)}: %s", line)
	default:
		s.say("Cannot send message: '%s'. Not connected.", line)
		return ncerr.ErrNotConnected
	}
	return nil
}

// RequestExit marks the UI loop finished.  Sockets are left to
// Shutdown.
func (s *Supervisor) RequestExit() { s.exited = true }

// Shutdown releases the listener, the outbound connection and any
// dial in flight.
func (s *Supervisor) Shutdown() {
	s.epoch++
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
	if s.client != nil {
		s.client.Close() //nolint:errcheck
	}
	s.teardown()
}

// ── Events ───────────────────────────────────────────────────────────

// Apply runs one queued event through the state machine.  Events
// from an earlier epoch are dropped.  The only error is a
// *ProtocolStateError, which the caller must treat as fatal.
func (s *Supervisor) Apply(c event.Command) error {
	src := c.Origin()
	if src.Epoch != s.epoch {
		s.log.Debug("dropping %T from epoch %d (current %d)", c, src.Epoch, s.epoch)
		return nil
	}

	switch ev := c.(type) {
	case event.ServerOpened:
		return s.serverOpened(ev)
	case event.ServerClosed:
		s.serverDown(src.Conn, fmt.Sprintf("Server connection closed. %s", closeText(ev.Code, ev.Reason)))
	case event.ServerError:
		s.serverDown(src.Conn, fmt.Sprintf("The server has encountered an error: %v", ev.Err))
	case event.ClientOpened:
		return s.clientOpened(ev)
	case event.ClientClosed:
		s.clientDown(fmt.Sprintf("Client connection closed. %s", closeText(ev.Code, ev.Reason)))
	case event.ClientError:
		s.clientDown(fmt.Sprintf("The client has encountered an error: %v", ev.Err))
	case event.MessageRecvd:
		s.message(src.Conn, ev.Text)
	case event.RoundTrip:
		s.say("    %s", probe.FormatRoundTrip(ev.Elapsed))
	case event.ProtocolError:
		s.say("Bad probe frame from %s: %v", s.peerLabel(src.Conn), ev.Err)
	default:
		s.log.Warn("unhandled event %T", c)
	}
	return nil
}

func (s *Supervisor) serverOpened(ev event.ServerOpened) error {
	if s.role != Listening && s.role != ServerActive {
		return &ncerr.ProtocolStateError{Role: s.role.String(), Event: "ServerOpened"}
	}
	reg := s.server.Registry()
	if reg.Has(ev.Conn) {
		return &ncerr.ProtocolStateError{Role: s.role.String(), Event: "ServerOpened (duplicate)"}
	}
	reg.Register(ev.Conn, ev.Handle)
	s.clients = reg.Len()
	s.role = ServerActive
	s.say("Server connected to: %s (Client%d)", peerText(ev.Peer), uint64(ev.Conn))
	return nil
}

func (s *Supervisor) serverDown(id transport.ID, line string) {
	s.say("%s", line)

	if id == transport.NoID {
		// The listener itself went away.
		s.rebind()
		return
	}
	if s.server != nil {
		s.server.Registry().Deregister(id)
	}
	switch s.role {
	case ServerActive:
		s.clients = s.server.Registry().Len()
		if s.clients == 0 {
			s.role = Listening
		}
	case Idle:
		s.rebind()
	}
}

func (s *Supervisor) clientOpened(ev event.ClientOpened) error {
	if s.pending == nil || s.role != Idle {
		return &ncerr.ProtocolStateError{Role: s.role.String(), Event: "ClientOpened"}
	}
	if s.pending.Cancelled() {
		// The handshake won the race with /close.  Its close event is
		// left behind by the epoch bump below.
		s.log.Verbose("closing %s opened after cancel", ev.Conn)
		if err := ev.Handle.Close(transport.CloseNormal, ""); err != nil {
			s.log.Warn("close: %v", err)
		}
		s.pending = nil
		s.epoch++
		s.rebind()
		return nil
	}
	s.client = s.pending.Attach(ev.Handle)
	s.pending = nil
	s.role = ClientActive
	s.say("Client connected to: %s", s.client.URL())
	return nil
}

func (s *Supervisor) clientDown(line string) {
	s.pending = nil
	s.say("%s", line)
	s.rebind()
}

func (s *Supervisor) message(from transport.ID, text string) {
	s.say("{%s}: %s", s.peerLabel(from), text)
}

// peerLabel names the sender of an inbound frame for the current role.
func (s *Supervisor) peerLabel(from transport.ID) string {
	switch s.role {
	case ServerActive, Listening:
		return fmt.Sprintf("Client%d", uint64(from))
	case ClientActive:
		return fmt.Sprintf("Server (%s)", s.client.URL())
	default:
		return "Unknown"
	}
}

// ── Listener management ──────────────────────────────────────────────

// listen binds the remembered address under a fresh epoch.
func (s *Supervisor) listen() error {
	s.epoch++

	srv, err := core.StartServer(s.env, s.bind, s.epoch)
	if err != nil {
		s.role = Idle
		class := ncerr.ClassifyBind(err)
		if class.Invalidates() {
			s.invalid = true
			s.say("Cannot listen on %s: %s. Use /listen <host:port> to pick another address.", s.bind, class)
		} else {
			s.say("Cannot listen on %s: %v", s.bind, err)
		}
		return err
	}
	s.server = srv
	s.role = Listening
	s.clients = 0
	s.say("Listening on (%s).", srv.Addr())
	return nil
}

// rebind drops whatever role is active and listens again on the
// remembered address, or goes Idle when there is none.
func (s *Supervisor) rebind() {
	s.teardown()
	switch {
	case s.bind == "":
		s.log.Verbose("no listen address remembered, staying idle")
	case s.invalid:
		s.say("Not listening: %s is unusable.", s.bind)
	default:
		s.env.Metrics.Rebind()
		s.listen() //nolint:errcheck
	}
}

func (s *Supervisor) teardown() {
	if s.server != nil {
		if err := s.server.Shutdown(); err != nil {
			s.log.Warn("shutdown %s: %v", s.server.Addr(), err)
		}
		s.server = nil
	}
	s.client = nil
	s.clients = 0
	s.role = Idle
}

// ── Formatting ───────────────────────────────────────────────────────

func closeText(code int, reason string) string {
	if reason == "" {
		return fmt.Sprintf("(code %d)", code)
	}
	return fmt.Sprintf("(code %d: %s)", code, reason)
}

func peerText(a net.Addr) string {
	if a == nil {
		return "unknown peer"
	}
	return a.String()
}
