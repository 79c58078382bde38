package core

import (
	"net"

	"hudchat/internal/event"
	"hudchat/internal/registry"
	"hudchat/internal/transport"
	"hudchat/util"
)

// Server is the listening role: one bound listener, the registry of
// its peers, and the relay between them.
type Server struct {
	env      Env
	epoch    uint64
	listener transport.Listener
	registry *registry.Registry
	relay    *registry.Relay
	log      *util.Logger
}

// StartServer binds addr.  Events from the listener and its peers are
// queued tagged with epoch.
func StartServer(env Env, addr string, epoch uint64) (*Server, error) {
	s := &Server{
		env:      env,
		epoch:    epoch,
		registry: registry.New(),
		log:      env.Logger.Named("server"),
	}
	s.relay = registry.NewRelay(s.registry, env.Probe, s.log, env.Metrics)

	l, err := env.Adapter.Listen(addr, serverHandler{s})
	if err != nil {
		return nil, err
	}
	s.listener = l
	s.log.Verbose("listening on %s", l.Addr())
	return s, nil
}

// Addr is the bound address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Epoch is the tag carried by this server's events.
func (s *Server) Epoch() uint64 { return s.epoch }

// Registry exposes the peer registry.
func (s *Server) Registry() *registry.Registry { return s.registry }

// SendText relays a locally typed line to every peer, untagged.
func (s *Server) SendText(line string) int {
	return s.relay.BroadcastText(line, transport.NoID)
}

// CloseAll asks every registered peer to close normally.  Peers whose
// open event is still queued are reached through the listener.
func (s *Server) CloseAll() int {
	n := s.registry.CloseAll(transport.CloseNormal, "")
	if err := s.listener.BroadcastClose(); err != nil {
		s.log.Warn("close: %v", err)
	}
	return n
}

// Shutdown stops the listener and drops its peers.
func (s *Server) Shutdown() error {
	s.log.Verbose("shutting down %s", s.listener.Addr())
	return s.listener.Shutdown()
}

type serverHandler struct{ s *Server }

func (h serverHandler) src(c transport.Conn) event.Source {
	return event.Source{Epoch: h.s.epoch, Conn: c.ID()}
}

func (h serverHandler) OnOpen(c transport.Conn, peer net.Addr) {
	h.s.env.Metrics.PeerOpened()
	h.s.log.Debug("%s opened from %s", c.ID(), peer)
	h.s.env.Events.Push(event.ServerOpened{Source: h.src(c), Peer: peer, Handle: c})
}

func (h serverHandler) OnMessage(c transport.Conn, f transport.Frame) {
	switch f.Kind {
	case transport.Text:
		line := string(f.Data)
		n := h.s.relay.BroadcastText(line, c.ID())
		h.s.log.Debug("%s: relayed to %d peers", c.ID(), n)
		h.s.env.Events.Push(event.MessageRecvd{Source: h.src(c), Text: line})
	case transport.Binary:
		h.s.env.handleProbe(h.s.log, h.src(c), c, f.Data)
	}
}

func (h serverHandler) OnClose(c transport.Conn, code int, reason string) {
	h.s.env.Metrics.PeerClosed()
	h.s.env.Events.Push(event.ServerClosed{Source: h.src(c), Code: code, Reason: reason})
}

func (h serverHandler) OnError(c transport.Conn, err error) {
	h.s.env.Metrics.RecordError(err.Error())
	if c == nil {
		h.s.env.Events.Push(event.ServerError{
			Source: event.Source{Epoch: h.s.epoch, Conn: transport.NoID},
			Err:    err,
		})
		return
	}
	h.s.env.Metrics.PeerClosed()
	h.s.env.Events.Push(event.ServerError{Source: h.src(c), Err: err})
}
