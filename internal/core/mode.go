// Package core holds the two roles a chat node can play.  A Server
// wraps one listener and its peers; a Client wraps one outbound
// connection.  Both translate transport callbacks into queued events
// and never change node state themselves: that is the supervisor's
// job on the UI goroutine.
//
// A Server relays inbound text on the connection's read goroutine, to
// the peers registered at that moment.  A peer joins the registry only
// when the supervisor applies its ServerOpened, so lines relayed while
// that event is still queued never reach it.
//
// Layers (bottom → top):
//
//	transport  →  probe, registry  →  core  →  supervisor  →  console
package core

import (
	ncerr "hudchat/internal/errors"
	"hudchat/internal/event"
	"hudchat/internal/metrics"
	"hudchat/internal/probe"
	"hudchat/internal/transport"
	"hudchat/util"
)

// Env is what both roles need from the node.
type Env struct {
	Adapter transport.Adapter
	Events  event.Sink
	Probe   *probe.Probe
	Metrics *metrics.Collector
	Logger  *util.Logger
}

// handleProbe routes one inbound binary frame through the probe and
// queues whatever it produced.
func (e Env) handleProbe(log *util.Logger, src event.Source, c transport.Conn, data []byte) {
	res, err := e.Probe.Handle(c, data)
	switch {
	case ncerr.Is(err, ncerr.ErrMalformedFrame):
		e.Events.Push(event.ProtocolError{Source: src, Err: err})
	case err != nil:
		log.Warn("%v", err)
	case res.Kind == probe.Pong:
		e.Events.Push(event.RoundTrip{Source: src, Elapsed: res.Elapsed})
	}
}
