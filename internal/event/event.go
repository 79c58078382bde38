// Package event carries connection lifecycle and content events from
// transport goroutines to the single UI goroutine.
package event

import (
	"net"
	"time"

	"hudchat/internal/transport"
)

// Source identifies the role instance and connection an event came
// from.  Every listener and outbound dial gets its own epoch.
type Source struct {
	Epoch uint64
	Conn  transport.ID
}

// Origin returns s.
func (s Source) Origin() Source { return s }

func (Source) command() {}

// Command is one queued event.  The set is closed: only the types in
// this file implement it.
type Command interface {
	Origin() Source
	command()
}

// ── Server role ──────────────────────────────────────────────────────

// ServerOpened reports an accepted peer.
type ServerOpened struct {
	Source
	Peer   net.Addr
	Handle transport.Conn
}

// ServerClosed reports a peer close, or a listener close when Conn is 0.
type ServerClosed struct {
	Source
	Code   int
	Reason string
}

// ServerError reports a peer transport error, or an accept-loop
// failure when Conn is 0.
type ServerError struct {
	Source
	Err error
}

// ── Client role ──────────────────────────────────────────────────────

// ClientOpened reports a completed outbound handshake.
type ClientOpened struct {
	Source
	Peer   net.Addr
	Handle transport.Conn
}

// ClientClosed reports the outbound connection closing.
type ClientClosed struct {
	Source
	Code   int
	Reason string
}

// ClientError reports a failed dial or a transport error on the
// outbound connection.
type ClientError struct {
	Source
	Err error
}

// ── Content ──────────────────────────────────────────────────────────

// MessageRecvd is one inbound chat line.
type MessageRecvd struct {
	Source
	Text string
}

// RoundTrip is one measured ping/pong round trip.
type RoundTrip struct {
	Source
	Elapsed time.Duration
}

// ProtocolError reports an undecodable probe frame.  The connection
// stays open.
type ProtocolError struct {
	Source
	Err error
}
