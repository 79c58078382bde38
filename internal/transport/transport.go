// Package transport moves chat frames between nodes.  It owns the
// "how" of the connection (websocket framing, accept and dial, write
// serialisation, outbound dialing through TCP or an SSH tunnel) and
// reports every connection's lifecycle through a Handler.  What the
// frames mean is the caller's business.
package transport

import (
	"context"
	"fmt"
	"net"
)

// ID identifies one connection for its whole life.  IDs come from a
// single counter per adapter, start at 1 and are never reused.
type ID uint64

// NoID marks listener-level events and locally originated sends.
const NoID ID = 0

func (id ID) String() string { return fmt.Sprintf("#%d", uint64(id)) }

// FrameKind distinguishes chat text from probe frames.
type FrameKind int

const (
	Text FrameKind = iota + 1
	Binary
)

func (k FrameKind) String() string {
	switch k {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one discrete unit of transport data.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// TextFrame builds a text frame from a chat line.
func TextFrame(s string) Frame { return Frame{Kind: Text, Data: []byte(s)} }

// BinaryFrame builds a binary frame.
func BinaryFrame(b []byte) Frame { return Frame{Kind: Binary, Data: b} }

// Standard close codes (RFC 6455).
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
)

// Conn is the send-capable handle of one open connection.
type Conn interface {
	ID() ID
	RemoteAddr() net.Addr

	// Send queues frames to be written back to back; no frame from
	// another Send call is written between them.  It never blocks on
	// the network.
	Send(frames ...Frame) error

	// Close starts a cooperative close.  The Handler's OnClose fires
	// once the peer answers or the close grace period runs out.
	Close(code int, reason string) error
}

// Listener is a bound accept loop.
type Listener interface {
	Addr() net.Addr

	// BroadcastClose sends a normal close to every accepted connection.
	BroadcastClose() error

	// Shutdown stops accepting and drops every accepted connection.
	Shutdown() error
}

// Handler receives connection events.  Calls for one connection never
// overlap, OnOpen comes first, and they end with exactly one OnClose or
// OnError.  OnError with a nil Conn reports a listener-level failure.
type Handler interface {
	OnOpen(c Conn, peer net.Addr)
	OnMessage(c Conn, f Frame)
	OnClose(c Conn, code int, reason string)
	OnError(c Conn, err error)
}

// Adapter opens listeners and outbound connections.
type Adapter interface {
	// Listen binds addr synchronously and serves in the background.
	Listen(addr string, h Handler) (Listener, error)

	// Connect dials url and completes the handshake.  On success
	// h.OnOpen has already been called when Connect returns.
	Connect(ctx context.Context, url string, h Handler) (Conn, error)
}

// Dialer opens the raw network connection underneath an outbound
// websocket.  Implementations are a plain TCP dialer and an
// SSH-tunnelled dialer.
type Dialer interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases long-lived resources such as an SSH session.
	Close() error
}
