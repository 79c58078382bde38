// Package transporttest provides in-memory transport fakes for tests
// of the layers above the transport.
package transporttest

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	ncerr "hudchat/internal/errors"
	"hudchat/internal/transport"
)

// Addr is a net.Addr carrying a fixed string.
type Addr string

func (a Addr) Network() string { return "tcp" }
func (a Addr) String() string  { return string(a) }

// ── Conn ─────────────────────────────────────────────────────────────

// Conn records everything sent to it.
type Conn struct {
	id   transport.ID
	addr net.Addr

	mu      sync.Mutex
	batches [][]transport.Frame
	closed  bool
	code    int
	reason  string
	sendErr error
}

// NewConn returns an open fake connection.
func NewConn(id transport.ID, addr string) *Conn {
	return &Conn{id: id, addr: Addr(addr)}
}

func (c *Conn) ID() transport.ID     { return c.id }
func (c *Conn) RemoteAddr() net.Addr { return c.addr }

// FailSends makes every later Send return err.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// Send records frames as one batch.
func (c *Conn) Send(frames ...transport.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.closed {
		return ncerr.ErrConnClosed
	}
	cp := make([]transport.Frame, len(frames))
	copy(cp, frames)
	c.batches = append(c.batches, cp)
	return nil
}

// Close records the close request.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed, c.code, c.reason = true, code, reason
	}
	return nil
}

// Batches returns a copy of every recorded Send.
func (c *Conn) Batches() [][]transport.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]transport.Frame, len(c.batches))
	copy(out, c.batches)
	return out
}

// Texts returns the data of every text frame sent, in order.
func (c *Conn) Texts() []string {
	var out []string
	for _, b := range c.Batches() {
		for _, f := range b {
			if f.Kind == transport.Text {
				out = append(out, string(f.Data))
			}
		}
	}
	return out
}

// Closed reports whether Close was called and with what.
func (c *Conn) Closed() (closed bool, code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.code, c.reason
}

// ── Adapter ──────────────────────────────────────────────────────────

// Adapter is a scriptable transport.Adapter.  Listeners never accept
// on their own; tests drive them with Listener.Accept.
type Adapter struct {
	nextID atomic.Uint64

	mu         sync.Mutex
	listenErr  map[string]error
	connectErr error
	block      bool
	listens    []string
	connects   []string
	listeners  []*Listener
	dialed     transport.Handler
}

// NewAdapter returns an adapter where every call succeeds.
func NewAdapter() *Adapter {
	return &Adapter{listenErr: make(map[string]error)}
}

// FailListen makes Listen(addr) return err.  A nil err clears it.
func (a *Adapter) FailListen(addr string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		delete(a.listenErr, addr)
		return
	}
	a.listenErr[addr] = err
}

// FailConnect makes every Connect return err.
func (a *Adapter) FailConnect(err error) {
	a.mu.Lock()
	a.connectErr = err
	a.mu.Unlock()
}

// BlockConnect makes Connect wait for its context to end.
func (a *Adapter) BlockConnect(on bool) {
	a.mu.Lock()
	a.block = on
	a.mu.Unlock()
}

// Listens returns every address Listen was called with.
func (a *Adapter) Listens() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.listens...)
}

// Connects returns every URL Connect was called with.
func (a *Adapter) Connects() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.connects...)
}

// Listener returns the most recent listener, or nil.
func (a *Adapter) Listener() *Listener {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.listeners) == 0 {
		return nil
	}
	return a.listeners[len(a.listeners)-1]
}

func (a *Adapter) Listen(addr string, h transport.Handler) (transport.Listener, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listens = append(a.listens, addr)
	if err := a.listenErr[addr]; err != nil {
		return nil, ncerr.Wrap("listen", addr, err)
	}
	l := &Listener{adapter: a, addr: Addr(addr), Handler: h}
	a.listeners = append(a.listeners, l)
	return l, nil
}

func (a *Adapter) Connect(ctx context.Context, url string, h transport.Handler) (transport.Conn, error) {
	a.mu.Lock()
	a.connects = append(a.connects, url)
	a.dialed = h
	err, block := a.connectErr, a.block
	a.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ncerr.Wrap("dial", url, ctx.Err())
	}
	if err != nil {
		return nil, ncerr.Wrap("dial", url, err)
	}
	c := NewConn(a.NextID(), url)
	h.OnOpen(c, c.addr)
	return c, nil
}

// DialHandler returns the handler passed to the most recent Connect.
func (a *Adapter) DialHandler() transport.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dialed
}

// NextID hands out the next connection identity.
func (a *Adapter) NextID() transport.ID { return transport.ID(a.nextID.Add(1)) }

// ── Listener ─────────────────────────────────────────────────────────

// Listener is a fake bound listener.
type Listener struct {
	adapter *Adapter
	addr    net.Addr
	Handler transport.Handler

	mu       sync.Mutex
	accepted []*Conn
	shutdown bool
}

func (l *Listener) Addr() net.Addr { return l.addr }

// Accept simulates an inbound peer and reports it to the handler.
func (l *Listener) Accept(peer string) *Conn {
	c := NewConn(l.adapter.NextID(), peer)
	l.mu.Lock()
	l.accepted = append(l.accepted, c)
	l.mu.Unlock()
	l.Handler.OnOpen(c, c.addr)
	return c
}

// BroadcastClose closes every accepted connection normally.
func (l *Listener) BroadcastClose() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.accepted {
		c.Close(transport.CloseNormal, "") //nolint:errcheck
	}
	return nil
}

// Shutdown marks the listener closed.
func (l *Listener) Shutdown() error {
	l.mu.Lock()
	l.shutdown = true
	l.mu.Unlock()
	return nil
}

// IsShutdown reports whether Shutdown was called.
func (l *Listener) IsShutdown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shutdown
}
