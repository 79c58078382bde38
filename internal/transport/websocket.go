package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hudchat/config"
	ncerr "hudchat/internal/errors"
	"hudchat/internal/metrics"
	"hudchat/util"
)

// NodeHeader carries the sending node's identifier on both sides of
// the handshake.
const NodeHeader = "X-Hudchat-Node"

// Options tunes a [WebSocket] adapter.  Zero values fall back to the
// defaults in package config.
type Options struct {
	Dialer           Dialer // outbound raw dials; nil = plain TCP
	Logger           *util.Logger
	Metrics          *metrics.Collector
	NodeID           uuid.UUID
	SendBuffer       int
	WriteWait        time.Duration
	CloseGrace       time.Duration
	HandshakeTimeout time.Duration
}

// WebSocket is the [Adapter] backed by gorilla/websocket.
type WebSocket struct {
	opts   Options
	log    *util.Logger
	nextID atomic.Uint64
}

// NewWebSocket returns an adapter with opts applied over defaults.
func NewWebSocket(opts Options) *WebSocket {
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	if opts.NodeID == uuid.Nil {
		opts.NodeID = uuid.New()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = config.DefaultSendBuffer
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = config.DefaultWriteWait
	}
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = config.DefaultCloseGrace
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = config.DefaultConnTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = &TCPDialer{Timeout: opts.HandshakeTimeout}
	}
	return &WebSocket{opts: opts, log: opts.Logger.Named("ws")}
}

// NodeID reports the identifier sent in [NodeHeader].
func (a *WebSocket) NodeID() uuid.UUID { return a.opts.NodeID }

func (a *WebSocket) header() http.Header {
	h := http.Header{}
	h.Set(NodeHeader, a.opts.NodeID.String())
	return h
}

// ── Listen ───────────────────────────────────────────────────────────

// Listen binds addr and serves websocket upgrades on every path.
func (a *WebSocket) Listen(addr string, h Handler) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ncerr.Wrap("listen", addr, err)
	}

	l := &wsListener{
		adapter: a,
		ln:      ln,
		handler: h,
		conns:   make(map[ID]*wsConn),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: a.opts.HandshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}
	l.srv = &http.Server{
		Handler:           l,
		ReadHeaderTimeout: a.opts.HandshakeTimeout,
	}

	a.log.Verbose("listening on %s", ln.Addr())
	go func() {
		err := l.srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.OnError(nil, ncerr.Wrap("accept", addr, err))
		}
	}()
	return l, nil
}

type wsListener struct {
	adapter  *WebSocket
	ln       net.Listener
	srv      *http.Server
	handler  Handler
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[ID]*wsConn
	closed bool
}

func (l *wsListener) Addr() net.Addr { return l.ln.Addr() }

func (l *wsListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, l.adapter.header())
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		l.adapter.log.Debug("upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	c := l.adapter.newConn(ws, l.handler)
	if peer := r.Header.Get(NodeHeader); peer != "" {
		l.adapter.log.Debug("%s is node %s", c.id, peer)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		ws.Close()
		return
	}
	l.conns[c.id] = c
	l.mu.Unlock()
	c.onGone = func() {
		l.mu.Lock()
		delete(l.conns, c.id)
		l.mu.Unlock()
	}

	go c.writeLoop()
	c.handler.OnOpen(c, ws.RemoteAddr())
	c.readLoop()
}

func (l *wsListener) snapshot() []*wsConn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*wsConn, 0, len(l.conns))
	for _, c := range l.conns {
		out = append(out, c)
	}
	return out
}

// BroadcastClose starts a normal close on every accepted connection.
func (l *wsListener) BroadcastClose() error {
	var errs []error
	for _, c := range l.snapshot() {
		if err := c.Close(CloseNormal, ""); err != nil {
			errs = append(errs, err)
		}
	}
	return ncerr.Join(errs...)
}

// Shutdown stops accepting and drops every accepted connection.
func (l *wsListener) Shutdown() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.srv.Close()
	for _, c := range l.snapshot() {
		c.drop()
	}
	l.adapter.log.Verbose("stopped listening on %s", l.ln.Addr())
	return err
}

// ── Connect ──────────────────────────────────────────────────────────

// Connect dials url through the configured Dialer and completes the
// websocket handshake.
func (a *WebSocket) Connect(ctx context.Context, url string, h Handler) (Conn, error) {
	d := websocket.Dialer{
		NetDialContext:   a.opts.Dialer.Dial,
		HandshakeTimeout: a.opts.HandshakeTimeout,
	}

	a.log.Debug("dialing %s", url)
	ws, resp, err := d.DialContext(ctx, url, a.header())
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			a.log.Debug("handshake with %s rejected: %s", url, resp.Status)
		}
		return nil, ncerr.Wrap("dial", url, err)
	}
	if peer := resp.Header.Get(NodeHeader); peer != "" {
		a.log.Debug("%s is node %s", url, peer)
	}

	c := a.newConn(ws, h)
	go c.writeLoop()
	h.OnOpen(c, ws.RemoteAddr())
	go c.readLoop()
	return c, nil
}

// ── Connection ───────────────────────────────────────────────────────

type closeRequest struct {
	code   int
	reason string
}

// outbound is one Send batch or a close request, never both.
type outbound struct {
	frames []Frame
	close  *closeRequest
}

type wsConn struct {
	id      ID
	ws      *websocket.Conn
	handler Handler
	opts    *Options
	log     *util.Logger

	out     chan outbound
	done    chan struct{}
	closing atomic.Bool
	local   atomic.Pointer[closeRequest]
	once    sync.Once
	onGone  func()
}

func (a *WebSocket) newConn(ws *websocket.Conn, h Handler) *wsConn {
	return &wsConn{
		id:      ID(a.nextID.Add(1)),
		ws:      ws,
		handler: h,
		opts:    &a.opts,
		log:     a.log,
		out:     make(chan outbound, a.opts.SendBuffer),
		done:    make(chan struct{}),
	}
}

func (c *wsConn) ID() ID               { return c.id }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

// Send queues frames as one batch.
func (c *wsConn) Send(frames ...Frame) error {
	if c.closing.Load() {
		return ncerr.ErrConnClosed
	}
	select {
	case <-c.done:
		return ncerr.ErrConnClosed
	case c.out <- outbound{frames: frames}:
		return nil
	default:
		return ncerr.ErrSendBufferFull
	}
}

// Close queues a close frame behind any pending sends.
func (c *wsConn) Close(code int, reason string) error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}
	req := &closeRequest{code: code, reason: reason}
	c.local.Store(req)
	select {
	case <-c.done:
	case c.out <- outbound{close: req}:
	default:
		// Buffer full: skip the queue.
		c.writeClose(req)
	}
	return nil
}

// drop closes the socket without a handshake.
func (c *wsConn) drop() {
	c.closing.Store(true)
	if c.local.Load() == nil {
		c.local.Store(&closeRequest{code: CloseGoingAway, reason: "shutdown"})
	}
	c.ws.Close()
}

func (c *wsConn) writeClose(req *closeRequest) {
	msg := websocket.FormatCloseMessage(req.code, req.reason)
	deadline := time.Now().Add(c.opts.WriteWait)
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		c.log.Debug("%s: close frame: %v", c.id, err)
		c.ws.Close()
		return
	}
	c.ws.SetReadDeadline(time.Now().Add(c.opts.CloseGrace)) //nolint:errcheck
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case item := <-c.out:
			if item.close != nil {
				c.writeClose(item.close)
				return
			}
			for _, f := range item.frames {
				if err := c.write(f); err != nil {
					c.log.Debug("%s: write: %v", c.id, err)
					c.ws.Close()
					return
				}
			}
		}
	}
}

func (c *wsConn) write(f Frame) error {
	mt := websocket.TextMessage
	if f.Kind == Binary {
		mt = websocket.BinaryMessage
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)) //nolint:errcheck
	if err := c.ws.WriteMessage(mt, f.Data); err != nil {
		return err
	}
	c.opts.Metrics.FrameSent(len(f.Data))
	return nil
}

func (c *wsConn) readLoop() {
	defer c.finish()
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.reportEnd(err)
			return
		}
		c.opts.Metrics.FrameReceived(len(data))

		kind := Text
		if mt == websocket.BinaryMessage {
			kind = Binary
		}
		c.handler.OnMessage(c, Frame{Kind: kind, Data: data})
	}
}

// reportEnd turns the reader's terminal error into exactly one
// OnClose or OnError.
func (c *wsConn) reportEnd(err error) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.handler.OnClose(c, ce.Code, ce.Text)
		return
	}
	if req := c.local.Load(); req != nil {
		// Our own close whose answer never came.
		c.handler.OnClose(c, req.code, req.reason)
		return
	}
	c.handler.OnError(c, ncerr.Wrap("read", c.ws.RemoteAddr().String(), err))
}

func (c *wsConn) finish() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
		if c.onGone != nil {
			c.onGone()
		}
	})
}
