package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"hudchat/config"
	ncerr "hudchat/internal/errors"
	"hudchat/internal/event"
	"hudchat/internal/retry"
	"hudchat/internal/transport"
	"hudchat/util"
)

// DialOptions bounds one outbound connection attempt.
type DialOptions struct {
	Timeout    time.Duration // per attempt, 0 = none
	Attempts   int
	RetryDelay time.Duration
}

// Dial is an outbound connection attempt running on its own goroutine.
// Success is queued as event.ClientOpened by the transport handler;
// failure as event.ClientError with no connection identity.
type Dial struct {
	env    Env
	url    string
	epoch  uint64
	opts   DialOptions
	log    *util.Logger
	cancel context.CancelFunc
	done   chan struct{}

	cancelled atomic.Bool
}

// StartDial begins dialing url.  It returns at once.
func StartDial(ctx context.Context, env Env, url string, epoch uint64, opts DialOptions) *Dial {
	if opts.Attempts < 1 {
		opts.Attempts = config.DefaultDialAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = config.DefaultDialRetryDelay
	}
	ctx, cancel := context.WithCancel(ctx)
	d := &Dial{
		env:    env,
		url:    url,
		epoch:  epoch,
		opts:   opts,
		log:    env.Logger.Named("client"),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go d.run(ctx)
	return d
}

// URL is the address being dialed.
func (d *Dial) URL() string { return d.url }

// Epoch is the tag carried by this dial's events.
func (d *Dial) Epoch() uint64 { return d.epoch }

// Cancel aborts the attempt.  A handshake that already completed still
// queues its ClientOpened; the receiver checks Cancelled and closes it.
func (d *Dial) Cancel() {
	d.cancelled.Store(true)
	d.cancel()
}

// Cancelled reports whether Cancel was called.
func (d *Dial) Cancelled() bool { return d.cancelled.Load() }

// Done is closed when the attempt has finished either way.
func (d *Dial) Done() <-chan struct{} { return d.done }

func (d *Dial) run(ctx context.Context) {
	defer close(d.done)
	defer d.cancel()

	b := retry.ForDial(d.opts.Attempts, d.opts.RetryDelay)
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		d.log.Info("dial %d/%d to %s failed: %v (retrying in %s)",
			attempt, d.opts.Attempts, d.url, err, wait.Round(time.Millisecond))
	}

	h := &clientHandler{env: d.env, epoch: d.epoch, log: d.log}
	err := b.Do(ctx, func(ctx context.Context, _ int) error {
		actx := ctx
		if d.opts.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
			defer cancel()
		}
		_, err := d.env.Adapter.Connect(actx, d.url, h)
		if err == nil {
			return nil
		}
		if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %w", ncerr.ErrTimeout, d.opts.Timeout, err)
		}
		if !ncerr.IsRetryable(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		d.env.Metrics.RecordError(err.Error())
		d.env.Events.Push(event.ClientError{
			Source: event.Source{Epoch: d.epoch, Conn: transport.NoID},
			Err:    err,
		})
	}
}

// Attach wraps the connection reported by ClientOpened.
func (d *Dial) Attach(c transport.Conn) *Client {
	return &Client{env: d.env, url: d.url, epoch: d.epoch, conn: c}
}

// Client is the connected role: one outbound connection.
type Client struct {
	env   Env
	url   string
	epoch uint64
	conn  transport.Conn
}

// URL is the dialed address.
func (c *Client) URL() string { return c.url }

// Epoch is the tag carried by this client's events.
func (c *Client) Epoch() uint64 { return c.epoch }

// Conn is the underlying connection.
func (c *Client) Conn() transport.Conn { return c.conn }

// SendText sends line and its ping to the server.
func (c *Client) SendText(line string) error {
	return c.env.Probe.SendText(c.conn, line)
}

// Close starts a normal close.
func (c *Client) Close() error {
	return c.conn.Close(transport.CloseNormal, "")
}

type clientHandler struct {
	env   Env
	epoch uint64
	log   *util.Logger
}

func (h *clientHandler) src(c transport.Conn) event.Source {
	return event.Source{Epoch: h.epoch, Conn: c.ID()}
}

func (h *clientHandler) OnOpen(c transport.Conn, peer net.Addr) {
	h.env.Metrics.PeerOpened()
	h.log.Debug("%s connected to %s", c.ID(), peer)
	h.env.Events.Push(event.ClientOpened{Source: h.src(c), Peer: peer, Handle: c})
}

func (h *clientHandler) OnMessage(c transport.Conn, f transport.Frame) {
	switch f.Kind {
	case transport.Text:
		h.env.Events.Push(event.MessageRecvd{Source: h.src(c), Text: string(f.Data)})
	case transport.Binary:
		h.env.handleProbe(h.log, h.src(c), c, f.Data)
	}
}

func (h *clientHandler) OnClose(c transport.Conn, code int, reason string) {
	h.env.Metrics.PeerClosed()
	h.env.Events.Push(event.ClientClosed{Source: h.src(c), Code: code, Reason: reason})
}

func (h *clientHandler) OnError(c transport.Conn, err error) {
	h.env.Metrics.PeerClosed()
	h.env.Metrics.RecordError(err.Error())
	h.env.Events.Push(event.ClientError{Source: h.src(c), Err: err})
}
