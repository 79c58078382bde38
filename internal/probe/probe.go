package probe

import (
	"fmt"
	"time"

	"hudchat/internal/metrics"
	"hudchat/internal/transport"
)

// Probe stamps outgoing text with a ping and answers inbound probes.
type Probe struct {
	now     func() time.Time
	metrics *metrics.Collector
}

// New returns a probe using the wall clock.
func New(m *metrics.Collector) *Probe {
	return &Probe{now: time.Now, metrics: m}
}

// WithClock returns a copy of p reading time from now.
func (p *Probe) WithClock(now func() time.Time) *Probe {
	cp := *p
	cp.now = now
	return &cp
}

// SendText sends line followed by a Ping in one batch, so nothing else
// can be written to c between them.
func (p *Probe) SendText(c transport.Conn, line string) error {
	ping := Stamp{Kind: Ping, At: p.now()}
	if err := c.Send(transport.TextFrame(line), transport.BinaryFrame(ping.Encode())); err != nil {
		return err
	}
	p.metrics.PingSent()
	return nil
}

// Result is the outcome of one inbound probe frame.
type Result struct {
	Kind    Kind
	Elapsed time.Duration // valid for Pong
}

// Handle processes one inbound binary frame.  A Ping is answered with
// a Pong carrying the same timestamp; a Pong yields the elapsed time.
// Decode failures wrap errors.ErrMalformedFrame and leave c untouched.
func (p *Probe) Handle(c transport.Conn, data []byte) (Result, error) {
	s, err := Decode(data)
	if err != nil {
		return Result{}, err
	}

	switch s.Kind {
	case Ping:
		pong := Stamp{Kind: Pong, At: s.At}
		if err := c.Send(transport.BinaryFrame(pong.Encode())); err != nil {
			return Result{Kind: Ping}, fmt.Errorf("pong to %s: %w", c.ID(), err)
		}
		return Result{Kind: Ping}, nil
	default:
		elapsed := p.now().Sub(s.At)
		if elapsed < 0 {
			elapsed = 0
		}
		p.metrics.RoundTrip(elapsed)
		return Result{Kind: Pong, Elapsed: elapsed}, nil
	}
}
