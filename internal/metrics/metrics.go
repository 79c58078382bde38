// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a chat node.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one node.
type Collector struct {
	peersActive atomic.Int64
	peersTotal  atomic.Int64
	framesIn    atomic.Int64
	framesOut   atomic.Int64
	bytesIn     atomic.Int64
	bytesOut    atomic.Int64
	relayed     atomic.Int64
	pingsSent   atomic.Int64
	rebinds     atomic.Int64
	errorsTotal atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	rttCount     int64
	rttSum       time.Duration
	rttMin       time.Duration
	rttMax       time.Duration
	rttLast      time.Duration
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Peer metrics ─────────────────────────────────────────────────────

// PeerOpened increments both the active and total peer counters.
func (c *Collector) PeerOpened() {
	if c == nil {
		return
	}
	c.peersActive.Add(1)
	c.peersTotal.Add(1)
}

// PeerClosed decrements the active peer counter.
func (c *Collector) PeerClosed() {
	if c == nil {
		return
	}
	c.peersActive.Add(-1)
}

// ActivePeers returns the number of open peer connections.
func (c *Collector) ActivePeers() int64 {
	if c == nil {
		return 0
	}
	return c.peersActive.Load()
}

// TotalPeers returns the lifetime peer connection count.
func (c *Collector) TotalPeers() int64 {
	if c == nil {
		return 0
	}
	return c.peersTotal.Load()
}

// ── Frame metrics ────────────────────────────────────────────────────

// FrameReceived records one inbound frame of n bytes.
func (c *Collector) FrameReceived(n int) {
	if c == nil {
		return
	}
	c.framesIn.Add(1)
	c.bytesIn.Add(int64(n))
}

// FrameSent records one outbound frame of n bytes.
func (c *Collector) FrameSent(n int) {
	if c == nil {
		return
	}
	c.framesOut.Add(1)
	c.bytesOut.Add(int64(n))
}

// Relayed records n fan-out deliveries of a peer message.
func (c *Collector) Relayed(n int) {
	if c == nil {
		return
	}
	c.relayed.Add(int64(n))
}

// PingSent records one outbound probe.
func (c *Collector) PingSent() {
	if c == nil {
		return
	}
	c.pingsSent.Add(1)
}

// ── Latency ──────────────────────────────────────────────────────────

// RoundTrip records one measured round trip.
func (c *Collector) RoundTrip(d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rttCount == 0 || d < c.rttMin {
		c.rttMin = d
	}
	if d > c.rttMax {
		c.rttMax = d
	}
	c.rttCount++
	c.rttSum += d
	c.rttLast = d
}

// RoundTrips returns the number of measured round trips.
func (c *Collector) RoundTrips() int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rttCount
}

// ── Supervisor metrics ───────────────────────────────────────────────

// Rebind records one attempt to listen again after a role was lost.
func (c *Collector) Rebind() {
	if c == nil {
		return
	}
	c.rebinds.Add(1)
}

// Rebinds returns the number of rebind attempts.
func (c *Collector) Rebinds() int64 {
	if c == nil {
		return 0
	}
	return c.rebinds.Load()
}

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	PeersActive      int64  `json:"peers_active"`
	PeersTotal       int64  `json:"peers_total"`
	FramesIn         int64  `json:"frames_in"`
	FramesOut        int64  `json:"frames_out"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	Relayed          int64  `json:"relayed"`
	PingsSent        int64  `json:"pings_sent"`
	RoundTrips       int64  `json:"round_trips"`
	RTTLast          string `json:"rtt_last,omitempty"`
	RTTMin           string `json:"rtt_min,omitempty"`
	RTTMax           string `json:"rtt_max,omitempty"`
	RTTAvg           string `json:"rtt_avg,omitempty"`
	Rebinds          int64  `json:"rebinds"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:      time.Since(c.startTime).Truncate(time.Second).String(),
		PeersActive: c.peersActive.Load(),
		PeersTotal:  c.peersTotal.Load(),
		FramesIn:    c.framesIn.Load(),
		FramesOut:   c.framesOut.Load(),
		BytesIn:     c.bytesIn.Load(),
		BytesOut:    c.bytesOut.Load(),
		Relayed:     c.relayed.Load(),
		PingsSent:   c.pingsSent.Load(),
		RoundTrips:  c.rttCount,
		Rebinds:     c.rebinds.Load(),
		ErrorsTotal: c.errorsTotal.Load(),
	}
	if c.rttCount > 0 {
		s.RTTLast = c.rttLast.String()
		s.RTTMin = c.rttMin.String()
		s.RTTMax = c.rttMax.String()
		s.RTTAvg = (c.rttSum / time.Duration(c.rttCount)).String()
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
