package registry

import (
	"fmt"

	"hudchat/internal/metrics"
	"hudchat/internal/probe"
	"hudchat/internal/transport"
	"hudchat/util"
)

// Relay fans chat lines out to the peers of a Registry.
type Relay struct {
	reg     *Registry
	probe   *probe.Probe
	log     *util.Logger
	metrics *metrics.Collector
}

// NewRelay returns a relay over reg.  Every copy it sends is followed
// by a ping from p.
func NewRelay(reg *Registry, p *probe.Probe, log *util.Logger, m *metrics.Collector) *Relay {
	return &Relay{reg: reg, probe: p, log: log, metrics: m}
}

// Tag is the prefix a relayed copy carries for its sender.
func Tag(sender transport.ID) string {
	return fmt.Sprintf("Client%d: ", uint64(sender))
}

// BroadcastText sends line to every registered peer except excluding.
// A real sender identity tags each copy; transport.NoID sends the line
// as is.  A peer whose send fails is logged and asked to close, and
// the broadcast carries on.  It returns the number of peers reached.
func (r *Relay) BroadcastText(line string, excluding transport.ID) int {
	msg := line
	if excluding != transport.NoID {
		msg = Tag(excluding) + line
	}

	sent := 0
	r.reg.each(func(id transport.ID, c transport.Conn) {
		if id == excluding {
			return
		}
		if err := r.probe.SendText(c, msg); err != nil {
			r.log.Warn("relay to %s failed: %v", id, err)
			r.metrics.RecordError(fmt.Sprintf("relay to %s: %v", id, err))
			c.Close(transport.CloseGoingAway, "send failed") //nolint:errcheck
			return
		}
		sent++
	})
	r.metrics.Relayed(sent)
	return sent
}
