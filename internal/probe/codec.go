// Package probe implements the ping/pong latency sub-protocol that
// rides alongside chat text on every connection.
package probe

import (
	"encoding/binary"
	"fmt"
	"time"

	ncerr "hudchat/internal/errors"
)

// Kind is the stamp variant.
type Kind uint32

const (
	Ping Kind = 0
	Pong Kind = 1
)

func (k Kind) String() string {
	switch k {
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// FrameSize is the encoded length of a Stamp: a u32 variant tag and an
// i64 Unix timestamp in nanoseconds, both little-endian.
const FrameSize = 12

// Stamp is one probe frame.
type Stamp struct {
	Kind Kind
	At   time.Time
}

// Encode returns the wire form of s.
func (s Stamp) Encode() []byte {
	b := make([]byte, FrameSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(s.Kind))
	binary.LittleEndian.PutUint64(b[4:12], uint64(s.At.UnixNano()))
	return b
}

// Decode parses a probe frame.
func Decode(b []byte) (Stamp, error) {
	if len(b) != FrameSize {
		return Stamp{}, ncerr.Malformed("want %d bytes, got %d", FrameSize, len(b))
	}
	k := Kind(binary.LittleEndian.Uint32(b[0:4]))
	if k != Ping && k != Pong {
		return Stamp{}, ncerr.Malformed("unknown variant %d", uint32(k))
	}
	ns := int64(binary.LittleEndian.Uint64(b[4:12]))
	return Stamp{Kind: k, At: time.Unix(0, ns)}, nil
}

// FormatRoundTrip renders d as seconds with microsecond precision.
func FormatRoundTrip(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := d / time.Second
	micros := (d % time.Second) / time.Microsecond
	return fmt.Sprintf("Round-trip: %d.%06ds", secs, micros)
}
