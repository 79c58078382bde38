package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so CLI flags, environment loading
// and tests agree on them.

const (
	// DefaultServerAddr is where the node listens when no flag says
	// otherwise.
	DefaultServerAddr = "localhost:3030"

	// DefaultConnTimeout bounds a single dial including the websocket
	// handshake.
	DefaultConnTimeout = 10 * time.Second

	// DefaultDialAttempts is the number of tries for an outbound dial.
	DefaultDialAttempts = 1

	// DefaultDialRetryDelay is the pause before the second dial attempt.
	DefaultDialRetryDelay = 500 * time.Millisecond

	// DefaultTickInterval is the console loop sleep between iterations.
	DefaultTickInterval = 10 * time.Millisecond

	// DefaultCloseGrace is how long a closing connection waits for the
	// peer's close frame before the socket is dropped.
	DefaultCloseGrace = 1 * time.Second

	// DefaultWriteWait bounds one frame write.
	DefaultWriteWait = 5 * time.Second

	// DefaultSendBuffer is the number of queued send batches per
	// connection.
	DefaultSendBuffer = 64

	// DefaultQueueSize is the capacity of the UI command queue.
	DefaultQueueSize = 1024

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22
)
