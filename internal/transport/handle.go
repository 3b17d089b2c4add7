// Package transport holds the small stable handle slots use to reach the
// current WebSocket connection without ever referencing the session
// itself (spec §9: "slots never reference the session").
package transport

import "sync/atomic"

// Handle is a cloneable reference to one session's outbound channel and
// connectedness flag. It outlives any single connection: the session
// reuses the same Handle's channel across reconnects rather than
// allocating a new one, matching the teacher's WebSocketSpoke.Send field
// generalized to survive a disconnect/reconnect cycle (spec §4.8, §9).
type Handle struct {
	Out       chan []byte
	Connected atomic.Bool
}

// NewHandle allocates a Handle with an unbounded-in-practice buffered
// channel. The channel is never closed (spec §5: "writer channel:
// unbounded") — shutdown is signaled with a Sentinel value instead, so
// the same channel can be rebound to the next connection.
func NewHandle() *Handle {
	return &Handle{Out: make(chan []byte, 256)}
}

// Sentinel is a reserved zero-length slice used to ask the writer task to
// stop without closing the channel (spec §5, §4.8).
var Sentinel = []byte{}

// IsSentinel reports whether msg is the shutdown sentinel.
func IsSentinel(msg []byte) bool {
	return msg != nil && len(msg) == 0
}

// Send enqueues a frame for the writer task. It never blocks the caller
// on network I/O (spec §5): the channel absorbs bursts; only the writer
// goroutine touches the socket.
func (h *Handle) Send(frame []byte) {
	h.Out <- frame
}

// RequestShutdown enqueues the sentinel so the writer task drains any
// pending frames, observes the sentinel, and returns without the channel
// itself being closed.
func (h *Handle) RequestShutdown() {
	h.Out <- Sentinel
}
