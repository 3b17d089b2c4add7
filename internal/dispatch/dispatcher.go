// Package dispatch implements the ordered, per-slot-id-serialized signal
// queue that is the only path through which driver code observes
// viewer-originated changes (spec §4.9). It is grounded directly on
// original_source's ChangedValues/ChangedInner/OrderedMap
// (crates/egui-states-pyserver/src/signals.rs), reimplemented with
// sync.Mutex/sync.Cond in place of that source's custom Event primitive.
package dispatch

import "sync"

// Mode selects how repeated posts to the same id accumulate before a
// worker consumes them (spec §4.9 point 4).
type Mode int

const (
	// Single: a new post replaces the pending value if it has not yet
	// been consumed. This is the default for every id.
	Single Mode = iota
	// Multi: posts accumulate in a FIFO deque.
	Multi
)

// Payload is a posted (slot id, value) pair delivered to a worker.
type Payload struct {
	ID    uint64
	Value any
}

type cell struct {
	mode   Mode
	single *any
	queue  []any
}

// Dispatcher is the ordered signal queue. The zero value is not usable;
// construct with New.
type Dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	order   []uint64
	cells   map[uint64]*cell
	blocked map[uint64]bool
}

// New constructs an empty Dispatcher.
func New() *Dispatcher {
	d := &Dispatcher{
		cells:   make(map[uint64]*cell),
		blocked: make(map[uint64]bool),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *Dispatcher) cellFor(id uint64) *cell {
	c, ok := d.cells[id]
	if !ok {
		c = &cell{}
		d.cells[id] = c
	}
	return c
}

// SetMode switches id between Single and Multi delivery. Switching
// Single→Multi converts any pending single value into a one-element
// queue; switching Multi→Single collapses a pending queue down to its
// most recently posted entry, discarding the rest (original_source's
// ChangedValues::set_to_single/set_to_multi — spec.md only specifies a
// static per-id default, this module supplements the live switch).
func (d *Dispatcher) SetMode(id uint64, mode Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.cellFor(id)
	if c.mode == mode {
		return
	}
	switch mode {
	case Multi:
		if c.single != nil {
			c.queue = append(c.queue, *c.single)
			c.single = nil
		}
	case Single:
		if len(c.queue) > 0 {
			last := c.queue[len(c.queue)-1]
			c.single = &last
			c.queue = nil
		}
	}
	c.mode = mode
}

// Post enqueues value for id. Exactly one blocked worker is woken; if no
// worker is waiting the value sits until the next Wait call (spec §4.9
// points 1 and 3).
func (d *Dispatcher) Post(id uint64, value any) {
	d.mu.Lock()
	c := d.cellFor(id)
	switch c.mode {
	case Multi:
		c.queue = append(c.queue, value)
	default:
		v := value
		c.single = &v
	}
	d.order = append(d.order, id)
	d.mu.Unlock()
	d.cond.Signal()
}

// Wait blocks until a deliverable payload exists, then returns it and
// marks its id "blocked" (held by this caller) until Done is called. No
// two concurrent Wait callers can hold the same id at once (spec §4.9
// point 2).
func (d *Dispatcher) Wait() Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		if p, ok := d.tryTakeLocked(); ok {
			return p
		}
		d.cond.Wait()
	}
}

// tryTakeLocked scans the pending-id queue once. Stale entries (already
// drained) are discarded; entries for an id currently held by another
// worker are rotated to the back so they are not lost (spec §4.9: "the
// index queue may contain duplicates of an id that was blocked ... an
// empty/blocked id is skipped"). Caller holds d.mu.
func (d *Dispatcher) tryTakeLocked() (Payload, bool) {
	n := len(d.order)
	for i := 0; i < n; i++ {
		id := d.order[0]
		d.order = d.order[1:]

		if d.blocked[id] {
			d.order = append(d.order, id)
			continue
		}
		c := d.cells[id]
		if c == nil {
			continue
		}
		switch c.mode {
		case Multi:
			if len(c.queue) == 0 {
				continue
			}
			v := c.queue[0]
			c.queue = c.queue[1:]
			d.blocked[id] = true
			return Payload{ID: id, Value: v}, true
		default:
			if c.single == nil {
				continue
			}
			v := *c.single
			c.single = nil
			d.blocked[id] = true
			return Payload{ID: id, Value: v}, true
		}
	}
	return Payload{}, false
}

// QueueDepth reports the number of pending index-queue entries across
// all ids, a coarse backlog figure exposed for telemetry (SPEC_FULL.md's
// dispatcher queue-depth gauge).
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// Done releases id, allowing another worker to take its next pending
// payload (if any) and waking all blocked Wait callers so they can
// re-scan (spec §4.9 point 3: "fair wake-up").
func (d *Dispatcher) Done(id uint64) {
	d.mu.Lock()
	d.blocked[id] = false
	d.mu.Unlock()
	d.cond.Broadcast()
}
