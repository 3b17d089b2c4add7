// Package registry implements the slot registration tree walk and the
// four role-partitioned lookup tables every session consults at runtime
// (spec §3 "Registry structure", §4.7). It is grounded on
// original_source's ServerStatesList
// (crates/egui-states-server/src/server.rs), which keeps exactly this
// shape: an updated/ack/sync/types split keyed by slot id.
package registry

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/ocx/statefabric/internal/wire"
)

// SlotID is the 64-bit in-memory slot identifier: a stable hash of the
// slot's fully-qualified dotted registration path (spec §3).
type SlotID uint64

// UpdateFunc applies a viewer-originated payload to a slot. It is called
// from the session's reader task with the frame's decoded header and
// payload bytes. Whether this triggers a signal dispatch is the slot's
// own per-id toggle (DESIGN.md's resolution of the emit_signal open
// question), not a parameter threaded through the wire frame or this
// call.
type UpdateFunc func(h wire.Header, payload []byte)

// AckFuncs bundles the two operations an ack-tracked slot (Value, Image)
// exposes to the registry: decrementing in_flight on a viewer Ack, and
// zeroing it outright when a viewer disconnects (no further Ack will
// ever arrive for writes already in flight).
type AckFuncs struct {
	Acknowledge   func()
	ResetInFlight func()
}

// SyncFunc replays a slot's full current state onto the writer channel.
// Called in registration order on every successful handshake (spec
// §4.8).
type SyncFunc func()

// Registry is the frozen, immutable-after-build set of role tables.
// Safe for concurrent read-only use by any number of goroutines once
// Freeze has returned.
type Registry struct {
	updated map[SlotID]UpdateFunc
	ack     map[SlotID]AckFuncs
	sync    []SyncFunc
	types   map[SlotID]uint64
	names   map[SlotID]string
	byWire  map[wire.WireID]SlotID

	logger *log.Logger
}

// Logger returns the registry's prefixed component logger, mirroring the
// teacher's per-component *log.Logger convention (internal/fabric/hub.go).
func (r *Registry) Logger() *log.Logger { return r.logger }

// Lookup resolves a wire-truncated id back to the full in-memory SlotID.
func (r *Registry) Lookup(w wire.WireID) (SlotID, bool) {
	id, ok := r.byWire[w]
	return id, ok
}

// Update dispatches a viewer-originated frame to its slot's update
// handler, reporting whether the id is known (spec §4.10: "non-control
// frame on unknown id" is a logged, non-fatal event).
func (r *Registry) Update(id SlotID, h wire.Header, payload []byte) bool {
	fn, ok := r.updated[id]
	if !ok {
		return false
	}
	fn(h, payload)
	return true
}

// Acknowledge dispatches a viewer Ack to its slot (spec §4.10: "ack for
// unknown id" is logged, non-fatal).
func (r *Registry) Acknowledge(id SlotID) bool {
	a, ok := r.ack[id]
	if !ok {
		return false
	}
	a.Acknowledge()
	return true
}

// ResetAllInFlight clears every ack-tracked slot's in_flight counter,
// called once a viewer disconnects since no further Ack can arrive for
// writes already sent to it.
func (r *Registry) ResetAllInFlight() {
	for _, a := range r.ack {
		if a.ResetInFlight != nil {
			a.ResetInFlight()
		}
	}
}

// SyncAll replays every syncable slot's full state, in registration
// order, onto the (now-connected) writer channel (spec §4.8).
func (r *Registry) SyncAll() {
	for _, fn := range r.sync {
		fn()
	}
}

// TypeHash returns the recorded type hash for id, for handshake
// comparison diagnostics.
func (r *Registry) TypeHash(id SlotID) (uint64, bool) {
	h, ok := r.types[id]
	return h, ok
}

// TreeHash combines every registered slot's id and type hash, in id
// order, into one 64-bit value. The session's handshake does not
// exchange or compare it: a viewer is accepted on protocol version and
// cookie alone, so a schema drift is not detected at connect time.
func (r *Registry) TreeHash() uint64 {
	ids := make([]SlotID, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	h := uint64(1469598103934665603) // FNV offset basis, arbitrary stable seed
	for _, id := range ids {
		h = (h ^ uint64(id)) * 1099511628211
		h = (h ^ r.types[id]) * 1099511628211
	}
	return h
}

// Builder is the single-pass, prefix-scoped registration API used during
// startup (spec §4.7). It is not safe for concurrent use — registration
// happens once, single-threaded, before any session starts.
type Builder struct {
	prefix string
	root   *builderState
}

type builderState struct {
	updated map[SlotID]UpdateFunc
	ack     map[SlotID]AckFuncs
	sync    []SyncFunc
	types   map[SlotID]uint64
	names   map[SlotID]string
	frozen  bool
}

// NewBuilder starts a fresh registration tree rooted at "root".
func NewBuilder() *Builder {
	return &Builder{
		prefix: "root",
		root: &builderState{
			updated: make(map[SlotID]UpdateFunc),
			ack:     make(map[SlotID]AckFuncs),
			types:   make(map[SlotID]uint64),
			names:   make(map[SlotID]string),
		},
	}
}

// Sub returns a child Builder scoped under name, e.g. b.Sub("camera")
// yields ids rooted at "root.camera.*" (spec §4.7: "each branch pushes a
// dotted prefix").
func (b *Builder) Sub(name string) *Builder {
	if b.root.frozen {
		panic("registry: Sub called after Freeze")
	}
	return &Builder{prefix: b.prefix + "." + name, root: b.root}
}

// Declare computes this leaf's stable id from its fully-qualified dotted
// name and records its type hash. Every slot constructor in
// internal/slot calls this first.
func (b *Builder) Declare(name string, typeHash uint64) SlotID {
	if b.root.frozen {
		panic("registry: Declare called after Freeze")
	}
	full := b.prefix + "." + name
	id := SlotID(wire.SlotID(full))
	if existing, ok := b.root.names[id]; ok {
		panic(fmt.Sprintf("registry: id collision between %q and %q", existing, full))
	}
	b.root.names[id] = full
	b.root.types[id] = typeHash
	return id
}

// RegisterUpdate installs id's viewer-originated update handler.
func (b *Builder) RegisterUpdate(id SlotID, fn UpdateFunc) {
	b.root.updated[id] = fn
}

// RegisterAck installs id's ack/reset-in-flight handlers.
func (b *Builder) RegisterAck(id SlotID, fns AckFuncs) {
	b.root.ack[id] = fns
}

// RegisterSync appends fn to the ordered replay list invoked on every
// handshake (spec §4.7, §4.8). Order is registration order, matching the
// source's Vec<fn()>.
func (b *Builder) RegisterSync(fn SyncFunc) {
	b.root.sync = append(b.root.sync, fn)
}

// Freeze validates the built tree (24-bit wire-id collisions across the
// whole tree must not exist — DESIGN.md's resolution of the spec's
// "implementer must pick one consistently" id note) and returns an
// immutable Registry. Freeze must be called exactly once, after every
// slot has registered.
func (b *Builder) Freeze() (*Registry, error) {
	if b.root.frozen {
		return nil, fmt.Errorf("registry: already frozen")
	}
	byWire := make(map[wire.WireID]SlotID, len(b.root.types))
	for id, name := range b.root.names {
		w := wire.ToWireID(uint64(id))
		if other, ok := byWire[w]; ok && other != id {
			return nil, fmt.Errorf("registry: 24-bit wire id collision between %q and %q",
				b.root.names[other], name)
		}
		byWire[w] = id
	}
	b.root.frozen = true
	return &Registry{
		updated: b.root.updated,
		ack:     b.root.ack,
		sync:    b.root.sync,
		types:   b.root.types,
		names:   b.root.names,
		byWire:  byWire,
		logger:  log.New(os.Stderr, "[registry] ", log.LstdFlags),
	}, nil
}
