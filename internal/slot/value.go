package slot

import (
	"sync"
	"sync/atomic"

	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/wire"
)

// Value is the bidirectional, ownership-contested slot V<T> (spec §3,
// §4.2). It is grounded on original_source's PyValue<T>
// (src/values.rs), which holds exactly the same RwLock<(T, in_flight)>
// pair this type stores under a plain sync.RWMutex.
type Value[T any] struct {
	id    registry.SlotID
	wid   wire.WireID
	codec wire.Codec[T]
	ctx   Context

	mu       sync.RWMutex
	current  T
	inFlight uint32

	signalInterest atomic.Bool
}

// NewValue registers a Value slot named name under ctx's builder scope,
// wiring its update/ack/sync handlers, and returns it ready for use.
func NewValue[T any](ctx Context, name string, codec wire.Codec[T], initial T) *Value[T] {
	v := &Value[T]{
		codec:   codec,
		ctx:     ctx,
		current: initial,
	}
	v.signalInterest.Store(true)
	v.id = ctx.Builder.Declare(name, codec.TypeHash())
	v.wid = wire.ToWireID(uint64(v.id))

	ctx.Builder.RegisterUpdate(v.id, func(h wire.Header, payload []byte) {
		v.applyFromViewer(h, payload)
	})
	ctx.Builder.RegisterAck(v.id, registry.AckFuncs{
		Acknowledge:   v.onAck,
		ResetInFlight: v.resetInFlight,
	})
	ctx.Builder.RegisterSync(v.sync)
	return v
}

// ID returns the slot's in-memory identifier.
func (v *Value[T]) ID() registry.SlotID { return v.id }

// Get returns a snapshot of the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// RegisterSignalInterest toggles whether a viewer-originated write to
// this slot posts to the signal dispatcher (spec §6's
// register_signal_interest(id, bool); DESIGN.md's resolution of where
// emit_signal comes from on the inbound path).
func (v *Value[T]) RegisterSignalInterest(enabled bool) {
	v.signalInterest.Store(enabled)
}

// SetFromDriver stores value, optionally posts it to the signal
// dispatcher, and — when a viewer is connected — encodes and sends a
// Value frame while incrementing in_flight so a racing viewer write is
// dropped rather than clobbering this one (spec §4.2).
func (v *Value[T]) SetFromDriver(value T, emitSignal bool, updateHint bool) {
	v.mu.Lock()
	v.current = value
	connected := v.ctx.connected()
	if connected {
		v.inFlight = saturatingIncrement(v.inFlight)
	}
	v.mu.Unlock()

	if connected {
		frame := wire.EncodeScalarFrame(wire.KindValue, v.wid, updateHint, v.codec.Marshal(value))
		v.ctx.send(frame)
	}
	if emitSignal {
		v.postSignal(value)
	}
}

// applyFromViewer implements apply_from_viewer (spec §4.2): decode,
// store only if no driver write is in flight, optionally signal, and
// always ack regardless of whether the write was accepted.
func (v *Value[T]) applyFromViewer(h wire.Header, payload []byte) {
	value, err := v.codec.Unmarshal(wire.ScalarPayload(h, payload))
	if err != nil {
		if v.ctx.Dispatcher != nil {
			v.ctx.Dispatcher.Errorf("value %d: malformed frame: %v", v.id, err)
		}
		return
	}

	v.mu.Lock()
	accepted := v.inFlight == 0
	if accepted {
		v.current = value
	}
	v.mu.Unlock()

	if accepted && v.signalInterest.Load() {
		v.postSignal(value)
	}
	v.ctx.send(wire.EncodeFrame(wire.Header{Kind: wire.KindControl, ControlSubtype: wire.ControlAck, AckTarget: uint32(v.wid)}, nil))
}

func (v *Value[T]) postSignal(value T) {
	if v.ctx.Dispatcher != nil {
		v.ctx.Dispatcher.Post(uint64(v.id), value)
	}
}

// onAck implements on_ack: in_flight -= 1, saturating at 0 (spec §4.2).
func (v *Value[T]) onAck() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.inFlight > 0 {
		v.inFlight--
	}
}

// resetInFlight zeroes in_flight on viewer disconnect: no Ack for any
// outstanding write will ever arrive now.
func (v *Value[T]) resetInFlight() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inFlight = 0
}

// InFlight reports the current outstanding-write count, exposed for
// tests and diagnostics.
func (v *Value[T]) InFlight() uint32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.inFlight
}

// sync implements sync(): send current with in_flight <- 1 so a racing
// viewer write arriving before the Ack is suppressed (spec §4.2).
func (v *Value[T]) sync() {
	v.mu.Lock()
	v.inFlight = 1 // sync always sets exactly one outstanding write
	current := v.current
	v.mu.Unlock()

	v.ctx.send(wire.EncodeScalarFrame(wire.KindValue, v.wid, false, v.codec.Marshal(current)))
}

// saturatingIncrement implements DESIGN.md's chosen in_flight overflow
// policy: never wrap past the maximum; a write attempted at saturation
// is dropped from the counter (the frame itself still sends) rather
// than panicking a connected driver.
func saturatingIncrement(n uint32) uint32 {
	if n == ^uint32(0) {
		return n
	}
	return n + 1
}
