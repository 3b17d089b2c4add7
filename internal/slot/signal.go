package slot

import (
	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/wire"
)

// Signal is the fire-and-forget, stateless slot Sig<T> (spec §3, §4.3).
// It never acks and never syncs — there is nothing to replay on
// connect.
type Signal[T any] struct {
	id    registry.SlotID
	wid   wire.WireID
	codec wire.Codec[T]
	ctx   Context
}

// NewSignal registers a Signal slot named name. Inbound (viewer→driver)
// emissions are always posted to the dispatcher — unlike Value, a
// Signal has no stored state for an emit_signal toggle to guard, so
// every viewer emission reaches the driver (spec §4.3: "Inbound ...
// posted to the signal dispatcher").
func NewSignal[T any](ctx Context, name string, codec wire.Codec[T]) *Signal[T] {
	sig := &Signal[T]{codec: codec, ctx: ctx}
	sig.id = ctx.Builder.Declare(name, codec.TypeHash())
	sig.wid = wire.ToWireID(uint64(sig.id))
	ctx.Builder.RegisterUpdate(sig.id, func(h wire.Header, payload []byte) {
		sig.applyFromViewer(h, payload)
	})
	return sig
}

// ID returns the slot's in-memory identifier.
func (sig *Signal[T]) ID() registry.SlotID { return sig.id }

// Emit sends value to the viewer immediately; it is not stored.
func (sig *Signal[T]) Emit(value T) {
	if !sig.ctx.connected() {
		return
	}
	sig.ctx.send(wire.EncodeScalarFrame(wire.KindSignal, sig.wid, false, sig.codec.Marshal(value)))
}

func (sig *Signal[T]) applyFromViewer(h wire.Header, payload []byte) {
	value, err := sig.codec.Unmarshal(wire.ScalarPayload(h, payload))
	if err != nil {
		if sig.ctx.Dispatcher != nil {
			sig.ctx.Dispatcher.Errorf("signal %d: malformed frame: %v", sig.id, err)
		}
		return
	}
	if sig.ctx.Dispatcher != nil {
		sig.ctx.Dispatcher.Post(uint64(sig.id), value)
	}
}
