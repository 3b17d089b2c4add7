package slot

import (
	"sync"

	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/wire"
)

// Static is the driver-writable, viewer-read-only slot S<T> (spec §3,
// §4.3). It never registers an update handler — a viewer has no write
// path to a Static slot, only Value/List/Map/Image/Graph/Signal do.
type Static[T any] struct {
	id    registry.SlotID
	wid   wire.WireID
	codec wire.Codec[T]
	ctx   Context

	mu      sync.RWMutex
	current T
}

// NewStatic registers a Static slot named name.
func NewStatic[T any](ctx Context, name string, codec wire.Codec[T], initial T) *Static[T] {
	s := &Static[T]{codec: codec, ctx: ctx, current: initial}
	s.id = ctx.Builder.Declare(name, codec.TypeHash())
	s.wid = wire.ToWireID(uint64(s.id))
	ctx.Builder.RegisterSync(s.sync)
	return s
}

// ID returns the slot's in-memory identifier.
func (s *Static[T]) ID() registry.SlotID { return s.id }

// Get returns the current value.
func (s *Static[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set stores value and, when connected, pushes it to the viewer.
func (s *Static[T]) Set(value T, updateHint bool) {
	s.mu.Lock()
	s.current = value
	connected := s.ctx.connected()
	s.mu.Unlock()

	if connected {
		s.ctx.send(wire.EncodeScalarFrame(wire.KindStatic, s.wid, updateHint, s.codec.Marshal(value)))
	}
}

func (s *Static[T]) sync() {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	s.ctx.send(wire.EncodeScalarFrame(wire.KindStatic, s.wid, false, s.codec.Marshal(current)))
}
