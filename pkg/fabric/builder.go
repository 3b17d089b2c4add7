package fabric

import (
	"github.com/ocx/statefabric/internal/slot"
	"github.com/ocx/statefabric/internal/wire"
)

// Builder is the scoped registration handle passed into a RegisterFunc.
// It wraps internal/slot.Context so driver code never imports the
// internal packages directly (spec §4.7's registration builder,
// surfaced at the public API boundary).
type Builder struct {
	ctx slot.Context
}

// Sub returns a child Builder scoped under name, composing a nested
// state tree the same way spec §4.7 describes ("each branch pushes a
// dotted prefix").
func (b *Builder) Sub(name string) *Builder {
	return &Builder{ctx: b.ctx.Sub(name)}
}

// Go does not allow a generic method to introduce type parameters
// beyond its receiver's, so the typed slot constructors are free
// functions taking *Builder rather than Builder methods (spec §4.7).

// NewValue registers a Value<T> slot (spec §3, §4.2).
func NewValue[T any](b *Builder, name string, codec wire.Codec[T], initial T) *slot.Value[T] {
	return slot.NewValue(b.ctx, name, codec, initial)
}

// NewStatic registers a Static<T> slot (spec §3, §4.3).
func NewStatic[T any](b *Builder, name string, codec wire.Codec[T], initial T) *slot.Static[T] {
	return slot.NewStatic(b.ctx, name, codec, initial)
}

// NewSignal registers a Signal<T> slot (spec §3, §4.3).
func NewSignal[T any](b *Builder, name string, codec wire.Codec[T]) *slot.Signal[T] {
	return slot.NewSignal(b.ctx, name, codec)
}

// NewList registers a List<T> slot (spec §3, §4.4).
func NewList[T any](b *Builder, name string, codec wire.Codec[T], initial []T) *slot.List[T] {
	return slot.NewList(b.ctx, name, codec, initial)
}

// NewMap registers a Map<K,V> slot (spec §3, §4.4).
func NewMap[K comparable, V any](b *Builder, name string, keyCodec wire.Codec[K], valCodec wire.Codec[V], initial map[K]V) *slot.Map[K, V] {
	return slot.NewMap(b.ctx, name, keyCodec, valCodec, initial)
}

// NewImage registers an Image slot sized h by w (spec §3, §4.5).
func NewImage(b *Builder, name string, h, w uint16) *slot.Image {
	return slot.NewImage(b.ctx, name, h, w)
}

// NewGraph registers a Graph<T> slot, T one of float32/float64
// (spec §3, §4.6).
func NewGraph[T slot.Numeric](b *Builder, name string) *slot.Graph[T] {
	return slot.NewGraph[T](b.ctx, name)
}
