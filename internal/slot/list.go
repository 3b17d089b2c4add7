package slot

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/wire"
)

// list operation tags, encoded as the first payload byte (spec §4.1:
// "operation tag in first payload byte"). Elements are length-prefixed
// so the format works for any Codec[T], fixed- or variable-width —
// DESIGN.md's resolution of the collection payload-encoding open
// question.
const (
	listOpAll byte = iota
	listOpSet
	listOpAdd
	listOpRemove
)

// List is the ordered, indexed collection slot L<T> (spec §3, §4.4).
type List[T any] struct {
	id    registry.SlotID
	wid   wire.WireID
	codec wire.Codec[T]
	ctx   Context

	mu    sync.RWMutex
	items []T
}

// NewList registers a List slot named name.
func NewList[T any](ctx Context, name string, codec wire.Codec[T], initial []T) *List[T] {
	l := &List[T]{codec: codec, ctx: ctx, items: append([]T(nil), initial...)}
	l.id = ctx.Builder.Declare(name, codec.TypeHash())
	l.wid = wire.ToWireID(uint64(l.id))
	ctx.Builder.RegisterUpdate(l.id, func(h wire.Header, payload []byte) {
		l.applyFromViewer(payload)
	})
	ctx.Builder.RegisterSync(l.sync)
	return l
}

// ID returns the slot's in-memory identifier.
func (l *List[T]) ID() registry.SlotID { return l.id }

// Len reports the current element count.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// All returns a copy of the current contents.
func (l *List[T]) All() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]T(nil), l.items...)
}

// SetAll replaces the full contents and pushes a full-replace frame.
func (l *List[T]) SetAll(items []T) {
	l.mu.Lock()
	l.items = append([]T(nil), items...)
	snapshot := append([]T(nil), l.items...)
	l.mu.Unlock()
	l.send(l.encodeAll(snapshot))
}

// Set replaces the element at index, failing fast on an out-of-range
// index for a driver-originated call (spec §4.4).
func (l *List[T]) Set(index int, value T) error {
	l.mu.Lock()
	if index < 0 || index >= len(l.items) {
		l.mu.Unlock()
		return fmt.Errorf("slot: list %d: Set index %d out of range [0,%d)", l.id, index, len(l.items))
	}
	l.items[index] = value
	l.mu.Unlock()
	l.send(l.encodeSet(index, value))
	return nil
}

// Add appends value and pushes an Add delta.
func (l *List[T]) Add(value T) {
	l.mu.Lock()
	l.items = append(l.items, value)
	l.mu.Unlock()
	l.send(l.encodeAdd(value))
}

// Remove deletes the element at index, failing fast on an out-of-range
// index for a driver-originated call (spec §4.4).
func (l *List[T]) Remove(index int) error {
	l.mu.Lock()
	if index < 0 || index >= len(l.items) {
		l.mu.Unlock()
		return fmt.Errorf("slot: list %d: Remove index %d out of range [0,%d)", l.id, index, len(l.items))
	}
	l.items = append(l.items[:index], l.items[index+1:]...)
	l.mu.Unlock()
	l.send(l.encodeRemove(index))
	return nil
}

func (l *List[T]) send(payload []byte) {
	if !l.ctx.connected() {
		return
	}
	l.ctx.send(wire.EncodeFrame(wire.Header{Kind: wire.KindList, ID: l.wid}, payload))
}

func (l *List[T]) sync() {
	l.mu.RLock()
	snapshot := append([]T(nil), l.items...)
	l.mu.RUnlock()
	l.ctx.send(wire.EncodeFrame(wire.Header{Kind: wire.KindList, ID: l.wid}, l.encodeAll(snapshot)))
}

func (l *List[T]) encodeAll(items []T) []byte {
	out := []byte{listOpAll}
	out = appendUint32(out, uint32(len(items)))
	for _, v := range items {
		out = appendLenPrefixed(out, l.codec.Marshal(v))
	}
	return out
}

func (l *List[T]) encodeSet(index int, value T) []byte {
	out := []byte{listOpSet}
	out = appendUint32(out, uint32(index))
	return appendLenPrefixed(out, l.codec.Marshal(value))
}

func (l *List[T]) encodeAdd(value T) []byte {
	out := []byte{listOpAdd}
	return appendLenPrefixed(out, l.codec.Marshal(value))
}

func (l *List[T]) encodeRemove(index int) []byte {
	out := []byte{listOpRemove}
	return appendUint32(out, uint32(index))
}

// applyFromViewer decodes and applies a viewer-originated delta. Out-of-
// range Set/Remove is a logged no-op rather than an error (spec §4.4).
func (l *List[T]) applyFromViewer(payload []byte) {
	if len(payload) < 1 {
		l.logf("empty list frame")
		return
	}
	op, body := payload[0], payload[1:]
	switch op {
	case listOpAll:
		count, rest, err := readUint32(body)
		if err != nil {
			l.logf("malformed All frame: %v", err)
			return
		}
		items := make([]T, 0, count)
		for i := uint32(0); i < count; i++ {
			elem, n, err := readLenPrefixed(rest)
			if err != nil {
				l.logf("malformed All element %d: %v", i, err)
				return
			}
			v, err := l.codec.Unmarshal(elem)
			if err != nil {
				l.logf("malformed All element %d: %v", i, err)
				return
			}
			items = append(items, v)
			rest = rest[n:]
		}
		l.mu.Lock()
		l.items = items
		l.mu.Unlock()
	case listOpSet:
		idx, rest, err := readUint32(body)
		if err != nil {
			l.logf("malformed Set frame: %v", err)
			return
		}
		elem, _, err := readLenPrefixed(rest)
		if err != nil {
			l.logf("malformed Set frame: %v", err)
			return
		}
		v, err := l.codec.Unmarshal(elem)
		if err != nil {
			l.logf("malformed Set frame: %v", err)
			return
		}
		l.mu.Lock()
		if int(idx) < 0 || int(idx) >= len(l.items) {
			l.mu.Unlock()
			l.logf("viewer Set index %d out of range, dropped", idx)
			return
		}
		l.items[idx] = v
		l.mu.Unlock()
	case listOpAdd:
		elem, _, err := readLenPrefixed(body)
		if err != nil {
			l.logf("malformed Add frame: %v", err)
			return
		}
		v, err := l.codec.Unmarshal(elem)
		if err != nil {
			l.logf("malformed Add frame: %v", err)
			return
		}
		l.mu.Lock()
		l.items = append(l.items, v)
		l.mu.Unlock()
	case listOpRemove:
		idx, _, err := readUint32(body)
		if err != nil {
			l.logf("malformed Remove frame: %v", err)
			return
		}
		l.mu.Lock()
		if int(idx) < 0 || int(idx) >= len(l.items) {
			l.mu.Unlock()
			l.logf("viewer Remove index %d out of range, dropped", idx)
			return
		}
		l.items = append(l.items[:idx], l.items[idx+1:]...)
		l.mu.Unlock()
	default:
		l.logf("unknown list op %d", op)
	}
}

func (l *List[T]) logf(format string, args ...any) {
	if l.ctx.Dispatcher != nil {
		l.ctx.Dispatcher.Warningf("list %d: "+format, append([]any{l.id}, args...)...)
	}
}

func appendUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func readUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, fmt.Errorf("need 4 bytes, got %d", len(b))
	}
	return binary.LittleEndian.Uint32(b), b[4:], nil
}

func appendLenPrefixed(dst []byte, elem []byte) []byte {
	dst = appendUint32(dst, uint32(len(elem)))
	return append(dst, elem...)
}

func readLenPrefixed(b []byte) ([]byte, int, error) {
	n, rest, err := readUint32(b)
	if err != nil {
		return nil, 0, err
	}
	if uint32(len(rest)) < n {
		return nil, 0, fmt.Errorf("need %d bytes, got %d", n, len(rest))
	}
	return rest[:n], 4 + int(n), nil
}
