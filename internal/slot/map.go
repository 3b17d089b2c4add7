package slot

import (
	"sync"

	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/wire"
)

// map operation tags, same length-prefixed element convention as List
// (spec §4.1, §4.4).
const (
	mapOpAll byte = iota
	mapOpSet
	mapOpRemove
)

// Map is the keyed collection slot M<K,V> (spec §3, §4.4). K must be
// comparable to back a Go map.
type Map[K comparable, V any] struct {
	id        registry.SlotID
	wid       wire.WireID
	keyCodec  wire.Codec[K]
	valCodec  wire.Codec[V]
	ctx       Context

	mu    sync.RWMutex
	items map[K]V
}

// NewMap registers a Map slot named name.
func NewMap[K comparable, V any](ctx Context, name string, keyCodec wire.Codec[K], valCodec wire.Codec[V], initial map[K]V) *Map[K, V] {
	m := &Map[K, V]{
		keyCodec: keyCodec,
		valCodec: valCodec,
		ctx:      ctx,
		items:    cloneMap(initial),
	}
	m.id = ctx.Builder.Declare(name, mix(keyCodec.TypeHash(), valCodec.TypeHash()))
	m.wid = wire.ToWireID(uint64(m.id))
	ctx.Builder.RegisterUpdate(m.id, func(h wire.Header, payload []byte) {
		m.applyFromViewer(payload)
	})
	ctx.Builder.RegisterSync(m.sync)
	return m
}

func mix(a, b uint64) uint64 { return a*1099511628211 ^ b }

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	out := make(map[K]V, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// ID returns the slot's in-memory identifier.
func (m *Map[K, V]) ID() registry.SlotID { return m.id }

// Len reports the current entry count.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[key]
	return ok
}

// Get returns the value at key and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

// All returns a copy of the current contents.
func (m *Map[K, V]) All() map[K]V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneMap(m.items)
}

// Set inserts or overwrites key and pushes a Set delta.
func (m *Map[K, V]) Set(key K, value V) {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
	m.send(m.encodeSet(key, value))
}

// Remove deletes key, if present, and pushes a Remove delta regardless
// (the peer treats removing an absent key as a no-op).
func (m *Map[K, V]) Remove(key K) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	m.send(m.encodeRemove(key))
}

func (m *Map[K, V]) send(payload []byte) {
	if !m.ctx.connected() {
		return
	}
	m.ctx.send(wire.EncodeFrame(wire.Header{Kind: wire.KindMap, ID: m.wid}, payload))
}

func (m *Map[K, V]) sync() {
	m.mu.RLock()
	snapshot := cloneMap(m.items)
	m.mu.RUnlock()
	m.ctx.send(wire.EncodeFrame(wire.Header{Kind: wire.KindMap, ID: m.wid}, m.encodeAll(snapshot)))
}

func (m *Map[K, V]) encodeAll(items map[K]V) []byte {
	out := []byte{mapOpAll}
	out = appendUint32(out, uint32(len(items)))
	for k, v := range items {
		out = appendLenPrefixed(out, m.keyCodec.Marshal(k))
		out = appendLenPrefixed(out, m.valCodec.Marshal(v))
	}
	return out
}

func (m *Map[K, V]) encodeSet(key K, value V) []byte {
	out := []byte{mapOpSet}
	out = appendLenPrefixed(out, m.keyCodec.Marshal(key))
	return appendLenPrefixed(out, m.valCodec.Marshal(value))
}

func (m *Map[K, V]) encodeRemove(key K) []byte {
	out := []byte{mapOpRemove}
	return appendLenPrefixed(out, m.keyCodec.Marshal(key))
}

func (m *Map[K, V]) applyFromViewer(payload []byte) {
	if len(payload) < 1 {
		m.logf("empty map frame")
		return
	}
	op, body := payload[0], payload[1:]
	switch op {
	case mapOpAll:
		count, rest, err := readUint32(body)
		if err != nil {
			m.logf("malformed All frame: %v", err)
			return
		}
		items := make(map[K]V, count)
		for i := uint32(0); i < count; i++ {
			kb, n, err := readLenPrefixed(rest)
			if err != nil {
				m.logf("malformed All key %d: %v", i, err)
				return
			}
			rest = rest[n:]
			vb, n, err := readLenPrefixed(rest)
			if err != nil {
				m.logf("malformed All value %d: %v", i, err)
				return
			}
			rest = rest[n:]
			k, err := m.keyCodec.Unmarshal(kb)
			if err != nil {
				m.logf("malformed All key %d: %v", i, err)
				return
			}
			v, err := m.valCodec.Unmarshal(vb)
			if err != nil {
				m.logf("malformed All value %d: %v", i, err)
				return
			}
			items[k] = v
		}
		m.mu.Lock()
		m.items = items
		m.mu.Unlock()
	case mapOpSet:
		kb, n, err := readLenPrefixed(body)
		if err != nil {
			m.logf("malformed Set frame: %v", err)
			return
		}
		vb, _, err := readLenPrefixed(body[n:])
		if err != nil {
			m.logf("malformed Set frame: %v", err)
			return
		}
		k, err := m.keyCodec.Unmarshal(kb)
		if err != nil {
			m.logf("malformed Set key: %v", err)
			return
		}
		v, err := m.valCodec.Unmarshal(vb)
		if err != nil {
			m.logf("malformed Set value: %v", err)
			return
		}
		m.mu.Lock()
		m.items[k] = v
		m.mu.Unlock()
	case mapOpRemove:
		kb, _, err := readLenPrefixed(body)
		if err != nil {
			m.logf("malformed Remove frame: %v", err)
			return
		}
		k, err := m.keyCodec.Unmarshal(kb)
		if err != nil {
			m.logf("malformed Remove key: %v", err)
			return
		}
		m.mu.Lock()
		delete(m.items, k)
		m.mu.Unlock()
	default:
		m.logf("unknown map op %d", op)
	}
}

func (m *Map[K, V]) logf(format string, args ...any) {
	if m.ctx.Dispatcher != nil {
		m.ctx.Dispatcher.Warningf("map %d: "+format, append([]any{m.id}, args...)...)
	}
}
