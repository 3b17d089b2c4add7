package slot

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/wire"
)

// Numeric is the element type a Graph slot's series may hold (spec §3:
// "T ∈ {f32,f64}").
type Numeric interface {
	~float32 | ~float64
}

const (
	graphOpSet byte = iota
	graphOpAddPoints
	graphOpRemove
	graphOpClear
)

type graphSeries[T Numeric] struct {
	y []T
	x []T // nil means linear (evenly sampled)
}

// Graph is the indexed numeric series bundle slot (spec §3, §4.6).
// Grounded on original_source's Graph<T>/to_graph_data
// (egui-pytransport/src/graphs.rs): raw little-endian numeric payload,
// x-then-y ordering when both are present, a single memcpy-shaped
// append path.
type Graph[T Numeric] struct {
	id        registry.SlotID
	wid       wire.WireID
	precision wire.GraphPrecision
	ctx       Context

	mu     sync.RWMutex
	series map[uint16]*graphSeries[T]
}

// NewGraph registers a Graph slot named name.
func NewGraph[T Numeric](ctx Context, name string) *Graph[T] {
	g := &Graph[T]{ctx: ctx, series: make(map[uint16]*graphSeries[T])}
	g.precision = precisionOf[T]()
	g.id = ctx.Builder.Declare(name, wire.Hash64([]byte(fmt.Sprintf("graph:%d", g.precision))))
	g.wid = wire.ToWireID(uint64(g.id))
	ctx.Builder.RegisterUpdate(g.id, func(h wire.Header, payload []byte) {
		g.applyFromViewer(h, payload)
	})
	ctx.Builder.RegisterSync(g.sync)
	return g
}

func precisionOf[T Numeric]() wire.GraphPrecision {
	var zero T
	switch any(zero).(type) {
	case float32:
		return wire.GraphF32
	default:
		return wire.GraphF64
	}
}

// ID returns the slot's in-memory identifier.
func (g *Graph[T]) ID() registry.SlotID { return g.id }

// Get returns copies of the y (and, if present, x) series at idx.
func (g *Graph[T]) Get(idx uint16) (y []T, x []T, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, present := g.series[idx]
	if !present {
		return nil, nil, false
	}
	return append([]T(nil), s.y...), append([]T(nil), s.x...), true
}

// Set installs a new series at idx. x may be nil for a linear (evenly
// sampled) series. len(y) must be >= 2 (spec §4.6).
func (g *Graph[T]) Set(idx uint16, y, x []T) error {
	if len(y) < 2 {
		return fmt.Errorf("slot: graph %d[%d]: series needs >= 2 points, got %d", g.id, idx, len(y))
	}
	if x != nil && len(x) != len(y) {
		return fmt.Errorf("slot: graph %d[%d]: len(x)=%d != len(y)=%d", g.id, idx, len(x), len(y))
	}
	s := &graphSeries[T]{y: append([]T(nil), y...)}
	if x != nil {
		s.x = append([]T(nil), x...)
	}
	g.mu.Lock()
	g.series[idx] = s
	g.mu.Unlock()
	g.sendSeries(idx, graphOpSet, s)
	return nil
}

// AddPoints appends points to the series at idx; the new points must
// match its existing linear/xy shape (spec §4.6).
func (g *Graph[T]) AddPoints(idx uint16, yPoints, xPoints []T) error {
	g.mu.Lock()
	s, ok := g.series[idx]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("slot: graph %d[%d]: AddPoints on absent series", g.id, idx)
	}
	linear := s.x == nil
	if linear != (xPoints == nil) {
		g.mu.Unlock()
		return fmt.Errorf("slot: graph %d[%d]: AddPoints shape mismatch (linear=%v, got x=%v)", g.id, idx, linear, xPoints != nil)
	}
	if !linear && len(xPoints) != len(yPoints) {
		g.mu.Unlock()
		return fmt.Errorf("slot: graph %d[%d]: AddPoints len(x)=%d != len(y)=%d", g.id, idx, len(xPoints), len(yPoints))
	}
	s.y = append(s.y, yPoints...)
	if !linear {
		s.x = append(s.x, xPoints...)
	}
	delta := &graphSeries[T]{y: yPoints, x: xPoints}
	g.mu.Unlock()
	g.sendSeries(idx, graphOpAddPoints, delta)
	return nil
}

// Tail pushes only the last n points of the series at idx as an
// AddPoints-shaped frame, without mutating the stored series — a
// bounded incremental-catch-up replay the spec's Sync() never offers
// since Sync always replays Clear+full Set (SPEC_FULL.md "Graph partial
// readback", grounded on original_source's Graph::to_graph_data taking
// an optional point-count bound).
func (g *Graph[T]) Tail(idx uint16, n int) error {
	g.mu.RLock()
	s, ok := g.series[idx]
	if !ok {
		g.mu.RUnlock()
		return fmt.Errorf("slot: graph %d[%d]: Tail on absent series", g.id, idx)
	}
	total := len(s.y)
	if n > total {
		n = total
	}
	start := total - n
	tail := &graphSeries[T]{y: append([]T(nil), s.y[start:]...)}
	if s.x != nil {
		tail.x = append([]T(nil), s.x[start:]...)
	}
	g.mu.RUnlock()

	g.sendSeries(idx, graphOpAddPoints, tail)
	return nil
}

// Remove deletes the series at idx.
func (g *Graph[T]) Remove(idx uint16) {
	g.mu.Lock()
	delete(g.series, idx)
	g.mu.Unlock()
	g.send(wire.Header{GraphIndex: idx, GraphOp: graphOpRemove}, nil)
}

// Clear removes every series.
func (g *Graph[T]) Clear() {
	g.mu.Lock()
	g.series = make(map[uint16]*graphSeries[T])
	g.mu.Unlock()
	g.send(wire.Header{GraphOp: graphOpClear}, nil)
}

// sendSeries pushes a Set/AddPoints frame. Every piece of metadata — the
// operation, the target index, the linear/xy shape, and the point count
// — lives in the header's kind-specific fields; the payload is nothing
// but the raw little-endian numeric run (x then y, when x is present), a
// single memcpy-shaped encode matching spec §4.6's "no per-value
// tagging" wire layout.
func (g *Graph[T]) sendSeries(idx uint16, op byte, s *graphSeries[T]) {
	var payload []byte
	if s.x != nil {
		payload = appendNumeric(payload, s.x)
	}
	payload = appendNumeric(payload, s.y)
	g.send(wire.Header{
		GraphIndex:  idx,
		GraphLinear: s.x == nil,
		PointCount:  uint32(len(s.y)),
		GraphOp:     op,
	}, payload)
}

func (g *Graph[T]) send(h wire.Header, payload []byte) {
	if !g.ctx.connected() {
		return
	}
	h.Kind, h.ID, h.GraphPrecision = wire.KindGraph, g.wid, g.precision
	g.ctx.send(wire.EncodeFrame(h, payload))
}

// sync replays Clear then one Set per present index, in index order
// (spec §4.6: "emit Clear then one Set per present index").
func (g *Graph[T]) sync() {
	g.mu.RLock()
	indices := make([]uint16, 0, len(g.series))
	copies := make(map[uint16]*graphSeries[T], len(g.series))
	for idx, s := range g.series {
		indices = append(indices, idx)
		copies[idx] = &graphSeries[T]{y: append([]T(nil), s.y...), x: append([]T(nil), s.x...)}
	}
	g.mu.RUnlock()

	g.send(wire.Header{GraphOp: graphOpClear}, nil)
	for _, idx := range sortUint16(indices) {
		g.sendSeries(idx, graphOpSet, copies[idx])
	}
}

func sortUint16(s []uint16) []uint16 {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
	return s
}

func appendNumeric[T Numeric](dst []byte, vals []T) []byte {
	for _, v := range vals {
		switch x := any(v).(type) {
		case float32:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(x))
			dst = append(dst, b[:]...)
		case float64:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(x))
			dst = append(dst, b[:]...)
		}
	}
	return dst
}

func readNumeric[T Numeric](b []byte, n int) ([]T, error) {
	size := precisionOf[T]().Size()
	if len(b) < size*n {
		return nil, fmt.Errorf("need %d bytes, got %d", size*n, len(b))
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		off := i * size
		switch size {
		case 4:
			f := math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
			out[i] = T(f)
		case 8:
			f := math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
			out[i] = T(f)
		}
	}
	return out, nil
}

// applyFromViewer decodes a viewer-originated Graph frame. The operation,
// target index, linear/xy shape, and point count all come from the
// header's kind-specific fields; payload is nothing but the raw
// little-endian numeric run (spec §4.6, §4.1).
func (g *Graph[T]) applyFromViewer(h wire.Header, payload []byte) {
	idx := h.GraphIndex
	switch h.GraphOp {
	case graphOpClear:
		g.mu.Lock()
		g.series = make(map[uint16]*graphSeries[T])
		g.mu.Unlock()
	case graphOpRemove:
		g.mu.Lock()
		delete(g.series, idx)
		g.mu.Unlock()
	case graphOpSet, graphOpAddPoints:
		count := int(h.PointCount)
		rest := payload
		var xs []T
		var err error
		if !h.GraphLinear {
			xs, err = readNumeric[T](rest, count)
			if err != nil {
				g.logf("malformed x series: %v", err)
				return
			}
			rest = rest[len(xs)*g.precision.Size():]
		}
		ys, err := readNumeric[T](rest, count)
		if err != nil {
			g.logf("malformed y series: %v", err)
			return
		}

		g.mu.Lock()
		if h.GraphOp == graphOpSet {
			if len(ys) < 2 {
				g.mu.Unlock()
				g.logf("viewer Set series needs >= 2 points, dropped")
				return
			}
			g.series[idx] = &graphSeries[T]{y: ys, x: xs}
		} else {
			s, ok := g.series[idx]
			if !ok {
				g.mu.Unlock()
				g.logf("viewer AddPoints on absent series %d, dropped", idx)
				return
			}
			if (s.x == nil) != h.GraphLinear {
				g.mu.Unlock()
				g.logf("viewer AddPoints shape mismatch on series %d, dropped", idx)
				return
			}
			s.y = append(s.y, ys...)
			if !h.GraphLinear {
				s.x = append(s.x, xs...)
			}
		}
		g.mu.Unlock()
	default:
		g.logf("unknown graph op %d", h.GraphOp)
	}
}

func (g *Graph[T]) logf(format string, args ...any) {
	if g.ctx.Dispatcher != nil {
		g.ctx.Dispatcher.Warningf("graph %d: "+format, append([]any{g.id}, args...)...)
	}
}
