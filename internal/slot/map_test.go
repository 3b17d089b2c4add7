package slot

import (
	"testing"

	"github.com/ocx/statefabric/internal/wire"
)

func TestMap_SetGetRemove(t *testing.T) {
	ctx, _ := newTestCtx()
	m := NewMap(ctx, "tags", wire.String, wire.Int32, nil)

	m.Set("a", 1)
	m.Set("b", 2)
	if got, ok := m.Get("a"); !ok || got != 1 {
		t.Fatalf("Get(a) = %v, %v, want 1, true", got, ok)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}

	m.Remove("a")
	if m.Has("a") {
		t.Fatal("Has(a) after Remove should be false")
	}
	if m.Len() != 1 {
		t.Fatalf("Len() after Remove = %d, want 1", m.Len())
	}

	frames := drain(ctx)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3 (Set, Set, Remove)", len(frames))
	}
}

func TestMap_ApplyFromViewer_RoundTripsAllOps(t *testing.T) {
	ctx, _ := newTestCtx()
	m := NewMap(ctx, "tags", wire.String, wire.Int32, nil)

	m.applyFromViewer(m.encodeAll(map[string]int32{"x": 1, "y": 2}))
	if m.Len() != 2 {
		t.Fatalf("Len() after All-apply = %d, want 2", m.Len())
	}

	m.applyFromViewer(m.encodeSet("z", 3))
	if got, ok := m.Get("z"); !ok || got != 3 {
		t.Fatalf("Get(z) after Set-apply = %v, %v, want 3, true", got, ok)
	}

	m.applyFromViewer(m.encodeRemove("x"))
	if m.Has("x") {
		t.Fatal("Has(x) after Remove-apply should be false")
	}
}

func TestMap_RemoveAbsentKey_IsNoopNotError(t *testing.T) {
	ctx, _ := newTestCtx()
	m := NewMap(ctx, "tags", wire.String, wire.Int32, nil)
	m.Remove("absent") // must not panic
	if m.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", m.Len())
	}
}

func TestMap_All_ReturnsIndependentCopy(t *testing.T) {
	ctx, _ := newTestCtx()
	m := NewMap(ctx, "tags", wire.String, wire.Int32, map[string]int32{"a": 1})
	snap := m.All()
	snap["a"] = 999
	if got, _ := m.Get("a"); got != 1 {
		t.Fatalf("mutating All()'s result affected the slot: Get(a) = %v, want 1", got)
	}
}
