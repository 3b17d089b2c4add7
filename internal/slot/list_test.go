package slot

import (
	"testing"

	"github.com/ocx/statefabric/internal/wire"
)

func TestList_AddSetRemove(t *testing.T) {
	ctx, _ := newTestCtx()
	l := NewList(ctx, "log", wire.String, nil)

	l.Add("a")
	l.Add("b")
	if got := l.All(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("All() = %v, want [a b]", got)
	}

	if err := l.Set(1, "B"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := l.All(); got[1] != "B" {
		t.Fatalf("All()[1] = %q, want %q", got[1], "B")
	}

	if err := l.Remove(0); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := l.All(); len(got) != 1 || got[0] != "B" {
		t.Fatalf("All() = %v, want [B]", got)
	}

	frames := drain(ctx)
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4 (Add, Add, Set, Remove)", len(frames))
	}
}

func TestList_Set_OutOfRangeErrors(t *testing.T) {
	ctx, _ := newTestCtx()
	l := NewList(ctx, "log", wire.String, []string{"a"})
	if err := l.Set(5, "x"); err == nil {
		t.Fatal("expected error for out-of-range Set")
	}
	if err := l.Remove(5); err == nil {
		t.Fatal("expected error for out-of-range Remove")
	}
}

func TestList_ApplyFromViewer_RoundTripsAllOps(t *testing.T) {
	ctx, _ := newTestCtx()
	l := NewList(ctx, "log", wire.Int32, nil)

	l.applyFromViewer(l.encodeAll([]int32{1, 2, 3}))
	if got := l.All(); len(got) != 3 || got[2] != 3 {
		t.Fatalf("after All-apply: %v", got)
	}

	l.applyFromViewer(l.encodeAdd(777))
	if got := l.All(); len(got) != 4 || got[3] != 777 {
		t.Fatalf("after Add-apply: %v", got)
	}

	l.applyFromViewer(l.encodeSet(0, 99))
	if got := l.All(); got[0] != 99 {
		t.Fatalf("after Set-apply: %v", got)
	}

	l.applyFromViewer(l.encodeRemove(0))
	if got := l.All(); len(got) != 3 || got[0] != 2 {
		t.Fatalf("after Remove-apply: %v", got)
	}
}

func TestList_ApplyFromViewer_OutOfRangeIsDroppedNotPanicked(t *testing.T) {
	ctx, _ := newTestCtx()
	l := NewList(ctx, "log", wire.Int32, []int32{1})

	l.applyFromViewer(l.encodeSet(99, 0))
	l.applyFromViewer(l.encodeRemove(99))
	if got := l.All(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("out-of-range viewer op mutated state: %v", got)
	}
}

func TestList_Sync_ReplaysFullContents(t *testing.T) {
	ctx, _ := newTestCtx()
	l := NewList(ctx, "log", wire.Int32, []int32{7, 8})
	l.sync()

	frames := drain(ctx)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	_, payload := decodeOne(t, frames[0])
	if payload[0] != listOpAll {
		t.Fatalf("op = %d, want listOpAll", payload[0])
	}
}
