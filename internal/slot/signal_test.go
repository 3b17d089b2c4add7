package slot

import (
	"testing"

	"github.com/ocx/statefabric/internal/wire"
)

func TestSignal_Emit_SendsFrameAndIsNotStored(t *testing.T) {
	ctx, _ := newTestCtx()
	sig := NewSignal(ctx, "click", wire.Int32)

	sig.Emit(5)
	frames := drain(ctx)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	h, payload := decodeOne(t, frames[0])
	if h.Kind != wire.KindSignal {
		t.Fatalf("kind = %v, want Signal", h.Kind)
	}
	got, err := wire.Int32.Unmarshal(wire.ScalarPayload(h, payload))
	if err != nil || got != 5 {
		t.Fatalf("decoded %v, err %v, want 5", got, err)
	}
}

func TestSignal_Emit_Disconnected_Suppressed(t *testing.T) {
	ctx, _ := newTestCtx()
	ctx.Transport.Connected.Store(false)
	sig := NewSignal(ctx, "click", wire.Int32)

	sig.Emit(5)
	if frames := drain(ctx); len(frames) != 0 {
		t.Fatalf("got %d frames while disconnected, want 0", len(frames))
	}
}

func TestSignal_ApplyFromViewer_AlwaysPosts(t *testing.T) {
	ctx, _ := newTestCtx()
	sig := NewSignal(ctx, "click", wire.Int32)

	sig.applyFromViewer(wire.Header{}, wire.Int32.Marshal(3))
	p := ctx.Dispatcher.Wait()
	if p.ID != uint64(sig.ID()) || p.Value != int32(3) {
		t.Fatalf("got id=%d value=%v, want id=%d value=3", p.ID, p.Value, sig.ID())
	}
}
