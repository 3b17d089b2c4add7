package slot

import (
	"testing"

	"github.com/ocx/statefabric/internal/wire"
)

func TestStatic_SetPushesFrameWhenConnected(t *testing.T) {
	ctx, _ := newTestCtx()
	s := NewStatic(ctx, "build_info", wire.String, "v0")

	s.Set("v1", false)
	if s.Get() != "v1" {
		t.Fatalf("Get() = %q, want %q", s.Get(), "v1")
	}
	frames := drain(ctx)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	h, payload := decodeOne(t, frames[0])
	if h.Kind != wire.KindStatic {
		t.Fatalf("kind = %v, want Static", h.Kind)
	}
	got, err := wire.String.Unmarshal(wire.ScalarPayload(h, payload))
	if err != nil || got != "v1" {
		t.Fatalf("decoded %q, err %v, want %q", got, err, "v1")
	}
}

func TestStatic_SetWhileDisconnected_StoresButDoesNotSend(t *testing.T) {
	ctx, _ := newTestCtx()
	ctx.Transport.Connected.Store(false)
	s := NewStatic(ctx, "build_info", wire.String, "v0")

	s.Set("v1", false)
	if s.Get() != "v1" {
		t.Fatalf("Get() = %q, want %q", s.Get(), "v1")
	}
	if frames := drain(ctx); len(frames) != 0 {
		t.Fatalf("got %d frames while disconnected, want 0", len(frames))
	}
}

func TestStatic_Sync_ReplaysCurrentValue(t *testing.T) {
	ctx, _ := newTestCtx()
	s := NewStatic(ctx, "build_info", wire.String, "v7")
	s.sync()

	frames := drain(ctx)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	h, payload := decodeOne(t, frames[0])
	got, err := wire.String.Unmarshal(wire.ScalarPayload(h, payload))
	if err != nil || got != "v7" {
		t.Fatalf("decoded %q, err %v, want %q", got, err, "v7")
	}
}
