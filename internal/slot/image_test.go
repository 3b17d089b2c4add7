package slot

import (
	"testing"

	"github.com/ocx/statefabric/internal/wire"
)

func TestImage_SetFull_GrayCanonicalizesToColorAlpha(t *testing.T) {
	ctx, _ := newTestCtx()
	img := NewImage(ctx, "frame", 1, 2)

	if err := img.SetFull(wire.ImageGray, []byte{10, 20}, 1, 2); err != nil {
		t.Fatalf("SetFull: %v", err)
	}
	px := img.Pixels()
	if len(px) != 4*1*2 {
		t.Fatalf("len(Pixels()) = %d, want %d", len(px), 4*1*2)
	}
	want := []byte{10, 10, 10, 255, 20, 20, 20, 255}
	for i := range want {
		if px[i] != want[i] {
			t.Fatalf("Pixels() = %v, want %v", px, want)
		}
	}
}

func TestImage_SetFull_GrayAlphaPreservesAlpha(t *testing.T) {
	ctx, _ := newTestCtx()
	img := NewImage(ctx, "frame", 1, 1)
	if err := img.SetFull(wire.ImageGrayAlpha, []byte{50, 128}, 1, 1); err != nil {
		t.Fatalf("SetFull: %v", err)
	}
	px := img.Pixels()
	want := []byte{50, 50, 50, 128}
	for i := range want {
		if px[i] != want[i] {
			t.Fatalf("Pixels() = %v, want %v", px, want)
		}
	}
}

func TestImage_SetFull_WrongBufferLength_Errors(t *testing.T) {
	ctx, _ := newTestCtx()
	img := NewImage(ctx, "frame", 2, 2)
	if err := img.SetFull(wire.ImageGray, []byte{1, 2, 3}, 2, 2); err == nil {
		t.Fatal("expected error for mismatched buffer length")
	}
}

func TestImage_SetSubRect_BlitsIntoCanonicalBuffer(t *testing.T) {
	ctx, _ := newTestCtx()
	img := NewImage(ctx, "frame", 2, 2) // h=2, w=2, starts transparent black

	// overwrite the bottom-right pixel only
	if err := img.SetSubRect(wire.ImageColorAlpha, []byte{9, 9, 9, 9}, 1, 1, 1, 1); err != nil {
		t.Fatalf("SetSubRect: %v", err)
	}
	px := img.Pixels()
	// pixel (row=1,col=1) is at offset 4*(1*2+1) = 12
	got := px[12:16]
	want := []byte{9, 9, 9, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("blitted pixel = %v, want %v", got, want)
		}
	}
	// pixel (0,0) must be untouched (still transparent black)
	if px[0] != 0 || px[3] != 0 {
		t.Fatalf("pixel (0,0) was touched by sub-rect write: %v", px[0:4])
	}
}

func TestImage_SetSubRect_OutOfBounds_Errors(t *testing.T) {
	ctx, _ := newTestCtx()
	img := NewImage(ctx, "frame", 2, 2)
	if err := img.SetSubRect(wire.ImageColorAlpha, []byte{1, 1, 1, 1}, 1, 1, 2, 2); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestImage_Sync_SkipsZeroSizeImage(t *testing.T) {
	ctx, _ := newTestCtx()
	img := NewImage(ctx, "frame", 0, 0)
	img.sync()
	if frames := drain(ctx); len(frames) != 0 {
		t.Fatalf("got %d frames for a zero-size image, want 0", len(frames))
	}
}

func TestImage_Sync_ReplaysFullColorAlphaFrame(t *testing.T) {
	ctx, _ := newTestCtx()
	img := NewImage(ctx, "frame", 1, 1)
	img.SetFull(wire.ImageColorAlpha, []byte{1, 2, 3, 4}, 1, 1)
	drain(ctx) // discard the SetFull frame

	img.sync()
	frames := drain(ctx)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	h, payload := decodeOne(t, frames[0])
	if h.ImageType != wire.ImageColorAlpha || h.Height != 1 || h.Width != 1 {
		t.Fatalf("header = %+v, want ColorAlpha 1x1", h)
	}
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if payload[i] != want[i] {
			t.Fatalf("payload = %v, want %v", payload, want)
		}
	}
}

func TestImage_ApplyFromViewer_AppliesAndAcks(t *testing.T) {
	ctx, _ := newTestCtx()
	img := NewImage(ctx, "frame", 1, 1)

	img.applyFromViewer(wire.Header{ImageType: wire.ImageColorAlpha, Height: 1, Width: 1}, []byte{7, 7, 7, 7})

	px := img.Pixels()
	want := []byte{7, 7, 7, 7}
	for i := range want {
		if px[i] != want[i] {
			t.Fatalf("Pixels() = %v, want %v", px, want)
		}
	}
	frames := drain(ctx)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 (the ack)", len(frames))
	}
	h, _ := decodeOne(t, frames[0])
	if h.Kind != wire.KindControl || h.ControlSubtype != wire.ControlAck {
		t.Fatalf("frame = %+v, want a Control/Ack frame", h)
	}
}
