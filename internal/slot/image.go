package slot

import (
	"fmt"
	"sync"

	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/wire"
)

// Image is the sub-rectangle-capable pixel buffer slot (spec §3, §4.5).
// The stored buffer is always canonical ColorAlpha (4 bytes/pixel); the
// wire frame preserves whatever channel layout the caller supplied.
type Image struct {
	id  registry.SlotID
	wid wire.WireID
	ctx Context

	mu            sync.RWMutex
	pixels        []byte // canonical ColorAlpha, len == 4*h*w
	height, width uint16
}

// NewImage registers an Image slot named name, sized h by w, initialised
// to transparent black.
func NewImage(ctx Context, name string, h, w uint16) *Image {
	img := &Image{ctx: ctx, height: h, width: w, pixels: make([]byte, 4*int(h)*int(w))}
	img.id = ctx.Builder.Declare(name, wire.Hash64([]byte("image")))
	img.wid = wire.ToWireID(uint64(img.id))
	ctx.Builder.RegisterUpdate(img.id, func(h wire.Header, payload []byte) {
		img.applyFromViewer(h, payload)
	})
	ctx.Builder.RegisterAck(img.id, registry.AckFuncs{
		Acknowledge:   func() {},
		ResetInFlight: func() {},
	})
	ctx.Builder.RegisterSync(img.sync)
	return img
}

// ID returns the slot's in-memory identifier.
func (img *Image) ID() registry.SlotID { return img.id }

// Size returns the current canonical dimensions.
func (img *Image) Size() (h, w uint16) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.height, img.width
}

// Pixels returns a copy of the canonical ColorAlpha buffer.
func (img *Image) Pixels() []byte {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return append([]byte(nil), img.pixels...)
}

// SetFull replaces the entire image from a buffer in the given source
// layout, resizing the canonical buffer to h by w, and pushes the frame
// to the viewer (spec §4.5).
func (img *Image) SetFull(t wire.ImageType, data []byte, h, w uint16) error {
	if err := img.applyFull(t, data, h, w); err != nil {
		return err
	}
	img.sendFrame(t, data, h, w, false, 0, 0, 0, 0)
	return nil
}

// SetSubRect writes a rectangular region at (originY, originX), hard-
// failing on out-of-bounds, and pushes the frame to the viewer (spec
// §4.5, §4.10).
func (img *Image) SetSubRect(t wire.ImageType, data []byte, originY, originX, subH, subW uint16) error {
	if err := img.applySubRect(t, data, originY, originX, subH, subW); err != nil {
		return err
	}
	img.sendFrame(t, data, subH, subW, true, originY, originX, subH, subW)
	return nil
}

// applyFull stores a full-replace write without sending anything — used
// both by SetFull and by applyFromViewer, which must apply a viewer's
// write without echoing it straight back (spec §4.2's "store but don't
// re-send" pattern, generalized from Value).
func (img *Image) applyFull(t wire.ImageType, data []byte, h, w uint16) error {
	bpp := t.BytesPerPixel()
	want := bpp * int(h) * int(w)
	if len(data) != want {
		return fmt.Errorf("slot: image %d: buffer length %d does not match %dx%d at %d bytes/pixel", img.id, len(data), h, w, bpp)
	}
	canon := canonicalize(t, data)

	img.mu.Lock()
	img.height, img.width = h, w
	img.pixels = canon
	img.mu.Unlock()
	return nil
}

// applySubRect stores a sub-rectangle write without sending anything.
func (img *Image) applySubRect(t wire.ImageType, data []byte, originY, originX, subH, subW uint16) error {
	img.mu.RLock()
	height, width := img.height, img.width
	img.mu.RUnlock()

	if int(originY)+int(subH) > int(height) || int(originX)+int(subW) > int(width) {
		return fmt.Errorf("slot: image %d: sub-rect [%d,%d]+[%d,%d] out of bounds for [%d,%d]",
			img.id, originY, originX, subH, subW, height, width)
	}
	bpp := t.BytesPerPixel()
	if len(data) != bpp*int(subH)*int(subW) {
		return fmt.Errorf("slot: image %d: sub-rect buffer length %d does not match %dx%d at %d bytes/pixel",
			img.id, len(data), subH, subW, bpp)
	}
	canon := canonicalize(t, data)

	img.mu.Lock()
	blitColorAlpha(img.pixels, int(img.width), canon, int(subW), int(subH), int(originY), int(originX))
	img.mu.Unlock()
	return nil
}

func (img *Image) sendFrame(t wire.ImageType, data []byte, h, w uint16, sub bool, y, x, subH, subW uint16) {
	if !img.ctx.connected() {
		return
	}
	hdr := wire.Header{
		Kind: wire.KindImage, ID: img.wid,
		ImageType: t, Height: h, Width: w,
	}
	if sub {
		hdr.HasSubRect = true
		hdr.SubY, hdr.SubX, hdr.SubH, hdr.SubW = y, x, subH, subW
	}
	img.ctx.send(wire.EncodeFrame(hdr, data))
}

// sync replays a full ColorAlpha frame if the image has non-zero size
// (spec §4.5).
func (img *Image) sync() {
	img.mu.RLock()
	h, w := img.height, img.width
	pixels := append([]byte(nil), img.pixels...)
	img.mu.RUnlock()
	if h == 0 || w == 0 {
		return
	}
	img.ctx.send(wire.EncodeFrame(wire.Header{
		Kind: wire.KindImage, ID: img.wid,
		ImageType: wire.ImageColorAlpha, Height: h, Width: w,
	}, pixels))
}

func (img *Image) applyFromViewer(h wire.Header, payload []byte) {
	bpp := h.ImageType.BytesPerPixel()
	if bpp == 0 {
		img.logf("unknown image type %d", h.ImageType)
		return
	}
	if h.HasSubRect {
		if err := img.applySubRect(h.ImageType, payload, h.SubY, h.SubX, h.SubH, h.SubW); err != nil {
			img.logf("%v", err)
		}
	} else {
		if err := img.applyFull(h.ImageType, payload, h.Height, h.Width); err != nil {
			img.logf("%v", err)
		}
	}
	img.ctx.send(wire.EncodeFrame(wire.Header{Kind: wire.KindControl, ControlSubtype: wire.ControlAck, AckTarget: uint32(img.wid)}, nil))
}

func (img *Image) logf(format string, args ...any) {
	if img.ctx.Dispatcher != nil {
		img.ctx.Dispatcher.Errorf("image %d: "+format, append([]any{img.id}, args...)...)
	}
}

// canonicalize expands a source-layout pixel buffer into ColorAlpha
// (spec §4.5: gray -> replicated RGB with alpha 255; gray-alpha ->
// replicated RGB with supplied alpha; color -> RGB with alpha 255;
// color-alpha -> copied unchanged).
func canonicalize(t wire.ImageType, data []byte) []byte {
	bpp := t.BytesPerPixel()
	n := len(data) / bpp
	out := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		o := out[4*i : 4*i+4]
		switch t {
		case wire.ImageGray:
			g := data[i]
			o[0], o[1], o[2], o[3] = g, g, g, 255
		case wire.ImageGrayAlpha:
			g, a := data[2*i], data[2*i+1]
			o[0], o[1], o[2], o[3] = g, g, g, a
		case wire.ImageColor:
			copy(o[:3], data[3*i:3*i+3])
			o[3] = 255
		case wire.ImageColorAlpha:
			copy(o, data[4*i:4*i+4])
		}
	}
	return out
}

// blitColorAlpha copies a subH x subW ColorAlpha block into dst (stride
// dstWidth pixels) at row/col origin.
func blitColorAlpha(dst []byte, dstWidth int, src []byte, subW, subH, originY, originX int) {
	for row := 0; row < subH; row++ {
		dstOff := 4 * ((originY+row)*dstWidth + originX)
		srcOff := 4 * row * subW
		copy(dst[dstOff:dstOff+4*subW], src[srcOff:srcOff+4*subW])
	}
}
