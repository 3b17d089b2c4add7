// Package wire implements the binary framing used between a fabric driver
// and its viewer: a fixed 32-byte header optionally followed by a payload,
// carried one-per-message over a WebSocket binary frame.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HeaderSize is the fixed header length every frame begins with, matching
// the teacher's fixed-prefix binary header convention in its own protocol
// package.
const HeaderSize = 32

// Kind identifies the payload carried by a frame. It occupies the low
// nibble of header byte 0.
type Kind byte

const (
	KindValue Kind = iota
	KindStatic
	KindSignal
	KindImage
	KindList
	KindMap
	KindGraph
	KindControl
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "Value"
	case KindStatic:
		return "Static"
	case KindSignal:
		return "Signal"
	case KindImage:
		return "Image"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindGraph:
		return "Graph"
	case KindControl:
		return "Control"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// flag bits within header byte 0, above the 4-bit Kind nibble.
const (
	flagHasPayload byte = 1 << 7
	flagUpdateHint byte = 1 << 6
	kindMask       byte = 0x0f
)

// ControlSubtype identifies the kind of a Control frame.
type ControlSubtype byte

const (
	ControlError ControlSubtype = iota
	ControlAck
	ControlHandshake
	ControlUpdate
)

// ImageType identifies the channel layout of an Image frame's pixel data,
// preserved on the wire even though every in-memory image is canonicalised
// to ColorAlpha for display (spec §4.5).
type ImageType byte

const (
	ImageGray ImageType = iota
	ImageGrayAlpha
	ImageColor
	ImageColorAlpha
)

// BytesPerPixel returns the source channel count for t, as opposed to the
// always-4 canonical ColorAlpha representation.
func (t ImageType) BytesPerPixel() int {
	switch t {
	case ImageGray:
		return 1
	case ImageGrayAlpha:
		return 2
	case ImageColor:
		return 3
	case ImageColorAlpha:
		return 4
	default:
		return 0
	}
}

// GraphPrecision selects the numeric element width of a Graph frame's
// payload.
type GraphPrecision byte

const (
	GraphF32 GraphPrecision = iota
	GraphF64
)

// Size returns the byte width of one sample at this precision.
func (p GraphPrecision) Size() int {
	if p == GraphF64 {
		return 8
	}
	return 4
}

// WireID is the 24-bit truncated slot identifier carried on the wire.
// Control frames ignore this field (spec §4.1).
type WireID uint32

const WireIDMask WireID = 0x00ffffff

// Header is the decoded, fixed 32-byte frame prefix. Only the fields
// relevant to Kind are meaningful; callers must consult Kind before
// reading kind-specific fields.
type Header struct {
	Kind       Kind
	HasPayload bool
	UpdateHint bool
	ID         WireID

	// Value / Static / Signal: small values are carried inline rather
	// than via payload.
	InlineLen byte
	Inline    [16]byte

	// Image
	ImageType      ImageType
	Height, Width  uint16
	HasSubRect     bool
	SubY, SubX     uint16
	SubH, SubW     uint16

	// Graph
	GraphPrecision GraphPrecision
	GraphLinear    bool
	GraphIndex     uint16
	PointCount     uint32
	GraphOp        byte

	// Control
	ControlSubtype    ControlSubtype
	AckTarget         uint32
	HandshakeVersion  uint64
	HandshakeCookie   uint64
	UpdateSeconds     float32

	// PayloadLen is valid whenever HasPayload is set; it is the exact
	// number of payload bytes that follow the header on the wire.
	PayloadLen uint32
}

// kind-specific field region: header[4:28], 24 bytes.
const (
	fieldOff = 4
	fieldLen = 24
)

// EncodeHeader writes h into a HeaderSize-byte buffer, allocating it.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	b0 := byte(h.Kind) & kindMask
	if h.HasPayload {
		b0 |= flagHasPayload
	}
	if h.UpdateHint {
		b0 |= flagUpdateHint
	}
	buf[0] = b0

	if h.Kind != KindControl {
		id := uint32(h.ID) & uint32(WireIDMask)
		buf[1] = byte(id)
		buf[2] = byte(id >> 8)
		buf[3] = byte(id >> 16)
	}

	f := buf[fieldOff : fieldOff+fieldLen]
	switch h.Kind {
	case KindValue, KindStatic, KindSignal:
		f[0] = h.InlineLen
		copy(f[1:], h.Inline[:])
	case KindImage:
		f[0] = byte(h.ImageType)
		binary.LittleEndian.PutUint16(f[1:], h.Height)
		binary.LittleEndian.PutUint16(f[3:], h.Width)
		if h.HasSubRect {
			f[5] = 1
			binary.LittleEndian.PutUint16(f[6:], h.SubY)
			binary.LittleEndian.PutUint16(f[8:], h.SubX)
			binary.LittleEndian.PutUint16(f[10:], h.SubH)
			binary.LittleEndian.PutUint16(f[12:], h.SubW)
		}
	case KindGraph:
		f[0] = byte(h.GraphPrecision)
		if h.GraphLinear {
			f[1] = 1
		}
		binary.LittleEndian.PutUint16(f[2:], h.GraphIndex)
		binary.LittleEndian.PutUint32(f[4:], h.PointCount)
		f[8] = h.GraphOp
	case KindList, KindMap:
		// operation tag and any index live in the payload's first
		// bytes (spec §4.1); no kind-specific header fields.
	case KindControl:
		f[0] = byte(h.ControlSubtype)
		switch h.ControlSubtype {
		case ControlAck:
			binary.LittleEndian.PutUint32(f[1:], h.AckTarget)
		case ControlHandshake:
			binary.LittleEndian.PutUint64(f[1:], h.HandshakeVersion)
			binary.LittleEndian.PutUint64(f[9:], h.HandshakeCookie)
		case ControlUpdate:
			binary.LittleEndian.PutUint32(f[1:], math.Float32bits(h.UpdateSeconds))
		case ControlError:
			// length carried in the trailing payload-length field.
		}
	}

	if h.HasPayload {
		binary.LittleEndian.PutUint32(buf[HeaderSize-4:], h.PayloadLen)
	}
	return buf
}

// DecodeHeader parses the first HeaderSize bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short header: got %d bytes, want %d", len(buf), HeaderSize)
	}
	var h Header
	b0 := buf[0]
	h.Kind = Kind(b0 & kindMask)
	h.HasPayload = b0&flagHasPayload != 0
	h.UpdateHint = b0&flagUpdateHint != 0

	if h.Kind != KindControl {
		h.ID = WireID(uint32(buf[1]) | uint32(buf[2])<<8 | uint32(buf[3])<<16)
	}

	f := buf[fieldOff : fieldOff+fieldLen]
	switch h.Kind {
	case KindValue, KindStatic, KindSignal:
		h.InlineLen = f[0]
		copy(h.Inline[:], f[1:17])
	case KindImage:
		h.ImageType = ImageType(f[0])
		h.Height = binary.LittleEndian.Uint16(f[1:])
		h.Width = binary.LittleEndian.Uint16(f[3:])
		if f[5] != 0 {
			h.HasSubRect = true
			h.SubY = binary.LittleEndian.Uint16(f[6:])
			h.SubX = binary.LittleEndian.Uint16(f[8:])
			h.SubH = binary.LittleEndian.Uint16(f[10:])
			h.SubW = binary.LittleEndian.Uint16(f[12:])
		}
	case KindGraph:
		h.GraphPrecision = GraphPrecision(f[0])
		h.GraphLinear = f[1] != 0
		h.GraphIndex = binary.LittleEndian.Uint16(f[2:])
		h.PointCount = binary.LittleEndian.Uint32(f[4:])
		h.GraphOp = f[8]
	case KindList, KindMap:
	case KindControl:
		h.ControlSubtype = ControlSubtype(f[0])
		switch h.ControlSubtype {
		case ControlAck:
			h.AckTarget = binary.LittleEndian.Uint32(f[1:])
		case ControlHandshake:
			h.HandshakeVersion = binary.LittleEndian.Uint64(f[1:])
			h.HandshakeCookie = binary.LittleEndian.Uint64(f[9:])
		case ControlUpdate:
			h.UpdateSeconds = math.Float32frombits(binary.LittleEndian.Uint32(f[1:]))
		}
	default:
		return Header{}, fmt.Errorf("wire: unknown frame kind %d", b0&kindMask)
	}

	if h.HasPayload {
		h.PayloadLen = binary.LittleEndian.Uint32(buf[HeaderSize-4:])
	}
	return h, nil
}

// EncodeFrame concatenates an encoded header with payload, ready to send
// as one WebSocket binary message.
func EncodeFrame(h Header, payload []byte) []byte {
	h.HasPayload = len(payload) > 0
	h.PayloadLen = uint32(len(payload))
	out := EncodeHeader(h)
	return append(out, payload...)
}

// DecodeFrame splits a full WebSocket message into its header and payload
// slice (payload aliases msg, no copy).
func DecodeFrame(msg []byte) (Header, []byte, error) {
	h, err := DecodeHeader(msg)
	if err != nil {
		return Header{}, nil, err
	}
	if !h.HasPayload {
		return h, nil, nil
	}
	rest := msg[HeaderSize:]
	if uint32(len(rest)) < h.PayloadLen {
		return Header{}, nil, fmt.Errorf("wire: short payload: got %d bytes, want %d", len(rest), h.PayloadLen)
	}
	return h, rest[:h.PayloadLen], nil
}
