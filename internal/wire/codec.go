package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Codec is the serialization contract every slot payload type satisfies:
// fixed or variable-length byte encoding plus a stable type hash, which
// registry.TreeHash folds into a schema fingerprint; the handshake does not
// exchange it (spec §3). This module hand-writes
// codecs instead of deriving them by reflection — build-time code
// generation for bindings is explicitly out of scope (spec §1), and a
// generic implementation is the idiomatic Go substitute for the source's
// derive-macro leaves.
type Codec[T any] interface {
	Marshal(v T) []byte
	Unmarshal(b []byte) (T, error)
	TypeHash() uint64
}

// AppendMarshaler is implemented by codecs that can encode into a caller-
// supplied buffer to avoid an allocation per call. The numeric codecs
// implement it; the slot types encode through Codec.Marshal.
type AppendMarshaler[T any] interface {
	AppendMarshal(dst []byte, v T) []byte
}

func typeHash(tag string) uint64 {
	return Hash64([]byte(tag))
}

type boolCodec struct{}

func (boolCodec) Marshal(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}
func (boolCodec) Unmarshal(b []byte) (bool, error) {
	if len(b) < 1 {
		return false, fmt.Errorf("wire: bool: empty buffer")
	}
	return b[0] != 0, nil
}
func (boolCodec) TypeHash() uint64 { return typeHash("bool") }

// Bool is the Codec for a plain boolean leaf.
var Bool Codec[bool] = boolCodec{}

type stringCodec struct{}

func (stringCodec) Marshal(v string) []byte { return []byte(v) }
func (stringCodec) Unmarshal(b []byte) (string, error) {
	return string(b), nil
}
func (stringCodec) TypeHash() uint64 { return typeHash("string") }

// String is the Codec for a UTF-8 string leaf; the wire length is implied
// by the frame's payload length, not a further prefix.
var String Codec[string] = stringCodec{}

type unitCodec struct{}

func (unitCodec) Marshal(struct{}) []byte                  { return nil }
func (unitCodec) Unmarshal([]byte) (struct{}, error)       { return struct{}{}, nil }
func (unitCodec) TypeHash() uint64                         { return typeHash("unit") }

// Unit is the Codec for the empty/unit leaf.
var Unit Codec[struct{}] = unitCodec{}

// numeric leaves ---------------------------------------------------------

type numCodec[T any] struct {
	tag    string
	size   int
	put    func([]byte, T)
	get    func([]byte) T
}

func (c numCodec[T]) Marshal(v T) []byte {
	b := make([]byte, c.size)
	c.put(b, v)
	return b
}
func (c numCodec[T]) AppendMarshal(dst []byte, v T) []byte {
	off := len(dst)
	dst = append(dst, make([]byte, c.size)...)
	c.put(dst[off:], v)
	return dst
}
func (c numCodec[T]) Unmarshal(b []byte) (T, error) {
	var zero T
	if len(b) < c.size {
		return zero, fmt.Errorf("wire: %s: need %d bytes, got %d", c.tag, c.size, len(b))
	}
	return c.get(b), nil
}
func (c numCodec[T]) TypeHash() uint64 { return typeHash(c.tag) }

var Int8 Codec[int8] = numCodec[int8]{"i8", 1,
	func(b []byte, v int8) { b[0] = byte(v) },
	func(b []byte) int8 { return int8(b[0]) },
}

var Uint8 Codec[uint8] = numCodec[uint8]{"u8", 1,
	func(b []byte, v uint8) { b[0] = v },
	func(b []byte) uint8 { return b[0] },
}

var Int16 Codec[int16] = numCodec[int16]{"i16", 2,
	func(b []byte, v int16) { binary.LittleEndian.PutUint16(b, uint16(v)) },
	func(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) },
}

var Uint16 Codec[uint16] = numCodec[uint16]{"u16", 2,
	func(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) },
	func(b []byte) uint16 { return binary.LittleEndian.Uint16(b) },
}

var Int32 Codec[int32] = numCodec[int32]{"i32", 4,
	func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) },
	func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) },
}

var Uint32 Codec[uint32] = numCodec[uint32]{"u32", 4,
	func(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) },
	func(b []byte) uint32 { return binary.LittleEndian.Uint32(b) },
}

var Int64 Codec[int64] = numCodec[int64]{"i64", 8,
	func(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) },
	func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) },
}

var Uint64 Codec[uint64] = numCodec[uint64]{"u64", 8,
	func(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) },
	func(b []byte) uint64 { return binary.LittleEndian.Uint64(b) },
}

var Float32 Codec[float32] = numCodec[float32]{"f32", 4,
	func(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) },
	func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) },
}

var Float64 Codec[float64] = numCodec[float64]{"f64", 8,
	func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) },
	func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) },
}

// composite helpers -------------------------------------------------------

// FixedArray builds a Codec for a fixed-length array of a leaf type,
// concatenating N encodings with no separator (the length is implicit
// and known to both peers at registration time).
type fixedArrayCodec[T any] struct {
	elem Codec[T]
	n    int
}

func FixedArray[T any](elem Codec[T], n int) Codec[[]T] {
	return fixedArrayCodec[T]{elem: elem, n: n}
}

func (c fixedArrayCodec[T]) Marshal(v []T) []byte {
	out := make([]byte, 0, len(v)*4)
	for _, e := range v {
		out = append(out, c.elem.Marshal(e)...)
	}
	return out
}
func (c fixedArrayCodec[T]) Unmarshal(b []byte) ([]T, error) {
	out := make([]T, 0, c.n)
	off := 0
	for i := 0; i < c.n; i++ {
		v, n, err := unmarshalAdvancing(c.elem, b[off:])
		if err != nil {
			return nil, fmt.Errorf("wire: fixed array element %d: %w", i, err)
		}
		out = append(out, v)
		off += n
	}
	return out, nil
}
func (c fixedArrayCodec[T]) TypeHash() uint64 {
	return mix(typeHash("array"), c.elem.TypeHash(), uint64(c.n))
}

// Tuple2 builds a Codec for a two-element heterogeneous tuple.
type Pair[A, B any] struct {
	First  A
	Second B
}

type tuple2Codec[A, B any] struct {
	a Codec[A]
	b Codec[B]
}

func Tuple2[A, B any](a Codec[A], b Codec[B]) Codec[Pair[A, B]] {
	return tuple2Codec[A, B]{a: a, b: b}
}

func (c tuple2Codec[A, B]) Marshal(v Pair[A, B]) []byte {
	out := c.a.Marshal(v.First)
	return append(out, c.b.Marshal(v.Second)...)
}
func (c tuple2Codec[A, B]) Unmarshal(b []byte) (Pair[A, B], error) {
	var zero Pair[A, B]
	first, n, err := unmarshalAdvancing(c.a, b)
	if err != nil {
		return zero, fmt.Errorf("wire: tuple.0: %w", err)
	}
	second, err := c.b.Unmarshal(b[n:])
	if err != nil {
		return zero, fmt.Errorf("wire: tuple.1: %w", err)
	}
	return Pair[A, B]{First: first, Second: second}, nil
}
func (c tuple2Codec[A, B]) TypeHash() uint64 {
	return mix(typeHash("tuple2"), c.a.TypeHash(), c.b.TypeHash())
}

// Nullable builds a Codec for an optional value: one presence byte
// followed by the encoded value when present.
type nullableCodec[T any] struct {
	elem Codec[T]
}

func Nullable[T any](elem Codec[T]) Codec[*T] {
	return nullableCodec[T]{elem: elem}
}

func (c nullableCodec[T]) Marshal(v *T) []byte {
	if v == nil {
		return []byte{0}
	}
	out := []byte{1}
	return append(out, c.elem.Marshal(*v)...)
}
func (c nullableCodec[T]) Unmarshal(b []byte) (*T, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("wire: nullable: empty buffer")
	}
	if b[0] == 0 {
		return nil, nil
	}
	v, err := c.elem.Unmarshal(b[1:])
	if err != nil {
		return nil, fmt.Errorf("wire: nullable: %w", err)
	}
	return &v, nil
}
func (c nullableCodec[T]) TypeHash() uint64 {
	return mix(typeHash("nullable"), c.elem.TypeHash())
}

// unmarshalAdvancing decodes one element off the front of b and reports
// how many bytes it consumed. Every leaf and composite codec in this
// package is fixed-width, so a zero value's encoded length already gives
// the stride.
func unmarshalAdvancing[T any](c Codec[T], b []byte) (T, int, error) {
	var zero T
	n := len(c.Marshal(zero))
	v, err := c.Unmarshal(b[:n])
	return v, n, err
}

func mix(seed uint64, parts ...uint64) uint64 {
	h := seed
	for _, p := range parts {
		h = h*1099511628211 ^ p
	}
	return h
}
