package wire

import "testing"

func TestHeaderRoundTrip_Value(t *testing.T) {
	in := Header{
		Kind:       KindValue,
		UpdateHint: true,
		ID:         0x123456,
		InlineLen:  4,
	}
	copy(in.Inline[:], []byte{1, 2, 3, 4})

	buf := EncodeHeader(in)
	if len(buf) != HeaderSize {
		t.Fatalf("encoded header length = %d, want %d", len(buf), HeaderSize)
	}
	out, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if out.Kind != KindValue || !out.UpdateHint || out.ID != in.ID || out.InlineLen != 4 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.Inline[:4][0] != 1 || out.Inline[:4][3] != 4 {
		t.Fatalf("inline bytes mismatch: %v", out.Inline[:4])
	}
}

func TestHeaderRoundTrip_Control_Handshake(t *testing.T) {
	in := Header{
		Kind:             KindControl,
		ControlSubtype:   ControlHandshake,
		HandshakeVersion: 7,
		HandshakeCookie:  0xdeadbeef,
	}
	buf := EncodeHeader(in)
	out, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if out.ControlSubtype != ControlHandshake || out.HandshakeVersion != 7 || out.HandshakeCookie != 0xdeadbeef {
		t.Fatalf("handshake round trip mismatch: %+v", out)
	}
}

func TestHeaderRoundTrip_Image_SubRect(t *testing.T) {
	in := Header{
		Kind:       KindImage,
		ImageType:  ImageGray,
		Height:     10,
		Width:      10,
		HasSubRect: true,
		SubY:       3, SubX: 3, SubH: 4, SubW: 4,
	}
	out, err := DecodeHeader(EncodeHeader(in))
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if out.Height != 10 || out.Width != 10 || !out.HasSubRect {
		t.Fatalf("image dims mismatch: %+v", out)
	}
	if out.SubY != 3 || out.SubX != 3 || out.SubH != 4 || out.SubW != 4 {
		t.Fatalf("sub-rect mismatch: %+v", out)
	}
}

func TestEncodeDecodeFrame_Payload(t *testing.T) {
	payload := []byte{9, 8, 7, 6, 5}
	msg := EncodeFrame(Header{Kind: KindSignal, ID: 42}, payload)
	h, got, err := DecodeFrame(msg)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if h.ID != 42 || !h.HasPayload {
		t.Fatalf("header mismatch: %+v", h)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: got %v, want %v", got, payload)
	}
}

func TestDecodeFrame_ShortPayload(t *testing.T) {
	msg := EncodeFrame(Header{Kind: KindValue, ID: 1}, []byte{1, 2, 3, 4})
	truncated := msg[:len(msg)-2]
	if _, _, err := DecodeFrame(truncated); err == nil {
		t.Fatal("expected error decoding truncated payload")
	}
}

func TestNumericCodecRoundTrip(t *testing.T) {
	if v, err := Uint32.Unmarshal(Uint32.Marshal(123456)); err != nil || v != 123456 {
		t.Fatalf("uint32 round trip: got (%v, %v)", v, err)
	}
	if v, err := Float64.Unmarshal(Float64.Marshal(3.5)); err != nil || v != 3.5 {
		t.Fatalf("float64 round trip: got (%v, %v)", v, err)
	}
	if v, err := Bool.Unmarshal(Bool.Marshal(true)); err != nil || v != true {
		t.Fatalf("bool round trip: got (%v, %v)", v, err)
	}
}

func TestNullableCodec(t *testing.T) {
	c := Nullable(Uint32)
	if v, err := c.Unmarshal(c.Marshal(nil)); err != nil || v != nil {
		t.Fatalf("nullable nil round trip: got (%v, %v)", v, err)
	}
	x := uint32(99)
	v, err := c.Unmarshal(c.Marshal(&x))
	if err != nil || v == nil || *v != 99 {
		t.Fatalf("nullable value round trip: got (%v, %v)", v, err)
	}
}

func TestFixedArrayCodec(t *testing.T) {
	c := FixedArray[uint16](Uint16, 3)
	in := []uint16{1, 2, 3}
	out, err := c.Unmarshal(c.Marshal(in))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out) != 3 || out[0] != 1 || out[2] != 3 {
		t.Fatalf("round trip mismatch: %v", out)
	}
}

func TestToWireID_Truncates(t *testing.T) {
	id := uint64(0xFFFFFFFFFF) // more than 24 bits set
	w := ToWireID(id)
	if uint32(w) != uint32(id)&0x00ffffff {
		t.Fatalf("ToWireID did not truncate correctly: %x", w)
	}
}
