package wire

// EncodeScalarFrame builds a Value/Static/Signal frame, carrying data
// inline in the header when it fits (spec §4.1: "value bytes are
// carried either inline in the header tail ... or as payload").
func EncodeScalarFrame(kind Kind, id WireID, updateHint bool, data []byte) []byte {
	h := Header{Kind: kind, ID: id, UpdateHint: updateHint}
	if len(data) <= len(h.Inline) {
		h.InlineLen = byte(len(data))
		copy(h.Inline[:], data)
		return EncodeFrame(h, nil)
	}
	return EncodeFrame(h, data)
}

// ScalarPayload returns the encoded bytes of a decoded Value/Static/
// Signal frame regardless of whether they were carried inline or as a
// payload, so callers never need to branch on HasPayload themselves.
func ScalarPayload(h Header, payload []byte) []byte {
	if h.InlineLen > 0 || (!h.HasPayload && len(payload) == 0) {
		return h.Inline[:h.InlineLen]
	}
	return payload
}
