package rfb

// WriteRawU8, WriteRawU16 and WriteRawU32 expose the handshake's
// underlying writer for client-to-server messages that are not part of
// the handshake proper (PointerEvent, KeyEvent) but still need to share
// the same connection and framing helpers.
func (h *Handshake) WriteRawU8(v uint8) error   { return h.writer.WriteU8(v) }
func (h *Handshake) WriteRawU16(v uint16) error { return h.writer.WriteU16(v) }
func (h *Handshake) WriteRawU32(v uint32) error { return h.writer.WriteU32(v) }
