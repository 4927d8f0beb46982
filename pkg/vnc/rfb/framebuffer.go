package rfb

import "fmt"

// Client-to-server message types (RFC 6143 Section 7.5)
const (
	MessageSetPixelFormat           uint8 = 0
	MessageSetEncodings             uint8 = 2
	MessageFramebufferUpdateRequest uint8 = 3
	MessageKeyEvent                 uint8 = 4
	MessagePointerEvent             uint8 = 5
	MessageClientCutText            uint8 = 6
)

// Server-to-client message types (RFC 6143 Section 7.6)
const (
	MessageFramebufferUpdate uint8 = 0
	MessageSetColourMapEntry uint8 = 1
	MessageBell              uint8 = 2
	MessageServerCutText     uint8 = 3
)

// Encoding types understood by ReadFramebufferUpdate. Raw is the only
// encoding whose pixel data is read; CopyRect and DesktopSize rectangles
// are parsed without pixel data, and any other encoding is rejected by
// ReadFramebufferUpdate.
const (
	EncodingRaw      int32 = 0
	EncodingCopyRect int32 = 1
	EncodingDesktopSize int32 = -223
)

// Rectangle is a single updated region of the framebuffer. Pixels holds
// the wire bytes in the negotiated pixel format; they are not converted
// to RGB here.
type Rectangle struct {
	X, Y          uint16
	Width, Height uint16
	Encoding      int32
	Pixels        []byte // raw pixel bytes, BitsPerPixel/8 * Width * Height
}

// FramebufferUpdate is one or more rectangles sent by the server in
// response to a FramebufferUpdateRequest.
type FramebufferUpdate struct {
	Rectangles []Rectangle
}

// SendSetPixelFormat tells the server which pixel format to use for
// subsequent FramebufferUpdate rectangles.
func (h *Handshake) SendSetPixelFormat(pf PixelFormat) error {
	if err := h.writer.WriteU8(MessageSetPixelFormat); err != nil {
		return fmt.Errorf("failed to send SetPixelFormat header: %w", err)
	}
	if err := h.writer.Write(make([]byte, 3)); err != nil { // padding
		return fmt.Errorf("failed to send SetPixelFormat padding: %w", err)
	}
	if err := WritePixelFormat(h.writer.w, pf); err != nil {
		return fmt.Errorf("failed to send pixel format: %w", err)
	}
	return nil
}

// SendSetEncodings advertises the encodings this client can decode.
func (h *Handshake) SendSetEncodings(encodings []int32) error {
	if err := h.writer.WriteU8(MessageSetEncodings); err != nil {
		return fmt.Errorf("failed to send SetEncodings header: %w", err)
	}
	if err := h.writer.Write([]byte{0}); err != nil { // padding
		return fmt.Errorf("failed to send SetEncodings padding: %w", err)
	}
	if err := h.writer.WriteU16(uint16(len(encodings))); err != nil {
		return fmt.Errorf("failed to send encoding count: %w", err)
	}
	for _, enc := range encodings {
		if err := h.writer.WriteU32(uint32(enc)); err != nil {
			return fmt.Errorf("failed to send encoding %d: %w", enc, err)
		}
	}
	return nil
}

// SendFramebufferUpdateRequest asks the server for a framebuffer update.
// When incremental is true the server may reply only with the rectangles
// that changed since the last update; when false it sends a full refresh.
func (h *Handshake) SendFramebufferUpdateRequest(incremental bool, x, y, width, height uint16) error {
	if err := h.writer.WriteU8(MessageFramebufferUpdateRequest); err != nil {
		return fmt.Errorf("failed to send FramebufferUpdateRequest header: %w", err)
	}
	var incr uint8
	if incremental {
		incr = 1
	}
	if err := h.writer.WriteU8(incr); err != nil {
		return fmt.Errorf("failed to send incremental flag: %w", err)
	}
	for _, v := range []uint16{x, y, width, height} {
		if err := h.writer.WriteU16(v); err != nil {
			return fmt.Errorf("failed to send FramebufferUpdateRequest geometry: %w", err)
		}
	}
	return nil
}

// ReadServerMessageType reads the 1-byte server-to-client message type.
func (h *Handshake) ReadServerMessageType() (uint8, error) {
	return h.reader.ReadU8()
}

// ReadFramebufferUpdate reads the body of a FramebufferUpdate message
// (the caller must have already consumed the message-type byte via
// ReadServerMessageType). Only Raw-encoded rectangles carry pixel data
// that is read; CopyRect and DesktopSize rectangles are recognized and
// returned without pixel data, and are not applied by this package.
func (h *Handshake) ReadFramebufferUpdate(bytesPerPixel int) (*FramebufferUpdate, error) {
	if _, err := h.reader.ReadU8(); err != nil { // padding byte
		return nil, fmt.Errorf("failed to read FramebufferUpdate padding: %w", err)
	}
	count, err := h.reader.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read rectangle count: %w", err)
	}

	update := &FramebufferUpdate{Rectangles: make([]Rectangle, 0, count)}
	for i := uint16(0); i < count; i++ {
		rect, err := h.readRectangle(bytesPerPixel)
		if err != nil {
			return nil, fmt.Errorf("failed to read rectangle %d/%d: %w", i+1, count, err)
		}
		update.Rectangles = append(update.Rectangles, rect)
	}
	return update, nil
}

func (h *Handshake) readRectangle(bytesPerPixel int) (Rectangle, error) {
	x, err := h.reader.ReadU16()
	if err != nil {
		return Rectangle{}, fmt.Errorf("failed to read rect x: %w", err)
	}
	y, err := h.reader.ReadU16()
	if err != nil {
		return Rectangle{}, fmt.Errorf("failed to read rect y: %w", err)
	}
	width, err := h.reader.ReadU16()
	if err != nil {
		return Rectangle{}, fmt.Errorf("failed to read rect width: %w", err)
	}
	height, err := h.reader.ReadU16()
	if err != nil {
		return Rectangle{}, fmt.Errorf("failed to read rect height: %w", err)
	}
	encodingRaw, err := h.reader.ReadU32()
	if err != nil {
		return Rectangle{}, fmt.Errorf("failed to read rect encoding: %w", err)
	}
	encoding := int32(encodingRaw)

	rect := Rectangle{X: x, Y: y, Width: width, Height: height, Encoding: encoding}

	switch encoding {
	case EncodingRaw:
		size := int(width) * int(height) * bytesPerPixel
		pixels, err := h.reader.ReadBytes(size)
		if err != nil {
			return Rectangle{}, fmt.Errorf("failed to read raw pixel data: %w", err)
		}
		rect.Pixels = pixels
	case EncodingCopyRect:
		// source x,y (u16 each); this package does not apply CopyRect,
		// the bytes are still consumed so the stream stays in sync.
		if _, err := h.reader.ReadBytes(4); err != nil {
			return Rectangle{}, fmt.Errorf("failed to read CopyRect source: %w", err)
		}
	case EncodingDesktopSize:
		// no payload
	default:
		return Rectangle{}, fmt.Errorf("unsupported encoding %d (only Raw is decoded)", encoding)
	}

	return rect, nil
}
