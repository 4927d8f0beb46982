package rfb

import (
	"fmt"
	"io"
)

// PixelFormat describes how pixel data is encoded on the wire.
// See RFC 6143 Section 7.4.
type PixelFormat struct {
	BitsPerPixel uint8
	Depth        uint8
	BigEndian    bool
	TrueColor    bool
	RedMax       uint16
	GreenMax     uint16
	BlueMax      uint16
	RedShift     uint8
	GreenShift   uint8
	BlueShift    uint8
}

// ServerInit is the server's framebuffer parameters, sent once after
// ClientInit during the handshake.
type ServerInit struct {
	Width       uint16
	Height      uint16
	PixelFormat PixelFormat
	Name        string
}

// ReadServerInit reads the ServerInit message from the server.
//
// Wire format: width(u16) height(u16) pixel-format(16 bytes) name-length(u32) name
func (h *Handshake) ReadServerInit() (*ServerInit, error) {
	width, err := h.reader.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read framebuffer width: %w", err)
	}
	height, err := h.reader.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read framebuffer height: %w", err)
	}

	pf, err := readPixelFormat(h.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read pixel format: %w", err)
	}

	name, err := h.reader.ReadString()
	if err != nil {
		return nil, fmt.Errorf("failed to read desktop name: %w", err)
	}

	return &ServerInit{
		Width:       width,
		Height:      height,
		PixelFormat: pf,
		Name:        name,
	}, nil
}

func readPixelFormat(r *ProtocolReader) (PixelFormat, error) {
	raw, err := r.ReadBytes(16)
	if err != nil {
		return PixelFormat{}, err
	}
	return PixelFormat{
		BitsPerPixel: raw[0],
		Depth:        raw[1],
		BigEndian:    raw[2] != 0,
		TrueColor:    raw[3] != 0,
		RedMax:       beU16(raw[4:6]),
		GreenMax:     beU16(raw[6:8]),
		BlueMax:      beU16(raw[8:10]),
		RedShift:     raw[10],
		GreenShift:   raw[11],
		BlueShift:    raw[12],
		// raw[13:16] is padding
	}, nil
}

func beU16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// WritePixelFormat writes a 16-byte pixel format structure (used by SetPixelFormat).
func WritePixelFormat(w io.Writer, pf PixelFormat) error {
	pw := NewProtocolWriter(w)
	buf := make([]byte, 16)
	buf[0] = pf.BitsPerPixel
	buf[1] = pf.Depth
	if pf.BigEndian {
		buf[2] = 1
	}
	if pf.TrueColor {
		buf[3] = 1
	}
	putBeU16(buf[4:6], pf.RedMax)
	putBeU16(buf[6:8], pf.GreenMax)
	putBeU16(buf[8:10], pf.BlueMax)
	buf[10] = pf.RedShift
	buf[11] = pf.GreenShift
	buf[12] = pf.BlueShift
	return pw.Write(buf)
}

func putBeU16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// TrueColorRGB32 is the pixel format this package requests via SetPixelFormat:
// 32 bits per pixel, 24-bit depth, true color, byte order matching RGB888.
var TrueColorRGB32 = PixelFormat{
	BitsPerPixel: 32,
	Depth:        24,
	BigEndian:    false,
	TrueColor:    true,
	RedMax:       255,
	GreenMax:     255,
	BlueMax:      255,
	RedShift:     16,
	GreenShift:   8,
	BlueShift:    0,
}
