package rfb

import (
	"bytes"
	"testing"
)

func TestWritePixelFormatThenReadRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePixelFormat(&buf, TrueColorRGB32); err != nil {
		t.Fatalf("WritePixelFormat returned error: %v", err)
	}
	if buf.Len() != 16 {
		t.Fatalf("wire length = %d, want 16", buf.Len())
	}

	got, err := readPixelFormat(NewProtocolReader(&buf))
	if err != nil {
		t.Fatalf("readPixelFormat returned error: %v", err)
	}
	if got != TrueColorRGB32 {
		t.Errorf("round-tripped PixelFormat = %+v, want %+v", got, TrueColorRGB32)
	}
}

func TestReadServerInitParsesWidthHeightAndName(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x02, 0x80}) // width = 640
	buf.Write([]byte{0x01, 0xe0}) // height = 480
	if err := WritePixelFormat(&buf, TrueColorRGB32); err != nil {
		t.Fatalf("WritePixelFormat returned error: %v", err)
	}
	name := "test-desktop"
	buf.Write([]byte{0, 0, 0, byte(len(name))})
	buf.WriteString(name)

	h := NewHandshake(&buf)
	si, err := h.ReadServerInit()
	if err != nil {
		t.Fatalf("ReadServerInit returned error: %v", err)
	}
	if si.Width != 640 || si.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", si.Width, si.Height)
	}
	if si.Name != name {
		t.Errorf("Name = %q, want %q", si.Name, name)
	}
	if si.PixelFormat != TrueColorRGB32 {
		t.Errorf("PixelFormat = %+v, want %+v", si.PixelFormat, TrueColorRGB32)
	}
}
