package vnc

import "autotest/pkg/vnc/rfb"

// decodeTrueColorPixels converts raw wire pixel bytes (as delivered in a
// Raw-encoded rectangle) into tightly packed 3-byte RGB pixels, using the
// PixelFormat negotiated via SetPixelFormat. Only true-color formats with
// 8, 16, or 32 bits per pixel are supported; this package always requests
// rfb.TrueColorRGB32 so decoding is effectively fixed, but the generic path
// is kept in case a server imposes its own pixel format.
func decodeTrueColorPixels(pf rfb.PixelFormat, raw []byte, width, height int) []byte {
	bytesPerPixel := int(pf.BitsPerPixel) / 8
	out := make([]byte, width*height*3)

	for i := 0; i < width*height; i++ {
		off := i * bytesPerPixel
		if off+bytesPerPixel > len(raw) {
			break
		}
		pixel := readPixelValue(raw[off:off+bytesPerPixel], pf.BigEndian)

		r := extractChannel(pixel, pf.RedShift, pf.RedMax)
		g := extractChannel(pixel, pf.GreenShift, pf.GreenMax)
		b := extractChannel(pixel, pf.BlueShift, pf.BlueMax)

		out[i*3+0] = r
		out[i*3+1] = g
		out[i*3+2] = b
	}

	return out
}

func readPixelValue(b []byte, bigEndian bool) uint32 {
	var v uint32
	if bigEndian {
		for _, c := range b {
			v = v<<8 | uint32(c)
		}
	} else {
		for i := len(b) - 1; i >= 0; i-- {
			v = v<<8 | uint32(b[i])
		}
	}
	return v
}

func extractChannel(pixel uint32, shift uint8, max uint16) byte {
	if max == 0 {
		return 0
	}
	value := (pixel >> shift) & uint32(max)
	return byte(value * 255 / uint32(max))
}
