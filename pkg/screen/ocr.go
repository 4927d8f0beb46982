package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOCR implements OCR using the system's Tesseract installation
// via gosseract's cgo bindings. One client is reused across calls; it is
// not safe for concurrent use, matching the screen matcher's single-poll-
// loop-at-a-time usage pattern.
type TesseractOCR struct {
	client *gosseract.Client
}

// NewTesseractOCR creates an OCR engine. Close must be called when done.
func NewTesseractOCR() *TesseractOCR {
	return &TesseractOCR{client: gosseract.NewClient()}
}

// Extract runs OCR over an RGB buffer by encoding it as PNG (gosseract
// only accepts image bytes or file paths) and returns the recognized text.
func (o *TesseractOCR) Extract(rgb []byte, width, height int) (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := (y*width + x) * 3
			if off+3 > len(rgb) {
				continue
			}
			img.Set(x, y, color.RGBA{R: rgb[off], G: rgb[off+1], B: rgb[off+2], A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("screen: failed to encode region for OCR: %w", err)
	}

	if err := o.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("screen: failed to hand region to tesseract: %w", err)
	}

	text, err := o.client.Text()
	if err != nil {
		return "", fmt.Errorf("screen: tesseract recognition failed: %w", err)
	}
	return text, nil
}

// Close releases the underlying tesseract client.
func (o *TesseractOCR) Close() error {
	return o.client.Close()
}
