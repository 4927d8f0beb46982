package screen

import "fmt"

// ResizePolicy controls what happens when the live frame and a needle's
// reference image (after cropping to the needle's region, if any) don't
// share dimensions.
type ResizePolicy int

const (
	// ResizeAllow nearest-neighbour resizes the frame to the needle's
	// dimensions before comparing.
	ResizeAllow ResizePolicy = iota
	// ResizeForbid fails the comparison with ErrSizeMismatch instead.
	ResizeForbid
)

// ErrSizeMismatch is returned when dimensions differ and ResizeForbid is configured.
var ErrSizeMismatch = fmt.Errorf("screen: frame and needle dimensions differ and resize is forbidden")

// DefaultThreshold is the similarity score, in [0, 1], at or above which a
// comparison is considered a match.
const DefaultThreshold = 0.95

// DefaultPollInterval is how long the matcher waits between polls when
// the framebuffer generation hasn't advanced.
const DefaultPollInterval = 200 // milliseconds

// OCR is implemented by an OCR extractor plugged into similarity scoring
// when a needle's config demands it (see needle.Config.Properties).
type OCR interface {
	Extract(rgb []byte, width, height int) (string, error)
}

// Compare computes the similarity between a live frame region and a
// needle, applying the needle's configured areas and, if requested via
// the "ocr" property, text-based comparison instead of pixel difference.
func Compare(frameRGB []byte, frameWidth, frameHeight int, needle *Needle, policy ResizePolicy, ocr OCR) (similarity float64, err error) {
	if len(needle.Config.Areas) == 0 {
		return compareRegion(frameRGB, frameWidth, frameHeight, needle.RGB, needle.Width, needle.Height, policy, needleWantsOCR(needle), ocr)
	}

	var total float64
	for _, area := range needle.Config.Areas {
		frameCrop, fw, fh := crop(frameRGB, frameWidth, frameHeight, area.Left, area.Top, area.Width, area.Height)
		needleCrop, nw, nh := crop(needle.RGB, needle.Width, needle.Height, area.Left, area.Top, area.Width, area.Height)

		s, err := compareRegion(frameCrop, fw, fh, needleCrop, nw, nh, policy, needleWantsOCR(needle), ocr)
		if err != nil {
			return 0, err
		}
		total += s
	}
	return total / float64(len(needle.Config.Areas)), nil
}

func needleWantsOCR(n *Needle) bool {
	for _, p := range n.Config.Properties {
		if p == "ocr" {
			return true
		}
	}
	return false
}

func compareRegion(frameRGB []byte, frameW, frameH int, needleRGB []byte, needleW, needleH int, policy ResizePolicy, useOCR bool, ocr OCR) (float64, error) {
	if frameW != needleW || frameH != needleH {
		if policy == ResizeForbid {
			return 0, ErrSizeMismatch
		}
		frameRGB = resizeNearest(frameRGB, frameW, frameH, needleW, needleH)
		frameW, frameH = needleW, needleH
	}

	if useOCR {
		if ocr == nil {
			return 0, fmt.Errorf("screen: needle requires OCR but no OCR engine is configured")
		}
		frameText, err := ocr.Extract(frameRGB, frameW, frameH)
		if err != nil {
			return 0, fmt.Errorf("screen: OCR extraction failed on frame: %w", err)
		}
		needleText, err := ocr.Extract(needleRGB, needleW, needleH)
		if err != nil {
			return 0, fmt.Errorf("screen: OCR extraction failed on needle: %w", err)
		}
		return levenshteinSimilarity(frameText, needleText), nil
	}

	return pixelSimilarity(frameRGB, needleRGB), nil
}

// pixelSimilarity returns 1 - mean(|delta|)/255 across all RGB channels.
func pixelSimilarity(a, b []byte) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < n; i++ {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		sum += int64(d)
	}
	mean := float64(sum) / float64(n)
	return 1 - mean/255
}

// crop extracts the sub-rectangle [left,top,width,height) from an RGB
// buffer, clamping to the source bounds.
func crop(rgb []byte, srcW, srcH, left, top, width, height int) ([]byte, int, int) {
	if width <= 0 || height <= 0 {
		return rgb, srcW, srcH
	}
	if left+width > srcW {
		width = srcW - left
	}
	if top+height > srcH {
		height = srcH - top
	}
	if width <= 0 || height <= 0 || left < 0 || top < 0 {
		return nil, 0, 0
	}

	out := make([]byte, width*height*3)
	for row := 0; row < height; row++ {
		srcOff := ((top+row)*srcW + left) * 3
		dstOff := row * width * 3
		copy(out[dstOff:dstOff+width*3], rgb[srcOff:srcOff+width*3])
	}
	return out, width, height
}

// resizeNearest resizes an RGB buffer using nearest-neighbour sampling.
func resizeNearest(rgb []byte, srcW, srcH, dstW, dstH int) []byte {
	out := make([]byte, dstW*dstH*3)
	for y := 0; y < dstH; y++ {
		srcY := y * srcH / dstH
		for x := 0; x < dstW; x++ {
			srcX := x * srcW / dstW
			srcOff := (srcY*srcW + srcX) * 3
			dstOff := (y*dstW + x) * 3
			if srcOff+3 > len(rgb) {
				continue
			}
			copy(out[dstOff:dstOff+3], rgb[srcOff:srcOff+3])
		}
	}
	return out
}

// levenshteinSimilarity returns 1 - (edit distance / max length), in [0, 1].
func levenshteinSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	dist := levenshteinDistance(ra, rb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1 - float64(dist)/float64(maxLen)
}

func levenshteinDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
