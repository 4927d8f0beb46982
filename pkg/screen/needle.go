package screen

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
)

// Area is a named rectangular region of interest within a needle image,
// used to scope similarity comparison to only the pixels that matter for
// a given assertion.
type Area struct {
	Type   string `json:"type"`
	Left   int    `json:"left"`
	Top    int    `json:"top"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Config is the sidecar JSON describing how a needle's reference image
// should be compared: which areas matter, free-form properties, and the
// tags it can be looked up by.
type Config struct {
	Areas      []Area   `json:"areas"`
	Properties []string `json:"properties"`
	Tags       []string `json:"tags"`
}

// Needle is a loaded reference screen: the decoded RGB image plus its
// comparison config.
type Needle struct {
	Config Config
	Width  int
	Height int
	RGB    []byte
}

// Store loads and caches needles by tag from <log_dir>/needles/<tag>.png
// plus its <tag>.json sidecar.
type Store struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Needle
}

// NewStore returns a Store rooted at dir (typically "<log_dir>/needles").
func NewStore(dir string) *Store {
	return &Store{dir: dir, cache: make(map[string]*Needle)}
}

// Load returns the needle for tag, loading and caching it on first use.
func (s *Store) Load(tag string) (*Needle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.cache[tag]; ok {
		return n, nil
	}

	n, err := s.loadFromDisk(tag)
	if err != nil {
		return nil, err
	}
	s.cache[tag] = n
	return n, nil
}

func (s *Store) loadFromDisk(tag string) (*Needle, error) {
	imgPath := filepath.Join(s.dir, tag+".png")
	cfgPath := filepath.Join(s.dir, tag+".json")

	f, err := os.Open(imgPath)
	if err != nil {
		return nil, fmt.Errorf("screen: failed to open needle image %s: %w", imgPath, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("screen: failed to decode needle image %s: %w", imgPath, err)
	}
	width, height, rgb := toRGB(img)

	// The sidecar is optional: a bare <tag>.png with no <tag>.json is a
	// full-image needle with no areas/properties/tags, compared whole.
	var cfg Config
	cfgBytes, err := os.ReadFile(cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("screen: failed to read needle sidecar %s: %w", cfgPath, err)
		}
	} else if err := json.Unmarshal(cfgBytes, &cfg); err != nil {
		return nil, fmt.Errorf("screen: failed to parse needle sidecar %s: %w", cfgPath, err)
	}

	return &Needle{Config: cfg, Width: width, Height: height, RGB: rgb}, nil
}

// toRGB converts a decoded image.Image into tightly packed 3-byte RGB rows.
func toRGB(img image.Image) (width, height int, rgb []byte) {
	bounds := img.Bounds()
	width, height = bounds.Dx(), bounds.Dy()
	rgb = make([]byte, width*height*3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rgb[i+0] = byte(r >> 8)
			rgb[i+1] = byte(g >> 8)
			rgb[i+2] = byte(b >> 8)
			i += 3
		}
	}
	return width, height, rgb
}
