// Package recorder captures VNC framebuffer snapshots to disk, either on
// an interval (for the `record` CLI subcommand) or on demand (to seed a
// new needle from the live screen). It is a thin disk-writing layer on
// top of pkg/vnc and pkg/screen; the spec's original GUI recorder is out
// of scope here, since the CLI front end has no interactive script-edit
// surface to drive it.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"autotest/pkg/screen"
	"autotest/pkg/vnc"
)

// Recorder snapshots a VNC worker's framebuffer to <dir>/<utc-timestamp>.png,
// one snapshot per Capture call; the record subcommand calls Capture on an
// interval with <log_dir>/screen as the directory.
type Recorder struct {
	worker *vnc.Worker
	dir    string
}

// New returns a Recorder that writes screenshots under dir.
func New(worker *vnc.Worker, dir string) *Recorder {
	return &Recorder{worker: worker, dir: dir}
}

// Capture takes one framebuffer snapshot and writes it as a timestamped
// PNG under the Recorder's directory.
func (r *Recorder) Capture(ctx context.Context) (string, error) {
	frame, err := r.worker.SnapshotFrame(ctx)
	if err != nil {
		return "", fmt.Errorf("recorder: failed to snapshot frame: %w", err)
	}
	return writePNG(r.dir, stampedName(), frame)
}

// SaveNeedle writes a new needle reference (<tag>.png + <tag>.json) from
// the worker's current frame, with the given areas and properties, to
// needleDir.
func SaveNeedle(ctx context.Context, worker *vnc.Worker, needleDir, tag string, areas []screen.Area, properties, tags []string) error {
	frame, err := worker.SnapshotFrame(ctx)
	if err != nil {
		return fmt.Errorf("recorder: failed to snapshot frame: %w", err)
	}

	if err := os.MkdirAll(needleDir, 0o755); err != nil {
		return fmt.Errorf("recorder: failed to create needle dir: %w", err)
	}

	if _, err := writePNG(needleDir, tag, frame); err != nil {
		return err
	}

	cfg := screen.Config{Areas: areas, Properties: properties, Tags: tags}
	cfgBytes, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("recorder: failed to marshal needle sidecar: %w", err)
	}
	if err := os.WriteFile(filepath.Join(needleDir, tag+".json"), cfgBytes, 0o644); err != nil {
		return fmt.Errorf("recorder: failed to write needle sidecar: %w", err)
	}

	log.Info().Str("tag", tag).Str("dir", needleDir).Msg("recorder: needle saved")
	return nil
}

func writePNG(dir, name string, frame vnc.Frame) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("recorder: failed to create dir %s: %w", dir, err)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			off := (y*frame.Width + x) * 3
			if off+3 > len(frame.RGB) {
				continue
			}
			img.Set(x, y, color.RGBA{R: frame.RGB[off], G: frame.RGB[off+1], B: frame.RGB[off+2], A: 255})
		}
	}

	path := filepath.Join(dir, name+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("recorder: failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", fmt.Errorf("recorder: failed to encode %s: %w", path, err)
	}

	return path, nil
}

func stampedName() string {
	return time.Now().UTC().Format("20060102T150405.000000000Z")
}
