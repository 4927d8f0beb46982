package screen

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSource serves a fixed sequence of frames, advancing one per
// Snapshot call and holding on the last entry thereafter.
type fakeSource struct {
	frames []fakeFrame
	calls  int
}

type fakeFrame struct {
	rgb        []byte
	width      int
	height     int
	generation uint64
}

func (s *fakeSource) Snapshot(ctx context.Context) ([]byte, int, int, uint64, error) {
	i := s.calls
	if i >= len(s.frames) {
		i = len(s.frames) - 1
	}
	s.calls++
	f := s.frames[i]
	return f.rgb, f.width, f.height, f.generation, nil
}

func solidNeedle(r, g, b byte) *Needle {
	return &Needle{Width: 1, Height: 1, RGB: []byte{r, g, b}}
}

func solidFrame(r, g, b byte) fakeFrame {
	return fakeFrame{rgb: []byte{r, g, b}, width: 1, height: 1}
}

func TestPollMatchesOnFirstFrame(t *testing.T) {
	source := &fakeSource{frames: []fakeFrame{{rgb: []byte{10, 20, 30}, width: 1, height: 1, generation: 1}}}
	needle := solidNeedle(10, 20, 30)

	result, err := Poll(context.Background(), source, needle, ResizeAllow, nil, 0, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if !result.Matched {
		t.Fatalf("Matched = false, want true; LastSimilarity=%v", result.LastSimilarity)
	}
}

func TestPollTimesOutWithoutMatch(t *testing.T) {
	source := &fakeSource{frames: []fakeFrame{solidFrame(0, 0, 0)}}
	needle := solidNeedle(255, 255, 255)

	result, err := Poll(context.Background(), source, needle, ResizeAllow, nil, 0.99, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if result.Matched {
		t.Fatal("Matched = true, want false for a black frame against a white needle")
	}
}

func TestPollRespectsContextCancellation(t *testing.T) {
	source := &fakeSource{frames: []fakeFrame{solidFrame(0, 0, 0), solidFrame(0, 0, 0)}}
	needle := solidNeedle(255, 255, 255)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Poll(ctx, source, needle, ResizeAllow, nil, 0.99, 5*time.Second)
	if err == nil {
		t.Fatal("Poll with a canceled context returned nil error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Poll error = %v, want context.Canceled", err)
	}
}
