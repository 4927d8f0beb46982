package screen

import (
	"context"
	"fmt"
	"time"
)

// FrameSource supplies framebuffer snapshots to the poll loop.
type FrameSource interface {
	Snapshot(ctx context.Context) (rgb []byte, width, height int, generation uint64, err error)
}

// PollResult is the outcome of a poll loop: whether the needle matched
// and the similarity score observed on the final attempt.
type PollResult struct {
	Matched        bool
	LastSimilarity float64
}

// ErrScreenMismatch wraps the last similarity observed before a deadline
// elapsed without meeting the threshold.
type ErrScreenMismatch struct {
	LastSimilarity float64
}

func (e *ErrScreenMismatch) Error() string {
	return fmt.Sprintf("screen: no match before deadline (last similarity %.3f)", e.LastSimilarity)
}

// Poll implements the AssertScreen/CheckScreen shared loop: until
// deadline, take a snapshot, compare against the needle, and either
// return a match or yield until the next poll interval or a fresh
// framebuffer generation, whichever comes first.
func Poll(ctx context.Context, source FrameSource, needle *Needle, policy ResizePolicy, ocr OCR, threshold float64, timeout time.Duration) (PollResult, error) {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	deadline := time.Now().Add(timeout)
	var lastGen uint64
	var lastSimilarity float64

	for {
		rgb, width, height, gen, err := source.Snapshot(ctx)
		if err != nil {
			return PollResult{}, fmt.Errorf("screen: failed to snapshot frame: %w", err)
		}

		similarity, err := Compare(rgb, width, height, needle, policy, ocr)
		if err != nil {
			return PollResult{}, err
		}
		lastSimilarity = similarity
		lastGen = gen

		if similarity >= threshold {
			return PollResult{Matched: true, LastSimilarity: similarity}, nil
		}

		if time.Now().After(deadline) {
			return PollResult{Matched: false, LastSimilarity: lastSimilarity}, nil
		}

		if err := waitNextGenerationOrInterval(ctx, source, lastGen, DefaultPollInterval); err != nil {
			return PollResult{}, err
		}
	}
}

func waitNextGenerationOrInterval(ctx context.Context, source FrameSource, lastGen uint64, intervalMs int) error {
	interval := time.Duration(intervalMs) * time.Millisecond
	deadline := time.Now().Add(interval)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _, _, gen, err := source.Snapshot(ctx)
			if err != nil {
				return err
			}
			if gen != lastGen || time.Now().After(deadline) {
				return nil
			}
		}
	}
}
