package vnc

import (
	"context"
	"fmt"
	"time"
)

// Frame is a point-in-time copy of the framebuffer, safe to hand to
// callers without holding any lock.
type Frame struct {
	RGB        []byte
	Width      int
	Height     int
	Generation uint64
}

type workerRequest struct {
	op    func(ctx context.Context) (any, error)
	reply chan workerResult
}

type workerResult struct {
	value any
	err   error
}

// Worker serializes all VNC session operations (pointer/keyboard writes,
// snapshot reads, refresh requests) through a single mailbox goroutine so
// the underlying Session is never touched concurrently from multiple
// callers, mirroring the actor-per-transport pattern used for the serial
// and SSH workers in pkg/console.
type Worker struct {
	session *Session
	mailbox chan workerRequest
	cancel  context.CancelFunc
	done    chan struct{}

	pointerX, pointerY int
}

// NewWorker starts a VNC session worker bound to an already-connected
// Session. The caller must not use the Session directly after this call.
func NewWorker(session *Session) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		session: session,
		mailbox: make(chan workerRequest, 32),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go w.readLoop(ctx)
	go w.run(ctx)
	return w
}

func (w *Worker) readLoop(ctx context.Context) {
	_ = w.session.Run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.mailbox:
			value, err := req.op(ctx)
			req.reply <- workerResult{value: value, err: err}
		}
	}
}

func (w *Worker) call(ctx context.Context, timeout time.Duration, op func(ctx context.Context) (any, error)) (any, error) {
	reply := make(chan workerResult, 1)
	select {
	case w.mailbox <- workerRequest{op: op, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case res := <-reply:
		return res.value, res.err
	case <-callCtx.Done():
		return nil, fmt.Errorf("vnc operation timed out: %w", callCtx.Err())
	}
}

// SnapshotFrame returns a cloned copy of the live framebuffer.
func (w *Worker) SnapshotFrame(ctx context.Context) (Frame, error) {
	v, err := w.call(ctx, 5*time.Second, func(ctx context.Context) (any, error) {
		rgb, width, height, gen := w.session.Framebuffer().Snapshot()
		return Frame{RGB: rgb, Width: width, Height: height, Generation: gen}, nil
	})
	if err != nil {
		return Frame{}, err
	}
	return v.(Frame), nil
}

// Refresh forces a full-screen (non-incremental) update request and waits
// for the framebuffer generation to advance, bounded by ctx.
func (w *Worker) Refresh(ctx context.Context) error {
	_, err := w.call(ctx, 5*time.Second, func(ctx context.Context) (any, error) {
		before := w.session.Framebuffer().Generation()
		if err := w.session.Refresh(); err != nil {
			return nil, err
		}
		deadline := time.Now().Add(3 * time.Second)
		for w.session.Framebuffer().Generation() == before {
			if time.Now().After(deadline) {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		return nil, nil
	})
	return err
}

// TypeString sends a KeyEvent down/up pair for each printable rune in s.
func (w *Worker) TypeString(ctx context.Context, s string) error {
	_, err := w.call(ctx, 10*time.Second, func(ctx context.Context) (any, error) {
		for _, r := range s {
			keysym, ok := KeysymForRune(r)
			if !ok {
				return nil, fmt.Errorf("unsupported character %q in TypeString", r)
			}
			if err := w.session.SendKeyEvent(keysym, true); err != nil {
				return nil, err
			}
			if err := w.session.SendKeyEvent(keysym, false); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// SendKey sends a named key (e.g. "ret", "ctrl", "esc") or a single
// printable character as a down/up pair.
func (w *Worker) SendKey(ctx context.Context, key string) error {
	_, err := w.call(ctx, 5*time.Second, func(ctx context.Context) (any, error) {
		keysym, ok := KeysymForName(key)
		if !ok {
			runes := []rune(key)
			if len(runes) != 1 {
				return nil, fmt.Errorf("unknown key %q", key)
			}
			keysym, ok = KeysymForRune(runes[0])
			if !ok {
				return nil, fmt.Errorf("unsupported key %q", key)
			}
		}
		if err := w.session.SendKeyEvent(keysym, true); err != nil {
			return nil, err
		}
		return nil, w.session.SendKeyEvent(keysym, false)
	})
	return err
}

func (w *Worker) mouseButton(ctx context.Context, mask uint8) error {
	_, err := w.call(ctx, 5*time.Second, func(ctx context.Context) (any, error) {
		x, y := w.lastPointer()
		if err := w.session.SendPointerEvent(mask, x, y); err != nil {
			return nil, err
		}
		return nil, w.session.SendPointerEvent(0, x, y)
	})
	return err
}

// MouseClick presses and releases the left button at the last known pointer position.
func (w *Worker) MouseClick(ctx context.Context) error { return w.mouseButton(ctx, ButtonLeft) }

// MouseRClick presses and releases the right button at the last known pointer position.
func (w *Worker) MouseRClick(ctx context.Context) error { return w.mouseButton(ctx, ButtonRight) }

// MouseDown presses the left button and leaves it held.
func (w *Worker) MouseDown(ctx context.Context) error {
	_, err := w.call(ctx, 5*time.Second, func(ctx context.Context) (any, error) {
		x, y := w.lastPointer()
		return nil, w.session.SendPointerEvent(ButtonLeft, x, y)
	})
	return err
}

// MouseUp releases all mouse buttons.
func (w *Worker) MouseUp(ctx context.Context) error {
	_, err := w.call(ctx, 5*time.Second, func(ctx context.Context) (any, error) {
		x, y := w.lastPointer()
		return nil, w.session.SendPointerEvent(0, x, y)
	})
	return err
}

// MouseMove moves the pointer to client-pixel coordinates (x, y) without
// changing button state.
func (w *Worker) MouseMove(ctx context.Context, x, y int) error {
	_, err := w.call(ctx, 5*time.Second, func(ctx context.Context) (any, error) {
		w.setLastPointer(x, y)
		return nil, w.session.SendPointerEvent(0, x, y)
	})
	return err
}

// MouseHide parks the pointer at the bottom-right pixel (width-1, height-1).
func (w *Worker) MouseHide(ctx context.Context) error {
	_, err := w.call(ctx, 5*time.Second, func(ctx context.Context) (any, error) {
		width, height := w.session.Framebuffer().Size()
		x, y := width-1, height-1
		w.setLastPointer(x, y)
		return nil, w.session.SendPointerEvent(0, x, y)
	})
	return err
}

// lastPointer/setLastPointer track pointer position for button events
// that don't carry explicit coordinates. Only ever touched from inside
// the mailbox goroutine, so no locking is required.
func (w *Worker) lastPointer() (uint16, uint16) {
	return uint16(w.pointerX), uint16(w.pointerY)
}

func (w *Worker) setLastPointer(x, y int) {
	w.pointerX, w.pointerY = x, y
}

// Close stops the worker's background goroutines and closes the session.
func (w *Worker) Close() error {
	w.cancel()
	<-w.done
	return w.session.Close()
}
