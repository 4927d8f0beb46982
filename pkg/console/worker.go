package console

import (
	"context"
	"fmt"
	"time"
)

type workerRequest struct {
	op    func(ctx context.Context) (any, error)
	reply chan workerResult
}

type workerResult struct {
	value any
	err   error
}

// Worker owns a Transport (serial or SSH), reading continuously into a
// History and a Matcher, while serializing writes and commands through a
// single mailbox goroutine. This mirrors the read-loop-plus-mailbox actor
// used for the VNC session worker: one goroutine drains the transport,
// another drains the mailbox, and the two only ever touch shared state
// (History, Matcher) through their own synchronized types.
type Worker struct {
	transport Transport
	term      Term
	disableEcho bool

	history *History
	matcher *Matcher

	mailbox chan workerRequest
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker starts a console worker bound to an already-open Transport.
func NewWorker(transport Transport, term Term, disableEcho bool) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	history := NewHistory()
	w := &Worker{
		transport:   transport,
		term:        term,
		disableEcho: disableEcho,
		history:     history,
		matcher:     NewMatcher(history),
		mailbox:     make(chan workerRequest, 32),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go w.readLoop(ctx)
	go w.run(ctx)
	return w
}

func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		data, err := w.transport.Read(ctx)
		if err != nil {
			return
		}
		if len(data) == 0 {
			continue
		}
		w.history.Append(data)
		w.matcher.OnAppend()
	}
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
		return nil, fmt.Errorf("console operation timed out: %w", callCtx.Err())
	}
}

// Write sends raw bytes opaquely.
func (w *Worker) Write(ctx context.Context, data []byte) error {
	_, err := w.call(ctx, 10*time.Second, func(ctx context.Context) (any, error) {
		return nil, w.transport.Write(ctx, data)
	})
	return err
}

// WaitResult is returned by WaitPattern.
type WaitResult struct {
	Found  bool
	Offset int
}

// WaitPattern registers a waiter for pattern occurring at least n times
// after the current watermark, blocking until satisfied or timeout.
func (w *Worker) WaitPattern(ctx context.Context, pattern string, n int, timeout time.Duration) (WaitResult, error) {
	v, err := w.call(ctx, 0, func(ctx context.Context) (any, error) {
		ch := w.matcher.Register(pattern, n)
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		select {
		case res := <-ch:
			return WaitResult{Found: true, Offset: res.Offset}, nil
		case <-deadline.C:
			return WaitResult{Found: false}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if err != nil {
		return WaitResult{}, err
	}
	return v.(WaitResult), nil
}

// RunCommand implements the sentinel protocol (see command.go): it writes
// cmd followed by a sentinel-bracketed exit-status echo, waits for the end
// sentinel, and extracts stdout and exit code from the captured region.
// At most one RunCommand is ever in flight per worker, since mailbox
// ordering serializes all operations.
func (w *Worker) RunCommand(ctx context.Context, cmd string, timeout time.Duration) (CommandResult, error) {
	v, err := w.call(ctx, 0, func(ctx context.Context) (any, error) {
		startOff := w.history.Len()
		line, nonce := buildSentinelCommand(cmd, w.term)
		_, end := sentinels(nonce)

		if err := w.transport.Write(ctx, []byte(line)); err != nil {
			return nil, fmt.Errorf("console: failed to write command: %w", err)
		}

		// When the device echoes input back (the common case), the end
		// sentinel appears twice: once in the raw, unexecuted echo of the
		// written line, and once for real once the shell has executed it.
		// Wait for both before parsing, or the first (bogus) occurrence
		// would be mistaken for completion.
		echoExpected := !w.disableEcho
		target := 1
		if echoExpected {
			target = 2
		}
		ch := w.matcher.Register(end, target)
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()

		select {
		case <-ch:
		case <-deadline.C:
			return nil, fmt.Errorf("console: timed out waiting for command to complete")
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		region := w.term.ParseAndStrip(w.history.Since(startOff))
		result, err := extractSentinelOutput(region, nonce, echoExpected, w.term.EnterOutput())
		if err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return CommandResult{}, err
	}
	return v.(CommandResult), nil
}

// SeparateRun delegates to the transport's SeparateRunner, if supported
// (SSH only). Serial transports return an error since there is no notion
// of an independent channel on a single tty.
func (w *Worker) SeparateRun(ctx context.Context, cmd string, timeout time.Duration) (CommandResult, error) {
	runner, ok := w.transport.(SeparateRunner)
	if !ok {
		return CommandResult{}, fmt.Errorf("console: SeparateRun is not supported on this transport")
	}
	v, err := w.call(ctx, timeout, func(ctx context.Context) (any, error) {
		return runner.SeparateRun(ctx, cmd)
	})
	if err != nil {
		return CommandResult{}, err
	}
	return v.(CommandResult), nil
}

// History exposes the retained console history, used by dump_log.
func (w *Worker) History() *History { return w.history }

// Close stops the worker's goroutines and the underlying transport.
func (w *Worker) Close() error {
	w.cancel()
	<-w.done
	return w.transport.Close()
}
