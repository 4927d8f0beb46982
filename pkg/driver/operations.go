package driver

import (
	"context"
	"time"

	"autotest/pkg/console"
	"autotest/pkg/derr"
	"autotest/pkg/screen"
)

// ScriptRun runs cmd on the precedence-selected worker (serial if
// configured, else SSH) and returns its stdout, without checking exit
// status.
func (d *Driver) ScriptRun(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if err := d.requireRunning("script_run"); err != nil {
		return "", err
	}
	w, err := d.primaryShellWorker()
	if err != nil {
		return "", err
	}
	return runScript(ctx, w, cmd, timeout)
}

// AssertScriptRun runs cmd and fails with ScriptFailed if its exit code
// is non-zero.
func (d *Driver) AssertScriptRun(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if err := d.requireRunning("assert_script_run"); err != nil {
		return "", err
	}
	w, err := d.primaryShellWorker()
	if err != nil {
		return "", err
	}
	return assertScript(ctx, w, cmd, timeout)
}

// Write sends s opaquely to the precedence-selected worker.
func (d *Driver) Write(ctx context.Context, s string) error {
	if err := d.requireRunning("write"); err != nil {
		return err
	}
	w, err := d.primaryShellWorker()
	if err != nil {
		return err
	}
	return w.Write(ctx, []byte(s))
}

// Writeln sends s followed by a newline to the precedence-selected worker.
func (d *Driver) Writeln(ctx context.Context, s string) error {
	return d.Write(ctx, s+"\n")
}

// WaitStringNTimes reports whether pattern appeared at least n times
// after the current watermark, on the precedence-selected worker.
func (d *Driver) WaitStringNTimes(ctx context.Context, pattern string, n int, timeout time.Duration) (bool, error) {
	if err := d.requireRunning("wait_string_ntimes"); err != nil {
		return false, err
	}
	w, err := d.primaryShellWorker()
	if err != nil {
		return false, err
	}
	res, err := w.WaitPattern(ctx, pattern, n, timeout)
	if err != nil {
		return false, err
	}
	return res.Found, nil
}

// AssertWaitStringNTimes is WaitStringNTimes but fails with Timeout
// instead of returning false.
func (d *Driver) AssertWaitStringNTimes(ctx context.Context, pattern string, n int, timeout time.Duration) error {
	found, err := d.WaitStringNTimes(ctx, pattern, n, timeout)
	if err != nil {
		return err
	}
	if !found {
		return &derr.TimeoutError{Operation: "assert_wait_string_ntimes"}
	}
	return nil
}

// SSH-forced variants. These bypass precedence and always target the SSH
// worker, failing NotConfigured(ssh) if it is absent.

func (d *Driver) SSHScriptRun(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if err := d.requireRunning("ssh_script_run"); err != nil {
		return "", err
	}
	if d.ssh == nil {
		return "", &derr.NotConfiguredError{Transport: "ssh"}
	}
	return runScript(ctx, d.ssh, cmd, timeout)
}

func (d *Driver) SSHAssertScriptRun(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if err := d.requireRunning("ssh_assert_script_run"); err != nil {
		return "", err
	}
	if d.ssh == nil {
		return "", &derr.NotConfiguredError{Transport: "ssh"}
	}
	return assertScript(ctx, d.ssh, cmd, timeout)
}

func (d *Driver) SSHWrite(ctx context.Context, s string) error {
	if err := d.requireRunning("ssh_write"); err != nil {
		return err
	}
	if d.ssh == nil {
		return &derr.NotConfiguredError{Transport: "ssh"}
	}
	return d.ssh.Write(ctx, []byte(s))
}

// SSHAssertScriptRunSeperate opens a fresh SSH channel, runs cmd
// non-interactively, and fails with ScriptFailed on non-zero exit.
func (d *Driver) SSHAssertScriptRunSeperate(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if err := d.requireRunning("ssh_assert_script_run_seperate"); err != nil {
		return "", err
	}
	if d.ssh == nil {
		return "", &derr.NotConfiguredError{Transport: "ssh"}
	}
	res, err := d.ssh.SeparateRun(ctx, cmd, timeout)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &derr.ScriptFailedError{Code: res.ExitCode, Stdout: res.Stdout}
	}
	return res.Stdout, nil
}

// Serial-forced variants, analogous to the SSH ones above.

func (d *Driver) SerialScriptRun(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if err := d.requireRunning("serial_script_run"); err != nil {
		return "", err
	}
	if d.serial == nil {
		return "", &derr.NotConfiguredError{Transport: "serial"}
	}
	return runScript(ctx, d.serial, cmd, timeout)
}

func (d *Driver) SerialAssertScriptRun(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if err := d.requireRunning("serial_assert_script_run"); err != nil {
		return "", err
	}
	if d.serial == nil {
		return "", &derr.NotConfiguredError{Transport: "serial"}
	}
	return assertScript(ctx, d.serial, cmd, timeout)
}

func (d *Driver) SerialWrite(ctx context.Context, s string) error {
	if err := d.requireRunning("serial_write"); err != nil {
		return err
	}
	if d.serial == nil {
		return &derr.NotConfiguredError{Transport: "serial"}
	}
	return d.serial.Write(ctx, []byte(s))
}

func runScript(ctx context.Context, w *console.Worker, cmd string, timeout time.Duration) (string, error) {
	res, err := w.RunCommand(ctx, cmd, timeout)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

func assertScript(ctx context.Context, w *console.Worker, cmd string, timeout time.Duration) (string, error) {
	res, err := w.RunCommand(ctx, cmd, timeout)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &derr.ScriptFailedError{Code: res.ExitCode, Stdout: res.Stdout}
	}
	return res.Stdout, nil
}

// AssertScreen polls the VNC framebuffer until it matches the named
// needle within the configured threshold, or fails with ScreenMismatch
// once timeout elapses.
func (d *Driver) AssertScreen(ctx context.Context, tag string, timeout time.Duration) error {
	if err := d.requireRunning("assert_screen"); err != nil {
		return err
	}
	if d.vncW == nil {
		return &derr.NotConfiguredError{Transport: "vnc"}
	}
	result, err := d.pollScreen(ctx, tag, timeout)
	if err != nil {
		return err
	}
	if !result.Matched {
		return &derr.ScreenMismatchError{LastSimilarity: result.LastSimilarity}
	}
	return nil
}

// CheckScreen is AssertScreen but returns a boolean instead of failing.
func (d *Driver) CheckScreen(ctx context.Context, tag string, timeout time.Duration) (bool, error) {
	if err := d.requireRunning("check_screen"); err != nil {
		return false, err
	}
	if d.vncW == nil {
		return false, &derr.NotConfiguredError{Transport: "vnc"}
	}
	result, err := d.pollScreen(ctx, tag, timeout)
	if err != nil {
		return false, err
	}
	return result.Matched, nil
}

type frameSourceFunc func(ctx context.Context) ([]byte, int, int, uint64, error)

func (f frameSourceFunc) Snapshot(ctx context.Context) ([]byte, int, int, uint64, error) {
	return f(ctx)
}

func (d *Driver) pollScreen(ctx context.Context, tag string, timeout time.Duration) (screen.PollResult, error) {
	needle, err := d.needles.Load(tag)
	if err != nil {
		return screen.PollResult{}, err
	}

	source := frameSourceFunc(func(ctx context.Context) ([]byte, int, int, uint64, error) {
		frame, err := d.vncW.SnapshotFrame(ctx)
		if err != nil {
			return nil, 0, 0, 0, err
		}
		return frame.RGB, frame.Width, frame.Height, frame.Generation, nil
	})

	threshold := d.cfg.Console.VNC.Threshold
	return screen.Poll(ctx, source, needle, screen.ResizeAllow, d.ocr, threshold, timeout)
}

// VNCTypeString sends each character of s as a key down/up pair.
func (d *Driver) VNCTypeString(ctx context.Context, s string) error {
	if err := d.requireRunning("vnc_type_string"); err != nil {
		return err
	}
	if d.vncW == nil {
		return &derr.NotConfiguredError{Transport: "vnc"}
	}
	return d.vncW.TypeString(ctx, s)
}

// VNCSendKey sends a single named or literal key.
func (d *Driver) VNCSendKey(ctx context.Context, key string) error {
	if err := d.requireRunning("vnc_send_key"); err != nil {
		return err
	}
	if d.vncW == nil {
		return &derr.NotConfiguredError{Transport: "vnc"}
	}
	return d.vncW.SendKey(ctx, key)
}

// VNCRefresh forces a full-screen framebuffer update request.
func (d *Driver) VNCRefresh(ctx context.Context) error {
	if err := d.requireRunning("vnc_refresh"); err != nil {
		return err
	}
	if d.vncW == nil {
		return &derr.NotConfiguredError{Transport: "vnc"}
	}
	return d.vncW.Refresh(ctx)
}

func (d *Driver) MouseClick(ctx context.Context) error {
	if err := d.requireRunning("mouse_click"); err != nil {
		return err
	}
	if d.vncW == nil {
		return &derr.NotConfiguredError{Transport: "vnc"}
	}
	return d.vncW.MouseClick(ctx)
}

func (d *Driver) MouseRClick(ctx context.Context) error {
	if err := d.requireRunning("mouse_rclick"); err != nil {
		return err
	}
	if d.vncW == nil {
		return &derr.NotConfiguredError{Transport: "vnc"}
	}
	return d.vncW.MouseRClick(ctx)
}

func (d *Driver) MouseKeyDown(ctx context.Context) error {
	if err := d.requireRunning("mouse_keydown"); err != nil {
		return err
	}
	if d.vncW == nil {
		return &derr.NotConfiguredError{Transport: "vnc"}
	}
	return d.vncW.MouseDown(ctx)
}

func (d *Driver) MouseKeyUp(ctx context.Context) error {
	if err := d.requireRunning("mouse_keyup"); err != nil {
		return err
	}
	if d.vncW == nil {
		return &derr.NotConfiguredError{Transport: "vnc"}
	}
	return d.vncW.MouseUp(ctx)
}

func (d *Driver) MouseMove(ctx context.Context, x, y int) error {
	if err := d.requireRunning("mouse_move"); err != nil {
		return err
	}
	if d.vncW == nil {
		return &derr.NotConfiguredError{Transport: "vnc"}
	}
	return d.vncW.MouseMove(ctx, x, y)
}

func (d *Driver) MouseHide(ctx context.Context) error {
	if err := d.requireRunning("mouse_hide"); err != nil {
		return err
	}
	if d.vncW == nil {
		return &derr.NotConfiguredError{Transport: "vnc"}
	}
	return d.vncW.MouseHide(ctx)
}
