package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// SerialConfig configures a serial console transport.
type SerialConfig struct {
	Device       string
	BaudRate     int
	Linebreak    string // sequence substituted for "\n" in line-ending writes, e.g. "\r\n"
	DisableEcho  bool
	AutoLogin    bool
	Username     string
	Password     string
	LoginTimeout time.Duration
}

// SerialTransport drives a raw serial device. Grounded on the teacher's
// local-agent Serial-over-LAN session split between connection setup and
// byte I/O; go.bug.st/serial stands in for the SOL-specific transport
// since this driver talks to a real tty rather than an IPMI SOL redirector.
type SerialTransport struct {
	port   serial.Port
	cfg    SerialConfig
	closed bool
}

// OpenSerial opens the configured serial device and, if AutoLogin is set,
// waits for a login prompt and submits the configured credentials.
func OpenSerial(ctx context.Context, cfg SerialConfig) (*SerialTransport, error) {
	mode := &serial.Mode{BaudRate: cfg.BaudRate}
	if mode.BaudRate == 0 {
		mode.BaudRate = 115200
	}

	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial device %s: %w", cfg.Device, err)
	}

	t := &SerialTransport{port: port, cfg: cfg}

	if cfg.AutoLogin {
		if err := t.login(ctx); err != nil {
			port.Close()
			return nil, fmt.Errorf("serial auto-login failed: %w", err)
		}
	}

	return t, nil
}

// login waits for "login:" then "Password:" prompts and writes the
// configured credentials, bounded by cfg.LoginTimeout.
func (t *SerialTransport) login(ctx context.Context) error {
	timeout := t.cfg.LoginTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	loginCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := t.waitForSubstring(loginCtx, "login:"); err != nil {
		return fmt.Errorf("did not see login prompt: %w", err)
	}
	if err := t.Write(loginCtx, []byte(t.cfg.Username+"\r")); err != nil {
		return err
	}
	if err := t.waitForSubstring(loginCtx, "Password:"); err != nil {
		return fmt.Errorf("did not see password prompt: %w", err)
	}
	if err := t.Write(loginCtx, []byte(t.cfg.Password+"\r")); err != nil {
		return err
	}
	log.Info().Str("device", t.cfg.Device).Msg("serial: auto-login submitted")
	return nil
}

func (t *SerialTransport) waitForSubstring(ctx context.Context, pattern string) error {
	var acc strings.Builder
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		data, err := t.Read(ctx)
		if err != nil {
			return err
		}
		acc.Write(data)
		if strings.Contains(acc.String(), pattern) {
			return nil
		}
	}
}

// Read blocks until data is available on the serial port or ctx is done.
func (t *SerialTransport) Read(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 4096)
	type result struct {
		n   int
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		n, err := t.port.Read(buf)
		resCh <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resCh:
		if r.err != nil {
			return nil, fmt.Errorf("serial read error: %w", r.err)
		}
		return buf[:r.n], nil
	}
}

// Write translates every "\n" to the configured linebreak sequence
// (if one is set) before writing to the device.
func (t *SerialTransport) Write(ctx context.Context, data []byte) error {
	out := data
	if t.cfg.Linebreak != "" {
		out = []byte(strings.ReplaceAll(string(data), "\n", t.cfg.Linebreak))
	}
	if _, err := t.port.Write(out); err != nil {
		return fmt.Errorf("serial write error: %w", err)
	}
	return nil
}

// Close releases the serial device.
func (t *SerialTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.port.Close()
}
