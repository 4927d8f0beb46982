// Package driver implements the Driver facade: it owns the console and
// VNC session workers built from a parsed configuration, enforces the
// Building/Running/Stopping/Stopped lifecycle, and routes the flat
// operation set to the right worker using the serial-over-SSH precedence
// policy described by the driver's routing rules.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"autotest/pkg/config"
	"autotest/pkg/console"
	"autotest/pkg/derr"
	"autotest/pkg/screen"
	"autotest/pkg/vnc"
)

// State is the driver's lifecycle state.
type State int

const (
	StateBuilding State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "Building"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Driver owns all session workers built from a Config and exposes the
// flat procedural operation set test scenarios are written against.
type Driver struct {
	cfg *config.Config

	mu    sync.RWMutex
	state State

	serial *console.Worker
	ssh    *console.Worker
	vncW   *vnc.Worker

	needles *screen.Store
	ocr     screen.OCR
}

// New constructs a Driver in the Building state. No transports are opened
// until Start is called.
func New(cfg *config.Config) *Driver {
	needleDir := cfg.NeedleDir
	if needleDir == "" {
		needleDir = filepath.Join(cfg.LogDir, "needles")
	}
	return &Driver{
		cfg:     cfg,
		state:   StateBuilding,
		needles: screen.NewStore(needleDir),
	}
}

// SetOCR installs an OCR engine used by AssertScreen/CheckScreen when a
// needle's sidecar demands text comparison. Optional.
func (d *Driver) SetOCR(ocr screen.OCR) {
	d.ocr = ocr
}

// Start opens every configured transport. If any worker fails to start,
// the workers that did start are rolled back (closed) before returning.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateBuilding {
		return &derr.InvalidStateError{Operation: "start", State: d.state.String()}
	}

	var opened []ioCloser

	rollback := func(err error) error {
		for i := len(opened) - 1; i >= 0; i-- {
			_ = opened[i].Close()
		}
		return err
	}

	if d.cfg.Console.Serial.Enable {
		t, err := console.OpenSerial(ctx, serialConfigFrom(d.cfg.Console.Serial))
		if err != nil {
			return rollback(&derr.TransportOpenError{Transport: "serial", Reason: err.Error()})
		}
		term := console.GeneralTerm
		worker := console.NewWorker(t, term, d.cfg.Console.Serial.DisableEcho)
		d.serial = worker
		opened = append(opened, worker)
	}

	if d.cfg.Console.SSH.Enable {
		t, err := console.DialSSH(ctx, sshConfigFrom(d.cfg.Console.SSH))
		if err != nil {
			return rollback(&derr.TransportOpenError{Transport: "ssh", Reason: err.Error()})
		}
		worker := console.NewWorker(t, console.GeneralTerm, false)
		d.ssh = worker
		opened = append(opened, worker)
	}

	if d.cfg.Console.VNC.Enable {
		session, err := vnc.Connect(ctx, vnc.Endpoint{
			Host:     d.cfg.Console.VNC.Host,
			Port:     d.cfg.Console.VNC.Port,
			Password: d.cfg.Console.VNC.Password,
		})
		if err != nil {
			return rollback(&derr.TransportOpenError{Transport: "vnc", Reason: err.Error()})
		}
		worker := vnc.NewWorker(session)
		d.vncW = worker
		opened = append(opened, worker)
	}

	d.state = StateRunning
	log.Info().Str("machine", d.cfg.Machine).Msg("driver: started")
	return nil
}

// ioCloser is the minimal interface shared by console.Worker and vnc.Worker.
type ioCloser interface {
	Close() error
}

// Stop cancels all pending operations with SessionLost, joins every
// worker's read loop, and releases transports.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateRunning {
		return &derr.InvalidStateError{Operation: "stop", State: d.state.String()}
	}
	d.state = StateStopping

	if d.serial != nil {
		_ = d.serial.Close()
	}
	if d.ssh != nil {
		_ = d.ssh.Close()
	}
	if d.vncW != nil {
		_ = d.vncW.Close()
	}

	d.state = StateStopped
	log.Info().Msg("driver: stopped")
	return nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *Driver) requireRunning(op string) error {
	if d.State() != StateRunning {
		return &derr.InvalidStateError{Operation: op, State: d.State().String()}
	}
	return nil
}

// primaryShellWorker resolves the unqualified-operation precedence: serial
// if configured, else SSH.
func (d *Driver) primaryShellWorker() (*console.Worker, error) {
	if d.serial != nil {
		return d.serial, nil
	}
	if d.ssh != nil {
		return d.ssh, nil
	}
	return nil, &derr.NotConfiguredError{Transport: "serial/ssh"}
}

// Sleep yields cooperatively for the requested duration; it does not
// interact with any session and is valid in any state.
func (d *Driver) Sleep(ctx context.Context, secs float64) error {
	select {
	case <-time.After(time.Duration(secs * float64(time.Second))):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetEnv returns the configured env mapping's value, valid in any state.
func (d *Driver) GetEnv(key string) (string, bool) {
	return d.cfg.GetEnv(key)
}

// DumpLog is only valid in Stopped; it writes serial.log and ssh.log from
// the retained console histories. It does not write screen/*.png.
func (d *Driver) DumpLog(ctx context.Context) error {
	if d.State() != StateStopped {
		return &derr.InvalidStateError{Operation: "dump_log", State: d.State().String()}
	}

	if err := os.MkdirAll(d.cfg.LogDir, 0o755); err != nil {
		return &derr.IoError{Reason: err.Error()}
	}

	if d.serial != nil {
		if err := writeFile(filepath.Join(d.cfg.LogDir, "serial.log"), d.serial.History().All()); err != nil {
			return err
		}
	}
	if d.ssh != nil {
		if err := writeFile(filepath.Join(d.cfg.LogDir, "ssh.log"), d.ssh.History().All()); err != nil {
			return err
		}
	}
	// Frame snapshots are written by the recorder during a run (see
	// internal/recorder); dump_log only flushes console histories since
	// the VNC worker is already closed by the time Stopped is reached.

	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &derr.IoError{Reason: fmt.Sprintf("failed to write %s: %s", path, err)}
	}
	return nil
}

func serialConfigFrom(c config.SerialConfig) console.SerialConfig {
	return console.SerialConfig{
		Device:       c.SerialFile,
		BaudRate:     c.BaudRate,
		Linebreak:    c.Linebreak,
		DisableEcho:  c.DisableEcho,
		AutoLogin:    c.AutoLogin,
		Username:     c.Username,
		Password:     c.Password,
		LoginTimeout: c.LoginTimeout,
	}
}

func sshConfigFrom(c config.SSHConfig) console.SSHConfig {
	return console.SSHConfig{
		Host:       c.Host,
		Port:       c.Port,
		Username:   c.Username,
		Password:   c.Auth.Password,
		PrivateKey: c.Auth.PrivateKey,
		Timeout:    c.Timeout,
	}
}
