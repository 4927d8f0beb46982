package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Scenario is a named, built-in sequence of driver operations. Since
// embedded script-language bindings are out of scope for the core
// runtime, the CLI's `run` subcommand dispatches to one of these instead
// of an interpreter; a Scenario exercises the operation surface the same
// way a script-language binding would.
type Scenario func(ctx context.Context, d *Driver) error

// Scenarios maps the names accepted by `autotest run <name>` to their
// implementations.
var Scenarios = map[string]Scenario{
	"smoke":        smokeScenario,
	"login-screen": loginScreenScenario,
}

// smokeScenario exercises the shell command engine: run a command,
// assert its exit status, and wait for a pattern.
func smokeScenario(ctx context.Context, d *Driver) error {
	whoami, err := d.AssertScriptRun(ctx, "whoami", 10*time.Second)
	if err != nil {
		return fmt.Errorf("smoke: whoami failed: %w", err)
	}
	log.Info().Str("user", whoami).Msg("smoke: whoami ok")

	if err := d.AssertWaitStringNTimes(ctx, whoami, 1, 2*time.Second); err != nil {
		return fmt.Errorf("smoke: expected output to echo username: %w", err)
	}
	return nil
}

// loginScreenScenario exercises the VNC screen matcher: assert a named
// needle appears, then type a username/password pair.
func loginScreenScenario(ctx context.Context, d *Driver) error {
	if err := d.AssertScreen(ctx, "login", 15*time.Second); err != nil {
		return fmt.Errorf("login-screen: login prompt not found: %w", err)
	}
	if err := d.VNCTypeString(ctx, "root"); err != nil {
		return err
	}
	if err := d.VNCSendKey(ctx, "ret"); err != nil {
		return err
	}
	return nil
}
