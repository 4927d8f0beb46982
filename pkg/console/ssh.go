package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// SSHConfig configures an SSH console transport.
type SSHConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	PrivateKey string // PEM-encoded private key; preferred over Password when set
	Timeout    time.Duration
}

// SSHTransport drives a single SSH connection with one long-lived global
// interactive shell channel (for Write/RunCommand) plus the ability to
// open additional one-shot sessions for SeparateRun.
//
// Grounded on golang.org/x/crypto/ssh usage in the pack's nya3jp-tast
// host-ssh client: ssh.Dial followed by RequestPty+Shell for the
// interactive session, and NewSession+Run (stdout captured) for isolated runs.
// Host-key verification accepts any key on first connect, documented as
// the same accept-unknown policy the driver's spec calls for.
type SSHTransport struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader

	closed bool
}

// DialSSH connects and opens the global interactive shell channel.
func DialSSH(ctx context.Context, cfg SSHConfig) (*SSHTransport, error) {
	authMethods, err := sshAuthMethods(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	address := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("ssh: failed to dial %s: %w", address, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, clientCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh: handshake with %s failed: %w", address, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh: failed to open global session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 115200,
		ssh.TTY_OP_OSPEED: 115200,
	}
	if err := session.RequestPty("xterm", 40, 200, modes); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("ssh: failed to request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("ssh: failed to open stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("ssh: failed to open stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("ssh: failed to start shell: %w", err)
	}

	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("ssh: global shell session established")

	return &SSHTransport{
		client:  client,
		session: session,
		stdin:   stdin,
		stdout:  stdout,
	}, nil
}

func sshAuthMethods(cfg SSHConfig) ([]ssh.AuthMethod, error) {
	if cfg.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("ssh: failed to parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return []ssh.AuthMethod{ssh.Password(cfg.Password)}, nil
}

// Read blocks until data is available on the global shell's stdout.
func (t *SSHTransport) Read(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 4096)
	type result struct {
		n   int
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		n, err := t.stdout.Read(buf)
		resCh <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resCh:
		if r.err != nil {
			return nil, fmt.Errorf("ssh read error: %w", r.err)
		}
		return buf[:r.n], nil
	}
}

// Write sends bytes verbatim to the global shell's stdin.
func (t *SSHTransport) Write(ctx context.Context, data []byte) error {
	if _, err := t.stdin.Write(data); err != nil {
		return fmt.Errorf("ssh write error: %w", err)
	}
	return nil
}

// SeparateRun opens a fresh SSH session channel, runs cmd non-interactively,
// and returns its stdout (stderr is not captured) and exit status directly from the
// channel's end-of-stream, independent of the global shell's state.
func (t *SSHTransport) SeparateRun(ctx context.Context, cmd string) (CommandResult, error) {
	session, err := t.client.NewSession()
	if err != nil {
		return CommandResult{}, fmt.Errorf("ssh: failed to open separate session: %w", err)
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &stdout

	type done struct{ err error }
	doneCh := make(chan done, 1)
	go func() {
		doneCh <- done{session.Run(cmd)}
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return CommandResult{}, ctx.Err()
	case d := <-doneCh:
		exitCode := 0
		if d.err != nil {
			if exitErr, ok := d.err.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
			} else {
				return CommandResult{}, fmt.Errorf("ssh: separate run failed: %w", d.err)
			}
		}
		return CommandResult{Stdout: stdout.String(), ExitCode: exitCode}, nil
	}
}

// Close closes the global session and the underlying SSH client.
func (t *SSHTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.session.Close()
	return t.client.Close()
}
