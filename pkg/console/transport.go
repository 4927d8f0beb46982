package console

import "context"

// Transport is the byte-stream abstraction shared by serial and SSH
// console sessions. A Worker drives one Transport via a read loop that
// appends to History and a mailbox that serializes writes.
type Transport interface {
	// Read blocks until at least one byte is available or ctx is done.
	Read(ctx context.Context) ([]byte, error)

	// Write sends bytes verbatim.
	Write(ctx context.Context, data []byte) error

	// Close releases the underlying connection.
	Close() error
}

// SeparateRunner is implemented by transports that can execute a command
// on a fresh, non-interactive channel independent of the global shell
// session (SSH only; serial has no equivalent).
type SeparateRunner interface {
	SeparateRun(ctx context.Context, cmd string) (CommandResult, error)
}
