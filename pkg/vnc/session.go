package vnc

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"autotest/pkg/vnc/rfb"
)

const (
	keepaliveTime  = 30 * time.Second
	defaultTimeout = 30 * time.Second
)

// Endpoint describes how to reach a VNC server.
type Endpoint struct {
	Host     string
	Port     int
	Password string
}

// transportConn is the minimal surface Session needs from its underlying
// connection. A net.Conn satisfies it directly; a WebSocket-carried RFB
// stream satisfies it via the adapter in websocket.go.
type transportConn interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadDeadline(t time.Time) error
}

// Session owns a connection to a VNC server (native TCP or WebSocket): it
// performs the RFB handshake, keeps a live Framebuffer updated from a
// background read loop, and exposes input injection (pointer and key
// events).
//
// Connect must be followed by Run (in its own goroutine) before any
// FramebufferUpdateRequest makes progress.
type Session struct {
	conn      transportConn
	handshake *rfb.Handshake
	pixelFmt  rfb.PixelFormat

	fb *Framebuffer

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// Connect dials the VNC server, performs the RFB handshake and
// authentication, and requests true-color pixel data.
//
// Grounded on the teacher's NativeTransport.Authenticate flow: version
// negotiation, security negotiation (preferring VNC auth when a password
// is set), then ClientInit/ServerInit, generalized here to also request
// SetPixelFormat/SetEncodings and decode subsequent FramebufferUpdates.
func Connect(ctx context.Context, ep Endpoint) (*Session, error) {
	if ep.Port == 0 {
		ep.Port = 5900
	}
	address := fmt.Sprintf("%s:%d", ep.Host, ep.Port)

	dialer := &net.Dialer{Timeout: defaultTimeout, KeepAlive: keepaliveTime}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to VNC server at %s: %w", address, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(keepaliveTime)
	}

	conn.SetDeadline(time.Now().Add(defaultTimeout))
	defer conn.SetDeadline(time.Time{})

	s, err := negotiate(conn, ep, address)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// negotiate runs the RFB handshake (version, security, ClientInit/ServerInit,
// pixel format, encodings) over an already-open transportConn and returns a
// ready Session. Shared by Connect (native TCP) and ConnectWS (WebSocket).
func negotiate(conn transportConn, ep Endpoint, logAddr string) (*Session, error) {
	handshake := rfb.NewHandshake(conn)

	version, err := handshake.NegotiateVersion()
	if err != nil {
		return nil, fmt.Errorf("version negotiation failed: %w", err)
	}
	log.Debug().Str("rfb_version", version.String()).Str("addr", logAddr).Msg("vnc: negotiated protocol version")

	preferVNCAuth := ep.Password != ""
	securityType, err := handshake.NegotiateSecurityType(preferVNCAuth)
	if err != nil {
		return nil, fmt.Errorf("security negotiation failed: %w", err)
	}

	switch securityType {
	case rfb.SecurityTypeNone:
		if version.Minor >= 8 {
			if err := handshake.ReadSecurityResult(); err != nil {
				return nil, fmt.Errorf("security result check failed: %w", err)
			}
		}
	case rfb.SecurityTypeVNCAuth:
		if ep.Password == "" {
			return nil, fmt.Errorf("server requires VNC authentication but no password was configured")
		}
		authenticator := rfb.NewAuthenticator(conn)
		if err := authenticator.PerformVNCAuth(ep.Password); err != nil {
			return nil, fmt.Errorf("VNC authentication failed: %w", err)
		}
		if err := handshake.ReadSecurityResult(); err != nil {
			return nil, fmt.Errorf("authentication rejected: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported security type: %s", securityType)
	}

	if err := handshake.SendClientInit(true); err != nil {
		return nil, fmt.Errorf("ClientInit failed: %w", err)
	}

	serverInit, err := handshake.ReadServerInit()
	if err != nil {
		return nil, fmt.Errorf("failed to read ServerInit: %w", err)
	}

	if err := handshake.SendSetPixelFormat(rfb.TrueColorRGB32); err != nil {
		return nil, fmt.Errorf("failed to set pixel format: %w", err)
	}
	if err := handshake.SendSetEncodings([]int32{rfb.EncodingRaw, rfb.EncodingDesktopSize}); err != nil {
		return nil, fmt.Errorf("failed to set encodings: %w", err)
	}

	log.Info().
		Str("addr", logAddr).
		Int("width", int(serverInit.Width)).
		Int("height", int(serverInit.Height)).
		Str("name", serverInit.Name).
		Msg("vnc: session established")

	s := &Session{
		conn:      conn,
		handshake: handshake,
		pixelFmt:  rfb.TrueColorRGB32,
		fb:        NewFramebuffer(int(serverInit.Width), int(serverInit.Height)),
		done:      make(chan struct{}),
	}

	if err := s.requestUpdate(false); err != nil {
		return nil, fmt.Errorf("failed to request initial framebuffer update: %w", err)
	}

	return s, nil
}

// Framebuffer returns the session's live, continuously updated framebuffer.
func (s *Session) Framebuffer() *Framebuffer { return s.fb }

// Run drives the read loop, decoding FramebufferUpdate messages until the
// connection closes or ctx is canceled. It should be started in its own
// goroutine immediately after Connect succeeds.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
		msgType, err := s.handshake.ReadServerMessageType()
		if err != nil {
			return fmt.Errorf("vnc read loop: %w", err)
		}

		switch msgType {
		case rfb.MessageFramebufferUpdate:
			update, err := s.handshake.ReadFramebufferUpdate(int(s.pixelFmt.BitsPerPixel) / 8)
			if err != nil {
				return fmt.Errorf("vnc: failed to decode framebuffer update: %w", err)
			}
			s.applyUpdate(update)
			if err := s.requestUpdate(true); err != nil {
				return fmt.Errorf("vnc: failed to request next update: %w", err)
			}
		case rfb.MessageBell:
			// no payload, nothing to do
		case rfb.MessageServerCutText:
			if err := s.drainServerCutText(); err != nil {
				return err
			}
		case rfb.MessageSetColourMapEntry:
			if err := s.drainColourMapEntry(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("vnc: unexpected server message type %d", msgType)
		}
	}
}

func (s *Session) applyUpdate(update *rfb.FramebufferUpdate) {
	for _, rect := range update.Rectangles {
		switch rect.Encoding {
		case rfb.EncodingRaw:
			rgb := decodeTrueColorPixels(s.pixelFmt, rect.Pixels, int(rect.Width), int(rect.Height))
			s.fb.ApplyRect(int(rect.X), int(rect.Y), int(rect.Width), int(rect.Height), rgb)
		case rfb.EncodingDesktopSize:
			s.fb.Resize(int(rect.Width), int(rect.Height))
		}
	}
}

func (s *Session) drainServerCutText() error {
	reader := rfb.NewProtocolReader(s.conn)
	if _, err := reader.ReadBytes(3); err != nil {
		return fmt.Errorf("vnc: failed to read ServerCutText padding: %w", err)
	}
	if _, err := reader.ReadString(); err != nil {
		return fmt.Errorf("vnc: failed to read ServerCutText body: %w", err)
	}
	return nil
}

func (s *Session) drainColourMapEntry() error {
	reader := rfb.NewProtocolReader(s.conn)
	if _, err := reader.ReadBytes(1); err != nil {
		return err
	}
	first, err := reader.ReadU16()
	if err != nil {
		return err
	}
	count, err := reader.ReadU16()
	if err != nil {
		return err
	}
	_ = first
	_, err = reader.ReadBytes(int(count) * 6)
	return err
}

// requestUpdate asks the server for another framebuffer update covering
// the full screen.
func (s *Session) requestUpdate(incremental bool) error {
	width, height := s.fb.Size()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.handshake.SendFramebufferUpdateRequest(incremental, 0, 0, uint16(width), uint16(height))
}

// Refresh forces a non-incremental framebuffer update request.
func (s *Session) Refresh() error {
	return s.requestUpdate(false)
}

// SendPointerEvent injects a pointer (mouse) event. buttonMask bit 0 is
// the left button, bit 1 middle, bit 2 right.
func (s *Session) SendPointerEvent(buttonMask uint8, x, y int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return sendPointerEvent(s.handshake, buttonMask, uint16(x), uint16(y))
}

// SendKeyEvent injects a key press or release for the given X11 keysym.
func (s *Session) SendKeyEvent(keysym uint32, down bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return sendKeyEvent(s.handshake, keysym, down)
}

// Close shuts down the underlying connection. Safe to call multiple times.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// Done is closed once the read loop (Run) returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
