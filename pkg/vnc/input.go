package vnc

import (
	"fmt"

	"autotest/pkg/vnc/rfb"
)

// Mouse button mask bits for PointerEvent (RFC 6143 Section 7.5.5).
const (
	ButtonLeft   uint8 = 1 << 0
	ButtonMiddle uint8 = 1 << 1
	ButtonRight  uint8 = 1 << 2
)

// sendPointerEvent writes a raw PointerEvent message: msg-type(1) +
// button-mask(1) + x(2) + y(2).
func sendPointerEvent(h *rfb.Handshake, buttonMask uint8, x, y uint16) error {
	if err := h.WriteRawU8(rfb.MessagePointerEvent); err != nil {
		return fmt.Errorf("failed to send PointerEvent header: %w", err)
	}
	if err := h.WriteRawU8(buttonMask); err != nil {
		return fmt.Errorf("failed to send button mask: %w", err)
	}
	if err := h.WriteRawU16(x); err != nil {
		return fmt.Errorf("failed to send pointer x: %w", err)
	}
	if err := h.WriteRawU16(y); err != nil {
		return fmt.Errorf("failed to send pointer y: %w", err)
	}
	return nil
}

// sendKeyEvent writes a raw KeyEvent message: msg-type(1) + down-flag(1) +
// padding(2) + keysym(4).
func sendKeyEvent(h *rfb.Handshake, keysym uint32, down bool) error {
	if err := h.WriteRawU8(rfb.MessageKeyEvent); err != nil {
		return fmt.Errorf("failed to send KeyEvent header: %w", err)
	}
	var downFlag uint8
	if down {
		downFlag = 1
	}
	if err := h.WriteRawU8(downFlag); err != nil {
		return fmt.Errorf("failed to send key down-flag: %w", err)
	}
	if err := h.WriteRawU16(0); err != nil {
		return fmt.Errorf("failed to send KeyEvent padding: %w", err)
	}
	if err := h.WriteRawU32(keysym); err != nil {
		return fmt.Errorf("failed to send keysym: %w", err)
	}
	return nil
}
