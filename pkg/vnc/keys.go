package vnc

// X11 keysym constants used for KeyEvent messages. VNC servers expect
// X11 keysyms rather than raw scancodes (RFC 6143 Section 7.5.4).
const (
	KeyBackspace uint32 = 0xff08
	KeyTab       uint32 = 0xff09
	KeyReturn    uint32 = 0xff0d
	KeyEscape    uint32 = 0xff1b
	KeyInsert    uint32 = 0xff63
	KeyDelete    uint32 = 0xffff
	KeyHome      uint32 = 0xff50
	KeyEnd       uint32 = 0xff57
	KeyPageUp    uint32 = 0xff55
	KeyPageDown  uint32 = 0xff56
	KeyLeft      uint32 = 0xff51
	KeyUp        uint32 = 0xff52
	KeyRight     uint32 = 0xff53
	KeyDown      uint32 = 0xff54
	KeyF1        uint32 = 0xffbe
	KeyShiftL    uint32 = 0xffe1
	KeyControlL  uint32 = 0xffe3
	KeyAltL      uint32 = 0xffe9
	KeySuperL    uint32 = 0xffeb
	KeySpace     uint32 = 0x0020
)

// namedKeys maps the symbolic key names accepted by the driver's
// send_key operation (e.g. "ctrl", "alt", "ret", "esc") to keysyms.
var namedKeys = map[string]uint32{
	"backspace": KeyBackspace,
	"tab":       KeyTab,
	"ret":       KeyReturn,
	"enter":     KeyReturn,
	"esc":       KeyEscape,
	"ins":       KeyInsert,
	"delete":    KeyDelete,
	"home":      KeyHome,
	"end":       KeyEnd,
	"pgup":      KeyPageUp,
	"pgdn":      KeyPageDown,
	"left":      KeyLeft,
	"up":        KeyUp,
	"right":     KeyRight,
	"down":      KeyDown,
	"f1":        KeyF1,
	"ctrl":      KeyControlL,
	"alt":       KeyAltL,
	"shift":     KeyShiftL,
	"spc":       KeySpace,
}

// KeysymForRune returns the X11 keysym for a printable ASCII rune.
// Keysyms for the printable ASCII range are numerically identical to
// the character's code point (RFC 6143 / X11 keysymdef.h "Latin-1" set).
func KeysymForRune(r rune) (uint32, bool) {
	if r >= 0x20 && r <= 0x7e {
		return uint32(r), true
	}
	return 0, false
}

// KeysymForName resolves a named key (as used by send_key/wait and
// similar operations) to its keysym.
func KeysymForName(name string) (uint32, bool) {
	k, ok := namedKeys[name]
	return k, ok
}
