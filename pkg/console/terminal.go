package console

import "regexp"

// ansiSequence matches ANSI/VT100 escape sequences: CSI (ESC '[' ... final
// byte), OSC (ESC ']' ... BEL or ESC '\'), and bare two-character escapes.
// Mirrors the escape-stripping behavior of terminal emulators without
// attempting full screen emulation.
var ansiSequence = regexp.MustCompile("\x1b(?:\\[[0-9;?]*[a-zA-Z]|\\][^\x07\x1b]*(?:\x07|\x1b\\\\)|[()][AB012]|[=>])")

// StripANSI removes ANSI escape sequences from s, leaving other control
// characters (such as \n, \r, and BEL) untouched — they carry meaning in
// the sentinel protocol and pattern matching and must not be filtered.
func StripANSI(s string) string {
	return ansiSequence.ReplaceAllString(s, "")
}

// Term describes how a console session frames input and decodes output
// bytes into text for pattern matching. Different SUT terminal emulation
// modes (plain serial getty, VT100, xterm) agree on most of this; the
// only practical difference this driver needs is how much screen-control
// noise parse_and_strip removes.
type Term interface {
	// EnterInput is appended to writes that submit a line (Enter key).
	EnterInput() string
	// EnterOutput is the line-ending the device is expected to echo back.
	EnterOutput() string
	// Linebreak is the separator used when scanning decoded text for
	// sentinel boundaries; defaults to EnterOutput.
	Linebreak() string
	// ParseAndStrip decodes raw bytes to text suitable for pattern
	// matching, stripping terminal escape sequences.
	ParseAndStrip(raw []byte) string
}

// generalTerm is the default terminal mode: CR for input, CRLF for
// output, and ANSI-escape stripping with no further screen emulation.
type generalTerm struct{}

func (generalTerm) EnterInput() string  { return "\r" }
func (generalTerm) EnterOutput() string { return "\r\n" }
func (generalTerm) Linebreak() string   { return "\r\n" }
func (generalTerm) ParseAndStrip(raw []byte) string {
	return StripANSI(string(raw))
}

// GeneralTerm is the default Term implementation, suitable for plain
// serial gettys and most SSH shells.
var GeneralTerm Term = generalTerm{}

// VT102Term and XtermTerm behave identically to GeneralTerm for this
// driver's purposes: both emulations only affect cursor/screen control
// sequences, which parse_and_strip already discards, so no specialized
// decoding is needed beyond ANSI stripping.
var (
	VT102Term Term = generalTerm{}
	XtermTerm Term = generalTerm{}
)

// ParseTerm resolves a configured terminal mode name to a Term.
func ParseTerm(name string) Term {
	switch name {
	case "vt102":
		return VT102Term
	case "xterm":
		return XtermTerm
	default:
		return GeneralTerm
	}
}
