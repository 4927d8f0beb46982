package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// CommandResult is the outcome of RunCommand: the command's decoded
// stdout and its exit status.
type CommandResult struct {
	Stdout   string
	ExitCode int
}

// newNonce generates a short alphanumeric token, derived from a uuid4,
// used to build sentinels that are vanishingly unlikely to appear in
// unrelated command output.
func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// sentinels returns the begin/end bracketing markers for nonce n, in the
// two-sentinel form that both brackets the status line and tolerates
// embedded control characters from device echo.
func sentinels(nonce string) (begin, end string) {
	return fmt.Sprintf("__AUTOTEST_%s_BEG__", nonce), fmt.Sprintf("__AUTOTEST_%s_END__", nonce)
}

// buildSentinelCommand composes the line written to the console for
// RunCommand: the user's command, then an echo of the exit status
// bracketed by the two sentinels.
func buildSentinelCommand(cmd string, term Term) (line, nonce string) {
	nonce = newNonce()
	begin, end := sentinels(nonce)
	line = fmt.Sprintf("%s%secho %s$?_end%s%s", cmd, term.EnterInput(), begin, end, term.EnterInput())
	return line, nonce
}

// extractSentinelOutput implements step 5-6 of the sentinel protocol:
// given the decoded text between start_off and the END sentinel, locate
// the BEG/END pair that followed real execution (as opposed to the
// device's echo of the raw input), split stdout from the exit-code
// literal, and strip the echoed command line.
//
// When echoExpected is true, the device echoes the entire written line
// back verbatim — including the literal, unexpanded "BEG...$?_end...END"
// text of the sentinel-echo command itself — before either line actually
// executes. That gives a first, bogus BEG/END occurrence with "$?" still
// unexpanded; the real occurrence, with the exit code actually expanded,
// follows it once the shell has executed both lines. The first END marks
// the end of that raw echoed input, so everything before and including it
// is skipped before searching for the real sentinel pair.
func extractSentinelOutput(region string, nonce string, echoExpected bool, enterOutput string) (CommandResult, error) {
	begin, end := sentinels(nonce)

	if echoExpected {
		echoEndIdx := strings.Index(region, end)
		if echoEndIdx < 0 {
			return CommandResult{}, fmt.Errorf("console: end sentinel not found in captured region")
		}
		region = region[echoEndIdx+len(end):]
		region = strings.TrimPrefix(region, enterOutput)
	}

	endIdx := strings.Index(region, end)
	if endIdx < 0 {
		return CommandResult{}, fmt.Errorf("console: end sentinel not found in captured region")
	}
	window := region[:endIdx]

	beginIdx := strings.LastIndex(window, begin)
	if beginIdx < 0 {
		return CommandResult{}, fmt.Errorf("console: begin sentinel not found in captured region")
	}

	stdout := window[:beginIdx]
	statusLiteral := window[beginIdx+len(begin):]
	statusLiteral = strings.TrimSuffix(statusLiteral, "_end")

	stdout = trimTrailingPromptLine(stdout)
	stdout = normalizeLineEndings(stdout)

	code, err := strconv.Atoi(strings.TrimSpace(statusLiteral))
	if err != nil {
		return CommandResult{}, fmt.Errorf("console: exit status %q is not an integer: %w", statusLiteral, err)
	}

	return CommandResult{Stdout: stdout, ExitCode: code}, nil
}

// trimTrailingPromptLine drops a final unterminated line (a shell prompt
// with no following newline), which is not part of the command's output.
func trimTrailingPromptLine(s string) string {
	if s == "" {
		return s
	}
	lastNL := strings.LastIndexAny(s, "\r\n")
	if lastNL == len(s)-1 {
		return s
	}
	if lastNL < 0 {
		return ""
	}
	return s[:lastNL+1]
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
