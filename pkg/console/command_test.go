package console

import (
	"strings"
	"testing"
)

func TestBuildAndExtractSentinelCommandRoundTrip(t *testing.T) {
	line, nonce := buildSentinelCommand("uname -a", GeneralTerm)

	if !strings.HasPrefix(line, "uname -a\r") {
		t.Fatalf("command line = %q, want prefix %q", line, "uname -a\r")
	}
	begin, end := sentinels(nonce)
	if !strings.Contains(line, begin) || !strings.Contains(line, end) {
		t.Fatalf("command line %q missing sentinels %q/%q", line, begin, end)
	}

	// Simulate a device with echo enabled: the entire written line (both
	// the command and the literal, unexecuted "echo BEG$?_end END" line)
	// is echoed back verbatim before either actually executes, then the
	// real command output and the real (expanded) sentinel line follow.
	echoedLine := strings.ReplaceAll(line, "\r", "\r\n")
	realOutput := "Linux devbox 6.1.0\r\n" + begin + "0_end" + end + "\r\n"
	region := echoedLine + realOutput

	result, err := extractSentinelOutput(region, nonce, true, GeneralTerm.EnterOutput())
	if err != nil {
		t.Fatalf("extractSentinelOutput returned error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if !strings.Contains(result.Stdout, "Linux devbox 6.1.0") {
		t.Errorf("Stdout = %q, want it to contain %q", result.Stdout, "Linux devbox 6.1.0")
	}
	if strings.Contains(result.Stdout, "uname -a") {
		t.Errorf("Stdout = %q, echoed command line should have been stripped", result.Stdout)
	}
	if strings.Contains(result.Stdout, "echo "+begin) {
		t.Errorf("Stdout = %q, echoed (unexecuted) sentinel-echo line should have been stripped", result.Stdout)
	}
}

func TestExtractSentinelOutputWithEchoIgnoresBogusFirstOccurrence(t *testing.T) {
	// A device that echoes input produces the sentinel pair twice: once
	// raw/unexecuted (as part of the echoed input), once for real. The
	// real occurrence — with $? actually expanded — must win, not the
	// first (literal, unexpanded) one.
	nonce := "abc123"
	begin, end := sentinels(nonce)
	echoedInput := "false\r\necho " + begin + "$?_end" + end + "\r\n"
	realOutput := "some output\r\n" + begin + "1_end" + end + "\r\n"
	region := echoedInput + realOutput

	result, err := extractSentinelOutput(region, nonce, true, "\r\n")
	if err != nil {
		t.Fatalf("extractSentinelOutput returned error: %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
	if !strings.Contains(result.Stdout, "some output") {
		t.Errorf("Stdout = %q, want it to contain %q", result.Stdout, "some output")
	}
}

func TestExtractSentinelOutputWithoutEchoUsesSingleOccurrence(t *testing.T) {
	nonce := "xyz789"
	begin, end := sentinels(nonce)
	region := "some output\r\n" + begin + "2_end" + end + "\r\n"

	result, err := extractSentinelOutput(region, nonce, false, "")
	if err != nil {
		t.Fatalf("extractSentinelOutput returned error: %v", err)
	}
	if result.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", result.ExitCode)
	}
}

func TestExtractSentinelOutputMissingEndSentinelErrors(t *testing.T) {
	_, err := extractSentinelOutput("no sentinels here", "nonce", true, "\r\n")
	if err == nil {
		t.Fatal("expected an error when the end sentinel is absent")
	}
}

func TestExtractSentinelOutputMalformedExitCodeErrors(t *testing.T) {
	nonce := "xyz"
	begin, end := sentinels(nonce)
	echoed := begin + "not_a_number_end" + end
	_, err := extractSentinelOutput(echoed, nonce, false, "")
	if err == nil {
		t.Fatal("expected an error when the exit status literal is not an integer")
	}
}
