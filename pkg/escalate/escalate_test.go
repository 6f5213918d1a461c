package escalate

import (
	"strings"
	"testing"
)

func TestAppleScriptString_QuotesShellCommand(t *testing.T) {
	cmd := `cp "/tmp/a b" /etc/hosts && echo done`
	quoted := appleScriptString(cmd)

	if !strings.HasPrefix(quoted, `"`) || !strings.HasSuffix(quoted, `"`) {
		t.Errorf("Quoted command should be wrapped in double quotes: %s", quoted)
	}
	if !strings.Contains(quoted, `\"/tmp/a b\"`) {
		t.Errorf("Inner quotes should be escaped: %s", quoted)
	}
}

func TestAppleScriptString_EscapesBackslashes(t *testing.T) {
	quoted := appleScriptString(`printf 'a\nb'`)
	if !strings.Contains(quoted, `a\\nb`) {
		t.Errorf("Backslashes should be doubled: %s", quoted)
	}
}

func TestResult_Ok(t *testing.T) {
	if !(Result{ExitCode: 0}).Ok() {
		t.Error("Exit 0 should be ok")
	}
	if (Result{ExitCode: 1}).Ok() {
		t.Error("Non-zero exit should not be ok")
	}
}

func TestError_SurfacesRawDiagnostics(t *testing.T) {
	err := &Error{
		Command: "launchctl bootstrap system /tmp/x.plist",
		Result:  Result{ExitCode: 5, Stderr: "Bootstrap failed: 5: Input/output error\n"},
	}
	msg := err.Error()
	if !strings.Contains(msg, "exit 5") {
		t.Errorf("Message should carry the exit code: %s", msg)
	}
	if !strings.Contains(msg, "Bootstrap failed") {
		t.Errorf("Message should carry raw stderr: %s", msg)
	}
}

func TestError_FallsBackToStdout(t *testing.T) {
	err := &Error{Result: Result{ExitCode: 1, Stdout: "User canceled."}}
	if !strings.Contains(err.Error(), "User canceled.") {
		t.Errorf("Message should fall back to stdout: %s", err.Error())
	}
}
