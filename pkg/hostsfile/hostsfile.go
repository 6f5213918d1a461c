// Package hostsfile maintains the loopback alias block sitedock owns
// inside the system hosts table. The block is delimited by fixed
// sentinel comments; everything outside it is left untouched.
package hostsfile

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sitedock/sitedock/pkg/escalate"
	"github.com/sitedock/sitedock/pkg/registry"
)

const (
	BeginMarker = "# sitedock begin"
	EndMarker   = "# sitedock end"
)

// Path is the system hosts table location.
var Path = "/etc/hosts"

// Desired computes the alias lines for the currently served sites:
// one `127.0.0.1 <domain>` per served custom-domain site (0 or 1 in
// practice, but not assumed).
func Desired(sites []registry.Site) []string {
	var lines []string
	for _, s := range sites {
		if s.Served && s.Mode == registry.ModeCustomDomain && s.Domain != "" {
			lines = append(lines, "127.0.0.1 "+s.Domain)
		}
	}
	return lines
}

// Render produces the new hosts-file content: the previous sitedock
// block is stripped, and the desired block (markers included) appended
// when non-empty. Pure, so the whole rewrite is testable.
func Render(current string, lines []string) string {
	out := strip(current)
	if len(lines) == 0 {
		return out
	}

	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	out += BeginMarker + "\n"
	out += strings.Join(lines, "\n") + "\n"
	out += EndMarker + "\n"
	return out
}

// strip removes any existing sentinel-delimited block, markers and all.
func strip(content string) string {
	var kept []string
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == BeginMarker {
			inBlock = true
			continue
		}
		if trimmed == EndMarker {
			inBlock = false
			continue
		}
		if !inBlock {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Sync rewrites the hosts table through a single escalated command so
// no intermediate state is observable. When the content already
// matches, no prompt is shown at all.
func Sync(ctx context.Context, runner escalate.Runner, sites []registry.Site) error {
	current, err := os.ReadFile(Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", Path, err)
	}

	next := Render(string(current), Desired(sites))
	if next == string(current) {
		return nil
	}

	// Stage the new content in a user-writable temp file; only the
	// final copy into place needs elevation.
	tmp, err := os.CreateTemp("", "sitedock-hosts-*")
	if err != nil {
		return fmt.Errorf("failed to stage hosts rewrite: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(next); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to stage hosts rewrite: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to stage hosts rewrite: %w", err)
	}

	command := fmt.Sprintf("install -m 0644 %s %s", shellQuote(tmpName), shellQuote(Path))
	result, err := runner.Run(ctx, command)
	if err != nil {
		return err
	}
	if !result.Ok() {
		return &escalate.Error{Command: command, Result: result}
	}
	return nil
}

// shellQuote single-quotes a path for embedding in a shell command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
