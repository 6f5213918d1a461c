package proxy

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	launchdLabel = "com.sitedock.proxy"
	launchdPath  = "/Library/LaunchDaemons/com.sitedock.proxy.plist"
)

// launchdManager runs the proxy as a launchd system daemon.
type launchdManager struct{}

func (m *launchdManager) Identifier() string     { return launchdLabel }
func (m *launchdManager) DescriptorPath() string { return launchdPath }

func (m *launchdManager) Render(spec ServiceSpec) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n")
	b.WriteString(`<plist version="1.0">` + "\n<dict>\n")

	fmt.Fprintf(&b, "\t<key>Label</key>\n\t<string>%s</string>\n", launchdLabel)

	b.WriteString("\t<key>ProgramArguments</key>\n\t<array>\n")
	fmt.Fprintf(&b, "\t\t<string>%s</string>\n", spec.Program)
	for _, arg := range spec.Args {
		fmt.Fprintf(&b, "\t\t<string>%s</string>\n", arg)
	}
	b.WriteString("\t</array>\n")

	if spec.WorkingDir != "" {
		fmt.Fprintf(&b, "\t<key>WorkingDirectory</key>\n\t<string>%s</string>\n", spec.WorkingDir)
	}

	if len(spec.Env) > 0 {
		b.WriteString("\t<key>EnvironmentVariables</key>\n\t<dict>\n")
		for _, k := range spec.envKeys() {
			fmt.Fprintf(&b, "\t\t<key>%s</key>\n\t\t<string>%s</string>\n", k, spec.Env[k])
		}
		b.WriteString("\t</dict>\n")
	}

	// Run at load and keep alive: the proxy must survive reboots and
	// crashes without user interaction.
	b.WriteString("\t<key>RunAtLoad</key>\n\t<true/>\n")
	b.WriteString("\t<key>KeepAlive</key>\n\t<true/>\n")

	if spec.StdoutPath != "" {
		fmt.Fprintf(&b, "\t<key>StandardOutPath</key>\n\t<string>%s</string>\n", spec.StdoutPath)
	}
	if spec.StderrPath != "" {
		fmt.Fprintf(&b, "\t<key>StandardErrorPath</key>\n\t<string>%s</string>\n", spec.StderrPath)
	}

	b.WriteString("</dict>\n</plist>\n")
	return b.String()
}

func (m *launchdManager) InstallCommand(stagedPath string, spec ServiceSpec) string {
	logDir := filepath.Dir(spec.StderrPath)
	steps := []string{
		fmt.Sprintf("mkdir -p '%s'", logDir),
		fmt.Sprintf("touch '%s' '%s'", spec.StdoutPath, spec.StderrPath),
		fmt.Sprintf("chmod 644 '%s' '%s'", spec.StdoutPath, spec.StderrPath),
		fmt.Sprintf("install -m 0644 -o root -g wheel '%s' '%s'", stagedPath, launchdPath),
		fmt.Sprintf("launchctl bootout system/%s 2>/dev/null || true", launchdLabel),
		fmt.Sprintf("launchctl bootstrap system '%s'", launchdPath),
		fmt.Sprintf("launchctl enable system/%s", launchdLabel),
		fmt.Sprintf("launchctl kickstart -k system/%s", launchdLabel),
	}
	return strings.Join(steps, " && ")
}

func (m *launchdManager) UnloadCommand() string {
	// Already-absent service counts as success.
	return fmt.Sprintf("launchctl bootout system/%s 2>/dev/null || true; rm -f '%s'", launchdLabel, launchdPath)
}

func (m *launchdManager) IsRunning(ctx context.Context) bool {
	out, err := exec.CommandContext(ctx, "launchctl", "print", "system/"+launchdLabel).Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "state = running")
}

func (m *launchdManager) IsInstalled(ctx context.Context) bool {
	// launchctl print exits zero whenever the job is loaded, running
	// or not, even after its plist was deleted by hand.
	return exec.CommandContext(ctx, "launchctl", "print", "system/"+launchdLabel).Run() == nil
}
