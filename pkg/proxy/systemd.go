package proxy

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	systemdUnit = "sitedock-proxy.service"
	systemdPath = "/etc/systemd/system/sitedock-proxy.service"
)

// systemdManager runs the proxy as a systemd system service. Enabled
// units start at boot; Restart=always matches launchd's keep-alive.
type systemdManager struct{}

func (m *systemdManager) Identifier() string     { return systemdUnit }
func (m *systemdManager) DescriptorPath() string { return systemdPath }

func (m *systemdManager) Render(spec ServiceSpec) string {
	var b strings.Builder
	b.WriteString("[Unit]\n")
	b.WriteString("Description=sitedock reverse proxy\n")
	b.WriteString("After=network.target\n\n")

	b.WriteString("[Service]\n")
	b.WriteString("Type=simple\n")
	fmt.Fprintf(&b, "ExecStart=%s %s\n", spec.Program, strings.Join(spec.Args, " "))
	if spec.WorkingDir != "" {
		fmt.Fprintf(&b, "WorkingDirectory=%s\n", spec.WorkingDir)
	}
	for _, k := range spec.envKeys() {
		fmt.Fprintf(&b, "Environment=%s=%s\n", k, spec.Env[k])
	}
	b.WriteString("Restart=always\n")
	b.WriteString("RestartSec=5\n")
	if spec.StdoutPath != "" {
		fmt.Fprintf(&b, "StandardOutput=append:%s\n", spec.StdoutPath)
	}
	if spec.StderrPath != "" {
		fmt.Fprintf(&b, "StandardError=append:%s\n", spec.StderrPath)
	}
	b.WriteString("\n[Install]\n")
	b.WriteString("WantedBy=multi-user.target\n")
	return b.String()
}

func (m *systemdManager) InstallCommand(stagedPath string, spec ServiceSpec) string {
	logDir := filepath.Dir(spec.StderrPath)
	steps := []string{
		fmt.Sprintf("mkdir -p '%s'", logDir),
		fmt.Sprintf("touch '%s' '%s'", spec.StdoutPath, spec.StderrPath),
		fmt.Sprintf("chmod 644 '%s' '%s'", spec.StdoutPath, spec.StderrPath),
		fmt.Sprintf("install -m 0644 '%s' '%s'", stagedPath, systemdPath),
		"systemctl daemon-reload",
		fmt.Sprintf("systemctl enable %s", systemdUnit),
		fmt.Sprintf("systemctl restart %s", systemdUnit),
	}
	return strings.Join(steps, " && ")
}

func (m *systemdManager) UnloadCommand() string {
	return fmt.Sprintf("systemctl disable --now %s 2>/dev/null || true; rm -f '%s'; systemctl daemon-reload", systemdUnit, systemdPath)
}

func (m *systemdManager) IsRunning(ctx context.Context) bool {
	err := exec.CommandContext(ctx, "systemctl", "is-active", "--quiet", systemdUnit).Run()
	return err == nil
}

func (m *systemdManager) IsInstalled(ctx context.Context) bool {
	// LoadState stays "loaded" until a daemon-reload, even when the
	// unit file was deleted by hand.
	out, err := exec.CommandContext(ctx, "systemctl", "show", systemdUnit, "--property=LoadState", "--value").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "loaded"
}
