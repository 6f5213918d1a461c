package proxy

import (
	"strings"
	"testing"
)

func testSpec() ServiceSpec {
	return ServiceSpec{
		Program:    "/usr/local/bin/caddy",
		Args:       []string{"run", "--config", "/home/dev/.sitedock/Caddyfile"},
		WorkingDir: "/home/dev/.sitedock",
		Env:        map[string]string{"HOME": "/home/dev", "XDG_DATA_HOME": "/home/dev/.local/share"},
		StdoutPath: "/home/dev/.sitedock/logs/access.log",
		StderrPath: "/home/dev/.sitedock/logs/error.log",
	}
}

func TestLaunchdRender(t *testing.T) {
	m := &launchdManager{}
	plist := m.Render(testSpec())

	for _, want := range []string{
		"<string>com.sitedock.proxy</string>",
		"<string>/usr/local/bin/caddy</string>",
		"<string>--config</string>",
		"<key>RunAtLoad</key>\n\t<true/>",
		"<key>KeepAlive</key>\n\t<true/>",
		"<key>WorkingDirectory</key>",
		"<key>StandardErrorPath</key>",
	} {
		if !strings.Contains(plist, want) {
			t.Errorf("Plist missing %q:\n%s", want, plist)
		}
	}
}

func TestLaunchdRender_Deterministic(t *testing.T) {
	m := &launchdManager{}
	if m.Render(testSpec()) != m.Render(testSpec()) {
		t.Error("Descriptor rendering must be deterministic (env keys sorted)")
	}
}

func TestLaunchdInstallCommand_SingleComposedPipeline(t *testing.T) {
	m := &launchdManager{}
	cmd := m.InstallCommand("/tmp/staged.plist", testSpec())

	for _, want := range []string{
		"mkdir -p",
		"touch",
		"install -m 0644 -o root -g wheel '/tmp/staged.plist'",
		"launchctl bootout system/com.sitedock.proxy",
		"launchctl bootstrap system",
		"launchctl enable system/com.sitedock.proxy",
		"launchctl kickstart -k system/com.sitedock.proxy",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("Install command missing %q:\n%s", want, cmd)
		}
	}
	// Unload-if-present must tolerate absence inside the pipeline.
	if !strings.Contains(cmd, "|| true") {
		t.Error("Bootout step must tolerate an absent service")
	}
}

func TestLaunchdUnloadCommand_TolerantOfAbsence(t *testing.T) {
	m := &launchdManager{}
	cmd := m.UnloadCommand()
	if !strings.Contains(cmd, "|| true") {
		t.Errorf("Unload must treat already-absent as success: %s", cmd)
	}
	if !strings.Contains(cmd, "rm -f") {
		t.Errorf("Unload should remove the descriptor: %s", cmd)
	}
}

func TestSystemdRender(t *testing.T) {
	m := &systemdManager{}
	unit := m.Render(testSpec())

	for _, want := range []string{
		"ExecStart=/usr/local/bin/caddy run --config /home/dev/.sitedock/Caddyfile",
		"WorkingDirectory=/home/dev/.sitedock",
		"Environment=HOME=/home/dev",
		"Restart=always",
		"WantedBy=multi-user.target",
		"StandardError=append:/home/dev/.sitedock/logs/error.log",
	} {
		if !strings.Contains(unit, want) {
			t.Errorf("Unit missing %q:\n%s", want, unit)
		}
	}
}

func TestSystemdInstallCommand(t *testing.T) {
	m := &systemdManager{}
	cmd := m.InstallCommand("/tmp/staged.service", testSpec())

	for _, want := range []string{
		"install -m 0644 '/tmp/staged.service' '/etc/systemd/system/sitedock-proxy.service'",
		"systemctl daemon-reload",
		"systemctl enable sitedock-proxy.service",
		"systemctl restart sitedock-proxy.service",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("Install command missing %q:\n%s", want, cmd)
		}
	}
}
