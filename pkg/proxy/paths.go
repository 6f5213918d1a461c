package proxy

import (
	"os/exec"
	"path/filepath"

	"github.com/sitedock/sitedock/pkg/util"
)

// Fixed per-user runtime artifacts.

func ConfigPath() string {
	return filepath.Join(util.BaseDir(), "Caddyfile")
}

func PIDPath() string {
	return filepath.Join(util.BaseDir(), "caddy.pid")
}

func AccessLogPath() string {
	return filepath.Join(util.BaseDir(), "logs", "access.log")
}

func ErrorLogPath() string {
	return filepath.Join(util.BaseDir(), "logs", "error.log")
}

// findCaddy locates the proxy binary, preferring PATH but checking the
// usual install locations as well.
func findCaddy() string {
	if path, err := exec.LookPath("caddy"); err == nil {
		return path
	}
	for _, candidate := range []string{
		"/opt/homebrew/bin/caddy",
		"/usr/local/bin/caddy",
		"/usr/bin/caddy",
	} {
		if util.Exists(candidate) {
			return candidate
		}
	}
	return "caddy"
}
