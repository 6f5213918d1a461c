package proxy

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
)

// ServiceSpec describes the always-on privileged proxy service: what
// to run, where, with which environment, and where output goes.
type ServiceSpec struct {
	Program    string
	Args       []string
	WorkingDir string
	Env        map[string]string
	StdoutPath string
	StderrPath string
}

// envKeys returns the environment keys in stable order so rendered
// descriptors are deterministic.
func (s ServiceSpec) envKeys() []string {
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ServiceManager abstracts the OS service layer (launchd on macOS,
// systemd on Linux). Install and unload are expressed as single
// composed command strings so each costs one consent prompt.
type ServiceManager interface {
	// Identifier is the fixed service identifier known to the OS.
	Identifier() string
	// DescriptorPath is the fixed system path of the installed descriptor.
	DescriptorPath() string
	// Render produces the descriptor text for the given spec.
	Render(spec ServiceSpec) string
	// InstallCommand composes the escalated install-or-repair pipeline:
	// create directories, prepare log files, install the staged
	// descriptor with proper ownership, and (re)start the service.
	InstallCommand(stagedPath string, spec ServiceSpec) string
	// UnloadCommand composes the escalated teardown, tolerating an
	// already-absent service.
	UnloadCommand() string
	// IsRunning queries the service manager for a running state. Read
	// only; no elevation needed.
	IsRunning(ctx context.Context) bool
	// IsInstalled reports whether the service manager still knows the
	// unit at all, even stopped or with its descriptor removed by hand.
	IsInstalled(ctx context.Context) bool
}

// NewServiceManager selects the platform implementation.
func NewServiceManager() (ServiceManager, error) {
	switch runtime.GOOS {
	case "darwin":
		return &launchdManager{}, nil
	case "linux":
		return &systemdManager{}, nil
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

// stageDescriptor writes the rendered descriptor to a temp location
// the escalated install command can pick up.
func stageDescriptor(mgr ServiceManager, spec ServiceSpec) (string, error) {
	tmp, err := os.CreateTemp("", "sitedock-service-*")
	if err != nil {
		return "", fmt.Errorf("failed to stage service descriptor: %w", err)
	}
	if _, err := tmp.WriteString(mgr.Render(spec)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to stage service descriptor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to stage service descriptor: %w", err)
	}
	return tmp.Name(), nil
}
