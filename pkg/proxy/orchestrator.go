// Package proxy orchestrates the reverse-proxy lifecycle: it turns the
// served-site set into a generated config, decides between an
// unprivileged background process and a privileged system service,
// and reports live status.
package proxy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sitedock/sitedock/pkg/caddyfile"
	"github.com/sitedock/sitedock/pkg/escalate"
	"github.com/sitedock/sitedock/pkg/events"
	"github.com/sitedock/sitedock/pkg/hostsfile"
	"github.com/sitedock/sitedock/pkg/probe"
	"github.com/sitedock/sitedock/pkg/registry"
	"github.com/sitedock/sitedock/pkg/util"
)

// State is the derived overall proxy state. It is never stored.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	// StateUnknown means a pid record exists but the proxy did not
	// answer: the process may have died without cleanup.
	StateUnknown State = "unknown"
	StateError   State = "error"
)

// SiteState classifies a single site.
type SiteState string

const (
	SiteOn    SiteState = "on"
	SiteOff   SiteState = "off"
	SiteError SiteState = "error"
)

// LaunchError reports that the unprivileged proxy process failed to
// start. The proxy remains stopped; the caller may retry.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch proxy process: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Orchestrator is the single mutating owner of proxy runtime state.
// Mutating calls (Apply, StopAll) must not run concurrently; status
// reads are safe from any goroutine.
type Orchestrator struct {
	Registry *registry.Registry
	Gateway  escalate.Runner
	Service  ServiceManager
	Events   *events.Bus
	CaddyBin string

	// Fixed paths, overridable in tests.
	ConfigFile string
	PIDFile    string
	AccessLog  string
	ErrorLog   string

	// Probe seams, overridable in tests.
	adminProbe func(context.Context) bool
	siteProbe  func(context.Context, string) error
	launch     func(configFile string) (int, error)
	kill       func(pid int)
}

// New wires an orchestrator with platform defaults.
func New(reg *registry.Registry, gateway escalate.Runner, bus *events.Bus) (*Orchestrator, error) {
	mgr, err := NewServiceManager()
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		Registry:   reg,
		Gateway:    gateway,
		Service:    mgr,
		Events:     bus,
		CaddyBin:   findCaddy(),
		ConfigFile: ConfigPath(),
		PIDFile:    PIDPath(),
		AccessLog:  AccessLogPath(),
		ErrorLog:   ErrorLogPath(),
		adminProbe: probe.Admin,
		siteProbe:  probe.Site,
	}
	o.launch = o.launchProcess
	o.kill = killPID
	return o, nil
}

// Apply regenerates the proxy configuration and converges the runtime
// to it. A failed apply leaves prior runtime state untouched and
// returns the error for the caller to act on; re-invoking is safe.
func (o *Orchestrator) Apply(ctx context.Context) error {
	served := o.Registry.ServedSites()

	if err := o.writeConfig(served); err != nil {
		return err
	}

	privileged := false
	for _, s := range served {
		if s.NeedsPrivileges() {
			privileged = true
			break
		}
	}

	// The alias block is synced in both branches: serving a custom
	// domain adds its line, anything else removes a stale block. When
	// the hosts table already matches, no consent prompt appears.
	if err := hostsfile.Sync(ctx, o.Gateway, o.Registry.Sites); err != nil {
		return err
	}

	if privileged {
		return o.applyPrivileged(ctx)
	}
	return o.applyUnprivileged(ctx)
}

func (o *Orchestrator) applyPrivileged(ctx context.Context) error {
	// Tear down the unprivileged process before switching modes.
	if err := o.stopProcess(); err != nil {
		fmt.Printf("Warning: failed to stop background proxy: %v\n", err)
	}

	spec := o.serviceSpec()
	staged, err := stageDescriptor(o.Service, spec)
	if err != nil {
		return err
	}
	defer os.Remove(staged)

	command := o.Service.InstallCommand(staged, spec)
	result, err := o.Gateway.Run(ctx, command)
	if err != nil {
		return err
	}
	if !result.Ok() {
		return &escalate.Error{Command: command, Result: result}
	}

	o.notifyState(ctx)
	return nil
}

func (o *Orchestrator) applyUnprivileged(ctx context.Context) error {
	// Leaving privileged mode: the system service must go first.
	if o.serviceArtifactPresent(ctx) {
		command := o.Service.UnloadCommand()
		result, err := o.Gateway.Run(ctx, command)
		if err != nil {
			return err
		}
		if !result.Ok() {
			return &escalate.Error{Command: command, Result: result}
		}
	}

	if err := o.stopProcess(); err != nil {
		fmt.Printf("Warning: failed to stop previous proxy: %v\n", err)
	}

	pid, err := o.launch(o.ConfigFile)
	if err != nil {
		return &LaunchError{Err: err}
	}
	if err := writePID(o.PIDFile, pid); err != nil {
		// Without a pid record later Apply/StopAll calls could never
		// reach the process; don't leave it running unaccounted for.
		o.kill(pid)
		return fmt.Errorf("proxy started (pid %d) but pid record failed: %w", pid, err)
	}

	o.notifyState(ctx)
	return nil
}

// StopAll tears down both runtime modes unconditionally. Idempotent:
// already-absent artifacts count as success.
func (o *Orchestrator) StopAll(ctx context.Context) error {
	var firstErr error

	if err := o.stopProcess(); err != nil {
		firstErr = err
	}

	// Only escalate when there is actually something to unload, so an
	// idempotent no-op never shows a consent prompt.
	if o.serviceArtifactPresent(ctx) {
		command := o.Service.UnloadCommand()
		result, err := o.Gateway.Run(ctx, command)
		if err == nil && !result.Ok() {
			err = &escalate.Error{Command: command, Result: result}
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	o.notifyState(ctx)
	return firstErr
}

// Status derives the overall proxy state, in fixed order: admin
// endpoint, service manager, pid record, stopped.
func (o *Orchestrator) Status(ctx context.Context) State {
	if o.adminProbe(ctx) {
		return StateRunning
	}
	if o.Service.IsRunning(ctx) {
		return StateRunning
	}
	if util.Exists(o.PIDFile) {
		return StateUnknown
	}
	return StateStopped
}

// SiteStatus classifies a single site: Off when not served, Error when
// the proxy itself isn't running, otherwise probed over HTTPS.
func (o *Orchestrator) SiteStatus(ctx context.Context, site registry.Site) SiteState {
	if !site.Served {
		return SiteOff
	}
	if o.Status(ctx) != StateRunning {
		return SiteError
	}
	if err := o.siteProbe(ctx, site.URL()); err != nil {
		return SiteError
	}
	return SiteOn
}

// writeConfig regenerates the config wholesale and persists it
// atomically, same as the registry file.
func (o *Orchestrator) writeConfig(served []registry.Site) error {
	content := caddyfile.Generate(served, o.AccessLog)

	dir := filepath.Dir(o.ConfigFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to write proxy config: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".Caddyfile-*")
	if err != nil {
		return fmt.Errorf("failed to write proxy config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write proxy config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write proxy config: %w", err)
	}
	if err := os.Rename(tmpName, o.ConfigFile); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write proxy config: %w", err)
	}
	return nil
}

// serviceSpec builds the descriptor contents for the privileged mode.
func (o *Orchestrator) serviceSpec() ServiceSpec {
	home, _ := os.UserHomeDir()
	return ServiceSpec{
		Program:    o.CaddyBin,
		Args:       []string{"run", "--config", o.ConfigFile},
		WorkingDir: filepath.Dir(o.ConfigFile),
		Env:        map[string]string{"HOME": home},
		StdoutPath: o.AccessLog,
		StderrPath: o.ErrorLog,
	}
}

// launchProcess starts the proxy as a detached background process with
// stderr going to the error log, and returns its pid.
func (o *Orchestrator) launchProcess(configFile string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(o.ErrorLog), 0755); err != nil {
		return 0, err
	}
	logFile, err := os.OpenFile(o.ErrorLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	defer logFile.Close()

	cmd := exec.Command(o.CaddyBin, "run", "--config", configFile)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid
	// Detach; the pid record is the only handle we keep.
	cmd.Process.Release()
	return pid, nil
}

// serviceArtifactPresent reports whether any trace of the privileged
// service remains: a running or merely loaded unit, or a descriptor on
// disk. Covers a service left loaded after its descriptor was deleted
// by hand.
func (o *Orchestrator) serviceArtifactPresent(ctx context.Context) bool {
	return o.Service.IsRunning(ctx) || o.Service.IsInstalled(ctx) || util.Exists(o.Service.DescriptorPath())
}

// killPID force-terminates a process that could not be recorded.
func killPID(pid int) {
	if p, err := process.NewProcess(int32(pid)); err == nil {
		p.Kill()
	}
}

// stopProcess terminates the recorded background process, if any, and
// removes the pid record. A dead or recycled pid is tolerated.
func (o *Orchestrator) stopProcess() error {
	pid, ok := readPID(o.PIDFile)
	if !ok {
		return nil
	}

	exists, err := process.PidExists(int32(pid))
	if err == nil && exists {
		if p, err := process.NewProcess(int32(pid)); err == nil {
			if err := p.Terminate(); err != nil {
				// Fall back to a hard kill; the process may be stuck.
				p.Kill()
			}
		}
	}

	if err := os.Remove(o.PIDFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pid record: %w", err)
	}
	return nil
}

// notifyState publishes the freshly derived state for status displays.
func (o *Orchestrator) notifyState(ctx context.Context) {
	if o.Events == nil {
		return
	}
	o.Events.Publish(events.Event{
		Type:    events.ProxyStateChanged,
		Payload: string(o.Status(ctx)),
	})
}
