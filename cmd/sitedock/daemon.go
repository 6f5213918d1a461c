package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/run"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/sitedock/sitedock/pkg/api"
	"github.com/sitedock/sitedock/pkg/escalate"
	"github.com/sitedock/sitedock/pkg/events"
	"github.com/sitedock/sitedock/pkg/logwatch"
	"github.com/sitedock/sitedock/pkg/proxy"
	"github.com/sitedock/sitedock/pkg/registry"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sitedock API server",
	Long:  `Serves the local HTTP + websocket API used by front ends, watches the site registry for external edits, and probes the proxy periodically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		bus := events.NewBus()
		reg := registry.New("")
		result, err := reg.Load()
		if err != nil {
			return err
		}
		if result.Warning != nil {
			fmt.Printf("Warning: %v\n", result.Warning)
		}

		orch, err := proxy.New(reg, escalate.New(), bus)
		if err != nil {
			return err
		}

		srv := api.NewServer(port, reg, orch, bus)
		ctx := cmd.Context()

		var g run.Group

		{
			g.Add(func() error {
				return srv.Start()
			}, func(error) {
				srv.Shutdown()
			})
		}

		// Reload the registry when another process rewrites it, so
		// the editor and CLI never see stale sites.
		{
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			if err := watcher.Add(filepath.Dir(reg.Path())); err != nil {
				watcher.Close()
				return err
			}
			done := make(chan struct{})
			g.Add(func() error {
				return watchRegistry(watcher, srv, reg.Path(), done)
			}, func(error) {
				close(done)
				watcher.Close()
			})
		}

		// Periodic proxy status probe for the menu-bar indicator.
		{
			c := cron.New(cron.WithSeconds())
			if _, err := c.AddFunc("*/15 * * * * *", func() {
				probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				srv.PublishStatus(probeCtx)
			}); err != nil {
				return err
			}
			stopped := make(chan struct{})
			g.Add(func() error {
				c.Start()
				<-stopped
				return nil
			}, func(error) {
				c.Stop()
				close(stopped)
			})
		}

		// Live request feed from the proxy access log.
		{
			lw := logwatch.New(bus, proxy.AccessLogPath())
			started := make(chan struct{})
			g.Add(func() error {
				if err := lw.Start(); err != nil {
					return err
				}
				<-started
				return nil
			}, func(error) {
				lw.Stop()
				close(started)
			})
		}

		{
			g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
		}

		fmt.Printf("Daemon running on port %d\n", port)
		err = g.Run()
		if _, ok := err.(run.SignalError); ok {
			fmt.Println("\nShutting down daemon...")
			return nil
		}
		return err
	},
}

// watchRegistry reloads the registry on writes to its backing file.
// The reload goes through the api server so it holds the same lock as
// the HTTP handlers.
func watchRegistry(watcher *fsnotify.Watcher, srv *api.Server, target string, done chan struct{}) error {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := srv.ReloadRegistry(); err != nil {
				fmt.Printf("Warning: registry reload failed: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Printf("Warning: registry watcher: %v\n", err)
		case <-done:
			return nil
		}
	}
}

var logsCmd = &cobra.Command{
	Use:   "logs [access|error]",
	Short: "Follow the proxy logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		key := "access"
		if len(args) > 0 {
			key = args[0]
		}

		switch key {
		case "access":
			bus := events.NewBus()
			bus.Subscribe(events.AccessLogEntry, func(e events.Event) {
				entry, ok := e.Payload.(logwatch.AccessEntry)
				if !ok {
					return
				}
				fmt.Printf("%d %-6s %s%s\n", entry.Status, entry.Request.Method, entry.Request.Host, entry.Request.URI)
			})

			lw := logwatch.New(bus, proxy.AccessLogPath())
			if err := lw.Start(); err != nil {
				return err
			}
			fmt.Printf("Tailing log: %s\n", lw.LogPath)
			select {} // runs until interrupted

		case "error":
			logPath := proxy.ErrorLogPath()
			fmt.Printf("Tailing log: %s\n", logPath)
			cmdTail := exec.Command("tail", "-f", logPath)
			cmdTail.Stdout = os.Stdout
			cmdTail.Stderr = os.Stderr
			return cmdTail.Run()

		default:
			return fmt.Errorf("unknown log: %s. Available: access, error", key)
		}
	},
}
