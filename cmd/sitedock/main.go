package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sitedock/sitedock/pkg/escalate"
	"github.com/sitedock/sitedock/pkg/events"
	"github.com/sitedock/sitedock/pkg/project"
	"github.com/sitedock/sitedock/pkg/proxy"
	"github.com/sitedock/sitedock/pkg/registry"
)

var rootCmd = &cobra.Command{
	Use:     "sitedock",
	Short:   "Sitedock",
	Long:    `Serve local project folders over HTTPS through an embedded proxy.`,
	Version: Version,
}

var Version = "dev"

// newOrchestrator loads the registry and builds the proxy orchestrator
// used by every command that touches the runtime.
func newOrchestrator() (*registry.Registry, *proxy.Orchestrator, error) {
	reg := registry.New("")
	result, err := reg.Load()
	if err != nil {
		return nil, nil, err
	}
	if result.Warning != nil {
		fmt.Printf("Warning: %v\n", result.Warning)
	}
	if result.Recovered {
		fmt.Println("[INFO] Recovered site registry from an older format")
	}

	orch, err := proxy.New(reg, escalate.New(), events.NewBus())
	if err != nil {
		return nil, nil, err
	}
	return reg, orch, nil
}

// findSite resolves a site by ID first, then by name.
func findSite(reg *registry.Registry, ref string) (registry.Site, error) {
	if site, ok := reg.ByID(ref); ok {
		return site, nil
	}
	if site, ok := reg.ByName(ref); ok {
		return site, nil
	}
	return registry.Site{}, fmt.Errorf("no site named %q", ref)
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List registered sites",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		servedOnly, _ := cmd.Flags().GetBool("served")

		if len(reg.Sites) == 0 {
			fmt.Println("No sites registered. Add one with: sitedock add <path>")
			return nil
		}

		for _, site := range reg.Sites {
			if servedOnly && !site.Served {
				continue
			}
			marker := " "
			if site.Served {
				marker = "*"
			}
			status := orch.SiteStatus(cmd.Context(), site)
			fmt.Printf("%s %-20s %-10s %-30s %s\n", marker, site.Name, status, site.Address(), site.Folder)
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Register a folder as a site",
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := "."
		if len(args) > 0 {
			folder = args[0]
		}

		site, err := registry.FromFolder(folder)
		if err != nil {
			return err
		}

		if name, _ := cmd.Flags().GetString("name"); name != "" {
			site.Name = name
			site.ShortcutLabel = name
		}
		if domain, _ := cmd.Flags().GetString("domain"); domain != "" {
			site.Domain = domain
			site.Mode = registry.ModeCustomDomain
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			site.Port = port
			site.Mode = registry.ModeLoopbackPort
		}
		site.Normalize()

		reg, orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		if err := reg.Upsert(site); err != nil {
			return err
		}
		fmt.Printf("Registered site: %s (%s)\n", site.Name, site.Address())

		if serve, _ := cmd.Flags().GetBool("serve"); serve {
			if err := reg.SetOnlyServed(site.ID, true); err != nil {
				return err
			}
			return orch.Apply(cmd.Context())
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [site]",
	Short: "Remove a site from the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("site name required")
		}

		reg, orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		site, err := findSite(reg, args[0])
		if err != nil {
			return err
		}

		wasServed := site.Served
		if err := reg.Remove(site.ID); err != nil {
			return err
		}
		fmt.Printf("Removed site: %s\n", site.Name)

		// A served site leaving the registry changes the runtime config.
		if wasServed {
			return orch.Apply(cmd.Context())
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve [site]",
	Short: "Serve a site through the proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("site name required")
		}

		reg, orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		site, err := findSite(reg, args[0])
		if err != nil {
			return err
		}

		if err := reg.SetOnlyServed(site.ID, true); err != nil {
			return err
		}
		if err := orch.Apply(cmd.Context()); err != nil {
			return err
		}

		fmt.Printf("Serving %s at %s\n", site.Name, site.URL())
		return nil
	},
}

var unserveCmd = &cobra.Command{
	Use:   "unserve [site]",
	Short: "Stop serving a site (the proxy keeps running with a placeholder)",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		if len(args) > 0 {
			site, err := findSite(reg, args[0])
			if err != nil {
				return err
			}
			if err := reg.SetOnlyServed(site.ID, false); err != nil {
				return err
			}
		} else {
			for _, site := range reg.ServedSites() {
				if err := reg.SetOnlyServed(site.ID, false); err != nil {
					return err
				}
			}
		}

		return orch.Apply(cmd.Context())
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Regenerate the proxy config and restart the proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		return orch.Apply(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the proxy and site status",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		state := orch.Status(cmd.Context())
		fmt.Printf("Proxy: %s\n", strings.ToUpper(string(state)))

		for _, site := range reg.Sites {
			if !site.Served {
				continue
			}
			status := orch.SiteStatus(cmd.Context(), site)
			fmt.Printf(" - %s [%s] %s\n", site.Name, status, site.URL())
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the proxy entirely",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		if err := orch.StopAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Proxy stopped.")
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open [site]",
	Short: "Open a site in your default browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := newOrchestrator()
		if err != nil {
			return err
		}

		var site registry.Site
		if len(args) > 0 {
			site, err = findSite(reg, args[0])
			if err != nil {
				return err
			}
		} else {
			served := reg.ServedSites()
			if len(served) == 0 {
				return fmt.Errorf("no site is being served")
			}
			site = served[0]
		}

		fmt.Printf("Opening %s...\n", site.URL())
		return openUrl(site.URL())
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect [path]",
	Short: "Show what a folder would register as",
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := "."
		if len(args) > 0 {
			folder = args[0]
		}

		conf, err := project.Detect(folder)
		if err != nil {
			return err
		}

		fmt.Printf("Name:   %s\n", conf.Name)
		if conf.Domain != "" {
			fmt.Printf("Domain: %s\n", conf.Domain)
		}
		if conf.Port != 0 {
			fmt.Printf("Port:   %d\n", conf.Port)
		}
		if conf.Root != "" {
			fmt.Printf("Root:   %s\n", conf.Root)
		}
		return nil
	},
}

func openUrl(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		cmd = "open"
		args = []string{url}
	default: // linux, freebsd, etc.
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(unserveCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(daemonCmd)

	sitesCmd.Flags().BoolP("served", "s", false, "Only show the served site")

	addCmd.Flags().StringP("name", "n", "", "Display name for the site")
	addCmd.Flags().StringP("domain", "d", "", "Serve under a custom domain (requires admin rights)")
	addCmd.Flags().IntP("port", "p", 0, "Serve on a localhost port")
	addCmd.Flags().Bool("serve", false, "Start serving the site immediately")

	daemonCmd.Flags().Int("port", 2030, "API port")
}
