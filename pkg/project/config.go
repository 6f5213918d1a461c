package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config carries site defaults declared inside a project folder.
type Config struct {
	Name   string `yaml:"name"`   // Site name (defaults to the folder name)
	Domain string `yaml:"domain"` // Custom local domain (e.g. "blog.test")
	Port   int    `yaml:"port"`   // Loopback port
	Root   string `yaml:"root"`   // Web root relative to the folder (e.g. "public")
}

// PackageJSON is the subset of package.json we care about.
type PackageJSON struct {
	Name string `json:"name"`
}

// Detect scans a project folder for site defaults.
func Detect(path string) (*Config, error) {
	config := &Config{}

	// 1. .sitedock.yaml wins over everything else.
	yamlPath := filepath.Join(path, ".sitedock.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse .sitedock.yaml: %w", err)
			}
		}
	}

	// 2. package.json name as a fallback site name.
	if config.Name == "" {
		pkgPath := filepath.Join(path, "package.json")
		if data, err := os.ReadFile(pkgPath); err == nil {
			var pkg PackageJSON
			if err := json.Unmarshal(data, &pkg); err == nil {
				config.Name = pkg.Name
			}
		}
	}

	// 3. Last resort: the folder name itself.
	if config.Name == "" {
		config.Name = filepath.Base(path)
	}
	config.Name = strings.TrimSpace(config.Name)

	// 4. Auto-detect a "public" web root (Laravel/Symfony style).
	if config.Root == "" {
		publicPath := filepath.Join(path, "public")
		if info, err := os.Stat(publicPath); err == nil && info.IsDir() {
			config.Root = "public"
		}
	}

	return config, nil
}
