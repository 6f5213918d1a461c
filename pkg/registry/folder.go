package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sitedock/sitedock/pkg/project"
)

// FromFolder builds a normalized Site from a project folder, applying
// any defaults declared in the folder itself (.sitedock.yaml,
// package.json, an auto-detected public web root).
func FromFolder(folder string) (Site, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return Site{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Site{}, fmt.Errorf("folder does not exist: %s", abs)
	}
	if !info.IsDir() {
		return Site{}, fmt.Errorf("not a directory: %s", abs)
	}

	conf, err := project.Detect(abs)
	if err != nil {
		return Site{}, err
	}

	site := Site{
		Name:   conf.Name,
		Folder: abs,
		Domain: conf.Domain,
		Port:   conf.Port,
	}
	if conf.Root != "" {
		site.Folder = filepath.Join(abs, conf.Root)
	}
	if conf.Domain != "" {
		site.Mode = ModeCustomDomain
	}
	site.Normalize()
	return site, nil
}
