package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromFolder_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shop")
	os.MkdirAll(dir, 0755)

	site, err := FromFolder(dir)
	if err != nil {
		t.Fatalf("FromFolder failed: %v", err)
	}
	if site.Name != "shop" {
		t.Errorf("Expected folder-derived name, got %q", site.Name)
	}
	if site.Mode != ModeLoopbackPort || site.Port != DefaultPort {
		t.Errorf("Expected loopback defaults, got %+v", site)
	}
	if site.ID == "" {
		t.Error("Expected a generated ID")
	}
}

func TestFromFolder_DomainConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shop")
	os.MkdirAll(filepath.Join(dir, "public"), 0755)
	os.WriteFile(filepath.Join(dir, ".sitedock.yaml"), []byte("domain: shop.test\n"), 0644)

	site, err := FromFolder(dir)
	if err != nil {
		t.Fatal(err)
	}
	if site.Mode != ModeCustomDomain || site.Domain != "shop.test" {
		t.Errorf("Expected custom domain mode, got %+v", site)
	}
	if site.Folder != filepath.Join(dir, "public") {
		t.Errorf("Expected web root applied to folder, got %q", site.Folder)
	}
	if site.Port != 0 {
		t.Errorf("Domain mode should clear the port, got %d", site.Port)
	}
}

func TestFromFolder_MissingFolder(t *testing.T) {
	if _, err := FromFolder("/does/not/exist"); err == nil {
		t.Error("Expected an error for a missing folder")
	}
}
