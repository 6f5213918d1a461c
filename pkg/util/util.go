package util

import (
	"os"
	"path/filepath"
)

// Exists checks if a file or directory exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// BaseDir returns the per-user sitedock directory (~/.sitedock).
func BaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".sitedock")
}

// EnsureBaseDir creates the per-user directory tree, including logs.
func EnsureBaseDir() error {
	return os.MkdirAll(filepath.Join(BaseDir(), "logs"), 0755)
}
