package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".oshaberi"

// Paths holds resolved filesystem paths for oshaberi data.
type Paths struct {
	Base   string // ~/.oshaberi
	Config string // ~/.oshaberi/config.yaml
	Data   string // ~/.oshaberi/data
	Logs   string // ~/.oshaberi/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If OSHABERI_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("OSHABERI_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Data, p.Logs}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DefaultDBPath is the database location when the config does not set one.
func (p Paths) DefaultDBPath() string {
	return filepath.Join(p.Data, "oshaberi.db")
}
