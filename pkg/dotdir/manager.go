// Package dotdir manages the .landscape/ and ~/.landscape directories.
//
// The directory holds config.toml, the default SQLite database and the
// last-session record CLI commands fall back to when no session id is given.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the landscape directory.
	dirName = ".landscape"

	// DatabaseFile is the default SQLite database name inside the directory.
	DatabaseFile = "landscape.sqlite"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .landscape/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.landscape/ dir
//  3. Home ~/.landscape/ dir, created if missing
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating landscape directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Init creates a local ./.landscape/ directory in dir and returns its path.
func (m *Manager) Init(dir string) (string, error) {
	return m.Target(filepath.Join(dir, dirName))
}

// DatabasePath returns the SQLite database path inside the target directory.
func (m *Manager) DatabasePath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DatabaseFile), nil
}

// localDirExists checks whether a .landscape/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
