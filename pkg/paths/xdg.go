// Package paths provides XDG-compliant path resolution for notifsync.
//
// Resolution order:
// 1. NOTIFSYNC_HOME (portable root) → $NOTIFSYNC_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/notifsync
// 3. Platform defaults → ~/.config/notifsync, ~/.local/state/notifsync
package paths

import (
	"os"
	"path/filepath"
)

const appName = "notifsync"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("NOTIFSYNC_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if home := os.Getenv("NOTIFSYNC_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the notifsync configuration directory.
// Used for the global notifsync.yml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// StateDir returns the notifsync state directory.
// Used for the session token file and logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// LogDir returns the directory for log files.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// TokenFile returns the default session token path.
func TokenFile() string {
	return filepath.Join(StateDir(), "token")
}

// EnsureDirs creates all notifsync directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		StateDir(),
		LogDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}
