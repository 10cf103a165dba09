package config

import (
	"os"
	"path/filepath"
)

const (
	appName      = "borealis"
	configFile   = "config.toml"
	journalFile  = "journal.db"
	snapshotFile = "snapshots.db"
)

// ConfigDir returns the configuration directory, honoring XDG_CONFIG_HOME.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir() //nolint:errcheck
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the data directory, honoring XDG_DATA_HOME.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir() //nolint:errcheck
	return filepath.Join(home, ".local", "share", appName)
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), configFile)
}

// JournalPath returns the full path to the audit journal database.
func JournalPath() string {
	return filepath.Join(DataDir(), journalFile)
}

// SnapshotPath returns the full path to the snapshot database.
func SnapshotPath() string {
	return filepath.Join(DataDir(), snapshotFile)
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0o755)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}
