package config

import (
	"os"
	"path/filepath"
)

// DefaultSQLitePath returns the default location of the embedded
// database based on the host OS. It prefers standard locations when
// available and falls back to a dotdir in the user's home directory.
func DefaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./scylla.db"
	}

	// XDG (Linux) override
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "scylla", "scylla.db")
	}

	// Common Linux/Unix system dir
	if isDir("/var/lib") {
		return "/var/lib/scylla/scylla.db"
	}

	// macOS: ~/Library/Application Support/Scylla
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "Scylla", "scylla.db")
	}

	// Windows: %USERPROFILE%/AppData/Local/Scylla
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", "Scylla", "scylla.db")
	}

	// Fallback: ~/.scylla
	return filepath.Join(homeDir, ".scylla", "scylla.db")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
