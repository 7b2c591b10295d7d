// Package config loads user preferences from ~/.archive-deck/config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// BaseDirEnv overrides the base directory (used by tests and for
	// keeping several independent setups side by side).
	BaseDirEnv = "ARCHIVE_DECK_DIR"

	// UserConfigFileName is the TOML config file inside the base directory.
	UserConfigFileName = "config.toml"

	// StateDBFileName holds stars and notes.
	StateDBFileName = "state.db"
)

// BaseDir returns ~/.archive-deck, or $ARCHIVE_DECK_DIR when set.
func BaseDir() (string, error) {
	if dir := os.Getenv(BaseDirEnv); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".archive-deck"), nil
}

// UserConfigPath returns the path to config.toml.
func UserConfigPath() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, UserConfigFileName), nil
}

// StateDBPath returns the path of the annotations database.
func StateDBPath() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, StateDBFileName), nil
}

// LogDir returns the directory the rotated log file is written to.
func LogDir() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}
