// Package config holds the cmux data-directory layout and the optional
// YAML configuration file.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// EndpointName is the well-known name of the daemon's local IPC
// endpoint.
const EndpointName = "cmux-daemon"

// Config is the daemon configuration loaded from {DataDir}/config.yaml.
// Missing fields keep their defaults.
type Config struct {
	// ScrollbackLines caps each pane's scrollback ring.
	ScrollbackLines int `yaml:"scrollbackLines"`
	// RetentionDays bounds command-log and transcript retention:
	// 0 keeps forever, negative falls back to 90, otherwise clamped to
	// 1..3650.
	RetentionDays int `yaml:"retentionDays"`
	// Shell overrides the default shell command for new sessions.
	Shell string `yaml:"shell"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ScrollbackLines: 10000,
		RetentionDays:   90,
	}
}

// Load reads {DataDir}/config.yaml, applying defaults for missing or
// unreadable files.
func Load() Config {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(DataDir(), "config.yaml"))
	if err != nil {
		return cfg
	}
	// Decode over the defaults so keys absent from the file keep them
	// while an explicit retentionDays: 0 (keep forever) is honoured.
	file := Default()
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg
	}
	if file.ScrollbackLines > 0 {
		cfg.ScrollbackLines = file.ScrollbackLines
	}
	cfg.RetentionDays = file.RetentionDays
	if file.Shell != "" {
		cfg.Shell = file.Shell
	}
	return cfg
}

// DataDir returns the cmux application-data directory: %LOCALAPPDATA%\cmux
// on Windows, ~/.cmux elsewhere. CMUX_DATA_DIR overrides both.
func DataDir() string {
	if dir := os.Getenv("CMUX_DATA_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "cmux")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "cmux")
	}
	return filepath.Join(home, ".cmux")
}

// LogsDir returns the command-log directory.
func LogsDir() string {
	return filepath.Join(DataDir(), "logs")
}

// TranscriptsDir returns the terminal-transcript directory.
func TranscriptsDir() string {
	return filepath.Join(LogsDir(), "terminal")
}

// SocketPath returns the daemon endpoint path.
func SocketPath() string {
	return filepath.Join(DataDir(), EndpointName+".sock")
}

// LockPath returns the daemon single-instance lock file.
func LockPath() string {
	return filepath.Join(DataDir(), "daemon.lock")
}
