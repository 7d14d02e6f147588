package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const appName = "wallmon"

// Paths is the on-disk layout: a data directory holding the artifact, the
// error log and the registry, and a log directory holding dated general logs.
type Paths struct {
	DataDir string
	LogDir  string
}

// DefaultPaths returns the per-user layout: <UserConfigDir>/wallmon and its logs/ subdirectory.
func DefaultPaths() Paths {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	dataDir := filepath.Join(base, appName)
	return Paths{
		DataDir: dataDir,
		LogDir:  filepath.Join(dataDir, "logs"),
	}
}

// ResolvePaths applies config overrides on top of the defaults.
func ResolvePaths(dataDir, logDir string) Paths {
	p := DefaultPaths()
	if dataDir != "" {
		p.DataDir = dataDir
		p.LogDir = filepath.Join(dataDir, "logs")
	}
	if logDir != "" {
		p.LogDir = logDir
	}
	return p
}

// ArtifactPath is the fixed location of the current wallpaper screenshot.
func (p Paths) ArtifactPath() string {
	return filepath.Join(p.DataDir, "current.png")
}

// ErrorLogPath is the worker's error log.
func (p Paths) ErrorLogPath() string {
	return filepath.Join(p.DataDir, "error.log")
}

// RegistryPath is the supervisor's process registry.
func (p Paths) RegistryPath() string {
	return filepath.Join(p.DataDir, "registry.json")
}

// DefaultDocument is the content page used when none is configured.
func (p Paths) DefaultDocument() string {
	return filepath.Join(p.DataDir, "wallpaper.html")
}

// DatedLogPath returns the general log file for the day of t.
func (p Paths) DatedLogPath(t time.Time) string {
	return filepath.Join(p.LogDir, fmt.Sprintf("%s-%s.log", appName, t.Format("2006-01-02")))
}

// Ensure creates the data and log directories. Safe to call repeatedly.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.DataDir, p.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// OpenDatedLog ensures the log directory exists and opens today's log file for appending.
func OpenDatedLog(p Paths, now time.Time) (*os.File, error) {
	if err := p.Ensure(); err != nil {
		return nil, err
	}
	path := p.DatedLogPath(now)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}
