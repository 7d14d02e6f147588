package domain

import (
	"context"
	"time"
)

// Renderer opens off-screen rendering sessions.
// Implementation: headless Chrome via chromedp.
type Renderer interface {
	// Open starts a session with a viewport of the given size.
	Open(ctx context.Context, width, height int) (RenderSession, error)
}

// RenderSession is one browser tab owned by a single capture cycle.
type RenderSession interface {
	// Navigate loads the document URL.
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until an element matching selector is present.
	WaitReady(ctx context.Context, selector string) error

	// Screenshot returns the current frame as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the browser. Safe to call more than once.
	Close() error
}

// CapturePipeline renders a document and stores the screenshot as the artifact.
type CapturePipeline interface {
	// Capture returns the artifact path on success.
	Capture(ctx context.Context, documentRef string) (string, error)
}

// WallpaperApplier sets the desktop background.
type WallpaperApplier interface {
	Apply(ctx context.Context, imagePath string, scope DisplayScope) error
}

// CycleRunner executes one capture-and-apply cycle.
type CycleRunner interface {
	// RunCycle never panics and never returns an error; failures are in Cycle.Err.
	RunCycle(ctx context.Context) Cycle
}

// ErrorLog is the worker's append-only error log.
type ErrorLog interface {
	Append(rec ErrorRecord) error
	Close() error
}

// LogSink persists supervisor log records and echoes them to the terminal.
type LogSink interface {
	Record(rec LogRecord)
	Sync() error
}

// ProcessInfo describes a live process.
type ProcessInfo struct {
	PID       int
	Name      string
	CreatedAt time.Time
	RSSBytes  uint64
}

// ProcessManager handles OS process inspection.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Info returns details about a running process.
	Info(pid int) (*ProcessInfo, error)

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// ProcessRegistry records supervisor and worker PIDs for the status command.
// Implementation: JSON file in the data directory.
type ProcessRegistry interface {
	// RegisterSupervisor records the running supervisor.
	RegisterSupervisor(pid int, appVersion string) error

	// RecordWorkerStart records a freshly spawned worker.
	RecordWorkerStart(pid int, startedAt time.Time) error

	// RecordWorkerExit records the worker's exit code and restart count.
	RecordWorkerExit(exitCode, restarts int) error

	// Get returns the registry state, or nil if nothing was registered.
	Get() (*RegistryEntry, error)

	// Clear removes the registry file.
	Clear() error

	// Path returns the registry file path.
	Path() string
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// EnsureDir creates a directory and its parents; no-op if it exists.
	EnsureDir(path string) error

	// WriteFileAtomic replaces path with data so readers see old or new content, never a mix.
	WriteFileAtomic(path string, data []byte, perm uint32) error

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// AutostartManager installs wallmon as a login service.
type AutostartManager interface {
	// Install writes the service definition and loads it.
	Install(execPath, configPath string) error

	// Uninstall unloads and removes the service definition.
	Uninstall() error

	// IsInstalled checks if the service definition exists.
	IsInstalled() bool

	// Path returns the service definition file path.
	Path() string
}
