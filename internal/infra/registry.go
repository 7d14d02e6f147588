package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// FileRegistry implements domain.ProcessRegistry using a JSON file.
// Only the supervisor writes it; the status command reads it.
type FileRegistry struct {
	path string
	mu   sync.Mutex
}

// NewFileRegistry creates a registry at the given path.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// RegisterSupervisor starts a fresh entry for the running supervisor.
func (r *FileRegistry) RegisterSupervisor(pid int, appVersion string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &domain.RegistryEntry{
		Version:             1,
		SupervisorPID:       pid,
		SupervisorStartedAt: time.Now(),
		AppVersion:          appVersion,
	}
	return r.write(entry)
}

// RecordWorkerStart records a freshly spawned worker.
func (r *FileRegistry) RecordWorkerStart(pid int, startedAt time.Time) error {
	return r.update(func(e *domain.RegistryEntry) {
		e.WorkerPID = pid
		e.WorkerStartedAt = startedAt
	})
}

// RecordWorkerExit records the worker's exit code and the restart count so far.
func (r *FileRegistry) RecordWorkerExit(exitCode, restarts int) error {
	return r.update(func(e *domain.RegistryEntry) {
		e.WorkerPID = 0
		e.Restarts = restarts
		e.LastExitCode = &exitCode
	})
}

// Get returns full registry state, or nil if the file does not exist.
func (r *FileRegistry) Get() (*domain.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// Clear removes registry file.
func (r *FileRegistry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (r *FileRegistry) update(fn func(*domain.RegistryEntry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.read()
	if err != nil {
		return err
	}
	if entry == nil {
		entry = &domain.RegistryEntry{Version: 1}
	}
	fn(entry)
	return r.write(entry)
}

func (r *FileRegistry) read() (*domain.RegistryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.RegistryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", r.path, err)
	}
	return &entry, nil
}

func (r *FileRegistry) write(entry *domain.RegistryEntry) error {
	entry.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(r.path, data, 0600)
}

// Ensure FileRegistry implements domain.ProcessRegistry.
var _ domain.ProcessRegistry = (*FileRegistry)(nil)
