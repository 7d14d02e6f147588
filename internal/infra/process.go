package infra

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}

// Info returns name, start time and resident memory of a running process.
func (pm *ProcessManagerImpl) Info(pid int) (*domain.ProcessInfo, error) {
	if !pm.IsRunning(pid) {
		return nil, fmt.Errorf("process %d is not running", pid)
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}

	info := &domain.ProcessInfo{PID: pid}

	// Individual fields may be unreadable (permissions, zombie); keep what we can get.
	if name, err := p.Name(); err == nil {
		info.Name = name
	}
	if created, err := p.CreateTime(); err == nil {
		info.CreatedAt = time.UnixMilli(created)
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}

	return info, nil
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
