// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// ProcessRole identifies which tier a wallmon process plays.
type ProcessRole string

const (
	RoleSupervisor ProcessRole = "supervisor"
	RoleWorker     ProcessRole = "worker"
)

// Stream is the source of a supervisor log record.
type Stream string

const (
	StreamStdout    Stream = "stdout"
	StreamStderr    Stream = "stderr"
	StreamLifecycle Stream = "lifecycle"
)

// LogRecord is one line of the supervisor's general log.
type LogRecord struct {
	Time    time.Time
	Stream  Stream
	Message string
}

// ErrorRecord is one entry of the worker's error log.
type ErrorRecord struct {
	Time    time.Time
	Kind    string // Short error kind label, see ErrorKind
	CycleID string // Empty for faults raised outside a cycle
	Message string
}

// CycleOutcome is the result class of a capture cycle.
type CycleOutcome string

const (
	OutcomeSuccess CycleOutcome = "success"
	OutcomeFailure CycleOutcome = "failure"
)

// Cycle captures what happened during one render/capture/apply attempt.
// It is never persisted; the worker logs it and discards it.
type Cycle struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcome      CycleOutcome
	ArtifactPath string
	Err          error
}

// Duration returns how long the cycle ran.
func (c Cycle) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

// DisplayScope selects which displays the wallpaper applies to.
type DisplayScope string

const (
	ScopeAll  DisplayScope = "all"
	ScopeMain DisplayScope = "main"
)

// RegistryEntry stores the state of the supervisor and its worker for the status command.
// Persisted to a JSON file in the data directory, written by the supervisor only.
type RegistryEntry struct {
	Version         int       `json:"version"`
	SupervisorPID       int       `json:"supervisor_pid"`
	SupervisorStartedAt time.Time `json:"supervisor_started_at"`
	WorkerPID           int       `json:"worker_pid"`
	WorkerStartedAt     time.Time `json:"worker_started_at"`
	Restarts            int       `json:"restarts"`
	LastExitCode        *int      `json:"last_exit_code,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
	AppVersion          string    `json:"app_version,omitempty"`
}
