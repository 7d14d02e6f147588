package domain

import "errors"

// Error kinds. Failures are wrapped as fmt.Errorf("%w: %w", kind, cause)
// so callers can match them with errors.Is.
var (
	ErrSpawn           = errors.New("spawn worker")
	ErrRender          = errors.New("render")
	ErrNavigation      = errors.New("navigation")
	ErrTimeout         = errors.New("readiness timeout")
	ErrArtifact        = errors.New("artifact write")
	ErrApply           = errors.New("apply wallpaper")
	ErrUnhandledFault  = errors.New("unhandled fault")
	ErrCycleInProgress = errors.New("cycle already in progress")
)

var kindLabels = []struct {
	err   error
	label string
}{
	{ErrSpawn, "spawn"},
	{ErrRender, "render"},
	{ErrNavigation, "navigation"},
	{ErrTimeout, "timeout"},
	{ErrArtifact, "artifact"},
	{ErrApply, "apply"},
	{ErrUnhandledFault, "fault"},
	{ErrCycleInProgress, "overlap"},
}

// ErrorKind returns a short label for the kind of err, or "unknown".
func ErrorKind(err error) string {
	for _, k := range kindLabels {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return "unknown"
}
