package fixtures

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// RecordingApplier records every wallpaper it is asked to apply.
type RecordingApplier struct {
	Err error // Returned from every Apply when set

	mu      sync.Mutex
	applied []string
}

// Apply records imagePath.
func (a *RecordingApplier) Apply(ctx context.Context, imagePath string, scope domain.DisplayScope) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, imagePath)
	return a.Err
}

// Applied returns the image paths applied so far.
func (a *RecordingApplier) Applied() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.applied...)
}
