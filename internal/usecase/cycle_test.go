package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// mockPipeline implements domain.CapturePipeline for testing
type mockPipeline struct {
	path     string
	err      error
	panicMsg string
	calls    int
}

func (m *mockPipeline) Capture(ctx context.Context, documentRef string) (string, error) {
	m.calls++
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	return m.path, m.err
}

// mockApplier implements domain.WallpaperApplier for testing
type mockApplier struct {
	err     error
	applied []string
	scopes  []domain.DisplayScope
}

func (m *mockApplier) Apply(ctx context.Context, imagePath string, scope domain.DisplayScope) error {
	m.applied = append(m.applied, imagePath)
	m.scopes = append(m.scopes, scope)
	return m.err
}

func TestRunCycle_Success(t *testing.T) {
	pipeline := &mockPipeline{path: "/data/current.png"}
	applier := &mockApplier{}
	runner := NewCycleRunner(pipeline, applier, "https://example.com", domain.ScopeAll, zap.NewNop())

	cycle := runner.RunCycle(context.Background())

	assert.Equal(t, domain.OutcomeSuccess, cycle.Outcome)
	assert.NoError(t, cycle.Err)
	assert.NotEmpty(t, cycle.ID)
	assert.Equal(t, "/data/current.png", cycle.ArtifactPath)
	assert.False(t, cycle.FinishedAt.Before(cycle.StartedAt))
	assert.Equal(t, []string{"/data/current.png"}, applier.applied)
	assert.Equal(t, []domain.DisplayScope{domain.ScopeAll}, applier.scopes)
}

func TestRunCycle_CaptureFailureSkipsApply(t *testing.T) {
	pipeline := &mockPipeline{err: fmt.Errorf("%w: boom", domain.ErrNavigation)}
	applier := &mockApplier{}
	runner := NewCycleRunner(pipeline, applier, "https://example.com", domain.ScopeAll, zap.NewNop())

	cycle := runner.RunCycle(context.Background())

	assert.Equal(t, domain.OutcomeFailure, cycle.Outcome)
	assert.ErrorIs(t, cycle.Err, domain.ErrNavigation)
	assert.Empty(t, applier.applied, "apply must not run after a failed capture")
}

func TestRunCycle_ApplyFailure(t *testing.T) {
	pipeline := &mockPipeline{path: "/data/current.png"}
	applier := &mockApplier{err: fmt.Errorf("%w: exit status 1", domain.ErrApply)}
	runner := NewCycleRunner(pipeline, applier, "https://example.com", domain.ScopeAll, zap.NewNop())

	cycle := runner.RunCycle(context.Background())

	assert.Equal(t, domain.OutcomeFailure, cycle.Outcome)
	assert.ErrorIs(t, cycle.Err, domain.ErrApply)
	assert.Equal(t, "/data/current.png", cycle.ArtifactPath)
}

func TestRunCycle_PanicBecomesFault(t *testing.T) {
	pipeline := &mockPipeline{panicMsg: "nil map write"}
	runner := NewCycleRunner(pipeline, &mockApplier{}, "https://example.com", domain.ScopeAll, zap.NewNop())

	var cycle domain.Cycle
	require.NotPanics(t, func() {
		cycle = runner.RunCycle(context.Background())
	})

	assert.Equal(t, domain.OutcomeFailure, cycle.Outcome)
	assert.ErrorIs(t, cycle.Err, domain.ErrUnhandledFault)
	assert.Contains(t, cycle.Err.Error(), "nil map write")
	assert.False(t, cycle.FinishedAt.IsZero())
}

func TestRunCycle_UniqueIDs(t *testing.T) {
	runner := NewCycleRunner(&mockPipeline{path: "p"}, &mockApplier{}, "doc", domain.ScopeAll, zap.NewNop())
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	runner.now = func() time.Time { return fixed }

	a := runner.RunCycle(context.Background())
	b := runner.RunCycle(context.Background())

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.Duration(0), a.Duration())
	assert.False(t, errors.Is(a.Err, domain.ErrUnhandledFault))
}
