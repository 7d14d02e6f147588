package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// CycleRunnerImpl implements domain.CycleRunner: capture, then apply.
type CycleRunnerImpl struct {
	pipeline domain.CapturePipeline
	applier  domain.WallpaperApplier
	document string
	scope    domain.DisplayScope
	logger   *zap.Logger
	now      func() time.Time
}

// NewCycleRunner creates a cycle runner for one document.
func NewCycleRunner(
	pipeline domain.CapturePipeline,
	applier domain.WallpaperApplier,
	document string,
	scope domain.DisplayScope,
	logger *zap.Logger,
) *CycleRunnerImpl {
	return &CycleRunnerImpl{
		pipeline: pipeline,
		applier:  applier,
		document: document,
		scope:    scope,
		logger:   logger,
		now:      time.Now,
	}
}

// RunCycle runs one cycle. A panic anywhere inside is returned as ErrUnhandledFault.
func (r *CycleRunnerImpl) RunCycle(ctx context.Context) (cycle domain.Cycle) {
	cycle = domain.Cycle{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
	}
	log := r.logger.With(zap.String("cycle_id", cycle.ID))

	defer func() {
		if rec := recover(); rec != nil {
			cycle.Err = fmt.Errorf("%w: %v\n%s", domain.ErrUnhandledFault, rec, debug.Stack())
		}
		cycle.FinishedAt = r.now()
		if cycle.Err != nil {
			cycle.Outcome = domain.OutcomeFailure
			return
		}
		cycle.Outcome = domain.OutcomeSuccess
		log.Info("cycle completed",
			zap.String("artifact", cycle.ArtifactPath),
			zap.Duration("duration", cycle.Duration()))
	}()

	log.Info("cycle started", zap.String("document", r.document))

	artifact, err := r.pipeline.Capture(ctx, r.document)
	if err != nil {
		cycle.Err = err
		return cycle
	}
	cycle.ArtifactPath = artifact

	if err := r.applier.Apply(ctx, artifact, r.scope); err != nil {
		cycle.Err = err
		return cycle
	}
	return cycle
}

// Ensure CycleRunnerImpl implements domain.CycleRunner.
var _ domain.CycleRunner = (*CycleRunnerImpl)(nil)
