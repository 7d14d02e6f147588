// Package daemon implements the worker scheduler and the supervisor that keeps it running.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// Scheduler states.
const (
	stateIdle int32 = iota
	stateRunning
)

var errLoopFault = errors.New("scheduler loop fault")

// WorkerConfig holds worker scheduler configuration.
type WorkerConfig struct {
	Schedule     cron.Schedule
	CycleTimeout time.Duration // Deadline for one cycle
	FaultPause   time.Duration // Pause before re-entering the loop after a fault
}

// Worker runs a capture cycle immediately and then on every scheduled tick.
// Cycles never overlap: ticks that pass while a cycle runs are skipped.
type Worker struct {
	config   WorkerConfig
	runner   domain.CycleRunner
	errorLog domain.ErrorLog
	logger   *zap.Logger
	now      func() time.Time

	state  atomic.Int32
	cycles atomic.Int64
}

// NewWorker creates a worker scheduler.
func NewWorker(config WorkerConfig, runner domain.CycleRunner, errorLog domain.ErrorLog, logger *zap.Logger) *Worker {
	if config.FaultPause <= 0 {
		config.FaultPause = time.Second
	}
	return &Worker{
		config:   config,
		runner:   runner,
		errorLog: errorLog,
		logger:   logger,
		now:      time.Now,
	}
}

// Cycles returns how many cycles have been attempted.
func (w *Worker) Cycles() int64 {
	return w.cycles.Load()
}

// Run blocks until ctx is cancelled. Cycle failures and faults never end it.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", zap.Int("pid", os.Getpid()))

	runNow := true
	for {
		err := w.loop(ctx, runNow)
		if ctx.Err() != nil {
			w.logger.Info("worker stopping", zap.Int64("cycles", w.Cycles()))
			return nil
		}
		w.logger.Error("scheduler loop restarting", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.config.FaultPause):
		}
		runNow = false
	}
}

func (w *Worker) loop(ctx context.Context, runNow bool) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			w.recordFault(rec)
			err = errLoopFault
		}
	}()

	if runNow {
		w.tick(ctx)
	}

	next := w.config.Schedule.Next(w.now())
	for {
		timer := time.NewTimer(next.Sub(w.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		w.tick(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := w.now()
		if skipped := ticksBetween(w.config.Schedule, next, now); skipped > 0 {
			w.logger.Warn("tick skipped, cycle still running",
				zap.Int("skipped", skipped),
				zap.Time("scheduled", w.config.Schedule.Next(next)))
		}
		next = w.config.Schedule.Next(now)
	}
}

func (w *Worker) tick(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Warn("tick skipped", zap.Error(err))
	}
}

// RunOnce runs a single cycle now. It returns ErrCycleInProgress if a cycle
// is already running; cycle failures are reported in the returned Cycle.
func (w *Worker) RunOnce(ctx context.Context) (domain.Cycle, error) {
	if !w.state.CompareAndSwap(stateIdle, stateRunning) {
		return domain.Cycle{}, domain.ErrCycleInProgress
	}
	defer w.state.Store(stateIdle)

	w.cycles.Add(1)

	cycleCtx, cancel := context.WithTimeout(ctx, w.config.CycleTimeout)
	defer cancel()

	cycle := w.runGuarded(cycleCtx)
	w.report(ctx, cycle)
	return cycle, nil
}

// runGuarded calls the runner, converting a panic into a failed cycle.
func (w *Worker) runGuarded(ctx context.Context) (cycle domain.Cycle) {
	started := w.now()
	defer func() {
		if rec := recover(); rec != nil {
			cycle = domain.Cycle{
				StartedAt:  started,
				FinishedAt: w.now(),
				Outcome:    domain.OutcomeFailure,
				Err:        fmt.Errorf("%w: %v\n%s", domain.ErrUnhandledFault, rec, debug.Stack()),
			}
		}
	}()
	return w.runner.RunCycle(ctx)
}

func (w *Worker) report(ctx context.Context, cycle domain.Cycle) {
	if cycle.Err == nil {
		return
	}

	// Shutdown interrupted the cycle; not a failure.
	if ctx.Err() != nil && errors.Is(cycle.Err, ctx.Err()) {
		w.logger.Info("cycle cancelled", zap.String("cycle_id", cycle.ID))
		return
	}

	kind := domain.ErrorKind(cycle.Err)
	w.logger.Error("cycle failed",
		zap.String("cycle_id", cycle.ID),
		zap.String("kind", kind),
		zap.Duration("duration", cycle.Duration()),
		zap.Error(cycle.Err))

	finished := cycle.FinishedAt
	if finished.IsZero() {
		finished = w.now()
	}
	w.appendError(domain.ErrorRecord{
		Time:    finished,
		Kind:    kind,
		CycleID: cycle.ID,
		Message: fmt.Sprintf("%s: %s", kind, cycle.Err),
	})
}

// recordFault records a panic that escaped the cycle boundary.
func (w *Worker) recordFault(rec interface{}) {
	msg := fmt.Sprintf("%v\n%s", rec, debug.Stack())
	w.logger.Error("unhandled fault", zap.String("fault", msg))
	w.appendError(domain.ErrorRecord{
		Time:    w.now(),
		Kind:    domain.ErrorKind(domain.ErrUnhandledFault),
		Message: fmt.Sprintf("%s: %s", domain.ErrUnhandledFault, msg),
	})
}

// appendError writes to the error log. A failing or panicking log only costs the record.
func (w *Worker) appendError(rec domain.ErrorRecord) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("error log panicked", zap.Any("panic", r))
		}
	}()
	if err := w.errorLog.Append(rec); err != nil {
		w.logger.Error("failed to append error record", zap.Error(err))
	}
}

// InstallCrashOutput sends the runtime's fatal crash reports (unrecovered panics
// in any goroutine, fatal errors) to the file at path, in addition to stderr.
func InstallCrashOutput(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open crash output %s: %w", path, err)
	}
	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set crash output: %w", err)
	}
	return f, nil
}
