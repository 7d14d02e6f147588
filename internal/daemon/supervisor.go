package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	sdnotify "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/time/rate"

	"github.com/eliteGoblin/focusd/wallmon/internal/config"
	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// ErrRestartBudgetExhausted ends supervision after too many restarts in one window.
var ErrRestartBudgetExhausted = errors.New("restart budget exhausted")

const maxLineSize = 1024 * 1024

// SupervisorConfig holds supervisor configuration.
type SupervisorConfig struct {
	Restart        string        // One of the config.Restart* policies
	MaxRestarts    int           // Restarts allowed per RestartWindow; 0 means unlimited
	RestartWindow  time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	StableAfter    time.Duration // A run this long resets the backoff
}

// ExitError reports a worker exit that the restart policy did not recover from.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("worker exited with code %d", e.Code)
}

// Supervisor runs the worker as a child process, logs every line it writes,
// and restarts it according to the restart policy.
type Supervisor struct {
	config   SupervisorConfig
	newCmd   CommandFactory
	sink     domain.LogSink
	registry domain.ProcessRegistry // Optional
	limiter  *rate.Limiter
	notify   func(state string)
	now      func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	restarts int
}

// NewSupervisor creates a supervisor. registry may be nil.
func NewSupervisor(cfg SupervisorConfig, newCmd CommandFactory, sink domain.LogSink, registry domain.ProcessRegistry) *Supervisor {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.MaxRestarts > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RestartWindow/time.Duration(cfg.MaxRestarts)), cfg.MaxRestarts)
	}
	return &Supervisor{
		config:   cfg,
		newCmd:   newCmd,
		sink:     sink,
		registry: registry,
		limiter:  limiter,
		notify: func(state string) {
			_, _ = sdnotify.SdNotify(false, state)
		},
		now: time.Now,
	}
}

// worker is one running child.
type worker struct {
	cmd     *exec.Cmd
	started time.Time
	streams sync.WaitGroup
}

// Start spawns the worker and returns without waiting for it.
// A spawn failure is returned as ErrSpawn and nothing keeps running.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return errors.New("supervisor already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	w, err := s.spawn(ctx)
	if err != nil {
		cancel()
		return err
	}
	s.notify(sdnotify.SdNotifyReady)

	s.cancel = cancel
	s.done = make(chan struct{})
	go s.supervise(ctx, w)
	return nil
}

// Wait blocks until supervision ends. It returns nil after Stop or context
// cancellation, *ExitError when the policy gave up on a failed worker, and
// ErrRestartBudgetExhausted when the worker crashed too often.
func (s *Supervisor) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop interrupts the worker and waits for supervision to end.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		s.notify(sdnotify.SdNotifyStopping)
		cancel()
	}
	return s.Wait()
}

// Restarts returns how many times the worker has been restarted.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

func (s *Supervisor) spawn(ctx context.Context) (*worker, error) {
	cmd := s.newCmd(ctx)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		s.lifecycle("failed to start worker: %v", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrSpawn, err)
	}

	w := &worker{cmd: cmd, started: s.now()}
	w.streams.Add(2)
	go s.scanLines(stdout, domain.StreamStdout, &w.streams)
	go s.scanLines(stderr, domain.StreamStderr, &w.streams)

	s.lifecycle("worker started (pid %d)", cmd.Process.Pid)
	if s.registry != nil {
		if err := s.registry.RecordWorkerStart(cmd.Process.Pid, w.started); err != nil {
			s.lifecycle("failed to update registry: %v", err)
		}
	}
	return w, nil
}

// scanLines turns each line of r into a log record stamped with the time it was read.
func (s *Supervisor) scanLines(r io.Reader, stream domain.Stream, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		s.sink.Record(domain.LogRecord{
			Time:    s.now(),
			Stream:  stream,
			Message: strings.TrimRight(scanner.Text(), "\r"),
		})
	}
	if err := scanner.Err(); err != nil {
		s.lifecycle("stopped reading worker %s: %v", stream, err)
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

// wait reaps the worker and returns its exit code, -1 if it did not exit normally.
func (s *Supervisor) wait(w *worker) int {
	// Reads must finish before Wait closes the pipes.
	w.streams.Wait()
	err := w.cmd.Wait()

	if w.cmd.ProcessState != nil {
		return w.cmd.ProcessState.ExitCode()
	}
	if err != nil {
		s.lifecycle("failed to wait for worker: %v", err)
	}
	return -1
}

func (s *Supervisor) supervise(ctx context.Context, w *worker) {
	var err error
	defer func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		_ = s.sink.Sync()
		close(s.done)
	}()

	failures := 0
	for {
		code := -1
		ranFor := time.Duration(0)
		if w != nil {
			code = s.wait(w)
			ranFor = s.now().Sub(w.started)
			s.lifecycle("worker exited with code %d", code)
			if s.registry != nil {
				if rerr := s.registry.RecordWorkerExit(code, s.Restarts()); rerr != nil {
					s.lifecycle("failed to update registry: %v", rerr)
				}
			}
		}

		if ctx.Err() != nil {
			s.lifecycle("supervisor stopped")
			return
		}
		if !s.shouldRestart(code) {
			s.lifecycle("worker will not be restarted (restart policy %s)", s.config.Restart)
			if code != 0 {
				err = &ExitError{Code: code}
			}
			return
		}

		if w != nil && s.config.StableAfter > 0 && ranFor >= s.config.StableAfter {
			failures = 0
		}
		failures++

		if !s.limiter.Allow() {
			s.lifecycle("restart budget exhausted (%d restarts per %s), giving up",
				s.config.MaxRestarts, s.config.RestartWindow)
			err = ErrRestartBudgetExhausted
			return
		}

		delay := s.backoff(failures)
		s.lifecycle("restarting worker in %s (attempt %d)", delay, failures)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.lifecycle("supervisor stopped")
			return
		case <-timer.C:
		}

		s.mu.Lock()
		s.restarts++
		s.mu.Unlock()

		// A failed spawn counts as an exit and goes through the policy again.
		w, _ = s.spawn(ctx)
	}
}

func (s *Supervisor) shouldRestart(code int) bool {
	switch s.config.Restart {
	case config.RestartAlways:
		return true
	case config.RestartOnFailure:
		return code != 0
	default:
		return false
	}
}

// backoff returns initial*2^(n-1), capped at BackoffMax.
func (s *Supervisor) backoff(n int) time.Duration {
	d := s.config.BackoffInitial
	for i := 1; i < n && d < s.config.BackoffMax; i++ {
		d *= 2
	}
	if d > s.config.BackoffMax {
		d = s.config.BackoffMax
	}
	return d
}

func (s *Supervisor) lifecycle(format string, args ...interface{}) {
	s.sink.Record(domain.LogRecord{
		Time:    s.now(),
		Stream:  domain.StreamLifecycle,
		Message: fmt.Sprintf(format, args...),
	})
}
