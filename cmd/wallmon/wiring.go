package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/wallmon/internal/config"
	"github.com/eliteGoblin/focusd/wallmon/internal/daemon"
	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
	"github.com/eliteGoblin/focusd/wallmon/internal/infra"
	"github.com/eliteGoblin/focusd/wallmon/internal/usecase"
)

// flagOverrides holds command-line values that win over the config file.
type flagOverrides struct {
	interval time.Duration
	document string
	logLevel string
}

// apply copies every flag the user actually set into cfg.
func (o flagOverrides) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.SetInterval(o.interval)
	}
	if flags.Changed("document") {
		cfg.Capture.Document = o.document
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
}

// args renders the set flags again for the worker command line.
func (o flagOverrides) args(cmd *cobra.Command) []string {
	var args []string
	flags := cmd.Flags()
	if flags.Changed("interval") {
		args = append(args, "--interval", o.interval.String())
	}
	if flags.Changed("document") {
		args = append(args, "--document", o.document)
	}
	if flags.Changed("log-level") {
		args = append(args, "--log-level", o.logLevel)
	}
	return args
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	overrides.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// workerArgs passes the config file and any overrides on to the worker.
func workerArgs(cmd *cobra.Command) []string {
	path := configPath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return append([]string{"--config", path}, overrides.args(cmd)...)
}

func supervisorConfig(cfg *config.Config) daemon.SupervisorConfig {
	return daemon.SupervisorConfig{
		Restart:        cfg.Supervisor.Restart,
		MaxRestarts:    cfg.Supervisor.MaxRestarts,
		RestartWindow:  cfg.Supervisor.RestartWindow.Duration,
		BackoffInitial: cfg.Supervisor.BackoffInitial.Duration,
		BackoffMax:     cfg.Supervisor.BackoffMax.Duration,
		StableAfter:    cfg.Supervisor.StableAfter.Duration,
	}
}

// newCycleRunner wires the capture pipeline and the applier.
func newCycleRunner(cfg *config.Config, paths infra.Paths, logger *zap.Logger) *usecase.CycleRunnerImpl {
	fs := infra.NewFileSystemManager()

	renderer := infra.NewChromeRenderer(infra.ChromeConfig{
		ExecPath:  fs.ExpandHome(cfg.Capture.ChromePath),
		Headless:  cfg.Capture.Headless,
		NoSandbox: cfg.Capture.NoSandbox,
	}, logger)

	pipeline := usecase.NewCapturePipeline(usecase.CaptureConfig{
		Width:         cfg.Capture.Width,
		Height:        cfg.Capture.Height,
		ReadySelector: cfg.Capture.ReadySelector,
		ReadyTimeout:  cfg.Capture.ReadyTimeout.Duration,
		SettleDelay:   cfg.Capture.SettleDelay.Duration,
		ArtifactPath:  paths.ArtifactPath(),
	}, renderer, fs, logger)

	document := cfg.Capture.Document
	if document == "" {
		document = paths.DefaultDocument()
	}

	applier := infra.NewCommandApplier(cfg.Wallpaper.Command, logger)
	return usecase.NewCycleRunner(pipeline, applier, fs.ExpandHome(document), domain.DisplayScope(cfg.Wallpaper.Scope), logger)
}

// newWorker builds the scheduler with its error log. The returned func closes the log.
func newWorker(cfg *config.Config, anchor time.Time, logger *zap.Logger) (*daemon.Worker, func(), error) {
	paths := infra.ResolvePaths(cfg.Paths.DataDir, cfg.Paths.LogDir)
	if err := paths.Ensure(); err != nil {
		return nil, nil, err
	}

	sched, err := daemon.NewSchedule(cfg.Schedule.Interval.Duration, cfg.Schedule.Cron, anchor)
	if err != nil {
		return nil, nil, err
	}

	errorLog, err := infra.NewErrorLog(paths.ErrorLogPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open error log: %w", err)
	}

	crashOut, err := daemon.InstallCrashOutput(paths.ErrorLogPath())
	if err != nil {
		logger.Warn("crash reports will only go to stderr", zap.Error(err))
	}

	w := daemon.NewWorker(daemon.WorkerConfig{
		Schedule:     sched,
		CycleTimeout: cfg.Schedule.CycleTimeout.Duration,
	}, newCycleRunner(cfg, paths, logger), errorLog, logger)

	closeFn := func() {
		_ = errorLog.Close()
		if crashOut != nil {
			_ = crashOut.Close()
		}
	}
	return w, closeFn, nil
}
